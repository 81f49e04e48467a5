package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"gatekit.org/internal/audit"
	"gatekit.org/internal/auth"
	"gatekit.org/internal/obs"
	"gatekit.org/internal/token"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed string) {
	w.Header().Set("Allow", allowed)
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

// decodeJSON reads a bounded JSON request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}

// respondAuthError maps the engine's error taxonomy onto HTTP statuses.
// Token rejection details (malformed, bad signature, expired) are written to
// the internal log only; the client sees a uniform message.
func (a *API) respondAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrAuthFailed):
		writeError(w, r, http.StatusUnauthorized, "authentication failed")
	case errors.Is(err, auth.ErrTokenReuse):
		obs.ObserveTokenReuse()
		writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, auth.ErrRevoked):
		writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, auth.ErrStaleSession):
		writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, auth.ErrInvalidToken):
		if reason, ok := token.DecodeReason(err); ok {
			obs.LogEvent(map[string]any{
				"type":       "token_rejected",
				"reason":     string(reason),
				"request_id": RequestIDFromContext(r.Context()),
			})
		}
		writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "permission denied")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, auth.ErrUnavailable):
		obs.LogEvent(map[string]any{
			"type":       "dependency_unavailable",
			"error":      err.Error(),
			"request_id": RequestIDFromContext(r.Context()),
		})
		writeError(w, r, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		obs.LogEvent(map[string]any{
			"type":       "internal_error",
			"error":      err.Error(),
			"request_id": RequestIDFromContext(r.Context()),
		})
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
	_ = audit.LogEvent(r.Context(), "auth.request.denied", map[string]any{
		"path":  r.URL.Path,
		"class": resultLabel(err),
	})
}

// resultLabel collapses an engine error into a bounded metric label.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, auth.ErrTokenReuse):
		return "reuse"
	case errors.Is(err, auth.ErrAuthFailed):
		return "failed"
	case errors.Is(err, auth.ErrRevoked):
		return "revoked"
	case errors.Is(err, auth.ErrStaleSession):
		return "stale"
	case errors.Is(err, auth.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, auth.ErrForbidden):
		return "forbidden"
	case errors.Is(err, auth.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
