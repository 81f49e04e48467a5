package httpapi

import (
	"net/http"
	"strings"
	"time"

	"gatekit.org/internal/audit"
	"gatekit.org/internal/auth"
	"gatekit.org/internal/obs"
	"gatekit.org/internal/rbac"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPairResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type identityResponse struct {
	SubjectID string `json:"subject_id"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
}

func pairResponse(pair auth.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        "bearer",
		AccessExpiresAt:  pair.AccessExpiresAt.UTC(),
		RefreshExpiresAt: pair.RefreshExpiresAt.UTC(),
	}
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.allowRequest(r) {
		writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	pair, identity, err := a.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		obs.ObserveLogin(resultLabel(err))
		a.respondAuthError(w, r, err)
		return
	}
	obs.ObserveLogin("ok")
	_ = audit.LogEvent(r.Context(), "auth.login.ok", map[string]any{
		"subject_id": identity.ID,
	})
	writeJSON(w, http.StatusOK, pairResponse(pair))
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.allowRequest(r) {
		writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, _, err := a.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		obs.ObserveRefresh(resultLabel(err))
		a.respondAuthError(w, r, err)
		return
	}
	obs.ObserveRefresh("ok")
	writeJSON(w, http.StatusOK, pairResponse(pair))
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req logoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}

	if err := a.engine.Logout(r.Context(), req.RefreshToken); err != nil {
		a.respondAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

// handleLogoutAll invalidates every outstanding token of the caller.
func (a *API) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if _, err := a.engine.LogoutEverywhere(r.Context(), identity.ID); err != nil {
		a.respondAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out_everywhere"})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, identityResponse{
		SubjectID: identity.ID,
		Email:     identity.Email,
		Role:      string(identity.Role),
	})
}

// --- operator endpoints: /v1/auth/subjects/{id}/... ---

func (a *API) handleSubjects(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/auth/subjects/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	subjectID, action := parts[0], parts[1]

	switch action {
	case "logout":
		a.requireAuth(rbac.PermUsersManage, func(w http.ResponseWriter, r *http.Request) {
			a.handleSubjectLogout(w, r, subjectID)
		})(w, r)
	case "role":
		a.requireAuth(rbac.PermRolesManage, func(w http.ResponseWriter, r *http.Request) {
			a.handleSubjectRole(w, r, subjectID)
		})(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (a *API) handleSubjectLogout(w http.ResponseWriter, r *http.Request, subjectID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	gen, err := a.engine.LogoutEverywhere(r.Context(), subjectID)
	if err != nil {
		a.respondAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.subject.logout_everywhere", map[string]any{
		"target_subject_id": subjectID,
		"generation":        gen,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out_everywhere"})
}

type roleUpdateRequest struct {
	Role string `json:"role"`
}

func (a *API) handleSubjectRole(w http.ResponseWriter, r *http.Request, subjectID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.admin == nil {
		http.NotFound(w, r)
		return
	}

	var req roleUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := rbac.ParseRole(req.Role)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.admin.SetRole(r.Context(), subjectID, role); err != nil {
		a.respondAuthError(w, r, err)
		return
	}
	// Outstanding tokens keep the old role until the subject re-authenticates
	// or is logged out everywhere.
	_ = audit.LogEvent(r.Context(), "auth.subject.role_changed", map[string]any{
		"target_subject_id": subjectID,
		"role":              string(role),
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "role_updated"})
}

func (a *API) allowRequest(r *http.Request) bool {
	if a.limiter == nil {
		return true
	}
	return a.limiter.allow(clientIP(r, a.trustProxy))
}
