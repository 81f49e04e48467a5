package token

import "errors"

// ErrInvalidToken indicates the token failed validation. Callers must treat
// all decode failures uniformly; the detailed reason exists for logs only.
var ErrInvalidToken = errors.New("token: invalid token")

// Reason is the internal decode failure classification.
type Reason string

const (
	ReasonMalformed Reason = "malformed"
	ReasonSignature Reason = "bad_signature"
	ReasonExpired   Reason = "expired"
)

// InvalidTokenError wraps ErrInvalidToken with the internal reason.
type InvalidTokenError struct {
	Reason Reason
}

func (e *InvalidTokenError) Error() string {
	return "token: invalid token (" + string(e.Reason) + ")"
}

func (e *InvalidTokenError) Unwrap() error { return ErrInvalidToken }

func invalid(reason Reason) error {
	return &InvalidTokenError{Reason: reason}
}

// DecodeReason extracts the internal reason from a decode error, if any.
func DecodeReason(err error) (Reason, bool) {
	var ite *InvalidTokenError
	if errors.As(err, &ite) {
		return ite.Reason, true
	}
	return "", false
}
