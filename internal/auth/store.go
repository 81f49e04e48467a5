package auth

import (
	"context"

	"gatekit.org/internal/rbac"
)

// Status is the account state held by the credential store.
type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

// Identity is a point-in-time snapshot of a subject as read from the
// credential store. The engine never caches it across operations.
type Identity struct {
	ID     string
	Email  string
	Role   rbac.Role
	Status Status
}

// Active reports whether the account may authenticate.
func (i Identity) Active() bool { return i.Status == StatusActive }

// CredentialStore is the capability set the engine needs from the persistent
// identity store. Secret hashes stay inside the adapter; the engine only
// asks it to verify.
type CredentialStore interface {
	// FindByIdentifier resolves a login identifier (email) to an identity
	// snapshot. Returns ErrNotFound for unknown identifiers.
	FindByIdentifier(ctx context.Context, identifier string) (Identity, error)

	// Find resolves a subject id to a fresh identity snapshot. Returns
	// ErrNotFound for unknown subjects.
	Find(ctx context.Context, subjectID string) (Identity, error)

	// VerifySecret checks the secret against the stored hash for the
	// subject. A mismatch is (false, nil); errors are store failures.
	VerifySecret(ctx context.Context, subjectID, secret string) (bool, error)
}
