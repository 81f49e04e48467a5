package auth

import (
	"errors"

	"gatekit.org/internal/token"
)

var (
	// ErrAuthFailed covers bad credentials, unknown identifiers and disabled
	// accounts. The three are never distinguished, to prevent enumeration.
	ErrAuthFailed = errors.New("auth: authentication failed")

	// ErrInvalidToken is the codec's sentinel, re-exported so callers match
	// one error regardless of which layer rejected the token.
	ErrInvalidToken = token.ErrInvalidToken

	// ErrRevoked indicates the token id is present in the revocation ledger.
	ErrRevoked = errors.New("auth: token revoked")

	// ErrStaleSession indicates the token's generation no longer matches the
	// subject's current generation (a global logout happened after issuance).
	ErrStaleSession = errors.New("auth: stale session")

	// ErrForbidden indicates the RBAC evaluator denied the permission.
	ErrForbidden = errors.New("auth: forbidden")

	// ErrTokenReuse indicates a refresh token was presented after it had
	// already been consumed or revoked. A possible theft signal, kept
	// distinct from ordinary revocation so callers can escalate.
	ErrTokenReuse = errors.New("auth: refresh token reuse detected")

	// ErrUnavailable indicates the credential store or revocation ledger
	// timed out or was unreachable. It is the only error class eligible for
	// caller-side retry.
	ErrUnavailable = errors.New("auth: backing service unavailable")

	// ErrNotFound is returned by credential store adapters for unknown
	// identifiers. The engine maps it to ErrAuthFailed before it can leak.
	ErrNotFound = errors.New("auth: not found")
)
