// Package ledger defines the revocation ledger: a TTL-bounded store of
// explicitly invalidated token ids plus the per-subject generation counter
// used for O(1) global invalidation. Entries expire with the token they
// shadow, so the ledger never grows past the sum of live tokens.
package ledger

import (
	"context"
	"time"
)

// Ledger records revoked token ids until their natural expiry and serves the
// current generation per subject.
//
// Implementations must provide write-then-read consistency: once Put or a
// winning PutIfAbsent returns, every subsequent Contains call from any
// caller observes the revocation. The single-use refresh guarantee depends
// on it.
type Ledger interface {
	// Put records tokenID as revoked for ttl. Entries whose ttl has elapsed
	// behave as absent. Put is idempotent; re-putting extends the entry to
	// the longer of the two deadlines.
	Put(ctx context.Context, tokenID string, ttl time.Duration) error

	// PutIfAbsent atomically records tokenID unless a live entry already
	// exists. It returns true when this call created the entry. Exactly one
	// of any set of concurrent calls for the same id wins.
	PutIfAbsent(ctx context.Context, tokenID string, ttl time.Duration) (bool, error)

	// Contains reports whether a live revocation entry exists for tokenID.
	Contains(ctx context.Context, tokenID string) (bool, error)

	// BumpGeneration increments the subject's generation counter and returns
	// the new value. Subjects start at generation zero.
	BumpGeneration(ctx context.Context, subjectID string) (int64, error)

	// CurrentGeneration returns the subject's generation counter.
	CurrentGeneration(ctx context.Context, subjectID string) (int64, error)
}
