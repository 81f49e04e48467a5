package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gatekit.org/internal/ledger"
)

var _ ledger.Ledger = (*Store)(nil)

// Put records tokenID as revoked until its natural expiry. Re-putting keeps
// the later deadline.
func (s *Store) Put(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		insert into revoked_tokens (token_id, expires_at)
		values ($1, now() + $2 * interval '1 second')
		on conflict (token_id) do update
		set expires_at = greatest(revoked_tokens.expires_at, excluded.expires_at)
	`, tokenID, int64(ttl.Seconds()))
	return err
}

// PutIfAbsent is the conditional revoke backing single-use refresh. The
// insert either lands or hits the primary key; exactly one concurrent
// caller observes rows affected. An expired leftover row can only belong to
// a token the codec already rejects as expired, so losing to one is moot.
func (s *Store) PutIfAbsent(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, errors.New("pg: ttl must be positive")
	}
	res, err := s.db.ExecContext(ctx, `
		insert into revoked_tokens (token_id, expires_at)
		values ($1, now() + $2 * interval '1 second')
		on conflict (token_id) do nothing
	`, tokenID, int64(ttl.Seconds()))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Contains reports whether a live revocation entry exists for tokenID.
func (s *Store) Contains(ctx context.Context, tokenID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		select exists (
			select 1 from revoked_tokens
			where token_id = $1 and expires_at > now()
		)
	`, tokenID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// BumpGeneration atomically increments and returns the subject's generation.
func (s *Store) BumpGeneration(ctx context.Context, subjectID string) (int64, error) {
	var gen int64
	err := s.db.QueryRowContext(ctx, `
		insert into subject_generations (subject_id, generation)
		values ($1, 1)
		on conflict (subject_id) do update
		set generation = subject_generations.generation + 1
		returning generation
	`, subjectID).Scan(&gen)
	if err != nil {
		return 0, err
	}
	return gen, nil
}

// CurrentGeneration returns the subject's generation, zero when the subject
// was never bumped.
func (s *Store) CurrentGeneration(ctx context.Context, subjectID string) (int64, error) {
	var gen int64
	err := s.db.QueryRowContext(ctx, `
		select generation from subject_generations where subject_id = $1
	`, subjectID).Scan(&gen)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return gen, nil
}

// DeleteExpired reclaims revocation entries past their deadline. Run it
// periodically; expiry correctness never depends on it.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		delete from revoked_tokens where expires_at <= now()
	`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
