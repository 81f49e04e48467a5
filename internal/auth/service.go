// Package auth orchestrates the token lifecycle: login, per-request
// authorization, refresh rotation and revocation. The engine holds no
// process-wide mutable state; everything mutable lives in the credential
// store and the revocation ledger, both injected.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gatekit.org/internal/ledger"
	"gatekit.org/internal/rbac"
	"gatekit.org/internal/token"
)

// EventType names a security-relevant engine event.
type EventType string

const (
	EventLogin            EventType = "auth.login"
	EventRefresh          EventType = "auth.refresh"
	EventLogout           EventType = "auth.logout"
	EventLogoutEverywhere EventType = "auth.logout_everywhere"
	EventTokenReuse       EventType = "auth.token_reuse_detected"
)

// SecurityEvent is surfaced to the configured sink alongside, never instead
// of, the returned error.
type SecurityEvent struct {
	Type      EventType
	SubjectID string
	TokenID   string
	At        time.Time
}

// EventSink receives security events. Sinks must not block.
type EventSink func(ctx context.Context, ev SecurityEvent)

// TokenPair is an access+refresh pair sharing one generation at issuance.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Service is the auth engine. Safe for concurrent use.
type Service struct {
	store  CredentialStore
	ledger ledger.Ledger
	codec  *token.Codec

	now         func() time.Time
	bumpOnReuse bool
	events      EventSink
}

// Option configures Service behavior.
type Option func(*Service) error

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithEventSink registers a sink for security events.
func WithEventSink(sink EventSink) Option {
	return func(s *Service) error {
		s.events = sink
		return nil
	}
}

// WithBumpOnReuse controls whether refresh token reuse triggers a defensive
// generation bump for the subject (log out everywhere). Default on.
func WithBumpOnReuse(enabled bool) Option {
	return func(s *Service) error {
		s.bumpOnReuse = enabled
		return nil
	}
}

// NewService constructs the engine.
func NewService(store CredentialStore, led ledger.Ledger, codec *token.Codec, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: credential store is required")
	}
	if led == nil {
		return nil, errors.New("auth: revocation ledger is required")
	}
	if codec == nil {
		return nil, errors.New("auth: token codec is required")
	}
	s := &Service{
		store:       store,
		ledger:      led,
		codec:       codec,
		now:         time.Now,
		bumpOnReuse: true,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Login verifies credentials and issues an access+refresh pair at the
// subject's current generation. Unknown identifier, disabled account and
// wrong secret all return the identical ErrAuthFailed.
func (s *Service) Login(ctx context.Context, identifier, secret string) (TokenPair, Identity, error) {
	identifier = strings.TrimSpace(strings.ToLower(identifier))
	if identifier == "" || secret == "" {
		return TokenPair{}, Identity{}, ErrAuthFailed
	}

	identity, err := s.store.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, Identity{}, ErrAuthFailed
		}
		return TokenPair{}, Identity{}, unavailable("find identity", err)
	}
	if !identity.Active() {
		return TokenPair{}, Identity{}, ErrAuthFailed
	}
	ok, err := s.store.VerifySecret(ctx, identity.ID, secret)
	if err != nil {
		return TokenPair{}, Identity{}, unavailable("verify secret", err)
	}
	if !ok {
		return TokenPair{}, Identity{}, ErrAuthFailed
	}

	gen, err := s.ledger.CurrentGeneration(ctx, identity.ID)
	if err != nil {
		return TokenPair{}, Identity{}, unavailable("read generation", err)
	}
	pair, err := s.issuePair(identity, gen)
	if err != nil {
		return TokenPair{}, Identity{}, err
	}
	s.emit(ctx, SecurityEvent{Type: EventLogin, SubjectID: identity.ID, At: s.now().UTC()})
	return pair, identity, nil
}

// Authorize validates a raw access token against signature, expiry, the
// revocation ledger, the subject's current generation and the RBAC policy.
// On success it returns the identity snapshot carried by the token; no
// credential store read happens on this path.
func (s *Service) Authorize(ctx context.Context, rawAccessToken string, perm rbac.Permission) (Identity, error) {
	claims, err := s.codec.Decode(rawAccessToken)
	if err != nil {
		return Identity{}, err
	}
	if claims.Kind != token.KindAccess {
		return Identity{}, ErrInvalidToken
	}

	revoked, err := s.ledger.Contains(ctx, claims.ID)
	if err != nil {
		return Identity{}, unavailable("check revocation", err)
	}
	if revoked {
		return Identity{}, ErrRevoked
	}

	gen, err := s.ledger.CurrentGeneration(ctx, claims.Subject)
	if err != nil {
		return Identity{}, unavailable("read generation", err)
	}
	if claims.Generation != gen {
		return Identity{}, ErrStaleSession
	}

	if !rbac.Allow(claims.Role, perm) {
		return Identity{}, ErrForbidden
	}
	return Identity{ID: claims.Subject, Role: claims.Role, Status: StatusActive}, nil
}

// Refresh consumes a refresh token and issues a replacement pair. The
// consumed token id is written to the ledger with a conditional put, the
// single atomic operation that makes refresh single-use: of two concurrent
// calls with the same token exactly one wins, the other observes the entry
// and fails with ErrTokenReuse.
func (s *Service) Refresh(ctx context.Context, rawRefreshToken string) (TokenPair, Identity, error) {
	claims, err := s.codec.Decode(rawRefreshToken)
	if err != nil {
		return TokenPair{}, Identity{}, err
	}
	if claims.Kind != token.KindRefresh {
		return TokenPair{}, Identity{}, ErrInvalidToken
	}

	gen, err := s.ledger.CurrentGeneration(ctx, claims.Subject)
	if err != nil {
		return TokenPair{}, Identity{}, unavailable("read generation", err)
	}
	if claims.Generation != gen {
		return TokenPair{}, Identity{}, ErrStaleSession
	}

	// Fast path: a refresh id only enters the ledger through rotation or
	// logout, so a live entry means this token was already consumed.
	seen, err := s.ledger.Contains(ctx, claims.ID)
	if err != nil {
		return TokenPair{}, Identity{}, unavailable("check revocation", err)
	}
	if seen {
		return TokenPair{}, Identity{}, s.reuseDetected(ctx, claims)
	}

	// Re-read the identity so a role change or disable since issuance is
	// picked up before new credentials are minted.
	identity, err := s.store.Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, Identity{}, ErrAuthFailed
		}
		return TokenPair{}, Identity{}, unavailable("find identity", err)
	}
	if !identity.Active() {
		return TokenPair{}, Identity{}, ErrAuthFailed
	}

	remaining := claims.ExpiresAt.Time.Sub(s.now().UTC())
	if remaining <= 0 {
		return TokenPair{}, Identity{}, ErrInvalidToken
	}

	// Commit point. Either the conditional put fully lands or nothing is
	// written; a cancelled call can never leave a half-rotated session.
	won, err := s.ledger.PutIfAbsent(ctx, claims.ID, remaining)
	if err != nil {
		return TokenPair{}, Identity{}, unavailable("revoke consumed token", err)
	}
	if !won {
		return TokenPair{}, Identity{}, s.reuseDetected(ctx, claims)
	}

	pair, err := s.issuePair(identity, gen)
	if err != nil {
		return TokenPair{}, Identity{}, err
	}
	s.emit(ctx, SecurityEvent{Type: EventRefresh, SubjectID: identity.ID, TokenID: claims.ID, At: s.now().UTC()})
	return pair, identity, nil
}

// Logout revokes the presented refresh token. The paired access token rides
// out its short TTL; callers wanting immediate global invalidation use
// LogoutEverywhere. Logout is idempotent.
func (s *Service) Logout(ctx context.Context, rawRefreshToken string) error {
	claims, err := s.codec.Decode(rawRefreshToken)
	if err != nil {
		return err
	}
	if claims.Kind != token.KindRefresh {
		return ErrInvalidToken
	}
	remaining := claims.ExpiresAt.Time.Sub(s.now().UTC())
	if remaining > 0 {
		if err := s.ledger.Put(ctx, claims.ID, remaining); err != nil {
			return unavailable("revoke token", err)
		}
	}
	s.emit(ctx, SecurityEvent{Type: EventLogout, SubjectID: claims.Subject, TokenID: claims.ID, At: s.now().UTC()})
	return nil
}

// LogoutEverywhere bumps the subject's generation counter. Every
// outstanding token for the subject fails its next generation check, without
// enumerating them: global invalidation is O(1).
func (s *Service) LogoutEverywhere(ctx context.Context, subjectID string) (int64, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return 0, ErrNotFound
	}
	gen, err := s.ledger.BumpGeneration(ctx, subjectID)
	if err != nil {
		return 0, unavailable("bump generation", err)
	}
	s.emit(ctx, SecurityEvent{Type: EventLogoutEverywhere, SubjectID: subjectID, At: s.now().UTC()})
	return gen, nil
}

func (s *Service) issuePair(identity Identity, generation int64) (TokenPair, error) {
	access, accessClaims, err := s.codec.Issue(identity.ID, identity.Role, generation, token.KindAccess)
	if err != nil {
		return TokenPair{}, fmt.Errorf("auth: issue access token: %w", err)
	}
	refresh, refreshClaims, err := s.codec.Issue(identity.ID, identity.Role, generation, token.KindRefresh)
	if err != nil {
		return TokenPair{}, fmt.Errorf("auth: issue refresh token: %w", err)
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, nil
}

// reuseDetected emits the escalation event and, when enabled, force-logs the
// subject out everywhere as a defensive measure.
func (s *Service) reuseDetected(ctx context.Context, claims token.Claims) error {
	s.emit(ctx, SecurityEvent{
		Type:      EventTokenReuse,
		SubjectID: claims.Subject,
		TokenID:   claims.ID,
		At:        s.now().UTC(),
	})
	if s.bumpOnReuse {
		// Best effort: the reuse error is surfaced regardless.
		_, _ = s.ledger.BumpGeneration(ctx, claims.Subject)
	}
	return ErrTokenReuse
}

func (s *Service) emit(ctx context.Context, ev SecurityEvent) {
	if s.events != nil {
		s.events(ctx, ev)
	}
}

// unavailable wraps infrastructure failures so routing can map them to a
// retryable response class.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
