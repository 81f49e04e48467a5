// Package token encodes and decodes the signed bearer tokens issued by the
// auth engine. Tokens are HS256 JWTs carrying subject, role, generation,
// kind (access or refresh) and a random token id; the signature covers every
// field. Timestamps are integer seconds since epoch, UTC.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"gatekit.org/internal/rbac"
)

const (
	defaultAccessTTL  = 30 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Kind distinguishes short-lived access tokens from single-use refresh tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims is the full signed payload.
type Claims struct {
	Role       rbac.Role `json:"role"`
	Generation int64     `json:"gen"`
	Kind       Kind      `json:"kind"`
	jwt.RegisteredClaims
}

// Codec signs and verifies tokens with a server-held secret.
type Codec struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	leeway     time.Duration
	now        func() time.Time
}

// Option configures Codec behavior.
type Option func(*Codec) error

// WithIssuer sets the issuer claim embedded into and expected from tokens.
func WithIssuer(issuer string) Option {
	return func(c *Codec) error {
		c.issuer = strings.TrimSpace(issuer)
		return nil
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) Option {
	return func(c *Codec) error {
		if ttl <= 0 {
			return errors.New("token: access ttl must be positive")
		}
		c.accessTTL = ttl
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(c *Codec) error {
		if ttl <= 0 {
			return errors.New("token: refresh ttl must be positive")
		}
		c.refreshTTL = ttl
		return nil
	}
}

// WithLeeway permits expiry and issued-at checks to tolerate clock drift
// between issuing and validating hosts.
func WithLeeway(d time.Duration) Option {
	return func(c *Codec) error {
		if d < 0 {
			return errors.New("token: leeway must not be negative")
		}
		c.leeway = d
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(c *Codec) error {
		if fn != nil {
			c.now = fn
		}
		return nil
	}
}

// New constructs a Codec. An empty signing secret is a fatal
// misconfiguration and is rejected here rather than at issue time.
func New(secret string, opts ...Option) (*Codec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token: signing secret is not configured")
	}
	c := &Codec{
		secret:     []byte(secret),
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// TTL returns the configured lifetime for the given kind.
func (c *Codec) TTL(kind Kind) time.Duration {
	if kind == KindRefresh {
		return c.refreshTTL
	}
	return c.accessTTL
}

// Issue signs a token of the given kind for the subject snapshot. The token
// id is cryptographically random and unique per token.
func (c *Codec) Issue(subject string, role rbac.Role, generation int64, kind Kind) (string, Claims, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", Claims{}, errors.New("token: subject is required")
	}
	if kind != KindAccess && kind != KindRefresh {
		return "", Claims{}, fmt.Errorf("token: unsupported kind %q", kind)
	}
	if !role.Valid() {
		return "", Claims{}, fmt.Errorf("token: invalid role %q", role)
	}

	now := c.now().UTC().Truncate(time.Second)
	claims := Claims{
		Role:       role,
		Generation: generation,
		Kind:       kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.TTL(kind))),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("token: sign: %w", err)
	}
	return signed, claims, nil
}

// Decode parses raw, verifies the signature and time bounds and returns the
// claims. Every failure collapses to ErrInvalidToken; the internal reason
// (malformed, signature, expired) is carried by InvalidTokenError for
// logging only and must never reach a user-facing message.
func (c *Codec) Decode(raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, invalid(ReasonMalformed)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(c.leeway),
		jwt.WithTimeFunc(func() time.Time { return c.now().UTC() }),
		jwt.WithIssuedAt(),
	}
	if c.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(c.issuer))
	}

	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}, parserOpts...)
	if err != nil {
		return Claims{}, invalid(classify(err))
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, invalid(ReasonSignature)
	}
	if err := validate(claims); err != nil {
		return Claims{}, invalid(ReasonMalformed)
	}
	return *claims, nil
}

// validate enforces payload fields the jwt library does not know about.
func validate(claims *Claims) error {
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.ID == "" {
		return errors.New("token id missing")
	}
	if claims.Kind != KindAccess && claims.Kind != KindRefresh {
		return fmt.Errorf("unknown kind %q", claims.Kind)
	}
	if !claims.Role.Valid() {
		return fmt.Errorf("unknown role %q", claims.Role)
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("expiry precedes issued-at")
	}
	return nil
}

func classify(err error) Reason {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrInvalidKeyType):
		return ReasonSignature
	default:
		return ReasonMalformed
	}
}
