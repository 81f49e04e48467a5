package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"gatekit.org/internal/rbac"
)

func newTestCodec(t *testing.T, now *time.Time, opts ...Option) *Codec {
	t.Helper()
	base := []Option{
		WithIssuer("gatekit-test"),
		WithClock(func() time.Time { return *now }),
	}
	c, err := New("test-signing-secret", append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewRequiresSecret(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := New("   "); err == nil {
		t.Fatal("expected error for blank secret")
	}
}

func TestIssueAndDecodeRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCodec(t, &now)

	raw, issued, err := c.Issue("subject-1", rbac.RoleModerator, 3, KindAccess)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if issued.ID == "" {
		t.Fatal("issued token has no id")
	}

	claims, err := c.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if claims.Subject != "subject-1" {
		t.Fatalf("subject=%q", claims.Subject)
	}
	if claims.Role != rbac.RoleModerator {
		t.Fatalf("role=%q", claims.Role)
	}
	if claims.Generation != 3 {
		t.Fatalf("generation=%d", claims.Generation)
	}
	if claims.Kind != KindAccess {
		t.Fatalf("kind=%q", claims.Kind)
	}
	if claims.ID != issued.ID {
		t.Fatalf("id=%q, want %q", claims.ID, issued.ID)
	}
	if got := claims.ExpiresAt.Time; !got.Equal(now.Add(c.TTL(KindAccess))) {
		t.Fatalf("expires at %v", got)
	}
}

func TestIssueUniqueTokenIDs(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCodec(t, &now)

	_, a, err := c.Issue("s", rbac.RoleUser, 0, KindRefresh)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	_, b, err := c.Issue("s", rbac.RoleUser, 0, KindRefresh)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if a.ID == b.ID {
		t.Fatalf("token ids collide: %q", a.ID)
	}
}

func TestIssueRejectsBadInput(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCodec(t, &now)

	if _, _, err := c.Issue("", rbac.RoleUser, 0, KindAccess); err == nil {
		t.Fatal("expected error for empty subject")
	}
	if _, _, err := c.Issue("s", rbac.Role("root"), 0, KindAccess); err == nil {
		t.Fatal("expected error for unknown role")
	}
	if _, _, err := c.Issue("s", rbac.RoleUser, 0, Kind("session")); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestDecodeTamperedSignature(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCodec(t, &now)

	raw, _, err := c.Issue("s", rbac.RoleUser, 0, KindAccess)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Flip one character of the signature segment.
	i := strings.LastIndex(raw, ".") + 1
	b := []byte(raw)
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}

	_, err = c.Decode(string(b))
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err=%v, want ErrInvalidToken", err)
	}
	if reason, ok := DecodeReason(err); !ok || reason != ReasonSignature {
		t.Fatalf("reason=%v ok=%v, want bad_signature", reason, ok)
	}
}

func TestDecodeTamperedPayload(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCodec(t, &now)

	raw, _, err := c.Issue("s", rbac.RoleUser, 0, KindAccess)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	parts := strings.Split(raw, ".")
	// Swap two payload characters so the signature no longer covers it.
	payload := []byte(parts[1])
	payload[0], payload[1] = payload[1], payload[0]
	parts[1] = string(payload)

	if _, err := c.Decode(strings.Join(parts, ".")); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err=%v, want ErrInvalidToken", err)
	}
}

func TestDecodeWrongSecret(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCodec(t, &now)
	raw, _, err := c.Issue("s", rbac.RoleUser, 0, KindAccess)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other, err := New("a-different-secret",
		WithIssuer("gatekit-test"),
		WithClock(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = other.Decode(raw)
	if reason, ok := DecodeReason(err); !ok || reason != ReasonSignature {
		t.Fatalf("reason=%v ok=%v, want bad_signature", reason, ok)
	}
}

func TestDecodeMalformed(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCodec(t, &now)

	for _, raw := range []string{"", "not-a-token", "a.b", "a.b.c.d"} {
		_, err := c.Decode(raw)
		if !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Decode(%q): err=%v, want ErrInvalidToken", raw, err)
		}
		if reason, ok := DecodeReason(err); !ok || reason != ReasonMalformed {
			t.Fatalf("Decode(%q): reason=%v", raw, reason)
		}
	}
}

func TestDecodeExpiryBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCodec(t, &now, WithAccessTTL(10*time.Minute))

	raw, _, err := c.Issue("s", rbac.RoleUser, 0, KindAccess)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// One second before expiry the token is still good.
	now = now.Add(10*time.Minute - time.Second)
	if _, err := c.Decode(raw); err != nil {
		t.Fatalf("Decode just before expiry: %v", err)
	}

	// At exactly now == exp the token is already expired.
	now = now.Add(time.Second)
	_, err = c.Decode(raw)
	if reason, ok := DecodeReason(err); !ok || reason != ReasonExpired {
		t.Fatalf("reason=%v ok=%v, want expired", reason, ok)
	}
}

func TestDecodeLeeway(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCodec(t, &now, WithAccessTTL(10*time.Minute), WithLeeway(30*time.Second))

	raw, _, err := c.Issue("s", rbac.RoleUser, 0, KindAccess)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Inside the grace window the token still validates.
	now = now.Add(10*time.Minute + 29*time.Second)
	if _, err := c.Decode(raw); err != nil {
		t.Fatalf("Decode inside leeway: %v", err)
	}

	// Past the window it does not.
	now = now.Add(2 * time.Second)
	if _, err := c.Decode(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err=%v, want ErrInvalidToken", err)
	}
}

func TestDecodeIssuerMismatch(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCodec(t, &now)

	foreign, err := New("test-signing-secret",
		WithIssuer("someone-else"),
		WithClock(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	raw, _, err := foreign.Issue("s", rbac.RoleUser, 0, KindAccess)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := c.Decode(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err=%v, want ErrInvalidToken", err)
	}
}
