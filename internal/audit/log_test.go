package audit

import (
	"context"
	"testing"
	"time"

	"gatekit.org/internal/auth"
)

func TestWithRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	if got := requestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("request id=%q", got)
	}

	// Blank ids are not attached.
	ctx = WithRequestID(context.Background(), "  ")
	if got := requestIDFromContext(ctx); got != "" {
		t.Fatalf("blank id stored as %q", got)
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for blank event name")
	}
	if err := LogEvent(context.Background(), "auth.test", map[string]any{"k": "v"}); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
}

func TestSink(t *testing.T) {
	sink := Sink()
	if sink == nil {
		t.Fatal("nil sink")
	}
	// Must tolerate partial events without panicking.
	sink(context.Background(), auth.SecurityEvent{
		Type:      auth.EventTokenReuse,
		SubjectID: "u1",
		TokenID:   "tok",
		At:        time.Now(),
	})
	sink(context.Background(), auth.SecurityEvent{Type: auth.EventLogout})
}
