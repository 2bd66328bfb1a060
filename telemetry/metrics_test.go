package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestInitIdempotent(t *testing.T) {
	Init()
	Init() // must not re-register and panic

	if EventsHandled == nil || CommandsDispatched == nil || MessagesLogged == nil {
		t.Fatal("counters not registered")
	}

	// Helpers must not panic once registered.
	CountEvent("room_message")
	CountCommand("backlog")
	CountMessageLogged()
	AddBacklogLines(3)
	ObserveDispatch(5 * time.Millisecond)
	SetKnownUsers(2)
}

func TestTimeFunc(t *testing.T) {
	Init()
	d := TimeFunc(DispatchDuration, func() { time.Sleep(5 * time.Millisecond) })
	if d < 5*time.Millisecond {
		t.Errorf("TimeFunc duration = %v, want >= 5ms", d)
	}
	if d := TimeFunc(nil, func() {}); d < 0 {
		t.Errorf("TimeFunc with nil observer = %v", d)
	}
}

func TestCorrelationRoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := GetCorrelation(ctx); got != "" {
		t.Errorf("GetCorrelation(empty ctx) = %q", got)
	}
	ctx = WithCorrelation(ctx, "abc-123")
	if got := GetCorrelation(ctx); got != "abc-123" {
		t.Errorf("GetCorrelation = %q, want abc-123", got)
	}
	if LoggerWithCorr(ctx) == nil {
		t.Error("LoggerWithCorr returned nil")
	}
}
