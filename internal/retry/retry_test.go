package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/quantpilot/engine/internal/domain"
)

// memSink collects appended events for assertions.
type memSink struct {
	events []domain.Event
}

func (s *memSink) Append(e domain.Event) error {
	s.events = append(s.events, e)
	return nil
}

func fastOpts(name string, maxRetries int) Options {
	return Options{
		MaxRetries:    maxRetries,
		BaseDelay:     1 * time.Millisecond,
		MaxDelay:      8 * time.Millisecond,
		OperationName: name,
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	sink := &memSink{}
	ex := &Executor{Sink: sink, SessionID: "s-1"}

	calls := 0
	got, err := Do(context.Background(), ex, fastOpts("load", 3), func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != 42 {
		t.Errorf("result = %d, want 42", got)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if len(sink.events) != 0 {
		t.Errorf("expected no events on first-attempt success, got %d", len(sink.events))
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	sink := &memSink{}
	ex := &Executor{Sink: sink, SessionID: "s-1"}

	calls := 0
	_, err := Do(context.Background(), ex, fastOpts("load", 4), func(ctx context.Context) (string, error) {
		calls++
		return "", fmt.Errorf("boom %d", calls)
	})
	if err == nil {
		t.Fatal("expected error after exhaustion, got nil")
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
	// The returned error is the error from the final attempt.
	if err.Error() != "boom 4" {
		t.Errorf("err = %q, want %q", err.Error(), "boom 4")
	}
	// One autocorrect event per retry (attempts 2..4).
	if len(sink.events) != 3 {
		t.Fatalf("events = %d, want 3", len(sink.events))
	}
	for i, e := range sink.events {
		if e.Type != domain.EventAutocorrect {
			t.Errorf("event %d type = %q, want %q", i, e.Type, domain.EventAutocorrect)
		}
		if e.Details["attempt"] != i+2 {
			t.Errorf("event %d attempt = %v, want %d", i, e.Details["attempt"], i+2)
		}
	}
}

func TestDo_RecoversAfterFailures(t *testing.T) {
	ex := &Executor{Sink: &memSink{}, SessionID: "s-1"}

	calls := 0
	got, err := Do(context.Background(), ex, fastOpts("call_exchange", 3), func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 7, nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != 7 {
		t.Errorf("result = %d, want 7", got)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_NilExecutor(t *testing.T) {
	got, err := Do[int](context.Background(), nil, fastOpts("op", 2), func(ctx context.Context) (int, error) {
		return 1, nil
	})
	if err != nil || got != 1 {
		t.Fatalf("Do with nil executor = (%d, %v), want (1, nil)", got, err)
	}
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := Do(ctx, nil, Options{MaxRetries: 5, BaseDelay: time.Second, MaxDelay: time.Minute}, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestBackoff(t *testing.T) {
	base := 1 * time.Second
	max := 30 * time.Second

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 0},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second}, // capped
		{10, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			got := Backoff(tt.attempt, base, max)
			if got != tt.want {
				t.Errorf("Backoff(%d) = %s, want %s", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestDo_EventDetails(t *testing.T) {
	sink := &memSink{}
	ex := &Executor{Sink: sink, SessionID: "s-9", Phase: "data_phase"}

	_, _ = Do(context.Background(), ex, fastOpts("load_market_data", 2), func(ctx context.Context) (int, error) {
		return 0, errors.New("feed down")
	})

	if len(sink.events) != 1 {
		t.Fatalf("events = %d, want 1", len(sink.events))
	}
	e := sink.events[0]
	if e.SessionID != "s-9" {
		t.Errorf("sessionId = %q, want s-9", e.SessionID)
	}
	if e.Phase != "data_phase" {
		t.Errorf("phase = %q, want data_phase", e.Phase)
	}
	if e.Level != domain.LevelWarning {
		t.Errorf("level = %q, want warning", e.Level)
	}
	if e.Details["operation"] != "load_market_data" {
		t.Errorf("operation = %v", e.Details["operation"])
	}
	if e.Details["error"] != "feed down" {
		t.Errorf("error detail = %v", e.Details["error"])
	}
}
