package recovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quantpilot/engine/internal/domain"
)

type memSink struct {
	events []domain.Event
}

func (s *memSink) Append(e domain.Event) error {
	s.events = append(s.events, e)
	return nil
}

const (
	testBase = 1 * time.Millisecond
	testMax  = 8 * time.Millisecond
)

func TestAttempt_SucceedsFirstTry(t *testing.T) {
	sink := &memSink{}
	m := NewManager(sink, "s-1")

	res := m.Attempt(context.Background(), "data_phase", func(ctx context.Context) (domain.PhaseResult, error) {
		return domain.PhaseResult{Payload: "ok"}, nil
	}, 3, testBase, testMax)

	if !res.Attempted || !res.Success {
		t.Fatalf("Attempted=%v Success=%v, want true/true", res.Attempted, res.Success)
	}
	if len(res.Attempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(res.Attempts))
	}
	if res.Attempts[0].Status != "success" {
		t.Errorf("attempt status = %q, want success", res.Attempts[0].Status)
	}
	if res.Attempts[0].Delay != 0 {
		t.Errorf("first attempt delay = %s, want 0", res.Attempts[0].Delay)
	}
	if res.Result == nil || res.Result.Payload != "ok" {
		t.Errorf("result = %+v, want payload ok", res.Result)
	}
	if len(sink.events) != 1 {
		t.Errorf("events = %d, want 1", len(sink.events))
	}
}

func TestAttempt_FailsTwiceThenSucceeds(t *testing.T) {
	sink := &memSink{}
	m := NewManager(sink, "s-1")

	calls := 0
	res := m.Attempt(context.Background(), "strategy_phase", func(ctx context.Context) (domain.PhaseResult, error) {
		calls++
		if calls < 3 {
			return domain.PhaseResult{}, errors.New("still broken")
		}
		return domain.PhaseResult{}, nil
	}, 3, testBase, testMax)

	if !res.Success {
		t.Fatalf("Success = false, want true (message: %s)", res.Message)
	}
	if len(res.Attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", len(res.Attempts))
	}
	for i, a := range res.Attempts[:2] {
		if a.Status != "error" || a.Err == "" {
			t.Errorf("attempt %d = %+v, want error status", i+1, a)
		}
	}
	if res.Attempts[2].Status != "success" {
		t.Errorf("final attempt status = %q, want success", res.Attempts[2].Status)
	}
	// Every attempt is logged live.
	if len(sink.events) != 3 {
		t.Errorf("events = %d, want 3", len(sink.events))
	}
}

func TestAttempt_Exhausted(t *testing.T) {
	sink := &memSink{}
	m := NewManager(sink, "s-1")

	res := m.Attempt(context.Background(), "api_phase", func(ctx context.Context) (domain.PhaseResult, error) {
		return domain.PhaseResult{}, errors.New("exchange unreachable")
	}, 3, testBase, testMax)

	if res.Success {
		t.Fatal("Success = true, want false")
	}
	if !res.Attempted {
		t.Fatal("Attempted = false, want true")
	}
	if len(res.Attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", len(res.Attempts))
	}
	if res.Message == "" {
		t.Error("expected a message carrying the last error")
	}
	for i, a := range res.Attempts {
		if a.AttemptNumber != i+1 {
			t.Errorf("attempt number = %d, want %d", a.AttemptNumber, i+1)
		}
	}
}

func TestAttempt_DelaysFollowBackoff(t *testing.T) {
	m := NewManager(&memSink{}, "s-1")

	res := m.Attempt(context.Background(), "p", func(ctx context.Context) (domain.PhaseResult, error) {
		return domain.PhaseResult{}, errors.New("no")
	}, 4, testBase, testMax)

	want := []time.Duration{0, 2 * testBase, 4 * testBase, 8 * testBase}
	if len(res.Attempts) != len(want) {
		t.Fatalf("attempts = %d, want %d", len(res.Attempts), len(want))
	}
	for i, a := range res.Attempts {
		if a.Delay != want[i] {
			t.Errorf("attempt %d delay = %s, want %s", i+1, a.Delay, want[i])
		}
	}
}

func TestAttempt_NoAttempts(t *testing.T) {
	m := NewManager(&memSink{}, "s-1")

	res := m.Attempt(context.Background(), "p", func(ctx context.Context) (domain.PhaseResult, error) {
		t.Fatal("retryFn should not be called")
		return domain.PhaseResult{}, nil
	}, 0, testBase, testMax)

	if res.Attempted {
		t.Error("Attempted = true, want false")
	}
}

func TestAttempt_ContextCancelled(t *testing.T) {
	m := NewManager(&memSink{}, "s-1")
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	res := m.Attempt(ctx, "p", func(ctx context.Context) (domain.PhaseResult, error) {
		calls++
		cancel()
		return domain.PhaseResult{}, errors.New("fail")
	}, 5, 10*time.Millisecond, 100*time.Millisecond)

	if res.Success {
		t.Fatal("Success = true, want false")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (cancel should stop further attempts)", calls)
	}
}
