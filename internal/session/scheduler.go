package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/quantpilot/engine/internal/domain"
	"github.com/quantpilot/engine/internal/eventlog"
)

// SummaryWriter is the slice of the summary store the scheduler needs.
type SummaryWriter interface {
	Write(s domain.Summary) error
}

// Scheduler runs a single phase under its deadline and keeps the session
// state and summary current. Phase transitions follow
// pending -> running -> {success, failed}; a terminal phase is never
// re-entered, a recovery re-run is a fresh RunPhase call.
type Scheduler struct {
	Sink      eventlog.Sink
	State     *State
	Summaries SummaryWriter
}

// NewScheduler wires a scheduler to the session's sink, state, and summary store.
func NewScheduler(sink eventlog.Sink, state *State, summaries SummaryWriter) *Scheduler {
	return &Scheduler{Sink: sink, State: state, Summaries: summaries}
}

type workOutcome struct {
	result domain.PhaseResult
	err    error
}

// RunPhase executes one phase. The work function runs under a deadline
// derived from spec.Timeout; if the deadline elapses first the phase fails
// with ErrPhaseTimeout. Cancellation is cooperative: the work goroutine is
// signalled, not killed, and its late result is discarded.
func (s *Scheduler) RunPhase(ctx context.Context, spec domain.PhaseSpec) (domain.Phase, domain.PhaseResult, error) {
	phase := domain.Phase{
		Name:      spec.Name,
		Status:    domain.PhaseRunning,
		StartedAt: time.Now(),
	}

	s.State.SetActivePhase(spec.Name)

	eventlog.Emit(s.Sink, domain.Event{
		Timestamp: time.Now().UTC(),
		SessionID: s.State.ID(),
		Type:      domain.EventPhaseStart,
		Phase:     spec.Name,
		Level:     domain.LevelInfo,
		Message:   fmt.Sprintf("Phase %s started", spec.Name),
		Details:   map[string]any{"timeout_ms": spec.Timeout.Milliseconds()},
	})

	result, err := s.runWork(ctx, spec)

	// Clear before emitting phase_end so no later heartbeat carries this
	// phase's tag after its terminal event.
	s.State.ClearActivePhase()

	phase.EndedAt = time.Now()
	duration := phase.EndedAt.Sub(phase.StartedAt)

	if err != nil {
		phase.Status = domain.PhaseFailed
		eventlog.Emit(s.Sink, domain.Event{
			Timestamp: time.Now().UTC(),
			SessionID: s.State.ID(),
			Type:      domain.EventPhaseEnd,
			Phase:     spec.Name,
			Level:     domain.LevelError,
			Message:   fmt.Sprintf("Phase %s failed", spec.Name),
			Details: map[string]any{
				"status":      string(domain.PhaseFailed),
				"duration_ms": duration.Milliseconds(),
				"error":       err.Error(),
			},
		})
		return phase, domain.PhaseResult{}, err
	}

	phase.Status = domain.PhaseSuccess
	s.State.CompletePhase(spec.Name)
	s.refreshSummary()

	eventlog.Emit(s.Sink, domain.Event{
		Timestamp: time.Now().UTC(),
		SessionID: s.State.ID(),
		Type:      domain.EventPhaseEnd,
		Phase:     spec.Name,
		Level:     domain.LevelInfo,
		Message:   fmt.Sprintf("Phase %s completed", spec.Name),
		Details: map[string]any{
			"status":      string(domain.PhaseSuccess),
			"duration_ms": duration.Milliseconds(),
		},
	})
	return phase, result, nil
}

// runWork invokes the work function in its own goroutine so the deadline is
// enforced even when the work does not poll the context. Panics inside work
// are converted to errors instead of taking down the session.
func (s *Scheduler) runWork(ctx context.Context, spec domain.PhaseSpec) (domain.PhaseResult, error) {
	workCtx := ctx
	cancel := context.CancelFunc(func() {})
	if spec.Timeout > 0 {
		workCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
	}
	defer cancel()

	outcome := make(chan workOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				outcome <- workOutcome{err: fmt.Errorf("%w: %v", domain.ErrPhasePanic, r)}
			}
		}()
		res, err := spec.Work(workCtx, s.State)
		outcome <- workOutcome{result: res, err: err}
	}()

	select {
	case out := <-outcome:
		return out.result, out.err
	case <-workCtx.Done():
		if workCtx.Err() == context.DeadlineExceeded {
			return domain.PhaseResult{}, fmt.Errorf("%w: %s after %s", domain.ErrPhaseTimeout, spec.Name, spec.Timeout)
		}
		return domain.PhaseResult{}, workCtx.Err()
	}
}

func (s *Scheduler) refreshSummary() {
	if s.Summaries == nil {
		return
	}
	if err := s.Summaries.Write(s.State.Summary(time.Now())); err != nil {
		// Summary refreshes are best effort mid-run; the finalize pass retries.
		log.Printf("session: summary refresh failed: %v", err)
	}
}
