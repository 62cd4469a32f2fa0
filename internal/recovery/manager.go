// Package recovery retries a failed phase with bounded exponential backoff,
// keeping a per-attempt audit trail for post-mortem analysis. It operates at
// phase granularity; operation-level retry lives in the retry package.
package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/quantpilot/engine/internal/domain"
	"github.com/quantpilot/engine/internal/retry"
)

// EventSink is the narrow slice of the event log the manager needs.
type EventSink interface {
	Append(event domain.Event) error
}

// RetryFunc re-runs the failed phase. Each call is a fresh phase execution,
// not a resurrection of the old one.
type RetryFunc func(ctx context.Context) (domain.PhaseResult, error)

// Manager performs phase-level recovery for one session.
type Manager struct {
	Sink      EventSink
	SessionID string
}

// NewManager creates a Manager writing attempt events to sink.
func NewManager(sink EventSink, sessionID string) *Manager {
	return &Manager{Sink: sink, SessionID: sessionID}
}

// Attempt retries phaseName up to maxAttempts times. Before attempt k it
// sleeps min(baseDelay*2^(k-1), maxDelay); the sleep before attempt 1 is
// skipped. Every attempt is logged via the sink as it happens, so an
// operator tailing the log sees recovery progress live.
func (m *Manager) Attempt(ctx context.Context, phaseName string, retryFn RetryFunc, maxAttempts int, baseDelay, maxDelay time.Duration) domain.RecoveryResult {
	if maxAttempts < 1 {
		return domain.RecoveryResult{
			Attempted: false,
			Message:   domain.ErrNoAttempts.Message,
		}
	}

	result := domain.RecoveryResult{Attempted: true}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		delay := retry.Backoff(attempt, baseDelay, maxDelay)
		if delay > 0 {
			if err := sleep(ctx, delay); err != nil {
				result.Message = fmt.Sprintf("recovery interrupted: %v", err)
				return result
			}
		}

		res, err := retryFn(ctx)
		rec := domain.RecoveryAttempt{
			AttemptNumber: attempt,
			Delay:         delay,
		}
		if err != nil {
			rec.Status = "error"
			rec.Err = err.Error()
		} else {
			rec.Status = "success"
			rec.Result = &res
		}
		result.Attempts = append(result.Attempts, rec)
		m.emitAttempt(phaseName, rec, maxAttempts)

		if err == nil {
			result.Success = true
			result.Result = &res
			result.Message = fmt.Sprintf("phase %s recovered on attempt %d", phaseName, attempt)
			return result
		}
		result.Message = err.Error()
	}

	result.Message = fmt.Sprintf("%s: %s", domain.ErrRecoveryExhausted.Message, result.Message)
	return result
}

func (m *Manager) emitAttempt(phaseName string, rec domain.RecoveryAttempt, maxAttempts int) {
	details := map[string]any{
		"attempt":      rec.AttemptNumber,
		"max_attempts": maxAttempts,
		"delay_ms":     rec.Delay.Milliseconds(),
		"status":       rec.Status,
	}
	level := domain.LevelInfo
	if rec.Err != "" {
		details["error"] = rec.Err
		level = domain.LevelWarning
	}
	event := domain.Event{
		Timestamp: time.Now().UTC(),
		SessionID: m.SessionID,
		Type:      domain.EventAutocorrect,
		Phase:     phaseName,
		Level:     level,
		Message:   fmt.Sprintf("Recovery attempt %d/%d for %s", rec.AttemptNumber, maxAttempts, phaseName),
		Details:   details,
	}
	// Recovery bookkeeping must not fail because the log did.
	_ = m.Sink.Append(event)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
