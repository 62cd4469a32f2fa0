// Package retry provides bounded retry with capped exponential backoff for
// transient sub-operations inside phase work (data loads, exchange calls).
// It knows nothing about phases; phase-level recovery lives elsewhere.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/quantpilot/engine/internal/domain"
)

// EventSink is the narrow slice of the event log the executor needs.
type EventSink interface {
	Append(event domain.Event) error
}

// Options tunes a retryable operation.
type Options struct {
	// MaxRetries is the total number of attempts, not additional retries.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// OperationName labels emitted events and error messages.
	OperationName string
}

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 1 * time.Second
	DefaultMaxDelay   = 30 * time.Second
)

func (o Options) withDefaults() Options {
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.OperationName == "" {
		o.OperationName = "operation"
	}
	return o
}

// Executor carries the session context retried operations are tagged with.
// A nil Executor or nil Sink disables event emission but not retrying.
type Executor struct {
	Sink      EventSink
	SessionID string
	Phase     string
}

// Backoff returns the delay before the given 1-based attempt:
// zero before the first attempt, min(base*2^(k-1), max) before attempt k.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt <= 1 {
		return 0
	}
	d := base
	for i := 0; i < attempt-1; i++ {
		d *= 2
		if d >= max || d <= 0 {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// Do runs op until it succeeds or opts.MaxRetries attempts are exhausted.
// Before each retry it sleeps the backoff delay and emits one
// autocorrect_attempt event carrying the attempt number, delay, and the
// previous error. After exhaustion the error from the final attempt is
// returned unwrapped.
func Do[T any](ctx context.Context, ex *Executor, opts Options, op func(ctx context.Context) (T, error)) (T, error) {
	opts = opts.withDefaults()

	var zero T
	var lastErr error
	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 1 {
			delay := Backoff(attempt, opts.BaseDelay, opts.MaxDelay)
			ex.emitRetry(opts.OperationName, attempt, delay, lastErr)
			if err := sleep(ctx, delay); err != nil {
				return zero, err
			}
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return zero, lastErr
}

func (ex *Executor) emitRetry(name string, attempt int, delay time.Duration, cause error) {
	if ex == nil || ex.Sink == nil {
		return
	}
	event := domain.Event{
		Timestamp: time.Now().UTC(),
		SessionID: ex.SessionID,
		Type:      domain.EventAutocorrect,
		Phase:     ex.Phase,
		Level:     domain.LevelWarning,
		Message:   fmt.Sprintf("Retrying %s (attempt %d)", name, attempt),
		Details: map[string]any{
			"operation": name,
			"attempt":   attempt,
			"delay_ms":  delay.Milliseconds(),
			"error":     cause.Error(),
		},
	}
	// Best effort: event logging never aborts the operation.
	_ = ex.Sink.Append(event)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
