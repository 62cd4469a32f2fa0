// Package heartbeat emits periodic diagnostic events while a session runs.
package heartbeat

import (
	"sync"
	"time"

	"github.com/quantpilot/engine/internal/domain"
)

// EventSink is the narrow slice of the event log the emitter needs.
type EventSink interface {
	Append(event domain.Event) error
}

// SnapshotFunc returns the currently active phase and a cheap, consistent
// snapshot of the session metrics. It must not block or mutate state.
type SnapshotFunc func() (phase string, m domain.Metrics)

// Emitter runs a single background goroutine that appends a heartbeat event
// on every tick. Heartbeats are diagnostic only: a failed write never affects
// phase execution or session status.
type Emitter struct {
	sink      EventSink
	sessionID string

	mu       sync.Mutex
	started  bool
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates an Emitter for the given session.
func New(sink EventSink, sessionID string) *Emitter {
	return &Emitter{
		sink:      sink,
		sessionID: sessionID,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the heartbeat loop. Calling Start twice is a no-op.
func (e *Emitter) Start(interval time.Duration, snap SnapshotFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started || interval <= 0 {
		return
	}
	e.started = true

	go func() {
		defer close(e.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-e.stopCh:
				return
			case <-ticker.C:
				e.beat(snap)
			}
		}
	}()
}

// Stop signals the loop to exit and blocks until it has exited. It is
// idempotent and safe to call even if Start was never called.
func (e *Emitter) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })

	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if started {
		<-e.done
	}
}

func (e *Emitter) beat(snap SnapshotFunc) {
	phase, m := snap()
	event := domain.Event{
		Timestamp: time.Now().UTC(),
		SessionID: e.sessionID,
		Type:      domain.EventHeartbeat,
		Phase:     phase,
		Level:     domain.LevelDebug,
		Message:   "Heartbeat",
		Metrics:   &m,
	}
	// Diagnostic only; a missed heartbeat write is swallowed.
	_ = e.sink.Append(event)
}
