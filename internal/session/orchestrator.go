package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/quantpilot/engine/internal/domain"
	"github.com/quantpilot/engine/internal/eventlog"
	"github.com/quantpilot/engine/internal/heartbeat"
	"github.com/quantpilot/engine/internal/recovery"
)

// HistoryRecorder persists the final session row for cross-run inspection.
// It is optional and always best effort.
type HistoryRecorder interface {
	SaveSession(ctx context.Context, rec domain.SessionRecord) error
}

// SummaryStore is the full summary contract the orchestrator finalizes.
type SummaryStore interface {
	Write(s domain.Summary) error
	Read() (domain.Summary, error)
}

// Config tunes one orchestration run.
type Config struct {
	InitialCapital      float64
	HeartbeatInterval   time.Duration
	RecoveryMaxAttempts int
	RecoveryBaseDelay   time.Duration
	RecoveryMaxDelay    time.Duration
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 5 * time.Second
	}
	if c.RecoveryMaxAttempts <= 0 {
		c.RecoveryMaxAttempts = 3
	}
	if c.RecoveryBaseDelay <= 0 {
		c.RecoveryBaseDelay = 1 * time.Second
	}
	if c.RecoveryMaxDelay <= 0 {
		c.RecoveryMaxDelay = 30 * time.Second
	}
	return c
}

// Orchestrator is the top-level driver for one trading session. It runs the
// pipeline phases in the caller-supplied order, supervises them through the
// heartbeat emitter, hands failed phases to the recovery manager, and always
// finalizes the summary on the way out.
type Orchestrator struct {
	Sink      eventlog.Sink
	Summaries SummaryStore
	History   HistoryRecorder
	Config    Config
}

// New creates an Orchestrator. history may be nil.
func New(sink eventlog.Sink, summaries SummaryStore, history HistoryRecorder, cfg Config) *Orchestrator {
	return &Orchestrator{
		Sink:      sink,
		Summaries: summaries,
		History:   history,
		Config:    cfg.withDefaults(),
	}
}

// Run executes the pipeline and returns the final summary. On every exit
// path, including a panic escaping a phase, the heartbeat emitter is stopped
// and the summary store is written exactly once before Run returns.
func (o *Orchestrator) Run(ctx context.Context, phases []domain.PhaseSpec) (sum domain.Summary) {
	id := uuid.NewString()
	state := NewState(id, o.Config.InitialCapital, time.Now())

	eventlog.Emit(o.Sink, domain.Event{
		Timestamp: time.Now().UTC(),
		SessionID: id,
		Type:      domain.EventSessionStart,
		Level:     domain.LevelInfo,
		Message:   fmt.Sprintf("Session started with %d phases", len(phases)),
		Details:   map[string]any{"initial_capital": o.Config.InitialCapital},
	})

	hb := heartbeat.New(o.Sink, id)
	hb.Start(o.Config.HeartbeatInterval, state.Snapshot)

	defer func() {
		if r := recover(); r != nil {
			state.SetStatus(domain.SessionError)
			eventlog.Emit(o.Sink, domain.Event{
				Timestamp: time.Now().UTC(),
				SessionID: id,
				Type:      domain.EventWorkflowAborted,
				Level:     domain.LevelCritical,
				Message:   "Session aborted by panic",
				Details:   map[string]any{"panic": fmt.Sprint(r)},
			})
		}
		hb.Stop()
		sum = o.finalize(state)
	}()

	scheduler := NewScheduler(o.Sink, state, o.Summaries)
	rec := recovery.NewManager(o.Sink, id)

	var failures []string
	for _, spec := range phases {
		_, _, err := scheduler.RunPhase(ctx, spec)
		if err == nil {
			continue
		}
		failures = append(failures, fmt.Sprintf("%s: %v", spec.Name, err))

		res := rec.Attempt(ctx, spec.Name, func(ctx context.Context) (domain.PhaseResult, error) {
			_, pr, rerr := scheduler.RunPhase(ctx, spec)
			return pr, rerr
		}, o.Config.RecoveryMaxAttempts, o.Config.RecoveryBaseDelay, o.Config.RecoveryMaxDelay)

		if res.Success {
			continue
		}
		for _, a := range res.Attempts {
			if a.Err != "" {
				failures = append(failures, fmt.Sprintf("%s (recovery %d): %s", spec.Name, a.AttemptNumber, a.Err))
			}
		}

		state.SetStatus(domain.SessionFailed)
		eventlog.Emit(o.Sink, domain.Event{
			Timestamp: time.Now().UTC(),
			SessionID: id,
			Type:      domain.EventWorkflowAborted,
			Phase:     spec.Name,
			Level:     domain.LevelCritical,
			Message:   fmt.Sprintf("Workflow aborted: phase %s failed after recovery", spec.Name),
			Details:   map[string]any{"reasons": failures},
		})
		break
	}

	if state.Status() == domain.SessionRunning {
		state.SetStatus(domain.SessionSuccess)
	}
	return
}

// finalize writes the terminal summary, mirrors the session row into the
// history store, and brackets the log with a session_end event. It runs on
// every exit path of Run.
func (o *Orchestrator) finalize(state *State) domain.Summary {
	now := time.Now()
	final := state.Summary(now)

	if o.Summaries != nil {
		if err := o.Summaries.Write(final); err != nil {
			// A lost summary must not turn a finished session into a crash.
			log.Printf("session: final summary write failed: %v", err)
		}
	}
	if o.History != nil {
		if err := o.History.SaveSession(context.Background(), state.Record(now)); err != nil {
			log.Printf("session: history save failed: %v", err)
		}
	}

	level := domain.LevelInfo
	if final.Status != domain.SessionSuccess {
		level = domain.LevelError
	}
	eventlog.Emit(o.Sink, domain.Event{
		Timestamp: now.UTC(),
		SessionID: state.ID(),
		Type:      domain.EventSessionEnd,
		Level:     level,
		Message:   fmt.Sprintf("Session finished with status %s", final.Status),
		Details: map[string]any{
			"status":           string(final.Status),
			"phases_completed": final.PhasesCompleted,
			"runtime_seconds":  final.RuntimeSeconds,
		},
	})
	return final
}
