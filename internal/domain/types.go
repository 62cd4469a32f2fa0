// Package domain defines the core types for the session orchestration engine.
package domain

import (
	"context"
	"time"
)

// SessionStatus represents the overall status of an orchestration run.
type SessionStatus string

const (
	SessionRunning SessionStatus = "running"
	SessionSuccess SessionStatus = "success"
	SessionFailed  SessionStatus = "failed"
	SessionError   SessionStatus = "error"
)

// PhaseStatus represents the lifecycle state of a single phase.
type PhaseStatus string

const (
	PhasePending PhaseStatus = "pending"
	PhaseRunning PhaseStatus = "running"
	PhaseSuccess PhaseStatus = "success"
	PhaseFailed  PhaseStatus = "failed"
)

// Event types written to the event log.
const (
	EventSessionStart    = "session_start"
	EventSessionEnd      = "session_end"
	EventPhaseStart      = "phase_start"
	EventPhaseEnd        = "phase_end"
	EventHeartbeat       = "heartbeat"
	EventAutocorrect     = "autocorrect_attempt"
	EventWorkflowAborted = "workflow_aborted"
)

// Event severity levels.
const (
	LevelDebug    = "debug"
	LevelInfo     = "info"
	LevelWarning  = "warning"
	LevelError    = "error"
	LevelCritical = "critical"
)

// Metrics is a snapshot of the live trading state, read by heartbeats and
// attached to events. Reading it must never block phase execution.
type Metrics struct {
	Equity float64 `json:"equity"`
	PnL    float64 `json:"pnl"`
	Trades int     `json:"trades"`
	Wins   int     `json:"wins"`
	Losses int     `json:"losses"`
}

// Event is one immutable record in the append-only event log.
// Events are write-once and strictly ordered by the writer.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"sessionId"`
	Type      string         `json:"type"`
	Phase     string         `json:"phase,omitempty"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Metrics   *Metrics       `json:"metrics,omitempty"`
}

// PhaseResult is the opaque outcome of a phase's work function. The engine
// never inspects Payload; it only cares whether work returned an error.
type PhaseResult struct {
	Payload any
}

// SessionHandle is the narrow view of the live session state handed to
// phase work functions. Updates feed the heartbeat metrics and the summary.
type SessionHandle interface {
	ID() string
	SetEquity(v float64)
	RecordTrade(pnl float64)
}

// WorkFunc is the unit of orchestrated work supplied by the surrounding
// application. It must observe ctx cancellation cooperatively.
type WorkFunc func(ctx context.Context, sess SessionHandle) (PhaseResult, error)

// PhaseSpec describes one phase of the pipeline: a stable name, a wall-clock
// budget, and the work to run under it.
type PhaseSpec struct {
	Name    string
	Timeout time.Duration
	Work    WorkFunc
}

// Phase tracks one scheduled execution of a PhaseSpec.
type Phase struct {
	Name      string
	Status    PhaseStatus
	StartedAt time.Time
	EndedAt   time.Time
}

// RecoveryAttempt records one try inside a RecoveryManager invocation.
type RecoveryAttempt struct {
	AttemptNumber int
	Delay         time.Duration
	Status        string // "success" or "error"
	Err           string
	Result        *PhaseResult
}

// RecoveryResult is the full audit trail of a recovery invocation.
type RecoveryResult struct {
	Attempted bool
	Success   bool
	Message   string
	Attempts  []RecoveryAttempt
	Result    *PhaseResult
}

// Totals aggregates trade counters for the summary record.
type Totals struct {
	Trades int `json:"trades"`
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
}

// Summary is the single current-state record for a session. It is
// overwritten on every phase transition and finalized once at shutdown.
type Summary struct {
	SessionID       string        `json:"session_id"`
	Status          SessionStatus `json:"status"`
	RuntimeSeconds  float64       `json:"runtime_seconds"`
	PhasesCompleted int           `json:"phases_completed"`
	InitialCapital  float64       `json:"initial_capital"`
	CurrentEquity   float64       `json:"current_equity"`
	ROI             float64       `json:"roi"`
	Totals          Totals        `json:"totals"`
}

// SessionRecord is the persisted view of one orchestration run, kept in the
// history store for cross-run inspection.
type SessionRecord struct {
	SessionID       string
	Status          SessionStatus
	StartedAtUnix   int64
	EndedAtUnix     int64
	PhasesCompleted int
	InitialCapital  float64
	CurrentEquity   float64
	Trades          int
	Wins            int
	Losses          int
}
