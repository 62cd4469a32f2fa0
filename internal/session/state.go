// Package session drives one orchestration run: shared session state, the
// phase scheduler, and the top-level orchestrator.
package session

import (
	"sync"
	"time"

	"github.com/quantpilot/engine/internal/domain"
)

// State is the mutable session record shared between the orchestrator
// goroutine (writer) and the heartbeat goroutine (reader). All access goes
// through the mutex so the heartbeat never observes a torn update.
type State struct {
	mu sync.Mutex

	id             string
	startedAt      time.Time
	status         domain.SessionStatus
	initialCapital float64
	currentEquity  float64
	trades         int
	wins           int
	losses         int
	phasesDone     []string
	activePhase    string
}

// NewState creates the state for a fresh session.
func NewState(id string, initialCapital float64, startedAt time.Time) *State {
	return &State{
		id:             id,
		startedAt:      startedAt,
		status:         domain.SessionRunning,
		initialCapital: initialCapital,
		currentEquity:  initialCapital,
	}
}

// ID returns the session identifier.
func (s *State) ID() string { return s.id }

// SetStatus updates the session status.
func (s *State) SetStatus(st domain.SessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}

// Status returns the current session status.
func (s *State) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SetActivePhase records the phase currently executing, for heartbeat tagging.
func (s *State) SetActivePhase(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activePhase = name
}

// ClearActivePhase marks that no phase is executing.
func (s *State) ClearActivePhase() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activePhase = ""
}

// SetEquity replaces the current equity value.
func (s *State) SetEquity(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentEquity = v
}

// RecordTrade applies one trade outcome to the counters and equity.
func (s *State) RecordTrade(pnl float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades++
	if pnl >= 0 {
		s.wins++
	} else {
		s.losses++
	}
	s.currentEquity += pnl
}

// CompletePhase appends a phase name to the completed list.
func (s *State) CompletePhase(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phasesDone = append(s.phasesDone, name)
}

// PhasesCompleted returns a copy of the completed phase names in order.
func (s *State) PhasesCompleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.phasesDone))
	copy(out, s.phasesDone)
	return out
}

// Snapshot returns the active phase and a consistent metrics snapshot.
// It is the heartbeat's SnapshotFunc.
func (s *State) Snapshot() (string, domain.Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePhase, domain.Metrics{
		Equity: s.currentEquity,
		PnL:    s.currentEquity - s.initialCapital,
		Trades: s.trades,
		Wins:   s.wins,
		Losses: s.losses,
	}
}

// Summary builds the current summary record as of now.
func (s *State) Summary(now time.Time) domain.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	roi := 0.0
	if s.initialCapital > 0 {
		roi = (s.currentEquity - s.initialCapital) / s.initialCapital * 100
	}
	return domain.Summary{
		SessionID:       s.id,
		Status:          s.status,
		RuntimeSeconds:  now.Sub(s.startedAt).Seconds(),
		PhasesCompleted: len(s.phasesDone),
		InitialCapital:  s.initialCapital,
		CurrentEquity:   s.currentEquity,
		ROI:             roi,
		Totals: domain.Totals{
			Trades: s.trades,
			Wins:   s.wins,
			Losses: s.losses,
		},
	}
}

// Record builds the history-store row for this session as of now.
func (s *State) Record(now time.Time) domain.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SessionRecord{
		SessionID:       s.id,
		Status:          s.status,
		StartedAtUnix:   s.startedAt.Unix(),
		EndedAtUnix:     now.Unix(),
		PhasesCompleted: len(s.phasesDone),
		InitialCapital:  s.initialCapital,
		CurrentEquity:   s.currentEquity,
		Trades:          s.trades,
		Wins:            s.wins,
		Losses:          s.losses,
	}
}
