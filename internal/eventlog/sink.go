// Package eventlog provides the append-only event log for orchestration runs.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/quantpilot/engine/internal/domain"
)

// Sink is an append-only destination for session events. Append must be safe
// to call concurrently; implementations serialize writes so records never
// interleave. ReadAll is for tooling and inspection only.
type Sink interface {
	Append(event domain.Event) error
	ReadAll() ([]domain.Event, error)
}

// Emit appends an event and swallows any failure, complaining on the process
// log instead. Event logging must never abort a trading session.
func Emit(s Sink, event domain.Event) {
	if s == nil {
		return
	}
	if err := s.Append(event); err != nil {
		log.Printf("eventlog: dropped %s event: %v", event.Type, err)
	}
}

// FileSink writes one JSON object per line to a local file. A single mutex
// serializes appends from the orchestrator and heartbeat goroutines.
type FileSink struct {
	mu      sync.Mutex
	f       *os.File
	path    string
	closed  bool
	dropped int
	errw    io.Writer
}

// NewFileSink opens (or creates) the log file at path in append mode.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return &FileSink{f: f, path: path, errw: os.Stderr}, nil
}

// Append durably writes one event in the JSONL wire format.
func (s *FileSink) Append(event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrSinkClosed
	}
	if _, err := s.f.Write(append(data, '\n')); err != nil {
		s.dropped++
		fmt.Fprintf(s.errw, "eventlog: write failed (%d dropped so far): %v\n", s.dropped, err)
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ReadAll returns every event in write order. Readers must treat the log as
// append-only; the orchestrator itself never reads it back.
func (s *FileSink) ReadAll() ([]domain.Event, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()
	return decodeLines(f)
}

// Dropped reports how many appends have failed since the sink was opened.
func (s *FileSink) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close flushes and closes the underlying file. Further appends fail with
// ErrSinkClosed.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.f.Close()
}

// Tee fans appends out to a primary sink plus best-effort mirrors. The
// primary's error is the caller's error; mirror failures are logged and
// swallowed so a history-store outage cannot block the log.
type Tee struct {
	Primary Sink
	Mirrors []Sink
}

// NewTee builds a Tee over the given primary and mirrors.
func NewTee(primary Sink, mirrors ...Sink) *Tee {
	return &Tee{Primary: primary, Mirrors: mirrors}
}

// Append writes to the primary, then to each mirror.
func (t *Tee) Append(event domain.Event) error {
	err := t.Primary.Append(event)
	for _, m := range t.Mirrors {
		if merr := m.Append(event); merr != nil {
			log.Printf("eventlog: mirror append failed: %v", merr)
		}
	}
	return err
}

// ReadAll reads from the primary sink.
func (t *Tee) ReadAll() ([]domain.Event, error) {
	return t.Primary.ReadAll()
}

func decodeLines(r io.Reader) ([]domain.Event, error) {
	var events []domain.Event
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e domain.Event
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("decode event line: %w", err)
		}
		events = append(events, e)
	}
	return events, sc.Err()
}
