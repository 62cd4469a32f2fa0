// Package summary persists the single current-run summary record.
package summary

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/quantpilot/engine/internal/domain"
)

// Store holds the latest summary for the active session. Writes overwrite;
// the latest state wins.
type Store interface {
	Write(s domain.Summary) error
	Read() (domain.Summary, error)
}

// FileStore writes the summary as a single JSON object. Each write goes to a
// temp file in the same directory and is renamed into place, so a concurrent
// reader never observes a half-written record.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore targeting the given path. The parent
// directory must exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Write atomically replaces the current summary.
func (s *FileStore) Write(sum domain.Summary) error {
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".summary-*.json")
	if err != nil {
		return fmt.Errorf("create temp summary: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp summary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp summary: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace summary: %w", err)
	}
	return nil
}

// Read returns the current summary. Returns ErrSummaryMissing if no summary
// has been written yet.
func (s *FileStore) Read() (domain.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Summary{}, domain.ErrSummaryMissing
		}
		return domain.Summary{}, fmt.Errorf("read summary: %w", err)
	}
	var sum domain.Summary
	if err := json.Unmarshal(data, &sum); err != nil {
		return domain.Summary{}, fmt.Errorf("decode summary: %w", err)
	}
	return sum, nil
}
