// internal/state/run.go

// Package state persists export progress and batch manifests as JSON files
// under the data directory, so an interrupted export can resume and past
// batches can be listed and re-downloaded.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RunState captures where a multi-batch export stands.
type RunState struct {
	LastStartIndex    int    `json:"lastStartIndex"`
	TotalScrapedCount int    `json:"totalScrapedCount"`
	TotalChatsCount   int    `json:"totalChatsCount"`
	SavedAt           string `json:"savedAt"`
}

// RunStore is a JSON-file-backed store for the export run state.
type RunStore struct {
	path string
	mu   sync.RWMutex
}

// NewRunStore creates a file-backed RunStore at the given file path.
func NewRunStore(path string) *RunStore {
	return &RunStore{path: path}
}

// Path returns the file path used by this store.
func (s *RunStore) Path() string {
	return s.path
}

// Load reads the saved run state. Returns nil if no state has been saved.
func (s *RunStore) Load() (*RunState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read run state: %w", err)
	}

	var st RunState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("unmarshal run state: %w", err)
	}
	return &st, nil
}

// Save persists the run state, stamping SavedAt.
func (s *RunStore) Save(st *RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st.SavedAt = time.Now().UTC().Format(time.RFC3339)
	return writeJSON(s.path, st)
}

// Clear removes the saved run state. Clearing absent state is not an error.
func (s *RunStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove run state: %w", err)
	}
	return nil
}

// writeJSON writes v to path using atomic write (temp file + rename).
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp state file: %w", err)
	}
	return nil
}
