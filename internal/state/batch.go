// internal/state/batch.go
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Batch describes one downloaded archive.
type Batch struct {
	Filename   string `json:"filename"`
	StartIndex int    `json:"startIndex"`
	ChatCount  int    `json:"chatCount"`
	ImageCount int    `json:"imageCount"`
	CreatedAt  string `json:"createdAt"`
}

// BatchStore is a JSON-file-backed store for the batch manifest list.
type BatchStore struct {
	path string
	mu   sync.RWMutex
}

// NewBatchStore creates a file-backed BatchStore at the given file path.
func NewBatchStore(path string) *BatchStore {
	return &BatchStore{path: path}
}

// List returns all recorded batches. Returns an empty slice if the file
// doesn't exist.
func (s *BatchStore) List() ([]*Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batches, err := s.load()
	if err != nil {
		return nil, err
	}
	if batches == nil {
		return []*Batch{}, nil
	}
	return batches, nil
}

// Get finds a batch by filename. Returns an error if not found.
func (s *BatchStore) Get(filename string) (*Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batches, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, b := range batches {
		if b.Filename == filename {
			return b, nil
		}
	}
	return nil, fmt.Errorf("batch not found: %s", filename)
}

// Add records a batch. A batch with the same filename is replaced; a
// re-download of the same range overwrites its manifest row.
func (s *BatchStore) Add(batch *Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batches, err := s.load()
	if err != nil {
		return err
	}

	for i, existing := range batches {
		if existing.Filename == batch.Filename {
			batches[i] = batch
			return writeJSON(s.path, batches)
		}
	}
	batches = append(batches, batch)
	return writeJSON(s.path, batches)
}

// Remove deletes a batch row by filename. Returns an error if not found.
func (s *BatchStore) Remove(filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batches, err := s.load()
	if err != nil {
		return err
	}
	for i, b := range batches {
		if b.Filename == filename {
			batches = append(batches[:i], batches[i+1:]...)
			return writeJSON(s.path, batches)
		}
	}
	return fmt.Errorf("batch not found: %s", filename)
}

// load reads the JSON file and returns the batch list. Returns nil if the
// file doesn't exist.
func (s *BatchStore) load() ([]*Batch, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read batches file: %w", err)
	}

	var batches []*Batch
	if err := json.Unmarshal(data, &batches); err != nil {
		return nil, fmt.Errorf("unmarshal batches: %w", err)
	}
	return batches, nil
}
