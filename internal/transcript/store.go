// Package transcript persists the running transcript of processed messages
// and the resumption checkpoint.
package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record is the normalized projection of a message appended to the
// transcript. Records are created once and never mutated.
type Record struct {
	ID        int       `json:"id"`
	Text      string    `json:"text"`
	Date      time.Time `json:"date"`
	Out       bool      `json:"out"`
	SenderID  int64     `json:"sender_id"`
	HasMedia  bool      `json:"has_media"`
	MediaKind string    `json:"media_kind,omitempty"`
	MediaPath string    `json:"media_path,omitempty"`
	MediaName string    `json:"media_name,omitempty"`
}

// Store is an append-only JSON array file of transcript records.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a transcript store at path. The file is created on the
// first append.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Append adds records to the transcript preserving their order.
func (s *Store) Append(records []Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load()
	if err != nil {
		return err
	}
	existing = append(existing, records...)

	return writeJSON(s.path, existing)
}

// Load returns all records currently in the transcript.
func (s *Store) Load() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse transcript: %w", err)
	}
	return records, nil
}

// Checkpoint identifies the last message whose page has been fully
// processed for a channel.
type Checkpoint struct {
	ChannelID int64 `json:"channel_id"`
	OffsetID  int   `json:"offset_id"`
}

// CheckpointStore persists the resumption checkpoint as a small JSON file.
type CheckpointStore struct {
	path string
	mu   sync.Mutex
}

// NewCheckpointStore creates a checkpoint store at path.
func NewCheckpointStore(path string) *CheckpointStore {
	return &CheckpointStore{path: path}
}

// Load returns the persisted checkpoint, or a zero checkpoint if none
// has been saved yet.
func (s *CheckpointStore) Load() (Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Checkpoint{}, nil
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, fmt.Errorf("parse checkpoint: %w", err)
	}
	return cp, nil
}

// Save overwrites the checkpoint.
func (s *CheckpointStore) Save(cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.path, cp)
}

// writeJSON writes v atomically: temp file in the same directory, then
// rename over the target.
func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
