package storage

import "errors"

// ErrNoCheckpoint is returned by Load when no checkpoint has been saved.
var ErrNoCheckpoint = errors.New("storage: no checkpoint")

// CheckpointStore persists the fleet checkpoint blob. Save replaces the
// previous checkpoint atomically.
type CheckpointStore interface {
	Save(data []byte) error
	Load() ([]byte, error)
	Close() error
}

// MemoryStore is an in-process CheckpointStore for tests and ephemeral
// runs.
type MemoryStore struct {
	data []byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(data []byte) error {
	s.data = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStore) Load() ([]byte, error) {
	if s.data == nil {
		return nil, ErrNoCheckpoint
	}
	return append([]byte(nil), s.data...), nil
}

func (s *MemoryStore) Close() error { return nil }
