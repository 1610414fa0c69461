package storage

import (
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketCheckpoints = []byte("checkpoints")
	keyFleet          = []byte("fleet")
)

// BoltStore implements CheckpointStore using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the checkpoint database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "paddock.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCheckpoints)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Save replaces the fleet checkpoint.
func (s *BoltStore) Save(data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCheckpoints).Put(keyFleet, data)
	})
}

// Load returns the last saved checkpoint, or ErrNoCheckpoint.
func (s *BoltStore) Load() ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCheckpoints).Get(keyFleet)
		if v == nil {
			return ErrNoCheckpoint
		}
		data = append([]byte(nil), v...)
		return nil
	})
	return data, err
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}
