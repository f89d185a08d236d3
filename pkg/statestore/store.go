package statestore

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/vectorsql/vectorsql/pkg/vqtypes"
)

var bucketBackends = []byte("backends")

// Store persists the current set of registered backends. BoltStore is the
// only implementation; it exists as an interface so the FSM can be tested
// against an in-memory fake without a BoltDB file.
type Store interface {
	Put(id string, d *vqtypes.BackendDescriptor) error
	Delete(id string) error
	List() (map[string]*vqtypes.BackendDescriptor, error)
	Close() error
}

// BoltStore implements Store on top of a single BoltDB bucket, the same
// shape as the teacher's pkg/storage bucket-per-entity layout, narrowed to
// the one entity this registry owns.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if needed) a BoltDB file under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "statestore.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open statestore database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBackends)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create backends bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Put(id string, d *vqtypes.BackendDescriptor) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal backend descriptor: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBackends).Put([]byte(id), data)
	})
}

func (s *BoltStore) Delete(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBackends).Delete([]byte(id))
	})
}

func (s *BoltStore) List() (map[string]*vqtypes.BackendDescriptor, error) {
	out := make(map[string]*vqtypes.BackendDescriptor)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBackends).ForEach(func(k, v []byte) error {
			var d vqtypes.BackendDescriptor
			if err := json.Unmarshal(v, &d); err != nil {
				return fmt.Errorf("failed to unmarshal backend %q: %w", k, err)
			}
			out[string(k)] = &d
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
