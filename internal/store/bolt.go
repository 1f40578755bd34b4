// SPDX-License-Identifier: MPL-2.0

package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	netconfigBucket = "netconfig"
	currentKey      = "current"
)

// BoltStore keeps a Snapshot in a bbolt database under a single key.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens or creates the database at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open settings db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(netconfigBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create %s bucket: %w", netconfigBucket, err)
	}
	return &BoltStore{db: db}, nil
}

// Load reads the saved snapshot.
func (b *BoltStore) Load() (Snapshot, error) {
	var snap Snapshot
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(netconfigBucket))
		if bucket == nil {
			return fmt.Errorf("%s bucket is missing", netconfigBucket)
		}
		payload := bucket.Get([]byte(currentKey))
		if payload == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(payload, &snap); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
		}
		return nil
	})
	return snap, err
}

// Save stores snap, replacing the previous one.
func (b *BoltStore) Save(snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(netconfigBucket))
		if bucket == nil {
			return fmt.Errorf("%s bucket is missing", netconfigBucket)
		}
		return bucket.Put([]byte(currentKey), payload)
	})
}

// Close closes the database.
func (b *BoltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}
