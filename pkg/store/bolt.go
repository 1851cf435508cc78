package store

import (
	"fmt"
	"slices"
	"time"

	"go.etcd.io/bbolt"
)

var bucketBlobs = []byte("blobs")

// BoltStore implements Store using a bbolt file. It needs no C toolchain.
type BoltStore struct {
	db *bbolt.DB
}

// NewBolt opens or creates the bbolt file at path.
func NewBolt(path string) (*BoltStore, error) {
	opts := &bbolt.Options{
		Timeout:      1 * time.Second,
		FreelistType: bbolt.FreelistArrayType,
	}

	db, err := bbolt.Open(path, 0600, opts)
	if err != nil {
		return nil, fmt.Errorf("open boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBlobs)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Get returns the blob stored under key.
func (s *BoltStore) Get(key string) ([]byte, bool, error) {
	var blob []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		// Values are only valid inside the transaction.
		if v := tx.Bucket(bucketBlobs).Get([]byte(key)); v != nil {
			blob = slices.Clone(v)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("read blob: %w", err)
	}
	return blob, blob != nil, nil
}

// Put stores blob under key.
func (s *BoltStore) Put(key string, blob []byte) error {
	if blob == nil {
		blob = []byte{}
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBlobs).Put([]byte(key), blob)
	})
	if err != nil {
		return fmt.Errorf("write blob: %w", err)
	}
	return nil
}

// Delete removes key.
func (s *BoltStore) Delete(key string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBlobs).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// Keys lists the stored keys. bbolt iterates in byte order.
func (s *BoltStore) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBlobs).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}

// Close closes the bbolt file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
