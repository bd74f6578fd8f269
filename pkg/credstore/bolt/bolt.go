// Package bolt persists credentials in a local bbolt database, one bucket
// per client id. It is the default store for the CLI and other desktop
// consumers that need sessions to survive restarts.
package bolt

import (
	"context"
	"fmt"

	bbolt "go.etcd.io/bbolt"

	"github.com/gizmette/auth-client/pkg/credstore"
)

type Store struct {
	db *bbolt.DB
}

var _ = credstore.Store(&Store{})

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening credential database: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(_ context.Context, clientID string, key credstore.Key) (string, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(clientID))
		if bucket == nil {
			return credstore.ErrNotSet
		}

		stored := bucket.Get([]byte(key))
		if stored == nil {
			return credstore.ErrNotSet
		}

		value = append(value, stored...)

		return nil
	})
	if err != nil {
		return "", err
	}

	return string(value), nil
}

func (s *Store) Set(_ context.Context, clientID string, key credstore.Key, value string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(clientID))
		if err != nil {
			return err
		}

		return bucket.Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("storing credential: %w", err)
	}

	return nil
}

func (s *Store) Remove(_ context.Context, clientID string, key credstore.Key) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(clientID))
		if bucket == nil {
			return nil
		}

		return bucket.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("removing credential: %w", err)
	}

	return nil
}
