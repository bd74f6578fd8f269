// Package memory holds credentials in process memory. It backs tests and
// short-lived consumers that do not want persistence across restarts.
package memory

import (
	"context"
	"sync"

	"github.com/gizmette/auth-client/pkg/credstore"
)

type StoreOption func(*Store)

type Store struct {
	mu    sync.RWMutex
	slots map[string]string

	getErr, setErr, removeErr error
}

func WithValue(clientID string, key credstore.Key, value string) StoreOption {
	return func(s *Store) { s.slots[slotKey(clientID, key)] = value }
}

func WithGetError(err error) StoreOption {
	return func(s *Store) { s.getErr = err }
}

func WithSetError(err error) StoreOption {
	return func(s *Store) { s.setErr = err }
}

func WithRemoveError(err error) StoreOption {
	return func(s *Store) { s.removeErr = err }
}

var _ = credstore.Store(&Store{})

func NewStore(opts ...StoreOption) *Store {
	s := &Store{slots: make(map[string]string)}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

func (s *Store) Get(_ context.Context, clientID string, key credstore.Key) (string, error) {
	if s.getErr != nil {
		return "", s.getErr
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.slots[slotKey(clientID, key)]
	if !ok {
		return "", credstore.ErrNotSet
	}

	return value, nil
}

func (s *Store) Set(_ context.Context, clientID string, key credstore.Key, value string) error {
	if s.setErr != nil {
		return s.setErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.slots[slotKey(clientID, key)] = value

	return nil
}

func (s *Store) Remove(_ context.Context, clientID string, key credstore.Key) error {
	if s.removeErr != nil {
		return s.removeErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.slots, slotKey(clientID, key))

	return nil
}

func slotKey(clientID string, key credstore.Key) string {
	return clientID + "::" + string(key)
}
