// Package valkey keeps credentials in a valkey instance, for deployments
// where the session manager runs server side and several processes share one
// credential store. Keys follow the prefix:clientID:slot layout.
package valkey

import (
	"context"
	"fmt"
	"strings"

	valkeygo "github.com/valkey-io/valkey-go"

	"github.com/gizmette/auth-client/pkg/credstore"
)

type Store struct {
	valkey valkeygo.Client
	prefix string
}

var _ = credstore.Store(&Store{})

func NewStore(client valkeygo.Client, prefix string) *Store {
	return &Store{
		valkey: client,
		prefix: strings.TrimSuffix(prefix, ":"),
	}
}

func (s *Store) Get(ctx context.Context, clientID string, key credstore.Key) (string, error) {
	value, err := s.valkey.Do(ctx, s.valkey.B().Get().Key(s.key(clientID, key)).Build()).ToString()
	if err != nil {
		if valkeyErr, ok := valkeygo.IsValkeyErr(err); ok && valkeyErr.IsNil() {
			return "", credstore.ErrNotSet
		}

		return "", fmt.Errorf("executing get command: %w", err)
	}

	return value, nil
}

func (s *Store) Set(ctx context.Context, clientID string, key credstore.Key, value string) error {
	cmd := s.valkey.B().Set().Key(s.key(clientID, key)).Value(value).Build()
	if err := s.valkey.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("executing set command: %w", err)
	}

	return nil
}

func (s *Store) Remove(ctx context.Context, clientID string, key credstore.Key) error {
	if err := s.valkey.Do(ctx, s.valkey.B().Del().Key(s.key(clientID, key)).Build()).Error(); err != nil {
		return fmt.Errorf("executing del command: %w", err)
	}

	return nil
}

func (s *Store) key(clientID string, key credstore.Key) string {
	if s.prefix == "" {
		return fmt.Sprintf("%s:%s", clientID, key)
	}

	return fmt.Sprintf("%s:%s:%s", s.prefix, clientID, key)
}
