// Package credstore defines the durable key-value contract for the session
// artifacts. A session uses four string slots scoped by client id: the id
// token, the access token, the refresh token and the last attempt nonce.
package credstore

import (
	"context"
	"errors"
)

// ErrNotSet is returned by Get for a slot that was never written or has been
// removed. It is distinct from an empty stored string: the bootstrap
// transition relies on the difference to tell "never logged in" apart from
// "logged in with an empty token" and skip a pointless logout call.
var ErrNotSet = errors.New("credential not set")

type Key string

const (
	KeyIDToken      Key = "user"
	KeyAccessToken  Key = "access"
	KeyRefreshToken Key = "refresh"
	KeyNonce        Key = "nonce"
)

// Keys lists every slot a session occupies, in clearing order.
var Keys = []Key{KeyIDToken, KeyAccessToken, KeyRefreshToken, KeyNonce}

type Store interface {
	// Get returns the stored value, or ErrNotSet when the slot is empty.
	Get(ctx context.Context, clientID string, key Key) (string, error)
	Set(ctx context.Context, clientID string, key Key, value string) error
	// Remove deletes the slot. Removing an unset slot is not an error.
	Remove(ctx context.Context, clientID string, key Key) error
}
