package bolt_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gizmette/auth-client/pkg/credstore"
	"github.com/gizmette/auth-client/pkg/credstore/bolt"
)

func openStore(t *testing.T) *bolt.Store {
	t.Helper()

	store, err := bolt.Open(filepath.Join(t.TempDir(), "credentials.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestStore_RoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := t.Context()

	_, err := store.Get(ctx, "client-1", credstore.KeyIDToken)
	require.ErrorIs(t, err, credstore.ErrNotSet)

	require.NoError(t, store.Set(ctx, "client-1", credstore.KeyIDToken, "id-token"))
	require.NoError(t, store.Set(ctx, "client-1", credstore.KeyNonce, "nonce-1"))

	value, err := store.Get(ctx, "client-1", credstore.KeyIDToken)
	require.NoError(t, err)
	assert.Equal(t, "id-token", value)

	// empty string is a stored value, not ErrNotSet
	require.NoError(t, store.Set(ctx, "client-1", credstore.KeyAccessToken, ""))
	value, err = store.Get(ctx, "client-1", credstore.KeyAccessToken)
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, store.Remove(ctx, "client-1", credstore.KeyIDToken))
	_, err = store.Get(ctx, "client-1", credstore.KeyIDToken)
	require.ErrorIs(t, err, credstore.ErrNotSet)

	// removing an unset slot is fine
	require.NoError(t, store.Remove(ctx, "client-1", credstore.KeyIDToken))
}

func TestStore_ScopedByClientID(t *testing.T) {
	store := openStore(t)
	ctx := t.Context()

	require.NoError(t, store.Set(ctx, "client-a", credstore.KeyRefreshToken, "refresh-a"))

	_, err := store.Get(ctx, "client-b", credstore.KeyRefreshToken)
	require.ErrorIs(t, err, credstore.ErrNotSet)

	value, err := store.Get(ctx, "client-a", credstore.KeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "refresh-a", value)
}
