package memory_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gizmette/auth-client/pkg/credstore"
	"github.com/gizmette/auth-client/pkg/credstore/memory"
)

func TestStore_RoundTrip(t *testing.T) {
	store := memory.NewStore()
	ctx := t.Context()

	_, err := store.Get(ctx, "client-1", credstore.KeyIDToken)
	require.ErrorIs(t, err, credstore.ErrNotSet)

	require.NoError(t, store.Set(ctx, "client-1", credstore.KeyIDToken, "id-token"))

	value, err := store.Get(ctx, "client-1", credstore.KeyIDToken)
	require.NoError(t, err)
	assert.Equal(t, "id-token", value)

	// an empty stored string is distinguishable from an unset slot
	require.NoError(t, store.Set(ctx, "client-1", credstore.KeyAccessToken, ""))
	value, err = store.Get(ctx, "client-1", credstore.KeyAccessToken)
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, store.Remove(ctx, "client-1", credstore.KeyIDToken))
	_, err = store.Get(ctx, "client-1", credstore.KeyIDToken)
	require.ErrorIs(t, err, credstore.ErrNotSet)
}

func TestStore_Options(t *testing.T) {
	boom := errors.New("boom")
	ctx := t.Context()

	store := memory.NewStore(
		memory.WithValue("client-1", credstore.KeyNonce, "nonce-1"),
		memory.WithSetError(boom),
	)

	value, err := store.Get(ctx, "client-1", credstore.KeyNonce)
	require.NoError(t, err)
	assert.Equal(t, "nonce-1", value)

	require.ErrorIs(t, store.Set(ctx, "client-1", credstore.KeyNonce, "x"), boom)
}
