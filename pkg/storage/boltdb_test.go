package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoltStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Load()
	assert.ErrorIs(t, err, ErrNoCheckpoint)

	require.NoError(t, store.Save([]byte(`{"deployments":{}}`)))
	data, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"deployments":{}}`), data)

	// Saves replace the previous checkpoint.
	require.NoError(t, store.Save([]byte("v2")))
	data, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)
}

func TestBoltStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save([]byte("persisted")))
	require.NoError(t, store.Close())

	reopened, err := NewBoltStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	data, err := reopened.Load()
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), data)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoCheckpoint)

	require.NoError(t, store.Save([]byte("abc")))
	data, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)

	// The stored blob is a copy, not an alias.
	data[0] = 'x'
	again, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}
