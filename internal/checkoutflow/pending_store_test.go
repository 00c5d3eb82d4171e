package checkoutflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ref, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, ref)

	require.NoError(t, store.Save("BK_1_abc"))
	ref, _ = store.Load()
	assert.Equal(t, "BK_1_abc", ref)

	require.NoError(t, store.Clear())
	ref, _ = store.Load()
	assert.Empty(t, ref)
}

func TestFileStoreRoundTripsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "pending_payment.json"), store.Path())

	ref, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, ref)

	require.NoError(t, store.Save("BK_1700000000000_abcdef012345"))

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	ref, err = reopened.Load()
	require.NoError(t, err)
	assert.Equal(t, "BK_1700000000000_abcdef012345", ref)

	require.NoError(t, reopened.Clear())
	require.NoError(t, reopened.Clear())
	_, err = os.Stat(store.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0o600))

	_, err = store.Load()
	require.Error(t, err)
}
