package statestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectorsql/vectorsql/pkg/vqtypes"
)

func TestBoltStorePutListDelete(t *testing.T) {
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	desc := &vqtypes.BackendDescriptor{Address: vqtypes.NetworkAddress{Host: "10.0.0.1", Port: 22000}, IP: "10.0.0.1", IsExecutor: true}
	require.NoError(t, store.Put("b1", desc))

	all, err := store.List()
	require.NoError(t, err)
	require.Contains(t, all, "b1")
	assert.Equal(t, "10.0.0.1", all["b1"].IP)

	require.NoError(t, store.Delete("b1"))
	all, err = store.List()
	require.NoError(t, err)
	assert.NotContains(t, all, "b1")
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put("b1", &vqtypes.BackendDescriptor{IP: "10.0.0.1"}))
	require.NoError(t, store.Close())

	reopened, err := NewBoltStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	all, err := reopened.List()
	require.NoError(t, err)
	require.Contains(t, all, "b1")
	assert.Equal(t, "10.0.0.1", all["b1"].IP)
}
