package checkpoint

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"slidenet/internal/slide"
)

func tinyNetwork(t *testing.T) *slide.Network {
	t.Helper()
	n, err := slide.NewNetwork(2, 0.01, 4, []slide.LayerConfig{
		{Size: 6, NodeType: slide.Relu, K: 2, L: 2, Sparsity: 1},
		{Size: 3, NodeType: slide.Softmax, K: 2, L: 2, Sparsity: 1},
	})
	require.NoError(t, err)
	return n
}

func openTestDB(t *testing.T) *bbolt.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "networks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveLoadRoundtrip(t *testing.T) {
	db := openTestDB(t)

	n := tinyNetwork(t)
	before := n.Export()

	snap := FromNetwork(n, time.Unix(0, 0).UTC())
	require.NoError(t, Save(db, "run-1", snap))

	loaded, err := Load(db, "run-1")
	require.NoError(t, err)

	restored, err := Restore(loaded)
	require.NoError(t, err)

	assert.Equal(t, before, restored.Export(), "restored network must reproduce the exported weights exactly")
	assert.Equal(t, n.Configs(), restored.Configs())
}

func TestLoadMissingNameErrors(t *testing.T) {
	db := openTestDB(t)

	_, err := Load(db, "does-not-exist")
	require.Error(t, err)
}

func TestListAndDelete(t *testing.T) {
	db := openTestDB(t)

	n := tinyNetwork(t)
	snap := FromNetwork(n, time.Unix(0, 0).UTC())
	require.NoError(t, Save(db, "a", snap))
	require.NoError(t, Save(db, "b", snap))

	names, err := List(db)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, names)

	require.NoError(t, Delete(db, "a"))
	names, err = List(db)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, names)
}

func TestRestoreRejectsMismatchedSnapshotShape(t *testing.T) {
	n := tinyNetwork(t)
	snap := FromNetwork(n, time.Unix(0, 0).UTC())
	snap.Weights = snap.Weights[:1] // drop a layer's worth of weights

	_, err := Restore(snap)
	require.Error(t, err)
}
