package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Database {
	t.Helper()
	dir := t.TempDir()

	level, err := NewLevelDB(filepath.Join(dir, "level"))
	require.NoError(t, err)
	bolt, err := NewBoltDB(filepath.Join(dir, "ledger.bolt"), nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = level.Close()
		_ = bolt.Close()
	})
	return map[string]Database{
		"mem":   NewMemDB(),
		"level": level,
		"bolt":  bolt,
	}
}

func TestDatabaseBatchAppliesAllWrites(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Put([]byte("stale"), []byte("x")))

			batch := db.NewBatch()
			batch.Put([]byte("a"), []byte("1"))
			batch.Put([]byte("b"), []byte("2"))
			batch.Delete([]byte("stale"))
			require.Equal(t, 3, batch.Len())

			_, err := db.Get([]byte("a"))
			require.ErrorIs(t, err, ErrNotFound, "batch must not be visible before Write")

			require.NoError(t, batch.Write())

			got, err := db.Get([]byte("a"))
			require.NoError(t, err)
			require.Equal(t, []byte("1"), got)
			ok, err := db.Has([]byte("b"))
			require.NoError(t, err)
			require.True(t, ok)
			ok, err = db.Has([]byte("stale"))
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestLevelDBPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	db1, err := NewLevelDB(dir)
	require.NoError(t, err)
	require.NoError(t, db1.Put([]byte("key"), []byte("value")))
	require.NoError(t, db1.Close())

	db2, err := NewLevelDB(dir)
	require.NoError(t, err)
	defer db2.Close()

	got, err := db2.Get([]byte("key"))
	require.NoError(t, err)
	require.Equal(t, []byte("value"), got)
}

func TestMemDBReturnsCopies(t *testing.T) {
	db := NewMemDB()
	value := []byte("abc")
	require.NoError(t, db.Put([]byte("k"), value))
	value[0] = 'z'

	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), got)
}
