package vectorindex

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(dir, "default", 3)
	require.NoError(t, err)

	vectors := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	seqs, err := idx.Append(vectors, []int64{10, 20, 30})
	require.NoError(t, err)
	require.Equal(t, []int64{0, 1, 2}, seqs)
	require.NoError(t, idx.Save())

	reopened, err := Open(dir, "default", 3)
	require.NoError(t, err)
	require.Equal(t, idx.vectors, reopened.vectors)
	require.Equal(t, idx.chunkIDs, reopened.chunkIDs)
}

func TestDimensionMismatch(t *testing.T) {
	idx, err := Open(t.TempDir(), "default", 3)
	require.NoError(t, err)
	_, err = idx.Append([][]float32{{1, 2}}, []int64{1})
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSearchEmptyIndex(t *testing.T) {
	idx, err := Open(t.TempDir(), "default", 3)
	require.NoError(t, err)
	results, err := idx.Search([]float32{1, 2, 3}, 5)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestSearchKLargerThanIndex(t *testing.T) {
	idx, err := Open(t.TempDir(), "default", 2)
	require.NoError(t, err)
	_, err = idx.Append([][]float32{{0, 0}, {1, 1}}, []int64{1, 2})
	require.NoError(t, err)
	results, err := idx.Search([]float32{0, 0}, 100)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, int64(1), results[0].ChunkID)
}

func TestRemoveTombstonesThenCompact(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(dir, "default", 2)
	require.NoError(t, err)
	_, err = idx.Append([][]float32{{0, 0}, {1, 1}, {2, 2}}, []int64{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, idx.Save())

	require.NoError(t, idx.Remove([]int64{2}))
	results, err := idx.Search([]float32{1, 1}, 10)
	require.NoError(t, err)
	for _, r := range results {
		require.NotEqual(t, int64(2), r.ChunkID)
	}
	require.Equal(t, 3, idx.Len())

	require.NoError(t, idx.Compact())
	require.Equal(t, 2, idx.Len())
}

func TestHotReloadOnlyOnMTimeAdvance(t *testing.T) {
	dir := t.TempDir()
	writer, err := Open(dir, "default", 2)
	require.NoError(t, err)
	_, err = writer.Append([][]float32{{0, 0}}, []int64{1})
	require.NoError(t, err)
	require.NoError(t, writer.Save())

	reader, err := Open(dir, "default", 2)
	require.NoError(t, err)

	_, err = reader.Search([]float32{0, 0}, 1)
	require.NoError(t, err)
	initialReloads := reader.Reloads()

	_, err = reader.Search([]float32{0, 0}, 1)
	require.NoError(t, err)
	require.Equal(t, initialReloads, reader.Reloads())

	_, err = writer.Append([][]float32{{5, 5}}, []int64{2})
	require.NoError(t, err)
	require.NoError(t, writer.Save())

	_, err = reader.Search([]float32{5, 5}, 2)
	require.NoError(t, err)
	require.Greater(t, reader.Reloads(), initialReloads)
}

func TestLoadMissingIsErrIndexMissing(t *testing.T) {
	dir := t.TempDir()
	os.RemoveAll(dir) // ensure it doesn't exist
	idx := &Index{dir: dir, name: "default", dim: 3}
	err := idx.Load()
	require.ErrorIs(t, err, ErrIndexMissing)
}
