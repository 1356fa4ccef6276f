package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVectorStore(t *testing.T, dims int) *HNSWStore {
	t.Helper()
	vs, err := NewHNSWStore(DefaultVectorStoreConfig(dims))
	require.NoError(t, err)
	t.Cleanup(func() { _ = vs.Close() })
	return vs
}

// axisVector returns a unit vector along the given axis.
func axisVector(dims, axis int) []float32 {
	v := make([]float32, dims)
	v[axis] = 1
	return v
}

func TestHNSWAddAndSearch(t *testing.T) {
	vs := newTestVectorStore(t, 4)
	ctx := context.Background()

	require.NoError(t, vs.Add(ctx,
		[]string{"a", "b", "c"},
		[][]float32{axisVector(4, 0), axisVector(4, 1), axisVector(4, 2)}))

	results, err := vs.Search(ctx, axisVector(4, 0), 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 0.0, float64(results[0].Distance), 0.001)
	assert.InDelta(t, 1.0, float64(results[0].Score), 0.001)
}

func TestHNSWDimensionMismatch(t *testing.T) {
	vs := newTestVectorStore(t, 4)
	ctx := context.Background()

	err := vs.Add(ctx, []string{"a"}, [][]float32{{1, 0}})
	var mismatch ErrDimensionMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 4, mismatch.Expected)
	assert.Equal(t, 2, mismatch.Got)

	_, err = vs.Search(ctx, []float32{1}, 1)
	assert.Error(t, err)
}

func TestHNSWReplaceExisting(t *testing.T) {
	vs := newTestVectorStore(t, 4)
	ctx := context.Background()

	require.NoError(t, vs.Add(ctx, []string{"a"}, [][]float32{axisVector(4, 0)}))
	require.NoError(t, vs.Add(ctx, []string{"a"}, [][]float32{axisVector(4, 1)}))

	assert.Equal(t, 1, vs.Count())

	results, err := vs.Search(ctx, axisVector(4, 1), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 0.0, float64(results[0].Distance), 0.001)
}

func TestHNSWLazyDelete(t *testing.T) {
	vs := newTestVectorStore(t, 4)
	ctx := context.Background()

	require.NoError(t, vs.Add(ctx,
		[]string{"a", "b"},
		[][]float32{axisVector(4, 0), axisVector(4, 1)}))
	require.NoError(t, vs.Delete(ctx, []string{"a"}))

	assert.False(t, vs.Contains("a"))
	assert.True(t, vs.Contains("b"))
	assert.Equal(t, 1, vs.Count())

	// Deleted vectors never surface in results.
	results, err := vs.Search(ctx, axisVector(4, 0), 2)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
}

func TestHNSWSearchFiltered(t *testing.T) {
	vs := newTestVectorStore(t, 4)
	ctx := context.Background()

	ids := make([]string, 8)
	vecs := make([][]float32, 8)
	for i := range ids {
		ids[i] = fmt.Sprintf("chunk-%d", i)
		v := axisVector(4, i%4)
		v[(i+1)%4] = float32(i) * 0.1
		vecs[i] = v
	}
	require.NoError(t, vs.Add(ctx, ids, vecs))

	allowed := map[string]bool{"chunk-1": true, "chunk-5": true}
	results, err := vs.SearchFiltered(ctx, axisVector(4, 1), 2, func(id string) bool {
		return allowed[id]
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, allowed[r.ID])
	}
}

func TestHNSWEmptyStore(t *testing.T) {
	vs := newTestVectorStore(t, 4)

	results, err := vs.Search(context.Background(), axisVector(4, 0), 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.hnsw")
	ctx := context.Background()

	vs := newTestVectorStore(t, 4)
	require.NoError(t, vs.Add(ctx,
		[]string{"a", "b"},
		[][]float32{axisVector(4, 0), axisVector(4, 1)}))
	require.NoError(t, vs.Save(path))

	dims, err := ReadHNSWStoreDimensions(path)
	require.NoError(t, err)
	assert.Equal(t, 4, dims)

	loaded, err := NewHNSWStore(DefaultVectorStoreConfig(4))
	require.NoError(t, err)
	t.Cleanup(func() { _ = loaded.Close() })
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, 2, loaded.Count())
	results, err := loaded.Search(ctx, axisVector(4, 1), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
}

func TestReadHNSWStoreDimensionsMissing(t *testing.T) {
	dims, err := ReadHNSWStoreDimensions(filepath.Join(t.TempDir(), "nope.hnsw"))
	require.NoError(t, err)
	assert.Zero(t, dims)
}
