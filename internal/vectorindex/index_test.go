package vectorindex

import (
	"context"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomVectors(r *rand.Rand, n, dim int, unit bool) [][]float32 {
	vectors := make([][]float32, n)
	for i := range vectors {
		v := make([]float32, dim)
		var norm float64
		for j := range v {
			v[j] = float32(r.NormFloat64())
			norm += float64(v[j]) * float64(v[j])
		}
		if unit {
			for j := range v {
				v[j] = float32(float64(v[j]) / math.Sqrt(norm))
			}
		}
		vectors[i] = v
	}
	return vectors
}

func TestFlatL2SearchOrderedAndExact(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	ctx := context.Background()

	for trial := 0; trial < 20; trial++ {
		vectors := randomVectors(r, 1+r.Intn(30), 8, false)
		index, err := NewFlatL2(vectors)
		require.NoError(t, err)
		require.Equal(t, len(vectors), index.Len())

		target := r.Intn(len(vectors))
		results, err := index.Search(ctx, vectors[target], 5)
		require.NoError(t, err)
		require.Len(t, results, min(5, len(vectors)))

		assert.Zero(t, results[0].Distance)
		for i := 1; i < len(results); i++ {
			assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
		}
		for _, n := range results {
			assert.InDelta(t, float64(l2(vectors[target], vectors[n.Position])), float64(n.Distance), 1e-6)
		}
	}
}

func TestFlatL2KnownDistances(t *testing.T) {
	index, err := NewFlatL2([][]float32{{0, 0}, {3, 4}, {1, 0}, {1, 0}})
	require.NoError(t, err)

	results, err := index.Search(context.Background(), []float32{0, 0}, 10)
	require.NoError(t, err)
	assert.Equal(t, []Neighbor{
		{Position: 0, Distance: 0},
		{Position: 2, Distance: 1},
		{Position: 3, Distance: 1},
		{Position: 1, Distance: 5},
	}, results)
}

func TestFlatL2KLargerThanN(t *testing.T) {
	index, err := NewFlatL2([][]float32{{1}, {2}, {3}})
	require.NoError(t, err)

	results, err := index.Search(context.Background(), []float32{0}, 50)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestFlatL2SearchDoesNotMutate(t *testing.T) {
	vectors := [][]float32{{1, 2}, {3, 4}}
	index, err := NewFlatL2(vectors)
	require.NoError(t, err)
	snapshot := append([]float32(nil), index.data...)

	query := []float32{3, 4}
	first, err := index.Search(context.Background(), query, 2)
	require.NoError(t, err)
	second, err := index.Search(context.Background(), query, 2)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, index.data)
	assert.Equal(t, []float32{3, 4}, query)

	vectors[0][0] = 100
	assert.Equal(t, float32(1), index.data[0])
}

func TestFlatL2Errors(t *testing.T) {
	_, err := NewFlatL2([][]float32{{1, 2}, {1}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = NewFlatL2([][]float32{{}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	index, err := NewFlatL2([][]float32{{1, 2}})
	require.NoError(t, err)
	_, err = index.Search(context.Background(), []float32{1}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = index.Search(context.Background(), []float32{1, 2}, 0)
	assert.ErrorIs(t, err, ErrInvalidK)
}

func TestFlatL2Empty(t *testing.T) {
	index, err := FlatBuilder{}.Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, index.Len())

	results, err := index.Search(context.Background(), []float32{1, 2}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemMatchesFlatOnUnitVectors(t *testing.T) {
	ctx := context.Background()
	vectors := randomVectors(rand.New(rand.NewSource(7)), 12, 16, true)

	flat, err := FlatBuilder{}.Build(ctx, vectors)
	require.NoError(t, err)
	chromemIndex, err := NewChromemBuilder("", "test", "").Build(ctx, vectors)
	require.NoError(t, err)
	require.Equal(t, 12, chromemIndex.Len())
	assert.Equal(t, 16, chromemIndex.Dimension())

	want, err := flat.Search(ctx, vectors[3], 4)
	require.NoError(t, err)
	got, err := chromemIndex.Search(ctx, vectors[3], 4)
	require.NoError(t, err)

	require.Len(t, got, 4)
	assert.Equal(t, 3, got[0].Position)
	assert.InDelta(t, 0, float64(got[0].Distance), 1e-3)
	for i := range want {
		assert.Equal(t, want[i].Position, got[i].Position)
		assert.InDelta(t, float64(want[i].Distance), float64(got[i].Distance), 1e-3)
	}
}

func TestChromemKLargerThanN(t *testing.T) {
	index, err := NewChromemBuilder("", "test", "").Build(context.Background(), [][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)

	results, err := index.Search(context.Background(), []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].Position)
	assert.InDelta(t, math.Sqrt2, float64(results[1].Distance), 1e-3)
}

func TestChromemEmptyAndErrors(t *testing.T) {
	ctx := context.Background()
	index, err := NewChromemBuilder("", "test", "").Build(ctx, nil)
	require.NoError(t, err)
	results, err := index.Search(ctx, []float32{1}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = NewChromemBuilder("", "test", "").Build(ctx, [][]float32{{1, 0}, {1}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestChromemExport(t *testing.T) {
	dir := t.TempDir()
	key := "0123456789abcdef0123456789abcdef"

	_, err := NewChromemBuilder(dir, "snapshot", key).Build(context.Background(), [][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, "snapshot.chromem"))
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
