package vectorindex

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
)

// FlatL2 is an exact brute-force index under Euclidean distance. Vectors are
// stored contiguously in insertion order.
type FlatL2 struct {
	dim  int
	data []float32
}

type FlatBuilder struct{}

func (FlatBuilder) Build(_ context.Context, vectors [][]float32) (Index, error) {
	return NewFlatL2(vectors)
}

// NewFlatL2 copies vectors into a new index. All vectors must share one
// dimension.
func NewFlatL2(vectors [][]float32) (*FlatL2, error) {
	if len(vectors) == 0 {
		return &FlatL2{}, nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("vector 0: %w: empty vector", ErrDimensionMismatch)
	}
	data := make([]float32, 0, dim*len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d: %w: got %d, want %d", i, ErrDimensionMismatch, len(v), dim)
		}
		data = append(data, v...)
	}
	return &FlatL2{dim: dim, data: data}, nil
}

func (f *FlatL2) Len() int {
	if f.dim == 0 {
		return 0
	}
	return len(f.data) / f.dim
}

func (f *FlatL2) Dimension() int { return f.dim }

// Search returns the k nearest vectors ascending by distance, ties broken by
// position. Fewer than k stored vectors returns all of them.
func (f *FlatL2) Search(_ context.Context, query []float32, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	n := f.Len()
	if n == 0 {
		return nil, nil
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("query: %w: got %d, want %d", ErrDimensionMismatch, len(query), f.dim)
	}

	neighbors := make([]Neighbor, n)
	for i := 0; i < n; i++ {
		neighbors[i] = Neighbor{
			Position: i,
			Distance: l2(query, f.data[i*f.dim:(i+1)*f.dim]),
		}
	}
	slices.SortFunc(neighbors, func(a, b Neighbor) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Position, b.Position)
	})
	return neighbors[:min(k, n)], nil
}

func l2(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}
