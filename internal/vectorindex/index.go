package vectorindex

import (
	"context"
	"errors"
)

var (
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrInvalidK          = errors.New("k must be positive")
)

// Neighbor is a search hit: the position of the stored vector (equal to the
// chunk position) and its L2 distance from the query.
type Neighbor struct {
	Position int
	Distance float32
}

// Index is an immutable, searchable set of vectors. Search never mutates it;
// a changed document set needs a new Build.
type Index interface {
	Len() int
	Dimension() int
	Search(ctx context.Context, query []float32, k int) ([]Neighbor, error)
}

// Builder constructs an Index over all vectors in one pass.
type Builder interface {
	Build(ctx context.Context, vectors [][]float32) (Index, error)
}
