package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
)

const compress = false

var errNoEmbeddingFunc = errors.New("embeddings are computed before indexing")

// ChromemBuilder builds indexes on a fresh in-memory chromem-go collection.
// When dbPath is set every build is also exported to
// <dbPath>/<collection>.chromem, encrypted if encryptionKey is set.
type ChromemBuilder struct {
	dbPath         string
	collectionName string
	encryptionKey  string
}

func NewChromemBuilder(dbPath, collectionName, encryptionKey string) *ChromemBuilder {
	return &ChromemBuilder{dbPath: dbPath, collectionName: collectionName, encryptionKey: encryptionKey}
}

func (b *ChromemBuilder) Build(ctx context.Context, vectors [][]float32) (Index, error) {
	manager := NewVectorDBManager(b.dbPath, b.collectionName, b.encryptionKey)
	if _, err := manager.GetOrCreateCollection(b.collectionName); err != nil {
		return nil, err
	}

	dim := 0
	docs := make([]chromem.Document, 0, len(vectors))
	for i, v := range vectors {
		if i == 0 {
			dim = len(v)
		}
		if len(v) == 0 || len(v) != dim {
			return nil, fmt.Errorf("vector %d: %w: got %d, want %d", i, ErrDimensionMismatch, len(v), dim)
		}
		id := strconv.Itoa(i)
		docs = append(docs, chromem.Document{
			ID:        id,
			Content:   "chunk " + id,
			Embedding: append([]float32(nil), v...),
		})
	}
	if len(docs) > 0 {
		if err := manager.CreateDocs(ctx, docs); err != nil {
			return nil, err
		}
	}

	if b.dbPath != "" {
		if err := manager.Export(); err != nil {
			return nil, err
		}
	}
	return &ChromemIndex{manager: manager, dim: dim}, nil
}

// ChromemIndex ranks by cosine similarity over unit-normalised vectors and
// reports the L2 distance between the normalised vectors, sqrt(2 - 2*sim).
// For unit-length embeddings this is the exact L2 ranking.
type ChromemIndex struct {
	manager *VectorDBManager
	dim     int
}

func (c *ChromemIndex) Len() int { return c.manager.collection.Count() }

func (c *ChromemIndex) Dimension() int { return c.dim }

func (c *ChromemIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	n := min(k, c.Len())
	if n == 0 {
		return nil, nil
	}
	if len(query) != c.dim {
		return nil, fmt.Errorf("query: %w: got %d, want %d", ErrDimensionMismatch, len(query), c.dim)
	}

	results, err := c.manager.SearchWithQueryOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: query,
		NResults:       n,
	})
	if err != nil {
		return nil, err
	}

	neighbors := make([]Neighbor, 0, len(results))
	for _, r := range results {
		pos, err := strconv.Atoi(r.ID)
		if err != nil {
			return nil, fmt.Errorf("unexpected document id %q: %w", r.ID, err)
		}
		neighbors = append(neighbors, Neighbor{Position: pos, Distance: unitDistance(r.Similarity)})
	}
	return neighbors, nil
}

func unitDistance(similarity float32) float32 {
	d := 2 - 2*float64(similarity)
	if d <= 0 {
		return 0
	}
	return float32(math.Sqrt(d))
}

// VectorDBManager encapsulates the chromem-go database operations
type VectorDBManager struct {
	db            *chromem.DB
	collection    *chromem.Collection
	dbPath        string
	encryptionKey string
	filePath      string
}

func NewVectorDBManager(dbPath, collectionName, encryptionKey string) *VectorDBManager {
	return &VectorDBManager{
		db:            chromem.NewDB(),
		dbPath:        dbPath,
		encryptionKey: encryptionKey,
		filePath:      filepath.Join(dbPath, collectionName+".chromem"),
	}
}

// create or read collection
func (m *VectorDBManager) GetOrCreateCollection(collectionName string) (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(collectionName, nil, func(context.Context, string) ([]float32, error) {
		return nil, errNoEmbeddingFunc
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return c, nil
}

// add multiple documents
func (m *VectorDBManager) CreateDocs(ctx context.Context, documents []chromem.Document) error {
	err := m.collection.AddDocuments(ctx, documents, runtime.NumCPU())
	if err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

func (m *VectorDBManager) SearchWithQueryOptions(ctx context.Context, opts chromem.QueryOptions) ([]chromem.Result, error) {
	if opts.QueryText == "" && opts.QueryEmbedding == nil {
		return nil, fmt.Errorf("either query or embedding must be provided")
	}

	results, err := m.collection.QueryWithOptions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	return results, nil
}

// export to file
func (m *VectorDBManager) Export() error {
	if m.collection == nil {
		return fmt.Errorf("collection is required")
	}

	log.Debug().Str("collection", m.collection.Name).Str("file", m.filePath).Bool("encrypted", m.encryptionKey != "").Msg("Exporting vector collection")
	err := m.db.ExportToFile(m.filePath, compress, m.encryptionKey, m.collection.Name)
	if err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}
