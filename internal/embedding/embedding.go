package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"pdf-chat/internal/apperr"
	"pdf-chat/internal/config"
	"pdf-chat/internal/models"
)

const defaultBatchSize = 16

// NewEmbedder creates a langchaingo embedder for the configured provider.
func NewEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        llmConfig.Provider,
		"base_url":        llmConfig.BaseURL,
		"embedding_model": llmConfig.Model,
	}).Msg("Creating embedder")

	httpClient := &http.Client{Timeout: llmConfig.Timeout()}

	var (
		client embeddings.EmbedderClient
		err    error
	)
	switch llmConfig.Provider {
	case config.ProviderOllama:
		client, err = ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
			ollama.WithHTTPClient(httpClient),
		)
	case config.ProviderAzure:
		client, err = openai.New(
			openai.WithAPIType(openai.APITypeAzure),
			openai.WithBaseURL(llmConfig.BaseURL),
			openai.WithAPIVersion(llmConfig.APIVersion),
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
			openai.WithEmbeddingModel(llmConfig.Model),
			openai.WithHTTPClient(httpClient),
		)
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
			openai.WithEmbeddingModel(llmConfig.Model),
			openai.WithHTTPClient(httpClient),
		}
		if llmConfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
		}
		client, err = openai.New(opts...)
	default:
		err = fmt.Errorf("unsupported embedding provider: %s", llmConfig.Provider)
	}
	if err != nil {
		return nil, apperr.New(apperr.KindConfig, "create embedder", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(defaultBatchSize))
	if err != nil {
		return nil, apperr.New(apperr.KindConfig, "create embedder", err)
	}
	return embedder, nil
}

// Service turns chunks and queries into vectors and guarantees one vector
// per input, all of the same dimension.
type Service struct {
	embedder  embeddings.Embedder
	timeout   time.Duration
	batchSize int
}

func NewService(embedder embeddings.Embedder, timeout time.Duration) *Service {
	return &Service{embedder: embedder, timeout: timeout, batchSize: defaultBatchSize}
}

// Embed returns the vector for a single query or chunk text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.New(apperr.KindEmbedding, apperr.OpEmbedQuery, errors.New("input text is empty"))
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	vector, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return nil, apperr.New(apperr.KindEmbedding, apperr.OpEmbedQuery, err)
	}
	if len(vector) == 0 {
		return nil, apperr.New(apperr.KindEmbedding, apperr.OpEmbedQuery, errors.New("service returned an empty vector"))
	}
	return vector, nil
}

// EmbedChunks returns the vectors of chunks in chunk order.
func (s *Service) EmbedChunks(ctx context.Context, chunks []models.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += s.batchSize {
		end := min(start+s.batchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			if chunk.Content == "" {
				return nil, apperr.Newf(apperr.KindEmbedding, "embed chunks", "chunk %d is empty", chunk.ChunkID)
			}
			texts = append(texts, chunk.Content)
		}

		batch, err := s.embedBatch(ctx, texts)
		if err != nil {
			return nil, apperr.New(apperr.KindEmbedding, fmt.Sprintf("embed chunks %d-%d", start, end-1), err)
		}
		if len(batch) != len(texts) {
			return nil, apperr.Newf(apperr.KindEmbedding, "embed chunks", "expected %d vectors, got %d", len(texts), len(batch))
		}
		vectors = append(vectors, batch...)
	}

	for i, v := range vectors {
		if len(v) == 0 || len(v) != len(vectors[0]) {
			return nil, apperr.Newf(apperr.KindEmbedding, "embed chunks", "vector %d has dimension %d, expected %d", i, len(v), len(vectors[0]))
		}
	}

	log.Debug().Int("chunks", len(chunks)).Msg("Generated embeddings")
	return vectors, nil
}

func (s *Service) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.embedder.EmbedDocuments(ctx, texts)
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
