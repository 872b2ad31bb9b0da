package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"pdf-chat/internal/apperr"
	"pdf-chat/internal/config"
	"pdf-chat/internal/llmservice"
	"pdf-chat/internal/models"
	"pdf-chat/internal/parser"
	"pdf-chat/internal/vectorindex"
)

// Extractor pulls the text out of uploaded documents.
type Extractor func(docs []models.Document) (string, error)

type Chunker interface {
	Split(text string) []models.Chunk
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedChunks(ctx context.Context, chunks []models.Chunk) ([][]float32, error)
}

// HistoryStore persists transcripts keyed by username.
type HistoryStore interface {
	LoadHistory(ctx context.Context, username string) ([]models.ChatTurn, error)
	SaveHistory(ctx context.Context, username string, turns []models.ChatTurn) error
}

// Deps are the collaborators of the pipeline. Extract defaults to
// parser.ExtractDocuments and History may be nil.
type Deps struct {
	Extract   Extractor
	Chunker   Chunker
	Embedder  Embedder
	Builder   vectorindex.Builder
	Completer llmservice.Completer
	History   HistoryStore
}

type RAG struct {
	extract       Extractor
	chunker       Chunker
	embedder      Embedder
	builder       vectorindex.Builder
	llm           llmservice.Completer
	history       HistoryStore
	topK          int
	systemPrompt  string
	appendUploads bool
}

func NewRAG(deps Deps, cfg *config.RAGConfig) *RAG {
	extract := deps.Extract
	if extract == nil {
		extract = parser.ExtractDocuments
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	return &RAG{
		extract:       extract,
		chunker:       deps.Chunker,
		embedder:      deps.Embedder,
		builder:       deps.Builder,
		llm:           deps.Completer,
		history:       deps.History,
		topK:          topK,
		systemPrompt:  cfg.SystemPrompt,
		appendUploads: cfg.AppendUploads,
	}
}

// Upload extracts, chunks, embeds and indexes docs, then swaps the result
// into the session. On any error the previous index stays in place.
// It returns the number of indexed chunks.
func (r *RAG) Upload(ctx context.Context, sess *Session, docs []models.Document) (int, error) {
	sess.upload.Lock()
	defer sess.upload.Unlock()

	text, err := r.extract(docs)
	if err != nil {
		return 0, err
	}

	prev := sess.snapshot()
	if r.appendUploads && prev != nil && prev.corpus != "" {
		text = prev.corpus + "\n\n" + text
	}

	chunks := r.chunker.Split(text)
	if len(chunks) == 0 {
		return 0, apperr.New(apperr.KindExtraction, "upload", errors.New("no text could be extracted from the documents"))
	}

	vectors, err := r.embedder.EmbedChunks(ctx, chunks)
	if err != nil {
		return 0, err
	}

	index, err := r.builder.Build(ctx, vectors)
	if err != nil {
		return 0, fmt.Errorf("failed to build index: %w", err)
	}
	if index.Len() != len(chunks) {
		return 0, fmt.Errorf("failed to build index: %d vectors for %d chunks", index.Len(), len(chunks))
	}

	sess.replaceIndex(&indexState{index: index, chunks: chunks, corpus: text})
	log.Info().Str("session", sess.ID).Int("documents", len(docs)).Int("chunks", len(chunks)).Msg("Indexed documents")
	return len(chunks), nil
}

// Retrieve returns the texts of the k chunks nearest to query, nearest
// first. k <= 0 uses the configured top_k.
func (r *RAG) Retrieve(ctx context.Context, sess *Session, query string, k int) ([]string, error) {
	st := sess.snapshot()
	if st == nil || st.index.Len() == 0 {
		return nil, apperr.New(apperr.KindNoDocumentIndexed, "retrieve", nil)
	}
	if k <= 0 {
		k = r.topK
	}

	queryEmbedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		// a timed out question is reported like a rate-limited completion
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperr.New(apperr.KindCompletionTransient, "retrieve", err)
		}
		return nil, err
	}

	neighbors, err := st.index.Search(ctx, queryEmbedding, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	texts := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Position < 0 || n.Position >= len(st.chunks) {
			return nil, fmt.Errorf("index returned position %d for %d chunks", n.Position, len(st.chunks))
		}
		texts = append(texts, st.chunks[n.Position].Content)
	}
	log.Debug().Str("session", sess.ID).Int("k", k).Int("hits", len(texts)).Msg("Retrieved context")
	return texts, nil
}

// Answer submits the question with its context to the chat model and
// returns the trimmed response.
func (r *RAG) Answer(ctx context.Context, question string, contextChunks []string) (string, error) {
	answer, err := r.llm.Complete(ctx, r.systemPrompt, BuildPrompt(question, contextChunks))
	if err != nil {
		if !apperr.KindOf(err).IsCompletion() {
			err = apperr.New(apperr.KindCompletion, "answer", err)
		}
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// Ask answers question from the session's documents and records the turn.
// A failed retrieval or completion leaves the history untouched. If only
// persisting the history fails, the response is returned with the error.
func (r *RAG) Ask(ctx context.Context, sess *Session, question string) (*models.PromptResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperr.New(apperr.KindCompletionInvalidRequest, "ask", errors.New("question is empty"))
	}

	contextChunks, err := r.Retrieve(ctx, sess, question, r.topK)
	if err != nil {
		return nil, err
	}

	answer, err := r.Answer(ctx, question, contextChunks)
	if err != nil {
		return nil, err
	}

	response := &models.PromptResponse{Query: question, Source: contextChunks, Content: answer}
	turns := sess.appendTurns(
		models.ChatTurn{Role: models.RoleUser, Content: question},
		models.ChatTurn{Role: models.RoleAssistant, Content: answer},
	)

	if r.history != nil && sess.Username != "" {
		if err := r.history.SaveHistory(ctx, sess.Username, turns); err != nil {
			return response, err
		}
	}
	return response, nil
}

// LoadHistory seeds the session transcript from the history store.
func (r *RAG) LoadHistory(ctx context.Context, sess *Session) error {
	if r.history == nil || sess.Username == "" {
		return nil
	}
	turns, err := r.history.LoadHistory(ctx, sess.Username)
	if err != nil {
		return err
	}
	sess.setHistory(turns)
	return nil
}
