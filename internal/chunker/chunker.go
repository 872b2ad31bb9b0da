package chunker

import (
	"iter"

	"pdf-chat/internal/models"
)

const DefaultChunkSize = 500

// Tokenizer maps text to token IDs and back.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// TokenChunker splits text into consecutive, non-overlapping windows of at
// most size tokens.
type TokenChunker struct {
	tokenizer Tokenizer
	size      int
}

func NewTokenChunker(tokenizer Tokenizer, size int) *TokenChunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &TokenChunker{tokenizer: tokenizer, size: size}
}

// Size returns the maximum number of tokens per chunk.
func (c *TokenChunker) Size() int { return c.size }

// Chunks returns a lazy sequence over the chunks of text. The text is
// encoded when iteration starts, so the sequence can be ranged over again.
func (c *TokenChunker) Chunks(text string) iter.Seq[models.Chunk] {
	return func(yield func(models.Chunk) bool) {
		if text == "" {
			return
		}
		tokens := c.tokenizer.Encode(text)
		for id, start := 0, 0; start < len(tokens); id, start = id+1, start+c.size {
			end := min(start+c.size, len(tokens))
			window := tokens[start:end:end]
			chunk := models.Chunk{
				ChunkID: id,
				Tokens:  window,
				Content: c.tokenizer.Decode(window),
			}
			if !yield(chunk) {
				return
			}
		}
	}
}

// Split collects every chunk of text.
func (c *TokenChunker) Split(text string) []models.Chunk {
	var chunks []models.Chunk
	for chunk := range c.Chunks(text) {
		chunks = append(chunks, chunk)
	}
	return chunks
}
