package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runeTokenizer treats every rune as one token.
type runeTokenizer struct {
	encodes int
}

func (r *runeTokenizer) Encode(text string) []int {
	r.encodes++
	tokens := make([]int, 0, len(text))
	for _, c := range text {
		tokens = append(tokens, int(c))
	}
	return tokens
}

func (r *runeTokenizer) Decode(tokens []int) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteRune(rune(t))
	}
	return b.String()
}

func TestChunksReconstructTokenStream(t *testing.T) {
	inputs := []string{
		"a",
		"hello world",
		strings.Repeat("lorem ipsum dolor sit amet ", 40),
		"héllo wörld ✓ 日本語",
	}
	sizes := []int{1, 3, 7, 500}

	for _, input := range inputs {
		for _, size := range sizes {
			tok := &runeTokenizer{}
			c := NewTokenChunker(tok, size)
			want := tok.Encode(input)

			var got []int
			var text strings.Builder
			chunks := c.Split(input)
			for i, chunk := range chunks {
				assert.Equal(t, i, chunk.ChunkID)
				assert.LessOrEqual(t, len(chunk.Tokens), size)
				assert.NotEmpty(t, chunk.Tokens)
				got = append(got, chunk.Tokens...)
				text.WriteString(chunk.Content)
			}

			assert.Equal(t, want, got)
			assert.Equal(t, input, text.String())
			assert.Equal(t, (len(want)+size-1)/size, len(chunks))
		}
	}
}

func TestChunksLastChunkHoldsRemainder(t *testing.T) {
	c := NewTokenChunker(&runeTokenizer{}, 4)
	chunks := c.Split("abcdefghij")
	require.Len(t, chunks, 3)
	assert.Equal(t, "abcd", chunks[0].Content)
	assert.Equal(t, "efgh", chunks[1].Content)
	assert.Equal(t, "ij", chunks[2].Content)
}

func TestChunksEmptyText(t *testing.T) {
	tok := &runeTokenizer{}
	c := NewTokenChunker(tok, 10)
	assert.Empty(t, c.Split(""))
	assert.Zero(t, tok.encodes)
}

func TestChunksLazyAndRestartable(t *testing.T) {
	tok := &runeTokenizer{}
	c := NewTokenChunker(tok, 2)
	seq := c.Chunks("abcdef")
	assert.Zero(t, tok.encodes)

	var first []string
	for chunk := range seq {
		first = append(first, chunk.Content)
		if len(first) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"ab", "cd"}, first)

	var second []string
	for chunk := range seq {
		second = append(second, chunk.Content)
	}
	assert.Equal(t, []string{"ab", "cd", "ef"}, second)
	assert.Equal(t, 2, tok.encodes)
}

func TestChunkTokensAreIsolated(t *testing.T) {
	c := NewTokenChunker(&runeTokenizer{}, 2)
	chunks := c.Split("abcd")
	require.Len(t, chunks, 2)

	chunks[0].Tokens = append(chunks[0].Tokens, 'z')
	assert.Equal(t, []int{'c', 'd'}, chunks[1].Tokens)
}

func TestNewTokenChunkerDefaultSize(t *testing.T) {
	assert.Equal(t, DefaultChunkSize, NewTokenChunker(&runeTokenizer{}, 0).Size())
}
