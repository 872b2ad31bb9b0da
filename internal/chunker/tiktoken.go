package chunker

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Tiktoken is the BPE tokenizer used by the OpenAI embedding and chat models.
type Tiktoken struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktoken loads the named encoding, e.g. cl100k_base. The BPE ranks are
// downloaded on first use and cached under TIKTOKEN_CACHE_DIR.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer %s: %w", encoding, err)
	}
	return &Tiktoken{encoding: enc}, nil
}

func (t *Tiktoken) Encode(text string) []int {
	return t.encoding.Encode(text, nil, nil)
}

func (t *Tiktoken) Decode(tokens []int) string {
	return t.encoding.Decode(tokens)
}
