package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same kind", New(KindExtraction, "parse", errors.New("bad xref")), ErrExtraction, true},
		{"other kind", New(KindExtraction, "parse", nil), ErrEmbeddingService, false},
		{"transient is completion", New(KindCompletionTransient, "complete", nil), ErrCompletionService, true},
		{"invalid is completion", New(KindCompletionInvalidRequest, "complete", nil), ErrCompletionService, true},
		{"transient is not invalid", New(KindCompletionTransient, "complete", nil), ErrCompletionInvalidRequest, false},
		{"completion is not transient", New(KindCompletion, "complete", nil), ErrCompletionTransient, false},
		{"wrapped", fmt.Errorf("upload: %w", New(KindEmbedding, "embed", nil)), ErrEmbeddingService, true},
		{"plain error", errors.New("boom"), ErrPersistence, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestUnwrapKeepsCause(t *testing.T) {
	err := New(KindCompletionTransient, "complete", context.DeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, KindCompletionTransient, KindOf(fmt.Errorf("ask: %w", err)))
	assert.Equal(t, KindUnknown, KindOf(errors.New("x")))
}

func TestUserMessage(t *testing.T) {
	assert.Empty(t, UserMessage(nil))
	assert.Equal(t, "Please upload a PDF file to analyze.", UserMessage(ErrNoDocumentIndexed))
	assert.Contains(t, UserMessage(New(KindCompletionInvalidRequest, "complete", errors.New("too long"))), "InvalidRequestError")
	assert.Contains(t, UserMessage(New(KindCompletionTransient, "complete", nil)), "APIError")
	assert.Contains(t, UserMessage(errors.New("boom")), "An unexpected error occurred: boom")

	upload := UserMessage(New(KindEmbedding, "embed chunks", errors.New("quota")))
	assert.Contains(t, upload, "previous documents are still available")
	question := UserMessage(fmt.Errorf("retrieve: %w", New(KindEmbedding, OpEmbedQuery, errors.New("refused"))))
	assert.Contains(t, question, "could not process the question")
	assert.NotContains(t, question, "previous documents")
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "ExtractionError: parse: eof", New(KindExtraction, "parse", errors.New("eof")).Error())
	assert.Equal(t, "NoDocumentIndexedError", ErrNoDocumentIndexed.Error())
}
