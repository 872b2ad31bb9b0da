package rag

import (
	"fmt"
	"strings"

	"pdf-chat/internal/models"
)

// BuildPrompt joins the context chunks and appends the question.
func BuildPrompt(question string, contextChunks []string) string {
	return fmt.Sprintf(models.ContextPromptTemplate, strings.Join(contextChunks, models.ContextSeparator), question)
}
