package models

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	ContextSeparator = "\n---\n"
)

var (
	// ContextPromptTemplate wraps the retrieved context and the question
	// into the single user message sent to the completion model.
	ContextPromptTemplate = `Here is the relevant document content:

%s

Question: %s`
)
