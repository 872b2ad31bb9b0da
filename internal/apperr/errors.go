package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can pick a user-facing message
// without inspecting upstream error strings.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfig
	KindExtraction
	KindEmbedding
	KindNoDocumentIndexed
	KindCompletionTransient
	KindCompletionInvalidRequest
	KindCompletion
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "ConfigError"
	case KindExtraction:
		return "ExtractionError"
	case KindEmbedding:
		return "EmbeddingServiceError"
	case KindNoDocumentIndexed:
		return "NoDocumentIndexedError"
	case KindCompletionTransient:
		return "CompletionServiceError(transient)"
	case KindCompletionInvalidRequest:
		return "CompletionServiceError(invalid request)"
	case KindCompletion:
		return "CompletionServiceError"
	case KindPersistence:
		return "PersistenceError"
	default:
		return "UnknownError"
	}
}

// IsCompletion reports whether k is one of the completion service kinds.
func (k Kind) IsCompletion() bool {
	return k == KindCompletion || k == KindCompletionTransient || k == KindCompletionInvalidRequest
}

// Error is the typed error returned by every external-call wrapper.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by kind. ErrCompletionService matches all completion kinds.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Err != nil {
		return false
	}
	if t.Kind == KindCompletion {
		return e.Kind.IsCompletion()
	}
	return e.Kind == t.Kind
}

var (
	ErrConfig                   = &Error{Kind: KindConfig}
	ErrExtraction               = &Error{Kind: KindExtraction}
	ErrEmbeddingService         = &Error{Kind: KindEmbedding}
	ErrNoDocumentIndexed        = &Error{Kind: KindNoDocumentIndexed}
	ErrCompletionService        = &Error{Kind: KindCompletion}
	ErrCompletionTransient      = &Error{Kind: KindCompletionTransient}
	ErrCompletionInvalidRequest = &Error{Kind: KindCompletionInvalidRequest}
	ErrPersistence              = &Error{Kind: KindPersistence}
)

// OpEmbedQuery names the embedding of a question, as opposed to an upload.
const OpEmbedQuery = "embed query"

// New wraps err with a kind and operation name.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf is New with a formatted cause.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// UserMessage turns any pipeline error into the message shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case KindConfig:
		return fmt.Sprintf("Configuration error: %v", err)
	case KindExtraction:
		return fmt.Sprintf("Could not read the uploaded document: %v", err)
	case KindEmbedding:
		var e *Error
		if errors.As(err, &e) && e.Op == OpEmbedQuery {
			return fmt.Sprintf("The embedding service could not process the question, please try again: %v", err)
		}
		return fmt.Sprintf("The embedding service failed, the previous documents are still available: %v", err)
	case KindNoDocumentIndexed:
		return "Please upload a PDF file to analyze."
	case KindCompletionTransient:
		return fmt.Sprintf("APIError: the service is rate limited or timed out, please try again: %v", err)
	case KindCompletionInvalidRequest:
		return fmt.Sprintf("InvalidRequestError: %v", err)
	case KindCompletion:
		return fmt.Sprintf("An unexpected error occurred: %v", err)
	case KindPersistence:
		return fmt.Sprintf("Chat history is unavailable: %v", err)
	default:
		return fmt.Sprintf("An unexpected error occurred: %v", err)
	}
}
