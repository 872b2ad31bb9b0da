package llmservice

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"pdf-chat/internal/apperr"
)

// statusCodeRegex matches the status reported by the openai client, e.g.
// "API returned unexpected status code: 429: Rate limit reached".
var statusCodeRegex = regexp.MustCompile(`status code:?\s*(\d{3})`)

var (
	transientMarkers = []string{"rate limit", "ratelimit", "too many requests", "quota", "overloaded", "timeout", "temporarily unavailable", "connection refused", "connection reset"}
	invalidMarkers   = []string{"context length", "context_length_exceeded", "maximum context", "invalid_request_error", "too long", "content_filter"}
)

// Classify maps an upstream chat error onto a completion error kind.
func Classify(err error) apperr.Kind {
	if err == nil {
		return apperr.KindUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.KindCompletionTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperr.KindCompletionTransient
	}

	if code, ok := StatusCode(err); ok {
		switch {
		case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout, code >= 500:
			return apperr.KindCompletionTransient
		case code == http.StatusBadRequest, code == http.StatusNotFound,
			code == http.StatusRequestEntityTooLarge, code == http.StatusUnprocessableEntity:
			return apperr.KindCompletionInvalidRequest
		}
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return apperr.KindCompletionTransient
		}
	}
	for _, marker := range invalidMarkers {
		if strings.Contains(msg, marker) {
			return apperr.KindCompletionInvalidRequest
		}
	}
	return apperr.KindCompletion
}

// StatusCode extracts the HTTP status embedded in an upstream error message.
func StatusCode(err error) (int, bool) {
	matches := statusCodeRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0, false
	}
	code, convErr := strconv.Atoi(matches[1])
	if convErr != nil {
		return 0, false
	}
	return code, true
}
