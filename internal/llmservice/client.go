package llmservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"pdf-chat/internal/apperr"
	"pdf-chat/internal/config"
)

// Completer submits a system instruction and a user prompt to a chat model.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Client is a Completer backed by a langchaingo model.
type Client struct {
	llm     llms.Model
	timeout time.Duration
}

// NewClient creates the chat model for the configured provider.
func NewClient(llmConfig *config.LLMConfig) (*Client, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":    llmConfig.Provider,
		"base_url":    llmConfig.BaseURL,
		"model":       llmConfig.Model,
		"api_version": llmConfig.APIVersion,
	}).Msg("Creating chat model")

	httpClient := &http.Client{Timeout: llmConfig.Timeout()}

	var (
		llm llms.Model
		err error
	)
	switch llmConfig.Provider {
	case config.ProviderOllama:
		llm, err = ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
			ollama.WithHTTPClient(httpClient),
		)
	case config.ProviderAzure:
		llm, err = openai.New(
			openai.WithAPIType(openai.APITypeAzure),
			openai.WithBaseURL(llmConfig.BaseURL),
			openai.WithAPIVersion(llmConfig.APIVersion),
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
			openai.WithHTTPClient(httpClient),
		)
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
			openai.WithHTTPClient(httpClient),
		}
		if llmConfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
		}
		llm, err = openai.New(opts...)
	default:
		err = fmt.Errorf("unsupported chat provider: %s", llmConfig.Provider)
	}
	if err != nil {
		return nil, apperr.New(apperr.KindConfig, "create chat model", err)
	}
	return NewClientWithModel(llm, llmConfig.Timeout()), nil
}

func NewClientWithModel(llm llms.Model, timeout time.Duration) *Client {
	return &Client{llm: llm, timeout: timeout}
}

// Complete returns the first choice of the model's response. Failures are
// classified into transient, invalid-request or unclassified completion errors.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	res, err := c.llm.GenerateContent(ctx, messages)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return "", apperr.New(Classify(err), "complete", err)
	}
	if len(res.Choices) == 0 {
		return "", apperr.New(apperr.KindCompletion, "complete", errors.New("model returned no choices"))
	}
	return res.Choices[0].Content, nil
}
