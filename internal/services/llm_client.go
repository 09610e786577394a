package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultLLMTimeout    = 60 * time.Second
	defaultLLMMaxRetries = 2
)

// ErrLLMUnconfigured is returned when no generative text provider is configured
var ErrLLMUnconfigured = errors.New("text generation provider is not configured")

// TextGenerator produces text from a system instruction and a user prompt
type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	Model() string
}

// OpenAIGenerator talks to any OpenAI-compatible chat completions endpoint
type OpenAIGenerator struct {
	client openaigo.Client
	model  string
}

// NewOpenAIGenerator creates a generator. httpClient may be nil.
func NewOpenAIGenerator(baseURL, apiKey, model string, httpClient *http.Client) (*OpenAIGenerator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrLLMUnconfigured
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM model is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultLLMTimeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(apiKey)),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(defaultLLMMaxRetries),
		option.WithRequestTimeout(defaultLLMTimeout),
	}
	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIGenerator{
		client: openaigo.NewClient(opts...),
		model:  strings.TrimSpace(model),
	}, nil
}

// Generate runs one chat completion and returns the first choice's content
func (g *OpenAIGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openaigo.ChatCompletionNewParams{
		Model: openaigo.ChatModel(g.model),
		Messages: []openaigo.ChatCompletionMessageParamUnion{
			openaigo.SystemMessage(system),
			openaigo.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm returned empty choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("llm returned empty content")
	}
	return content, nil
}

// Model returns the configured model name
func (g *OpenAIGenerator) Model() string {
	return g.model
}
