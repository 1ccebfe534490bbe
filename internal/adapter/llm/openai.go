package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"noelle/internal/domain"
)

// Default endpoints for OpenAI-compatible vendors that publish a fixed one.
var openAIDefaultBaseURLs = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"openrouter": "https://openrouter.ai/api/v1",
	"ollama":     "http://localhost:11434/v1",
}

// OpenAIProvider implements domain.ChatProvider for any OpenAI-compatible
// chat completions API (DeepSeek, DashScope, OpenAI, OpenRouter, Ollama).
type OpenAIProvider struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewOpenAIProvider creates a provider bound to one set of credentials.
func NewOpenAIProvider(name string, creds Credentials, client *http.Client, logger *slog.Logger) *OpenAIProvider {
	baseURL := strings.TrimRight(creds.BaseURL, "/")
	if baseURL == "" {
		baseURL = openAIDefaultBaseURLs[name]
	}
	return &OpenAIProvider{
		name:    name,
		apiKey:  creds.APIKey,
		baseURL: baseURL,
		client:  client,
		logger:  logger,
	}
}

// Name implements domain.ChatProvider.
func (p *OpenAIProvider) Name() string { return p.name }

// --- OpenAI wire types ---

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiRequest struct {
	Model    string          `json:"model"`
	Messages []openaiMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type openaiStreamChunk struct {
	ID      string               `json:"id"`
	Choices []openaiStreamChoice `json:"choices"`
	Error   *openaiError         `json:"error,omitempty"`
}

type openaiStreamChoice struct {
	Index        int               `json:"index"`
	Delta        openaiStreamDelta `json:"delta"`
	FinishReason *string           `json:"finish_reason"`
}

type openaiStreamDelta struct {
	Content *string `json:"content"`
}

type openaiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

func toOpenAIRequest(turns []domain.Turn, model string) openaiRequest {
	msgs := make([]openaiMessage, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, openaiMessage{Role: string(t.Role), Content: t.Content})
	}
	return openaiRequest{Model: model, Messages: msgs, Stream: true}
}

// ChatStream implements domain.ChatProvider.
func (p *OpenAIProvider) ChatStream(ctx context.Context, turns []domain.Turn, model string) (<-chan domain.StreamChunk, error) {
	body, err := json.Marshal(toOpenAIRequest(turns, model))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	headers := map[string]string{}
	if p.apiKey != "" {
		headers["Authorization"] = "Bearer " + p.apiKey
	}
	if p.name == "openrouter" {
		headers["X-Title"] = "noelle"
	}

	httpResp, err := doStreamRequest(ctx, p.client, p.baseURL+"/chat/completions", body, headers)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("openai stream opened", "provider", p.name, "model", model)
	return parseSSEStream(ctx, httpResp.Body, parseOpenAIChunk), nil
}

// parseOpenAIChunk maps one completion chunk: the first choice's delta
// content is the result and any finish reason ends the stream.
func parseOpenAIChunk(data []byte) (*domain.UniversalChunk, error) {
	var chunk openaiStreamChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, fmt.Errorf("decode chunk: %w", err)
	}
	if chunk.Error != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderError, chunk.Error.Message)
	}
	if len(chunk.Choices) == 0 {
		return nil, nil
	}

	c := chunk.Choices[0]
	out := &domain.UniversalChunk{}
	if c.Delta.Content != nil {
		out.Result = *c.Delta.Content
	}
	if c.FinishReason != nil && *c.FinishReason != "" {
		out.IsEnd = true
	}
	return out, nil
}
