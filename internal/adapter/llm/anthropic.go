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

const (
	defaultAnthropicVersion   = "2023-06-01"
	defaultAnthropicMaxTokens = 4096
)

// AnthropicProvider implements domain.ChatProvider for the Anthropic Messages API.
type AnthropicProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
	version string
}

// NewAnthropicProvider creates a provider for the Anthropic Messages API.
func NewAnthropicProvider(creds Credentials, client *http.Client, logger *slog.Logger) *AnthropicProvider {
	baseURL := strings.TrimRight(creds.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	return &AnthropicProvider{
		apiKey:  creds.APIKey,
		baseURL: baseURL,
		client:  client,
		logger:  logger,
		version: defaultAnthropicVersion,
	}
}

// Name implements domain.ChatProvider.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// --- Anthropic wire types ---

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Stream    bool               `json:"stream"`
}

type anthropicStreamEvent struct {
	Type  string          `json:"type"`
	Delta json.RawMessage `json:"delta,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type anthropicDeltaText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func toAnthropicRequest(turns []domain.Turn, model string) anthropicRequest {
	req := anthropicRequest{Model: model, MaxTokens: defaultAnthropicMaxTokens, Stream: true}
	var system []string
	for _, t := range turns {
		if t.Role == domain.RoleSystem {
			system = append(system, t.Content)
			continue
		}
		req.Messages = append(req.Messages, anthropicMessage{Role: string(t.Role), Content: t.Content})
	}
	req.System = strings.Join(system, "\n")
	return req
}

// ChatStream implements domain.ChatProvider.
func (p *AnthropicProvider) ChatStream(ctx context.Context, turns []domain.Turn, model string) (<-chan domain.StreamChunk, error) {
	body, err := json.Marshal(toAnthropicRequest(turns, model))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": p.version,
	}

	httpResp, err := doStreamRequest(ctx, p.client, p.baseURL+"/v1/messages", body, headers)
	if err != nil {
		return nil, err
	}

	// Anthropic pairs "event:" and "data:" lines; the data JSON repeats the
	// event type so the data line alone is enough.
	return parseSSEStream(ctx, httpResp.Body, parseAnthropicEvent), nil
}

func parseAnthropicEvent(data []byte) (*domain.UniversalChunk, error) {
	var evt anthropicStreamEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	switch evt.Type {
	case "content_block_delta":
		var td anthropicDeltaText
		if err := json.Unmarshal(evt.Delta, &td); err == nil && td.Type == "text_delta" {
			return &domain.UniversalChunk{Result: td.Text}, nil
		}
		return nil, nil

	case "message_stop":
		return &domain.UniversalChunk{IsEnd: true}, nil

	case "error":
		msg := "unknown error"
		if evt.Error != nil {
			msg = evt.Error.Type + ": " + evt.Error.Message
			if evt.Error.Type == "overloaded_error" || evt.Error.Type == "rate_limit_error" {
				return nil, fmt.Errorf("%w: %s", domain.ErrRateLimit, msg)
			}
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderError, msg)

	default:
		return nil, nil
	}
}
