package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"noelle/internal/domain"
)

// GeminiProvider implements domain.ChatProvider for the Google Gemini API.
type GeminiProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewGeminiProvider creates a provider for the Gemini generateContent API.
func NewGeminiProvider(creds Credentials, client *http.Client, logger *slog.Logger) *GeminiProvider {
	baseURL := strings.TrimRight(creds.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	return &GeminiProvider{
		apiKey:  creds.APIKey,
		baseURL: baseURL,
		client:  client,
		logger:  logger,
	}
}

// Name implements domain.ChatProvider.
func (p *GeminiProvider) Name() string { return "gemini" }

// --- Gemini API wire types ---

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiStreamChunk struct {
	Candidates []geminiCandidate `json:"candidates"`
	Error      *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

func toGeminiRequest(turns []domain.Turn) geminiRequest {
	req := geminiRequest{}
	for _, t := range turns {
		switch t.Role {
		case domain.RoleSystem:
			req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: t.Content}}}
		case domain.RoleAssistant:
			req.Contents = append(req.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: t.Content}}})
		default:
			req.Contents = append(req.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: t.Content}}})
		}
	}
	return req
}

// ChatStream implements domain.ChatProvider.
func (p *GeminiProvider) ChatStream(ctx context.Context, turns []domain.Turn, model string) (<-chan domain.StreamChunk, error) {
	body, err := json.Marshal(toGeminiRequest(turns))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse&key=%s",
		p.baseURL, url.PathEscape(model), url.QueryEscape(p.apiKey))

	httpResp, err := doStreamRequest(ctx, p.client, endpoint, body, nil)
	if err != nil {
		return nil, err
	}
	return parseSSEStream(ctx, httpResp.Body, parseGeminiChunk), nil
}

// parseGeminiChunk concatenates the text parts of the first candidate. The
// candidate's finish reason ends the stream since Gemini sends no [DONE].
func parseGeminiChunk(data []byte) (*domain.UniversalChunk, error) {
	var chunk geminiStreamChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, fmt.Errorf("decode chunk: %w", err)
	}
	if chunk.Error != nil {
		return nil, fmt.Errorf("%w: gemini %s: %s", domain.ErrProviderError, chunk.Error.Status, chunk.Error.Message)
	}
	if len(chunk.Candidates) == 0 {
		return nil, nil
	}

	c := chunk.Candidates[0]
	out := &domain.UniversalChunk{IsEnd: c.FinishReason != ""}
	for _, part := range c.Content.Parts {
		out.Result += part.Text
	}
	return out, nil
}
