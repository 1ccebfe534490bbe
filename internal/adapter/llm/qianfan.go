package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"noelle/internal/domain"
)

const qianfanDefaultBaseURL = "https://aip.baidubce.com"

// qianfanEndpoints maps model names to chat endpoint suffixes. Unknown
// models are used as the endpoint verbatim, which covers custom deployments.
var qianfanEndpoints = map[string]string{
	"ERNIE-Bot-turbo":    "eb-instant",
	"ERNIE-Bot":          "completions",
	"ERNIE-Bot-4":        "completions_pro",
	"ERNIE-Bot-8K":       "ernie_bot_8k",
	"ERNIE-3.5-8K":       "completions",
	"ERNIE-4.0-8K":       "completions_pro",
	"ERNIE-Speed-8K":     "ernie_speed",
	"ERNIE-Speed-128K":   "ernie-speed-128k",
	"ERNIE-Lite-8K":      "ernie-lite-8k",
	"ERNIE-Tiny-8K":      "ernie-tiny-8k",
	"ERNIE-Character-8K": "ernie-char-8k",
}

// tokenSkew renews the access token slightly before it expires.
const tokenSkew = time.Minute

// QianfanProvider implements domain.ChatProvider for Baidu Qianfan.
type QianfanProvider struct {
	accessKey string
	secretKey string
	baseURL   string
	client    *http.Client
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewQianfanProvider creates a provider. No token is fetched until the first
// stream is opened.
func NewQianfanProvider(creds Credentials, client *http.Client, logger *slog.Logger) *QianfanProvider {
	baseURL := strings.TrimRight(creds.BaseURL, "/")
	if baseURL == "" {
		baseURL = qianfanDefaultBaseURL
	}
	return &QianfanProvider{
		accessKey: creds.AccessKey,
		secretKey: creds.SecretKey,
		baseURL:   baseURL,
		client:    client,
		logger:    logger,
		now:       time.Now,
	}
}

// Name implements domain.ChatProvider.
func (p *QianfanProvider) Name() string { return "qianfan" }

// --- Qianfan wire types ---

type qianfanMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type qianfanRequest struct {
	Messages []qianfanMessage `json:"messages"`
	System   string           `json:"system,omitempty"`
	Stream   bool             `json:"stream"`
}

type qianfanChunk struct {
	ID        string `json:"id"`
	Result    string `json:"result"`
	IsEnd     bool   `json:"is_end"`
	ErrorCode int    `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

type qianfanToken struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// toQianfanRequest moves system turns into the dedicated system field; the
// messages array only accepts user and assistant roles.
func toQianfanRequest(turns []domain.Turn) qianfanRequest {
	req := qianfanRequest{Stream: true}
	var system []string
	for _, t := range turns {
		if t.Role == domain.RoleSystem {
			system = append(system, t.Content)
			continue
		}
		req.Messages = append(req.Messages, qianfanMessage{Role: string(t.Role), Content: t.Content})
	}
	req.System = strings.Join(system, "\n")
	return req
}

func qianfanEndpoint(model string) string {
	if ep, ok := qianfanEndpoints[model]; ok {
		return ep
	}
	return model
}

// accessToken returns a cached OAuth token, fetching a new one when absent
// or about to expire.
func (p *QianfanProvider) accessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" && p.now().Before(p.expires) {
		return p.token, nil
	}

	q := url.Values{}
	q.Set("grant_type", "client_credentials")
	q.Set("client_id", p.accessKey)
	q.Set("client_secret", p.secretKey)

	body, err := doJSONRequest(ctx, p.client, http.MethodPost, p.baseURL+"/oauth/2.0/token?"+q.Encode(), nil, nil)
	if err != nil {
		return "", fmt.Errorf("qianfan token: %w", err)
	}
	var tok qianfanToken
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("qianfan token: decode: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("qianfan token: %w: %s %s", domain.ErrAuthInvalid, tok.Error, tok.ErrorDescription)
	}

	p.token = tok.AccessToken
	p.expires = p.now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenSkew)
	return p.token, nil
}

// ChatStream implements domain.ChatProvider.
func (p *QianfanProvider) ChatStream(ctx context.Context, turns []domain.Turn, model string) (<-chan domain.StreamChunk, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(toQianfanRequest(turns))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/rpc/2.0/ai_custom/v1/wenxinworkshop/chat/%s?access_token=%s",
		p.baseURL, url.PathEscape(qianfanEndpoint(model)), url.QueryEscape(token))
	httpResp, err := doStreamRequest(ctx, p.client, endpoint, body, nil)
	if err != nil {
		return nil, err
	}

	// Errors come back as a plain JSON body with status 200.
	if !strings.HasPrefix(httpResp.Header.Get("Content-Type"), "text/event-stream") {
		defer httpResp.Body.Close()
		raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if err := qianfanBodyError(raw); err != nil {
			return nil, err
		}
		// A non-SSE success still carries a single chunk.
		return parseSSEStream(ctx, io.NopCloser(bytes.NewReader(append([]byte("data: "), raw...))), parseQianfanChunk), nil
	}

	return parseSSEStream(ctx, httpResp.Body, parseQianfanChunk), nil
}

func qianfanBodyError(raw []byte) error {
	var c qianfanChunk
	if err := json.Unmarshal(raw, &c); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return c.err()
}

func (c qianfanChunk) err() error {
	if c.ErrorCode == 0 {
		return nil
	}
	switch c.ErrorCode {
	case 18, 4:
		return fmt.Errorf("%w: qianfan %d: %s", domain.ErrRateLimit, c.ErrorCode, c.ErrorMsg)
	case 110, 111, 6:
		return fmt.Errorf("%w: qianfan %d: %s", domain.ErrAuthInvalid, c.ErrorCode, c.ErrorMsg)
	default:
		return fmt.Errorf("%w: qianfan %d: %s", domain.ErrProviderError, c.ErrorCode, c.ErrorMsg)
	}
}

func parseQianfanChunk(data []byte) (*domain.UniversalChunk, error) {
	var c qianfanChunk
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode chunk: %w", err)
	}
	if err := c.err(); err != nil {
		return nil, err
	}
	return &domain.UniversalChunk{IsEnd: c.IsEnd, Result: c.Result}, nil
}
