package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"noelle/internal/domain"
)

func TestAnthropicProviderChatStream(t *testing.T) {
	var got anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" || r.Header.Get("anthropic-version") != defaultAnthropicVersion {
			t.Errorf("unexpected headers: %v", r.Header)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		sseHandler(t,
			`{"type":"message_start","message":{"id":"msg_1"}}`,
			`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hi"}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" there"}}`,
			`{"type":"message_delta","delta":{"stop_reason":"end_turn"}}`,
			`{"type":"message_stop"}`,
		)(w, r)
	}))
	defer server.Close()

	p := NewAnthropicProvider(Credentials{APIKey: "test-key", BaseURL: server.URL}, server.Client(), newTestLogger())
	ch, err := p.ChatStream(context.Background(), []domain.Turn{
		{Role: domain.RoleSystem, Content: "sys"},
		{Role: domain.RoleUser, Content: "hello"},
	}, "claude-sonnet")
	if err != nil {
		t.Fatal(err)
	}
	chunks := collect(t, ch)

	if got.System != "sys" || len(got.Messages) != 1 || got.MaxTokens != defaultAnthropicMaxTokens {
		t.Errorf("unexpected request: %+v", got)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %+v", chunks)
	}
	if chunks[0].Result+chunks[1].Result != "Hi there" {
		t.Errorf("text = %q", chunks[0].Result+chunks[1].Result)
	}
	if !chunks[2].IsEnd {
		t.Error("message_stop should end the stream")
	}
}

func TestParseAnthropicErrorEvent(t *testing.T) {
	_, err := parseAnthropicEvent([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))
	if !errors.Is(err, domain.ErrRateLimit) {
		t.Errorf("expected ErrRateLimit, got %v", err)
	}
	_, err = parseAnthropicEvent([]byte(`{"type":"error","error":{"type":"api_error","message":"boom"}}`))
	if !errors.Is(err, domain.ErrProviderError) {
		t.Errorf("expected ErrProviderError, got %v", err)
	}
}

func TestParseAnthropicIgnoresOtherEvents(t *testing.T) {
	for _, data := range []string{
		`{"type":"ping"}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"content_block_delta","delta":{"type":"thinking_delta","thinking":"hmm"}}`,
	} {
		c, err := parseAnthropicEvent([]byte(data))
		if err != nil || c != nil {
			t.Errorf("%s: got %+v, %v", data, c, err)
		}
	}
}
