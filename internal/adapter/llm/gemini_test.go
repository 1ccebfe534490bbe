package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"noelle/internal/domain"
)

func TestGeminiProviderChatStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-2.0-flash:streamGenerateContent" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("alt") != "sse" || r.URL.Query().Get("key") != "k" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		sseHandler(t,
			`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hel"},{"text":"lo"}]}}]}`,
			`{"candidates":[{"content":{"role":"model","parts":[{"text":"!"}]},"finishReason":"STOP"}]}`,
		)(w, r)
	}))
	defer server.Close()

	p := NewGeminiProvider(Credentials{APIKey: "k", BaseURL: server.URL}, server.Client(), newTestLogger())
	ch, err := p.ChatStream(context.Background(), []domain.Turn{{Role: domain.RoleUser, Content: "hi"}}, "gemini-2.0-flash")
	if err != nil {
		t.Fatal(err)
	}
	chunks := collect(t, ch)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %+v", chunks)
	}
	if chunks[0].Result != "Hello" || chunks[0].IsEnd {
		t.Errorf("chunk 0 = %+v", chunks[0])
	}
	if chunks[1].Result != "!" || !chunks[1].IsEnd {
		t.Errorf("chunk 1 = %+v", chunks[1])
	}
}

func TestToGeminiRequestRoles(t *testing.T) {
	req := toGeminiRequest([]domain.Turn{
		{Role: domain.RoleSystem, Content: "s"},
		{Role: domain.RoleUser, Content: "u"},
		{Role: domain.RoleAssistant, Content: "a"},
	})
	if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != "s" {
		t.Errorf("system instruction = %+v", req.SystemInstruction)
	}
	if len(req.Contents) != 2 || req.Contents[0].Role != "user" || req.Contents[1].Role != "model" {
		t.Errorf("contents = %+v", req.Contents)
	}
}

func TestParseGeminiErrorChunk(t *testing.T) {
	_, err := parseGeminiChunk([]byte(`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`))
	if err == nil {
		t.Fatal("expected error")
	}
}
