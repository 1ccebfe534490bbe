package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"noelle/internal/domain"
)

func qianfanServer(t *testing.T, tokenCalls *int32, chat http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/2.0/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(tokenCalls, 1)
		q := r.URL.Query()
		if q.Get("grant_type") != "client_credentials" || q.Get("client_id") != "ak" || q.Get("client_secret") != "sk" {
			t.Errorf("unexpected token query: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"access_token":"tok-1","expires_in":2592000}`))
	})
	mux.HandleFunc("/rpc/2.0/ai_custom/v1/wenxinworkshop/chat/", chat)
	return httptest.NewServer(mux)
}

func TestQianfanProviderChatStream(t *testing.T) {
	var tokenCalls int32
	var got qianfanRequest
	server := qianfanServer(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rpc/2.0/ai_custom/v1/wenxinworkshop/chat/eb-instant" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("access_token") != "tok-1" {
			t.Errorf("missing access token: %s", r.URL.RawQuery)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		sseHandler(t,
			`{"id":"as-1","result":"你好","is_end":false}`,
			`{"id":"as-1","result":"！","is_end":true}`,
		)(w, r)
	})
	defer server.Close()

	p := NewQianfanProvider(Credentials{AccessKey: "ak", SecretKey: "sk", BaseURL: server.URL}, server.Client(), newTestLogger())
	turns := []domain.Turn{
		{Role: domain.RoleSystem, Content: "be brief"},
		{Role: domain.RoleUser, Content: "hi"},
	}

	for i := 0; i < 2; i++ {
		ch, err := p.ChatStream(context.Background(), turns, "ERNIE-Bot-turbo")
		if err != nil {
			t.Fatalf("ChatStream: %v", err)
		}
		chunks := collect(t, ch)
		if len(chunks) != 2 {
			t.Fatalf("expected 2 chunks, got %+v", chunks)
		}
		if chunks[0].Result != "你好" || chunks[0].IsEnd {
			t.Errorf("chunk 0 = %+v", chunks[0])
		}
		if !chunks[1].IsEnd {
			t.Errorf("chunk 1 should be terminal: %+v", chunks[1])
		}
	}

	if got.System != "be brief" {
		t.Errorf("system = %q", got.System)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", got.Messages)
	}
	if n := atomic.LoadInt32(&tokenCalls); n != 1 {
		t.Errorf("token fetched %d times, want 1", n)
	}
}

func TestQianfanProviderRefreshesExpiredToken(t *testing.T) {
	var tokenCalls int32
	server := qianfanServer(t, &tokenCalls, sseHandler(t, `{"result":"x","is_end":true}`))
	defer server.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewQianfanProvider(Credentials{AccessKey: "ak", SecretKey: "sk", BaseURL: server.URL}, server.Client(), newTestLogger())
	p.now = func() time.Time { return now }

	if _, err := p.accessToken(context.Background()); err != nil {
		t.Fatal(err)
	}
	now = now.Add(31 * 24 * time.Hour)
	if _, err := p.accessToken(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&tokenCalls); n != 2 {
		t.Errorf("token fetched %d times, want 2", n)
	}
}

func TestQianfanProviderErrorBody(t *testing.T) {
	var tokenCalls int32
	server := qianfanServer(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error_code":18,"error_msg":"Open api qps request limit reached"}`))
	})
	defer server.Close()

	p := NewQianfanProvider(Credentials{AccessKey: "ak", SecretKey: "sk", BaseURL: server.URL}, server.Client(), newTestLogger())
	_, err := p.ChatStream(context.Background(), []domain.Turn{{Role: domain.RoleUser, Content: "hi"}}, "ERNIE-Bot")
	if !errors.Is(err, domain.ErrRateLimit) {
		t.Fatalf("expected ErrRateLimit, got %v", err)
	}
}

func TestQianfanProviderTokenRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"unknown client id"}`))
	}))
	defer server.Close()

	p := NewQianfanProvider(Credentials{AccessKey: "ak", SecretKey: "sk", BaseURL: server.URL}, server.Client(), newTestLogger())
	_, err := p.ChatStream(context.Background(), nil, "ERNIE-Bot")
	if !errors.Is(err, domain.ErrAuthInvalid) {
		t.Fatalf("expected ErrAuthInvalid, got %v", err)
	}
}

func TestQianfanEndpoint(t *testing.T) {
	if got := qianfanEndpoint("ERNIE-Bot-4"); got != "completions_pro" {
		t.Errorf("ERNIE-Bot-4 -> %q", got)
	}
	if got := qianfanEndpoint("my-deployment"); got != "my-deployment" {
		t.Errorf("custom -> %q", got)
	}
}
