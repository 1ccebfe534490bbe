package llm

import (
	"errors"
	"net/http"
	"testing"

	"noelle/internal/domain"
	"noelle/internal/infra/config"
)

type mapSettings map[string]any

func (m mapSettings) Get(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

func newTestFactory(blob any, seed ...config.ProviderConfig) *Factory {
	settings := mapSettings{}
	if blob != nil {
		settings[domain.KeyProvider] = blob
	}
	return NewFactory(settings, config.LLMConfig{Providers: seed}, http.DefaultClient, newTestLogger())
}

func TestFactoryUnknownProvider(t *testing.T) {
	f := newTestFactory(nil)
	_, err := f.Create("groq")
	if !errors.Is(err, domain.ErrProviderNotFound) {
		t.Fatalf("expected ErrProviderNotFound, got %v", err)
	}
	if err.Error() != "provider groq not found" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestFactoryMissingCredentials(t *testing.T) {
	tests := []struct {
		name string
		blob string
		msg  string
	}{
		{"deepseek", `{"deepseek":{"baseUrl":"https://api.deepseek.com"}}`, "deepseek apiKey or baseUrl not found"},
		{"deepseek", `{"deepseek":{"apiKey":"k"}}`, "deepseek apiKey or baseUrl not found"},
		{"dashscope", `{}`, "dashscope apiKey or baseUrl not found"},
		{"qianfan", `{"qianfan":{"accessKey":"a"}}`, "qianfan accessKey or secretKey not found"},
		{"openai", `{}`, "openai apiKey not found"},
		{"anthropic", `{}`, "anthropic apiKey not found"},
		{"gemini", `{}`, "gemini apiKey not found"},
		{"bedrock", `{}`, "bedrock region not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestFactory(tt.blob).Create(tt.name)
			if !errors.Is(err, domain.ErrMissingCredentials) {
				t.Fatalf("expected ErrMissingCredentials, got %v", err)
			}
			if err.Error() != tt.msg {
				t.Errorf("message = %q, want %q", err.Error(), tt.msg)
			}
		})
	}
}

func TestFactoryDisabled(t *testing.T) {
	f := newTestFactory(`{"deepseek":{"apiKey":"k","baseUrl":"u","disabled":true}}`)
	_, err := f.Create("deepseek")
	if !errors.Is(err, domain.ErrProviderDisabled) {
		t.Fatalf("expected ErrProviderDisabled, got %v", err)
	}
}

func TestFactoryBuildsEachKind(t *testing.T) {
	f := newTestFactory(`{
		"deepseek":{"apiKey":"k","baseUrl":"https://api.deepseek.com"},
		"dashscope":{"apiKey":"k","baseUrl":"https://dashscope.aliyuncs.com/compatible-mode/v1"},
		"qianfan":{"accessKey":"a","secretKey":"s"},
		"anthropic":{"apiKey":"k"},
		"gemini":{"apiKey":"k"},
		"bedrock":{"region":"us-west-2"}
	}`)
	for _, name := range []string{"deepseek", "dashscope", "qianfan", "anthropic", "gemini", "bedrock", "ollama"} {
		p, err := f.Create(name)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if p.Name() != name {
			t.Errorf("Name() = %q, want %q", p.Name(), name)
		}
	}
}

func TestFactorySeedFillsGaps(t *testing.T) {
	f := newTestFactory(`{"deepseek":{"apiKey":"from-settings"}}`,
		config.ProviderConfig{Name: "deepseek", APIKey: "from-config", BaseURL: "https://api.deepseek.com"})

	if _, err := f.Create("deepseek"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	cached := f.cache["deepseek"]
	if cached.creds.APIKey != "from-settings" {
		t.Errorf("settings value should win, got %q", cached.creds.APIKey)
	}
	if cached.creds.BaseURL != "https://api.deepseek.com" {
		t.Errorf("seed should fill baseUrl, got %q", cached.creds.BaseURL)
	}
}

func TestFactoryAcceptsDecodedBlob(t *testing.T) {
	f := newTestFactory(map[string]any{
		"anthropic": map[string]any{"apiKey": "k"},
	})
	if _, err := f.Create("anthropic"); err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func TestFactoryMalformedBlobReadsAsEmpty(t *testing.T) {
	_, err := newTestFactory(`{not json`).Create("deepseek")
	if !errors.Is(err, domain.ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestFactoryReusesAdapterUntilCredentialsChange(t *testing.T) {
	settings := mapSettings{domain.KeyProvider: `{"qianfan":{"accessKey":"a","secretKey":"s"}}`}
	f := NewFactory(settings, config.LLMConfig{}, http.DefaultClient, newTestLogger())

	if _, err := f.Create("qianfan"); err != nil {
		t.Fatal(err)
	}
	first := f.cache["qianfan"].provider
	if _, err := f.Create("qianfan"); err != nil {
		t.Fatal(err)
	}
	if f.cache["qianfan"].provider != first {
		t.Error("adapter should be reused while credentials are unchanged")
	}

	settings[domain.KeyProvider] = `{"qianfan":{"accessKey":"b","secretKey":"s"}}`
	if _, err := f.Create("qianfan"); err != nil {
		t.Fatal(err)
	}
	if f.cache["qianfan"].provider == first {
		t.Error("adapter should be rebuilt after credentials change")
	}
}

func TestFactoryWrapsWithBreakerWhenEnabled(t *testing.T) {
	settings := mapSettings{domain.KeyProvider: `{"anthropic":{"apiKey":"k"}}`}
	cfg := config.LLMConfig{CircuitBreaker: config.CircuitBreakerConfig{Enabled: true, MaxFailures: 2}}
	f := NewFactory(settings, cfg, http.DefaultClient, newTestLogger())

	p1, err := f.Create("anthropic")
	if err != nil {
		t.Fatal(err)
	}
	p2, _ := f.Create("anthropic")
	cb1, ok := p1.(*CircuitBreakerProvider)
	if !ok {
		t.Fatalf("expected circuit breaker wrapper, got %T", p1)
	}
	cb2 := p2.(*CircuitBreakerProvider)
	if cb1.breaker != cb2.breaker {
		t.Error("breaker should be shared per provider name")
	}
}
