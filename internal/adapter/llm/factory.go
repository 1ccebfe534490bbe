package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"noelle/internal/domain"
	"noelle/internal/infra/config"
)

// Credentials is one entry of the provider settings blob.
type Credentials struct {
	APIKey    string `json:"apiKey,omitempty"`
	BaseURL   string `json:"baseUrl,omitempty"`
	AccessKey string `json:"accessKey,omitempty"`
	SecretKey string `json:"secretKey,omitempty"`
	Region    string `json:"region,omitempty"`
	Disabled  bool   `json:"disabled,omitempty"`
}

// merge fills empty fields of c from seed.
func (c Credentials) merge(seed Credentials) Credentials {
	if c.APIKey == "" {
		c.APIKey = seed.APIKey
	}
	if c.BaseURL == "" {
		c.BaseURL = seed.BaseURL
	}
	if c.AccessKey == "" {
		c.AccessKey = seed.AccessKey
	}
	if c.SecretKey == "" {
		c.SecretKey = seed.SecretKey
	}
	if c.Region == "" {
		c.Region = seed.Region
	}
	c.Disabled = c.Disabled || seed.Disabled
	return c
}

// SettingsSource is the read side of the settings store the factory needs.
type SettingsSource interface {
	Get(key string) (any, bool)
}

// factoryError keeps the user-facing message verbatim while still matching
// the wrapped sentinel with errors.Is.
type factoryError struct {
	msg string
	err error
}

func (e *factoryError) Error() string { return e.msg }
func (e *factoryError) Unwrap() error { return e.err }

func missing(name, fields string) error {
	return &factoryError{msg: fmt.Sprintf("%s %s not found", name, fields), err: domain.ErrMissingCredentials}
}

// Factory builds providers from the current settings on every call, so
// credential edits apply to the next dialogue without a restart.
type Factory struct {
	settings SettingsSource
	seed     map[string]Credentials
	client   *http.Client
	cbCfg    config.CircuitBreakerConfig
	logger   *slog.Logger

	mu       sync.Mutex
	breakers map[string]*streamBreaker
	cache    map[string]cachedProvider
}

// cachedProvider lets stateful adapters (Qianfan token, Bedrock client)
// survive across constructions while their credentials are unchanged.
type cachedProvider struct {
	creds    Credentials
	provider domain.ChatProvider
}

// NewFactory creates a factory. cfg.Providers seeds credentials the
// settings blob leaves empty.
func NewFactory(settings SettingsSource, cfg config.LLMConfig, client *http.Client, logger *slog.Logger) *Factory {
	seed := make(map[string]Credentials, len(cfg.Providers))
	for _, p := range cfg.Providers {
		seed[p.Name] = Credentials{
			APIKey:    p.APIKey,
			BaseURL:   p.BaseURL,
			AccessKey: p.AccessKey,
			SecretKey: p.SecretKey,
			Region:    p.Region,
			Disabled:  p.Disabled,
		}
	}
	return &Factory{
		settings: settings,
		seed:     seed,
		client:   client,
		cbCfg:    cfg.CircuitBreaker,
		logger:   logger,
		breakers: make(map[string]*streamBreaker),
		cache:    make(map[string]cachedProvider),
	}
}

// Create implements domain.ProviderFactory. It validates credentials and
// builds the adapter without any network I/O.
func (f *Factory) Create(name string) (domain.ChatProvider, error) {
	if !config.KnownProviders[name] {
		return nil, &factoryError{msg: fmt.Sprintf("provider %s not found", name), err: domain.ErrProviderNotFound}
	}

	creds := f.blob()[name].merge(f.seed[name])
	if creds.Disabled {
		return nil, &factoryError{msg: fmt.Sprintf("provider %s is disabled", name), err: domain.ErrProviderDisabled}
	}
	if err := checkCredentials(name, creds); err != nil {
		return nil, err
	}

	var p domain.ChatProvider = NewTracedProvider(f.adapter(name, creds))
	if f.cbCfg.Enabled {
		p = NewCircuitBreakerProvider(p, f.breaker(name))
	}
	return p, nil
}

func checkCredentials(name string, c Credentials) error {
	switch name {
	case "deepseek", "dashscope":
		if c.APIKey == "" || c.BaseURL == "" {
			return missing(name, "apiKey or baseUrl")
		}
	case "openai", "openrouter", "anthropic", "gemini":
		if c.APIKey == "" {
			return missing(name, "apiKey")
		}
	case "qianfan":
		if c.AccessKey == "" || c.SecretKey == "" {
			return missing(name, "accessKey or secretKey")
		}
	case "bedrock":
		if c.Region == "" {
			return missing(name, "region")
		}
	}
	return nil
}

func (f *Factory) adapter(name string, creds Credentials) domain.ChatProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.cache[name]; ok && c.creds == creds {
		return c.provider
	}

	logger := f.logger.With("provider", name)
	var p domain.ChatProvider
	switch name {
	case "qianfan":
		p = NewQianfanProvider(creds, f.client, logger)
	case "anthropic":
		p = NewAnthropicProvider(creds, f.client, logger)
	case "gemini":
		p = NewGeminiProvider(creds, f.client, logger)
	case "bedrock":
		p = NewBedrockProvider(creds, logger)
	default:
		p = NewOpenAIProvider(name, creds, f.client, logger)
	}
	f.cache[name] = cachedProvider{creds: creds, provider: p}
	return p
}

func (f *Factory) breaker(name string) *streamBreaker {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.breakers[name]
	if !ok {
		b = newStreamBreaker(name, f.cbCfg, f.logger)
		f.breakers[name] = b
	}
	return b
}

// blob decodes the provider settings value. It is stored as a JSON string;
// an already-decoded object is accepted too. A malformed blob reads as empty.
func (f *Factory) blob() map[string]Credentials {
	out := map[string]Credentials{}
	if f.settings == nil {
		return out
	}
	raw, ok := f.settings.Get(domain.KeyProvider)
	if !ok || raw == nil {
		return out
	}

	var data []byte
	switch v := raw.(type) {
	case string:
		if v == "" {
			return out
		}
		data = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			f.logger.Warn("provider settings not encodable", "error", err)
			return out
		}
		data = b
	}
	if err := json.Unmarshal(data, &out); err != nil {
		f.logger.Warn("provider settings malformed", "error", err)
		return map[string]Credentials{}
	}
	return out
}
