package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"noelle/internal/infra/config"
)

// Config holds integration test configuration from environment
type Config struct {
	OpenAIKey    string
	DeepSeekKey  string
	AnthropicKey string
	GeminiKey    string
	OpenAIModel  string
	TestTimeout  time.Duration
	SkipSlow     bool
}

// LoadConfig loads integration test configuration from environment
func LoadConfig() *Config {
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Config{
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		DeepSeekKey:  os.Getenv("DEEPSEEK_API_KEY"),
		AnthropicKey: os.Getenv("ANTHROPIC_API_KEY"),
		GeminiKey:    os.Getenv("GEMINI_API_KEY"),
		OpenAIModel:  model,
		TestTimeout:  60 * time.Second,
		SkipSlow:     os.Getenv("SKIP_SLOW_TESTS") == "1",
	}
}

// LLMConfig seeds the provider factory with the keys found in the
// environment.
func (c *Config) LLMConfig() config.LLMConfig {
	var providers []config.ProviderConfig
	if c.OpenAIKey != "" {
		providers = append(providers, config.ProviderConfig{Name: "openai", APIKey: c.OpenAIKey, Models: []string{c.OpenAIModel}})
	}
	if c.DeepSeekKey != "" {
		providers = append(providers, config.ProviderConfig{
			Name: "deepseek", APIKey: c.DeepSeekKey, BaseURL: "https://api.deepseek.com/v1",
			Models: []string{"deepseek-chat"},
		})
	}
	if c.AnthropicKey != "" {
		providers = append(providers, config.ProviderConfig{Name: "anthropic", APIKey: c.AnthropicKey})
	}
	if c.GeminiKey != "" {
		providers = append(providers, config.ProviderConfig{Name: "gemini", APIKey: c.GeminiKey})
	}
	return config.LLMConfig{Providers: providers}
}

// SkipIfNoAPIKey skips the test if the required API key is not set
func SkipIfNoAPIKey(t *testing.T, key, name string) {
	t.Helper()
	if key == "" {
		t.Skipf("Skipping %s integration test: %s_API_KEY not set", name, name)
	}
}

// SkipIfShort skips integration tests in short mode
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// NewTestContext creates a context with timeout for integration tests
func NewTestContext(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}
