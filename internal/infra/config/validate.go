package config

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateApp(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	validateGateway(cfg, ve)
	validateDisplay(cfg, ve)
	validateLLM(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateApp(cfg *Config, ve *ValidationError) {
	if cfg.App.DataDir == "" {
		ve.Add("app.data_dir must not be empty")
	}
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true, "": true}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is invalid (want: debug, info, warn, error)", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "", "text", "json":
	default:
		ve.Add("logger.format %q is invalid (want: text, json)", cfg.Logger.Format)
	}
	if cfg.Logger.RetentionDays < 0 {
		ve.Add("logger.retention_days must be >= 0")
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout":
	case "file":
		if cfg.Tracer.Endpoint == "" {
			ve.Add("tracer.endpoint is required for the file exporter")
		}
	default:
		ve.Add("tracer.exporter %q is invalid (want: noop, stdout, file)", cfg.Tracer.Exporter)
	}
}

func validateGateway(cfg *Config, ve *ValidationError) {
	if cfg.Gateway.Addr == "" {
		ve.Add("gateway.addr is required")
	} else if _, _, err := net.SplitHostPort(cfg.Gateway.Addr); err != nil {
		ve.Add("gateway.addr %q is not a valid host:port", cfg.Gateway.Addr)
	}
	if cfg.Gateway.RateLimit.RequestsPerSecond <= 0 {
		ve.Add("gateway.rate_limit.requests_per_second must be > 0")
	}
	if cfg.Gateway.RateLimit.Burst <= 0 {
		ve.Add("gateway.rate_limit.burst must be > 0")
	}
	for i, tok := range cfg.Gateway.Auth.Tokens {
		if tok.Token == "" {
			ve.Add("gateway.auth.tokens[%d].token must not be empty", i)
		}
	}
}

func validateDisplay(cfg *Config, ve *ValidationError) {
	if cfg.Display.Width <= 0 || cfg.Display.Height <= 0 {
		ve.Add("display.width and display.height must be > 0")
	}
}

// KnownProviders lists the provider names the factory can build.
var KnownProviders = map[string]bool{
	"deepseek":   true,
	"dashscope":  true,
	"openai":     true,
	"qianfan":    true,
	"anthropic":  true,
	"bedrock":    true,
	"gemini":     true,
	"openrouter": true,
	"ollama":     true,
}

func validateLLM(cfg *Config, ve *ValidationError) {
	seen := make(map[string]bool)
	for i, p := range cfg.LLM.Providers {
		if p.Name == "" {
			ve.Add("llm.providers[%d].name must not be empty", i)
			continue
		}
		if seen[p.Name] {
			ve.Add("llm.providers[%d]: duplicate provider name %q", i, p.Name)
		}
		seen[p.Name] = true
		if !KnownProviders[p.Name] {
			ve.Add("llm.providers[%d].name %q is unknown (want: deepseek, dashscope, openai, qianfan, anthropic, bedrock, gemini, openrouter, ollama)", i, p.Name)
		}
	}

	cb := cfg.LLM.CircuitBreaker
	if cb.Enabled {
		if cb.MaxFailures == 0 {
			ve.Add("llm.circuit_breaker.max_failures must be > 0 when enabled")
		}
		if cb.Timeout <= 0 {
			ve.Add("llm.circuit_breaker.timeout must be > 0 when enabled")
		}
	}
	if cfg.LLM.Pool.MaxIdleConns < 0 || cfg.LLM.Pool.MaxIdleConnsPerHost < 0 || cfg.LLM.Pool.MaxConnsPerHost < 0 {
		ve.Add("llm.pool connection limits must be >= 0")
	}
}
