package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration. User preferences live in
// the settings store, not here.
type Config struct {
	App     AppConfig     `yaml:"app"`
	Logger  LoggerConfig  `yaml:"logger"`
	Tracer  TracerConfig  `yaml:"tracer"`
	Gateway GatewayConfig `yaml:"gateway"`
	Display DisplayConfig `yaml:"display"`
	LLM     LLMConfig     `yaml:"llm"`
}

// AppConfig holds process-wide settings.
type AppConfig struct {
	Name     string `yaml:"name"`
	DataDir  string `yaml:"data_dir"`
	Packaged bool   `yaml:"packaged"`
}

// SettingsPath is the user preferences file.
func (a AppConfig) SettingsPath() string { return filepath.Join(a.DataDir, "config.json") }

// DatabasePath is the conversation store.
func (a AppConfig) DatabasePath() string { return filepath.Join(a.DataDir, "noelle.db") }

// LogDir holds daily log files.
func (a AppConfig) LogDir() string { return filepath.Join(a.DataDir, "logs") }

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// Output is stdout, stderr, daily or a file path.
	Output        string `yaml:"output"`
	Dir           string `yaml:"dir,omitempty"`
	RetentionDays int    `yaml:"retention_days"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Exporter    string `yaml:"exporter"` // noop, stdout or file
	Endpoint    string `yaml:"endpoint"` // file path for the file exporter
	ServiceName string `yaml:"service_name"`
}

// GatewayConfig holds the renderer IPC bridge settings.
type GatewayConfig struct {
	Addr           string          `yaml:"addr"`
	Auth           AuthConfig      `yaml:"auth"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	AllowedOrigins []string        `yaml:"allowed_origins,omitempty"`
}

// AuthConfig holds gateway authentication settings.
type AuthConfig struct {
	Tokens []TokenConfig `yaml:"tokens,omitempty"`
}

// TokenConfig holds a single gateway auth token.
type TokenConfig struct {
	Token string `yaml:"token"`
	Name  string `yaml:"name"`
}

// RateLimitConfig is a per-connection token bucket.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// DisplayConfig describes the screen the headless desktop backend simulates.
type DisplayConfig struct {
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	Dark     bool   `yaml:"dark"`
	Platform string `yaml:"platform"`
}

// LLMConfig holds LLM provider settings.
type LLMConfig struct {
	Providers      []ProviderConfig     `yaml:"providers"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Pool           PoolConfig           `yaml:"pool"`
	ConnTimeout    time.Duration        `yaml:"conn_timeout"`
}

// CircuitBreakerConfig holds circuit breaker settings for LLM providers.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// PoolConfig holds HTTP connection pool settings for LLM providers.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// ProviderConfig seeds one provider. Values in the settings blob win.
type ProviderConfig struct {
	Name      string   `yaml:"name"`
	BaseURL   string   `yaml:"base_url,omitempty"`
	APIKey    string   `yaml:"api_key,omitempty"`
	AccessKey string   `yaml:"access_key,omitempty"`
	SecretKey string   `yaml:"secret_key,omitempty"`
	Region    string   `yaml:"region,omitempty"`
	Disabled  bool     `yaml:"disabled,omitempty"`
	Models    []string `yaml:"models,omitempty"`
}

// defaultDataDir returns the persistent data directory under $HOME/.noelle.
// Falls back to "./data" if $HOME cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".noelle")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		App: AppConfig{
			Name:    "noelle",
			DataDir: defaultDataDir(),
		},
		Logger: LoggerConfig{
			Level:         "info",
			Format:        "text",
			Output:        "daily",
			RetentionDays: 7,
		},
		Tracer: TracerConfig{
			Exporter:    "noop",
			ServiceName: "noelle",
		},
		Gateway: GatewayConfig{
			Addr: "127.0.0.1:17871",
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 50,
				Burst:             100,
			},
		},
		Display: DisplayConfig{
			Width:  1920,
			Height: 1080,
		},
		LLM: LLMConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
			Pool: PoolConfig{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
			ConnTimeout: 10 * time.Second,
		},
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts secrets.
// A missing file yields defaults plus env overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		if err := validatePermissions(absPath); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv("NOELLE_CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps NOELLE_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NOELLE_DATA_DIR"); v != "" {
		cfg.App.DataDir = v
	}
	if v := os.Getenv("NOELLE_PACKAGED"); v == "true" {
		cfg.App.Packaged = true
	}
	if v := os.Getenv("NOELLE_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("NOELLE_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("NOELLE_LOGGER_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("NOELLE_LOGGER_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Logger.RetentionDays = n
		}
	}
	if v := os.Getenv("NOELLE_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("NOELLE_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("NOELLE_GATEWAY_ADDR"); v != "" {
		cfg.Gateway.Addr = v
	}
	if v := os.Getenv("NOELLE_GATEWAY_TOKEN"); v != "" {
		cfg.Gateway.Auth.Tokens = append(cfg.Gateway.Auth.Tokens, TokenConfig{Token: v, Name: "env"})
	}
	if v := os.Getenv("NOELLE_GATEWAY_ALLOWED_ORIGINS"); v != "" {
		cfg.Gateway.AllowedOrigins = splitAndTrim(v, ",")
	}
	if v := os.Getenv("NOELLE_DISPLAY_DARK"); v != "" {
		cfg.Display.Dark = v == "true"
	}

	// Per-provider credential overrides: NOELLE_LLM_PROVIDER_<NAME>_API_KEY etc.
	for i := range cfg.LLM.Providers {
		p := &cfg.LLM.Providers[i]
		prefix := "NOELLE_LLM_PROVIDER_" + strings.ToUpper(p.Name) + "_"
		if v := os.Getenv(prefix + "API_KEY"); v != "" {
			p.APIKey = v
		}
		if v := os.Getenv(prefix + "BASE_URL"); v != "" {
			p.BaseURL = v
		}
		if v := os.Getenv(prefix + "ACCESS_KEY"); v != "" {
			p.AccessKey = v
		}
		if v := os.Getenv(prefix + "SECRET_KEY"); v != "" {
			p.SecretKey = v
		}
	}
}

// splitAndTrim splits s by sep and trims whitespace from each element.
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// decryptSecrets finds "enc:..." values in provider credentials and gateway
// tokens and decrypts them in place.
func decryptSecrets(cfg *Config, passphrase string) error {
	for i := range cfg.LLM.Providers {
		p := &cfg.LLM.Providers[i]
		for _, fp := range []*string{&p.APIKey, &p.AccessKey, &p.SecretKey} {
			if err := decryptField(fp, passphrase); err != nil {
				return fmt.Errorf("provider %s credential: %w", p.Name, err)
			}
		}
	}
	for i := range cfg.Gateway.Auth.Tokens {
		if err := decryptField(&cfg.Gateway.Auth.Tokens[i].Token, passphrase); err != nil {
			return fmt.Errorf("gateway auth token %s: %w", cfg.Gateway.Auth.Tokens[i].Name, err)
		}
	}
	return nil
}

func decryptField(fp *string, passphrase string) error {
	if !strings.HasPrefix(*fp, "enc:") {
		return nil
	}
	decrypted, err := DecryptValue(strings.TrimPrefix(*fp, "enc:"), passphrase)
	if err != nil {
		return err
	}
	*fp = decrypted
	return nil
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	// Format: hex(salt) + ":" + hex(nonce+ciphertext)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue decrypts an AES-256-GCM encrypted value.
func DecryptValue(encrypted, passphrase string) (string, error) {
	saltHex, dataHex, ok := strings.Cut(encrypted, ":")
	if !ok {
		return "", fmt.Errorf("invalid encrypted format")
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	data, err := hex.DecodeString(dataHex)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// deriveKey uses Argon2id to derive a 32-byte key from passphrase + salt.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// validatePermissions checks the config file has restrictive permissions.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o077 > 0o044 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
