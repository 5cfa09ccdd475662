// Package config loads the tsq configuration from config/<env>.yaml.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the tsq configuration.
type Config struct {
	Client    ClientConfig    `yaml:"client"`
	Cache     CacheConfig     `yaml:"cache"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Serve     ServeConfig     `yaml:"serve"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// ClientConfig holds search cluster connection settings.
type ClientConfig struct {
	Nodes                  []string `yaml:"nodes"`
	NearestNode            string   `yaml:"nearest_node"`
	APIKey                 string   `yaml:"api_key"`
	ConnectionTimeoutSec   int      `yaml:"connection_timeout_sec"`
	NumRetries             int      `yaml:"num_retries"`
	RetryIntervalMs        int      `yaml:"retry_interval_ms"`
	HealthcheckIntervalSec int      `yaml:"healthcheck_interval_sec"`
	RateLimit              float64  `yaml:"rate_limit"` // requests per second, 0 = unlimited
	Burst                  int      `yaml:"burst"`
	Tracing                bool     `yaml:"tracing"`
}

// CacheConfig holds the Valkey search cache settings. An empty Addr disables the cache.
type CacheConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	TTLSec   int    `yaml:"ttl_sec"`
}

// EmbeddingConfig holds the near-text embedding provider. An empty Model disables it.
type EmbeddingConfig struct {
	Provider         string       `yaml:"provider"`
	APIKey           string       `yaml:"api_key"`
	BaseURL          string       `yaml:"base_url"`
	Model            string       `yaml:"model"`
	Dimensions       int          `yaml:"dimensions"`
	QueryInstruction string       `yaml:"query_instruction"`
	Budget           BudgetConfig `yaml:"budget"`
}

// BudgetConfig caps embedding tokens per UTC day and month (0 = unlimited).
type BudgetConfig struct {
	DailyTokens   int64  `yaml:"daily_tokens"`
	MonthlyTokens int64  `yaml:"monthly_tokens"`
	Action        string `yaml:"action"` // "warn" or "reject"
}

// Enabled reports whether any limit is set.
func (b BudgetConfig) Enabled() bool {
	return b.DailyTokens > 0 || b.MonthlyTokens > 0
}

// ServeConfig holds settings of the local development server.
type ServeConfig struct {
	Port            int    `yaml:"port"`
	APIKey          string `yaml:"api_key"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	ShutdownSec     int    `yaml:"shutdown_timeout_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse expands environment variables in data and decodes it.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Client.ConnectionTimeoutSec <= 0 {
		c.Client.ConnectionTimeoutSec = 10
	}
	if c.Client.NumRetries == 0 {
		c.Client.NumRetries = 3
	}
	if c.Client.RetryIntervalMs <= 0 {
		c.Client.RetryIntervalMs = 100
	}
	if c.Client.HealthcheckIntervalSec <= 0 {
		c.Client.HealthcheckIntervalSec = 60
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 60
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Serve.Port <= 0 {
		c.Serve.Port = 8108
	}
	if c.Serve.APIKey == "" {
		c.Serve.APIKey = c.Client.APIKey
	}
	if c.Serve.ReadTimeoutSec <= 0 {
		c.Serve.ReadTimeoutSec = 10
	}
	if c.Serve.WriteTimeoutSec <= 0 {
		c.Serve.WriteTimeoutSec = 10
	}
	if c.Serve.ShutdownSec <= 0 {
		c.Serve.ShutdownSec = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if len(c.Client.Nodes) == 0 && c.Client.NearestNode == "" {
		return errors.New("client.nodes is required")
	}
	for _, n := range c.Client.Nodes {
		if err := validateNode("client.nodes", n); err != nil {
			return err
		}
	}
	if c.Client.NearestNode != "" {
		if err := validateNode("client.nearest_node", c.Client.NearestNode); err != nil {
			return err
		}
	}
	if c.Client.APIKey == "" {
		return errors.New("client.api_key is required")
	}
	if c.Client.RateLimit < 0 {
		return fmt.Errorf("client.rate_limit must not be negative, got %v", c.Client.RateLimit)
	}
	if c.Embedding.Model != "" && c.Embedding.APIKey == "" {
		return fmt.Errorf("embedding.api_key is required for model %q", c.Embedding.Model)
	}
	if b := c.Embedding.Budget; b.DailyTokens < 0 || b.MonthlyTokens < 0 {
		return errors.New("embedding.budget limits must not be negative")
	}
	switch c.Embedding.Budget.Action {
	case "", "warn", "reject":
	default:
		return fmt.Errorf("embedding.budget.action must be warn or reject, got %q", c.Embedding.Budget.Action)
	}
	if c.Serve.Port > 65535 {
		return fmt.Errorf("serve.port must be between 1 and 65535, got %d", c.Serve.Port)
	}
	return nil
}

func validateNode(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s: invalid url %q", key, raw)
	}
	return nil
}

// ConnectionTimeout returns client.connection_timeout_sec as a duration.
func (c ClientConfig) ConnectionTimeout() time.Duration {
	return time.Duration(c.ConnectionTimeoutSec) * time.Second
}

// RetryInterval returns client.retry_interval_ms as a duration.
func (c ClientConfig) RetryInterval() time.Duration {
	return time.Duration(c.RetryIntervalMs) * time.Millisecond
}

// HealthcheckInterval returns client.healthcheck_interval_sec as a duration.
func (c ClientConfig) HealthcheckInterval() time.Duration {
	return time.Duration(c.HealthcheckIntervalSec) * time.Second
}

// TTL returns cache.ttl_sec as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSec) * time.Second
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
