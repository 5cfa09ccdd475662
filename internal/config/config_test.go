package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Client: ClientConfig{
			Nodes:  []string{"http://localhost:8108"},
			APIKey: "xyz",
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no nodes", func(c *Config) { c.Client.Nodes = nil }},
		{"node without scheme", func(c *Config) { c.Client.Nodes = []string{"localhost:8108"} }},
		{"bad nearest node", func(c *Config) { c.Client.NearestNode = "::" }},
		{"no api key", func(c *Config) { c.Client.APIKey = "" }},
		{"negative rate limit", func(c *Config) { c.Client.RateLimit = -1 }},
		{"embedding model without key", func(c *Config) { c.Embedding.Model = "text-embedding-3-small" }},
		{"negative budget", func(c *Config) { c.Embedding.Budget.DailyTokens = -5 }},
		{"unknown budget action", func(c *Config) { c.Embedding.Budget.Action = "block" }},
		{"port out of range", func(c *Config) { c.Serve.Port = 70000 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidate_NearestNodeOnly(t *testing.T) {
	cfg := validConfig()
	cfg.Client.Nodes = nil
	cfg.Client.NearestNode = "http://near:8108"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()

	if got := cfg.Client.ConnectionTimeout(); got != 10*time.Second {
		t.Errorf("ConnectionTimeout() = %v, want 10s", got)
	}
	if cfg.Client.NumRetries != 3 {
		t.Errorf("NumRetries = %d, want 3", cfg.Client.NumRetries)
	}
	if got := cfg.Client.RetryInterval(); got != 100*time.Millisecond {
		t.Errorf("RetryInterval() = %v, want 100ms", got)
	}
	if got := cfg.Client.HealthcheckInterval(); got != time.Minute {
		t.Errorf("HealthcheckInterval() = %v, want 1m", got)
	}
	if got := cfg.Cache.TTL(); got != time.Minute {
		t.Errorf("TTL() = %v, want 1m", got)
	}
	if cfg.Embedding.Provider != "openai" {
		t.Errorf("Provider = %q, want openai", cfg.Embedding.Provider)
	}
	if cfg.Serve.Port != 8108 {
		t.Errorf("Port = %d, want 8108", cfg.Serve.Port)
	}
	if cfg.Serve.APIKey != "xyz" {
		t.Errorf("Serve.APIKey = %q, want the client key", cfg.Serve.APIKey)
	}
	if cfg.Serve.ShutdownSec != 10 {
		t.Errorf("ShutdownSec = %d, want 10", cfg.Serve.ShutdownSec)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := validConfig()
	cfg.Client.NumRetries = -1
	cfg.Client.ConnectionTimeoutSec = 3
	cfg.Cache.TTLSec = 5
	cfg.Serve = ServeConfig{Port: 9000, APIKey: "dev", ReadTimeoutSec: 30}
	cfg.ApplyDefaults()

	if cfg.Client.NumRetries != -1 {
		t.Errorf("NumRetries = %d, want -1", cfg.Client.NumRetries)
	}
	if cfg.Client.ConnectionTimeoutSec != 3 {
		t.Errorf("ConnectionTimeoutSec = %d, want 3", cfg.Client.ConnectionTimeoutSec)
	}
	if cfg.Cache.TTLSec != 5 {
		t.Errorf("TTLSec = %d, want 5", cfg.Cache.TTLSec)
	}
	if cfg.Serve.Port != 9000 || cfg.Serve.APIKey != "dev" || cfg.Serve.ReadTimeoutSec != 30 {
		t.Errorf("Serve = %+v", cfg.Serve)
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("TSQ_TEST_KEY", "from-env")
	data := []byte(`
client:
  nodes: ["${TSQ_TEST_NODE:-http://localhost:8108}"]
  api_key: ${TSQ_TEST_KEY}
cache:
  addr: localhost:6379
  ttl_sec: 30
logging:
  level: debug
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Client.APIKey != "from-env" {
		t.Errorf("APIKey = %q, want from-env", cfg.Client.APIKey)
	}
	if len(cfg.Client.Nodes) != 1 || cfg.Client.Nodes[0] != "http://localhost:8108" {
		t.Errorf("Nodes = %v", cfg.Client.Nodes)
	}
	if cfg.Cache.Addr != "localhost:6379" || cfg.Cache.TTLSec != 30 {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("client: [")); err == nil {
		t.Error("expected error for malformed yaml")
	}
	if _, err := Parse([]byte("client:\n  nodes: [http://localhost:8108]\n")); err == nil {
		t.Error("expected error for missing api key")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	data := "client:\n  nodes: [http://a:8108, http://b:8108]\n  api_key: k\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Client.Nodes) != 2 {
		t.Errorf("Nodes = %v", cfg.Client.Nodes)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_LocalConfig(t *testing.T) {
	cfg, err := Load("local")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Client.Nodes) == 0 {
		t.Error("local config has no nodes")
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ENV", "")
	if got := GetEnv(); got != "local" {
		t.Errorf("GetEnv() = %q, want local", got)
	}
	t.Setenv("ENV", "prod")
	if got := GetEnv(); got != "prod" {
		t.Errorf("GetEnv() = %q, want prod", got)
	}
}
