package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("SIFTLY_MODE", "")

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Mode != ModeScripted {
		t.Fatalf("Mode = %q, want %q", cfg.Mode, ModeScripted)
	}
	if cfg.OracleTimeoutSeconds != DefaultConfig().OracleTimeoutSeconds {
		t.Fatalf("OracleTimeoutSeconds = %d, want %d", cfg.OracleTimeoutSeconds, DefaultConfig().OracleTimeoutSeconds)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("SIFTLY_CONTRACTOR_NAME", "")
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"contractor_name": "Acme Roofing", "http_port": 8080}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ContractorName != "Acme Roofing" {
		t.Fatalf("ContractorName = %q, want %q", cfg.ContractorName, "Acme Roofing")
	}
	if cfg.HTTPPort != 8080 {
		t.Fatalf("HTTPPort = %d, want 8080", cfg.HTTPPort)
	}
	// Untouched fields keep defaults
	if cfg.CompletionSentinel != "LEAD_QUALIFIED" {
		t.Fatalf("CompletionSentinel = %q, want default", cfg.CompletionSentinel)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_EnvFile(t *testing.T) {
	tmpDir := t.TempDir()
	// Register cleanup for variables the .env file will set.
	t.Setenv("CONTRACTOR_CELL", "")
	t.Setenv("SIFTLY_CONTRACTOR_PHONE", "")
	os.Unsetenv("CONTRACTOR_CELL")

	envPath := filepath.Join(tmpDir, ".env")
	if err := os.WriteFile(envPath, []byte("CONTRACTOR_CELL=+15550001111\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ContractorPhone != "+15550001111" {
		t.Fatalf("ContractorPhone = %q, want %q", cfg.ContractorPhone, "+15550001111")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"SIFTLY_MODE":                   "conversational",
		"OPENAI_API_KEY":                "sk-legacy",
		"SIFTLY_OPENAI_API_KEY":         "sk-preferred",
		"TWILIO_NUMBER":                 "+15559990000",
		"SIFTLY_HTTP_PORT":              "9090",
		"SIFTLY_ORACLE_TIMEOUT_SECONDS": "not-a-number",
	}
	cfg := DefaultConfig()
	ApplyEnv(cfg, func(k string) string { return env[k] })

	if cfg.Mode != ModeConversational {
		t.Errorf("Mode = %q, want %q", cfg.Mode, ModeConversational)
	}
	if cfg.OpenAIAPIKey != "sk-preferred" {
		t.Errorf("OpenAIAPIKey = %q, want SIFTLY_ prefixed value to win", cfg.OpenAIAPIKey)
	}
	if cfg.TwilioNumber != "+15559990000" {
		t.Errorf("TwilioNumber = %q, want %q", cfg.TwilioNumber, "+15559990000")
	}
	if cfg.HTTPPort != 9090 {
		t.Errorf("HTTPPort = %d, want 9090", cfg.HTTPPort)
	}
	if cfg.OracleTimeoutSeconds != DefaultConfig().OracleTimeoutSeconds {
		t.Errorf("OracleTimeoutSeconds = %d, want default on parse failure", cfg.OracleTimeoutSeconds)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown mode", func(c *Config) { c.Mode = "chatty" }, true},
		{"unknown scoring", func(c *Config) { c.Scoring = "vibes" }, true},
		{"unknown provider", func(c *Config) { c.OracleProvider = "mystery" }, true},
		{"oracle scoring without key", func(c *Config) { c.Scoring = ScoringOracle }, true},
		{"oracle scoring with key", func(c *Config) { c.Scoring = ScoringOracle; c.OpenAIAPIKey = "sk" }, false},
		{"conversational anthropic key", func(c *Config) {
			c.Mode = ModeConversational
			c.OracleProvider = ProviderAnthropic
			c.AnthropicAPIKey = "ak"
		}, false},
		{"bad port", func(c *Config) { c.HTTPPort = 70000 }, true},
		{"zero timeout", func(c *Config) { c.OracleTimeoutSeconds = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDurations(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.OracleTimeout() != 8*time.Second {
		t.Errorf("OracleTimeout() = %v, want 8s", cfg.OracleTimeout())
	}
	if cfg.NotifyTimeout() != 5*time.Second {
		t.Errorf("NotifyTimeout() = %v, want 5s", cfg.NotifyTimeout())
	}
}

func TestMerge(t *testing.T) {
	base := &Config{
		Mode:          ModeScripted,
		HTTPPort:      5000,
		AllowedPaths:  []string{"/a", "/b"},
		DisabledTools: []string{"lead_export"},
	}
	overlay := &Config{
		HTTPPort:         8080,
		AllowUnsafePaths: true,
		AllowedPaths:     []string{" /b ", "/c"},
	}

	result := Merge(base, overlay)

	if result.Mode != ModeScripted {
		t.Errorf("Mode = %q, want %q", result.Mode, ModeScripted)
	}
	if result.HTTPPort != 8080 {
		t.Errorf("HTTPPort = %d, want 8080", result.HTTPPort)
	}
	if !result.AllowUnsafePaths {
		t.Error("AllowUnsafePaths should be true")
	}
	if len(result.AllowedPaths) != 3 {
		t.Errorf("AllowedPaths = %v, want 3 deduplicated entries", result.AllowedPaths)
	}
	if len(result.DisabledTools) != 1 || result.DisabledTools[0] != "lead_export" {
		t.Errorf("DisabledTools = %v, want [lead_export]", result.DisabledTools)
	}
}

func TestMergeStringSlice_EmptyReturnsNil(t *testing.T) {
	if got := mergeStringSlice(nil, []string{" ", ""}); got != nil {
		t.Errorf("mergeStringSlice() = %v, want nil", got)
	}
}

func TestModelOrDefault(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.ModelOrDefault(cfg.ScoringModel); got != DefaultOpenAIModel {
		t.Errorf("ModelOrDefault() = %q, want %q", got, DefaultOpenAIModel)
	}
	cfg.OracleProvider = ProviderAnthropic
	if got := cfg.ModelOrDefault(""); got != DefaultAnthropicModel {
		t.Errorf("ModelOrDefault() = %q, want %q", got, DefaultAnthropicModel)
	}
	if got := cfg.ModelOrDefault("claude-sonnet-4-5"); got != "claude-sonnet-4-5" {
		t.Errorf("ModelOrDefault() = %q, want explicit model", got)
	}
}
