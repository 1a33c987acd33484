package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DirName is the base directory under the user's home.
const DirName = ".siftly"

// BaseDir returns ~/.siftly.
func BaseDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, DirName), nil
}

// Conversation modes.
const (
	ModeScripted       = "scripted"
	ModeConversational = "conversational"
)

// Scoring strategies.
const (
	ScoringRubric = "rubric"
	ScoringOracle = "oracle"
)

// Oracle providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds application configuration.
type Config struct {
	// Mode selects the conversation policy: "scripted" (fixed questions) or
	// "conversational" (oracle-driven dialogue).
	Mode string `json:"mode"`

	// Scoring selects how the final answers are scored: "rubric" (local,
	// deterministic) or "oracle" (delegated to the configured provider).
	Scoring string `json:"scoring"`

	// OracleProvider is the language-model backend: "openai" or "anthropic".
	OracleProvider string `json:"oracle_provider"`

	// ScoringModel and ChatModel name the provider models used for scoring and
	// for the conversational path respectively. Empty means the provider default.
	ScoringModel string `json:"scoring_model,omitempty"`
	ChatModel    string `json:"chat_model,omitempty"`

	// OpenAIAPIKey and AnthropicAPIKey are normally supplied via environment.
	OpenAIAPIKey    string `json:"openai_api_key,omitempty"`
	AnthropicAPIKey string `json:"anthropic_api_key,omitempty"`

	// OracleTimeoutSeconds bounds every oracle call.
	OracleTimeoutSeconds int `json:"oracle_timeout_seconds"`

	// NotifyTimeoutSeconds bounds every outbound notification.
	NotifyTimeoutSeconds int `json:"notify_timeout_seconds"`

	// TranscriptMaxTokens caps the transcript sent to the conversational oracle.
	// Oldest turns are dropped first.
	TranscriptMaxTokens int `json:"transcript_max_tokens"`

	// CompletionSentinel is the fallback marker the conversational oracle
	// emits when it considers the lead qualified.
	CompletionSentinel string `json:"completion_sentinel"`

	// ContractorName is substituted into outbound message templates.
	ContractorName string `json:"contractor_name"`

	// ContractorPhone receives HOT lead alerts.
	ContractorPhone string `json:"contractor_phone,omitempty"`

	// Twilio credentials and sending number.
	TwilioAccountSID string `json:"twilio_account_sid,omitempty"`
	TwilioAuthToken  string `json:"twilio_auth_token,omitempty"`
	TwilioNumber     string `json:"twilio_number,omitempty"`

	// DashboardURL receives a JSON lead summary for every HOT lead. Empty disables it.
	DashboardURL string `json:"dashboard_url,omitempty"`

	// MessagesPath optionally points to a YAML message catalog overriding the built-in texts.
	MessagesPath string `json:"messages_path,omitempty"`

	// HTTPBind and HTTPPort configure the webhook listener.
	HTTPBind string `json:"http_bind"`
	HTTPPort int    `json:"http_port"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is locked" errors).
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// AllowedPaths is an allowlist of directories for CSV export.
	// Paths outside ~/.siftly/exports require either being in this list or AllowUnsafePaths=true.
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for export.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Mode:                 ModeScripted,
		Scoring:              ScoringRubric,
		OracleProvider:       ProviderOpenAI,
		OracleTimeoutSeconds: 8,
		NotifyTimeoutSeconds: 5,
		TranscriptMaxTokens:  3000,
		CompletionSentinel:   "LEAD_QUALIFIED",
		ContractorName:       "your contractor",
		HTTPBind:             "127.0.0.1",
		HTTPPort:             5000,
	}
}

// OracleTimeout returns the oracle call bound as a duration.
func (c *Config) OracleTimeout() time.Duration {
	return time.Duration(c.OracleTimeoutSeconds) * time.Second
}

// NotifyTimeout returns the notification bound as a duration.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.NotifyTimeoutSeconds) * time.Second
}

// Default models per provider.
const (
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
)

// ModelOrDefault returns model, or the configured provider's default when empty.
func (c *Config) ModelOrDefault(model string) string {
	if strings.TrimSpace(model) != "" {
		return model
	}
	if c.OracleProvider == ProviderAnthropic {
		return DefaultAnthropicModel
	}
	return DefaultOpenAIModel
}

// OracleAPIKey returns the API key for the configured provider.
func (c *Config) OracleAPIKey() string {
	if c.OracleProvider == ProviderAnthropic {
		return c.AnthropicAPIKey
	}
	return c.OpenAIAPIKey
}

// NeedsOracle reports whether any configured path calls a language model.
func (c *Config) NeedsOracle() bool {
	return c.Mode == ModeConversational || c.Scoring == ScoringOracle
}

// TwilioConfigured reports whether outbound SMS credentials are complete.
func (c *Config) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioNumber != ""
}

// Validate checks that enumerated settings are known and that settings which
// depend on each other are consistent.
func (c *Config) Validate() error {
	var problems []string

	switch c.Mode {
	case ModeScripted, ModeConversational:
	default:
		problems = append(problems, fmt.Sprintf("mode must be one of: %s, %s", ModeScripted, ModeConversational))
	}
	switch c.Scoring {
	case ScoringRubric, ScoringOracle:
	default:
		problems = append(problems, fmt.Sprintf("scoring must be one of: %s, %s", ScoringRubric, ScoringOracle))
	}
	switch c.OracleProvider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		problems = append(problems, fmt.Sprintf("oracle_provider must be one of: %s, %s", ProviderOpenAI, ProviderAnthropic))
	}
	if c.NeedsOracle() && c.OracleAPIKey() == "" {
		problems = append(problems, fmt.Sprintf("an API key for %s is required by mode=%s scoring=%s", c.OracleProvider, c.Mode, c.Scoring))
	}
	if c.OracleTimeoutSeconds <= 0 {
		problems = append(problems, "oracle_timeout_seconds must be positive")
	}
	if c.NotifyTimeoutSeconds <= 0 {
		problems = append(problems, "notify_timeout_seconds must be positive")
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		problems = append(problems, "http_port must be between 1 and 65535")
	}

	if len(problems) > 0 {
		return errors.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}

// Load loads configuration from baseDir/config.json, then applies a .env file
// (baseDir/.env, then ./.env) and finally the process environment.
// Returns default config merged with the environment if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.siftly.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}

	for _, envPath := range []string{filepath.Join(baseDir, ".env"), ".env"} {
		if err := LoadEnvFile(envPath); err != nil {
			return nil, err
		}
	}

	ApplyEnv(cfg, os.Getenv)
	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set in the environment are not overridden. A missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// envBinding maps an environment variable onto a config field.
type envBinding struct {
	keys  []string // first non-empty wins
	apply func(c *Config, v string)
}

var envBindings = []envBinding{
	{[]string{"SIFTLY_MODE"}, func(c *Config, v string) { c.Mode = v }},
	{[]string{"SIFTLY_SCORING"}, func(c *Config, v string) { c.Scoring = v }},
	{[]string{"SIFTLY_ORACLE_PROVIDER"}, func(c *Config, v string) { c.OracleProvider = v }},
	{[]string{"SIFTLY_SCORING_MODEL"}, func(c *Config, v string) { c.ScoringModel = v }},
	{[]string{"SIFTLY_CHAT_MODEL"}, func(c *Config, v string) { c.ChatModel = v }},
	{[]string{"SIFTLY_OPENAI_API_KEY", "OPENAI_API_KEY"}, func(c *Config, v string) { c.OpenAIAPIKey = v }},
	{[]string{"SIFTLY_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"}, func(c *Config, v string) { c.AnthropicAPIKey = v }},
	{[]string{"SIFTLY_COMPLETION_SENTINEL"}, func(c *Config, v string) { c.CompletionSentinel = v }},
	{[]string{"SIFTLY_CONTRACTOR_NAME"}, func(c *Config, v string) { c.ContractorName = v }},
	{[]string{"SIFTLY_CONTRACTOR_PHONE", "CONTRACTOR_CELL"}, func(c *Config, v string) { c.ContractorPhone = v }},
	{[]string{"SIFTLY_TWILIO_ACCOUNT_SID", "TWILIO_ACCOUNT_SID"}, func(c *Config, v string) { c.TwilioAccountSID = v }},
	{[]string{"SIFTLY_TWILIO_AUTH_TOKEN", "TWILIO_AUTH_TOKEN"}, func(c *Config, v string) { c.TwilioAuthToken = v }},
	{[]string{"SIFTLY_TWILIO_NUMBER", "TWILIO_NUMBER"}, func(c *Config, v string) { c.TwilioNumber = v }},
	{[]string{"SIFTLY_DASHBOARD_URL", "DASHBOARD_URL"}, func(c *Config, v string) { c.DashboardURL = v }},
	{[]string{"SIFTLY_MESSAGES_PATH"}, func(c *Config, v string) { c.MessagesPath = v }},
	{[]string{"SIFTLY_HTTP_BIND"}, func(c *Config, v string) { c.HTTPBind = v }},
	{[]string{"SIFTLY_HTTP_PORT", "PORT"}, func(c *Config, v string) { setInt(&c.HTTPPort, v) }},
	{[]string{"SIFTLY_ORACLE_TIMEOUT_SECONDS"}, func(c *Config, v string) { setInt(&c.OracleTimeoutSeconds, v) }},
	{[]string{"SIFTLY_NOTIFY_TIMEOUT_SECONDS"}, func(c *Config, v string) { setInt(&c.NotifyTimeoutSeconds, v) }},
	{[]string{"SIFTLY_TRANSCRIPT_MAX_TOKENS"}, func(c *Config, v string) { setInt(&c.TranscriptMaxTokens, v) }},
}

// ApplyEnv overrides cfg fields from environment variables read through getenv.
// Unparseable numeric values are ignored and leave the current value in place.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	for _, b := range envBindings {
		for _, key := range b.keys {
			if v := strings.TrimSpace(getenv(key)); v != "" {
				b.apply(cfg, v)
				break
			}
		}
	}
}

func setInt(dst *int, v string) {
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		Mode:                 pickString(overlay.Mode, base.Mode),
		Scoring:              pickString(overlay.Scoring, base.Scoring),
		OracleProvider:       pickString(overlay.OracleProvider, base.OracleProvider),
		ScoringModel:         pickString(overlay.ScoringModel, base.ScoringModel),
		ChatModel:            pickString(overlay.ChatModel, base.ChatModel),
		OpenAIAPIKey:         pickString(overlay.OpenAIAPIKey, base.OpenAIAPIKey),
		AnthropicAPIKey:      pickString(overlay.AnthropicAPIKey, base.AnthropicAPIKey),
		OracleTimeoutSeconds: pickInt(overlay.OracleTimeoutSeconds, base.OracleTimeoutSeconds),
		NotifyTimeoutSeconds: pickInt(overlay.NotifyTimeoutSeconds, base.NotifyTimeoutSeconds),
		TranscriptMaxTokens:  pickInt(overlay.TranscriptMaxTokens, base.TranscriptMaxTokens),
		CompletionSentinel:   pickString(overlay.CompletionSentinel, base.CompletionSentinel),
		ContractorName:       pickString(overlay.ContractorName, base.ContractorName),
		ContractorPhone:      pickString(overlay.ContractorPhone, base.ContractorPhone),
		TwilioAccountSID:     pickString(overlay.TwilioAccountSID, base.TwilioAccountSID),
		TwilioAuthToken:      pickString(overlay.TwilioAuthToken, base.TwilioAuthToken),
		TwilioNumber:         pickString(overlay.TwilioNumber, base.TwilioNumber),
		DashboardURL:         pickString(overlay.DashboardURL, base.DashboardURL),
		MessagesPath:         pickString(overlay.MessagesPath, base.MessagesPath),
		HTTPBind:             pickString(overlay.HTTPBind, base.HTTPBind),
		HTTPPort:             pickInt(overlay.HTTPPort, base.HTTPPort),
		DBMaxOpenConns:       pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:       pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
