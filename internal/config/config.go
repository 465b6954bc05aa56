// ABOUTME: Centralized configuration for the Notion copilot
// ABOUTME: Loads from .env and environment variables with validation and defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Transcript backends
const (
	TranscriptSQLite = "sqlite"
	TranscriptCharm  = "charm"
	TranscriptMemory = "memory"
)

// Config holds all configuration for the copilot
type Config struct {
	// Notion backends
	MCPURL       string
	ProxyURL     string
	NotionAPIKey string
	ToolsMCPURL  string
	StartOffline bool

	// OAuth popup handshake
	OAuthClientID     string
	OAuthClientSecret string
	OAuthAuthorizeURL string
	OAuthTokenURL     string
	OAuthRedirectURL  string

	// Timeouts and resilience
	ConnectTimeout     time.Duration
	RequestTimeout     time.Duration
	AuthTimeout        time.Duration
	IntentDebounce     time.Duration
	DegradedCooldown   time.Duration
	ValidationCooldown time.Duration
	MaxReconnects      int

	// OpenAI settings
	OpenAIKey  string
	ChatModel  string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	// Transcript persistence
	Transcript  string
	DBPath      string
	CharmHost   string
	CharmDBName string
	AutoSync    bool

	// Serving and logging
	ListenAddr string
	LogLevel   string
	LogFormat  string
}

// Load reads .env (when present) and then environment variables
func Load() (*Config, error) {
	// A missing .env file is normal outside development
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads configuration from environment variables only
func FromEnv() (*Config, error) {
	cfg := &Config{
		MCPURL:       os.Getenv("NOTION_MCP_URL"),
		ProxyURL:     os.Getenv("NOTION_PROXY_URL"),
		NotionAPIKey: os.Getenv("NOTION_API_KEY"),
		ToolsMCPURL:  os.Getenv("TOOLS_MCP_URL"),
		StartOffline: getEnvBool("COPILOT_OFFLINE", false),

		OAuthClientID:     os.Getenv("NOTION_OAUTH_CLIENT_ID"),
		OAuthClientSecret: os.Getenv("NOTION_OAUTH_CLIENT_SECRET"),
		OAuthAuthorizeURL: getEnv("NOTION_OAUTH_AUTHORIZE_URL", "https://api.notion.com/v1/oauth/authorize"),
		OAuthTokenURL:     getEnv("NOTION_OAUTH_TOKEN_URL", "https://api.notion.com/v1/oauth/token"),
		OAuthRedirectURL:  getEnv("NOTION_OAUTH_REDIRECT_URL", "http://localhost:8787/auth/callback"),

		ConnectTimeout:     getEnvDuration("COPILOT_CONNECT_TIMEOUT", 10*time.Second),
		RequestTimeout:     getEnvDuration("COPILOT_REQUEST_TIMEOUT", 30*time.Second),
		AuthTimeout:        getEnvDuration("COPILOT_AUTH_TIMEOUT", 120*time.Second),
		IntentDebounce:     getEnvDuration("COPILOT_INTENT_DEBOUNCE", 800*time.Millisecond),
		DegradedCooldown:   getEnvDuration("COPILOT_DEGRADED_COOLDOWN", 5*time.Minute),
		ValidationCooldown: getEnvDuration("COPILOT_VALIDATION_COOLDOWN", 5*time.Minute),
		MaxReconnects:      getEnvInt("COPILOT_MAX_RECONNECTS", 3),

		OpenAIKey:  os.Getenv("OPENAI_API_KEY"),
		ChatModel:  getEnv("COPILOT_CHAT_MODEL", "gpt-4o-mini"),
		Timeout:    getEnvDuration("OPENAI_TIMEOUT", 30*time.Second),
		MaxRetries: getEnvInt("OPENAI_MAX_RETRIES", 2),
		RetryDelay: getEnvDuration("OPENAI_RETRY_DELAY", time.Second),

		Transcript:  getEnv("COPILOT_TRANSCRIPT", TranscriptSQLite),
		DBPath:      getEnv("COPILOT_DB_PATH", DefaultDBPath()),
		CharmHost:   getEnv("CHARM_HOST", "cloud.charm.sh"),
		CharmDBName: getEnv("CHARM_DB", "copilot"),
		AutoSync:    getEnvBool("CHARM_AUTO_SYNC", true),

		ListenAddr: getEnv("COPILOT_LISTEN_ADDR", ":8787"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "console"),
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	durations := map[string]time.Duration{
		"COPILOT_CONNECT_TIMEOUT": c.ConnectTimeout,
		"COPILOT_REQUEST_TIMEOUT": c.RequestTimeout,
		"COPILOT_AUTH_TIMEOUT":    c.AuthTimeout,
		"COPILOT_INTENT_DEBOUNCE": c.IntentDebounce,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, d)
		}
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("OPENAI_MAX_RETRIES must be 0-10, got %d", c.MaxRetries)
	}
	if c.MaxReconnects < 0 {
		return fmt.Errorf("COPILOT_MAX_RECONNECTS must not be negative, got %d", c.MaxReconnects)
	}
	switch c.Transcript {
	case TranscriptSQLite, TranscriptCharm, TranscriptMemory:
	default:
		return fmt.Errorf("COPILOT_TRANSCRIPT must be sqlite, charm, or memory, got %q", c.Transcript)
	}
	return nil
}

// HasNetworkBackend reports whether any network tier is configured
func (c *Config) HasNetworkBackend() bool {
	return c.MCPURL != "" || c.ProxyURL != ""
}

// OAuthConfigured reports whether the popup handshake can run
func (c *Config) OAuthConfigured() bool {
	return c.OAuthClientID != "" && c.OAuthAuthorizeURL != ""
}

// DefaultDBPath returns the transcript database path following the XDG spec
func DefaultDBPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".local", "share", "copilot", "transcript.db")
		}
		dataHome = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataHome, "copilot", "transcript.db")
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
