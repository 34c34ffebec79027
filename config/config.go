package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all relay configuration
type Config struct {
	Port           int
	AllowedOrigins []string
	MaxSessions    int
	SessionTimeout time.Duration

	RedisURL      string
	RedisPassword string

	UpstreamEndpoint   string // wss service root
	UpstreamDeployment string
	UpstreamAPIVersion string
	UpstreamAPIKey     string

	Voice        string
	Instructions string

	SearchEndpoint string
	SearchIndex    string
	SearchAPIKey   string

	ConnectMaxAttempts int
	ConnectBackoff     time.Duration

	LogLevel string
	LogFile  string
}

// SearchConfigured reports whether the search collaborator is fully
// configured; the rag tools are only attached when it is
func (c *Config) SearchConfigured() bool {
	return c.SearchEndpoint != "" && c.SearchIndex != "" && c.SearchAPIKey != ""
}

// Load reads configuration from environment variables with defaults
func Load() (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	config := &Config{
		Port:               8080,
		AllowedOrigins:     []string{"*"},
		MaxSessions:        100,
		SessionTimeout:     30 * time.Minute,
		RedisURL:           "localhost:6379",
		UpstreamAPIVersion: "2024-10-01-preview",
		Voice:              "alloy",
		ConnectMaxAttempts: 3,
		ConnectBackoff:     time.Second,
		LogLevel:           "info",
	}

	// Required: UPSTREAM_ENDPOINT
	config.UpstreamEndpoint = strings.TrimSuffix(os.Getenv("UPSTREAM_ENDPOINT"), "/")
	if config.UpstreamEndpoint == "" {
		return nil, fmt.Errorf("UPSTREAM_ENDPOINT environment variable is required")
	}

	// Required: UPSTREAM_DEPLOYMENT
	config.UpstreamDeployment = os.Getenv("UPSTREAM_DEPLOYMENT")
	if config.UpstreamDeployment == "" {
		return nil, fmt.Errorf("UPSTREAM_DEPLOYMENT environment variable is required")
	}

	// Required: UPSTREAM_API_KEY
	config.UpstreamAPIKey = os.Getenv("UPSTREAM_API_KEY")
	if config.UpstreamAPIKey == "" {
		return nil, fmt.Errorf("UPSTREAM_API_KEY environment variable is required")
	}

	// Optional: UPSTREAM_API_VERSION
	if v := os.Getenv("UPSTREAM_API_VERSION"); v != "" {
		config.UpstreamAPIVersion = v
	}

	// Optional: PORT
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		config.Port = p
	}

	// Optional: ALLOWED_ORIGINS (comma-separated)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	// Optional: MAX_SESSIONS
	if maxSessions := os.Getenv("MAX_SESSIONS"); maxSessions != "" {
		m, err := strconv.Atoi(maxSessions)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_SESSIONS: %w", err)
		}
		config.MaxSessions = m
	}

	// Optional: SESSION_TIMEOUT (in minutes)
	if timeout := os.Getenv("SESSION_TIMEOUT"); timeout != "" {
		t, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TIMEOUT: %w", err)
		}
		config.SessionTimeout = time.Duration(t) * time.Minute
	}

	// Optional: REDIS_URL / REDIS_PASSWORD
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.RedisURL = redisURL
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		config.RedisPassword = redisPassword
	}

	// Optional: VOICE
	if voice := os.Getenv("VOICE"); voice != "" {
		config.Voice = voice
	}

	// Optional: SYSTEM_INSTRUCTIONS
	config.Instructions = os.Getenv("SYSTEM_INSTRUCTIONS")

	// Optional: SEARCH_ENDPOINT / SEARCH_INDEX / SEARCH_API_KEY
	config.SearchEndpoint = strings.TrimSuffix(os.Getenv("SEARCH_ENDPOINT"), "/")
	config.SearchIndex = os.Getenv("SEARCH_INDEX")
	config.SearchAPIKey = os.Getenv("SEARCH_API_KEY")

	// Optional: CONNECT_MAX_ATTEMPTS
	if attempts := os.Getenv("CONNECT_MAX_ATTEMPTS"); attempts != "" {
		a, err := strconv.Atoi(attempts)
		if err != nil || a < 1 {
			return nil, fmt.Errorf("invalid CONNECT_MAX_ATTEMPTS: %q", attempts)
		}
		config.ConnectMaxAttempts = a
	}

	// Optional: CONNECT_BACKOFF_SECONDS
	if backoff := os.Getenv("CONNECT_BACKOFF_SECONDS"); backoff != "" {
		b, err := strconv.Atoi(backoff)
		if err != nil || b < 0 {
			return nil, fmt.Errorf("invalid CONNECT_BACKOFF_SECONDS: %q", backoff)
		}
		config.ConnectBackoff = time.Duration(b) * time.Second
	}

	// Optional: LOG_LEVEL / LOG_FILE
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		switch level {
		case "debug", "info", "warn", "error":
			config.LogLevel = level
		default:
			return nil, fmt.Errorf("invalid LOG_LEVEL: must be 'debug', 'info', 'warn' or 'error'")
		}
	}
	config.LogFile = os.Getenv("LOG_FILE")

	return config, nil
}
