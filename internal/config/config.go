package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

var (
	ErrMissingRequired      = errors.New("required environment variable is not set")
	ErrInvalidValue         = errors.New("invalid configuration value")
	ErrNoRequestChannels    = errors.New("REQUEST_CHANNELS must map at least one request type")
	ErrMissingAcceloAuth    = errors.New("either ACCELO_ACCESS_TOKEN or ACCELO_CLIENT_ID and ACCELO_CLIENT_SECRET must be set")
	ErrMissingDenyChannel   = errors.New("DENYLIST_CHANNEL is required when TITLE_DENYLIST is not empty")
	errNonPositiveDuration  = errors.New("must be positive")
	errNonPositiveRateLimit = errors.New("ACCELO_RATE_LIMIT and ACCELO_RATE_BURST must be positive")
)

// DefaultTitleDenylist holds the alert prefixes that are closed on arrival
// when TITLE_DENYLIST is not set.
var DefaultTitleDenylist = []string{
	"[macOS Updates]",
	"[Windows Update]",
	"[Root Capacity]",
	"[OpenDNS Active]",
	"[Reboot Events]",
	"[Time Machine]",
	"[Activation Lock]",
}

// Config holds all application configuration.
type Config struct {
	// Webhook settings
	WebhookSecret string

	// Accelo settings
	AcceloDomain       string
	AcceloClientID     string
	AcceloClientSecret string
	AcceloAccessToken  string
	AcceloRateLimit    float64
	AcceloRateBurst    int

	// Slack settings
	SlackBotToken     string
	SlackClientID     string
	SlackClientSecret string

	// Routing and message settings
	RequestChannels   map[string]string
	DenylistChannel   string
	TitleDenylist     []string
	AlertRequestType  string
	StatusChangeDelay time.Duration

	// Firestore settings
	FirestoreProjectID  string
	FirestoreDatabaseID string

	// Server settings
	Port                  string
	GinMode               string
	LogLevel              string
	ServerReadTimeout     time.Duration
	ServerWriteTimeout    time.Duration
	ServerShutdownTimeout time.Duration
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		WebhookSecret: getEnvRequired("WEBHOOK_SECRET"),

		AcceloDomain:       getEnvRequired("ACCELO_DOMAIN"),
		AcceloClientID:     os.Getenv("ACCELO_CLIENT_ID"),
		AcceloClientSecret: os.Getenv("ACCELO_CLIENT_SECRET"),
		AcceloAccessToken:  os.Getenv("ACCELO_ACCESS_TOKEN"),

		SlackBotToken:     getEnvRequired("SLACK_BOT_TOKEN"),
		SlackClientID:     os.Getenv("SLACK_CLIENT_ID"),
		SlackClientSecret: os.Getenv("SLACK_CLIENT_SECRET"),

		DenylistChannel:  os.Getenv("DENYLIST_CHANNEL"),
		AlertRequestType: getEnvDefault("ALERT_REQUEST_TYPE", "Alerts"),

		FirestoreProjectID:  getEnvRequired("FIRESTORE_PROJECT_ID"),
		FirestoreDatabaseID: getEnvDefault("FIRESTORE_DATABASE_ID", "(default)"),

		Port:     getEnvDefault("PORT", "8080"),
		GinMode:  getEnvDefault("GIN_MODE", "debug"),
		LogLevel: getEnvDefault("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.RequestChannels, err = getEnvJSONMap("REQUEST_CHANNELS"); err != nil {
		return nil, err
	}
	if cfg.TitleDenylist, err = getEnvJSONList("TITLE_DENYLIST", DefaultTitleDenylist); err != nil {
		return nil, err
	}
	if cfg.AcceloRateLimit, err = getEnvFloat("ACCELO_RATE_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.AcceloRateBurst, err = getEnvInt("ACCELO_RATE_BURST", 5); err != nil {
		return nil, err
	}

	durations := []struct {
		key      string
		target   *time.Duration
		fallback time.Duration
	}{
		{"STATUS_CHANGE_DELAY", &cfg.StatusChangeDelay, 2 * time.Second},
		{"SERVER_READ_TIMEOUT", &cfg.ServerReadTimeout, 30 * time.Second},
		{"SERVER_WRITE_TIMEOUT", &cfg.ServerWriteTimeout, 30 * time.Second},
		{"SERVER_SHUTDOWN_TIMEOUT", &cfg.ServerShutdownTimeout, 30 * time.Second},
	}
	for _, d := range durations {
		if *d.target, err = getEnvDuration(d.key, d.fallback); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and consistent.
func (c *Config) Validate() error {
	required := map[string]string{
		"WEBHOOK_SECRET":       c.WebhookSecret,
		"ACCELO_DOMAIN":        c.AcceloDomain,
		"SLACK_BOT_TOKEN":      c.SlackBotToken,
		"FIRESTORE_PROJECT_ID": c.FirestoreProjectID,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%w: %s", ErrMissingRequired, name)
		}
	}

	if c.AcceloAccessToken == "" && (c.AcceloClientID == "" || c.AcceloClientSecret == "") {
		return ErrMissingAcceloAuth
	}
	if len(c.RequestChannels) == 0 {
		return ErrNoRequestChannels
	}
	if len(c.TitleDenylist) > 0 && c.DenylistChannel == "" {
		return ErrMissingDenyChannel
	}

	if c.GinMode != "debug" && c.GinMode != "release" && c.GinMode != "test" {
		return fmt.Errorf("%w: GIN_MODE %q (must be debug, release, or test)", ErrInvalidValue, c.GinMode)
	}
	if c.LogLevel != "debug" && c.LogLevel != "info" && c.LogLevel != "warn" && c.LogLevel != "error" {
		return fmt.Errorf("%w: LOG_LEVEL %q (must be debug, info, warn, or error)", ErrInvalidValue, c.LogLevel)
	}

	if c.AcceloRateLimit <= 0 || c.AcceloRateBurst <= 0 {
		return errNonPositiveRateLimit
	}
	if c.StatusChangeDelay < 0 {
		return fmt.Errorf("%w: STATUS_CHANGE_DELAY must not be negative", ErrInvalidValue)
	}
	timeouts := map[string]time.Duration{
		"SERVER_READ_TIMEOUT":     c.ServerReadTimeout,
		"SERVER_WRITE_TIMEOUT":    c.ServerWriteTimeout,
		"SERVER_SHUTDOWN_TIMEOUT": c.ServerShutdownTimeout,
	}
	for name, value := range timeouts {
		if value <= 0 {
			return fmt.Errorf("%w: %s %w", ErrInvalidValue, name, errNonPositiveDuration)
		}
	}

	return nil
}

// ChannelFor returns the Slack channel mapped to an Accelo request type title.
// ok is false for unmapped types; callers must not substitute another channel.
func (c *Config) ChannelFor(requestType string) (channel string, ok bool) {
	channel, ok = c.RequestChannels[requestType]
	return channel, ok
}

// AcceloAPIURL is the REST base of the deployment, with a trailing slash.
func (c *Config) AcceloAPIURL() string {
	return fmt.Sprintf("https://%s.api.accelo.com/api/v0/", c.AcceloDomain)
}

// AcceloTokenURL is the OAuth token endpoint of the deployment.
func (c *Config) AcceloTokenURL() string {
	return fmt.Sprintf("https://%s.api.accelo.com/oauth2/v0/token", c.AcceloDomain)
}

// AcceloWebURL is the browser URL of the deployment.
func (c *Config) AcceloWebURL() string {
	return fmt.Sprintf("https://%s.accelo.com", c.AcceloDomain)
}

// getEnvRequired gets an environment variable or returns empty string if not set.
// Validate reports required values that are missing.
func getEnvRequired(key string) string {
	return os.Getenv(key)
}

// getEnvDefault gets an environment variable with a default value.
func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: integer value for %s: %s", ErrInvalidValue, key, value)
	}
	return i, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: number value for %s: %s", ErrInvalidValue, key, value)
	}
	return f, nil
}

// getEnvDuration gets a duration environment variable with a default value.
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: duration value for %s: %s", ErrInvalidValue, key, value)
	}
	return d, nil
}

// getEnvJSONMap parses a JSON object of strings, e.g. {"Support Request":"C0123"}.
func getEnvJSONMap(key string) (map[string]string, error) {
	value := os.Getenv(key)
	if value == "" {
		return map[string]string{}, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(value), &m); err != nil {
		return nil, fmt.Errorf("%w: %s must be a JSON object of strings: %w", ErrInvalidValue, key, err)
	}
	return m, nil
}

// getEnvJSONList parses a JSON array of strings. Titles contain commas and
// brackets, so a delimited list is not an option.
func getEnvJSONList(key string, defaultValue []string) ([]string, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(value), &list); err != nil {
		return nil, fmt.Errorf("%w: %s must be a JSON array of strings: %w", ErrInvalidValue, key, err)
	}
	return list, nil
}
