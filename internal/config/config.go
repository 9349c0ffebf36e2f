package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	ModePolling = "polling"
	ModeWebhook = "webhook"

	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

type Config struct {
	// Telegram
	TelegramToken         string
	TelegramMode          string
	TelegramWebhookURL    string
	TelegramWebhookSecret string

	// HTTP Server
	Port string

	// Storage
	DataBackend     string
	SQLiteDBPath    string
	TotalsCacheSize int
	TotalsCacheTTL  time.Duration

	// AMQP, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// AuditLogPath is where the event worker appends records; empty means stdout
	AuditLogPath string

	// Update processing
	Workers            int
	RateLimitPerMinute int

	LogLevel string
}

func Load() *Config {
	return &Config{
		TelegramToken:         getEnv("TELEGRAM_TOKEN", ""),
		TelegramMode:          getEnv("TELEGRAM_MODE", ModePolling),
		TelegramWebhookURL:    getEnv("TELEGRAM_WEBHOOK_URL", ""),
		TelegramWebhookSecret: getEnv("TELEGRAM_WEBHOOK_SECRET", ""),

		Port: getEnv("PORT", "8081"),

		DataBackend:     getEnv("DATA_BACKEND", BackendSQLite),
		SQLiteDBPath:    getEnv("SQLITE_DB_PATH", "./data/xarajat.db"),
		TotalsCacheSize: getEnvInt("TOTALS_CACHE_SIZE", 1000),
		TotalsCacheTTL:  getEnvDuration("TOTALS_CACHE_TTL", 5*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "xarajat"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "expense_events"),

		AuditLogPath: getEnv("AUDIT_LOG_PATH", ""),

		Workers:            getEnvInt("WORKERS", 8),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// webhookSecretPattern is the character set Telegram accepts for secret_token.
var webhookSecretPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,256}$`)

// AMQPEnabled reports whether ledger events should be published.
func (c *Config) AMQPEnabled() bool { return c.AMQPURL != "" }

// Validate checks everything the bot process needs and returns all problems at once.
func (c *Config) Validate() error {
	errs := c.validateCommon()

	if c.TelegramToken == "" {
		errs = append(errs, "TELEGRAM_TOKEN is required")
	}

	switch c.TelegramMode {
	case ModePolling:
	case ModeWebhook:
		if c.TelegramWebhookURL == "" {
			errs = append(errs, "TELEGRAM_WEBHOOK_URL is required in webhook mode")
		} else if u, err := url.Parse(c.TelegramWebhookURL); err != nil || u.Scheme != "https" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("invalid webhook URL '%s': must be an absolute https URL", c.TelegramWebhookURL))
		}
		if c.TelegramWebhookSecret == "" {
			errs = append(errs, "TELEGRAM_WEBHOOK_SECRET is required in webhook mode")
		} else if !webhookSecretPattern.MatchString(c.TelegramWebhookSecret) {
			errs = append(errs, "invalid TELEGRAM_WEBHOOK_SECRET: must be 1-256 characters of A-Z, a-z, 0-9, _ or -")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid telegram mode '%s': must be one of %v", c.TelegramMode, []string{ModePolling, ModeWebhook}))
	}

	if c.Workers < 1 || c.Workers > 256 {
		errs = append(errs, fmt.Sprintf("invalid worker count %d: must be between 1 and 256", c.Workers))
	}
	if c.RateLimitPerMinute < 0 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
	}
	if c.TotalsCacheSize < 0 {
		errs = append(errs, fmt.Sprintf("invalid totals cache size %d: must not be negative", c.TotalsCacheSize))
	}
	if c.TotalsCacheSize > 0 && c.TotalsCacheTTL < time.Second {
		errs = append(errs, fmt.Sprintf("invalid totals cache TTL %v: must be at least 1 second", c.TotalsCacheTTL))
	}

	return joinErrors(errs)
}

// ValidateWorker checks the configuration of the event worker, which needs AMQP
// but no Telegram credentials.
func (c *Config) ValidateWorker() error {
	errs := c.validateCommon()
	if !c.AMQPEnabled() {
		errs = append(errs, "AMQP_URL is required for the event worker")
	}
	return joinErrors(errs)
}

func (c *Config) validateCommon() []string {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{BackendMemory, BackendSQLite}
	if !slices.Contains(validBackends, c.DataBackend) {
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.AMQPEnabled() {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	return errs
}

func joinErrors(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
