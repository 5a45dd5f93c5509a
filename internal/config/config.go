package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Telegram
	BotToken string
	AdminIDs []int64

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Export worker
	ExportDir      string
	ExportInterval time.Duration

	// Shift resolution
	Timezone string

	// Storage
	StorageTimeout time.Duration
}

func Load() *Config {
	cfg := &Config{
		BotToken: getEnv("BOT_TOKEN", ""),
		AdminIDs: getEnvInt64List("ADMIN_IDS", nil),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/totals.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "shifttally"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "entry_recorded"),

		ExportDir:      getEnv("EXPORT_DIR", "./exports"),
		ExportInterval: getEnvDuration("EXPORT_INTERVAL", 30*time.Second),

		Timezone: getEnv("SHIFT_TIMEZONE", "Asia/Phnom_Penh"),

		StorageTimeout: getEnvDuration("STORAGE_TIMEOUT", 5*time.Second),
	}

	return cfg
}

// Location resolves the configured shift time zone. Validate has already
// checked that the name loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// IsAdmin reports whether the chat ID is on the static allow-list.
func (c *Config) IsAdmin(chatID int64) bool {
	for _, id := range c.AdminIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.BotToken == "" {
		errors = append(errors, "BOT_TOKEN is required")
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// AMQP is optional: without it records still commit, only the async
	// export pipeline is disabled.
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ExportDir == "" {
		errors = append(errors, "export directory cannot be empty")
	}

	if c.ExportInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid export interval %v: must be at least 1 second", c.ExportInterval))
	} else if c.ExportInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid export interval %v: must be at most 24 hours", c.ExportInterval))
	}

	if c.StorageTimeout < 100*time.Millisecond {
		errors = append(errors, fmt.Sprintf("invalid storage timeout %v: must be at least 100ms", c.StorageTimeout))
	} else if c.StorageTimeout > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid storage timeout %v: must be at most 1 minute", c.StorageTimeout))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid shift timezone '%s': %v", c.Timezone, err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

// getEnvInt64List parses a comma-separated list of integers; malformed
// items are skipped rather than failing startup.
func getEnvInt64List(key string, defaultValue []int64) []int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []int64
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
