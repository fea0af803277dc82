// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// telegram
	TGApiID     int
	TGApiHash   string
	TGPhone     string
	SessionFile string

	// channels
	SourceChannel string // username of the channel to export
	DestChannel   string // optional re-upload destination; empty disables upload

	// pipeline
	OutputDir    string
	PageLimit    int
	BatchWidth   int
	PageDelay    time.Duration
	ChunkDelay   time.Duration
	RetryCount   int
	RetryBackoff time.Duration

	// rate governor
	RateRPS       float64
	RateBurst     int
	RateThreshold int
	RateWindow    time.Duration
	RateCooldown  time.Duration

	// download policy
	PolicyFile string

	// optional progress events
	NatsURL string

	// fatal error cooldown before exit
	FatalCooldown time.Duration

	// logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		TGApiID:       getEnvInt("TG_API_ID", 0),
		TGApiHash:     getEnv("TG_API_HASH", ""),
		TGPhone:       getEnv("TG_PHONE", ""),
		SessionFile:   getEnv("TG_SESSION_FILE", "./session/mirror.db"),
		SourceChannel: getEnv("SOURCE_CHANNEL", ""),
		DestChannel:   getEnv("DEST_CHANNEL", ""),
		OutputDir:     getEnv("OUTPUT_DIR", "./export"),
		PageLimit:     getEnvInt("PAGE_LIMIT", 100),
		BatchWidth:    getEnvInt("BATCH_WIDTH", 5),
		PageDelay:     getEnvDuration("PAGE_DELAY", 2*time.Second),
		ChunkDelay:    getEnvDuration("CHUNK_DELAY", 1*time.Second),
		RetryCount:    getEnvInt("RETRY_COUNT", 3),
		RetryBackoff:  getEnvDuration("RETRY_BACKOFF", 1*time.Second),
		RateRPS:       getEnvFloat("RATE_RPS", 2.0),
		RateBurst:     getEnvInt("RATE_BURST", 1),
		RateThreshold: getEnvInt("RATE_THRESHOLD", 15),
		RateWindow:    getEnvDuration("RATE_WINDOW", 60*time.Second),
		RateCooldown:  getEnvDuration("RATE_COOLDOWN", 60*time.Second),
		PolicyFile:    getEnv("POLICY_FILE", ""),
		NatsURL:       getEnv("NATS_URL", ""),
		FatalCooldown: getEnvDuration("FATAL_COOLDOWN", 5*time.Minute),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", "./logs/mirror.log"),
	}

	return cfg, nil
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	if c.TGApiID == 0 || c.TGApiHash == "" {
		return fmt.Errorf("TG_API_ID and TG_API_HASH are required")
	}
	if c.SourceChannel == "" {
		return fmt.Errorf("SOURCE_CHANNEL is required")
	}
	return nil
}

// UploadEnabled reports whether re-upload to a destination channel is configured.
func (c *Config) UploadEnabled() bool {
	return c.DestChannel != ""
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// getEnvDuration parses values like "500ms" or "2s".
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
