package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Load reads .env files and the process environment into a validated Config.
func Load() (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}

	cfg, err := parse()
	if err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() error {
	// Base .env never overrides the real environment
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}
	}

	env := os.Getenv("ENVIRONMENT")
	if env != "" {
		envFile := fmt.Sprintf(".env.%s", env)
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Overload(envFile); err != nil {
				return fmt.Errorf("failed to load %s: %w", envFile, err)
			}
		}
	}

	if _, err := os.Stat(".env.local"); err == nil {
		if err := godotenv.Overload(".env.local"); err != nil {
			return fmt.Errorf("failed to load .env.local: %w", err)
		}
	}

	return nil
}

// parse reads configuration from environment variables
func parse() (*Config, error) {
	env := &envReader{}
	cfg := &Config{
		// Core
		Environment: env.getString("ENVIRONMENT", "local"),
		ServiceName: env.getString("SERVICE_NAME", "imagesaver"),
		Version:     env.getString("SERVICE_VERSION", "1.0.0"),
		LogLevel:    env.getString("LOG_LEVEL", "info"),
		LogFormat:   env.getString("LOG_FORMAT", "text"),

		HTTP: HTTPConfig{
			Addr:            env.getString("HTTP_ADDR", ":3000"),
			PublicHost:      env.getString("HOST", ""),
			ReadTimeout:     env.getDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    env.getDuration("HTTP_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: env.getDuration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second),
		},

		Download: DownloadConfig{
			Timeout:    env.getDuration("DOWNLOAD_TIMEOUT", 30*time.Second),
			MaxRetries: env.getInt("DOWNLOAD_MAX_RETRIES", 2),
			UserAgent:  env.getString("DOWNLOAD_USER_AGENT", "imagesaver/1.0"),
		},

		Storage: StorageConfig{
			Root:         env.getString("STORAGE_ROOT", "./data/images"),
			IDStrategy:   env.getString("STORAGE_ID_STRATEGY", "random"),
			MaxImageSize: env.getInt64("STORAGE_MAX_IMAGE_SIZE", 50*1024*1024),
		},

		Database: DatabaseConfig{
			Driver:       env.getString("DB_DRIVER", "sqlite"),
			DSN:          env.getString("DB_DSN", "./data/tokens.db"),
			MaxOpenConns: env.getInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: env.getInt("DB_MAX_IDLE_CONNS", 5),
		},

		Access: AccessConfig{
			UsageMode:         env.getString("ACCESS_USAGE_MODE", "success"),
			ServeRequireToken: env.getBool("ACCESS_SERVE_REQUIRE_TOKEN", false),
			Tokens:            env.getTokenSeeds("ACCESS_TOKENS"),
			RevokedTokens:     env.getList("ACCESS_REVOKED_TOKENS"),
		},

		Handler: HandlerConfig{
			MaxRequestSize: env.getInt64("HANDLER_MAX_REQUEST_SIZE", 64*1024),
			EnableMetrics:  env.getBool("HANDLER_ENABLE_METRICS", true),
		},
	}

	return cfg, env.err()
}
