package config

import "time"

// DefaultConfig returns a complete configuration with sensible defaults.
// Tests start from it and override specific parts.
func DefaultConfig() *Config {
	return &Config{
		Environment: "test",
		ServiceName: "imagesaver",
		Version:     "1.0.0",
		LogLevel:    "info",
		LogFormat:   "text",

		HTTP: HTTPConfig{
			Addr:            ":3000",
			PublicHost:      "http://localhost:3000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Download: DownloadConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 2,
			UserAgent:  "imagesaver/1.0",
		},
		Storage: StorageConfig{
			Root:         "./data/images",
			IDStrategy:   "random",
			MaxImageSize: 50 * 1024 * 1024,
		},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			DSN:          "./data/tokens.db",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Access: AccessConfig{
			UsageMode: "success",
		},
		Handler: HandlerConfig{
			MaxRequestSize: 64 * 1024,
			EnableMetrics:  true,
		},
	}
}
