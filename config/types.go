package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Core settings
	Environment string
	ServiceName string
	Version     string
	LogLevel    string
	LogFormat   string

	// Component configurations
	HTTP     HTTPConfig
	Download DownloadConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Access   AccessConfig
	Handler  HandlerConfig
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Addr            string
	PublicHost      string // Prefix of the URLs returned to callers
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DownloadConfig holds the upstream fetch configuration
type DownloadConfig struct {
	Timeout    time.Duration
	MaxRetries int
	UserAgent  string
}

// StorageConfig holds image storage configuration
type StorageConfig struct {
	Root         string
	IDStrategy   string // "random" or "ulid"
	MaxImageSize int64  // 0 means unlimited
}

// DatabaseConfig holds token store configuration
type DatabaseConfig struct {
	Driver       string // "sqlite" or "postgres"
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// AccessConfig holds authorization policy
type AccessConfig struct {
	UsageMode         string // "success" or "accepted"
	ServeRequireToken bool
	// Tokens are registered at startup when missing, RevokedTokens removed
	Tokens        []TokenSeed
	RevokedTokens []string
}

// TokenSeed is a token provisioned from ACCESS_TOKENS ("token:project")
type TokenSeed struct {
	Token       string
	ProjectName string
}

// HandlerConfig holds request handling configuration
type HandlerConfig struct {
	MaxRequestSize int64
	EnableMetrics  bool
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	var errors []string

	if c.ServiceName == "" {
		errors = append(errors, "SERVICE_NAME is required")
	}
	if c.HTTP.PublicHost == "" {
		errors = append(errors, "HOST is required")
	}
	if c.Storage.Root == "" {
		errors = append(errors, "STORAGE_ROOT is required")
	}
	if c.Database.DSN == "" {
		errors = append(errors, "DB_DSN is required")
	}

	if c.Download.Timeout <= 0 {
		errors = append(errors, "DOWNLOAD_TIMEOUT must be positive")
	}
	if c.Download.MaxRetries < 0 {
		errors = append(errors, "DOWNLOAD_MAX_RETRIES cannot be negative")
	}
	if c.Storage.MaxImageSize < 0 {
		errors = append(errors, "STORAGE_MAX_IMAGE_SIZE cannot be negative")
	}
	if c.Handler.MaxRequestSize <= 0 {
		errors = append(errors, "HANDLER_MAX_REQUEST_SIZE must be positive")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		errors = append(errors, "HTTP_SHUTDOWN_TIMEOUT must be positive")
	}

	switch c.Storage.IDStrategy {
	case "random", "ulid":
	default:
		errors = append(errors, fmt.Sprintf("STORAGE_ID_STRATEGY %q is not supported", c.Storage.IDStrategy))
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errors = append(errors, fmt.Sprintf("DB_DRIVER %q is not supported", c.Database.Driver))
	}
	switch c.Access.UsageMode {
	case "success", "accepted":
	default:
		errors = append(errors, fmt.Sprintf("ACCESS_USAGE_MODE %q is not supported", c.Access.UsageMode))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// applyDefaults applies environment-specific defaults
func (c *Config) applyDefaults() {
	c.HTTP.PublicHost = strings.TrimRight(c.HTTP.PublicHost, "/")
	c.Storage.IDStrategy = strings.ToLower(c.Storage.IDStrategy)
	c.Database.Driver = strings.ToLower(c.Database.Driver)
	c.Access.UsageMode = strings.ToLower(c.Access.UsageMode)

	if c.IsProduction() {
		// Machine-readable logs in production
		c.LogFormat = "json"
	}

	if c.IsLocal() && c.HTTP.PublicHost == "" {
		c.HTTP.PublicHost = "http://localhost" + c.HTTP.Addr
	}
}

// Environment detection methods

// IsLocal returns true if running in local/development environment
func (c *Config) IsLocal() bool {
	env := strings.ToLower(c.Environment)
	return env == "local" || env == "development" || env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Environment)
	return env == "production" || env == "prod"
}
