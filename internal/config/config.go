// Package config provides application configuration management with support
// for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	User    UserConfig
	Logger  LoggerConfig
	Data    DataConfig
	Remote  RemoteConfig
	Cache   CacheConfig
	Catalog CatalogConfig
	Server  ServerConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// UserConfig identifies the user this daemon syncs for. The ID is an opaque
// string issued by the identity layer; the daemon never interprets it.
type UserConfig struct {
	ID string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds local persistence configuration.
type DataConfig struct {
	// BasePath is the directory holding the Badger database.
	BasePath string
}

// RemoteConfig holds remote document store configuration.
type RemoteConfig struct {
	// Endpoint is the base URL of the document store API. Empty means the
	// daemon runs in local mode against the in-process store.
	Endpoint string
	// APIKey authenticates against the document store, if it requires one.
	APIKey string
}

// CacheConfig holds read-through cache TTLs. Version-based invalidation
// handles "data changed elsewhere"; these TTLs handle "the upstream source
// changed with no notification".
type CacheConfig struct {
	// CatalogTTL applies to catalog search and recommendation caches.
	CatalogTTL time.Duration
	// ListTTL applies to slow-moving curated list caches.
	ListTTL time.Duration
}

// CatalogConfig holds catalog search API configuration.
type CatalogConfig struct {
	BaseURL string
	// Retries is the number of retries after the first attempt, applied to
	// 5xx responses only.
	Retries int
	// RetryBaseDelay is the base backoff delay before jitter.
	RetryBaseDelay time.Duration
	// RequestTimeout bounds each catalog request.
	RequestTimeout time.Duration
}

// ServerConfig holds the admin HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	userID := flag.String("user-id", "", "User identity to sync for")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := flag.String("data-path", "", "Base path for local state storage")
	remoteEndpoint := flag.String("remote-endpoint", "", "Document store base URL (empty = local mode)")
	remoteAPIKey := flag.String("remote-api-key", "", "Document store API key")
	catalogURL := flag.String("catalog-url", "", "Catalog search API base URL")
	serverPort := flag.String("port", "", "Admin server port (default: 8080)")

	catalogTTL := flag.String("cache-catalog-ttl", "", "Catalog cache TTL (default: 45m)")
	listTTL := flag.String("cache-list-ttl", "", "Curated list cache TTL (default: 3h)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		User: UserConfig{
			ID: getConfigValue(*userID, "USER_ID", ""),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Remote: RemoteConfig{
			Endpoint: getConfigValue(*remoteEndpoint, "REMOTE_ENDPOINT", ""),
			APIKey:   getConfigValue(*remoteAPIKey, "REMOTE_API_KEY", ""),
		},
		Catalog: CatalogConfig{
			BaseURL: getConfigValue(*catalogURL, "CATALOG_URL", "https://openlibrary.org"),
			Retries: getIntConfigValue("", "CATALOG_RETRIES", 2),
		},
		Server: ServerConfig{
			Port: getConfigValue(*serverPort, "SERVER_PORT", "8080"),
		},
	}

	// Parse durations.
	var err error
	if cfg.Cache.CatalogTTL, err = parseDurationValue(*catalogTTL, "CACHE_CATALOG_TTL", "45m"); err != nil {
		return nil, err
	}
	if cfg.Cache.ListTTL, err = parseDurationValue(*listTTL, "CACHE_LIST_TTL", "3h"); err != nil {
		return nil, err
	}
	if cfg.Catalog.RetryBaseDelay, err = parseDurationValue("", "CATALOG_RETRY_BASE_DELAY", "250ms"); err != nil {
		return nil, err
	}
	if cfg.Catalog.RequestTimeout, err = parseDurationValue("", "CATALOG_REQUEST_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.Server.ReadTimeout, err = parseDurationValue("", "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = parseDurationValue("", "SERVER_WRITE_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = parseDurationValue("", "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, err
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	if c.Cache.CatalogTTL <= 0 || c.Cache.ListTTL <= 0 {
		return errors.New("cache TTLs must be positive")
	}

	if c.Catalog.Retries < 0 {
		return errors.New("catalog retries cannot be negative")
	}

	return nil
}

// expandDataPath expands ~ and makes the path absolute, defaulting to
// ~/ShelfSync/data.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "ShelfSync", "data")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// parseDurationValue resolves a duration from flag, env var, or default.
func parseDurationValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", strings.ToLower(envKey), strValue, err)
	}
	return d, nil
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		// Env vars take precedence over .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
