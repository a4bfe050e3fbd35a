package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.MongoDBURI) == "" {
		return fmt.Errorf("mongodb_uri must not be empty")
	}
	if !strings.HasPrefix(cfg.MongoDBURI, "mongodb://") && !strings.HasPrefix(cfg.MongoDBURI, "mongodb+srv://") {
		return fmt.Errorf("mongodb_uri must start with mongodb:// or mongodb+srv://, got %q", cfg.MongoDBURI)
	}
	if strings.TrimSpace(cfg.MongoDBDatabase) == "" {
		return fmt.Errorf("mongodb_db must not be empty")
	}
	if strings.TrimSpace(cfg.CrawlerUserAgent) == "" {
		return fmt.Errorf("crawler_user_agent must not be empty")
	}
	if cfg.CrawlerDelay < 0 {
		return fmt.Errorf("crawler_delay must be >= 0, got %v", cfg.CrawlerDelay)
	}
	if cfg.MaxWorkers < 1 {
		return fmt.Errorf("max_workers must be >= 1, got %d", cfg.MaxWorkers)
	}
	if cfg.MaxWorkers > 100 {
		return fmt.Errorf("max_workers must be <= 100, got %d", cfg.MaxWorkers)
	}
	if cfg.RequestTimeout < 1 {
		return fmt.Errorf("request_timeout must be >= 1 second, got %d", cfg.RequestTimeout)
	}
	if cfg.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", cfg.MaxRetries)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return fmt.Errorf("log_level must be debug/info/warn/error, got %q", cfg.LogLevel)
	}

	if cfg.APIPort < 1 || cfg.APIPort > 65535 {
		return fmt.Errorf("api_port must be 1-65535, got %d", cfg.APIPort)
	}

	return nil
}
