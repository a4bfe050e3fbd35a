package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for sourcewatch. Keys are flat and map
// one-to-one onto environment variables with the SOURCEWATCH_ prefix.
type Config struct {
	// MongoDBURI is the connection string for the document store.
	MongoDBURI string `mapstructure:"mongodb_uri" yaml:"mongodb_uri"`

	// MongoDBDatabase is the database holding all collections.
	MongoDBDatabase string `mapstructure:"mongodb_db" yaml:"mongodb_db"`

	// CrawlerUserAgent identifies the crawler to servers and robots.txt.
	CrawlerUserAgent string `mapstructure:"crawler_user_agent" yaml:"crawler_user_agent"`

	// CrawlerDelay is the default per-host pacing gap in seconds.
	CrawlerDelay float64 `mapstructure:"crawler_delay" yaml:"crawler_delay"`

	// MaxWorkers bounds how many crawl runs execute in parallel.
	MaxWorkers int `mapstructure:"max_workers" yaml:"max_workers"`

	// RequestTimeout is the default per-attempt HTTP timeout in seconds.
	RequestTimeout int `mapstructure:"request_timeout" yaml:"request_timeout"`

	// MaxRetries is the default retry budget for retryable failures.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// LogFile appends logs to a file when set; stderr otherwise.
	LogFile string `mapstructure:"log_file" yaml:"log_file"`

	APIHost string `mapstructure:"api_host" yaml:"api_host"`
	APIPort int    `mapstructure:"api_port" yaml:"api_port"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MongoDBURI:       "mongodb://localhost:27017",
		MongoDBDatabase:  "sourcewatch",
		CrawlerUserAgent: "SourceWatchBot/1.0 (+https://github.com/sourcewatch/sourcewatch)",
		CrawlerDelay:     1.0,
		MaxWorkers:       5,
		RequestTimeout:   30,
		MaxRetries:       3,
		LogLevel:         "info",
		LogFile:          "",
		APIHost:          "0.0.0.0",
		APIPort:          8000,
	}
}

// Delay returns the per-host pacing gap as a duration.
func (c *Config) Delay() time.Duration {
	return time.Duration(c.CrawlerDelay * float64(time.Second))
}

// Timeout returns the per-attempt HTTP timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}
