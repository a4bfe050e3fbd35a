package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sourcewatch/sourcewatch/internal/config"
	"github.com/sourcewatch/sourcewatch/internal/storage"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sourcewatch",
		Short: "sourcewatch — scheduled multi-source crawler with keyword search",
		Long: `sourcewatch watches configured web sources on cron schedules, stores what
it finds in MongoDB, and makes it searchable.

Features:
  • Per-source cron scheduling with bounded parallel crawls
  • HTML, RSS/Atom, PDF, plain-text and social JSON sources
  • Polite fetching: robots.txt, per-host pacing, retries with backoff
  • Blocking detection (HTTP blocks, CAPTCHA pages, IP bans)
  • Keyword extraction and full-text search with snippets
  • JSON HTTP API with reports and Prometheus metrics`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(sourcesCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sourcewatch %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Store:\n")
			fmt.Printf("  MongoDB URI:       %s\n", cfg.MongoDBURI)
			fmt.Printf("  Database:          %s\n", cfg.MongoDBDatabase)
			fmt.Printf("\nCrawler:\n")
			fmt.Printf("  User-Agent:        %s\n", cfg.CrawlerUserAgent)
			fmt.Printf("  Crawl Delay:       %s\n", cfg.Delay())
			fmt.Printf("  Max Workers:       %d\n", cfg.MaxWorkers)
			fmt.Printf("  Request Timeout:   %s\n", cfg.Timeout())
			fmt.Printf("  Max Retries:       %d\n", cfg.MaxRetries)
			fmt.Printf("\nLogging:\n")
			fmt.Printf("  Level:             %s\n", cfg.LogLevel)
			if cfg.LogFile != "" {
				fmt.Printf("  File:              %s\n", cfg.LogFile)
			}
			fmt.Printf("\nAPI:\n")
			fmt.Printf("  Host:              %s\n", cfg.APIHost)
			fmt.Printf("  Port:              %d\n", cfg.APIPort)
			return nil
		},
	}
}

// loadConfig loads and validates the configuration, applying the
// persistent flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setupLogger creates a structured logger honoring log_level and
// log_file. The returned closer flushes the log file, if any.
func setupLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	out := io.Writer(os.Stderr)
	closer := func() {}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(os.Stderr, f)
		closer = func() { f.Close() }
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	return slog.New(handler), closer, nil
}

// openStore connects to MongoDB and ensures the schema's indexes.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage.MongoStore, error) {
	store, err := storage.NewMongoStore(cfg.MongoDBURI, cfg.MongoDBDatabase, logger)
	if err != nil {
		return nil, fmt.Errorf("connect store: %w", err)
	}
	if err := store.EnsureIndexes(ctx); err != nil {
		store.Close(ctx)
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}
	return store, nil
}
