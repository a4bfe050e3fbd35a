package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sourcewatch/sourcewatch/internal/api"
	"github.com/sourcewatch/sourcewatch/internal/crawler"
	"github.com/sourcewatch/sourcewatch/internal/fetcher"
	"github.com/sourcewatch/sourcewatch/internal/observability"
	"github.com/sourcewatch/sourcewatch/internal/parser"
	"github.com/sourcewatch/sourcewatch/internal/scheduler"
	"github.com/sourcewatch/sourcewatch/internal/search"
)

var (
	serveHost string
	servePort int
)

// serveCmd creates the "serve" subcommand: scheduler plus HTTP API.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and HTTP API",
		Long: `Starts the crawl scheduler and the JSON HTTP API and runs until
interrupted. Sources with enabled crawl configs are loaded onto the
cron schedule at startup.`,
		RunE: runServe,
	}
	cmd.Flags().StringVar(&serveHost, "host", "", "bind address (overrides config)")
	cmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.APIHost = serveHost
	}
	if servePort != 0 {
		cfg.APIPort = servePort
	}

	logger, closeLog, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := context.Background()
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	// A previous process may have died mid-crawl; fail sources stuck
	// in running before scheduling anything.
	if n, err := store.ReconcileStaleRunning(ctx); err != nil {
		logger.Warn("stale running sweep failed", "error", err)
	} else if n > 0 {
		logger.Info("reset stale running sources", "count", n)
	}

	metrics := observability.NewMetrics(logger)
	httpFetcher, err := fetcher.NewHTTPFetcher(cfg, metrics, logger)
	if err != nil {
		return fmt.Errorf("init fetcher: %w", err)
	}
	defer httpFetcher.Close()

	manager := crawler.NewManager(store, httpFetcher, parser.DefaultRegistry(logger), metrics, logger)

	sched := scheduler.New(store, manager, cfg.MaxWorkers, metrics, logger)
	loaded, err := sched.LoadAllSources(ctx)
	if err != nil {
		return fmt.Errorf("load sources: %w", err)
	}
	logger.Info("sources scheduled", "count", loaded)
	sched.Start()

	engine := search.NewEngine(store, logger)
	server := api.NewServer(cfg.APIHost, cfg.APIPort, store, sched, engine, metrics, logger)
	server.Start()

	fmt.Printf("🚀 sourcewatch serving on http://%s:%d (%d sources scheduled)\n", cfg.APIHost, cfg.APIPort, loaded)
	fmt.Println("Press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\n⏳ Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}
	sched.Shutdown(true)
	metrics.LogSummary()
	fmt.Println("✅ Stopped")
	return nil
}
