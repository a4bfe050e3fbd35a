package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sourcewatch/sourcewatch/internal/crawler"
	"github.com/sourcewatch/sourcewatch/internal/fetcher"
	"github.com/sourcewatch/sourcewatch/internal/observability"
	"github.com/sourcewatch/sourcewatch/internal/parser"
)

// crawlCmd creates the "crawl" subcommand: run one source once, now.
func crawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl <source-id>",
		Short: "Crawl a single source immediately",
		Long:  "Runs one crawl of the given source outside the scheduler and prints a summary.",
		Args:  cobra.ExactArgs(1),
		RunE:  runCrawl,
	}
}

// runCrawl executes the crawl command.
func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	id, err := primitive.ObjectIDFromHex(args[0])
	if err != nil {
		return fmt.Errorf("invalid source id %q: %w", args[0], err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	source, err := store.GetSource(ctx, id)
	if err != nil {
		return fmt.Errorf("load source: %w", err)
	}

	metrics := observability.NewMetrics(logger)
	httpFetcher, err := fetcher.NewHTTPFetcher(cfg, metrics, logger)
	if err != nil {
		return fmt.Errorf("init fetcher: %w", err)
	}
	defer httpFetcher.Close()

	manager := crawler.NewManager(store, httpFetcher, parser.DefaultRegistry(logger), metrics, logger)

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, stopping crawl...", "signal", sig)
		cancel()
	}()

	fmt.Printf("🕷  Crawling %s (%s)\n", source.Name, source.URL)

	start := time.Now()
	stats, err := manager.CrawlSource(ctx, id)
	elapsed := time.Since(start)
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}

	// The crawl context may be canceled by now; read the final status
	// with a fresh one.
	statusCtx, statusCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer statusCancel()
	finalStatus := "unknown"
	if s, err := store.GetSource(statusCtx, id); err == nil {
		finalStatus = string(s.Status)
	}

	fmt.Printf("\n✅ Crawl complete in %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("   Pages:     %d stored, %d failed\n", stats.PagesCrawled, stats.PagesFailed)
	fmt.Printf("   Data:      %s downloaded\n", humanBytes(stats.BytesDownloaded))
	fmt.Printf("   Status:    %s\n", finalStatus)
	if len(stats.Errors) > 0 {
		fmt.Printf("   Errors:    %d\n", len(stats.Errors))
		for i, msg := range stats.Errors {
			if i == 5 {
				fmt.Printf("     ... and %d more\n", len(stats.Errors)-5)
				break
			}
			fmt.Printf("     - %s\n", msg)
		}
	}
	return nil
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
