package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sourcewatch/sourcewatch/internal/storage"
	"github.com/sourcewatch/sourcewatch/internal/types"
)

var (
	sourcesStatus  string
	sourcesEnabled bool

	addName        string
	addURL         string
	addType        string
	addContentType string
	addFrequency   string
	addMaxHits     int
	addFollowLinks bool
	addDepth       int
	addRate        int
	addDisabled    bool
	addProject     string
)

// sourcesCmd creates the "sources" command group.
func sourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage crawl sources",
	}
	cmd.AddCommand(sourcesListCmd())
	cmd.AddCommand(sourcesAddCmd())
	return cmd
}

func sourcesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured sources",
		RunE:  runSourcesList,
	}
	cmd.Flags().StringVar(&sourcesStatus, "status", "", "filter by status (idle, running, completed, failed, paused, blocked)")
	cmd.Flags().BoolVar(&sourcesEnabled, "enabled", false, "show only sources with scheduling enabled")
	return cmd
}

func runSourcesList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	filter := storage.SourceFilter{Limit: 1000}
	if sourcesStatus != "" {
		status := types.SourceStatus(sourcesStatus)
		filter.Status = &status
	}
	if sourcesEnabled {
		enabled := true
		filter.Enabled = &enabled
	}

	sources, err := store.ListSources(ctx, filter)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}
	if len(sources) == 0 {
		fmt.Println("No sources configured.")
		return nil
	}

	fmt.Printf("%d source(s):\n\n", len(sources))
	for _, s := range sources {
		schedule := s.CrawlConfig.Frequency
		if !s.CrawlConfig.Enabled {
			schedule = "disabled"
		}
		fmt.Printf("  %s  %-30s %s\n", s.ID.Hex(), truncate(s.Name, 30), s.URL)
		fmt.Printf("  %24s status=%s docs=%d schedule=%q\n", "", s.Status, s.TotalDocuments, schedule)
		if s.LastError != "" {
			fmt.Printf("  %24s last error: %s\n", "", truncate(s.LastError, 80))
		}
	}
	return nil
}

func sourcesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a new source",
		Long: `Registers a source for crawling. The source is stored immediately;
it is picked up by the scheduler the next time "serve" starts, or at
once when the API's crawler endpoints are used.`,
		RunE: runSourcesAdd,
	}
	cmd.Flags().StringVar(&addName, "name", "", "source name (required)")
	cmd.Flags().StringVar(&addURL, "url", "", "crawl entry URL (required)")
	cmd.Flags().StringVar(&addType, "type", "website", "source type (website, blog, rss_feed, document, api, twitter, reddit, youtube, linkedin)")
	cmd.Flags().StringVar(&addContentType, "content-type", "html", "content type (html, rss, pdf, txt, twitter, reddit, youtube, linkedin)")
	cmd.Flags().StringVar(&addFrequency, "frequency", "0 0 * * *", "cron schedule (5 fields)")
	cmd.Flags().IntVar(&addMaxHits, "max-hits", 100, "max documents stored per run")
	cmd.Flags().BoolVar(&addFollowLinks, "follow-links", false, "follow pagination links")
	cmd.Flags().IntVar(&addDepth, "depth", 2, "max link-following depth")
	cmd.Flags().IntVar(&addRate, "rate", 30, "requests per minute within a run")
	cmd.Flags().BoolVar(&addDisabled, "disabled", false, "create the source without scheduling it")
	cmd.Flags().StringVar(&addProject, "project", "", "project id to attach the source to")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("url")
	return cmd
}

func runSourcesAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	source := types.NewSource(addName, addURL, types.SourceType(addType), types.ContentType(addContentType))
	source.CrawlConfig.Frequency = addFrequency
	source.CrawlConfig.MaxHits = addMaxHits
	source.CrawlConfig.FollowLinks = addFollowLinks
	source.CrawlConfig.MaxDepth = addDepth
	source.CrawlConfig.RateLimitPerMinute = addRate
	source.CrawlConfig.Enabled = !addDisabled

	if addProject != "" {
		pid, err := primitive.ObjectIDFromHex(addProject)
		if err != nil {
			return fmt.Errorf("invalid project id %q: %w", addProject, err)
		}
		source.ProjectID = &pid
	}

	if err := source.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	id, err := store.CreateSource(ctx, source)
	if err != nil {
		return fmt.Errorf("create source: %w", err)
	}

	fmt.Printf("✅ Source created: %s\n", id.Hex())
	fmt.Printf("   Name:      %s\n", source.Name)
	fmt.Printf("   URL:       %s\n", source.URL)
	fmt.Printf("   Type:      %s/%s\n", source.SourceType, source.ContentType)
	if source.CrawlConfig.Enabled {
		fmt.Printf("   Schedule:  %q\n", source.CrawlConfig.Frequency)
	} else {
		fmt.Printf("   Schedule:  disabled\n")
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
