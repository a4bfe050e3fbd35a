package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sourcewatch/sourcewatch/internal/search"
	"github.com/sourcewatch/sourcewatch/internal/types"
)

var (
	searchOr          bool
	searchLimit       int
	searchSource      string
	searchContentType string
)

// searchCmd creates the "search" subcommand.
func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <terms...>",
		Short: "Search stored documents by keyword",
		Long: `Runs a keyword query against the document store and prints ranked
results with excerpts. Terms are ANDed by default; pass --or to match
any term.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSearch,
	}
	cmd.Flags().BoolVar(&searchOr, "or", false, "match any term instead of all")
	cmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum results (1-100)")
	cmd.Flags().StringVar(&searchSource, "source", "", "restrict to one source id")
	cmd.Flags().StringVar(&searchContentType, "content-type", "", "restrict to one content type")
	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	query := &types.SearchQuery{
		Keywords:    strings.Join(args, " "),
		ContentType: types.ContentType(searchContentType),
		Limit:       searchLimit,
	}
	if searchOr {
		query.Operator = types.OperatorOR
	}
	if searchSource != "" {
		id, err := primitive.ObjectIDFromHex(searchSource)
		if err != nil {
			return fmt.Errorf("invalid source id %q: %w", searchSource, err)
		}
		query.SourceID = &id
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	engine := search.NewEngine(store, logger)
	start := time.Now()
	results, err := engine.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	fmt.Printf("🔍 %q (%s)\n\n", query.Keywords, query.Operator)
	if len(results) == 0 {
		fmt.Println("No matches.")
		return nil
	}

	for i, r := range results {
		title := r.Document.Metadata.Title
		if title == "" {
			title = r.Document.URL
		}
		fmt.Printf("%2d. %s  (score %.2f)\n", i+1, title, r.Score)
		fmt.Printf("    %s\n", r.Document.URL)
		if r.Snippet != "" {
			fmt.Printf("    %s\n", r.Snippet)
		}
		fmt.Println()
	}
	fmt.Printf("✅ %d result(s) in %s\n", len(results), time.Since(start).Round(time.Millisecond))
	return nil
}
