package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sourcewatch/sourcewatch/internal/storage"
)

const exportBatchSize = 500

var (
	exportOutput string
	exportSource string
)

// exportCmd creates the "export" subcommand.
func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored documents as JSONL",
		Long:  "Streams documents from the store into a newline-delimited JSON file.",
		RunE:  runExport,
	}
	cmd.Flags().StringVarP(&exportOutput, "output", "o", "./output/documents.jsonl", "output file path")
	cmd.Flags().StringVar(&exportSource, "source", "", "export only one source's documents")
	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	filter := storage.DocumentFilter{Limit: exportBatchSize}
	if exportSource != "" {
		id, err := primitive.ObjectIDFromHex(exportSource)
		if err != nil {
			return fmt.Errorf("invalid source id %q: %w", exportSource, err)
		}
		filter.SourceID = &id
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	exporter, err := storage.NewDocumentExporter(exportOutput, logger)
	if err != nil {
		return err
	}
	defer exporter.Close()

	start := time.Now()
	var total int
	for {
		docs, err := store.ListDocuments(ctx, filter)
		if err != nil {
			return fmt.Errorf("list documents: %w", err)
		}
		if len(docs) == 0 {
			break
		}
		if err := exporter.Write(docs...); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		total += len(docs)
		filter.Offset += int64(len(docs))
		if len(docs) < exportBatchSize {
			break
		}
	}

	fmt.Printf("✅ Exported %d document(s) in %s\n", total, time.Since(start).Round(time.Millisecond))
	fmt.Printf("   Output: %s\n", exportOutput)
	return nil
}
