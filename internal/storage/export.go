package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/sourcewatch/sourcewatch/internal/types"
)

// DocumentExporter streams documents to a file as newline-delimited JSON,
// one document per line.
type DocumentExporter struct {
	path   string
	file   *os.File
	enc    *json.Encoder
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewDocumentExporter creates the output file, making parent directories as
// needed.
func NewDocumentExporter(outputPath string, logger *slog.Logger) (*DocumentExporter, error) {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}

	return &DocumentExporter{
		path:   outputPath,
		file:   f,
		enc:    json.NewEncoder(f),
		logger: logger.With("component", "exporter"),
	}, nil
}

// Write appends documents to the export file.
func (e *DocumentExporter) Write(docs ...*types.Document) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, doc := range docs {
		if err := e.enc.Encode(doc); err != nil {
			return fmt.Errorf("encode document: %w", err)
		}
		e.count++
	}
	return nil
}

// Close flushes and closes the export file.
func (e *DocumentExporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.logger.Info("export written", "path", e.path, "documents", e.count)
	if e.file != nil {
		return e.file.Close()
	}
	return nil
}
