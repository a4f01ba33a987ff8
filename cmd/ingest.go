package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/docchat/docchat/internal/app"
	"github.com/docchat/docchat/internal/config"
	"github.com/docchat/docchat/internal/log"
	"github.com/docchat/docchat/internal/rag"
)

// runIngest ingests one or more files. A .json file holds an array of
// pages (plain strings or {text, side_data} objects, as produced by an
// extraction service). Any other file is plain text with pages separated
// by form feed characters (the classic page break in extracted text); a
// file without form feeds is a single page.
func runIngest(logger log.Logger, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: docchat ingest <file>...")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := context.Background()
	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	for _, path := range args {
		pages, err := readPages(path)
		if err != nil {
			return err
		}

		doc, err := a.Pipeline.Ingest(ctx, filepath.Base(path), pages)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}

		fmt.Printf("%s  %s  pages=%d  chunks=%d\n", doc.ID, doc.Filename, doc.Pages, doc.Chunks)
	}

	return nil
}

// readPages reads a file into pages: a JSON page array for .json files,
// form-feed-separated text otherwise.
func readPages(path string) ([]rag.Page, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator's command line
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var pages []rag.Page
		if err := json.Unmarshal(data, &pages); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return pages, nil
	}

	return rag.TextPages(strings.Split(string(data), "\f")...), nil
}
