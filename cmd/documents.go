package cmd

import (
	"context"
	"fmt"

	"github.com/docchat/docchat/internal/app"
	"github.com/docchat/docchat/internal/config"
	"github.com/docchat/docchat/internal/log"
)

// runDocuments lists all ingested documents.
func runDocuments(logger log.Logger) error {
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

	docs, err := a.Pipeline.List(ctx)
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}

	if len(docs) == 0 {
		fmt.Println("no documents ingested")
		return nil
	}

	for _, doc := range docs {
		line := fmt.Sprintf("%s  %s  %s  pages=%d  chunks=%d",
			doc.ID, doc.Filename, doc.Status, doc.Pages, doc.Chunks)
		if doc.Error != "" {
			line += "  error=" + doc.Error
		}
		fmt.Println(line)
	}

	return nil
}

// runDelete removes a document and its index.
func runDelete(logger log.Logger, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: docchat delete <doc-id>")
	}
	docID := args[0]

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

	if err := a.Pipeline.Delete(ctx, docID); err != nil {
		return fmt.Errorf("deleting %s: %w", docID, err)
	}

	fmt.Printf("deleted %s\n", docID)
	return nil
}
