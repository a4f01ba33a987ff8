package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/docchat/docchat/internal/app"
	"github.com/docchat/docchat/internal/config"
	"github.com/docchat/docchat/internal/log"
)

// runAsk answers a single question about an ingested document and prints
// the answer with its citations.
func runAsk(logger log.Logger, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: docchat ask <doc-id> <question>")
	}
	docID := args[0]
	question := strings.Join(args[1:], " ")

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

	answer, err := a.Pipeline.Ask(ctx, docID, question)
	if err != nil {
		return fmt.Errorf("asking %s: %w", docID, err)
	}

	fmt.Println(answer.Text)
	if len(answer.Citations) > 0 {
		fmt.Println("\nSources:")
		for _, c := range answer.Citations {
			fmt.Printf("  page %d (%.2f): %s\n", c.PageNum, c.Similarity, c.Preview)
		}
	}

	return nil
}
