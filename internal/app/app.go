// Package app provides application initialization and dependency wiring.
//
// App is the container that assembles the pipeline: database pool and
// migrations, Genkit with the configured AI provider, the embedding
// adapter, the pgvector index, the document registry, and the RAG
// pipeline itself.
package app

import (
	"context"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docchat/docchat/internal/config"
	"github.com/docchat/docchat/internal/log"
	"github.com/docchat/docchat/internal/rag"
)

// App is the core application container.
type App struct {
	Config *config.Config

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool
	Pipeline *rag.Pipeline

	Logger log.Logger

	cancel context.CancelFunc
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	} else {
		slog.Info("shutting down application")
	}

	if a.cancel != nil {
		a.cancel()
	}

	if a.DBPool != nil {
		a.DBPool.Close()
	}

	return nil
}
