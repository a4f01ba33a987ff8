// Package cmd contains the command-line entry points for docchat.
//
// Following the pattern of kubectl, hugo, and other standard Go CLI
// tools, all application logic lives here and main.go stays a minimal
// entry point.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/docchat/docchat/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "0.1.0"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute is the main entry point for the docchat CLI. It routes to the
// subcommand named by the first argument.
func Execute() error {
	if len(os.Args) < 2 {
		printHelp()
		return nil
	}

	// version and help work even when the config is invalid.
	switch os.Args[1] {
	case "version", "--version", "-v":
		printVersionInfo()
		return nil
	case "help", "--help", "-h":
		printHelp()
		return nil
	}

	logger := initLogger()
	slog.SetDefault(logger)

	args := os.Args[2:]

	switch os.Args[1] {
	case "serve":
		return runServe(logger)
	case "ingest":
		return runIngest(logger, args)
	case "ask":
		return runAsk(logger, args)
	case "documents":
		return runDocuments(logger)
	case "delete":
		return runDelete(logger, args)
	default:
		printHelp()
		return fmt.Errorf("unknown command %q", os.Args[1])
	}
}

// initLogger initializes the structured logger. DEBUG in the environment
// enables debug-level logging; logs go to stderr so stdout stays clean
// for command output.
func initLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	return log.NewWithWriter(os.Stderr, cfg)
}

func printVersionInfo() {
	fmt.Printf("docchat v%s\n", AppVersion)
	fmt.Printf("Build: %s\n", BuildTime)
	fmt.Printf("Commit: %s\n", GitCommit)
}

func printHelp() {
	fmt.Print(`docchat - chat with your documents

Usage:
  docchat serve                  Start the HTTP API server
  docchat ingest <file>...       Ingest documents (.json page arrays or form-feed text)
  docchat ask <doc-id> <question>
                                 Ask a question about an ingested document
  docchat documents              List ingested documents
  docchat delete <doc-id>        Delete a document and its index
  docchat version                Show version information
  docchat help                   Show this help

Environment:
  DEBUG                 Enable debug logging
  DATABASE_URL          PostgreSQL connection URL (overrides config file)
  GEMINI_API_KEY        API key when provider is gemini (default)
  OPENAI_API_KEY        API key when provider is openai
  DOCCHAT_PROVIDER      AI provider: gemini, ollama, openai
`)
}
