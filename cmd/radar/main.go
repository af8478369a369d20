// Package main stellt die radar-CLI bereit: Ingestion, Kanonisierung, Trends und Digests ohne HTTP-Server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/osmangurlek/arxiv-trend-radar/app"
	"github.com/osmangurlek/arxiv-trend-radar/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// humanOutput schaltet von JSON auf lesbare Ausgabe um.
var humanOutput bool

var verbose bool

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "radar",
	Short: "Track what's trending in arXiv research",
	Long: `radar ingests arXiv papers, extracts datasets, methods, tasks and libraries
with a language model, merges aliases and reports weekly trends.

Configuration is read from the environment (and .env), same as the server.
All commands print JSON unless --human is given.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr")
}

// openApp lädt die Konfiguration und baut alle Dienste.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := zap.NewNop()
	if verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return nil, err
		}
	}
	return app.New(ctx, cfg, logger)
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
