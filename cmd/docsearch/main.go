// Package main implements the docsearch CLI: one-shot searches, the demo
// walkthrough, page fetching and the stdio MCP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/bootstrap"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
)

var (
	configPath string
	logLevel   string
	version    = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "docsearch",
	Short: "Search a documentation archive and expose it as tools",
	Long: `docsearch indexes the markdown files of a repository archive and ranks
them against free-text queries.

Examples:
  # Search the default archive
  docsearch search demo --top-k 3

  # Count a word on a web page
  docsearch count https://datatalks.club/ data

  # Serve the tools to an MCP client over stdio
  docsearch mcp`,
	Version:       version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
}

// loadConfig reads the config and sends logs to stderr, keeping stdout for
// results and protocol traffic.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

// newApp builds a standalone stack: no cache and no Kafka, since a single
// CLI invocation gains nothing from either.
func newApp(ctx context.Context) (*bootstrap.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return bootstrap.New(ctx, cfg, bootstrap.Options{Standalone: true})
}
