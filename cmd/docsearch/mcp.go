package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/mcpserver"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the tools to an MCP client over stdio",
	Long: `Build the index, then serve read_url, count_word_in_url and search_docs
over stdin/stdout. Logs go to stderr.

Examples:
  docsearch mcp --config configs/development.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()
		if _, err := app.Engine.Rebuild(ctx); err != nil {
			slog.Warn("index unavailable, search_docs will fail until it is built", "error", err)
		}
		return mcpserver.New(app.Config.MCP, app.Tools).Run(ctx)
	},
}
