package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/service"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/source/corpus"
)

const previewLen = 80

var (
	topK    int
	filters []string
)

func init() {
	searchCmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "keyword filter as field=value, repeatable")
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(demoCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the indexed documentation",
	Long: `Build the index from the configured archive and print the best matches.

Examples:
  docsearch search demo
  docsearch search "server testing" --top-k 10
  docsearch search demo --filter filename=README.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Index the archive and run a few sample searches",
	Args:  cobra.NoArgs,
	RunE:  runDemo,
}

func runSearch(cmd *cobra.Command, args []string) error {
	parsed, err := parseFilters(filters)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()
	if _, err := app.Engine.Rebuild(ctx); err != nil {
		return err
	}

	limit := app.Search.DefaultLimit()
	if cmd.Flags().Changed("top-k") {
		limit = topK
	}
	res, err := app.Search.Search(ctx, service.Request{
		Query:   strings.Join(args, " "),
		Limit:   limit,
		Filters: parsed,
		Source:  "cli",
	})
	if err != nil {
		return err
	}
	printResults(cmd.OutOrStdout(), res)
	return nil
}

func runDemo(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	fmt.Fprintln(out, "1. Building index")
	idx, err := app.Engine.Rebuild(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "   %d documents indexed\n\n", idx.Len())

	fmt.Fprintln(out, "2. Search: \"demo\"")
	res, err := app.Search.Search(ctx, service.Request{Query: "demo", Limit: 3, Source: "cli"})
	if err != nil {
		return err
	}
	printResults(out, res)
	if len(res.Results) > 0 {
		fmt.Fprintf(out, "   First file for \"demo\": %s\n", res.Results[0].ID)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "3. More searches")
	for _, q := range []string{"server", "python", "testing"} {
		res, err := app.Search.Search(ctx, service.Request{Query: q, Limit: 1, Source: "cli"})
		if err != nil {
			return err
		}
		if len(res.Results) > 0 {
			fmt.Fprintf(out, "   %q -> %s\n", q, res.Results[0].ID)
		} else {
			fmt.Fprintf(out, "   %q -> no results\n", q)
		}
	}
	return nil
}

func printResults(w io.Writer, res *service.Result) {
	if len(res.Results) == 0 {
		fmt.Fprintf(w, "No results for %q\n", res.Query)
		return
	}
	for i, hit := range res.Results {
		name := hit.Fields[corpus.FieldFilename]
		if name == "" {
			name = hit.ID
		}
		fmt.Fprintf(w, "%d. %s (score %.4f)\n", i+1, name, hit.Score)
		fmt.Fprintf(w, "   %s\n", preview(hit.Fields[corpus.FieldContent]))
	}
}

func preview(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) <= previewLen {
		return content
	}
	return string(runes[:previewLen]) + "..."
}

func parseFilters(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(raw))
	for _, f := range raw {
		field, value, ok := strings.Cut(f, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid filter %q, want field=value", f)
		}
		out[field] = value
	}
	return out, nil
}
