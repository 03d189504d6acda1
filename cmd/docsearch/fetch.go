package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/tools"
)

func init() {
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(countCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Print the readable content of a web page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()
		page, err := app.Fetcher.Fetch(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), page.Content)
		return nil
	},
}

var countCmd = &cobra.Command{
	Use:   "count <url> <word>",
	Short: "Count a word on a web page",
	Long: `Fetch a page and count a word case-insensitively, both as a whole word
and as a substring. The result is printed as JSON.

Examples:
  docsearch count https://datatalks.club/ data`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()
		in, err := json.Marshal(tools.CountWordInput{URL: args[0], Word: args[1]})
		if err != nil {
			return err
		}
		out, err := app.Tools.Dispatch(cmd.Context(), "count_word_in_url", in)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}
