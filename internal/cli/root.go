package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sulaimonao/selfhostedsearch/internal/build"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "selfhostedsearch",
	Short: "A self-hosted focused-crawl search engine.",
	Long: `selfhostedsearch crawls the web around your queries, keeps a local
full-text index up to date incrementally, and answers searches from that
index with BM25 + host-authority blended ranking and an optional local-LLM
rerank.

Subcommands: "crawl" runs a focused crawl for a query, "search" answers a
query (triggering a background crawl when coverage is thin), "index"
rebuilds or inspects the index, and "export" writes the crawled corpus out
as Markdown files for RAG reuse.`,
	Version: build.FullVersion(),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(exportCmd)
}
