package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	searchQuery   string
	searchLimit   int
	searchUseLLM  bool
	searchModel   string
	searchDataDir string
	searchWait    bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Answer a query from the index, crawling in the background if coverage is thin.",
	Long: `search runs the query against the local index and prints blended
results immediately. When the index returns fewer hits than the configured
minimum, a background focused crawl is scheduled (at most once per query
per cooldown window) so the next identical search finds more.`,
	Run: func(cmd *cobra.Command, args []string) {
		query := strings.TrimSpace(searchQuery)
		if query == "" && len(args) > 0 {
			query = strings.TrimSpace(strings.Join(args, " "))
		}
		if query == "" {
			fmt.Fprintln(os.Stderr, "Error: a query is required")
			cmd.Usage()
			os.Exit(1)
		}

		core, err := buildSearchCore(searchDataDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer core.Close()

		start := time.Now()
		result := core.orchestrator.SmartSearch(context.Background(), query, searchLimit, searchUseLLM, searchModel)
		core.metrics.SearchRequests.Inc()
		core.metrics.SearchLatency.Observe(time.Since(start).Seconds())
		if result.CrawlTriggered {
			core.metrics.SmartSearchTriggers.Inc()
		}

		if len(result.Hits) == 0 {
			fmt.Println("No results.")
		}
		for i, hit := range result.Hits {
			title := hit.Title
			if title == "" {
				title = hit.URL
			}
			fmt.Printf("%2d. %s\n    %s\n", i+1, title, hit.URL)
			if hit.Snippet != "" {
				fmt.Printf("    %s\n", hit.Snippet)
			}
			fmt.Printf("    score=%.3f authority=%.3f blended=%.3f\n",
				hit.Score, hit.HostAuthority, hit.BlendedScore)
		}

		if result.CrawlTriggered {
			fmt.Println("\nCoverage is thin; a background focused crawl was scheduled.")
			if searchWait {
				fmt.Println("Waiting for it to finish...")
				core.crawler.Wait()
			}
		}
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchQuery, "query", "", "query to search for")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "max results to return")
	searchCmd.Flags().BoolVar(&searchUseLLM, "use-llm", false, "rerank top results with the local LLM")
	searchCmd.Flags().StringVar(&searchModel, "model", "", "LLM model override for reranking")
	searchCmd.Flags().StringVar(&searchDataDir, "data-dir", "data", "directory holding the index and crawl state")
	searchCmd.Flags().BoolVar(&searchWait, "wait", false, "block until a triggered background crawl completes")
}
