package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	crawlQuery   string
	crawlBudget  int
	crawlDataDir string
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run a focused crawl for a query and index the results.",
	Long: `crawl builds a ranked frontier for the query from the seed log,
curated seeds, and heuristic URL guesses, fetches the top candidates with
per-host politeness and robots.txt enforcement, deduplicates the content,
and writes the surviving documents into the local full-text index.`,
	Run: func(cmd *cobra.Command, args []string) {
		query := strings.TrimSpace(crawlQuery)
		if query == "" && len(args) > 0 {
			query = strings.TrimSpace(strings.Join(args, " "))
		}
		if query == "" {
			fmt.Fprintln(os.Stderr, "Error: --query is required")
			cmd.Usage()
			os.Exit(1)
		}

		core, err := buildSearchCore(crawlDataDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer core.Close()

		summary, err := core.crawler.RunFocusedCrawl(context.Background(), query, crawlBudget)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: focused crawl failed: %v\n", err)
			os.Exit(1)
		}

		core.metrics.CrawlPages.Add(float64(summary.PagesFetched))
		core.metrics.CrawlErrors.Add(float64(summary.PoolStats.Errors))
		core.metrics.DedupeHits.Add(float64(summary.PoolStats.DedupeHits))
		core.metrics.RobotsDenied.Add(float64(summary.PoolStats.RobotsDenied))
		core.metrics.IndexCommits.Inc()
		core.metrics.IndexedDocs.WithLabelValues("added").Add(float64(summary.Indexed.Added))
		core.metrics.IndexedDocs.WithLabelValues("updated").Add(float64(summary.Indexed.Updated))
		core.metrics.IndexedDocs.WithLabelValues("skipped").Add(float64(summary.Indexed.SkippedUnchanged))
		core.metrics.IndexedDocs.WithLabelValues("deduped").Add(float64(summary.Indexed.DedupedExact + summary.Indexed.DedupedNearDup))

		fmt.Printf("Query: %s\n", summary.Query)
		fmt.Printf("Candidates considered: %d\n", summary.Candidates)
		fmt.Printf("Pages fetched: %d (rendered: %d)\n", summary.PagesFetched, summary.PoolStats.Rendered)
		fmt.Printf("Skipped: %d dedupe, %d robots, %d cooldown, %d errors\n",
			summary.PoolStats.DedupeHits,
			summary.PoolStats.RobotsDenied,
			summary.PoolStats.CooldownSkips,
			summary.PoolStats.Errors,
		)
		fmt.Printf("Index: %d added, %d updated, %d unchanged\n",
			summary.Indexed.Added, summary.Indexed.Updated, summary.Indexed.SkippedUnchanged)
		if summary.RawOutput != "" {
			fmt.Printf("Raw output: %s\n", summary.RawOutput)
		}
		fmt.Printf("Duration: %v\n", summary.Duration.Round(1e6))
	},
}

func init() {
	crawlCmd.Flags().StringVar(&crawlQuery, "query", "", "query to crawl around")
	crawlCmd.Flags().IntVar(&crawlBudget, "budget", 0, "max pages to fetch (0 = configured default)")
	crawlCmd.Flags().StringVar(&crawlDataDir, "data-dir", "data", "directory holding the index and crawl state")
}
