package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/sulaimonao/selfhostedsearch/internal/index"
	"github.com/sulaimonao/selfhostedsearch/internal/storage"
)

var (
	indexDataDir string
	indexStats   bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect or rebuild the full-text index.",
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the index from the normalized corpus.",
	Long: `rebuild replays normalized.jsonl through the index writer. Documents
whose content hash matches the ledger are skipped, so a rebuild over an
unchanged corpus is a no-op.`,
	Run: func(cmd *cobra.Command, args []string) {
		core, err := buildSearchCore(indexDataDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer core.Close()

		corpusPath := filepath.Join(indexDataDir, "normalized.jsonl")
		records, readErr := storage.ReadNormalizedRecords(corpusPath)
		if readErr != nil {
			fmt.Fprintf(os.Stderr, "Error: reading %s: %v\n", corpusPath, readErr)
			os.Exit(1)
		}

		for _, rec := range records {
			fetchedAt := time.Unix(0, int64(rec.FetchedAt*float64(time.Second)))
			_, indexErr := core.indexWriter.AddOrUpdate(index.NewDocument(
				rec.URL,
				rec.Title,
				rec.H1H2+"\n"+rec.Body,
				rec.Lang,
				rec.Outlinks,
				fetchedAt,
			))
			if indexErr != nil {
				fmt.Fprintf(os.Stderr, "Error: indexing %s: %v\n", rec.URL, indexErr)
				os.Exit(1)
			}
		}
		if commitErr := core.indexWriter.Commit(); commitErr != nil {
			fmt.Fprintf(os.Stderr, "Error: committing batch: %v\n", commitErr)
			os.Exit(1)
		}

		counters := core.indexWriter.Counters()
		fmt.Printf("Replayed %d documents: %d added, %d updated, %d unchanged, %d duplicates\n",
			len(records), counters.Added, counters.Updated, counters.SkippedUnchanged,
			counters.DedupedExact+counters.DedupedNearDup)

		if indexStats {
			printIndexStats(core)
		}
	},
}

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print document counts and the last commit time.",
	Run: func(cmd *cobra.Command, args []string) {
		core, err := buildSearchCore(indexDataDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer core.Close()
		printIndexStats(core)
	},
}

func printIndexStats(core *searchCore) {
	stats, statsErr := core.indexWriter.Stats()
	if statsErr != nil {
		fmt.Fprintf(os.Stderr, "Error: reading index stats: %v\n", statsErr)
		return
	}
	fmt.Printf("Documents: %d\n", stats.DocCount)
	fmt.Printf("Ledger entries: %d\n", stats.LedgerSize)
	if stats.LastCommit.IsZero() {
		fmt.Println("Last commit: never")
	} else {
		fmt.Printf("Last commit: %s\n", stats.LastCommit.Format(time.RFC3339))
	}
}

func init() {
	indexCmd.AddCommand(indexRebuildCmd)
	indexCmd.AddCommand(indexStatsCmd)
	indexCmd.PersistentFlags().StringVar(&indexDataDir, "data-dir", "data", "directory holding the index and crawl state")
	indexRebuildCmd.Flags().BoolVar(&indexStats, "stats", false, "print index stats after rebuilding")
}
