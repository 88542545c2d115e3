package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sulaimonao/selfhostedsearch/internal/export"
	"github.com/sulaimonao/selfhostedsearch/internal/metadata"
)

var (
	exportDataDir string
	exportOutDir  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the crawled corpus out as Markdown files.",
	Long: `export converts every page the focused crawler has fetched into a
Markdown file with YAML frontmatter (url, title, language, content hash,
heading outline), one file per URL, named by the URL hash so re-exports
overwrite in place. The output is meant for RAG ingestion pipelines.`,
	Run: func(cmd *cobra.Command, args []string) {
		rawDir := filepath.Join(exportDataDir, "raw")

		docs, collectErr := export.CollectDocs(rawDir, exportDataDir)
		if collectErr != nil {
			fmt.Fprintf(os.Stderr, "Error: collecting crawled pages: %v\n", collectErr)
			os.Exit(1)
		}
		if len(docs) == 0 {
			fmt.Println("Nothing to export: no crawled pages found. Run a crawl first.")
			return
		}

		recorder := metadata.NewRecorder("export")
		exporter := export.NewExporter(&recorder, exportOutDir)

		result, exportErr := exporter.Export(docs)
		if exportErr != nil {
			fmt.Fprintf(os.Stderr, "Error: export failed: %v\n", exportErr)
			os.Exit(1)
		}

		fmt.Printf("Exported %d documents to %s (%d skipped)\n", result.Written, exportOutDir, result.Skipped)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportDataDir, "data-dir", "data", "directory holding the index and crawl state")
	exportCmd.Flags().StringVar(&exportOutDir, "out", "export", "directory to write Markdown files into")
}
