// Package export writes the crawled corpus out as Markdown files with
// YAML frontmatter, one file per URL, for downstream RAG ingestion. It
// reads the same raw and normalized records the index writer consumes;
// nothing here re-fetches.
package export

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sulaimonao/selfhostedsearch/internal/metadata"
	"github.com/sulaimonao/selfhostedsearch/internal/storage"
	"github.com/sulaimonao/selfhostedsearch/pkg/fileutil"
	"github.com/sulaimonao/selfhostedsearch/pkg/hashutil"
	"github.com/sulaimonao/selfhostedsearch/pkg/urlutil"
)

// filenameHashLen is how many hex chars of the URL hash name each file.
const filenameHashLen = 12

// Doc is one exportable page: the raw HTML to convert plus the normalized
// metadata that becomes its frontmatter.
type Doc struct {
	URL         string
	Title       string
	Lang        string
	ContentHash string
	FetchedAt   time.Time
	HTML        string
}

// Result summarizes one export run.
type Result struct {
	Written int
	Skipped int
	Paths   []string
}

// Exporter converts Docs to Markdown files under a fixed output
// directory. Filenames are derived from the URL hash, so re-exporting the
// same corpus overwrites in place instead of accumulating duplicates.
type Exporter struct {
	metadataSink metadata.MetadataSink
	outputDir    string
}

func NewExporter(metadataSink metadata.MetadataSink, outputDir string) Exporter {
	return Exporter{metadataSink: metadataSink, outputDir: outputDir}
}

// Export writes every doc with non-empty HTML. Per-document conversion
// failures are recorded and skipped; only output-directory failures abort
// the run.
func (e *Exporter) Export(docs []Doc) (Result, *ExportError) {
	if err := fileutil.EnsureDir(e.outputDir); err != nil {
		exportErr := &ExportError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseWriteFailure,
		}
		e.recordError("Exporter.Export", e.outputDir, exportErr)
		return Result{}, exportErr
	}

	var result Result
	for _, doc := range docs {
		path, exportErr := e.exportOne(doc)
		if exportErr != nil {
			e.recordError("Exporter.Export", doc.URL, exportErr)
			result.Skipped++
			continue
		}
		result.Written++
		result.Paths = append(result.Paths, path)
	}
	return result, nil
}

func (e *Exporter) exportOne(doc Doc) (string, *ExportError) {
	if strings.TrimSpace(doc.HTML) == "" {
		return "", &ExportError{
			Message:   "no html for " + doc.URL,
			Retryable: false,
			Cause:     ErrCauseEmptyDocument,
		}
	}

	markdownBody, convErr := toMarkdown(doc.HTML)
	if convErr != nil {
		return "", convErr
	}

	content := frontmatter(doc, headingOutline(markdownBody)) + "\n" + markdownBody

	path := filepath.Join(e.outputDir, exportFilename(doc.URL))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", &ExportError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseWriteFailure,
		}
	}

	e.metadataSink.RecordArtifact(
		metadata.ArtifactMarkdown,
		path,
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrWritePath, path),
			metadata.NewAttr(metadata.AttrURL, doc.URL),
		},
	)
	return path, nil
}

// exportFilename derives a stable filename from the canonicalized URL, so
// spelling variants of the same page land in the same file.
func exportFilename(rawURL string) string {
	key := rawURL
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Host != "" {
		canonical := urlutil.Canonicalize(*parsed)
		key = canonical.String()
	}
	hash, err := hashutil.HashBytes([]byte(key), hashutil.HashAlgoBLAKE3)
	if err != nil || len(hash) < filenameHashLen {
		return "doc.md"
	}
	return hash[:filenameHashLen] + ".md"
}

// frontmatter renders the YAML header carrying the doc's provenance and
// heading outline.
func frontmatter(doc Doc, outline []string) string {
	var sb strings.Builder
	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "url: %q\n", doc.URL)
	if doc.Title != "" {
		fmt.Fprintf(&sb, "title: %q\n", doc.Title)
	}
	if doc.Lang != "" {
		fmt.Fprintf(&sb, "lang: %q\n", doc.Lang)
	}
	if doc.ContentHash != "" {
		fmt.Fprintf(&sb, "content_hash: %q\n", doc.ContentHash)
	}
	if !doc.FetchedAt.IsZero() {
		fmt.Fprintf(&sb, "fetched_at: %q\n", doc.FetchedAt.UTC().Format(time.RFC3339))
	}
	if len(outline) > 0 {
		sb.WriteString("sections:\n")
		for _, section := range outline {
			fmt.Fprintf(&sb, "  - %q\n", section)
		}
	}
	sb.WriteString("---\n")
	return sb.String()
}

func (e *Exporter) recordError(action, subject string, exportErr *ExportError) {
	if e.metadataSink == nil {
		return
	}
	e.metadataSink.RecordError(
		time.Now(),
		"export",
		action,
		mapExportErrorToMetadataCause(exportErr),
		exportErr.Error(),
		[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, subject)},
	)
}

// CollectDocs assembles exportable Docs from a crawl data directory: every
// raw page from the focused_*.jsonl files under rawDir, enriched with
// title/lang/content-hash from normalized.jsonl when the URL was
// normalized. Later fetches of the same URL win.
func CollectDocs(rawDir, corpusDir string) ([]Doc, *ExportError) {
	normalized := make(map[string]storage.NormalizedRecord)
	if records, err := storage.ReadNormalizedRecords(filepath.Join(corpusDir, "normalized.jsonl")); err == nil {
		for _, rec := range records {
			normalized[rec.URL] = rec
		}
	}

	matches, err := filepath.Glob(filepath.Join(rawDir, "focused_*.jsonl"))
	if err != nil {
		return nil, &ExportError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseWriteFailure,
		}
	}

	byURL := make(map[string]Doc)
	var order []string
	for _, path := range matches {
		records, readErr := storage.ReadCrawlRecords(path)
		if readErr != nil {
			continue
		}
		for _, rec := range records {
			if rec.HTML == "" {
				continue
			}
			doc := Doc{
				URL:         rec.URL,
				Title:       rec.Title,
				ContentHash: rec.ContentHash,
				FetchedAt:   time.Unix(0, int64(rec.FetchedAt*float64(time.Second))),
				HTML:        rec.HTML,
			}
			if norm, ok := normalized[rec.URL]; ok {
				if norm.Title != "" {
					doc.Title = norm.Title
				}
				doc.Lang = norm.Lang
				doc.ContentHash = norm.ContentHash
			}
			if _, seen := byURL[rec.URL]; !seen {
				order = append(order, rec.URL)
			}
			byURL[rec.URL] = doc
		}
	}

	docs := make([]Doc, 0, len(order))
	for _, url := range order {
		docs = append(docs, byURL[url])
	}
	return docs, nil
}
