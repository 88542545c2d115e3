package export_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sulaimonao/selfhostedsearch/internal/export"
	"github.com/sulaimonao/selfhostedsearch/internal/metadata"
	"github.com/sulaimonao/selfhostedsearch/internal/storage"
)

const exportPageHTML = `<html>
<head>
	<title>Widget Guide</title>
	<style>body { color: red; }</style>
	<script>track();</script>
</head>
<body>
	<h1>Getting Started</h1>
	<p>Widgets are assembled from parts.</p>
	<h2>Installation</h2>
	<p>Install the toolchain first.</p>
</body>
</html>`

func newExporterForTest(t *testing.T) (export.Exporter, string) {
	t.Helper()
	dir := t.TempDir()
	recorder := metadata.NewRecorder("export-test")
	return export.NewExporter(&recorder, dir), dir
}

func TestExportWritesMarkdownWithFrontmatter(t *testing.T) {
	exporter, dir := newExporterForTest(t)

	result, err := exporter.Export([]export.Doc{{
		URL:         "https://example.com/docs/widgets",
		Title:       "Widget Guide",
		Lang:        "en",
		ContentHash: "abc123",
		FetchedAt:   time.Date(2024, 4, 5, 12, 0, 0, 0, time.UTC),
		HTML:        exportPageHTML,
	}})
	require.Nil(t, err)
	assert.Equal(t, 1, result.Written)
	require.Len(t, result.Paths, 1)

	raw, readErr := os.ReadFile(result.Paths[0])
	require.NoError(t, readErr)
	content := string(raw)

	assert.True(t, strings.HasPrefix(content, "---\n"))
	assert.Contains(t, content, `url: "https://example.com/docs/widgets"`)
	assert.Contains(t, content, `title: "Widget Guide"`)
	assert.Contains(t, content, `lang: "en"`)
	assert.Contains(t, content, `fetched_at: "2024-04-05T12:00:00Z"`)
	assert.Contains(t, content, `- "Getting Started"`)
	assert.Contains(t, content, `- "Installation"`)
	assert.Contains(t, content, "# Getting Started")
	assert.Contains(t, content, "Widgets are assembled from parts.")
	assert.NotContains(t, content, "track()")
	assert.NotContains(t, content, "color: red")
	assert.True(t, strings.HasSuffix(result.Paths[0], ".md"))
	assert.Equal(t, dir, filepath.Dir(result.Paths[0]))
}

func TestExportIsDeterministicPerURL(t *testing.T) {
	exporter, _ := newExporterForTest(t)
	doc := export.Doc{URL: "https://example.com/docs", HTML: exportPageHTML}

	first, err := exporter.Export([]export.Doc{doc})
	require.Nil(t, err)
	second, err := exporter.Export([]export.Doc{doc})
	require.Nil(t, err)

	require.Len(t, first.Paths, 1)
	require.Len(t, second.Paths, 1)
	assert.Equal(t, first.Paths[0], second.Paths[0])
}

func TestExportSkipsEmptyDocuments(t *testing.T) {
	exporter, _ := newExporterForTest(t)

	result, err := exporter.Export([]export.Doc{
		{URL: "https://example.com/empty", HTML: "   "},
		{URL: "https://example.com/docs", HTML: exportPageHTML},
	})
	require.Nil(t, err)
	assert.Equal(t, 1, result.Written)
	assert.Equal(t, 1, result.Skipped)
}

func TestCollectDocsMergesNormalizedMetadata(t *testing.T) {
	dir := t.TempDir()
	rawDir := filepath.Join(dir, "raw")

	rawWriter, storageErr := storage.NewCrawlOutputWriter(rawDir, 1712345678)
	require.Nil(t, storageErr)
	require.Nil(t, rawWriter.Append(storage.CrawlRecord{
		Query:     "docs",
		URL:       "https://example.com/docs",
		Status:    200,
		Title:     "raw title",
		HTML:      exportPageHTML,
		FetchedAt: 1712345678.0,
	}))
	require.Nil(t, rawWriter.Close())

	corpusWriter, storageErr := storage.NewNormalizedWriter(dir)
	require.Nil(t, storageErr)
	require.Nil(t, corpusWriter.Append(storage.NormalizedRecord{
		URL:         "https://example.com/docs",
		Lang:        "en",
		Title:       "Widget Guide",
		ContentHash: "deadbeef",
	}))
	require.Nil(t, corpusWriter.Close())

	docs, err := export.CollectDocs(rawDir, dir)
	require.Nil(t, err)
	require.Len(t, docs, 1)

	doc := docs[0]
	assert.Equal(t, "Widget Guide", doc.Title)
	assert.Equal(t, "en", doc.Lang)
	assert.Equal(t, "deadbeef", doc.ContentHash)
	assert.Equal(t, exportPageHTML, doc.HTML)
}
