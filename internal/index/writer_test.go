package index_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sulaimonao/selfhostedsearch/internal/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWriter(t *testing.T) *index.Writer {
	t.Helper()
	w, err := index.NewWriter(index.WriterConfig{
		LedgerPath: filepath.Join(t.TempDir(), "ledger.json"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestWriter_AddOrUpdate_NewDocumentIsAdded(t *testing.T) {
	w := newTestWriter(t)
	doc := index.NewDocument("https://example.com/docs", "Docs", "getting started guide", "en", nil, time.Now())

	outcome, err := w.AddOrUpdate(doc)
	require.Nil(t, err)
	assert.Equal(t, index.OutcomeAdded, outcome)
	assert.Equal(t, 1, w.Counters().Added)
}

func TestWriter_AddOrUpdate_UnchangedContentIsSkipped(t *testing.T) {
	w := newTestWriter(t)
	doc := index.NewDocument("https://example.com/docs", "Docs", "getting started guide", "en", nil, time.Now())

	_, err := w.AddOrUpdate(doc)
	require.Nil(t, err)

	outcome, err := w.AddOrUpdate(doc)
	require.Nil(t, err)
	assert.Equal(t, index.OutcomeSkippedUnchanged, outcome)
	assert.Equal(t, 1, w.Counters().SkippedUnchanged)
}

func TestWriter_AddOrUpdate_ChangedContentIsUpdated(t *testing.T) {
	w := newTestWriter(t)
	first := index.NewDocument("https://example.com/docs", "Docs", "getting started guide", "en", nil, time.Now())
	_, err := w.AddOrUpdate(first)
	require.Nil(t, err)

	second := index.NewDocument("https://example.com/docs", "Docs", "a completely rewritten guide", "en", nil, time.Now())
	outcome, err := w.AddOrUpdate(second)
	require.Nil(t, err)
	assert.Equal(t, index.OutcomeUpdated, outcome)
}

func TestWriter_AddOrUpdate_ExactDuplicateFromDifferentURLIsDeduped(t *testing.T) {
	w := newTestWriter(t)
	first := index.NewDocument("https://a.com/docs", "Docs", "identical shared content here", "en", nil, time.Now())
	_, err := w.AddOrUpdate(first)
	require.Nil(t, err)

	dup := index.NewDocument("https://b.com/mirror", "Docs", "identical shared content here", "en", nil, time.Now())
	outcome, err := w.AddOrUpdate(dup)
	require.Nil(t, err)
	assert.Equal(t, index.OutcomeDedupedExact, outcome)
}

func TestWriter_Commit_SkipsLedgerSaveWhenNothingPending(t *testing.T) {
	w := newTestWriter(t)
	require.Nil(t, w.Commit())
}

func TestWriter_Commit_SavesLedgerAfterMutation(t *testing.T) {
	w := newTestWriter(t)
	doc := index.NewDocument("https://example.com/docs", "Docs", "getting started guide", "en", nil, time.Now())
	_, err := w.AddOrUpdate(doc)
	require.Nil(t, err)
	require.Nil(t, w.Commit())

	stats, statsErr := w.Stats()
	require.Nil(t, statsErr)
	assert.Equal(t, 1, stats.LedgerSize)
	assert.False(t, stats.LastCommit.IsZero())
}

func TestWriter_Search_FindsIndexedDocument(t *testing.T) {
	w := newTestWriter(t)
	doc := index.NewDocument("https://example.com/docs", "Getting Started", "install the toolchain and run the quickstart", "en", nil, time.Now())
	_, err := w.AddOrUpdate(doc)
	require.Nil(t, err)

	result, searchErr := w.Search("quickstart", index.SearchOptions{})
	require.Nil(t, searchErr)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "https://example.com/docs", result.Hits[0].URL)
}

func TestWriter_Search_SiteFilterExcludesOtherHosts(t *testing.T) {
	w := newTestWriter(t)
	_, err := w.AddOrUpdate(index.NewDocument("https://example.com/docs", "Docs", "install the quickstart guide", "en", nil, time.Now()))
	require.Nil(t, err)
	_, err = w.AddOrUpdate(index.NewDocument("https://other.com/docs", "Other Docs", "run the quickstart tutorial on a different site", "en", nil, time.Now()))
	require.Nil(t, err)

	result, searchErr := w.Search("quickstart", index.SearchOptions{Site: "example.com"})
	require.Nil(t, searchErr)
	for _, hit := range result.Hits {
		assert.Equal(t, "example.com", hit.Site)
	}
}

func TestWriter_SimHashFileSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	cfg := index.WriterConfig{
		LedgerPath:    filepath.Join(dir, "ledger.json"),
		SimHashPath:   filepath.Join(dir, "simhash.jsonl"),
		LastIndexPath: filepath.Join(dir, "last_index_time"),
	}

	first, err := index.NewWriter(cfg)
	require.NoError(t, err)
	_, addErr := first.AddOrUpdate(index.NewDocument("https://a.com/docs", "Docs", "identical shared content here", "en", nil, time.Now()))
	require.Nil(t, addErr)
	require.Nil(t, first.Commit())
	require.NoError(t, first.Close())

	// A fresh writer over the same state files must still refuse the
	// duplicate, via the replayed fingerprint side file.
	second, err := index.NewWriter(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	outcome, addErr := second.AddOrUpdate(index.NewDocument("https://b.com/mirror", "Docs", "identical shared content here", "en", nil, time.Now()))
	require.Nil(t, addErr)
	assert.Equal(t, index.OutcomeDedupedExact, outcome)

	marker, readErr := os.ReadFile(cfg.LastIndexPath)
	require.NoError(t, readErr)
	_, parseErr := time.Parse(time.RFC3339, strings.TrimSpace(string(marker)))
	assert.NoError(t, parseErr)
}

func TestWriter_Search_EmptyQueryReturnsNothing(t *testing.T) {
	w := newTestWriter(t)
	_, err := w.AddOrUpdate(index.NewDocument("https://example.com/docs", "Docs", "some indexed body text", "en", nil, time.Now()))
	require.Nil(t, err)

	result, searchErr := w.Search("   ", index.SearchOptions{})
	require.Nil(t, searchErr)
	assert.Empty(t, result.Hits)
}
