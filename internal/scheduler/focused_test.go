package scheduler_test

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sulaimonao/selfhostedsearch/internal/authority"
	"github.com/sulaimonao/selfhostedsearch/internal/config"
	"github.com/sulaimonao/selfhostedsearch/internal/cooldown"
	"github.com/sulaimonao/selfhostedsearch/internal/fetcher"
	"github.com/sulaimonao/selfhostedsearch/internal/index"
	"github.com/sulaimonao/selfhostedsearch/internal/metadata"
	"github.com/sulaimonao/selfhostedsearch/internal/normalize"
	"github.com/sulaimonao/selfhostedsearch/internal/robots"
	"github.com/sulaimonao/selfhostedsearch/internal/scheduler"
	"github.com/sulaimonao/selfhostedsearch/internal/search"
	"github.com/sulaimonao/selfhostedsearch/internal/seeds"
	"github.com/sulaimonao/selfhostedsearch/pkg/failure"
	"github.com/sulaimonao/selfhostedsearch/pkg/retry"
)

// cannedFetcher answers every fetch with a page built from the request URL,
// so any frontier candidate yields a distinct indexable document.
type cannedFetcher struct{}

func (cannedFetcher) Fetch(
	_ context.Context,
	_ int,
	fetchParam fetcher.FetchParam,
	_ retry.RetryParam,
) (fetcher.FetchResult, failure.ClassifiedError) {
	u := fetchParam.FetchURL()
	slug := strings.ReplaceAll(u.Host+u.Path, "/", " ")
	body := "<html><head><title>" + slug + "</title></head><body><h1>" + slug +
		"</h1><p>Reference documentation about " + slug +
		" with enough prose for language detection to settle on English text.</p>" +
		`<a href="https://linked.example.net/guide">guide</a></body></html>`
	return fetcher.NewFetchResultForTest(
		u,
		[]byte(body),
		200,
		"text/html",
		map[string]string{"Content-Type": "text/html"},
		time.Now().UTC(),
	), nil
}

type permissiveRobot struct{}

func (permissiveRobot) Init(string) {}
func (permissiveRobot) Decide(u url.URL) (robots.Decision, *robots.RobotsError) {
	return robots.Decision{Url: u, Allowed: true, Reason: robots.AllowedByRobots}, nil
}

func newFocusedCrawlerForTest(t *testing.T) (*scheduler.FocusedCrawler, *index.Writer, string) {
	t.Helper()
	dir := t.TempDir()

	recorder := metadata.NewRecorder("focused-test")

	cfg, err := config.WithCrawlDefault().
		WithFocusedCrawlBudget(4).
		WithRenderMode(config.RenderOff).
		Build()
	require.NoError(t, err)

	writer, indexErr := index.NewWriter(index.WriterConfig{
		LedgerPath: filepath.Join(dir, "ledger.json"),
	})
	require.NoError(t, indexErr)
	t.Cleanup(func() { _ = writer.Close() })

	estimator := authority.New(filepath.Join(dir, "authority.json"))
	cooldowns := cooldown.New(filepath.Join(dir, "cooldowns.json"))
	seedStore := seeds.NewStore(filepath.Join(dir, "seed_log.jsonl"))

	pool := fetcher.NewPool(cfg, cannedFetcher{}, permissiveRobot{}, nil, cooldowns, &recorder)
	constraint := normalize.NewDocumentConstraint(&recorder)

	crawler := scheduler.NewFocusedCrawler(
		cfg,
		pool,
		constraint,
		writer,
		estimator,
		seedStore,
		cooldowns,
		&recorder,
		filepath.Join(dir, "raw"),
		dir,
		"",
	)
	return crawler, writer, dir
}

func TestFocusedCrawlIndexesFetchedPages(t *testing.T) {
	crawler, writer, _ := newFocusedCrawlerForTest(t)

	summary, err := crawler.RunFocusedCrawl(context.Background(), "docs", 4)
	require.NoError(t, err)

	assert.Greater(t, summary.Candidates, 0)
	assert.Greater(t, summary.PagesFetched, 0)
	assert.Greater(t, summary.Indexed.Added, 0)
	assert.NotEmpty(t, summary.RawOutput)

	stats, statsErr := writer.Stats()
	require.Nil(t, statsErr)
	assert.Equal(t, uint64(summary.Indexed.Added), stats.DocCount)
}

func TestFocusedCrawlRecordsSeedDomains(t *testing.T) {
	crawler, _, dir := newFocusedCrawlerForTest(t)

	_, err := crawler.RunFocusedCrawl(context.Background(), "docs", 4)
	require.NoError(t, err)

	store := seeds.NewStore(filepath.Join(dir, "seed_log.jsonl"))
	domains, loadErr := store.GetTopDomains(10)
	require.NoError(t, loadErr)
	assert.NotEmpty(t, domains)
}

func TestScheduleFocusedCrawlRunsInBackground(t *testing.T) {
	crawler, writer, _ := newFocusedCrawlerForTest(t)

	crawler.ScheduleFocusedCrawl(search.CrawlJob{Query: "docs", Budget: 2})
	crawler.Wait()

	stats, statsErr := writer.Stats()
	require.Nil(t, statsErr)
	assert.Greater(t, stats.DocCount, uint64(0))
}
