package scheduler

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/sulaimonao/selfhostedsearch/internal/authority"
	"github.com/sulaimonao/selfhostedsearch/internal/config"
	"github.com/sulaimonao/selfhostedsearch/internal/cooldown"
	"github.com/sulaimonao/selfhostedsearch/internal/fetcher"
	"github.com/sulaimonao/selfhostedsearch/internal/frontier"
	"github.com/sulaimonao/selfhostedsearch/internal/index"
	"github.com/sulaimonao/selfhostedsearch/internal/metadata"
	"github.com/sulaimonao/selfhostedsearch/internal/normalize"
	"github.com/sulaimonao/selfhostedsearch/internal/search"
	"github.com/sulaimonao/selfhostedsearch/internal/seeds"
	"github.com/sulaimonao/selfhostedsearch/internal/storage"
)

/*
FocusedCrawler drives one query-scoped crawl end to end:
frontier -> fetch pool -> normalizer -> index + authority, with the seed
log and cooldown ledger updated at run boundaries. It also implements
search.CrawlScheduler so the smart-search orchestrator can fire it in the
background without blocking the query path.
*/

// topSeedDomains bounds how many seed-log domains feed the frontier.
const topSeedDomains = 10

// registryCandidateLimit bounds how many registry-strategy URLs join one
// frontier build.
const registryCandidateLimit = 20

// llmSuggestionLimit bounds how many LLM-suggested URLs join one frontier
// build.
const llmSuggestionLimit = 10

// CrawlSummary reports what one focused crawl accomplished.
type CrawlSummary struct {
	Query        string
	Candidates   int
	PagesFetched int
	Indexed      index.Counters
	PoolStats    fetcher.PoolStats
	RawOutput    string
	Duration     time.Duration
}

// FocusedCrawler owns the focused-crawl pipeline and its background
// tasks. Wait drains in-flight background crawls before shutdown.
type FocusedCrawler struct {
	cfg          config.CrawlConfig
	pool         *fetcher.Pool
	constraint   normalize.DocumentConstraint
	indexWriter  *index.Writer
	estimator    *authority.Estimator
	seedStore    *seeds.Store
	cooldowns    *cooldown.Ledger
	metadataSink metadata.MetadataSink
	rawDir       string
	corpusDir    string
	curatedPath  string
	registryPath string
	suggester    URLSuggester
	finalizer    metadata.CrawlFinalizer

	wg sync.WaitGroup
}

// SetCrawlFinalizer installs the sink that records each run's terminal
// summary. Observational only, per the metadata package's rules.
func (f *FocusedCrawler) SetCrawlFinalizer(finalizer metadata.CrawlFinalizer) {
	f.finalizer = finalizer
}

// SetRegistryPath points the crawler at a registry.yaml of seed-discovery
// sources; gathered candidates join the frontier under the registry
// source weight. An empty or missing file disables the stream.
func (f *FocusedCrawler) SetRegistryPath(path string) {
	f.registryPath = path
}

// URLSuggester proposes extra frontier URLs for a query; satisfied by
// *rank.Reranker. Suggestions enter the frontier under the llm source
// weight.
type URLSuggester interface {
	SuggestURLs(ctx context.Context, query string, limit int) []string
}

// SetURLSuggester enables LLM seed suggestions for jobs that request them.
func (f *FocusedCrawler) SetURLSuggester(s URLSuggester) {
	f.suggester = s
}

// NewFocusedCrawler wires the pipeline. rawDir receives the
// focused_<epoch>.jsonl files; corpusDir holds normalized.jsonl.
// curatedPath may be empty, seedStore and cooldowns may be nil.
func NewFocusedCrawler(
	cfg config.CrawlConfig,
	pool *fetcher.Pool,
	constraint normalize.DocumentConstraint,
	indexWriter *index.Writer,
	estimator *authority.Estimator,
	seedStore *seeds.Store,
	cooldowns *cooldown.Ledger,
	metadataSink metadata.MetadataSink,
	rawDir string,
	corpusDir string,
	curatedPath string,
) *FocusedCrawler {
	return &FocusedCrawler{
		cfg:          cfg,
		pool:         pool,
		constraint:   constraint,
		indexWriter:  indexWriter,
		estimator:    estimator,
		seedStore:    seedStore,
		cooldowns:    cooldowns,
		metadataSink: metadataSink,
		rawDir:       rawDir,
		corpusDir:    corpusDir,
		curatedPath:  curatedPath,
	}
}

// ScheduleFocusedCrawl runs job in the background, satisfying
// search.CrawlScheduler. Errors are recorded, never returned: nothing on
// the query path waits on this.
func (f *FocusedCrawler) ScheduleFocusedCrawl(job search.CrawlJob) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ctx := context.Background()
		var extras []string
		if job.UseLLM && f.suggester != nil {
			extras = f.suggester.SuggestURLs(ctx, job.Query, llmSuggestionLimit)
		}
		if _, err := f.RunFocusedCrawlWithExtras(ctx, job.Query, job.Budget, extras); err != nil {
			f.recordError("FocusedCrawler.ScheduleFocusedCrawl", job.Query, err)
		}
	}()
}

// Wait blocks until every background crawl scheduled so far has finished.
func (f *FocusedCrawler) Wait() {
	f.wg.Wait()
}

// RunFocusedCrawl executes one crawl synchronously and returns its
// summary. budget <= 0 falls back to the configured default.
func (f *FocusedCrawler) RunFocusedCrawl(ctx context.Context, query string, budget int) (CrawlSummary, error) {
	return f.RunFocusedCrawlWithExtras(ctx, query, budget, nil)
}

// RunFocusedCrawlWithExtras additionally seeds the frontier with
// extraURLs (typically LLM suggestions), which take the llm source weight.
func (f *FocusedCrawler) RunFocusedCrawlWithExtras(ctx context.Context, query string, budget int, extraURLs []string) (CrawlSummary, error) {
	start := time.Now()
	if budget <= 0 {
		budget = f.cfg.FocusedCrawlBudget()
	}

	candidates := f.buildCandidates(query, budget, extraURLs)
	summary := CrawlSummary{Query: query, Candidates: len(candidates)}
	if len(candidates) == 0 {
		summary.Duration = time.Since(start)
		return summary, nil
	}

	rawWriter, storageErr := storage.NewCrawlOutputWriter(f.rawDir, start.Unix())
	if storageErr != nil {
		return summary, storageErr
	}
	summary.RawOutput = rawWriter.Path()

	pages, poolStats := f.pool.Run(ctx, query, candidates, rawWriter)
	if closeErr := rawWriter.Close(); closeErr != nil {
		f.recordError("FocusedCrawler.RunFocusedCrawl", query, closeErr)
	}
	summary.PagesFetched = len(pages)
	summary.PoolStats = poolStats

	docs := f.normalizePages(pages)
	if err := f.indexDocs(docs); err != nil {
		return summary, err
	}
	summary.Indexed = f.indexWriter.Counters()

	f.updateAuthority(docs)
	f.recordSeedDomains(query, docs)
	f.saveCooldowns(query)

	summary.Duration = time.Since(start)
	if f.finalizer != nil {
		f.finalizer.RecordFinalCrawlStats(
			summary.PagesFetched,
			summary.PoolStats.Errors,
			summary.Indexed.Added+summary.Indexed.Updated,
			summary.Duration,
		)
	}
	return summary, nil
}

func (f *FocusedCrawler) buildCandidates(query string, budget int, extraURLs []string) []frontier.Candidate {
	var seedDomains []string
	if f.seedStore != nil {
		if domains, err := f.seedStore.GetTopDomains(topSeedDomains); err == nil {
			seedDomains = domains
		}
	}

	valueMap, err := frontier.LoadValueMap(f.curatedPath, f.seedStore)
	if err != nil {
		f.recordError("FocusedCrawler.buildCandidates", query, err)
		valueMap = nil
	}

	return frontier.BuildCandidates(query, frontier.BuildOptions{
		SeedDomains:  seedDomains,
		ExtraURLs:    extraURLs,
		RegistryURLs: f.registryCandidates(query),
		Budget:       budget,
		ValueMap:     valueMap,
		Authority:    f.estimator,
	})
}

// registryCandidates runs the seed-registry strategies for query, if a
// registry file is configured and present.
func (f *FocusedCrawler) registryCandidates(query string) []string {
	if f.registryPath == "" {
		return nil
	}
	reg, err := seeds.LoadRegistry(f.registryPath)
	if err != nil {
		if !os.IsNotExist(err) {
			f.recordError("FocusedCrawler.registryCandidates", query, err)
		}
		return nil
	}
	strategies := seeds.DefaultStrategies(seeds.StrategyDeps{CuratedPath: f.curatedPath})
	for _, entry := range reg.Sources {
		if _, ok := strategies[entry.Strategy]; !ok {
			f.recordError("FocusedCrawler.registryCandidates", entry.ID, seeds.ErrUnknownStrategy)
		}
	}
	gathered := seeds.Gather(reg, strategies, query, registryCandidateLimit)
	urls := make([]string, 0, len(gathered))
	for _, candidate := range gathered {
		urls = append(urls, candidate.URL)
	}
	return urls
}

// normalizePages converts fetched pages into canonical documents and
// appends them to the normalized corpus. Unparseable or empty pages are
// dropped and counted, not fatal.
func (f *FocusedCrawler) normalizePages(pages []fetcher.PageResult) []normalize.NormalizedDoc {
	var corpusWriter *storage.JSONLWriter
	if f.corpusDir != "" {
		writer, storageErr := storage.NewNormalizedWriter(f.corpusDir)
		if storageErr == nil {
			corpusWriter = writer
			defer corpusWriter.Close()
		}
	}

	docs := make([]normalize.NormalizedDoc, 0, len(pages))
	for _, page := range pages {
		if page.HTML == "" {
			continue
		}
		doc, normErr := f.constraint.NormalizeDocument(normalize.RawPage{
			URL:       page.URL,
			HTML:      page.HTML,
			FetchedAt: page.FetchedAt,
			Outlinks:  page.Outlinks,
		})
		if normErr != nil {
			continue
		}
		docs = append(docs, doc)

		if corpusWriter != nil {
			record := storage.NormalizedRecord{
				URL:         doc.URL,
				Lang:        doc.Lang,
				Title:       doc.Title,
				H1H2:        doc.H1H2,
				Body:        doc.Body,
				ContentHash: doc.ContentHash,
				FetchedAt:   float64(doc.FetchedAt.UnixNano()) / float64(time.Second),
				Outlinks:    doc.Outlinks,
			}
			if appendErr := corpusWriter.Append(record); appendErr != nil {
				f.recordError("FocusedCrawler.normalizePages", doc.URL, appendErr)
			}
		}
	}
	return docs
}

func (f *FocusedCrawler) indexDocs(docs []normalize.NormalizedDoc) error {
	for _, doc := range docs {
		_, indexErr := f.indexWriter.AddOrUpdate(index.NewDocument(
			doc.URL,
			doc.Title,
			doc.H1H2+"\n"+doc.Body,
			doc.Lang,
			doc.Outlinks,
			doc.FetchedAt,
		))
		if indexErr != nil {
			return indexErr
		}
	}
	if commitErr := f.indexWriter.Commit(); commitErr != nil {
		return commitErr
	}
	return nil
}

func (f *FocusedCrawler) updateAuthority(docs []normalize.NormalizedDoc) {
	if f.estimator == nil {
		return
	}
	outlinks := make([]authority.DocOutlinks, 0, len(docs))
	for _, doc := range docs {
		outlinks = append(outlinks, authority.DocOutlinks{URL: doc.URL, Outlinks: doc.Outlinks})
	}
	f.estimator.UpdateFromDocs(outlinks)
	if err := f.estimator.Save(); err != nil {
		f.recordError("FocusedCrawler.updateAuthority", "", err)
	}
}

// recordSeedDomains feeds the hosts that actually yielded documents back
// into the seed log, so future frontiers favor them.
func (f *FocusedCrawler) recordSeedDomains(query string, docs []normalize.NormalizedDoc) {
	if f.seedStore == nil || len(docs) == 0 {
		return
	}
	counts := make(map[string]int)
	for _, doc := range docs {
		if domain := seeds.DomainFromURL(doc.URL); domain != "" {
			counts[domain]++
		}
	}
	scores := make(map[string]float64, len(counts))
	for domain, count := range counts {
		score := 0.4 + 0.1*float64(count)
		if score > 1.0 {
			score = 1.0
		}
		scores[domain] = score
	}
	if err := f.seedStore.RecordDomains(scores, query, "focused-crawl"); err != nil {
		f.recordError("FocusedCrawler.recordSeedDomains", query, err)
	}
}

func (f *FocusedCrawler) saveCooldowns(query string) {
	if f.cooldowns == nil {
		return
	}
	if err := f.cooldowns.Save(); err != nil {
		f.recordError("FocusedCrawler.saveCooldowns", query, err)
	}
}

func (f *FocusedCrawler) recordError(action, subject string, err error) {
	if f.metadataSink == nil || err == nil {
		return
	}
	var attrs []metadata.Attribute
	if subject != "" {
		attrs = append(attrs, metadata.NewAttr(metadata.AttrMessage, subject))
	}
	f.metadataSink.RecordError(
		time.Now(),
		"scheduler",
		action,
		metadata.CauseUnknown,
		err.Error(),
		attrs,
	)
}
