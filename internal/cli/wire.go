package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sulaimonao/selfhostedsearch/internal/authority"
	"github.com/sulaimonao/selfhostedsearch/internal/config"
	"github.com/sulaimonao/selfhostedsearch/internal/cooldown"
	"github.com/sulaimonao/selfhostedsearch/internal/dedupe"
	"github.com/sulaimonao/selfhostedsearch/internal/fetcher"
	"github.com/sulaimonao/selfhostedsearch/internal/index"
	"github.com/sulaimonao/selfhostedsearch/internal/metadata"
	"github.com/sulaimonao/selfhostedsearch/internal/metrics"
	"github.com/sulaimonao/selfhostedsearch/internal/normalize"
	"github.com/sulaimonao/selfhostedsearch/internal/rank"
	"github.com/sulaimonao/selfhostedsearch/internal/robots"
	"github.com/sulaimonao/selfhostedsearch/internal/scheduler"
	"github.com/sulaimonao/selfhostedsearch/internal/search"
	"github.com/sulaimonao/selfhostedsearch/internal/seeds"
)

// searchCore is the wired search-engine service graph the crawl/search/
// index subcommands operate on.
type searchCore struct {
	cfg          config.CrawlConfig
	recorder     *metadata.Recorder
	indexWriter  *index.Writer
	estimator    *authority.Estimator
	cooldowns    *cooldown.Ledger
	seedStore    *seeds.Store
	crawler      *scheduler.FocusedCrawler
	orchestrator *search.Orchestrator
	renderer     fetcher.Renderer
	metrics      *metrics.Metrics
	dataDir      string
}

// corePaths resolves the on-disk layout under dataDir.
func corePaths(dataDir string) (indexPath, ledgerPath, authorityPath, cooldownsPath, seedLogPath, curatedPath, rawDir string) {
	indexPath = filepath.Join(dataDir, "index")
	ledgerPath = filepath.Join(dataDir, "ledger.json")
	authorityPath = filepath.Join(dataDir, "authority.json")
	cooldownsPath = filepath.Join(dataDir, "cooldowns.json")
	seedLogPath = filepath.Join(dataDir, "seed_log.jsonl")
	curatedPath = filepath.Join(dataDir, "curated_seeds.jsonl")
	rawDir = filepath.Join(dataDir, "raw")
	return
}

// buildSearchCore loads config from the environment and opens every store
// under dataDir.
func buildSearchCore(dataDir string) (*searchCore, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}

	indexPath, ledgerPath, authorityPath, cooldownsPath, seedLogPath, curatedPath, rawDir := corePaths(dataDir)

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	recorder := metadata.NewRecorder("search-core")

	indexWriter, indexErr := index.NewWriter(index.WriterConfig{
		IndexPath:        indexPath,
		LedgerPath:       ledgerPath,
		SimHashPath:      filepath.Join(dataDir, "simhash.jsonl"),
		LastIndexPath:    filepath.Join(dataDir, "last_index_time"),
		NearDupThreshold: dedupe.DefaultNearDuplicateThreshold,
	})
	if indexErr != nil {
		return nil, fmt.Errorf("open index: %w", indexErr)
	}

	estimator, err := authority.Load(authorityPath)
	if err != nil {
		return nil, fmt.Errorf("load authority index: %w", err)
	}

	cooldowns, err := cooldown.Load(cooldownsPath)
	if err != nil {
		return nil, fmt.Errorf("load cooldown ledger: %w", err)
	}

	seedStore := seeds.NewStore(seedLogPath)

	robot := robots.NewCachedRobot(&recorder)
	robot.Init(cfg.CrawlUserAgent())

	var renderer fetcher.Renderer
	if cfg.RenderMode() != config.RenderOff {
		renderer = fetcher.NewRodRenderer(cfg.RenderNavigationTimeout())
	}

	htmlFetcher := fetcher.NewHtmlFetcher(&recorder)
	pool := fetcher.NewPool(cfg, &htmlFetcher, &robot, renderer, cooldowns, &recorder)

	constraint := normalize.NewDocumentConstraint(&recorder)

	crawler := scheduler.NewFocusedCrawler(
		cfg,
		pool,
		constraint,
		indexWriter,
		estimator,
		seedStore,
		cooldowns,
		&recorder,
		rawDir,
		dataDir,
		curatedPath,
	)
	crawler.SetRegistryPath(filepath.Join(dataDir, "registry.yaml"))
	crawler.SetCrawlFinalizer(&recorder)

	var reranker search.Reranker
	if cfg.OllamaModel() != "" {
		llm := rank.NewReranker(cfg.OllamaURL(), cfg.OllamaModel(), cfg.RerankTopN(), cfg.OllamaTimeout(), &recorder)
		reranker = llm
		crawler.SetURLSuggester(llm)
	}

	orchestrator := search.New(cfg, indexWriter, estimator, reranker, &recorder)
	orchestrator.AttachScheduler(crawler)

	return &searchCore{
		cfg:          cfg,
		recorder:     &recorder,
		indexWriter:  indexWriter,
		estimator:    estimator,
		cooldowns:    cooldowns,
		seedStore:    seedStore,
		crawler:      crawler,
		orchestrator: orchestrator,
		renderer:     renderer,
		metrics:      metrics.New(),
		dataDir:      dataDir,
	}, nil
}

// Close drains background crawls and flushes every store.
func (c *searchCore) Close() {
	c.orchestrator.DetachScheduler()
	c.crawler.Wait()
	if err := c.cooldowns.Save(); err != nil {
		fmt.Printf("warning: saving cooldowns: %v\n", err)
	}
	if err := c.estimator.Save(); err != nil {
		fmt.Printf("warning: saving authority index: %v\n", err)
	}
	if c.renderer != nil {
		_ = c.renderer.Close()
	}
	if err := c.indexWriter.Close(); err != nil {
		fmt.Printf("warning: closing index: %v\n", err)
	}
}
