// Package search is the smart-search orchestrator: it answers queries from
// the index immediately and, when coverage is thin, debounce-triggers a
// background focused crawl to improve the next answer. The crawl never
// blocks the query path.
package search

import (
	"context"
	"sync"
	"time"

	"github.com/sulaimonao/selfhostedsearch/internal/config"
	"github.com/sulaimonao/selfhostedsearch/internal/cooldown"
	"github.com/sulaimonao/selfhostedsearch/internal/index"
	"github.com/sulaimonao/selfhostedsearch/internal/metadata"
	"github.com/sulaimonao/selfhostedsearch/internal/rank"
)

// Searcher is the orchestrator's view of the index.
type Searcher interface {
	Search(q string, opts index.SearchOptions) (index.SearchResult, *index.IndexError)
}

// Reranker optionally reorders the top blended hits; satisfied by
// *rank.Reranker.
type Reranker interface {
	Rerank(ctx context.Context, query string, hits []rank.BlendedHit) []rank.BlendedHit
}

// CrawlJob is the work order handed to the background crawl scheduler.
type CrawlJob struct {
	Query  string
	Budget int
	UseLLM bool
	Model  string
}

// CrawlScheduler owns background focused-crawl tasks. The orchestrator
// holds it weakly: detach it and triggers become no-ops.
type CrawlScheduler interface {
	ScheduleFocusedCrawl(job CrawlJob)
}

// Result is one smart-search answer: the hits the index has right now,
// plus whether a background crawl was kicked off to deepen coverage.
type Result struct {
	Hits           []rank.BlendedHit
	Total          uint64
	CrawlTriggered bool
}

// Orchestrator wires index lookup, authority blending, optional rerank,
// and the debounced crawl trigger.
type Orchestrator struct {
	cfg          config.CrawlConfig
	searcher     Searcher
	scorer       rank.AuthorityScorer
	reranker     Reranker
	gate         *cooldown.TriggerGate
	metadataSink metadata.MetadataSink

	schedulerMu sync.RWMutex
	scheduler   CrawlScheduler
}

// New builds an Orchestrator. scorer and reranker may be nil (no blending
// beyond raw scores, no rerank). Attach a scheduler with AttachScheduler
// to enable background crawls.
func New(
	cfg config.CrawlConfig,
	searcher Searcher,
	scorer rank.AuthorityScorer,
	reranker Reranker,
	metadataSink metadata.MetadataSink,
) *Orchestrator {
	return &Orchestrator{
		cfg:          cfg,
		searcher:     searcher,
		scorer:       scorer,
		reranker:     reranker,
		gate:         cooldown.NewTriggerGate(cfg.SmartTriggerCooldown()),
		metadataSink: metadataSink,
	}
}

// AttachScheduler hands the orchestrator a crawl scheduler to trigger.
func (o *Orchestrator) AttachScheduler(s CrawlScheduler) {
	o.schedulerMu.Lock()
	o.scheduler = s
	o.schedulerMu.Unlock()
}

// DetachScheduler makes future triggers no-ops, for teardown.
func (o *Orchestrator) DetachScheduler() {
	o.AttachScheduler(nil)
}

// SmartSearch answers query from the index. When the index returns fewer
// than the configured minimum and the per-query cooldown allows, it
// schedules a background focused crawl and returns the thin results
// immediately. Index errors never surface: the caller gets whatever the
// index has, down to an empty list.
func (o *Orchestrator) SmartSearch(ctx context.Context, query string, limit int, useLLM bool, model string) Result {
	if limit < 1 {
		limit = 10
	}

	searchResult, indexErr := o.searcher.Search(query, index.SearchOptions{PerPage: limit})
	if indexErr != nil {
		o.recordSearchError(query, indexErr)
		searchResult = index.SearchResult{}
	}

	blended := rank.Blend(searchResult.Hits, o.scorer, o.cfg.RankAuthAlpha())
	if useLLM && o.reranker != nil && len(blended) > 0 {
		blended = o.reranker.Rerank(ctx, query, blended)
	}

	result := Result{Hits: blended, Total: searchResult.Total}

	if len(blended) >= o.cfg.SmartMinResults() {
		return result
	}

	now := time.Now()
	if !o.gate.Allow(query, now) {
		return result
	}

	o.schedulerMu.RLock()
	scheduler := o.scheduler
	o.schedulerMu.RUnlock()
	if scheduler == nil {
		return result
	}

	o.gate.MarkTriggered(query, now)
	scheduler.ScheduleFocusedCrawl(CrawlJob{
		Query:  query,
		Budget: o.cfg.FocusedCrawlBudget(),
		UseLLM: useLLM,
		Model:  model,
	})
	result.CrawlTriggered = true
	return result
}

func (o *Orchestrator) recordSearchError(query string, indexErr *index.IndexError) {
	if o.metadataSink == nil {
		return
	}
	o.metadataSink.RecordError(
		time.Now(),
		"search",
		"Orchestrator.SmartSearch",
		metadata.CauseUnknown,
		indexErr.Error(),
		[]metadata.Attribute{metadata.NewAttr(metadata.AttrMessage, query)},
	)
}
