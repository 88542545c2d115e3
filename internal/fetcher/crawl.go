package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sulaimonao/selfhostedsearch/internal/config"
	"github.com/sulaimonao/selfhostedsearch/internal/cooldown"
	"github.com/sulaimonao/selfhostedsearch/internal/dedupe"
	"github.com/sulaimonao/selfhostedsearch/internal/frontier"
	"github.com/sulaimonao/selfhostedsearch/internal/metadata"
	"github.com/sulaimonao/selfhostedsearch/internal/robots"
	"github.com/sulaimonao/selfhostedsearch/internal/storage"
	"github.com/sulaimonao/selfhostedsearch/pkg/limiter"
	"github.com/sulaimonao/selfhostedsearch/pkg/retry"
	"github.com/sulaimonao/selfhostedsearch/pkg/timeutil"
)

/*
Focused-crawl pool

Given a ranked candidate list for one query, fetch up to budget unique,
deduped, robots-allowed pages with bounded concurrency: a global permit
pool plus a per-host permit pool. Within one run a URL is fetched at most
once, and two pages with the same content MD5 cannot both be persisted —
the fingerprint check happens under the results lock.

Cooldowns only advance on successful fetches. A transient error leaves the
(query, host) entry untouched so the next run retries instead of mistaking
the failure for fresh coverage.
*/

const (
	fetchTimeout        = 10 * time.Second
	maxFetchRetries     = 3
	backoffInitialDelay = 1 * time.Second
	backoffMaxDelay     = 8 * time.Second
	backoffMultiplier   = 2.0
)

// PoolStats tallies one crawl run's outcomes.
type PoolStats struct {
	Fetched        int
	DedupeHits     int
	RobotsDenied   int
	CooldownSkips  int
	AlreadyVisited int
	Errors         int
	Rendered       int
}

// Pool is the focused-crawl fetch pool. Construct with NewPool, then call
// Run once per crawl; a Pool's visited set and URL bloom span its
// lifetime, so reusing one Pool across runs extends dedup across them.
type Pool struct {
	cfg          config.CrawlConfig
	fetcher      Fetcher
	robot        robots.Robot
	renderer     Renderer
	cooldowns    *cooldown.Ledger
	metadataSink metadata.MetadataSink
	rateLimiter  limiter.RateLimiter
	sleeper      timeutil.Sleeper

	bloom   *dedupe.UrlBloom
	visited map[string]struct{}

	hostPermits map[string]chan struct{}
	hostMu      sync.Mutex

	mu         sync.Mutex
	seenMD5    map[string]struct{}
	runMarked  map[string]struct{}
	results    []PageResult
	stats      PoolStats
}

// NewPool wires a Pool. renderer may be nil, which disables the headless
// fallback regardless of the configured render mode; cooldowns may be nil
// to disable cooldown tracking (tests).
func NewPool(
	cfg config.CrawlConfig,
	htmlFetcher Fetcher,
	robot robots.Robot,
	renderer Renderer,
	cooldowns *cooldown.Ledger,
	metadataSink metadata.MetadataSink,
) *Pool {
	sleeper := timeutil.NewRealSleeper()
	return &Pool{
		cfg:          cfg,
		fetcher:      htmlFetcher,
		robot:        robot,
		renderer:     renderer,
		cooldowns:    cooldowns,
		metadataSink: metadataSink,
		rateLimiter:  limiter.NewConcurrentRateLimiter(),
		sleeper:      &sleeper,
		bloom:        dedupe.NewUrlBloom(cfg.FocusedCrawlBudget()*10, 0.01),
		visited:      make(map[string]struct{}),
		hostPermits:  make(map[string]chan struct{}),
		seenMD5:      make(map[string]struct{}),
		runMarked:    make(map[string]struct{}),
	}
}

// Run fetches candidates for query until the budget is met or the queue
// drains, then returns the collected pages. When output is non-nil every
// page is also appended to it as a CrawlRecord.
func (p *Pool) Run(
	ctx context.Context,
	query string,
	candidates []frontier.Candidate,
	output *storage.JSONLWriter,
) ([]PageResult, PoolStats) {
	budget := p.cfg.FocusedCrawlBudget()
	if len(candidates) == 0 || budget < 1 {
		return nil, p.Stats()
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	queue := make(chan frontier.Candidate, len(candidates))
	for _, c := range candidates {
		queue <- c
	}
	close(queue)

	workers := p.cfg.ConcurrentRequests()
	if workers > len(candidates) {
		workers = len(candidates)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for candidate := range queue {
				select {
				case <-runCtx.Done():
					return
				default:
				}
				p.processCandidate(runCtx, query, candidate, output, budget, stop)
			}
		}()
	}
	wg.Wait()

	p.mu.Lock()
	results := append([]PageResult(nil), p.results...)
	p.mu.Unlock()
	return results, p.Stats()
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Pool) processCandidate(
	ctx context.Context,
	query string,
	candidate frontier.Candidate,
	output *storage.JSONLWriter,
	budget int,
	stop context.CancelFunc,
) {
	target, err := url.Parse(candidate.URL)
	if err != nil || target.Host == "" {
		return
	}
	host := target.Hostname()

	// Admission order matters: visited/bloom first, then cooldown, then
	// robots, and only then do we spend a permit on the network.
	p.mu.Lock()
	if _, dup := p.visited[candidate.URL]; dup {
		p.stats.AlreadyVisited++
		p.mu.Unlock()
		return
	}
	if p.bloom.Contains(candidate.URL) {
		p.stats.AlreadyVisited++
		p.mu.Unlock()
		return
	}
	p.visited[candidate.URL] = struct{}{}
	p.mu.Unlock()
	p.bloom.Add(candidate.URL)

	// Cooldowns gate hosts across runs, not within one: a host first
	// marked during this run stays admissible for the rest of it.
	if p.cooldowns != nil {
		p.mu.Lock()
		_, markedThisRun := p.runMarked[host]
		p.mu.Unlock()
		if !markedThisRun && p.cooldowns.Skip(query, host, time.Now(), cooldown.DefaultCooldownSeconds) {
			p.mu.Lock()
			p.stats.CooldownSkips++
			p.mu.Unlock()
			return
		}
	}

	if p.cfg.RespectRobots() && p.robot != nil {
		decision, robotsErr := p.robot.Decide(*target)
		// An unreachable robots.txt is permissive: only an explicit
		// disallow blocks the fetch.
		if robotsErr == nil && !decision.Allowed {
			p.mu.Lock()
			p.stats.RobotsDenied++
			p.mu.Unlock()
			return
		}
	}

	release := p.acquireHostPermit(ctx, host)
	if release == nil {
		return
	}
	defer release()

	// Per-host politeness: wait out any crawl-delay or backoff the rate
	// limiter has accumulated for this host before spending the network.
	if delay := p.rateLimiter.ResolveDelay(host); delay > 0 {
		p.sleeper.Sleep(delay)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	result, fetchErr := p.fetcher.Fetch(
		fetchCtx,
		0,
		NewFetchParam(*target, p.cfg.CrawlUserAgent()),
		p.retryParam(),
	)

	var page PageResult
	if fetchErr != nil {
		var fe *FetchError
		if errors.As(fetchErr, &fe) && fe.Cause == ErrCauseContentTypeInvalid {
			// Non-HTML responses are still recorded, with empty title and
			// body; the normalizer drops them downstream.
			page = PageResult{
				Query:     query,
				URL:       candidate.URL,
				Status:    http.StatusOK,
				FetchedAt: time.Now().UTC(),
			}
		} else {
			if fe != nil && (fe.Cause == ErrCauseRequestTooMany || fe.Cause == ErrCauseRequest5xx) {
				p.rateLimiter.Backoff(host)
			}
			p.mu.Lock()
			p.stats.Errors++
			p.mu.Unlock()
			return
		}
	} else {
		p.rateLimiter.MarkLastFetchAsNow(host)
		p.rateLimiter.ResetBackoff(host)
		page = p.buildPage(ctx, query, candidate.URL, result)
	}

	page.Fingerprint = dedupe.FromText(visibleText(page.HTML))

	p.mu.Lock()
	if len(p.results) >= budget {
		p.mu.Unlock()
		stop()
		return
	}
	if _, dup := p.seenMD5[page.Fingerprint.MD5]; dup && page.HTML != "" {
		p.stats.DedupeHits++
		p.mu.Unlock()
		return
	}
	p.seenMD5[page.Fingerprint.MD5] = struct{}{}
	p.results = append(p.results, page)
	p.stats.Fetched++
	reached := len(p.results) >= budget
	p.mu.Unlock()

	if p.cooldowns != nil {
		p.cooldowns.Mark(query, host, time.Now())
		p.mu.Lock()
		p.runMarked[host] = struct{}{}
		p.mu.Unlock()
	}

	if output != nil {
		record := storage.CrawlRecord{
			Query:       page.Query,
			URL:         page.URL,
			Status:      page.Status,
			Title:       page.Title,
			HTML:        page.HTML,
			FetchedAt:   float64(page.FetchedAt.UnixNano()) / float64(time.Second),
			ContentHash: page.Fingerprint.MD5,
			SimHash:     page.Fingerprint.SimHash,
			Outlinks:    page.Outlinks,
		}
		if storageErr := output.Append(record); storageErr != nil {
			p.metadataSink.RecordError(
				time.Now(),
				"fetcher",
				"Pool.Run",
				metadata.CauseStorageFailure,
				storageErr.Error(),
				[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, page.URL)},
			)
		}
	}

	if reached {
		stop()
	}
}

// buildPage assembles a PageResult from a successful static fetch,
// applying the headless-render fallback when the static HTML looks like an
// unrendered app shell (or rendering is forced on).
func (p *Pool) buildPage(ctx context.Context, query, pageURL string, result FetchResult) PageResult {
	html := string(result.Body())
	finalURL := result.URL()

	page := PageResult{
		Query:     query,
		URL:       finalURL.String(),
		Status:    result.Code(),
		HTML:      html,
		FetchedAt: result.FetchedAt(),
	}
	if page.FetchedAt.IsZero() {
		page.FetchedAt = time.Now().UTC()
	}

	mode := p.cfg.RenderMode()
	if p.renderer != nil && mode != config.RenderOff && (mode == config.RenderOn || needsRender(html)) {
		renderCtx, cancel := context.WithTimeout(ctx, p.cfg.RenderNavigationTimeout())
		rendered, renderErr := p.renderer.Render(renderCtx, page.URL)
		cancel()
		if renderErr == nil && rendered != "" {
			renderedFp := dedupe.FromText(visibleText(rendered))
			p.mu.Lock()
			_, dup := p.seenMD5[renderedFp.MD5]
			p.mu.Unlock()
			// The rendered DOM replaces the static HTML unless it collides
			// with a page already taken this run.
			if !dup {
				page.HTML = rendered
				page.Rendered = true
				p.mu.Lock()
				p.stats.Rendered++
				p.mu.Unlock()
			}
		} else if renderErr != nil {
			p.metadataSink.RecordError(
				time.Now(),
				"fetcher",
				"Pool.buildPage",
				metadata.CauseNetworkFailure,
				renderErr.Error(),
				[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, page.URL)},
			)
		}
	}

	page.Title, page.Outlinks = extractTitleAndOutlinks(page.HTML, &finalURL)
	return page
}

// acquireHostPermit blocks until a per-host slot frees up, returning the
// release func, or nil if ctx is cancelled while waiting.
func (p *Pool) acquireHostPermit(ctx context.Context, host string) func() {
	p.hostMu.Lock()
	permits, ok := p.hostPermits[host]
	if !ok {
		permits = make(chan struct{}, p.cfg.ConcurrentPerDomain())
		p.hostPermits[host] = permits
	}
	p.hostMu.Unlock()

	select {
	case permits <- struct{}{}:
		return func() { <-permits }
	case <-ctx.Done():
		return nil
	}
}

func (p *Pool) retryParam() retry.RetryParam {
	return retry.NewRetryParam(
		backoffInitialDelay,
		0,
		time.Now().UnixNano(),
		maxFetchRetries,
		timeutil.NewBackoffParam(backoffInitialDelay, backoffMultiplier, backoffMaxDelay),
	)
}
