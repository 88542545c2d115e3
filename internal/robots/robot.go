package robots

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/sulaimonao/selfhostedsearch/internal/metadata"
	"github.com/sulaimonao/selfhostedsearch/internal/robots/cache"
)

/*
Responsibilities

- Fetch robots.txt per host
- Cache rules for crawl duration, honoring a TTL so a long-running focused
  crawl re-checks a host's policy periodically instead of trusting a
  first-crawl snapshot forever
- Enforce allow/disallow rules before each fetch

Robots checks occur in the fetch pool, after the frontier is built and
before a candidate is fetched.
*/

// Robot is the scheduler's view of robots.txt enforcement: fetch-and-cache
// per host, then decide whether a URL may be crawled.
type Robot interface {
	Init(userAgent string)
	Decide(u url.URL) (Decision, *RobotsError)
}

// defaultRobotsTTL bounds how long a cached robots.txt result is trusted
// before Decide forces a re-fetch.
const defaultRobotsTTL = time.Hour

// CachedRobot is the concrete Robot used by the scheduler. It wraps a
// RobotsFetcher with a TTL so cached rule sets expire instead of being
// trusted for the lifetime of the process.
type CachedRobot struct {
	sink        metadata.MetadataSink
	userAgent   string
	httpClient  *http.Client
	robotsCache cache.Cache
	fetcher     *RobotsFetcher
	ttl         time.Duration
}

// NewCachedRobot constructs a CachedRobot. Call Init or InitWithCache before
// calling Decide.
func NewCachedRobot(sink metadata.MetadataSink) CachedRobot {
	return CachedRobot{sink: sink}
}

// Init wires a CachedRobot with a fresh in-memory cache and the default TTL.
func (r *CachedRobot) Init(userAgent string) {
	r.InitWithCache(userAgent, cache.NewMemoryCache())
}

// InitWithCache wires a CachedRobot with a caller-supplied cache, letting
// tests and long-lived daemons share a cache across CachedRobot instances.
func (r *CachedRobot) InitWithCache(userAgent string, c cache.Cache) {
	r.userAgent = userAgent
	r.httpClient = &http.Client{Timeout: 30 * time.Second}
	r.robotsCache = c
	r.fetcher = NewRobotsFetcherWithClient(r.sink, userAgent, r.httpClient, c)
	r.ttl = defaultRobotsTTL
}

// Decide evaluates whether u may be crawled under the target host's
// robots.txt, fetching and caching that host's rules as needed.
func (r *CachedRobot) Decide(u url.URL) (Decision, *RobotsError) {
	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}
	host := u.Host
	if host == "" {
		host = u.Hostname()
	}

	r.evictIfStale(scheme, host)

	result, err := r.fetcher.Fetch(context.Background(), scheme, host)
	if err != nil {
		r.recordFetchError(u, err)
		return Decision{}, err
	}

	rs := MapResponseToRuleSet(result.Response, r.userAgent, result.FetchedAt)
	return evaluateDecision(rs, u), nil
}

// evictIfStale drops a cached robots.txt result once it has outlived ttl, so
// the next Fetch call re-checks the host instead of reusing a stale ruleset.
func (r *CachedRobot) evictIfStale(scheme, host string) {
	if r.robotsCache == nil {
		return
	}
	key := cacheKey(scheme, host)
	data, found := r.robotsCache.Get(key)
	if !found {
		return
	}
	cached, err := deserializeResult(data)
	if err != nil {
		return
	}
	if time.Since(cached.FetchedAt) > r.ttl {
		r.robotsCache.Put(key, "")
	}
}

func (r *CachedRobot) recordFetchError(u url.URL, err *RobotsError) {
	if r.sink == nil {
		return
	}
	r.sink.RecordError(
		time.Now(),
		"robots",
		"CachedRobot.Decide",
		mapRobotsErrorToMetadataCause(err),
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, u.String()),
			metadata.NewAttr(metadata.AttrHost, u.Hostname()),
		},
	)
}

// evaluateDecision applies the standard robots.txt precedence: the rule with
// the longest matching pattern wins; ties favor Allow.
func evaluateDecision(rs ruleSet, u url.URL) Decision {
	path := u.Path
	if path == "" {
		path = "/"
	}

	decision := Decision{Url: u}

	if cd := rs.CrawlDelay(); cd != nil {
		decision.CrawlDelay = *cd
	}

	if !rs.hasGroups {
		decision.Allowed = true
		decision.Reason = EmptyRuleSet
		return decision
	}
	if !rs.matchedGroup {
		decision.Allowed = true
		decision.Reason = UserAgentNotMatched
		return decision
	}

	bestAllow := -1
	for _, rule := range rs.AllowRules() {
		if matchRobotsPattern(rule.Prefix(), path) && len(rule.Prefix()) > bestAllow {
			bestAllow = len(rule.Prefix())
		}
	}
	bestDisallow := -1
	for _, rule := range rs.DisallowRules() {
		if matchRobotsPattern(rule.Prefix(), path) && len(rule.Prefix()) > bestDisallow {
			bestDisallow = len(rule.Prefix())
		}
	}

	switch {
	case bestAllow == -1 && bestDisallow == -1:
		decision.Allowed = true
		decision.Reason = NoMatchingRules
	case bestAllow >= bestDisallow:
		decision.Allowed = true
		decision.Reason = AllowedByRobots
	default:
		decision.Allowed = false
		decision.Reason = DisallowedByRobots
	}
	return decision
}

// matchRobotsPattern matches path against a robots.txt path pattern,
// supporting the common "*" wildcard and "$" end-of-string anchor
// extensions alongside plain prefix matching.
func matchRobotsPattern(pattern, path string) bool {
	endAnchor := strings.HasSuffix(pattern, "$")
	trimmed := strings.TrimSuffix(pattern, "$")

	segments := strings.Split(trimmed, "*")
	quoted := make([]string, len(segments))
	for i, seg := range segments {
		quoted[i] = regexp.QuoteMeta(seg)
	}
	reStr := "^" + strings.Join(quoted, ".*")
	if endAnchor {
		reStr += "$"
	}

	re, err := regexp.Compile(reStr)
	if err != nil {
		return strings.HasPrefix(path, trimmed)
	}
	return re.MatchString(path)
}
