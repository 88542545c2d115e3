package frontier

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/sulaimonao/selfhostedsearch/internal/dedupe"
	"github.com/sulaimonao/selfhostedsearch/internal/seeds"
)

/*
Candidate builder (spec §4.4)

BuildCandidates ranks a *query's* whole candidate pool before a single
fetch has happened, blending seed domains,
LLM-suggested URLs, and heuristic guesses by a weighted priority score.
*/

// CandidateSource names where a Candidate came from.
type CandidateSource string

const (
	SourceCandidateSeed      CandidateSource = "seed"
	SourceCandidateLLM       CandidateSource = "llm"
	SourceCandidateHeuristic CandidateSource = "heuristic"
	SourceCandidateSitemap   CandidateSource = "sitemap"
	SourceCandidateRegistry  CandidateSource = "registry"
)

// PriorityWeights are the linear-blend coefficients from spec §4.4 step 6.
type PriorityWeights struct {
	Value     float64
	Freshness float64
	Authority float64
}

// DefaultPriorityWeights matches spec.md's literal formula:
// priority = weight + 0.5*value_prior + 0.3*freshness_hint + 0.2*host_authority.
var DefaultPriorityWeights = PriorityWeights{Value: 0.5, Freshness: 0.3, Authority: 0.2}

// DefaultFocusedCrawlBudget is FOCUSED_CRAWL_BUDGET's default.
const DefaultFocusedCrawlBudget = 50

// Candidate is a ranked URL awaiting fetch, per spec §3's Candidate entity.
type Candidate struct {
	URL           string
	Source        CandidateSource
	Weight        float64
	ValuePrior    float64
	FreshnessHint float64
	HostAuthority float64
}

// Priority computes the blended ranking score using w, or
// DefaultPriorityWeights if w is the zero value.
func (c Candidate) Priority(w PriorityWeights) float64 {
	if w == (PriorityWeights{}) {
		w = DefaultPriorityWeights
	}
	return c.Weight + w.Value*c.ValuePrior + w.Freshness*c.FreshnessHint + w.Authority*c.HostAuthority
}

// AuthorityScorer is the narrow view BuildCandidates needs of the
// authority estimator; satisfied by *authority.Estimator.
type AuthorityScorer interface {
	ScoreFor(host string) float64
}

// BuildOptions parameterizes BuildCandidates.
type BuildOptions struct {
	SeedDomains    []string
	ExtraURLs      []string
	RegistryURLs   []string
	Budget         int
	ValueOverrides map[string]float64
	ValueMap       map[string]float64 // pre-merged curated+seed-log value priors, keyed by normalized domain
	Authority      AuthorityScorer
	Weights        PriorityWeights
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "for": {}, "from": {}, "how": {}, "in": {},
	"of": {}, "on": {}, "or": {}, "the": {}, "to": {}, "what": {}, "where": {}, "why": {},
}

var wordRe = regexp.MustCompile(`[a-z0-9]+`)

// Keywords tokenizes and lowercases query, dropping stopwords unless every
// token is a stopword (in which case the original tokens are kept).
func Keywords(query string) []string {
	words := wordRe.FindAllString(strings.ToLower(query), -1)
	filtered := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := stopwords[w]; !stop {
			filtered = append(filtered, w)
		}
	}
	if len(filtered) > 0 {
		return filtered
	}
	return words
}

var domainPaths = []string{"/", "/docs", "/documentation", "/doc", "/blog", "/kb", "/knowledge", "/support", "/help", "/learn"}
var domainPathsWithQuery = []string{"/search?q=%s", "/docs/search?q=%s", "/documentation/search?q=%s"}
var tldGuesses = []string{"com", "org", "io", "dev", "net"}

// domainCandidates builds the seed-domain-template URL stream step 3 of
// spec §4.4 describes.
func domainCandidates(domain, query string) []string {
	base := domain
	if !strings.HasPrefix(base, "http") {
		base = "https://" + strings.TrimPrefix(domain, "/")
	}
	encodedQuery := url.QueryEscape(query)
	out := make([]string, 0, len(domainPaths)+len(domainPathsWithQuery))
	for _, p := range domainPaths {
		out = append(out, base+p)
	}
	for _, tmpl := range domainPathsWithQuery {
		out = append(out, base+strings.Replace(tmpl, "%s", encodedQuery, 1))
	}
	return out
}

// queryCandidates builds the heuristic-guess URL stream step 3 names.
func queryCandidates(query string) []string {
	keywords := Keywords(query)
	if len(keywords) == 0 {
		return nil
	}
	base := keywords[0]
	n := len(keywords)
	if n > 3 {
		n = 3
	}
	slug := strings.Join(keywords[:n], "-")

	var out []string
	for _, tld := range tldGuesses {
		out = append(out,
			"https://"+base+"."+tld,
			"https://docs."+base+"."+tld,
			"https://"+base+"."+tld+"/docs",
			"https://"+base+"."+tld+"/documentation",
		)
	}
	if slug != "" {
		out = append(out, "https://"+slug+".com", "https://"+slug+".io")
	}
	out = append(out, "https://"+base+".readthedocs.io/en/latest", "https://"+base+".github.io", "https://"+base+".gitbook.io")
	return out
}

// sanitizeURL forces a string into an absolute http(s) URL with no
// fragment and a cleaned path, or returns ("", false).
func sanitizeURL(raw string) (string, bool) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", false
	}
	if !strings.HasPrefix(candidate, "http://") && !strings.HasPrefix(candidate, "https://") {
		candidate = "https://" + strings.TrimLeft(candidate, "/")
	}
	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		u.Scheme = "https"
	}
	if u.Path != "" && !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path
	}
	u.Fragment = ""
	u.RawFragment = ""
	sanitized := strings.TrimRight(u.String(), "/")
	if sanitized == "" {
		return "", false
	}
	return sanitized, true
}

// heuristicValue scores a URL's path using the docs/documentation/guide/
// handbook/blog/kb/support/api keyword heuristic spec §4.4 step 4 names.
func heuristicValue(rawURL string) float64 {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0.6
	}
	path := strings.ToLower(u.Path)
	score := 0.6
	for _, kw := range []string{"docs", "documentation", "guide", "handbook"} {
		if strings.Contains(path, kw) {
			score += 0.25
			break
		}
	}
	for _, kw := range []string{"blog", "kb", "support"} {
		if strings.Contains(path, kw) {
			score += 0.1
			break
		}
	}
	if strings.Contains(path, "api") {
		score += 0.1
	}
	host := strings.ToLower(u.Host)
	if strings.HasSuffix(host, ".org") || strings.HasSuffix(host, ".io") || strings.HasSuffix(host, ".dev") {
		score += 0.1
	}
	if score < 0.1 {
		score = 0.1
	}
	if score > 1.5 {
		score = 1.5
	}
	return score
}

// freshnessScore implements spec §4.4 step 4's freshness_hint rule.
func freshnessScore(rawURL string, source CandidateSource) float64 {
	lowered := strings.ToLower(rawURL)
	if strings.Contains(lowered, "sitemap") || source == SourceCandidateSitemap {
		return 1.0
	}
	for _, token := range []string{"rss", "atom", "feed"} {
		if strings.Contains(lowered, token) {
			return 0.9
		}
	}
	if strings.Contains(lowered, "blog") || strings.Contains(lowered, "news") {
		return 0.6
	}
	if source == SourceCandidateSeed {
		return 0.2
	}
	return 0.1
}

func sourceWeight(source CandidateSource) float64 {
	switch source {
	case SourceCandidateLLM:
		return 1.3
	case SourceCandidateSeed:
		return 1.0
	default:
		return 0.8
	}
}

// LoadValueMap merges curated-seed value priors and the seed log's
// domain scores into the single value-prior map BuildCandidates consults,
// per spec §4.4 step 4 and the original `_load_value_map` helper.
func LoadValueMap(curatedPath string, store *seeds.Store) (map[string]float64, error) {
	merged := make(map[string]float64)

	if curatedPath != "" {
		curated, err := seeds.LoadCurated(curatedPath)
		if err != nil {
			return nil, err
		}
		for _, c := range curated {
			domain := seeds.DomainFromURL(c.URL)
			if domain == "" {
				continue
			}
			if cur, ok := merged[domain]; !ok || c.ValuePrior > cur {
				merged[domain] = c.ValuePrior
			}
		}
	}

	if store != nil {
		entries, err := store.LoadEntries()
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			domain := seeds.NormalizeDomain(e.Domain)
			if domain == "" {
				continue
			}
			if cur, ok := merged[domain]; !ok || e.Score > cur {
				merged[domain] = e.Score
			}
		}
	}
	return merged, nil
}

// candidateWithScores builds a fully-scored Candidate from a raw URL and
// source, applying the value-map override spec §4.4 step 4 requires.
func candidateWithScores(rawURL string, source CandidateSource, opts BuildOptions) (Candidate, bool) {
	sanitized, ok := sanitizeURL(rawURL)
	if !ok {
		return Candidate{}, false
	}
	domain := seeds.DomainFromURL(sanitized)

	// The value map replaces the heuristic outright when it has an entry
	// for the domain; only explicit overrides are max-merged on top.
	valuePrior, known := opts.ValueMap[domain]
	if !known {
		valuePrior = heuristicValue(sanitized)
	}
	if v, ok := opts.ValueOverrides[domain]; ok && v > valuePrior {
		valuePrior = v
	}

	hostAuthority := 0.0
	if opts.Authority != nil {
		hostAuthority = opts.Authority.ScoreFor(domain)
	}

	return Candidate{
		URL:           sanitized,
		Source:        source,
		Weight:        sourceWeight(source),
		ValuePrior:    valuePrior,
		FreshnessHint: freshnessScore(sanitized, source),
		HostAuthority: hostAuthority,
	}, true
}

// BuildCandidates runs the full frontier-builder pipeline spec §4.4
// describes: tokenize, stream extra/seed/heuristic URLs, score, dedupe via
// a UrlBloom plus an explicit set, sort by priority, and truncate to
// budget. Given identical inputs and value map, output order is stable.
func BuildCandidates(query string, opts BuildOptions) []Candidate {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil
	}

	budget := opts.Budget
	if budget <= 0 {
		budget = DefaultFocusedCrawlBudget
	}

	bloom := dedupe.NewUrlBloom(budget*5, 0.01)
	seen := make(map[string]struct{})
	var candidates []Candidate

	tryAdd := func(rawURL string, source CandidateSource) {
		if len(candidates) >= budget {
			return
		}
		c, ok := candidateWithScores(rawURL, source, opts)
		if !ok {
			return
		}
		if bloom.Contains(c.URL) {
			return
		}
		if _, dup := seen[c.URL]; dup {
			return
		}
		bloom.Add(c.URL)
		seen[c.URL] = struct{}{}
		candidates = append(candidates, c)
	}

	for _, u := range opts.ExtraURLs {
		tryAdd(u, SourceCandidateLLM)
		if len(candidates) >= budget {
			break
		}
	}

	if len(candidates) < budget {
		for _, u := range opts.RegistryURLs {
			tryAdd(u, SourceCandidateRegistry)
			if len(candidates) >= budget {
				break
			}
		}
	}

	if len(candidates) < budget {
		for _, domain := range opts.SeedDomains {
			base := strings.TrimSpace(domain)
			if base == "" {
				continue
			}
			for _, u := range domainCandidates(base, q) {
				tryAdd(u, SourceCandidateSeed)
				if len(candidates) >= budget {
					break
				}
			}
			if len(candidates) >= budget {
				break
			}
		}
	}

	if len(candidates) < budget {
		for _, u := range queryCandidates(q) {
			tryAdd(u, SourceCandidateHeuristic)
			if len(candidates) >= budget {
				break
			}
		}
	}

	if len(candidates) == 0 {
		return nil
	}

	weights := opts.Weights
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority(weights) > candidates[j].Priority(weights)
	})
	if len(candidates) > budget {
		candidates = candidates[:budget]
	}
	return candidates
}
