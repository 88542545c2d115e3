package seeds

import (
	"fmt"
	"net/url"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Strategy names a registry entry's discovery method. The gather step
// dispatches each entry to the matching StrategyFunc.
type Strategy string

const (
	StrategyRSSHub           Strategy = "rss_hub"
	StrategyHTMLExtractLinks Strategy = "html_extract_links"
	StrategyGitHubTopics     Strategy = "github_topics"
	StrategyCuratedList      Strategy = "curated_list"
	StrategySitemapIndex     Strategy = "sitemap_index"
)

// Trust is a registry entry's qualitative or numeric confidence tier. It is
// resolved to a multiplier by Multiplier.
type Trust string

const (
	TrustLow    Trust = "low"
	TrustMedium Trust = "medium"
	TrustHigh   Trust = "high"
)

// Multiplier resolves a Trust value (qualitative or a bare numeric string)
// to the factor Gather applies to every StrategyCandidate score.
func (t Trust) Multiplier() float64 {
	switch t {
	case TrustLow:
		return 0.85
	case TrustMedium, "":
		return 1.0
	case TrustHigh:
		return 1.2
	default:
		var numeric float64
		if _, err := fmt.Sscanf(string(t), "%f", &numeric); err == nil && numeric > 0 {
			return numeric
		}
		return 1.0
	}
}

// Source is one registry.yaml source: a named strategy over a set of
// entrypoint URLs.
type Source struct {
	ID          string            `yaml:"id"`
	Kind        string            `yaml:"kind"`
	Strategy    Strategy          `yaml:"strategy"`
	Entrypoints []string          `yaml:"entrypoints"`
	Trust       Trust             `yaml:"trust"`
	Boost       float64           `yaml:"boost"`
	Extras      map[string]string `yaml:"extras"`
}

// Registry is the loaded, validated set of seed-discovery sources.
type Registry struct {
	Sources []Source `yaml:"sources"`
}

// LoadRegistry parses and validates path. Invalid entrypoints and duplicate
// ids are load-time fatal per spec §4.3; unknown strategies are not — they
// are caught later at Gather time and skipped with a log line.
func LoadRegistry(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg Registry
	if err := yaml.Unmarshal(raw, &reg); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(reg.Sources))
	for _, entry := range reg.Sources {
		if _, dup := seen[entry.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, entry.ID)
		}
		seen[entry.ID] = struct{}{}

		for _, ep := range entry.Entrypoints {
			u, err := url.Parse(ep)
			if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
				return nil, fmt.Errorf("%w: entry %s entrypoint %q", ErrInvalidEntrypoint, entry.ID, ep)
			}
		}
	}
	return &reg, nil
}

// StrategyCandidate is a single URL discovered by a strategy, before the
// trust multiplier and boost are applied.
type StrategyCandidate struct {
	URL      string
	Score    float64
	Title    string
	Summary  string
	Metadata map[string]string
}

// StrategyFunc discovers candidates for one registry entry given the
// triggering query.
type StrategyFunc func(entry Source, query string) ([]StrategyCandidate, error)

// StrategyRegistry maps a Strategy name to its handler. Callers may extend
// or override entries before calling Gather.
type StrategyRegistry map[Strategy]StrategyFunc

// DefaultStrategies wires the five strategies spec §4.3 names.
func DefaultStrategies(deps StrategyDeps) StrategyRegistry {
	return StrategyRegistry{
		StrategyRSSHub:           rssHubStrategy(deps),
		StrategyHTMLExtractLinks: htmlExtractLinksStrategy(deps),
		StrategyGitHubTopics:     githubTopicsStrategy(deps),
		StrategyCuratedList:      curatedListStrategy(deps),
		StrategySitemapIndex:     sitemapIndexStrategy(deps),
	}
}

// Gather runs query against the registry, applying each matched entry's
// trust multiplier and optional boost, deduplicating by URL (keeping the
// max score), and returning the top n candidates.
func Gather(reg *Registry, strategies StrategyRegistry, query string, n int) []StrategyCandidate {
	best := make(map[string]StrategyCandidate)

	for _, entry := range reg.Sources {
		fn, ok := strategies[entry.Strategy]
		if !ok {
			continue // unknown strategy: logged by the caller, skipped here
		}
		found, err := fn(entry, query)
		if err != nil {
			continue
		}
		multiplier := entry.Trust.Multiplier()
		boost := entry.Boost
		if boost == 0 {
			boost = 1.0
		}
		for _, c := range found {
			c.Score = c.Score * multiplier * boost
			if cur, exists := best[c.URL]; !exists || c.Score > cur.Score {
				best[c.URL] = c
			}
		}
	}

	out := make([]StrategyCandidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].URL < out[j].URL
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
