package frontier_test

import (
	"testing"

	"github.com/sulaimonao/selfhostedsearch/internal/frontier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuthority map[string]float64

func (s stubAuthority) ScoreFor(host string) float64 { return s[host] }

func TestBuildCandidates_PrioritizesHighValueHighAuthorityDomain(t *testing.T) {
	opts := frontier.BuildOptions{
		SeedDomains: []string{"high.com", "low.com"},
		ExtraURLs:   []string{"https://misc.dev/docs"},
		Budget:      5,
		ValueOverrides: map[string]float64{
			"high.com": 2.0,
			"low.com":  0.1,
		},
		Authority: stubAuthority{"high.com": 5.0, "low.com": 0.1},
	}

	candidates := frontier.BuildCandidates("docs", opts)
	require.NotEmpty(t, candidates)

	for i := 1; i < len(candidates); i++ {
		assert.GreaterOrEqual(t, candidates[i-1].Priority(frontier.PriorityWeights{}), candidates[i].Priority(frontier.PriorityWeights{}))
	}

	top := candidates[0]
	assert.Contains(t, top.URL, "high.com")
}

func TestBuildCandidates_BlankQueryYieldsNil(t *testing.T) {
	assert.Nil(t, frontier.BuildCandidates("   ", frontier.BuildOptions{}))
}

func TestBuildCandidates_RespectsBudget(t *testing.T) {
	opts := frontier.BuildOptions{
		SeedDomains: []string{"a.com", "b.com", "c.com"},
		Budget:      3,
	}
	candidates := frontier.BuildCandidates("docs", opts)
	assert.LessOrEqual(t, len(candidates), 3)
}

func TestBuildCandidates_DedupesAcrossStreams(t *testing.T) {
	opts := frontier.BuildOptions{
		ExtraURLs: []string{"https://high.com/docs", "https://high.com/docs/"},
		Budget:    10,
	}
	candidates := frontier.BuildCandidates("docs", opts)
	seen := make(map[string]bool)
	for _, c := range candidates {
		assert.False(t, seen[c.URL], "duplicate candidate URL: %s", c.URL)
		seen[c.URL] = true
	}
}

func TestKeywords_FallsBackWhenAllStopwords(t *testing.T) {
	assert.Equal(t, []string{"the", "of"}, frontier.Keywords("the of"))
}

func TestKeywords_DropsStopwords(t *testing.T) {
	assert.Equal(t, []string{"docs", "search"}, frontier.Keywords("the docs for search"))
}

func TestCandidate_PriorityUsesDefaultWeights(t *testing.T) {
	c := frontier.Candidate{Weight: 1.0, ValuePrior: 1.0, FreshnessHint: 1.0, HostAuthority: 1.0}
	assert.InDelta(t, 2.0, c.Priority(frontier.PriorityWeights{}), 0.0001)
}

func TestBuildCandidates_ValueMapReplacesHeuristic(t *testing.T) {
	opts := frontier.BuildOptions{
		ExtraURLs: []string{"https://downranked.com/docs"},
		Budget:    5,
		// A value-map entry wins outright, even when it is lower than
		// what the path heuristic would have scored.
		ValueMap: map[string]float64{"downranked.com": 0.05},
	}
	candidates := frontier.BuildCandidates("docs", opts)
	require.NotEmpty(t, candidates)
	assert.InDelta(t, 0.05, candidates[0].ValuePrior, 1e-9)
}
