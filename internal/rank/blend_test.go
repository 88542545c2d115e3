package rank_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sulaimonao/selfhostedsearch/internal/index"
	"github.com/sulaimonao/selfhostedsearch/internal/metadata"
	"github.com/sulaimonao/selfhostedsearch/internal/rank"
)

// mapScorer serves fixed authority scores keyed by host.
type mapScorer map[string]float64

func (m mapScorer) ScoreFor(urlOrHost string) float64 {
	for host, score := range m {
		if urlOrHost == host || strings.Contains(urlOrHost, "://"+host) {
			return score
		}
	}
	return 0
}

func TestBlendOrdersByBlendedScore(t *testing.T) {
	hits := []index.Hit{
		{URL: "https://low.com/page", Score: 1.1},
		{URL: "https://high.com/page", Score: 1.0},
	}
	scorer := mapScorer{"high.com": 5.0, "low.com": 0.1}

	blended := rank.Blend(hits, scorer, 0.15)

	require.Len(t, blended, 2)
	assert.Equal(t, "https://high.com/page", blended[0].URL)
	assert.InDelta(t, 1.75, blended[0].BlendedScore, 1e-9)
	assert.Equal(t, "https://low.com/page", blended[1].URL)
	assert.InDelta(t, 1.115, blended[1].BlendedScore, 1e-9)

	for i := 1; i < len(blended); i++ {
		assert.GreaterOrEqual(t, blended[i-1].BlendedScore, blended[i].BlendedScore)
	}
}

func TestBlendWithoutScorer(t *testing.T) {
	hits := []index.Hit{
		{URL: "https://a.com", Score: 2.0},
		{URL: "https://b.com", Score: 3.0},
	}

	blended := rank.Blend(hits, nil, rank.DefaultAuthAlpha)

	require.Len(t, blended, 2)
	assert.Equal(t, "https://b.com", blended[0].URL)
	assert.InDelta(t, 3.0, blended[0].BlendedScore, 1e-9)
}

func blendedFixture() []rank.BlendedHit {
	return []rank.BlendedHit{
		{URL: "https://a.com/1", Title: "One", BlendedScore: 3.0},
		{URL: "https://b.com/2", Title: "Two", BlendedScore: 2.0},
		{URL: "https://c.com/3", Title: "Three", BlendedScore: 1.0},
	}
}

func TestRerankReordersPerLLMResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, false, req["stream"])

		order, _ := json.Marshal([]string{"https://c.com/3", "https://a.com/1"})
		json.NewEncoder(w).Encode(map[string]string{"response": string(order)})
	}))
	defer server.Close()

	recorder := metadata.NewRecorder("rank-test")
	reranker := rank.NewReranker(server.URL, "test-model", 3, 5*time.Second, &recorder)

	got := reranker.Rerank(context.Background(), "docs", blendedFixture())

	require.Len(t, got, 3)
	assert.Equal(t, "https://c.com/3", got[0].URL)
	assert.Equal(t, "https://a.com/1", got[1].URL)
	// URLs the LLM didn't mention keep their relative order at the tail.
	assert.Equal(t, "https://b.com/2", got[2].URL)
}

func TestRerankFallsBackWhenEndpointUnreachable(t *testing.T) {
	recorder := metadata.NewRecorder("rank-test")
	reranker := rank.NewReranker("http://127.0.0.1:1", "test-model", 3, 500*time.Millisecond, &recorder)

	input := blendedFixture()
	got := reranker.Rerank(context.Background(), "docs", input)

	assert.Equal(t, input, got)
}

func TestRerankFallsBackOnNonJSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"response": "sure! here are the results ranked:"})
	}))
	defer server.Close()

	recorder := metadata.NewRecorder("rank-test")
	reranker := rank.NewReranker(server.URL, "test-model", 3, 5*time.Second, &recorder)

	input := blendedFixture()
	got := reranker.Rerank(context.Background(), "docs", input)

	assert.Equal(t, input, got)
}

func TestRerankOnlyTouchesTopN(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		order, _ := json.Marshal([]string{"https://b.com/2", "https://a.com/1"})
		json.NewEncoder(w).Encode(map[string]string{"response": string(order)})
	}))
	defer server.Close()

	recorder := metadata.NewRecorder("rank-test")
	reranker := rank.NewReranker(server.URL, "test-model", 2, 5*time.Second, &recorder)

	got := reranker.Rerank(context.Background(), "docs", blendedFixture())

	require.Len(t, got, 3)
	assert.Equal(t, "https://b.com/2", got[0].URL)
	assert.Equal(t, "https://a.com/1", got[1].URL)
	assert.Equal(t, "https://c.com/3", got[2].URL)
}
