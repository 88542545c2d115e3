package authority_test

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/sulaimonao/selfhostedsearch/internal/authority"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimator_ScoreForUnknownHostIsZero(t *testing.T) {
	e := authority.New(filepath.Join(t.TempDir(), "authority.json"))
	assert.Equal(t, 0.0, e.ScoreFor("https://nowhere.example"))
}

func TestEstimator_UpdateFromDocsCountsDistinctLinkingHosts(t *testing.T) {
	e := authority.New(filepath.Join(t.TempDir(), "authority.json"))
	e.UpdateFromDocs([]authority.DocOutlinks{
		{URL: "https://a.com/page1", Outlinks: []string{"https://high.com/x", "https://high.com/y", "https://low.com/z"}},
		{URL: "https://b.com/page1", Outlinks: []string{"https://high.com/x"}},
	})

	assert.Equal(t, 2, e.Count("high.com"))
	assert.Equal(t, 1, e.Count("low.com"))
	assert.InDelta(t, math.Log1p(2), e.ScoreFor("www.high.com"), 0.001)
}

func TestEstimator_UpdateFromDocsIgnoresSelfLinks(t *testing.T) {
	e := authority.New(filepath.Join(t.TempDir(), "authority.json"))
	e.UpdateFromDocs([]authority.DocOutlinks{
		{URL: "https://a.com/page1", Outlinks: []string{"https://a.com/other"}},
	})
	assert.Equal(t, 0, e.Count("a.com"))
}

func TestEstimator_SaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "authority.json")
	e := authority.New(path)
	e.UpdateFromDocs([]authority.DocOutlinks{
		{URL: "https://a.com", Outlinks: []string{"https://high.com/x", "https://low.com/y"}},
	})
	require.NoError(t, e.Save())

	loaded, err := authority.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Count("high.com"))
	assert.Equal(t, 1, loaded.Count("low.com"))
}

func TestLoad_MissingFileYieldsEmptyEstimator(t *testing.T) {
	e, err := authority.Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, e.ScoreFor("anywhere.com"))
}
