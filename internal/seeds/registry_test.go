package seeds_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sulaimonao/selfhostedsearch/internal/seeds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRegistry(t *testing.T, yamlBody string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o644))
	return path
}

func TestLoadRegistry_RejectsInvalidEntrypoint(t *testing.T) {
	path := writeRegistry(t, `
sources:
  - id: bad
    strategy: html_extract_links
    entrypoints: ["not-a-url"]
    trust: medium
`)
	_, err := seeds.LoadRegistry(path)
	assert.ErrorIs(t, err, seeds.ErrInvalidEntrypoint)
}

func TestLoadRegistry_RejectsDuplicateIDs(t *testing.T) {
	path := writeRegistry(t, `
sources:
  - id: dup
    strategy: html_extract_links
    entrypoints: ["https://example.com"]
    trust: medium
  - id: dup
    strategy: html_extract_links
    entrypoints: ["https://example.org"]
    trust: low
`)
	_, err := seeds.LoadRegistry(path)
	assert.ErrorIs(t, err, seeds.ErrDuplicateID)
}

func TestLoadRegistry_Valid(t *testing.T) {
	path := writeRegistry(t, `
sources:
  - id: docs-site
    kind: site
    strategy: html_extract_links
    entrypoints: ["https://example.com/docs"]
    trust: high
    boost: 1.1
`)
	reg, err := seeds.LoadRegistry(path)
	require.NoError(t, err)
	require.Len(t, reg.Sources, 1)
	assert.Equal(t, seeds.TrustHigh, reg.Sources[0].Trust)
}

func TestTrust_Multiplier(t *testing.T) {
	assert.Equal(t, 0.85, seeds.TrustLow.Multiplier())
	assert.Equal(t, 1.0, seeds.TrustMedium.Multiplier())
	assert.Equal(t, 1.2, seeds.TrustHigh.Multiplier())
	assert.Equal(t, 2.5, seeds.Trust("2.5").Multiplier())
}

func TestGather_DedupesByURLKeepingMaxScore(t *testing.T) {
	reg := &seeds.Registry{Sources: []seeds.Source{
		{ID: "a", Strategy: "stub-a", Trust: seeds.TrustHigh},
		{ID: "b", Strategy: "stub-b", Trust: seeds.TrustLow},
	}}
	strategies := seeds.StrategyRegistry{
		"stub-a": func(seeds.Source, string) ([]seeds.StrategyCandidate, error) {
			return []seeds.StrategyCandidate{{URL: "https://shared.com", Score: 1.0}}, nil
		},
		"stub-b": func(seeds.Source, string) ([]seeds.StrategyCandidate, error) {
			return []seeds.StrategyCandidate{{URL: "https://shared.com", Score: 10.0}, {URL: "https://only-b.com", Score: 0.5}}, nil
		},
	}

	out := seeds.Gather(reg, strategies, "query", 10)
	require.Len(t, out, 2)
	// stub-a: 1.0*1.2=1.2 ; stub-b: 10.0*0.85=8.5 -> shared.com keeps 8.5
	assert.Equal(t, "https://shared.com", out[0].URL)
	assert.InDelta(t, 8.5, out[0].Score, 0.001)
}

func TestGather_UnknownStrategySkipped(t *testing.T) {
	reg := &seeds.Registry{Sources: []seeds.Source{{ID: "a", Strategy: "nope"}}}
	out := seeds.Gather(reg, seeds.StrategyRegistry{}, "q", 10)
	assert.Empty(t, out)
}

func TestHTMLExtractLinksStrategy_Live(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><a href="/docs/getting-started">Docs Guide</a><a href="/about">About</a></body></html>`))
	}))
	defer srv.Close()

	deps := seeds.StrategyDeps{HTTPClient: srv.Client()}
	strategies := seeds.DefaultStrategies(deps)
	fn := strategies[seeds.StrategyHTMLExtractLinks]

	out, err := fn(seeds.Source{Entrypoints: []string{srv.URL}}, "docs guide")
	require.NoError(t, err)
	require.NotEmpty(t, out)
}

func TestSitemapIndexStrategy_Live(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?><urlset><url><loc>https://example.com/a</loc></url><url><loc>https://example.com/b</loc></url></urlset>`))
	}))
	defer srv.Close()

	deps := seeds.StrategyDeps{HTTPClient: srv.Client()}
	strategies := seeds.DefaultStrategies(deps)
	fn := strategies[seeds.StrategySitemapIndex]

	out, err := fn(seeds.Source{Entrypoints: []string{srv.URL}}, "")
	require.NoError(t, err)
	require.Len(t, out, 2)
}
