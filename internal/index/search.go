package index

import (
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// SearchOptions carries the optional filters and pagination spec.md's
// Ranker consumes, expanded with the site/language/time-range filters
// recovered from original_source/search/query.py.
type SearchOptions struct {
	Site        string
	ExcludeSite string
	Language    string
	Since       time.Time
	Until       time.Time
	Verbatim    bool
	Page        int
	PerPage     int
}

func (o SearchOptions) page() int {
	if o.Page < 1 {
		return 1
	}
	return o.Page
}

func (o SearchOptions) perPage() int {
	if o.PerPage < 1 {
		return 10
	}
	return o.PerPage
}

// Hit is one ranked search result: the raw bleve score (BM25-family) plus
// the fields the ranker and UI need, before authority blending.
type Hit struct {
	URL       string
	Title     string
	Snippet   string
	Score     float64
	Site      string
	Lang      string
	FetchedAt time.Time
}

// DefaultMaxQueryLength caps how many characters of a query are parsed;
// anything longer is truncated, not rejected.
const DefaultMaxQueryLength = 512

// SearchResult wraps the page of Hits plus the total match count for
// pagination.
type SearchResult struct {
	Hits  []Hit
	Total uint64
}

// Search runs query against the index, applying opts's filters and
// returning one page of BM25-scored hits.
func (w *Writer) Search(q string, opts SearchOptions) (SearchResult, *IndexError) {
	q = strings.TrimSpace(q)
	if q == "" {
		return SearchResult{}, nil
	}
	if len(q) > DefaultMaxQueryLength {
		q = q[:DefaultMaxQueryLength]
	}

	var textQuery query.Query
	if opts.Verbatim {
		phrase := bleve.NewMatchPhraseQuery(q)
		phrase.SetField("text")
		textQuery = phrase
	} else {
		disjunction := bleve.NewDisjunctionQuery(
			fieldQuery(q, "text", 1.0),
			fieldQuery(q, "title", 2.0),
		)
		textQuery = disjunction
	}

	must := []query.Query{textQuery}
	if opts.Site != "" {
		must = append(must, termQuery(opts.Site, "site"))
	}
	if opts.Language != "" {
		must = append(must, termQuery(opts.Language, "lang"))
	}
	if !opts.Since.IsZero() || !opts.Until.IsZero() {
		dateRange := bleve.NewDateRangeQuery(opts.Since, opts.Until)
		dateRange.SetField("fetched_at")
		must = append(must, dateRange)
	}

	var mustNot []query.Query
	if opts.ExcludeSite != "" {
		mustNot = append(mustNot, termQuery(opts.ExcludeSite, "site"))
	}

	final := query.NewBooleanQuery(must, nil, mustNot)

	req := bleve.NewSearchRequestOptions(final, opts.perPage(), (opts.page()-1)*opts.perPage(), false)
	req.Fields = []string{"url", "title", "site", "lang", "fetched_at"}
	req.Highlight = bleve.NewHighlight()

	result, err := w.bleveIndex.Search(req)
	if err != nil {
		return SearchResult{}, &IndexError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure}
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, match := range result.Hits {
		hits = append(hits, Hit{
			URL:       stringField(match.Fields, "url"),
			Title:     stringField(match.Fields, "title"),
			Snippet:   firstFragment(match.Fragments),
			Score:     match.Score,
			Site:      stringField(match.Fields, "site"),
			Lang:      stringField(match.Fields, "lang"),
			FetchedAt: timeField(match.Fields, "fetched_at"),
		})
	}
	return SearchResult{Hits: hits, Total: result.Total}, nil
}

func fieldQuery(q, field string, boost float64) query.Query {
	m := bleve.NewMatchQuery(q)
	m.SetField(field)
	m.SetBoost(boost)
	return m
}

func termQuery(term, field string) query.Query {
	t := bleve.NewTermQuery(term)
	t.SetField(field)
	return t
}

func stringField(fields map[string]interface{}, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

func firstFragment(fragments map[string][]string) string {
	for _, field := range []string{"text", "title"} {
		if frags, ok := fragments[field]; ok && len(frags) > 0 {
			return frags[0]
		}
	}
	return ""
}

func timeField(fields map[string]interface{}, key string) time.Time {
	raw, ok := fields[key].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
