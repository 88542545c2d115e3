package index

import (
	"time"

	"github.com/sulaimonao/selfhostedsearch/internal/seeds"
	"github.com/sulaimonao/selfhostedsearch/pkg/hashutil"
)

// Document is the indexable unit internal/normalize produces and
// internal/index consumes: a fetched, cleaned page plus the metadata the
// ranker and search filters need.
type Document struct {
	url       string
	title     string
	text      string
	lang      string
	outlinks  []string
	fetchedAt time.Time
}

// NewDocument builds a Document, normalizing fetchedAt to UTC.
func NewDocument(url, title, text, lang string, outlinks []string, fetchedAt time.Time) Document {
	return Document{
		url:       url,
		title:     title,
		text:      text,
		lang:      lang,
		outlinks:  append([]string(nil), outlinks...),
		fetchedAt: fetchedAt.UTC(),
	}
}

func (d Document) URL() string           { return d.url }
func (d Document) Title() string         { return d.title }
func (d Document) Text() string          { return d.text }
func (d Document) Lang() string          { return d.lang }
func (d Document) Outlinks() []string    { return append([]string(nil), d.outlinks...) }
func (d Document) FetchedAt() time.Time  { return d.fetchedAt }
func (d Document) Site() string          { return seeds.DomainFromURL(d.url) }

// ContentHash is the stable fingerprint used by the ledger to decide
// whether a re-fetched page actually changed.
func (d Document) ContentHash() string {
	hash, err := hashutil.HashBytes([]byte(d.title+"\n"+d.text), hashutil.HashAlgoBLAKE3)
	if err != nil {
		// HashBytes only errors on an unsupported algorithm constant;
		// HashAlgoBLAKE3 is always supported, so this is unreachable.
		return ""
	}
	return hash
}

// DocID derives a stable document identifier from the URL alone, so
// re-indexing the same URL always updates the same bleve document.
func (d Document) DocID() string {
	id, err := hashutil.HashBytes([]byte(d.url), hashutil.HashAlgoBLAKE3)
	if err != nil {
		return d.url
	}
	return id
}

// bleveFields is the plain map[string]interface{} bleve indexes; field
// names here must match the mapping built in analyzer.go.
func (d Document) bleveFields() map[string]interface{} {
	return map[string]interface{}{
		"url":        d.url,
		"title":      d.title,
		"text":       d.text,
		"lang":       d.lang,
		"site":       d.Site(),
		"fetched_at": d.fetchedAt,
	}
}
