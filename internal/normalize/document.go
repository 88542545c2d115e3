package normalize

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/abadojack/whatlanggo"

	"github.com/sulaimonao/selfhostedsearch/internal/metadata"
)

/*
Document normalization

This path turns a raw crawled page into the canonical searchable document the index writer and the
authority estimator consume: visible title/heading/body text, a detected
language, and a content hash that is stable across re-fetches of
unchanged pages.
*/

// LangUnknown is the language tag used when detection has nothing to work
// with or no confident match.
const LangUnknown = "unknown"

// NormalizedDoc is the canonical document form of one crawled page.
type NormalizedDoc struct {
	URL         string
	Lang        string
	Title       string
	H1H2        string
	Body        string
	ContentHash string
	FetchedAt   time.Time
	Outlinks    []string
}

// RawPage is the normalizer's input: one fetched page plus its crawl
// metadata.
type RawPage struct {
	URL       string
	HTML      string
	FetchedAt time.Time
	Outlinks  []string
}

// DocumentConstraint normalizes raw HTML pages into NormalizedDocs.
type DocumentConstraint struct {
	metadataSink metadata.MetadataSink
}

func NewDocumentConstraint(metadataSink metadata.MetadataSink) DocumentConstraint {
	return DocumentConstraint{metadataSink: metadataSink}
}

// NormalizeDocument parses page's HTML and extracts the canonical fields.
// Pages with no visible body text are dropped with ErrCauseEmptyDocument;
// unparseable HTML is a ParseFailure the caller counts and moves past.
// Normalizing the same page twice yields an identical ContentHash.
func (d *DocumentConstraint) NormalizeDocument(page RawPage) (NormalizedDoc, *NormalizationError) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		normErr := &NormalizationError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseHTMLParseFailure,
		}
		d.recordError(page.URL, normErr)
		return NormalizedDoc{}, normErr
	}

	doc.Find("script, style, noscript").Remove()

	title := collapseWhitespace(doc.Find("title").First().Text())

	var headings []string
	doc.Find("h1, h2").Each(func(_ int, sel *goquery.Selection) {
		if text := collapseWhitespace(sel.Text()); text != "" {
			headings = append(headings, text)
		}
	})
	h1h2 := strings.Join(headings, " ")

	body := collapseWhitespace(doc.Find("body").Text())
	if body == "" {
		body = collapseWhitespace(doc.Text())
	}
	if body == "" {
		normErr := &NormalizationError{
			Message:   "no visible text: " + page.URL,
			Retryable: false,
			Cause:     ErrCauseEmptyDocument,
		}
		return NormalizedDoc{}, normErr
	}

	return NormalizedDoc{
		URL:         canonicalDocURL(page.URL),
		Lang:        detectLang(body),
		Title:       title,
		H1H2:        h1h2,
		Body:        body,
		ContentHash: contentHash(title, h1h2, body),
		FetchedAt:   page.FetchedAt.UTC(),
		Outlinks:    filterAbsoluteOutlinks(page.Outlinks),
	}, nil
}

func (d *DocumentConstraint) recordError(pageURL string, normErr *NormalizationError) {
	if d.metadataSink == nil {
		return
	}
	d.metadataSink.RecordError(
		time.Now(),
		"normalize",
		"DocumentConstraint.NormalizeDocument",
		mapNormalizationErrorToMetadataCause(*normErr),
		normErr.Error(),
		[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, pageURL)},
	)
}

// contentHash is MD5 over title, headings, and body joined by newlines,
// each already whitespace-collapsed.
func contentHash(title, h1h2, body string) string {
	sum := md5.Sum([]byte(title + "\n" + h1h2 + "\n" + body))
	return hex.EncodeToString(sum[:])
}

// detectLang tags the document language, falling back to LangUnknown when
// detection is unreliable.
func detectLang(text string) string {
	sample := text
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	info := whatlanggo.Detect(sample)
	if !info.IsReliable() {
		return LangUnknown
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return LangUnknown
	}
	return code
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// canonicalDocURL lowercases the host and strips the fragment, preserving
// path and query.
func canonicalDocURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(raw)
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

func filterAbsoluteOutlinks(outlinks []string) []string {
	var filtered []string
	for _, link := range outlinks {
		u, err := url.Parse(link)
		if err != nil || u.Host == "" {
			continue
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			continue
		}
		filtered = append(filtered, link)
	}
	return filtered
}
