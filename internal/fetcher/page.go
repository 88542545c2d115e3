package fetcher

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sulaimonao/selfhostedsearch/internal/dedupe"
)

// maxOutlinksPerPage caps how many anchors one page may contribute to the
// outlink graph.
const maxOutlinksPerPage = 100

// PageResult is one successfully fetched page from a focused crawl: the
// raw HTML plus the fingerprint and outlinks downstream dedup, indexing,
// and authority estimation consume.
type PageResult struct {
	Query       string
	URL         string
	Status      int
	Title       string
	HTML        string
	FetchedAt   time.Time
	Fingerprint dedupe.Fingerprint
	Outlinks    []string
	Rendered    bool
}

// extractTitleAndOutlinks pulls the <title> text and up to
// maxOutlinksPerPage absolute http(s) anchor targets out of html. Relative
// hrefs are resolved against base; fragments are dropped.
func extractTitleAndOutlinks(html string, base *url.URL) (string, []string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", nil
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	seen := make(map[string]struct{})
	var outlinks []string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		resolved := resolveOutlink(href, base)
		if resolved == "" {
			return true
		}
		if _, dup := seen[resolved]; dup {
			return true
		}
		seen[resolved] = struct{}{}
		outlinks = append(outlinks, resolved)
		return len(outlinks) < maxOutlinksPerPage
	})

	return title, outlinks
}

func resolveOutlink(href string, base *url.URL) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	var abs *url.URL
	if base != nil {
		abs = base.ResolveReference(ref)
	} else {
		abs = ref
	}
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	if abs.Host == "" {
		return ""
	}
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String()
}

// appShellMarkers are the SPA fingerprints that, combined with a sparse
// static DOM, indicate the page needs a headless render to yield content.
var appShellMarkers = []string{
	"data-reactroot",
	"#/",
	"window.__INITIAL_STATE__",
	"<app-root",
	"ng-app",
	`id="app"`,
	`id="root"`,
	"__NEXT_DATA__",
}

// renderTextThreshold is the visible-text length below which a page with
// app-shell markers is considered an unrendered shell.
const renderTextThreshold = 1500

// needsRender reports whether the static HTML looks like an unrendered
// app shell: visible text under the threshold plus at least one SPA marker.
func needsRender(html string) bool {
	if len(visibleText(html)) >= renderTextThreshold {
		return false
	}
	for _, marker := range appShellMarkers {
		if strings.Contains(html, marker) {
			return true
		}
	}
	return false
}

// visibleText strips script/style/noscript and tags, returning the text a
// reader would see.
func visibleText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style, noscript").Remove()
	return strings.TrimSpace(doc.Text())
}
