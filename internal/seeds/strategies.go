package seeds

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// StrategyDeps carries the shared HTTP client and curated-seed path the
// default strategies are built from.
type StrategyDeps struct {
	HTTPClient  *http.Client
	CuratedPath string
}

func httpClientOrDefault(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// rssHubStrategy treats each entrypoint as a feed URL and yields one
// candidate per item link, scored by recency rank within the feed.
func rssHubStrategy(deps StrategyDeps) StrategyFunc {
	parser := gofeed.NewParser()
	parser.Client = httpClientOrDefault(deps.HTTPClient)
	return func(entry Source, query string) ([]StrategyCandidate, error) {
		var out []StrategyCandidate
		for _, feedURL := range entry.Entrypoints {
			feed, err := parser.ParseURL(feedURL)
			if err != nil {
				continue
			}
			for i, item := range feed.Items {
				if item.Link == "" {
					continue
				}
				out = append(out, StrategyCandidate{
					URL:     item.Link,
					Score:   1.0 / float64(i+1),
					Title:   item.Title,
					Summary: item.Description,
					Metadata: map[string]string{
						"feed": feedURL,
					},
				})
			}
		}
		return out, nil
	}
}

// htmlExtractLinksStrategy fetches each entrypoint and yields one candidate
// per outbound anchor whose text or href plausibly matches the query.
func htmlExtractLinksStrategy(deps StrategyDeps) StrategyFunc {
	client := httpClientOrDefault(deps.HTTPClient)
	return func(entry Source, query string) ([]StrategyCandidate, error) {
		var out []StrategyCandidate
		terms := strings.Fields(strings.ToLower(query))
		for _, pageURL := range entry.Entrypoints {
			doc, err := fetchDocument(client, pageURL)
			if err != nil {
				continue
			}
			base, err := url.Parse(pageURL)
			if err != nil {
				continue
			}
			doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
				href, _ := sel.Attr("href")
				abs, err := base.Parse(href)
				if err != nil || !abs.IsAbs() || (abs.Scheme != "http" && abs.Scheme != "https") {
					return
				}
				text := strings.ToLower(sel.Text())
				score := 0.3
				for _, term := range terms {
					if term != "" && strings.Contains(text, term) {
						score += 0.2
					}
				}
				out = append(out, StrategyCandidate{URL: abs.String(), Score: score, Title: strings.TrimSpace(sel.Text())})
			})
		}
		return out, nil
	}
}

// githubTopicsStrategy treats each entrypoint as a GitHub topic/search page
// and extracts repository links, the same way htmlExtractLinksStrategy
// does for generic pages but restricted to repo-shaped hrefs.
func githubTopicsStrategy(deps StrategyDeps) StrategyFunc {
	client := httpClientOrDefault(deps.HTTPClient)
	return func(entry Source, query string) ([]StrategyCandidate, error) {
		var out []StrategyCandidate
		for _, pageURL := range entry.Entrypoints {
			doc, err := fetchDocument(client, pageURL)
			if err != nil {
				continue
			}
			doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
				href, _ := sel.Attr("href")
				if !isGitHubRepoPath(href) {
					return
				}
				out = append(out, StrategyCandidate{
					URL:   "https://github.com" + href,
					Score: 0.6,
					Title: strings.TrimSpace(sel.Text()),
				})
			})
		}
		return out, nil
	}
}

// isGitHubRepoPath reports whether href looks like a bare "/owner/repo"
// relative GitHub link, as opposed to a topic/search/account navigation
// link.
func isGitHubRepoPath(href string) bool {
	if !strings.HasPrefix(href, "/") || strings.Count(href, "/") != 2 {
		return false
	}
	segments := strings.Split(strings.TrimPrefix(href, "/"), "/")
	if len(segments) != 2 {
		return false
	}
	reserved := map[string]bool{"topics": true, "search": true, "about": true, "features": true, "sponsors": true}
	return !reserved[segments[0]] && segments[0] != "" && segments[1] != ""
}

// curatedListStrategy surfaces the curated seeds file as registry
// candidates, letting an operator mix curated JSONL seeds into the same
// trust/boost pipeline as the other strategies.
func curatedListStrategy(deps StrategyDeps) StrategyFunc {
	return func(entry Source, query string) ([]StrategyCandidate, error) {
		if deps.CuratedPath == "" {
			return nil, nil
		}
		curated, err := LoadCurated(deps.CuratedPath)
		if err != nil {
			return nil, err
		}
		out := make([]StrategyCandidate, 0, len(curated))
		for _, c := range curated {
			out = append(out, StrategyCandidate{URL: c.URL, Score: c.ValuePrior, Title: c.Title})
		}
		return out, nil
	}
}

// sitemapIndex and sitemapURLSet decode the two XML shapes a sitemap
// entrypoint may be: an index of child sitemaps, or a flat list of <loc>
// page URLs.
type sitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

type sitemapURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// sitemapIndexStrategy fetches each entrypoint as sitemap XML, recursing
// one level into child sitemaps, and yields one candidate per <loc>.
func sitemapIndexStrategy(deps StrategyDeps) StrategyFunc {
	client := httpClientOrDefault(deps.HTTPClient)
	return func(entry Source, query string) ([]StrategyCandidate, error) {
		var out []StrategyCandidate
		for _, sitemapURL := range entry.Entrypoints {
			locs, children, err := fetchSitemap(client, sitemapURL)
			if err != nil {
				continue
			}
			for _, loc := range locs {
				out = append(out, StrategyCandidate{URL: loc, Score: 1.0})
			}
			for _, child := range children {
				childLocs, _, err := fetchSitemap(client, child)
				if err != nil {
					continue
				}
				for _, loc := range childLocs {
					out = append(out, StrategyCandidate{URL: loc, Score: 0.9})
				}
			}
		}
		return out, nil
	}
}

func fetchSitemap(client *http.Client, sitemapURL string) (locs []string, children []string, err error) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("sitemap fetch %s: status %d", sitemapURL, resp.StatusCode)
	}

	var idx sitemapIndex
	var urlset sitemapURLSet
	decoder := xml.NewDecoder(resp.Body)
	if err := decoder.Decode(&idx); err == nil && len(idx.Sitemaps) > 0 {
		for _, s := range idx.Sitemaps {
			children = append(children, s.Loc)
		}
		return nil, children, nil
	}

	req2, err := http.NewRequestWithContext(context.Background(), http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, nil, err
	}
	resp2, err := client.Do(req2)
	if err != nil {
		return nil, nil, err
	}
	defer resp2.Body.Close()
	if err := xml.NewDecoder(resp2.Body).Decode(&urlset); err != nil {
		return nil, nil, err
	}
	for _, u := range urlset.URLs {
		locs = append(locs, u.Loc)
	}
	return locs, nil, nil
}

func fetchDocument(client *http.Client, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}
