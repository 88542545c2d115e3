package rank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sulaimonao/selfhostedsearch/internal/metadata"
)

// snippetLimit caps how much of a snippet enters the rerank prompt.
const snippetLimit = 280

// warnInterval throttles LLM-unavailable warnings to one per minute so a
// dead endpoint doesn't flood the event stream during a busy crawl.
const warnInterval = time.Minute

// ollamaRequest is the local-LLM generate call: a single prompt, no
// streaming.
type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

// Reranker asks a local LLM to reorder the top N blended hits. Every
// failure - network, timeout, non-JSON response - leaves the input order
// untouched.
type Reranker struct {
	endpoint     string
	model        string
	topN         int
	timeout      time.Duration
	httpClient   *http.Client
	metadataSink metadata.MetadataSink

	warnMu   sync.Mutex
	lastWarn time.Time
}

// NewReranker builds a Reranker against endpoint (the full generate URL)
// using model. A zero timeout falls back to 12s.
func NewReranker(endpoint, model string, topN int, timeout time.Duration, metadataSink metadata.MetadataSink) *Reranker {
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	if topN < 1 {
		topN = 1
	}
	return &Reranker{
		endpoint:     strings.TrimRight(endpoint, "/"),
		model:        model,
		topN:         topN,
		timeout:      timeout,
		httpClient:   &http.Client{Timeout: timeout},
		metadataSink: metadataSink,
	}
}

// Rerank reorders the top N of hits per the LLM's returned URL order,
// keeping unknown URLs in their relative order at the tail of the window
// and everything beyond the window untouched. On any failure the input is
// returned unchanged.
func (r *Reranker) Rerank(ctx context.Context, query string, hits []BlendedHit) []BlendedHit {
	if len(hits) == 0 || r.endpoint == "" {
		return hits
	}

	window := r.topN
	if window > len(hits) {
		window = len(hits)
	}
	docs := hits[:window]

	orderedURLs, ok := r.requestOrder(ctx, query, docs)
	if !ok {
		return hits
	}

	lookup := make(map[string]BlendedHit, len(docs))
	for _, doc := range docs {
		lookup[doc.URL] = doc
	}

	used := make(map[string]struct{}, len(docs))
	reordered := make([]BlendedHit, 0, len(hits))
	for _, u := range orderedURLs {
		doc, known := lookup[u]
		if !known {
			continue
		}
		if _, dup := used[u]; dup {
			continue
		}
		used[u] = struct{}{}
		reordered = append(reordered, doc)
	}
	for _, doc := range docs {
		if _, taken := used[doc.URL]; !taken {
			used[doc.URL] = struct{}{}
			reordered = append(reordered, doc)
		}
	}
	reordered = append(reordered, hits[window:]...)
	return reordered
}

// requestOrder runs the LLM call and parses its response as a JSON array
// of URL strings.
func (r *Reranker) requestOrder(ctx context.Context, query string, docs []BlendedHit) ([]string, bool) {
	payload, err := json.Marshal(ollamaRequest{
		Model:  r.model,
		Prompt: rerankPrompt(query, docs),
		Stream: false,
	})
	if err != nil {
		return nil, false
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		r.warnUnavailable(err)
		return nil, false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.warnUnavailable(err)
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.warnUnavailable(fmt.Errorf("llm endpoint returned %d", resp.StatusCode))
		return nil, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, false
	}

	var envelope ollamaResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, false
	}
	text := strings.TrimSpace(envelope.Response)
	if text == "" {
		return nil, false
	}

	var urls []string
	if err := json.Unmarshal([]byte(text), &urls); err != nil {
		return nil, false
	}
	return urls, true
}

// warnUnavailable emits at most one LLM-unavailable event per minute.
func (r *Reranker) warnUnavailable(err error) {
	if r.metadataSink == nil {
		return
	}
	r.warnMu.Lock()
	if time.Since(r.lastWarn) < warnInterval {
		r.warnMu.Unlock()
		return
	}
	r.lastWarn = time.Now()
	r.warnMu.Unlock()

	r.metadataSink.RecordError(
		time.Now(),
		"rank",
		"Reranker.Rerank",
		metadata.CauseLLMUnavailable,
		err.Error(),
		nil,
	)
}

// SuggestURLs asks the LLM for seed URLs worth crawling for query,
// parsed the same way as a rerank response: a JSON array of URL strings.
// Any failure yields nil, never an error.
func (r *Reranker) SuggestURLs(ctx context.Context, query string, limit int) []string {
	if r.endpoint == "" || limit < 1 {
		return nil
	}
	prompt := "You are helping a focused web crawler choose starting points.\n" +
		"Query: " + query + "\n" +
		fmt.Sprintf("Return a JSON array of up to %d absolute http(s) URLs likely to contain authoritative, crawlable content for this query.", limit)

	payload, err := json.Marshal(ollamaRequest{Model: r.model, Prompt: prompt, Stream: false})
	if err != nil {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.warnUnavailable(err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		r.warnUnavailable(fmt.Errorf("llm endpoint returned %d", resp.StatusCode))
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil
	}
	var envelope ollamaResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil
	}
	var urls []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(envelope.Response)), &urls); err != nil {
		return nil
	}
	if len(urls) > limit {
		urls = urls[:limit]
	}
	return urls
}

// rerankPrompt lists the candidate documents and asks for a JSON array of
// URLs in ideal relevance order.
func rerankPrompt(query string, docs []BlendedHit) string {
	var sb strings.Builder
	sb.WriteString("You are a search ranking assistant for a private index.\n")
	sb.WriteString("Query: " + query + "\n")
	sb.WriteString("Documents:\n")
	for i, doc := range docs {
		label := doc.Title
		if label == "" {
			label = doc.URL
		}
		snippet := strings.ReplaceAll(doc.Snippet, "\n", " ")
		if len(snippet) > snippetLimit {
			snippet = snippet[:snippetLimit]
		}
		fmt.Fprintf(&sb, "%d. %s\nURL: %s\nSnippet: %s\n\n", i+1, label, doc.URL, snippet)
	}
	sb.WriteString("Return a JSON array listing the URLs in the ideal relevance order.")
	return sb.String()
}
