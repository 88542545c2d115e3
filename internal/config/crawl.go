package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// RenderMode controls the headless-render fallback for JS-heavy pages.
type RenderMode string

const (
	RenderAuto RenderMode = "auto"
	RenderOn   RenderMode = "on"
	RenderOff  RenderMode = "off"
)

// CrawlConfig holds the focused-crawl and search-core knobs, loaded once at
// process start. It is immutable after Build; re-reads require restart.
type CrawlConfig struct {
	//===============
	// Fetch concurrency
	//===============
	// Global cap on in-flight fetches across all hosts.
	concurrentRequests int
	// Per-host cap on in-flight fetches.
	concurrentPerDomain int
	// Whether robots.txt decisions gate fetches at all.
	respectRobots bool
	// User agent sent on crawl requests.
	userAgent string

	//===============
	// Headless render fallback
	//===============
	renderMode RenderMode
	// Navigation timeout for the headless renderer.
	renderNavigationTimeout time.Duration

	//===============
	// Focused crawl & smart search
	//===============
	// Maximum pages one focused crawl run may persist.
	focusedCrawlBudget int
	// Result count below which smart-search triggers a background crawl.
	smartMinResults int
	// Minimum interval between background crawls for the same query.
	smartTriggerCooldown time.Duration

	//===============
	// Ranking
	//===============
	// Host-authority blend coefficient.
	rankAuthAlpha float64
	// How many top hits the optional LLM rerank covers.
	rerankTopN int

	//===============
	// LLM rerank endpoint
	//===============
	ollamaURL     string
	ollamaModel   string
	ollamaTimeout time.Duration
}

// WithCrawlDefault returns a CrawlConfig builder seeded with the documented
// defaults for every knob.
func WithCrawlDefault() *CrawlConfig {
	defaultConfig := CrawlConfig{
		concurrentRequests:      8,
		concurrentPerDomain:     2,
		respectRobots:           true,
		userAgent:               "selfhostedsearch/1.0",
		renderMode:              RenderAuto,
		renderNavigationTimeout: 30 * time.Second,
		focusedCrawlBudget:      50,
		smartMinResults:         5,
		smartTriggerCooldown:    60 * time.Second,
		rankAuthAlpha:           0.15,
		rerankTopN:              5,
		ollamaURL:               "http://127.0.0.1:11434/api/generate",
		ollamaModel:             "",
		ollamaTimeout:           12 * time.Second,
	}
	return &defaultConfig
}

// FromEnv builds a CrawlConfig from the recognized environment knobs,
// falling back to the defaults for anything unset. Malformed values are a
// ConfigError: the component refuses to start rather than guessing.
func FromEnv() (CrawlConfig, error) {
	builder := WithCrawlDefault()

	if v := os.Getenv("CRAWL_USER_AGENT"); v != "" {
		builder = builder.WithCrawlUserAgent(v)
	}
	if v := os.Getenv("CRAWL_CONCURRENT_REQUESTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return CrawlConfig{}, fmt.Errorf("%w: CRAWL_CONCURRENT_REQUESTS=%q", ErrInvalidConfig, v)
		}
		builder = builder.WithConcurrentRequests(n)
	}
	if v := os.Getenv("CRAWL_CONCURRENT_PER_DOMAIN"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return CrawlConfig{}, fmt.Errorf("%w: CRAWL_CONCURRENT_PER_DOMAIN=%q", ErrInvalidConfig, v)
		}
		builder = builder.WithConcurrentPerDomain(n)
	}
	if v := os.Getenv("CRAWL_RESPECT_ROBOTS"); v != "" {
		b, err := parseBool(v)
		if err != nil {
			return CrawlConfig{}, fmt.Errorf("%w: CRAWL_RESPECT_ROBOTS=%q", ErrInvalidConfig, v)
		}
		builder = builder.WithRespectRobots(b)
	}
	if v := os.Getenv("CRAWL_USE_PLAYWRIGHT"); v != "" {
		mode, err := parseRenderMode(v)
		if err != nil {
			return CrawlConfig{}, err
		}
		builder = builder.WithRenderMode(mode)
	}
	if v := os.Getenv("PLAYWRIGHT_NAVIGATION_TIMEOUT"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 0 {
			return CrawlConfig{}, fmt.Errorf("%w: PLAYWRIGHT_NAVIGATION_TIMEOUT=%q", ErrInvalidConfig, v)
		}
		builder = builder.WithRenderNavigationTimeout(time.Duration(ms) * time.Millisecond)
	}
	if v := os.Getenv("FOCUSED_CRAWL_BUDGET"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return CrawlConfig{}, fmt.Errorf("%w: FOCUSED_CRAWL_BUDGET=%q", ErrInvalidConfig, v)
		}
		builder = builder.WithFocusedCrawlBudget(n)
	}
	if v := os.Getenv("SMART_MIN_RESULTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return CrawlConfig{}, fmt.Errorf("%w: SMART_MIN_RESULTS=%q", ErrInvalidConfig, v)
		}
		builder = builder.WithSmartMinResults(n)
	}
	if v := os.Getenv("SMART_TRIGGER_COOLDOWN"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs < 0 {
			return CrawlConfig{}, fmt.Errorf("%w: SMART_TRIGGER_COOLDOWN=%q", ErrInvalidConfig, v)
		}
		builder = builder.WithSmartTriggerCooldown(time.Duration(secs) * time.Second)
	}
	if v := os.Getenv("RANK_AUTH_ALPHA"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return CrawlConfig{}, fmt.Errorf("%w: RANK_AUTH_ALPHA=%q", ErrInvalidConfig, v)
		}
		builder = builder.WithRankAuthAlpha(f)
	}
	if v := os.Getenv("RERANK_TOP_N"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return CrawlConfig{}, fmt.Errorf("%w: RERANK_TOP_N=%q", ErrInvalidConfig, v)
		}
		builder = builder.WithRerankTopN(n)
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		builder = builder.WithOllamaURL(v)
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		builder = builder.WithOllamaModel(v)
	}
	if v := os.Getenv("OLLAMA_TIMEOUT"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs < 0 {
			return CrawlConfig{}, fmt.Errorf("%w: OLLAMA_TIMEOUT=%q", ErrInvalidConfig, v)
		}
		builder = builder.WithOllamaTimeout(time.Duration(secs) * time.Second)
	}

	return builder.Build()
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a bool: %q", v)
}

func parseRenderMode(v string) (RenderMode, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "auto":
		return RenderAuto, nil
	case "on", "1", "true":
		return RenderOn, nil
	case "off", "0", "false":
		return RenderOff, nil
	}
	return "", fmt.Errorf("%w: CRAWL_USE_PLAYWRIGHT=%q", ErrInvalidConfig, v)
}

func (c *CrawlConfig) WithCrawlUserAgent(agent string) *CrawlConfig {
	c.userAgent = agent
	return c
}

func (c *CrawlConfig) WithConcurrentRequests(n int) *CrawlConfig {
	c.concurrentRequests = n
	return c
}

func (c *CrawlConfig) WithConcurrentPerDomain(n int) *CrawlConfig {
	c.concurrentPerDomain = n
	return c
}

func (c *CrawlConfig) WithRespectRobots(respect bool) *CrawlConfig {
	c.respectRobots = respect
	return c
}

func (c *CrawlConfig) WithRenderMode(mode RenderMode) *CrawlConfig {
	c.renderMode = mode
	return c
}

func (c *CrawlConfig) WithRenderNavigationTimeout(timeout time.Duration) *CrawlConfig {
	c.renderNavigationTimeout = timeout
	return c
}

func (c *CrawlConfig) WithFocusedCrawlBudget(budget int) *CrawlConfig {
	c.focusedCrawlBudget = budget
	return c
}

func (c *CrawlConfig) WithSmartMinResults(n int) *CrawlConfig {
	c.smartMinResults = n
	return c
}

func (c *CrawlConfig) WithSmartTriggerCooldown(cooldown time.Duration) *CrawlConfig {
	c.smartTriggerCooldown = cooldown
	return c
}

func (c *CrawlConfig) WithRankAuthAlpha(alpha float64) *CrawlConfig {
	c.rankAuthAlpha = alpha
	return c
}

func (c *CrawlConfig) WithRerankTopN(n int) *CrawlConfig {
	c.rerankTopN = n
	return c
}

func (c *CrawlConfig) WithOllamaURL(u string) *CrawlConfig {
	c.ollamaURL = u
	return c
}

func (c *CrawlConfig) WithOllamaModel(model string) *CrawlConfig {
	c.ollamaModel = model
	return c
}

func (c *CrawlConfig) WithOllamaTimeout(timeout time.Duration) *CrawlConfig {
	c.ollamaTimeout = timeout
	return c
}

// Build validates the assembled CrawlConfig and returns an immutable copy.
func (c *CrawlConfig) Build() (CrawlConfig, error) {
	if c.concurrentRequests < 1 {
		return CrawlConfig{}, fmt.Errorf("%w: concurrentRequests must be >= 1", ErrInvalidConfig)
	}
	if c.concurrentPerDomain < 1 {
		return CrawlConfig{}, fmt.Errorf("%w: concurrentPerDomain must be >= 1", ErrInvalidConfig)
	}
	if c.focusedCrawlBudget < 1 {
		return CrawlConfig{}, fmt.Errorf("%w: focusedCrawlBudget must be >= 1", ErrInvalidConfig)
	}
	if c.smartMinResults < 0 {
		return CrawlConfig{}, fmt.Errorf("%w: smartMinResults must be >= 0", ErrInvalidConfig)
	}
	if c.rankAuthAlpha < 0 {
		return CrawlConfig{}, fmt.Errorf("%w: rankAuthAlpha must be >= 0", ErrInvalidConfig)
	}
	if c.rerankTopN < 0 {
		return CrawlConfig{}, fmt.Errorf("%w: rerankTopN must be >= 0", ErrInvalidConfig)
	}
	if c.userAgent == "" {
		return CrawlConfig{}, fmt.Errorf("%w: userAgent cannot be empty", ErrInvalidConfig)
	}
	return *c, nil
}

func (c CrawlConfig) CrawlUserAgent() string {
	return c.userAgent
}

func (c CrawlConfig) ConcurrentRequests() int {
	return c.concurrentRequests
}

func (c CrawlConfig) ConcurrentPerDomain() int {
	return c.concurrentPerDomain
}

func (c CrawlConfig) RespectRobots() bool {
	return c.respectRobots
}

func (c CrawlConfig) RenderMode() RenderMode {
	return c.renderMode
}

func (c CrawlConfig) RenderNavigationTimeout() time.Duration {
	return c.renderNavigationTimeout
}

func (c CrawlConfig) FocusedCrawlBudget() int {
	return c.focusedCrawlBudget
}

func (c CrawlConfig) SmartMinResults() int {
	return c.smartMinResults
}

func (c CrawlConfig) SmartTriggerCooldown() time.Duration {
	return c.smartTriggerCooldown
}

func (c CrawlConfig) RankAuthAlpha() float64 {
	return c.rankAuthAlpha
}

func (c CrawlConfig) RerankTopN() int {
	return c.rerankTopN
}

func (c CrawlConfig) OllamaURL() string {
	return c.ollamaURL
}

func (c CrawlConfig) OllamaModel() string {
	return c.ollamaModel
}

func (c CrawlConfig) OllamaTimeout() time.Duration {
	return c.ollamaTimeout
}
