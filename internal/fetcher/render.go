package fetcher

import (
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
)

// Renderer executes a page in a headless browser and returns the rendered
// DOM, for JS-heavy pages whose static HTML is an empty app shell.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
	Close() error
}

// RodRenderer drives a headless Chromium via go-rod. The browser is
// launched lazily on first Render and shared across calls; Close tears it
// down.
type RodRenderer struct {
	mu      sync.Mutex
	browser *rod.Browser
	timeout time.Duration
}

// NewRodRenderer builds a RodRenderer with the given navigation timeout.
func NewRodRenderer(timeout time.Duration) *RodRenderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RodRenderer{timeout: timeout}
}

func (r *RodRenderer) connect() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		return r.browser, nil
	}
	browser := rod.New()
	if err := browser.Connect(); err != nil {
		return nil, err
	}
	r.browser = browser
	return browser, nil
}

// Render navigates to pageURL with a stealth page, waits for the network
// to go idle, and returns the resulting DOM.
func (r *RodRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	browser, err := r.connect()
	if err != nil {
		return "", err
	}

	page, err := stealth.Page(browser)
	if err != nil {
		return "", err
	}
	defer page.Close()

	page = page.Context(ctx).Timeout(r.timeout)

	if err := page.Navigate(pageURL); err != nil {
		return "", err
	}
	if err := page.WaitLoad(); err != nil {
		return "", err
	}
	waitIdle := page.WaitRequestIdle(500*time.Millisecond, nil, nil, nil)
	waitIdle()

	return page.HTML()
}

// Close shuts the shared browser down. Safe to call without a prior
// Render.
func (r *RodRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.browser = nil
	return err
}
