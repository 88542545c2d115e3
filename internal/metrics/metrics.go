// Package metrics exposes the crawl/index/search counters as Prometheus
// collectors. Like the metadata sink, metrics are observational only and
// never drive control flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector this module emits, registered on one
// registry so callers can mount them on whatever HTTP surface they run.
type Metrics struct {
	registry *prometheus.Registry

	CrawlPages          prometheus.Counter
	CrawlErrors         prometheus.Counter
	DedupeHits          prometheus.Counter
	RobotsDenied        prometheus.Counter
	IndexCommits        prometheus.Counter
	IndexedDocs         *prometheus.CounterVec
	SearchRequests      prometheus.Counter
	SmartSearchTriggers prometheus.Counter
	SearchLatency       prometheus.Histogram
}

// New builds and registers every collector on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		CrawlPages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawl_pages_total",
			Help: "Pages successfully fetched and persisted by focused crawls.",
		}),
		CrawlErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawl_errors_total",
			Help: "Candidates dropped after exhausting fetch retries.",
		}),
		DedupeHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dedupe_hits_total",
			Help: "Pages skipped because their content fingerprint was already seen.",
		}),
		RobotsDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "robots_denied_total",
			Help: "Candidates skipped by a robots.txt disallow.",
		}),
		IndexCommits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "index_commits_total",
			Help: "Index batches committed.",
		}),
		IndexedDocs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "index_documents_total",
			Help: "Documents processed by the index writer, by outcome.",
		}, []string{"outcome"}),
		SearchRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "search_requests_total",
			Help: "Queries served from the index.",
		}),
		SmartSearchTriggers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smart_search_triggers_total",
			Help: "Background focused crawls triggered by low-coverage queries.",
		}),
		SearchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "search_latency_seconds",
			Help:    "Index query latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		m.CrawlPages,
		m.CrawlErrors,
		m.DedupeHits,
		m.RobotsDenied,
		m.IndexCommits,
		m.IndexedDocs,
		m.SearchRequests,
		m.SmartSearchTriggers,
		m.SearchLatency,
	)
	return m
}

// Registry returns the registry holding every collector, for mounting a
// promhttp handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
