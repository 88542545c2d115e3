package metadata

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-logfmt/logfmt"
)

/*
Metadata Collected
- Fetch timestamps
- HTTP status codes
- Content hashes
- Crawl depth

Logging Goals
- Debuggable crawl behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred.

Allowed:
- Primitive values
- Timestamps
- URLs (as values, not objects with behavior)
- Hashes
- Status codes
- Durations
- Identifiers (page ID, crawl ID)
*/

// MetadataSink is the single recording surface every pipeline stage writes
// through. It is structured, attribute-keyed and append-only; it must never
// be read back to drive control flow.
type MetadataSink interface {
	RecordFetch(fetchURL string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int)
	RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, errorString string, attrs []Attribute)
	RecordArtifact(kind ArtifactKind, path string, attrs []Attribute)
}

// CrawlFinalizer records the terminal, derived summary of a completed crawl.
// It is computed by the scheduler after crawl termination and recorded
// exactly once; it must never itself be consulted to decide termination.
type CrawlFinalizer interface {
	RecordFinalCrawlStats(totalPages int, totalErrors int, totalIndexed int, duration time.Duration)
}

// Recorder is the default MetadataSink/CrawlFinalizer implementation. It
// writes one logfmt line per event to stderr.
type Recorder struct {
	label string

	mu         sync.Mutex
	out        *os.File
	fetchCount int
	errorCount int
}

// NewRecorder constructs a Recorder tagged with label (typically a worker or
// crawl-run identifier) that writes structured events to stderr.
func NewRecorder(label string) Recorder {
	return Recorder{
		label: label,
		out:   os.Stderr,
	}
}

func (r *Recorder) emit(kvs ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	enc := logfmt.NewEncoder(r.out)
	_ = enc.EncodeKeyval("worker", r.label)
	for i := 0; i+1 < len(kvs); i += 2 {
		_ = enc.EncodeKeyval(kvs[i], kvs[i+1])
	}
	_ = enc.EndRecord()
}

func (r *Recorder) RecordFetch(fetchURL string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int) {
	r.mu.Lock()
	r.fetchCount++
	r.mu.Unlock()

	r.emit(
		"event", "fetch",
		"url", fetchURL,
		"status", httpStatus,
		"duration_ms", duration.Milliseconds(),
		"content_type", contentType,
		"retries", retryCount,
		"depth", crawlDepth,
	)
}

func (r *Recorder) RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, errorString string, attrs []Attribute) {
	r.mu.Lock()
	r.errorCount++
	r.mu.Unlock()

	kvs := []interface{}{
		"event", "error",
		"package", packageName,
		"action", action,
		"cause", int(cause),
		"error", errorString,
		"observed_at", observedAt.Format(time.RFC3339),
	}
	for _, a := range attrs {
		kvs = append(kvs, string(a.Key), a.Value)
	}
	r.emit(kvs...)
}

func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	kvs := []interface{}{
		"event", "artifact",
		"kind", string(kind),
		"path", path,
	}
	for _, a := range attrs {
		kvs = append(kvs, string(a.Key), a.Value)
	}
	r.emit(kvs...)
}

func (r *Recorder) RecordFinalCrawlStats(totalPages int, totalErrors int, totalIndexed int, duration time.Duration) {
	r.emit(
		"event", "crawl_finished",
		"total_pages", totalPages,
		"total_errors", totalErrors,
		"total_indexed", totalIndexed,
		"duration_ms", duration.Milliseconds(),
	)
}

// String satisfies fmt.Stringer for ad-hoc debugging.
func (r *Recorder) String() string {
	return fmt.Sprintf("Recorder(%s fetches=%d errors=%d)", r.label, r.fetchCount, r.errorCount)
}
