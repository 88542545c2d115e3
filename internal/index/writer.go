package index

import (
	"sync"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/blevesearch/bleve/v2"

	"github.com/sulaimonao/selfhostedsearch/internal/dedupe"
)

// Outcome is what AddOrUpdate did with a given Document.
type Outcome string

const (
	OutcomeAdded             Outcome = "added"
	OutcomeUpdated           Outcome = "updated"
	OutcomeSkippedUnchanged  Outcome = "skipped_unchanged"
	OutcomeDedupedExact      Outcome = "deduped_exact"
	OutcomeDedupedNearDup    Outcome = "deduped_near"
)

// Counters tallies AddOrUpdate outcomes across a writer's lifetime, per
// spec §4.8's added/updated/skipped/deduped counters.
type Counters struct {
	Added            int
	Updated          int
	SkippedUnchanged int
	DedupedExact     int
	DedupedNearDup   int
}

// Writer is the incremental BM25-style index spec §4.8 describes: a bleve
// index for search, a URL-keyed ledger to skip unchanged re-fetches, and a
// fingerprint side-index to catch exact and near-duplicate content across
// different URLs.
type Writer struct {
	mu sync.Mutex

	bleveIndex bleve.Index
	ledger     *Ledger
	nearIndex  *dedupe.NearIndex
	exactMD5   map[string]string // content MD5 -> URL that first claimed it

	counters Counters

	// pending tracks which positions in the current batch actually staged a
	// bleve mutation, so Commit skips flushing a batch that ended up empty
	// after ledger/dedup short-circuits.
	pending     *bitset.BitSet
	pendingSize uint

	simHashPath   string
	lastIndexPath string
	pendingHashes []simHashRecord

	lastCommit time.Time
}

// WriterConfig parameterizes NewWriter.
type WriterConfig struct {
	IndexPath        string // empty = in-memory index
	LedgerPath       string
	SimHashPath      string // empty = fingerprints are not persisted
	LastIndexPath    string // empty = no last_index_time marker
	NearDupThreshold int
}

// NewWriter opens (or creates) the bleve index at cfg.IndexPath and loads
// the ledger at cfg.LedgerPath, or starts both empty if cfg.IndexPath is
// empty / the ledger file doesn't exist.
func NewWriter(cfg WriterConfig) (*Writer, error) {
	im, err := buildIndexMapping()
	if err != nil {
		return nil, &IndexError{Message: err.Error(), Retryable: false, Cause: ErrCauseCommitFailure}
	}

	var bi bleve.Index
	if cfg.IndexPath == "" {
		bi, err = bleve.NewMemOnly(im)
	} else {
		bi, err = bleve.Open(cfg.IndexPath)
		if err != nil {
			bi, err = bleve.New(cfg.IndexPath, im)
		}
	}
	if err != nil {
		return nil, &IndexError{Message: err.Error(), Retryable: false, Cause: ErrCauseCommitFailure}
	}

	ledger, err := LoadLedger(cfg.LedgerPath)
	if err != nil {
		return nil, err.(*IndexError)
	}

	w := &Writer{
		bleveIndex:    bi,
		ledger:        ledger,
		nearIndex:     dedupe.NewNearIndex(cfg.NearDupThreshold),
		exactMD5:      make(map[string]string),
		pending:       bitset.New(0),
		simHashPath:   cfg.SimHashPath,
		lastIndexPath: cfg.LastIndexPath,
	}

	if cfg.SimHashPath != "" {
		for _, rec := range loadSimHashRecords(cfg.SimHashPath) {
			fp := dedupe.Fingerprint{SimHash: rec.SimHash, MD5: rec.MD5}
			w.nearIndex.Add(fp)
			if _, taken := w.exactMD5[rec.MD5]; !taken {
				w.exactMD5[rec.MD5] = rec.URL
			}
		}
	}
	return w, nil
}

// AddOrUpdate indexes doc, consulting the ledger and fingerprint indexes
// first so an unchanged or duplicate page never touches bleve.
func (w *Writer) AddOrUpdate(doc Document) (Outcome, *IndexError) {
	w.mu.Lock()
	defer w.mu.Unlock()

	contentHash := doc.ContentHash()
	if prior, ok := w.ledger.Lookup(doc.URL()); ok && prior.ContentHash == contentHash {
		w.counters.SkippedUnchanged++
		return OutcomeSkippedUnchanged, nil
	}

	fp := dedupe.FromText(doc.Title() + "\n" + doc.Text())
	if owner, ok := w.exactMD5[fp.MD5]; ok && owner != doc.URL() {
		w.counters.DedupedExact++
		return OutcomeDedupedExact, nil
	}
	if existing, found := w.nearIndex.FindNear(fp); found && existing.MD5 != fp.MD5 {
		w.counters.DedupedNearDup++
		return OutcomeDedupedNearDup, nil
	}

	if err := w.bleveIndex.Index(doc.DocID(), doc.bleveFields()); err != nil {
		return "", &IndexError{Message: err.Error(), Retryable: true, Cause: ErrCauseCommitFailure}
	}

	w.exactMD5[fp.MD5] = doc.URL()
	w.nearIndex.Add(fp)
	if w.simHashPath != "" {
		w.pendingHashes = append(w.pendingHashes, simHashRecord{URL: doc.URL(), SimHash: fp.SimHash, MD5: fp.MD5})
	}

	_, existed := w.ledger.Lookup(doc.URL())
	w.ledger.Put(doc.URL(), LedgerRecord{ContentHash: contentHash, DocID: doc.DocID(), LastIndexedAt: time.Now().UTC()})
	w.markPending()

	if existed {
		w.counters.Updated++
		return OutcomeUpdated, nil
	}
	w.counters.Added++
	return OutcomeAdded, nil
}

// markPending grows the batch-dirty bitset by one bit and sets it,
// recording that the current commit window has at least one real mutation
// to flush.
func (w *Writer) markPending() {
	w.pending.Set(w.pendingSize)
	w.pendingSize++
}

// Commit flushes the ledger to disk only if this commit window produced at
// least one real mutation, avoiding a no-op ledger write on an all-skipped
// batch.
func (w *Writer) Commit() *IndexError {
	w.mu.Lock()
	dirty := w.pending.Any()
	w.pending = bitset.New(0)
	w.pendingSize = 0
	staged := w.pendingHashes
	w.pendingHashes = nil
	w.mu.Unlock()

	if !dirty {
		return nil
	}
	if err := w.ledger.Save(); err != nil {
		return err.(*IndexError)
	}
	if w.simHashPath != "" && len(staged) > 0 {
		if err := appendSimHashRecords(w.simHashPath, staged); err != nil {
			return &IndexError{Message: err.Error(), Retryable: true, Cause: ErrCauseLedgerIOFailure}
		}
	}

	now := time.Now().UTC()
	if w.lastIndexPath != "" {
		if err := writeLastIndexTime(w.lastIndexPath, now); err != nil {
			return &IndexError{Message: err.Error(), Retryable: true, Cause: ErrCauseLedgerIOFailure}
		}
	}
	w.mu.Lock()
	w.lastCommit = now
	w.mu.Unlock()
	return nil
}

// Counters returns a snapshot of the writer's running outcome tallies.
func (w *Writer) Counters() Counters {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.counters
}

// Stats reports the bleve document count, the number of ledger entries, and
// the last successful commit time, per the supplemental index-health feature.
type Stats struct {
	DocCount   uint64
	LedgerSize int
	LastCommit time.Time
}

func (w *Writer) Stats() (Stats, *IndexError) {
	count, err := w.bleveIndex.DocCount()
	if err != nil {
		return Stats{}, &IndexError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return Stats{DocCount: count, LedgerSize: w.ledger.Len(), LastCommit: w.lastCommit}, nil
}

// Close releases the underlying bleve index.
func (w *Writer) Close() error {
	return w.bleveIndex.Close()
}
