package dedupe

import "sync"

// DefaultNearDuplicateThreshold is the Hamming-distance cutoff at or below
// which two SimHash fingerprints are treated as near-duplicates.
const DefaultNearDuplicateThreshold = 3

// NearIndex buckets fingerprints by the first 16 bits of their SimHash so a
// near-duplicate probe only has to compare against entries sharing a
// bucket, not the whole corpus.
type NearIndex struct {
	mu        sync.RWMutex
	threshold int
	buckets   map[uint16][]Fingerprint
}

// NewNearIndex constructs an empty index using threshold as the maximum
// Hamming distance considered a near-duplicate.
func NewNearIndex(threshold int) *NearIndex {
	if threshold <= 0 {
		threshold = DefaultNearDuplicateThreshold
	}
	return &NearIndex{threshold: threshold, buckets: make(map[uint16][]Fingerprint)}
}

// FindNear returns the first fingerprint in fp's bucket within the
// configured Hamming distance, and whether one was found.
func (n *NearIndex) FindNear(fp Fingerprint) (Fingerprint, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, existing := range n.buckets[Bucket16(fp.SimHash)] {
		if HammingDistance(existing.SimHash, fp.SimHash) <= n.threshold {
			return existing, true
		}
	}
	return Fingerprint{}, false
}

// Add inserts fp into its bucket.
func (n *NearIndex) Add(fp Fingerprint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	bucket := Bucket16(fp.SimHash)
	n.buckets[bucket] = append(n.buckets[bucket], fp)
}

// Len returns the total number of fingerprints held across all buckets.
func (n *NearIndex) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	total := 0
	for _, b := range n.buckets {
		total += len(b)
	}
	return total
}
