package cooldown

import (
	"sync"
	"time"
)

// TriggerGate debounces a per-query background action (the smart-search
// focused-crawl trigger) in-memory, independent of the per-(query,host)
// Ledger above.
type TriggerGate struct {
	mu               sync.Mutex
	history          map[string]time.Time
	cooldownDuration time.Duration
}

// NewTriggerGate constructs a gate that allows at most one trigger per
// query every cooldown.
func NewTriggerGate(cooldown time.Duration) *TriggerGate {
	return &TriggerGate{history: make(map[string]time.Time), cooldownDuration: cooldown}
}

// Allow reports whether query may trigger now; it does not itself record a
// trigger. A non-positive cooldown always allows.
func (g *TriggerGate) Allow(query string, now time.Time) bool {
	if g.cooldownDuration <= 0 {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	last, ok := g.history[query]
	if !ok {
		return true
	}
	return now.Sub(last) >= g.cooldownDuration
}

// MarkTriggered records now as the last trigger time for query.
func (g *TriggerGate) MarkTriggered(query string, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.history[query] = now
}
