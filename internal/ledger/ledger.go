package ledger

import (
	"errors"
	"sort"
	"sync"
	"time"

	"triarb/internal/strategy"
)

// DefaultStaleness is how long an opportunity survives without a new
// qualifying surface result.
const DefaultStaleness = 15 * time.Second

// ErrNotEligible is returned when an opportunity is not in the state an
// operation requires.
var ErrNotEligible = errors.New("opportunity not eligible")

// Ledger is the shared store of live opportunities keyed by contracts description.
type Ledger struct {
	mu      sync.RWMutex
	opps    map[string]*Opportunity
	maxHist int
}

// New creates a ledger keeping at most maxHistory snapshots per opportunity
// (0 keeps all).
func New(maxHistory int) *Ledger {
	return &Ledger{opps: make(map[string]*Opportunity), maxHist: maxHistory}
}

// IngestStats summarises one Ingest call.
type IngestStats struct {
	Created  int
	Appended int
	Skipped  int
}

// Ingest merges results clearing threshold, best first. Results for an
// already-updated opportunity in the same tick are skipped.
func (l *Ledger) Ingest(results []strategy.SurfaceResult, threshold float64, now time.Time) IngestStats {
	qualifying := make([]strategy.SurfaceResult, 0, len(results))
	for _, r := range results {
		if r.ProfitPercent >= threshold {
			qualifying = append(qualifying, r)
		}
	}
	sort.SliceStable(qualifying, func(i, j int) bool {
		return qualifying[i].ProfitPercent > qualifying[j].ProfitPercent
	})

	var st IngestStats
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range qualifying {
		key := r.ContractsDescription()
		if o, ok := l.opps[key]; ok {
			if o.Append(r, now) {
				st.Appended++
			} else {
				st.Skipped++
			}
			continue
		}
		l.opps[key] = newOpportunity(r, now, l.maxHist)
		st.Created++
	}
	return st
}

// Sweep drops opportunities not updated within staleness of now. Opportunities
// holding an active claim (depth check or trading) are kept until released.
func (l *Ledger) Sweep(now time.Time, staleness time.Duration) []string {
	cutoff := now.Add(-staleness)
	var removed []string
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, o := range l.opps {
		if o.Status().Active() {
			continue
		}
		if o.UpdatedAt().Before(cutoff) {
			delete(l.opps, key)
			removed = append(removed, key)
		}
	}
	sort.Strings(removed)
	return removed
}

func (l *Ledger) Get(key string) (*Opportunity, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	o, ok := l.opps[key]
	return o, ok
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.opps)
}

// Opportunities returns the live entries sorted by latest profit, best first.
func (l *Ledger) Opportunities() []*Opportunity {
	l.mu.RLock()
	out := make([]*Opportunity, 0, len(l.opps))
	for _, o := range l.opps {
		out = append(out, o)
	}
	l.mu.RUnlock()
	profits := make(map[*Opportunity]float64, len(out))
	for _, o := range out {
		profits[o] = o.Latest().ProfitPercent
	}
	sort.Slice(out, func(i, j int) bool {
		if profits[out[i]] != profits[out[j]] {
			return profits[out[i]] > profits[out[j]]
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}

// Eligible lists pending opportunities whose latest profit reaches minProfit.
func (l *Ledger) Eligible(minProfit float64) []*Opportunity {
	var out []*Opportunity
	for _, o := range l.Opportunities() {
		if o.Status() == StatusPending && o.Latest().ProfitPercent >= minProfit {
			out = append(out, o)
		}
	}
	return out
}

// Snapshot returns read-only views for reporting, best first.
func (l *Ledger) Snapshot() []View {
	opps := l.Opportunities()
	out := make([]View, 0, len(opps))
	for _, o := range opps {
		out = append(out, o.View())
	}
	return out
}
