package pnl

import (
	"sync"
	"time"
)

// Run is the reconciled outcome of one executed cycle.
type Run struct {
	ID            string
	Triangle      string
	CapitalUSD    float64
	ProfitUSD     float64
	ProfitPercent float64
	At            time.Time
}

// Tracker accumulates realized profit in stable currency.
type Tracker struct {
	mu       sync.Mutex
	runs     []Run
	realized float64
}

func NewTracker() *Tracker { return &Tracker{} }

func (t *Tracker) Record(r Run) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs = append(t.runs, r)
	t.realized += r.ProfitUSD
}

func (t *Tracker) RealizedUSD() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.realized
}

// Runs returns a copy of the recorded runs, oldest first.
func (t *Tracker) Runs() []Run {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Run(nil), t.runs...)
}
