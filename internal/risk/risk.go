package risk

// Limits caps exposure of the auto-trader.
type Limits struct {
	// MaxConcurrent is the number of opportunities allowed to hold capital at
	// once; 1 models a single capital pool.
	MaxConcurrent int
	// MaxNotionalUSD bounds the capital committed to one cycle; 0 disables it.
	MaxNotionalUSD float64
}

// Gate hands out capital slots. TryAcquire never blocks: an opportunity that
// finds no free slot stays pending for a later tick.
type Gate struct {
	slots  chan struct{}
	limits Limits
}

func NewGate(l Limits) *Gate {
	if l.MaxConcurrent < 1 {
		l.MaxConcurrent = 1
	}
	return &Gate{slots: make(chan struct{}, l.MaxConcurrent), limits: l}
}

func (g *Gate) TryAcquire() bool {
	select {
	case g.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

func (g *Gate) Release() {
	select {
	case <-g.slots:
	default:
	}
}

// InUse is the number of held slots.
func (g *Gate) InUse() int { return len(g.slots) }

// AllowNotional reports whether a cycle of usd stable value fits the cap.
func (g *Gate) AllowNotional(usd float64) bool {
	return g.limits.MaxNotionalUSD <= 0 || usd <= g.limits.MaxNotionalUSD
}
