package ledger

import (
	"strings"
	"sync"
	"time"

	"triarb/internal/strategy"
)

// Opportunity aggregates every qualifying surface result of one contract set.
// Identity (Key, StartDate) never changes; everything else is guarded by mu.
type Opportunity struct {
	key       string
	startDate time.Time

	mu        sync.Mutex
	updatedAt time.Time
	lastTick  time.Time
	history   []strategy.SurfaceResult
	verified  *strategy.SurfaceResult
	status    Status
	stage     Stage
	log       []string
	threadRef string
	maxHist   int
}

func newOpportunity(res strategy.SurfaceResult, now time.Time, maxHist int) *Opportunity {
	return &Opportunity{
		key:       res.ContractsDescription(),
		startDate: now,
		updatedAt: now,
		lastTick:  now,
		history:   []strategy.SurfaceResult{res},
		status:    StatusPending,
		maxHist:   maxHist,
	}
}

func (o *Opportunity) Key() string          { return o.key }
func (o *Opportunity) StartDate() time.Time { return o.startDate }

func (o *Opportunity) UpdatedAt() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.updatedAt
}

// Latest returns the most recent surface result.
func (o *Opportunity) Latest() strategy.SurfaceResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.history[len(o.history)-1]
}

// History returns a copy of the stored snapshots, oldest first.
func (o *Opportunity) History() []strategy.SurfaceResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]strategy.SurfaceResult(nil), o.history...)
}

// Append records a new snapshot taken at now. A second append for the same
// tick is ignored.
func (o *Opportunity) Append(res strategy.SurfaceResult, now time.Time) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if now.Equal(o.lastTick) {
		return false
	}
	o.history = append(o.history, res)
	if o.maxHist > 0 && len(o.history) > o.maxHist {
		o.history = append(o.history[:0:0], o.history[len(o.history)-o.maxHist:]...)
	}
	o.updatedAt = now
	o.lastTick = now
	return true
}

func (o *Opportunity) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func (o *Opportunity) Stage() Stage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stage
}

// Transition moves the status from one state to another and reports whether
// it did. It is the only gate deciding who may act on the opportunity.
func (o *Opportunity) Transition(from, to Status) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status != from {
		return false
	}
	o.status = to
	return true
}

// MarkVerified promotes a depth-checked opportunity to ready to trade and
// pins res as the result the trade must follow. Later snapshots do not move it.
func (o *Opportunity) MarkVerified(res strategy.SurfaceResult) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status != StatusDepthCheck {
		return false
	}
	o.status = StatusReadyToTrade
	o.verified = &res
	return true
}

// ClaimVerified moves ready to trade into trading and returns the pinned
// result. It fails when the opportunity is not ready or was never verified.
func (o *Opportunity) ClaimVerified() (strategy.SurfaceResult, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status != StatusReadyToTrade || o.verified == nil {
		return strategy.SurfaceResult{}, false
	}
	o.status = StatusTrading
	return *o.verified, true
}

// SetStage records leg progress.
func (o *Opportunity) SetStage(s Stage) {
	o.mu.Lock()
	o.stage = s
	o.mu.Unlock()
}

// AppendLog appends one human-readable line to the execution log and returns the
// whole log rendered for posting.
func (o *Opportunity) AppendLog(line string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.log = append(o.log, line)
	return strings.Join(o.log, "\n")
}

func (o *Opportunity) Log() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.log...)
}

// ThreadRef is the external message reference the log is posted under.
func (o *Opportunity) ThreadRef() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.threadRef
}

func (o *Opportunity) SetThreadRef(ref string) {
	o.mu.Lock()
	o.threadRef = ref
	o.mu.Unlock()
}

// View is a read-only copy for reporting.
type View struct {
	Key       string                 `json:"contracts"`
	StartDate time.Time              `json:"start_date"`
	UpdatedAt time.Time              `json:"updated_at"`
	Status    Status                 `json:"status"`
	Stage     Stage                  `json:"stage,omitempty"`
	Snapshots int                    `json:"snapshots"`
	Latest    strategy.SurfaceResult `json:"latest"`
	Log       []string               `json:"log,omitempty"`
}

func (o *Opportunity) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	return View{
		Key:       o.key,
		StartDate: o.startDate,
		UpdatedAt: o.updatedAt,
		Status:    o.status,
		Stage:     o.stage,
		Snapshots: len(o.history),
		Latest:    o.history[len(o.history)-1],
		Log:       append([]string(nil), o.log...),
	}
}
