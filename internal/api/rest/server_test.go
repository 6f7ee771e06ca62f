package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"triarb/internal/graph"
	"triarb/internal/ledger"
	"triarb/internal/orderbook"
	"triarb/internal/pnl"
	"triarb/internal/strategy"
)

type fakeSource struct {
	ledger  *ledger.Ledger
	tris    []graph.Triangular
	quotes  *orderbook.Tickers
	tracker *pnl.Tracker
}

func (f *fakeSource) Ledger() *ledger.Ledger        { return f.ledger }
func (f *fakeSource) Triangles() []graph.Triangular { return f.tris }
func (f *fakeSource) EnumeratedAt() time.Time       { return time.Unix(1700000000, 0) }
func (f *fakeSource) Quotes() *orderbook.Tickers    { return f.quotes }
func (f *fakeSource) Tracker() *pnl.Tracker         { return f.tracker }

func result(a, b, c string, profit float64) strategy.SurfaceResult {
	return strategy.SurfaceResult{Contracts: [3]string{a, b, c}, ProfitPercent: profit, Direction: strategy.Forward}
}

func newSource() *fakeSource {
	l := ledger.New(0)
	now := time.Now()
	l.Ingest([]strategy.SurfaceResult{
		result("BTCUSDT", "ETHBTC", "ETHUSDT", 0.4),
		result("BNBUSDT", "BNBBTC", "BTCUSDT", 0.1),
	}, -1, now)
	o, _ := l.Get("BNBBTC,BNBUSDT,BTCUSDT")
	o.Transition(ledger.StatusPending, ledger.StatusForbidden)
	tracker := pnl.NewTracker()
	tracker.Record(pnl.Run{ID: "r1", ProfitUSD: 0.02})
	return &fakeSource{
		ledger:  l,
		tris:    []graph.Triangular{{PairA: "BTCUSDT", PairB: "ETHBTC", PairC: "ETHUSDT"}},
		quotes:  orderbook.NewTickers(),
		tracker: tracker,
	}
}

func get(t *testing.T, h http.Handler, path string, out any) int {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil && rr.Code == http.StatusOK {
		if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
			t.Fatalf("%s: decode: %v", path, err)
		}
	}
	return rr.Code
}

func TestOpportunitiesEndpoint(t *testing.T) {
	h := New(newSource()).Handler()
	var views []ledger.View
	if code := get(t, h, "/opportunities", &views); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if len(views) != 2 || views[0].Key != "BTCUSDT,ETHBTC,ETHUSDT" {
		t.Fatalf("expected best first, got %+v", views)
	}
	views = nil
	get(t, h, "/opportunities?status=forbidden", &views)
	if len(views) != 1 || views[0].Status != ledger.StatusForbidden {
		t.Fatalf("status filter failed: %+v", views)
	}
	views = nil
	get(t, h, "/opportunities?limit=1", &views)
	if len(views) != 1 {
		t.Fatalf("limit failed: %d", len(views))
	}
	if code := get(t, h, "/opportunities?limit=x", nil); code != http.StatusBadRequest {
		t.Fatalf("bad limit must be rejected, got %d", code)
	}
}

func TestOpportunityByKey(t *testing.T) {
	h := New(newSource()).Handler()
	var v struct {
		Key     string `json:"contracts"`
		History int    `json:"history"`
	}
	if code := get(t, h, "/opportunities/BTCUSDT,ETHBTC,ETHUSDT", &v); code != http.StatusOK || v.History != 1 {
		t.Fatalf("lookup failed: %d %+v", code, v)
	}
	if code := get(t, h, "/opportunities/NOPE", nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestStatusAndTriangles(t *testing.T) {
	h := New(newSource()).Handler()
	var st statusResponse
	if code := get(t, h, "/status", &st); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if st.Triangles != 1 || st.Opportunities != 2 || st.Runs != 1 || st.RealizedUSD != 0.02 {
		t.Fatalf("unexpected status %+v", st)
	}
	var tris struct {
		Count     int                `json:"count"`
		Triangles []graph.Triangular `json:"triangles"`
	}
	get(t, h, "/triangles?limit=0", &tris)
	if tris.Count != 1 || len(tris.Triangles) != 0 {
		t.Fatalf("unexpected triangles %+v", tris)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/status", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST must be rejected, got %d", rr.Code)
	}
}
