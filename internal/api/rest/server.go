package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"triarb/internal/graph"
	"triarb/internal/infra/version"
	"triarb/internal/ledger"
	"triarb/internal/orderbook"
	"triarb/internal/pnl"
)

// Source is the read side of the running engine.
type Source interface {
	Ledger() *ledger.Ledger
	Triangles() []graph.Triangular
	EnumeratedAt() time.Time
	Quotes() *orderbook.Tickers
	Tracker() *pnl.Tracker
}

type Server struct {
	mux *http.ServeMux
	src Source
}

func New(src Source) *Server {
	s := &Server{mux: http.NewServeMux(), src: src}
	s.mux.HandleFunc("GET /status", s.status)
	s.mux.HandleFunc("GET /opportunities", s.opportunities)
	s.mux.HandleFunc("GET /opportunities/{key}", s.opportunity)
	s.mux.HandleFunc("GET /triangles", s.triangles)
	s.mux.HandleFunc("GET /runs", s.runs)
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

type statusResponse struct {
	Version         version.BuildInfo `json:"version"`
	Triangles       int               `json:"triangles"`
	EnumeratedAt    time.Time         `json:"enumerated_at"`
	Quotes          int               `json:"quotes"`
	QuotesUpdatedAt time.Time         `json:"quotes_updated_at"`
	Opportunities   int               `json:"opportunities"`
	Runs            int               `json:"runs"`
	RealizedUSD     float64           `json:"realized_usd"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Version:         version.Info(),
		Triangles:       len(s.src.Triangles()),
		EnumeratedAt:    s.src.EnumeratedAt(),
		Quotes:          s.src.Quotes().Len(),
		QuotesUpdatedAt: s.src.Quotes().UpdatedAt(),
		Opportunities:   s.src.Ledger().Len(),
		Runs:            len(s.src.Tracker().Runs()),
		RealizedUSD:     s.src.Tracker().RealizedUSD(),
	})
}

// opportunities lists the ledger best first; ?status= filters and ?limit= caps.
func (s *Server) opportunities(w http.ResponseWriter, r *http.Request) {
	views := s.src.Ledger().Snapshot()
	if st := r.URL.Query().Get("status"); st != "" {
		kept := views[:0]
		for _, v := range views {
			if string(v.Status) == st {
				kept = append(kept, v)
			}
		}
		views = kept
	}
	limit, ok := parseLimit(r, len(views))
	if !ok {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, views[:min(limit, len(views))])
}

func (s *Server) opportunity(w http.ResponseWriter, r *http.Request) {
	o, ok := s.src.Ledger().Get(r.PathValue("key"))
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	type detail struct {
		ledger.View
		History int `json:"history"`
	}
	writeJSON(w, http.StatusOK, detail{View: o.View(), History: len(o.History())})
}

func (s *Server) triangles(w http.ResponseWriter, r *http.Request) {
	tris := s.src.Triangles()
	limit, ok := parseLimit(r, 100)
	if !ok {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Count        int                `json:"count"`
		EnumeratedAt time.Time          `json:"enumerated_at"`
		Triangles    []graph.Triangular `json:"triangles"`
	}{len(tris), s.src.EnumeratedAt(), tris[:min(limit, len(tris))]})
}

func (s *Server) runs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.src.Tracker().Runs())
}

func parseLimit(r *http.Request, def int) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
