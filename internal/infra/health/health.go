package health

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
)

var (
	ready atomic.Bool

	mu         sync.RWMutex
	components = map[string]bool{}
)

// SetReady marks readiness state
func SetReady(v bool) { ready.Store(v) }

// Expect registers components that must report before the service is ready.
func Expect(names ...string) {
	mu.Lock()
	defer mu.Unlock()
	for _, n := range names {
		if _, ok := components[n]; !ok {
			components[n] = false
		}
	}
}

// Set records the state of one component.
func Set(name string, ok bool) {
	mu.Lock()
	components[name] = ok
	mu.Unlock()
}

// Ready returns current readiness: the global flag and every registered component.
func Ready() bool {
	if !ready.Load() {
		return false
	}
	mu.RLock()
	defer mu.RUnlock()
	for _, ok := range components {
		if !ok {
			return false
		}
	}
	return true
}

// Pending lists components that have not reported ready, sorted.
func Pending() []string {
	mu.RLock()
	defer mu.RUnlock()
	var out []string
	for n, ok := range components {
		if !ok {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

func reset() {
	ready.Store(false)
	mu.Lock()
	components = map[string]bool{}
	mu.Unlock()
}

// Healthz is a simple liveness probe
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Readyz reflects application readiness state
func Readyz(w http.ResponseWriter, r *http.Request) {
	if Ready() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "not ready", "pending": Pending()})
}
