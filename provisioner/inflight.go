package provisioner

import (
	"sync"
	"time"

	"serverboi-provisioner/metrics"
	"serverboi-provisioner/queues"
)

// InFlightEntry is a request currently being provisioned by this process.
type InFlightEntry struct {
	Request *queues.ProvisionRequest
	Started time.Time
}

// InFlight tracks requests being provisioned, keyed by execution name.
// Pub/Sub may redeliver a message while the first delivery is still running;
// the second delivery must not launch another server.
type InFlight struct {
	mu      sync.RWMutex
	entries map[string]*InFlightEntry
}

func NewInFlight() *InFlight {
	return &InFlight{
		entries: make(map[string]*InFlightEntry),
	}
}

// Begin claims req. It returns false when the same execution is already running.
func (f *InFlight) Begin(req *queues.ProvisionRequest) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.entries[req.ExecutionName]; exists {
		return false
	}
	f.entries[req.ExecutionName] = &InFlightEntry{Request: req, Started: time.Now()}
	metrics.ProvisionsInFlight.Set(float64(len(f.entries)))
	return true
}

// Done releases the claim taken by Begin.
func (f *InFlight) Done(executionName string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.entries, executionName)
	metrics.ProvisionsInFlight.Set(float64(len(f.entries)))
}

func (f *InFlight) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

// ByGame returns a snapshot of in-flight counts per game (for monitoring/debugging)
func (f *InFlight) ByGame() map[string]int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	snapshot := make(map[string]int)
	for _, e := range f.entries {
		snapshot[e.Request.Game]++
	}
	return snapshot
}
