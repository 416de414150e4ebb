package flow

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Registry hands out one UploadFlow per browser session. Flows are
// transient: they expire after a period of inactivity, matching the
// page-visit lifetime of the upload context.
type Registry struct {
	mu        sync.Mutex
	flows     *cache.Cache
	predictor Predictor
}

// Default lifetime of an idle upload flow.
const (
	defaultFlowTTL      = 30 * time.Minute
	flowCleanupInterval = 10 * time.Minute
)

// NewRegistry creates a registry whose flows use the given predictor.
func NewRegistry(predictor Predictor) *Registry {
	return &Registry{
		flows:     cache.New(defaultFlowTTL, flowCleanupInterval),
		predictor: predictor,
	}
}

// Get returns the flow for a session key, creating it on first use. Each
// access renews the expiry so an active session keeps its flow.
func (r *Registry) Get(sessionKey string) *UploadFlow {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.flows.Get(sessionKey); ok {
		f := v.(*UploadFlow)
		r.flows.Set(sessionKey, f, cache.DefaultExpiration)
		return f
	}
	f := New(r.predictor)
	r.flows.Set(sessionKey, f, cache.DefaultExpiration)
	return f
}

// Drop removes a session's flow, discarding its state.
func (r *Registry) Drop(sessionKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flows.Delete(sessionKey)
}
