package agent

import (
	"fmt"
	"sort"
	"sync"
)

// Router maps an agent ID to the Loop serving it. Single-operator mode has
// a small, fixed set of agents — the default plus whatever names appear in
// agents.list — all created eagerly at startup, so Router is a simple
// read-mostly lookup table rather than a lazy per-request resolver.
type Router struct {
	mu    sync.RWMutex
	loops map[string]*Loop
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{loops: make(map[string]*Loop)}
}

// Add registers a Loop under agentID, replacing any existing one.
func (r *Router) Add(agentID string, loop *Loop) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loops[agentID] = loop
}

// Get returns the Loop for agentID. An empty agentID resolves to "default".
func (r *Router) Get(agentID string) (*Loop, error) {
	if agentID == "" {
		agentID = "default"
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	loop, ok := r.loops[agentID]
	if !ok {
		return nil, fmt.Errorf("unknown agent %q", agentID)
	}
	return loop, nil
}

// Remove drops agentID from the router, e.g. after a config reload removes
// it from agents.list.
func (r *Router) Remove(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.loops, agentID)
}

// List returns all registered agent IDs, sorted.
func (r *Router) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.loops))
	for id := range r.loops {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
