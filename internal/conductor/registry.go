// Package conductor implements the Conductor (spec §4.2): task
// decomposition, complexity scoring, proposal generation, delegation to
// registered agents, mandatory-delegation enforcement, a periodic health
// loop, and backpressure reporting. It is grounded on the teacher's
// ShardManager registry/lifecycle idiom, generalized from LLM shards to
// the plain task-processing agents in internal/agent.
package conductor

import (
	"sort"
	"sync"

	"codegraph/internal/agent"
)

// Registry tracks every agent the Conductor can delegate to, indexed by
// both id and type, mirroring the teacher's ShardManager.RegisterShard /
// GetActiveShards split.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*agent.Base
}

// NewRegistry builds an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]*agent.Base)}
}

// Register adds a running agent to the registry.
func (r *Registry) Register(a *agent.Base) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.ID] = a
}

// Unregister removes an agent, used when an agent is torn down.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, id)
}

// Get returns the agent with the given id, if registered.
func (r *Registry) Get(id string) (*agent.Base, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok
}

// ByType returns every registered agent of the given type, sorted by id for
// deterministic round-robin ordering.
func (r *Registry) ByType(typeName string) []*agent.Base {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*agent.Base
	for _, a := range r.agents {
		if a.Type == typeName {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// All returns every registered agent, sorted by id.
func (r *Registry) All() []*agent.Base {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*agent.Base, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActiveCount returns the number of registered agents, mirroring the
// teacher's ShardManager.GetActiveShardCount.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
