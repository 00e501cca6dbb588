package conductor

import (
	"sync/atomic"

	"codegraph/internal/agent"
	"codegraph/internal/errs"
	"codegraph/internal/types"
)

// LoadBalancingStrategy selects which agent of a type receives the next
// task.
type LoadBalancingStrategy string

const (
	StrategyRoundRobin     LoadBalancingStrategy = "round-robin"
	StrategyLeastLoaded    LoadBalancingStrategy = "least-loaded"
	StrategyHighestPriority LoadBalancingStrategy = "highest-priority"
)

// available reports whether an agent can take on more work: idle or busy
// (not errored or shut down) and under 80% of its memory budget, per spec
// §4.2. Queue headroom is not checked here; Process rejects a full queue.
func available(a *agent.Base) bool {
	status := a.Status()
	if status != types.AgentIdle && status != types.AgentBusy {
		return false
	}
	return a.MemoryFraction() < 0.8
}

// roundRobinCounters hands out a monotonically increasing index per agent
// type so repeated calls cycle through candidates in order.
type roundRobinCounters struct {
	counters map[string]*uint64
}

func newRoundRobinCounters() *roundRobinCounters {
	return &roundRobinCounters{counters: make(map[string]*uint64)}
}

func (c *roundRobinCounters) next(typeName string, n int) int {
	counter, ok := c.counters[typeName]
	if !ok {
		var z uint64
		counter = &z
		c.counters[typeName] = counter
	}
	v := atomic.AddUint64(counter, 1)
	return int((v - 1) % uint64(n))
}

// SelectAgent picks one available agent of typeName from candidates using
// strategy. Callers pass the registry's ByType(typeName) result.
func (c *Conductor) SelectAgent(typeName string, candidates []*agent.Base) (*agent.Base, error) {
	var eligible []*agent.Base
	for _, a := range candidates {
		if available(a) {
			eligible = append(eligible, a)
		}
	}
	if len(eligible) == 0 {
		return nil, errs.New(errs.KindBackpressure, "no available agent of type: "+typeName).WithRetryAfter(500)
	}

	switch c.strategy {
	case StrategyLeastLoaded:
		best := eligible[0]
		for _, a := range eligible[1:] {
			if a.MemoryFraction() < best.MemoryFraction() {
				best = a
			}
		}
		return best, nil
	case StrategyHighestPriority:
		best := eligible[0]
		for _, a := range eligible[1:] {
			if a.Caps.Priority > best.Caps.Priority {
				best = a
			}
		}
		return best, nil
	default: // round-robin
		idx := c.roundRobin.next(typeName, len(eligible))
		return eligible[idx], nil
	}
}
