package conductor

import (
	"context"
	"sync"
	"time"

	"codegraph/internal/agent"
	"codegraph/internal/bus"
	"codegraph/internal/errs"
	"codegraph/internal/logging"
	"codegraph/internal/types"
)

// Options configures a new Conductor, mirroring config.ConductorConfig.
type Options struct {
	Strategy            LoadBalancingStrategy
	ComplexityThreshold int
	MandatoryDelegation bool
	TaskQueueLimit      int
	HealthInterval      time.Duration
	StaleAfter          time.Duration
}

// Conductor orchestrates task decomposition, proposal approval, and
// delegation to registered agents (spec §4.2), adapted from the teacher's
// ShardManager lifecycle: a central registry, a periodic health sweep, and
// a backpressure status surfaced to callers before they overload the queue.
type Conductor struct {
	Registry *Registry

	bus    *bus.Bus
	log    *logging.Logger
	proposals *proposalCache
	roundRobin *roundRobinCounters
	strategy LoadBalancingStrategy

	complexityThreshold int
	mandatoryDelegation bool
	taskQueueLimit      int
	staleAfter          time.Duration

	mu      sync.Mutex
	pending map[string]types.Task

	stop chan struct{}
}

// New builds a Conductor bound to b for event publication.
func New(b *bus.Bus, opts Options) *Conductor {
	if opts.Strategy == "" {
		opts.Strategy = StrategyLeastLoaded
	}
	if opts.ComplexityThreshold <= 0 {
		opts.ComplexityThreshold = 8
	}
	if opts.TaskQueueLimit <= 0 {
		opts.TaskQueueLimit = 500
	}
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = 5 * time.Second
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 30 * time.Second
	}

	c := &Conductor{
		Registry:            NewRegistry(),
		bus:                 b,
		log:                 logging.Get(logging.Conductor),
		proposals:           newProposalCache(),
		roundRobin:          newRoundRobinCounters(),
		strategy:            opts.Strategy,
		complexityThreshold: opts.ComplexityThreshold,
		mandatoryDelegation: opts.MandatoryDelegation,
		taskQueueLimit:      opts.TaskQueueLimit,
		staleAfter:          opts.StaleAfter,
		pending:             make(map[string]types.Task),
		stop:                make(chan struct{}),
	}
	go c.healthLoop(opts.HealthInterval)
	return c
}

// Stop ends the Conductor's health loop.
func (c *Conductor) Stop() { close(c.stop) }

// Submit admits task into the Conductor, rejecting it outright if it
// attempts to bypass delegation or if the queue is already full (spec
// §4.2's mandatory-delegation and backpressure rules).
func (c *Conductor) Submit(ctx context.Context, task types.Task) error {
	if c.mandatoryDelegation && bypassesDelegation(task) {
		return errs.New(errs.KindInvariantViolation, "task attempted to bypass mandatory delegation").
			WithContext("taskId", task.ID, "taskType", task.Type)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) >= c.taskQueueLimit {
		return errs.New(errs.KindBackpressure, "task queue limit reached").WithRetryAfter(1000)
	}
	c.pending[task.ID] = task
	c.checkBackpressure()
	return nil
}

// bypassesDelegation reports whether task's payload or type tries to skip
// the Conductor's decomposition/delegation path.
func bypassesDelegation(task types.Task) bool {
	if task.Type == "direct" {
		return true
	}
	if v, _ := task.Payload["directImplementation"].(bool); v {
		return true
	}
	if v, _ := task.Payload["bypassDelegation"].(bool); v {
		return true
	}
	return false
}

// Complete removes a task from the pending set once it has been delegated
// and finished (successfully or not).
func (c *Conductor) Complete(taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, taskID)
}

// BackpressureStatus mirrors the teacher's SpawnQueue.GetBackpressureStatus
// shape, adapted from shard-spawn slots to task-queue capacity.
type BackpressureStatus struct {
	QueueDepth       int     `json:"queueDepth"`
	QueueUtilization float64 `json:"queueUtilization"`
	AvailableSlots   int     `json:"availableSlots"`
	Accepting        bool    `json:"accepting"`
	Reason           string  `json:"reason,omitempty"`
}

// GetBackpressureStatus reports the Conductor's current queue pressure.
func (c *Conductor) GetBackpressureStatus() BackpressureStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	depth := len(c.pending)
	util := float64(depth) / float64(c.taskQueueLimit)
	status := BackpressureStatus{
		QueueDepth:       depth,
		QueueUtilization: util,
		AvailableSlots:   c.taskQueueLimit - depth,
		Accepting:        depth < c.taskQueueLimit,
	}
	if !status.Accepting {
		status.Reason = "task queue limit reached"
	}
	return status
}

// checkBackpressure emits an incident event once pending exceeds 80% of
// taskQueueLimit. Caller must hold c.mu.
func (c *Conductor) checkBackpressure() {
	if c.bus == nil {
		return
	}
	util := float64(len(c.pending)) / float64(c.taskQueueLimit)
	if util > 0.8 {
		c.bus.Emit("conductor:backpressure", map[string]any{
			"queueDepth":       len(c.pending),
			"queueUtilization": util,
		}, "conductor", nil)
	}
}

// GenerateProposals exposes the cached method templates for task.Type.
func (c *Conductor) GenerateProposals(task types.Task) []Proposal {
	return c.proposals.GenerateProposals(task)
}

// RequiresApproval reports whether task's complexity score exceeds the
// configured threshold and must be proposed to the caller before
// decomposition proceeds automatically. Indexing-class tasks are exempt
// regardless of score (spec §4.2 item 1): they're recognized either by
// task type or by a "directory" payload field.
func (c *Conductor) RequiresApproval(task types.Task) bool {
	if isIndexingClass(task) {
		return false
	}
	return ComplexityScore(task) > c.complexityThreshold
}

func isIndexingClass(task types.Task) bool {
	if task.Type == "index" {
		return true
	}
	if _, ok := task.Payload["directory"]; ok {
		return true
	}
	return false
}

// healthLoop runs every interval, flagging errored, memory-overrun, or
// stale agents and emitting a heartbeat, per spec §4.2.
func (c *Conductor) healthLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.runHealthCheck()
		case <-c.stop:
			return
		}
	}
}

func (c *Conductor) runHealthCheck() {
	now := time.Now()
	var flagged []string
	for _, a := range c.Registry.All() {
		m := a.Metrics()
		switch {
		case a.Status() == types.AgentError:
			flagged = append(flagged, a.ID)
		case a.MemoryFraction() >= 1.0:
			flagged = append(flagged, a.ID)
			a.SetStatus(types.AgentError)
		case !m.LastActivity.IsZero() && now.Sub(m.LastActivity) > c.staleAfter && a.Status() == types.AgentBusy:
			flagged = append(flagged, a.ID)
			a.SetStatus(types.AgentError)
		}
	}
	if c.bus != nil {
		c.bus.Emit("conductor:heartbeat", map[string]any{
			"activeAgents": c.Registry.ActiveCount(),
			"flagged":      flagged,
			"timestamp":    now,
		}, "conductor", nil)
	}
	if len(flagged) > 0 {
		c.log.Warn("agents flagged unhealthy", map[string]any{"agents": flagged})
	}
}

// DelegateWithFailover sends task to an available agent of typeName,
// rerouting to a different same-type agent exactly once on failure before
// propagating the error to the caller (spec §4.2).
func (c *Conductor) DelegateWithFailover(ctx context.Context, typeName string, task types.Task) (any, error) {
	candidates := c.Registry.ByType(typeName)
	tried := make(map[string]bool)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		var remaining []*agent.Base
		for _, a := range candidates {
			if !tried[a.ID] {
				remaining = append(remaining, a)
			}
		}
		chosen, err := c.SelectAgent(typeName, remaining)
		if err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return nil, lastErr
		}
		tried[chosen.ID] = true

		result, err := chosen.Process(ctx, task)
		if err == nil {
			return result, nil
		}
		lastErr = err
		c.log.Warn("delegation attempt failed", map[string]any{"agent": chosen.ID, "taskId": task.ID, "attempt": attempt + 1, "error": err.Error()})
	}
	return nil, lastErr
}
