// Package agent defines the base cooperative-worker contract shared by the
// parser, indexer, dev, query, and semantic agents (spec §4.1). It mirrors
// the teacher's ShardAgent lifecycle (status, config, queue, metrics) but
// trades the teacher's LLM-shard semantics for a plain task-processing
// contract suited to a retrieval engine: canHandle/process, a bounded
// queue, a background resource sampler, and AgentBusy rejection.
package agent

import (
	"context"
	"runtime"
	"sync"
	"time"

	"codegraph/internal/bus"
	"codegraph/internal/errs"
	"codegraph/internal/logging"
	"codegraph/internal/types"
)

// Capabilities describes an agent's static resource profile.
type Capabilities struct {
	MaxConcurrency int
	MemoryLimitMB  int
	Priority       int
}

// Handler performs the actual work for a task. Implementations are supplied
// by the concrete agents (parser, indexer, dev, query, semantic); Base only
// owns the admission and bookkeeping around the call.
type Handler interface {
	// Accepts reports whether this handler recognizes the task's type. Base
	// calls this only after its own structural checks (idle, queue, memory)
	// pass.
	Accepts(task types.Task) bool
	// Handle executes the task and returns its result.
	Handle(ctx context.Context, task types.Task) (any, error)
}

// Base implements the common admission, queueing, and metrics machinery
// every concrete agent embeds.
type Base struct {
	ID    string
	Type  string
	Caps  Capabilities
	Bus   *bus.Bus
	Log   *logging.Logger

	mu      sync.RWMutex
	status  types.AgentStatus
	queue   int
	metrics types.AgentMetrics

	handler Handler

	stopSampler chan struct{}
	samplerOnce sync.Once

	defaultMaxConcurrency int
}

// New builds a Base agent bound to handler and wires its resources:adjusted
// subscription (spec §4.1 "every agent subscribes to resources:adjusted").
func New(id, typeName string, caps Capabilities, b *bus.Bus, handler Handler) *Base {
	if caps.MaxConcurrency <= 0 {
		caps.MaxConcurrency = 1
	}
	a := &Base{
		ID:                    id,
		Type:                  typeName,
		Caps:                  caps,
		Bus:                   b,
		Log:                   logging.Get(logging.Agent),
		status:                types.AgentIdle,
		handler:               handler,
		stopSampler:           make(chan struct{}),
		defaultMaxConcurrency: caps.MaxConcurrency,
	}
	a.metrics.LastActivity = time.Now()

	if b != nil {
		go a.watchResources()
	}
	go a.sampleResources()

	return a
}

// watchResources subscribes to resources:adjusted for the agent's lifetime.
func (a *Base) watchResources() {
	ch, unsub := a.Bus.Subscribe("resources:adjusted")
	defer unsub()
	for {
		select {
		case entry, ok := <-ch:
			if !ok {
				return
			}
			a.onResourcesAdjusted(entry.Data)
		case <-a.stopSampler:
			return
		}
	}
}

// onResourcesAdjusted clamps MaxConcurrency to [1, defaultMaxConcurrency*2]
// per the spec's testable property on effective concurrency after a budget
// announcement.
func (a *Base) onResourcesAdjusted(data any) {
	payload, ok := data.(map[string]any)
	if !ok {
		return
	}
	newLimit, ok := payload["newAgentLimit"].(int)
	if !ok {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	clamped := newLimit
	if clamped < 1 {
		clamped = 1
	}
	if max := a.defaultMaxConcurrency * 2; clamped > max {
		clamped = max
	}
	a.Caps.MaxConcurrency = clamped
	a.Log.Debug("agent concurrency adjusted", map[string]any{"agent": a.ID, "maxConcurrency": clamped})
}

// sampleResources runs a ~1Hz sampler updating the agent's memory snapshot,
// mirroring the teacher's LimitsEnforcer.GetMemoryUsage idiom.
func (a *Base) sampleResources() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			a.mu.Lock()
			a.metrics.MemoryMB = float64(m.Alloc) / 1024 / 1024
			a.mu.Unlock()
		case <-a.stopSampler:
			return
		}
	}
}

// CanHandle implements the spec's canHandle predicate: it rejects an agent
// that is neither idle nor busy (errored or shut down), a full queue,
// memory over 90% of the limit, or a handler-specific rejection.
func (a *Base) CanHandle(task types.Task) (bool, types.RejectReason) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.status != types.AgentIdle && a.status != types.AgentBusy {
		return false, types.ReasonNotIdle
	}
	if a.queue >= a.Caps.MaxConcurrency {
		return false, types.ReasonQueueFull
	}
	if a.Caps.MemoryLimitMB > 0 {
		limitMB := float64(a.Caps.MemoryLimitMB)
		if a.metrics.MemoryMB > limitMB*0.9 {
			return false, types.ReasonMemoryLimit
		}
	}
	if a.handler != nil && !a.handler.Accepts(task) {
		return false, types.ReasonUnsupportedTask
	}
	return true, ""
}

// Process runs task through the handler if CanHandle allows it; otherwise
// it fails fast with an AgentBusy error carrying the rejection reason.
func (a *Base) Process(ctx context.Context, task types.Task) (any, error) {
	ok, reason := a.CanHandle(task)
	if !ok {
		retryAfterMs := retryHintFor(reason)
		a.Log.Warn("task rejected", map[string]any{"agent": a.ID, "reason": string(reason)})
		return nil, errs.AgentBusyError(string(reason), retryAfterMs)
	}

	a.mu.Lock()
	a.queue++
	a.status = types.AgentBusy
	a.mu.Unlock()

	timer := time.Now()
	result, err := a.handler.Handle(ctx, task)
	elapsed := time.Since(timer)

	a.mu.Lock()
	a.queue--
	if err != nil {
		a.metrics.TasksFailed++
	} else {
		a.metrics.TasksCompleted++
	}
	a.metrics.QueueLength = a.queue
	a.metrics.LastActivity = time.Now()
	if a.queue == 0 {
		a.status = types.AgentIdle
	}
	a.mu.Unlock()

	topic := "task:completed"
	if err != nil {
		topic = "task:failed"
	}
	if a.Bus != nil {
		a.Bus.Emit(topic, map[string]any{
			"agent":    a.ID,
			"taskId":   task.ID,
			"taskType": task.Type,
			"elapsed":  elapsed.String(),
		}, a.ID, nil)
	}

	return result, err
}

// retryHintFor maps a rejection reason to a retryAfterMs hint; queue-full
// conditions clear fastest, memory pressure takes longer to recover from.
func retryHintFor(reason types.RejectReason) int {
	switch reason {
	case types.ReasonQueueFull:
		return 250
	case types.ReasonMemoryLimit:
		return 2000
	case types.ReasonNotIdle:
		return 500
	default:
		return 1000
	}
}

// Status returns the agent's current lifecycle state.
func (a *Base) Status() types.AgentStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// SetStatus forces the agent's status, used by the Conductor's health loop
// to mark agents as errored.
func (a *Base) SetStatus(s types.AgentStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = s
}

// Metrics returns a snapshot of the agent's rolling counters.
func (a *Base) Metrics() types.AgentMetrics {
	a.mu.RLock()
	defer a.mu.RUnlock()
	m := a.metrics
	m.QueueLength = a.queue
	return m
}

// MemoryFraction returns the agent's current memory usage as a fraction of
// its configured limit, used by the Conductor's least-loaded policy.
func (a *Base) MemoryFraction() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.Caps.MemoryLimitMB <= 0 {
		return 0
	}
	return a.metrics.MemoryMB / float64(a.Caps.MemoryLimitMB)
}

// Send delivers a message point-to-point through the bus, tagged with the
// sender's own topic-less conventions: callers choose the topic.
func (a *Base) Send(topic string, payload any) {
	if a.Bus == nil {
		return
	}
	a.Bus.Emit(topic, types.AgentMessage{
		From:      a.ID,
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now(),
	}, a.ID, nil)
}

// Stop halts the background sampler and resource-adjustment watcher.
func (a *Base) Stop() {
	a.samplerOnce.Do(func() {
		close(a.stopSampler)
	})
	a.mu.Lock()
	a.status = types.AgentShutdown
	a.mu.Unlock()
}
