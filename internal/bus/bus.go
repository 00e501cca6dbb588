// Package bus implements the process-wide Knowledge Bus: an in-process
// publish/subscribe fabric with ordered per-topic delivery, optional
// per-entry TTL, and both exact and regex topic subscriptions. Delivery
// never blocks the publisher — a full subscriber channel drops the entry
// rather than stall Emit.
package bus

import (
	"regexp"
	"sync"
	"time"

	"codegraph/internal/logging"
	"codegraph/internal/types"
)

const subscriberBuffer = 64

type subscriber struct {
	id      uint64
	exact   string
	pattern *regexp.Regexp
	ch      chan types.BusEntry
}

// Bus is the singleton knowledge bus. Create one with New and share it
// across every agent; the spec treats it as a process-wide singleton with
// explicit init/teardown, so Bus deliberately has no package-level instance —
// callers wire it explicitly to avoid implicit reinitialization.
type Bus struct {
	mu        sync.RWMutex
	subs      []*subscriber
	nextID    uint64
	history   map[string][]types.BusEntry
	closed    bool
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{history: make(map[string][]types.BusEntry)}
}

// Subscribe registers an exact-topic subscriber and returns a channel of
// entries plus an unsubscribe function.
func (b *Bus) Subscribe(topic string) (<-chan types.BusEntry, func()) {
	return b.subscribe(topic, nil)
}

// SubscribeRegex registers a regex-topic subscriber; any published topic
// matching the pattern is delivered.
func (b *Bus) SubscribeRegex(pattern *regexp.Regexp) (<-chan types.BusEntry, func()) {
	return b.subscribe("", pattern)
}

func (b *Bus) subscribe(topic string, pattern *regexp.Regexp) (<-chan types.BusEntry, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	sub := &subscriber{id: id, exact: topic, pattern: pattern, ch: make(chan types.BusEntry, subscriberBuffer)}
	b.subs = append(b.subs, sub)

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				close(s.ch)
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
	return sub.ch, unsub
}

// Emit publishes an entry. Delivery to each matching subscriber is
// non-blocking: a full channel drops the entry and logs a warning rather
// than stall the publisher.
func (b *Bus) Emit(topic string, data any, source string, ttl *time.Duration) types.BusEntry {
	entry := types.BusEntry{Topic: topic, Data: data, Source: source, Timestamp: time.Now()}
	if ttl != nil {
		exp := entry.Timestamp.Add(*ttl)
		entry.ExpiresAt = &exp
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return entry
	}
	b.history[topic] = append(b.history[topic], entry)
	matching := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		if s.exact != "" && s.exact == topic {
			matching = append(matching, s)
		} else if s.pattern != nil && s.pattern.MatchString(topic) {
			matching = append(matching, s)
		}
	}
	b.mu.Unlock()

	log := logging.Get(logging.Bus)
	for _, s := range matching {
		select {
		case s.ch <- entry:
		default:
			log.Warn("dropping entry for full subscriber", map[string]any{"topic": topic, "subscriber": s.id})
		}
	}
	return entry
}

// Query returns the non-expired entries published on topic, most recent
// last, capped at limit (0 = unbounded).
func (b *Bus) Query(topic string, limit int) []types.BusEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	all := b.history[topic]
	live := all[:0:0]
	for _, e := range all {
		if !e.Expired(now) {
			live = append(live, e)
		}
	}
	b.history[topic] = live

	if limit > 0 && len(live) > limit {
		live = live[len(live)-limit:]
	}
	out := make([]types.BusEntry, len(live))
	copy(out, live)
	return out
}

// Close shuts the bus down: every subscriber channel is closed and further
// Emit calls are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, s := range b.subs {
		close(s.ch)
	}
	b.subs = nil
}

// Stats summarizes bus activity for diagnostics/metrics.
type Stats struct {
	Subscribers int
	Topics      int
}

func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Stats{Subscribers: len(b.subs), Topics: len(b.history)}
}
