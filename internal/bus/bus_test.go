package bus

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExactSubscriptionReceivesMatchingTopic(t *testing.T) {
	b := New()
	defer b.Close()

	ch, unsub := b.Subscribe("index:updated")
	defer unsub()

	b.Emit("index:updated", map[string]any{"file": "a.go"}, "indexer", nil)
	b.Emit("other:topic", "ignored", "indexer", nil)

	select {
	case e := <-ch:
		require.Equal(t, "index:updated", e.Topic)
	case <-time.After(time.Second):
		t.Fatal("expected delivery")
	}

	select {
	case e := <-ch:
		t.Fatalf("unexpected second delivery: %+v", e)
	default:
	}
}

func TestRegexSubscriptionMatchesPrefix(t *testing.T) {
	b := New()
	defer b.Close()

	ch, unsub := b.SubscribeRegex(regexp.MustCompile(`^query:result:`))
	defer unsub()

	b.Emit("query:result:42", "ok", "query", nil)

	select {
	case e := <-ch:
		require.Equal(t, "query:result:42", e.Topic)
	case <-time.After(time.Second):
		t.Fatal("expected delivery")
	}
}

func TestEmitNeverBlocksOnFullSubscriber(t *testing.T) {
	b := New()
	defer b.Close()

	_, unsub := b.Subscribe("flood")
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*4; i++ {
			b.Emit("flood", i, "test", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a full subscriber channel")
	}
}

func TestQueryExcludesExpiredEntries(t *testing.T) {
	b := New()
	defer b.Close()

	ttl := time.Millisecond
	b.Emit("cache:invalidate", "expiring", "query", &ttl)
	longTTL := time.Hour
	b.Emit("cache:invalidate", "fresh", "query", &longTTL)

	time.Sleep(5 * time.Millisecond)

	entries := b.Query("cache:invalidate", 0)
	require.Len(t, entries, 1)
	require.Equal(t, "fresh", entries[0].Data)
}

func TestQueryRespectsLimit(t *testing.T) {
	b := New()
	defer b.Close()
	for i := 0; i < 5; i++ {
		b.Emit("t", i, "src", nil)
	}
	entries := b.Query("t", 2)
	require.Len(t, entries, 2)
	require.Equal(t, 3, entries[0].Data)
	require.Equal(t, 4, entries[1].Data)
}
