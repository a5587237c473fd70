package cache_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"tilecrawler/internal/cache"
	"tilecrawler/internal/fingerprint"
	"tilecrawler/internal/reqkind"
)

func TestCache_GetOrGenerate_CacheHitReturnsEqualValue(t *testing.T) {
	t.Parallel()

	c := cache.New(8)
	fp := fingerprint.ID("room-1")
	calls := 0
	gen := func(ctx context.Context) (map[string]any, error) {
		calls++
		return map[string]any{"description": "a dusty alcove"}, nil
	}

	first, fromCache, err := c.GetOrGenerate(context.Background(), fp, reqkind.RoomDescription, gen)
	if err != nil {
		t.Fatalf("first GetOrGenerate: %v", err)
	}
	if fromCache {
		t.Error("first call reported fromCache = true, want false")
	}

	second, fromCache, err := c.GetOrGenerate(context.Background(), fp, reqkind.RoomDescription, gen)
	if err != nil {
		t.Fatalf("second GetOrGenerate: %v", err)
	}
	if !fromCache {
		t.Error("second call reported fromCache = false, want true")
	}
	if second["description"] != first["description"] {
		t.Errorf("cache hit value = %v, want %v", second, first)
	}
	if calls != 1 {
		t.Errorf("generator called %d times, want 1", calls)
	}
}

func TestCache_GetOrGenerate_DedupsConcurrentCallsForSameFingerprint(t *testing.T) {
	t.Parallel()

	c := cache.New(8)
	fp := fingerprint.ID("npc-hermit")
	var calls int32
	release := make(chan struct{})
	gen := func(ctx context.Context) (map[string]any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return map[string]any{"dialogue": "Welcome, traveler."}, nil
	}

	const waiters = 5
	var wg sync.WaitGroup
	wg.Add(waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrGenerate(context.Background(), fp, reqkind.NPCDialogue, gen)
			if err != nil {
				t.Errorf("GetOrGenerate: %v", err)
			}
		}()
	}
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("generator invoked %d times across %d concurrent callers, want exactly 1", got, waiters)
	}
}

func TestCache_PinSurvivesEviction(t *testing.T) {
	t.Parallel()

	c := cache.New(1)
	pinned := fingerprint.ID("room-origin")
	c.Set(pinned, cache.Entry{Value: map[string]any{"description": "the origin"}, Kind: reqkind.RoomDescription})
	c.Pin(pinned)

	// Fill the single LRU slot with a different entry; the pinned entry
	// must not be evicted since it lives outside the LRU's reach.
	c.Set(fingerprint.ID("room-other"), cache.Entry{Value: map[string]any{"description": "elsewhere"}, Kind: reqkind.RoomDescription})

	if _, ok := c.Get(pinned); !ok {
		t.Error("pinned entry was evicted")
	}
}
