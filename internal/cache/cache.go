// Package cache implements the fingerprint-keyed response cache and
// in-flight deduplication described in spec.md §4.6: a bounded LRU with a
// pinning floor guarantee, plus at-most-one-concurrent-generation per
// fingerprint.
package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"tilecrawler/internal/fingerprint"
	"tilecrawler/internal/reqkind"
)

// Entry is a validated response plus its insertion timestamp.
type Entry struct {
	Value      map[string]any
	Kind       reqkind.Kind
	InsertedAt time.Time
}

// DefaultTTL is the soft per-kind cache lifetime. NPC_DIALOGUE does not need
// a special-cased invalidation rule: its fingerprint already incorporates
// the NPC's relationship bucket and goals (via the Context Assembler's
// tick-state section), so a meaningful state change produces a different
// fingerprint and is a natural cache miss rather than a stale hit.
var DefaultTTL = map[reqkind.Kind]time.Duration{
	reqkind.RoomDescription: 30 * time.Minute,
	reqkind.Enrichment:      30 * time.Minute,
	reqkind.NPCDialogue:     5 * time.Minute,
	reqkind.CombatNarration: 1 * time.Minute,
	reqkind.QuestGeneration: 60 * time.Minute,
	reqkind.Summarization:   0, // summaries are never served from cache
}

// Cache is the bounded LRU with a pinned floor guarantee and in-flight
// dedup. Pinned entries (state still present in the World State Store, e.g.
// the currently-visited room) live outside the LRU's eviction reach
// entirely, so re-entrant eviction callbacks are never needed.
type Cache struct {
	mu     sync.Mutex
	lru    *lru.Cache[fingerprint.ID, Entry]
	pinned map[fingerprint.ID]Entry
	group  singleflight.Group
}

// New builds a Cache with the given LRU capacity.
func New(capacity int) *Cache {
	l, _ := lru.New[fingerprint.ID, Entry](capacity)
	return &Cache{lru: l, pinned: map[fingerprint.ID]Entry{}}
}

// Get returns a cached entry if present and not past its soft TTL.
func (c *Cache) Get(fp fingerprint.ID) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.pinned[fp]; ok {
		return e, true
	}
	e, ok := c.lru.Get(fp)
	if !ok {
		return Entry{}, false
	}
	ttl, known := DefaultTTL[e.Kind]
	if known && ttl == 0 {
		c.lru.Remove(fp)
		return Entry{}, false
	}
	if ttl > 0 && time.Since(e.InsertedAt) > ttl {
		c.lru.Remove(fp)
		return Entry{}, false
	}
	return e, true
}

// Set inserts or refreshes an entry. If the fingerprint is pinned, the
// pinned copy is refreshed instead of going through the LRU.
func (c *Cache) Set(fp fingerprint.ID, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pinned[fp]; ok {
		c.pinned[fp] = e
		return
	}
	c.lru.Add(fp, e)
}

// Pin guarantees fp is never evicted, for as long as the corresponding
// World State Store content (e.g. the currently-visited room) remains
// live. An fp that is not currently cached is not recorded as pinned.
func (c *Cache) Pin(fp fingerprint.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, already := c.pinned[fp]; already {
		return
	}
	if e, ok := c.lru.Peek(fp); ok {
		c.pinned[fp] = e
		c.lru.Remove(fp)
	}
}

// Unpin releases the floor guarantee, returning fp to ordinary LRU
// eviction.
func (c *Cache) Unpin(fp fingerprint.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.pinned[fp]
	if !ok {
		return
	}
	delete(c.pinned, fp)
	c.lru.Add(fp, e)
}

// Generator produces a fresh validated value for a cache miss.
type Generator func(ctx context.Context) (map[string]any, error)

// GetOrGenerate implements both the cache lookup and the in-flight
// deduplication guarantee: a second caller with the same fingerprint awaits
// the same singleflight future rather than issuing a second LLM call, and
// once it completes every waiter observes the identical validated result.
// The cache is populated inside that future, before any waiter returns.
func (c *Cache) GetOrGenerate(ctx context.Context, fp fingerprint.ID, kind reqkind.Kind, gen Generator) (map[string]any, bool /* fromCache */, error) {
	if e, ok := c.Get(fp); ok {
		return e.Value, true, nil
	}

	v, err, _ := c.group.Do(string(fp), func() (any, error) {
		value, err := gen(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(fp, Entry{Value: value, Kind: kind, InsertedAt: time.Now()})
		return value, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(map[string]any), false, nil
}
