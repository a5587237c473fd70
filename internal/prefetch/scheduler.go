// Package prefetch hides LLM latency by generating likely-next content in
// the background after a player move or game load (spec.md §4.7).
package prefetch

import (
	"context"

	"tilecrawler/internal/cache"
	"tilecrawler/internal/fingerprint"
	"tilecrawler/internal/llmclient"
	"tilecrawler/internal/promptctx"
	"tilecrawler/internal/reqkind"
	"tilecrawler/internal/router"
	"tilecrawler/internal/validator"
	"tilecrawler/internal/worldstate"
)

// DefaultBudget is the per-tick prefetch cap (§4.7's "at most 4 per move").
const DefaultBudget = 4

// Apply is invoked once per successfully generated candidate, on a
// goroutine the Scheduler owns; callers route it back through their own
// single-writer serialization (the session Engine's work queue) rather than
// mutating the World State Store directly from here.
type Apply func(coord worldstate.Coordinate, fp fingerprint.ID, value map[string]any)

// Scheduler enqueues background ENRICHMENT work at the prefetch priority and
// carries it all the way through validation before handing the result to
// Apply. It never cancels in-flight work on a subsequent move: completed
// prefetch content is still usable on a future visit, it simply stops being
// the foreground concern.
type Scheduler struct {
	router *router.Router
	asm    *promptctx.Assembler
	cache  *cache.Cache
	val    *validator.Validator
	budget int
	model  string
}

// New builds a Scheduler bound to router, assembler, cache and validator.
func New(r *router.Router, asm *promptctx.Assembler, c *cache.Cache, v *validator.Validator, model string, budget int) *Scheduler {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Scheduler{router: r, asm: asm, cache: c, val: v, model: model, budget: budget}
}

// Candidate is one room worth enqueuing an ENRICHMENT request for.
type Candidate struct {
	Coord worldstate.Coordinate
	Room  *worldstate.Room
}

// Trigger runs after a successful player move or a game load: it launches,
// subject to the per-tick budget, one background goroutine per ungenerated
// neighbor of the current room and per NPC-rich room within two steps,
// calling apply with validated content as each completes.
func (s *Scheduler) Trigger(ctx context.Context, store *worldstate.Store, current worldstate.Coordinate, apply Apply) int {
	candidates := s.Candidates(store, current)
	if len(candidates) > s.budget {
		candidates = candidates[:s.budget]
	}

	launched := 0
	for _, c := range candidates {
		if c.Room.Enriched {
			continue
		}
		launched++
		go s.enrich(ctx, c, apply)
	}
	return launched
}

func (s *Scheduler) enrich(ctx context.Context, c Candidate, apply Apply) {
	payload, err := s.asm.Assemble(ctx, promptctx.Request{
		Kind:             reqkind.Enrichment,
		Model:            s.model,
		Room:             c.Room,
		TaskInstructions: "Enrich this room's description and atmosphere. Respond as JSON matching the declared schema.",
	})
	if err != nil {
		return
	}

	value, _, err := s.cache.GetOrGenerate(ctx, payload.Fingerprint, reqkind.Enrichment, func(ctx context.Context) (map[string]any, error) {
		cfg := reqkind.Table[reqkind.Enrichment]
		req := llmclient.Request{
			Model:        s.model,
			SystemPrompt: payload.Text,
			UserPrompt:   "Generate enrichment content.",
			Temperature:  cfg.Temperature,
			MaxTokens:    300,
			Deadline:     cfg.Deadline,
		}
		res := <-s.router.SubmitPrefetch(ctx, reqkind.Enrichment, req)
		out := s.val.Validate(reqkind.Enrichment, res.Text, payload.Fingerprint, c.Room)
		return out.Value, nil
	})
	if err != nil || value == nil {
		return
	}
	apply(c.Coord, payload.Fingerprint, value)
}

// Candidates gathers ungenerated neighbors of current (generating them
// lazily, matching the store's own lazy-generation contract) and NPC-rich
// rooms within two steps of current, reached through already-generated
// rooms.
func (s *Scheduler) Candidates(store *worldstate.Store, current worldstate.Coordinate) []Candidate {
	var out []Candidate
	seen := map[worldstate.Coordinate]bool{current: true}

	if room, ok := store.RoomAt(current); ok {
		for _, dir := range room.ExitList() {
			nc := current.Neighbor(dir)
			if seen[nc] {
				continue
			}
			seen[nc] = true
			neighbor := store.GetOrGenerateRoom(nc)
			out = append(out, Candidate{Coord: nc, Room: neighbor})
		}
	}

	visited := map[worldstate.Coordinate]bool{current: true}
	frontier := []worldstate.Coordinate{current}
	for step := 0; step < 2; step++ {
		var next []worldstate.Coordinate
		for _, c := range frontier {
			room, ok := store.RoomAt(c)
			if !ok {
				continue
			}
			for _, dir := range room.ExitList() {
				nc := c.Neighbor(dir)
				if visited[nc] {
					continue
				}
				visited[nc] = true
				if neighbor, ok := store.RoomAt(nc); ok {
					next = append(next, nc)
					if len(neighbor.NPCs) > 0 && !seen[nc] {
						seen[nc] = true
						out = append(out, Candidate{Coord: nc, Room: neighbor})
					}
				}
			}
		}
		frontier = next
	}
	return out
}
