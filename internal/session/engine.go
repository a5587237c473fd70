// Package session implements the Intelligence Core's concurrency model
// (spec.md §5): a single-threaded, cooperative task loop that serializes
// every mutation of the World State Store, Narrative Memory, and Cache
// through one work queue, while LLM calls and background prefetch run on
// the Request Router's own goroutines and report back through that same
// queue.
package session

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"tilecrawler/internal/action"
	"tilecrawler/internal/cache"
	"tilecrawler/internal/eventstream"
	"tilecrawler/internal/fingerprint"
	"tilecrawler/internal/mcp"
	"tilecrawler/internal/narrative"
	"tilecrawler/internal/prefetch"
	"tilecrawler/internal/promptctx"
	"tilecrawler/internal/router"
	"tilecrawler/internal/save"
	"tilecrawler/internal/telemetry"
	"tilecrawler/internal/validator"
	"tilecrawler/internal/worldstate"
)

// Engine owns every piece of mutable session state and is the only thing
// permitted to mutate it; all access happens through closures pushed onto
// work, which a single goroutine drains in order.
type Engine struct {
	store *worldstate.Store
	mem   *narrative.Memory

	asm      *promptctx.Assembler
	router   *router.Router
	val      *validator.Validator
	cache    *cache.Cache
	prefetch *prefetch.Scheduler
	stream   *eventstream.Stream
	logger   *telemetry.Logger
	tracer   trace.Tracer

	model    string
	savePath string
	quests   map[string]save.Quest
	catalog  mcp.QuestCatalog

	// roomFP/pinnedCoord/pinnedFP/hasPinned track the §4.6 floor guarantee:
	// whichever fingerprint backs the currently-occupied room's content
	// stays pinned in the Cache, and is released the moment the player
	// moves on.
	roomFP      map[worldstate.Coordinate]fingerprint.ID
	pinnedCoord worldstate.Coordinate
	pinnedFP    fingerprint.ID
	hasPinned   bool

	work chan func()
}

// Config supplies every component the Engine wires together. Components are
// constructed by the caller (the demo harness, or a test) so each can be
// swapped independently — e.g. a recorded.Backend in place of OpenAIBackend.
type Config struct {
	Store    *worldstate.Store
	Memory   *narrative.Memory
	Assembler *promptctx.Assembler
	Router   *router.Router
	Validator *validator.Validator
	Cache    *cache.Cache
	Prefetch *prefetch.Scheduler
	Stream   *eventstream.Stream
	Logger   *telemetry.Logger
	Tracer   trace.Tracer
	Model    string
	SavePath string
}

// New builds an Engine and starts its single work-loop goroutine.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = telemetry.NewLogger(nil, "tilecrawler ")
	}
	if cfg.Tracer == nil {
		cfg.Tracer = trace.NewNoopTracerProvider().Tracer("tilecrawler/session")
	}
	e := &Engine{
		store:    cfg.Store,
		mem:      cfg.Memory,
		asm:      cfg.Assembler,
		router:   cfg.Router,
		val:      cfg.Validator,
		cache:    cfg.Cache,
		prefetch: cfg.Prefetch,
		stream:   cfg.Stream,
		logger:   cfg.Logger,
		tracer:   cfg.Tracer,
		model:    cfg.Model,
		savePath: cfg.SavePath,
		quests:   map[string]save.Quest{},
		roomFP:   map[worldstate.Coordinate]fingerprint.ID{},
		work:     make(chan func(), 16),
	}
	go e.run()
	return e
}

func (e *Engine) run() {
	for fn := range e.work {
		fn()
	}
}

// Submit enqueues act for processing and returns a channel the caller reads
// exactly once; the task loop itself is never exposed to the caller, only
// this channel is, matching §5's "actions observed through channels, never
// a callback invoked from inside the loop."
func (e *Engine) Submit(ctx context.Context, act action.Action) <-chan action.Bundle {
	result := make(chan action.Bundle, 1)
	e.work <- func() {
		ctx, span := e.tracer.Start(ctx, "session.process."+string(act.Kind))
		defer span.End()
		result <- e.process(ctx, act)
	}
	return result
}

// Stream returns the outbound event stream deltas are published on.
func (e *Engine) Stream() *eventstream.Stream { return e.stream }

// Player returns the live player record. Safe to call only from outside the
// work loop for read-mostly UI rendering between actions; any caller that
// also wants to mutate must route through Submit.
func (e *Engine) Player() *worldstate.Player { return e.store.Player() }

func (e *Engine) process(ctx context.Context, act action.Action) action.Bundle {
	switch act.Kind {
	case action.Move:
		return e.handleMove(ctx, act)
	case action.Attack:
		return e.handleAttack(ctx, act)
	case action.Flee:
		return e.handleFlee(ctx, act)
	case action.Take:
		return e.handleTake(ctx, act)
	case action.Use:
		return e.handleUse(ctx, act)
	case action.Talk:
		return e.handleTalk(ctx, act)
	case action.Rest:
		return e.handleRest(ctx, act)
	case action.SaveGame:
		return e.handleSave(ctx, act)
	case action.LoadGame:
		return e.handleLoad(ctx, act)
	case action.NewGame:
		return e.handleNewGame(ctx, act)
	default:
		return action.Bundle{Success: false, Message: "unrecognized action"}
	}
}

// applyPrefetchResult is the Apply callback passed to the Prefetch
// Scheduler: it posts the mutation back through e.work so a background
// generation never mutates the World State Store outside the single-writer
// loop, even though the generation itself ran concurrently.
func (e *Engine) applyPrefetchResult(coord worldstate.Coordinate, fp fingerprint.ID, value map[string]any) {
	e.work <- func() {
		desc, _ := value["description"].(string)
		if desc == "" {
			return
		}
		_ = e.store.ApplyRoomChange(coord, worldstate.RoomChange{
			Kind: worldstate.ChangeDescriptionUp,
			Text: desc,
		})
		e.recordRoomFP(coord, fp)
		if room, ok := e.store.RoomAt(coord); ok {
			e.stream.Publish(eventstream.Delta{
				UpdatedState: e.store.Player(),
				RoomChanges:  []worldstate.RoomChange{{Kind: worldstate.ChangeDescriptionUp, Text: room.Description}},
			})
		}
	}
}

// repinRoom updates the floor guarantee when the player's room changes:
// the previous room's pinned fingerprint (if any) returns to ordinary LRU
// eviction, and the new room's fingerprint (if already known from an
// earlier visit or a completed background generation) is pinned.
func (e *Engine) repinRoom(coord worldstate.Coordinate) {
	if e.hasPinned && e.pinnedCoord == coord {
		return
	}
	if e.pinnedFP != "" {
		e.cache.Unpin(e.pinnedFP)
	}
	e.pinnedCoord = coord
	e.hasPinned = true
	e.pinnedFP = ""
	if fp, ok := e.roomFP[coord]; ok {
		e.cache.Pin(fp)
		e.pinnedFP = fp
	}
}

// recordRoomFP remembers which fingerprint a room's content was generated
// under, and pins it immediately if the player is still standing in that
// room (the generation that produced it may well have finished after the
// player already moved on).
func (e *Engine) recordRoomFP(coord worldstate.Coordinate, fp fingerprint.ID) {
	if fp == "" {
		return
	}
	e.roomFP[coord] = fp
	if e.hasPinned && e.pinnedCoord == coord {
		e.cache.Pin(fp)
		e.pinnedFP = fp
	}
}

// resetPinning releases any floor guarantee and forgets every recorded
// room fingerprint; called whenever the store/memory themselves are
// replaced wholesale (new game, load).
func (e *Engine) resetPinning() {
	if e.pinnedFP != "" {
		e.cache.Unpin(e.pinnedFP)
	}
	e.roomFP = map[worldstate.Coordinate]fingerprint.ID{}
	e.pinnedFP = ""
	e.hasPinned = false
}

func (e *Engine) runPrefetch(ctx context.Context, current worldstate.Coordinate) {
	if e.prefetch == nil {
		return
	}
	e.prefetch.Trigger(ctx, e.store, current, e.applyPrefetchResult)
}

func (e *Engine) publishDelta(player *worldstate.Player, events []narrative.Event, changes []worldstate.RoomChange) {
	e.stream.Publish(eventstream.Delta{
		UpdatedState:       player,
		RoomChanges:        changes,
		NarrativeAdditions: events,
	})
}
