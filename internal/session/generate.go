package session

import (
	"context"
	"reflect"
	"strings"

	"tilecrawler/internal/fingerprint"
	"tilecrawler/internal/llmclient"
	"tilecrawler/internal/narrative"
	"tilecrawler/internal/promptctx"
	"tilecrawler/internal/reqkind"
	"tilecrawler/internal/telemetry"
	"tilecrawler/internal/validator"
	"tilecrawler/internal/worldstate"
)

// generateContent assembles context for req, resolves it through
// resolveFromPayload, and always returns a schema-valid value — either a
// validated LLM response or the deterministic procedural fallback. Used by
// every request kind except ROOM_DESCRIPTION's first-visit generation
// (handleMove runs Assemble and resolveFromPayload separately so it can
// pin the fingerprint and return before the slow part even starts); the
// task loop still blocks on this one call within the current action's turn
// for every other caller, at the kind's configured deadline.
func (e *Engine) generateContent(ctx context.Context, req promptctx.Request) (map[string]any, fingerprint.ID, error) {
	payload, err := e.asm.Assemble(ctx, req)
	if err != nil {
		return nil, "", err
	}
	value, err := e.resolveFromPayload(ctx, req, payload)
	if err != nil {
		return nil, payload.Fingerprint, err
	}
	return value, payload.Fingerprint, nil
}

// resolveFromPayload runs the cache/in-flight-dedup layer and the Request
// Router for an already-assembled payload. Split out of generateContent so
// enrichRoomAsync can assemble (and pin) up front, on the task loop, then
// run the slow LLM round trip from a background goroutine.
func (e *Engine) resolveFromPayload(ctx context.Context, req promptctx.Request, payload *promptctx.Payload) (map[string]any, error) {
	cfg := reqkind.Table[req.Kind]
	ctx, span := e.tracer.Start(ctx, "session.generate."+string(req.Kind))
	defer span.End()
	span.SetAttributes(telemetry.CreateGenAIAttributes("tilecrawler", req.Model, 0, 0, cfg.Temperature)...)

	value, _, err := e.cache.GetOrGenerate(ctx, payload.Fingerprint, req.Kind, func(ctx context.Context) (map[string]any, error) {
		llmReq := llmclient.Request{
			Model:        req.Model,
			SystemPrompt: payload.Text,
			UserPrompt:   req.TaskInstructions,
			Temperature:  cfg.Temperature,
			MaxTokens:    400,
			Deadline:     cfg.Deadline,
		}
		res := <-e.router.Submit(ctx, req.Kind, llmReq)
		if res.Err != nil {
			e.logger.Warnf("router: %s failed: %v (retries=%d)", req.Kind, res.Err, res.Retries)
		}
		out := e.val.Validate(req.Kind, res.Text, payload.Fingerprint, req.Room)
		return out.Value, nil
	})
	return value, err
}

// enrichRoomAsync resolves a room's real ROOM_DESCRIPTION off the task
// loop, using a payload already assembled (and whose fingerprint is
// already eligible for pinning) on the task loop by the caller. It never
// uses the action's ctx: the LLM round trip, including retries and backoff,
// runs against a detached context.Background() so it survives long after the action that
// triggered it has returned its bundle. On success it re-enters the
// engine through e.work, mirroring applyPrefetchResult, so the resulting
// mutation and delta publish happen back on the single-writer loop.
func (e *Engine) enrichRoomAsync(coord worldstate.Coordinate, req promptctx.Request, payload *promptctx.Payload) {
	go func() {
		value, err := e.resolveFromPayload(context.Background(), req, payload)
		if err != nil || value == nil {
			return
		}
		desc, _ := value["description"].(string)
		if desc == "" {
			return
		}
		e.work <- func() {
			change := worldstate.RoomChange{Kind: worldstate.ChangeDescriptionUp, Text: desc}
			if err := e.store.ApplyRoomChange(coord, change); err != nil {
				return
			}
			e.recordRoomFP(coord, payload.Fingerprint)
			e.publishDelta(e.store.Player(), nil, []worldstate.RoomChange{change})
		}
	}()
}

// maybeCondense runs Narrative Memory condensation synchronously within the
// current turn if the short-term window has grown past its bound; the
// summarizer call itself goes through the same generateContent path at
// SUMMARIZATION priority/deadline, with narrative.FallbackSummary of the
// batch used whenever no LLM summary comes back (an error, an empty summary,
// or the validator's own procedural summary).
func (e *Engine) maybeCondense(ctx context.Context) {
	if !e.mem.NeedsCondense() {
		return
	}
	batch, ok := e.mem.BeginCondense()
	if !ok {
		return
	}

	// The assembler has no dedicated "batch to condense" section; the batch
	// rides in RecentActions, the one section not otherwise populated for a
	// SUMMARIZATION request, joined into a single entry because that section
	// renders only the last three entries.
	sections := make([]string, len(batch))
	for i, ev := range batch {
		sections[i] = string(ev.Kind) + ": " + ev.Summary
	}
	value, fp, err := e.generateContent(ctx, promptctx.Request{
		Kind:             reqkind.Summarization,
		Model:            e.model,
		Memory:           e.mem,
		TaskInstructions: "Condense these events into one paragraph, carrying forward anything a player would need to recall later.",
		RecentActions:    []string{strings.Join(sections, "; ")},
	})
	if err != nil || value == nil {
		e.mem.CommitCondense(batch, narrative.FallbackSummary(batchTokenBudget, batch))
		return
	}
	summary, _ := value["summary"].(string)
	if summary == "" || reflect.DeepEqual(value, validator.Fallback(reqkind.Summarization, fp, nil)) {
		summary = narrative.FallbackSummary(batchTokenBudget, batch)
	}
	e.mem.CommitCondense(batch, summary)
}

const batchTokenBudget = 400
