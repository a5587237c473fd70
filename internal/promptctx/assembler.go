// Package promptctx assembles the bounded, token-budgeted prompt context
// consumed by the Request Router, fanning out the independent pieces of
// state concurrently the way a hot-path context assembler must to keep
// assembly latency low.
package promptctx

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"tilecrawler/internal/fingerprint"
	"tilecrawler/internal/narrative"
	"tilecrawler/internal/reqkind"
	"tilecrawler/internal/worldstate"
)

// FactRetriever serves the optional "retrieved facts" section (relevant
// NPC memories, relevant quest state), typically backed by the in-process
// MCP query server.
type FactRetriever interface {
	RetrieveFacts(ctx context.Context, kind reqkind.Kind, room *worldstate.Room) ([]string, error)
}

// Request describes what a single Assemble call needs to gather.
type Request struct {
	Kind          reqkind.Kind
	Model         string
	Room          *worldstate.Room
	NPC           *worldstate.NPCInstance
	CombatSummary string
	RecentActions []string // last 3 player actions, most recent last
	Memory        *narrative.Memory
	TaskInstructions string
}

// Section is one named, token-counted piece of the assembled prompt.
type Section struct {
	Priority int
	Name     string
	Text     string
	Tokens   int
}

// Payload is the assembler's output: the rendered prompt text plus the
// canonical form used only to compute the fingerprint.
type Payload struct {
	Kind        reqkind.Kind
	Sections    []Section
	Text        string
	Canonical   string
	Fingerprint fingerprint.ID
	Dropped     []string
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithTokenBudget overrides the default token budget.
func WithTokenBudget(n int) Option {
	return func(a *Assembler) { a.tokenBudget = n }
}

// WithFactRetriever attaches the retrieved-facts source.
func WithFactRetriever(r FactRetriever) Option {
	return func(a *Assembler) { a.facts = r }
}

// Assembler builds Payloads under a hard token budget.
type Assembler struct {
	tokenBudget int
	facts       FactRetriever
}

// NewAssembler constructs an Assembler with the given options.
func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{tokenBudget: 2000}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// countTokens approximates token count as whitespace-separated words; good
// enough for budget bookkeeping without depending on a model-specific
// tokenizer.
func countTokens(s string) int {
	return len(strings.Fields(s))
}

// Assemble produces a Payload for req, fanning out the three independent
// data sources (tick state, narrative memory, retrieved facts) concurrently
// via errgroup, then assembling priority-ordered sections under the token
// budget.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*Payload, error) {
	var tickState, shortTerm, longTerm string
	var retrieved []string

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		tickState = buildTickState(req)
		return nil
	})
	eg.Go(func() error {
		if req.Memory == nil {
			return nil
		}
		shortTerm = renderShortTerm(req.Memory.ShortTerm())
		longTerm = req.Memory.Summary()
		return nil
	})
	eg.Go(func() error {
		if a.facts == nil || req.Room == nil {
			return nil
		}
		fs, err := a.facts.RetrieveFacts(egCtx, req.Kind, req.Room)
		if err != nil {
			// Retrieval failures are policy-equivalent to "section would
			// overflow": the section is dropped, assembly is not aborted.
			return nil
		}
		retrieved = fs
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	candidates := []Section{
		{Priority: 1, Name: "preamble", Text: systemPreamble(req.Kind)},
		{Priority: 2, Name: "tick_state", Text: tickState},
		{Priority: 3, Name: "recent_actions", Text: renderRecentActions(req.RecentActions)},
		{Priority: 4, Name: "short_term", Text: shortTerm},
		{Priority: 5, Name: "long_term_summary", Text: longTerm},
		{Priority: 6, Name: "retrieved_facts", Text: strings.Join(retrieved, "\n")},
		{Priority: 7, Name: "task_instructions", Text: req.TaskInstructions},
	}
	for i := range candidates {
		candidates[i].Tokens = countTokens(candidates[i].Text)
	}

	var kept []Section
	var dropped []string
	total := 0
	for _, s := range candidates {
		if s.Text == "" {
			continue
		}
		if total+s.Tokens > a.tokenBudget {
			dropped = append(dropped, s.Name)
			continue
		}
		kept = append(kept, s)
		total += s.Tokens
	}

	var rendered strings.Builder
	for _, s := range kept {
		rendered.WriteString(s.Text)
		rendered.WriteString("\n\n")
	}

	canonical := buildCanonical(req, kept)
	fp := fingerprint.Compute(canonical)

	return &Payload{
		Kind:        req.Kind,
		Sections:    kept,
		Text:        rendered.String(),
		Canonical:   canonical,
		Fingerprint: fp,
		Dropped:     dropped,
	}, nil
}

func systemPreamble(kind reqkind.Kind) string {
	return fmt.Sprintf("You are the narrative engine for a dungeon crawler. Produce only %s content as valid JSON per the declared schema.", strings.ToLower(string(kind)))
}

func buildTickState(req Request) string {
	switch req.Kind {
	case reqkind.NPCDialogue:
		if req.NPC == nil {
			return ""
		}
		return fmt.Sprintf("NPC %s: traits=%v goals=%v relationship=%d", req.NPC.Name, req.NPC.Personality.Traits, req.NPC.Personality.Goals, req.NPC.Personality.Relationship)
	case reqkind.CombatNarration:
		return req.CombatSummary
	default:
		if req.Room == nil {
			return ""
		}
		return fmt.Sprintf("Room (%s) biome=%s exits=%v items=%d enemies=%d", req.Room.Title(), req.Room.Biome, req.Room.ExitList(), len(req.Room.Items), len(req.Room.Enemies))
	}
}

func renderRecentActions(actions []string) string {
	if len(actions) == 0 {
		return ""
	}
	n := len(actions)
	if n > 3 {
		actions = actions[n-3:]
	}
	return "Recent actions: " + strings.Join(actions, "; ")
}

func renderShortTerm(events []narrative.Event) string {
	if len(events) == 0 {
		return ""
	}
	parts := make([]string, len(events))
	for i, e := range events {
		parts[i] = string(e.Kind) + ": " + e.Summary
	}
	return "Recent events:\n" + strings.Join(parts, "\n")
}

// buildCanonical normalizes a payload's kept sections for fingerprinting:
// sorted by section name, whitespace-collapsed, and never including the
// turn index (narrative events' Turn field is intentionally not rendered).
func buildCanonical(req Request, kept []Section) string {
	secs := make([]fingerprint.Section, 0, len(kept))
	for _, s := range kept {
		secs = append(secs, fingerprint.Section{Key: s.Name, Value: s.Text})
	}
	cfg := reqkind.Table[req.Kind]
	return fingerprint.Canonical(string(req.Kind), req.Model, cfg.Temperature, secs)
}
