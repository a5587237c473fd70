package narrative

import (
	"context"
	"strings"
)

// Summarizer condenses a batch of oldest events into a single long-term
// summary addition. Nothing in this module implements it: session.Engine
// condenses its memory itself, sending a SUMMARIZATION request through the
// Request Router and using FallbackSummary when no LLM summary comes back.
type Summarizer interface {
	Summarize(ctx context.Context, priorSummary string, batch []Event) (string, error)
}

// Config bounds the memory's size, matching §3's "N ~= 10-20" guidance.
type Config struct {
	WindowSize    int // N
	CondenseBatch int // K
	SummaryTokens int // S
}

// DefaultConfig matches the spec's suggested midpoint.
func DefaultConfig() Config {
	return Config{WindowSize: 16, CondenseBatch: 6, SummaryTokens: 400}
}

// Memory is the single-writer narrative store for one session.
type Memory struct {
	cfg        Config
	shortTerm  []Event
	summary    string
	condensing bool
	nextTurn   int
}

// New creates an empty memory.
func New(cfg Config) *Memory {
	return &Memory{cfg: cfg}
}

// Append records a new narrative event at the tail of the short-term
// window. A condensation in progress never loses events: new events keep
// appending to the tail regardless of whether a collapse is pending on the
// prefix.
func (m *Memory) Append(kind Kind, summary string, payload map[string]any) Event {
	e := Event{Turn: m.nextTurn, Kind: kind, Summary: summary, Payload: payload}
	m.nextTurn++
	m.shortTerm = append(m.shortTerm, e)
	return e
}

// Snapshot returns a point-in-time copy of m, safe to read from a goroutine
// other than the session's single task-loop writer: Memory itself carries
// no internal synchronization, so a background generation that wants
// short-term/summary context must read it through a Snapshot taken while
// still on the task loop rather than touching the live *Memory directly.
func (m *Memory) Snapshot() *Memory {
	return &Memory{
		cfg:       m.cfg,
		shortTerm: m.ShortTerm(),
		summary:   m.summary,
		nextTurn:  m.nextTurn,
	}
}

// ShortTerm returns a copy of the current short-term window, in insertion
// order.
func (m *Memory) ShortTerm() []Event {
	out := make([]Event, len(m.shortTerm))
	copy(out, m.shortTerm)
	return out
}

// Summary returns the current long-term summary string.
func (m *Memory) Summary() string {
	return m.summary
}

// NeedsCondense reports whether the short-term window has exceeded N.
func (m *Memory) NeedsCondense() bool {
	return !m.condensing && len(m.shortTerm) > m.cfg.WindowSize
}

// BeginCondense snapshots the K oldest events and marks a collapse as in
// flight; callers must eventually call CommitCondense or AbortCondense.
func (m *Memory) BeginCondense() (batch []Event, ok bool) {
	if m.condensing || len(m.shortTerm) <= m.cfg.WindowSize {
		return nil, false
	}
	k := m.cfg.CondenseBatch
	if k > len(m.shortTerm) {
		k = len(m.shortTerm)
	}
	batch = make([]Event, k)
	copy(batch, m.shortTerm[:k])
	m.condensing = true
	return batch, true
}

// CommitCondense applies a successful (or fallback) summarization result,
// dropping exactly the K events that were snapshotted by BeginCondense.
// Because the short-term window is append-only at the tail, those K events
// are still the oldest K regardless of what was appended while the
// summarization call was in flight.
func (m *Memory) CommitCondense(batch []Event, addition string) {
	k := len(batch)
	if k > len(m.shortTerm) {
		k = len(m.shortTerm)
	}
	m.shortTerm = m.shortTerm[k:]
	if m.summary == "" {
		m.summary = addition
	} else {
		m.summary = m.summary + "\n" + addition
	}
	m.condensing = false
}

// AbortCondense releases the in-flight flag without collapsing anything,
// used when the summarizer call is cancelled outright (not merely falling
// back).
func (m *Memory) AbortCondense() {
	m.condensing = false
}

// RestoreState rebuilds a Memory's internal state verbatim from persisted
// data (save/load), preserving original turn indices instead of
// re-numbering events through Append.
func (m *Memory) RestoreState(shortTerm []Event, summary string) {
	m.shortTerm = append([]Event(nil), shortTerm...)
	m.summary = summary
	m.nextTurn = 0
	for _, e := range m.shortTerm {
		if e.Turn >= m.nextTurn {
			m.nextTurn = e.Turn + 1
		}
	}
}

// FallbackSummary implements the deterministic procedural substitute used
// when the SUMMARIZATION request yields no LLM summary (after the Router's
// own retries): join the batch's summaries, truncate to roughly S tokens
// (approximated as whitespace-separated words, with no separator left
// dangling after the last kept word), and prefix with "[abridged]".
func FallbackSummary(tokenBudget int, batch []Event) string {
	parts := make([]string, 0, len(batch))
	for _, e := range batch {
		parts = append(parts, e.Summary)
	}
	joined := strings.Join(parts, "; ")
	words := strings.Fields(joined)
	if len(words) > tokenBudget {
		words = words[:tokenBudget]
		if n := len(words); n > 0 {
			words[n-1] = strings.TrimSuffix(words[n-1], ";")
		}
	}
	return "[abridged] " + strings.Join(words, " ")
}
