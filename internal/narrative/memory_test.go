package narrative_test

import (
	"testing"

	"tilecrawler/internal/narrative"
)

func fillWithEvents(m *narrative.Memory, n int) {
	for i := 0; i < n; i++ {
		m.Append(narrative.RoomEntered, "event", nil)
	}
}

func TestMemory_NeedsCondense_TripsPastWindowSize(t *testing.T) {
	t.Parallel()

	m := narrative.New(narrative.Config{WindowSize: 4, CondenseBatch: 2, SummaryTokens: 100})
	fillWithEvents(m, 4)
	if m.NeedsCondense() {
		t.Fatal("NeedsCondense() = true at exactly WindowSize, want false")
	}
	m.Append(narrative.RoomEntered, "one more", nil)
	if !m.NeedsCondense() {
		t.Fatal("NeedsCondense() = false past WindowSize, want true")
	}
}

func TestMemory_CommitCondense_DropsExactlyKOldestEvents(t *testing.T) {
	t.Parallel()

	const windowSize, batchSize = 4, 3
	m := narrative.New(narrative.Config{WindowSize: windowSize, CondenseBatch: batchSize, SummaryTokens: 100})
	fillWithEvents(m, windowSize+1) // one event past WindowSize

	before := len(m.ShortTerm())
	batch, ok := m.BeginCondense()
	if !ok {
		t.Fatal("BeginCondense() = false, want true")
	}
	if len(batch) != batchSize {
		t.Fatalf("batch size = %d, want %d", len(batch), batchSize)
	}

	m.CommitCondense(batch, "a condensed summary")
	after := len(m.ShortTerm())
	if after != before-batchSize {
		t.Errorf("short-term length after condense = %d, want %d", after, before-batchSize)
	}
	if m.Summary() != "a condensed summary" {
		t.Errorf("Summary() = %q, want %q", m.Summary(), "a condensed summary")
	}
}

func TestMemory_Append_DuringCondenseStillAppendsToTail(t *testing.T) {
	t.Parallel()

	m := narrative.New(narrative.Config{WindowSize: 2, CondenseBatch: 2, SummaryTokens: 100})
	fillWithEvents(m, 3)

	batch, ok := m.BeginCondense()
	if !ok {
		t.Fatal("BeginCondense() = false, want true")
	}

	newEvent := m.Append(narrative.CombatResolved, "a fresh event during condense", nil)

	m.CommitCondense(batch, "summary")

	tail := m.ShortTerm()
	if len(tail) == 0 || tail[len(tail)-1].Turn != newEvent.Turn {
		t.Errorf("event appended during condense was lost; short-term tail = %+v", tail)
	}
}

func TestFallbackSummary_TruncatesToTokenBudget(t *testing.T) {
	t.Parallel()

	batch := []narrative.Event{
		{Summary: "one two three"},
		{Summary: "four five six"},
	}
	got := narrative.FallbackSummary(3, batch)
	want := "[abridged] one two three"
	if got != want {
		t.Errorf("FallbackSummary = %q, want %q", got, want)
	}
}

func TestMemory_RestoreState_PreservesTurnNumbering(t *testing.T) {
	t.Parallel()

	m := narrative.New(narrative.DefaultConfig())
	saved := []narrative.Event{
		{Turn: 0, Kind: narrative.RoomEntered, Summary: "a"},
		{Turn: 1, Kind: narrative.ItemAcquired, Summary: "b"},
	}
	m.RestoreState(saved, "an old summary")

	next := m.Append(narrative.CombatResolved, "c", nil)
	if next.Turn != 2 {
		t.Errorf("next turn after restore = %d, want 2", next.Turn)
	}
	if m.Summary() != "an old summary" {
		t.Errorf("Summary() after restore = %q, want %q", m.Summary(), "an old summary")
	}
}
