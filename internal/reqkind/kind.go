// Package reqkind enumerates the Intelligence Core's request kinds and their
// per-kind configuration, shared by the Context Assembler, the Request
// Router, and the Response Validator so all three agree on one table.
package reqkind

import "time"

// Kind is one of the six prompt kinds the core issues.
type Kind string

const (
	RoomDescription Kind = "ROOM_DESCRIPTION"
	NPCDialogue     Kind = "NPC_DIALOGUE"
	CombatNarration Kind = "COMBAT_NARRATION"
	QuestGeneration Kind = "QUEST_GENERATION"
	Enrichment      Kind = "ENRICHMENT"
	Summarization   Kind = "SUMMARIZATION"
)

// Config is the per-kind dispatch configuration.
type Config struct {
	Temperature float64
	Priority    int // lower value = higher priority; FIFO within a priority
	Deadline    time.Duration
	Schema      string // logical schema name consulted by the validator
}

// Table is the full per-kind configuration, matching §4.4 plus the
// concrete deadlines SPEC_FULL.md fixes.
var Table = map[Kind]Config{
	RoomDescription: {Temperature: 0.8, Priority: 2, Deadline: 4000 * time.Millisecond, Schema: "room_description"},
	NPCDialogue:     {Temperature: 0.7, Priority: 1, Deadline: 2500 * time.Millisecond, Schema: "npc_dialogue"},
	CombatNarration: {Temperature: 0.6, Priority: 3, Deadline: 2000 * time.Millisecond, Schema: "combat_narration"},
	QuestGeneration: {Temperature: 0.7, Priority: 3, Deadline: 6000 * time.Millisecond, Schema: "quest_generation"},
	Enrichment:      {Temperature: 0.8, Priority: 4, Deadline: 8000 * time.Millisecond, Schema: "room_description"},
	Summarization:   {Temperature: 0.3, Priority: 5, Deadline: 10000 * time.Millisecond, Schema: "summarization"},
}

// PrefetchPriority is the priority assigned to background prefetch
// requests: below any direct player-visible kind (§4.7).
const PrefetchPriority = 4
