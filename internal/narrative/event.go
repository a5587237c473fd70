// Package narrative maintains the two-tier memory (short-term window plus
// long-term summary) that keeps the world coherent across turns and feeds
// the Context Assembler.
package narrative

// Kind enumerates the narrative event categories.
type Kind string

const (
	RoomEntered    Kind = "room_entered"
	CombatResolved Kind = "combat_resolved"
	NPCInteraction Kind = "npc_interaction"
	ItemAcquired   Kind = "item_acquired"
	QuestUpdated   Kind = "quest_updated"
	Death          Kind = "death"
	Discovery      Kind = "discovery"
)

// Event is an append-only narrative record. Events are immortal: they are
// archived into the long-term summary by condensation, never deleted.
type Event struct {
	Turn    int
	Kind    Kind
	Summary string
	Payload map[string]any
}
