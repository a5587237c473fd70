// Package save implements the Persistent Save Format (spec.md §6.4): a
// versioned, self-describing, checksummed record with a migration chain and
// atomic write-to-temp-then-rename persistence.
package save

import (
	"tilecrawler/internal/narrative"
	"tilecrawler/internal/worldstate"
)

// CurrentVersion is the save format version this build writes.
const CurrentVersion = 1

// NarrativeSnapshot is the serializable form of a Memory.
type NarrativeSnapshot struct {
	ShortTerm []narrative.Event `json:"short_term"`
	Summary   string            `json:"summary"`
}

// Quest is a minimal persisted quest record (title/description/objectives
// as generated by QUEST_GENERATION, plus completion state).
type Quest struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Objectives  []string `json:"objectives"`
	Completed   bool     `json:"completed"`
}

// File is the full on-disk record, versioned and checksummed.
type File struct {
	Version   int                    `json:"version"`
	World     worldstate.Snapshot    `json:"world"`
	Narrative NarrativeSnapshot      `json:"narrative"`
	Quests    []Quest                `json:"quests"`
	Emergency bool                   `json:"emergency,omitempty"`
	Checksum  string                 `json:"checksum"`
}
