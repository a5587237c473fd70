package validator

import (
	"math/rand"

	"tilecrawler/internal/fingerprint"
	"tilecrawler/internal/reqkind"
	"tilecrawler/internal/worldstate"
)

// fallbackRNG derives a deterministic RNG from a fingerprint so two callers
// hitting fallback for the same request get byte-identical procedural
// content (the fallback is the contract that the game never stalls, and
// never produces incoherent duplicate content for the same request either).
func fallbackRNG(fp fingerprint.ID) *rand.Rand {
	var seed int64
	for i, c := range string(fp) {
		seed = seed*31 + int64(c) + int64(i)
	}
	return rand.New(rand.NewSource(seed))
}

var roomDescriptionTemplates = map[worldstate.Biome][]string{
	worldstate.BiomeDungeon: {"Bare dungeon stone stretches in every direction.", "Old mortar and dust fill the passage."},
	worldstate.BiomeCave:    {"Damp stone presses close; water drips somewhere unseen.", "The cave breathes cold air from deeper within."},
	worldstate.BiomeVault:   {"Sealed air, untouched for a long time, sits heavy in the vault."},
	worldstate.BiomeShop:    {"Shelves of oddments line the alcove, waiting for a buyer."},
	worldstate.BiomeShrine:  {"A hush settles over the shrine; the altar is cold stone."},
	worldstate.BiomeCrypt:   {"Old dust and older bones line the crypt passage."},
}

var dialogueTemplates = map[string][]string{
	"friendly": {"\"Good to see a friendly face down here,\" they say."},
	"hostile":  {"\"You shouldn't have come here,\" they snarl."},
	"neutral":  {"They regard you evenly and say little."},
}

// Fallback produces schema-valid output from fixed templates, seeded by fp
// so it is deterministic and always available. Room descriptions are keyed
// by biome; dialogue is a neutral or friendly line picked by a seeded
// emotion and does not depend on the NPC or its archetype; combat
// narration does not depend on the combat action.
func Fallback(kind reqkind.Kind, fp fingerprint.ID, room *worldstate.Room) map[string]any {
	rng := fallbackRNG(fp)
	switch kind {
	case reqkind.RoomDescription, reqkind.Enrichment:
		biome := worldstate.BiomeDungeon
		if room != nil {
			biome = room.Biome
		}
		templates := roomDescriptionTemplates[biome]
		if len(templates) == 0 {
			templates = roomDescriptionTemplates[worldstate.BiomeDungeon]
		}
		return map[string]any{
			"description": templates[rng.Intn(len(templates))],
			"atmosphere":  "mysterious",
		}
	case reqkind.NPCDialogue:
		emotions := []string{"neutral", "friendly"}
		emotion := emotions[rng.Intn(len(emotions))]
		lines := dialogueTemplates[emotion]
		if len(lines) == 0 {
			lines = dialogueTemplates["neutral"]
		}
		return map[string]any{
			"dialogue": lines[rng.Intn(len(lines))],
			"emotion":  emotion,
		}
	case reqkind.CombatNarration:
		narratives := []string{"The blow lands with a dull, practical force.", "Steel meets flesh; the fight continues."}
		return map[string]any{"narrative": narratives[rng.Intn(len(narratives))]}
	case reqkind.QuestGeneration:
		return map[string]any{
			"title":       "A Small Errand",
			"description": "Someone nearby needs a simple task done.",
			"objectives":  []any{"Find the requested item"},
			"rewards":     map[string]any{"gold": 10},
		}
	case reqkind.Summarization:
		return map[string]any{"summary": "[abridged] recent events"}
	default:
		return map[string]any{}
	}
}
