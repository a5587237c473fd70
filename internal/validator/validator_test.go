package validator_test

import (
	"testing"

	"tilecrawler/internal/fingerprint"
	"tilecrawler/internal/metrics"
	"tilecrawler/internal/outcome"
	"tilecrawler/internal/reqkind"
	"tilecrawler/internal/validator"
	"tilecrawler/internal/worldstate"
)

func TestValidate_WellFormedResponseConformsToSchema(t *testing.T) {
	t.Parallel()

	v := validator.New(nil, nil, nil)
	raw := `{"description": "A cramped alcove.", "atmosphere": "tense", "points_of_interest": ["an altar"]}`

	got := v.Validate(reqkind.RoomDescription, raw, fingerprint.ID("fp-1"), nil)
	if got.Status != outcome.Ok {
		t.Fatalf("Status = %v, want Ok", got.Status)
	}
	if got.Value["description"] != "A cramped alcove." {
		t.Errorf("description = %v, want %q", got.Value["description"], "A cramped alcove.")
	}
	if got.Value["atmosphere"] != "tense" {
		t.Errorf("atmosphere = %v, want %q", got.Value["atmosphere"], "tense")
	}
}

func TestValidate_RepairsTrailingCommaAndUnbalancedBraces(t *testing.T) {
	t.Parallel()

	v := validator.New(nil, nil, nil)
	raw := "Sure, here you go:\n```json\n{\"description\": \"A quiet hall.\", \"atmosphere\": \"serene\",\n"

	got := v.Validate(reqkind.RoomDescription, raw, fingerprint.ID("fp-2"), nil)
	if got.Status != outcome.Ok {
		t.Fatalf("Status = %v, want Ok (repaired), got value %v", got.Status, got.Value)
	}
	if got.Value["description"] != "A quiet hall." {
		t.Errorf("description = %v, want %q", got.Value["description"], "A quiet hall.")
	}
}

func TestValidate_MissingRequiredFieldFallsBack(t *testing.T) {
	t.Parallel()

	v := validator.New(nil, nil, nil)
	raw := `{"atmosphere": "grim"}`

	got := v.Validate(reqkind.RoomDescription, raw, fingerprint.ID("fp-3"), nil)
	if got.Status != outcome.Fallback {
		t.Fatalf("Status = %v, want Fallback", got.Status)
	}
	if got.Value["description"] == "" {
		t.Error("fallback value has empty description")
	}
}

func TestValidate_OffEnumAtmosphereFallsBack(t *testing.T) {
	t.Parallel()

	v := validator.New(nil, nil, nil)
	raw := `{"description": "A room.", "atmosphere": "jubilant"}` // "jubilant" is not in the closed enum

	got := v.Validate(reqkind.RoomDescription, raw, fingerprint.ID("fp-4"), nil)
	if got.Status != outcome.Fallback {
		t.Fatalf("Status = %v, want Fallback for an off-enum atmosphere value", got.Status)
	}
}

func TestValidate_UnknownQuestTriggerFallsBack(t *testing.T) {
	t.Parallel()

	known := validator.KnownQuestTemplates{"the_lost_seal": true}
	v := validator.New(nil, known, nil)
	raw := `{"dialogue": "I might have work for you.", "emotion": "friendly", "quest_trigger": "not_a_real_quest"}`

	got := v.Validate(reqkind.NPCDialogue, raw, fingerprint.ID("fp-5"), nil)
	if got.Status != outcome.Fallback {
		t.Fatalf("Status = %v, want Fallback for an unknown quest_trigger", got.Status)
	}
}

func TestValidate_UnparsableTextFallsBack(t *testing.T) {
	t.Parallel()

	v := validator.New(nil, nil, nil)
	got := v.Validate(reqkind.CombatNarration, "not json at all, just prose", fingerprint.ID("fp-6"), nil)
	if got.Status != outcome.Fallback {
		t.Fatalf("Status = %v, want Fallback for unparsable text", got.Status)
	}
	if got.Value["narrative"] == "" {
		t.Error("fallback combat narrative is empty")
	}
}

func TestFallback_IsDeterministicForTheSameFingerprint(t *testing.T) {
	t.Parallel()

	room := &worldstate.Room{Biome: worldstate.BiomeCrypt}
	a := validator.Fallback(reqkind.RoomDescription, fingerprint.ID("same-fp"), room)
	b := validator.Fallback(reqkind.RoomDescription, fingerprint.ID("same-fp"), room)

	if a["description"] != b["description"] {
		t.Errorf("fallback differs across calls with the same fingerprint: %v vs %v", a, b)
	}
}

func TestValidate_RecordsOutcomesOnSink(t *testing.T) {
	t.Parallel()

	sink := metrics.NewMemory()
	v := validator.New(nil, nil, sink)
	v.Validate(reqkind.CombatNarration, `{"narrative": "A clean strike."}`, fingerprint.ID("fp-7"), nil)
	v.Validate(reqkind.CombatNarration, "garbage", fingerprint.ID("fp-8"), nil)

	outcomes := sink.Outcomes()
	if len(outcomes) != 2 {
		t.Fatalf("recorded %d outcomes, want 2", len(outcomes))
	}
	if !outcomes[0].Success || outcomes[0].Fallback {
		t.Errorf("first outcome = %+v, want Success=true Fallback=false", outcomes[0])
	}
	if outcomes[1].Success || !outcomes[1].Fallback {
		t.Errorf("second outcome = %+v, want Success=false Fallback=true", outcomes[1])
	}
}
