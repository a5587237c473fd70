package validator

import (
	"github.com/tidwall/gjson"

	"tilecrawler/internal/fingerprint"
	"tilecrawler/internal/glyph"
	"tilecrawler/internal/metrics"
	"tilecrawler/internal/outcome"
	"tilecrawler/internal/reqkind"
	"tilecrawler/internal/worldstate"
)

// Validator runs the full untrusted-text-to-trusted-value pipeline.
type Validator struct {
	legend *glyph.Legend
	quests KnownQuestTemplates
	sink   metrics.Sink
}

// New builds a Validator against the run's immutable legend and known
// quest template catalog.
func New(legend *glyph.Legend, quests KnownQuestTemplates, sink metrics.Sink) *Validator {
	if sink == nil {
		sink = metrics.Discard{}
	}
	return &Validator{legend: legend, quests: quests, sink: sink}
}

// Validate runs the pipeline in §4.5 over raw LLM text for kind. On any
// failure it invokes Fallback and still returns a schema-valid map, wrapped
// as outcome.Fallback rather than outcome.Ok so callers can tell the two
// apart for metrics/testing without it being a player-visible error.
func (v *Validator) Validate(kind reqkind.Kind, raw string, fp fingerprint.ID, room *worldstate.Room) outcome.Outcome[map[string]any] {
	schema, ok := Schemas[kind]
	if !ok {
		return outcome.FellBack(Fallback(kind, fp, room))
	}

	extracted, err := ExtractJSON(raw)
	if err != nil {
		v.sink.RecordOutcome(metrics.Outcome{Kind: string(kind), Fallback: true})
		return outcome.FellBack(Fallback(kind, fp, room))
	}

	result := gjson.Parse(extracted)
	if !result.IsObject() {
		return outcome.FellBack(Fallback(kind, fp, room))
	}

	value, err := v.applySchema(schema, result)
	if err != nil {
		v.sink.RecordOutcome(metrics.Outcome{Kind: string(kind), Fallback: true})
		return outcome.FellBack(Fallback(kind, fp, room))
	}

	if err := v.semanticConstraints(kind, value); err != nil {
		v.sink.RecordOutcome(metrics.Outcome{Kind: string(kind), Fallback: true})
		return outcome.FellBack(Fallback(kind, fp, room))
	}

	v.sink.RecordOutcome(metrics.Outcome{Kind: string(kind), Success: true})
	return outcome.OK(value)
}

// applySchema drops unknown fields, defaults missing optional fields, fails
// on missing required fields, and sanitizes every string field.
func (v *Validator) applySchema(schema Schema, result gjson.Result) (map[string]any, error) {
	out := map[string]any{}
	for name, field := range schema.Fields {
		r := result.Get(name)
		if !r.Exists() {
			if field.Required {
				return nil, errMissingRequired(name)
			}
			continue // optional fields simply default to absent
		}
		switch field.Type {
		case TypeString:
			s, ok := sanitizeString(r.String(), field.MaxLen)
			if !ok {
				if field.Required {
					return nil, errMissingRequired(name)
				}
				continue
			}
			out[name] = s
		case TypeArray:
			var arr []any
			r.ForEach(func(_, v gjson.Result) bool {
				arr = append(arr, v.Value())
				return true
			})
			out[name] = arr
		case TypeObject:
			out[name] = r.Value()
		case TypeNumber:
			out[name] = r.Num
		}
	}
	return out, nil
}

func errMissingRequired(name string) error {
	return &MissingFieldError{Field: name}
}

// MissingFieldError reports a required schema field absent from validated
// output.
type MissingFieldError struct{ Field string }

func (e *MissingFieldError) Error() string {
	return "validator: missing required field " + e.Field
}

// semanticConstraints enforces the per-kind closed-enum and reference rules
// in §4.5 beyond generic schema shape.
func (v *Validator) semanticConstraints(kind reqkind.Kind, value map[string]any) error {
	switch kind {
	case reqkind.RoomDescription, reqkind.Enrichment:
		atmosphere, _ := value["atmosphere"].(string)
		if !enumContains(Schemas[kind].Fields["atmosphere"].Enum, atmosphere) {
			return &EnumError{Field: "atmosphere", Value: atmosphere}
		}
	case reqkind.NPCDialogue:
		emotion, _ := value["emotion"].(string)
		if !enumContains(Schemas[kind].Fields["emotion"].Enum, emotion) {
			return &EnumError{Field: "emotion", Value: emotion}
		}
		if trigger, ok := value["quest_trigger"].(string); ok && trigger != "" {
			if v.quests == nil || !v.quests[trigger] {
				return &EnumError{Field: "quest_trigger", Value: trigger}
			}
		}
	}
	return nil
}

func enumContains(enum []string, v string) bool {
	if len(enum) == 0 {
		return true
	}
	for _, e := range enum {
		if e == v {
			return true
		}
	}
	return false
}

// EnumError reports a value outside a field's closed enum, or an unknown
// cross-reference (e.g. a quest_trigger with no matching template).
type EnumError struct {
	Field, Value string
}

func (e *EnumError) Error() string {
	return "validator: " + e.Field + " value " + e.Value + " not permitted"
}

// ValidateTileGrid enforces that an untrusted tile grid is rectangular and
// uses only legend glyphs, used whenever a response kind includes raw tile
// data (e.g. an adversarial room description smuggling a non-legend glyph).
func (v *Validator) ValidateTileGrid(grid worldstate.Grid) error {
	for y := 0; y < worldstate.RoomHeight; y++ {
		for x := 0; x < worldstate.RoomWidth; x++ {
			if !v.legend.Valid(grid[y][x]) {
				return &EnumError{Field: "tile_grid", Value: "non-legend glyph"}
			}
		}
	}
	return nil
}
