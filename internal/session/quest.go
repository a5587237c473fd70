package session

import (
	"context"
	"fmt"
	"reflect"

	"tilecrawler/internal/mcp"
	"tilecrawler/internal/narrative"
	"tilecrawler/internal/promptctx"
	"tilecrawler/internal/reqkind"
	"tilecrawler/internal/save"
	"tilecrawler/internal/validator"
)

// SetQuestCatalog installs the session's known quest templates; it is also
// what internal/mcp.NewServer exposes through the lookup_quest_template
// tool, so NPC dialogue's quest_trigger field and the session's own
// acceptance path read from the same source of truth. Called once at
// startup, before any NPC dialogue can reference a quest_trigger.
func (e *Engine) SetQuestCatalog(c mcp.QuestCatalog) {
	e.catalog = c
}

// acceptQuestTemplate instantiates an active quest from a known template id
// (semanticConstraints in internal/validator already rejected any
// quest_trigger not present in the catalog before this is ever called). The
// catalog entry is only a seed: QUEST_GENERATION elaborates it into the
// quest actually offered, falling back to the catalog's own title,
// description and objectives verbatim if the backend is unreachable or its
// response doesn't validate. Returns the QuestUpdated event recorded for
// the acceptance, or ok=false if templateID is unknown.
func (e *Engine) acceptQuestTemplate(ctx context.Context, templateID string) (event narrative.Event, ok bool) {
	tpl, known := e.catalog[templateID]
	if !known {
		return narrative.Event{}, false
	}
	q := save.Quest{
		ID:          templateID,
		Title:       tpl.Title,
		Description: tpl.Description,
		Objectives:  tpl.Objectives,
	}

	value, fp, err := e.generateContent(ctx, promptctx.Request{
		Kind:             reqkind.QuestGeneration,
		Model:            e.model,
		Memory:           e.mem,
		TaskInstructions: fmt.Sprintf("Elaborate on this quest seed as JSON matching the declared schema. Title: %q. Premise: %s", tpl.Title, tpl.Description),
	})
	if err == nil && value != nil && !reflect.DeepEqual(value, validator.Fallback(reqkind.QuestGeneration, fp, nil)) {
		if title, ok := value["title"].(string); ok && title != "" {
			q.Title = title
		}
		if desc, ok := value["description"].(string); ok && desc != "" {
			q.Description = desc
		}
		if objs, ok := value["objectives"].([]any); ok {
			strs := make([]string, 0, len(objs))
			for _, o := range objs {
				if s, ok := o.(string); ok {
					strs = append(strs, s)
				}
			}
			if len(strs) > 0 {
				q.Objectives = strs
			}
		}
	}

	e.quests[templateID] = q
	ev := e.mem.Append(narrative.QuestUpdated, fmt.Sprintf("New quest accepted: %s", q.Title), map[string]any{"quest_id": templateID})
	return ev, true
}

// CompleteQuest marks an active quest as completed and records the
// QuestUpdated event describing it.
func (e *Engine) CompleteQuest(id string) (event narrative.Event, ok bool) {
	q, known := e.quests[id]
	if !known {
		return narrative.Event{}, false
	}
	q.Completed = true
	e.quests[id] = q
	ev := e.mem.Append(narrative.QuestUpdated, fmt.Sprintf("Quest completed: %s", q.Title), map[string]any{"quest_id": id})
	return ev, true
}

func (e *Engine) questList() []save.Quest {
	out := make([]save.Quest, 0, len(e.quests))
	for _, q := range e.quests {
		out = append(out, q)
	}
	return out
}
