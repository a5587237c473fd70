package session

import (
	"context"
	"fmt"
	"math/rand"

	"tilecrawler/internal/action"
	"tilecrawler/internal/narrative"
	"tilecrawler/internal/promptctx"
	"tilecrawler/internal/reqkind"
	"tilecrawler/internal/save"
	"tilecrawler/internal/validator"
	"tilecrawler/internal/worldstate"
)

// handleMove never blocks the task loop on a room's real description (§4.1,
// §5): a freshly-entered, unenriched room gets an immediate procedural
// placeholder, and the real ROOM_DESCRIPTION generation resolves in the
// background through enrichRoomAsync, applying its result (and a follow-up
// delta) once it completes, however long that takes.
func (e *Engine) handleMove(ctx context.Context, act action.Action) action.Bundle {
	outcome := e.store.MovePlayer(act.Direction)
	if outcome.Kind == worldstate.MoveBlocked {
		return action.Bundle{Success: false, Message: "You can't go that way."}
	}

	room := outcome.Room
	narrativeText := room.Description
	e.repinRoom(outcome.To)

	if !room.Enriched {
		req := promptctx.Request{
			Kind:             reqkind.RoomDescription,
			Model:            e.model,
			Room:             room,
			Memory:           e.mem.Snapshot(),
			TaskInstructions: "Describe this room. Respond as JSON matching the declared schema.",
		}
		if payload, err := e.asm.Assemble(ctx, req); err == nil {
			placeholder := validator.Fallback(reqkind.RoomDescription, payload.Fingerprint, room)
			if desc, ok := placeholder["description"].(string); ok && desc != "" {
				narrativeText = desc
			}
			e.recordRoomFP(outcome.To, payload.Fingerprint)
			e.enrichRoomAsync(outcome.To, req, payload)
		}
	}

	var events []narrative.Event
	if outcome.NewlyEntered {
		events = append(events, e.mem.Append(narrative.RoomEntered, narrativeText, map[string]any{
			"coord": fmt.Sprintf("%d,%d,%d", outcome.To.X, outcome.To.Y, outcome.To.Z),
		}))
	}
	e.maybeCondense(ctx)
	e.runPrefetch(ctx, outcome.To)
	e.publishDelta(e.store.Player(), events, nil)

	return action.Bundle{Success: true, Narrative: narrativeText, UpdatedState: e.store.Player()}
}

func (e *Engine) handleAttack(ctx context.Context, act action.Action) action.Bundle {
	room, ok := e.store.RoomAt(e.store.Player().Coord)
	if !ok {
		return action.Bundle{Success: false, Message: "There is nothing to attack here."}
	}
	idx := -1
	for i, enemy := range room.Enemies {
		if enemy.ID == act.TargetID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return action.Bundle{Success: false, Message: "That enemy is not here."}
	}
	enemy := room.Enemies[idx]
	player := e.store.Player()

	dmg := player.Derived.Attack - enemy.Defense
	if dmg < 1 {
		dmg = 1
	}
	crit := rand.Float64() < player.Derived.CritChance
	if crit {
		dmg = int(float64(dmg) * player.Derived.CritMultiplier)
	}
	enemy.HP -= dmg

	var combatSummary string
	var changes []worldstate.RoomChange
	if enemy.HP <= 0 {
		combatSummary = fmt.Sprintf("%s strikes %s for %d damage, defeating it.", player.Name, enemy.Name, dmg)
		change := worldstate.RoomChange{Kind: worldstate.ChangeEnemyRemoved, EnemyID: enemy.ID}
		_ = e.store.ApplyRoomChange(room.Coord, change)
		changes = append(changes, change)
	} else {
		counter := enemy.Attack - player.Derived.Defense
		if counter < 1 {
			counter = 1
		}
		player.Derived.HP -= counter
		room.Enemies[idx] = enemy
		combatSummary = fmt.Sprintf("%s strikes %s for %d damage; %s retaliates for %d.", player.Name, enemy.Name, dmg, enemy.Name, counter)
	}

	value, _, err := e.generateContent(ctx, promptctx.Request{
		Kind:             reqkind.CombatNarration,
		Model:            e.model,
		Room:             room,
		CombatSummary:    combatSummary,
		Memory:           e.mem,
		TaskInstructions: "Narrate this exchange in one or two sentences. Respond as JSON matching the declared schema.",
	})
	narrativeText := combatSummary
	if err == nil {
		if text, ok := value["narrative"].(string); ok && text != "" {
			narrativeText = text
		}
	}

	events := []narrative.Event{e.mem.Append(narrative.CombatResolved, narrativeText, map[string]any{"enemy_id": enemy.ID})}
	if player.Derived.HP <= 0 {
		events = append(events, e.mem.Append(narrative.Death, fmt.Sprintf("%s has fallen.", player.Name), nil))
	}
	e.publishDelta(player, events, changes)

	return action.Bundle{Success: true, Narrative: narrativeText, UpdatedState: player}
}

func (e *Engine) handleFlee(ctx context.Context, act action.Action) action.Bundle {
	player := e.store.Player()
	away := player.Facing.Opposite()
	room, ok := e.store.RoomAt(player.Coord)
	if !ok || !room.Exits[away] {
		return action.Bundle{Success: false, Message: "There is nowhere to flee."}
	}
	outcome := e.store.MovePlayer(away)
	if outcome.Kind == worldstate.MoveBlocked {
		return action.Bundle{Success: false, Message: "There is nowhere to flee."}
	}
	events := []narrative.Event{e.mem.Append(narrative.CombatResolved, fmt.Sprintf("%s flees.", player.Name), nil)}
	e.publishDelta(e.store.Player(), events, nil)
	return action.Bundle{Success: true, Narrative: "You flee.", UpdatedState: e.store.Player()}
}

func (e *Engine) handleTake(ctx context.Context, act action.Action) action.Bundle {
	player := e.store.Player()
	room, ok := e.store.RoomAt(player.Coord)
	if !ok {
		return action.Bundle{Success: false, Message: "There is nothing here."}
	}
	var found *worldstate.Item
	for _, it := range room.Items {
		if it.ID == act.ItemID {
			found = &it
			break
		}
	}
	if found == nil {
		return action.Bundle{Success: false, Message: "That item is not here."}
	}
	change := worldstate.RoomChange{Kind: worldstate.ChangeItemRemoved, ItemID: act.ItemID}
	if err := e.store.ApplyRoomChange(room.Coord, change); err != nil {
		return action.Bundle{Success: false, Message: "You can't take that."}
	}
	player.Inventory = append(player.Inventory, *found)
	events := []narrative.Event{e.mem.Append(narrative.ItemAcquired, fmt.Sprintf("%s picks up %s.", player.Name, found.Name), map[string]any{"item_id": found.ID})}
	e.publishDelta(player, events, []worldstate.RoomChange{change})
	return action.Bundle{Success: true, Narrative: fmt.Sprintf("You take the %s.", found.Name), UpdatedState: player}
}

func (e *Engine) handleUse(ctx context.Context, act action.Action) action.Bundle {
	player := e.store.Player()
	idx := -1
	for i, it := range player.Inventory {
		if it.ID == act.ItemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return action.Bundle{Success: false, Message: "You don't have that."}
	}
	item := player.Inventory[idx]
	if item.Category != "consumable" {
		return action.Bundle{Success: true, Message: fmt.Sprintf("You can't use the %s right now.", item.Name), UpdatedState: player}
	}
	player.Derived.HP += 10
	if player.Derived.HP > player.Derived.MaxHP {
		player.Derived.HP = player.Derived.MaxHP
	}
	player.Inventory = append(player.Inventory[:idx], player.Inventory[idx+1:]...)
	e.publishDelta(player, nil, nil)
	return action.Bundle{Success: true, Narrative: fmt.Sprintf("You use the %s.", item.Name), UpdatedState: player}
}

func (e *Engine) handleTalk(ctx context.Context, act action.Action) action.Bundle {
	player := e.store.Player()
	room, ok := e.store.RoomAt(player.Coord)
	if !ok {
		return action.Bundle{Success: false, Message: "There is no one here."}
	}
	var npc *worldstate.NPCInstance
	for i := range room.NPCs {
		if room.NPCs[i].ID == act.NPCID {
			npc = &room.NPCs[i]
			break
		}
	}
	if npc == nil {
		return action.Bundle{Success: false, Message: "That person isn't here."}
	}

	value, _, err := e.generateContent(ctx, promptctx.Request{
		Kind:             reqkind.NPCDialogue,
		Model:            e.model,
		Room:             room,
		NPC:              npc,
		RecentActions:    []string{act.Message},
		Memory:           e.mem,
		TaskInstructions: "Respond in character. Respond as JSON matching the declared schema.",
	})
	dialogue := fmt.Sprintf("%s has nothing to say.", npc.Name)
	var changes []worldstate.RoomChange
	var questEvents []narrative.Event
	if err == nil {
		if text, ok := value["dialogue"].(string); ok && text != "" {
			dialogue = text
		}
		if memUpdate, ok := value["memory_update"].(string); ok && memUpdate != "" {
			change := worldstate.RoomChange{Kind: worldstate.ChangeNPCUpdate, NPCID: npc.ID, Text: memUpdate}
			_ = e.store.ApplyRoomChange(room.Coord, change)
			changes = append(changes, change)
		}
		if trigger, ok := value["quest_trigger"].(string); ok && trigger != "" {
			if _, exists := e.quests[trigger]; !exists {
				if ev, accepted := e.acceptQuestTemplate(ctx, trigger); accepted {
					questEvents = append(questEvents, ev)
				}
			}
		}
	}

	events := append([]narrative.Event{e.mem.Append(narrative.NPCInteraction, dialogue, map[string]any{"npc_id": npc.ID})}, questEvents...)
	e.publishDelta(player, events, changes)
	return action.Bundle{Success: true, Dialogue: dialogue, UpdatedState: player}
}

func (e *Engine) handleRest(ctx context.Context, act action.Action) action.Bundle {
	player := e.store.Player()
	healHP := player.Derived.MaxHP / 4
	healMP := player.Derived.MaxMP / 4
	player.Derived.HP += healHP
	if player.Derived.HP > player.Derived.MaxHP {
		player.Derived.HP = player.Derived.MaxHP
	}
	player.Derived.MP += healMP
	if player.Derived.MP > player.Derived.MaxMP {
		player.Derived.MP = player.Derived.MaxMP
	}
	e.maybeCondense(ctx)
	e.publishDelta(player, nil, nil)
	return action.Bundle{Success: true, Narrative: "You rest and recover your strength.", UpdatedState: player}
}

func (e *Engine) handleSave(ctx context.Context, act action.Action) action.Bundle {
	path := e.savePath
	if act.SlotName != "" {
		path = act.SlotName
	}
	f := save.Build(e.store, e.mem, e.questList())
	if err := save.Save(path, f); err != nil {
		return action.Bundle{Success: false, Message: "Could not save: " + err.Error()}
	}
	return action.Bundle{Success: true, Message: "Game saved."}
}

func (e *Engine) handleLoad(ctx context.Context, act action.Action) action.Bundle {
	path := e.savePath
	if act.SlotName != "" {
		path = act.SlotName
	}
	f, err := save.Load(path)
	if err != nil {
		return action.Bundle{Success: false, Message: "Could not load: " + err.Error()}
	}
	store, mem := save.Restore(f)
	e.store = store
	e.mem = mem
	e.quests = map[string]save.Quest{}
	for _, q := range f.Quests {
		e.quests[q.ID] = q
	}
	e.resetPinning()
	return action.Bundle{Success: true, Message: "Game loaded.", UpdatedState: e.store.Player()}
}

func (e *Engine) handleNewGame(ctx context.Context, act action.Action) action.Bundle {
	player := worldstate.NewPlayer(act.PlayerName)
	e.store = worldstate.NewStore(act.Seed, player)
	e.mem = narrative.New(narrative.DefaultConfig())
	e.quests = map[string]save.Quest{}
	e.resetPinning()
	return action.Bundle{Success: true, Message: "A new descent begins.", UpdatedState: e.store.Player()}
}
