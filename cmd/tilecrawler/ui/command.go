package ui

import (
	"strings"

	"tilecrawler/internal/action"
	"tilecrawler/internal/worldstate"
)

// parseCommand turns one line of player input into an action.Action. Ids
// (enemy/NPC/item) are typed literally as shown in the room listing; this
// keeps command parsing a thin, deterministic front end rather than a
// second intent-recognition layer duplicating the Intelligence Core's job.
func parseCommand(line string) (action.Action, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return action.Action{}, false
	}
	verb := strings.ToLower(fields[0])
	rest := fields[1:]

	switch verb {
	case "go", "move", "north", "south", "east", "west", "up", "down", "n", "s", "e", "w":
		dir, ok := parseDirection(verb, rest)
		if !ok {
			return action.Action{}, false
		}
		return action.Action{Kind: action.Move, Direction: dir}, true

	case "attack", "fight", "kill":
		if len(rest) == 0 {
			return action.Action{}, false
		}
		return action.Action{Kind: action.Attack, TargetID: rest[0]}, true

	case "flee", "run":
		return action.Action{Kind: action.Flee}, true

	case "take", "get", "pickup":
		if len(rest) == 0 {
			return action.Action{}, false
		}
		return action.Action{Kind: action.Take, ItemID: rest[0]}, true

	case "use", "drink", "eat":
		if len(rest) == 0 {
			return action.Action{}, false
		}
		return action.Action{Kind: action.Use, ItemID: rest[0]}, true

	case "talk", "say":
		if len(rest) == 0 {
			return action.Action{}, false
		}
		return action.Action{Kind: action.Talk, NPCID: rest[0], Message: strings.Join(rest[1:], " ")}, true

	case "rest", "sleep":
		return action.Action{Kind: action.Rest}, true

	case "save":
		slot := ""
		if len(rest) > 0 {
			slot = rest[0]
		}
		return action.Action{Kind: action.SaveGame, SlotName: slot}, true

	case "load":
		slot := ""
		if len(rest) > 0 {
			slot = rest[0]
		}
		return action.Action{Kind: action.LoadGame, SlotName: slot}, true

	case "new":
		name := "Wanderer"
		if len(rest) > 0 {
			name = strings.Join(rest, " ")
		}
		seed := int64(1)
		return action.Action{Kind: action.NewGame, PlayerName: name, Seed: seed}, true
	}
	return action.Action{}, false
}

func parseDirection(verb string, rest []string) (worldstate.Direction, bool) {
	token := verb
	if verb == "go" || verb == "move" {
		if len(rest) == 0 {
			return "", false
		}
		token = strings.ToLower(rest[0])
	}
	switch token {
	case "north", "n":
		return worldstate.North, true
	case "south", "s":
		return worldstate.South, true
	case "east", "e":
		return worldstate.East, true
	case "west", "w":
		return worldstate.West, true
	case "up":
		return worldstate.Up, true
	case "down":
		return worldstate.Down, true
	}
	return "", false
}
