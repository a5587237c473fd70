package worldstate

// Stats are the six primary attributes.
type Stats struct {
	STR, DEX, CON, INT, WIS, CHA int
}

// Derived holds stats computed from Stats plus equipment and level.
type Derived struct {
	HP, MaxHP       int
	MP, MaxMP       int
	Attack, Defense int
	CritChance      float64
	CritMultiplier  float64
}

// StatusEffect is an active, timed modifier on the player.
type StatusEffect struct {
	Name          string
	TurnsRemaining int
}

// Player is the single player character tracked by a session's World State
// Store.
type Player struct {
	Name    string
	Class   string
	Level   int
	XP      int
	Stats   Stats
	Derived Derived
	Equipment map[string]Item
	Inventory []Item
	Gold    int
	Status  []StatusEffect
	Coord   Coordinate
	Facing  Direction
}

// NewPlayer creates a level-1 player at the origin with a starter torch,
// matching the deterministic new-game scenario.
func NewPlayer(name string) *Player {
	if name == "" {
		name = "Hero"
	}
	p := &Player{
		Name:  name,
		Class: "adventurer",
		Level: 1,
		Stats: Stats{STR: 10, DEX: 10, CON: 10, INT: 10, WIS: 10, CHA: 10},
		Derived: Derived{
			HP: 20, MaxHP: 20,
			MP: 10, MaxMP: 10,
			Attack: 5, Defense: 2,
			CritChance: 0.05, CritMultiplier: 1.5,
		},
		Equipment: map[string]Item{},
		Inventory: []Item{{ID: "torch", Name: "torch", Category: "misc", Quantity: 1}},
		Gold:      0,
		Coord:     Coordinate{0, 0, 0},
		Facing:    South,
	}
	return p
}
