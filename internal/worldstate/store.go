package worldstate

import (
	"fmt"
	"sort"

	"tilecrawler/internal/glyph"
)

// MoveOutcomeKind classifies the result of attempting to move the player.
type MoveOutcomeKind string

const (
	MoveOK      MoveOutcomeKind = "ok"
	MoveBlocked MoveOutcomeKind = "blocked"
)

// MoveOutcome is the deterministic result of MovePlayer, before any
// Intelligence request is considered.
type MoveOutcome struct {
	Kind        MoveOutcomeKind
	From, To    Coordinate
	Room        *Room
	NewlyEntered bool
}

// Store is the single-writer, session-scoped authoritative world. It holds
// no static/global state: every session owns its own *Store.
type Store struct {
	seed        int64
	noise       *biomeNoise
	rooms       map[Coordinate]*Room
	discovered  map[Coordinate]bool
	player      *Player
	playerLevel int
}

// NewStore creates a fresh world for seed, generating only the origin room
// (matching the new-game deterministic-start scenario).
func NewStore(seed int64, player *Player) *Store {
	s := &Store{
		seed:        seed,
		noise:       newBiomeNoise(seed),
		rooms:       map[Coordinate]*Room{},
		discovered:  map[Coordinate]bool{},
		player:      player,
		playerLevel: player.Level,
	}
	origin := s.GetOrGenerateRoom(Coordinate{0, 0, 0})
	origin.Visited = true
	s.discovered[origin.Coord] = true
	return s
}

// Player returns the tracked player.
func (s *Store) Player() *Player { return s.player }

// Seed returns the world seed.
func (s *Store) Seed() int64 { return s.seed }

// Discovered returns the sorted set of discovered coordinates.
func (s *Store) Discovered() []Coordinate {
	out := make([]Coordinate, 0, len(s.discovered))
	for c := range s.discovered {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Z != out[j].Z {
			return out[i].Z < out[j].Z
		}
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// GetOrGenerateRoom returns the room at coord, generating it exactly once
// if it has not been generated yet. Invariant (§4.1): a room is generated
// exactly once per coordinate per world.
func (s *Store) GetOrGenerateRoom(coord Coordinate) *Room {
	if r, ok := s.rooms[coord]; ok {
		return r
	}
	r := s.generateRoom(coord, coord.Z)
	s.rooms[coord] = r
	return r
}

// RoomAt returns the room at coord only if it has already been generated.
func (s *Store) RoomAt(coord Coordinate) (*Room, bool) {
	r, ok := s.rooms[coord]
	return r, ok
}

// MovePlayer attempts to move the player in dir. A move through a room with
// no such exit is Blocked and produces no mutation. A move through an exit
// whose neighbor is ungenerated lazily (synchronously) generates it first.
func (s *Store) MovePlayer(dir Direction) MoveOutcome {
	from := s.player.Coord
	current, ok := s.rooms[from]
	if !ok {
		return MoveOutcome{Kind: MoveBlocked, From: from, To: from}
	}
	if !current.Exits[dir] {
		return MoveOutcome{Kind: MoveBlocked, From: from, To: from}
	}
	to := from.Neighbor(dir)
	_, existed := s.rooms[to]
	room := s.GetOrGenerateRoom(to)
	newlyEntered := !room.Visited
	room.Visited = true
	s.discovered[to] = true
	s.player.Coord = to
	s.player.Facing = dir
	_ = existed
	return MoveOutcome{Kind: MoveOK, From: from, To: to, Room: room, NewlyEntered: newlyEntered}
}

// ApplyRoomChange commits a mutation to a room, recording it for replay and
// enforcing idempotence per RoomChangeKind. Invariant (§4.1d): all
// mutations go through this path.
func (s *Store) ApplyRoomChange(coord Coordinate, change RoomChange) error {
	r, ok := s.rooms[coord]
	if !ok {
		return fmt.Errorf("worldstate: apply_room_change on ungenerated room %v", coord)
	}
	switch change.Kind {
	case ChangeTileReplace:
		if change.Y < 0 || change.Y >= RoomHeight || change.X < 0 || change.X >= RoomWidth {
			return fmt.Errorf("worldstate: tile replace out of bounds %d,%d", change.X, change.Y)
		}
		if r.Grid[change.Y][change.X] == change.Glyph {
			return nil // idempotent no-op
		}
		r.Grid[change.Y][change.X] = change.Glyph
	case ChangeItemRemoved:
		kept := r.Items[:0]
		removed := false
		for _, it := range r.Items {
			if it.ID == change.ItemID && !removed {
				removed = true
				continue
			}
			kept = append(kept, it)
		}
		r.Items = kept
		if !removed {
			return nil // idempotent: already removed
		}
	case ChangeItemAdded:
		r.Items = append(r.Items, Item{ID: change.ItemID, Name: change.ItemID, Category: "misc", Quantity: 1})
	case ChangeEnemyRemoved:
		kept := r.Enemies[:0]
		for _, e := range r.Enemies {
			if e.ID == change.EnemyID {
				continue
			}
			kept = append(kept, e)
		}
		r.Enemies = kept
	case ChangeDescriptionUp:
		if r.Enriched && r.Description == change.Text {
			return nil
		}
		r.Description = change.Text
		r.Enriched = true
	case ChangeNPCUpdate:
		for i := range r.NPCs {
			if r.NPCs[i].ID == change.NPCID {
				r.NPCs[i].Memory = append(r.NPCs[i].Memory, change.Text)
			}
		}
	default:
		return fmt.Errorf("worldstate: unknown room change kind %q", change.Kind)
	}
	r.Changes = append(r.Changes, change)
	return nil
}

// CheckExitReciprocity verifies invariant (a) across every generated room;
// used by tests and by load-time validation of a restored snapshot.
func (s *Store) CheckExitReciprocity() error {
	for coord, r := range s.rooms {
		for dir, present := range r.Exits {
			if !present {
				continue
			}
			nc := coord.Neighbor(dir)
			neighbor, ok := s.rooms[nc]
			if !ok {
				continue // neighbor not yet generated; nothing to check yet
			}
			if !neighbor.Exits[dir.Opposite()] {
				return fmt.Errorf("worldstate: exit reciprocity violated between %v and %v", coord, nc)
			}
		}
	}
	return nil
}

// CheckGlyphValidity verifies invariant (b): every tile in every generated
// room is a glyph the legend recognizes.
func (s *Store) CheckGlyphValidity(legend *glyph.Legend) error {
	for coord, r := range s.rooms {
		for y := 0; y < RoomHeight; y++ {
			for x := 0; x < RoomWidth; x++ {
				if !legend.Valid(r.Grid[y][x]) {
					return fmt.Errorf("worldstate: room %v tile (%d,%d) uses unknown glyph %v", coord, x, y, r.Grid[y][x])
				}
			}
		}
	}
	return nil
}
