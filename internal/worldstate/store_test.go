package worldstate_test

import (
	"testing"

	"tilecrawler/internal/glyph"
	"tilecrawler/internal/worldstate"
)

func newStore(seed int64) *worldstate.Store {
	return worldstate.NewStore(seed, worldstate.NewPlayer("Tester"))
}

func TestStore_ExitReciprocityHoldsAfterExploration(t *testing.T) {
	t.Parallel()

	s := newStore(42)
	for _, dir := range []worldstate.Direction{worldstate.North, worldstate.South, worldstate.East, worldstate.West} {
		s.MovePlayer(dir)
	}
	if err := s.CheckExitReciprocity(); err != nil {
		t.Errorf("CheckExitReciprocity() = %v, want nil", err)
	}
}

func TestStore_GlyphValidityHoldsForGeneratedRooms(t *testing.T) {
	t.Parallel()

	s := newStore(7)
	s.GetOrGenerateRoom(worldstate.Coordinate{X: 1, Y: 0, Z: 0})
	s.GetOrGenerateRoom(worldstate.Coordinate{X: -1, Y: 0, Z: 0})

	legend := glyph.NewDefault()
	if err := s.CheckGlyphValidity(legend); err != nil {
		t.Errorf("CheckGlyphValidity() = %v, want nil", err)
	}
}

func TestStore_RoomRegenerationIsIdempotent(t *testing.T) {
	t.Parallel()

	s := newStore(42)
	coord := worldstate.Coordinate{X: 1, Y: 0, Z: 0}
	first := s.GetOrGenerateRoom(coord)
	second := s.GetOrGenerateRoom(coord)

	if first != second {
		t.Fatalf("GetOrGenerateRoom returned a new *Room on the second call, want the same pointer")
	}
	if first.Grid != second.Grid {
		t.Errorf("grid changed between calls to GetOrGenerateRoom for the same coordinate")
	}
}

func TestStore_ApplyRoomChange_ItemRemovalIsIdempotent(t *testing.T) {
	t.Parallel()

	s := newStore(1)
	coord := worldstate.Coordinate{0, 0, 0}
	room, _ := s.RoomAt(coord)
	room.Items = append(room.Items, worldstate.Item{ID: "torch", Name: "Torch", Category: "misc"})

	change := worldstate.RoomChange{Kind: worldstate.ChangeItemRemoved, ItemID: "torch"}
	if err := s.ApplyRoomChange(coord, change); err != nil {
		t.Fatalf("first ApplyRoomChange: %v", err)
	}
	if len(room.Items) != 0 {
		t.Fatalf("item still present after removal: %v", room.Items)
	}

	// Applying the same removal again must be a no-op, not an error.
	if err := s.ApplyRoomChange(coord, change); err != nil {
		t.Errorf("second ApplyRoomChange (idempotent no-op) returned %v, want nil", err)
	}
}

func TestStore_ApplyRoomChange_UnknownRoomIsAnError(t *testing.T) {
	t.Parallel()

	s := newStore(1)
	err := s.ApplyRoomChange(worldstate.Coordinate{99, 99, 99}, worldstate.RoomChange{Kind: worldstate.ChangeDescriptionUp, Text: "x"})
	if err == nil {
		t.Error("ApplyRoomChange on an ungenerated room returned nil error, want non-nil")
	}
}

func TestStore_MovePlayer_BlockedWhenNoExit(t *testing.T) {
	t.Parallel()

	s := newStore(1)
	room, _ := s.RoomAt(worldstate.Coordinate{0, 0, 0})
	for dir := range room.Exits {
		room.Exits[dir] = false
	}

	outcome := s.MovePlayer(worldstate.North)
	if outcome.Kind != worldstate.MoveBlocked {
		t.Errorf("MovePlayer with no exits = %v, want MoveBlocked", outcome.Kind)
	}
}
