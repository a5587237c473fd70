package worldstate

import (
	"hash/fnv"
	"math/rand"

	"github.com/ojrac/opensimplex-go"

	"tilecrawler/internal/glyph"
)

// biomeNoise is the macro-map partition over (x, y); z shifts the partition
// into the underground biome family the way a second octave would, without
// needing a true 3D noise field.
type biomeNoise struct {
	surface *opensimplex.Noise
	under   *opensimplex.Noise
}

func newBiomeNoise(seed int64) *biomeNoise {
	return &biomeNoise{
		surface: opensimplex.NewNormalized(seed),
		under:   opensimplex.NewNormalized(seed ^ 0x5bd1e995),
	}
}

const biomeFrequency = 0.15

func (b *biomeNoise) biomeFor(x, y, z int) Biome {
	n := b.surface.Eval2(float64(x)*biomeFrequency, float64(y)*biomeFrequency)
	if z < 0 {
		n = b.under.Eval2(float64(x)*biomeFrequency, float64(y)*biomeFrequency)
		switch {
		case n < 0.35:
			return BiomeCave
		case n < 0.75:
			return BiomeCrypt
		default:
			return BiomeVault
		}
	}
	switch {
	case n < 0.55:
		return BiomeDungeon
	case n < 0.75:
		return BiomeCave
	case n < 0.9:
		return BiomeShop
	default:
		return BiomeShrine
	}
}

// roomRNG derives a deterministic per-coordinate RNG from the world seed.
// fnv1a is used instead of maphash because maphash's seed is process-random
// and would break cross-process reproducibility (§8's seeded-determinism
// property).
func roomRNG(worldSeed int64, c Coordinate) *rand.Rand {
	h := fnv.New64a()
	var buf [32]byte
	writeInt64(buf[0:8], worldSeed)
	writeInt64(buf[8:16], int64(c.X))
	writeInt64(buf[16:24], int64(c.Y))
	writeInt64(buf[24:32], int64(c.Z))
	_, _ = h.Write(buf[:])
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

func writeInt64(b []byte, v int64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// generateRoom runs the full generation pipeline for a never-before-seen
// coordinate. Neighboring already-generated rooms are consulted so exit
// reciprocity holds from the moment the room is created.
func (s *Store) generateRoom(c Coordinate, zoneLevel int) *Room {
	rng := roomRNG(s.seed, c)
	biome := s.noise.biomeFor(c.X, c.Y, c.Z)

	r := &Room{
		Coord:    c,
		Biome:    biome,
		Exits:    map[Direction]bool{},
		Features: map[string]bool{},
	}

	switch biome {
	case BiomeDungeon:
		bspLayout(r, rng)
	case BiomeCave:
		cellularAutomataLayout(r, rng)
	default:
		templateLayout(r, rng, biome)
	}

	resolveExits(s, r, rng)
	scale := difficultyScale(zoneLevel, s.playerLevel)
	populateSpawns(r, rng, scale)
	r.Description = proceduralPlaceholder(r)

	return r
}

func difficultyScale(zoneLevel, playerLevel int) float64 {
	scale := 1 + 0.1*float64(zoneLevel-playerLevel)
	if scale < 0.5 {
		scale = 0.5
	}
	if scale > 3.0 {
		scale = 3.0
	}
	return scale
}

// bspLayout carves a simple binary-space-partition room: a rectangular
// floor interior ringed by walls. Real BSP subdivision is approximated at
// single-room granularity since each Room is already the partition unit;
// the split happens at the macro (which-room-exists) layer via exit bias.
func bspLayout(r *Room, rng *rand.Rand) {
	for y := 0; y < RoomHeight; y++ {
		for x := 0; x < RoomWidth; x++ {
			if y == 0 || y == RoomHeight-1 || x == 0 || x == RoomWidth-1 {
				r.Grid[y][x] = glyph.StoneWall
			} else {
				r.Grid[y][x] = glyph.Floor
			}
		}
	}
	if rng.Float64() < 0.2 {
		rx, ry := 1+rng.Intn(RoomWidth-2), 1+rng.Intn(RoomHeight-2)
		r.Grid[ry][rx] = glyph.Rubble
	}
}

// cellularAutomataLayout smooths a random fill into organic cave walls.
func cellularAutomataLayout(r *Room, rng *rand.Rand) {
	var cells [RoomHeight][RoomWidth]bool // true = wall
	for y := 0; y < RoomHeight; y++ {
		for x := 0; x < RoomWidth; x++ {
			if y == 0 || y == RoomHeight-1 || x == 0 || x == RoomWidth-1 {
				cells[y][x] = true
				continue
			}
			cells[y][x] = rng.Float64() < 0.35
		}
	}
	for iter := 0; iter < 3; iter++ {
		var next [RoomHeight][RoomWidth]bool
		for y := 0; y < RoomHeight; y++ {
			for x := 0; x < RoomWidth; x++ {
				if y == 0 || y == RoomHeight-1 || x == 0 || x == RoomWidth-1 {
					next[y][x] = true
					continue
				}
				n := wallNeighbors(cells, x, y)
				next[y][x] = n >= 5
			}
		}
		cells = next
	}
	for y := 0; y < RoomHeight; y++ {
		for x := 0; x < RoomWidth; x++ {
			if cells[y][x] {
				r.Grid[y][x] = glyph.StoneWall
			} else {
				r.Grid[y][x] = glyph.Floor
			}
		}
	}
	r.Grid[RoomHeight/2][RoomWidth/2] = glyph.Floor // guarantee walkable center
}

func wallNeighbors(cells [RoomHeight][RoomWidth]bool, x, y int) int {
	n := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			ny, nx := y+dy, x+dx
			if ny < 0 || ny >= RoomHeight || nx < 0 || nx >= RoomWidth || cells[ny][nx] {
				n++
			}
		}
	}
	return n
}

// templateLayout places a hand-authored feature room for structured biomes.
func templateLayout(r *Room, rng *rand.Rand, biome Biome) {
	bspLayout(r, rng)
	switch biome {
	case BiomeShop:
		r.Features["shop"] = true
		r.Grid[1][1] = glyph.Altar
	case BiomeShrine:
		r.Features["altar"] = true
		r.Grid[RoomHeight/2][RoomWidth/2] = glyph.Altar
	case BiomeVault:
		r.Grid[1][RoomWidth-2] = glyph.RubblePile
	case BiomeCrypt:
		r.Grid[RoomHeight-2][1] = glyph.Rubble
	}
}

// resolveExits inherits reciprocal exits from already-generated neighbors
// and stochastically decides the rest, biased to keep the graph connected.
func resolveExits(s *Store, r *Room, rng *rand.Rand) {
	dirs := []Direction{North, South, East, West}
	decided := 0
	for _, d := range dirs {
		nc := r.Coord.Neighbor(d)
		if neighbor, ok := s.rooms[nc]; ok {
			if neighbor.Exits[d.Opposite()] {
				r.Exits[d] = true
				decided++
			}
			continue
		}
	}
	for _, d := range dirs {
		if r.Exits[d] {
			continue
		}
		nc := r.Coord.Neighbor(d)
		if _, ok := s.rooms[nc]; ok {
			continue // neighbor exists and chose not to connect here
		}
		bias := 0.55
		if decided == 0 {
			bias = 0.85 // first exit decided must keep the graph connected
		}
		if rng.Float64() < bias {
			r.Exits[d] = true
			decided++
		}
	}
	if decided == 0 {
		// never generate a sealed room
		r.Exits[dirs[rng.Intn(len(dirs))]] = true
	}
	carveDoorways(r)
}

func carveDoorways(r *Room) {
	mid := RoomWidth / 2
	midY := RoomHeight / 2
	if r.Exits[North] {
		r.Grid[0][mid] = glyph.Floor
	}
	if r.Exits[South] {
		r.Grid[RoomHeight-1][mid] = glyph.Floor
	}
	if r.Exits[West] {
		r.Grid[midY][0] = glyph.Floor
	}
	if r.Exits[East] {
		r.Grid[midY][RoomWidth-1] = glyph.Floor
	}
}

var spawnTables = map[Biome][]string{
	BiomeDungeon: {"rat", "skeleton", "bandit"},
	BiomeCave:    {"bat", "spider", "slime"},
	BiomeVault:   {"construct", "wraith"},
	BiomeShop:    {},
	BiomeShrine:  {},
	BiomeCrypt:   {"ghoul", "wight"},
}

func populateSpawns(r *Room, rng *rand.Rand, scale float64) {
	table := spawnTables[r.Biome]
	if len(table) == 0 {
		return
	}
	if rng.Float64() < 0.6 {
		name := table[rng.Intn(len(table))]
		hp := int(10 * scale)
		r.Enemies = append(r.Enemies, EnemyInstance{
			ID: name + "-1", Name: name, HP: hp, MaxHP: hp,
			Attack: int(3 * scale), Defense: int(1 * scale), AIType: "aggressive",
		})
	}
	if rng.Float64() < 0.3 {
		r.Items = append(r.Items, Item{ID: "coin-pouch", Name: "coin pouch", Category: "misc", Quantity: 1})
	}
}

// proceduralPlaceholder is the room's Description from generation until a
// ROOM_DESCRIPTION or ENRICHMENT result is applied; when the LLM never
// answers, the validator's procedural fallback text is applied in its place.
func proceduralPlaceholder(r *Room) string {
	switch r.Biome {
	case BiomeCave:
		return "Damp stone presses close; water drips somewhere unseen."
	case BiomeVault:
		return "Sealed air, untouched for a long time, sits heavy in the vault."
	case BiomeShop:
		return "Shelves of oddments line the alcove, waiting for a buyer."
	case BiomeShrine:
		return "A hush settles over the shrine; the altar is cold stone."
	case BiomeCrypt:
		return "Old dust and older bones line the crypt passage."
	default:
		return "Bare dungeon stone, recently disturbed, stretches in every direction."
	}
}
