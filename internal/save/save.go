package save

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"tilecrawler/internal/narrative"
	"tilecrawler/internal/worldstate"
)

// ErrChecksumMismatch is returned by Load when the stored checksum does not
// match the record's contents; the loader refuses to load rather than risk
// silently running on a torn or corrupted save (§6.4, a state-integrity
// failure, fatal at load time).
var ErrChecksumMismatch = fmt.Errorf("save: checksum mismatch, refusing to load")

func checksum(f File) string {
	f.Checksum = ""
	b, _ := json.Marshal(f)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Build assembles a File from live session state.
func Build(world *worldstate.Store, mem *narrative.Memory, quests []Quest) File {
	f := File{
		Version: CurrentVersion,
		World:   world.Snapshot(),
		Narrative: NarrativeSnapshot{
			ShortTerm: mem.ShortTerm(),
			Summary:   mem.Summary(),
		},
		Quests: quests,
	}
	f.Checksum = checksum(f)
	return f
}

// Save snapshots world+narrative+quests under a single logical transaction
// and writes it atomically: serialize, write to a temp file in the target
// directory, then rename over the destination, so a crash mid-write never
// leaves a torn save file.
func Save(path string, f File) error {
	f.Checksum = checksum(f)
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("save: marshal: %w", err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".save-*.tmp")
	if err != nil {
		return fmt.Errorf("save: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("save: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save: rename: %w", err)
	}
	return nil
}

// Load reads a File, migrates it forward if its version is older than
// CurrentVersion, and refuses to load on checksum mismatch.
func Load(path string) (File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("save: read: %w", err)
	}
	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return File{}, fmt.Errorf("save: unmarshal: %w", err)
	}
	want := checksum(f)
	if want != f.Checksum {
		return File{}, ErrChecksumMismatch
	}
	if f.Version < CurrentVersion {
		migrated, err := Migrate(f)
		if err != nil {
			return File{}, fmt.Errorf("save: migrate: %w", err)
		}
		f = migrated
	}
	return f, nil
}

// Restore rebuilds live session state from a loaded File.
func Restore(f File) (*worldstate.Store, *narrative.Memory) {
	store := worldstate.Restore(f.World)
	mem := narrative.New(narrative.DefaultConfig())
	mem.RestoreState(f.Narrative.ShortTerm, f.Narrative.Summary)
	return store, mem
}
