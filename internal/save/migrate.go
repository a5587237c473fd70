package save

import "fmt"

// migration upgrades a File from one version to the next; the chain is
// applied repeatedly until f.Version == CurrentVersion.
type migration func(File) (File, error)

// migrations is keyed by source version. There is exactly one migration
// registered today because CurrentVersion is 1; a version-0 (pre-save-
// format) migration is kept as a worked example of the chain shape future
// format changes should follow.
var migrations = map[int]migration{
	0: migrateV0ToV1,
}

// migrateV0ToV1 upgrades a hypothetical pre-versioned record: version 0
// records had no explicit Quests slice, so it defaults to empty.
func migrateV0ToV1(f File) (File, error) {
	f.Version = 1
	if f.Quests == nil {
		f.Quests = []Quest{}
	}
	return f, nil
}

// Migrate applies the migration chain starting at f.Version until
// CurrentVersion is reached.
func Migrate(f File) (File, error) {
	for f.Version < CurrentVersion {
		m, ok := migrations[f.Version]
		if !ok {
			return File{}, fmt.Errorf("save: no migration registered for version %d", f.Version)
		}
		next, err := m(f)
		if err != nil {
			return File{}, err
		}
		if next.Version <= f.Version {
			return File{}, fmt.Errorf("save: migration from version %d did not advance the version", f.Version)
		}
		f = next
	}
	return f, nil
}
