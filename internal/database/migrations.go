package database

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Migration is one NNNNNN_name.up.sql / .down.sql pair.
type Migration struct {
	Version  int
	Name     string
	Up       string
	Down     string
	Checksum string
}

// ID is the file stem, e.g. 000002_user_search_indexes.
func (m Migration) ID() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

var migrationFile = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.up\.sql$`)

// LoadMigrations reads every up/down pair in dir, ordered by version. A
// missing down script or a repeated version is an error.
func LoadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	seen := make(map[int]string)
	var out []Migration
	for _, e := range entries {
		parts := migrationFile.FindStringSubmatch(e.Name())
		if e.IsDir() || parts == nil {
			continue
		}
		version, _ := strconv.Atoi(parts[1])
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migration version %d used by %s and %s", version, prev, e.Name())
		}
		seen[version] = e.Name()

		up, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		downName := fmt.Sprintf("%s_%s.down.sql", parts[1], parts[2])
		down, err := fs.ReadFile(fsys, path.Join(dir, downName))
		if err != nil {
			return nil, fmt.Errorf("migration %s has no down script: %w", e.Name(), err)
		}

		out = append(out, Migration{
			Version:  version,
			Name:     parts[2],
			Up:       string(up),
			Down:     string(down),
			Checksum: strconv.FormatUint(xxhash.Sum64(up), 16),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

var builtinMigrations = sync.OnceValues(func() ([]Migration, error) {
	return LoadMigrations(embeddedMigrations, "migrations")
})

// GetMigrations returns the migrations compiled into the binary.
func GetMigrations() []Migration {
	ms, err := builtinMigrations()
	if err != nil {
		// the embedded set is fixed at build time; a load error is a packaging bug
		panic(err)
	}
	return ms
}
