package missions

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Garsondee/Squad-Tactics/internal/game"
)

// ErrNotFound is returned when no catalog holds the requested mission.
var ErrNotFound = errors.New("mission not found")

// Catalog merges the built-in missions with those of an optional directory.
// Directory definitions replace built-ins with the same ID.
func Catalog(dir string) ([]*game.MissionDef, error) {
	defs, err := game.LoadMissionFS(FS)
	if err != nil {
		return nil, fmt.Errorf("built-in missions: %w", err)
	}
	if dir == "" {
		return defs, nil
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return defs, nil
	}
	extra, err := game.LoadMissionDir(dir)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*game.MissionDef, len(defs)+len(extra))
	for _, d := range defs {
		byID[d.MissionID] = d
	}
	for _, d := range extra {
		byID[d.MissionID] = d
	}
	out := make([]*game.MissionDef, 0, len(byID))
	for _, d := range byID {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MissionID < out[j].MissionID })
	return out, nil
}

// Find resolves name as a definition file path when it has a JSON or YAML
// extension, otherwise as a mission ID in Catalog(dir).
func Find(name, dir string) (*game.MissionDef, error) {
	lower := strings.ToLower(name)
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		if strings.HasSuffix(lower, ext) {
			return game.LoadMissionFile(name)
		}
	}
	defs, err := Catalog(dir)
	if err != nil {
		return nil, err
	}
	for _, d := range defs {
		if d.MissionID == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// IDs lists the mission IDs of defs in order.
func IDs(defs []*game.MissionDef) []string {
	ids := make([]string, len(defs))
	for i, d := range defs {
		ids[i] = d.MissionID
	}
	return ids
}
