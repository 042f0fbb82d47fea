package record

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// #region layout
const (
	StepsFile    = "steps.jsonl"
	ResponseFile = "agent_response.json"
)

// RunDir is <out>/<benchmark>/task_<id>/seed_<seed>/<off|on>.
func RunDir(out string, id Identity) string {
	return filepath.Join(out, id.Benchmark,
		fmt.Sprintf("task_%d", id.TaskID),
		fmt.Sprintf("seed_%d", id.Seed),
		id.Controller)
}

// Location is a run directory found on disk.
type Location struct {
	Dir        string
	Benchmark  string
	TaskID     int
	Seed       int64
	Controller string
}

// PairKey groups the OFF and ON runs of one task and seed.
func (l Location) PairKey() string {
	return fmt.Sprintf("%s/task_%d/seed_%d", l.Benchmark, l.TaskID, l.Seed)
}

// Scan finds every run directory under out that holds a steps file.
// Directories that do not follow the layout are skipped.
func Scan(out string) ([]Location, error) {
	var locs []Location
	err := filepath.WalkDir(out, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != StepsFile {
			return nil
		}
		dir := filepath.Dir(path)
		rel, err := filepath.Rel(out, dir)
		if err != nil {
			return err
		}
		if loc, ok := parseRel(rel); ok {
			loc.Dir = dir
			locs = append(locs, loc)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", out, err)
	}
	return locs, nil
}

func parseRel(rel string) (Location, bool) {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 4 {
		return Location{}, false
	}
	task, err := strconv.Atoi(strings.TrimPrefix(parts[1], "task_"))
	if err != nil || !strings.HasPrefix(parts[1], "task_") {
		return Location{}, false
	}
	seed, err := strconv.ParseInt(strings.TrimPrefix(parts[2], "seed_"), 10, 64)
	if err != nil || !strings.HasPrefix(parts[2], "seed_") {
		return Location{}, false
	}
	if parts[3] != ControllerOff && parts[3] != ControllerOn {
		return Location{}, false
	}
	return Location{Benchmark: parts[0], TaskID: task, Seed: seed, Controller: parts[3]}, true
}

// ensureDir creates the run directory.
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}
	return nil
}

// #endregion layout
