package trainer

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/aouyang1/go-salinity/errs"
)

// runDirPattern matches the per run directories named after a model version
var runDirPattern = regexp.MustCompile(`^\d{14}(-\d+)?$`)

// createRunDirs creates a fresh directory named after the model version under both the models
// and data directories and returns its name. A numeric suffix is added when a previous run
// already claimed the version.
func createRunDirs(modelsDir, dataDir, version string) (string, error) {
	for i := 0; ; i++ {
		name := version
		if i > 0 {
			name = fmt.Sprintf("%s-%d", version, i)
		}
		err := os.Mkdir(filepath.Join(modelsDir, name), 0o755)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", errs.Wrap(errs.KindInternal, "unable to create run directory "+name, err)
		}
		if err := os.MkdirAll(filepath.Join(dataDir, name), 0o755); err != nil {
			os.RemoveAll(filepath.Join(modelsDir, name))
			return "", errs.Wrap(errs.KindInternal, "unable to create run directory "+name, err)
		}
		return name, nil
	}
}

// removeRunDirs deletes the output of a run that never published a manifest
func removeRunDirs(name string, dirs ...string) {
	for _, dir := range dirs {
		path := filepath.Join(dir, name)
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("unable to remove failed run output", "path", path, "error", err.Error())
		}
	}
}

// pruneRunDirs keeps the newest keep run directories of dir and never removes current
func pruneRunDirs(dir, current string, keep int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("unable to list run directories", "dir", dir, "error", err.Error())
		return
	}
	var runs []string
	for _, e := range entries {
		if e.IsDir() && runDirPattern.MatchString(e.Name()) && e.Name() != current {
			runs = append(runs, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(runs)))

	// current counts against keep
	for i := keep - 1; i < len(runs); i++ {
		path := filepath.Join(dir, runs[i])
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("unable to prune run directory", "path", path, "error", err.Error())
			continue
		}
		slog.Debug("pruned run directory", "path", path)
	}
}
