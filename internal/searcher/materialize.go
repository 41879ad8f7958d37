package searcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dshills/vectorcode/pkg/types"
)

// Materializer loads the files of ranked paths
type Materializer struct {
	ProjectRoot string

	// Absolute emits absolute paths; otherwise paths are relative to ProjectRoot
	Absolute bool
}

// Materialize reads every ranked file in rank order.
// Paths that are no longer regular files are returned in stale and left out of results.
func (m Materializer) Materialize(ranked []types.RankedResult) (results []types.Result, stale []string, err error) {
	results = make([]types.Result, 0, len(ranked))

	for _, r := range ranked {
		path := r.Path
		if !filepath.IsAbs(path) && m.ProjectRoot != "" {
			path = filepath.Join(m.ProjectRoot, path)
		}

		info, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.Mode().IsRegular()) {
			stale = append(stale, r.Path)
			continue
		}
		if err != nil {
			return nil, stale, fmt.Errorf("failed to stat %s: %w", path, err)
		}

		content, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			stale = append(stale, r.Path)
			continue
		}
		if err != nil {
			return nil, stale, fmt.Errorf("failed to read %s: %w", path, err)
		}

		results = append(results, types.Result{Path: m.outputPath(path), Document: string(content)})
	}

	return results, stale, nil
}

func (m Materializer) outputPath(path string) string {
	if m.Absolute || m.ProjectRoot == "" {
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	rel, err := filepath.Rel(m.ProjectRoot, path)
	if err != nil {
		return path
	}
	return rel
}

// StaleWarning is the message shown for an indexed path missing from disk
func StaleWarning(path string) string {
	return fmt.Sprintf("%s is no longer a valid file! Please re-run vectorcode vectorise to refresh the database.", path)
}

// StaleError wraps types.ErrStaleEntry for path
func StaleError(path string) error {
	return fmt.Errorf("%w: %s", types.ErrStaleEntry, path)
}
