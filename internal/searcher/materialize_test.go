package searcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/vectorcode/pkg/types"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func ranked(paths ...string) []types.RankedResult {
	out := make([]types.RankedResult, len(paths))
	for i, p := range paths {
		out[i] = types.RankedResult{Path: p, Rank: i + 1}
	}
	return out
}

func TestMaterializer_RelativePaths(t *testing.T) {
	root := t.TempDir()
	a := writeFile(t, root, "a.go", "package a")
	b := writeFile(t, root, "sub/b.go", "package b")

	results, stale, err := Materializer{ProjectRoot: root}.Materialize(ranked(b, a))
	require.NoError(t, err)
	assert.Empty(t, stale)
	assert.Equal(t, []types.Result{
		{Path: filepath.Join("sub", "b.go"), Document: "package b"},
		{Path: "a.go", Document: "package a"},
	}, results)
}

func TestMaterializer_AbsolutePaths(t *testing.T) {
	root := t.TempDir()
	a := writeFile(t, root, "a.go", "package a")

	results, _, err := Materializer{ProjectRoot: root, Absolute: true}.Materialize(ranked(a))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, a, results[0].Path)
}

func TestMaterializer_StaleEntries(t *testing.T) {
	root := t.TempDir()
	a := writeFile(t, root, "a.go", "A")
	c := writeFile(t, root, "c.go", "C")
	gone := filepath.Join(root, "deleted.go")
	dir := filepath.Join(root, "pkg")
	require.NoError(t, os.Mkdir(dir, 0o755))

	results, stale, err := Materializer{ProjectRoot: root}.Materialize(ranked(c, gone, dir, a))
	require.NoError(t, err)
	assert.Equal(t, []string{gone, dir}, stale)
	require.Len(t, results, 2)
	assert.Equal(t, "c.go", results[0].Path, "remaining entries keep rank order")
	assert.Equal(t, "a.go", results[1].Path)
}

func TestMaterializer_Empty(t *testing.T) {
	results, stale, err := Materializer{ProjectRoot: t.TempDir()}.Materialize(nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NotNil(t, results)
	assert.Empty(t, stale)
}

func TestMaterializer_RelativeStoredPath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "A")

	results, _, err := Materializer{ProjectRoot: root}.Materialize(ranked("a.go"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.go", results[0].Path)
	assert.Equal(t, "A", results[0].Document)
}

func TestStaleMessages(t *testing.T) {
	assert.Equal(t,
		"/p/x.go is no longer a valid file! Please re-run vectorcode vectorise to refresh the database.",
		StaleWarning("/p/x.go"))
	err := StaleError("/p/x.go")
	assert.True(t, errors.Is(err, types.ErrStaleEntry))
	assert.Contains(t, err.Error(), "/p/x.go")
}
