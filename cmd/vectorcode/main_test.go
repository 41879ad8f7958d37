package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/vectorcode/pkg/types"
)

const mathSource = "def add(a, b):\n    return a + b\n"

// newProject creates a project and points the database at a temp directory
func newProject(t *testing.T) (root string, base []string) {
	t.Helper()

	root = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "math.py"), []byte(mathSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "readme.txt"), []byte("usage notes"), 0o644))

	t.Setenv("VECTORCODE_DB_PATH", t.TempDir())
	t.Setenv("VECTORCODE_DB_BACKEND", "sqlite")
	t.Setenv("VECTORCODE_EMBEDDING_FUNCTION", "local")

	base = []string{
		"--config", filepath.Join(t.TempDir(), "missing.json"),
		"--project_root", root,
	}
	return root, base
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestCLI_VectoriseAndQuery(t *testing.T) {
	_, base := newProject(t)

	code, out, errOut := runCLI(t, append([]string{"vectorise", "--pipe", "-r"}, base...)...)
	require.Equal(t, 0, code, errOut)
	var stats types.VectoriseStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats.Add)

	code, out, errOut = runCLI(t, append([]string{"query", "--pipe", mathSource}, base...)...)
	require.Equal(t, 0, code, errOut)
	var results []types.Result
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "math.py", results[0].Path)
	assert.Equal(t, mathSource, results[0].Document)

	code, out, _ = runCLI(t, append([]string{"query", "-n", "2", mathSource}, base...)...)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Path: math.py\nContent: \n"+mathSource)
	assert.Contains(t, out, "Path: readme.txt")
}

func TestCLI_QueryWithoutCollection(t *testing.T) {
	root, base := newProject(t)

	code, out, errOut := runCLI(t, append([]string{"query", "anything"}, base...)...)
	assert.Equal(t, 1, code)
	assert.Empty(t, out)
	assert.Contains(t, errOut, fmt.Sprintf("There's no existing collection for %s", root))
}

func TestCLI_QueryEmptyCollection(t *testing.T) {
	root, base := newProject(t)
	require.NoError(t, os.Remove(filepath.Join(root, "math.py")))
	require.NoError(t, os.Remove(filepath.Join(root, "readme.txt")))

	code, _, errOut := runCLI(t, append([]string{"vectorise"}, base...)...)
	require.Equal(t, 0, code, errOut)

	code, out, errOut := runCLI(t, append([]string{"query", "anything"}, base...)...)
	assert.Equal(t, 0, code)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "Empty collection!")
}

func TestCLI_InvalidFlags(t *testing.T) {
	_, base := newProject(t)

	code, _, errOut := runCLI(t, append([]string{"query", "-n", "0", "x"}, base...)...)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "n_result")

	code, _, errOut = runCLI(t, append([]string{"query", "--overlap", "1", "x"}, base...)...)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "overlap")

	code, _, _ = runCLI(t, append([]string{"query"}, base...)...)
	assert.Equal(t, 1, code)
}

func TestCLI_LsAndDrop(t *testing.T) {
	root, base := newProject(t)

	code, _, errOut := runCLI(t, append([]string{"vectorise"}, base...)...)
	require.Equal(t, 0, code, errOut)

	code, out, _ := runCLI(t, append([]string{"ls", "--pipe"}, base...)...)
	require.Equal(t, 0, code)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, root, entries[0]["project-root"])
	assert.Equal(t, float64(2), entries[0]["size"])

	code, out, _ = runCLI(t, append([]string{"drop"}, base...)...)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "has been deleted")

	code, _, errOut = runCLI(t, append([]string{"query", "x"}, base...)...)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "There's no existing collection")
}

func TestCLI_Version(t *testing.T) {
	code, out, _ := runCLI(t, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "vectorcode dev")
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "There's no existing collection for /p",
		errorMessage(fmt.Errorf("open: %w", types.ErrNoCollection), "/p"))
	assert.Contains(t, errorMessage(types.ErrSchemaMismatch, "/p"),
		"The collection was embedded with a different embedding model.")
	assert.Equal(t, "boom", errorMessage(fmt.Errorf("boom"), "/p"))
}
