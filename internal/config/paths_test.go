package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("VC_TEST_DIR", "test_value")

	assert.Equal(t, filepath.Join(home, "test_dir"), ExpandPath("~/test_dir", false))
	assert.Equal(t, filepath.Join("test_value", "test_dir"), ExpandPath("$VC_TEST_DIR/test_dir", false))
	assert.Equal(t, "/tmp/test_dir", ExpandPath("/tmp/test_dir", false))
	assert.Equal(t, "test_dir", ExpandPath("test_dir", false))

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "test_dir"), ExpandPath("test_dir", true))
	assert.Equal(t, filepath.Join(home, "test_dir"), ExpandPath("~/test_dir", true))
}

func TestExpandEnvs(t *testing.T) {
	t.Setenv("VC_TEST_VAR", "test_value")

	m := map[string]any{
		"key1": "$VC_TEST_VAR",
		"key2": map[string]any{"nested_key": "$VC_TEST_VAR"},
		"key3": "$VC_NON_EXISTENT_VAR",
		"key4": 42,
	}
	ExpandEnvs(m)

	assert.Equal(t, "test_value", m["key1"])
	assert.Equal(t, "test_value", m["key2"].(map[string]any)["nested_key"])
	assert.Equal(t, "$VC_NON_EXISTENT_VAR", m["key3"])
	assert.Equal(t, 42, m["key4"])
}

func makeTree(t *testing.T) (root, file1, file2, file3 string) {
	t.Helper()
	root = t.TempDir()
	file1 = filepath.Join(root, "file1.txt")
	file2 = filepath.Join(root, "dir1", "file2.txt")
	file3 = filepath.Join(root, "dir1", "nested", "file3.txt")
	for _, p := range []string{file1, file2, file3} {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("content"), 0o644))
	}
	return root, file1, file2, file3
}

func TestExpandGlobs(t *testing.T) {
	root, file1, file2, file3 := makeTree(t)

	files, err := ExpandGlobs([]string{file1, filepath.Join(root, "dir1")}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{file2, file3, file1}, files)

	files, err = ExpandGlobs([]string{filepath.Join(root, "dir1")}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{file2}, files)

	files, err = ExpandGlobs([]string{filepath.Join(root, "*.txt")}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{file1}, files)

	files, err = ExpandGlobs([]string{file1, file1}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{file1}, files)
}

func TestExpandGlobs_MissingPaths(t *testing.T) {
	root, file1, _, _ := makeTree(t)

	files, err := ExpandGlobs([]string{"/path/does/not/exist"}, true)
	require.NoError(t, err)
	assert.Empty(t, files)

	files, err = ExpandGlobs([]string{file1, filepath.Join(root, "nope.txt")}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{file1}, files)
}

func TestFindProjectConfigDir(t *testing.T) {
	root := t.TempDir()
	level1 := filepath.Join(root, "level1")
	level2 := filepath.Join(level1, "level2")
	level3 := filepath.Join(level2, "level3")
	require.NoError(t, os.MkdirAll(level3, 0o755))

	vc := filepath.Join(level2, ProjectDir)
	git := filepath.Join(level1, ".git")
	require.NoError(t, os.Mkdir(vc, 0o755))
	require.NoError(t, os.Mkdir(git, 0o755))

	assert.Equal(t, vc, FindProjectConfigDir(level3))
	assert.Equal(t, vc, FindProjectConfigDir(level2))
	assert.Equal(t, git, FindProjectConfigDir(level1))

	assert.Equal(t, level2, FindProjectRoot(level3))
	assert.Equal(t, level1, FindProjectRoot(level1))
}

func TestFindProjectConfigDir_NoAnchor(t *testing.T) {
	dir := t.TempDir()
	if FindProjectConfigDir(dir) != "" {
		t.Skip("an enclosing directory of the temp dir carries a project anchor")
	}
	assert.Equal(t, dir, FindProjectRoot(dir))
}
