package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/vectorcode/pkg/types"
)

func writeJSON(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(LoadOptions{GlobalFile: filepath.Join(dir, "missing.json")})
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.DBBackend)
	assert.Equal(t, ExpandPath("~/.local/share/vectorcode/db", true), cfg.DBPath)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 6334, cfg.Port)
	assert.Equal(t, "local", cfg.EmbeddingFunction)
	assert.Empty(t, cfg.EmbeddingParams)
	assert.True(t, cfg.VerifyEmbedding)
	assert.Equal(t, -1, cfg.ChunkSize)
	assert.Equal(t, 0.2, cfg.OverlapRatio)
	assert.Equal(t, -1, cfg.QueryMultiplier)
	assert.Equal(t, 1, cfg.NResult)
	assert.Empty(t, cfg.Reranker)
	assert.Empty(t, cfg.RerankerParams)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Layers(t *testing.T) {
	dir := t.TempDir()
	global := filepath.Join(dir, "global", FileName)
	writeJSON(t, global, `{
		"host": "global-host",
		"port": 1234,
		"chunk_size": 512,
		"embedding_function": "jina",
		"embedding_params": {"api_key": "$VC_TEST_KEY", "nested": {"model": "$VC_TEST_MISSING"}}
	}`)

	root := filepath.Join(dir, "project")
	writeJSON(t, filepath.Join(root, ProjectDir, FileName), `{
		"chunk_size": 1024,
		"overlap_ratio": 0.3,
		"reranker": "cross-encoder",
		"reranker_params": {"model": "jina-reranker-v2-base-multilingual"}
	}`)

	t.Setenv("VC_TEST_KEY", "secret")
	t.Setenv("VECTORCODE_N_RESULT", "7")

	cfg, err := Load(LoadOptions{GlobalFile: global, ProjectRoot: root})
	require.NoError(t, err)

	assert.Equal(t, "global-host", cfg.Host)
	assert.Equal(t, 1234, cfg.Port)
	assert.Equal(t, 1024, cfg.ChunkSize, "project overrides global")
	assert.Equal(t, 0.3, cfg.OverlapRatio)
	assert.Equal(t, 7, cfg.NResult, "environment overrides files")
	assert.Equal(t, "cross-encoder", cfg.Reranker)
	assert.Equal(t, "jina-reranker-v2-base-multilingual", cfg.RerankerParams["model"])
	assert.Equal(t, "secret", cfg.EmbeddingParams["api_key"])
	nested, ok := cfg.EmbeddingParams["nested"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "$VC_TEST_MISSING", nested["model"])
	assert.Equal(t, root, cfg.ProjectRoot)
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	for _, content := range []string{"invalid json", "{"} {
		path := filepath.Join(dir, FileName)
		writeJSON(t, path, content)
		_, err := Load(LoadOptions{GlobalFile: path})
		assert.Error(t, err, "content %q", content)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	writeJSON(t, envFile, "VECTORCODE_RERANKER=naive\n")
	t.Cleanup(func() { _ = os.Unsetenv("VECTORCODE_RERANKER") })

	cfg, err := Load(LoadOptions{GlobalFile: filepath.Join(dir, "none.json"), EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, "naive", cfg.Reranker)

	_, err = Load(LoadOptions{GlobalFile: filepath.Join(dir, "none.json"), EnvFile: filepath.Join(dir, "missing.env")})
	assert.NoError(t, err, "a missing env file is not an error")
}

func TestLoad_RerankerModelName(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "project")
	writeJSON(t, filepath.Join(root, ProjectDir, FileName), `{"reranker": "BAAI/bge-reranker-base"}`)

	cfg, err := Load(LoadOptions{GlobalFile: filepath.Join(dir, "none.json"), ProjectRoot: root})
	require.NoError(t, err)
	assert.Equal(t, "BAAI/bge-reranker-base", cfg.Reranker)
	assert.NoError(t, cfg.Validate())
}

func TestMergeFrom(t *testing.T) {
	cfg := Default()
	cfg.Host = "host1"
	cfg.Port = 8001
	cfg.NResult = 10

	n := 5
	overlap := 0.5
	cfg.MergeFrom(Overrides{NResult: &n, OverlapRatio: &overlap, Exclude: []string{"a.go"}})

	assert.Equal(t, "host1", cfg.Host)
	assert.Equal(t, 8001, cfg.Port, "unset overrides keep the loaded value")
	assert.Equal(t, 5, cfg.NResult)
	assert.Equal(t, 0.5, cfg.OverlapRatio)
	assert.Equal(t, -1, cfg.ChunkSize)
	assert.Equal(t, []string{"a.go"}, cfg.QueryExclude)

	cfg.MergeFrom(Overrides{})
	assert.Equal(t, []string{"a.go"}, cfg.QueryExclude)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"overlap too large", func(c *Config) { c.OverlapRatio = 1 }, types.ErrInvalidOverlap},
		{"negative overlap", func(c *Config) { c.OverlapRatio = -0.1 }, types.ErrInvalidOverlap},
		{"zero results", func(c *Config) { c.NResult = 0 }, types.ErrInvalidResultCount},
		{"unknown backend", func(c *Config) { c.DBBackend = "chroma" }, ErrInvalidConfig},
		{"postgres without url", func(c *Config) { c.DBBackend = BackendPostgres }, ErrInvalidConfig},
		{"qdrant without host", func(c *Config) { c.DBBackend = BackendQdrant; c.Host = "" }, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}

	cfg := Default()
	cfg.DBBackend = BackendPostgres
	cfg.DBURL = "postgres://localhost/vectorcode"
	assert.NoError(t, cfg.Validate())
}
