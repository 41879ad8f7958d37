package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/vectorcode/internal/storage"
	"github.com/dshills/vectorcode/pkg/types"
)

func TestResults_Pipe(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, true)
	require.NoError(t, p.Results([]types.Result{
		{Path: "b.py", Document: "print('b')"},
		{Path: "a.py", Document: "print('a')"},
	}))

	var got []map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, []map[string]string{
		{"path": "b.py", "document": "print('b')"},
		{"path": "a.py", "document": "print('a')"},
	}, got)
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"), "one JSON document")
}

func TestResults_PipeEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf, true).Results(nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestResults_Human(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, false)
	assert.False(t, p.Pipe())
	require.NoError(t, p.Results([]types.Result{
		{Path: "b.py", Document: "B"},
		{Path: "a.py", Document: "A"},
	}))

	assert.Equal(t, "Path: b.py\nContent: \nB\n\nPath: a.py\nContent: \nA\n", buf.String())
}

func TestStats(t *testing.T) {
	stats := types.VectoriseStats{Add: 2, Update: 1, Removed: 3}

	var pipe bytes.Buffer
	require.NoError(t, New(&pipe, true).Stats(stats))
	assert.JSONEq(t, `{"add":2,"update":1,"removed":3,"skipped":0,"failed":0}`, pipe.String())

	var human bytes.Buffer
	require.NoError(t, New(&human, false).Stats(stats))
	assert.Equal(t, "Added:\t2\nUpdated:\t1\nRemoved orphans:\t3\n", human.String())
}

func TestCollections(t *testing.T) {
	infos := []storage.CollectionInfo{
		{
			Name:              "vc-abc",
			ProjectRoot:       "/home/alice/project",
			EmbeddingFunction: "local/token-hash",
			Username:          "alice",
			Hostname:          "box",
			Size:              42,
		},
	}

	var pipe bytes.Buffer
	require.NoError(t, New(&pipe, true).Collections(infos, "/home/alice"))
	assert.JSONEq(t, `[{
		"project-root": "/home/alice/project",
		"user": "alice",
		"hostname": "box",
		"collection_name": "vc-abc",
		"size": 42,
		"embedding_function": "local/token-hash"
	}]`, pipe.String())

	var human bytes.Buffer
	require.NoError(t, New(&human, false).Collections(infos, "/home/alice"))
	out := human.String()
	assert.Contains(t, out, "Project Root")
	assert.Contains(t, out, "Embedding Function")
	assert.Contains(t, out, "~/project")
	assert.Contains(t, out, "42")
	assert.NotContains(t, out, "/home/alice")
}
