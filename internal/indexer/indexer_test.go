package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/vectorcode/internal/storage"
	"github.com/dshills/vectorcode/pkg/types"
)

// memCollection keeps records in memory, keyed by path
type memCollection struct {
	mu        sync.Mutex
	records   map[string][]storage.Document
	upserts   int
	deletes   [][]string
	upsertErr map[string]error
}

func newMemCollection() *memCollection {
	return &memCollection{records: make(map[string][]storage.Document)}
}

func (m *memCollection) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, docs := range m.records {
		n += len(docs)
	}
	return n, nil
}

func (m *memCollection) Query(context.Context, storage.QueryRequest) ([][]types.Candidate, error) {
	return nil, errors.New("not implemented")
}

func (m *memCollection) Upsert(_ context.Context, docs []storage.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	for _, d := range docs {
		if err := m.upsertErr[d.Path]; err != nil {
			return err
		}
	}
	for _, d := range docs {
		m.records[d.Path] = append(m.records[d.Path], d)
	}
	return nil
}

func (m *memCollection) DeleteByPath(_ context.Context, paths []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, slices.Clone(paths))
	n := 0
	for _, p := range paths {
		n += len(m.records[p])
		delete(m.records, p)
	}
	return n, nil
}

func (m *memCollection) ListPaths(context.Context) (map[string][32]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][32]byte, len(m.records))
	for p, docs := range m.records {
		if len(docs) > 0 {
			out[p] = docs[0].FileHash
		}
	}
	return out, nil
}

func (m *memCollection) Info() storage.CollectionInfo { return storage.CollectionInfo{Name: "mem"} }

func (m *memCollection) paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for p := range m.records {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newIndexer(t *testing.T, col storage.Collection, cfg Config) *Indexer {
	t.Helper()
	ix, err := New(col, cfg, nil)
	require.NoError(t, err)
	return ix
}

func TestNew_InvalidOverlap(t *testing.T) {
	_, err := New(newMemCollection(), Config{OverlapRatio: 1}, nil)
	assert.ErrorIs(t, err, types.ErrInvalidOverlap)
}

func TestVectorise_AddUpdateSkip(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.go")
	b := filepath.Join(root, "src", "b.go")
	writeFile(t, a, "package a\n\nfunc A() {}\n")
	writeFile(t, b, "package src\n")

	col := newMemCollection()
	ix := newIndexer(t, col, Config{ProjectRoot: root, Recursive: true, ChunkSize: 8, OverlapRatio: 0.25, Workers: 2})

	stats, err := ix.Vectorise(context.Background(), []string{root})
	require.NoError(t, err)
	assert.Equal(t, types.VectoriseStats{Add: 2}, *stats)
	assert.Equal(t, []string{a, b}, col.paths())

	// Chunk indexes are contiguous from zero and every record carries the file hash
	docs := col.records[a]
	for i, d := range docs {
		assert.Equal(t, i, d.ChunkIndex)
		assert.Equal(t, docs[0].FileHash, d.FileHash)
	}
	assert.Greater(t, len(docs), 1)

	// Unchanged files are skipped
	stats, err = ix.Vectorise(context.Background(), []string{root})
	require.NoError(t, err)
	assert.Equal(t, types.VectoriseStats{Skipped: 2}, *stats)

	// A shrunken file loses its old chunks
	writeFile(t, a, "package a")
	stats, err = ix.Vectorise(context.Background(), []string{root})
	require.NoError(t, err)
	assert.Equal(t, types.VectoriseStats{Update: 1, Skipped: 1}, *stats)
	require.Len(t, col.records[a], 2)
	assert.Equal(t, "package ", col.records[a][0].Text)
	assert.Equal(t, "e a", col.records[a][1].Text[len(col.records[a][1].Text)-3:])
}

func TestVectorise_RemovesOrphans(t *testing.T) {
	root := t.TempDir()
	keep := filepath.Join(root, "keep.py")
	gone := filepath.Join(root, "gone.py")
	writeFile(t, keep, "print('keep')")
	writeFile(t, gone, "print('gone')")

	col := newMemCollection()
	ix := newIndexer(t, col, Config{ProjectRoot: root})

	_, err := ix.Vectorise(context.Background(), []string{"*.py"})
	require.NoError(t, err)
	require.Equal(t, []string{gone, keep}, col.paths())

	require.NoError(t, os.Remove(gone))
	stats, err := ix.Vectorise(context.Background(), []string{"keep.py"})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Removed)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, []string{keep}, col.paths())
}

func TestVectorise_Filters(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), "# build output\nbuild/\n*.log\n")
	writeFile(t, filepath.Join(root, "main.go"), "package main")
	writeFile(t, filepath.Join(root, "build", "out.go"), "package out")
	writeFile(t, filepath.Join(root, "debug.log"), "log line")
	writeFile(t, filepath.Join(root, "node_modules", "x", "index.js"), "module.exports = 1")
	writeFile(t, filepath.Join(root, ".hidden", "secret.go"), "package secret")
	writeFile(t, filepath.Join(root, "empty.txt"), "")
	writeFile(t, filepath.Join(root, "blob.bin"), "\x00\x01\x02\x00binary")

	col := newMemCollection()
	ix := newIndexer(t, col, Config{ProjectRoot: root, Recursive: true})

	stats, err := ix.Vectorise(context.Background(), []string{root})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "main.go")}, col.paths())
	assert.Equal(t, 1, stats.Add)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, 7, stats.Skipped)
}

func TestVectorise_ForceIgnoresGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), "*.log\n")
	writeFile(t, filepath.Join(root, "debug.log"), "log line")
	writeFile(t, filepath.Join(root, ".env"), "TOKEN=x")

	col := newMemCollection()
	ix := newIndexer(t, col, Config{ProjectRoot: root, Force: true})

	_, err := ix.Vectorise(context.Background(), []string{root})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "debug.log")}, col.paths(), "hidden files stay skipped")
}

func TestVectorise_PerFileFailure(t *testing.T) {
	root := t.TempDir()
	good := filepath.Join(root, "good.go")
	bad := filepath.Join(root, "bad.go")
	writeFile(t, good, "package good")
	writeFile(t, bad, "package bad")

	col := newMemCollection()
	col.upsertErr = map[string]error{bad: errors.New("disk full")}
	ix := newIndexer(t, col, Config{ProjectRoot: root})

	stats, err := ix.Vectorise(context.Background(), []string{root})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Add)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, []string{good}, col.paths())
}

func TestVectorise_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.go"), "package a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ix := newIndexer(t, newMemCollection(), Config{ProjectRoot: root})
	_, err := ix.Vectorise(ctx, []string{root})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVectorise_Batches(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "long.txt"), "abcdefghij")

	col := newMemCollection()
	ix := newIndexer(t, col, Config{ProjectRoot: root, ChunkSize: 1, OverlapRatio: 0, BatchSize: 3})

	_, err := ix.Vectorise(context.Background(), []string{"long.txt"})
	require.NoError(t, err)
	assert.Equal(t, 4, col.upserts)
	n, _ := col.Count(context.Background())
	assert.Equal(t, 10, n)
}

func TestIndexLock(t *testing.T) {
	var l IndexLock
	assert.False(t, l.Held())
	assert.True(t, l.TryAcquire())
	assert.True(t, l.Held())
	assert.False(t, l.TryAcquire())
	l.Release()
	assert.True(t, l.TryAcquire())
}

func TestHidden(t *testing.T) {
	assert.True(t, hidden(".git/config"))
	assert.True(t, hidden("src/.cache/x"))
	assert.False(t, hidden("src/main.go"))
	assert.False(t, hidden("./src/main.go"))
}
