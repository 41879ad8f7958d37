package postgres

import (
	"context"
	"crypto/sha256"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/vectorcode/internal/embedder"
	"github.com/dshills/vectorcode/internal/storage"
	"github.com/dshills/vectorcode/pkg/types"
)

// envTestDSN points the integration tests at a database with pgvector installed
const envTestDSN = "VECTORCODE_TEST_POSTGRES_DSN"

func TestNearestSQL(t *testing.T) {
	tests := []struct {
		name    string
		limit   int
		exclude bool
		want    string
	}{
		{
			name:  "limited",
			limit: 5,
			want:  "SELECT path, document, embedding <=> $2 AS distance FROM vectorcode_documents WHERE collection = $1 ORDER BY distance, seq LIMIT 5",
		},
		{
			name:    "excluding",
			limit:   3,
			exclude: true,
			want:    "SELECT path, document, embedding <=> $2 AS distance FROM vectorcode_documents WHERE collection = $1 AND NOT (path = ANY($3)) ORDER BY distance, seq LIMIT 3",
		},
		{
			name: "all records",
			want: "SELECT path, document, embedding <=> $2 AS distance FROM vectorcode_documents WHERE collection = $1 ORDER BY distance, seq",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nearestSQL(tt.limit, tt.exclude))
		})
	}
}

func TestMapError(t *testing.T) {
	dims := &pgconn.PgError{Code: codeDataException, Message: "different vector dimensions 3 and 4"}
	assert.ErrorIs(t, mapError(dims), types.ErrSchemaMismatch)

	other := &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}
	assert.NotErrorIs(t, mapError(other), types.ErrSchemaMismatch)
	assert.Same(t, error(other), mapError(other))

	plain := errors.New("boom")
	assert.Equal(t, plain, mapError(plain))
}

func openTestBackend(t *testing.T) *Backend {
	t.Helper()
	dsn := os.Getenv(envTestDSN)
	if dsn == "" {
		t.Skipf("%s not set", envTestDSN)
	}
	b, err := New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBackend_Integration(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()

	emb, err := embedder.New(embedder.Config{Provider: embedder.ProviderLocal, Dimension: 64})
	require.NoError(t, err)
	spec := storage.CollectionSpec{ProjectRoot: t.TempDir(), Username: "alice", Hostname: "box", Embedder: emb}

	col, err := b.GetOrCreateCollection(ctx, spec)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.DropCollection(context.Background(), spec.Name()) })

	hash := sha256.Sum256([]byte("v1"))
	require.NoError(t, col.Upsert(ctx, []storage.Document{
		{Path: "/repo/db.go", ChunkIndex: 0, Text: "open database connection", FileHash: hash},
		{Path: "/repo/http.go", ChunkIndex: 0, Text: "serve http request", FileHash: hash},
	}))

	n, err := col.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	lists, err := col.Query(ctx, storage.QueryRequest{
		Texts:    []string{"open database connection"},
		NResults: 0,
		Include:  storage.Include{Documents: true},
		Exclude:  []string{"/repo/http.go"},
	})
	require.NoError(t, err)
	require.Len(t, lists, 1)
	require.Len(t, lists[0], 1)
	assert.Equal(t, "/repo/db.go", lists[0][0].Path)
	assert.InDelta(t, 0, lists[0][0].Distance, 1e-5)
	require.NotNil(t, lists[0][0].Document)

	paths, err := col.ListPaths(ctx)
	require.NoError(t, err)
	assert.Equal(t, hash, paths["/repo/db.go"])

	removed, err := col.DeleteByPath(ctx, []string{"/repo/db.go"})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	other, err := embedder.New(embedder.Config{Provider: embedder.ProviderLocal, Dimension: 32})
	require.NoError(t, err)
	_, err = b.GetCollection(ctx, storage.CollectionSpec{
		ProjectRoot: spec.ProjectRoot, Username: "alice", Hostname: "box", Embedder: other,
	})
	assert.ErrorIs(t, err, types.ErrSchemaMismatch)
}
