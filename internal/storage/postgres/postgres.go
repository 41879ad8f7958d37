// Package postgres implements the vector store on PostgreSQL with the pgvector extension.
//
// All collections share two tables. Distances are computed by the server with
// the cosine distance operator, and the queries of one request are sent as a
// single pgx batch.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/dshills/vectorcode/internal/embedder"
	"github.com/dshills/vectorcode/internal/storage"
	"github.com/dshills/vectorcode/pkg/types"
)

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS vectorcode_collections (
    name TEXT PRIMARY KEY,
    project_root TEXT NOT NULL,
    embedding_function TEXT NOT NULL,
    dimension INTEGER NOT NULL,
    username TEXT NOT NULL DEFAULT '',
    hostname TEXT NOT NULL DEFAULT '',
    created_by TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS vectorcode_documents (
    seq BIGSERIAL,
    collection TEXT NOT NULL REFERENCES vectorcode_collections(name) ON DELETE CASCADE,
    id UUID NOT NULL,
    path TEXT NOT NULL,
    chunk_index INTEGER NOT NULL,
    document TEXT NOT NULL,
    file_hash BYTEA NOT NULL,
    embedding vector NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (collection, id)
);

CREATE INDEX IF NOT EXISTS vectorcode_documents_path_idx ON vectorcode_documents(collection, path);
`

// pgvector reports mismatched vector lengths as a data exception
const codeDataException = "22000"

// Backend implements storage.Backend on a pgx connection pool
type Backend struct {
	pool   *pgxpool.Pool
	target string
}

// New connects to the database at dsn and creates the tables when missing
func New(ctx context.Context, dsn string) (*Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	cfg := pool.Config().ConnConfig
	return &Backend{
		pool:   pool,
		target: fmt.Sprintf("postgres://%s:%d/%s", cfg.Host, cfg.Port, cfg.Database),
	}, nil
}

func (b *Backend) Target() string {
	return b.target
}

func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}

func (b *Backend) GetCollection(ctx context.Context, spec storage.CollectionSpec) (storage.Collection, error) {
	if spec.Embedder == nil {
		return nil, storage.ErrEmbedderRequired
	}

	info, err := b.collectionInfo(ctx, spec.Name())
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w for %s", types.ErrNoCollection, spec.ProjectRoot)
	}
	if err != nil {
		return nil, mapError(err)
	}

	if !spec.SkipVerify {
		if err := info.Verify(spec.Embedder); err != nil {
			return nil, err
		}
	}

	return &collection{pool: b.pool, info: info, embedder: spec.Embedder}, nil
}

func (b *Backend) GetOrCreateCollection(ctx context.Context, spec storage.CollectionSpec) (storage.Collection, error) {
	if spec.Embedder == nil {
		return nil, storage.ErrEmbedderRequired
	}

	_, err := b.pool.Exec(ctx, `
		INSERT INTO vectorcode_collections
			(name, project_root, embedding_function, dimension, username, hostname, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (name) DO NOTHING`,
		spec.Name(), spec.ProjectRoot, embedder.Name(spec.Embedder), spec.Embedder.Dimension(),
		spec.Username, spec.Hostname, storage.CreatedBy, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", mapError(err))
	}

	return b.GetCollection(ctx, spec)
}

func (b *Backend) ListCollections(ctx context.Context) ([]storage.CollectionInfo, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT c.name, c.project_root, c.embedding_function, c.dimension,
		       c.username, c.hostname, c.created_by, c.created_at,
		       (SELECT COUNT(*) FROM vectorcode_documents d WHERE d.collection = c.name)
		FROM vectorcode_collections c
		WHERE c.created_by = $1
		ORDER BY c.project_root`, storage.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", mapError(err))
	}
	defer rows.Close()

	var infos []storage.CollectionInfo
	for rows.Next() {
		var info storage.CollectionInfo
		if err := rows.Scan(&info.Name, &info.ProjectRoot, &info.EmbeddingFunction, &info.Dimension,
			&info.Username, &info.Hostname, &info.CreatedBy, &info.CreatedAt, &info.Size); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (b *Backend) DropCollection(ctx context.Context, name string) error {
	tag, err := b.pool.Exec(ctx, "DELETE FROM vectorcode_collections WHERE name = $1", name)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", types.ErrNoCollection, name)
	}
	return nil
}

func (b *Backend) collectionInfo(ctx context.Context, name string) (storage.CollectionInfo, error) {
	var info storage.CollectionInfo
	err := b.pool.QueryRow(ctx, `
		SELECT name, project_root, embedding_function, dimension,
		       username, hostname, created_by, created_at
		FROM vectorcode_collections
		WHERE name = $1`, name).Scan(&info.Name, &info.ProjectRoot, &info.EmbeddingFunction,
		&info.Dimension, &info.Username, &info.Hostname, &info.CreatedBy, &info.CreatedAt)
	return info, err
}

type collection struct {
	pool     *pgxpool.Pool
	info     storage.CollectionInfo
	embedder embedder.Embedder
}

func (c *collection) Info() storage.CollectionInfo {
	return c.info
}

func (c *collection) Count(ctx context.Context) (int, error) {
	var n int
	err := c.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM vectorcode_documents WHERE collection = $1", c.info.Name).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", mapError(err))
	}
	return n, nil
}

func (c *collection) Query(ctx context.Context, req storage.QueryRequest) ([][]types.Candidate, error) {
	if len(req.Texts) == 0 {
		return nil, nil
	}

	vectors, err := embedder.EmbedTexts(ctx, c.embedder, req.Texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	sql := nearestSQL(req.NResults, len(req.Exclude) > 0)
	batch := &pgx.Batch{}
	for _, v := range vectors {
		if len(v) != c.info.Dimension {
			return nil, fmt.Errorf("%w: query dimension %d, collection dimension %d",
				types.ErrSchemaMismatch, len(v), c.info.Dimension)
		}
		args := []any{c.info.Name, pgvector.NewVector(v)}
		if len(req.Exclude) > 0 {
			args = append(args, req.Exclude)
		}
		batch.Queue(sql, args...)
	}

	br := c.pool.SendBatch(ctx, batch)
	defer func() { _ = br.Close() }()

	results := make([][]types.Candidate, len(vectors))
	for i := range vectors {
		rows, err := br.Query()
		if err != nil {
			return nil, fmt.Errorf("failed to query documents: %w", mapError(err))
		}
		candidates, err := scanCandidates(rows, req.Include.Documents)
		if err != nil {
			return nil, fmt.Errorf("failed to read query results: %w", mapError(err))
		}
		results[i] = candidates
	}
	return results, nil
}

func scanCandidates(rows pgx.Rows, withDocuments bool) ([]types.Candidate, error) {
	defer rows.Close()

	candidates := []types.Candidate{}
	for rows.Next() {
		var path, document string
		var distance float64
		if err := rows.Scan(&path, &document, &distance); err != nil {
			return nil, err
		}
		c := types.Candidate{Path: path, Distance: distance}
		if withDocuments {
			c.Document = &document
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func (c *collection) Upsert(ctx context.Context, docs []storage.Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	vectors, err := embedder.EmbedTexts(ctx, c.embedder, texts)
	if err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}

	now := time.Now()
	batch := &pgx.Batch{}
	for i, d := range docs {
		if len(vectors[i]) != c.info.Dimension {
			return fmt.Errorf("%w: document dimension %d, collection dimension %d",
				types.ErrSchemaMismatch, len(vectors[i]), c.info.Dimension)
		}
		batch.Queue(`
			INSERT INTO vectorcode_documents
				(collection, id, path, chunk_index, document, file_hash, embedding, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (collection, id) DO UPDATE SET
				document = excluded.document,
				file_hash = excluded.file_hash,
				embedding = excluded.embedding,
				updated_at = excluded.updated_at`,
			c.info.Name, storage.DocumentID(d.Path, d.ChunkIndex).String(), d.Path, d.ChunkIndex,
			d.Text, d.FileHash[:], pgvector.NewVector(vectors[i]), now)
	}

	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx rollback failed: %v (original err: %w)", rbErr, mapError(err))
		}
		return fmt.Errorf("failed to upsert documents: %w", mapError(err))
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (c *collection) DeleteByPath(ctx context.Context, paths []string) (int, error) {
	if len(paths) == 0 {
		return 0, nil
	}
	tag, err := c.pool.Exec(ctx,
		"DELETE FROM vectorcode_documents WHERE collection = $1 AND path = ANY($2)", c.info.Name, paths)
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents: %w", mapError(err))
	}
	return int(tag.RowsAffected()), nil
}

func (c *collection) ListPaths(ctx context.Context) (map[string][32]byte, error) {
	rows, err := c.pool.Query(ctx,
		"SELECT DISTINCT path, file_hash FROM vectorcode_documents WHERE collection = $1", c.info.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list paths: %w", mapError(err))
	}
	defer rows.Close()

	paths := make(map[string][32]byte)
	for rows.Next() {
		var path string
		var hash []byte
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, err
		}
		var h [32]byte
		copy(h[:], hash)
		paths[path] = h
	}
	return paths, rows.Err()
}

// nearestSQL builds the nearest-neighbour query. $1 is the collection, $2 the
// query vector and $3, when excluding, the excluded paths. limit <= 0 returns every record.
func nearestSQL(limit int, exclude bool) string {
	var b strings.Builder
	b.WriteString("SELECT path, document, embedding <=> $2 AS distance FROM vectorcode_documents WHERE collection = $1")
	if exclude {
		b.WriteString(" AND NOT (path = ANY($3))")
	}
	b.WriteString(" ORDER BY distance, seq")
	if limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(limit))
	}
	return b.String()
}

// mapError translates vector dimension errors into types.ErrSchemaMismatch
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeDataException &&
		strings.Contains(pgErr.Message, "dimensions") {
		return fmt.Errorf("%w: %s", types.ErrSchemaMismatch, pgErr.Message)
	}
	return err
}
