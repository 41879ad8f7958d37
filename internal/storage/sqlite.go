package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dshills/vectorcode/internal/embedder"
	"github.com/dshills/vectorcode/pkg/types"
)

// DatabaseFile is the SQLite file created inside db_path
const DatabaseFile = "vectorcode.db"

// SQLiteBackend stores collections in a single SQLite database
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteBackend opens the database under dir, creating it when needed.
// dir may be ":memory:" for a throwaway database.
func NewSQLiteBackend(ctx context.Context, dir string) (*SQLiteBackend, error) {
	dbPath := dir
	if dir != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dbPath = filepath.Join(dir, DatabaseFile)
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteBackend{db: db, path: dbPath}, nil
}

// Target returns the database location
func (b *SQLiteBackend) Target() string {
	return "sqlite://" + b.path
}

// Close closes the database connection
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func (b *SQLiteBackend) GetCollection(ctx context.Context, spec CollectionSpec) (Collection, error) {
	if spec.Embedder == nil {
		return nil, ErrEmbedderRequired
	}

	info, err := b.collectionInfo(ctx, spec.Name())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w for %s", types.ErrNoCollection, spec.ProjectRoot)
	}
	if err != nil {
		return nil, err
	}

	if !spec.SkipVerify {
		if err := info.Verify(spec.Embedder); err != nil {
			return nil, err
		}
	}

	return &sqliteCollection{db: b.db, info: info, embedder: spec.Embedder}, nil
}

func (b *SQLiteBackend) GetOrCreateCollection(ctx context.Context, spec CollectionSpec) (Collection, error) {
	if spec.Embedder == nil {
		return nil, ErrEmbedderRequired
	}

	query := `
		INSERT INTO collections (name, project_root, embedding_function, dimension, username, hostname, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`
	_, err := b.db.ExecContext(ctx, query,
		spec.Name(), spec.ProjectRoot, embedder.Name(spec.Embedder), spec.Embedder.Dimension(),
		spec.Username, spec.Hostname, CreatedBy, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	return b.GetCollection(ctx, spec)
}

func (b *SQLiteBackend) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	query := `
		SELECT c.name, c.project_root, c.embedding_function, c.dimension,
		       COALESCE(c.username, ''), COALESCE(c.hostname, ''), c.created_by, c.created_at,
		       (SELECT COUNT(*) FROM documents d WHERE d.collection = c.name)
		FROM collections c
		WHERE c.created_by = ?
		ORDER BY c.project_root
	`
	rows, err := b.db.QueryContext(ctx, query, CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var infos []CollectionInfo
	for rows.Next() {
		var info CollectionInfo
		if err := rows.Scan(&info.Name, &info.ProjectRoot, &info.EmbeddingFunction, &info.Dimension,
			&info.Username, &info.Hostname, &info.CreatedBy, &info.CreatedAt, &info.Size); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (b *SQLiteBackend) DropCollection(ctx context.Context, name string) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE collection = ?", name); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", types.ErrNoCollection, name)
	}

	return tx.Commit()
}

func (b *SQLiteBackend) collectionInfo(ctx context.Context, name string) (CollectionInfo, error) {
	query := `
		SELECT name, project_root, embedding_function, dimension,
		       COALESCE(username, ''), COALESCE(hostname, ''), created_by, created_at
		FROM collections
		WHERE name = ?
	`
	var info CollectionInfo
	err := b.db.QueryRowContext(ctx, query, name).Scan(&info.Name, &info.ProjectRoot,
		&info.EmbeddingFunction, &info.Dimension, &info.Username, &info.Hostname,
		&info.CreatedBy, &info.CreatedAt)
	return info, err
}

// sqliteCollection is a view of one collection; it shares the backend connection
type sqliteCollection struct {
	db       *sql.DB
	info     CollectionInfo
	embedder embedder.Embedder
}

func (c *sqliteCollection) Info() CollectionInfo {
	return c.info
}

func (c *sqliteCollection) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE collection = ?", c.info.Name).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

func (c *sqliteCollection) Query(ctx context.Context, req QueryRequest) ([][]types.Candidate, error) {
	if len(req.Texts) == 0 {
		return nil, nil
	}

	queryVectors, err := embedder.EmbedTexts(ctx, c.embedder, req.Texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	for _, v := range queryVectors {
		if len(v) != c.info.Dimension {
			return nil, fmt.Errorf("%w: query dimension %d, collection dimension %d",
				types.ErrSchemaMismatch, len(v), c.info.Dimension)
		}
	}

	query := "SELECT path, document, vector FROM documents WHERE collection = ?"
	args := []interface{}{c.info.Name}
	query, args = applyExcludeFilter(query, args, req.Exclude)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records, err := scanRecords(rows, req.Include.Documents, c.info.Dimension)
	if err != nil {
		return nil, err
	}

	results := make([][]types.Candidate, len(queryVectors))
	for i, qv := range queryVectors {
		results[i] = nearest(records, qv, req.NResults)
	}
	return results, nil
}

func (c *sqliteCollection) Upsert(ctx context.Context, docs []Document) error {
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

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO documents (collection, id, path, chunk_index, document, file_hash, vector, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			document = excluded.document,
			file_hash = excluded.file_hash,
			vector = excluded.vector,
			updated_at = excluded.updated_at
	`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now()
	for i, d := range docs {
		if len(vectors[i]) != c.info.Dimension {
			return fmt.Errorf("%w: document dimension %d, collection dimension %d",
				types.ErrSchemaMismatch, len(vectors[i]), c.info.Dimension)
		}
		_, err := stmt.ExecContext(ctx, c.info.Name, DocumentID(d.Path, d.ChunkIndex).String(),
			d.Path, d.ChunkIndex, d.Text, d.FileHash[:], serializeVector(vectors[i]), now)
		if err != nil {
			return fmt.Errorf("failed to upsert %s#%d: %w", d.Path, d.ChunkIndex, err)
		}
	}

	return tx.Commit()
}

func (c *sqliteCollection) DeleteByPath(ctx context.Context, paths []string) (int, error) {
	if len(paths) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(paths))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, 0, len(paths)+1)
	args = append(args, c.info.Name)
	for _, p := range paths {
		args = append(args, p)
	}

	query := "DELETE FROM documents WHERE collection = ? AND path IN (" + placeholders + ")"
	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (c *sqliteCollection) ListPaths(ctx context.Context) (map[string][32]byte, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT DISTINCT path, file_hash FROM documents WHERE collection = ?", c.info.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list paths: %w", err)
	}
	defer func() { _ = rows.Close() }()

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
