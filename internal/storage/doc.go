// Package storage defines the vector store used by the query pipeline and
// provides the default SQLite implementation.
//
// A Backend holds one Collection per indexed project. The collection name is
// derived from the owner and the absolute project root (see CollectionName),
// so two users on one machine never share a collection.
//
// Each collection remembers the embedding function and dimension it was built
// with. Opening it with a different embedder fails with
// types.ErrSchemaMismatch unless CollectionSpec.SkipVerify is set.
//
// # SQLite
//
// Tables:
//   - collections: name, project root, embedding function, dimension, owner
//   - documents: one row per chunk with its path, text, file hash and vector
//
// Vectors are little-endian float32 blobs. Distances are computed in Go as
// 1 - cosine similarity. Excluded paths are filtered in SQL before any
// distance is computed.
//
//	backend, err := storage.NewSQLiteBackend(ctx, "~/.local/share/vectorcode/db")
//	if err != nil {
//	    return err
//	}
//	defer backend.Close()
//
//	col, err := backend.GetCollection(ctx, storage.CollectionSpec{
//	    ProjectRoot: root,
//	    Username:    user,
//	    Hostname:    host,
//	    Embedder:    emb,
//	})
//	lists, err := col.Query(ctx, storage.QueryRequest{
//	    Texts:    []string{"open the database"},
//	    NResults: 10,
//	    Exclude:  []string{"/repo/vendor/db.go"},
//	})
//
// # Build modes
//
// The default build uses modernc.org/sqlite (pure Go). Building with
// -tags sqlite_cgo switches to github.com/mattn/go-sqlite3.
//
// # Other backends
//
// Subpackages qdrant and postgres implement Backend on Qdrant and on
// PostgreSQL with pgvector.
//
// CollectionCache keeps opened collections for long-running servers. It is
// keyed by project root and backend target and must be invalidated after a
// collection is dropped.
package storage
