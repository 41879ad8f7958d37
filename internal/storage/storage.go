package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/vectorcode/internal/embedder"
	"github.com/dshills/vectorcode/pkg/types"
)

// CreatedBy marks collections owned by this tool
const CreatedBy = "VectorCode"

// ErrEmbedderRequired is returned when a collection is opened without an embedding function
var ErrEmbedderRequired = errors.New("collection requires an embedder")

// Backend is a vector database holding one collection per indexed project.
// Implementations must be safe for concurrent use; collections obtained from a
// backend share its connection.
type Backend interface {
	// GetCollection opens an existing collection.
	// It returns types.ErrNoCollection when the project was never indexed and
	// types.ErrSchemaMismatch when the collection was built with another embedding function.
	GetCollection(ctx context.Context, spec CollectionSpec) (Collection, error)

	// GetOrCreateCollection opens the collection, creating it when missing
	GetOrCreateCollection(ctx context.Context, spec CollectionSpec) (Collection, error)

	// ListCollections returns every collection created by this tool
	ListCollections(ctx context.Context) ([]CollectionInfo, error)

	// DropCollection deletes a collection and all of its documents
	DropCollection(ctx context.Context, name string) error

	// Target identifies the database, used as part of collection cache keys
	Target() string

	Close() error
}

// Collection holds the chunk records of one project
type Collection interface {
	Count(ctx context.Context) (int, error)

	// Query embeds each text and returns its nearest records, one list per text in
	// request order. Records whose path is in Exclude are filtered out by the store.
	Query(ctx context.Context, req QueryRequest) ([][]types.Candidate, error)

	// Upsert embeds and stores documents, replacing records with the same path and chunk index
	Upsert(ctx context.Context, docs []Document) error

	// DeleteByPath removes every record of the given paths and returns the number removed
	DeleteByPath(ctx context.Context, paths []string) (int, error)

	// ListPaths returns the indexed paths with the content hash recorded for each file
	ListPaths(ctx context.Context) (map[string][32]byte, error)

	Info() CollectionInfo
}

// QueryRequest is one batched nearest-neighbour query
type QueryRequest struct {
	Texts    []string
	NResults int

	// Include selects optional record fields; path and distance are always returned
	Include Include

	// Exclude lists paths that must never be returned
	Exclude []string
}

// Include flags optional fields of query results
type Include struct {
	Documents bool
}

// Document is one chunk record to store
type Document struct {
	Path       string
	ChunkIndex int
	Text       string
	FileHash   [32]byte
}

// CollectionSpec identifies the collection of a project and the embedding
// function its vectors come from
type CollectionSpec struct {
	ProjectRoot string
	Username    string
	Hostname    string
	Embedder    embedder.Embedder

	// SkipVerify opens the collection even if it was built with another embedding function
	SkipVerify bool
}

// Name returns the collection name derived from the owner and project root
func (s CollectionSpec) Name() string {
	return CollectionName(s.Username, s.Hostname, s.ProjectRoot)
}

// CollectionInfo describes a stored collection
type CollectionInfo struct {
	Name              string    `json:"name"`
	ProjectRoot       string    `json:"project_root"`
	EmbeddingFunction string    `json:"embedding_function"`
	Dimension         int       `json:"dimension"`
	Username          string    `json:"username"`
	Hostname          string    `json:"hostname"`
	CreatedBy         string    `json:"created_by"`
	CreatedAt         time.Time `json:"created_at"`
	Size              int       `json:"size"`
}

// Verify checks that emb produces vectors comparable with the stored ones
func (i CollectionInfo) Verify(emb embedder.Embedder) error {
	if i.EmbeddingFunction != embedder.Name(emb) {
		return fmt.Errorf("%w: collection uses %s, configured %s",
			types.ErrSchemaMismatch, i.EmbeddingFunction, embedder.Name(emb))
	}
	if i.Dimension != emb.Dimension() {
		return fmt.Errorf("%w: collection dimension %d, embedder dimension %d",
			types.ErrSchemaMismatch, i.Dimension, emb.Dimension())
	}
	return nil
}
