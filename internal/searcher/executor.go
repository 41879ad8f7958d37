package searcher

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dshills/vectorcode/internal/chunker"
	"github.com/dshills/vectorcode/internal/observability"
	"github.com/dshills/vectorcode/internal/storage"
	"github.com/dshills/vectorcode/pkg/types"
)

// Request holds the parameters of one store round-trip
type Request struct {
	// Queries are chunked in order; the chunks of all queries form one batch
	Queries []string

	NResult int

	// QueryMultiplier widens the per-chunk result count to NResult*QueryMultiplier.
	// A value <= 0 asks for every record in the collection.
	QueryMultiplier int

	// Exclude lists paths filtered out by the store
	Exclude []string

	// IncludeDocuments requests the stored chunk text of every candidate
	IncludeDocuments bool
}

// Executor chunks query text and retrieves the candidates of every chunk in one store call
type Executor struct {
	collection storage.Collection
	chunker    *chunker.StringChunker
}

// NewExecutor builds an executor over collection.
// It fails with types.ErrInvalidOverlap before touching the store.
func NewExecutor(collection storage.Collection, chunkSize int, overlapRatio float64) (*Executor, error) {
	c, err := chunker.New(chunkSize, overlapRatio)
	if err != nil {
		return nil, err
	}
	return &Executor{collection: collection, chunker: c}, nil
}

// Execute runs the batched query. It returns types.ErrNoData for an empty collection
// and an empty result, without querying, when the queries produce no chunks.
func (e *Executor) Execute(ctx context.Context, req Request) (*types.QueryResult, error) {
	if req.NResult < 1 {
		return nil, fmt.Errorf("%w: got %d", types.ErrInvalidResultCount, req.NResult)
	}

	count, err := e.collection.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count collection: %w", err)
	}
	if count == 0 {
		return nil, types.ErrNoData
	}

	chunks := make([]string, 0, len(req.Queries))
	for _, q := range req.Queries {
		chunks = append(chunks, chunker.Texts(e.chunker.Chunk(q))...)
	}
	if len(chunks) == 0 {
		return &types.QueryResult{Chunks: chunks, Candidates: [][]types.Candidate{}}, nil
	}

	breadth := Breadth(req.NResult, req.QueryMultiplier, count)

	ctx, span := observability.StartClient(ctx, observability.SpanStoreQuery,
		attribute.Int("store.chunks", len(chunks)),
		attribute.Int("store.n_results", breadth),
		attribute.Int("store.excluded", len(req.Exclude)),
	)
	defer span.End()

	lists, err := e.collection.Query(ctx, storage.QueryRequest{
		Texts:    chunks,
		NResults: breadth,
		Include:  storage.Include{Documents: req.IncludeDocuments},
		Exclude:  req.Exclude,
	})
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("store query failed: %w", err)
	}
	if len(lists) != len(chunks) {
		err := fmt.Errorf("store returned %d candidate lists for %d chunks", len(lists), len(chunks))
		observability.RecordError(span, err)
		return nil, err
	}

	return &types.QueryResult{Chunks: chunks, Candidates: lists}, nil
}

// Breadth returns the number of candidates requested per query chunk
func Breadth(nResult, multiplier, count int) int {
	if multiplier > 0 {
		return max(nResult, nResult*multiplier)
	}
	return count
}
