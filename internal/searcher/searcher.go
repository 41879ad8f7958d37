package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dshills/vectorcode/internal/observability"
	"github.com/dshills/vectorcode/internal/rerank"
	"github.com/dshills/vectorcode/internal/storage"
	"github.com/dshills/vectorcode/pkg/types"
)

// Query contains the parameters of one search
type Query struct {
	Texts       []string
	ProjectRoot string

	NResult         int
	QueryMultiplier int
	ChunkSize       int
	OverlapRatio    float64

	// Exclude lists paths never returned; relative paths are resolved against ProjectRoot
	Exclude  []string
	Absolute bool

	// Reranker names the reranking strategy; empty selects mean distance
	Reranker       string
	RerankerParams map[string]any
}

// Response contains search results and metadata
type Response struct {
	Results []types.Result

	// Stale lists ranked paths that were dropped because the file is gone
	Stale []string

	// NoData is set when the collection is empty
	NoData bool

	Duration time.Duration
}

// Searcher runs the query pipeline against one collection.
// It holds no per-query state and is safe for concurrent use.
type Searcher struct {
	collection storage.Collection
	scorer     rerank.Scorer
	logger     *slog.Logger
}

// Option configures a Searcher
type Option func(*Searcher)

// WithScorer sets the scorer used by the cross-encoder reranker
func WithScorer(scorer rerank.Scorer) Option {
	return func(s *Searcher) { s.scorer = scorer }
}

// WithLogger sets the logger that receives stale entry warnings
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) { s.logger = logger }
}

// New creates a Searcher over collection
func New(collection storage.Collection, opts ...Option) *Searcher {
	s := &Searcher{collection: collection, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search chunks the query, retrieves candidates, reranks them and loads the files.
// An empty collection is reported through Response.NoData, not as an error.
func (s *Searcher) Search(ctx context.Context, q Query) (*Response, error) {
	startTime := time.Now()

	ctx, span := observability.Start(ctx, observability.SpanQuery,
		attribute.Int("query.texts", len(q.Texts)),
		attribute.Int("query.n_result", q.NResult),
		attribute.String("query.reranker", q.Reranker),
	)
	defer span.End()

	response, err := s.search(ctx, q)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	response.Duration = time.Since(startTime)
	return response, nil
}

func (s *Searcher) search(ctx context.Context, q Query) (*Response, error) {
	if q.NResult < 1 {
		return nil, fmt.Errorf("%w: got %d", types.ErrInvalidResultCount, q.NResult)
	}

	// The reranker is built first so an unusable model fails before the store is queried
	kind, model := rerank.ParseKind(q.Reranker)
	reranker, err := rerank.New(rerank.Options{
		Kind:    kind,
		Model:   model,
		NResult: q.NResult,
		Params:  q.RerankerParams,
		Scorer:  s.scorer,
	})
	if err != nil {
		return nil, err
	}

	executor, err := NewExecutor(s.collection, q.ChunkSize, q.OverlapRatio)
	if err != nil {
		return nil, err
	}

	result, err := executor.Execute(ctx, Request{
		Queries:          q.Texts,
		NResult:          q.NResult,
		QueryMultiplier:  q.QueryMultiplier,
		Exclude:          ResolveExclude(q.ProjectRoot, q.Exclude),
		IncludeDocuments: kind.NeedsDocuments(),
	})
	if errors.Is(err, types.ErrNoData) {
		return &Response{NoData: true, Results: []types.Result{}}, nil
	}
	if err != nil {
		return nil, err
	}

	rctx, rspan := observability.Start(ctx, observability.SpanRerank,
		attribute.String("rerank.kind", string(kind)))
	ranked, err := reranker(rctx, result)
	observability.RecordError(rspan, err)
	rspan.End()
	if err != nil {
		return nil, err
	}

	_, mspan := observability.Start(ctx, observability.SpanMaterialize,
		attribute.Int("materialize.ranked", len(ranked)))
	m := Materializer{ProjectRoot: q.ProjectRoot, Absolute: q.Absolute}
	results, stale, err := m.Materialize(ranked)
	observability.RecordError(mspan, err)
	mspan.End()
	if err != nil {
		return nil, err
	}

	for _, path := range stale {
		s.logger.Warn(StaleWarning(path), "error", StaleError(path))
	}

	return &Response{Results: results, Stale: stale}, nil
}

// ResolveExclude makes excluded paths absolute so they match the stored paths
func ResolveExclude(projectRoot string, exclude []string) []string {
	if len(exclude) == 0 {
		return nil
	}
	resolved := make([]string, 0, len(exclude))
	for _, p := range exclude {
		if !filepath.IsAbs(p) && projectRoot != "" {
			p = filepath.Join(projectRoot, p)
		}
		resolved = append(resolved, filepath.Clean(p))
	}
	return resolved
}
