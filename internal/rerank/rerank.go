package rerank

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/vectorcode/pkg/types"
)

// Func turns the per-chunk candidate lists of one query into distinct ranked paths.
// The result holds at most the configured number of paths.
type Func func(ctx context.Context, res *types.QueryResult) ([]types.RankedResult, error)

// Kind selects a reranking strategy
type Kind string

const (
	// KindMeanDistance ranks paths by ascending mean distance
	KindMeanDistance Kind = "mean-distance"

	// KindCrossEncoder ranks paths by descending mean relevance score from a Scorer
	KindCrossEncoder Kind = "cross-encoder"
)

// ParseKind maps a configured reranker name to a Kind.
// An empty name selects KindMeanDistance. Any other name that is not a strategy
// is a cross-encoder model name and is returned as model.
func ParseKind(name string) (kind Kind, model string) {
	name = strings.TrimSpace(name)
	switch strings.ToLower(name) {
	case "", "mean-distance", "naive", "naivereranker":
		return KindMeanDistance, ""
	case "cross-encoder", "crossencoder", "crossencoderreranker":
		return KindCrossEncoder, ""
	default:
		return KindCrossEncoder, name
	}
}

// NeedsDocuments reports whether the strategy reads candidate document text
func (k Kind) NeedsDocuments() bool {
	return k == KindCrossEncoder
}

// Options configures New
type Options struct {
	Kind    Kind
	NResult int

	// Model names the cross-encoder model; it overrides the model in Params
	Model string

	// Params is the reranker_params bag; the cross-encoder reads its scorer settings from it
	Params map[string]any

	// Scorer overrides the scorer built from Params
	Scorer Scorer
}

// New builds the reranker selected by opts.Kind.
// Any failure to construct the strategy is reported as types.ErrRerankerUnavailable.
func New(opts Options) (Func, error) {
	if opts.NResult < 1 {
		return nil, fmt.Errorf("%w: got %d", types.ErrInvalidResultCount, opts.NResult)
	}

	switch opts.Kind {
	case KindMeanDistance, "":
		return MeanDistance(opts.NResult), nil
	case KindCrossEncoder:
		scorer := opts.Scorer
		if scorer == nil {
			cfg := JinaConfigFromParams(opts.Params)
			if opts.Model != "" {
				cfg.Model = opts.Model
			}
			s, err := NewJinaScorer(cfg)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", types.ErrRerankerUnavailable, err)
			}
			scorer = s
		}
		return CrossEncoder(scorer, opts.NResult), nil
	default:
		return nil, fmt.Errorf("%w: unknown reranker %q", types.ErrRerankerUnavailable, opts.Kind)
	}
}

// MeanDistance returns the default reranker.
// A path is scored by the mean of the distances it received in the chunks where it appeared;
// chunks that did not return the path contribute nothing.
func MeanDistance(nResult int) Func {
	return func(ctx context.Context, res *types.QueryResult) ([]types.RankedResult, error) {
		if res == nil {
			return nil, nil
		}

		scores := newPathScores()
		for _, list := range res.Candidates {
			for _, c := range list {
				if !c.HasPath() {
					continue
				}
				scores.add(c.Path, c.Distance)
			}
		}

		return selectTop(scores.entries(), nResult, lowerIsBetter), nil
	}
}

// CrossEncoder returns a reranker that scores each (query chunk, candidate document) pair
// with scorer. Higher scores rank first.
// Candidates without a path or without document text are skipped.
func CrossEncoder(scorer Scorer, nResult int) Func {
	return func(ctx context.Context, res *types.QueryResult) ([]types.RankedResult, error) {
		if res == nil {
			return nil, nil
		}

		scores := newPathScores()
		for i, list := range res.Candidates {
			if i >= len(res.Chunks) {
				break
			}

			paths := make([]string, 0, len(list))
			docs := make([]string, 0, len(list))
			for _, c := range list {
				if !c.HasPath() || c.Document == nil {
					continue
				}
				paths = append(paths, c.Path)
				docs = append(docs, *c.Document)
			}
			if len(docs) == 0 {
				continue
			}

			ranked, err := scorer.Score(ctx, res.Chunks[i], docs)
			if err != nil {
				return nil, scoreError(ctx, err)
			}
			for _, s := range ranked {
				if s.Index < 0 || s.Index >= len(paths) {
					return nil, fmt.Errorf("%w: score index %d out of range for %d documents",
						types.ErrRerankerUnavailable, s.Index, len(paths))
				}
				scores.add(paths[s.Index], s.Value)
			}
		}

		return selectTop(scores.entries(), nResult, higherIsBetter), nil
	}
}

// scoreError keeps cancellation distinct from an unusable scorer
func scoreError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", types.ErrRerankerUnavailable, err)
}
