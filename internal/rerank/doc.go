// Package rerank collapses per-chunk candidate lists into one ranked list of files.
//
// A query is split into chunks and every chunk returns its own nearest
// neighbours. A reranker groups those candidates by path and orders the
// distinct paths:
//
//   - KindMeanDistance (default) averages the store distances a path received
//     and ranks ascending. It needs no model.
//   - KindCrossEncoder asks a Scorer to rate each (query chunk, document) pair,
//     averages per path and ranks descending. A configured name that is not a
//     strategy is taken as the cross-encoder model name.
//
// The two directions are opposite: a lower distance is better, a higher
// relevance score is better.
//
// Only the k best paths are kept, using a heap of size k. Ties go to the path
// seen first. Candidates that carry no path are ignored.
//
//	rr, err := rerank.New(rerank.Options{Kind: rerank.KindMeanDistance, NResult: 5})
//	if err != nil {
//	    return err
//	}
//	ranked, err := rr(ctx, queryResult)
//
// A configured reranker that cannot be built or called yields
// types.ErrRerankerUnavailable wrapping the cause. There is no fallback to the
// default strategy. Cancellation is returned as the context error.
package rerank
