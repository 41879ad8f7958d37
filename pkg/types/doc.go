// Package types provides the value objects shared by the vectorcode query pipeline.
//
// Every type in this package is query-scoped: it is created when a query starts
// and dropped when the response is emitted. Nothing here is cached or shared
// across queries.
//
// # Core Types
//
// Chunk is one window of a larger text, produced by the chunker:
//
//	types.Chunk{Index: 2, Start: 10, Text: "func main"}
//
// Candidate is a single store hit for one query chunk. Distance is lower-is-better:
//
//	types.Candidate{Path: "a.py", Distance: 0.12}
//
// QueryResult groups the candidate lists, one per submitted query chunk.
// RankedResult is the output of a reranker and Result is the materialized
// {path, document} record returned to callers.
//
// # Errors
//
// Sentinel errors describe the outcomes of a query that callers must tell apart:
//
//	if errors.Is(err, types.ErrNoData) {
//	    // empty collection, not fatal
//	}
//
// ErrSchemaMismatch and ErrRerankerUnavailable are fatal for the query.
// ErrStaleEntry is per entry and never fails the whole query.
package types
