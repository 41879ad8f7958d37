// Package searcher implements the vectorcode query pipeline.
//
// A search runs four sequential stages:
//
//   - the query text is split into overlapping chunks
//   - the Executor sends every chunk to the vector store in a single batched query
//   - a reranker from package rerank merges the per-chunk candidate lists into ranked paths
//   - the Materializer reads the ranked files from disk
//
// # Basic Usage
//
//	s := searcher.New(collection)
//
//	resp, err := s.Search(ctx, searcher.Query{
//	    Texts:        []string{"open database connection"},
//	    ProjectRoot:  "/path/to/project",
//	    NResult:      5,
//	    ChunkSize:    2500,
//	    OverlapRatio: 0.2,
//	})
//	if err != nil {
//	    return err
//	}
//	if resp.NoData {
//	    fmt.Fprintln(os.Stderr, "Empty collection!")
//	}
//	for _, r := range resp.Results {
//	    fmt.Println(r.Path)
//	}
//
// # Query Breadth
//
// Each chunk asks the store for NResult*QueryMultiplier candidates. A multiplier
// of zero or less asks for every record in the collection, which makes the mean
// distance exact at the cost of transferring the whole collection.
//
// # Exclusion
//
// Excluded paths are filtered by the store before ranking, so an excluded file
// can never appear in the results even when it is the nearest match.
//
// # Stale Entries
//
// A ranked file that no longer exists on disk is dropped from the results and
// reported in Response.Stale. The rest of the query still succeeds.
package searcher
