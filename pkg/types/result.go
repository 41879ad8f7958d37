package types

// Candidate is one record returned by the vector store for a single query chunk
type Candidate struct {
	// Path is the indexed file path. Empty when the record carries no path metadata.
	Path string

	// Distance from the query chunk (lower is more similar)
	Distance float64

	// Document is the stored chunk text, nil unless documents were requested
	Document *string
}

// HasPath reports whether the candidate carries path metadata
func (c Candidate) HasPath() bool {
	return c.Path != ""
}

// QueryResult holds the per-chunk candidate lists for one query.
// Candidates[i] answers Chunks[i].
type QueryResult struct {
	Chunks     []string
	Candidates [][]Candidate
}

// Empty reports whether no candidates were returned for any chunk
func (r *QueryResult) Empty() bool {
	if r == nil {
		return true
	}
	for _, list := range r.Candidates {
		if len(list) > 0 {
			return false
		}
	}
	return true
}

// RankedResult is a distinct path placed by a reranker
type RankedResult struct {
	Path  string
	Rank  int     // Position in result set (1-based)
	Score float64 // Aggregated score; direction depends on the reranker
}

// Result is a materialized query answer
type Result struct {
	Path     string `json:"path"`
	Document string `json:"document"`
}

// Paths returns the paths of ranked results in rank order
func Paths(ranked []RankedResult) []string {
	paths := make([]string, len(ranked))
	for i, r := range ranked {
		paths[i] = r.Path
	}
	return paths
}
