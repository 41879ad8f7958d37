package storage

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dshills/vectorcode/pkg/types"
)

// record is a stored chunk loaded for distance computation
type record struct {
	path     string
	document *string
	vector   []float32
}

// applyExcludeFilter appends a "path NOT IN" condition for the excluded paths
func applyExcludeFilter(query string, args []interface{}, exclude []string) (string, []interface{}) {
	if len(exclude) == 0 {
		return query, args
	}

	placeholders := strings.Repeat("?,", len(exclude))
	query += " AND path NOT IN (" + placeholders[:len(placeholders)-1] + ")"
	for _, p := range exclude {
		args = append(args, p)
	}
	return query, args
}

// scanRecords loads rows of (path, document, vector).
// A stored vector whose dimension differs from the collection's is a schema mismatch.
func scanRecords(rows *sql.Rows, withDocuments bool, dimension int) ([]record, error) {
	records := make([]record, 0, 1000)

	for rows.Next() {
		var path, document string
		var vectorBlob []byte
		if err := rows.Scan(&path, &document, &vectorBlob); err != nil {
			return nil, err
		}

		vector := deserializeVector(vectorBlob)
		if len(vector) != dimension {
			return nil, fmt.Errorf("%w: stored vector for %s has dimension %d, expected %d",
				types.ErrSchemaMismatch, path, len(vector), dimension)
		}

		r := record{path: path, vector: vector}
		if withDocuments {
			doc := document
			r.document = &doc
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// nearest returns the limit records closest to queryVector by cosine distance.
// limit <= 0 returns every record.
func nearest(records []record, queryVector []float32, limit int) []types.Candidate {
	candidates := make([]types.Candidate, len(records))
	for i, r := range records {
		candidates[i] = types.Candidate{
			Path:     r.path,
			Distance: 1 - cosineSimilarity(queryVector, r.vector),
			Document: r.document,
		}
	}

	sortCandidates(candidates)

	if limit > 0 && limit < len(candidates) {
		candidates = candidates[:limit]
	}
	return candidates
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sortCandidates orders candidates by ascending distance, keeping storage order for ties
func sortCandidates(candidates []types.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})
}
