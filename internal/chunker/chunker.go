package chunker

import (
	"fmt"
	"iter"
	"math"
	"os"

	"github.com/dshills/vectorcode/pkg/types"
)

const (
	// DefaultSize disables splitting; the whole text is one chunk
	DefaultSize = -1

	// DefaultOverlapRatio is the overlap used when none is configured
	DefaultOverlapRatio = 0.2
)

// StringChunker splits text into overlapping windows of a fixed rune width
type StringChunker struct {
	size    int
	overlap float64
	step    int
}

// New creates a StringChunker. A size <= 0 disables splitting.
// The overlap ratio must be in [0, 1); it is never clamped.
func New(size int, overlapRatio float64) (*StringChunker, error) {
	if err := Validate(overlapRatio); err != nil {
		return nil, err
	}

	step := 0
	if size > 0 {
		step = windowStep(size, overlapRatio)
	}

	return &StringChunker{
		size:    size,
		overlap: overlapRatio,
		step:    step,
	}, nil
}

// windowStep is floor(size*(1-overlapRatio)), at least 1 and at most math.MaxInt
func windowStep(size int, overlapRatio float64) int {
	f := math.Floor(float64(size) * (1 - overlapRatio))
	if f >= math.MaxInt {
		return math.MaxInt
	}
	return max(1, int(f))
}

// Validate checks an overlap ratio without building a chunker
func Validate(overlapRatio float64) error {
	if math.IsNaN(overlapRatio) || overlapRatio < 0 || overlapRatio >= 1 {
		return fmt.Errorf("%w: got %v", types.ErrInvalidOverlap, overlapRatio)
	}
	return nil
}

// Size returns the window width in runes (<= 0 means unsplit)
func (c *StringChunker) Size() int {
	return c.size
}

// Step returns the distance between consecutive window starts
func (c *StringChunker) Step() int {
	return c.step
}

// Chunk returns the chunks of text as a lazy sequence.
// The sequence is finite and can be ranged over any number of times.
func (c *StringChunker) Chunk(text string) iter.Seq[types.Chunk] {
	return func(yield func(types.Chunk) bool) {
		if text == "" {
			return
		}

		if c.size <= 0 {
			yield(types.Chunk{Index: 0, Text: text, Start: 0})
			return
		}

		runes := []rune(text)
		for index, start := 0, 0; ; index, start = index+1, start+c.step {
			end := len(runes)
			if c.size < end-start {
				end = start + c.size
			}
			if !yield(types.Chunk{Index: index, Text: string(runes[start:end]), Start: start}) {
				return
			}
			if c.step >= len(runes)-start {
				return
			}
		}
	}
}

// ChunkFile reads a file and chunks its contents
func (c *StringChunker) ChunkFile(path string) ([]types.Chunk, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Collect(c.Chunk(string(content))), nil
}

// Collect drains a chunk sequence into a slice
func Collect(seq iter.Seq[types.Chunk]) []types.Chunk {
	chunks := make([]types.Chunk, 0)
	for chunk := range seq {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// Texts drains a chunk sequence into the chunk texts
func Texts(seq iter.Seq[types.Chunk]) []string {
	texts := make([]string, 0)
	for chunk := range seq {
		texts = append(texts, chunk.Text)
	}
	return texts
}
