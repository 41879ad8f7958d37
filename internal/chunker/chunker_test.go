package chunker

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/vectorcode/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	c, err := New(10, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 10, c.Size())
	assert.Equal(t, 5, c.Step())
}

func TestNew_InvalidOverlap(t *testing.T) {
	tests := []struct {
		name    string
		overlap float64
	}{
		{"negative", -0.1},
		{"one", 1.0},
		{"above one", 1.5},
		{"NaN", math.NaN()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(10, tt.overlap)
			assert.Nil(t, c)
			assert.ErrorIs(t, err, types.ErrInvalidOverlap)
		})
	}
}

func TestChunk_Scenario(t *testing.T) {
	c, err := New(10, 0.5)
	require.NoError(t, err)

	chunks := Collect(c.Chunk(strings.Repeat("x", 25)))
	require.Len(t, chunks, 5)

	starts := make([]int, len(chunks))
	widths := make([]int, len(chunks))
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		starts[i] = chunk.Start
		widths[i] = chunk.Len()
	}

	assert.Equal(t, []int{0, 5, 10, 15, 20}, starts)
	assert.Equal(t, []int{10, 10, 10, 10, 5}, widths)
}

func TestChunk_EmptyText(t *testing.T) {
	for _, size := range []int{-1, 0, 10} {
		c, err := New(size, 0.2)
		require.NoError(t, err)
		assert.Empty(t, Collect(c.Chunk("")))
	}
}

func TestChunk_Unsplit(t *testing.T) {
	text := "package main\n\nfunc main() {}\n"

	for _, size := range []int{-1, 0} {
		c, err := New(size, 0.2)
		require.NoError(t, err)

		chunks := Collect(c.Chunk(text))
		require.Len(t, chunks, 1)
		assert.Equal(t, text, chunks[0].Text)
		assert.Equal(t, 0, chunks[0].Start)
	}
}

func TestChunk_ZeroOverlap(t *testing.T) {
	c, err := New(4, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"abcd", "efgh", "ij"}, Texts(c.Chunk("abcdefghij")))
}

func TestChunk_StepNeverZero(t *testing.T) {
	// floor(2 * 0.1) is 0, the step must still advance
	c, err := New(2, 0.9)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Step())

	assert.Equal(t, []string{"ab", "bc", "c"}, Texts(c.Chunk("abc")))
}

func TestChunk_HugeSize(t *testing.T) {
	for _, overlap := range []float64{0, 0.2, 0.5} {
		c, err := New(math.MaxInt, overlap)
		require.NoError(t, err)
		assert.Positive(t, c.Step())

		chunks := Collect(c.Chunk("abcdef"))
		require.Len(t, chunks, 1)
		assert.Equal(t, types.Chunk{Index: 0, Text: "abcdef", Start: 0}, chunks[0])
	}
}

func TestChunk_Runes(t *testing.T) {
	c, err := New(2, 0)
	require.NoError(t, err)

	texts := Texts(c.Chunk("héllo"))
	assert.Equal(t, []string{"hé", "ll", "o"}, texts)
}

func TestChunk_Coverage(t *testing.T) {
	texts := []string{
		"a",
		"short text",
		strings.Repeat("lorem ipsum dolor sit amet ", 13),
		"def foo():\n    return 42\n\nclass Bar:\n    pass\n",
	}
	params := []struct {
		size    int
		overlap float64
	}{
		{1, 0}, {3, 0.2}, {7, 0.5}, {10, 0.25}, {16, 0.9}, {100, 0.2},
	}

	for _, text := range texts {
		for _, p := range params {
			c, err := New(p.size, p.overlap)
			require.NoError(t, err)

			runes := []rune(text)
			covered := make([]bool, len(runes))
			chunks := Collect(c.Chunk(text))
			require.NotEmpty(t, chunks)

			for i, chunk := range chunks {
				assert.Equal(t, string(runes[chunk.Start:chunk.Start+chunk.Len()]), chunk.Text)
				for j := chunk.Start; j < chunk.Start+chunk.Len(); j++ {
					covered[j] = true
				}

				if i == 0 {
					continue
				}
				prev := chunks[i-1]
				if prev.Len() < p.size {
					continue
				}
				overlap := prev.Start + prev.Len() - chunk.Start
				expected := float64(p.size) * p.overlap
				assert.LessOrEqual(t, math.Abs(float64(overlap)-expected), 1.0,
					"size=%d overlap=%v chunk=%d", p.size, p.overlap, i)
			}

			for j, ok := range covered {
				assert.True(t, ok, "rune %d not covered (size=%d overlap=%v)", j, p.size, p.overlap)
			}

			bound := int(math.Ceil(float64(len(runes)) / float64(c.Step())))
			assert.LessOrEqual(t, len(chunks), bound)
		}
	}
}

func TestChunk_Deterministic(t *testing.T) {
	c, err := New(8, 0.3)
	require.NoError(t, err)

	text := strings.Repeat("the quick brown fox ", 5)
	seq := c.Chunk(text)

	first := Collect(seq)
	second := Collect(seq)
	third := Collect(c.Chunk(text))

	assert.Equal(t, first, second)
	assert.Equal(t, first, third)
}

func TestChunk_EarlyBreak(t *testing.T) {
	c, err := New(2, 0)
	require.NoError(t, err)

	var seen []string
	for chunk := range c.Chunk("abcdefgh") {
		seen = append(seen, chunk.Text)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"ab", "cd"}, seen)
}

func TestChunkFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "main.py")
	require.NoError(t, os.WriteFile(path, []byte("print('hi')\n"), 0644))

	c, err := New(-1, 0.2)
	require.NoError(t, err)

	chunks, err := c.ChunkFile(path)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "print('hi')\n", chunks[0].Text)

	_, err = c.ChunkFile(filepath.Join(tmpDir, "missing.py"))
	assert.Error(t, err)
}
