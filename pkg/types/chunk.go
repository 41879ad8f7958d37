package types

// Chunk is one window of a larger text produced by the chunker
type Chunk struct {
	Index int    // Position in the chunk sequence (0-based)
	Text  string // Contiguous slice of the source text
	Start int    // Offset of Text in the source, in runes
}

// Len returns the chunk width in runes
func (c Chunk) Len() int {
	return len([]rune(c.Text))
}
