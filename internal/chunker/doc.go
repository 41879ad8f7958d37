// Package chunker splits text into overlapping windows for embedding and querying.
//
// The same chunker is used on both sides of the index: vectorise splits source
// files with it, and the query pipeline splits query text with it, so that a
// long query is matched window by window against the stored windows.
//
// # Basic Usage
//
//	c, err := chunker.New(2500, 0.2)
//	if err != nil {
//	    return err // overlap ratio outside [0, 1)
//	}
//
//	for chunk := range c.Chunk(text) {
//	    fmt.Printf("chunk %d starts at %d\n", chunk.Index, chunk.Start)
//	}
//
// # Windowing
//
// Windows are measured in runes. With size s and overlap ratio r the step
// between window starts is max(1, floor(s*(1-r))). A window is emitted for
// every start before the end of the text, so the last windows may be shorter
// than s:
//
//	size 10, overlap 0.5, 25 runes -> starts 0,5,10,15,20 widths 10,10,10,10,5
//
// A size <= 0 disables splitting and the whole text is one chunk. Empty text
// yields no chunks.
//
// # Laziness
//
// Chunk returns an iter.Seq. Nothing is allocated until the sequence is ranged
// over, and ranging again reproduces the same chunks.
package chunker
