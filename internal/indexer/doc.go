// Package indexer writes project files into a vector collection.
//
// A vectorise run expands the requested paths, filters them, chunks each
// file and upserts the chunks keyed by (path, chunk index):
//
//	ix, err := indexer.New(collection, indexer.Config{
//	    ProjectRoot: root,
//	    Recursive:   true,
//	    ChunkSize:   2500,
//	}, logger)
//
//	stats, err := ix.Vectorise(ctx, []string{"."})
//	fmt.Printf("added %d, updated %d\n", stats.Add, stats.Update)
//
// # Filtering
//
// Hidden paths are always skipped. Unless Force is set, paths matched by the
// project's .gitignore and vendored paths are skipped too. Empty and binary
// files are never stored.
//
// # Incremental Runs
//
// Every record carries the SHA-256 of its file. A file whose hash matches
// the stored one is skipped; a changed file has its old records deleted
// before the new chunks are written. Records of indexed files that no longer
// exist on disk are removed at the end of each run.
//
// # Concurrency
//
// Files are processed by an errgroup bounded by Config.Workers. IndexLock
// lets long-running servers reject a second run on the same project.
package indexer
