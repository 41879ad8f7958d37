package indexer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/vectorcode/internal/chunker"
	"github.com/dshills/vectorcode/internal/config"
	"github.com/dshills/vectorcode/internal/observability"
	"github.com/dshills/vectorcode/internal/storage"
	"github.com/dshills/vectorcode/pkg/types"
)

// DefaultBatchSize is the number of chunk records sent per Upsert call
const DefaultBatchSize = 64

// Config configures a vectorise run
type Config struct {
	ProjectRoot  string
	Recursive    bool
	Force        bool // ignore .gitignore and vendored-path rules
	Workers      int  // 0 means runtime.NumCPU()
	ChunkSize    int
	OverlapRatio float64
	BatchSize    int
}

// Indexer writes project files into a collection
type Indexer struct {
	collection storage.Collection
	chunker    *chunker.StringChunker
	cfg        Config
	logger     *slog.Logger
}

// New creates an indexer for collection
func New(collection storage.Collection, cfg Config, logger *slog.Logger) (*Indexer, error) {
	c, err := chunker.New(cfg.ChunkSize, cfg.OverlapRatio)
	if err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{collection: collection, chunker: c, cfg: cfg, logger: logger}, nil
}

// fileOutcome is the result of indexing one file
type fileOutcome int

const (
	outcomeAdded fileOutcome = iota
	outcomeUpdated
	outcomeSkipped
	outcomeFailed
)

// Vectorise indexes the files matched by paths and removes records of
// indexed files that no longer exist. Per-file failures are counted and
// logged; only store-level failures abort the run.
func (ix *Indexer) Vectorise(ctx context.Context, paths []string) (*types.VectoriseStats, error) {
	ctx, span := observability.Start(ctx, observability.SpanVectorise,
		attribute.String("vectorcode.project_root", ix.cfg.ProjectRoot),
		attribute.Int("vectorcode.path_count", len(paths)),
	)
	defer span.End()

	stats, err := ix.vectorise(ctx, paths)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("vectorcode.added", stats.Add),
		attribute.Int("vectorcode.updated", stats.Update),
		attribute.Int("vectorcode.removed", stats.Removed),
	)
	return stats, nil
}

func (ix *Indexer) vectorise(ctx context.Context, paths []string) (*types.VectoriseStats, error) {
	files, err := config.ExpandGlobs(ix.resolve(paths), ix.cfg.Recursive)
	if err != nil {
		return nil, fmt.Errorf("failed to expand paths: %w", err)
	}

	filter, err := NewFilter(ix.cfg.ProjectRoot, ix.cfg.Force)
	if err != nil {
		return nil, err
	}

	existing, err := ix.collection.ListPaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexed files: %w", err)
	}

	var added, updated, skipped, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.cfg.Workers)

	for _, path := range files {
		if reason := filter.SkipPath(path); reason != "" {
			ix.logger.Debug("skipping file", "path", path, "reason", reason)
			skipped.Add(1)
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			hash, indexed := existing[path]
			outcome, err := ix.indexFile(gctx, filter, path, hash, indexed)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				ix.logger.Warn("failed to vectorise file", "path", path, "error", err)
			}
			switch outcome {
			case outcomeAdded:
				added.Add(1)
			case outcomeUpdated:
				updated.Add(1)
			case outcomeSkipped:
				skipped.Add(1)
			case outcomeFailed:
				failed.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	removed, err := ix.removeOrphans(ctx, existing)
	if err != nil {
		return nil, err
	}

	stats := &types.VectoriseStats{
		Add:     int(added.Load()),
		Update:  int(updated.Load()),
		Removed: removed,
		Skipped: int(skipped.Load()),
		Failed:  int(failed.Load()),
	}
	ix.logger.Info("vectorise complete",
		"add", stats.Add, "update", stats.Update, "removed", stats.Removed,
		"skipped", stats.Skipped, "failed", stats.Failed)
	return stats, nil
}

// resolve makes relative inputs relative to the project root
func (ix *Indexer) resolve(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = config.ExpandPath(p, false)
		if !filepath.IsAbs(p) && ix.cfg.ProjectRoot != "" {
			p = filepath.Join(ix.cfg.ProjectRoot, p)
		}
		out = append(out, filepath.Clean(p))
	}
	return out
}

func (ix *Indexer) indexFile(ctx context.Context, filter *Filter, path string, previous [32]byte, indexed bool) (fileOutcome, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return outcomeFailed, fmt.Errorf("failed to read file: %w", err)
	}
	if reason := filter.SkipContent(content); reason != "" {
		ix.logger.Debug("skipping file", "path", path, "reason", reason)
		return outcomeSkipped, nil
	}

	hash := sha256.Sum256(content)
	if indexed && hash == previous {
		return outcomeSkipped, nil
	}

	docs := make([]storage.Document, 0)
	for chunk := range ix.chunker.Chunk(string(content)) {
		docs = append(docs, storage.Document{
			Path:       path,
			ChunkIndex: chunk.Index,
			Text:       chunk.Text,
			FileHash:   hash,
		})
	}

	// Stale chunks of a shrunken file would otherwise survive the upsert.
	if indexed {
		if _, err := ix.collection.DeleteByPath(ctx, []string{path}); err != nil {
			return outcomeFailed, fmt.Errorf("failed to delete previous records: %w", err)
		}
	}

	for start := 0; start < len(docs); start += ix.cfg.BatchSize {
		end := min(start+ix.cfg.BatchSize, len(docs))
		if err := ix.collection.Upsert(ctx, docs[start:end]); err != nil {
			return outcomeFailed, fmt.Errorf("failed to store chunks: %w", err)
		}
	}

	ix.logger.Debug("vectorised file", "path", path, "chunks", len(docs))
	if indexed {
		return outcomeUpdated, nil
	}
	return outcomeAdded, nil
}

// removeOrphans deletes the records of indexed files that are gone from disk
func (ix *Indexer) removeOrphans(ctx context.Context, existing map[string][32]byte) (int, error) {
	var orphans []string
	for path := range existing {
		info, err := os.Stat(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			orphans = append(orphans, path)
		case err == nil && !info.Mode().IsRegular():
			orphans = append(orphans, path)
		}
	}
	if len(orphans) == 0 {
		return 0, nil
	}

	if _, err := ix.collection.DeleteByPath(ctx, orphans); err != nil {
		return 0, fmt.Errorf("failed to remove orphaned records: %w", err)
	}
	ix.logger.Info("removed orphaned files", "count", len(orphans))
	return len(orphans), nil
}
