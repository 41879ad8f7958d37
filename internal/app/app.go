// Package app wires configuration, storage, embedding and search together.
// The command line and the editor server both drive vectorcode through an App.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/vectorcode/internal/config"
	"github.com/dshills/vectorcode/internal/embedder"
	"github.com/dshills/vectorcode/internal/indexer"
	"github.com/dshills/vectorcode/internal/rerank"
	"github.com/dshills/vectorcode/internal/searcher"
	"github.com/dshills/vectorcode/internal/storage"
	"github.com/dshills/vectorcode/internal/storage/postgres"
	"github.com/dshills/vectorcode/internal/storage/qdrant"
	"github.com/dshills/vectorcode/pkg/types"
)

// DefaultConfigCacheSize bounds the per-project configs kept by a long-running server
const DefaultConfigCacheSize = 32

// App owns the storage backend and the embedders of one process
type App struct {
	base     *config.Config
	loadOpts config.LoadOptions
	backend  storage.Backend
	logger   *slog.Logger
	scorer   rerank.Scorer

	collections *storage.CollectionCache
	configs     *lru.Cache[string, *config.Config]

	mu        sync.Mutex
	embedders map[embedder.Config]embedder.Embedder

	username string
	hostname string
}

// Option configures an App
type Option func(*App)

// WithBackend uses b instead of opening the configured backend
func WithBackend(b storage.Backend) Option {
	return func(a *App) { a.backend = b }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// WithScorer sets the cross-encoder scorer used instead of one built from reranker_params
func WithScorer(scorer rerank.Scorer) Option {
	return func(a *App) { a.scorer = scorer }
}

// WithOwner overrides the user and host recorded on collections
func WithOwner(username, hostname string) Option {
	return func(a *App) {
		a.username = username
		a.hostname = hostname
	}
}

// New opens the backend selected by base. loadOpts is reused by ProjectConfig
// to read the configuration of other projects.
func New(ctx context.Context, base *config.Config, loadOpts config.LoadOptions, opts ...Option) (*App, error) {
	configs, err := lru.New[string, *config.Config](DefaultConfigCacheSize)
	if err != nil {
		return nil, err
	}

	a := &App{
		base:        base,
		loadOpts:    loadOpts,
		logger:      slog.Default(),
		collections: storage.NewCollectionCache(storage.DefaultCollectionCacheSize),
		configs:     configs,
		embedders:   make(map[embedder.Config]embedder.Embedder),
	}
	a.username, a.hostname = storage.CurrentOwner()
	for _, opt := range opts {
		opt(a)
	}

	if a.backend == nil {
		backend, err := OpenBackend(ctx, base)
		if err != nil {
			return nil, err
		}
		a.backend = backend
	}
	return a, nil
}

// OpenBackend connects to the vector database named by cfg.DBBackend
func OpenBackend(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	switch cfg.DBBackend {
	case config.BackendSQLite, "":
		return storage.NewSQLiteBackend(ctx, cfg.DBPath)
	case config.BackendQdrant:
		return qdrant.New(ctx, qdrant.Config{Host: cfg.Host, Port: cfg.Port, APIKey: cfg.DBAPIKey})
	case config.BackendPostgres:
		return postgres.New(ctx, cfg.DBURL)
	default:
		return nil, fmt.Errorf("%w: unknown db_backend %q", config.ErrInvalidConfig, cfg.DBBackend)
	}
}

// Base returns the configuration the App was created with
func (a *App) Base() *config.Config {
	return a.base
}

// Backend returns the open storage backend
func (a *App) Backend() storage.Backend {
	return a.backend
}

// ProjectConfig loads and caches the configuration of the project at root
func (a *App) ProjectConfig(root string) (*config.Config, error) {
	root = config.ExpandPath(root, true)
	if cfg, ok := a.configs.Get(root); ok {
		return cfg, nil
	}

	opts := a.loadOpts
	opts.ProjectRoot = root
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, err
	}
	cfg.ProjectRoot = root
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a.configs.Add(root, cfg)
	return cfg, nil
}

// Embedder returns the embedding function configured for cfg.
// Embedders are shared between projects with the same settings.
func (a *App) Embedder(cfg *config.Config) (embedder.Embedder, error) {
	provider := cfg.EmbeddingFunction
	if provider == "" {
		provider = embedder.DetectProvider()
	}
	ecfg := embedder.ConfigFromParams(provider, cfg.EmbeddingParams)
	if ecfg.CacheSize == 0 {
		ecfg.CacheSize = embedder.DefaultCacheSize
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if emb, ok := a.embedders[ecfg]; ok {
		return emb, nil
	}
	emb, err := embedder.New(ecfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	a.embedders[ecfg] = emb
	return emb, nil
}

// Spec identifies the collection of the project in cfg
func (a *App) Spec(cfg *config.Config) (storage.CollectionSpec, error) {
	if cfg.ProjectRoot == "" {
		return storage.CollectionSpec{}, fmt.Errorf("%w: project root is not set", config.ErrInvalidConfig)
	}
	emb, err := a.Embedder(cfg)
	if err != nil {
		return storage.CollectionSpec{}, err
	}
	return storage.CollectionSpec{
		ProjectRoot: cfg.ProjectRoot,
		Username:    a.username,
		Hostname:    a.hostname,
		Embedder:    emb,
		SkipVerify:  !cfg.VerifyEmbedding,
	}, nil
}

func (a *App) cacheKey(cfg *config.Config) storage.CacheKey {
	return storage.CacheKey{ProjectRoot: cfg.ProjectRoot, Target: a.backend.Target()}
}

// Collection opens the collection of the project in cfg, creating it when create is set
func (a *App) Collection(ctx context.Context, cfg *config.Config, create bool) (storage.Collection, error) {
	key := a.cacheKey(cfg)
	if col, ok := a.collections.Get(key); ok {
		return col, nil
	}

	spec, err := a.Spec(cfg)
	if err != nil {
		return nil, err
	}

	var col storage.Collection
	if create {
		col, err = a.backend.GetOrCreateCollection(ctx, spec)
	} else {
		col, err = a.backend.GetCollection(ctx, spec)
	}
	if err != nil {
		return nil, err
	}
	a.collections.Add(key, col)
	return col, nil
}

// Query runs texts against the project in cfg
func (a *App) Query(ctx context.Context, cfg *config.Config, texts []string, absolute bool) (*searcher.Response, error) {
	col, err := a.Collection(ctx, cfg, false)
	if err != nil {
		return nil, err
	}

	exclude, err := a.resolveExclude(cfg)
	if err != nil {
		return nil, err
	}

	s := searcher.New(col, searcher.WithLogger(a.logger), searcher.WithScorer(a.scorer))
	return s.Search(ctx, searcher.Query{
		Texts:           texts,
		ProjectRoot:     cfg.ProjectRoot,
		NResult:         cfg.NResult,
		QueryMultiplier: cfg.QueryMultiplier,
		ChunkSize:       cfg.ChunkSize,
		OverlapRatio:    cfg.OverlapRatio,
		Exclude:         exclude,
		Absolute:        absolute,
		Reranker:        cfg.Reranker,
		RerankerParams:  cfg.RerankerParams,
	})
}

// resolveExclude expands the configured exclusions to files under the project root
func (a *App) resolveExclude(cfg *config.Config) ([]string, error) {
	if len(cfg.QueryExclude) == 0 {
		return nil, nil
	}
	patterns := make([]string, 0, len(cfg.QueryExclude))
	for _, p := range cfg.QueryExclude {
		p = config.ExpandPath(p, false)
		if !filepath.IsAbs(p) {
			p = filepath.Join(cfg.ProjectRoot, p)
		}
		patterns = append(patterns, p)
	}
	files, err := config.ExpandGlobs(patterns, true)
	if err != nil {
		return nil, fmt.Errorf("failed to expand exclusions: %w", err)
	}
	return files, nil
}

// VectoriseOptions selects the files of a vectorise run
type VectoriseOptions struct {
	Paths     []string
	Recursive bool
	Force     bool
}

// Vectorise indexes files of the project in cfg
func (a *App) Vectorise(ctx context.Context, cfg *config.Config, opts VectoriseOptions) (*types.VectoriseStats, error) {
	col, err := a.Collection(ctx, cfg, true)
	if err != nil {
		return nil, err
	}

	// No paths means the whole project
	if len(opts.Paths) == 0 {
		opts.Paths = []string{cfg.ProjectRoot}
		opts.Recursive = true
	}

	ix, err := indexer.New(col, indexer.Config{
		ProjectRoot:  cfg.ProjectRoot,
		Recursive:    opts.Recursive,
		Force:        opts.Force,
		Workers:      cfg.Workers,
		ChunkSize:    cfg.ChunkSize,
		OverlapRatio: cfg.OverlapRatio,
	}, a.logger)
	if err != nil {
		return nil, err
	}

	return ix.Vectorise(ctx, opts.Paths)
}

// List returns the collections owned by the current user on this host
func (a *App) List(ctx context.Context) ([]storage.CollectionInfo, error) {
	all, err := a.backend.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	owned := make([]storage.CollectionInfo, 0, len(all))
	for _, info := range all {
		if info.Username == a.username && info.Hostname == a.hostname {
			owned = append(owned, info)
		}
	}
	return owned, nil
}

// Drop deletes the collection of the project in cfg
func (a *App) Drop(ctx context.Context, cfg *config.Config) error {
	spec, err := a.Spec(cfg)
	if err != nil {
		return err
	}
	a.collections.Invalidate(a.cacheKey(cfg))
	return a.backend.DropCollection(ctx, spec.Name())
}

// Close releases the embedders and the backend
func (a *App) Close() error {
	a.mu.Lock()
	for key, emb := range a.embedders {
		_ = emb.Close()
		delete(a.embedders, key)
	}
	a.mu.Unlock()
	a.collections.Purge()
	return a.backend.Close()
}
