// Package config loads vectorcode settings.
//
// Settings are layered, later layers winning: built-in defaults, the global
// config file, the project config file, VECTORCODE_* environment variables and
// finally command-line overrides applied with MergeFrom.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dshills/vectorcode/internal/chunker"
	"github.com/dshills/vectorcode/pkg/types"
)

const (
	// EnvPrefix prefixes every environment variable read by Load
	EnvPrefix = "VECTORCODE"

	// ProjectDir is the per-project configuration directory
	ProjectDir = ".vectorcode"

	// FileName is the config file name in both the global and project directories
	FileName = "config.json"
)

// Storage backends
const (
	BackendSQLite   = "sqlite"
	BackendQdrant   = "qdrant"
	BackendPostgres = "postgres"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds every vectorcode setting
type Config struct {
	ProjectRoot string `mapstructure:"project_root" json:"project_root"`

	DBBackend string `mapstructure:"db_backend" json:"db_backend"`
	DBPath    string `mapstructure:"db_path" json:"db_path"`
	DBURL     string `mapstructure:"db_url" json:"db_url"`
	Host      string `mapstructure:"host" json:"host"`
	Port      int    `mapstructure:"port" json:"port"`
	DBAPIKey  string `mapstructure:"db_api_key" json:"db_api_key"`

	EmbeddingFunction string         `mapstructure:"embedding_function" json:"embedding_function"`
	EmbeddingParams   map[string]any `mapstructure:"embedding_params" json:"embedding_params"`

	// VerifyEmbedding rejects collections built with another embedding function
	VerifyEmbedding bool `mapstructure:"verify_ef" json:"verify_ef"`

	ChunkSize       int     `mapstructure:"chunk_size" json:"chunk_size"`
	OverlapRatio    float64 `mapstructure:"overlap_ratio" json:"overlap_ratio"`
	QueryMultiplier int     `mapstructure:"query_multiplier" json:"query_multiplier"`
	NResult         int     `mapstructure:"n_result" json:"n_result"`

	Reranker       string         `mapstructure:"reranker" json:"reranker"`
	RerankerParams map[string]any `mapstructure:"reranker_params" json:"reranker_params"`

	QueryExclude []string `mapstructure:"query_exclude" json:"query_exclude"`

	Workers int `mapstructure:"workers" json:"workers"`

	LogLevel     string `mapstructure:"log_level" json:"log_level"`
	LogFormat    string `mapstructure:"log_format" json:"log_format"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		DBBackend:         BackendSQLite,
		DBPath:            "~/.local/share/vectorcode/db",
		Host:              "localhost",
		Port:              6334,
		EmbeddingFunction: "local",
		EmbeddingParams:   map[string]any{},
		VerifyEmbedding:   true,
		ChunkSize:         chunker.DefaultSize,
		OverlapRatio:      chunker.DefaultOverlapRatio,
		QueryMultiplier:   -1,
		NResult:           1,
		RerankerParams:    map[string]any{},
		LogLevel:          "warn",
		LogFormat:         "text",
	}
}

// LoadOptions locates the config layers
type LoadOptions struct {
	// GlobalFile overrides the global config path; empty uses GlobalPath()
	GlobalFile string

	// ProjectRoot is searched for .vectorcode/config.json
	ProjectRoot string

	// EnvFile is an optional dotenv file loaded before reading the environment
	EnvFile string
}

// GlobalPath returns the default global config file
func GlobalPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		dir = ExpandPath("~/.config", false)
	}
	return filepath.Join(dir, "vectorcode", FileName)
}

// Load reads the layered configuration. Missing files are skipped;
// malformed files are an error.
func Load(opts LoadOptions) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	global := opts.GlobalFile
	if global == "" {
		global = GlobalPath()
	}
	if err := mergeFile(v, global); err != nil {
		return nil, err
	}
	if opts.ProjectRoot != "" {
		if err := mergeFile(v, filepath.Join(opts.ProjectRoot, ProjectDir, FileName)); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if cfg.EmbeddingParams == nil {
		cfg.EmbeddingParams = map[string]any{}
	}
	if cfg.RerankerParams == nil {
		cfg.RerankerParams = map[string]any{}
	}
	if cfg.ProjectRoot == "" {
		cfg.ProjectRoot = opts.ProjectRoot
	}

	ExpandEnvs(cfg.EmbeddingParams)
	ExpandEnvs(cfg.RerankerParams)
	cfg.DBPath = ExpandPath(cfg.DBPath, true)
	if cfg.ProjectRoot != "" {
		cfg.ProjectRoot = ExpandPath(cfg.ProjectRoot, true)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("project_root", "")
	v.SetDefault("db_backend", d.DBBackend)
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("db_url", "")
	v.SetDefault("host", d.Host)
	v.SetDefault("port", d.Port)
	v.SetDefault("db_api_key", "")
	v.SetDefault("embedding_function", d.EmbeddingFunction)
	v.SetDefault("embedding_params", d.EmbeddingParams)
	v.SetDefault("verify_ef", d.VerifyEmbedding)
	v.SetDefault("chunk_size", d.ChunkSize)
	v.SetDefault("overlap_ratio", d.OverlapRatio)
	v.SetDefault("query_multiplier", d.QueryMultiplier)
	v.SetDefault("n_result", d.NResult)
	v.SetDefault("reranker", "")
	v.SetDefault("reranker_params", d.RerankerParams)
	v.SetDefault("query_exclude", []string{})
	v.SetDefault("workers", 0)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("otlp_endpoint", "")
}

func mergeFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	return nil
}

// Overrides are command-line values; nil fields leave the loaded value alone
type Overrides struct {
	ProjectRoot     *string
	NResult         *int
	ChunkSize       *int
	OverlapRatio    *float64
	QueryMultiplier *int
	Reranker        *string
	Exclude         []string
}

// MergeFrom applies the set overrides on top of c
func (c *Config) MergeFrom(o Overrides) {
	if o.ProjectRoot != nil {
		c.ProjectRoot = ExpandPath(*o.ProjectRoot, true)
	}
	if o.NResult != nil {
		c.NResult = *o.NResult
	}
	if o.ChunkSize != nil {
		c.ChunkSize = *o.ChunkSize
	}
	if o.OverlapRatio != nil {
		c.OverlapRatio = *o.OverlapRatio
	}
	if o.QueryMultiplier != nil {
		c.QueryMultiplier = *o.QueryMultiplier
	}
	if o.Reranker != nil {
		c.Reranker = *o.Reranker
	}
	if len(o.Exclude) > 0 {
		c.QueryExclude = append([]string(nil), o.Exclude...)
	}
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	if err := chunker.Validate(c.OverlapRatio); err != nil {
		return err
	}
	if c.NResult < 1 {
		return fmt.Errorf("%w: got %d", types.ErrInvalidResultCount, c.NResult)
	}
	switch c.DBBackend {
	case BackendSQLite:
	case BackendQdrant:
		if c.Host == "" {
			return fmt.Errorf("%w: qdrant backend requires host", ErrInvalidConfig)
		}
	case BackendPostgres:
		if c.DBURL == "" {
			return fmt.Errorf("%w: postgres backend requires db_url", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown db_backend %q", ErrInvalidConfig, c.DBBackend)
	}
	return nil
}
