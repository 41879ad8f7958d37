package embedder

import (
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go/v3/option"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	APIKey    string
	Model     string
	BaseURL   string
	Dimension int
	CacheSize int
}

// ConfigFromParams builds a Config from a provider name and the opaque
// embedding_params bag of the project configuration.
// Recognized keys: api_key, model, base_url, dimension, cache_size.
func ConfigFromParams(provider string, params map[string]any) Config {
	cfg := Config{Provider: provider}
	cfg.APIKey = stringParam(params, "api_key")
	cfg.Model = stringParam(params, "model")
	cfg.BaseURL = stringParam(params, "base_url")
	cfg.Dimension = intParam(params, "dimension")
	cfg.CacheSize = intParam(params, "cache_size")
	return cfg
}

// NewFromEnv creates an embedder based on environment variables
// Priority:
// 1. VECTORCODE_EMBEDDING_PROVIDER (jina, openai, local)
// 2. Check for API keys: JINA_API_KEY, OPENAI_API_KEY
// 3. Default to local if no API keys found
func NewFromEnv() (Embedder, error) {
	return New(Config{Provider: DetectProvider(), CacheSize: DefaultCacheSize})
}

// New creates an embedder with explicit configuration.
// An empty provider selects the local embedder.
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	provider := strings.ToLower(cfg.Provider)
	switch provider {
	case ProviderJina:
		p, err := NewJinaProvider(cfg.APIKey, cache)
		if err != nil {
			return nil, err
		}
		return p.WithModel(cfg.Model, cfg.Dimension).WithURL(cfg.BaseURL), nil
	case ProviderOpenAI:
		var opts []option.RequestOption
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		p, err := NewOpenAIProvider(cfg.APIKey, cache, opts...)
		if err != nil {
			return nil, err
		}
		return p.WithModel(cfg.Model, cfg.Dimension), nil
	case ProviderLocal, "":
		p, err := NewLocalProvider(cache)
		if err != nil {
			return nil, err
		}
		return p.WithDimension(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	provider := os.Getenv(EnvProvider)
	if provider != "" {
		return strings.ToLower(provider)
	}

	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}

	return ProviderLocal
}

func stringParam(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func intParam(params map[string]any, key string) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
