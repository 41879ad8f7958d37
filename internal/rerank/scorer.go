package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dshills/vectorcode/internal/retry"
)

// Score is the relevance of one candidate document.
// Values are comparable only within a single Score call; higher is more relevant.
type Score struct {
	Index int
	Value float64
}

// Scorer rates candidate documents against one query text
type Scorer interface {
	Score(ctx context.Context, query string, docs []string) ([]Score, error)
}

// ScorerFunc adapts a plain function to Scorer
type ScorerFunc func(ctx context.Context, query string, docs []string) ([]Score, error)

func (f ScorerFunc) Score(ctx context.Context, query string, docs []string) ([]Score, error) {
	return f(ctx, query, docs)
}

const (
	DefaultRerankURL   = "https://api.jina.ai/v1/rerank"
	DefaultRerankModel = "jina-reranker-v2-base-multilingual"

	EnvJinaAPIKey = "JINA_API_KEY"
)

var ErrMissingAPIKey = errors.New("rerank api key not set")

// JinaConfig configures a JinaScorer
type JinaConfig struct {
	APIKey  string
	Model   string
	URL     string
	Timeout time.Duration
}

// JinaConfigFromParams reads scorer settings from the reranker_params bag.
// Recognized keys: api_key, model (or model_name_or_path), base_url, timeout_seconds.
func JinaConfigFromParams(params map[string]any) JinaConfig {
	cfg := JinaConfig{}
	if v, ok := params["api_key"].(string); ok {
		cfg.APIKey = v
	}
	if v, ok := params["model"].(string); ok {
		cfg.Model = v
	} else if v, ok := params["model_name_or_path"].(string); ok {
		cfg.Model = v
	}
	if v, ok := params["base_url"].(string); ok {
		cfg.URL = v
	}
	switch v := params["timeout_seconds"].(type) {
	case float64:
		cfg.Timeout = time.Duration(v * float64(time.Second))
	case int:
		cfg.Timeout = time.Duration(v) * time.Second
	}
	return cfg
}

// JinaScorer calls a Jina or Cohere compatible rerank endpoint
type JinaScorer struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client
	retry      retry.Config
}

// NewJinaScorer builds a scorer. An API key is required for the public endpoint;
// self-hosted endpoints set with URL may run without one.
func NewJinaScorer(cfg JinaConfig) (*JinaScorer, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(EnvJinaAPIKey)
	}
	if cfg.URL == "" {
		cfg.URL = DefaultRerankURL
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: set %s or reranker_params.api_key", ErrMissingAPIKey, EnvJinaAPIKey)
		}
	}
	if cfg.Model == "" {
		cfg.Model = DefaultRerankModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &JinaScorer{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retry:      retry.DefaultConfig(),
	}, nil
}

// Model returns the rerank model name
func (s *JinaScorer) Model() string {
	return s.model
}

func (s *JinaScorer) Score(ctx context.Context, query string, docs []string) ([]Score, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	return retry.Do(ctx, s.retry, func() ([]Score, error) {
		return s.call(ctx, query, docs)
	})
}

func (s *JinaScorer) call(ctx context.Context, query string, docs []string) ([]Score, error) {
	body, err := json.Marshal(map[string]interface{}{
		"model":     s.model,
		"query":     query,
		"documents": docs,
	})
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		apiErr := fmt.Errorf("rerank api error %d: %s", resp.StatusCode, string(msg))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Permanent(apiErr)
		}
		return nil, apiErr
	}

	var out struct {
		Results []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	scores := make([]Score, len(out.Results))
	for i, r := range out.Results {
		scores[i] = Score{Index: r.Index, Value: r.RelevanceScore}
	}
	return scores, nil
}
