package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const ConfigFilename = "loci.yaml"

type EmbeddingsConfig struct {
	Backend   string `yaml:"backend"`
	Model     string `yaml:"model,omitempty"`
	Dimension int    `yaml:"dimension"`
	APIKey    string `yaml:"api_key,omitempty"`
	BaseURL   string `yaml:"base_url,omitempty"`
	BatchSize int    `yaml:"batch_size,omitempty"`
}

type CacheConfig struct {
	Capacity int      `yaml:"capacity"`
	TTL      Duration `yaml:"ttl"`
}

type IndexConfig struct {
	MaxMemories int `yaml:"max_memories"`
	AnnoyTrees  int `yaml:"annoy_trees"`
}

type GraphConfig struct {
	LinkThreshold float32 `yaml:"link_threshold"`
	TopKNeighbors int     `yaml:"top_k_neighbors"`
	MaxEdges      int     `yaml:"max_edges"`
}

type SearchConfig struct {
	CandidateFactor int     `yaml:"candidate_factor"`
	DefaultLambda   float64 `yaml:"default_lambda"`
}

type RetryConfig struct {
	Attempts     int      `yaml:"attempts"`
	InitialDelay Duration `yaml:"initial_delay"`
	MaxDelay     Duration `yaml:"max_delay"`
	Multiplier   float64  `yaml:"multiplier"`
	Concurrency  int      `yaml:"provider_concurrency"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model"`
}

type Config struct {
	DataDir         string                    `yaml:"-"`
	Embeddings      EmbeddingsConfig          `yaml:"embeddings"`
	Cache           CacheConfig               `yaml:"cache"`
	Index           IndexConfig               `yaml:"index"`
	Graph           GraphConfig               `yaml:"graph"`
	Search          SearchConfig              `yaml:"search"`
	Retry           RetryConfig               `yaml:"retry"`
	Providers       map[string]ProviderConfig `yaml:"providers,omitempty"`
	DefaultProvider string                    `yaml:"default_provider,omitempty"`
	LogLevel        string                    `yaml:"log_level,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Embeddings: EmbeddingsConfig{
			Backend:   BackendHash,
			Dimension: 512,
			BatchSize: 64,
		},
		Cache: CacheConfig{
			Capacity: 4096,
			TTL:      Duration(time.Hour),
		},
		Index: IndexConfig{
			MaxMemories: 100000,
			AnnoyTrees:  10,
		},
		Graph: GraphConfig{
			LinkThreshold: 0.1,
			TopKNeighbors: 16,
			MaxEdges:      64,
		},
		Search: SearchConfig{
			CandidateFactor: 5,
			DefaultLambda:   0.7,
		},
		Retry: RetryConfig{
			Attempts:     3,
			InitialDelay: Duration(200 * time.Millisecond),
			MaxDelay:     Duration(5 * time.Second),
			Multiplier:   2,
			Concurrency:  4,
		},
		Providers: make(map[string]ProviderConfig),
	}
}

func LoadConfig(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, ConfigFilename)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.DataDir = dataDir
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	cfg.DataDir = dataDir

	// Keys may reference the environment, e.g. api_key: ${OPENAI_API_KEY}.
	cfg.Embeddings.APIKey = os.ExpandEnv(cfg.Embeddings.APIKey)
	for name, pc := range cfg.Providers {
		pc.APIKey = os.ExpandEnv(pc.APIKey)
		cfg.Providers[name] = pc
	}

	return cfg, nil
}

func SaveConfig(dataDir string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, ConfigFilename), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Embeddings.Backend {
	case BackendOpenAI, BackendOllama, BackendHash, "":
	default:
		return invalidf("embeddings.backend", "unknown backend %q", c.Embeddings.Backend)
	}
	if c.Embeddings.Dimension < 1 {
		return invalidf("embeddings.dimension", "must be at least 1, got %d", c.Embeddings.Dimension)
	}
	if c.Cache.Capacity < 0 {
		return invalidf("cache.capacity", "must not be negative, got %d", c.Cache.Capacity)
	}
	if c.Graph.LinkThreshold < -1 || c.Graph.LinkThreshold > 1 {
		return invalidf("graph.link_threshold", "must be in [-1, 1], got %g", c.Graph.LinkThreshold)
	}
	if c.Graph.TopKNeighbors < 1 {
		return invalidf("graph.top_k_neighbors", "must be at least 1, got %d", c.Graph.TopKNeighbors)
	}
	if c.Graph.MaxEdges < 1 {
		return invalidf("graph.max_edges", "must be at least 1, got %d", c.Graph.MaxEdges)
	}
	if c.Search.CandidateFactor < 1 {
		return invalidf("search.candidate_factor", "must be at least 1, got %d", c.Search.CandidateFactor)
	}
	if c.Search.DefaultLambda < 0 || c.Search.DefaultLambda > 1 {
		return invalidf("search.default_lambda", "must be in [0, 1], got %g", c.Search.DefaultLambda)
	}
	if c.Retry.Attempts < 1 {
		return invalidf("retry.attempts", "must be at least 1, got %d", c.Retry.Attempts)
	}
	return nil
}

func (c *Config) RetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:     c.Retry.Attempts,
		InitialDelay: c.Retry.InitialDelay.Std(),
		MaxDelay:     c.Retry.MaxDelay.Std(),
		Multiplier:   c.Retry.Multiplier,
	}
}

// Duration makes time.Duration round-trip through YAML as "200ms" style
// strings instead of raw nanosecond integers.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}
