// Package config holds the typed run configuration for ctxbench.
// Configuration is loaded from a YAML file, then overridden by environment
// variables, then by CLI flags. A stable hash over the experiment-identity
// fields guards checkpoints against config drift between run and resume.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for an experiment run.
type Config struct {
	Experiment ExperimentConfig `yaml:"experiment"`
	Model      ModelConfig      `yaml:"model"`
	Retry      RetryConfig      `yaml:"retry"`
	Normalize  NormalizeConfig  `yaml:"normalize"`
	Paths      PathsConfig      `yaml:"paths"`
}

// ExperimentConfig controls sampling and validation behavior.
type ExperimentConfig struct {
	BatchSizes          []int   `yaml:"batch_sizes"`
	IterationsPerSize   int     `yaml:"iterations_per_size"`
	RandomSeed          int64   `yaml:"random_seed"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	AllowReuse          bool    `yaml:"allow_reuse"`
	MaxParallelWorkers  int     `yaml:"max_parallel_workers"`

	// RedispatchMalformed is reserved; malformed batches are recorded as
	// permanently failed when false.
	RedispatchMalformed bool `yaml:"redispatch_malformed"`
}

// ModelConfig identifies the generative model and its request parameters.
type ModelConfig struct {
	APIKey         string  `yaml:"api_key"`
	Name           string  `yaml:"name"`
	GoldenName     string  `yaml:"golden_name"`
	Temperature    float32 `yaml:"temperature"`
	RequestTimeout string  `yaml:"request_timeout"`
}

// RetryConfig controls retry of transient model failures.
type RetryConfig struct {
	Attempts    int    `yaml:"attempts"`
	BackoffBase string `yaml:"backoff_base"`
	BackoffMax  string `yaml:"backoff_max"`
}

// NormalizeConfig selects the normalization steps applied to both candidate
// and reference text before scoring.
type NormalizeConfig struct {
	CollapseWhitespace bool `yaml:"collapse_whitespace" json:"collapse_whitespace"`
	StripTrailing      bool `yaml:"strip_trailing" json:"strip_trailing"`
	IgnoreComments     bool `yaml:"ignore_comments" json:"ignore_comments"`
}

// PathsConfig locates the on-disk artifacts of a run.
type PathsConfig struct {
	SnippetPool string `yaml:"snippet_pool"`
	GoldenDB    string `yaml:"golden_db"`
	Checkpoint  string `yaml:"checkpoint"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Experiment: ExperimentConfig{
			BatchSizes:          []int{1, 5, 10, 20},
			IterationsPerSize:   1,
			RandomSeed:          42,
			SimilarityThreshold: 0.80,
			AllowReuse:          true,
			MaxParallelWorkers:  2,
		},
		Model: ModelConfig{
			Name:           "gemini-2.5-flash",
			GoldenName:     "gemini-2.5-pro",
			Temperature:    0,
			RequestTimeout: "120s",
		},
		Retry: RetryConfig{
			Attempts:    4,
			BackoffBase: "2s",
			BackoffMax:  "30s",
		},
		Normalize: NormalizeConfig{
			CollapseWhitespace: true,
			StripTrailing:      true,
		},
		Paths: PathsConfig{
			SnippetPool: "snippets.json",
			GoldenDB:    "golden.db",
			Checkpoint:  "checkpoint.json",
		},
	}
}

// Load loads configuration from a YAML file. A missing file is not an
// error: defaults are returned so a bare invocation works out of the box.
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Model.APIKey = key
	}
	if name := os.Getenv("CTXBENCH_MODEL"); name != "" {
		c.Model.Name = name
	}
	if path := os.Getenv("CTXBENCH_SNIPPET_POOL"); path != "" {
		c.Paths.SnippetPool = path
	}
	if path := os.Getenv("CTXBENCH_GOLDEN_DB"); path != "" {
		c.Paths.GoldenDB = path
	}
	if path := os.Getenv("CTXBENCH_CHECKPOINT"); path != "" {
		c.Paths.Checkpoint = path
	}
	if v := os.Getenv("CTXBENCH_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Experiment.RandomSeed = seed
		}
	}
}

// Validate checks structural invariants. The API key is deliberately not
// checked here; commands that never call the model must work without one.
func (c *Config) Validate() error {
	if len(c.Experiment.BatchSizes) == 0 {
		return fmt.Errorf("experiment.batch_sizes must not be empty")
	}
	for _, size := range c.Experiment.BatchSizes {
		if size < 1 {
			return fmt.Errorf("experiment.batch_sizes entry %d: must be >= 1", size)
		}
	}
	if c.Experiment.IterationsPerSize < 1 {
		return fmt.Errorf("experiment.iterations_per_size must be >= 1, got %d", c.Experiment.IterationsPerSize)
	}
	if t := c.Experiment.SimilarityThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("experiment.similarity_threshold must be in (0, 1], got %g", t)
	}
	if c.Experiment.MaxParallelWorkers < 1 {
		return fmt.Errorf("experiment.max_parallel_workers must be >= 1, got %d", c.Experiment.MaxParallelWorkers)
	}
	if c.Model.Name == "" {
		return fmt.Errorf("model.name must not be empty")
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("retry.attempts must be >= 1, got %d", c.Retry.Attempts)
	}
	for _, d := range []struct {
		field string
		value string
	}{
		{"model.request_timeout", c.Model.RequestTimeout},
		{"retry.backoff_base", c.Retry.BackoffBase},
		{"retry.backoff_max", c.Retry.BackoffMax},
	} {
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("%s: invalid duration %q", d.field, d.value)
		}
	}
	return nil
}

// GetRequestTimeout returns the per-request timeout as a duration.
func (c *Config) GetRequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Model.RequestTimeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetBackoffBase returns the initial retry backoff as a duration.
func (c *Config) GetBackoffBase() time.Duration {
	d, err := time.ParseDuration(c.Retry.BackoffBase)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// GetBackoffMax returns the retry backoff ceiling as a duration.
func (c *Config) GetBackoffMax() time.Duration {
	d, err := time.ParseDuration(c.Retry.BackoffMax)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// identity captures the fields that define which experiment a checkpoint
// belongs to. Paths and credentials are excluded: moving a file or rotating
// an API key must not invalidate a resume.
type identity struct {
	BatchSizes          []int           `json:"batch_sizes"`
	IterationsPerSize   int             `json:"iterations_per_size"`
	RandomSeed          int64           `json:"random_seed"`
	SimilarityThreshold float64         `json:"similarity_threshold"`
	AllowReuse          bool            `json:"allow_reuse"`
	Model               string          `json:"model"`
	Normalize           NormalizeConfig `json:"normalize"`
}

// Hash returns a stable hex digest of the experiment-identity fields.
func (c *Config) Hash() string {
	id := identity{
		BatchSizes:          c.Experiment.BatchSizes,
		IterationsPerSize:   c.Experiment.IterationsPerSize,
		RandomSeed:          c.Experiment.RandomSeed,
		SimilarityThreshold: c.Experiment.SimilarityThreshold,
		AllowReuse:          c.Experiment.AllowReuse,
		Model:               c.Model.Name,
		Normalize:           c.Normalize,
	}
	data, _ := json.Marshal(id)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
