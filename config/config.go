// Package config loads scriptsearch settings from an optional YAML file, a
// .env file and SCRIPTSEARCH_* environment variables.
package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/viant/scriptsearch/errs"
	"github.com/viant/scriptsearch/rank"
	"github.com/viant/scriptsearch/search"
	"github.com/viant/scriptsearch/semantic"
	"github.com/viant/scriptsearch/vector"
)

// EnvPrefix prefixes every environment override, e.g. SCRIPTSEARCH_DATABASE_PATH.
const EnvPrefix = "SCRIPTSEARCH"

// Config is the root configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Vector    VectorConfig    `yaml:"vector" mapstructure:"vector"`
	Ranking   RankingConfig   `yaml:"ranking" mapstructure:"ranking"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing" mapstructure:"tracing"`
}

type DatabaseConfig struct {
	Path        string        `yaml:"path" mapstructure:"path"`
	ReadOnly    bool          `yaml:"read_only" mapstructure:"read_only"`
	BusyTimeout time.Duration `yaml:"busy_timeout" mapstructure:"busy_timeout"`
}

// EmbeddingConfig selects the query embedder. Provider "none" disables
// semantic search.
type EmbeddingConfig struct {
	Provider  string        `yaml:"provider" mapstructure:"provider"`
	Model     string        `yaml:"model" mapstructure:"model"`
	Dimension int           `yaml:"dimension" mapstructure:"dimension"`
	APIKey    string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// VectorConfig tunes vector search. Threshold is a minimum similarity; nil
// keeps every candidate.
type VectorConfig struct {
	Metric     string   `yaml:"metric" mapstructure:"metric"`
	Threshold  *float64 `yaml:"threshold" mapstructure:"threshold"`
	BibleLimit int      `yaml:"bible_limit" mapstructure:"bible_limit"`
}

type RankingConfig struct {
	Ranker          string       `yaml:"ranker" mapstructure:"ranker"`
	ProximityWeight float64      `yaml:"proximity_weight" mapstructure:"proximity_weight"`
	Hybrid          HybridConfig `yaml:"hybrid" mapstructure:"hybrid"`
}

type HybridConfig struct {
	Relevance float64 `yaml:"relevance" mapstructure:"relevance"`
	Text      float64 `yaml:"text" mapstructure:"text"`
	Proximity float64 `yaml:"proximity" mapstructure:"proximity"`
}

type SearchConfig struct {
	DefaultLimit  int `yaml:"default_limit" mapstructure:"default_limit"`
	Overfetch     int `yaml:"overfetch" mapstructure:"overfetch"`
	DialogueLimit int `yaml:"dialogue_limit" mapstructure:"dialogue_limit"`
}

type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisAddr string        `yaml:"redis_addr" mapstructure:"redis_addr"`
	Password  string        `yaml:"password" mapstructure:"password"`
	DB        int           `yaml:"db" mapstructure:"db"`
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint    string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate  float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
	ServiceName string  `yaml:"service_name" mapstructure:"service_name"`
}

// Load reads .env (when present), then path (when not empty), then the
// environment. Later sources win.
func Load(path string) (*Config, error) {
	const op = "config.Load"
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &errs.Error{Code: errs.CodeConfiguration, Op: op, Message: "failed to read .env", Err: err}
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, &errs.Error{Code: errs.CodeConfiguration, Op: op, Message: "failed to read " + path, Err: err}
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// threshold has no default, so it must be bound to be seen by Unmarshal.
	_ = v.BindEnv("vector.threshold")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &errs.Error{Code: errs.CodeConfiguration, Op: op, Message: "failed to unmarshal config", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used with no file and no environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "scripts.db")
	v.SetDefault("database.read_only", true)
	v.SetDefault("database.busy_timeout", "5s")

	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimension", 1536)
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.timeout", "10s")

	v.SetDefault("vector.metric", string(vector.Cosine))
	v.SetDefault("vector.bible_limit", semantic.DefaultBibleLimit)

	w := rank.DefaultWeights()
	v.SetDefault("ranking.ranker", "hybrid")
	v.SetDefault("ranking.proximity_weight", w.Proximity)
	v.SetDefault("ranking.hybrid.relevance", w.Hybrid.Relevance)
	v.SetDefault("ranking.hybrid.text", w.Hybrid.Text)
	v.SetDefault("ranking.hybrid.proximity", w.Hybrid.Proximity)

	s := search.DefaultConfig()
	v.SetDefault("search.default_limit", s.DefaultLimit)
	v.SetDefault("search.overfetch", s.Overfetch)
	v.SetDefault("search.dialogue_limit", s.DialogueLimit)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", "24h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.service_name", "scriptsearch")
}

// Validate checks the metric, the ranker and its weights.
func (c *Config) Validate() error {
	const op = "config.Validate"
	if _, err := vector.ParseMetric(c.Vector.Metric); err != nil {
		return err
	}
	if _, err := c.Ranker(); err != nil {
		return err
	}
	if c.Search.DefaultLimit < 0 || c.Search.Overfetch < 0 || c.Search.DialogueLimit < 0 {
		return errs.Configuration(op, "search limits must not be negative")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return errs.Configuration(op, "tracing sample rate %v outside [0,1]", c.Tracing.SampleRate)
	}
	return nil
}

// Weights returns the configured ranking weights.
func (c *Config) Weights() rank.Weights {
	return rank.Weights{
		Proximity: c.Ranking.ProximityWeight,
		Hybrid: rank.HybridWeights{
			Relevance: c.Ranking.Hybrid.Relevance,
			Text:      c.Ranking.Hybrid.Text,
			Proximity: c.Ranking.Hybrid.Proximity,
		},
	}
}

// Ranker resolves the configured ranker.
func (c *Config) Ranker() (rank.Ranker, error) {
	return rank.ByName(c.Ranking.Ranker, c.Weights())
}

// SemanticConfig returns the adapter settings.
func (c *Config) SemanticConfig() (semantic.Config, error) {
	metric, err := vector.ParseMetric(c.Vector.Metric)
	if err != nil {
		return semantic.Config{}, err
	}
	return semantic.Config{
		Model:      c.Embedding.Model,
		Metric:     metric,
		Threshold:  c.Vector.Threshold,
		BibleLimit: c.Vector.BibleLimit,
	}, nil
}

// SearchConfig returns the orchestrator settings.
func (c *Config) SearchConfig() search.Config {
	return search.Config{
		Overfetch:     c.Search.Overfetch,
		DefaultLimit:  c.Search.DefaultLimit,
		BibleLimit:    c.Vector.BibleLimit,
		DialogueLimit: c.Search.DialogueLimit,
		Model:         c.Embedding.Model,
	}
}
