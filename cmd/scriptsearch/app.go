package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"strings"

	"github.com/viant/scriptsearch/config"
	"github.com/viant/scriptsearch/embedding/cache"
	"github.com/viant/scriptsearch/embedding/openai"
	"github.com/viant/scriptsearch/engine"
	"github.com/viant/scriptsearch/errs"
	"github.com/viant/scriptsearch/logging"
	"github.com/viant/scriptsearch/search"
	"github.com/viant/scriptsearch/semantic"
	"github.com/viant/scriptsearch/vector"
)

type configKey struct{}

func withConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

func configFrom(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

// app holds the wired search stack for one command run.
type app struct {
	db      *sql.DB
	store   *vector.SQLiteStore
	engine  *search.Engine
	closers []func() error
}

// newApp opens the database and wires the engine. writable forces a
// read-write connection, which vector migration needs.
func newApp(ctx context.Context, cfg *config.Config, writable bool) (*app, error) {
	readOnly := cfg.Database.ReadOnly && !writable
	opts := []engine.Option{engine.WithBusyTimeout(cfg.Database.BusyTimeout)}
	if readOnly {
		opts = append(opts, engine.WithReadOnly())
	}
	db, err := engine.Open(cfg.Database.Path, opts...)
	if err != nil {
		return nil, errs.Storage("scriptsearch.open", err)
	}
	a := &app{db: db, closers: []func() error{db.Close}}

	var storeOpts []vector.StoreOption
	if readOnly {
		storeOpts = append(storeOpts, vector.WithoutSchema())
	}
	if a.store, err = vector.NewSQLiteStore(db, storeOpts...); err != nil {
		_ = a.Close()
		return nil, err
	}

	ranker, err := cfg.Ranker()
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	repo := search.NewRepository(db)
	engineOpts := []search.Option{
		search.WithRanker(ranker),
		search.WithConfig(cfg.SearchConfig()),
		search.WithSimilarFinder(a.store),
	}

	embedder, err := a.embedder(ctx, cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if embedder != nil {
		semCfg, err := cfg.SemanticConfig()
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		adapter, err := semantic.New(embedder, a.store, repo, semCfg)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		engineOpts = append(engineOpts, search.WithSemantic(adapter))
	}
	a.engine = search.New(repo, engineOpts...)
	return a, nil
}

// embedder returns nil when semantic search is disabled or has no credentials.
func (a *app) embedder(ctx context.Context, cfg *config.Config) (semantic.Embedder, error) {
	logger := logging.FromContext(ctx)
	ec := cfg.Embedding
	switch strings.ToLower(ec.Provider) {
	case "", "none":
		return nil, nil
	case "openai":
	default:
		return nil, errs.Configuration("scriptsearch.embedder", "unsupported embedding provider %q", ec.Provider)
	}
	if ec.APIKey == "" {
		logger.Warn("embedding api key not set, semantic search disabled")
		return nil, nil
	}
	embedder, err := openai.NewEmbedder(ec.APIKey,
		openai.WithEmbeddingModel(ec.Model),
		openai.WithEmbeddingDimension(ec.Dimension),
		openai.WithBaseURL(ec.BaseURL),
		openai.WithTimeout(ec.Timeout),
	)
	if err != nil {
		return nil, errs.Configuration("scriptsearch.embedder", "%v", err)
	}
	if !cfg.Cache.Enabled {
		return embedder, nil
	}
	rdb, err := cache.Dial(ctx, cache.Options{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	})
	if err != nil {
		logger.Warn("embedding cache unavailable", "addr", cfg.Cache.RedisAddr, "error", err)
		return embedder, nil
	}
	a.closers = append(a.closers, rdb.Close)
	return cache.New(embedder, cache.NewRedisStore(rdb), ec.Model, cfg.Cache.TTL), nil
}

func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
