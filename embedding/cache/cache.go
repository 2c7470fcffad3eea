// Package cache memoises query embeddings in redis and collapses concurrent
// requests for the same text.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/viant/scriptsearch/logging"
	"github.com/viant/scriptsearch/metrics"
	"github.com/viant/scriptsearch/semantic"
	"github.com/viant/scriptsearch/vector"
)

var tracer = otel.Tracer("github.com/viant/scriptsearch/embedding/cache")

// DefaultTTL is how long a cached embedding is kept.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "scriptsearch:embedding:"

// Cache lookup results.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

// Store holds cached blobs with an expiry.
type Store interface {
	// Get reports ok=false for a missing key.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisStore implements Store on redis.
type RedisStore struct {
	rdb redis.UniversalClient
}

// NewRedisStore wraps a redis client.
func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Options addresses a redis server.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Dial connects to redis and verifies the connection.
func Dial(ctx context.Context, opts Options) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

// Embedder is a read-through cache in front of another Embedder. Cache
// failures fall back to the wrapped Embedder.
type Embedder struct {
	inner semantic.Embedder
	store Store
	model string
	ttl   time.Duration
	group singleflight.Group
}

// New caches inner's embeddings for model in store. A non-positive ttl uses
// DefaultTTL.
func New(inner semantic.Embedder, store Store, model string, ttl time.Duration) *Embedder {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Embedder{inner: inner, store: store, model: model, ttl: ttl}
}

// Key returns the cache key of text under model.
func Key(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return keyPrefix + model + ":" + hex.EncodeToString(sum[:])
}

// Embed returns the cached embedding of text, computing and caching it on a
// miss. Concurrent misses for the same text share one upstream call.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := Key(e.model, text)
	ctx, span := tracer.Start(ctx, "cache.Embed", trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()
	logger := logging.FromContext(ctx)

	blob, ok, err := e.store.Get(ctx, key)
	switch {
	case err != nil:
		metrics.EmbeddingCacheRequests.WithLabelValues(ResultError).Inc()
		span.RecordError(err)
		logger.Warn("embedding cache read failed", "error", err)
	case ok:
		vec, decodeErr := vector.DecodeEmbedding(blob)
		if decodeErr == nil && len(vec) > 0 {
			metrics.EmbeddingCacheRequests.WithLabelValues(ResultHit).Inc()
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return vec, nil
		}
		logger.Warn("discarding malformed cached embedding", "error", decodeErr)
	}
	if err == nil {
		metrics.EmbeddingCacheRequests.WithLabelValues(ResultMiss).Inc()
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	// The shared call outlives any single caller's cancellation.
	shared := context.WithoutCancel(ctx)
	v, err, _ := e.group.Do(key, func() (any, error) {
		vec, err := e.inner.Embed(shared, text)
		if err != nil {
			return nil, err
		}
		if blob, err := vector.EncodeEmbedding(vec); err == nil {
			if err := e.store.Set(shared, key, blob, e.ttl); err != nil {
				logger.Warn("embedding cache write failed", "error", err)
			}
		}
		return vec, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return append([]float32(nil), v.([]float32)...), nil
}

var (
	_ semantic.Embedder = (*Embedder)(nil)
	_ Store             = (*RedisStore)(nil)
)
