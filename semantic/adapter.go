package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/viant/scriptsearch/errs"
	"github.com/viant/scriptsearch/logging"
	"github.com/viant/scriptsearch/metrics"
	"github.com/viant/scriptsearch/model"
	"github.com/viant/scriptsearch/vector"
)

var tracer = otel.Tracer("github.com/viant/scriptsearch/semantic")

// DefaultBibleLimit caps bible hits when Config.BibleLimit is not set.
const DefaultBibleLimit = 5

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher finds nearest stored vectors. vector.SQLiteStore implements it.
type VectorSearcher interface {
	Search(ctx context.Context, params vector.SearchParams) ([]vector.Hit, error)
}

// Hydrator loads the rows behind vector hits. Ids without a row are left out
// of the returned maps.
type Hydrator interface {
	ScenesByID(ctx context.Context, ids []int64) (map[int64]model.Result, error)
	BibleChunksByID(ctx context.Context, ids []int64) (map[int64]model.BibleResult, error)
}

// Config selects the embedding model and the vector search parameters.
type Config struct {
	Model      string
	Metric     vector.Metric
	Threshold  *float64
	BibleLimit int
}

// Adapter performs semantic retrieval and fusion.
type Adapter struct {
	embedder Embedder
	searcher VectorSearcher
	hydrator Hydrator
	config   Config
}

// New validates cfg and creates an Adapter.
func New(embedder Embedder, searcher VectorSearcher, hydrator Hydrator, cfg Config) (*Adapter, error) {
	const op = "semantic.New"
	if embedder == nil || searcher == nil || hydrator == nil {
		return nil, errs.Configuration(op, "embedder, searcher and hydrator are required")
	}
	if cfg.Metric == "" {
		cfg.Metric = vector.Cosine
	}
	if err := cfg.Metric.Validate(); err != nil {
		return nil, err
	}
	if cfg.BibleLimit <= 0 {
		cfg.BibleLimit = DefaultBibleLimit
	}
	return &Adapter{embedder: embedder, searcher: searcher, hydrator: hydrator, config: cfg}, nil
}

// Config returns the effective configuration.
func (a *Adapter) Config() Config { return a.config }

// Hits are hydrated semantic matches. Scenes are ordered by descending
// similarity.
type Hits struct {
	Scenes []model.Result
	Bible  []model.BibleResult
}

// Embed embeds text and rejects empty vectors or vectors holding NaN or Inf.
func (a *Adapter) Embed(ctx context.Context, text string) ([]float32, error) {
	const op = "semantic.Embed"
	ctx, span := tracer.Start(ctx, "semantic.Embed")
	defer span.End()

	vec, err := a.embedder.Embed(ctx, text)
	if err != nil {
		span.RecordError(err)
		return nil, &Failure{Stage: StageEmbedding, Err: errs.EmbeddingUnavailable(op, err)}
	}
	if err := validEmbedding(vec); err != nil {
		span.RecordError(err)
		return nil, &Failure{Stage: StageEmbedding, Err: errs.EmbeddingUnavailable(op, err)}
	}
	span.SetAttributes(attribute.Int("dimension", len(vec)))
	return vec, nil
}

func validEmbedding(vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("empty embedding")
	}
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("embedding value %d is %v", i, v)
		}
	}
	return nil
}

// Scenes returns up to limit hydrated scene matches for vec as Semantic
// results scored by similarity.
func (a *Adapter) Scenes(ctx context.Context, vec []float32, limit int) ([]model.Result, error) {
	hits, err := a.search(ctx, vec, vector.EntityScene, limit)
	if err != nil || len(hits) == 0 {
		return nil, err
	}
	rows, err := a.hydrator.ScenesByID(ctx, entityIDs(hits))
	if err != nil {
		return nil, &Failure{Stage: StageHydration, Err: err}
	}
	out := make([]model.Result, 0, len(hits))
	for _, hit := range hits {
		row, ok := rows[hit.EntityID]
		if !ok {
			continue
		}
		row.MatchType = model.MatchSemantic
		out = append(out, row.WithScore(hit.Similarity, model.ScoreSemantic, hit.Similarity))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RelevanceScore > out[j].RelevanceScore })
	return out, nil
}

// Bible returns up to limit hydrated bible chunk matches for vec.
func (a *Adapter) Bible(ctx context.Context, vec []float32, limit int) ([]model.BibleResult, error) {
	hits, err := a.search(ctx, vec, vector.EntityBibleChunk, limit)
	if err != nil || len(hits) == 0 {
		return nil, err
	}
	rows, err := a.hydrator.BibleChunksByID(ctx, entityIDs(hits))
	if err != nil {
		return nil, &Failure{Stage: StageHydration, Err: err}
	}
	out := make([]model.BibleResult, 0, len(hits))
	for _, hit := range hits {
		row, ok := rows[hit.EntityID]
		if !ok {
			continue
		}
		row.MatchType = model.MatchSemantic
		row.RelevanceScore = hit.Similarity
		out = append(out, row)
	}
	return out, nil
}

func (a *Adapter) search(ctx context.Context, vec []float32, entityType vector.EntityType, limit int) ([]vector.Hit, error) {
	if limit <= 0 {
		return nil, nil
	}
	ctx, span := tracer.Start(ctx, "semantic.Search", trace.WithAttributes(
		attribute.String("entity_type", string(entityType)),
		attribute.Int("limit", limit),
	))
	defer span.End()

	hits, err := a.searcher.Search(ctx, vector.SearchParams{
		Vector:     vec,
		Model:      a.config.Model,
		Limit:      limit,
		EntityType: entityType,
		Threshold:  a.config.Threshold,
		Metric:     a.config.Metric,
	})
	if err != nil {
		span.RecordError(err)
		return nil, &Failure{Stage: StageSearch, Err: err}
	}
	span.SetAttributes(attribute.Int("hits", len(hits)))
	return hits, nil
}

// Retrieve embeds the query text and runs the scene lookup, plus the bible
// lookup when q asks for bible results, concurrently. A query without a text
// signal yields no hits and no error. Errors are *Failure values.
func (a *Adapter) Retrieve(ctx context.Context, q model.Query, limit int) (Hits, error) {
	if !q.HasTextSignal() {
		return Hits{}, nil
	}
	ctx, span := tracer.Start(ctx, "semantic.Retrieve")
	defer span.End()

	vec, err := a.Embed(ctx, q.EmbeddingText())
	if err != nil {
		return Hits{}, err
	}

	var hits Hits
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scenes, err := a.Scenes(gctx, vec, limit)
		hits.Scenes = scenes
		return err
	})
	if q.WantsBible() {
		g.Go(func() error {
			bible, err := a.Bible(gctx, vec, a.config.BibleLimit)
			hits.Bible = bible
			return err
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return Hits{}, err
	}
	return hits, nil
}

// Merge appends the scene hits whose scene is not already in existing,
// ordered by descending similarity, and truncates the result to limit.
// Entries of existing are copied unchanged.
func Merge(existing []model.Result, hits []model.Result, limit int) []model.Result {
	if limit <= 0 {
		return []model.Result{}
	}
	seen := make(map[int64]bool, len(existing)+len(hits))
	out := make([]model.Result, 0, len(existing)+len(hits))
	for _, r := range existing {
		seen[r.SceneID] = true
		out = append(out, r)
	}
	var added []model.Result
	for _, r := range hits {
		if seen[r.SceneID] {
			continue
		}
		seen[r.SceneID] = true
		added = append(added, r)
	}
	sort.SliceStable(added, func(i, j int) bool { return added[i].RelevanceScore > added[j].RelevanceScore })
	out = append(out, added...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Outcome reports whether semantic enhancement was applied.
type Outcome struct {
	Applied  bool
	Degraded bool
	Reason   string
	Err      error
}

// Fuse completes a Retrieve call: on success the hits are merged into
// existing, on failure existing is returned unchanged with no bible results
// and the failure is logged and counted.
func (a *Adapter) Fuse(ctx context.Context, existing []model.Result, hits Hits, retrieveErr error, limit int) ([]model.Result, []model.BibleResult, Outcome) {
	if retrieveErr != nil {
		return existing, nil, degrade(ctx, retrieveErr)
	}
	return Merge(existing, hits.Scenes, limit), hits.Bible, Outcome{Applied: true}
}

// Enhance is Retrieve followed by Fuse.
func (a *Adapter) Enhance(ctx context.Context, q model.Query, existing []model.Result, limit int) ([]model.Result, []model.BibleResult, Outcome) {
	if !q.HasTextSignal() {
		return existing, nil, Outcome{}
	}
	hits, err := a.Retrieve(ctx, q, limit)
	return a.Fuse(ctx, existing, hits, err, limit)
}

func degrade(ctx context.Context, err error) Outcome {
	stage := StageOf(err)
	metrics.SemanticDegraded.WithLabelValues(stage).Inc()
	logging.FromContext(ctx).Warn("semantic enhancement skipped", "stage", stage, "error", err)
	return Outcome{Degraded: true, Reason: stage, Err: err}
}

func entityIDs(hits []vector.Hit) []int64 {
	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.EntityID
	}
	return ids
}
