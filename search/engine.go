package search

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/viant/scriptsearch/builder"
	"github.com/viant/scriptsearch/filter"
	"github.com/viant/scriptsearch/logging"
	"github.com/viant/scriptsearch/metrics"
	"github.com/viant/scriptsearch/model"
	"github.com/viant/scriptsearch/rank"
	"github.com/viant/scriptsearch/semantic"
	"github.com/viant/scriptsearch/vector"
)

var tracer = otel.Tracer("github.com/viant/scriptsearch/search")

// Search methods reported in model.Response.
const (
	MethodSQL      = "sql"
	MethodSemantic = "semantic"
	MethodBible    = "bible"
)

// Config tunes the engine.
type Config struct {
	// Overfetch multiplies offset+limit into the candidate window fetched
	// before filtering and ranking.
	Overfetch     int
	DefaultLimit  int
	BibleLimit    int
	DialogueLimit int
	// Model names the embedding model for stored-vector lookups; it defaults
	// to the semantic adapter's model.
	Model string
}

// DefaultConfig returns the configuration used by New.
func DefaultConfig() Config {
	return Config{
		Overfetch:     3,
		DefaultLimit:  model.DefaultLimit,
		BibleLimit:    semantic.DefaultBibleLimit,
		DialogueLimit: 50,
	}
}

// SimilarFinder finds entities near an already stored one.
// vector.SQLiteStore implements it.
type SimilarFinder interface {
	SimilarTo(ctx context.Context, entityType vector.EntityType, entityID int64, model string, limit int, minSimilarity float64) ([]vector.Hit, error)
}

// Engine orchestrates a search.
type Engine struct {
	repo     *Repository
	semantic *semantic.Adapter
	similar  SimilarFinder
	chain    *filter.Chain
	ranker   rank.Ranker
	config   Config
}

// Option configures an Engine.
type Option func(*Engine)

// WithSemantic enables semantic fusion.
func WithSemantic(adapter *semantic.Adapter) Option {
	return func(e *Engine) { e.semantic = adapter }
}

// WithSimilarFinder enables SearchSimilarScenes.
func WithSimilarFinder(finder SimilarFinder) Option {
	return func(e *Engine) { e.similar = finder }
}

// WithFilters replaces the default filter chain.
func WithFilters(chain *filter.Chain) Option {
	return func(e *Engine) { e.chain = chain }
}

// WithRanker replaces the default hybrid ranker.
func WithRanker(ranker rank.Ranker) Option {
	return func(e *Engine) { e.ranker = ranker }
}

// WithConfig replaces the default configuration. Non-positive values keep
// their defaults.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		def := DefaultConfig()
		e.config = cfg
		if e.config.Overfetch <= 0 {
			e.config.Overfetch = def.Overfetch
		}
		if e.config.DefaultLimit <= 0 {
			e.config.DefaultLimit = def.DefaultLimit
		}
		if e.config.BibleLimit <= 0 {
			e.config.BibleLimit = def.BibleLimit
		}
		if e.config.DialogueLimit <= 0 {
			e.config.DialogueLimit = def.DialogueLimit
		}
	}
}

// New creates an Engine reading through repo.
func New(repo *Repository, opts ...Option) *Engine {
	e := &Engine{
		repo:   repo,
		chain:  filter.DefaultChain(),
		ranker: rank.HybridRanker{Weights: rank.DefaultWeights().Hybrid},
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.config.Model == "" && e.semantic != nil {
		e.config.Model = e.semantic.Config().Model
	}
	return e
}

func (e *Engine) stage(ctx context.Context, name string) (context.Context, func()) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "search."+name)
	return ctx, func() {
		span.End()
		metrics.SearchStageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}

// Execute runs q through the search pipeline. A query with a non-positive
// limit yields an empty response. Only a primary relational failure, an
// invalid query or cancellation is returned as an error.
func (e *Engine) Execute(ctx context.Context, q model.Query) (resp *model.Response, err error) {
	started := time.Now()
	ctx, searchID := logging.WithSearchID(ctx)
	ctx, span := tracer.Start(ctx, "search.Execute", trace.WithAttributes(
		attribute.String("search_id", searchID),
		attribute.Int("limit", q.Limit),
		attribute.Int("offset", q.Offset),
	))
	defer func() {
		status := metrics.StatusOK
		if err != nil {
			status = metrics.StatusError
			span.RecordError(err)
		}
		metrics.SearchRequestsTotal.WithLabelValues(status).Inc()
		span.End()
	}()

	resp = &model.Response{Query: q, Results: []model.Result{}, BranchErrors: map[string]error{}}
	if q.Limit <= 0 {
		resp.ExecutionTime = time.Since(started)
		return resp, nil
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	logger := logging.FromContext(ctx)
	window := (q.Offset + q.Limit) * e.config.Overfetch
	textSignal := q.HasTextSignal()

	// BuildAndExecute, with the bible text branch and semantic retrieval
	// alongside.
	var (
		primary   []model.Result
		total     int
		textBible []model.BibleResult
		bibleErr  error
		hits      semantic.Hits
		semErr    error
	)
	buildCtx, done := e.stage(ctx, "build_execute")
	g, gctx := errgroup.WithContext(buildCtx)
	if !q.OnlyBible {
		resp.SearchMethods = append(resp.SearchMethods, MethodSQL)
		g.Go(func() error {
			var err error
			primary, total, err = e.primary(gctx, q, window)
			return err
		})
	}
	if q.WantsBible() && textSignal {
		resp.SearchMethods = append(resp.SearchMethods, MethodBible)
		g.Go(func() error {
			textBible, bibleErr = e.repo.SearchBible(logging.WithBranch(gctx, MethodBible), bibleText(q), e.config.BibleLimit)
			return nil
		})
	}
	if e.semantic != nil && textSignal {
		g.Go(func() error {
			hits, semErr = e.semantic.Retrieve(logging.WithBranch(gctx, MethodSemantic), q, window)
			return nil
		})
	}
	err = g.Wait()
	done()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Error("primary search failed", "error", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if bibleErr != nil {
		e.branchFailed(ctx, resp, MethodBible, bibleErr)
		textBible = nil
	}

	_, done = e.stage(ctx, "filter")
	results := e.chain.Apply(primary, q)
	done()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, done = e.stage(ctx, "rank")
	results = e.ranker.Rank(results, q)
	done()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var semBible []model.BibleResult
	if e.semantic != nil && textSignal {
		fuseCtx, done := e.stage(ctx, "fuse")
		fused, fusedBible, outcome := e.semantic.Fuse(fuseCtx, results, hits, semErr, window)
		done()
		if !q.OnlyBible {
			results = fused
		}
		semBible = fusedBible
		if outcome.Applied {
			resp.SearchMethods = append(resp.SearchMethods, MethodSemantic)
		}
		if outcome.Degraded {
			resp.Degraded = true
			resp.DegradedReason = outcome.Reason
			resp.BranchErrors[MethodSemantic] = outcome.Err
		}
	}

	bible := filter.DedupeBible(append(textBible, semBible...))
	sort.SliceStable(bible, func(i, j int) bool { return bible[i].RelevanceScore > bible[j].RelevanceScore })

	results = threshold(results, q.MinScore)
	bible = thresholdBible(bible, q.MinScore)

	resp.Results = paginate(results, q.Offset, q.Limit)
	if len(bible) > q.Limit {
		bible = bible[:q.Limit]
	}
	resp.BibleResults = bible
	highlight(resp.Results, q)
	resp.TotalCount = total
	resp.ExecutionTime = time.Since(started)
	logger.Debug("search executed",
		"results", len(resp.Results),
		"bible_results", len(resp.BibleResults),
		"total", total,
		"degraded", resp.Degraded,
		"elapsed", resp.ExecutionTime,
	)
	return resp, nil
}

// primary fetches up to window candidates and the total match count.
func (e *Engine) primary(ctx context.Context, q model.Query, window int) ([]model.Result, int, error) {
	st, err := builder.BuildSearchQuery(q, builder.WithPage(window, 0))
	if err != nil {
		return nil, 0, err
	}
	countSt, err := builder.BuildCountQuery(q)
	if err != nil {
		return nil, 0, err
	}
	results, err := e.repo.Scenes(ctx, st)
	if err != nil {
		return nil, 0, err
	}
	total, err := e.repo.Count(ctx, countSt)
	if err != nil {
		return nil, 0, err
	}
	matchType := initialMatchType(q)
	for i := range results {
		results[i].MatchType = matchType
		if matchType != model.MatchDialogue {
			results[i].MatchedText = ""
		}
		results[i] = results[i].WithScore(1, model.ScoreRelevance, 1)
	}
	return results, total, nil
}

func (e *Engine) branchFailed(ctx context.Context, resp *model.Response, branch string, err error) {
	metrics.SearchBranchFailures.WithLabelValues(branch).Inc()
	logging.FromContext(logging.WithBranch(ctx, branch)).Warn("search branch failed", "error", err)
	if resp != nil {
		resp.BranchErrors[branch] = err
	}
}

// initialMatchType tags SQL hits by the most specific predicate in q.
func initialMatchType(q model.Query) model.MatchType {
	switch {
	case q.Dialogue != "" || q.Parenthetical != "":
		return model.MatchDialogue
	case q.Action != "":
		return model.MatchAction
	case len(q.Characters) > 0:
		return model.MatchCharacter
	case len(q.Locations) > 0:
		return model.MatchLocation
	case q.TextQuery != "":
		return model.MatchFullText
	}
	return model.MatchScene
}

// bibleText is the first of text query, dialogue and action that is set.
func bibleText(q model.Query) string {
	return firstNonEmpty(q.TextQuery, q.Dialogue, q.Action)
}

func threshold(results []model.Result, minScore *float64) []model.Result {
	if minScore == nil {
		return results
	}
	out := results[:0:0]
	for _, r := range results {
		if r.RelevanceScore >= *minScore {
			out = append(out, r)
		}
	}
	return out
}

func thresholdBible(results []model.BibleResult, minScore *float64) []model.BibleResult {
	if minScore == nil {
		return results
	}
	out := results[:0:0]
	for _, r := range results {
		if r.RelevanceScore >= *minScore {
			out = append(out, r)
		}
	}
	return out
}

// paginate returns results[offset:offset+limit], clamped. A non-positive
// limit yields an empty slice.
func paginate[T any](results []T, offset, limit int) []T {
	if limit <= 0 || offset >= len(results) {
		return []T{}
	}
	offset = max(offset, 0)
	end := min(offset+limit, len(results))
	return append([]T(nil), results[offset:end]...)
}
