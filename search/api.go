package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/viant/scriptsearch/errs"
	"github.com/viant/scriptsearch/filter"
	"github.com/viant/scriptsearch/logging"
	"github.com/viant/scriptsearch/model"
	"github.com/viant/scriptsearch/vector"
)

// Entity types accepted by Search.
const (
	TypeScene     = "scene"
	TypeCharacter = "character"
	TypeLocation  = "location"
	TypeBible     = "bible"
)

// SearchOptions configures Search. A zero Limit means the engine's default
// limit; a negative one yields no results.
type SearchOptions struct {
	Types        []string
	EntityFilter map[string]string
	Limit        int
	Offset       int
	MinScore     *float64
}

// BranchResult is what one entity-type branch of Search produced.
type BranchResult struct {
	Name string
	Maps []map[string]any
	Err  error
}

// Search runs the scene pipeline and the requested character, location and
// bible branches, then filters, orders, thresholds and paginates the merged
// maps. Types defaults to scenes only, or to the bible when the query asks
// for bible chunks only. A scene pipeline failure is returned;
// other branch failures are logged and contribute nothing.
func (e *Engine) Search(ctx context.Context, q model.Query, opts SearchOptions) ([]map[string]any, error) {
	ctx, _ = logging.WithSearchID(ctx)
	limit := opts.Limit
	if limit == 0 {
		limit = e.config.DefaultLimit
	}
	if limit < 0 {
		return []map[string]any{}, nil
	}
	types, err := searchTypes(opts.Types, q.OnlyBible)
	if err != nil {
		return nil, err
	}
	minScore := opts.MinScore
	if minScore == nil {
		minScore = q.MinScore
	}
	window := opts.Offset + limit

	branches := make([]BranchResult, len(types))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range types {
		branches[i].Name = name
		g.Go(func() error {
			bctx := logging.WithBranch(gctx, name)
			var err error
			switch name {
			case TypeScene:
				branches[i].Maps, err = e.sceneBranch(bctx, q, window)
				return err
			case TypeCharacter:
				branches[i].Maps, err = e.characterBranch(bctx, q, window)
			case TypeLocation:
				branches[i].Maps, err = e.locationBranch(bctx, q, window)
			case TypeBible:
				branches[i].Maps, err = e.bibleBranch(bctx, q, window)
			}
			branches[i].Err = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var merged []map[string]any
	for _, b := range branches {
		if b.Err != nil {
			e.branchFailed(ctx, nil, b.Name, b.Err)
			continue
		}
		merged = append(merged, b.Maps...)
	}
	merged = matchEntityFilter(merged, opts.EntityFilter)
	sort.SliceStable(merged, func(i, j int) bool { return score(merged[i]) > score(merged[j]) })
	if minScore != nil {
		kept := merged[:0:0]
		for _, m := range merged {
			if score(m) >= *minScore {
				kept = append(kept, m)
			}
		}
		merged = kept
	}
	return paginate(merged, opts.Offset, limit), nil
}

func searchTypes(types []string, onlyBible bool) ([]string, error) {
	if len(types) == 0 {
		if onlyBible {
			return []string{TypeBible}, nil
		}
		return []string{TypeScene}, nil
	}
	seen := map[string]bool{}
	var out []string
	for _, t := range types {
		t = strings.ToLower(strings.TrimSpace(t))
		switch t {
		case TypeScene, TypeCharacter, TypeLocation, TypeBible:
		case "bible_chunk":
			t = TypeBible
		default:
			return nil, errs.Configuration("search.Search", "unsupported search type %q", t)
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out, nil
}

func (e *Engine) sceneBranch(ctx context.Context, q model.Query, window int) ([]map[string]any, error) {
	sq := q.WithPage(window, 0)
	sq.IncludeBible, sq.OnlyBible = false, false
	sq.MinScore = nil
	resp, err := e.Execute(ctx, sq)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(resp.Results))
	for i, r := range resp.Results {
		out[i] = r.AsMap()
	}
	return out, nil
}

func (e *Engine) bibleBranch(ctx context.Context, q model.Query, window int) ([]map[string]any, error) {
	chunks, err := e.repo.SearchBible(ctx, bibleText(q), window)
	if err != nil {
		return nil, err
	}
	if e.semantic != nil && q.HasTextSignal() {
		vec, err := e.semantic.Embed(ctx, q.EmbeddingText())
		var semChunks []model.BibleResult
		if err == nil {
			semChunks, err = e.semantic.Bible(ctx, vec, window)
		}
		if err != nil {
			logging.FromContext(ctx).Warn("semantic bible lookup skipped", "error", err)
		}
		chunks = filter.DedupeBible(append(chunks, semChunks...))
	}
	out := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		out[i] = c.AsMap()
	}
	return out, nil
}

// branchTerms returns the explicit values when set, else the free text.
func branchTerms(values []string, q model.Query) []string {
	if len(values) > 0 {
		return values
	}
	if text := firstNonEmpty(q.TextQuery, q.RawText); text != "" {
		return []string{text}
	}
	return nil
}

func (e *Engine) characterBranch(ctx context.Context, q model.Query, window int) ([]map[string]any, error) {
	best := map[int64]map[string]any{}
	var order []int64
	for _, term := range branchTerms(q.Characters, q) {
		matches, err := e.repo.Characters(ctx, term, window)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			s := coverage(term, m.Name)
			if prev, ok := best[m.ID]; ok {
				if s > score(prev) {
					prev["relevance_score"] = s
				}
				continue
			}
			order = append(order, m.ID)
			best[m.ID] = map[string]any{
				"type":            TypeCharacter,
				"character_id":    m.ID,
				"script_id":       m.ScriptID,
				"script_title":    m.ScriptTitle,
				"name":            m.Name,
				"dialogue_count":  m.DialogueCount,
				"match_type":      string(model.MatchCharacter),
				"relevance_score": s,
			}
		}
	}
	out := make([]map[string]any, len(order))
	for i, id := range order {
		out[i] = best[id]
	}
	return out, nil
}

func (e *Engine) locationBranch(ctx context.Context, q model.Query, window int) ([]map[string]any, error) {
	best := map[string]map[string]any{}
	var order []string
	for _, term := range branchTerms(q.Locations, q) {
		matches, err := e.repo.Locations(ctx, term, window)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			key := fmt.Sprintf("%d/%s", m.ScriptID, m.Location)
			s := coverage(term, m.Location)
			if prev, ok := best[key]; ok {
				if s > score(prev) {
					prev["relevance_score"] = s
				}
				continue
			}
			order = append(order, key)
			best[key] = map[string]any{
				"type":            TypeLocation,
				"script_id":       m.ScriptID,
				"script_title":    m.ScriptTitle,
				"location":        m.Location,
				"scene_count":     m.SceneCount,
				"match_type":      string(model.MatchLocation),
				"relevance_score": s,
			}
		}
	}
	out := make([]map[string]any, len(order))
	for i, key := range order {
		out[i] = best[key]
	}
	return out, nil
}

// coverage scores how much of name the matched term covers, in (0, 1].
func coverage(term, name string) float64 {
	if name == "" {
		return 0
	}
	return min(1, float64(len(strings.TrimSpace(term)))/float64(len(name)))
}

func score(m map[string]any) float64 {
	s, _ := m["relevance_score"].(float64)
	return s
}

func matchEntityFilter(maps []map[string]any, filters map[string]string) []map[string]any {
	if len(filters) == 0 {
		return maps
	}
	out := maps[:0:0]
	for _, m := range maps {
		ok := true
		for k, want := range filters {
			v, present := m[k]
			if !present || fmt.Sprint(v) != want {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, m)
		}
	}
	return out
}

// SearchDialogue returns dialogue lines containing text. character and
// sceneID narrow the lines when set.
func (e *Engine) SearchDialogue(ctx context.Context, text, character string, sceneID int64) ([]model.Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errs.Configuration("search.SearchDialogue", "dialogue text is required")
	}
	ctx, span := tracer.Start(ctx, "search.SearchDialogue")
	defer span.End()
	results, err := e.repo.DialogueLines(ctx, text, character, sceneID, e.config.DialogueLimit)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	highlight(results, model.Query{Dialogue: text})
	return results, nil
}

// SearchSimilarScenes returns up to limit scenes whose stored vectors have a
// cosine similarity of at least minSimilarity to the scene's own vector. A
// scene without a stored vector has no similar scenes.
func (e *Engine) SearchSimilarScenes(ctx context.Context, sceneID int64, limit int, minSimilarity float64) ([]model.Result, error) {
	if e.similar == nil {
		return nil, errs.Configuration("search.SearchSimilarScenes", "vector store is not configured")
	}
	ctx, span := tracer.Start(ctx, "search.SearchSimilarScenes")
	defer span.End()
	hits, err := e.similar.SimilarTo(ctx, vector.EntityScene, sceneID, e.config.Model, limit, minSimilarity)
	if errors.Is(err, vector.ErrNotFound) {
		return []model.Result{}, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.EntityID
	}
	rows, err := e.repo.ScenesByID(ctx, ids)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	out := make([]model.Result, 0, len(hits))
	for _, h := range hits {
		row, ok := rows[h.EntityID]
		if !ok {
			continue
		}
		row.MatchType = model.MatchSemantic
		out = append(out, row.WithScore(h.Similarity, model.ScoreSemantic, h.Similarity))
	}
	return out, nil
}

// SearchByTheme embeds text and returns the nearest scenes and bible chunks.
// entityType "scene" or "bible" restricts the lookup; "" searches both. An
// embedding failure is returned because there is no text fallback.
func (e *Engine) SearchByTheme(ctx context.Context, text, entityType string, limit int) ([]model.Result, []model.BibleResult, error) {
	const op = "search.SearchByTheme"
	if e.semantic == nil {
		return nil, nil, errs.Configuration(op, "semantic search is not configured")
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil, errs.Configuration(op, "theme text is required")
	}
	var only vector.EntityType
	if entityType != "" {
		et, err := vector.ParseEntityType(entityType)
		if err != nil {
			return nil, nil, err
		}
		only = et
	}
	if limit <= 0 {
		limit = e.config.DefaultLimit
	}
	ctx, span := tracer.Start(ctx, "search.SearchByTheme")
	defer span.End()

	vec, err := e.semantic.Embed(ctx, text)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	var (
		scenes []model.Result
		bible  []model.BibleResult
	)
	g, gctx := errgroup.WithContext(ctx)
	if only == "" || only == vector.EntityScene {
		g.Go(func() error {
			var err error
			scenes, err = e.semantic.Scenes(gctx, vec, limit)
			return err
		})
	}
	if only == "" || only == vector.EntityBibleChunk {
		g.Go(func() error {
			var err error
			bible, err = e.semantic.Bible(gctx, vec, limit)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	return scenes, bible, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
