package rank

import (
	"sort"
	"strings"

	"github.com/viant/scriptsearch/errs"
	"github.com/viant/scriptsearch/model"
)

// Ranker reorders results for a query.
type Ranker interface {
	Name() string
	Rank(results []model.Result, q model.Query) []model.Result
}

// Weights tunes the blending rankers. Proximity is the share of the
// proximity bonus in ProximityRanker and Hybrid weighs the HybridRanker
// components. Every blend is monotonic in each of its inputs.
type Weights struct {
	Proximity float64
	Hybrid    HybridWeights
}

// HybridWeights weighs the normalised relevance and text components and the
// proximity bonus.
type HybridWeights struct {
	Relevance float64
	Text      float64
	Proximity float64
}

// DefaultWeights returns the weights used when none are configured.
func DefaultWeights() Weights {
	return Weights{
		Proximity: 0.3,
		Hybrid:    HybridWeights{Relevance: 0.4, Text: 0.4, Proximity: 0.2},
	}
}

// Validate rejects negative weights, a proximity share above 1 and an
// all-zero hybrid blend.
func (w Weights) Validate() error {
	const op = "rank.Weights"
	if w.Proximity < 0 || w.Proximity > 1 {
		return errs.Configuration(op, "proximity weight %v outside [0,1]", w.Proximity)
	}
	h := w.Hybrid
	if h.Relevance < 0 || h.Text < 0 || h.Proximity < 0 {
		return errs.Configuration(op, "hybrid weights must not be negative")
	}
	if h.Relevance+h.Text+h.Proximity == 0 {
		return errs.Configuration(op, "hybrid weights sum to zero")
	}
	return nil
}

// ByName resolves relevance, text, positional, proximity or hybrid.
func ByName(name string, w Weights) (Ranker, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "relevance":
		return RelevanceRanker{}, nil
	case "text", "text_match":
		return TextMatchRanker{}, nil
	case "positional":
		return PositionalRanker{}, nil
	case "proximity":
		return ProximityRanker{Weight: w.Proximity}, nil
	case "", "hybrid":
		return HybridRanker{Weights: w.Hybrid}, nil
	}
	return nil, errs.Configuration("rank.ByName", "unknown ranker %q", name)
}

func byScore(results []model.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
}

func clone(results []model.Result) []model.Result {
	return append([]model.Result(nil), results...)
}

// RelevanceRanker sorts by descending existing score.
type RelevanceRanker struct{}

func (RelevanceRanker) Name() string { return "relevance" }

func (RelevanceRanker) Rank(results []model.Result, _ model.Query) []model.Result {
	out := clone(results)
	byScore(out)
	return out
}

// TextMatchRanker scores results by the frequency of the text query's terms
// in the scene content. Without a text query it behaves like
// RelevanceRanker.
type TextMatchRanker struct{}

func (TextMatchRanker) Name() string { return "text" }

func (TextMatchRanker) Rank(results []model.Result, q model.Query) []model.Result {
	queryTerms := terms(q.TextQuery)
	if len(queryTerms) == 0 {
		return RelevanceRanker{}.Rank(results, q)
	}
	out := make([]model.Result, len(results))
	for i, r := range results {
		tf := termFrequency(r.SceneContent, queryTerms)
		out[i] = r.WithScore(tf, model.ScoreText, tf)
	}
	byScore(out)
	return out
}

// PositionalRanker orders results by ascending scene number.
type PositionalRanker struct{}

func (PositionalRanker) Name() string { return "positional" }

func (PositionalRanker) Rank(results []model.Result, _ model.Query) []model.Result {
	out := clone(results)
	sort.SliceStable(out, func(i, j int) bool { return out[i].SceneNumber < out[j].SceneNumber })
	return out
}

// ProximityRanker blends a bonus for query terms appearing close together
// into the existing score: (1-Weight)*score + Weight*bonus. It applies to
// text queries of two or more distinct terms; otherwise it behaves like
// RelevanceRanker.
type ProximityRanker struct {
	Weight float64
}

func (ProximityRanker) Name() string { return "proximity" }

func (p ProximityRanker) Rank(results []model.Result, q model.Query) []model.Result {
	queryTerms := terms(q.TextQuery)
	if len(queryTerms) < 2 {
		return RelevanceRanker{}.Rank(results, q)
	}
	out := make([]model.Result, len(results))
	for i, r := range results {
		bonus := proximityBonus(r.SceneContent, queryTerms)
		out[i] = r.WithScore((1-p.Weight)*r.RelevanceScore+p.Weight*bonus, model.ScoreProximity, bonus)
	}
	byScore(out)
	return out
}

// HybridRanker combines the prior score, the text-match score and, for
// multi-term queries, the proximity bonus. Relevance and text components
// are normalised by their maximum over the result set. Ties are broken by
// ascending scene number.
type HybridRanker struct {
	Weights HybridWeights
}

func (HybridRanker) Name() string { return "hybrid" }

func (h HybridRanker) Rank(results []model.Result, q model.Query) []model.Result {
	queryTerms := terms(q.TextQuery)
	n := len(results)
	rel := make([]float64, n)
	text := make([]float64, n)
	prox := make([]float64, n)
	var maxRel, maxText float64
	for i, r := range results {
		rel[i] = r.RelevanceScore
		text[i] = termFrequency(r.SceneContent, queryTerms)
		if len(queryTerms) >= 2 {
			prox[i] = proximityBonus(r.SceneContent, queryTerms)
		}
		maxRel = max(maxRel, rel[i])
		maxText = max(maxText, text[i])
	}

	out := make([]model.Result, n)
	for i, r := range results {
		c := r.WithScore(r.RelevanceScore, model.ScoreRelevance, rel[i])
		c.ScoreBreakdown[model.ScoreText] = text[i]
		c.ScoreBreakdown[model.ScoreProximity] = prox[i]
		score := h.Weights.Relevance*normalise(rel[i], maxRel) +
			h.Weights.Text*normalise(text[i], maxText) +
			h.Weights.Proximity*prox[i]
		c.ScoreBreakdown[model.ScoreHybrid] = score
		c.RelevanceScore = score
		out[i] = c
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RelevanceScore != out[j].RelevanceScore {
			return out[i].RelevanceScore > out[j].RelevanceScore
		}
		return out[i].SceneNumber < out[j].SceneNumber
	})
	return out
}

func normalise(v, maxV float64) float64 {
	if maxV <= 0 {
		return 0
	}
	return v / maxV
}
