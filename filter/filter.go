package filter

import (
	"strings"

	"github.com/viant/scriptsearch/model"
)

// Filter keeps the results that satisfy a predicate derived from the query.
// Apply returns a new slice and never modifies its input.
type Filter interface {
	Name() string
	Apply(results []model.Result, q model.Query) []model.Result
}

func keep(results []model.Result, pred func(model.Result) bool) []model.Result {
	out := make([]model.Result, 0, len(results))
	for _, r := range results {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}

func containsAny(text string, values []string) bool {
	text = strings.ToLower(text)
	for _, v := range values {
		if strings.Contains(text, strings.ToLower(v)) {
			return true
		}
	}
	return false
}

// CharacterFilter keeps results whose speaker or scene text mentions any of
// the query's characters, case-insensitively.
type CharacterFilter struct{}

func (CharacterFilter) Name() string { return "character" }

func (CharacterFilter) Apply(results []model.Result, q model.Query) []model.Result {
	if len(q.Characters) == 0 {
		return results
	}
	return keep(results, func(r model.Result) bool {
		return containsAny(r.CharacterName, q.Characters) || containsAny(r.SceneContent, q.Characters)
	})
}

// LocationFilter keeps results whose scene location contains any of the
// query's locations, case-insensitively.
type LocationFilter struct{}

func (LocationFilter) Name() string { return "location" }

func (LocationFilter) Apply(results []model.Result, q model.Query) []model.Result {
	if len(q.Locations) == 0 {
		return results
	}
	return keep(results, func(r model.Result) bool {
		return containsAny(r.SceneLocation, q.Locations)
	})
}

// TimeOfDayFilter keeps results whose scene time equals any of the query's
// times of day, case-insensitively.
type TimeOfDayFilter struct{}

func (TimeOfDayFilter) Name() string { return "time_of_day" }

func (TimeOfDayFilter) Apply(results []model.Result, q model.Query) []model.Result {
	if len(q.TimesOfDay) == 0 {
		return results
	}
	return keep(results, func(r model.Result) bool {
		for _, v := range q.TimesOfDay {
			if strings.EqualFold(strings.TrimSpace(r.SceneTime), v) {
				return true
			}
		}
		return false
	})
}

// SeasonEpisodeFilter keeps results inside the query's season and episode
// bounds. An axis without bounds is unconstrained; a result with no value
// on a constrained axis is dropped.
type SeasonEpisodeFilter struct{}

func (SeasonEpisodeFilter) Name() string { return "season_episode" }

func (SeasonEpisodeFilter) Apply(results []model.Result, q model.Query) []model.Result {
	if q.SeasonStart == nil && q.EpisodeStart == nil {
		return results
	}
	return keep(results, func(r model.Result) bool {
		return within(r.Season, q.SeasonStart, q.SeasonEnd) && within(r.Episode, q.EpisodeStart, q.EpisodeEnd)
	})
}

func within(v, start, end *int) bool {
	if start == nil && end == nil {
		return true
	}
	if v == nil {
		return false
	}
	if start != nil && *v < *start {
		return false
	}
	if end != nil && *v > *end {
		return false
	}
	return true
}

// DuplicateFilter drops every result whose scene id was already seen,
// keeping the first occurrence in place. It must run after the
// content-bearing filters.
type DuplicateFilter struct{}

func (DuplicateFilter) Name() string { return "duplicate" }

func (DuplicateFilter) Apply(results []model.Result, _ model.Query) []model.Result {
	seen := make(map[int64]struct{}, len(results))
	return keep(results, func(r model.Result) bool {
		if _, ok := seen[r.SceneID]; ok {
			return false
		}
		seen[r.SceneID] = struct{}{}
		return true
	})
}

// DedupeBible drops bible results whose chunk id was already seen.
func DedupeBible(results []model.BibleResult) []model.BibleResult {
	seen := make(map[int64]struct{}, len(results))
	out := make([]model.BibleResult, 0, len(results))
	for _, r := range results {
		if _, ok := seen[r.ChunkID]; ok {
			continue
		}
		seen[r.ChunkID] = struct{}{}
		out = append(out, r)
	}
	return out
}
