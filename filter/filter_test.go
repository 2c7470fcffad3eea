package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/scriptsearch/model"
)

func intp(v int) *int { return &v }

func query(t *testing.T, opts ...model.QueryOption) model.Query {
	t.Helper()
	q, err := model.NewQuery("", opts...)
	require.NoError(t, err)
	return q
}

func sceneIDs(results []model.Result) []int64 {
	ids := make([]int64, len(results))
	for i, r := range results {
		ids[i] = r.SceneID
	}
	return ids
}

func TestCharacterFilter(t *testing.T) {
	results := []model.Result{
		{SceneID: 1, CharacterName: "WALTER WHITE"},
		{SceneID: 2, CharacterName: "JESSE"},
		{SceneID: 3, SceneContent: "Skyler waits for walter."},
		{SceneID: 4, CharacterName: "HANK"},
	}
	got := CharacterFilter{}.Apply(results, query(t, model.WithCharacters("walter", "jesse")))
	assert.Equal(t, []int64{1, 2, 3}, sceneIDs(got))

	all := CharacterFilter{}.Apply(results, query(t))
	assert.Len(t, all, 4)
}

func TestLocationAndTimeFilters(t *testing.T) {
	results := []model.Result{
		{SceneID: 1, SceneLocation: "COFFEE SHOP", SceneTime: "DAY"},
		{SceneID: 2, SceneLocation: "LAB", SceneTime: "NIGHT"},
		{SceneID: 3, SceneLocation: "Coffee Shop Parking Lot", SceneTime: "DAYBREAK"},
	}

	loc := LocationFilter{}.Apply(results, query(t, model.WithLocations("coffee shop")))
	assert.Equal(t, []int64{1, 3}, sceneIDs(loc))

	// Time of day is equality, not substring.
	tod := TimeOfDayFilter{}.Apply(results, query(t, model.WithTimesOfDay("day", "night")))
	assert.Equal(t, []int64{1, 2}, sceneIDs(tod))
}

func TestSeasonEpisodeFilter(t *testing.T) {
	results := []model.Result{
		{SceneID: 1, Season: intp(1), Episode: intp(1)},
		{SceneID: 2, Season: intp(1), Episode: intp(2)},
		{SceneID: 3, Season: intp(2), Episode: intp(1)},
	}

	t.Run("Single episode", func(t *testing.T) {
		got := SeasonEpisodeFilter{}.Apply(results, query(t, model.WithSeason(1, -1), model.WithEpisode(2, -1)))
		assert.Equal(t, []int64{2}, sceneIDs(got))
	})

	t.Run("Season range only", func(t *testing.T) {
		got := SeasonEpisodeFilter{}.Apply(results, query(t, model.WithSeason(1, 2)))
		assert.Equal(t, []int64{1, 2, 3}, sceneIDs(got))
	})

	t.Run("Missing value fails constrained axis", func(t *testing.T) {
		got := SeasonEpisodeFilter{}.Apply([]model.Result{{SceneID: 9}}, query(t, model.WithSeason(1, -1)))
		assert.Empty(t, got)
	})
}

func TestDuplicateFilter(t *testing.T) {
	results := []model.Result{
		{SceneID: 3, MatchedText: "first"},
		{SceneID: 1},
		{SceneID: 3, MatchedText: "second"},
		{SceneID: 2},
		{SceneID: 1},
	}
	once := DuplicateFilter{}.Apply(results, model.Query{})
	assert.Equal(t, []int64{3, 1, 2}, sceneIDs(once))
	assert.Equal(t, "first", once[0].MatchedText)

	twice := DuplicateFilter{}.Apply(once, model.Query{})
	assert.Equal(t, once, twice)
	assert.LessOrEqual(t, len(once), len(results))
}

func TestDedupeBible(t *testing.T) {
	got := DedupeBible([]model.BibleResult{{ChunkID: 1}, {ChunkID: 2}, {ChunkID: 1}})
	assert.Len(t, got, 2)
}

func TestChain(t *testing.T) {
	t.Run("Moves duplicate filter last", func(t *testing.T) {
		c := NewChain(DuplicateFilter{}, LocationFilter{}, CharacterFilter{})
		assert.Equal(t, []string{"location", "character", "duplicate"}, c.Names())
	})

	t.Run("Applies filters in sequence", func(t *testing.T) {
		results := []model.Result{
			{SceneID: 1, CharacterName: "WALTER", SceneLocation: "LAB", Season: intp(1), Episode: intp(2)},
			{SceneID: 1, CharacterName: "WALTER", SceneLocation: "LAB", Season: intp(1), Episode: intp(2)},
			{SceneID: 2, CharacterName: "WALTER", SceneLocation: "DESERT", Season: intp(1), Episode: intp(2)},
		}
		q := query(t, model.WithCharacters("walter"), model.WithLocations("lab"), model.WithSeason(1, -1))
		got := DefaultChain().Apply(results, q)
		assert.Equal(t, []int64{1}, sceneIDs(got))
	})

	t.Run("Short-circuits on empty set", func(t *testing.T) {
		called := false
		probe := probeFilter{fn: func() { called = true }}
		c := NewChain(LocationFilter{}, probe)
		got := c.Apply([]model.Result{{SceneID: 1, SceneLocation: "LAB"}}, query(t, model.WithLocations("desert")))
		assert.Empty(t, got)
		assert.False(t, called)
	})
}

type probeFilter struct{ fn func() }

func (probeFilter) Name() string { return "probe" }

func (p probeFilter) Apply(results []model.Result, _ model.Query) []model.Result {
	p.fn()
	return results
}
