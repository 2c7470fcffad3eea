package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/scriptsearch/errs"
)

func TestNewQuery(t *testing.T) {
	t.Run("Defaults range end to start", func(t *testing.T) {
		q, err := NewQuery("s1e2", WithSeason(1, -1), WithEpisode(2, -1))
		require.NoError(t, err)
		require.NotNil(t, q.SeasonEnd)
		require.NotNil(t, q.EpisodeEnd)
		assert.Equal(t, 1, *q.SeasonEnd)
		assert.Equal(t, 2, *q.EpisodeEnd)
		assert.Equal(t, DefaultLimit, q.Limit)
	})

	t.Run("Rejects non-positive limit", func(t *testing.T) {
		_, err := NewQuery("", WithLimit(0))
		assert.ErrorIs(t, err, errs.ErrConfiguration)
	})

	t.Run("Rejects negative offset", func(t *testing.T) {
		_, err := NewQuery("", WithOffset(-1))
		assert.ErrorIs(t, err, errs.ErrConfiguration)
	})

	t.Run("Rejects inverted range", func(t *testing.T) {
		_, err := NewQuery("", WithSeason(3, 1))
		assert.ErrorIs(t, err, errs.ErrConfiguration)
	})

	t.Run("Drops blank filter values", func(t *testing.T) {
		q, err := NewQuery("", WithCharacters("WALTER", " ", ""), WithLocations())
		require.NoError(t, err)
		assert.Equal(t, []string{"WALTER"}, q.Characters)
		assert.Nil(t, q.Locations)
	})
}

func TestQuery_WithPage(t *testing.T) {
	q, err := NewQuery("coffee", WithText("coffee"), WithCharacters("WALTER"), WithLimit(5))
	require.NoError(t, err)

	page := q.WithPage(50, 0)
	page.Characters[0] = "JESSE"

	assert.Equal(t, 5, q.Limit)
	assert.Equal(t, 50, page.Limit)
	assert.Equal(t, "WALTER", q.Characters[0])
}

func TestQuery_EmbeddingText(t *testing.T) {
	q, err := NewQuery("", WithText("coffee"), WithAction(" pours "))
	require.NoError(t, err)
	assert.True(t, q.HasTextSignal())
	assert.Equal(t, "coffee pours", q.EmbeddingText())

	empty, err := NewQuery("", WithCharacters("WALTER"))
	require.NoError(t, err)
	assert.False(t, empty.HasTextSignal())
	assert.Equal(t, "", empty.EmbeddingText())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("STRICT")
	require.NoError(t, err)
	assert.Equal(t, Strict, m)

	_, err = ParseMode("exact")
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestNewBibleResult(t *testing.T) {
	b := NewBibleResult(1, 2, 3, nil, nil, nil, "backstory")
	assert.Equal(t, UnknownBibleTitle, b.BibleTitle)
	assert.Equal(t, 0, b.ChunkLevel)

	title, level := "Series Bible", 2
	b = NewBibleResult(1, 2, 3, &title, nil, &level, "backstory")
	assert.Equal(t, "Series Bible", b.BibleTitle)
	assert.Equal(t, 2, b.ChunkLevel)
}

func TestResult_WithScore(t *testing.T) {
	r := Result{SceneID: 1, RelevanceScore: 1, ScoreBreakdown: map[string]float64{ScoreRelevance: 1}}
	next := r.WithScore(0.5, ScoreText, 2)

	assert.Equal(t, 0.5, next.RelevanceScore)
	assert.Equal(t, 1.0, r.RelevanceScore)
	assert.NotContains(t, r.ScoreBreakdown, ScoreText)
	assert.Equal(t, map[string]float64{ScoreRelevance: 1, ScoreText: 2}, next.ScoreBreakdown)
}
