package model

import (
	"strings"

	"github.com/viant/scriptsearch/errs"
)

// Mode selects predicate semantics for names and places.
type Mode int

const (
	// Fuzzy matches by substring pattern.
	Fuzzy Mode = iota
	// Strict matches by case-normalized equality.
	Strict
)

func (m Mode) String() string {
	if m == Strict {
		return "strict"
	}
	return "fuzzy"
}

// ParseMode converts "strict" or "fuzzy" (case-insensitive) into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fuzzy":
		return Fuzzy, nil
	case "strict":
		return Strict, nil
	}
	return Fuzzy, errs.Configuration("model.ParseMode", "unsupported mode %q", s)
}

// DefaultLimit is used when a query does not set one.
const DefaultLimit = 10

// Query is a structured search request. Build it with NewQuery; downstream
// packages read it and never modify it.
type Query struct {
	RawText       string
	TextQuery     string
	Dialogue      string
	Action        string
	Parenthetical string
	Characters    []string
	Locations     []string
	TimesOfDay    []string
	SeasonStart   *int
	SeasonEnd     *int
	EpisodeStart  *int
	EpisodeEnd    *int
	Mode          Mode
	IncludeBible  bool
	OnlyBible     bool
	Limit         int
	Offset        int
	MinScore      *float64
}

// QueryOption configures a Query under construction.
type QueryOption func(*Query)

func WithText(text string) QueryOption { return func(q *Query) { q.TextQuery = text } }

func WithDialogue(text string) QueryOption { return func(q *Query) { q.Dialogue = text } }

func WithAction(text string) QueryOption { return func(q *Query) { q.Action = text } }

func WithParenthetical(text string) QueryOption { return func(q *Query) { q.Parenthetical = text } }

func WithCharacters(names ...string) QueryOption {
	return func(q *Query) { q.Characters = append(q.Characters, names...) }
}

func WithLocations(locations ...string) QueryOption {
	return func(q *Query) { q.Locations = append(q.Locations, locations...) }
}

func WithTimesOfDay(times ...string) QueryOption {
	return func(q *Query) { q.TimesOfDay = append(q.TimesOfDay, times...) }
}

// WithSeason constrains the season axis; end < 0 means "same as start".
func WithSeason(start, end int) QueryOption {
	return func(q *Query) {
		q.SeasonStart = intPtr(start)
		if end >= 0 {
			q.SeasonEnd = intPtr(end)
		}
	}
}

// WithEpisode constrains the episode axis; end < 0 means "same as start".
func WithEpisode(start, end int) QueryOption {
	return func(q *Query) {
		q.EpisodeStart = intPtr(start)
		if end >= 0 {
			q.EpisodeEnd = intPtr(end)
		}
	}
}

func WithMode(mode Mode) QueryOption { return func(q *Query) { q.Mode = mode } }

func WithBible(include, only bool) QueryOption {
	return func(q *Query) {
		q.IncludeBible = include
		q.OnlyBible = only
	}
}

func WithLimit(limit int) QueryOption { return func(q *Query) { q.Limit = limit } }

func WithOffset(offset int) QueryOption { return func(q *Query) { q.Offset = offset } }

func WithMinScore(score float64) QueryOption {
	return func(q *Query) { q.MinScore = &score }
}

// NewQuery builds a validated Query. Absent season/episode end bounds default
// to their start value.
func NewQuery(raw string, opts ...QueryOption) (Query, error) {
	q := Query{RawText: raw, Limit: DefaultLimit}
	for _, opt := range opts {
		opt(&q)
	}
	q.Characters = compact(q.Characters)
	q.Locations = compact(q.Locations)
	q.TimesOfDay = compact(q.TimesOfDay)
	if q.SeasonStart != nil && q.SeasonEnd == nil {
		q.SeasonEnd = intPtr(*q.SeasonStart)
	}
	if q.EpisodeStart != nil && q.EpisodeEnd == nil {
		q.EpisodeEnd = intPtr(*q.EpisodeStart)
	}
	if err := q.Validate(); err != nil {
		return Query{}, err
	}
	return q, nil
}

// Validate checks pagination and range invariants.
func (q Query) Validate() error {
	const op = "model.Query"
	if q.Limit <= 0 {
		return errs.Configuration(op, "limit must be positive, got %d", q.Limit)
	}
	if q.Offset < 0 {
		return errs.Configuration(op, "offset must not be negative, got %d", q.Offset)
	}
	if q.SeasonStart != nil && q.SeasonEnd != nil && *q.SeasonEnd < *q.SeasonStart {
		return errs.Configuration(op, "season range %d-%d is inverted", *q.SeasonStart, *q.SeasonEnd)
	}
	if q.EpisodeStart != nil && q.EpisodeEnd != nil && *q.EpisodeEnd < *q.EpisodeStart {
		return errs.Configuration(op, "episode range %d-%d is inverted", *q.EpisodeStart, *q.EpisodeEnd)
	}
	if (q.SeasonEnd != nil && q.SeasonStart == nil) || (q.EpisodeEnd != nil && q.EpisodeStart == nil) {
		return errs.Configuration(op, "range end given without start")
	}
	return nil
}

// WithPage returns a copy of q with different pagination. The copy shares no
// slices with q.
func (q Query) WithPage(limit, offset int) Query {
	c := q.Clone()
	c.Limit = limit
	c.Offset = offset
	return c
}

// Clone returns a deep copy.
func (q Query) Clone() Query {
	c := q
	c.Characters = append([]string(nil), q.Characters...)
	c.Locations = append([]string(nil), q.Locations...)
	c.TimesOfDay = append([]string(nil), q.TimesOfDay...)
	c.SeasonStart = copyInt(q.SeasonStart)
	c.SeasonEnd = copyInt(q.SeasonEnd)
	c.EpisodeStart = copyInt(q.EpisodeStart)
	c.EpisodeEnd = copyInt(q.EpisodeEnd)
	if q.MinScore != nil {
		v := *q.MinScore
		c.MinScore = &v
	}
	return c
}

// HasTextSignal reports whether q carries free text that can be embedded.
func (q Query) HasTextSignal() bool {
	return q.TextQuery != "" || q.Dialogue != "" || q.Action != ""
}

// EmbeddingText is the text embedded for semantic search.
func (q Query) EmbeddingText() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{q.TextQuery, q.Dialogue, q.Action} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// WantsBible reports whether reference-document chunks are searched.
func (q Query) WantsBible() bool { return q.IncludeBible || q.OnlyBible }

func compact(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := values[:0:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func intPtr(v int) *int { return &v }

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	return intPtr(*v)
}
