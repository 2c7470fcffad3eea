package model

import "time"

// MatchType tags how a Result was found.
type MatchType string

const (
	MatchDialogue  MatchType = "dialogue"
	MatchAction    MatchType = "action"
	MatchCharacter MatchType = "character"
	MatchLocation  MatchType = "location"
	MatchScene     MatchType = "scene"
	MatchSemantic  MatchType = "semantic"
	MatchFullText  MatchType = "full_text"
)

// Score component keys recorded in Result.ScoreBreakdown.
const (
	ScoreRelevance = "relevance"
	ScoreText      = "text"
	ScoreProximity = "proximity"
	ScoreHybrid    = "hybrid"
	ScoreSemantic  = "semantic"
)

// Result describes one matching scene.
type Result struct {
	ScriptID       int64
	ScriptTitle    string
	ScriptAuthor   string
	SceneID        int64
	SceneNumber    int
	SceneHeading   string
	SceneLocation  string
	SceneTime      string
	SceneContent   string
	Season         *int
	Episode        *int
	MatchType      MatchType
	RelevanceScore float64
	MatchedText    string
	CharacterName  string
	Highlights     []string
	ScoreBreakdown map[string]float64
}

// WithScore returns a copy of r scored score, recording component under key
// in the copy's breakdown. r itself is not changed.
func (r Result) WithScore(score float64, key string, component float64) Result {
	c := r
	c.ScoreBreakdown = make(map[string]float64, len(r.ScoreBreakdown)+1)
	for k, v := range r.ScoreBreakdown {
		c.ScoreBreakdown[k] = v
	}
	c.ScoreBreakdown[key] = component
	c.RelevanceScore = score
	return c
}

// AsMap renders r in the map form returned by the multi-type search call.
func (r Result) AsMap() map[string]any {
	m := map[string]any{
		"type":            "scene",
		"script_id":       r.ScriptID,
		"script_title":    r.ScriptTitle,
		"script_author":   r.ScriptAuthor,
		"scene_id":        r.SceneID,
		"scene_number":    r.SceneNumber,
		"scene_heading":   r.SceneHeading,
		"scene_location":  r.SceneLocation,
		"scene_time":      r.SceneTime,
		"scene_content":   r.SceneContent,
		"match_type":      string(r.MatchType),
		"relevance_score": r.RelevanceScore,
		"highlights":      append([]string(nil), r.Highlights...),
	}
	if r.Season != nil {
		m["season"] = *r.Season
	}
	if r.Episode != nil {
		m["episode"] = *r.Episode
	}
	if r.MatchedText != "" {
		m["matched_text"] = r.MatchedText
	}
	if r.CharacterName != "" {
		m["character_name"] = r.CharacterName
	}
	return m
}

// UnknownBibleTitle is displayed for bible chunks whose document has no title.
const UnknownBibleTitle = "Unknown"

// BibleResult describes one matching reference-document chunk.
type BibleResult struct {
	ScriptID       int64
	BibleID        int64
	BibleTitle     string
	ChunkID        int64
	ChunkHeading   string
	ChunkLevel     int
	ChunkContent   string
	MatchType      MatchType
	RelevanceScore float64
}

// NewBibleResult applies display defaults to an optional title and level.
func NewBibleResult(scriptID, bibleID, chunkID int64, title, heading *string, level *int, content string) BibleResult {
	out := BibleResult{
		ScriptID:     scriptID,
		BibleID:      bibleID,
		BibleTitle:   UnknownBibleTitle,
		ChunkID:      chunkID,
		ChunkContent: content,
	}
	if title != nil && *title != "" {
		out.BibleTitle = *title
	}
	if heading != nil {
		out.ChunkHeading = *heading
	}
	if level != nil {
		out.ChunkLevel = *level
	}
	return out
}

// AsMap renders b in the map form returned by the multi-type search call.
func (b BibleResult) AsMap() map[string]any {
	return map[string]any{
		"type":            "bible",
		"script_id":       b.ScriptID,
		"bible_id":        b.BibleID,
		"bible_title":     b.BibleTitle,
		"chunk_id":        b.ChunkID,
		"chunk_heading":   b.ChunkHeading,
		"chunk_level":     b.ChunkLevel,
		"chunk_content":   b.ChunkContent,
		"match_type":      string(b.MatchType),
		"relevance_score": b.RelevanceScore,
	}
}

// Response is the outcome of one orchestrated search.
type Response struct {
	Query          Query
	Results        []Result
	BibleResults   []BibleResult
	TotalCount     int
	SearchMethods  []string
	ExecutionTime  time.Duration
	Degraded       bool
	DegradedReason string
	BranchErrors   map[string]error
}
