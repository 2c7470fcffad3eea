package builder

import (
	"fmt"
	"strings"

	"github.com/viant/scriptsearch/errs"
	"github.com/viant/scriptsearch/model"
)

// Statement is SQL text with its positional arguments.
type Statement struct {
	SQL  string
	Args []any
}

// Columns lists, in order, what every search statement selects.
var Columns = []string{
	"script_id", "script_title", "script_author",
	"scene_id", "scene_number", "scene_heading", "scene_location", "scene_time", "scene_content",
	"season", "episode", "dialogue_text", "character_name",
}

const (
	seasonPath  = "json_extract(s.metadata, '$.season')"
	episodePath = "json_extract(s.metadata, '$.episode')"
)

type settings struct {
	limit, offset int
}

// Option adjusts a search statement.
type Option func(*settings)

// WithPage overrides the query's limit and offset, for callers that fetch a
// candidate window larger than the final page.
func WithPage(limit, offset int) Option {
	return func(s *settings) {
		s.limit, s.offset = limit, offset
	}
}

type statement struct {
	joins      []string
	joined     map[string]bool
	conditions []string
	args       []any
	dialogue   bool
	// speaker selects character_name when characters are matched through
	// EXISTS; its args bind before the WHERE args.
	speaker     string
	speakerArgs []any
}

func (s *statement) join(name, clause string) {
	if s.joined[name] {
		return
	}
	s.joined[name] = true
	s.joins = append(s.joins, clause)
}

func (s *statement) where(condition string, args ...any) {
	s.conditions = append(s.conditions, condition)
	s.args = append(s.args, args...)
}

// BuildSearchQuery returns the search statement for q. It yields one row per
// scene, so LIMIT and OFFSET page over scenes. With a dialogue or
// parenthetical predicate the row carries the scene's first matching line;
// with only a character predicate it carries the first matching speaker.
func BuildSearchQuery(q model.Query, opts ...Option) (Statement, error) {
	cfg := settings{limit: q.Limit, offset: q.Offset}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.limit <= 0 || cfg.offset < 0 {
		return Statement{}, errs.Configuration("builder.BuildSearchQuery", "invalid page limit=%d offset=%d", cfg.limit, cfg.offset)
	}
	st := compile(q)

	dialogueCols := "NULL AS dialogue_text, NULL AS character_name"
	switch {
	case st.dialogue:
		dialogueCols = "d.dialogue_text AS dialogue_text, c.name AS character_name"
	case st.speaker != "":
		dialogueCols = "NULL AS dialogue_text, " + st.speaker + " AS character_name"
	}
	var sb strings.Builder
	if st.dialogue {
		// One row per scene: the first matching line in dialogue order.
		sb.WriteString("SELECT " + strings.Join(Columns, ", ") + "\nFROM (\n")
	}
	sb.WriteString(`SELECT s.id AS script_id, s.title AS script_title, s.author AS script_author,
    sc.id AS scene_id, sc.scene_number AS scene_number, sc.heading AS scene_heading, sc.location AS scene_location,
    sc.time_of_day AS scene_time, sc.content AS scene_content,
    ` + seasonPath + ` AS season, ` + episodePath + ` AS episode,
    ` + dialogueCols)
	if st.dialogue {
		sb.WriteString(",\n    ROW_NUMBER() OVER (PARTITION BY sc.id ORDER BY d.id) AS line_rank")
	}
	sb.WriteString(`
FROM scenes sc
JOIN scripts s ON sc.script_id = s.id`)
	writeBody(&sb, st)
	if st.dialogue {
		sb.WriteString("\n)\nWHERE line_rank = 1\nORDER BY script_id, scene_number, scene_id")
	} else {
		sb.WriteString("\nORDER BY s.id, sc.scene_number, sc.id")
	}
	sb.WriteString("\nLIMIT ? OFFSET ?")
	args := make([]any, 0, len(st.speakerArgs)+len(st.args)+2)
	args = append(args, st.speakerArgs...)
	args = append(args, st.args...)
	args = append(args, cfg.limit, cfg.offset)
	return Statement{SQL: sb.String(), Args: args}, nil
}

// BuildCountQuery returns a statement counting the distinct scenes matching q,
// with the same joins and predicates as BuildSearchQuery and no pagination.
func BuildCountQuery(q model.Query) (Statement, error) {
	st := compile(q)
	var sb strings.Builder
	sb.WriteString(`SELECT COUNT(DISTINCT sc.id)
FROM scenes sc
JOIN scripts s ON sc.script_id = s.id`)
	writeBody(&sb, st)
	return Statement{SQL: sb.String(), Args: st.args}, nil
}

func writeBody(sb *strings.Builder, st *statement) {
	for _, j := range st.joins {
		sb.WriteString("\n")
		sb.WriteString(j)
	}
	if len(st.conditions) > 0 {
		sb.WriteString("\nWHERE ")
		sb.WriteString(strings.Join(st.conditions, "\nAND "))
	}
}

// compile emits joins and predicates in a fixed group order: text, dialogue,
// parenthetical, action, characters, locations, times of day, season, episode.
func compile(q model.Query) *statement {
	st := &statement{joined: map[string]bool{}}
	if q.Dialogue != "" || q.Parenthetical != "" {
		st.dialogue = true
		st.join("dialogues", "JOIN dialogues d ON d.scene_id = sc.id")
		st.join("characters", "JOIN characters c ON d.character_id = c.id")
	}

	if q.TextQuery != "" {
		p := Pattern(q.TextQuery)
		st.where(`(sc.content LIKE ? ESCAPE '\' OR sc.heading LIKE ? ESCAPE '\')`, p, p)
	}
	if q.Dialogue != "" {
		st.where(`d.dialogue_text LIKE ? ESCAPE '\'`, Pattern(q.Dialogue))
	}
	if q.Parenthetical != "" {
		st.where(`json_extract(d.metadata, '$.parenthetical') LIKE ? ESCAPE '\'`, Pattern(q.Parenthetical))
	}
	if q.Action != "" {
		st.where(`(sc.content LIKE ? ESCAPE '\' AND EXISTS (SELECT 1 FROM actions a WHERE a.scene_id = sc.id))`, Pattern(q.Action))
	}
	if st.dialogue {
		st.group(anyOf("c.name", q.Characters, q.Mode))
	} else if cond, args := anyOf("c.name", q.Characters, q.Mode); cond != "" {
		spoken := "FROM dialogues d JOIN characters c ON d.character_id = c.id WHERE d.scene_id = sc.id AND " + cond
		st.where("EXISTS (SELECT 1 "+spoken+")", args...)
		st.speaker = "(SELECT c.name " + spoken + " ORDER BY d.id LIMIT 1)"
		st.speakerArgs = args
	}
	st.group(anyOf("sc.location", q.Locations, q.Mode))
	st.group(anyOf("sc.time_of_day", q.TimesOfDay, q.Mode))
	bounds(st, seasonPath, q.SeasonStart, q.SeasonEnd)
	bounds(st, episodePath, q.EpisodeStart, q.EpisodeEnd)
	return st
}

// anyOf returns one OR group over values: equality on upper-cased values in
// strict mode, a substring pattern otherwise. It returns "" for no values.
func anyOf(column string, values []string, mode model.Mode) (string, []any) {
	if len(values) == 0 {
		return "", nil
	}
	parts := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		if mode == model.Strict {
			parts[i] = fmt.Sprintf("UPPER(%s) = ?", column)
			args[i] = strings.ToUpper(v)
			continue
		}
		parts[i] = fmt.Sprintf(`UPPER(%s) LIKE ? ESCAPE '\'`, column)
		args[i] = strings.ToUpper(Pattern(v))
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

func (s *statement) group(cond string, args []any) {
	if cond != "" {
		s.where(cond, args...)
	}
}

// bounds emits an exact match when start == end and an inclusive range
// otherwise.
func bounds(st *statement, path string, start, end *int) {
	if start == nil {
		return
	}
	cast := "CAST(" + path + " AS INTEGER)"
	if end == nil || *end == *start {
		st.where(cast+" = ?", *start)
		return
	}
	st.where("("+cast+" >= ? AND "+cast+" <= ?)", *start, *end)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Pattern returns v trimmed and wrapped as a substring LIKE pattern, with
// LIKE metacharacters escaped for use with ESCAPE '\'.
func Pattern(v string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(v)) + "%"
}
