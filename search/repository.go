package search

import (
	"context"
	"database/sql"
	"strings"

	"github.com/viant/scriptsearch/builder"
	"github.com/viant/scriptsearch/errs"
	"github.com/viant/scriptsearch/model"
	"github.com/viant/scriptsearch/semantic"
)

// Repository reads scenes, dialogue, characters and bible chunks.
type Repository struct {
	db *sql.DB
}

// NewRepository returns a Repository reading from db.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const sceneByIDQuery = `SELECT s.id, s.title, s.author,
    sc.id, sc.scene_number, sc.heading, sc.location, sc.time_of_day, sc.content,
    json_extract(s.metadata, '$.season'), json_extract(s.metadata, '$.episode'),
    NULL, NULL
FROM scenes sc
JOIN scripts s ON sc.script_id = s.id
WHERE sc.id IN (%s)`

const bibleColumns = `SELECT b.script_id, b.id, b.title, ch.id, ch.heading, ch.level, ch.content
FROM bible_chunks ch
JOIN script_bibles b ON ch.bible_id = b.id`

// Scenes runs a statement selecting builder.Columns. Rows carry the joined
// dialogue line and speaker when the statement selects them.
func (r *Repository) Scenes(ctx context.Context, st builder.Statement) ([]model.Result, error) {
	const op = "search.Scenes"
	rows, err := r.db.QueryContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, errs.Storage(op, err)
	}
	defer rows.Close()
	var out []model.Result
	for rows.Next() {
		res, err := scanScene(rows)
		if err != nil {
			return nil, errs.Storage(op, err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage(op, err)
	}
	return out, nil
}

// Count runs a single-value count statement.
func (r *Repository) Count(ctx context.Context, st builder.Statement) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, st.SQL, st.Args...).Scan(&n); err != nil {
		return 0, errs.Storage("search.Count", err)
	}
	return n, nil
}

// ScenesByID loads scenes by id. Missing ids are absent from the map.
func (r *Repository) ScenesByID(ctx context.Context, ids []int64) (map[int64]model.Result, error) {
	const op = "search.ScenesByID"
	out := make(map[int64]model.Result, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args := inClause(sceneByIDQuery, ids)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Storage(op, err)
	}
	defer rows.Close()
	for rows.Next() {
		res, err := scanScene(rows)
		if err != nil {
			return nil, errs.Storage(op, err)
		}
		out[res.SceneID] = res
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage(op, err)
	}
	return out, nil
}

// BibleChunksByID loads bible chunks by id. Missing ids are absent from the map.
func (r *Repository) BibleChunksByID(ctx context.Context, ids []int64) (map[int64]model.BibleResult, error) {
	out := make(map[int64]model.BibleResult, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args := inClause(bibleColumns+"\nWHERE ch.id IN (%s)", ids)
	chunks, err := r.bible(ctx, "search.BibleChunksByID", query, args...)
	if err != nil {
		return nil, err
	}
	for _, c := range chunks {
		out[c.ChunkID] = c
	}
	return out, nil
}

// SearchBible returns chunks whose content or heading contains text, as
// FullText matches scored 1.
func (r *Repository) SearchBible(ctx context.Context, text string, limit int) ([]model.BibleResult, error) {
	if strings.TrimSpace(text) == "" || limit <= 0 {
		return nil, nil
	}
	p := builder.Pattern(text)
	query := bibleColumns + `
WHERE (ch.content LIKE ? ESCAPE '\' OR ch.heading LIKE ? ESCAPE '\')
ORDER BY b.script_id, b.id, ch.id
LIMIT ?`
	chunks, err := r.bible(ctx, "search.SearchBible", query, p, p, limit)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].MatchType = model.MatchFullText
		chunks[i].RelevanceScore = 1
	}
	return chunks, nil
}

func (r *Repository) bible(ctx context.Context, op, query string, args ...any) ([]model.BibleResult, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Storage(op, err)
	}
	defer rows.Close()
	var out []model.BibleResult
	for rows.Next() {
		var (
			scriptID, bibleID, chunkID int64
			title, heading             sql.NullString
			level                      sql.NullInt64
			content                    string
		)
		if err := rows.Scan(&scriptID, &bibleID, &title, &chunkID, &heading, &level, &content); err != nil {
			return nil, errs.Storage(op, err)
		}
		out = append(out, model.NewBibleResult(scriptID, bibleID, chunkID, nullString(title), nullString(heading), nullInt(level), content))
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage(op, err)
	}
	return out, nil
}

// DialogueLines returns dialogue lines containing text, optionally spoken by
// character (case-insensitive substring) and within one scene. Each line is
// a Dialogue result scored 1.
func (r *Repository) DialogueLines(ctx context.Context, text, character string, sceneID int64, limit int) ([]model.Result, error) {
	const op = "search.DialogueLines"
	query := `SELECT s.id, s.title, s.author,
    sc.id, sc.scene_number, sc.heading, sc.location, sc.time_of_day, sc.content,
    json_extract(s.metadata, '$.season'), json_extract(s.metadata, '$.episode'),
    d.dialogue_text, c.name
FROM dialogues d
JOIN characters c ON d.character_id = c.id
JOIN scenes sc ON d.scene_id = sc.id
JOIN scripts s ON sc.script_id = s.id
WHERE d.dialogue_text LIKE ? ESCAPE '\'`
	args := []any{builder.Pattern(text)}
	if character != "" {
		query += ` AND UPPER(c.name) LIKE ? ESCAPE '\'`
		args = append(args, strings.ToUpper(builder.Pattern(character)))
	}
	if sceneID != 0 {
		query += ` AND sc.id = ?`
		args = append(args, sceneID)
	}
	query += "\nORDER BY s.id, sc.scene_number, d.id\nLIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Storage(op, err)
	}
	defer rows.Close()
	var out []model.Result
	for rows.Next() {
		res, err := scanScene(rows)
		if err != nil {
			return nil, errs.Storage(op, err)
		}
		res.MatchType = model.MatchDialogue
		res.RelevanceScore = 1
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage(op, err)
	}
	return out, nil
}

// CharacterMatch is a character whose name matched a branch search.
type CharacterMatch struct {
	ID            int64
	ScriptID      int64
	ScriptTitle   string
	Name          string
	DialogueCount int
}

// Characters returns characters whose name contains term, most talkative
// first.
func (r *Repository) Characters(ctx context.Context, term string, limit int) ([]CharacterMatch, error) {
	const op = "search.Characters"
	rows, err := r.db.QueryContext(ctx, `SELECT c.id, c.script_id, s.title, c.name, COUNT(d.id) AS dialogue_count
FROM characters c
JOIN scripts s ON c.script_id = s.id
LEFT JOIN dialogues d ON d.character_id = c.id
WHERE UPPER(c.name) LIKE ? ESCAPE '\'
GROUP BY c.id, c.script_id, s.title, c.name
ORDER BY dialogue_count DESC, c.id
LIMIT ?`, strings.ToUpper(builder.Pattern(term)), limit)
	if err != nil {
		return nil, errs.Storage(op, err)
	}
	defer rows.Close()
	var out []CharacterMatch
	for rows.Next() {
		var m CharacterMatch
		if err := rows.Scan(&m.ID, &m.ScriptID, &m.ScriptTitle, &m.Name, &m.DialogueCount); err != nil {
			return nil, errs.Storage(op, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage(op, err)
	}
	return out, nil
}

// LocationMatch is a scene location that matched a branch search.
type LocationMatch struct {
	ScriptID    int64
	ScriptTitle string
	Location    string
	SceneCount  int
}

// Locations returns distinct scene locations containing term per script,
// most used first.
func (r *Repository) Locations(ctx context.Context, term string, limit int) ([]LocationMatch, error) {
	const op = "search.Locations"
	rows, err := r.db.QueryContext(ctx, `SELECT sc.script_id, s.title, sc.location, COUNT(*) AS scene_count
FROM scenes sc
JOIN scripts s ON sc.script_id = s.id
WHERE sc.location IS NOT NULL AND UPPER(sc.location) LIKE ? ESCAPE '\'
GROUP BY sc.script_id, s.title, sc.location
ORDER BY scene_count DESC, sc.location
LIMIT ?`, strings.ToUpper(builder.Pattern(term)), limit)
	if err != nil {
		return nil, errs.Storage(op, err)
	}
	defer rows.Close()
	var out []LocationMatch
	for rows.Next() {
		var m LocationMatch
		if err := rows.Scan(&m.ScriptID, &m.ScriptTitle, &m.Location, &m.SceneCount); err != nil {
			return nil, errs.Storage(op, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage(op, err)
	}
	return out, nil
}

func scanScene(rows *sql.Rows) (model.Result, error) {
	var (
		res                                  model.Result
		author, heading, location, tod, text sql.NullString
		dialogue, character                  sql.NullString
		season, episode                      sql.NullInt64
	)
	err := rows.Scan(&res.ScriptID, &res.ScriptTitle, &author,
		&res.SceneID, &res.SceneNumber, &heading, &location, &tod, &text,
		&season, &episode, &dialogue, &character)
	if err != nil {
		return res, err
	}
	res.ScriptAuthor = author.String
	res.SceneHeading = heading.String
	res.SceneLocation = location.String
	res.SceneTime = tod.String
	res.SceneContent = text.String
	res.Season = nullInt(season)
	res.Episode = nullInt(episode)
	res.MatchedText = dialogue.String
	res.CharacterName = character.String
	return res, nil
}

func inClause(format string, ids []int64) (string, []any) {
	marks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	return strings.Replace(format, "%s", strings.Join(marks, ", "), 1), args
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

var _ semantic.Hydrator = (*Repository)(nil)
