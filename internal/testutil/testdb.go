// Package testutil opens SQLite databases carrying the screenplay schema and
// seeds them for package tests.
package testutil

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/viant/scriptsearch/engine"
	"github.com/viant/scriptsearch/vector"
)

//go:embed schema.sql
var schema string

// OpenTestDB creates a file-backed SQLite DB under t.TempDir and applies the
// screenplay and embeddings schemas. A file is used instead of :memory: so
// that pooled connections share one database.
func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _ := OpenTestDBPath(t)
	return db
}

// OpenTestDBPath is OpenTestDB that also returns the database file path, for
// tests that open their own connections.
func OpenTestDBPath(t *testing.T) (*sql.DB, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "scripts.db")
	db, err := engine.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	if err := vector.EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("apply vector schema: %v", err)
	}
	return db, path
}

// Seed inserts fixture rows, failing the test on any error.
type Seed struct {
	t  *testing.T
	db *sql.DB
}

// NewSeed returns a Seed writing to db.
func NewSeed(t *testing.T, db *sql.DB) *Seed {
	return &Seed{t: t, db: db}
}

func (s *Seed) insert(query string, args ...any) int64 {
	s.t.Helper()
	res, err := s.db.Exec(query, args...)
	if err != nil {
		s.t.Fatalf("seed %q: %v", query, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		s.t.Fatalf("seed last insert id: %v", err)
	}
	return id
}

// Script inserts a script. Season and episode go into its metadata when
// non-nil.
func (s *Seed) Script(title, author string, season, episode *int) int64 {
	s.t.Helper()
	meta := map[string]any{}
	if season != nil {
		meta["season"] = *season
	}
	if episode != nil {
		meta["episode"] = *episode
	}
	data, _ := json.Marshal(meta)
	return s.insert(`INSERT INTO scripts(title, author, metadata) VALUES (?, ?, ?)`, title, author, string(data))
}

// Scene inserts a scene.
func (s *Seed) Scene(scriptID int64, number int, heading, location, timeOfDay, content string) int64 {
	s.t.Helper()
	return s.insert(`INSERT INTO scenes(script_id, scene_number, heading, location, time_of_day, content) VALUES (?, ?, ?, ?, ?, ?)`,
		scriptID, number, heading, location, timeOfDay, content)
}

// Character inserts a character.
func (s *Seed) Character(scriptID int64, name string) int64 {
	s.t.Helper()
	return s.insert(`INSERT INTO characters(script_id, name) VALUES (?, ?)`, scriptID, name)
}

// Dialogue inserts a dialogue line; parenthetical is stored in its metadata
// when non-empty.
func (s *Seed) Dialogue(sceneID, characterID int64, text, parenthetical string) int64 {
	s.t.Helper()
	meta := "{}"
	if parenthetical != "" {
		data, _ := json.Marshal(map[string]string{"parenthetical": parenthetical})
		meta = string(data)
	}
	return s.insert(`INSERT INTO dialogues(scene_id, character_id, dialogue_text, metadata) VALUES (?, ?, ?, ?)`,
		sceneID, characterID, text, meta)
}

// Action inserts an action line.
func (s *Seed) Action(sceneID int64, text string) int64 {
	s.t.Helper()
	return s.insert(`INSERT INTO actions(scene_id, action_text) VALUES (?, ?)`, sceneID, text)
}

// Bible inserts a reference document; an empty title is stored as NULL.
func (s *Seed) Bible(scriptID int64, title string) int64 {
	s.t.Helper()
	var v any
	if title != "" {
		v = title
	}
	return s.insert(`INSERT INTO script_bibles(script_id, title) VALUES (?, ?)`, scriptID, v)
}

// Chunk inserts a reference-document chunk; level < 0 is stored as NULL.
func (s *Seed) Chunk(bibleID int64, heading string, level int, content string) int64 {
	s.t.Helper()
	var lv any
	if level >= 0 {
		lv = level
	}
	return s.insert(`INSERT INTO bible_chunks(bible_id, heading, level, content) VALUES (?, ?, ?, ?)`,
		bibleID, heading, lv, content)
}

// Embedding stores vec for the entity under model.
func (s *Seed) Embedding(store *vector.SQLiteStore, entityType vector.EntityType, id int64, model string, vec ...float32) {
	s.t.Helper()
	err := store.Store(context.Background(), vector.Record{
		EntityType: entityType,
		EntityID:   id,
		Model:      model,
		Dimension:  len(vec),
		Vector:     vec,
	})
	if err != nil {
		s.t.Fatalf("seed embedding %s %d: %v", entityType, id, err)
	}
}

// Int returns a pointer to v.
func Int(v int) *int { return &v }
