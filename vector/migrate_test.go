package vector

import (
	"context"
	"testing"
)

func TestSQLiteStore_MigrateLegacy(t *testing.T) {
	store, db := openStore(t)
	ctx := context.Background()

	put(t, store, EntityScene, 1, 1, 2, 3)
	// Legacy blob with metadata.
	put(t, store, EntityScene, 2, 0, 0, 0)
	if _, err := db.Exec(`UPDATE scene_embeddings SET embedding = ? WHERE entity_id = 2`, EncodeLegacy([]float32{4, 5, 6})); err != nil {
		t.Fatalf("seed legacy failed: %v", err)
	}
	// Legacy blob without metadata.
	if _, err := db.Exec(`INSERT INTO bible_embeddings(entity_id, embedding_model, embedding, created_at, updated_at) VALUES (9, ?, ?, 1, 1)`,
		testModel, EncodeLegacy([]float32{7, 8})); err != nil {
		t.Fatalf("seed legacy bible failed: %v", err)
	}
	// Garbage blob.
	put(t, store, EntityScene, 3, 1, 1)
	if _, err := db.Exec(`UPDATE scene_embeddings SET embedding = X'010203' WHERE entity_id = 3`); err != nil {
		t.Fatalf("seed garbage failed: %v", err)
	}

	report, err := store.MigrateLegacy(ctx)
	if err != nil {
		t.Fatalf("MigrateLegacy failed: %v", err)
	}
	if report.Migrated != 2 || report.Current != 1 || report.Invalid != 1 {
		t.Fatalf("report = %+v, want {Migrated:2 Current:1 Invalid:1}", report)
	}

	var size int
	if err := db.QueryRow(`SELECT length(embedding) FROM scene_embeddings WHERE entity_id = 2`).Scan(&size); err != nil {
		t.Fatalf("length query failed: %v", err)
	}
	if size != 12 {
		t.Fatalf("migrated blob length = %d, want 12", size)
	}

	rec, err := store.Get(ctx, EntityBibleChunk, 9, testModel)
	if err != nil {
		t.Fatalf("Get migrated bible chunk failed: %v", err)
	}
	if rec.Dimension != 2 || rec.Vector[0] != 7 || rec.Vector[1] != 8 {
		t.Fatalf("migrated record = %+v, want [7 8]", rec)
	}

	again, err := store.MigrateLegacy(ctx)
	if err != nil {
		t.Fatalf("second MigrateLegacy failed: %v", err)
	}
	if again.Migrated != 0 || again.Current != 3 {
		t.Fatalf("second report = %+v, want nothing migrated and 3 current", again)
	}
}
