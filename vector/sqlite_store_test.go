package vector

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/viant/scriptsearch/engine"
	"github.com/viant/scriptsearch/errs"
	"github.com/viant/scriptsearch/metrics"
)

const testModel = "text-embedding-3-small"

func openStore(t *testing.T, opts ...StoreOption) (*SQLiteStore, *sql.DB) {
	t.Helper()
	db, err := engine.Open(filepath.Join(t.TempDir(), "vectors.db"))
	if err != nil {
		t.Fatalf("engine.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	store, err := NewSQLiteStore(db, opts...)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	return store, db
}

func put(t *testing.T, store *SQLiteStore, entityType EntityType, id int64, vec ...float32) {
	t.Helper()
	err := store.Store(context.Background(), Record{
		EntityType: entityType,
		EntityID:   id,
		Model:      testModel,
		Dimension:  len(vec),
		Vector:     vec,
	})
	if err != nil {
		t.Fatalf("Store(%s %d) failed: %v", entityType, id, err)
	}
}

// TestSQLiteStore_Upsert verifies that storing the same key twice replaces
// the vector, keeps a single row, and advances updated_at.
func TestSQLiteStore_Upsert(t *testing.T) {
	fixed := time.Unix(1700000000, 0)
	store, db := openStore(t, WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	put(t, store, EntityScene, 1, 1, 0)
	put(t, store, EntityScene, 1, 0, 1)

	var rows int
	if err := db.QueryRow(`SELECT COUNT(*) FROM scene_embeddings`).Scan(&rows); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if rows != 1 {
		t.Fatalf("scene_embeddings rows = %d, want 1", rows)
	}

	var created, updated int64
	if err := db.QueryRow(`SELECT created_at, updated_at FROM scene_embeddings WHERE entity_id = 1`).Scan(&created, &updated); err != nil {
		t.Fatalf("timestamps query failed: %v", err)
	}
	if updated <= created {
		t.Fatalf("updated_at = %d, want > created_at %d", updated, created)
	}

	var dim int
	var model string
	if err := db.QueryRow(`SELECT dimension, embedding_model FROM embedding_metadata WHERE entity_type = 'scene' AND entity_id = 1`).Scan(&dim, &model); err != nil {
		t.Fatalf("metadata query failed: %v", err)
	}
	if dim != 2 || model != testModel {
		t.Fatalf("metadata = (%d, %s), want (2, %s)", dim, model, testModel)
	}

	rec, err := store.Get(ctx, EntityScene, 1, testModel)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.Vector[0] != 0 || rec.Vector[1] != 1 {
		t.Fatalf("Get vector = %v, want [0 1]", rec.Vector)
	}
}

func TestSQLiteStore_StoreValidation(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	err := store.Store(ctx, Record{EntityType: EntityScene, EntityID: 1, Model: testModel, Dimension: 3, Vector: []float32{1, 2}})
	if !errors.Is(err, errs.ErrDimensionMismatch) {
		t.Fatalf("Store with wrong dimension = %v, want dimension mismatch", err)
	}
	err = store.Store(ctx, Record{EntityType: "character", EntityID: 1, Model: testModel, Dimension: 1, Vector: []float32{1}})
	if !errors.Is(err, errs.ErrConfiguration) {
		t.Fatalf("Store with unknown entity type = %v, want configuration error", err)
	}
}

func TestSQLiteStore_GetDelete(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	put(t, store, EntityBibleChunk, 7, 0.5, 0.5)
	if err := store.Delete(ctx, EntityBibleChunk, 7); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, EntityBibleChunk, 7, testModel); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after Delete = %v, want ErrNotFound", err)
	}
}

// TestSQLiteStore_FindSimilar stores five vectors of which three are within
// the similarity threshold and expects exactly those, nearest first.
func TestSQLiteStore_FindSimilar(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	put(t, store, EntityScene, 4, 0, 1)
	put(t, store, EntityScene, 2, 0.9, 0.1)
	put(t, store, EntityScene, 5, -1, 0)
	put(t, store, EntityScene, 1, 1, 0)
	put(t, store, EntityScene, 3, 0.8, 0.6)

	hits, err := store.FindSimilar(ctx, []float32{1, 0}, testModel, EntityScene, 3, 0.5)
	if err != nil {
		t.Fatalf("FindSimilar failed: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("FindSimilar returned %d hits, want 3", len(hits))
	}
	want := []int64{1, 2, 3}
	for i, h := range hits {
		if h.EntityID != want[i] {
			t.Fatalf("hit[%d] = %d, want %d", i, h.EntityID, want[i])
		}
		if i > 0 && h.Distance < hits[i-1].Distance {
			t.Fatalf("hits not ordered by ascending distance: %v", hits)
		}
		if h.Metadata.Dimension != 2 || h.Metadata.Model != testModel {
			t.Fatalf("hit[%d] metadata = %+v, want dimension 2 and model", i, h.Metadata)
		}
	}
	if math.Abs(hits[2].Similarity-0.8) > 1e-6 {
		t.Fatalf("hit[2] similarity = %v, want 0.8", hits[2].Similarity)
	}
}

// TestSQLiteStore_SearchSkipsMismatchedDimension verifies that a stored
// vector of another dimension is skipped instead of failing the search.
func TestSQLiteStore_SearchSkipsMismatchedDimension(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	put(t, store, EntityScene, 1, 1, 0)
	put(t, store, EntityScene, 2, 1, 0, 0)
	put(t, store, EntityBibleChunk, 3, 0, 1)

	skipped := testutil.ToFloat64(metrics.VectorCandidatesSkipped.WithLabelValues(string(EntityScene)))
	hits, err := store.Search(ctx, SearchParams{Vector: []float32{1, 0}, Model: testModel, Limit: 10})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Search returned %d hits, want 2", len(hits))
	}
	if hits[0].EntityType != EntityScene || hits[0].EntityID != 1 {
		t.Fatalf("hit[0] = %+v, want scene 1", hits[0])
	}
	if hits[1].EntityType != EntityBibleChunk || hits[1].EntityID != 3 {
		t.Fatalf("hit[1] = %+v, want bible chunk 3", hits[1])
	}
	if got := testutil.ToFloat64(metrics.VectorCandidatesSkipped.WithLabelValues(string(EntityScene))); got != skipped+1 {
		t.Fatalf("skipped counter = %v, want %v", got, skipped+1)
	}
}

func TestSQLiteStore_SearchScopeAndMetric(t *testing.T) {
	store, db := openStore(t)
	ctx := context.Background()

	if _, err := db.Exec(`CREATE TABLE scenes(id INTEGER PRIMARY KEY, script_id INTEGER)`); err != nil {
		t.Fatalf("create scenes failed: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO scenes(id, script_id) VALUES (1, 10), (2, 20), (3, 10)`); err != nil {
		t.Fatalf("insert scenes failed: %v", err)
	}
	put(t, store, EntityScene, 1, 0, 0)
	put(t, store, EntityScene, 2, 0, 0)
	put(t, store, EntityScene, 3, 3, 4)

	threshold := 6.0
	hits, err := store.Search(ctx, SearchParams{
		Vector:     []float32{0, 0},
		Model:      testModel,
		Limit:      5,
		EntityType: EntityScene,
		ScriptID:   10,
		Threshold:  &threshold,
		Metric:     L1,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].EntityID != 1 {
		t.Fatalf("Search(script 10, L1 <= 6) = %+v, want scene 1 only", hits)
	}
	if hits[0].Similarity != 1 {
		t.Fatalf("similarity at distance 0 = %v, want 1", hits[0].Similarity)
	}
}

// TestSQLiteStore_SearchInvalidMetric verifies the metric is rejected before
// the database is touched: the store's connection is already closed.
func TestSQLiteStore_SearchInvalidMetric(t *testing.T) {
	store, db := openStore(t)
	_ = db.Close()

	_, err := store.Search(context.Background(), SearchParams{Vector: []float32{1}, Model: testModel, Limit: 1, Metric: "invalid"})
	if !errors.Is(err, errs.ErrConfiguration) {
		t.Fatalf("Search(invalid metric) = %v, want configuration error", err)
	}
	if errors.Is(err, errs.ErrStorage) {
		t.Fatalf("Search(invalid metric) reached storage: %v", err)
	}
}

func TestSQLiteStore_SimilarTo(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	put(t, store, EntityScene, 1, 1, 0)
	put(t, store, EntityScene, 2, 0.8, 0.6)
	put(t, store, EntityScene, 3, 0, 1)
	put(t, store, EntityScene, 4, 1, 0, 0)

	hits, err := store.SimilarTo(ctx, EntityScene, 1, testModel, 5, 0.5)
	if err != nil {
		t.Fatalf("SimilarTo failed: %v", err)
	}
	if len(hits) != 1 || hits[0].EntityID != 2 {
		t.Fatalf("SimilarTo = %+v, want scene 2 only", hits)
	}
	if math.Abs(hits[0].Similarity-0.8) > 1e-6 {
		t.Fatalf("similarity = %v, want 0.8", hits[0].Similarity)
	}

	if _, err := store.SimilarTo(ctx, EntityScene, 99, testModel, 5, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SimilarTo(missing) = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_SimilarToStoredFormats(t *testing.T) {
	store, db := openStore(t)
	ctx := context.Background()

	put(t, store, EntityScene, 1, 1, 0)
	put(t, store, EntityScene, 2, 1, 0.1)
	put(t, store, EntityScene, 3, 0.9, 0.1)
	if _, err := db.Exec(`UPDATE scene_embeddings SET embedding = ? WHERE entity_id = 2`, EncodeLegacy([]float32{1, 0.1})); err != nil {
		t.Fatalf("seed legacy blob failed: %v", err)
	}
	if _, err := db.Exec(`UPDATE scene_embeddings SET embedding = x'0102030405' WHERE entity_id = 3`); err != nil {
		t.Fatalf("seed malformed blob failed: %v", err)
	}

	hits, err := store.SimilarTo(ctx, EntityScene, 1, testModel, 5, 0.5)
	if err != nil {
		t.Fatalf("SimilarTo failed: %v", err)
	}
	if len(hits) != 1 || hits[0].EntityID != 2 {
		t.Fatalf("SimilarTo = %+v, want legacy scene 2 only", hits)
	}
	want := 1 / math.Sqrt(1.01)
	if math.Abs(hits[0].Similarity-want) > 1e-6 {
		t.Fatalf("similarity = %v, want %v", hits[0].Similarity, want)
	}
}
