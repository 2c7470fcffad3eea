package search

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/viant/scriptsearch/internal/testutil"
	"github.com/viant/scriptsearch/model"
	"github.com/viant/scriptsearch/semantic"
	"github.com/viant/scriptsearch/vector"
)

const testModel = "test-embedding"

type stubEmbedder struct {
	vec []float32
	err error
}

func (s stubEmbedder) Embed(context.Context, string) ([]float32, error) { return s.vec, s.err }

type fixture struct {
	db    *sql.DB
	seed  *testutil.Seed
	store *vector.SQLiteStore
	repo  *Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenTestDB(t)
	store, err := vector.NewSQLiteStore(db)
	require.NoError(t, err)
	return &fixture{db: db, seed: testutil.NewSeed(t, db), store: store, repo: NewRepository(db)}
}

func (f *fixture) adapter(t *testing.T, embedder semantic.Embedder) *semantic.Adapter {
	t.Helper()
	a, err := semantic.New(embedder, f.store, f.repo, semantic.Config{Model: testModel})
	require.NoError(t, err)
	return a
}

func newQuery(t *testing.T, raw string, opts ...model.QueryOption) model.Query {
	t.Helper()
	q, err := model.NewQuery(raw, opts...)
	require.NoError(t, err)
	return q
}

func sceneIDs(results []model.Result) []int64 {
	out := make([]int64, len(results))
	for i, r := range results {
		out[i] = r.SceneID
	}
	return out
}
