package vector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/viant/scriptsearch/errs"
	"github.com/viant/scriptsearch/index/bruteforce"
	"github.com/viant/scriptsearch/logging"
	"github.com/viant/scriptsearch/metrics"
)

// ErrNotFound is returned by Get when no vector exists for the key.
var ErrNotFound = errors.New("vector: embedding not found")

// SQLiteStore implements Store on a SQLite database. Vectors of one entity
// type live in that type's embeddings table; dimension and model are kept
// in embedding_metadata under the same key.
type SQLiteStore struct {
	db         *sql.DB
	now        func() time.Time
	skipSchema bool
}

// StoreOption configures a SQLiteStore.
type StoreOption func(*SQLiteStore)

// WithClock overrides the time source used for created_at/updated_at.
func WithClock(now func() time.Time) StoreOption {
	return func(s *SQLiteStore) { s.now = now }
}

// WithoutSchema skips EnsureSchema, for read-only connections.
func WithoutSchema() StoreOption {
	return func(s *SQLiteStore) { s.skipSchema = true }
}

// NewSQLiteStore creates a new SQLite-backed Store. Unless WithoutSchema is
// given it ensures the embeddings schema exists in the provided database.
func NewSQLiteStore(db *sql.DB, opts ...StoreOption) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("vector: db is nil")
	}
	s := &SQLiteStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if !s.skipSchema {
		if err := EnsureSchema(context.Background(), db); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Store upserts r. On conflict the vector is replaced and updated_at moves
// forward; the metadata row records the dimension and exact model name.
func (s *SQLiteStore) Store(ctx context.Context, r Record) error {
	const op = "vector.Store"
	table, err := TableName(r.EntityType)
	if err != nil {
		return err
	}
	if r.Model == "" {
		return errs.Configuration(op, "model name is required")
	}
	if r.Dimension <= 0 || len(r.Vector) != r.Dimension {
		return errs.DimensionMismatch(op, len(r.Vector), r.Dimension)
	}
	blob, err := EncodeEmbedding(r.Vector)
	if err != nil {
		return err
	}
	now := s.now().UnixNano()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Storage(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	upsertVector := fmt.Sprintf(`INSERT INTO %[1]s(entity_id, embedding_model, embedding, created_at, updated_at)
VALUES(?, ?, ?, ?, ?)
ON CONFLICT(entity_id, embedding_model) DO UPDATE SET
    embedding = excluded.embedding,
    updated_at = MAX(excluded.updated_at, %[1]s.updated_at + 1)`, table)
	if _, err := tx.ExecContext(ctx, upsertVector, r.EntityID, r.Model, blob, now, now); err != nil {
		return errs.Storage(op, err)
	}

	const upsertMetadata = `INSERT INTO embedding_metadata(entity_type, entity_id, embedding_model, dimension, created_at, updated_at)
VALUES(?, ?, ?, ?, ?, ?)
ON CONFLICT(entity_type, entity_id, embedding_model) DO UPDATE SET
    dimension = excluded.dimension,
    updated_at = MAX(excluded.updated_at, embedding_metadata.updated_at + 1)`
	if _, err := tx.ExecContext(ctx, upsertMetadata, string(r.EntityType), r.EntityID, r.Model, r.Dimension, now, now); err != nil {
		return errs.Storage(op, err)
	}
	return errs.Storage(op, tx.Commit())
}

// Get returns the stored record for the key. Legacy blobs are decoded
// transparently.
func (s *SQLiteStore) Get(ctx context.Context, entityType EntityType, entityID int64, model string) (*Record, error) {
	const op = "vector.Get"
	table, err := TableName(entityType)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT e.embedding, m.dimension
FROM %s e
JOIN embedding_metadata m ON m.entity_type = ? AND m.entity_id = e.entity_id AND m.embedding_model = e.embedding_model
WHERE e.entity_id = ? AND e.embedding_model = ?`, table)
	var blob []byte
	var dim int
	err = s.db.QueryRowContext(ctx, query, string(entityType), entityID, model).Scan(&blob, &dim)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %d (%s)", ErrNotFound, entityType, entityID, model)
	}
	if err != nil {
		return nil, errs.Storage(op, err)
	}
	vec, err := decodeStored(blob, dim)
	if err != nil {
		return nil, err
	}
	return &Record{EntityType: entityType, EntityID: entityID, Model: model, Dimension: dim, Vector: vec}, nil
}

// Delete removes the entity's vectors and metadata for every model.
func (s *SQLiteStore) Delete(ctx context.Context, entityType EntityType, entityID int64) error {
	const op = "vector.Delete"
	table, err := TableName(entityType)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Storage(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE entity_id = ?`, table), entityID); err != nil {
		return errs.Storage(op, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM embedding_metadata WHERE entity_type = ? AND entity_id = ?`, string(entityType), entityID); err != nil {
		return errs.Storage(op, err)
	}
	return errs.Storage(op, tx.Commit())
}

type candidate struct {
	id       int64
	vec      []float32
	snapshot Snapshot
}

// Search returns up to params.Limit nearest neighbours ordered by ascending
// distance, ties broken by ascending entity id. The metric is validated
// before any I/O. Stored vectors whose dimension differs from the query are
// skipped and logged.
func (s *SQLiteStore) Search(ctx context.Context, params SearchParams) ([]Hit, error) {
	metric := params.Metric
	if metric == "" {
		metric = Cosine
	}
	if err := metric.Validate(); err != nil {
		return nil, err
	}
	types := EntityTypes
	if params.EntityType != "" {
		if _, err := TableName(params.EntityType); err != nil {
			return nil, err
		}
		types = []EntityType{params.EntityType}
	}
	if params.Limit <= 0 || len(params.Vector) == 0 {
		return nil, nil
	}

	var hits []Hit
	for _, entityType := range types {
		candidates, err := s.candidates(ctx, entityType, params)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			continue
		}
		ids := make([]int64, len(candidates))
		vecs := make([][]float32, len(candidates))
		byID := make(map[int64]Snapshot, len(candidates))
		for i, c := range candidates {
			ids[i] = c.id
			vecs[i] = c.vec
			byID[c.id] = c.snapshot
		}
		idx := bruteforce.New()
		if err := idx.Build(ids, vecs); err != nil {
			return nil, err
		}
		neighbors, err := idx.Query(params.Vector, params.Limit, metric, params.Threshold)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			hits = append(hits, Hit{
				EntityType: entityType,
				EntityID:   n.ID,
				Distance:   n.Distance,
				Similarity: Similarity(n.Distance, metric),
				Metadata:   byID[n.ID],
			})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].EntityID < hits[j].EntityID
	})
	if len(hits) > params.Limit {
		hits = hits[:params.Limit]
	}
	return hits, nil
}

func (s *SQLiteStore) candidates(ctx context.Context, entityType EntityType, params SearchParams) ([]candidate, error) {
	const op = "vector.Search"
	table, _ := TableName(entityType)
	query := fmt.Sprintf(`SELECT e.entity_id, e.embedding, m.dimension, m.updated_at
FROM %s e
JOIN embedding_metadata m ON m.entity_type = ? AND m.entity_id = e.entity_id AND m.embedding_model = e.embedding_model`, table)
	args := []any{string(entityType)}
	if params.ScriptID != 0 {
		switch entityType {
		case EntityScene:
			query += `
JOIN scenes sc ON sc.id = e.entity_id`
		case EntityBibleChunk:
			query += `
JOIN bible_chunks bc ON bc.id = e.entity_id
JOIN script_bibles sb ON sb.id = bc.bible_id`
		}
	}
	query += `
WHERE e.embedding_model = ?`
	args = append(args, params.Model)
	if params.ScriptID != 0 {
		if entityType == EntityScene {
			query += ` AND sc.script_id = ?`
		} else {
			query += ` AND sb.script_id = ?`
		}
		args = append(args, params.ScriptID)
	}
	query += `
ORDER BY e.entity_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Storage(op, err)
	}
	defer rows.Close()

	logger := logging.FromContext(ctx)
	var out []candidate
	for rows.Next() {
		var (
			id        int64
			blob      []byte
			dim       int
			updatedAt int64
		)
		if err := rows.Scan(&id, &blob, &dim, &updatedAt); err != nil {
			return nil, errs.Storage(op, err)
		}
		if dim != len(params.Vector) {
			logger.Warn("vector: skipping candidate with mismatched dimension",
				"entity_type", entityType, "entity_id", id, "dimension", dim, "query_dimension", len(params.Vector))
			metrics.VectorCandidatesSkipped.WithLabelValues(string(entityType)).Inc()
			continue
		}
		vec, err := decodeStored(blob, dim)
		if err != nil {
			logger.Warn("vector: skipping undecodable candidate",
				"entity_type", entityType, "entity_id", id, "error", err)
			metrics.VectorCandidatesSkipped.WithLabelValues(string(entityType)).Inc()
			continue
		}
		out = append(out, candidate{
			id:  id,
			vec: vec,
			snapshot: Snapshot{
				Model:     params.Model,
				Dimension: dim,
				UpdatedAt: time.Unix(0, updatedAt).UTC(),
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage(op, err)
	}
	return out, nil
}

// FindSimilar returns up to limit entities whose cosine similarity to vec is
// at least minSimilarity, ordered by ascending distance.
func (s *SQLiteStore) FindSimilar(ctx context.Context, vec []float32, model string, entityType EntityType, limit int, minSimilarity float64) ([]Hit, error) {
	threshold := 1 - minSimilarity
	return s.Search(ctx, SearchParams{
		Vector:     vec,
		Model:      model,
		Limit:      limit,
		EntityType: entityType,
		Threshold:  &threshold,
		Metric:     Cosine,
	})
}

// SimilarTo returns the stored entities nearest to an already stored one,
// excluding itself. Similarity is computed in SQLite with vec_cosine, which
// reads legacy length-prefixed blobs and yields NULL for vectors of another
// dimension or malformed blobs; those rows are excluded.
func (s *SQLiteStore) SimilarTo(ctx context.Context, entityType EntityType, entityID int64, model string, limit int, minSimilarity float64) ([]Hit, error) {
	const op = "vector.SimilarTo"
	if limit <= 0 {
		return nil, nil
	}
	source, err := s.Get(ctx, entityType, entityID, model)
	if err != nil {
		return nil, err
	}
	blob, err := EncodeEmbedding(source.Vector)
	if err != nil {
		return nil, err
	}
	table, _ := TableName(entityType)
	query := fmt.Sprintf(`SELECT entity_id, similarity, dimension, updated_at FROM (
    SELECT e.entity_id AS entity_id,
           vec_cosine(e.embedding, ?) AS similarity,
           m.dimension AS dimension,
           m.updated_at AS updated_at
    FROM %s e
    JOIN embedding_metadata m ON m.entity_type = ? AND m.entity_id = e.entity_id AND m.embedding_model = e.embedding_model
    WHERE e.embedding_model = ? AND e.entity_id <> ?
) WHERE similarity IS NOT NULL AND similarity >= ?
ORDER BY similarity DESC, entity_id ASC
LIMIT ?`, table)
	rows, err := s.db.QueryContext(ctx, query, blob, string(entityType), model, entityID, minSimilarity, limit)
	if err != nil {
		return nil, errs.Storage(op, err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			hit       = Hit{EntityType: entityType}
			updatedAt int64
		)
		if err := rows.Scan(&hit.EntityID, &hit.Similarity, &hit.Metadata.Dimension, &updatedAt); err != nil {
			return nil, errs.Storage(op, err)
		}
		hit.Distance = 1 - hit.Similarity
		hit.Metadata.Model = model
		hit.Metadata.UpdatedAt = time.Unix(0, updatedAt).UTC()
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage(op, err)
	}
	return hits, nil
}

// Ensure SQLiteStore satisfies the Store interface.
var _ Store = (*SQLiteStore)(nil)
