package vector

import (
	"context"
	"time"

	"github.com/viant/scriptsearch/errs"
	"github.com/viant/scriptsearch/index"
)

// EntityType names the kind of entity an embedding belongs to.
type EntityType string

const (
	EntityScene      EntityType = "scene"
	EntityBibleChunk EntityType = "bible_chunk"
)

// EntityTypes lists every supported entity type in search order.
var EntityTypes = []EntityType{EntityScene, EntityBibleChunk}

// ParseEntityType accepts "scene" or "bible_chunk" ("bible" is an alias).
func ParseEntityType(s string) (EntityType, error) {
	switch s {
	case string(EntityScene):
		return EntityScene, nil
	case string(EntityBibleChunk), "bible":
		return EntityBibleChunk, nil
	}
	return "", errs.Configuration("vector.ParseEntityType", "unsupported entity type %q", s)
}

// Metric is the distance metric used by Search.
type Metric = index.Metric

const (
	Cosine = index.Cosine
	L2     = index.L2
	L1     = index.L1
)

// ParseMetric accepts cosine, l2 or l1.
func ParseMetric(s string) (Metric, error) { return index.ParseMetric(s) }

// Record is one stored embedding. len(Vector) must equal Dimension.
type Record struct {
	EntityType EntityType
	EntityID   int64
	Model      string
	Dimension  int
	Vector     []float32
}

// Snapshot is the metadata row recorded alongside a vector.
type Snapshot struct {
	Model     string
	Dimension int
	UpdatedAt time.Time
}

// Hit is one nearest-neighbour match.
type Hit struct {
	EntityType EntityType
	EntityID   int64
	Distance   float64
	Similarity float64
	Metadata   Snapshot
}

// SearchParams configures Search. Metric defaults to Cosine when empty.
type SearchParams struct {
	Vector     []float32
	Model      string
	Limit      int
	EntityType EntityType // empty searches every entity type
	ScriptID   int64      // zero searches every script
	Threshold  *float64   // maximum distance
	Metric     Metric
}

// Store defines the embedding persistence and lookup API.
type Store interface {
	// Store upserts r keyed by (entity type, entity id, model).
	Store(ctx context.Context, r Record) error

	// Get returns the stored record, or sql.ErrNoRows wrapped as a storage
	// error when absent.
	Get(ctx context.Context, entityType EntityType, entityID int64, model string) (*Record, error)

	// Delete removes every model's vector for the entity.
	Delete(ctx context.Context, entityType EntityType, entityID int64) error

	// Search returns up to Limit nearest neighbours of params.Vector.
	Search(ctx context.Context, params SearchParams) ([]Hit, error)
}
