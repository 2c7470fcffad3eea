package vector

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/viant/scriptsearch/errs"
)

const embeddingTableTemplate = `
CREATE TABLE IF NOT EXISTS %s (
    entity_id INTEGER NOT NULL,
    embedding_model TEXT NOT NULL,
    embedding BLOB NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (entity_id, embedding_model)
);
`

const metadataSchema = `
CREATE TABLE IF NOT EXISTS embedding_metadata (
    entity_type TEXT NOT NULL,
    entity_id INTEGER NOT NULL,
    embedding_model TEXT NOT NULL,
    dimension INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (entity_type, entity_id, embedding_model)
);
CREATE INDEX IF NOT EXISTS idx_embedding_metadata_model ON embedding_metadata(embedding_model, entity_type);
`

// TableName returns the embeddings table for entityType.
func TableName(entityType EntityType) (string, error) {
	switch entityType {
	case EntityScene:
		return "scene_embeddings", nil
	case EntityBibleChunk:
		return "bible_embeddings", nil
	}
	return "", errs.Configuration("vector.TableName", "unsupported entity type %q", string(entityType))
}

// EnsureSchema creates the per-entity embeddings tables and the shared
// embedding_metadata table if they do not already exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, entityType := range EntityTypes {
		table, _ := TableName(entityType)
		if _, err := db.ExecContext(ctx, fmt.Sprintf(embeddingTableTemplate, table)); err != nil {
			return errs.Storage("vector.EnsureSchema", err)
		}
	}
	if _, err := db.ExecContext(ctx, metadataSchema); err != nil {
		return errs.Storage("vector.EnsureSchema", err)
	}
	return nil
}
