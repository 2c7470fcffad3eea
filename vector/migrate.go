package vector

import (
	"context"
	"fmt"

	"github.com/viant/scriptsearch/errs"
	"github.com/viant/scriptsearch/logging"
	"github.com/viant/scriptsearch/metrics"
)

// MigrationReport counts what MigrateLegacy found per run.
type MigrationReport struct {
	Migrated int
	Current  int
	Invalid  int
}

type legacyRow struct {
	entityID int64
	model    string
	vec      []float32
	// missingMeta is set when no embedding_metadata row exists yet.
	missingMeta bool
}

// MigrateLegacy rewrites length-prefixed blobs in the raw format, one
// transaction per entity type. Rows with no metadata are recognised by a
// self-consistent prefix and get a metadata row. Blobs that match neither
// format are counted as invalid and left untouched.
func (s *SQLiteStore) MigrateLegacy(ctx context.Context) (MigrationReport, error) {
	var report MigrationReport
	for _, entityType := range EntityTypes {
		rows, current, invalid, err := s.scanLegacy(ctx, entityType)
		if err != nil {
			return report, err
		}
		report.Current += current
		report.Invalid += invalid
		if len(rows) == 0 {
			continue
		}
		if err := s.rewrite(ctx, entityType, rows); err != nil {
			return report, err
		}
		report.Migrated += len(rows)
		metrics.VectorsMigrated.WithLabelValues(string(entityType)).Add(float64(len(rows)))
		logging.FromContext(ctx).Info("vector: migrated legacy embeddings",
			"entity_type", entityType, "count", len(rows))
	}
	return report, nil
}

func (s *SQLiteStore) scanLegacy(ctx context.Context, entityType EntityType) ([]legacyRow, int, int, error) {
	const op = "vector.MigrateLegacy"
	table, _ := TableName(entityType)
	query := fmt.Sprintf(`SELECT e.entity_id, e.embedding_model, e.embedding, m.dimension
FROM %s e
LEFT JOIN embedding_metadata m ON m.entity_type = ? AND m.entity_id = e.entity_id AND m.embedding_model = e.embedding_model
ORDER BY e.entity_id, e.embedding_model`, table)
	rows, err := s.db.QueryContext(ctx, query, string(entityType))
	if err != nil {
		return nil, 0, 0, errs.Storage(op, err)
	}
	defer rows.Close()

	var (
		out              []legacyRow
		current, invalid int
	)
	for rows.Next() {
		var (
			row  legacyRow
			blob []byte
			dim  *int
		)
		if err := rows.Scan(&row.entityID, &row.model, &blob, &dim); err != nil {
			return nil, 0, 0, errs.Storage(op, err)
		}
		known := 0
		if dim != nil {
			known = *dim
		}
		switch {
		case IsLegacy(blob, known):
			vec, err := DecodeLegacy(blob)
			if err != nil {
				invalid++
				continue
			}
			row.vec = vec
			row.missingMeta = dim == nil
			out = append(out, row)
		case known > 0 && len(blob) == known*4:
			current++
		default:
			invalid++
			logging.FromContext(ctx).Warn("vector: embedding matches no known format",
				"entity_type", entityType, "entity_id", row.entityID, "model", row.model, "bytes", len(blob))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, 0, errs.Storage(op, err)
	}
	return out, current, invalid, nil
}

func (s *SQLiteStore) rewrite(ctx context.Context, entityType EntityType, rows []legacyRow) error {
	const op = "vector.MigrateLegacy"
	table, _ := TableName(entityType)
	now := s.now().UnixNano()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Storage(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	update, err := tx.PrepareContext(ctx, fmt.Sprintf(`UPDATE %[1]s SET embedding = ?, updated_at = MAX(?, %[1]s.updated_at + 1)
WHERE entity_id = ? AND embedding_model = ?`, table))
	if err != nil {
		return errs.Storage(op, err)
	}
	defer update.Close()

	for _, row := range rows {
		blob, err := EncodeEmbedding(row.vec)
		if err != nil {
			return err
		}
		if _, err := update.ExecContext(ctx, blob, now, row.entityID, row.model); err != nil {
			return errs.Storage(op, err)
		}
		if !row.missingMeta {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO embedding_metadata(entity_type, entity_id, embedding_model, dimension, created_at, updated_at)
VALUES(?, ?, ?, ?, ?, ?)`, string(entityType), row.entityID, row.model, len(row.vec), now, now); err != nil {
			return errs.Storage(op, err)
		}
	}
	return errs.Storage(op, tx.Commit())
}
