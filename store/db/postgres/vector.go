package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/contentvec/contentvec/store"
)

// UpsertVector inserts or replaces the embedding for one natural key in a
// single statement. The locale sentinel '' makes the ON CONFLICT arm cover
// unlocalized content too, so no read-then-write fallback is needed.
func (d *DB) UpsertVector(ctx context.Context, upsert *store.UpsertVector) (*store.VectorRecord, error) {
	metadata := upsert.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal vector metadata")
	}

	stmt := `
		INSERT INTO embedding_vector (profile_id, content_type, content_id, field_name, locale, embedding, metadata)
		VALUES (` + placeholders(7) + `)
		ON CONFLICT (profile_id, content_type, content_id, field_name, locale)
		DO UPDATE SET
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata,
			updated_at = now()
		RETURNING id, created_at, updated_at
	`

	record := &store.VectorRecord{
		ProfileID:   upsert.ProfileID,
		ContentType: upsert.ContentType,
		ContentID:   upsert.ContentID,
		FieldName:   upsert.FieldName,
		Locale:      upsert.Locale,
		Embedding:   upsert.Embedding,
		Metadata:    metadata,
	}
	err = d.db.QueryRowContext(ctx, stmt,
		upsert.ProfileID,
		upsert.ContentType,
		upsert.ContentID,
		upsert.FieldName,
		upsert.Locale,
		pgvector.NewVector(upsert.Embedding),
		metadataJSON,
	).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert vector")
	}
	return record, nil
}

// buildVectorSearch constructs the ranked nearest-neighbor statement.
// The ORDER BY uses the distance operator expression directly so an HNSW index
// can drive the scan, and the minSimilarity floor is rewritten into a bound on
// that same expression.
func buildVectorSearch(opts *store.VectorSearchOptions) (string, []any) {
	op := opts.Metric.Operator()
	vector := pgvector.NewVector(opts.Vector)

	args := []any{vector}
	where := []string{"1 = 1"}

	if opts.ProfileID != nil {
		args = append(args, *opts.ProfileID)
		where = append(where, "profile_id = "+placeholder(len(args)))
	}
	if opts.ContentType != nil {
		args = append(args, *opts.ContentType)
		where = append(where, "content_type = "+placeholder(len(args)))
	}

	keys := make([]string, 0, len(opts.MetadataFilters))
	for key := range opts.MetadataFilters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := opts.MetadataFilters[key]
		if value == nil {
			args = append(args, key)
			where = append(where, "metadata->>"+placeholder(len(args))+" IS NULL")
		} else {
			args = append(args, key, fmt.Sprintf("%v", value))
			where = append(where, "metadata->>"+placeholder(len(args)-1)+" = "+placeholder(len(args)))
		}
	}

	// similarity >= floor becomes distance <= bound under the operator:
	// cosine similarity = 1 - d, dot similarity = -d. L2 has no similarity.
	if opts.MinSimilarity != nil {
		var bound float64
		var bounded bool
		switch opts.Metric {
		case store.DistanceCosine:
			bound, bounded = 1-*opts.MinSimilarity, true
		case store.DistanceDot:
			bound, bounded = -*opts.MinSimilarity, true
		}
		if bounded {
			args = append(args, vector, bound)
			where = append(where, fmt.Sprintf("(embedding %s %s) <= %s",
				op, placeholder(len(args)-1), placeholder(len(args))))
		}
	}

	args = append(args, vector)
	orderArg := placeholder(len(args))
	args = append(args, opts.Limit)
	limitArg := placeholder(len(args))

	query := fmt.Sprintf(`
		SELECT id, profile_id, content_type, content_id, field_name, locale, metadata,
			embedding %s %s AS distance
		FROM embedding_vector
		WHERE %s
		ORDER BY embedding %s %s
		LIMIT %s
	`, op, placeholder(1), strings.Join(where, " AND "), op, orderArg, limitArg)

	return query, args
}

// SearchVectors runs a ranked nearest-neighbor search ordered by ascending
// distance under the metric's operator.
func (d *DB) SearchVectors(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.VectorSearchResult, error) {
	query, args := buildVectorSearch(opts)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search vectors")
	}
	defer rows.Close()

	results := []*store.VectorSearchResult{}
	for rows.Next() {
		var result store.VectorSearchResult
		var metadataJSON []byte
		if err := rows.Scan(
			&result.ID,
			&result.ProfileID,
			&result.ContentType,
			&result.ContentID,
			&result.FieldName,
			&result.Locale,
			&metadataJSON,
			&result.Distance,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan vector search result")
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &result.Metadata); err != nil {
				return nil, errors.Wrap(err, "failed to unmarshal vector metadata")
			}
		}
		result.SimilarityScore = opts.Metric.Similarity(result.Distance)
		results = append(results, &result)
	}
	return results, rows.Err()
}

// DeleteVectorsByContent removes all vector records for a content item across
// every profile and field.
func (d *DB) DeleteVectorsByContent(ctx context.Context, contentType, contentID string) error {
	_, err := d.db.ExecContext(ctx, `
		DELETE FROM embedding_vector
		WHERE content_type = `+placeholder(1)+` AND content_id = `+placeholder(2),
		contentType, contentID)
	return errors.Wrap(err, "failed to delete vectors by content")
}
