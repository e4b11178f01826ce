package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/contentvec/contentvec/store"
)

// LogSearchQuery appends a query-history entry and its ranked results in one
// transaction, so a logged query never appears without the results it had.
func (d *DB) LogSearchQuery(ctx context.Context, log *store.LogSearchQuery) (*store.SearchQuery, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	query := &store.SearchQuery{
		ProfileID: log.ProfileID,
		QueryText: log.QueryText,
		K:         log.K,
	}
	var profileID any
	if log.ProfileID != nil {
		profileID = *log.ProfileID
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO search_query (profile_id, query_text, k)
		VALUES (`+placeholders(3)+`)
		RETURNING id, created_at
	`, profileID, log.QueryText, log.K).Scan(&query.ID, &query.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to log search query")
	}

	resultStmt := `
		INSERT INTO search_query_result (query_id, content_type, content_id, field_name, locale, similarity_score, metadata, position)
		VALUES (` + placeholders(8) + `)
		RETURNING id
	`
	for _, result := range log.Results {
		metadata := result.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadataJSON, err := json.Marshal(metadata)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal result metadata")
		}

		logged := &store.SearchQueryResult{
			QueryID:         query.ID,
			ContentType:     result.ContentType,
			ContentID:       result.ContentID,
			FieldName:       result.FieldName,
			Locale:          result.Locale,
			SimilarityScore: result.SimilarityScore,
			Metadata:        metadata,
			Position:        result.Position,
		}
		err = tx.QueryRowContext(ctx, resultStmt,
			query.ID,
			result.ContentType,
			result.ContentID,
			result.FieldName,
			result.Locale,
			result.SimilarityScore,
			metadataJSON,
			result.Position,
		).Scan(&logged.ID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to log search result")
		}
		query.Results = append(query.Results, logged)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit search query log")
	}
	return query, nil
}

// ListSearchQueries lists logged queries newest-first with their results.
func (d *DB) ListSearchQueries(ctx context.Context, find *store.FindSearchQuery) ([]*store.SearchQuery, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ProfileID != nil {
		args = append(args, *find.ProfileID)
		where = append(where, "profile_id = "+placeholder(len(args)))
	}

	limit := find.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	limitArg := placeholder(len(args))
	args = append(args, find.Offset)
	offsetArg := placeholder(len(args))

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, profile_id, query_text, k, created_at
		FROM search_query
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at DESC
		LIMIT `+limitArg+` OFFSET `+offsetArg,
		args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list search queries")
	}
	defer rows.Close()

	list := []*store.SearchQuery{}
	for rows.Next() {
		var query store.SearchQuery
		var profileID sql.NullString
		if err := rows.Scan(&query.ID, &profileID, &query.QueryText, &query.K, &query.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan search query")
		}
		if profileID.Valid {
			query.ProfileID = &profileID.String
		}
		list = append(list, &query)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, query := range list {
		if err := d.loadSearchQueryResults(ctx, query); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (d *DB) loadSearchQueryResults(ctx context.Context, query *store.SearchQuery) error {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, query_id, content_type, content_id, field_name, locale, similarity_score, metadata, position
		FROM search_query_result
		WHERE query_id = `+placeholder(1)+`
		ORDER BY position ASC
	`, query.ID)
	if err != nil {
		return errors.Wrap(err, "failed to list search query results")
	}
	defer rows.Close()

	for rows.Next() {
		var result store.SearchQueryResult
		var metadataJSON []byte
		if err := rows.Scan(
			&result.ID,
			&result.QueryID,
			&result.ContentType,
			&result.ContentID,
			&result.FieldName,
			&result.Locale,
			&result.SimilarityScore,
			&metadataJSON,
			&result.Position,
		); err != nil {
			return errors.Wrap(err, "failed to scan search query result")
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &result.Metadata); err != nil {
				return errors.Wrap(err, "failed to unmarshal result metadata")
			}
		}
		query.Results = append(query.Results, &result)
	}
	return rows.Err()
}
