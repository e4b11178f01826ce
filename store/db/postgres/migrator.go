package postgres

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Migrate creates the pgvector extension and the tables the core depends on.
// Statements are idempotent so startup can run them unconditionally.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return errors.Wrap(err, "pgvector extension unavailable: ensure PostgreSQL has pgvector installed")
	}

	dimension := d.profile.EmbeddingDimension

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS embedding_profile (
			id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
			name varchar(255) NOT NULL,
			slug varchar(255) UNIQUE NOT NULL,
			description text NOT NULL DEFAULT '',
			enabled boolean NOT NULL DEFAULT true,
			auto_sync boolean NOT NULL DEFAULT true,
			embedding_dimension integer NOT NULL DEFAULT 1536,
			distance_metric varchar(16) NOT NULL DEFAULT 'cosine',
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS embedding_profile_field (
			id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
			profile_id uuid NOT NULL REFERENCES embedding_profile(id) ON DELETE CASCADE,
			content_type varchar(255) NOT NULL,
			field_name varchar(255) NOT NULL,
			enabled boolean NOT NULL DEFAULT true,
			weight numeric(6,3) NOT NULL DEFAULT 1.0,
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz NOT NULL DEFAULT now(),
			UNIQUE (profile_id, content_type, field_name)
		)`,
		// locale '' is the "no locale" sentinel: NOT NULL keeps the natural-key
		// unique constraint effective for unlocalized content, which nullable
		// locale columns would break (NULL <> NULL under SQL uniqueness).
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS embedding_vector (
			id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
			profile_id uuid NOT NULL REFERENCES embedding_profile(id) ON DELETE CASCADE,
			content_type varchar(255) NOT NULL,
			content_id varchar(255) NOT NULL,
			field_name varchar(255) NOT NULL,
			locale varchar(10) NOT NULL DEFAULT '',
			embedding vector(%d) NOT NULL,
			metadata jsonb NOT NULL DEFAULT '{}'::jsonb,
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz NOT NULL DEFAULT now(),
			UNIQUE (profile_id, content_type, content_id, field_name, locale)
		)`, dimension),
		`CREATE INDEX IF NOT EXISTS idx_vector_profile ON embedding_vector (profile_id)`,
		`CREATE INDEX IF NOT EXISTS idx_vector_content ON embedding_vector (content_type, content_id)`,
		`CREATE INDEX IF NOT EXISTS idx_vector_metadata ON embedding_vector USING GIN (metadata)`,
		`CREATE INDEX IF NOT EXISTS idx_vector_embedding_hnsw_cosine
			ON embedding_vector USING hnsw (embedding vector_cosine_ops)
			WITH (m = 16, ef_construction = 64)`,
		`CREATE TABLE IF NOT EXISTS indexing_job (
			id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
			profile_id uuid REFERENCES embedding_profile(id) ON DELETE SET NULL,
			type varchar(50) NOT NULL,
			status varchar(50) NOT NULL DEFAULT 'pending',
			total_items integer,
			processed_items integer NOT NULL DEFAULT 0,
			failed_items integer NOT NULL DEFAULT 0,
			params jsonb NOT NULL DEFAULT '{}'::jsonb,
			error_message text,
			started_at timestamptz,
			finished_at timestamptz,
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_job_profile ON indexing_job (profile_id)`,
		`CREATE INDEX IF NOT EXISTS idx_job_status ON indexing_job (status)`,
		`CREATE INDEX IF NOT EXISTS idx_job_created ON indexing_job (created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS search_query (
			id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
			profile_id uuid REFERENCES embedding_profile(id) ON DELETE SET NULL,
			query_text text NOT NULL,
			k integer NOT NULL DEFAULT 10,
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_query_profile ON search_query (profile_id)`,
		`CREATE INDEX IF NOT EXISTS idx_query_created ON search_query (created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS search_query_result (
			id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
			query_id uuid NOT NULL REFERENCES search_query(id) ON DELETE CASCADE,
			content_type varchar(255) NOT NULL,
			content_id varchar(255) NOT NULL,
			field_name varchar(255) NOT NULL,
			locale varchar(10) NOT NULL DEFAULT '',
			similarity_score numeric(10,6) NOT NULL,
			metadata jsonb NOT NULL DEFAULT '{}'::jsonb,
			position integer NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_query_result_query ON search_query_result (query_id)`,
	}

	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to run migration statement")
		}
	}
	return nil
}
