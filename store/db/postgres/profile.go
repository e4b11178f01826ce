package postgres

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/contentvec/contentvec/store"
)

// CreateProfile creates the profile row and its field rows in one transaction
// so a profile without fields is never observable.
func (d *DB) CreateProfile(ctx context.Context, create *store.CreateProfile) (*store.Profile, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	autoSync := true
	if create.AutoSync != nil {
		autoSync = *create.AutoSync
	}

	profile := &store.Profile{
		Name:               create.Name,
		Slug:               create.Slug,
		Description:        create.Description,
		Enabled:            true,
		AutoSync:           autoSync,
		EmbeddingDimension: create.EmbeddingDimension,
		DistanceMetric:     create.DistanceMetric,
	}

	stmt := `
		INSERT INTO embedding_profile (name, slug, description, enabled, auto_sync, embedding_dimension, distance_metric)
		VALUES (` + placeholders(7) + `)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, stmt,
		profile.Name,
		profile.Slug,
		profile.Description,
		profile.Enabled,
		profile.AutoSync,
		profile.EmbeddingDimension,
		string(profile.DistanceMetric),
	).Scan(&profile.ID, &profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errors.Wrapf(store.ErrConflict, "profile slug %q already exists", profile.Slug)
		}
		return nil, errors.Wrap(err, "failed to create profile")
	}

	fieldStmt := `
		INSERT INTO embedding_profile_field (profile_id, content_type, field_name, enabled, weight)
		VALUES (` + placeholders(5) + `)
		RETURNING id, created_at, updated_at
	`
	for _, create := range create.Fields {
		enabled := true
		if create.Enabled != nil {
			enabled = *create.Enabled
		}
		weight := 1.0
		if create.Weight != nil {
			weight = *create.Weight
		}

		field := &store.ProfileField{
			ProfileID:   profile.ID,
			ContentType: create.ContentType,
			FieldName:   create.FieldName,
			Enabled:     enabled,
			Weight:      weight,
		}
		err := tx.QueryRowContext(ctx, fieldStmt,
			field.ProfileID,
			field.ContentType,
			field.FieldName,
			field.Enabled,
			field.Weight,
		).Scan(&field.ID, &field.CreatedAt, &field.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, errors.Wrapf(store.ErrConflict, "duplicate field %s.%s", field.ContentType, field.FieldName)
			}
			return nil, errors.Wrap(err, "failed to create profile field")
		}
		profile.Fields = append(profile.Fields, field)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit profile")
	}
	return profile, nil
}

const profileColumns = `id, name, slug, description, enabled, auto_sync, embedding_dimension, distance_metric, created_at, updated_at`

func scanProfile(row interface{ Scan(...any) error }) (*store.Profile, error) {
	var profile store.Profile
	var metric string
	err := row.Scan(
		&profile.ID,
		&profile.Name,
		&profile.Slug,
		&profile.Description,
		&profile.Enabled,
		&profile.AutoSync,
		&profile.EmbeddingDimension,
		&metric,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	profile.DistanceMetric = store.DistanceMetric(metric)
	return &profile, nil
}

// GetProfile returns the profile with its fields, or nil if absent.
func (d *DB) GetProfile(ctx context.Context, id string) (*store.Profile, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM embedding_profile WHERE id = `+placeholder(1), id)
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidUUID(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get profile")
	}
	if err := d.loadProfileFields(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// GetProfileBySlug returns the profile with its fields, or nil if absent.
func (d *DB) GetProfileBySlug(ctx context.Context, slug string) (*store.Profile, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM embedding_profile WHERE slug = `+placeholder(1), slug)
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get profile by slug")
	}
	if err := d.loadProfileFields(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (d *DB) loadProfileFields(ctx context.Context, profile *store.Profile) error {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, profile_id, content_type, field_name, enabled, weight, created_at, updated_at
		FROM embedding_profile_field
		WHERE profile_id = `+placeholder(1)+`
		ORDER BY content_type, field_name
	`, profile.ID)
	if err != nil {
		return errors.Wrap(err, "failed to list profile fields")
	}
	defer rows.Close()

	for rows.Next() {
		var field store.ProfileField
		if err := rows.Scan(
			&field.ID,
			&field.ProfileID,
			&field.ContentType,
			&field.FieldName,
			&field.Enabled,
			&field.Weight,
			&field.CreatedAt,
			&field.UpdatedAt,
		); err != nil {
			return errors.Wrap(err, "failed to scan profile field")
		}
		profile.Fields = append(profile.Fields, &field)
	}
	return rows.Err()
}

// ListProfiles lists all profiles ordered newest-first, without fields.
func (d *DB) ListProfiles(ctx context.Context) ([]*store.Profile, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM embedding_profile ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list profiles")
	}
	defer rows.Close()

	list := []*store.Profile{}
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan profile")
		}
		list = append(list, profile)
	}
	return list, rows.Err()
}

// DeleteProfile removes vectors, fields, then the profile row in one
// transaction. The explicit dependency order mirrors the cascade.
func (d *DB) DeleteProfile(ctx context.Context, id string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM embedding_vector WHERE profile_id = `+placeholder(1), id); err != nil {
		if isInvalidUUID(err) {
			return errors.Wrapf(store.ErrNotFound, "profile %s", id)
		}
		return errors.Wrap(err, "failed to delete profile vectors")
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM embedding_profile_field WHERE profile_id = `+placeholder(1), id); err != nil {
		return errors.Wrap(err, "failed to delete profile fields")
	}
	result, err := tx.ExecContext(ctx,
		`DELETE FROM embedding_profile WHERE id = `+placeholder(1), id)
	if err != nil {
		return errors.Wrap(err, "failed to delete profile")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return errors.Wrapf(store.ErrNotFound, "profile %s", id)
	}

	return errors.Wrap(tx.Commit(), "failed to commit profile delete")
}
