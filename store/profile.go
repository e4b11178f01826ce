package store

import (
	"context"
	"regexp"
	"time"

	"github.com/pkg/errors"
)

// slugPattern is the allowed shape of a profile slug: lowercase kebab.
var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// DefaultEmbeddingDimension matches text-embedding-3-small.
const DefaultEmbeddingDimension = 1536

// Profile is a named configuration selecting which content fields to embed
// and under which similarity metric.
type Profile struct {
	ID                 string
	Name               string
	Slug               string
	Description        string
	Enabled            bool
	AutoSync           bool
	EmbeddingDimension int32
	DistanceMetric     DistanceMetric
	CreatedAt          time.Time
	UpdatedAt          time.Time

	// Fields is populated on single-profile reads.
	Fields []*ProfileField
}

// ProfileField declares exactly one indexable text locus: a field of a content
// type, addressed by name or by a dotted path into a nested structure.
type ProfileField struct {
	ID          string
	ProfileID   string
	ContentType string
	FieldName   string
	Enabled     bool
	Weight      float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateProfileField is one field declaration in a profile create request.
type CreateProfileField struct {
	ContentType string
	FieldName   string
	Enabled     *bool
	Weight      *float64
}

// CreateProfile is the create request for a profile and its fields.
type CreateProfile struct {
	Name               string
	Slug               string
	Description        string
	AutoSync           *bool
	EmbeddingDimension int32
	DistanceMetric     DistanceMetric
	Fields             []CreateProfileField
}

// Validate checks the request before any write and fills defaults.
func (c *CreateProfile) Validate() error {
	if c.Name == "" {
		return errors.Wrap(ErrValidation, "name is required")
	}
	if c.Slug == "" {
		return errors.Wrap(ErrValidation, "slug is required")
	}
	if !slugPattern.MatchString(c.Slug) {
		return errors.Wrapf(ErrValidation, "slug %q must contain only lowercase letters, numbers, and hyphens", c.Slug)
	}
	if len(c.Fields) == 0 {
		return errors.Wrap(ErrValidation, "fields must be a non-empty list")
	}
	for i, field := range c.Fields {
		if field.ContentType == "" {
			return errors.Wrapf(ErrValidation, "fields[%d]: content_type is required", i)
		}
		if field.FieldName == "" {
			return errors.Wrapf(ErrValidation, "fields[%d]: field_name is required", i)
		}
	}
	seen := make(map[[2]string]bool, len(c.Fields))
	for i, field := range c.Fields {
		key := [2]string{field.ContentType, field.FieldName}
		if seen[key] {
			return errors.Wrapf(ErrValidation, "fields[%d]: duplicate declaration for %s.%s", i, field.ContentType, field.FieldName)
		}
		seen[key] = true
	}
	if c.EmbeddingDimension == 0 {
		c.EmbeddingDimension = DefaultEmbeddingDimension
	}
	if c.EmbeddingDimension < 0 {
		return errors.Wrapf(ErrValidation, "embedding_dimension must be positive: %d", c.EmbeddingDimension)
	}
	if c.DistanceMetric == "" {
		c.DistanceMetric = DistanceCosine
	}
	if !c.DistanceMetric.Valid() {
		return errors.Wrapf(ErrValidation, "distance_metric must be one of cosine, l2, dot: %q", c.DistanceMetric)
	}
	return nil
}

// CreateProfile validates the request and creates the profile row and its
// field rows in one transaction. A duplicate slug yields ErrConflict.
func (s *Store) CreateProfile(ctx context.Context, create *CreateProfile) (*Profile, error) {
	if err := create.Validate(); err != nil {
		return nil, err
	}
	return s.driver.CreateProfile(ctx, create)
}

// GetProfile returns the profile with its fields, or nil if absent.
func (s *Store) GetProfile(ctx context.Context, id string) (*Profile, error) {
	return s.driver.GetProfile(ctx, id)
}

// GetProfileBySlug returns the profile with its fields, or nil if absent.
func (s *Store) GetProfileBySlug(ctx context.Context, slug string) (*Profile, error) {
	return s.driver.GetProfileBySlug(ctx, slug)
}

// ListProfiles lists all profiles ordered newest-first, without fields.
func (s *Store) ListProfiles(ctx context.Context) ([]*Profile, error) {
	return s.driver.ListProfiles(ctx)
}

// DeleteProfile removes the profile, its fields and its vectors atomically.
// Returns ErrNotFound if no such profile existed.
func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	return s.driver.DeleteProfile(ctx, id)
}
