package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// DistanceMetric selects the pgvector operator used to rank candidates.
type DistanceMetric string

const (
	DistanceCosine DistanceMetric = "cosine"
	DistanceL2     DistanceMetric = "l2"
	DistanceDot    DistanceMetric = "dot"
)

func (m DistanceMetric) Valid() bool {
	switch m {
	case DistanceCosine, DistanceL2, DistanceDot:
		return true
	}
	return false
}

// Operator returns the pgvector distance operator for the metric.
// Ordering by this operator directly lets an HNSW/IVFFlat index drive the scan.
func (m DistanceMetric) Operator() string {
	switch m {
	case DistanceL2:
		return "<->"
	case DistanceDot:
		return "<#>"
	default:
		return "<=>"
	}
}

// Similarity derives a bounded similarity score from a distance.
// Cosine: 1 - distance. Dot: distance * -1 (the <#> operator returns the
// negative inner product). L2 has no bounded similarity and returns nil;
// callers report raw distance only for that metric.
func (m DistanceMetric) Similarity(distance float64) *float64 {
	var score float64
	switch m {
	case DistanceCosine:
		score = 1 - distance
	case DistanceDot:
		score = distance * -1
	default:
		return nil
	}
	return &score
}

// VectorRecord is one stored embedding. The natural key is
// (profile_id, content_type, content_id, field_name, locale), with the empty
// string standing in for "no locale" so the unique constraint can see it.
type VectorRecord struct {
	ID          string
	ProfileID   string
	ContentType string
	ContentID   string
	FieldName   string
	Locale      string
	Embedding   []float32
	Metadata    map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UpsertVector inserts or replaces the embedding for one natural key.
type UpsertVector struct {
	ProfileID   string
	ContentType string
	ContentID   string
	FieldName   string
	Locale      string
	Embedding   []float32
	Metadata    map[string]any
}

func (u *UpsertVector) Validate() error {
	if u.ProfileID == "" {
		return errors.Wrap(ErrValidation, "profile_id is required")
	}
	if u.ContentType == "" {
		return errors.Wrap(ErrValidation, "content_type is required")
	}
	if u.ContentID == "" {
		return errors.Wrap(ErrValidation, "content_id is required")
	}
	if u.FieldName == "" {
		return errors.Wrap(ErrValidation, "field_name is required")
	}
	if len(u.Embedding) == 0 {
		return errors.Wrap(ErrValidation, "embedding cannot be empty")
	}
	return nil
}

// VectorSearchOptions parameterizes a nearest-neighbor search.
type VectorSearchOptions struct {
	Vector      []float32
	Metric      DistanceMetric
	Limit       int
	ProfileID   *string
	ContentType *string
	// MetadataFilters are exact-match equality constraints on scalar metadata
	// keys, ANDed together. A nil value means "key is null/absent".
	MetadataFilters map[string]any
	// MinSimilarity floors the derived similarity score. Only meaningful for
	// cosine and dot; ignored for l2.
	MinSimilarity *float64
}

// ValidateRanges checks everything except the query vector and fills
// defaults. Callers that embed the query text run this first, so a bad k or
// minSimilarity is rejected before any provider call.
func (o *VectorSearchOptions) ValidateRanges() error {
	if o.Metric == "" {
		o.Metric = DistanceCosine
	}
	if !o.Metric.Valid() {
		return errors.Wrapf(ErrValidation, "unknown distance metric: %q", o.Metric)
	}
	if o.Limit == 0 {
		o.Limit = 10
	}
	if o.Limit < 1 || o.Limit > 1000 {
		return errors.Wrapf(ErrInvalidRange, "k must be between 1 and 1000: %d", o.Limit)
	}
	if o.MinSimilarity != nil && (*o.MinSimilarity < 0 || *o.MinSimilarity > 1) {
		return errors.Wrapf(ErrInvalidRange, "minSimilarity must be between 0 and 1: %v", *o.MinSimilarity)
	}
	return nil
}

// Validate validates the options and fills defaults.
func (o *VectorSearchOptions) Validate() error {
	if len(o.Vector) == 0 {
		return errors.Wrap(ErrValidation, "query vector cannot be empty")
	}
	return o.ValidateRanges()
}

// VectorSearchResult is one ranked hit. SimilarityScore is nil under the l2
// metric, which has no bounded similarity; Distance is always populated.
type VectorSearchResult struct {
	ID              string
	ProfileID       string
	ContentType     string
	ContentID       string
	FieldName       string
	Locale          string
	Metadata        map[string]any
	Distance        float64
	SimilarityScore *float64
}

// UpsertVector inserts or replaces the embedding for the given natural key in
// a single statement. Conflicting concurrent writes on the same key serialize
// on the store's unique constraint; no application locking is needed.
func (s *Store) UpsertVector(ctx context.Context, upsert *UpsertVector) (*VectorRecord, error) {
	if err := upsert.Validate(); err != nil {
		return nil, err
	}
	return s.driver.UpsertVector(ctx, upsert)
}

// SearchVectors runs a ranked nearest-neighbor search ordered by ascending
// distance under the chosen operator.
func (s *Store) SearchVectors(ctx context.Context, opts *VectorSearchOptions) ([]*VectorSearchResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return s.driver.SearchVectors(ctx, opts)
}

// DeleteVectorsByContent removes all vector records for a content item across
// every profile and field. Driven by the host's content-deletion signal.
func (s *Store) DeleteVectorsByContent(ctx context.Context, contentType, contentID string) error {
	return s.driver.DeleteVectorsByContent(ctx, contentType, contentID)
}
