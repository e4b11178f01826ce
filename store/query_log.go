package store

import (
	"context"
	"time"
)

// SearchQuery is one logged semantic search. Append-only.
type SearchQuery struct {
	ID        string
	ProfileID *string
	QueryText string
	K         int32
	CreatedAt time.Time

	// Results is populated on reads, ordered by position.
	Results []*SearchQueryResult
}

// SearchQueryResult is one ranked content identifier a logged query returned.
type SearchQueryResult struct {
	ID              string
	QueryID         string
	ContentType     string
	ContentID       string
	FieldName       string
	Locale          string
	SimilarityScore float64
	Metadata        map[string]any
	Position        int32
}

// LogSearchQuery records a query and its ranked results in one transaction.
type LogSearchQuery struct {
	ProfileID *string
	QueryText string
	K         int32
	Results   []*SearchQueryResult
}

// FindSearchQuery is the find condition for query history.
type FindSearchQuery struct {
	ProfileID *string
	Limit     int
	Offset    int
}

// LogSearchQuery appends a query-history entry with its ranked results.
func (s *Store) LogSearchQuery(ctx context.Context, log *LogSearchQuery) (*SearchQuery, error) {
	return s.driver.LogSearchQuery(ctx, log)
}

// ListSearchQueries lists logged queries newest-first, each with its results.
func (s *Store) ListSearchQueries(ctx context.Context, find *FindSearchQuery) ([]*SearchQuery, error) {
	return s.driver.ListSearchQueries(ctx, find)
}
