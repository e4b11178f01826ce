// Package search embeds query text and runs ranked nearest-neighbor lookups
// against the vector store.
package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/contentvec/contentvec/embedding"
	"github.com/contentvec/contentvec/internal/metrics"
	"github.com/contentvec/contentvec/store"
)

// Request is one semantic search. ProfileID scopes candidates to one profile
// and selects its metric; empty means all profiles under Metric (default
// cosine).
type Request struct {
	ProfileID string
	Query     string
	K         int
	// Metric overrides the profile's distance metric when set.
	Metric store.DistanceMetric
	// ContentType narrows candidates to one content type. Empty means all.
	ContentType string
	// MetadataFilters are exact-match constraints on metadata keys, ANDed.
	// A nil value matches records where the key is absent.
	MetadataFilters map[string]any
	// MinSimilarity floors the derived similarity score. Cosine and dot only.
	MinSimilarity *float64
	// LogQuery controls the history write. Unset means enabled.
	LogQuery *bool
}

func (r *Request) logEnabled() bool {
	return r.LogQuery == nil || *r.LogQuery
}

// Result is one ranked hit. SimilarityScore is nil under the l2 metric.
type Result struct {
	ContentType     string
	ContentID       string
	FieldName       string
	Locale          string
	Metadata        map[string]any
	Distance        float64
	SimilarityScore *float64
}

// Engine is the read path: query text in, ranked content identifiers out.
type Engine struct {
	store    *store.Store
	embedder embedding.Service
	exporter *metrics.Exporter
}

// NewEngine creates an Engine. exporter may be nil.
func NewEngine(st *store.Store, embedder embedding.Service, exporter *metrics.Exporter) *Engine {
	return &Engine{
		store:    st,
		embedder: embedder,
		exporter: exporter,
	}
}

// Search validates the request, embeds the query under the profile's metric
// and returns hits in ascending distance order. Unless the request opts out,
// the query and its results are appended to the history log after the outcome
// is known; a history write failure never fails the search.
func (e *Engine) Search(ctx context.Context, req *Request) ([]*Result, error) {
	if req.Query == "" || embedding.Normalize(req.Query) == "" {
		return nil, errors.Wrap(store.ErrValidation, "query text cannot be empty")
	}

	var profile *store.Profile
	if req.ProfileID != "" {
		var err error
		profile, err = e.store.GetProfile(ctx, req.ProfileID)
		if err != nil {
			return nil, err
		}
		if profile == nil {
			return nil, errors.Wrapf(store.ErrNotFound, "profile %s", req.ProfileID)
		}
	}

	results, err := e.search(ctx, profile, req)
	if err != nil {
		return nil, err
	}

	if req.logEnabled() {
		e.logQuery(ctx, profile, req, results)
	}
	return results, nil
}

// SearchBySlug resolves the profile by slug, then searches.
func (e *Engine) SearchBySlug(ctx context.Context, slug string, req *Request) ([]*Result, error) {
	profile, err := e.store.GetProfileBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, errors.Wrapf(store.ErrNotFound, "profile %s", slug)
	}
	req.ProfileID = profile.ID
	return e.Search(ctx, req)
}

func (e *Engine) search(ctx context.Context, profile *store.Profile, req *Request) ([]*Result, error) {
	start := time.Now()
	metric := req.Metric
	if metric == "" && profile != nil {
		metric = profile.DistanceMetric
	}

	opts := &store.VectorSearchOptions{
		Metric:          metric,
		Limit:           req.K,
		MetadataFilters: req.MetadataFilters,
		MinSimilarity:   req.MinSimilarity,
	}
	if profile != nil {
		opts.ProfileID = &profile.ID
	}
	if req.ContentType != "" {
		opts.ContentType = &req.ContentType
	}

	// Range checks come before the embedding call: a bad k or minSimilarity
	// must never cost a provider round-trip.
	if err := opts.ValidateRanges(); err != nil {
		return nil, err
	}
	metric = opts.Metric

	vector, err := e.embedQuery(ctx, profile, req.Query)
	if err != nil {
		e.observe(metric, start, err)
		return nil, err
	}
	opts.Vector = vector

	hits, err := e.store.SearchVectors(ctx, opts)
	e.observe(metric, start, err)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, &Result{
			ContentType:     hit.ContentType,
			ContentID:       hit.ContentID,
			FieldName:       hit.FieldName,
			Locale:          hit.Locale,
			Metadata:        hit.Metadata,
			Distance:        hit.Distance,
			SimilarityScore: hit.SimilarityScore,
		})
	}
	return results, nil
}

func (e *Engine) embedQuery(ctx context.Context, profile *store.Profile, query string) ([]float32, error) {
	if profile != nil && e.embedder.Dimensions() != int(profile.EmbeddingDimension) {
		return nil, errors.Wrapf(embedding.ErrDimensionMismatch,
			"profile %s expects %d dimensions, embedder produces %d",
			profile.Slug, profile.EmbeddingDimension, e.embedder.Dimensions())
	}

	start := time.Now()
	vector, err := e.embedder.Embed(ctx, query)
	if e.exporter != nil {
		e.exporter.ObserveEmbedding(time.Since(start).Seconds(), err)
	}
	return vector, err
}

// logQuery appends the query and its ranked results to the history in one
// transaction, positions 1-based in returned order.
func (e *Engine) logQuery(ctx context.Context, profile *store.Profile, req *Request, results []*Result) {
	logged := make([]*store.SearchQueryResult, 0, len(results))
	for i, result := range results {
		score := float64(0)
		if result.SimilarityScore != nil {
			score = *result.SimilarityScore
		}
		logged = append(logged, &store.SearchQueryResult{
			ContentType:     result.ContentType,
			ContentID:       result.ContentID,
			FieldName:       result.FieldName,
			Locale:          result.Locale,
			SimilarityScore: score,
			Metadata:        result.Metadata,
			Position:        int32(i + 1),
		})
	}

	k := req.K
	if k == 0 {
		k = 10
	}
	log := &store.LogSearchQuery{
		QueryText: req.Query,
		K:         int32(k),
		Results:   logged,
	}
	if profile != nil {
		log.ProfileID = &profile.ID
	}
	if _, err := e.store.LogSearchQuery(ctx, log); err != nil {
		slog.Error("failed to log search query", "error", err)
	}
}

func (e *Engine) observe(metric store.DistanceMetric, start time.Time, err error) {
	if e.exporter != nil {
		e.exporter.ObserveSearch(string(metric), time.Since(start).Seconds(), err)
	}
}
