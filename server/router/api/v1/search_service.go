package v1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/contentvec/contentvec/search"
	"github.com/contentvec/contentvec/store"
)

type queryRequest struct {
	Query          string         `json:"query"`
	ProfileID      string         `json:"profileId,omitempty"`
	ContentType    string         `json:"contentType,omitempty"`
	K              int            `json:"k,omitempty"`
	DistanceMetric string         `json:"distanceMetric,omitempty"`
	Filters        map[string]any `json:"filters,omitempty"`
	MinSimilarity  *float64       `json:"minSimilarity,omitempty"`
	LogQuery       *bool          `json:"logQuery,omitempty"`
}

type queryResult struct {
	ContentType     string         `json:"contentType"`
	ContentID       string         `json:"contentId"`
	FieldName       string         `json:"fieldName"`
	Locale          string         `json:"locale,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Distance        float64        `json:"distance"`
	SimilarityScore *float64       `json:"similarityScore,omitempty"`
}

func convertResults(results []*search.Result) []queryResult {
	converted := []queryResult{}
	for _, result := range results {
		converted = append(converted, queryResult{
			ContentType:     result.ContentType,
			ContentID:       result.ContentID,
			FieldName:       result.FieldName,
			Locale:          result.Locale,
			Metadata:        result.Metadata,
			Distance:        result.Distance,
			SimilarityScore: result.SimilarityScore,
		})
	}
	return converted
}

// Query runs a semantic search from a JSON body.
func (s *APIV1Service) Query(c echo.Context) error {
	request := &queryRequest{}
	if err := c.Bind(request); err != nil {
		return respondError(c, errors.Wrap(store.ErrValidation, "malformed request body"))
	}

	results, err := s.Engine.Search(c.Request().Context(), &search.Request{
		ProfileID:       request.ProfileID,
		Query:           request.Query,
		K:               request.K,
		Metric:          store.DistanceMetric(request.DistanceMetric),
		ContentType:     request.ContentType,
		MetadataFilters: request.Filters,
		MinSimilarity:   request.MinSimilarity,
		LogQuery:        request.LogQuery,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondWithMeta(c, http.StatusOK, convertResults(results), map[string]any{"total": len(results)})
}

// QueryBySlug runs a search against one profile addressed by slug, with
// parameters in the query string. Unknown slugs fall back to a name match.
func (s *APIV1Service) QueryBySlug(c echo.Context) error {
	ctx := c.Request().Context()
	slug := c.Param("slug")

	profile, err := s.Store.GetProfileBySlug(ctx, slug)
	if err != nil {
		return respondError(c, err)
	}
	if profile == nil {
		profile, err = s.findProfileByName(c, slug)
		if err != nil {
			return respondError(c, err)
		}
	}
	if profile == nil {
		return respondError(c, errors.Wrapf(store.ErrNotFound, "profile %s", slug))
	}

	request := &search.Request{
		ProfileID: profile.ID,
		Query:     c.QueryParam("q"),
		Metric:    store.DistanceMetric(c.QueryParam("distanceMetric")),
	}
	if raw := c.QueryParam("k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil {
			return respondError(c, errors.Wrapf(store.ErrValidation, "k must be an integer: %q", raw))
		}
		request.K = k
	}
	if raw := c.QueryParam("minSimilarity"); raw != "" {
		min, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return respondError(c, errors.Wrapf(store.ErrValidation, "minSimilarity must be a number: %q", raw))
		}
		request.MinSimilarity = &min
	}

	results, err := s.Engine.Search(ctx, request)
	if err != nil {
		return respondError(c, err)
	}
	return respondWithMeta(c, http.StatusOK, convertResults(results), map[string]any{
		"profileId": profile.ID,
		"total":     len(results),
	})
}

func (s *APIV1Service) findProfileByName(c echo.Context, name string) (*store.Profile, error) {
	profiles, err := s.Store.ListProfiles(c.Request().Context())
	if err != nil {
		return nil, err
	}
	for _, profile := range profiles {
		if profile.Name == name {
			return s.Store.GetProfile(c.Request().Context(), profile.ID)
		}
	}
	return nil, nil
}

type generateRequest struct {
	ProfileID   string         `json:"profileId"`
	ContentType string         `json:"contentType"`
	ContentID   string         `json:"contentId"`
	FieldName   string         `json:"fieldName"`
	Locale      string         `json:"locale,omitempty"`
	Text        string         `json:"text"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Generate embeds one text and upserts it under the given natural key,
// bypassing the content source. Used for manual or host-driven single-unit
// updates.
func (s *APIV1Service) Generate(c echo.Context) error {
	ctx := c.Request().Context()

	request := &generateRequest{}
	if err := c.Bind(request); err != nil {
		return respondError(c, errors.Wrap(store.ErrValidation, "malformed request body"))
	}

	vector, err := s.embedder.Embed(ctx, request.Text)
	if err != nil {
		return respondError(c, err)
	}

	record, err := s.Store.UpsertVector(ctx, &store.UpsertVector{
		ProfileID:   request.ProfileID,
		ContentType: request.ContentType,
		ContentID:   request.ContentID,
		FieldName:   request.FieldName,
		Locale:      request.Locale,
		Embedding:   vector,
		Metadata:    request.Metadata,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, map[string]any{
		"id":        record.ID,
		"dimension": len(record.Embedding),
		"updatedAt": record.UpdatedAt,
	})
}

// DeleteContentVectors drops every vector indexed for one content item,
// across all profiles and fields. The host calls this when content is deleted
// or unpublished.
func (s *APIV1Service) DeleteContentVectors(c echo.Context) error {
	contentType := c.Param("contentType")
	contentID := c.Param("contentId")
	if contentType == "" || contentID == "" {
		return respondError(c, errors.Wrap(store.ErrValidation, "contentType and contentId are required"))
	}

	if err := s.Store.DeleteVectorsByContent(c.Request().Context(), contentType, contentID); err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, true)
}

type loggedQueryResult struct {
	ContentType     string         `json:"contentType"`
	ContentID       string         `json:"contentId"`
	FieldName       string         `json:"fieldName"`
	Locale          string         `json:"locale,omitempty"`
	SimilarityScore float64        `json:"similarityScore"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Position        int32          `json:"position"`
}

type loggedQuery struct {
	ID        string              `json:"id"`
	ProfileID *string             `json:"profileId,omitempty"`
	QueryText string              `json:"queryText"`
	K         int32               `json:"k"`
	CreatedAt time.Time           `json:"createdAt"`
	Results   []loggedQueryResult `json:"results"`
}

// ListQueries returns the query history, newest first, each entry with its
// ranked results.
func (s *APIV1Service) ListQueries(c echo.Context) error {
	find := &store.FindSearchQuery{}
	if profileID := c.QueryParam("profileId"); profileID != "" {
		find.ProfileID = &profileID
	}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return respondError(c, errors.Wrapf(store.ErrValidation, "limit must be a positive integer: %q", raw))
		}
		find.Limit = limit
	}
	if raw := c.QueryParam("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return respondError(c, errors.Wrapf(store.ErrValidation, "offset must be a non-negative integer: %q", raw))
		}
		find.Offset = offset
	}

	queries, err := s.Store.ListSearchQueries(c.Request().Context(), find)
	if err != nil {
		return respondError(c, err)
	}

	converted := []loggedQuery{}
	for _, query := range queries {
		entry := loggedQuery{
			ID:        query.ID,
			ProfileID: query.ProfileID,
			QueryText: query.QueryText,
			K:         query.K,
			CreatedAt: query.CreatedAt,
			Results:   []loggedQueryResult{},
		}
		for _, result := range query.Results {
			entry.Results = append(entry.Results, loggedQueryResult{
				ContentType:     result.ContentType,
				ContentID:       result.ContentID,
				FieldName:       result.FieldName,
				Locale:          result.Locale,
				SimilarityScore: result.SimilarityScore,
				Metadata:        result.Metadata,
				Position:        result.Position,
			})
		}
		converted = append(converted, entry)
	}
	return respondWithMeta(c, http.StatusOK, converted, map[string]any{"total": len(converted)})
}
