package v1

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/contentvec/contentvec/store"
)

type profileFieldPayload struct {
	ContentType string   `json:"contentType"`
	FieldName   string   `json:"fieldName"`
	Enabled     *bool    `json:"enabled,omitempty"`
	Weight      *float64 `json:"weight,omitempty"`
}

type createProfileRequest struct {
	Name               string                `json:"name"`
	Slug               string                `json:"slug"`
	Description        string                `json:"description"`
	AutoSync           *bool                 `json:"autoSync,omitempty"`
	EmbeddingDimension int32                 `json:"embeddingDimension,omitempty"`
	DistanceMetric     string                `json:"distanceMetric,omitempty"`
	Fields             []profileFieldPayload `json:"fields"`
}

type profileFieldResponse struct {
	ID          string  `json:"id"`
	ContentType string  `json:"contentType"`
	FieldName   string  `json:"fieldName"`
	Enabled     bool    `json:"enabled"`
	Weight      float64 `json:"weight"`
}

type profileResponse struct {
	ID                 string                 `json:"id"`
	Name               string                 `json:"name"`
	Slug               string                 `json:"slug"`
	Description        string                 `json:"description"`
	Enabled            bool                   `json:"enabled"`
	AutoSync           bool                   `json:"autoSync"`
	EmbeddingDimension int32                  `json:"embeddingDimension"`
	DistanceMetric     string                 `json:"distanceMetric"`
	CreatedAt          time.Time              `json:"createdAt"`
	UpdatedAt          time.Time              `json:"updatedAt"`
	Fields             []profileFieldResponse `json:"fields,omitempty"`
}

func convertProfile(profile *store.Profile) profileResponse {
	resp := profileResponse{
		ID:                 profile.ID,
		Name:               profile.Name,
		Slug:               profile.Slug,
		Description:        profile.Description,
		Enabled:            profile.Enabled,
		AutoSync:           profile.AutoSync,
		EmbeddingDimension: profile.EmbeddingDimension,
		DistanceMetric:     string(profile.DistanceMetric),
		CreatedAt:          profile.CreatedAt,
		UpdatedAt:          profile.UpdatedAt,
	}
	for _, field := range profile.Fields {
		resp.Fields = append(resp.Fields, profileFieldResponse{
			ID:          field.ID,
			ContentType: field.ContentType,
			FieldName:   field.FieldName,
			Enabled:     field.Enabled,
			Weight:      field.Weight,
		})
	}
	return resp
}

// CreateProfile creates a profile with its field declarations. When autoSync
// is set, an initial index run is enqueued before the response returns.
func (s *APIV1Service) CreateProfile(c echo.Context) error {
	ctx := c.Request().Context()

	request := &createProfileRequest{}
	if err := c.Bind(request); err != nil {
		return respondError(c, errors.Wrap(store.ErrValidation, "malformed request body"))
	}

	create := &store.CreateProfile{
		Name:               request.Name,
		Slug:               request.Slug,
		Description:        request.Description,
		AutoSync:           request.AutoSync,
		EmbeddingDimension: request.EmbeddingDimension,
		DistanceMetric:     store.DistanceMetric(request.DistanceMetric),
	}
	for _, field := range request.Fields {
		create.Fields = append(create.Fields, store.CreateProfileField{
			ContentType: field.ContentType,
			FieldName:   field.FieldName,
			Enabled:     field.Enabled,
			Weight:      field.Weight,
		})
	}

	profile, err := s.Store.CreateProfile(ctx, create)
	if err != nil {
		return respondError(c, err)
	}

	meta := map[string]any{}
	if profile.AutoSync {
		job, err := s.Runner.Enqueue(ctx, profile.ID, store.JobTypeIndex)
		if err != nil {
			slog.Error("failed to enqueue initial index run", "profile", profile.Slug, "error", err)
		} else {
			meta["jobId"] = job.ID
		}
	}

	return respondWithMeta(c, http.StatusCreated, convertProfile(profile), meta)
}

func (s *APIV1Service) ListProfiles(c echo.Context) error {
	profiles, err := s.Store.ListProfiles(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}

	responses := []profileResponse{}
	for _, profile := range profiles {
		responses = append(responses, convertProfile(profile))
	}
	return respondWithMeta(c, http.StatusOK, responses, map[string]any{"total": len(responses)})
}

func (s *APIV1Service) GetProfile(c echo.Context) error {
	profile, err := s.Store.GetProfile(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	if profile == nil {
		return respondError(c, errors.Wrapf(store.ErrNotFound, "profile %s", c.Param("id")))
	}
	return respond(c, http.StatusOK, convertProfile(profile))
}

// DeleteProfile removes the profile, its field declarations and every vector
// indexed under it.
func (s *APIV1Service) DeleteProfile(c echo.Context) error {
	if err := s.Store.DeleteProfile(c.Request().Context(), c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, true)
}

// ReindexProfile enqueues a full re-embed of the profile's content and
// returns the job id without waiting for the run.
func (s *APIV1Service) ReindexProfile(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	profile, err := s.Store.GetProfile(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if profile == nil {
		return respondError(c, errors.Wrapf(store.ErrNotFound, "profile %s", id))
	}

	job, err := s.Runner.Enqueue(ctx, profile.ID, store.JobTypeReindex)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusAccepted, map[string]any{
		"jobId":  job.ID,
		"status": string(job.Status),
	})
}
