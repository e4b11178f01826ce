// Package v1 exposes the embedding profile, indexing and semantic search
// operations over HTTP.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/contentvec/contentvec/embedding"
	"github.com/contentvec/contentvec/indexer"
	"github.com/contentvec/contentvec/internal/profile"
	"github.com/contentvec/contentvec/search"
	"github.com/contentvec/contentvec/store"
)

type APIV1Service struct {
	Profile *profile.Profile
	Store   *store.Store
	Engine  *search.Engine
	Runner  *indexer.Runner

	embedder embedding.Service
}

func NewAPIV1Service(profile *profile.Profile, store *store.Store, engine *search.Engine, runner *indexer.Runner, embedder embedding.Service) *APIV1Service {
	return &APIV1Service{
		Profile:  profile,
		Store:    store,
		Engine:   engine,
		Runner:   runner,
		embedder: embedder,
	}
}

// RegisterRoutes mounts all embedding routes under /api/v1.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	group := e.Group("/api/v1/embeddings")

	group.POST("/profiles", s.CreateProfile)
	group.GET("/profiles", s.ListProfiles)
	group.GET("/profiles/:id", s.GetProfile)
	group.DELETE("/profiles/:id", s.DeleteProfile)
	group.POST("/profiles/:id/reindex", s.ReindexProfile)

	group.POST("/query", s.Query)
	group.GET("/:slug/query", s.QueryBySlug)
	group.POST("/generate", s.Generate)
	group.DELETE("/content/:contentType/:contentId", s.DeleteContentVectors)

	group.GET("/jobs", s.ListJobs)
	group.GET("/queries", s.ListQueries)
}

// envelope is the uniform response shape: payload under data, request-scoped
// extras under meta.
type envelope struct {
	Data any            `json:"data"`
	Meta map[string]any `json:"meta,omitempty"`
}

func respond(c echo.Context, status int, data any) error {
	return c.JSON(status, envelope{Data: data})
}

func respondWithMeta(c echo.Context, status int, data any, meta map[string]any) error {
	return c.JSON(status, envelope{Data: data, Meta: meta})
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// respondError maps the error taxonomy onto HTTP statuses. Unclassified
// errors surface as 500 with a generic kind; detail stays in the log.
func respondError(c echo.Context, err error) error {
	kind := "InternalError"
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, store.ErrValidation), errors.Is(err, store.ErrInvalidRange),
		errors.Is(err, store.ErrNoFieldsConfigured), errors.Is(err, embedding.ErrInvalidInput):
		kind = "ValidationError"
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		kind = "NotFoundError"
		status = http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		kind = "ConflictError"
		status = http.StatusConflict
	case errors.Is(err, embedding.ErrRateLimited):
		kind = "RateLimitError"
		status = http.StatusTooManyRequests
	case errors.Is(err, embedding.ErrUnauthenticated):
		kind = "ProviderAuthError"
		status = http.StatusBadGateway
	}

	return c.JSON(status, errorBody{Error: errorDetail{
		Kind:    kind,
		Message: err.Error(),
	}})
}
