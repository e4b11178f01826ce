package v1

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentvec/contentvec/content"
	"github.com/contentvec/contentvec/embedding"
	"github.com/contentvec/contentvec/indexer"
	"github.com/contentvec/contentvec/search"
	"github.com/contentvec/contentvec/store"
)

type fakeDriver struct {
	store.Driver

	mu             sync.Mutex
	profiles       map[string]*store.Profile
	jobs           map[string]*store.IndexingJob
	queries        []*store.SearchQuery
	hits           []*store.VectorSearchResult
	jobFinds       []*store.FindIndexingJob
	contentDeletes [][2]string
	nextID         int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		profiles: map[string]*store.Profile{},
		jobs:     map[string]*store.IndexingJob{},
	}
}

func (d *fakeDriver) CreateProfile(_ context.Context, create *store.CreateProfile) (*store.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, existing := range d.profiles {
		if existing.Slug == create.Slug {
			return nil, errors.Wrapf(store.ErrConflict, "slug %q already exists", create.Slug)
		}
	}
	d.nextID++
	autoSync := create.AutoSync != nil && *create.AutoSync
	profile := &store.Profile{
		ID:                 "prof-" + strings.Repeat("x", d.nextID),
		Name:               create.Name,
		Slug:               create.Slug,
		Description:        create.Description,
		Enabled:            true,
		AutoSync:           autoSync,
		EmbeddingDimension: create.EmbeddingDimension,
		DistanceMetric:     create.DistanceMetric,
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}
	for _, field := range create.Fields {
		enabled := field.Enabled == nil || *field.Enabled
		weight := 1.0
		if field.Weight != nil {
			weight = *field.Weight
		}
		profile.Fields = append(profile.Fields, &store.ProfileField{
			ProfileID:   profile.ID,
			ContentType: field.ContentType,
			FieldName:   field.FieldName,
			Enabled:     enabled,
			Weight:      weight,
		})
	}
	d.profiles[profile.ID] = profile
	return profile, nil
}

func (d *fakeDriver) GetProfile(_ context.Context, id string) (*store.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.profiles[id], nil
}

func (d *fakeDriver) GetProfileBySlug(_ context.Context, slug string) (*store.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, profile := range d.profiles {
		if profile.Slug == slug {
			return profile, nil
		}
	}
	return nil, nil
}

func (d *fakeDriver) ListProfiles(_ context.Context) ([]*store.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	profiles := []*store.Profile{}
	for _, profile := range d.profiles {
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

func (d *fakeDriver) DeleteProfile(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.profiles[id]; !ok {
		return errors.Wrapf(store.ErrNotFound, "profile %s", id)
	}
	delete(d.profiles, id)
	return nil
}

func (d *fakeDriver) SearchVectors(_ context.Context, _ *store.VectorSearchOptions) ([]*store.VectorSearchResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hits, nil
}

func (d *fakeDriver) UpsertVector(_ context.Context, upsert *store.UpsertVector) (*store.VectorRecord, error) {
	return &store.VectorRecord{
		ID:        "vec-1",
		ProfileID: upsert.ProfileID,
		Embedding: upsert.Embedding,
		UpdatedAt: time.Now(),
	}, nil
}

func (d *fakeDriver) DeleteVectorsByContent(_ context.Context, contentType, contentID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contentDeletes = append(d.contentDeletes, [2]string{contentType, contentID})
	return nil
}

func (d *fakeDriver) LogSearchQuery(_ context.Context, log *store.LogSearchQuery) (*store.SearchQuery, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	query := &store.SearchQuery{
		ID:        "query-1",
		ProfileID: log.ProfileID,
		QueryText: log.QueryText,
		K:         log.K,
		CreatedAt: time.Now(),
		Results:   log.Results,
	}
	d.queries = append(d.queries, query)
	return query, nil
}

func (d *fakeDriver) ListSearchQueries(_ context.Context, _ *store.FindSearchQuery) ([]*store.SearchQuery, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queries, nil
}

func (d *fakeDriver) CreateIndexingJob(_ context.Context, create *store.CreateIndexingJob) (*store.IndexingJob, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	job := &store.IndexingJob{
		ID:        "job-" + strings.Repeat("x", d.nextID),
		ProfileID: &create.ProfileID,
		Type:      create.Type,
		Status:    store.JobStatusPending,
		CreatedAt: time.Now(),
	}
	d.jobs[job.ID] = job
	return job, nil
}

func (d *fakeDriver) StartIndexingJob(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	job, ok := d.jobs[id]
	if !ok || job.Status != store.JobStatusPending {
		return errors.Wrap(store.ErrConflict, "job is not pending")
	}
	job.Status = store.JobStatusRunning
	return nil
}

func (d *fakeDriver) FinishIndexingJob(_ context.Context, finish *store.FinishIndexingJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	job, ok := d.jobs[finish.ID]
	if !ok || job.Status != store.JobStatusRunning {
		return errors.Wrap(store.ErrConflict, "job is not running")
	}
	job.Status = finish.Status
	return nil
}

func (d *fakeDriver) ListIndexingJobs(_ context.Context, find *store.FindIndexingJob) ([]*store.IndexingJob, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobFinds = append(d.jobFinds, find)
	jobs := []*store.IndexingJob{}
	for _, job := range d.jobs {
		if find.Status != nil && job.Status != *find.Status {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

type fakeEmbedder struct{ dims int }

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if embedding.Normalize(text) == "" {
		return nil, errors.Wrap(embedding.ErrInvalidInput, "text is empty after normalization")
	}
	return make([]float32, e.dims), nil
}

func (e *fakeEmbedder) Dimensions() int { return e.dims }

type fakeSource struct{}

func (s *fakeSource) ListItems(_ context.Context, _ string, _ content.ListOptions) ([]*content.Item, error) {
	return nil, nil
}

func newTestService(driver *fakeDriver) (*APIV1Service, *echo.Echo) {
	st := store.New(driver, nil)
	embedder := &fakeEmbedder{dims: 3}
	ix := indexer.New(st, embedder, &fakeSource{}, nil)
	runner := indexer.NewRunner(context.Background(), st, ix, nil, 2)
	engine := search.NewEngine(st, embedder, nil)

	service := NewAPIV1Service(nil, st, engine, runner, embedder)
	e := echo.New()
	service.RegisterRoutes(e)
	return service, e
}

func doRequest(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateProfile(t *testing.T) {
	driver := newFakeDriver()
	_, e := newTestService(driver)

	rec := doRequest(e, http.MethodPost, "/api/v1/embeddings/profiles", `{
		"name": "Articles",
		"slug": "articles",
		"fields": [{"contentType": "api::article.article", "fieldName": "body"}]
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"slug":"articles"`)
	assert.Contains(t, rec.Body.String(), `"embeddingDimension":1536`)
	assert.Contains(t, rec.Body.String(), `"distanceMetric":"cosine"`)
}

func TestCreateProfileValidation(t *testing.T) {
	driver := newFakeDriver()
	_, e := newTestService(driver)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing name", body: `{"slug": "a", "fields": [{"contentType": "t", "fieldName": "f"}]}`},
		{name: "bad slug", body: `{"name": "A", "slug": "Bad Slug", "fields": [{"contentType": "t", "fieldName": "f"}]}`},
		{name: "no fields", body: `{"name": "A", "slug": "a", "fields": []}`},
		{name: "duplicate fields", body: `{"name": "A", "slug": "a", "fields": [
			{"contentType": "t", "fieldName": "f"}, {"contentType": "t", "fieldName": "f"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(e, http.MethodPost, "/api/v1/embeddings/profiles", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "ValidationError")
		})
	}
}

func TestCreateProfileDuplicateSlugConflict(t *testing.T) {
	driver := newFakeDriver()
	_, e := newTestService(driver)

	body := `{"name": "A", "slug": "dup", "fields": [{"contentType": "t", "fieldName": "f"}]}`
	require.Equal(t, http.StatusCreated, doRequest(e, http.MethodPost, "/api/v1/embeddings/profiles", body).Code)

	rec := doRequest(e, http.MethodPost, "/api/v1/embeddings/profiles", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "ConflictError")
}

func TestGetProfileNotFound(t *testing.T) {
	_, e := newTestService(newFakeDriver())
	rec := doRequest(e, http.MethodGet, "/api/v1/embeddings/profiles/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NotFoundError")
}

func TestDeleteProfileNotFound(t *testing.T) {
	_, e := newTestService(newFakeDriver())
	rec := doRequest(e, http.MethodDelete, "/api/v1/embeddings/profiles/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReindexProfileReturnsJob(t *testing.T) {
	driver := newFakeDriver()
	_, e := newTestService(driver)

	created := doRequest(e, http.MethodPost, "/api/v1/embeddings/profiles", `{
		"name": "A", "slug": "a",
		"fields": [{"contentType": "t", "fieldName": "f"}]
	}`)
	require.Equal(t, http.StatusCreated, created.Code)

	driver.mu.Lock()
	var profileID string
	for id := range driver.profiles {
		profileID = id
	}
	driver.mu.Unlock()

	rec := doRequest(e, http.MethodPost, "/api/v1/embeddings/profiles/"+profileID+"/reindex", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"jobId"`)
	assert.Contains(t, rec.Body.String(), `"status":"pending"`)
}

func TestReindexUnknownProfile(t *testing.T) {
	_, e := newTestService(newFakeDriver())
	rec := doRequest(e, http.MethodPost, "/api/v1/embeddings/profiles/missing/reindex", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuery(t *testing.T) {
	driver := newFakeDriver()
	score := 0.9
	driver.hits = []*store.VectorSearchResult{
		{ContentType: "t", ContentID: "c1", FieldName: "f", Distance: 0.1, SimilarityScore: &score},
	}
	_, e := newTestService(driver)

	rec := doRequest(e, http.MethodPost, "/api/v1/embeddings/query", `{"query": "how to deploy", "k": 3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"contentId":"c1"`)
	assert.Contains(t, rec.Body.String(), `"similarityScore":0.9`)
	assert.Contains(t, rec.Body.String(), `"total":1`)

	driver.mu.Lock()
	defer driver.mu.Unlock()
	require.Len(t, driver.queries, 1)
	assert.Equal(t, "how to deploy", driver.queries[0].QueryText)
}

func TestQueryLogOptOut(t *testing.T) {
	driver := newFakeDriver()
	driver.hits = []*store.VectorSearchResult{{ContentID: "c1", Distance: 0.2}}
	_, e := newTestService(driver)

	rec := doRequest(e, http.MethodPost, "/api/v1/embeddings/query", `{"query": "q", "logQuery": false}`)
	require.Equal(t, http.StatusOK, rec.Code)

	driver.mu.Lock()
	defer driver.mu.Unlock()
	assert.Empty(t, driver.queries)
}

func TestQueryEmptyText(t *testing.T) {
	_, e := newTestService(newFakeDriver())
	rec := doRequest(e, http.MethodPost, "/api/v1/embeddings/query", `{"query": "   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ValidationError")
}

func TestQueryInvalidK(t *testing.T) {
	_, e := newTestService(newFakeDriver())
	rec := doRequest(e, http.MethodPost, "/api/v1/embeddings/query", `{"query": "q", "k": 9999}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryBySlug(t *testing.T) {
	driver := newFakeDriver()
	_, e := newTestService(driver)

	require.Equal(t, http.StatusCreated, doRequest(e, http.MethodPost, "/api/v1/embeddings/profiles", `{
		"name": "Articles", "slug": "articles", "embeddingDimension": 3,
		"fields": [{"contentType": "t", "fieldName": "f"}]
	}`).Code)

	rec := doRequest(e, http.MethodGet, "/api/v1/embeddings/articles/query?q=hello&k=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"profileId"`)

	// Name fallback when the slug does not match.
	rec = doRequest(e, http.MethodGet, "/api/v1/embeddings/Articles/query?q=hello", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(e, http.MethodGet, "/api/v1/embeddings/nope/query?q=hello", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(e, http.MethodGet, "/api/v1/embeddings/articles/query?q=hello&k=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerate(t *testing.T) {
	_, e := newTestService(newFakeDriver())
	rec := doRequest(e, http.MethodPost, "/api/v1/embeddings/generate", `{
		"profileId": "prof-1", "contentType": "t", "contentId": "c1",
		"fieldName": "f", "text": "some text"
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"dimension":3`)
}

func TestGenerateEmptyText(t *testing.T) {
	_, e := newTestService(newFakeDriver())
	rec := doRequest(e, http.MethodPost, "/api/v1/embeddings/generate", `{
		"profileId": "prof-1", "contentType": "t", "contentId": "c1",
		"fieldName": "f", "text": ""
	}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListJobsWithFilter(t *testing.T) {
	driver := newFakeDriver()
	_, e := newTestService(driver)

	rec := doRequest(e, http.MethodGet, `/api/v1/embeddings/jobs?filter=status%20==%20%22failed%22`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	driver.mu.Lock()
	defer driver.mu.Unlock()
	require.Len(t, driver.jobFinds, 1)
	require.NotNil(t, driver.jobFinds[0].Status)
	assert.Equal(t, store.JobStatusFailed, *driver.jobFinds[0].Status)
}

func TestListJobsBadFilter(t *testing.T) {
	_, e := newTestService(newFakeDriver())
	rec := doRequest(e, http.MethodGet, `/api/v1/embeddings/jobs?filter=status%20!=%20%22failed%22`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ValidationError")
}

func TestDeleteContentVectors(t *testing.T) {
	driver := newFakeDriver()
	_, e := newTestService(driver)

	rec := doRequest(e, http.MethodDelete, "/api/v1/embeddings/content/api::article.article/doc-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	driver.mu.Lock()
	defer driver.mu.Unlock()
	require.Len(t, driver.contentDeletes, 1)
	assert.Equal(t, [2]string{"api::article.article", "doc-1"}, driver.contentDeletes[0])
}

func TestListQueriesHistory(t *testing.T) {
	driver := newFakeDriver()
	driver.hits = []*store.VectorSearchResult{{ContentID: "c1", Distance: 0.2}}
	_, e := newTestService(driver)

	require.Equal(t, http.StatusOK, doRequest(e, http.MethodPost, "/api/v1/embeddings/query", `{"query": "q"}`).Code)

	rec := doRequest(e, http.MethodGet, "/api/v1/embeddings/queries", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"queryText":"q"`)
	assert.Contains(t, rec.Body.String(), `"position":1`)
}

func TestExtractJobFilter(t *testing.T) {
	tests := []struct {
		filter      string
		status      string
		profileID   string
		wantErr     bool
	}{
		{filter: "", status: "", profileID: ""},
		{filter: `status == "failed"`, status: "failed"},
		{filter: `"pending" == status`, status: "pending"},
		{filter: `status == "failed" && profile_id == "p1"`, status: "failed", profileID: "p1"},
		{filter: `status != "failed"`, wantErr: true},
		{filter: `status == "a" || profile_id == "b"`, wantErr: true},
		{filter: `unknown == "x"`, wantErr: true},
		{filter: `status == 42`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			status, profileID, err := extractJobFilter(tt.filter)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.profileID, profileID)
		})
	}
}
