package store

import (
	"context"
	"database/sql"

	"github.com/contentvec/contentvec/internal/profile"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

// Migrate brings the schema up to the shapes the core depends on.
func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error
	Migrate(ctx context.Context) error

	// Profile registry
	CreateProfile(ctx context.Context, create *CreateProfile) (*Profile, error)
	GetProfile(ctx context.Context, id string) (*Profile, error)
	GetProfileBySlug(ctx context.Context, slug string) (*Profile, error)
	ListProfiles(ctx context.Context) ([]*Profile, error)
	DeleteProfile(ctx context.Context, id string) error

	// Vector store gateway
	UpsertVector(ctx context.Context, upsert *UpsertVector) (*VectorRecord, error)
	SearchVectors(ctx context.Context, opts *VectorSearchOptions) ([]*VectorSearchResult, error)
	DeleteVectorsByContent(ctx context.Context, contentType, contentID string) error

	// Indexing jobs
	CreateIndexingJob(ctx context.Context, create *CreateIndexingJob) (*IndexingJob, error)
	StartIndexingJob(ctx context.Context, id string) error
	FinishIndexingJob(ctx context.Context, finish *FinishIndexingJob) error
	ListIndexingJobs(ctx context.Context, find *FindIndexingJob) ([]*IndexingJob, error)

	// Query history
	LogSearchQuery(ctx context.Context, log *LogSearchQuery) (*SearchQuery, error)
	ListSearchQueries(ctx context.Context, find *FindSearchQuery) ([]*SearchQuery, error)
}
