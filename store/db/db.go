// Package db provides the database driver factory.
package db

import (
	"github.com/pkg/errors"

	"github.com/contentvec/contentvec/internal/profile"
	"github.com/contentvec/contentvec/store"
	"github.com/contentvec/contentvec/store/db/postgres"
)

// NewDBDriver creates new db driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	switch profile.Driver {
	case "postgres":
		return postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unsupported driver %q: nearest-neighbor search requires postgres with pgvector", profile.Driver)
	}
}
