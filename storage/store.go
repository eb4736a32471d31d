package storage

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/catalog"
	"github.com/trezcool/darasa/core/certificate"
	"github.com/trezcool/darasa/core/progress"
	"github.com/trezcool/darasa/core/submission"
	"github.com/trezcool/darasa/storage/database"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
	sqlxrepos "github.com/trezcool/darasa/storage/database/sqlx"
)

// EngineMemory selects the in-memory store.
const EngineMemory = "memory"

// Store bundles the repositories of one backing database.
type Store struct {
	DB           core.DB
	Catalog      catalog.Repository
	Progress     progress.Repository
	Submissions  submission.Repository
	Certificates certificate.Repository
}

func NewInMemStore() *Store {
	db := inmemdb.New()
	return &Store{
		DB:           db,
		Catalog:      inmemdb.NewCatalogRepository(db),
		Progress:     inmemdb.NewProgressRepository(db),
		Submissions:  inmemdb.NewSubmissionRepository(db),
		Certificates: inmemdb.NewCertificateRepository(db),
	}
}

// NewPostgresStore creates the database if needed, connects to it and applies pending migrations.
func NewPostgresStore(ctx context.Context, conf *core.Config) (*Store, error) {
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		DB:           db,
		Catalog:      sqlxrepos.NewCatalogRepository(db),
		Progress:     sqlxrepos.NewProgressRepository(db),
		Submissions:  sqlxrepos.NewSubmissionRepository(db),
		Certificates: sqlxrepos.NewCertificateRepository(db),
	}, nil
}

// NewStore opens the store configured by Database.Engine: "memory" or a SQL driver name.
func NewStore(ctx context.Context, conf *core.Config) (*Store, error) {
	if conf.Database.Engine == EngineMemory {
		return NewInMemStore(), nil
	}
	store, err := NewPostgresStore(ctx, conf)
	return store, errors.Wrap(err, "setting up database")
}
