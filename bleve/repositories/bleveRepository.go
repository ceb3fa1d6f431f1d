package repositories

import (
	"context"
	search_models "wildlife-licensing-backend/bleve/models"
	bleveindex "wildlife-licensing-backend/bleve/services"
	"wildlife-licensing-backend/db/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserLookup resolves applicant names for indexed applications.
type UserLookup interface {
	GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
}

type BleveRepository struct {
	indexer bleveindex.IndexingServiceInterface
	users   UserLookup
	logger  *zap.Logger
}

type BleveRepositoryInterface interface {
	DeleteAllIndices(ctx context.Context) error

	IndexApplication(ctx context.Context, app *models.Application) error
	IndexExistingApplications(ctx context.Context, apps []models.Application) error
	DeleteApplication(applicationID string) error
	SearchApplications(queryString string, size int, submitterID *uuid.UUID) (*search_models.SearchResponse, error)
}

// NewBleveRepository returns both the struct and the interface.
func NewBleveRepository(indexer bleveindex.IndexingServiceInterface, users UserLookup, logger *zap.Logger) (*BleveRepository, BleveRepositoryInterface) {
	repo := &BleveRepository{indexer: indexer, users: users, logger: logger}
	return repo, repo
}

func (r *BleveRepository) DeleteAllIndices(ctx context.Context) error {
	return r.indexer.DeleteAllIndices()
}
