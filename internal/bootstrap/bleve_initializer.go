package bootstrap

import (
	"context"
	"fmt"
	applications_repositories "wildlife-licensing-backend/applications/repositories"
	bleveRepositories "wildlife-licensing-backend/bleve/repositories"
	"wildlife-licensing-backend/config"
	"wildlife-licensing-backend/db/models"

	"go.uber.org/zap"
)

// ApplicationLister lists applications to rebuild the search index from.
type ApplicationLister interface {
	ListApplications(ctx context.Context, filter applications_repositories.ApplicationFilter) ([]models.Application, error)
}

// IndexBleveData rebuilds the application search index from the database.
func IndexBleveData(ctx context.Context, apps ApplicationLister, bleveRepo bleveRepositories.BleveRepositoryInterface) error {
	if err := bleveRepo.DeleteAllIndices(ctx); err != nil {
		return fmt.Errorf("error deleting all indices: %w", err)
	}

	existing, err := apps.ListApplications(ctx, applications_repositories.ApplicationFilter{})
	if err != nil {
		config.Logger.Error("Error fetching applications for Bleve indexing", zap.Error(err))
		return err
	}
	if err := bleveRepo.IndexExistingApplications(ctx, existing); err != nil {
		config.Logger.Error("Failed to index applications into Bleve", zap.Error(err))
		return err
	}
	config.Logger.Info("Application search index rebuilt", zap.Int("applications", len(existing)))
	return nil
}
