package repositories

import (
	"context"
	"fmt"
	"wildlife-licensing-backend/db/models"

	"github.com/google/uuid"
)

func (r *applicationRepository) CreateAction(ctx context.Context, action *models.ApplicationUserAction) error {
	if err := r.DB.WithContext(ctx).Create(action).Error; err != nil {
		return fmt.Errorf("failed to record application action: %w", err)
	}
	return nil
}

func (r *applicationRepository) ListActions(ctx context.Context, applicationID uuid.UUID) ([]models.ApplicationUserAction, error) {
	var actions []models.ApplicationUserAction
	err := r.DB.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order(`"when" ASC`).
		Find(&actions).Error
	return actions, err
}
