package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"
	"wildlife-licensing-backend/config"
	"wildlife-licensing-backend/db/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GetActiveGSTRate retrieves the currently active GST rate, or nil when none is configured
func (r *catalogRepository) GetActiveGSTRate(ctx context.Context) (*models.GSTRate, error) {
	var rate models.GSTRate

	// Get the rate where IsActive is true and ValidTo is either null or in the future
	err := r.DB.WithContext(ctx).
		Where("is_active = ? AND (valid_to IS NULL OR valid_to > ?)", true, time.Now()).
		Order("valid_from DESC").
		First(&rate).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		config.Logger.Error("Failed to get active GST rate", zap.Error(err))
		return nil, fmt.Errorf("failed to get active GST rate: %w", err)
	}

	return &rate, nil
}
