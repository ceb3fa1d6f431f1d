package repositories

import (
	"context"
	"errors"
	"fmt"
	"wildlife-licensing-backend/config"
	"wildlife-licensing-backend/db/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CatalogRepository reads licence catalog data and staff permission groups.
// Lookups by id return gorm.ErrRecordNotFound when nothing matches.
type CatalogRepository interface {
	GetPurpose(ctx context.Context, id uuid.UUID) (*models.LicencePurpose, error)
	GetPurposes(ctx context.Context, ids []uuid.UUID) ([]models.LicencePurpose, error)
	ListPurposes(ctx context.Context) ([]models.LicencePurpose, error)
	GetActivity(ctx context.Context, id uuid.UUID) (*models.LicenceActivity, error)
	GetPermissionGroup(ctx context.Context, id uuid.UUID) (*models.ActivityPermissionGroup, error)
	ListPermissionGroups(ctx context.Context, activityID uuid.UUID, kind models.PermissionGroupKind) ([]models.ActivityPermissionGroup, error)
	GetActiveGSTRate(ctx context.Context) (*models.GSTRate, error)
}

type catalogRepository struct {
	DB *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{DB: db}
}

func (r *catalogRepository) GetPurpose(ctx context.Context, id uuid.UUID) (*models.LicencePurpose, error) {
	var purpose models.LicencePurpose
	if err := r.DB.WithContext(ctx).Preload("LicenceActivity").Where("id = ?", id).First(&purpose).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			config.Logger.Error("Failed to get licence purpose", zap.Error(err), zap.String("purposeID", id.String()))
		}
		return nil, err
	}
	return &purpose, nil
}

// GetPurposes returns the purposes that exist among ids, in catalog order.
// Unknown ids are skipped.
func (r *catalogRepository) GetPurposes(ctx context.Context, ids []uuid.UUID) ([]models.LicencePurpose, error) {
	var purposes []models.LicencePurpose
	if len(ids) == 0 {
		return purposes, nil
	}
	err := r.DB.WithContext(ctx).
		Preload("LicenceActivity").
		Where("id IN ?", ids).
		Order("display_order ASC, name ASC").
		Find(&purposes).Error
	if err != nil {
		config.Logger.Error("Failed to get licence purposes", zap.Error(err), zap.Int("count", len(ids)))
		return nil, fmt.Errorf("failed to get licence purposes: %w", err)
	}
	return purposes, nil
}

// ListPurposes returns every purpose that has not been superseded.
func (r *catalogRepository) ListPurposes(ctx context.Context) ([]models.LicencePurpose, error) {
	var purposes []models.LicencePurpose
	err := r.DB.WithContext(ctx).
		Preload("LicenceActivity").
		Where("replaced_by_id IS NULL").
		Order("display_order ASC, name ASC").
		Find(&purposes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list licence purposes: %w", err)
	}
	return purposes, nil
}

func (r *catalogRepository) GetActivity(ctx context.Context, id uuid.UUID) (*models.LicenceActivity, error) {
	var activity models.LicenceActivity
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&activity).Error; err != nil {
		return nil, err
	}
	return &activity, nil
}

func (r *catalogRepository) GetPermissionGroup(ctx context.Context, id uuid.UUID) (*models.ActivityPermissionGroup, error) {
	var group models.ActivityPermissionGroup
	err := r.DB.WithContext(ctx).
		Preload("Activities").
		Preload("Members", "is_active = ?", true).
		Where("id = ? AND is_active = ?", id, true).
		First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// ListPermissionGroups returns the active groups of a kind covering an activity.
func (r *catalogRepository) ListPermissionGroups(ctx context.Context, activityID uuid.UUID, kind models.PermissionGroupKind) ([]models.ActivityPermissionGroup, error) {
	var groups []models.ActivityPermissionGroup
	err := r.DB.WithContext(ctx).
		Preload("Activities").
		Preload("Members", "is_active = ?", true).
		Joins("JOIN permission_group_activities pga ON pga.group_id = activity_permission_groups.id").
		Where("pga.licence_activity_id = ? AND activity_permission_groups.kind = ? AND activity_permission_groups.is_active = ?", activityID, kind, true).
		Order("activity_permission_groups.name ASC").
		Find(&groups).Error
	if err != nil {
		config.Logger.Error("Failed to list permission groups",
			zap.Error(err),
			zap.String("activityID", activityID.String()),
			zap.String("kind", string(kind)))
		return nil, fmt.Errorf("failed to list permission groups: %w", err)
	}
	return groups, nil
}
