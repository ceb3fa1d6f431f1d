package repositories

import (
	"context"
	"errors"
	"fmt"
	"wildlife-licensing-backend/db/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// activeStatuses are the activity statuses a licence can still be amended
// or renewed from.
var activeStatuses = []models.ActivityStatus{models.ActivityCurrent, models.ActivitySuspended}

// ActivePurposes lists the issued purposes of current or suspended
// activities held under a licence, newest application first.
func (r *applicationRepository) ActivePurposes(ctx context.Context, licenceID uuid.UUID) ([]ActivePurpose, error) {
	var active []ActivePurpose
	err := r.DB.WithContext(ctx).
		Table("proposed_purposes AS pp").
		Select("a.id AS application_id, sa.id AS selected_activity_id, pp.id AS proposed_purpose_id, pp.licence_purpose_id").
		Joins("JOIN selected_activities sa ON sa.id = pp.selected_activity_id").
		Joins("JOIN applications a ON a.id = sa.application_id").
		Where("a.licence_id = ? AND a.deleted_at IS NULL", licenceID).
		Where("sa.activity_status IN ? AND pp.status = ?", activeStatuses, models.PurposeIssued).
		Order("a.created_at DESC").
		Scan(&active).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active purposes: %w", err)
	}
	return active, nil
}

// FindLicence returns the licence already issued to the applicant in the
// category, or gorm.ErrRecordNotFound.
func (r *applicationRepository) FindLicence(ctx context.Context, categoryID uuid.UUID, applicant ApplicantKey) (*models.WildlifeLicence, error) {
	query := r.DB.WithContext(ctx).
		Model(&models.Application{}).
		Where("licence_category_id = ? AND licence_id IS NOT NULL", categoryID)
	switch {
	case applicant.OrgApplicantID != nil:
		query = query.Where("org_applicant_id = ?", *applicant.OrgApplicantID)
	case applicant.ProxyApplicantID != nil:
		query = query.Where("org_applicant_id IS NULL AND proxy_applicant_id = ?", *applicant.ProxyApplicantID)
	default:
		query = query.Where("org_applicant_id IS NULL AND proxy_applicant_id IS NULL AND submitter_id = ?", applicant.SubmitterID)
	}

	var app models.Application
	if err := query.Order("created_at DESC").First(&app).Error; err != nil {
		return nil, err
	}

	var licence models.WildlifeLicence
	if err := r.DB.WithContext(ctx).Where("id = ?", *app.LicenceID).First(&licence).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load licence: %w", err)
	}
	return &licence, nil
}

func (r *applicationRepository) CreateLicence(ctx context.Context, licence *models.WildlifeLicence) error {
	if err := r.DB.WithContext(ctx).Create(licence).Error; err != nil {
		return fmt.Errorf("failed to create licence: %w", err)
	}
	return nil
}

func (r *applicationRepository) SaveLicence(ctx context.Context, licence *models.WildlifeLicence) error {
	if err := r.DB.WithContext(ctx).Save(licence).Error; err != nil {
		return fmt.Errorf("failed to save licence: %w", err)
	}
	return nil
}

func (r *applicationRepository) CreateConditions(ctx context.Context, conditions []models.ApplicationCondition) error {
	if len(conditions) == 0 {
		return nil
	}
	if err := r.DB.WithContext(ctx).Create(&conditions).Error; err != nil {
		return fmt.Errorf("failed to create conditions: %w", err)
	}
	return nil
}

func (r *applicationRepository) ListConditions(ctx context.Context, applicationID, purposeID uuid.UUID) ([]models.ApplicationCondition, error) {
	var conditions []models.ApplicationCondition
	err := r.DB.WithContext(ctx).
		Where("application_id = ? AND licence_purpose_id = ?", applicationID, purposeID).
		Order("condition_order ASC").
		Find(&conditions).Error
	return conditions, err
}
