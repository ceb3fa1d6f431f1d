package repositories

import (
	"context"
	"fmt"
	"time"
	"wildlife-licensing-backend/config"
	"wildlife-licensing-backend/db/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (r *applicationRepository) CreateAssessment(ctx context.Context, assessment *models.Assessment) error {
	if err := r.DB.WithContext(ctx).Create(assessment).Error; err != nil {
		config.Logger.Error("Failed to create assessment",
			zap.Error(err),
			zap.String("applicationID", assessment.ApplicationID.String()),
			zap.String("assessorGroupID", assessment.AssessorGroupID.String()))
		return fmt.Errorf("failed to create assessment: %w", err)
	}
	return nil
}

func (r *applicationRepository) SaveAssessment(ctx context.Context, assessment *models.Assessment) error {
	if err := r.DB.WithContext(ctx).Save(assessment).Error; err != nil {
		return fmt.Errorf("failed to save assessment: %w", err)
	}
	return nil
}

func (r *applicationRepository) GetAssessment(ctx context.Context, id uuid.UUID) (*models.Assessment, error) {
	var assessment models.Assessment
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&assessment).Error; err != nil {
		return nil, err
	}
	return &assessment, nil
}

// ListAssessments returns the application's assessments, oldest first.
func (r *applicationRepository) ListAssessments(ctx context.Context, applicationID uuid.UUID) ([]models.Assessment, error) {
	var assessments []models.Assessment
	err := r.DB.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("created_at ASC, id ASC").
		Find(&assessments).Error
	return assessments, err
}

// ListAwaitingAssessments returns awaiting assessments neither created nor
// reminded since the given time.
func (r *applicationRepository) ListAwaitingAssessments(ctx context.Context, lastActivityBefore time.Time) ([]models.Assessment, error) {
	var assessments []models.Assessment
	err := r.DB.WithContext(ctx).
		Where("status = ?", models.AssessmentAwaiting).
		Where("created_at < ?", lastActivityBefore).
		Where("date_last_reminded IS NULL OR date_last_reminded < ?", lastActivityBefore).
		Order("created_at ASC").
		Find(&assessments).Error
	return assessments, err
}

func (r *applicationRepository) CreateAmendmentRequest(ctx context.Context, request *models.AmendmentRequest) error {
	if err := r.DB.WithContext(ctx).Create(request).Error; err != nil {
		return fmt.Errorf("failed to create amendment request: %w", err)
	}
	return nil
}

func (r *applicationRepository) SaveAmendmentRequest(ctx context.Context, request *models.AmendmentRequest) error {
	if err := r.DB.WithContext(ctx).Save(request).Error; err != nil {
		return fmt.Errorf("failed to update amendment request: %w", err)
	}
	return nil
}

func (r *applicationRepository) ListAmendmentRequests(ctx context.Context, applicationID uuid.UUID) ([]models.AmendmentRequest, error) {
	var requests []models.AmendmentRequest
	err := r.DB.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("created_at ASC").
		Find(&requests).Error
	return requests, err
}
