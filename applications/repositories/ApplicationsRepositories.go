package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"
	"wildlife-licensing-backend/config"
	"wildlife-licensing-backend/db/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ApplicantKey identifies who an application is for.
type ApplicantKey struct {
	SubmitterID      uuid.UUID
	OrgApplicantID   *uuid.UUID
	ProxyApplicantID *uuid.UUID
}

// KeyOf returns the applicant key of an application.
func KeyOf(app *models.Application) ApplicantKey {
	return ApplicantKey{
		SubmitterID:      app.SubmitterID,
		OrgApplicantID:   app.OrgApplicantID,
		ProxyApplicantID: app.ProxyApplicantID,
	}
}

// Matches reports whether the application belongs to the same applicant.
func (k ApplicantKey) Matches(app *models.Application) bool {
	switch {
	case k.OrgApplicantID != nil:
		return app.OrgApplicantID != nil && *app.OrgApplicantID == *k.OrgApplicantID
	case k.ProxyApplicantID != nil:
		return app.OrgApplicantID == nil && app.ProxyApplicantID != nil && *app.ProxyApplicantID == *k.ProxyApplicantID
	default:
		return app.OrgApplicantID == nil && app.ProxyApplicantID == nil && app.SubmitterID == k.SubmitterID
	}
}

// ActivePurpose is an issued purpose of a current activity under a licence.
type ActivePurpose struct {
	ApplicationID      uuid.UUID
	SelectedActivityID uuid.UUID
	ProposedPurposeID  uuid.UUID
	LicencePurposeID   uuid.UUID
}

// ApplicationFilter narrows ListApplications.
type ApplicationFilter struct {
	CustomerStatus *models.CustomerStatus
	SubmitterID    *uuid.UUID
	Lodged         bool
	Limit          int
	Offset         int
}

// ApplicationRepository persists applications and everything hanging off
// them. Lookups by id return gorm.ErrRecordNotFound when nothing matches.
type ApplicationRepository interface {
	// Transaction runs fn inside one transaction. The repository passed to
	// fn sees its own writes, and every write is rolled back when fn
	// returns an error.
	Transaction(ctx context.Context, fn func(repo ApplicationRepository) error) error

	CreateApplication(ctx context.Context, app *models.Application) error
	GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error)
	// LockApplication loads the application and holds a row lock on it
	// until the surrounding transaction ends.
	LockApplication(ctx context.Context, id uuid.UUID) (*models.Application, error)
	SaveApplication(ctx context.Context, app *models.Application) error
	ListApplications(ctx context.Context, filter ApplicationFilter) ([]models.Application, error)
	CountApplications(ctx context.Context, filter ApplicationFilter) (int64, error)
	NextLodgementSequence(ctx context.Context) (int64, error)

	GetApplicationByActivity(ctx context.Context, activityID uuid.UUID) (*models.Application, error)

	ActivePurposes(ctx context.Context, licenceID uuid.UUID) ([]ActivePurpose, error)
	FindLicence(ctx context.Context, categoryID uuid.UUID, applicant ApplicantKey) (*models.WildlifeLicence, error)
	CreateLicence(ctx context.Context, licence *models.WildlifeLicence) error
	SaveLicence(ctx context.Context, licence *models.WildlifeLicence) error

	CreateConditions(ctx context.Context, conditions []models.ApplicationCondition) error
	ListConditions(ctx context.Context, applicationID, purposeID uuid.UUID) ([]models.ApplicationCondition, error)

	CreateAssessment(ctx context.Context, assessment *models.Assessment) error
	SaveAssessment(ctx context.Context, assessment *models.Assessment) error
	GetAssessment(ctx context.Context, id uuid.UUID) (*models.Assessment, error)
	ListAssessments(ctx context.Context, applicationID uuid.UUID) ([]models.Assessment, error)
	ListAwaitingAssessments(ctx context.Context, lastActivityBefore time.Time) ([]models.Assessment, error)

	CreateAmendmentRequest(ctx context.Context, request *models.AmendmentRequest) error
	SaveAmendmentRequest(ctx context.Context, request *models.AmendmentRequest) error
	ListAmendmentRequests(ctx context.Context, applicationID uuid.UUID) ([]models.AmendmentRequest, error)

	CreateAction(ctx context.Context, action *models.ApplicationUserAction) error
	ListActions(ctx context.Context, applicationID uuid.UUID) ([]models.ApplicationUserAction, error)

	CreateInvoice(ctx context.Context, invoice *models.ApplicationInvoice) error
	SaveInvoice(ctx context.Context, invoice *models.ApplicationInvoice) error
	GetInvoiceByReference(ctx context.Context, reference string) (*models.ApplicationInvoice, error)
	ListInvoices(ctx context.Context, applicationID uuid.UUID) ([]models.ApplicationInvoice, error)
}

type applicationRepository struct {
	DB *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{DB: db}
}

func (r *applicationRepository) Transaction(ctx context.Context, fn func(repo ApplicationRepository) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&applicationRepository{DB: tx})
	})
}

// CreateApplication inserts the application with its activities and purposes.
func (r *applicationRepository) CreateApplication(ctx context.Context, app *models.Application) error {
	db := r.DB.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(app).Error; err != nil {
		config.Logger.Error("Failed to create application", zap.Error(err))
		return fmt.Errorf("failed to create application: %w", err)
	}
	for i := range app.SelectedActivities {
		activity := &app.SelectedActivities[i]
		activity.ApplicationID = app.ID
		if err := db.Omit(clause.Associations).Create(activity).Error; err != nil {
			return fmt.Errorf("failed to create selected activity: %w", err)
		}
		for j := range activity.ProposedPurposes {
			purpose := &activity.ProposedPurposes[j]
			purpose.SelectedActivityID = activity.ID
			if err := db.Omit(clause.Associations).Create(purpose).Error; err != nil {
				return fmt.Errorf("failed to create proposed purpose: %w", err)
			}
		}
	}
	return nil
}

func (r *applicationRepository) preloaded(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).
		Preload("SelectedActivities.LicenceActivity").
		Preload("SelectedActivities.ProposedPurposes.Purpose.LicenceActivity")
}

func (r *applicationRepository) GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	var app models.Application
	if err := r.preloaded(ctx).Where("id = ?", id).First(&app).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			config.Logger.Error("Failed to load application", zap.Error(err), zap.String("applicationID", id.String()))
		}
		return nil, err
	}
	models.SortActivities(app.SelectedActivities)
	return &app, nil
}

func (r *applicationRepository) GetApplicationByActivity(ctx context.Context, activityID uuid.UUID) (*models.Application, error) {
	var activity models.SelectedActivity
	if err := r.DB.WithContext(ctx).Select("id", "application_id").Where("id = ?", activityID).First(&activity).Error; err != nil {
		return nil, err
	}
	return r.GetApplication(ctx, activity.ApplicationID)
}

func (r *applicationRepository) LockApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	var locked models.Application
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", id).
		First(&locked).Error
	if err != nil {
		return nil, err
	}
	return r.GetApplication(ctx, id)
}

// SaveApplication writes the application row, its activities and purposes.
func (r *applicationRepository) SaveApplication(ctx context.Context, app *models.Application) error {
	db := r.DB.WithContext(ctx)
	if err := db.Omit(clause.Associations).Save(app).Error; err != nil {
		config.Logger.Error("Failed to save application", zap.Error(err), zap.String("applicationID", app.ID.String()))
		return fmt.Errorf("failed to save application: %w", err)
	}
	for i := range app.SelectedActivities {
		activity := &app.SelectedActivities[i]
		if err := db.Omit(clause.Associations).Save(activity).Error; err != nil {
			return fmt.Errorf("failed to save selected activity %s: %w", activity.ID, err)
		}
		for j := range activity.ProposedPurposes {
			purpose := &activity.ProposedPurposes[j]
			purpose.SelectedActivityID = activity.ID
			if err := db.Omit(clause.Associations).Save(purpose).Error; err != nil {
				return fmt.Errorf("failed to save proposed purpose %s: %w", purpose.ID, err)
			}
		}
	}
	return nil
}

func applyApplicationFilter(query *gorm.DB, filter ApplicationFilter) *gorm.DB {
	if filter.CustomerStatus != nil {
		query = query.Where("customer_status = ?", *filter.CustomerStatus)
	}
	if filter.SubmitterID != nil {
		query = query.Where("submitter_id = ?", *filter.SubmitterID)
	}
	if filter.Lodged {
		query = query.Where("lodgement_number IS NOT NULL")
	}
	return query
}

func (r *applicationRepository) ListApplications(ctx context.Context, filter ApplicationFilter) ([]models.Application, error) {
	var apps []models.Application
	query := applyApplicationFilter(r.preloaded(ctx).Order("created_at DESC"), filter)
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Find(&apps).Error; err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	for i := range apps {
		models.SortActivities(apps[i].SelectedActivities)
	}
	return apps, nil
}

// CountApplications counts matches of filter, ignoring Limit and Offset.
func (r *applicationRepository) CountApplications(ctx context.Context, filter ApplicationFilter) (int64, error) {
	var total int64
	query := applyApplicationFilter(r.DB.WithContext(ctx).Model(&models.Application{}), filter)
	if err := query.Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count applications: %w", err)
	}
	return total, nil
}

// NextLodgementSequence increments the lodgement counter under a row lock.
func (r *applicationRepository) NextLodgementSequence(ctx context.Context) (int64, error) {
	var counter models.LodgementCounter
	db := r.DB.WithContext(ctx)
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", 1).First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		counter = models.LodgementCounter{ID: 1}
		if err := db.Create(&counter).Error; err != nil {
			return 0, fmt.Errorf("failed to create lodgement counter: %w", err)
		}
	} else if err != nil {
		return 0, fmt.Errorf("failed to lock lodgement counter: %w", err)
	}
	counter.Value++
	if err := db.Model(&counter).Update("value", counter.Value).Error; err != nil {
		return 0, fmt.Errorf("failed to advance lodgement counter: %w", err)
	}
	return counter.Value, nil
}
