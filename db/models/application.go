package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ApplicationType defines why an application was lodged.
type ApplicationType string

const (
	NewLicenceApplication      ApplicationType = "NEW_LICENCE"
	AmendmentApplication       ApplicationType = "AMENDMENT"
	RenewalApplication         ApplicationType = "RENEWAL"
	ReissueApplication         ApplicationType = "REISSUE"
	SystemGeneratedApplication ApplicationType = "SYSTEM_GENERATED"
)

// RequiresSourceActivity reports whether the type continues an existing licence.
func (t ApplicationType) RequiresSourceActivity() bool {
	switch t {
	case AmendmentApplication, RenewalApplication, ReissueApplication:
		return true
	}
	return false
}

type SubmitType string

const (
	OnlineSubmit  SubmitType = "ONLINE"
	PaperSubmit   SubmitType = "PAPER"
	MigrateSubmit SubmitType = "MIGRATE"
)

// CustomerStatus is the application status shown to applicants. It is
// derived from the processing statuses of the selected activities.
type CustomerStatus string

const (
	CustomerStatusDraft             CustomerStatus = "DRAFT"
	CustomerStatusUnderReview       CustomerStatus = "UNDER_REVIEW"
	CustomerStatusAwaitingPayment   CustomerStatus = "AWAITING_PAYMENT"
	CustomerStatusPartiallyApproved CustomerStatus = "PARTIALLY_APPROVED"
	CustomerStatusAccepted          CustomerStatus = "ACCEPTED"
	CustomerStatusDeclined          CustomerStatus = "DECLINED"
	CustomerStatusDiscarded         CustomerStatus = "DISCARDED"
)

// Application model
type Application struct {
	ID                uuid.UUID  `gorm:"type:uuid;primary_key;" json:"id"`
	LodgementSequence int64      `gorm:"index" json:"-"`
	LodgementNumber   *string    `gorm:"type:varchar(20);uniqueIndex" json:"lodgement_number"`
	LodgementDate     *time.Time `json:"lodgement_date"`

	ApplicationType ApplicationType `gorm:"type:varchar(30);not null;index" json:"application_type"`
	SubmitType      SubmitType      `gorm:"type:varchar(20);not null;default:'ONLINE'" json:"submit_type"`
	CustomerStatus  CustomerStatus  `gorm:"type:varchar(30);not null;default:'DRAFT';index" json:"customer_status"`

	// Applicant identity: the submitter acts for themselves, for an
	// organisation or as a proxy for another person.
	SubmitterID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"submitter_id"`
	OrgApplicantID   *uuid.UUID `gorm:"type:uuid;index" json:"org_applicant_id"`
	ProxyApplicantID *uuid.UUID `gorm:"type:uuid;index" json:"proxy_applicant_id"`

	LicenceCategoryID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"licence_category_id"`
	PreviousApplicationID *uuid.UUID `gorm:"type:uuid;index" json:"previous_application_id"`
	LicenceID             *uuid.UUID `gorm:"type:uuid;index" json:"licence_id"`

	FormData datatypes.JSONMap `gorm:"type:jsonb" json:"form_data"`

	SelectedActivities []SelectedActivity `gorm:"foreignKey:ApplicationID" json:"activities,omitempty"`

	// Audit fields
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// PersonApplicantID is the person whose details gate the application,
// the proxied applicant when present, otherwise the submitter.
func (a *Application) PersonApplicantID() uuid.UUID {
	if a.ProxyApplicantID != nil {
		return *a.ProxyApplicantID
	}
	return a.SubmitterID
}

// Activity returns the selected activity with the given id.
func (a *Application) Activity(id uuid.UUID) *SelectedActivity {
	for i := range a.SelectedActivities {
		if a.SelectedActivities[i].ID == id {
			return &a.SelectedActivities[i]
		}
	}
	return nil
}

// ProcessingStatuses lists the processing status of every selected activity.
func (a *Application) ProcessingStatuses() []ProcessingStatus {
	statuses := make([]ProcessingStatus, 0, len(a.SelectedActivities))
	for _, activity := range a.SelectedActivities {
		statuses = append(statuses, activity.ProcessingStatus)
	}
	return statuses
}

// ApplicationCondition is a licence condition attached to a purpose of an
// application.
type ApplicationCondition struct {
	ID                uuid.UUID  `gorm:"type:uuid;primary_key;" json:"id"`
	ApplicationID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"application_id"`
	LicenceActivityID uuid.UUID  `gorm:"type:uuid;not null;index" json:"licence_activity_id"`
	LicencePurposeID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"licence_purpose_id"`
	Condition         string     `gorm:"type:text;not null" json:"condition"`
	Standard          bool       `gorm:"default:false" json:"standard"`
	Order             int        `gorm:"column:condition_order;default:0" json:"order"`
	SourceConditionID *uuid.UUID `gorm:"type:uuid" json:"source_condition_id"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// LodgementCounter holds the single row used to number lodged applications.
type LodgementCounter struct {
	ID    int   `gorm:"primaryKey" json:"id"`
	Value int64 `gorm:"not null;default:0" json:"value"`
}

// GSTRate model with validity period
type GSTRate struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key;" json:"id"`
	Rate      decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"rate"` // Percentage, e.g. 10.00
	ValidFrom time.Time       `gorm:"not null;index" json:"valid_from"`
	ValidTo   *time.Time      `gorm:"index" json:"valid_to"` // NULL means currently active
	IsActive  bool            `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	CreatedBy string         `gorm:"not null" json:"created_by"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Application
func (a *Application) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return
}

// ApplicationCondition
func (c *ApplicationCondition) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}

// GSTRate
func (r *GSTRate) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}
