package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AssessmentStatus string

const (
	AssessmentAwaiting  AssessmentStatus = "AWAITING_ASSESSMENT"
	AssessmentCompleted AssessmentStatus = "ASSESSMENT_COMPLETED"
	AssessmentRecalled  AssessmentStatus = "RECALLED"
)

// Assessment is a request for an assessor group to review one activity.
type Assessment struct {
	ID                 uuid.UUID        `gorm:"type:uuid;primary_key;" json:"id"`
	ApplicationID      uuid.UUID        `gorm:"type:uuid;not null;index" json:"application_id"`
	SelectedActivityID uuid.UUID        `gorm:"type:uuid;not null;index" json:"selected_activity_id"`
	AssessorGroupID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"assessor_group_id"`
	Status             AssessmentStatus `gorm:"type:varchar(30);not null;default:'AWAITING_ASSESSMENT';index" json:"status"`
	Comment            *string          `gorm:"type:text" json:"comment"`

	RequestedByID    uuid.UUID  `gorm:"type:uuid;not null" json:"requested_by_id"`
	ActionedByID     *uuid.UUID `gorm:"type:uuid" json:"actioned_by_id"`
	DateLastReminded *time.Time `json:"date_last_reminded"`
	DateCompleted    *time.Time `json:"date_completed"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type AmendmentReason string

const (
	AmendmentInsufficientDetail AmendmentReason = "INSUFFICIENT_DETAIL"
	AmendmentMissingInformation AmendmentReason = "MISSING_INFORMATION"
	AmendmentOther              AmendmentReason = "OTHER"
)

type AmendmentRequestStatus string

const (
	AmendmentRequested AmendmentRequestStatus = "REQUESTED"
	AmendmentAmended   AmendmentRequestStatus = "AMENDED"
)

// AmendmentRequest asks the applicant to correct an activity.
type AmendmentRequest struct {
	ID                 uuid.UUID              `gorm:"type:uuid;primary_key;" json:"id"`
	ApplicationID      uuid.UUID              `gorm:"type:uuid;not null;index" json:"application_id"`
	SelectedActivityID uuid.UUID              `gorm:"type:uuid;not null;index" json:"selected_activity_id"`
	Reason             AmendmentReason        `gorm:"type:varchar(30);not null" json:"reason"`
	Text               string                 `gorm:"type:text" json:"text"`
	Status             AmendmentRequestStatus `gorm:"type:varchar(20);not null;default:'REQUESTED'" json:"status"`
	OfficerID          uuid.UUID              `gorm:"type:uuid;not null" json:"officer_id"`

	CreatedAt time.Time `json:"created_at"`
}

func (a *Assessment) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return
}

func (a *AmendmentRequest) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return
}
