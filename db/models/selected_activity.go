package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProcessingStatus tracks a selected activity through assessment.
type ProcessingStatus string

const (
	ProcessingDraft                     ProcessingStatus = "DRAFT"
	ProcessingUnderReview               ProcessingStatus = "UNDER_REVIEW"
	ProcessingWithOfficer               ProcessingStatus = "WITH_OFFICER"
	ProcessingOfficerConditions         ProcessingStatus = "OFFICER_CONDITIONS"
	ProcessingAwaitingLicenceFeePayment ProcessingStatus = "AWAITING_LICENCE_FEE_PAYMENT"
	ProcessingAccepted                  ProcessingStatus = "ACCEPTED"
	ProcessingDeclined                  ProcessingStatus = "DECLINED"
	ProcessingDiscarded                 ProcessingStatus = "DISCARDED"
)

// AllProcessingStatuses in lifecycle order.
var AllProcessingStatuses = []ProcessingStatus{
	ProcessingDraft,
	ProcessingUnderReview,
	ProcessingWithOfficer,
	ProcessingOfficerConditions,
	ProcessingAwaitingLicenceFeePayment,
	ProcessingAccepted,
	ProcessingDeclined,
	ProcessingDiscarded,
}

// IsTerminal reports whether no further processing happens in this status.
func (s ProcessingStatus) IsTerminal() bool {
	return s == ProcessingAccepted || s == ProcessingDeclined || s == ProcessingDiscarded
}

// ActivityStatus is the lifecycle of an issued activity.
type ActivityStatus string

const (
	ActivityDefault     ActivityStatus = "DEFAULT"
	ActivityCurrent     ActivityStatus = "CURRENT"
	ActivitySuspended   ActivityStatus = "SUSPENDED"
	ActivitySurrendered ActivityStatus = "SURRENDERED"
	ActivityCancelled   ActivityStatus = "CANCELLED"
	ActivityDiscarded   ActivityStatus = "DISCARDED"
)

// IsActive reports whether the licence activity can be amended or renewed.
func (s ActivityStatus) IsActive() bool {
	return s == ActivityCurrent || s == ActivitySuspended
}

// SelectedActivity is one licence activity requested on an application.
type SelectedActivity struct {
	ID                uuid.UUID        `gorm:"type:uuid;primary_key;" json:"id"`
	ApplicationID     uuid.UUID        `gorm:"type:uuid;not null;index" json:"application_id"`
	LicenceActivityID uuid.UUID        `gorm:"type:uuid;not null;index" json:"licence_activity_id"`
	ProcessingStatus  ProcessingStatus `gorm:"type:varchar(40);not null;default:'DRAFT';index" json:"processing_status"`
	ActivityStatus    ActivityStatus   `gorm:"type:varchar(20);not null;default:'DEFAULT'" json:"activity_status"`

	AssignedOfficerID  *uuid.UUID `gorm:"type:uuid;index" json:"assigned_officer_id"`
	AssignedApproverID *uuid.UUID `gorm:"type:uuid;index" json:"assigned_approver_id"`

	DeclineReason *string    `gorm:"type:text" json:"decline_reason"`
	IssueDate     *time.Time `json:"issue_date"`
	DecisionDate  *time.Time `json:"decision_date"`

	LicenceActivity  *LicenceActivity  `gorm:"foreignKey:LicenceActivityID" json:"licence_activity,omitempty"`
	ProposedPurposes []ProposedPurpose `gorm:"foreignKey:SelectedActivityID" json:"proposed_purposes,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Name is the licence activity name, or the id when the activity is not loaded.
func (a *SelectedActivity) Name() string {
	if a.LicenceActivity != nil {
		return a.LicenceActivity.Name
	}
	return a.LicenceActivityID.String()
}

// Purpose returns the proposed purpose with the given id.
func (a *SelectedActivity) Purpose(id uuid.UUID) *ProposedPurpose {
	for i := range a.ProposedPurposes {
		if a.ProposedPurposes[i].ID == id {
			return &a.ProposedPurposes[i]
		}
	}
	return nil
}

// PurposeByLicencePurpose returns the proposed purpose for a catalog purpose.
func (a *SelectedActivity) PurposeByLicencePurpose(licencePurposeID uuid.UUID) *ProposedPurpose {
	for i := range a.ProposedPurposes {
		if a.ProposedPurposes[i].LicencePurposeID == licencePurposeID {
			return &a.ProposedPurposes[i]
		}
	}
	return nil
}

// HasPayableFeesAtIssue reports whether any payable purpose was proposed with fees due.
func (a *SelectedActivity) HasPayableFeesAtIssue() bool {
	for _, p := range a.ProposedPurposes {
		if p.IsPayable && p.HasPayableFeesAtIssue {
			return true
		}
	}
	return false
}

// HasAdjustedLicenceFee reports whether an officer changed a licence fee.
func (a *SelectedActivity) HasAdjustedLicenceFee() bool {
	for _, p := range a.ProposedPurposes {
		if p.IsPayable && p.HasAdjustedLicenceFee {
			return true
		}
	}
	return false
}

// HasAdditionalFee reports whether an officer added a fee to any purpose.
func (a *SelectedActivity) HasAdditionalFee() bool {
	for _, p := range a.ProposedPurposes {
		if p.IsPayable && p.AdditionalFee.IsPositive() {
			return true
		}
	}
	return false
}

// SortPurposes orders proposed purposes by catalog display order.
func (a *SelectedActivity) SortPurposes() {
	sort.SliceStable(a.ProposedPurposes, func(i, j int) bool {
		return purposeLess(&a.ProposedPurposes[i], &a.ProposedPurposes[j])
	})
}

func purposeLess(a, b *ProposedPurpose) bool {
	ao, bo := a.order(), b.order()
	if ao != bo {
		return ao < bo
	}
	if a.Name() != b.Name() {
		return a.Name() < b.Name()
	}
	return a.ID.String() < b.ID.String()
}

// SortActivities orders activities by catalog display order, then name.
func SortActivities(activities []SelectedActivity) {
	sort.SliceStable(activities, func(i, j int) bool {
		ai, aj := &activities[i], &activities[j]
		oi, oj := 0, 0
		if ai.LicenceActivity != nil {
			oi = ai.LicenceActivity.DisplayOrder
		}
		if aj.LicenceActivity != nil {
			oj = aj.LicenceActivity.DisplayOrder
		}
		if oi != oj {
			return oi < oj
		}
		if ai.Name() != aj.Name() {
			return ai.Name() < aj.Name()
		}
		return ai.ID.String() < aj.ID.String()
	})
	for i := range activities {
		activities[i].SortPurposes()
	}
}

func (a *SelectedActivity) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return
}
