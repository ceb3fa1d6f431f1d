package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PurposeStatus tracks a purpose from selection to issue.
type PurposeStatus string

const (
	PurposeSelected PurposeStatus = "SELECTED"
	PurposeProposed PurposeStatus = "PROPOSED"
	PurposeDeclined PurposeStatus = "DECLINED"
	PurposeIssued   PurposeStatus = "ISSUED"
)

// ProposedPurpose links a selected activity to one catalog purpose and
// carries the fees charged for it.
type ProposedPurpose struct {
	ID                 uuid.UUID     `gorm:"type:uuid;primary_key;" json:"id"`
	SelectedActivityID uuid.UUID     `gorm:"type:uuid;not null;index" json:"selected_activity_id"`
	LicencePurposeID   uuid.UUID     `gorm:"type:uuid;not null;index" json:"licence_purpose_id"`
	Status             PurposeStatus `gorm:"type:varchar(20);not null;default:'SELECTED'" json:"status"`
	SourcePurposeID    *uuid.UUID    `gorm:"type:uuid" json:"source_purpose_id"`

	// IsPayable has no column default; Attach sets it.
	IsPayable             bool `gorm:"not null" json:"is_payable"`
	FeesWaived            bool `gorm:"not null;default:false" json:"fees_waived"`
	HasPayableFeesAtIssue bool `gorm:"default:false" json:"has_payable_fees_at_issue"`
	HasAdjustedLicenceFee bool `gorm:"default:false" json:"has_adjusted_licence_fee"`

	ApplicationFee    decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"application_fee"`
	LicenceFee        decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"licence_fee"`
	AdditionalFee     decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"additional_fee"`
	AdditionalFeeText *string         `gorm:"type:varchar(200)" json:"additional_fee_text"`

	// Credit carried over from the paid licence fee of the purpose this one
	// was copied from.
	LicenceFeeCredit decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"licence_fee_credit"`

	PaidApplicationFee decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"paid_application_fee"`
	PaidLicenceFee     decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"paid_licence_fee"`
	PaidAdditionalFee  decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"paid_additional_fee"`

	IssueDate *time.Time `json:"issue_date"`

	Purpose *LicencePurpose `gorm:"foreignKey:LicencePurposeID" json:"purpose,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Name is the catalog purpose name, or the id when the purpose is not loaded.
func (p *ProposedPurpose) Name() string {
	if p.Purpose != nil {
		return p.Purpose.Name
	}
	return p.LicencePurposeID.String()
}

// AccountCode is the ledger code fees for this purpose are booked against.
func (p *ProposedPurpose) AccountCode() string {
	if p.Purpose != nil {
		return p.Purpose.OracleAccountCode
	}
	return ""
}

func (p *ProposedPurpose) order() int {
	if p.Purpose != nil {
		return p.Purpose.DisplayOrder
	}
	return 0
}

func (p *ProposedPurpose) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}
