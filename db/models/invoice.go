package models

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

//
// ENUM DEFINITIONS
//

type PaymentMethod string

const (
	CardPaymentMethod        PaymentMethod = "CARD"
	CashPaymentMethod        PaymentMethod = "CASH"
	BankDepositPaymentMethod PaymentMethod = "BANK_DEPOSIT"
	NoPaymentMethod          PaymentMethod = "NONE"
)

// SubmitType maps the way fees are collected to how the application reached us.
func (m PaymentMethod) SubmitType() SubmitType {
	switch m {
	case CashPaymentMethod:
		return PaperSubmit
	case NoPaymentMethod:
		return MigrateSubmit
	}
	return OnlineSubmit
}

type PaymentStatus string

const (
	PendingPayment   PaymentStatus = "PENDING"
	PaidPayment      PaymentStatus = "PAID"
	RefundedPayment  PaymentStatus = "REFUNDED"
	CancelledPayment PaymentStatus = "CANCELLED"
)

//
// INVOICE MODEL
//

// InvoiceCoverage is what an invoice pays towards one proposed purpose.
// Confirming the invoice settles exactly these amounts.
type InvoiceCoverage struct {
	ProposedPurposeID uuid.UUID       `json:"proposed_purpose_id"`
	ApplicationFee    decimal.Decimal `json:"application_fee"`
	LicenceFee        decimal.Decimal `json:"licence_fee"`
	AdditionalFee     decimal.Decimal `json:"additional_fee"`
}

// ApplicationInvoice records one checkout of fees for an application.
type ApplicationInvoice struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	ApplicationID uuid.UUID `gorm:"type:uuid;not null;index" json:"application_id"`

	InvoiceReference string                               `gorm:"uniqueIndex;not null" json:"invoice_reference"`
	ActivityIDs      datatypes.JSONSlice[uuid.UUID]       `gorm:"type:jsonb" json:"activity_ids"`
	Covers           datatypes.JSONSlice[InvoiceCoverage] `gorm:"type:jsonb" json:"covers"`
	Amount           decimal.Decimal                      `gorm:"type:decimal(15,2);not null" json:"amount"`
	PaymentMethod    PaymentMethod                        `gorm:"type:varchar(30);not null;default:'CARD'" json:"payment_method"`

	// Status & identifiers
	PaymentStatus     PaymentStatus `gorm:"type:varchar(20);default:'PENDING'" json:"payment_status"`
	Voided            bool          `gorm:"default:false" json:"voided"`
	ExternalReference *string       `gorm:"index" json:"external_reference,omitempty"` // Gateway session id
	PaymentDate       *time.Time    `json:"payment_date"`

	// Audit trail
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	CreatedBy uuid.UUID `gorm:"type:uuid;not null" json:"created_by"`
}

// IsSettled reports whether the invoice was paid and still stands.
func (i *ApplicationInvoice) IsSettled() bool {
	return i.PaymentStatus == PaidPayment && !i.Voided
}

// CoversActivity reports whether the invoice was raised for the activity.
func (i *ApplicationInvoice) CoversActivity(activityID uuid.UUID) bool {
	for _, id := range i.ActivityIDs {
		if id == activityID {
			return true
		}
	}
	return false
}

// CoverageFor returns what the invoice pays towards the proposed purpose.
func (i *ApplicationInvoice) CoverageFor(proposedPurposeID uuid.UUID) (InvoiceCoverage, bool) {
	for _, c := range i.Covers {
		if c.ProposedPurposeID == proposedPurposeID {
			return c, true
		}
	}
	return InvoiceCoverage{}, false
}

// NewInvoiceReference returns a fresh invoice reference carrying all 128
// bits of a random uuid.
func NewInvoiceReference() string {
	id := uuid.New()
	return fmt.Sprintf("INV-%s", strings.ToUpper(hex.EncodeToString(id[:])))
}

// Automatically generate UUID and InvoiceReference before saving
func (i *ApplicationInvoice) BeforeCreate(tx *gorm.DB) (err error) {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}

	if i.InvoiceReference == "" {
		i.InvoiceReference = NewInvoiceReference()
	}

	return
}
