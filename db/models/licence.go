package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LicenceCategory groups activities that are issued on the same licence.
type LicenceCategory struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	Name         string    `gorm:"type:varchar(200);not null" json:"name"`
	ShortName    string    `gorm:"type:varchar(50)" json:"short_name"`
	DisplayOrder int       `gorm:"default:0" json:"display_order"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// LicenceActivity is a processing unit of a licence category. Staff
// permission groups are scoped to activities.
type LicenceActivity struct {
	ID                uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	Name              string    `gorm:"type:varchar(200);not null" json:"name"`
	ShortName         string    `gorm:"type:varchar(50)" json:"short_name"`
	LicenceCategoryID uuid.UUID `gorm:"type:uuid;not null;index" json:"licence_category_id"`
	DisplayOrder      int       `gorm:"default:0" json:"display_order"`

	LicenceCategory *LicenceCategory `gorm:"foreignKey:LicenceCategoryID" json:"licence_category,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// LicencePurpose is an immutable, versioned definition. A new version is a
// new row; the superseded row points at it through ReplacedByID.
type LicencePurpose struct {
	ID                uuid.UUID  `gorm:"type:uuid;primary_key;" json:"id"`
	Name              string     `gorm:"type:varchar(200);not null" json:"name"`
	ShortName         string     `gorm:"type:varchar(50)" json:"short_name"`
	Version           int        `gorm:"not null;default:1" json:"version"`
	ReplacedByID      *uuid.UUID `gorm:"type:uuid;index" json:"replaced_by_id"`
	LicenceCategoryID uuid.UUID  `gorm:"type:uuid;not null;index" json:"licence_category_id"`
	LicenceActivityID uuid.UUID  `gorm:"type:uuid;not null;index" json:"licence_activity_id"`
	DisplayOrder      int        `gorm:"default:0" json:"display_order"`

	BaseApplicationFee      decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"base_application_fee"`
	BaseLicenceFee          decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"base_licence_fee"`
	RenewalApplicationFee   decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"renewal_application_fee"`
	AmendmentApplicationFee decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"amendment_application_fee"`

	MinimumAge        int                         `gorm:"default:0" json:"minimum_age"`
	OracleAccountCode string                      `gorm:"type:varchar(50)" json:"oracle_account_code"`
	RequiredFields    datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"required_fields"`

	LicenceActivity *LicenceActivity `gorm:"foreignKey:LicenceActivityID" json:"licence_activity,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// WildlifeLicence is issued once per category and applicant; later
// applications in the same category are attached to it.
type WildlifeLicence struct {
	ID                   uuid.UUID  `gorm:"type:uuid;primary_key;" json:"id"`
	LicenceNumber        string     `gorm:"type:varchar(20);uniqueIndex;not null" json:"licence_number"`
	LicenceCategoryID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"licence_category_id"`
	CurrentApplicationID *uuid.UUID `gorm:"type:uuid;index" json:"current_application_id"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *LicenceCategory) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}

func (a *LicenceActivity) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return
}

func (p *LicencePurpose) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}

func (l *WildlifeLicence) BeforeCreate(tx *gorm.DB) (err error) {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return
}
