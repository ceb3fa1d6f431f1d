package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApplicationUserAction is an immutable audit entry written with every
// change to an application.
type ApplicationUserAction struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	ApplicationID uuid.UUID `gorm:"type:uuid;not null;index" json:"application_id"`
	WhoID         uuid.UUID `gorm:"type:uuid;not null;index" json:"who_id"`
	When          time.Time `gorm:"not null;index" json:"when"`
	What          string    `gorm:"type:text;not null" json:"what"`
	CorrelationID string    `gorm:"type:varchar(64);index" json:"correlation_id"`
}

func (a *ApplicationUserAction) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return
}
