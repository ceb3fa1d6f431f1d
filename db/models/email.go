package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EmailLog records every notification email handed to the mail server.
type EmailLog struct {
	ID            uuid.UUID  `gorm:"type:uuid;primary_key;" json:"id"`
	ApplicationID *uuid.UUID `gorm:"type:uuid;index" json:"application_id"`
	Kind          string     `gorm:"type:varchar(50);index" json:"kind"`
	Recipient     string     `gorm:"not null" json:"recipient"`
	Subject       string     `json:"subject"`
	Message       string     `gorm:"type:text" json:"message"`
	SentAt        time.Time  `json:"sent_at"`
	Failed        bool       `gorm:"default:false" json:"failed"`
	Error         *string    `gorm:"type:text" json:"error,omitempty"`
}

func (e *EmailLog) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return
}
