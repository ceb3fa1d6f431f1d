package db

import (
	"errors"
	"time"
	"wildlife-licensing-backend/db/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SeedGSTRate records the GST rate in force when none is active yet.
func SeedGSTRate(db *gorm.DB, rate decimal.Decimal, createdBy string) error {
	var existing models.GSTRate
	err := db.Where("is_active = ? AND valid_to IS NULL", true).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return db.Create(&models.GSTRate{
		Rate:      rate,
		ValidFrom: time.Date(2000, time.July, 1, 0, 0, 0, 0, time.UTC),
		IsActive:  true,
		CreatedBy: createdBy,
	}).Error
}
