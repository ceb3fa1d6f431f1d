package config

import (
	"fmt"
	"log"
	"time"
	"wildlife-licensing-backend/db/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// allModels defines all models that should be migrated.
// This is the only place you need to add new models
var allModels = []interface{}{
	// Staff and applicants
	&models.User{},
	&models.ActivityPermissionGroup{},
	&models.PermissionGroupActivity{},
	&models.PermissionGroupMember{},

	// Licence catalog
	&models.LicenceCategory{},
	&models.LicenceActivity{},
	&models.LicencePurpose{},
	&models.WildlifeLicence{},
	&models.GSTRate{},

	// Applications
	&models.Application{},
	&models.SelectedActivity{},
	&models.ProposedPurpose{},
	&models.ApplicationCondition{},
	&models.Assessment{},
	&models.AmendmentRequest{},
	&models.ApplicationUserAction{},
	&models.ApplicationInvoice{},
	&models.LodgementCounter{},

	// Notifications
	&models.EmailLog{},
}

func ConfigureDatabase() *gorm.DB {
	host := GetEnv("DB_HOST")
	user := GetEnv("POSTGRES_USER")
	password := GetEnv("POSTGRES_PASSWORD")
	dbname := GetEnv("POSTGRES_DB")
	port := GetEnvDefault("DB_PORT", "5432")
	timezone := GetEnvDefault("DB_TIMEZONE", "Australia/Perth")

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=%s",
		host, user, password, dbname, port, timezone,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("[DB-CONNECT] Failed to connect to database: %v", err)
	}

	// Auto-migrate all models using the allModels slice
	if err := db.AutoMigrate(allModels...); err != nil {
		log.Fatalf("failed to migrate tables: %v", err)
	}
	log.Println("Tables migrated successfully")

	if err := CreateAwaitingAssessmentPartialIndex(db); err != nil {
		log.Fatalf("failed to create assessment index: %v", err)
	}
	if err := SeedLodgementCounter(db); err != nil {
		log.Fatalf("failed to seed lodgement counter: %v", err)
	}

	// Connection pool configuration
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("[DB-POOL] Failed to get underlying DB connection: %v", err)
	}
	sqlDB.SetMaxOpenConns(30)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	log.Println("[DB-POOL] Connection pool configured")
	log.Println("[DB-STATUS] Database setup complete")
	return db
}
