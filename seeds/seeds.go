package seeds

import (
	"errors"
	"fmt"
	"wildlife-licensing-backend/config"
	"wildlife-licensing-backend/db"
	"wildlife-licensing-backend/db/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const seededBy = "system"

// PurposeSeed describes one licence purpose of the starter catalog.
type PurposeSeed struct {
	Name               string
	ShortName          string
	ApplicationFee     string
	LicenceFee         string
	RenewalFee         string
	AmendmentFee       string
	MinimumAge         int
	AccountCode        string
	RequiredFormFields []string
}

// ActivitySeed is a licence activity with its purposes.
type ActivitySeed struct {
	Name      string
	ShortName string
	Purposes  []PurposeSeed
}

// CategorySeed is a licence category with its activities.
type CategorySeed struct {
	Name       string
	ShortName  string
	Activities []ActivitySeed
}

// StarterCatalog is the catalog a fresh installation begins with.
func StarterCatalog() []CategorySeed {
	return []CategorySeed{
		{
			Name:      "Regulation 17 Fauna",
			ShortName: "REG17",
			Activities: []ActivitySeed{
				{
					Name:      "Fauna Other Purposes",
					ShortName: "FOP",
					Purposes: []PurposeSeed{
						{Name: "Keeping", ShortName: "KEEP", ApplicationFee: "100.00", LicenceFee: "250.00", RenewalFee: "60.00", AmendmentFee: "0", MinimumAge: 18, AccountCode: "NNP415", RequiredFormFields: []string{"species", "premises_address"}},
						{Name: "Trading", ShortName: "TRADE", ApplicationFee: "50.00", LicenceFee: "200.00", RenewalFee: "50.00", AmendmentFee: "25.00", MinimumAge: 18, AccountCode: "NNP415", RequiredFormFields: []string{"species"}},
						{Name: "Rehabilitation", ShortName: "REHAB", ApplicationFee: "0", LicenceFee: "0", RenewalFee: "0", AmendmentFee: "0", AccountCode: "NNP415", RequiredFormFields: []string{"facility_address"}},
					},
				},
				{
					Name:      "Scientific Purposes",
					ShortName: "SCI",
					Purposes: []PurposeSeed{
						{Name: "Research", ShortName: "RES", ApplicationFee: "75.00", LicenceFee: "150.00", RenewalFee: "75.00", AmendmentFee: "0", AccountCode: "NNP416", RequiredFormFields: []string{"project_title", "supervisor"}},
						{Name: "Education", ShortName: "EDU", ApplicationFee: "20.00", LicenceFee: "40.00", RenewalFee: "20.00", AmendmentFee: "0", AccountCode: "NNP416"},
					},
				},
			},
		},
		{
			Name:      "Flora",
			ShortName: "FLORA",
			Activities: []ActivitySeed{
				{
					Name:      "Commercial Purposes",
					ShortName: "COM",
					Purposes: []PurposeSeed{
						{Name: "Flora Harvest", ShortName: "HARV", ApplicationFee: "120.00", LicenceFee: "300.00", RenewalFee: "100.00", AmendmentFee: "30.00", MinimumAge: 16, AccountCode: "NNP420", RequiredFormFields: []string{"harvest_area", "species"}},
					},
				},
			},
		},
	}
}

func (p PurposeSeed) model(categoryID, activityID uuid.UUID, order int) (models.LicencePurpose, error) {
	fees := make([]decimal.Decimal, 4)
	for i, raw := range []string{p.ApplicationFee, p.LicenceFee, p.RenewalFee, p.AmendmentFee} {
		if raw == "" {
			raw = "0"
		}
		fee, err := decimal.NewFromString(raw)
		if err != nil {
			return models.LicencePurpose{}, fmt.Errorf("purpose %s: invalid fee %q: %w", p.Name, raw, err)
		}
		if fee.IsNegative() {
			return models.LicencePurpose{}, fmt.Errorf("purpose %s: negative fee %s", p.Name, raw)
		}
		fees[i] = fee
	}
	return models.LicencePurpose{
		Name:                    p.Name,
		ShortName:               p.ShortName,
		Version:                 1,
		LicenceCategoryID:       categoryID,
		LicenceActivityID:       activityID,
		DisplayOrder:            order,
		BaseApplicationFee:      fees[0],
		BaseLicenceFee:          fees[1],
		RenewalApplicationFee:   fees[2],
		AmendmentApplicationFee: fees[3],
		MinimumAge:              p.MinimumAge,
		OracleAccountCode:       p.AccountCode,
		RequiredFields:          datatypes.JSONSlice[string](p.RequiredFormFields),
	}, nil
}

// SeedCatalog creates the starter catalog. Rows that already exist by name
// are left untouched, so running it again changes nothing.
func SeedCatalog(tx *gorm.DB, catalog []CategorySeed) error {
	for ci, c := range catalog {
		category := models.LicenceCategory{Name: c.Name, ShortName: c.ShortName, DisplayOrder: ci + 1}
		if err := tx.Where("name = ?", c.Name).FirstOrCreate(&category).Error; err != nil {
			return fmt.Errorf("failed to seed category %s: %w", c.Name, err)
		}
		for ai, a := range c.Activities {
			activity := models.LicenceActivity{Name: a.Name, ShortName: a.ShortName, LicenceCategoryID: category.ID, DisplayOrder: ai + 1}
			if err := tx.Where("name = ? AND licence_category_id = ?", a.Name, category.ID).FirstOrCreate(&activity).Error; err != nil {
				return fmt.Errorf("failed to seed activity %s: %w", a.Name, err)
			}
			for pi, p := range a.Purposes {
				purpose, err := p.model(category.ID, activity.ID, pi+1)
				if err != nil {
					return err
				}
				if err := tx.Where("name = ? AND licence_activity_id = ? AND replaced_by_id IS NULL", p.Name, activity.ID).FirstOrCreate(&purpose).Error; err != nil {
					return fmt.Errorf("failed to seed purpose %s: %w", p.Name, err)
				}
			}
			if err := seedActivityGroups(tx, activity); err != nil {
				return err
			}
		}
	}
	return nil
}

// seedActivityGroups gives every activity an empty officer, approver and
// assessor group for administrators to fill.
func seedActivityGroups(tx *gorm.DB, activity models.LicenceActivity) error {
	for _, kind := range []models.PermissionGroupKind{models.OfficerGroup, models.ApproverGroup, models.AssessorGroup} {
		name := fmt.Sprintf("%s %s", activity.Name, groupSuffix(kind))
		group := models.ActivityPermissionGroup{Name: name, Kind: kind, IsActive: true, CreatedBy: seededBy}
		if err := tx.Where("name = ? AND kind = ?", name, kind).FirstOrCreate(&group).Error; err != nil {
			return fmt.Errorf("failed to seed group %s: %w", name, err)
		}
		link := models.PermissionGroupActivity{GroupID: group.ID, LicenceActivityID: activity.ID}
		if err := tx.Where("group_id = ? AND licence_activity_id = ?", group.ID, activity.ID).FirstOrCreate(&link).Error; err != nil {
			return fmt.Errorf("failed to link group %s: %w", name, err)
		}
	}
	return nil
}

func groupSuffix(kind models.PermissionGroupKind) string {
	switch kind {
	case models.OfficerGroup:
		return "Officers"
	case models.ApproverGroup:
		return "Approvers"
	default:
		return "Assessors"
	}
}

// SeedAdministrator makes sure a super user exists for the given email.
func SeedAdministrator(tx *gorm.DB, email string) error {
	if email == "" {
		return nil
	}
	var existing models.User
	err := tx.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return tx.Create(&models.User{
		FirstName: "System",
		LastName:  "Administrator",
		Email:     email,
		Role:      models.SuperUserRole,
		Active:    true,
	}).Error
}

// SeedLicensingAll runs every seeder in one transaction.
func SeedLicensingAll(database *gorm.DB, adminEmail string, gstRate decimal.Decimal) error {
	config.Logger.Info("Starting licensing seed")
	err := database.Transaction(func(tx *gorm.DB) error {
		if err := SeedCatalog(tx, StarterCatalog()); err != nil {
			return err
		}
		if err := db.SeedGSTRate(tx, gstRate, seededBy); err != nil {
			return fmt.Errorf("failed to seed GST rate: %w", err)
		}
		return SeedAdministrator(tx, adminEmail)
	})
	if err != nil {
		config.Logger.Error("Licensing seed failed", zap.Error(err))
		return err
	}
	config.Logger.Info("Licensing seed completed")
	return nil
}
