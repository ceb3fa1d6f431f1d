package services

import (
	"time"
	"wildlife-licensing-backend/db/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2024, time.March, 4, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func purposeWithFees(name string, status models.PurposeStatus, applicationFee, licenceFee string) models.ProposedPurpose {
	id := uuid.New()
	return models.ProposedPurpose{
		ID:                 uuid.New(),
		LicencePurposeID:   id,
		Status:             status,
		IsPayable:          true,
		ApplicationFee:     dec(applicationFee),
		LicenceFee:         dec(licenceFee),
		AdditionalFee:      decimal.Zero,
		LicenceFeeCredit:   decimal.Zero,
		PaidApplicationFee: decimal.Zero,
		PaidLicenceFee:     decimal.Zero,
		PaidAdditionalFee:  decimal.Zero,
		Purpose:            &models.LicencePurpose{ID: id, Name: name, OracleAccountCode: "NNP415"},
	}
}

func activityWith(status models.ProcessingStatus, purposes ...models.ProposedPurpose) models.SelectedActivity {
	activity := models.SelectedActivity{
		ID:                uuid.New(),
		LicenceActivityID: uuid.New(),
		ProcessingStatus:  status,
		ActivityStatus:    models.ActivityDefault,
		LicenceActivity:   &models.LicenceActivity{Name: "Fauna Other Purpose"},
	}
	for _, pp := range purposes {
		pp.SelectedActivityID = activity.ID
		activity.ProposedPurposes = append(activity.ProposedPurposes, pp)
	}
	return activity
}

func applicationWith(applicationType models.ApplicationType, activities ...models.SelectedActivity) *models.Application {
	app := &models.Application{ID: uuid.New(), ApplicationType: applicationType, SubmitterID: uuid.New()}
	for _, activity := range activities {
		activity.ApplicationID = app.ID
		app.SelectedActivities = append(app.SelectedActivities, activity)
	}
	return app
}
