package services

import (
	"context"
	"fmt"
	"time"
	applications_repositories "wildlife-licensing-backend/applications/repositories"
	"wildlife-licensing-backend/db/models"
	licences_services "wildlife-licensing-backend/licences/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurposeAssignment manages the proposed purposes of selected activities.
type PurposeAssignment struct {
	fees    *FeePolicy
	catalog *licences_services.PurposeCatalog
}

func NewPurposeAssignment(fees *FeePolicy, catalog *licences_services.PurposeCatalog) *PurposeAssignment {
	return &PurposeAssignment{fees: fees, catalog: catalog}
}

// Attach adds a catalog purpose to the activity as selected and payable.
// A purpose already on the activity is returned unchanged.
func (p *PurposeAssignment) Attach(activity *models.SelectedActivity, purpose models.LicencePurpose, fees Fees) *models.ProposedPurpose {
	if existing := activity.PurposeByLicencePurpose(purpose.ID); existing != nil {
		return existing
	}
	attached := purpose
	activity.ProposedPurposes = append(activity.ProposedPurposes, models.ProposedPurpose{
		ID:                 uuid.New(),
		SelectedActivityID: activity.ID,
		LicencePurposeID:   purpose.ID,
		Status:             models.PurposeSelected,
		IsPayable:          true,
		ApplicationFee:     fees.Application,
		LicenceFee:         fees.Licence,
		AdditionalFee:      decimal.Zero,
		LicenceFeeCredit:   decimal.Zero,
		PaidApplicationFee: decimal.Zero,
		PaidLicenceFee:     decimal.Zero,
		PaidAdditionalFee:  decimal.Zero,
		Purpose:            &attached,
	})
	return &activity.ProposedPurposes[len(activity.ProposedPurposes)-1]
}

func (p *PurposeAssignment) lookup(activity *models.SelectedActivity, licencePurposeIDs []uuid.UUID) ([]*models.ProposedPurpose, error) {
	found := make([]*models.ProposedPurpose, 0, len(licencePurposeIDs))
	for _, id := range licencePurposeIDs {
		pp := activity.PurposeByLicencePurpose(id)
		if pp == nil {
			return nil, &ValidationError{
				Message: fmt.Sprintf("licence purpose %s is not part of %s", id, activity.Name()),
				Fields:  map[string]string{"purposes": "unknown licence purpose"},
			}
		}
		found = append(found, pp)
	}
	return found, nil
}

// SetStatus moves the listed purposes to target. Issued purposes only go
// back to selected through ResetForAmendment or Reissue. Nothing changes
// when any purpose is rejected.
func (p *PurposeAssignment) SetStatus(activity *models.SelectedActivity, licencePurposeIDs []uuid.UUID, target models.PurposeStatus) error {
	purposes, err := p.lookup(activity, licencePurposeIDs)
	if err != nil {
		return err
	}
	for _, pp := range purposes {
		if pp.Status == models.PurposeIssued && target == models.PurposeSelected {
			return &InvalidTransitionError{
				From:    string(pp.Status),
				To:      string(target),
				Message: fmt.Sprintf("issued purpose %s cannot return to selected", pp.Name()),
			}
		}
	}
	for _, pp := range purposes {
		pp.Status = target
	}
	return nil
}

// ResetForAmendment puts every purpose of the activity back to selected so
// the officer has to propose it again. It returns how many purposes moved.
func (p *PurposeAssignment) ResetForAmendment(activity *models.SelectedActivity) int {
	reset := 0
	for i := range activity.ProposedPurposes {
		pp := &activity.ProposedPurposes[i]
		if pp.Status == models.PurposeSelected {
			continue
		}
		pp.Status = models.PurposeSelected
		pp.HasPayableFeesAtIssue = false
		reset++
	}
	return reset
}

// Reissue returns issued purposes to selected.
func (p *PurposeAssignment) Reissue(activity *models.SelectedActivity, licencePurposeIDs []uuid.UUID) error {
	purposes, err := p.lookup(activity, licencePurposeIDs)
	if err != nil {
		return err
	}
	for _, pp := range purposes {
		if pp.Status != models.PurposeIssued {
			return NewValidationError("purpose %s has not been issued", pp.Name())
		}
	}
	for _, pp := range purposes {
		pp.Status = models.PurposeSelected
		pp.IssueDate = nil
	}
	return nil
}

// Waive stops fees being collected for the listed purposes and returns
// their names. Only purposes still awaiting issue can be waived.
func (p *PurposeAssignment) Waive(activity *models.SelectedActivity, licencePurposeIDs []uuid.UUID) ([]string, error) {
	purposes, err := p.lookup(activity, licencePurposeIDs)
	if err != nil {
		return nil, err
	}
	for _, pp := range purposes {
		if pp.Status != models.PurposeSelected && pp.Status != models.PurposeProposed {
			return nil, NewValidationError("purpose %s is %s and its fees cannot be waived", pp.Name(), StatusLabel(pp.Status))
		}
	}
	names := make([]string, 0, len(purposes))
	for _, pp := range purposes {
		pp.FeesWaived = true
		pp.HasPayableFeesAtIssue = false
		names = append(names, pp.Name())
	}
	return names, nil
}

// GetPayable returns the proposed purposes whose fees are collected.
func (p *PurposeAssignment) GetPayable(activity *models.SelectedActivity) []*models.ProposedPurpose {
	var payable []*models.ProposedPurpose
	for i := range activity.ProposedPurposes {
		pp := &activity.ProposedPurposes[i]
		if pp.Status == models.PurposeProposed && chargeable(pp) {
			payable = append(payable, pp)
		}
	}
	return payable
}

// Issue marks every proposed purpose issued and returns their names.
func (p *PurposeAssignment) Issue(activity *models.SelectedActivity, at time.Time) []string {
	var names []string
	for i := range activity.ProposedPurposes {
		pp := &activity.ProposedPurposes[i]
		if pp.Status != models.PurposeProposed {
			continue
		}
		issued := at
		pp.Status = models.PurposeIssued
		pp.IssueDate = &issued
		names = append(names, pp.Name())
	}
	return names
}

// CopyResult is what CopyTo produced for the target application.
type CopyResult struct {
	Purpose    *models.ProposedPurpose
	Conditions []models.ApplicationCondition
	Actions    []string
}

// CopyTo carries an issued purpose and its conditions from the source
// application onto the target activity. A licence fee paid on a settled
// prior invoice becomes a credit on an amendment. The copy is upgraded
// when its purpose version was superseded.
func (p *PurposeAssignment) CopyTo(ctx context.Context, repo applications_repositories.ApplicationRepository, source *models.Application, sourcePurpose *models.ProposedPurpose, target *models.Application, targetActivity *models.SelectedActivity, prior *models.ApplicationInvoice) (*CopyResult, error) {
	purpose := sourcePurpose.Purpose
	if purpose == nil {
		loaded, err := p.catalog.GetPurpose(ctx, sourcePurpose.LicencePurposeID)
		if err != nil {
			return nil, err
		}
		purpose = loaded
	}

	pp := p.Attach(targetActivity, *purpose, p.fees.BaseFee(*purpose, target.ApplicationType))
	sourceID := sourcePurpose.ID
	pp.SourcePurposeID = &sourceID
	if target.ApplicationType == models.AmendmentApplication && prior != nil && prior.IsSettled() && prior.CoversActivity(sourcePurpose.SelectedActivityID) {
		pp.LicenceFeeCredit = money(sourcePurpose.PaidLicenceFee.Add(sourcePurpose.LicenceFeeCredit))
	}

	result := &CopyResult{Actions: []string{fmt.Sprintf(ActionCopyPurpose, pp.Name(), applicationLabel(source))}}

	conditions, err := repo.ListConditions(ctx, source.ID, sourcePurpose.LicencePurposeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conditions of %s: %w", pp.Name(), err)
	}
	for _, condition := range conditions {
		sourceConditionID := condition.ID
		result.Conditions = append(result.Conditions, models.ApplicationCondition{
			ID:                uuid.New(),
			ApplicationID:     target.ID,
			LicenceActivityID: targetActivity.LicenceActivityID,
			LicencePurposeID:  pp.LicencePurposeID,
			Condition:         condition.Condition,
			Standard:          condition.Standard,
			Order:             condition.Order,
			SourceConditionID: &sourceConditionID,
		})
	}

	description, changed, err := p.UpdateApplicationPurposeVersion(ctx, target, pp, result.Conditions)
	if err != nil {
		return nil, err
	}
	if changed {
		result.Actions = append(result.Actions, description)
	}
	result.Purpose = pp
	return result, nil
}

// UpdateApplicationPurposeVersion moves a proposed purpose and its
// conditions to the newest version of its catalog purpose, repricing it
// for the application type.
func (p *PurposeAssignment) UpdateApplicationPurposeVersion(ctx context.Context, app *models.Application, pp *models.ProposedPurpose, conditions []models.ApplicationCondition) (string, bool, error) {
	current, err := p.catalog.GetPurpose(ctx, pp.LicencePurposeID)
	if err != nil {
		return "", false, err
	}
	latest, err := p.catalog.LatestVersion(ctx, *current)
	if err != nil {
		return "", false, err
	}
	if latest.ID == current.ID {
		return "", false, nil
	}

	for i := range conditions {
		if conditions[i].LicencePurposeID == current.ID {
			conditions[i].LicencePurposeID = latest.ID
		}
	}
	fees := p.fees.BaseFee(latest, app.ApplicationType)
	pp.LicencePurposeID = latest.ID
	pp.Purpose = &latest
	pp.ApplicationFee = fees.Application
	pp.LicenceFee = fees.Licence
	return fmt.Sprintf(ActionPurposeVersionUpdated, latest.Name, latest.Version), true, nil
}

// FilterAmendable keeps the active purposes that were requested, in
// request order. Requested ids that are not active are dropped.
func FilterAmendable(requested []uuid.UUID, active []applications_repositories.ActivePurpose) []applications_repositories.ActivePurpose {
	byPurpose := make(map[uuid.UUID]applications_repositories.ActivePurpose, len(active))
	for _, a := range active {
		if _, ok := byPurpose[a.LicencePurposeID]; !ok {
			byPurpose[a.LicencePurposeID] = a
		}
	}
	seen := make(map[uuid.UUID]bool, len(requested))
	var amendable []applications_repositories.ActivePurpose
	for _, id := range requested {
		a, ok := byPurpose[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		amendable = append(amendable, a)
	}
	return amendable
}

func applicationLabel(app *models.Application) string {
	if app.LodgementNumber != nil {
		return *app.LodgementNumber
	}
	return app.ID.String()
}
