package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	applications_repositories "wildlife-licensing-backend/applications/repositories"
	"wildlife-licensing-backend/db/models"
	notifications_services "wildlife-licensing-backend/notifications/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func validProcessingStatus(status models.ProcessingStatus) bool {
	for _, s := range models.AllProcessingStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// applicantIDs are the people told about decisions on the application.
func applicantIDs(app *models.Application) []uuid.UUID {
	ids := []uuid.UUID{app.SubmitterID}
	if person := app.PersonApplicantID(); person != app.SubmitterID {
		ids = append(ids, person)
	}
	return ids
}

// SetActivityProcessingStatus is the officer's manual move of an activity
// between with_officer and officer_conditions. Setting the current status
// again records nothing.
func (o *ApplicationOrchestrator) SetActivityProcessingStatus(ctx context.Context, rc RequestContext, appID, activityID uuid.UUID, status models.ProcessingStatus) (*models.Application, error) {
	return o.mutate(ctx, rc, appID, "set_processing_status", func(m *mutation) error {
		if !validProcessingStatus(status) {
			return &ValidationError{
				Message: fmt.Sprintf("unknown processing status %q", status),
				Fields:  map[string]string{"status": "unknown"},
			}
		}
		if _, err := o.requirePermission(ctx, rc, models.PermissionLicensingOfficer); err != nil {
			return err
		}
		activity, err := m.activity(activityID)
		if err != nil {
			return err
		}
		description, changed, err := o.machine.SetProcessingStatus(activity, status)
		if err != nil {
			return err
		}
		if changed {
			m.record(description)
		}
		return nil
	})
}

var amendmentReasons = map[models.AmendmentReason]bool{
	models.AmendmentInsufficientDetail: true,
	models.AmendmentMissingInformation: true,
	models.AmendmentOther:              true,
}

// RequestAmendment asks the applicant to correct the listed activities.
// Their purposes go back to selected, lodged activities return to draft
// for resubmission and issued activities reopen with the officer. Pending
// invoices for them are cancelled.
func (o *ApplicationOrchestrator) RequestAmendment(ctx context.Context, rc RequestContext, appID uuid.UUID, activityIDs []uuid.UUID, reason models.AmendmentReason, text string) (*models.Application, error) {
	return o.mutate(ctx, rc, appID, "request_amendment", func(m *mutation) error {
		if !amendmentReasons[reason] {
			return &ValidationError{Message: fmt.Sprintf("unknown amendment reason %q", reason), Fields: map[string]string{"reason": "unknown"}}
		}
		ids := uniqueIDs(activityIDs)
		if len(ids) == 0 {
			return &ValidationError{Message: "no activity to amend", Fields: map[string]string{"activity_ids": "required"}}
		}
		officer, err := o.requirePermission(ctx, rc, models.PermissionLicensingOfficer)
		if err != nil {
			return err
		}

		var names []string
		for _, id := range ids {
			activity, err := m.activity(id)
			if err != nil {
				return err
			}
			if activity.ProcessingStatus == models.ProcessingDiscarded {
				return NewValidationError("%s has been discarded and cannot be amended", activity.Name())
			}

			request := &models.AmendmentRequest{
				ID:                 uuid.New(),
				ApplicationID:      m.app.ID,
				SelectedActivityID: activity.ID,
				Reason:             reason,
				Text:               text,
				Status:             models.AmendmentRequested,
				OfficerID:          officer.ID,
				CreatedAt:          o.now(),
			}
			if err := m.repo.CreateAmendmentRequest(m.ctx, request); err != nil {
				return err
			}

			o.purposes.ResetForAmendment(activity)
			var description string
			switch {
			case canTransition(activity.ProcessingStatus, models.ProcessingDraft, opAmend):
				description, err = o.machine.ReturnForAmendment(activity)
			case activity.ProcessingStatus == models.ProcessingAccepted:
				description, err = o.machine.Reissue(activity)
			}
			if err != nil {
				return err
			}
			if description != "" {
				m.record(description)
			}
			m.record(fmt.Sprintf(ActionRequestAmendment, activity.Name(), StatusLabel(reason)))
			names = append(names, activity.Name())
		}
		if err := o.cancelPendingInvoices(m, ids); err != nil {
			return err
		}

		m.notify(notifications_services.KindAmendmentRequested, applicantIDs(m.app),
			fmt.Sprintf("Amendment required for application %s", applicationLabel(m.app)),
			fmt.Sprintf("Please update %s on application %s.\n%s", strings.Join(names, ", "), applicationLabel(m.app), text))
		return nil
	})
}

// ProposedPurposeInput is the officer's decision on one purpose when
// proposing an activity for issue.
type ProposedPurposeInput struct {
	PurposeID          uuid.UUID
	AdditionalFee      decimal.Decimal
	AdditionalFeeText  *string
	AdjustedLicenceFee *decimal.Decimal
}

func validateProposal(inputs []ProposedPurposeInput) error {
	if len(inputs) == 0 {
		return &ValidationError{Message: "at least one licence purpose must be proposed", Fields: map[string]string{"purposes": "required"}}
	}
	fields := map[string]string{}
	for _, in := range inputs {
		if in.AdditionalFee.IsNegative() {
			fields["additional_fee"] = "must not be negative"
		}
		if in.AdjustedLicenceFee != nil && in.AdjustedLicenceFee.IsNegative() {
			fields["adjusted_licence_fee"] = "must not be negative"
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Message: "invalid proposed fees", Fields: fields}
	}
	return nil
}

// ProposeLicence proposes the listed purposes for issue and declines the
// rest. The activity then waits for its fees.
func (o *ApplicationOrchestrator) ProposeLicence(ctx context.Context, rc RequestContext, appID, activityID uuid.UUID, inputs []ProposedPurposeInput) (*models.Application, error) {
	return o.mutate(ctx, rc, appID, "propose_licence", func(m *mutation) error {
		if err := validateProposal(inputs); err != nil {
			return err
		}
		if _, err := o.requirePermission(ctx, rc, models.PermissionLicensingOfficer); err != nil {
			return err
		}
		activity, err := m.activity(activityID)
		if err != nil {
			return err
		}
		description, err := o.machine.ProposeLicence(activity)
		if err != nil {
			return err
		}

		listed := make(map[uuid.UUID]bool, len(inputs))
		proposed := make([]uuid.UUID, 0, len(inputs))
		for _, in := range inputs {
			if !listed[in.PurposeID] {
				listed[in.PurposeID] = true
				proposed = append(proposed, in.PurposeID)
			}
		}
		var declined []uuid.UUID
		for _, pp := range activity.ProposedPurposes {
			if !listed[pp.LicencePurposeID] {
				declined = append(declined, pp.LicencePurposeID)
			}
		}
		if err := o.purposes.SetStatus(activity, proposed, models.PurposeProposed); err != nil {
			return err
		}
		if err := o.purposes.SetStatus(activity, declined, models.PurposeDeclined); err != nil {
			return err
		}

		for _, in := range inputs {
			pp := activity.PurposeByLicencePurpose(in.PurposeID)
			pp.AdditionalFee = money(in.AdditionalFee)
			pp.AdditionalFeeText = in.AdditionalFeeText
			if in.AdjustedLicenceFee != nil && !money(*in.AdjustedLicenceFee).Equal(pp.LicenceFee) {
				pp.LicenceFee = money(*in.AdjustedLicenceFee)
				pp.HasAdjustedLicenceFee = true
				m.record(fmt.Sprintf(ActionProposedPurposeFeeChange, pp.Name(), pp.LicenceFee.StringFixed(2)))
			}
			pp.HasPayableFeesAtIssue = o.fees.Outstanding(pp).IsPositive()
		}

		m.record(description)
		m.record(fmt.Sprintf(ActionProposeIssue, activity.Name()))
		return nil
	})
}

// ProposeDecline declines every purpose not yet issued and closes the
// activity.
func (o *ApplicationOrchestrator) ProposeDecline(ctx context.Context, rc RequestContext, appID, activityID uuid.UUID, reason string) (*models.Application, error) {
	return o.mutate(ctx, rc, appID, "propose_decline", func(m *mutation) error {
		if _, err := o.requirePermission(ctx, rc, models.PermissionLicensingOfficer); err != nil {
			return err
		}
		activity, err := m.activity(activityID)
		if err != nil {
			return err
		}
		description, err := o.machine.ProposeDecline(activity)
		if err != nil {
			return err
		}
		for i := range activity.ProposedPurposes {
			if pp := &activity.ProposedPurposes[i]; pp.Status != models.PurposeIssued {
				pp.Status = models.PurposeDeclined
			}
		}
		if reason = strings.TrimSpace(reason); reason != "" {
			activity.DeclineReason = &reason
		}
		m.record(description)
		m.record(fmt.Sprintf(ActionProposeDecline, activity.Name()))
		m.notify(notifications_services.KindActivityDeclined, applicantIDs(m.app),
			fmt.Sprintf("Application %s: %s declined", applicationLabel(m.app), activity.Name()),
			fmt.Sprintf("%s on application %s has been declined.\n%s", activity.Name(), applicationLabel(m.app), reason))
		return nil
	})
}

// WaiveFees stops collecting fees for the listed purposes of an activity.
// Pending invoices covering the activity are cancelled so the applicant is
// never charged for them.
func (o *ApplicationOrchestrator) WaiveFees(ctx context.Context, rc RequestContext, appID, activityID uuid.UUID, purposeIDs []uuid.UUID) (*models.Application, error) {
	return o.mutate(ctx, rc, appID, "waive_fees", func(m *mutation) error {
		ids := uniqueIDs(purposeIDs)
		if len(ids) == 0 {
			return &ValidationError{Message: "no licence purpose to waive", Fields: map[string]string{"purpose_ids": "required"}}
		}
		if _, err := o.requirePermission(ctx, rc, models.PermissionLicensingOfficer); err != nil {
			return err
		}
		activity, err := m.activity(activityID)
		if err != nil {
			return err
		}
		names, err := o.purposes.Waive(activity, ids)
		if err != nil {
			return err
		}
		if err := o.cancelPendingInvoices(m, []uuid.UUID{activity.ID}); err != nil {
			return err
		}
		m.record(fmt.Sprintf(ActionWaiveFees, strings.Join(names, ", ")))
		return nil
	})
}

// ReissueActivity reopens an issued activity with the officer. Its issued
// purposes go back to selected and have to be proposed again; fees already
// paid for them still count.
func (o *ApplicationOrchestrator) ReissueActivity(ctx context.Context, rc RequestContext, appID, activityID uuid.UUID) (*models.Application, error) {
	return o.mutate(ctx, rc, appID, "reissue_activity", func(m *mutation) error {
		if _, err := o.requirePermission(ctx, rc, models.PermissionLicensingOfficer); err != nil {
			return err
		}
		activity, err := m.activity(activityID)
		if err != nil {
			return err
		}
		description, err := o.machine.Reissue(activity)
		if err != nil {
			return err
		}
		var issued []uuid.UUID
		for _, pp := range activity.ProposedPurposes {
			if pp.Status == models.PurposeIssued {
				issued = append(issued, pp.LicencePurposeID)
			}
		}
		if err := o.purposes.Reissue(activity, issued); err != nil {
			return err
		}
		m.record(description)
		m.record(fmt.Sprintf(ActionReissueActivity, activity.Name()))
		return nil
	})
}

// FinalDecision issues an activity whose fees are settled.
func (o *ApplicationOrchestrator) FinalDecision(ctx context.Context, rc RequestContext, appID, activityID uuid.UUID) (*models.Application, error) {
	return o.mutate(ctx, rc, appID, "final_decision", func(m *mutation) error {
		if _, err := o.requirePermission(ctx, rc, models.PermissionIssuingOfficer); err != nil {
			return err
		}
		activity, err := m.activity(activityID)
		if err != nil {
			return err
		}
		return o.finalise(m, activity)
	})
}

// finalise accepts the activity, issues its proposed purposes and hangs
// the application on the applicant's licence for the category.
func (o *ApplicationOrchestrator) finalise(m *mutation, activity *models.SelectedActivity) error {
	description, err := o.machine.FinalDecision(activity)
	if err != nil {
		return err
	}
	issued := o.purposes.Issue(activity, *activity.IssueDate)

	licence, err := o.licenceFor(m)
	if err != nil {
		return err
	}

	m.record(description)
	m.record(fmt.Sprintf(ActionIssueLicence, licence.LicenceNumber, strings.Join(issued, ", ")))
	m.notify(notifications_services.KindLicenceIssued, applicantIDs(m.app),
		fmt.Sprintf("Licence %s issued", licence.LicenceNumber),
		fmt.Sprintf("%s has been issued on licence %s: %s.", activity.Name(), licence.LicenceNumber, strings.Join(issued, ", ")))
	return nil
}

// licenceFor finds the applicant's licence in the application's category,
// creating it on first issue, and makes the application its current one.
func (o *ApplicationOrchestrator) licenceFor(m *mutation) (*models.WildlifeLicence, error) {
	licence, err := m.repo.FindLicence(m.ctx, m.app.LicenceCategoryID, applications_repositories.KeyOf(m.app))
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		seq := m.app.LodgementSequence
		if seq == 0 {
			if seq, err = m.repo.NextLodgementSequence(m.ctx); err != nil {
				return nil, err
			}
		}
		licence = &models.WildlifeLicence{
			ID:                uuid.New(),
			LicenceNumber:     fmt.Sprintf("L%06d", seq),
			LicenceCategoryID: m.app.LicenceCategoryID,
		}
		if err := m.repo.CreateLicence(m.ctx, licence); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("failed to find licence: %w", err)
	}

	appID := m.app.ID
	licence.CurrentApplicationID = &appID
	if err := m.repo.SaveLicence(m.ctx, licence); err != nil {
		return nil, err
	}
	licenceID := licence.ID
	m.app.LicenceID = &licenceID
	return licence, nil
}

// DiscardActivity withdraws a draft activity. The submitter or a
// licensing officer may do this.
func (o *ApplicationOrchestrator) DiscardActivity(ctx context.Context, rc RequestContext, appID, activityID uuid.UUID) (*models.Application, error) {
	return o.mutate(ctx, rc, appID, "discard_activity", func(m *mutation) error {
		if _, err := o.requireApplicantOrPermission(ctx, rc, m.app, models.PermissionLicensingOfficer); err != nil {
			return err
		}
		activity, err := m.activity(activityID)
		if err != nil {
			return err
		}
		description, err := o.machine.Discard(activity)
		if err != nil {
			return err
		}
		m.record(description)
		return nil
	})
}

// DiscardApplication discards every draft activity. It fails without
// changes when any activity has been lodged.
func (o *ApplicationOrchestrator) DiscardApplication(ctx context.Context, rc RequestContext, appID uuid.UUID) (*models.Application, error) {
	return o.mutate(ctx, rc, appID, "discard_application", func(m *mutation) error {
		if _, err := o.requireApplicantOrPermission(ctx, rc, m.app, models.PermissionLicensingOfficer); err != nil {
			return err
		}
		for i := range m.app.SelectedActivities {
			activity := &m.app.SelectedActivities[i]
			if activity.ProcessingStatus == models.ProcessingDiscarded {
				continue
			}
			description, err := o.machine.Discard(activity)
			if err != nil {
				return err
			}
			m.record(description)
		}
		return nil
	})
}

func (o *ApplicationOrchestrator) Suspend(ctx context.Context, rc RequestContext, appID, activityID uuid.UUID) (*models.Application, error) {
	return o.changeActivityStatus(ctx, rc, appID, activityID, models.ActivitySuspended, "suspend", false)
}

func (o *ApplicationOrchestrator) Reinstate(ctx context.Context, rc RequestContext, appID, activityID uuid.UUID) (*models.Application, error) {
	return o.changeActivityStatus(ctx, rc, appID, activityID, models.ActivityCurrent, "reinstate", false)
}

func (o *ApplicationOrchestrator) Cancel(ctx context.Context, rc RequestContext, appID, activityID uuid.UUID) (*models.Application, error) {
	return o.changeActivityStatus(ctx, rc, appID, activityID, models.ActivityCancelled, "cancel", false)
}

// Surrender is requested by the licence holder or recorded by an officer.
func (o *ApplicationOrchestrator) Surrender(ctx context.Context, rc RequestContext, appID, activityID uuid.UUID) (*models.Application, error) {
	return o.changeActivityStatus(ctx, rc, appID, activityID, models.ActivitySurrendered, "surrender", true)
}

func (o *ApplicationOrchestrator) changeActivityStatus(ctx context.Context, rc RequestContext, appID, activityID uuid.UUID, to models.ActivityStatus, operation string, applicantMay bool) (*models.Application, error) {
	return o.mutate(ctx, rc, appID, operation, func(m *mutation) error {
		var err error
		if applicantMay {
			_, err = o.requireApplicantOrPermission(ctx, rc, m.app, models.PermissionLicensingOfficer)
		} else {
			_, err = o.requirePermission(ctx, rc, models.PermissionLicensingOfficer)
		}
		if err != nil {
			return err
		}
		activity, err := m.activity(activityID)
		if err != nil {
			return err
		}
		description, err := o.machine.SetActivityStatus(activity, to)
		if err != nil {
			return err
		}
		m.record(description)
		o.logger.Debug("Activity status changed",
			zap.String("activityID", activity.ID.String()),
			zap.String("status", string(to)),
			zap.String("correlationID", rc.CorrelationID),
		)
		return nil
	})
}
