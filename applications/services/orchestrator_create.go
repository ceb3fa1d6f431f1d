package services

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	applications_repositories "wildlife-licensing-backend/applications/repositories"
	"wildlife-licensing-backend/db/models"
	licences_services "wildlife-licensing-backend/licences/services"
	notifications_services "wildlife-licensing-backend/notifications/services"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// CreateApplicationInput describes a new application. Amendments, renewals
// and reissues name the licensed activity and purpose they continue.
type CreateApplicationInput struct {
	ApplicationType    models.ApplicationType
	PurposeIDs         []uuid.UUID
	OrgApplicantID     *uuid.UUID
	ProxyApplicantID   *uuid.UUID
	SelectedActivityID *uuid.UUID
	SelectedPurposeID  *uuid.UUID
	PaymentMethod      models.PaymentMethod
}

type creationPlan struct {
	purposes   []models.LicencePurpose
	conditions []models.ApplicationCondition
	actions    []string
}

func validApplicationType(t models.ApplicationType) bool {
	switch t {
	case models.NewLicenceApplication, models.AmendmentApplication, models.RenewalApplication,
		models.ReissueApplication, models.SystemGeneratedApplication:
		return true
	}
	return false
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Create builds a draft application with one selected activity per
// licence activity of the requested purposes.
func (o *ApplicationOrchestrator) Create(ctx context.Context, rc RequestContext, in CreateApplicationInput) (*models.Application, error) {
	app, err := o.create(ctx, rc, in)
	if err != nil {
		o.logFailure("create", rc, uuid.Nil, err)
		return nil, err
	}
	return app, nil
}

func (o *ApplicationOrchestrator) create(ctx context.Context, rc RequestContext, in CreateApplicationInput) (*models.Application, error) {
	submitter, err := o.actor(ctx, rc)
	if err != nil {
		return nil, err
	}
	if !validApplicationType(in.ApplicationType) {
		return nil, &ValidationError{
			Message: fmt.Sprintf("unknown application type %q", in.ApplicationType),
			Fields:  map[string]string{"application_type": "unknown"},
		}
	}
	if in.OrgApplicantID != nil && in.ProxyApplicantID != nil {
		return nil, NewValidationError("an application is made for an organisation or as a proxy, not both")
	}
	if in.ProxyApplicantID != nil && *in.ProxyApplicantID == submitter.ID {
		return nil, NewValidationError("a proxy application must be made for another person")
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = models.CardPaymentMethod
	}

	app := &models.Application{
		ID:               uuid.New(),
		ApplicationType:  in.ApplicationType,
		SubmitType:       in.PaymentMethod.SubmitType(),
		CustomerStatus:   models.CustomerStatusDraft,
		SubmitterID:      submitter.ID,
		OrgApplicantID:   in.OrgApplicantID,
		ProxyApplicantID: in.ProxyApplicantID,
	}

	var plan *creationPlan
	if in.ApplicationType.RequiresSourceActivity() {
		plan, err = o.planFromLicence(ctx, app, in)
	} else {
		plan, err = o.planNew(ctx, app, in)
	}
	if err != nil {
		return nil, err
	}
	if err := o.checkMinimumAge(ctx, app, plan.purposes); err != nil {
		return nil, err
	}

	person := submitter.FullName()
	if app.ProxyApplicantID != nil {
		if proxied, err := o.users.GetUserByID(ctx, *app.ProxyApplicantID); err == nil {
			person = proxied.FullName()
		}
	}
	actions := append([]string{fmt.Sprintf(ActionCreateApplication, StatusLabel(app.ApplicationType), person)}, plan.actions...)

	err = o.apps.Transaction(ctx, func(repo applications_repositories.ApplicationRepository) error {
		if err := repo.CreateApplication(ctx, app); err != nil {
			return err
		}
		if len(plan.conditions) > 0 {
			if err := repo.CreateConditions(ctx, plan.conditions); err != nil {
				return err
			}
		}
		when := o.now()
		for _, what := range actions {
			if err := repo.CreateAction(ctx, &models.ApplicationUserAction{
				ApplicationID: app.ID,
				WhoID:         rc.ActorID,
				When:          when,
				What:          what,
				CorrelationID: rc.CorrelationID,
			}); err != nil {
				return fmt.Errorf("failed to record action: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info("Application created",
		zap.String("applicationID", app.ID.String()),
		zap.String("applicationType", string(app.ApplicationType)),
		zap.String("actorID", rc.ActorID.String()),
		zap.String("correlationID", rc.CorrelationID),
	)
	for _, observer := range o.observers {
		observer.ApplicationChanged(ctx, app)
	}
	return app, nil
}

func (o *ApplicationOrchestrator) planNew(ctx context.Context, app *models.Application, in CreateApplicationInput) (*creationPlan, error) {
	ids := uniqueIDs(in.PurposeIDs)
	if len(ids) == 0 {
		return nil, &ValidationError{Message: "at least one licence purpose is required", Fields: map[string]string{"purpose_ids": "required"}}
	}
	purposes, err := o.catalog.GetPurposes(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load licence purposes: %w", err)
	}
	if len(purposes) != len(ids) {
		return nil, &ValidationError{Message: "unknown licence purpose requested", Fields: map[string]string{"purpose_ids": "unknown licence purpose"}}
	}
	purposes, err = o.catalog.LatestVersions(ctx, purposes)
	if err != nil {
		return nil, err
	}
	app.LicenceCategoryID = purposes[0].LicenceCategoryID
	for _, p := range purposes[1:] {
		if p.LicenceCategoryID != app.LicenceCategoryID {
			return nil, NewValidationError("all licence purposes must belong to the same licence category")
		}
	}

	for _, group := range licences_services.GroupByActivity(purposes) {
		activity := models.SelectedActivity{
			ID:                uuid.New(),
			ApplicationID:     app.ID,
			LicenceActivityID: group.ActivityID,
			ProcessingStatus:  models.ProcessingDraft,
			ActivityStatus:    models.ActivityDefault,
			LicenceActivity:   group.Activity,
		}
		for _, purpose := range group.Purposes {
			o.purposes.Attach(&activity, purpose, o.fees.BaseFee(purpose, app.ApplicationType))
		}
		app.SelectedActivities = append(app.SelectedActivities, activity)
	}
	return &creationPlan{purposes: purposes}, nil
}

// planFromLicence copies the requested purposes that are still active on
// the licence of the source activity.
func (o *ApplicationOrchestrator) planFromLicence(ctx context.Context, app *models.Application, in CreateApplicationInput) (*creationPlan, error) {
	if in.SelectedActivityID == nil {
		return nil, &ValidationError{
			Message: fmt.Sprintf("%s applications must name the licensed activity", StatusLabel(app.ApplicationType)),
			Fields:  map[string]string{"selected_activity_id": "required"},
		}
	}
	source, err := o.apps.GetApplicationByActivity(ctx, *in.SelectedActivityID)
	if err != nil {
		return nil, notFound("activity", *in.SelectedActivityID, err)
	}
	sourceActivity := source.Activity(*in.SelectedActivityID)
	if sourceActivity == nil || !sourceActivity.ActivityStatus.IsActive() {
		return nil, NewValidationError("the licensed activity is not current or suspended")
	}
	if source.LicenceID == nil {
		return nil, NewValidationError("no active licence holds the selected activity")
	}
	if !applications_repositories.KeyOf(source).Matches(app) {
		return nil, NewAuthorizationError("the licence belongs to a different applicant")
	}

	requested := uniqueIDs(in.PurposeIDs)
	if in.SelectedPurposeID != nil {
		requested = uniqueIDs(append([]uuid.UUID{*in.SelectedPurposeID}, requested...))
	}
	if len(requested) == 0 {
		for _, pp := range sourceActivity.ProposedPurposes {
			if pp.Status == models.PurposeIssued {
				requested = append(requested, pp.LicencePurposeID)
			}
		}
	}

	active, err := o.apps.ActivePurposes(ctx, *source.LicenceID)
	if err != nil {
		return nil, err
	}
	amendable := FilterAmendable(requested, active)
	if len(amendable) == 0 {
		return nil, &ValidationError{Message: "none of the requested licence purposes are active on the licence", Fields: map[string]string{"purpose_ids": "not active"}}
	}
	if in.SelectedPurposeID != nil && (amendable[0].LicencePurposeID != *in.SelectedPurposeID) {
		return nil, &ValidationError{Message: "the selected licence purpose is not active on the licence", Fields: map[string]string{"selected_purpose_id": "not active"}}
	}

	app.LicenceCategoryID = source.LicenceCategoryID
	app.LicenceID = source.LicenceID
	previousID := source.ID
	app.PreviousApplicationID = &previousID

	plan := &creationPlan{}
	sources := map[uuid.UUID]*models.Application{source.ID: source}
	for _, a := range amendable {
		from, ok := sources[a.ApplicationID]
		if !ok {
			from, err = o.apps.GetApplication(ctx, a.ApplicationID)
			if err != nil {
				return nil, notFound("application", a.ApplicationID, err)
			}
			sources[a.ApplicationID] = from
		}
		fromActivity := from.Activity(a.SelectedActivityID)
		if fromActivity == nil {
			continue
		}
		fromPurpose := fromActivity.Purpose(a.ProposedPurposeID)
		if fromPurpose == nil {
			continue
		}
		prior, err := o.latestInvoiceFor(ctx, o.apps, from.ID, fromActivity.ID)
		if err != nil {
			return nil, err
		}

		target := targetActivity(app, fromActivity)
		copied, err := o.purposes.CopyTo(ctx, o.apps, from, fromPurpose, app, target, prior)
		if err != nil {
			return nil, err
		}
		if copied.Purpose.Purpose != nil {
			plan.purposes = append(plan.purposes, *copied.Purpose.Purpose)
		}
		plan.conditions = append(plan.conditions, copied.Conditions...)
		plan.actions = append(plan.actions, copied.Actions...)
	}
	if len(app.SelectedActivities) == 0 {
		return nil, NewValidationError("none of the requested licence purposes could be copied")
	}
	models.SortActivities(app.SelectedActivities)
	return plan, nil
}

// targetActivity returns the draft activity of app matching the source
// activity, adding it when missing.
func targetActivity(app *models.Application, source *models.SelectedActivity) *models.SelectedActivity {
	for i := range app.SelectedActivities {
		if app.SelectedActivities[i].LicenceActivityID == source.LicenceActivityID {
			return &app.SelectedActivities[i]
		}
	}
	app.SelectedActivities = append(app.SelectedActivities, models.SelectedActivity{
		ID:                uuid.New(),
		ApplicationID:     app.ID,
		LicenceActivityID: source.LicenceActivityID,
		ProcessingStatus:  models.ProcessingDraft,
		ActivityStatus:    models.ActivityDefault,
		LicenceActivity:   source.LicenceActivity,
	})
	return &app.SelectedActivities[len(app.SelectedActivities)-1]
}

// latestInvoiceFor returns the newest invoice of the application that
// covers the activity, or nil.
func (o *ApplicationOrchestrator) latestInvoiceFor(ctx context.Context, repo applications_repositories.ApplicationRepository, appID, activityID uuid.UUID) (*models.ApplicationInvoice, error) {
	invoices, err := repo.ListInvoices(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}
	for i := range invoices {
		if invoices[i].CoversActivity(activityID) && invoices[i].PaymentStatus != models.CancelledPayment {
			return &invoices[i], nil
		}
	}
	return nil, nil
}

// checkMinimumAge applies the strictest minimum age among the purposes to
// the person the application is for.
func (o *ApplicationOrchestrator) checkMinimumAge(ctx context.Context, app *models.Application, purposes []models.LicencePurpose) error {
	strictest, ok := licences_services.StrictestMinimumAge(purposes)
	if !ok {
		return nil
	}
	person, err := o.users.GetUserByID(ctx, app.PersonApplicantID())
	if err != nil {
		return &ValidationError{Message: "the applicant could not be found", Fields: map[string]string{"applicant": "unknown"}}
	}
	age, known := person.AgeOn(o.now())
	if !known {
		return &ValidationError{
			Message: fmt.Sprintf("a date of birth is required to apply for %s", strictest.Name),
			Fields:  map[string]string{"date_of_birth": "required"},
		}
	}
	if age < strictest.MinimumAge {
		return &ValidationError{
			Message: fmt.Sprintf("applicant must be at least %d years old to apply for %s", strictest.MinimumAge, strictest.Name),
			Fields:  map[string]string{"date_of_birth": "below minimum age"},
		}
	}
	return nil
}

// Submit lodges the draft activities of an application once every required
// form field is present. Activities returned for amendment are lodged
// again under the original lodgement number.
func (o *ApplicationOrchestrator) Submit(ctx context.Context, rc RequestContext, appID uuid.UUID, formData map[string]any) (*models.Application, error) {
	return o.mutate(ctx, rc, appID, "submit", func(m *mutation) error {
		if rc.ActorID != m.app.SubmitterID {
			return NewAuthorizationError("only the submitter can lodge application %s", applicationLabel(m.app))
		}

		var drafts []*models.SelectedActivity
		for i := range m.app.SelectedActivities {
			activity := &m.app.SelectedActivities[i]
			if activity.ProcessingStatus == models.ProcessingDraft {
				drafts = append(drafts, activity)
			}
		}
		if len(drafts) == 0 {
			return &InvalidTransitionError{To: string(models.ProcessingUnderReview), Message: "application has no draft activity to submit"}
		}

		data := datatypes.JSONMap{}
		for k, v := range m.app.FormData {
			data[k] = v
		}
		for k, v := range formData {
			data[k] = v
		}
		if missing := missingFields(drafts, data); len(missing) > 0 {
			return &MissingFieldsError{Fields: missing}
		}
		m.app.FormData = data

		if m.app.LodgementNumber == nil {
			seq, err := m.repo.NextLodgementSequence(m.ctx)
			if err != nil {
				return err
			}
			number := fmt.Sprintf("A%06d", seq)
			m.app.LodgementSequence = seq
			m.app.LodgementNumber = &number
		}
		number := *m.app.LodgementNumber
		lodged := o.now()
		m.app.LodgementDate = &lodged
		if err := o.closeAmendmentRequests(m, drafts); err != nil {
			return err
		}

		for _, activity := range drafts {
			description, err := o.machine.Submit(activity)
			if err != nil {
				return err
			}
			m.record(description)
		}
		m.record(fmt.Sprintf(ActionLodgeApplication, number))
		m.notify(notifications_services.KindApplicationSubmitted, []uuid.UUID{m.app.SubmitterID},
			fmt.Sprintf("Application %s submitted", number),
			fmt.Sprintf("Your application %s has been lodged and will be reviewed by a licensing officer.", number))
		return nil
	})
}

// closeAmendmentRequests marks open amendment requests of resubmitted
// activities as amended.
func (o *ApplicationOrchestrator) closeAmendmentRequests(m *mutation, activities []*models.SelectedActivity) error {
	requests, err := m.repo.ListAmendmentRequests(m.ctx, m.app.ID)
	if err != nil {
		return err
	}
	resubmitted := make(map[uuid.UUID]bool, len(activities))
	for _, activity := range activities {
		resubmitted[activity.ID] = true
	}
	for i := range requests {
		request := &requests[i]
		if request.Status != models.AmendmentRequested || !resubmitted[request.SelectedActivityID] {
			continue
		}
		request.Status = models.AmendmentAmended
		if err := m.repo.SaveAmendmentRequest(m.ctx, request); err != nil {
			return err
		}
	}
	return nil
}

// missingFields lists every required field of the activities' purposes
// absent from the form data, sorted.
func missingFields(activities []*models.SelectedActivity, data map[string]any) []string {
	seen := map[string]bool{}
	var missing []string
	for _, activity := range activities {
		for _, pp := range activity.ProposedPurposes {
			if pp.Purpose == nil {
				continue
			}
			for _, field := range pp.Purpose.RequiredFields {
				if seen[field] {
					continue
				}
				seen[field] = true
				if !present(data[field]) {
					missing = append(missing, field)
				}
			}
		}
	}
	sort.Strings(missing)
	return missing
}

func present(value any) bool {
	if value == nil {
		return false
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice, reflect.Map:
		return v.Len() > 0
	}
	return true
}

// EstimatePrice quotes the base fees of the purposes for an application type.
func (o *ApplicationOrchestrator) EstimatePrice(ctx context.Context, purposeIDs []uuid.UUID, applicationType models.ApplicationType) (Fees, error) {
	if !validApplicationType(applicationType) {
		return Fees{}, NewValidationError("unknown application type %q", applicationType)
	}
	purposes, err := o.catalog.GetPurposes(ctx, uniqueIDs(purposeIDs))
	if err != nil {
		return Fees{}, fmt.Errorf("failed to load licence purposes: %w", err)
	}
	if len(purposes) == 0 {
		return Fees{}, &ValidationError{Message: "no known licence purpose requested", Fields: map[string]string{"purpose_ids": "required"}}
	}
	purposes, err = o.catalog.LatestVersions(ctx, purposes)
	if err != nil {
		return Fees{}, err
	}
	return o.fees.BaseFeeFor(purposes, applicationType), nil
}
