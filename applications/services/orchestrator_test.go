package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"
	applications_repositories "wildlife-licensing-backend/applications/repositories"
	"wildlife-licensing-backend/db/models"
	licence_repositories "wildlife-licensing-backend/licences/repositories"
	licences_services "wildlife-licensing-backend/licences/services"
	notifications_services "wildlife-licensing-backend/notifications/services"
	payments_services "wildlife-licensing-backend/payments/services"
	users_repositories "wildlife-licensing-backend/users/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"gorm.io/datatypes"
)

type fakeGateway struct {
	mu       sync.Mutex
	requests []payments_services.CheckoutRequest
	refunds  []string
	cancels  []string
	err      error
}

func (g *fakeGateway) Checkout(ctx context.Context, req payments_services.CheckoutRequest) (*payments_services.CheckoutResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.requests = append(g.requests, req)
	return &payments_services.CheckoutResult{
		SessionID:   "cs_test_" + req.InvoiceReference,
		RedirectURL: "https://pay.example.com/" + req.InvoiceReference,
	}, nil
}

func (g *fakeGateway) Refund(ctx context.Context, sessionID string, amount decimal.Decimal) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, sessionID)
	return nil
}

func (g *fakeGateway) Cancel(ctx context.Context, sessionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancels = append(g.cancels, sessionID)
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notifications_services.Notification
	err  error
}

func (n *fakeNotifier) Notify(ctx context.Context, notification notifications_services.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, notification)
	return nil
}

func (n *fakeNotifier) kinds() []notifications_services.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	var kinds []notifications_services.Kind
	for _, sent := range n.sent {
		kinds = append(kinds, sent.Kind)
	}
	return kinds
}

type countingObserver struct {
	mu      sync.Mutex
	changes int
}

func (c *countingObserver) ApplicationChanged(ctx context.Context, app *models.Application) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes++
}

type OrchestratorSuite struct {
	suite.Suite
	ctx      context.Context
	catalog  *licence_repositories.MemoryCatalogRepository
	apps     *applications_repositories.MemoryApplicationRepository
	users    *users_repositories.MemoryUserRepository
	gateway  *fakeGateway
	notifier *fakeNotifier
	observer *countingObserver
	o        *ApplicationOrchestrator

	categoryID uuid.UUID
	fauna      models.LicenceActivity
	keeping    models.LicencePurpose
	trading    models.LicencePurpose
	assessors  models.ActivityPermissionGroup

	applicant *models.User
	officer   *models.User
	approver  *models.User
	assessor  *models.User
	stranger  *models.User
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) SetupTest() {
	s.ctx = context.Background()
	s.catalog = licence_repositories.NewMemoryCatalogRepository()
	s.apps = applications_repositories.NewMemoryApplicationRepository(s.catalog)
	s.users = users_repositories.NewMemoryUserRepository()
	s.gateway = &fakeGateway{}
	s.notifier = &fakeNotifier{}
	s.observer = &countingObserver{}

	s.categoryID = uuid.New()
	s.fauna = s.catalog.AddActivity(models.LicenceActivity{Name: "Fauna", LicenceCategoryID: s.categoryID})
	s.keeping = s.catalog.AddPurpose(models.LicencePurpose{
		Name:                    "Keeping",
		LicenceCategoryID:       s.categoryID,
		LicenceActivityID:       s.fauna.ID,
		DisplayOrder:            1,
		BaseApplicationFee:      dec("100.00"),
		AmendmentApplicationFee: dec("0"),
		MinimumAge:              18,
		OracleAccountCode:       "NNP415",
		RequiredFields:          datatypes.JSONSlice[string]{"species"},
	})
	s.trading = s.catalog.AddPurpose(models.LicencePurpose{
		Name:               "Trading",
		LicenceCategoryID:  s.categoryID,
		LicenceActivityID:  s.fauna.ID,
		DisplayOrder:       2,
		BaseApplicationFee: dec("50.00"),
		BaseLicenceFee:     dec("200.00"),
	})

	dob := time.Date(1980, time.June, 1, 0, 0, 0, 0, time.UTC)
	s.applicant = s.addUser(&models.User{FirstName: "Ada", LastName: "Keeper", Email: "ada@example.com", DateOfBirth: &dob})
	s.officer = s.addUser(&models.User{FirstName: "Olive", LastName: "Officer", Email: "olive@example.com", Role: models.StaffRole, Permissions: datatypes.JSONSlice[string]{models.PermissionLicensingOfficer}})
	s.approver = s.addUser(&models.User{FirstName: "Abe", LastName: "Approver", Email: "abe@example.com", Role: models.StaffRole, Permissions: datatypes.JSONSlice[string]{models.PermissionIssuingOfficer}})
	s.assessor = s.addUser(&models.User{FirstName: "Ash", LastName: "Assessor", Email: "ash@example.com", Role: models.StaffRole})
	s.stranger = s.addUser(&models.User{FirstName: "Sam", LastName: "Stranger", Email: "sam@example.com", Role: models.StaffRole, Permissions: datatypes.JSONSlice[string]{models.PermissionLicensingOfficer}})

	covers := []models.PermissionGroupActivity{{LicenceActivityID: s.fauna.ID}}
	s.catalog.AddPermissionGroup(models.ActivityPermissionGroup{Name: "Fauna officers", Kind: models.OfficerGroup, Activities: covers,
		Members: []models.PermissionGroupMember{{UserID: s.officer.ID}}})
	s.catalog.AddPermissionGroup(models.ActivityPermissionGroup{Name: "Fauna approvers", Kind: models.ApproverGroup, Activities: covers,
		Members: []models.PermissionGroupMember{{UserID: s.approver.ID}}})
	s.assessors = s.catalog.AddPermissionGroup(models.ActivityPermissionGroup{Name: "District assessors", Kind: models.AssessorGroup, Activities: covers,
		Members: []models.PermissionGroupMember{{UserID: s.assessor.ID}}})

	s.o = NewApplicationOrchestrator(OrchestratorDeps{
		Applications: s.apps,
		Catalog:      licences_services.NewPurposeCatalog(s.catalog),
		Users:        s.users,
		Fees:         NewFeePolicy(false, DefaultGSTRate),
		Gate:         DefaultFeeGate(),
		Gateway:      s.gateway,
		Notifier:     s.notifier,
		Observers:    []ApplicationObserver{s.observer},
		Now:          clock,
	})
}

func (s *OrchestratorSuite) addUser(user *models.User) *models.User {
	created, err := s.users.CreateUser(s.ctx, user)
	s.Require().NoError(err)
	return created
}

func (s *OrchestratorSuite) as(user *models.User) RequestContext {
	return NewRequestContext(user.ID, "test-"+user.FirstName)
}

func (s *OrchestratorSuite) create(purposes ...uuid.UUID) *models.Application {
	app, err := s.o.Create(s.ctx, s.as(s.applicant), CreateApplicationInput{
		ApplicationType: models.NewLicenceApplication,
		PurposeIDs:      purposes,
	})
	s.Require().NoError(err)
	return app
}

func (s *OrchestratorSuite) lodge(app *models.Application) *models.Application {
	lodged, err := s.o.Submit(s.ctx, s.as(s.applicant), app.ID, map[string]any{"species": "Carpet python"})
	s.Require().NoError(err)
	return lodged
}

func (s *OrchestratorSuite) toConditions(app *models.Application) *models.Application {
	_, err := s.o.AssignOfficer(s.ctx, s.as(s.officer), app.ID, s.officer.ID)
	s.Require().NoError(err)
	updated, err := s.o.SetActivityProcessingStatus(s.ctx, s.as(s.officer), app.ID, app.SelectedActivities[0].ID, models.ProcessingOfficerConditions)
	s.Require().NoError(err)
	return updated
}

func (s *OrchestratorSuite) propose(app *models.Application, inputs ...ProposedPurposeInput) *models.Application {
	updated, err := s.o.ProposeLicence(s.ctx, s.as(s.officer), app.ID, app.SelectedActivities[0].ID, inputs)
	s.Require().NoError(err)
	return updated
}

// issue runs an application with the keeping purpose through to a paid
// and issued licence.
func (s *OrchestratorSuite) issue() *models.Application {
	app := s.toConditions(s.lodge(s.create(s.keeping.ID)))
	s.propose(app, ProposedPurposeInput{PurposeID: s.keeping.ID})
	_, err := s.o.Checkout(s.ctx, s.as(s.applicant), app.ID)
	s.Require().NoError(err)
	issued, err := s.o.ConfirmInvoicePayment(s.ctx, NewRequestContext(SystemActor, ""), s.gateway.requests[len(s.gateway.requests)-1].InvoiceReference)
	s.Require().NoError(err)
	return issued
}

func (s *OrchestratorSuite) actions(appID uuid.UUID) []string {
	actions, err := s.o.ListActions(s.ctx, appID)
	s.Require().NoError(err)
	var what []string
	for _, a := range actions {
		what = append(what, a.What)
	}
	return what
}

func (s *OrchestratorSuite) TestCreateBuildsDraftActivities() {
	app := s.create(s.trading.ID, s.keeping.ID)

	s.Equal(models.CustomerStatusDraft, app.CustomerStatus)
	s.Equal(models.OnlineSubmit, app.SubmitType)
	s.Equal(s.categoryID, app.LicenceCategoryID)
	s.Require().Len(app.SelectedActivities, 1)
	activity := app.SelectedActivities[0]
	s.Equal(models.ProcessingDraft, activity.ProcessingStatus)
	s.Require().Len(activity.ProposedPurposes, 2)
	for _, pp := range activity.ProposedPurposes {
		s.Equal(models.PurposeSelected, pp.Status)
		s.True(pp.IsPayable)
	}
	s.Equal([]string{"Create New Licence application for Ada Keeper"}, s.actions(app.ID))
	s.Equal(1, s.observer.changes)
}

func (s *OrchestratorSuite) TestCreateValidatesInput() {
	s.Run("no purposes", func() {
		_, err := s.o.Create(s.ctx, s.as(s.applicant), CreateApplicationInput{ApplicationType: models.NewLicenceApplication})
		var validation *ValidationError
		s.Require().ErrorAs(err, &validation)
		s.Contains(validation.Fields, "purpose_ids")
	})

	s.Run("applicant below the minimum age", func() {
		dob := fixedNow.AddDate(-16, 0, 0)
		young := s.addUser(&models.User{FirstName: "Young", LastName: "Person", Email: "young@example.com", DateOfBirth: &dob})
		_, err := s.o.Create(s.ctx, s.as(young), CreateApplicationInput{ApplicationType: models.NewLicenceApplication, PurposeIDs: []uuid.UUID{s.keeping.ID}})
		var validation *ValidationError
		s.Require().ErrorAs(err, &validation)
		s.Contains(validation.Message, "at least 18")
	})

	s.Run("organisation and proxy together", func() {
		org, proxy := uuid.New(), s.stranger.ID
		_, err := s.o.Create(s.ctx, s.as(s.applicant), CreateApplicationInput{
			ApplicationType:  models.NewLicenceApplication,
			PurposeIDs:       []uuid.UUID{s.trading.ID},
			OrgApplicantID:   &org,
			ProxyApplicantID: &proxy,
		})
		var validation *ValidationError
		s.Require().ErrorAs(err, &validation)
	})

	s.Run("amendment without a licensed activity", func() {
		_, err := s.o.Create(s.ctx, s.as(s.applicant), CreateApplicationInput{ApplicationType: models.AmendmentApplication, PurposeIDs: []uuid.UUID{s.keeping.ID}})
		var validation *ValidationError
		s.Require().ErrorAs(err, &validation)
		s.Contains(validation.Fields, "selected_activity_id")
	})

	s.Run("cash payment is a paper submission", func() {
		app, err := s.o.Create(s.ctx, s.as(s.applicant), CreateApplicationInput{
			ApplicationType: models.NewLicenceApplication,
			PurposeIDs:      []uuid.UUID{s.trading.ID},
			PaymentMethod:   models.CashPaymentMethod,
		})
		s.Require().NoError(err)
		s.Equal(models.PaperSubmit, app.SubmitType)
	})
}

func (s *OrchestratorSuite) TestSubmitReportsEveryMissingField() {
	app := s.create(s.keeping.ID)

	_, err := s.o.Submit(s.ctx, s.as(s.applicant), app.ID, map[string]any{"species": "  "})
	var missing *MissingFieldsError
	s.Require().ErrorAs(err, &missing)
	s.Equal([]string{"species"}, missing.Fields)

	stored, err := s.o.GetApplication(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Nil(stored.LodgementNumber)
	s.Equal(models.ProcessingDraft, stored.SelectedActivities[0].ProcessingStatus)
}

func (s *OrchestratorSuite) TestSubmitLodgesAndNotifies() {
	app := s.lodge(s.create(s.keeping.ID))

	s.Require().NotNil(app.LodgementNumber)
	s.Equal("A000001", *app.LodgementNumber)
	s.Equal(models.CustomerStatusUnderReview, app.CustomerStatus)
	s.Equal(models.ProcessingUnderReview, app.SelectedActivities[0].ProcessingStatus)
	s.Equal([]notifications_services.Kind{notifications_services.KindApplicationSubmitted}, s.notifier.kinds())
	s.Equal([]string{"ada@example.com"}, s.notifier.sent[0].Recipients)

	_, err := s.o.Submit(s.ctx, s.as(s.officer), app.ID, nil)
	var authz *AuthorizationError
	s.ErrorAs(err, &authz)
}

func (s *OrchestratorSuite) TestNotificationFailureDoesNotUndoTheChange() {
	s.notifier.err = errors.New("queue unavailable")
	app := s.lodge(s.create(s.keeping.ID))
	s.Equal(models.CustomerStatusUnderReview, app.CustomerStatus)
}

func (s *OrchestratorSuite) TestAssignOfficer() {
	app := s.lodge(s.create(s.keeping.ID))

	s.Run("officer outside the officer groups", func() {
		_, err := s.o.AssignOfficer(s.ctx, s.as(s.officer), app.ID, s.stranger.ID)
		var authz *AuthorizationError
		s.Require().ErrorAs(err, &authz)
	})

	s.Run("actor without the licensing permission", func() {
		_, err := s.o.AssignOfficer(s.ctx, s.as(s.assessor), app.ID, s.officer.ID)
		var authz *AuthorizationError
		s.Require().ErrorAs(err, &authz)
	})

	s.Run("moves lodged activities to the officer", func() {
		updated, err := s.o.AssignToMe(s.ctx, s.as(s.officer), app.ID)
		s.Require().NoError(err)
		activity := updated.SelectedActivities[0]
		s.Equal(models.ProcessingWithOfficer, activity.ProcessingStatus)
		s.Require().NotNil(activity.AssignedOfficerID)
		s.Equal(s.officer.ID, *activity.AssignedOfficerID)
		s.Contains(s.actions(app.ID), "Assign Olive Officer as officer of Fauna")
	})

	s.Run("unassign", func() {
		updated, err := s.o.UnassignOfficer(s.ctx, s.as(s.officer), app.ID)
		s.Require().NoError(err)
		s.Nil(updated.SelectedActivities[0].AssignedOfficerID)
	})
}

func (s *OrchestratorSuite) TestAssignApprover() {
	app := s.lodge(s.create(s.keeping.ID))
	activityID := app.SelectedActivities[0].ID

	_, err := s.o.MakeMeActivityApprover(s.ctx, s.as(s.officer), app.ID, activityID)
	var authz *AuthorizationError
	s.Require().ErrorAs(err, &authz)

	updated, err := s.o.AssignActivityApprover(s.ctx, s.as(s.approver), app.ID, activityID, s.approver.ID)
	s.Require().NoError(err)
	s.Equal(s.approver.ID, *updated.SelectedActivities[0].AssignedApproverID)

	updated, err = s.o.UnassignActivityApprover(s.ctx, s.as(s.approver), app.ID, activityID)
	s.Require().NoError(err)
	s.Nil(updated.SelectedActivities[0].AssignedApproverID)
}

func (s *OrchestratorSuite) TestSetProcessingStatusToCurrentRecordsNothing() {
	app := s.lodge(s.create(s.keeping.ID))
	_, err := s.o.AssignToMe(s.ctx, s.as(s.officer), app.ID)
	s.Require().NoError(err)
	before := len(s.actions(app.ID))

	_, err = s.o.SetActivityProcessingStatus(s.ctx, s.as(s.officer), app.ID, app.SelectedActivities[0].ID, models.ProcessingWithOfficer)
	s.Require().NoError(err)
	s.Len(s.actions(app.ID), before)

	_, err = s.o.SetActivityProcessingStatus(s.ctx, s.as(s.officer), app.ID, app.SelectedActivities[0].ID, "LOST")
	var validation *ValidationError
	s.ErrorAs(err, &validation)
}

func (s *OrchestratorSuite) TestAssessmentRoundTrip() {
	app := s.lodge(s.create(s.keeping.ID))
	_, err := s.o.AssignToMe(s.ctx, s.as(s.officer), app.ID)
	s.Require().NoError(err)
	activityID := app.SelectedActivities[0].ID

	assessment, err := s.o.SendToAssessor(s.ctx, s.as(s.officer), app.ID, activityID, s.assessors.ID)
	s.Require().NoError(err)
	s.Equal(models.AssessmentAwaiting, assessment.Status)
	s.Contains(s.notifier.kinds(), notifications_services.KindAssessmentRequested)

	_, err = s.o.SendToAssessor(s.ctx, s.as(s.officer), app.ID, activityID, s.assessors.ID)
	var validation *ValidationError
	s.Require().ErrorAs(err, &validation)

	_, err = s.o.CompleteAssessment(s.ctx, s.as(s.stranger), assessment.ID, nil)
	var authz *AuthorizationError
	s.Require().ErrorAs(err, &authz)

	comment := "No concerns."
	updated, err := s.o.CompleteAssessment(s.ctx, s.as(s.assessor), assessment.ID, &comment)
	s.Require().NoError(err)
	s.Equal(models.ProcessingOfficerConditions, updated.SelectedActivities[0].ProcessingStatus)

	latest, err := s.o.LatestAssessment(s.ctx, app.ID, activityID)
	s.Require().NoError(err)
	s.Require().NotNil(latest)
	s.Equal(models.AssessmentCompleted, latest.Status)
	s.Equal(comment, *latest.Comment)

	_, err = s.o.CompleteAssessment(s.ctx, s.as(s.assessor), assessment.ID, nil)
	var transition *InvalidTransitionError
	s.ErrorAs(err, &transition)
}

func (s *OrchestratorSuite) TestRecallAndRemindAssessments() {
	app := s.lodge(s.create(s.keeping.ID))
	_, err := s.o.AssignToMe(s.ctx, s.as(s.officer), app.ID)
	s.Require().NoError(err)
	activityID := app.SelectedActivities[0].ID

	first, err := s.o.SendToAssessor(s.ctx, s.as(s.officer), app.ID, activityID, s.assessors.ID)
	s.Require().NoError(err)

	later := fixedNow.Add(8 * 24 * time.Hour)
	s.o.now = func() time.Time { return later }
	reminded, err := s.o.RemindOverdueAssessments(s.ctx, 7*24*time.Hour)
	s.Require().NoError(err)
	s.Equal(1, reminded)
	s.Contains(s.notifier.kinds(), notifications_services.KindAssessmentReminder)

	updated, err := s.o.RecallAssessment(s.ctx, s.as(s.officer), first.ID)
	s.Require().NoError(err)
	s.Equal(models.ProcessingWithOfficer, updated.SelectedActivities[0].ProcessingStatus)

	latest, err := s.o.LatestAssessment(s.ctx, app.ID, activityID)
	s.Require().NoError(err)
	s.Nil(latest)
}

// Scenario A
func (s *OrchestratorSuite) TestIssueWithApplicationFeeOnly() {
	app := s.toConditions(s.lodge(s.create(s.keeping.ID)))
	app = s.propose(app, ProposedPurposeInput{PurposeID: s.keeping.ID})
	s.Equal(models.CustomerStatusAwaitingPayment, app.CustomerStatus)
	s.True(app.SelectedActivities[0].ProposedPurposes[0].HasPayableFeesAtIssue)

	session, err := s.o.Checkout(s.ctx, s.as(s.applicant), app.ID)
	s.Require().NoError(err)
	s.Require().Len(s.gateway.requests, 1)
	req := s.gateway.requests[0]
	s.Equal("ada@example.com", req.CustomerEmail)
	s.Require().Len(req.Lines, 1)
	s.Equal("Keeping (Application Fee)", req.Lines[0].Description)
	s.Equal("100.00", req.Lines[0].PriceIncl.StringFixed(2))
	s.Equal("90.91", req.Lines[0].PriceExcl.StringFixed(2))
	s.Equal("cs_test_"+req.InvoiceReference, session.SessionID)

	issued, err := s.o.ConfirmInvoicePayment(s.ctx, NewRequestContext(SystemActor, ""), req.InvoiceReference)
	s.Require().NoError(err)
	activity := issued.SelectedActivities[0]
	s.Equal(models.ProcessingAccepted, activity.ProcessingStatus)
	s.Equal(models.ActivityCurrent, activity.ActivityStatus)
	s.Equal(models.PurposeIssued, activity.ProposedPurposes[0].Status)
	s.Equal(models.CustomerStatusAccepted, issued.CustomerStatus)
	s.Require().NotNil(issued.LicenceID)

	licence, ok := s.apps.GetLicence(*issued.LicenceID)
	s.Require().True(ok)
	s.Equal("L000001", licence.LicenceNumber)
	s.Contains(s.actions(app.ID), "Issue L000001: Keeping")
	s.Contains(s.notifier.kinds(), notifications_services.KindLicenceIssued)

	again, err := s.o.ConfirmInvoicePayment(s.ctx, NewRequestContext(SystemActor, ""), req.InvoiceReference)
	s.Require().NoError(err)
	s.Equal(models.ProcessingAccepted, again.SelectedActivities[0].ProcessingStatus)
}

func (s *OrchestratorSuite) TestProposeLicenceDeclinesUnlistedPurposes() {
	app := s.toConditions(s.lodge(s.create(s.keeping.ID, s.trading.ID)))
	adjusted := dec("120")
	app = s.propose(app, ProposedPurposeInput{PurposeID: s.trading.ID, AdjustedLicenceFee: &adjusted, AdditionalFee: dec("15")})

	activity := app.SelectedActivities[0]
	s.Equal(models.PurposeDeclined, activity.PurposeByLicencePurpose(s.keeping.ID).Status)
	trading := activity.PurposeByLicencePurpose(s.trading.ID)
	s.Equal(models.PurposeProposed, trading.Status)
	s.True(trading.HasAdjustedLicenceFee)
	s.Equal("120.00", trading.LicenceFee.StringFixed(2))
	s.Contains(s.actions(app.ID), "Adjust licence fee of Trading to 120.00")

	_, err := s.o.Checkout(s.ctx, s.as(s.applicant), app.ID)
	s.Require().NoError(err)
	s.Equal("185.00", s.gateway.requests[0].Total.StringFixed(2))
}

func (s *OrchestratorSuite) TestProposeLicenceRejectsNegativeFees() {
	app := s.toConditions(s.lodge(s.create(s.keeping.ID)))
	_, err := s.o.ProposeLicence(s.ctx, s.as(s.officer), app.ID, app.SelectedActivities[0].ID, []ProposedPurposeInput{{PurposeID: s.keeping.ID, AdditionalFee: dec("-1")}})
	var validation *ValidationError
	s.Require().ErrorAs(err, &validation)
	s.Contains(validation.Fields, "additional_fee")
}

func (s *OrchestratorSuite) TestCheckoutForZeroAmountCallsNoGateway() {
	app := s.toConditions(s.lodge(s.create(s.keeping.ID)))
	app = s.propose(app, ProposedPurposeInput{PurposeID: s.keeping.ID})
	_, err := s.o.WaiveFees(s.ctx, s.as(s.officer), app.ID, app.SelectedActivities[0].ID, []uuid.UUID{s.keeping.ID})
	s.Require().NoError(err)

	_, err = s.o.Checkout(s.ctx, s.as(s.applicant), app.ID)
	var validation *ValidationError
	s.Require().ErrorAs(err, &validation)
	s.Equal("Checkout request for zero amount.", validation.Message)
	s.Empty(s.gateway.requests)

	invoices, err := s.apps.ListInvoices(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Empty(invoices)

	updated, err := s.o.FinalDecision(s.ctx, s.as(s.approver), app.ID, app.SelectedActivities[0].ID)
	s.Require().NoError(err)
	s.Equal(models.ProcessingAccepted, updated.SelectedActivities[0].ProcessingStatus)
}

func (s *OrchestratorSuite) TestFailedGatewayStoresNoInvoice() {
	app := s.toConditions(s.lodge(s.create(s.keeping.ID)))
	s.propose(app, ProposedPurposeInput{PurposeID: s.keeping.ID})
	s.gateway.err = errors.New("stripe unavailable")

	_, err := s.o.Checkout(s.ctx, s.as(s.applicant), app.ID)
	s.Require().Error(err)
	invoices, err := s.apps.ListInvoices(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Empty(invoices)
}

// Scenario B
func (s *OrchestratorSuite) TestAmendmentRequestResetsIssuedPurposes() {
	app := s.issue()
	activityID := app.SelectedActivities[0].ID

	amended, err := s.o.RequestAmendment(s.ctx, s.as(s.officer), app.ID, []uuid.UUID{activityID}, models.AmendmentMissingInformation, "Please attach the enclosure plan.")
	s.Require().NoError(err)
	for _, pp := range amended.SelectedActivities[0].ProposedPurposes {
		s.Equal(models.PurposeSelected, pp.Status)
	}
	s.Contains(s.notifier.kinds(), notifications_services.KindAmendmentRequested)

	requests, err := s.apps.ListAmendmentRequests(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Require().Len(requests, 1)
	s.Equal(models.AmendmentRequested, requests[0].Status)

	_, err = s.o.FinalDecision(s.ctx, s.as(s.approver), app.ID, activityID)
	var unsettled *FeeNotSettledError
	s.Require().ErrorAs(err, &unsettled)
	s.Equal(activityID, unsettled.ActivityID)
}

func (s *OrchestratorSuite) TestAmendedIssuedActivityCanBeProposedAgain() {
	app := s.issue()
	activityID := app.SelectedActivities[0].ID

	amended, err := s.o.RequestAmendment(s.ctx, s.as(s.officer), app.ID, []uuid.UUID{activityID}, models.AmendmentOther, "Wrong enclosure size.")
	s.Require().NoError(err)
	s.Equal(models.ProcessingWithOfficer, amended.SelectedActivities[0].ProcessingStatus)
	s.Equal(models.ActivityCurrent, amended.SelectedActivities[0].ActivityStatus)

	_, err = s.o.SetActivityProcessingStatus(s.ctx, s.as(s.officer), app.ID, activityID, models.ProcessingOfficerConditions)
	s.Require().NoError(err)
	s.propose(amended, ProposedPurposeInput{PurposeID: s.keeping.ID})

	reissued, err := s.o.FinalDecision(s.ctx, s.as(s.approver), app.ID, activityID)
	s.Require().NoError(err)
	s.Equal(models.ProcessingAccepted, reissued.SelectedActivities[0].ProcessingStatus)
	s.Equal(models.PurposeIssued, reissued.SelectedActivities[0].ProposedPurposes[0].Status)
	s.Len(s.gateway.requests, 1)

	active, err := s.apps.ActivePurposes(s.ctx, *reissued.LicenceID)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(s.keeping.ID, active[0].LicencePurposeID)
}

func (s *OrchestratorSuite) TestReissueActivity() {
	app := s.issue()
	activityID := app.SelectedActivities[0].ID

	_, err := s.o.ReissueActivity(s.ctx, s.as(s.applicant), app.ID, activityID)
	var authz *AuthorizationError
	s.Require().ErrorAs(err, &authz)

	reopened, err := s.o.ReissueActivity(s.ctx, s.as(s.officer), app.ID, activityID)
	s.Require().NoError(err)
	activity := reopened.SelectedActivities[0]
	s.Equal(models.ProcessingWithOfficer, activity.ProcessingStatus)
	s.Equal(models.PurposeSelected, activity.ProposedPurposes[0].Status)
	s.Nil(activity.ProposedPurposes[0].IssueDate)
	s.Contains(s.actions(app.ID), fmt.Sprintf(ActionReissueActivity, activity.Name()))

	_, err = s.o.ReissueActivity(s.ctx, s.as(s.officer), app.ID, activityID)
	var transition *InvalidTransitionError
	s.Require().ErrorAs(err, &transition)

	_, err = s.o.SetActivityProcessingStatus(s.ctx, s.as(s.officer), app.ID, activityID, models.ProcessingOfficerConditions)
	s.Require().NoError(err)
	s.propose(reopened, ProposedPurposeInput{PurposeID: s.keeping.ID})
	issued, err := s.o.FinalDecision(s.ctx, s.as(s.approver), app.ID, activityID)
	s.Require().NoError(err)
	s.Equal(models.ProcessingAccepted, issued.SelectedActivities[0].ProcessingStatus)
	s.Equal(app.LicenceID, issued.LicenceID)
}

func (s *OrchestratorSuite) TestAmendmentCancelsPendingInvoice() {
	app := s.toConditions(s.lodge(s.create(s.keeping.ID)))
	activityID := app.SelectedActivities[0].ID
	s.propose(app, ProposedPurposeInput{PurposeID: s.keeping.ID})
	_, err := s.o.Checkout(s.ctx, s.as(s.applicant), app.ID)
	s.Require().NoError(err)
	reference := s.gateway.requests[0].InvoiceReference

	_, err = s.o.RequestAmendment(s.ctx, s.as(s.officer), app.ID, []uuid.UUID{activityID}, models.AmendmentOther, "Wrong species.")
	s.Require().NoError(err)
	s.Equal([]string{"cs_test_" + reference}, s.gateway.cancels)

	invoice, err := s.apps.GetInvoiceByReference(s.ctx, reference)
	s.Require().NoError(err)
	s.Equal(models.CancelledPayment, invoice.PaymentStatus)
	s.Contains(s.actions(app.ID), fmt.Sprintf(ActionInvoiceCancelled, reference))
}

func (s *OrchestratorSuite) TestPaymentSettlesOnlyWhatTheInvoiceCovered() {
	app := s.toConditions(s.lodge(s.create(s.keeping.ID)))
	s.propose(app, ProposedPurposeInput{PurposeID: s.keeping.ID})
	_, err := s.o.Checkout(s.ctx, s.as(s.applicant), app.ID)
	s.Require().NoError(err)
	reference := s.gateway.requests[0].InvoiceReference

	stored, err := s.apps.GetApplication(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.apps.Transaction(s.ctx, func(repo applications_repositories.ApplicationRepository) error {
		stored.SelectedActivities[0].ProposedPurposes[0].AdditionalFee = dec("25.00")
		return repo.SaveApplication(s.ctx, stored)
	}))

	confirmed, err := s.o.ConfirmInvoicePayment(s.ctx, NewRequestContext(SystemActor, ""), reference)
	s.Require().NoError(err)
	activity := confirmed.SelectedActivities[0]
	s.Equal(models.ProcessingAwaitingLicenceFeePayment, activity.ProcessingStatus)
	pp := activity.ProposedPurposes[0]
	s.True(pp.PaidApplicationFee.Equal(dec("100.00")), pp.PaidApplicationFee.String())
	s.True(pp.PaidAdditionalFee.IsZero())
	s.True(NewFeePolicy(false, DefaultGSTRate).Outstanding(&pp).Equal(dec("25.00")))
}

func (s *OrchestratorSuite) TestSecondCheckoutExpiresTheFirstSession() {
	app := s.toConditions(s.lodge(s.create(s.keeping.ID)))
	s.propose(app, ProposedPurposeInput{PurposeID: s.keeping.ID})
	_, err := s.o.Checkout(s.ctx, s.as(s.applicant), app.ID)
	s.Require().NoError(err)
	_, err = s.o.Checkout(s.ctx, s.as(s.applicant), app.ID)
	s.Require().NoError(err)
	first := s.gateway.requests[0].InvoiceReference
	second := s.gateway.requests[1].InvoiceReference
	s.Equal([]string{"cs_test_" + first}, s.gateway.cancels)

	system := NewRequestContext(SystemActor, "")
	late, err := s.o.ConfirmInvoicePayment(s.ctx, system, first)
	s.Require().NoError(err)
	s.Equal(models.ProcessingAwaitingLicenceFeePayment, late.SelectedActivities[0].ProcessingStatus)
	s.Equal([]string{"cs_test_" + first}, s.gateway.refunds)
	s.Contains(s.notifier.kinds(), notifications_services.KindPaymentRefunded)

	invoice, err := s.apps.GetInvoiceByReference(s.ctx, first)
	s.Require().NoError(err)
	s.Equal(models.RefundedPayment, invoice.PaymentStatus)
	s.True(invoice.Voided)

	_, err = s.o.ConfirmInvoicePayment(s.ctx, system, first)
	s.Require().NoError(err)
	s.Len(s.gateway.refunds, 1)

	issued, err := s.o.ConfirmInvoicePayment(s.ctx, system, second)
	s.Require().NoError(err)
	s.Equal(models.ProcessingAccepted, issued.SelectedActivities[0].ProcessingStatus)
}

func (s *OrchestratorSuite) TestWaiveFeesCancelsPendingInvoice() {
	app := s.toConditions(s.lodge(s.create(s.keeping.ID)))
	activityID := app.SelectedActivities[0].ID
	s.propose(app, ProposedPurposeInput{PurposeID: s.keeping.ID})
	_, err := s.o.Checkout(s.ctx, s.as(s.applicant), app.ID)
	s.Require().NoError(err)
	reference := s.gateway.requests[0].InvoiceReference

	_, err = s.o.WaiveFees(s.ctx, s.as(s.applicant), app.ID, activityID, []uuid.UUID{s.keeping.ID})
	var authz *AuthorizationError
	s.Require().ErrorAs(err, &authz)

	_, err = s.o.WaiveFees(s.ctx, s.as(s.officer), app.ID, activityID, nil)
	var validation *ValidationError
	s.Require().ErrorAs(err, &validation)

	waived, err := s.o.WaiveFees(s.ctx, s.as(s.officer), app.ID, activityID, []uuid.UUID{s.keeping.ID})
	s.Require().NoError(err)
	s.True(waived.SelectedActivities[0].ProposedPurposes[0].FeesWaived)
	s.Equal([]string{"cs_test_" + reference}, s.gateway.cancels)
	s.Contains(s.actions(app.ID), fmt.Sprintf(ActionWaiveFees, "Keeping"))

	issued, err := s.o.FinalDecision(s.ctx, s.as(s.approver), app.ID, activityID)
	s.Require().NoError(err)
	s.Equal(models.ProcessingAccepted, issued.SelectedActivities[0].ProcessingStatus)
}

func (s *OrchestratorSuite) TestAmendmentReturnsLodgedActivityToDraft() {
	app := s.toConditions(s.lodge(s.create(s.keeping.ID)))
	activityID := app.SelectedActivities[0].ID

	amended, err := s.o.RequestAmendment(s.ctx, s.as(s.officer), app.ID, []uuid.UUID{activityID}, models.AmendmentInsufficientDetail, "More detail on housing.")
	s.Require().NoError(err)
	s.Equal(models.ProcessingDraft, amended.SelectedActivities[0].ProcessingStatus)
	s.Equal(models.CustomerStatusDraft, amended.CustomerStatus)

	resubmitted := s.lodge(amended)
	s.Equal("A000001", *resubmitted.LodgementNumber)
	s.Equal(models.ProcessingUnderReview, resubmitted.SelectedActivities[0].ProcessingStatus)

	requests, err := s.apps.ListAmendmentRequests(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(models.AmendmentAmended, requests[0].Status)

	_, err = s.o.RequestAmendment(s.ctx, s.as(s.officer), app.ID, []uuid.UUID{activityID}, "BECAUSE", "")
	var validation *ValidationError
	s.ErrorAs(err, &validation)
}

// Scenario C
func (s *OrchestratorSuite) TestDiscardWithOfficerIsRejected() {
	app := s.lodge(s.create(s.keeping.ID))
	_, err := s.o.AssignToMe(s.ctx, s.as(s.officer), app.ID)
	s.Require().NoError(err)
	before := s.actions(app.ID)

	_, err = s.o.DiscardActivity(s.ctx, s.as(s.applicant), app.ID, app.SelectedActivities[0].ID)
	var transition *InvalidTransitionError
	s.Require().ErrorAs(err, &transition)
	s.Contains(err.Error(), "cannot be discarded at this time")

	stored, err := s.o.GetApplication(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(models.ProcessingWithOfficer, stored.SelectedActivities[0].ProcessingStatus)
	s.Equal(before, s.actions(app.ID))
}

func (s *OrchestratorSuite) TestDiscardDraftApplication() {
	app := s.create(s.keeping.ID)

	_, err := s.o.DiscardApplication(s.ctx, s.as(s.stranger), app.ID)
	s.Require().NoError(err, "licensing officers may discard")

	stored, err := s.o.GetApplication(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(models.CustomerStatusDiscarded, stored.CustomerStatus)
	s.Equal(models.ActivityDiscarded, stored.SelectedActivities[0].ActivityStatus)
}

var statusChange = regexp.MustCompile(`^Change Fauna processing status from (.+) to (.+)$`)

// Scenario D
func (s *OrchestratorSuite) TestConcurrentStatusChangesAreSerialised() {
	app := s.lodge(s.create(s.keeping.ID))
	_, err := s.o.AssignToMe(s.ctx, s.as(s.officer), app.ID)
	s.Require().NoError(err)
	activityID := app.SelectedActivities[0].ID
	baseline := len(s.actions(app.ID))

	targets := []models.ProcessingStatus{models.ProcessingOfficerConditions, models.ProcessingWithOfficer}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(target models.ProcessingStatus, n int) {
			defer wg.Done()
			rc := NewRequestContext(s.officer.ID, fmt.Sprintf("concurrent-%d", n))
			_, _ = s.o.SetActivityProcessingStatus(s.ctx, rc, app.ID, activityID, target)
		}(targets[i%2], i)
	}
	wg.Wait()

	stored, err := s.o.GetApplication(s.ctx, app.ID)
	s.Require().NoError(err)
	final := StatusLabel(stored.SelectedActivities[0].ProcessingStatus)

	current := StatusLabel(models.ProcessingWithOfficer)
	for _, what := range s.actions(app.ID)[baseline:] {
		match := statusChange.FindStringSubmatch(what)
		s.Require().Len(match, 3, what)
		s.Equal(current, match[1], "every change starts where the previous one ended")
		current = match[2]
	}
	s.Equal(final, current)
}

func (s *OrchestratorSuite) TestAmendmentApplicationCopiesActivePurposes() {
	issued := s.issue()
	activityID := issued.SelectedActivities[0].ID
	forged := uuid.New()

	amendment, err := s.o.Create(s.ctx, s.as(s.applicant), CreateApplicationInput{
		ApplicationType:    models.AmendmentApplication,
		PurposeIDs:         []uuid.UUID{s.keeping.ID, forged, s.trading.ID},
		SelectedActivityID: &activityID,
	})
	s.Require().NoError(err)

	s.Require().NotNil(amendment.PreviousApplicationID)
	s.Equal(issued.ID, *amendment.PreviousApplicationID)
	s.Equal(issued.LicenceID, amendment.LicenceID)
	s.Require().Len(amendment.SelectedActivities, 1)
	purposes := amendment.SelectedActivities[0].ProposedPurposes
	s.Require().Len(purposes, 1)
	s.Equal(s.keeping.ID, purposes[0].LicencePurposeID)
	s.Equal(models.PurposeSelected, purposes[0].Status)

	_, err = s.o.Create(s.ctx, s.as(s.stranger), CreateApplicationInput{
		ApplicationType:    models.AmendmentApplication,
		SelectedActivityID: &activityID,
	})
	var authz *AuthorizationError
	s.ErrorAs(err, &authz)
}

func (s *OrchestratorSuite) TestSuspendedActivityCanStillBeAmended() {
	issued := s.issue()
	activityID := issued.SelectedActivities[0].ID
	_, err := s.o.Suspend(s.ctx, s.as(s.officer), issued.ID, activityID)
	s.Require().NoError(err)

	amendment, err := s.o.Create(s.ctx, s.as(s.applicant), CreateApplicationInput{
		ApplicationType:    models.AmendmentApplication,
		PurposeIDs:         []uuid.UUID{s.keeping.ID},
		SelectedActivityID: &activityID,
	})
	s.Require().NoError(err)
	s.Require().Len(amendment.SelectedActivities, 1)
	s.Equal(s.keeping.ID, amendment.SelectedActivities[0].ProposedPurposes[0].LicencePurposeID)
}

func (s *OrchestratorSuite) TestSuspendReinstateAndSurrender() {
	app := s.issue()
	activityID := app.SelectedActivities[0].ID

	_, err := s.o.Suspend(s.ctx, s.as(s.applicant), app.ID, activityID)
	var authz *AuthorizationError
	s.Require().ErrorAs(err, &authz)

	updated, err := s.o.Suspend(s.ctx, s.as(s.officer), app.ID, activityID)
	s.Require().NoError(err)
	s.Equal(models.ActivitySuspended, updated.SelectedActivities[0].ActivityStatus)

	updated, err = s.o.Reinstate(s.ctx, s.as(s.officer), app.ID, activityID)
	s.Require().NoError(err)
	s.Equal(models.ActivityCurrent, updated.SelectedActivities[0].ActivityStatus)

	updated, err = s.o.Surrender(s.ctx, s.as(s.applicant), app.ID, activityID)
	s.Require().NoError(err)
	s.Equal(models.ActivitySurrendered, updated.SelectedActivities[0].ActivityStatus)

	_, err = s.o.Cancel(s.ctx, s.as(s.officer), app.ID, activityID)
	var transition *InvalidTransitionError
	s.ErrorAs(err, &transition)
}

func (s *OrchestratorSuite) TestRecordRefundVoidsInvoice() {
	s.issue()
	reference := s.gateway.requests[0].InvoiceReference

	_, err := s.o.RecordRefund(s.ctx, s.as(s.applicant), reference)
	var authz *AuthorizationError
	s.Require().ErrorAs(err, &authz)

	_, err = s.o.RecordRefund(s.ctx, s.as(s.officer), reference)
	s.Require().NoError(err)
	s.Equal([]string{"cs_test_" + reference}, s.gateway.refunds)

	invoice, err := s.apps.GetInvoiceByReference(s.ctx, reference)
	s.Require().NoError(err)
	s.Equal(models.RefundedPayment, invoice.PaymentStatus)
	s.True(invoice.Voided)
}

func (s *OrchestratorSuite) TestUnknownApplicationIsNotFound() {
	_, err := s.o.SetActivityProcessingStatus(s.ctx, s.as(s.officer), uuid.New(), uuid.New(), models.ProcessingWithOfficer)
	s.ErrorIs(err, ErrNotFound)
}

func (s *OrchestratorSuite) TestListingAndSearchScope() {
	s.create(s.trading.ID)
	s.create(s.keeping.ID)

	apps, total, err := s.o.ListApplicationsFor(s.ctx, s.as(s.applicant), applications_repositories.ApplicationFilter{Limit: 1})
	s.Require().NoError(err)
	s.Len(apps, 1)
	s.EqualValues(2, total)

	apps, total, err = s.o.ListApplicationsFor(s.ctx, s.as(s.assessor), applications_repositories.ApplicationFilter{})
	s.Require().NoError(err)
	s.Empty(apps)
	s.Zero(total)

	scope, err := s.o.SearchScope(s.ctx, s.officer.ID)
	s.Require().NoError(err)
	s.Nil(scope)

	scope, err = s.o.SearchScope(s.ctx, s.applicant.ID)
	s.Require().NoError(err)
	s.Require().NotNil(scope)
	s.Equal(s.applicant.ID, *scope)

	_, err = s.o.SearchScope(s.ctx, uuid.New())
	var authz *AuthorizationError
	s.ErrorAs(err, &authz)
}
