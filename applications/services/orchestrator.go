package services

import (
	"context"
	"errors"
	"fmt"
	"time"
	applications_repositories "wildlife-licensing-backend/applications/repositories"
	"wildlife-licensing-backend/db/models"
	licences_services "wildlife-licensing-backend/licences/services"
	notifications_services "wildlife-licensing-backend/notifications/services"
	payments_services "wildlife-licensing-backend/payments/services"
	users_repositories "wildlife-licensing-backend/users/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ApplicationObserver is told about every committed change to an application.
type ApplicationObserver interface {
	ApplicationChanged(ctx context.Context, app *models.Application)
}

type OrchestratorDeps struct {
	Applications applications_repositories.ApplicationRepository
	Catalog      *licences_services.PurposeCatalog
	Users        users_repositories.UserRepository
	Fees         *FeePolicy
	Gate         FeeGate
	Gateway      payments_services.Gateway
	Notifier     notifications_services.Notifier
	Observers    []ApplicationObserver
	Logger       *zap.Logger
	Now          func() time.Time
}

// ApplicationOrchestrator runs every workflow operation on an application
// inside one transaction holding the application's row lock. Audit entries
// are written in that transaction; notifications and observers run only
// after it commits.
type ApplicationOrchestrator struct {
	apps      applications_repositories.ApplicationRepository
	catalog   *licences_services.PurposeCatalog
	users     users_repositories.UserRepository
	fees      *FeePolicy
	machine   *ActivityStateMachine
	purposes  *PurposeAssignment
	checkout  *CheckoutAssembler
	gateway   payments_services.Gateway
	notifier  notifications_services.Notifier
	observers []ApplicationObserver
	logger    *zap.Logger
	now       func() time.Time
}

func NewApplicationOrchestrator(deps OrchestratorDeps) *ApplicationOrchestrator {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fees := deps.Fees
	if fees == nil {
		fees = NewFeePolicy(false, DefaultGSTRate)
	}
	return &ApplicationOrchestrator{
		apps:      deps.Applications,
		catalog:   deps.Catalog,
		users:     deps.Users,
		fees:      fees,
		machine:   NewActivityStateMachine(fees, now),
		purposes:  NewPurposeAssignment(fees, deps.Catalog),
		checkout:  NewCheckoutAssembler(fees, deps.Gate),
		gateway:   deps.Gateway,
		notifier:  deps.Notifier,
		observers: deps.Observers,
		logger:    logger,
		now:       now,
	}
}

type pendingNotice struct {
	kind       notifications_services.Kind
	recipients []uuid.UUID
	subject    string
	body       string
}

// mutation collects what one operation changed on a locked application.
type mutation struct {
	ctx     context.Context
	repo    applications_repositories.ApplicationRepository
	app     *models.Application
	rc      RequestContext
	actions []string
	notices []pendingNotice
}

// record queues an audit entry. Empty descriptions are ignored.
func (m *mutation) record(description string) {
	if description != "" {
		m.actions = append(m.actions, description)
	}
}

func (m *mutation) notify(kind notifications_services.Kind, recipients []uuid.UUID, subject, body string) {
	if len(recipients) == 0 {
		return
	}
	m.notices = append(m.notices, pendingNotice{kind: kind, recipients: recipients, subject: subject, body: body})
}

func (m *mutation) activity(id uuid.UUID) (*models.SelectedActivity, error) {
	activity := m.app.Activity(id)
	if activity == nil {
		return nil, notFound("activity", id, gorm.ErrRecordNotFound)
	}
	return activity, nil
}

// mutate locks the application, applies fn and persists the result with
// its audit entries. Nothing is written when fn records no action.
func (o *ApplicationOrchestrator) mutate(ctx context.Context, rc RequestContext, appID uuid.UUID, operation string, fn func(m *mutation) error) (*models.Application, error) {
	var committed *mutation
	err := o.apps.Transaction(ctx, func(repo applications_repositories.ApplicationRepository) error {
		app, err := repo.LockApplication(ctx, appID)
		if err != nil {
			return notFound("application", appID, err)
		}
		m := &mutation{ctx: ctx, repo: repo, app: app, rc: rc}
		if err := fn(m); err != nil {
			return err
		}
		if err := o.persist(m); err != nil {
			return err
		}
		committed = m
		return nil
	})
	if err != nil {
		o.logFailure(operation, rc, appID, err)
		return nil, err
	}
	o.afterCommit(ctx, operation, committed)
	return committed.app, nil
}

func (o *ApplicationOrchestrator) persist(m *mutation) error {
	if len(m.actions) == 0 {
		return nil
	}
	m.app.CustomerStatus = DeriveCustomerStatus(m.app.ProcessingStatuses())
	if err := m.repo.SaveApplication(m.ctx, m.app); err != nil {
		return err
	}
	when := o.now()
	for _, what := range m.actions {
		action := &models.ApplicationUserAction{
			ApplicationID: m.app.ID,
			WhoID:         m.rc.ActorID,
			When:          when,
			What:          what,
			CorrelationID: m.rc.CorrelationID,
		}
		if err := m.repo.CreateAction(m.ctx, action); err != nil {
			return fmt.Errorf("failed to record action: %w", err)
		}
	}
	return nil
}

func (o *ApplicationOrchestrator) afterCommit(ctx context.Context, operation string, m *mutation) {
	if len(m.actions) > 0 {
		o.logger.Info("Application updated",
			zap.String("operation", operation),
			zap.String("applicationID", m.app.ID.String()),
			zap.String("actorID", m.rc.ActorID.String()),
			zap.String("correlationID", m.rc.CorrelationID),
			zap.Int("actions", len(m.actions)),
		)
		for _, observer := range o.observers {
			observer.ApplicationChanged(ctx, m.app)
		}
	}
	for _, notice := range m.notices {
		o.dispatch(ctx, m, notice)
	}
}

// dispatch sends a notification. Failures are logged and never undo the
// committed change.
func (o *ApplicationOrchestrator) dispatch(ctx context.Context, m *mutation, notice pendingNotice) {
	if o.notifier == nil {
		return
	}
	users, err := o.users.GetUsersByIDs(ctx, notice.recipients)
	if err != nil {
		o.logger.Error("Failed to resolve notification recipients",
			zap.Error(err),
			zap.String("applicationID", m.app.ID.String()),
			zap.String("correlationID", m.rc.CorrelationID),
		)
		return
	}
	recipients := make([]string, 0, len(users))
	for _, user := range users {
		if user.Email != "" {
			recipients = append(recipients, user.Email)
		}
	}
	if len(recipients) == 0 {
		return
	}
	err = o.notifier.Notify(ctx, notifications_services.Notification{
		Kind:          notice.kind,
		ApplicationID: m.app.ID,
		Recipients:    recipients,
		Subject:       notice.subject,
		Body:          notice.body,
	})
	if err != nil {
		o.logger.Error("Failed to dispatch notification",
			zap.Error(err),
			zap.String("kind", string(notice.kind)),
			zap.String("applicationID", m.app.ID.String()),
			zap.String("correlationID", m.rc.CorrelationID),
		)
	}
}

func (o *ApplicationOrchestrator) logFailure(operation string, rc RequestContext, appID uuid.UUID, err error) {
	fields := []zap.Field{
		zap.Error(err),
		zap.String("operation", operation),
		zap.String("applicationID", appID.String()),
		zap.String("actorID", rc.ActorID.String()),
		zap.String("correlationID", rc.CorrelationID),
	}
	if IsDomainError(err) {
		o.logger.Warn("Application operation rejected", fields...)
		return
	}
	o.logger.Error("Application operation failed", fields...)
}

var systemUser = &models.User{ID: SystemActor, FirstName: "System", LastName: "Integration", Role: models.SuperUserRole}

// actor loads the acting user. Integrations act as the system user.
func (o *ApplicationOrchestrator) actor(ctx context.Context, rc RequestContext) (*models.User, error) {
	if rc.ActorID == SystemActor {
		return systemUser, nil
	}
	user, err := o.users.GetUserByID(ctx, rc.ActorID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewAuthorizationError("unknown user %s", rc.ActorID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", rc.ActorID, err)
	}
	return user, nil
}

func (o *ApplicationOrchestrator) requirePermission(ctx context.Context, rc RequestContext, permission string) (*models.User, error) {
	user, err := o.actor(ctx, rc)
	if err != nil {
		return nil, err
	}
	if !user.HasPermission(permission) {
		return nil, NewAuthorizationError("%s does not hold the %s permission", user.FullName(), permission)
	}
	return user, nil
}

// requireApplicantOrPermission lets the submitter, or staff holding the
// permission, act on the application.
func (o *ApplicationOrchestrator) requireApplicantOrPermission(ctx context.Context, rc RequestContext, app *models.Application, permission string) (*models.User, error) {
	user, err := o.actor(ctx, rc)
	if err != nil {
		return nil, err
	}
	if user.ID == app.SubmitterID || user.HasPermission(permission) {
		return user, nil
	}
	return nil, NewAuthorizationError("%s cannot act on application %s", user.FullName(), applicationLabel(app))
}

// GetApplication loads an application with its activities and purposes.
func (o *ApplicationOrchestrator) GetApplication(ctx context.Context, appID uuid.UUID) (*models.Application, error) {
	app, err := o.apps.GetApplication(ctx, appID)
	if err != nil {
		return nil, notFound("application", appID, err)
	}
	return app, nil
}

// AuthorizeView loads an application the caller may look at: its
// applicant or a licensing officer.
func (o *ApplicationOrchestrator) AuthorizeView(ctx context.Context, rc RequestContext, appID uuid.UUID) (*models.Application, error) {
	app, err := o.GetApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	if _, err := o.requireApplicantOrPermission(ctx, rc, app, models.PermissionLicensingOfficer); err != nil {
		return nil, err
	}
	return app, nil
}

// SearchScope limits application search the way ListApplicationsFor limits
// listing: nil for licensing officers, the user's own id otherwise.
func (o *ApplicationOrchestrator) SearchScope(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error) {
	user, err := o.actor(ctx, RequestContext{ActorID: userID})
	if err != nil {
		return nil, err
	}
	if user.HasPermission(models.PermissionLicensingOfficer) {
		return nil, nil
	}
	return &user.ID, nil
}

// CanWatch reports whether the user may follow status changes of the
// application.
func (o *ApplicationOrchestrator) CanWatch(ctx context.Context, userID, appID uuid.UUID) error {
	_, err := o.AuthorizeView(ctx, NewRequestContext(userID, ""), appID)
	return err
}

// ListActions returns the audit trail of an application, oldest first.
func (o *ApplicationOrchestrator) ListActions(ctx context.Context, appID uuid.UUID) ([]models.ApplicationUserAction, error) {
	if _, err := o.GetApplication(ctx, appID); err != nil {
		return nil, err
	}
	return o.apps.ListActions(ctx, appID)
}

func (o *ApplicationOrchestrator) ListApplications(ctx context.Context, filter applications_repositories.ApplicationFilter) ([]models.Application, error) {
	return o.apps.ListApplications(ctx, filter)
}

// ListApplicationsFor lists one page of what the caller may see together
// with the total number of matches. Anyone without the licensing officer
// permission only sees applications they submitted.
func (o *ApplicationOrchestrator) ListApplicationsFor(ctx context.Context, rc RequestContext, filter applications_repositories.ApplicationFilter) ([]models.Application, int64, error) {
	user, err := o.actor(ctx, rc)
	if err != nil {
		return nil, 0, err
	}
	if !user.HasPermission(models.PermissionLicensingOfficer) {
		filter.SubmitterID = &user.ID
	}
	total, err := o.apps.CountApplications(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	apps, err := o.apps.ListApplications(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return apps, total, nil
}
