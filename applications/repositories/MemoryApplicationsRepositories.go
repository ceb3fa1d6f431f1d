package repositories

import (
	"context"
	"sync"
	"time"
	"wildlife-licensing-backend/db/models"
	licence_repositories "wildlife-licensing-backend/licences/repositories"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type memoryData struct {
	applications map[uuid.UUID]models.Application
	appOrder     []uuid.UUID
	activities   map[uuid.UUID]models.SelectedActivity
	purposes     map[uuid.UUID]models.ProposedPurpose
	conditions   []models.ApplicationCondition
	assessments  map[uuid.UUID]models.Assessment
	assessOrder  []uuid.UUID
	amendments   []models.AmendmentRequest
	actions      []models.ApplicationUserAction
	invoices     map[uuid.UUID]models.ApplicationInvoice
	invoiceOrder []uuid.UUID
	licences     map[uuid.UUID]models.WildlifeLicence
	lodgement    int64
}

func newMemoryData() *memoryData {
	return &memoryData{
		applications: make(map[uuid.UUID]models.Application),
		activities:   make(map[uuid.UUID]models.SelectedActivity),
		purposes:     make(map[uuid.UUID]models.ProposedPurpose),
		assessments:  make(map[uuid.UUID]models.Assessment),
		invoices:     make(map[uuid.UUID]models.ApplicationInvoice),
		licences:     make(map[uuid.UUID]models.WildlifeLicence),
	}
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (d *memoryData) clone() *memoryData {
	return &memoryData{
		applications: cloneMap(d.applications),
		appOrder:     append([]uuid.UUID(nil), d.appOrder...),
		activities:   cloneMap(d.activities),
		purposes:     cloneMap(d.purposes),
		conditions:   append([]models.ApplicationCondition(nil), d.conditions...),
		assessments:  cloneMap(d.assessments),
		assessOrder:  append([]uuid.UUID(nil), d.assessOrder...),
		amendments:   append([]models.AmendmentRequest(nil), d.amendments...),
		actions:      append([]models.ApplicationUserAction(nil), d.actions...),
		invoices:     cloneMap(d.invoices),
		invoiceOrder: append([]uuid.UUID(nil), d.invoiceOrder...),
		licences:     cloneMap(d.licences),
		lodgement:    d.lodgement,
	}
}

type memoryStore struct {
	mu      sync.Mutex
	data    *memoryData
	catalog licence_repositories.CatalogRepository
}

// MemoryApplicationRepository keeps applications in process memory.
// Transaction serialises callers and works on a private copy that replaces
// the shared state only when the callback succeeds.
type MemoryApplicationRepository struct {
	store *memoryStore
	tx    *memoryData
}

// NewMemoryApplicationRepository builds an empty repository. The catalog is
// used to attach activity and purpose definitions to loaded applications.
func NewMemoryApplicationRepository(catalog licence_repositories.CatalogRepository) *MemoryApplicationRepository {
	return &MemoryApplicationRepository{
		store: &memoryStore{data: newMemoryData(), catalog: catalog},
	}
}

func (r *MemoryApplicationRepository) data() (*memoryData, func()) {
	if r.tx != nil {
		return r.tx, func() {}
	}
	r.store.mu.Lock()
	return r.store.data, r.store.mu.Unlock
}

func (r *MemoryApplicationRepository) Transaction(ctx context.Context, fn func(repo ApplicationRepository) error) error {
	if r.tx != nil {
		return fn(r)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	working := r.store.data.clone()
	if err := fn(&MemoryApplicationRepository{store: r.store, tx: working}); err != nil {
		return err
	}
	r.store.data = working
	return nil
}

func (r *MemoryApplicationRepository) hydrate(ctx context.Context, d *memoryData, app models.Application) models.Application {
	app.SelectedActivities = nil
	for _, activity := range d.activities {
		if activity.ApplicationID != app.ID {
			continue
		}
		activity.ProposedPurposes = nil
		if def, err := r.store.catalog.GetActivity(ctx, activity.LicenceActivityID); err == nil {
			activity.LicenceActivity = def
		}
		for _, purpose := range d.purposes {
			if purpose.SelectedActivityID != activity.ID {
				continue
			}
			if def, err := r.store.catalog.GetPurpose(ctx, purpose.LicencePurposeID); err == nil {
				purpose.Purpose = def
			}
			activity.ProposedPurposes = append(activity.ProposedPurposes, purpose)
		}
		app.SelectedActivities = append(app.SelectedActivities, activity)
	}
	models.SortActivities(app.SelectedActivities)
	return app
}

func (r *MemoryApplicationRepository) put(d *memoryData, app *models.Application) {
	row := *app
	row.SelectedActivities = nil
	d.applications[app.ID] = row
	for i := range app.SelectedActivities {
		activity := &app.SelectedActivities[i]
		if activity.ID == uuid.Nil {
			activity.ID = uuid.New()
		}
		activity.ApplicationID = app.ID
		activityRow := *activity
		activityRow.ProposedPurposes = nil
		activityRow.LicenceActivity = nil
		d.activities[activity.ID] = activityRow
		for j := range activity.ProposedPurposes {
			purpose := &activity.ProposedPurposes[j]
			if purpose.ID == uuid.Nil {
				purpose.ID = uuid.New()
			}
			purpose.SelectedActivityID = activity.ID
			purposeRow := *purpose
			purposeRow.Purpose = nil
			d.purposes[purpose.ID] = purposeRow
		}
	}
}

func (r *MemoryApplicationRepository) CreateApplication(ctx context.Context, app *models.Application) error {
	d, unlock := r.data()
	defer unlock()
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now()
	}
	app.UpdatedAt = app.CreatedAt
	r.put(d, app)
	d.appOrder = append(d.appOrder, app.ID)
	return nil
}

func (r *MemoryApplicationRepository) GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	d, unlock := r.data()
	defer unlock()
	app, ok := d.applications[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	hydrated := r.hydrate(ctx, d, app)
	return &hydrated, nil
}

func (r *MemoryApplicationRepository) LockApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	return r.GetApplication(ctx, id)
}

func (r *MemoryApplicationRepository) SaveApplication(ctx context.Context, app *models.Application) error {
	d, unlock := r.data()
	defer unlock()
	if _, ok := d.applications[app.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	app.UpdatedAt = time.Now()
	r.put(d, app)
	return nil
}

func (r *MemoryApplicationRepository) ListApplications(ctx context.Context, filter ApplicationFilter) ([]models.Application, error) {
	d, unlock := r.data()
	defer unlock()
	var apps []models.Application
	skipped := 0
	for i := len(d.appOrder) - 1; i >= 0; i-- {
		app := d.applications[d.appOrder[i]]
		if !matches(app, filter) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		apps = append(apps, r.hydrate(ctx, d, app))
		if filter.Limit > 0 && len(apps) == filter.Limit {
			break
		}
	}
	return apps, nil
}

func (r *MemoryApplicationRepository) CountApplications(ctx context.Context, filter ApplicationFilter) (int64, error) {
	d, unlock := r.data()
	defer unlock()
	var total int64
	for _, id := range d.appOrder {
		if matches(d.applications[id], filter) {
			total++
		}
	}
	return total, nil
}

func matches(app models.Application, filter ApplicationFilter) bool {
	if filter.CustomerStatus != nil && app.CustomerStatus != *filter.CustomerStatus {
		return false
	}
	if filter.SubmitterID != nil && app.SubmitterID != *filter.SubmitterID {
		return false
	}
	return !filter.Lodged || app.LodgementNumber != nil
}

func (r *MemoryApplicationRepository) NextLodgementSequence(ctx context.Context) (int64, error) {
	d, unlock := r.data()
	defer unlock()
	d.lodgement++
	return d.lodgement, nil
}

func (r *MemoryApplicationRepository) GetApplicationByActivity(ctx context.Context, activityID uuid.UUID) (*models.Application, error) {
	d, unlock := r.data()
	defer unlock()
	activity, ok := d.activities[activityID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	app, ok := d.applications[activity.ApplicationID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	hydrated := r.hydrate(ctx, d, app)
	return &hydrated, nil
}

func (r *MemoryApplicationRepository) ActivePurposes(ctx context.Context, licenceID uuid.UUID) ([]ActivePurpose, error) {
	d, unlock := r.data()
	defer unlock()
	var active []ActivePurpose
	for i := len(d.appOrder) - 1; i >= 0; i-- {
		app := d.applications[d.appOrder[i]]
		if app.LicenceID == nil || *app.LicenceID != licenceID {
			continue
		}
		for _, activity := range d.activities {
			if activity.ApplicationID != app.ID || !activity.ActivityStatus.IsActive() {
				continue
			}
			for _, purpose := range d.purposes {
				if purpose.SelectedActivityID == activity.ID && purpose.Status == models.PurposeIssued {
					active = append(active, ActivePurpose{
						ApplicationID:      app.ID,
						SelectedActivityID: activity.ID,
						ProposedPurposeID:  purpose.ID,
						LicencePurposeID:   purpose.LicencePurposeID,
					})
				}
			}
		}
	}
	return active, nil
}

func (r *MemoryApplicationRepository) FindLicence(ctx context.Context, categoryID uuid.UUID, applicant ApplicantKey) (*models.WildlifeLicence, error) {
	d, unlock := r.data()
	defer unlock()
	for i := len(d.appOrder) - 1; i >= 0; i-- {
		app := d.applications[d.appOrder[i]]
		if app.LicenceCategoryID != categoryID || app.LicenceID == nil || !applicant.Matches(&app) {
			continue
		}
		licence, ok := d.licences[*app.LicenceID]
		if !ok {
			return nil, gorm.ErrRecordNotFound
		}
		return &licence, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *MemoryApplicationRepository) CreateLicence(ctx context.Context, licence *models.WildlifeLicence) error {
	d, unlock := r.data()
	defer unlock()
	if licence.ID == uuid.Nil {
		licence.ID = uuid.New()
	}
	d.licences[licence.ID] = *licence
	return nil
}

func (r *MemoryApplicationRepository) SaveLicence(ctx context.Context, licence *models.WildlifeLicence) error {
	d, unlock := r.data()
	defer unlock()
	d.licences[licence.ID] = *licence
	return nil
}

// GetLicence is a test helper for inspecting issued licences.
func (r *MemoryApplicationRepository) GetLicence(id uuid.UUID) (*models.WildlifeLicence, bool) {
	d, unlock := r.data()
	defer unlock()
	licence, ok := d.licences[id]
	return &licence, ok
}

func (r *MemoryApplicationRepository) CreateConditions(ctx context.Context, conditions []models.ApplicationCondition) error {
	d, unlock := r.data()
	defer unlock()
	for _, c := range conditions {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		d.conditions = append(d.conditions, c)
	}
	return nil
}

func (r *MemoryApplicationRepository) ListConditions(ctx context.Context, applicationID, purposeID uuid.UUID) ([]models.ApplicationCondition, error) {
	d, unlock := r.data()
	defer unlock()
	var conditions []models.ApplicationCondition
	for _, c := range d.conditions {
		if c.ApplicationID == applicationID && c.LicencePurposeID == purposeID {
			conditions = append(conditions, c)
		}
	}
	return conditions, nil
}

func (r *MemoryApplicationRepository) CreateAssessment(ctx context.Context, assessment *models.Assessment) error {
	d, unlock := r.data()
	defer unlock()
	if assessment.ID == uuid.Nil {
		assessment.ID = uuid.New()
	}
	d.assessments[assessment.ID] = *assessment
	d.assessOrder = append(d.assessOrder, assessment.ID)
	return nil
}

func (r *MemoryApplicationRepository) SaveAssessment(ctx context.Context, assessment *models.Assessment) error {
	d, unlock := r.data()
	defer unlock()
	if _, ok := d.assessments[assessment.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	d.assessments[assessment.ID] = *assessment
	return nil
}

func (r *MemoryApplicationRepository) GetAssessment(ctx context.Context, id uuid.UUID) (*models.Assessment, error) {
	d, unlock := r.data()
	defer unlock()
	assessment, ok := d.assessments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &assessment, nil
}

func (r *MemoryApplicationRepository) ListAssessments(ctx context.Context, applicationID uuid.UUID) ([]models.Assessment, error) {
	d, unlock := r.data()
	defer unlock()
	var assessments []models.Assessment
	for _, id := range d.assessOrder {
		if a := d.assessments[id]; a.ApplicationID == applicationID {
			assessments = append(assessments, a)
		}
	}
	return assessments, nil
}

func (r *MemoryApplicationRepository) ListAwaitingAssessments(ctx context.Context, lastActivityBefore time.Time) ([]models.Assessment, error) {
	d, unlock := r.data()
	defer unlock()
	var assessments []models.Assessment
	for _, id := range d.assessOrder {
		a := d.assessments[id]
		if a.Status != models.AssessmentAwaiting || !a.CreatedAt.Before(lastActivityBefore) {
			continue
		}
		if a.DateLastReminded != nil && !a.DateLastReminded.Before(lastActivityBefore) {
			continue
		}
		assessments = append(assessments, a)
	}
	return assessments, nil
}

func (r *MemoryApplicationRepository) CreateAmendmentRequest(ctx context.Context, request *models.AmendmentRequest) error {
	d, unlock := r.data()
	defer unlock()
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	d.amendments = append(d.amendments, *request)
	return nil
}

func (r *MemoryApplicationRepository) SaveAmendmentRequest(ctx context.Context, request *models.AmendmentRequest) error {
	d, unlock := r.data()
	defer unlock()
	for i := range d.amendments {
		if d.amendments[i].ID == request.ID {
			d.amendments[i] = *request
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *MemoryApplicationRepository) ListAmendmentRequests(ctx context.Context, applicationID uuid.UUID) ([]models.AmendmentRequest, error) {
	d, unlock := r.data()
	defer unlock()
	var requests []models.AmendmentRequest
	for _, req := range d.amendments {
		if req.ApplicationID == applicationID {
			requests = append(requests, req)
		}
	}
	return requests, nil
}

func (r *MemoryApplicationRepository) CreateAction(ctx context.Context, action *models.ApplicationUserAction) error {
	d, unlock := r.data()
	defer unlock()
	if action.ID == uuid.Nil {
		action.ID = uuid.New()
	}
	d.actions = append(d.actions, *action)
	return nil
}

func (r *MemoryApplicationRepository) ListActions(ctx context.Context, applicationID uuid.UUID) ([]models.ApplicationUserAction, error) {
	d, unlock := r.data()
	defer unlock()
	var actions []models.ApplicationUserAction
	for _, a := range d.actions {
		if a.ApplicationID == applicationID {
			actions = append(actions, a)
		}
	}
	return actions, nil
}

func (r *MemoryApplicationRepository) CreateInvoice(ctx context.Context, invoice *models.ApplicationInvoice) error {
	d, unlock := r.data()
	defer unlock()
	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	if invoice.InvoiceReference == "" {
		invoice.InvoiceReference = models.NewInvoiceReference()
	}
	d.invoices[invoice.ID] = *invoice
	d.invoiceOrder = append(d.invoiceOrder, invoice.ID)
	return nil
}

func (r *MemoryApplicationRepository) SaveInvoice(ctx context.Context, invoice *models.ApplicationInvoice) error {
	d, unlock := r.data()
	defer unlock()
	if _, ok := d.invoices[invoice.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	d.invoices[invoice.ID] = *invoice
	return nil
}

func (r *MemoryApplicationRepository) GetInvoiceByReference(ctx context.Context, reference string) (*models.ApplicationInvoice, error) {
	d, unlock := r.data()
	defer unlock()
	for _, invoice := range d.invoices {
		if invoice.InvoiceReference == reference {
			return &invoice, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *MemoryApplicationRepository) ListInvoices(ctx context.Context, applicationID uuid.UUID) ([]models.ApplicationInvoice, error) {
	d, unlock := r.data()
	defer unlock()
	var invoices []models.ApplicationInvoice
	for i := len(d.invoiceOrder) - 1; i >= 0; i-- {
		if invoice := d.invoices[d.invoiceOrder[i]]; invoice.ApplicationID == applicationID {
			invoices = append(invoices, invoice)
		}
	}
	return invoices, nil
}
