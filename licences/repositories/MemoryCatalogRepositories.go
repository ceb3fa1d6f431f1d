package repositories

import (
	"context"
	"sort"
	"sync"
	"wildlife-licensing-backend/db/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MemoryCatalogRepository keeps the catalog in process memory. Used by
// tests and local tooling.
type MemoryCatalogRepository struct {
	mu         sync.RWMutex
	activities map[uuid.UUID]models.LicenceActivity
	purposes   map[uuid.UUID]models.LicencePurpose
	groups     map[uuid.UUID]models.ActivityPermissionGroup
	gstRate    *models.GSTRate
}

func NewMemoryCatalogRepository() *MemoryCatalogRepository {
	return &MemoryCatalogRepository{
		activities: make(map[uuid.UUID]models.LicenceActivity),
		purposes:   make(map[uuid.UUID]models.LicencePurpose),
		groups:     make(map[uuid.UUID]models.ActivityPermissionGroup),
	}
}

func (r *MemoryCatalogRepository) AddActivity(activity models.LicenceActivity) models.LicenceActivity {
	r.mu.Lock()
	defer r.mu.Unlock()
	if activity.ID == uuid.Nil {
		activity.ID = uuid.New()
	}
	r.activities[activity.ID] = activity
	return activity
}

func (r *MemoryCatalogRepository) AddPurpose(purpose models.LicencePurpose) models.LicencePurpose {
	r.mu.Lock()
	defer r.mu.Unlock()
	if purpose.ID == uuid.Nil {
		purpose.ID = uuid.New()
	}
	if purpose.Version == 0 {
		purpose.Version = 1
	}
	purpose.LicenceActivity = nil
	r.purposes[purpose.ID] = purpose
	return r.hydratePurpose(purpose)
}

// Supersede records next as the replacement of previous.
func (r *MemoryCatalogRepository) Supersede(previousID uuid.UUID, next models.LicencePurpose) models.LicencePurpose {
	created := r.AddPurpose(next)
	r.mu.Lock()
	defer r.mu.Unlock()
	previous := r.purposes[previousID]
	previous.ReplacedByID = &created.ID
	r.purposes[previousID] = previous
	return created
}

func (r *MemoryCatalogRepository) AddPermissionGroup(group models.ActivityPermissionGroup) models.ActivityPermissionGroup {
	r.mu.Lock()
	defer r.mu.Unlock()
	if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}
	group.IsActive = true
	for i := range group.Members {
		group.Members[i].GroupID = group.ID
		if group.Members[i].ID == uuid.Nil {
			group.Members[i].ID = uuid.New()
		}
		group.Members[i].IsActive = true
	}
	for i := range group.Activities {
		group.Activities[i].GroupID = group.ID
	}
	r.groups[group.ID] = group
	return group
}

func (r *MemoryCatalogRepository) SetGSTRate(rate *models.GSTRate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gstRate = rate
}

func (r *MemoryCatalogRepository) hydratePurpose(p models.LicencePurpose) models.LicencePurpose {
	if activity, ok := r.activities[p.LicenceActivityID]; ok {
		p.LicenceActivity = &activity
	}
	return p
}

func (r *MemoryCatalogRepository) GetPurpose(ctx context.Context, id uuid.UUID) (*models.LicencePurpose, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.purposes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	p = r.hydratePurpose(p)
	return &p, nil
}

func (r *MemoryCatalogRepository) GetPurposes(ctx context.Context, ids []uuid.UUID) ([]models.LicencePurpose, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[uuid.UUID]bool, len(ids))
	var purposes []models.LicencePurpose
	for _, id := range ids {
		p, ok := r.purposes[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		purposes = append(purposes, r.hydratePurpose(p))
	}
	sortPurposes(purposes)
	return purposes, nil
}

func (r *MemoryCatalogRepository) ListPurposes(ctx context.Context) ([]models.LicencePurpose, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var purposes []models.LicencePurpose
	for _, p := range r.purposes {
		if p.ReplacedByID == nil {
			purposes = append(purposes, r.hydratePurpose(p))
		}
	}
	sortPurposes(purposes)
	return purposes, nil
}

func (r *MemoryCatalogRepository) GetActivity(ctx context.Context, id uuid.UUID) (*models.LicenceActivity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.activities[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &a, nil
}

func (r *MemoryCatalogRepository) GetPermissionGroup(ctx context.Context, id uuid.UUID) (*models.ActivityPermissionGroup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[id]
	if !ok || !g.IsActive {
		return nil, gorm.ErrRecordNotFound
	}
	return &g, nil
}

func (r *MemoryCatalogRepository) ListPermissionGroups(ctx context.Context, activityID uuid.UUID, kind models.PermissionGroupKind) ([]models.ActivityPermissionGroup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var groups []models.ActivityPermissionGroup
	for _, g := range r.groups {
		if g.Kind != kind || !g.IsActive {
			continue
		}
		for _, a := range g.Activities {
			if a.LicenceActivityID == activityID {
				groups = append(groups, g)
				break
			}
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups, nil
}

func (r *MemoryCatalogRepository) GetActiveGSTRate(ctx context.Context) (*models.GSTRate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gstRate, nil
}

func sortPurposes(purposes []models.LicencePurpose) {
	sort.SliceStable(purposes, func(i, j int) bool {
		if purposes[i].DisplayOrder != purposes[j].DisplayOrder {
			return purposes[i].DisplayOrder < purposes[j].DisplayOrder
		}
		return purposes[i].Name < purposes[j].Name
	})
}
