package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"wildlife-licensing-backend/db/models"
	"wildlife-licensing-backend/licences/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// maxVersionChain bounds replaced_by traversal so a corrupted chain cannot loop forever.
const maxVersionChain = 64

var ErrPurposeNotFound = errors.New("licence purpose not found")

// ActivityPurposes is the set of requested purposes belonging to one activity.
type ActivityPurposes struct {
	ActivityID uuid.UUID
	Activity   *models.LicenceActivity
	Purposes   []models.LicencePurpose
}

// PurposeCatalog answers questions about versioned licence purposes.
type PurposeCatalog struct {
	repo repositories.CatalogRepository
}

func NewPurposeCatalog(repo repositories.CatalogRepository) *PurposeCatalog {
	return &PurposeCatalog{repo: repo}
}

func (c *PurposeCatalog) GetPurpose(ctx context.Context, id uuid.UUID) (*models.LicencePurpose, error) {
	purpose, err := c.repo.GetPurpose(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPurposeNotFound, id)
	}
	return purpose, err
}

// GetPurposes returns the known purposes among ids. Unknown ids are dropped.
func (c *PurposeCatalog) GetPurposes(ctx context.Context, ids []uuid.UUID) ([]models.LicencePurpose, error) {
	return c.repo.GetPurposes(ctx, ids)
}

func (c *PurposeCatalog) ListPurposes(ctx context.Context) ([]models.LicencePurpose, error) {
	return c.repo.ListPurposes(ctx)
}

// LatestVersion follows the replaced_by chain to the newest version.
func (c *PurposeCatalog) LatestVersion(ctx context.Context, purpose models.LicencePurpose) (models.LicencePurpose, error) {
	current := purpose
	for i := 0; current.ReplacedByID != nil; i++ {
		if i >= maxVersionChain {
			return purpose, fmt.Errorf("licence purpose %s has a replacement chain longer than %d", purpose.ID, maxVersionChain)
		}
		next, err := c.GetPurpose(ctx, *current.ReplacedByID)
		if err != nil {
			return purpose, err
		}
		current = *next
	}
	return current, nil
}

// LatestVersions upgrades every purpose to its newest version, dropping
// duplicates that collapse onto the same version.
func (c *PurposeCatalog) LatestVersions(ctx context.Context, purposes []models.LicencePurpose) ([]models.LicencePurpose, error) {
	seen := make(map[uuid.UUID]bool, len(purposes))
	latest := make([]models.LicencePurpose, 0, len(purposes))
	for _, p := range purposes {
		newest, err := c.LatestVersion(ctx, p)
		if err != nil {
			return nil, err
		}
		if seen[newest.ID] {
			continue
		}
		seen[newest.ID] = true
		latest = append(latest, newest)
	}
	return latest, nil
}

// ActivityGroups returns the permission groups of a kind covering an activity.
func (c *PurposeCatalog) ActivityGroups(ctx context.Context, activityID uuid.UUID, kind models.PermissionGroupKind) ([]models.ActivityPermissionGroup, error) {
	return c.repo.ListPermissionGroups(ctx, activityID, kind)
}

// IsGroupMember reports whether userID is an active member of any group of
// the kind covering the activity.
func (c *PurposeCatalog) IsGroupMember(ctx context.Context, activityID uuid.UUID, kind models.PermissionGroupKind, userID uuid.UUID) (bool, error) {
	groups, err := c.ActivityGroups(ctx, activityID, kind)
	if err != nil {
		return false, err
	}
	for _, g := range groups {
		if HasMember(g, userID) {
			return true, nil
		}
	}
	return false, nil
}

func (c *PurposeCatalog) GetPermissionGroup(ctx context.Context, id uuid.UUID) (*models.ActivityPermissionGroup, error) {
	return c.repo.GetPermissionGroup(ctx, id)
}

// GSTRate returns the active GST percentage, or fallback when none is stored.
func (c *PurposeCatalog) GSTRate(ctx context.Context, fallback decimal.Decimal) (decimal.Decimal, error) {
	rate, err := c.repo.GetActiveGSTRate(ctx)
	if err != nil {
		return fallback, err
	}
	if rate == nil {
		return fallback, nil
	}
	return rate.Rate, nil
}

// HasMember reports whether userID is an active member of the group.
func HasMember(group models.ActivityPermissionGroup, userID uuid.UUID) bool {
	for _, m := range group.Members {
		if m.UserID == userID && m.IsActive {
			return true
		}
	}
	return false
}

// Covers reports whether the group is scoped to the activity.
func Covers(group models.ActivityPermissionGroup, activityID uuid.UUID) bool {
	for _, a := range group.Activities {
		if a.LicenceActivityID == activityID {
			return true
		}
	}
	return false
}

// StrictestMinimumAge returns the purpose with the highest minimum age. The
// second result is false when no purpose sets an age limit.
func StrictestMinimumAge(purposes []models.LicencePurpose) (models.LicencePurpose, bool) {
	var strictest models.LicencePurpose
	found := false
	for _, p := range purposes {
		if p.MinimumAge > 0 && (!found || p.MinimumAge > strictest.MinimumAge) {
			strictest = p
			found = true
		}
	}
	return strictest, found
}

// GroupByActivity groups purposes per activity, activities in catalog order.
func GroupByActivity(purposes []models.LicencePurpose) []ActivityPurposes {
	index := make(map[uuid.UUID]int)
	var groups []ActivityPurposes
	for _, p := range purposes {
		i, ok := index[p.LicenceActivityID]
		if !ok {
			i = len(groups)
			index[p.LicenceActivityID] = i
			groups = append(groups, ActivityPurposes{ActivityID: p.LicenceActivityID, Activity: p.LicenceActivity})
		}
		groups[i].Purposes = append(groups[i].Purposes, p)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		oi, oj := activityOrder(groups[i]), activityOrder(groups[j])
		if oi != oj {
			return oi < oj
		}
		return groups[i].ActivityID.String() < groups[j].ActivityID.String()
	})
	for i := range groups {
		sort.SliceStable(groups[i].Purposes, func(a, b int) bool {
			pa, pb := groups[i].Purposes[a], groups[i].Purposes[b]
			if pa.DisplayOrder != pb.DisplayOrder {
				return pa.DisplayOrder < pb.DisplayOrder
			}
			return pa.Name < pb.Name
		})
	}
	return groups
}

func activityOrder(g ActivityPurposes) int {
	if g.Activity != nil {
		return g.Activity.DisplayOrder
	}
	return 0
}
