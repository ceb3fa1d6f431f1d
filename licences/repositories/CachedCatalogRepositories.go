package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"wildlife-licensing-backend/db/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const catalogCachePrefix = "catalog"

// CachedCatalogRepository is a redis read-through cache in front of another
// CatalogRepository. Redis failures are logged and fall through to the
// wrapped repository.
type CachedCatalogRepository struct {
	inner  CatalogRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedCatalogRepository(inner CatalogRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedCatalogRepository {
	return &CachedCatalogRepository{inner: inner, client: client, ttl: ttl, logger: logger}
}

func cacheKey(parts ...string) string {
	key := catalogCachePrefix
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

func readThrough[T any](ctx context.Context, r *CachedCatalogRepository, key string, load func() (T, error)) (T, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached T
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return cached, nil
		}
		r.logger.Warn("Discarding unreadable catalog cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		r.logger.Warn("Catalog cache read failed", zap.String("key", key), zap.Error(err))
	}

	value, err := load()
	if err != nil {
		return value, err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		r.logger.Warn("Catalog cache encode failed", zap.String("key", key), zap.Error(err))
		return value, nil
	}
	if err := r.client.Set(ctx, key, encoded, r.ttl).Err(); err != nil {
		r.logger.Warn("Catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
	return value, nil
}

func (r *CachedCatalogRepository) GetPurpose(ctx context.Context, id uuid.UUID) (*models.LicencePurpose, error) {
	return readThrough(ctx, r, cacheKey("purpose", id.String()), func() (*models.LicencePurpose, error) {
		return r.inner.GetPurpose(ctx, id)
	})
}

func (r *CachedCatalogRepository) GetPurposes(ctx context.Context, ids []uuid.UUID) ([]models.LicencePurpose, error) {
	seen := make(map[uuid.UUID]bool, len(ids))
	var purposes []models.LicencePurpose
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		purpose, err := r.GetPurpose(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		purposes = append(purposes, *purpose)
	}
	sortPurposes(purposes)
	return purposes, nil
}

func (r *CachedCatalogRepository) ListPurposes(ctx context.Context) ([]models.LicencePurpose, error) {
	return readThrough(ctx, r, cacheKey("purposes"), func() ([]models.LicencePurpose, error) {
		return r.inner.ListPurposes(ctx)
	})
}

func (r *CachedCatalogRepository) GetActivity(ctx context.Context, id uuid.UUID) (*models.LicenceActivity, error) {
	return readThrough(ctx, r, cacheKey("activity", id.String()), func() (*models.LicenceActivity, error) {
		return r.inner.GetActivity(ctx, id)
	})
}

func (r *CachedCatalogRepository) GetPermissionGroup(ctx context.Context, id uuid.UUID) (*models.ActivityPermissionGroup, error) {
	return readThrough(ctx, r, cacheKey("group", id.String()), func() (*models.ActivityPermissionGroup, error) {
		return r.inner.GetPermissionGroup(ctx, id)
	})
}

func (r *CachedCatalogRepository) ListPermissionGroups(ctx context.Context, activityID uuid.UUID, kind models.PermissionGroupKind) ([]models.ActivityPermissionGroup, error) {
	return readThrough(ctx, r, cacheKey("groups", activityID.String(), string(kind)), func() ([]models.ActivityPermissionGroup, error) {
		return r.inner.ListPermissionGroups(ctx, activityID, kind)
	})
}

func (r *CachedCatalogRepository) GetActiveGSTRate(ctx context.Context) (*models.GSTRate, error) {
	return readThrough(ctx, r, cacheKey("gst"), func() (*models.GSTRate, error) {
		return r.inner.GetActiveGSTRate(ctx)
	})
}

// Invalidate drops every cached catalog entry.
func (r *CachedCatalogRepository) Invalidate(ctx context.Context) error {
	// Use SCAN instead of KEYS for better performance in production
	iter := r.client.Scan(ctx, 0, catalogCachePrefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", key, err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("error during SCAN iteration: %w", err)
	}
	return nil
}
