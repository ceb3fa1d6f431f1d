package repositories

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
	"wildlife-licensing-backend/db/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type countingCatalog struct {
	CatalogRepository
	purposeLoads atomic.Int32
	groupLoads   atomic.Int32
}

func (c *countingCatalog) GetPurpose(ctx context.Context, id uuid.UUID) (*models.LicencePurpose, error) {
	c.purposeLoads.Add(1)
	return c.CatalogRepository.GetPurpose(ctx, id)
}

func (c *countingCatalog) ListPermissionGroups(ctx context.Context, activityID uuid.UUID, kind models.PermissionGroupKind) ([]models.ActivityPermissionGroup, error) {
	c.groupLoads.Add(1)
	return c.CatalogRepository.ListPermissionGroups(ctx, activityID, kind)
}

type CachedCatalogSuite struct {
	suite.Suite
	ctx      context.Context
	redis    *miniredis.Miniredis
	memory   *MemoryCatalogRepository
	counting *countingCatalog
	cached   *CachedCatalogRepository
	activity models.LicenceActivity
	purpose  models.LicencePurpose
}

func TestCachedCatalogSuite(t *testing.T) {
	suite.Run(t, new(CachedCatalogSuite))
}

func (s *CachedCatalogSuite) SetupTest() {
	s.ctx = context.Background()
	s.redis = miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: s.redis.Addr()})
	s.T().Cleanup(func() { _ = client.Close() })

	s.memory = NewMemoryCatalogRepository()
	s.activity = s.memory.AddActivity(models.LicenceActivity{Name: "Fauna Other"})
	s.purpose = s.memory.AddPurpose(models.LicencePurpose{
		Name:               "Bird keeping",
		LicenceActivityID:  s.activity.ID,
		BaseApplicationFee: decimal.RequireFromString("100.00"),
		RequiredFields:     []string{"species"},
	})
	s.counting = &countingCatalog{CatalogRepository: s.memory}
	s.cached = NewCachedCatalogRepository(s.counting, client, time.Minute, zap.NewNop())
}

func (s *CachedCatalogSuite) TestGetPurposeIsReadThrough() {
	first, err := s.cached.GetPurpose(s.ctx, s.purpose.ID)
	s.Require().NoError(err)
	second, err := s.cached.GetPurpose(s.ctx, s.purpose.ID)
	s.Require().NoError(err)

	s.Equal(int32(1), s.counting.purposeLoads.Load())
	s.Equal(first.Name, second.Name)
	s.True(second.BaseApplicationFee.Equal(decimal.RequireFromString("100")))
	s.Equal([]string{"species"}, []string(second.RequiredFields))
	s.True(s.redis.Exists(cacheKey("purpose", s.purpose.ID.String())))
}

func (s *CachedCatalogSuite) TestEntriesExpireAfterTTL() {
	_, err := s.cached.GetPurpose(s.ctx, s.purpose.ID)
	s.Require().NoError(err)

	s.redis.FastForward(2 * time.Minute)

	_, err = s.cached.GetPurpose(s.ctx, s.purpose.ID)
	s.Require().NoError(err)
	s.Equal(int32(2), s.counting.purposeLoads.Load())
}

func (s *CachedCatalogSuite) TestGetPurposesSkipsUnknownIDs() {
	purposes, err := s.cached.GetPurposes(s.ctx, []uuid.UUID{uuid.New(), s.purpose.ID, s.purpose.ID})
	s.Require().NoError(err)
	s.Require().Len(purposes, 1)
	s.Equal(s.purpose.ID, purposes[0].ID)
}

func (s *CachedCatalogSuite) TestInvalidateDropsCatalogKeys() {
	_, err := s.cached.ListPermissionGroups(s.ctx, s.activity.ID, models.OfficerGroup)
	s.Require().NoError(err)
	_, err = s.cached.GetPurpose(s.ctx, s.purpose.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.redis.Set("unrelated", "keep"))

	s.Require().NoError(s.cached.Invalidate(s.ctx))

	s.False(s.redis.Exists(cacheKey("purpose", s.purpose.ID.String())))
	s.True(s.redis.Exists("unrelated"))

	_, err = s.cached.ListPermissionGroups(s.ctx, s.activity.ID, models.OfficerGroup)
	s.Require().NoError(err)
	s.Equal(int32(2), s.counting.groupLoads.Load())
}

func (s *CachedCatalogSuite) TestRedisOutageFallsThrough() {
	s.redis.Close()

	purpose, err := s.cached.GetPurpose(s.ctx, s.purpose.ID)
	s.Require().NoError(err)
	s.Equal(s.purpose.ID, purpose.ID)
}
