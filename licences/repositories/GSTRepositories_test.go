package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockCatalog(t *testing.T) (CatalogRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)
	return NewCatalogRepository(db), mock
}

func TestGetActiveGSTRate(t *testing.T) {
	repo, mock := newMockCatalog(t)
	now := time.Now()
	id := uuid.New()

	rows := sqlmock.NewRows([]string{"id", "rate", "valid_from", "valid_to", "is_active", "created_at", "created_by", "updated_at", "deleted_at"}).
		AddRow(id.String(), "10.00", now.Add(-24*time.Hour), nil, true, now, "system", now, nil)
	mock.ExpectQuery(`SELECT \* FROM "gst_rates" WHERE .*is_active.*valid_to IS NULL OR valid_to.*ORDER BY valid_from DESC`).
		WillReturnRows(rows)

	rate, err := repo.GetActiveGSTRate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rate)
	assert.Equal(t, id, rate.ID)
	assert.Equal(t, "10", rate.Rate.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetActiveGSTRateNoneConfigured(t *testing.T) {
	repo, mock := newMockCatalog(t)

	mock.ExpectQuery(`SELECT \* FROM "gst_rates"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "rate"}))

	rate, err := repo.GetActiveGSTRate(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rate)
	assert.NoError(t, mock.ExpectationsWereMet())
}
