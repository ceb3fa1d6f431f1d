package db

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestSeedGSTRateKeepsActiveRate(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "gst_rates" WHERE .*is_active.*valid_to IS NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "rate", "valid_from", "is_active", "created_by"}).
			AddRow(uuid.NewString(), "10.00", now, true, "system"))

	require.NoError(t, SeedGSTRate(db, decimal.NewFromInt(10), "system"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
