package repositories

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockApplications(t *testing.T) (ApplicationRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)
	return NewApplicationRepository(db), mock
}

func TestActivePurposesIncludesSuspendedActivities(t *testing.T) {
	repo, mock := newMockApplications(t)
	licenceID, appID, activityID, ppID, purposeID := uuid.New(), uuid.New(), uuid.New(), uuid.New(), uuid.New()

	rows := sqlmock.NewRows([]string{"application_id", "selected_activity_id", "proposed_purpose_id", "licence_purpose_id"}).
		AddRow(appID.String(), activityID.String(), ppID.String(), purposeID.String())
	mock.ExpectQuery(`FROM proposed_purposes AS pp .*sa\.activity_status IN \(\$2,\$3\) AND pp\.status = \$4.*ORDER BY a\.created_at DESC`).
		WithArgs(sqlmock.AnyArg(), "CURRENT", "SUSPENDED", "ISSUED").
		WillReturnRows(rows)

	active, err := repo.ActivePurposes(context.Background(), licenceID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, purposeID, active[0].LicencePurposeID)
	assert.Equal(t, activityID, active[0].SelectedActivityID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
