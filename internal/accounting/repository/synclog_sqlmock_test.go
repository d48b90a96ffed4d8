package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/smallbiznis/caskr/internal/accounting/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func TestSyncLogInsertWritesSingleRow(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()

	syncedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO accounting_sync_logs`).
		WithArgs(int64(1), int64(10), "quickbooks", "Invoice", int64(5), "inv-1", "Success", "", int64(120), syncedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := ProvideSyncLogs().Insert(context.Background(), db, &domain.AccountingSyncLog{
		ID:               1,
		CompanyID:        10,
		Provider:         "quickbooks",
		EntityType:       domain.EntityTypeInvoice,
		EntityID:         5,
		ExternalEntityID: "inv-1",
		Status:           domain.SyncStatusSuccess,
		DurationMs:       120,
		SyncedAt:         syncedAt,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncLogFindLatestSuccessFiltersOnStatus(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()

	rows := sqlmock.NewRows([]string{
		"id", "company_id", "provider", "entity_type", "entity_id",
		"external_entity_id", "status", "error_message", "duration_ms", "synced_at",
	}).AddRow(7, 10, "quickbooks", "Invoice", 5, "inv-7", "Success", "", 30, time.Now())

	mock.ExpectQuery(`FROM accounting_sync_logs\s+WHERE company_id = \$1 AND entity_type = \$2 AND entity_id = \$3 AND status = \$4`).
		WithArgs(int64(10), "Invoice", int64(5), "Success").
		WillReturnRows(rows)

	found, err := ProvideSyncLogs().FindLatestSuccess(context.Background(), db, 10, domain.EntityTypeInvoice, 5)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "inv-7", found.ExternalEntityID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncLogFindLatestSuccessReturnsNilWhenEmpty(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()

	mock.ExpectQuery(`FROM accounting_sync_logs`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	found, err := ProvideSyncLogs().FindLatestSuccess(context.Background(), db, 10, domain.EntityTypeInvoice, 5)
	require.NoError(t, err)
	assert.Nil(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}
