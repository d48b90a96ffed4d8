// Package accountingtest holds fixtures shared by the accounting tests.
package accountingtest

import (
	"testing"

	"github.com/smallbiznis/caskr/internal/accounting/domain"
	"github.com/smallbiznis/caskr/pkg/db"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Models lists every table the accounting workflow reads or writes.
func Models() []any {
	return []any{
		&domain.AccountingIntegration{},
		&domain.ChartOfAccountsMapping{},
		&domain.AccountingSyncLog{},
		&domain.Customer{},
		&domain.Invoice{},
		&domain.InvoiceLineItem{},
		&domain.InvoiceTax{},
		&domain.Batch{},
		&domain.Order{},
	}
}

// NewDB returns a migrated in-memory database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(Models()...))

	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}
