package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/caskr/internal/accounting/accountingtest"
	"github.com/smallbiznis/caskr/internal/accounting/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegrationUpsertKeepsOneRowPerProvider(t *testing.T) {
	db := accountingtest.NewDB(t)
	repo := ProvideIntegrations()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := &domain.AccountingIntegration{
		ID:                    1,
		CompanyID:             10,
		Provider:              domain.ProviderQuickBooks,
		RealmID:               "realm-1",
		Environment:           "sandbox",
		AccessTokenEncrypted:  "enc-a",
		RefreshTokenEncrypted: "enc-r",
		TokenExpiresAt:        now.Add(time.Hour),
		IsActive:              true,
		ConnectedAt:           now,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	require.NoError(t, repo.Upsert(ctx, db, first))

	second := *first
	second.ID = 2
	second.RealmID = "realm-2"
	second.AccessTokenEncrypted = "enc-a2"
	require.NoError(t, repo.Upsert(ctx, db, &second))

	var count int64
	require.NoError(t, db.Model(&domain.AccountingIntegration{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	found, err := repo.FindActive(ctx, db, 10, domain.ProviderQuickBooks)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, snowflake.ID(1), found.ID)
	assert.Equal(t, "realm-2", found.RealmID)
	assert.Equal(t, "enc-a2", found.AccessTokenEncrypted)
}

func TestIntegrationDeactivateHidesFromFindActive(t *testing.T) {
	db := accountingtest.NewDB(t)
	repo := ProvideIntegrations()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Upsert(ctx, db, &domain.AccountingIntegration{
		ID:                    1,
		CompanyID:             10,
		Provider:              domain.ProviderQuickBooks,
		Environment:           "sandbox",
		AccessTokenEncrypted:  "a",
		RefreshTokenEncrypted: "r",
		TokenExpiresAt:        now,
		IsActive:              true,
		ConnectedAt:           now,
		CreatedAt:             now,
		UpdatedAt:             now,
	}))

	changed, err := repo.Deactivate(ctx, db, 10, domain.ProviderQuickBooks, now)
	require.NoError(t, err)
	assert.True(t, changed)

	active, err := repo.FindActive(ctx, db, 10, domain.ProviderQuickBooks)
	require.NoError(t, err)
	assert.Nil(t, active)

	stored, err := repo.Find(ctx, db, 10, domain.ProviderQuickBooks)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.IsActive)

	changed, err = repo.Deactivate(ctx, db, 10, domain.ProviderQuickBooks, now)
	require.NoError(t, err)
	assert.False(t, changed)

	stored.AccessTokenEncrypted = "b"
	assert.ErrorIs(t, repo.UpdateTokens(ctx, db, stored), domain.ErrIntegrationNotFound)
}

func TestMappingUpsertAndList(t *testing.T) {
	db := accountingtest.NewDB(t)
	repo := ProvideMappings()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Upsert(ctx, db, &domain.ChartOfAccountsMapping{
		ID: 1, CompanyID: 10, CaskrAccountType: domain.AccountTypeRevenue,
		ExternalAccountID: "acct-rev", CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, repo.Upsert(ctx, db, &domain.ChartOfAccountsMapping{
		ID: 2, CompanyID: 10, CaskrAccountType: domain.AccountTypeRevenue,
		ExternalAccountID: "acct-rev-2", CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, repo.Upsert(ctx, db, &domain.ChartOfAccountsMapping{
		ID: 3, CompanyID: 11, CaskrAccountType: domain.AccountTypeCOGS,
		ExternalAccountID: "acct-cogs", CreatedAt: now, UpdatedAt: now,
	}))

	items, err := repo.ListByCompany(ctx, db, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "acct-rev-2", items[0].ExternalAccountID)
}

func TestSyncLogLatestSuccessIgnoresFailures(t *testing.T) {
	db := accountingtest.NewDB(t)
	repo := ProvideSyncLogs()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	logs := []domain.AccountingSyncLog{
		{ID: 1, CompanyID: 10, Provider: "quickbooks", EntityType: domain.EntityTypeInvoice, EntityID: 5, Status: domain.SyncStatusFailed, ErrorMessage: "boom", SyncedAt: base},
		{ID: 2, CompanyID: 10, Provider: "quickbooks", EntityType: domain.EntityTypeInvoice, EntityID: 5, Status: domain.SyncStatusSuccess, ExternalEntityID: "inv-9", SyncedAt: base.Add(time.Minute)},
		{ID: 3, CompanyID: 10, Provider: "quickbooks", EntityType: domain.EntityTypeJournalEntry, EntityID: 5, Status: domain.SyncStatusSuccess, ExternalEntityID: "je-1", SyncedAt: base.Add(2 * time.Minute)},
	}
	for i := range logs {
		require.NoError(t, repo.Insert(ctx, db, &logs[i]))
	}

	found, err := repo.FindLatestSuccess(ctx, db, 10, domain.EntityTypeInvoice, 5)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "inv-9", found.ExternalEntityID)

	missing, err := repo.FindLatestSuccess(ctx, db, 11, domain.EntityTypeInvoice, 5)
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := repo.List(ctx, db, 10, domain.SyncLogFilter{EntityID: 5})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, snowflake.ID(3), all[0].ID)

	failed, err := repo.List(ctx, db, 10, domain.SyncLogFilter{Status: domain.SyncStatusFailed, Limit: 1})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "boom", failed[0].ErrorMessage)
}

func TestBillingFindBatchLoadsOrderChain(t *testing.T) {
	db := accountingtest.NewDB(t)
	repo := ProvideBilling()
	ctx := context.Background()
	day := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	orderID := snowflake.ID(30)

	require.NoError(t, db.Create(&domain.Batch{
		ID: 20, CompanyID: 10, BatchNumber: "B-20",
		RawMaterialCost: decimal.NewFromInt(100),
	}).Error)
	require.NoError(t, db.Create(&domain.Order{ID: orderID, CompanyID: 10, BatchID: 20}).Error)
	require.NoError(t, db.Create(&domain.Invoice{
		ID: 40, CompanyID: 10, CustomerID: 1, OrderID: &orderID,
		InvoiceNumber: "INV-40", InvoiceDate: day,
	}).Error)

	batch, err := repo.FindBatch(ctx, db, 10, 20)
	require.NoError(t, err)
	require.NotNil(t, batch)
	require.Len(t, batch.Orders, 1)
	require.Len(t, batch.Invoices(), 1)
	assert.Equal(t, "INV-40", batch.Invoices()[0].InvoiceNumber)

	other, err := repo.FindBatch(ctx, db, 11, 20)
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestBillingFindInvoiceLoadsLinesTaxesAndCustomer(t *testing.T) {
	db := accountingtest.NewDB(t)
	repo := ProvideBilling()
	ctx := context.Background()

	require.NoError(t, db.Create(&domain.Customer{ID: 1, CompanyID: 10, Email: "buyer@example.com"}).Error)
	require.NoError(t, db.Create(&domain.Invoice{
		ID: 40, CompanyID: 10, CustomerID: 1, InvoiceNumber: "INV-40",
		InvoiceDate: time.Now().UTC(),
		LineItems: []domain.InvoiceLineItem{
			{ID: 2, Position: 2, Description: "second", AccountType: domain.AccountTypeRevenue},
			{ID: 1, Position: 1, Description: "first", AccountType: domain.AccountTypeFinishedGoods},
		},
		Taxes: []domain.InvoiceTax{{ID: 1, TaxName: "excise", Amount: decimal.NewFromInt(3)}},
	}).Error)

	invoice, err := repo.FindInvoice(ctx, db, 10, 40)
	require.NoError(t, err)
	require.NotNil(t, invoice)
	require.NotNil(t, invoice.Customer)
	assert.Equal(t, "buyer@example.com", invoice.Customer.Email)
	require.Len(t, invoice.LineItems, 2)
	assert.Equal(t, "first", invoice.LineItems[0].Description)
	assert.True(t, invoice.TotalTax().Equal(decimal.NewFromInt(3)))
}
