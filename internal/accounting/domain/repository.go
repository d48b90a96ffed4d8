package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type IntegrationRepository interface {
	FindActive(ctx context.Context, db *gorm.DB, companyID snowflake.ID, provider string) (*AccountingIntegration, error)
	Find(ctx context.Context, db *gorm.DB, companyID snowflake.ID, provider string) (*AccountingIntegration, error)
	Upsert(ctx context.Context, db *gorm.DB, integration *AccountingIntegration) error
	UpdateTokens(ctx context.Context, db *gorm.DB, integration *AccountingIntegration) error
	Deactivate(ctx context.Context, db *gorm.DB, companyID snowflake.ID, provider string, at time.Time) (bool, error)
}

type MappingRepository interface {
	ListByCompany(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]ChartOfAccountsMapping, error)
	Upsert(ctx context.Context, db *gorm.DB, mapping *ChartOfAccountsMapping) error
}

type SyncLogRepository interface {
	Insert(ctx context.Context, db *gorm.DB, log *AccountingSyncLog) error
	FindLatestSuccess(ctx context.Context, db *gorm.DB, companyID snowflake.ID, entityType EntityType, entityID snowflake.ID) (*AccountingSyncLog, error)
	List(ctx context.Context, db *gorm.DB, companyID snowflake.ID, filter SyncLogFilter) ([]AccountingSyncLog, error)
}

type BillingRepository interface {
	FindInvoice(ctx context.Context, db *gorm.DB, companyID, invoiceID snowflake.ID) (*Invoice, error)
	FindBatch(ctx context.Context, db *gorm.DB, companyID, batchID snowflake.ID) (*Batch, error)
}

type SyncLogFilter struct {
	EntityType EntityType
	EntityID   snowflake.ID
	Status     SyncStatus
	Limit      int
}
