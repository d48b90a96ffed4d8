package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	ProviderQuickBooks = "quickbooks"
	ProviderSalesforce = "salesforce"
)

// AccountingIntegration is the connection of one company to one provider.
// Token columns only ever hold protected payloads.
type AccountingIntegration struct {
	ID                    snowflake.ID   `json:"id" gorm:"primaryKey"`
	CompanyID             snowflake.ID   `json:"company_id" gorm:"not null;uniqueIndex:ux_accounting_integrations_company_provider,priority:1"`
	Provider              string         `json:"provider" gorm:"type:text;not null;uniqueIndex:ux_accounting_integrations_company_provider,priority:2"`
	RealmID               string         `json:"realm_id" gorm:"type:text"`
	InstanceURL           string         `json:"instance_url,omitempty" gorm:"type:text"`
	Environment           string         `json:"environment" gorm:"type:text;not null"`
	AccessTokenEncrypted  string         `json:"-" gorm:"type:text;not null"`
	RefreshTokenEncrypted string         `json:"-" gorm:"type:text;not null"`
	TokenExpiresAt        time.Time      `json:"token_expires_at" gorm:"not null"`
	RefreshExpiresAt      *time.Time     `json:"refresh_expires_at,omitempty"`
	Scopes                datatypes.JSON `json:"scopes" gorm:"type:jsonb"`
	IsActive              bool           `json:"is_active" gorm:"not null;default:true"`
	ConnectedAt           time.Time      `json:"connected_at" gorm:"not null"`
	LastRefreshedAt       *time.Time     `json:"last_refreshed_at,omitempty"`
	CreatedAt             time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt             time.Time      `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (AccountingIntegration) TableName() string { return "accounting_integrations" }

type CaskrAccountType string

const (
	AccountTypeCOGS               CaskrAccountType = "COGS"
	AccountTypeWIP                CaskrAccountType = "WorkInProgress"
	AccountTypeFinishedGoods      CaskrAccountType = "FinishedGoods"
	AccountTypeRawMaterials       CaskrAccountType = "RawMaterials"
	AccountTypeRevenue            CaskrAccountType = "Revenue"
	AccountTypeBarrelStorage      CaskrAccountType = "BarrelStorage"
	AccountTypeBottlingServices   CaskrAccountType = "BottlingServices"
	AccountTypeExciseTax          CaskrAccountType = "ExciseTax"
	AccountTypeShipping           CaskrAccountType = "Shipping"
	AccountTypeAccountsReceivable CaskrAccountType = "AccountsReceivable"
)

var knownAccountTypes = map[CaskrAccountType]struct{}{
	AccountTypeCOGS:               {},
	AccountTypeWIP:                {},
	AccountTypeFinishedGoods:      {},
	AccountTypeRawMaterials:       {},
	AccountTypeRevenue:            {},
	AccountTypeBarrelStorage:      {},
	AccountTypeBottlingServices:   {},
	AccountTypeExciseTax:          {},
	AccountTypeShipping:           {},
	AccountTypeAccountsReceivable: {},
}

func (t CaskrAccountType) Valid() bool {
	_, ok := knownAccountTypes[t]
	return ok
}

// ChartOfAccountsMapping translates an internal account type to the
// provider's account or item id for one company.
type ChartOfAccountsMapping struct {
	ID                  snowflake.ID     `json:"id" gorm:"primaryKey"`
	CompanyID           snowflake.ID     `json:"company_id" gorm:"not null;uniqueIndex:ux_coa_mappings_company_type,priority:1"`
	CaskrAccountType    CaskrAccountType `json:"caskr_account_type" gorm:"type:text;not null;uniqueIndex:ux_coa_mappings_company_type,priority:2"`
	ExternalAccountID   string           `json:"external_account_id" gorm:"type:text;not null"`
	ExternalAccountName string           `json:"external_account_name" gorm:"type:text"`
	CreatedAt           time.Time        `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time        `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ChartOfAccountsMapping) TableName() string { return "chart_of_accounts_mappings" }

type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "Success"
	SyncStatusFailed  SyncStatus = "Failed"
)

type EntityType string

const (
	EntityTypeInvoice      EntityType = "Invoice"
	EntityTypeJournalEntry EntityType = "JournalEntry"
)

// AccountingSyncLog is written once per sync attempt and never updated.
type AccountingSyncLog struct {
	ID               snowflake.ID `json:"id" gorm:"primaryKey"`
	CompanyID        snowflake.ID `json:"company_id" gorm:"not null;index:ix_accounting_sync_logs_entity,priority:1"`
	Provider         string       `json:"provider" gorm:"type:text;not null"`
	EntityType       EntityType   `json:"entity_type" gorm:"type:text;not null;index:ix_accounting_sync_logs_entity,priority:2"`
	EntityID         snowflake.ID `json:"entity_id" gorm:"not null;index:ix_accounting_sync_logs_entity,priority:3"`
	ExternalEntityID string       `json:"external_entity_id,omitempty" gorm:"type:text"`
	Status           SyncStatus   `json:"status" gorm:"type:text;not null;index:ix_accounting_sync_logs_entity,priority:4"`
	ErrorMessage     string       `json:"error_message,omitempty" gorm:"type:text"`
	DurationMs       int64        `json:"duration_ms"`
	SyncedAt         time.Time    `json:"synced_at" gorm:"not null"`
}

func (AccountingSyncLog) TableName() string { return "accounting_sync_logs" }
