package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type AuthService interface {
	AuthorizationURL(ctx context.Context, provider string, companyID snowflake.ID) (*AuthorizationRedirect, error)
	ParseState(ctx context.Context, provider, state string) (snowflake.ID, error)
	HandleCallback(ctx context.Context, provider, code, realmID string, companyID snowflake.ID) (*TokenResponse, error)
	RefreshToken(ctx context.Context, provider string, companyID snowflake.ID) (*TokenResponse, error)
	Disconnect(ctx context.Context, provider string, companyID snowflake.ID) error
	Status(ctx context.Context, provider string, companyID snowflake.ID) (*IntegrationStatus, error)
}

type ContextFactory interface {
	CreateContext(ctx context.Context, companyID snowflake.ID) (*ServiceContext, error)
}

type InvoiceSyncService interface {
	SyncInvoiceToQuickBooks(ctx context.Context, invoiceID snowflake.ID) (*SyncResult, error)
}

type CostTrackingSyncService interface {
	RecordBatchCOGS(ctx context.Context, batchID snowflake.ID) (*SyncResult, error)
}

type ChartOfAccountsService interface {
	GetChartOfAccounts(ctx context.Context, companyID snowflake.ID) (*ChartOfAccounts, error)
	Invalidate(companyID snowflake.ID)
}

type SyncLogService interface {
	SyncLogs(ctx context.Context, filter SyncLogFilter) ([]AccountingSyncLog, error)
}

type AuthorizationRedirect struct {
	Provider string `json:"provider"`
	URL      string `json:"url"`
	State    string `json:"state"`
}

// TokenResponse holds plaintext tokens. It is returned to the caller for
// immediate use and never persisted as is.
type TokenResponse struct {
	Provider         string     `json:"provider"`
	AccessToken      string     `json:"access_token"`
	RefreshToken     string     `json:"refresh_token"`
	TokenType        string     `json:"token_type"`
	ExpiresAt        time.Time  `json:"expires_at"`
	RefreshExpiresAt *time.Time `json:"refresh_expires_at,omitempty"`
	RealmID          string     `json:"realm_id,omitempty"`
	InstanceURL      string     `json:"instance_url,omitempty"`
}

type IntegrationStatus struct {
	Provider        string     `json:"provider"`
	Connected       bool       `json:"connected"`
	RealmID         string     `json:"realm_id,omitempty"`
	InstanceURL     string     `json:"instance_url,omitempty"`
	Environment     string     `json:"environment,omitempty"`
	TokenExpiresAt  *time.Time `json:"token_expires_at,omitempty"`
	ConnectedAt     *time.Time `json:"connected_at,omitempty"`
	LastRefreshedAt *time.Time `json:"last_refreshed_at,omitempty"`
}

type SyncResult struct {
	Success       bool         `json:"success"`
	ExternalID    string       `json:"external_id,omitempty"`
	ErrorMessage  string       `json:"error_message,omitempty"`
	AlreadySynced bool         `json:"already_synced"`
	SyncLogID     snowflake.ID `json:"sync_log_id,omitempty"`
}

type ChartOfAccounts struct {
	CompanyID snowflake.ID    `json:"company_id"`
	Accounts  []RemoteAccount `json:"accounts"`
	FetchedAt time.Time       `json:"fetched_at"`
}

var (
	ErrInvalidCompany        = errors.New("invalid_company")
	ErrInvalidProvider       = errors.New("invalid_provider")
	ErrProviderNotConfigured = errors.New("provider_not_configured")
	ErrInvalidCode           = errors.New("invalid_authorization_code")
	ErrInvalidState          = errors.New("invalid_oauth_state")
	ErrMissingRealmID        = errors.New("missing_realm_id")
	ErrIntegrationNotFound   = errors.New("integration_not_found")
	ErrRefreshTokenMissing   = errors.New("refresh_token_missing")
	ErrTokenRefreshFailed    = errors.New("token_refresh_failed")
	ErrTokenExchangeFailed   = errors.New("token_exchange_failed")
	ErrTokenMissing          = errors.New("token_missing")
	ErrInvoiceNotFound       = errors.New("invoice_not_found")
	ErrBatchNotFound         = errors.New("batch_not_found")
	ErrMappingNotFound       = errors.New("account_mapping_not_found")
	ErrInvoiceHasNoLines     = errors.New("invoice_has_no_lines")
	ErrInvoiceNoCustomer     = errors.New("invoice_customer_missing")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrSyncInProgress        = errors.New("sync_in_progress")
)
