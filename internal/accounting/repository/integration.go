package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/caskr/internal/accounting/domain"
	"gorm.io/gorm"
)

const integrationColumns = `id, company_id, provider, realm_id, instance_url, environment,
	access_token_encrypted, refresh_token_encrypted, token_expires_at, refresh_expires_at,
	scopes, is_active, connected_at, last_refreshed_at, created_at, updated_at`

type integrationRepo struct{}

func ProvideIntegrations() domain.IntegrationRepository {
	return &integrationRepo{}
}

func (r *integrationRepo) FindActive(ctx context.Context, db *gorm.DB, companyID snowflake.ID, provider string) (*domain.AccountingIntegration, error) {
	var item domain.AccountingIntegration
	err := db.WithContext(ctx).Raw(
		`SELECT `+integrationColumns+`
		 FROM accounting_integrations
		 WHERE company_id = ? AND provider = ? AND is_active = ?
		 LIMIT 1`,
		companyID,
		provider,
		true,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *integrationRepo) Find(ctx context.Context, db *gorm.DB, companyID snowflake.ID, provider string) (*domain.AccountingIntegration, error) {
	var item domain.AccountingIntegration
	err := db.WithContext(ctx).Raw(
		`SELECT `+integrationColumns+`
		 FROM accounting_integrations
		 WHERE company_id = ? AND provider = ?
		 LIMIT 1`,
		companyID,
		provider,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

// Upsert keeps a single row per (company, provider). Reconnecting reactivates
// the existing row and replaces its tokens.
func (r *integrationRepo) Upsert(ctx context.Context, db *gorm.DB, integration *domain.AccountingIntegration) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO accounting_integrations (
			`+integrationColumns+`
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (company_id, provider)
		DO UPDATE SET realm_id = EXCLUDED.realm_id,
			instance_url = EXCLUDED.instance_url,
			environment = EXCLUDED.environment,
			access_token_encrypted = EXCLUDED.access_token_encrypted,
			refresh_token_encrypted = EXCLUDED.refresh_token_encrypted,
			token_expires_at = EXCLUDED.token_expires_at,
			refresh_expires_at = EXCLUDED.refresh_expires_at,
			scopes = EXCLUDED.scopes,
			is_active = EXCLUDED.is_active,
			connected_at = EXCLUDED.connected_at,
			last_refreshed_at = EXCLUDED.last_refreshed_at,
			updated_at = EXCLUDED.updated_at`,
		integration.ID,
		integration.CompanyID,
		integration.Provider,
		integration.RealmID,
		integration.InstanceURL,
		integration.Environment,
		integration.AccessTokenEncrypted,
		integration.RefreshTokenEncrypted,
		integration.TokenExpiresAt,
		integration.RefreshExpiresAt,
		integration.Scopes,
		integration.IsActive,
		integration.ConnectedAt,
		integration.LastRefreshedAt,
		integration.CreatedAt,
		integration.UpdatedAt,
	).Error
}

func (r *integrationRepo) UpdateTokens(ctx context.Context, db *gorm.DB, integration *domain.AccountingIntegration) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE accounting_integrations
		 SET access_token_encrypted = ?, refresh_token_encrypted = ?, token_expires_at = ?,
			refresh_expires_at = ?, instance_url = ?, last_refreshed_at = ?, updated_at = ?
		 WHERE id = ? AND is_active = ?`,
		integration.AccessTokenEncrypted,
		integration.RefreshTokenEncrypted,
		integration.TokenExpiresAt,
		integration.RefreshExpiresAt,
		integration.InstanceURL,
		integration.LastRefreshedAt,
		integration.UpdatedAt,
		integration.ID,
		true,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrIntegrationNotFound
	}
	return nil
}

func (r *integrationRepo) Deactivate(ctx context.Context, db *gorm.DB, companyID snowflake.ID, provider string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE accounting_integrations
		 SET is_active = ?, updated_at = ?
		 WHERE company_id = ? AND provider = ? AND is_active = ?`,
		false,
		at,
		companyID,
		provider,
		true,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
