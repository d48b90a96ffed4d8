package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/caskr/internal/accounting/domain"
	"gorm.io/gorm"
)

type mappingRepo struct{}

func ProvideMappings() domain.MappingRepository {
	return &mappingRepo{}
}

func (r *mappingRepo) ListByCompany(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]domain.ChartOfAccountsMapping, error) {
	var items []domain.ChartOfAccountsMapping
	err := db.WithContext(ctx).Raw(
		`SELECT id, company_id, caskr_account_type, external_account_id, external_account_name, created_at, updated_at
		 FROM chart_of_accounts_mappings
		 WHERE company_id = ?
		 ORDER BY caskr_account_type`,
		companyID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *mappingRepo) Upsert(ctx context.Context, db *gorm.DB, mapping *domain.ChartOfAccountsMapping) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO chart_of_accounts_mappings (
			id, company_id, caskr_account_type, external_account_id, external_account_name, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (company_id, caskr_account_type)
		DO UPDATE SET external_account_id = EXCLUDED.external_account_id,
			external_account_name = EXCLUDED.external_account_name,
			updated_at = EXCLUDED.updated_at`,
		mapping.ID,
		mapping.CompanyID,
		mapping.CaskrAccountType,
		mapping.ExternalAccountID,
		mapping.ExternalAccountName,
		mapping.CreatedAt,
		mapping.UpdatedAt,
	).Error
}
