package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/caskr/internal/accounting/domain"
	"gorm.io/gorm"
)

const (
	defaultSyncLogLimit = 50
	maxSyncLogLimit     = 500
)

type syncLogRepo struct{}

func ProvideSyncLogs() domain.SyncLogRepository {
	return &syncLogRepo{}
}

func (r *syncLogRepo) Insert(ctx context.Context, db *gorm.DB, log *domain.AccountingSyncLog) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO accounting_sync_logs (
			id, company_id, provider, entity_type, entity_id, external_entity_id, status, error_message, duration_ms, synced_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID,
		log.CompanyID,
		log.Provider,
		log.EntityType,
		log.EntityID,
		log.ExternalEntityID,
		log.Status,
		log.ErrorMessage,
		log.DurationMs,
		log.SyncedAt,
	).Error
}

func (r *syncLogRepo) FindLatestSuccess(ctx context.Context, db *gorm.DB, companyID snowflake.ID, entityType domain.EntityType, entityID snowflake.ID) (*domain.AccountingSyncLog, error) {
	var item domain.AccountingSyncLog
	err := db.WithContext(ctx).Raw(
		`SELECT id, company_id, provider, entity_type, entity_id, external_entity_id, status, error_message, duration_ms, synced_at
		 FROM accounting_sync_logs
		 WHERE company_id = ? AND entity_type = ? AND entity_id = ? AND status = ?
		 ORDER BY synced_at DESC, id DESC
		 LIMIT 1`,
		companyID,
		entityType,
		entityID,
		domain.SyncStatusSuccess,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *syncLogRepo) List(ctx context.Context, db *gorm.DB, companyID snowflake.ID, filter domain.SyncLogFilter) ([]domain.AccountingSyncLog, error) {
	var items []domain.AccountingSyncLog
	stmt := db.WithContext(ctx).
		Model(&domain.AccountingSyncLog{}).
		Where("company_id = ?", companyID)
	if filter.EntityType != "" {
		stmt = stmt.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != 0 {
		stmt = stmt.Where("entity_id = ?", filter.EntityID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultSyncLogLimit
	}
	if limit > maxSyncLogLimit {
		limit = maxSyncLogLimit
	}

	err := stmt.
		Order("synced_at desc, id desc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
