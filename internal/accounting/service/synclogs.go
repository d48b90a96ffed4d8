package service

import (
	"context"

	"github.com/smallbiznis/caskr/internal/accounting/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type SyncLogParams struct {
	fx.In

	DB       *gorm.DB
	SyncLogs domain.SyncLogRepository
}

type SyncLogService struct {
	db       *gorm.DB
	syncLogs domain.SyncLogRepository
}

func NewSyncLogService(p SyncLogParams) domain.SyncLogService {
	return &SyncLogService{db: p.DB, syncLogs: p.SyncLogs}
}

func (s *SyncLogService) SyncLogs(ctx context.Context, filter domain.SyncLogFilter) ([]domain.AccountingSyncLog, error) {
	companyID, err := companyFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.syncLogs.List(ctx, s.db, companyID, filter)
}
