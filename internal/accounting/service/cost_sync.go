package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/caskr/internal/accounting/domain"
	"github.com/smallbiznis/caskr/internal/accounting/mapper"
	"gorm.io/gorm"
)

type CostTrackingSyncService struct {
	db       *gorm.DB
	runner   *syncRunner
	contexts domain.ContextFactory
	clients  domain.ClientFactory
	mappings domain.MappingRepository
	billing  domain.BillingRepository
}

func NewCostTrackingSyncService(p SyncParams) domain.CostTrackingSyncService {
	return &CostTrackingSyncService{
		db:       p.DB,
		runner:   newSyncRunner(p, p.Log.Named("accounting.cost_sync")),
		contexts: p.Contexts,
		clients:  p.Clients,
		mappings: p.Mappings,
		billing:  p.Billing,
	}
}

// RecordBatchCOGS posts a journal entry moving the batch cost from work in
// progress to cost of goods sold. The entry is posted at most once per batch.
func (s *CostTrackingSyncService) RecordBatchCOGS(ctx context.Context, batchID snowflake.ID) (*domain.SyncResult, error) {
	companyID, err := companyFromContext(ctx)
	if err != nil {
		return nil, err
	}

	batch, err := s.billing.FindBatch(ctx, s.db, companyID, batchID)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, domain.ErrBatchNotFound
	}

	return s.runner.run(ctx, syncJob{
		companyID:  companyID,
		entityType: domain.EntityTypeJournalEntry,
		entityID:   batch.ID,
		prepare: func(ctx context.Context) (remoteCall, error) {
			return s.prepare(ctx, companyID, *batch)
		},
	})
}

func (s *CostTrackingSyncService) prepare(ctx context.Context, companyID snowflake.ID, batch domain.Batch) (remoteCall, error) {
	rows, err := s.mappings.ListByCompany(ctx, s.db, companyID)
	if err != nil {
		return nil, err
	}
	cfg := s.runner.accounting.Get()
	entry, err := mapper.MapCogsJournalEntry(batch, mapper.NewAccountMappings(rows, domain.CaskrAccountType(cfg.FallbackAccountType)), cfg.DefaultCurrency)
	if err != nil {
		return nil, err
	}

	sc, err := s.contexts.CreateContext(ctx, companyID)
	if err != nil {
		return nil, err
	}
	client, err := s.clients.NewClient(*sc)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) (string, error) {
		created, err := client.CreateJournalEntry(ctx, entry)
		if err != nil {
			return "", err
		}
		return created.ID, nil
	}, nil
}
