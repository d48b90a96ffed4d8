package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/caskr/internal/accounting/domain"
	"github.com/smallbiznis/caskr/internal/accounting/mapper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type InvoiceSyncService struct {
	db       *gorm.DB
	runner   *syncRunner
	contexts domain.ContextFactory
	clients  domain.ClientFactory
	mappings domain.MappingRepository
	billing  domain.BillingRepository
}

func NewInvoiceSyncService(p SyncParams) domain.InvoiceSyncService {
	return &InvoiceSyncService{
		db:       p.DB,
		runner:   newSyncRunner(p, p.Log.Named("accounting.invoice_sync")),
		contexts: p.Contexts,
		clients:  p.Clients,
		mappings: p.Mappings,
		billing:  p.Billing,
	}
}

// SyncInvoiceToQuickBooks pushes the invoice of the current company to
// QuickBooks once. Later calls return the recorded external id.
func (s *InvoiceSyncService) SyncInvoiceToQuickBooks(ctx context.Context, invoiceID snowflake.ID) (*domain.SyncResult, error) {
	companyID, err := companyFromContext(ctx)
	if err != nil {
		return nil, err
	}

	invoice, err := s.billing.FindInvoice(ctx, s.db, companyID, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, domain.ErrInvoiceNotFound
	}

	return s.runner.run(ctx, syncJob{
		companyID:  companyID,
		entityType: domain.EntityTypeInvoice,
		entityID:   invoice.ID,
		prepare: func(ctx context.Context) (remoteCall, error) {
			return s.prepare(ctx, companyID, *invoice)
		},
	})
}

func (s *InvoiceSyncService) prepare(ctx context.Context, companyID snowflake.ID, invoice domain.Invoice) (remoteCall, error) {
	if invoice.Customer == nil {
		return nil, domain.ErrInvoiceNoCustomer
	}

	sc, err := s.contexts.CreateContext(ctx, companyID)
	if err != nil {
		return nil, err
	}
	client, err := s.clients.NewClient(*sc)
	if err != nil {
		return nil, err
	}

	rows, err := s.mappings.ListByCompany(ctx, s.db, companyID)
	if err != nil {
		return nil, err
	}
	fallback := domain.CaskrAccountType(s.runner.accounting.Get().FallbackAccountType)
	remote, err := mapper.MapInvoice(invoice, mapper.NewAccountMappings(rows, fallback), domain.Ref{})
	if err != nil {
		return nil, err
	}

	customer := *invoice.Customer
	return func(ctx context.Context) (string, error) {
		ref, err := resolveCustomer(ctx, client, customer)
		if err != nil {
			return "", err
		}
		remote.CustomerRef = ref

		created, err := client.CreateInvoice(ctx, remote)
		if err != nil {
			return "", err
		}
		s.runner.log.Debug("invoice created remotely",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.String("external_id", created.ID),
		)
		return created.ID, nil
	}, nil
}
