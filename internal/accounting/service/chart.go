package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/caskr/internal/accounting/domain"
	"github.com/smallbiznis/caskr/internal/clock"
	"github.com/smallbiznis/caskr/internal/config"
	"github.com/smallbiznis/caskr/internal/observability/metrics"
	"github.com/smallbiznis/caskr/pkg/log/ctxlogger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type ChartParams struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	Accounting *config.AccountingConfigHolder
	Contexts   domain.ContextFactory
	Clients    domain.ClientFactory
	Cache      *ChartCache
	Metrics    *metrics.Metrics `optional:"true"`
}

type ChartOfAccountsService struct {
	log        *zap.Logger
	clock      clock.Clock
	accounting *config.AccountingConfigHolder
	contexts   domain.ContextFactory
	clients    domain.ClientFactory
	cache      *ChartCache
	metrics    *metrics.Metrics
	group      singleflight.Group
}

func NewChartOfAccountsService(p ChartParams) domain.ChartOfAccountsService {
	return &ChartOfAccountsService{
		log:        p.Log.Named("accounting.chart"),
		clock:      p.Clock,
		accounting: p.Accounting,
		contexts:   p.Contexts,
		clients:    p.Clients,
		cache:      p.Cache,
		metrics:    p.Metrics,
	}
}

// GetChartOfAccounts returns the cached chart for the company, fetching the
// active accounts once on a miss. Hits return the same instance.
func (s *ChartOfAccountsService) GetChartOfAccounts(ctx context.Context, companyID snowflake.ID) (*domain.ChartOfAccounts, error) {
	if companyID == 0 {
		return nil, domain.ErrInvalidCompany
	}

	key := s.cache.key(companyID)
	if chart, ok := s.cache.entries.Get(key); ok {
		s.metrics.RecordChartCacheLookup(ctx, true)
		return chart, nil
	}
	s.metrics.RecordChartCacheLookup(ctx, false)

	gen := s.cache.generation(key)
	// The shared fetch outlives any single caller; each waiter still honours
	// its own cancellation.
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(s.cache.flightKey(key, gen), func() (any, error) {
		if chart, ok := s.cache.entries.Get(key); ok {
			return chart, nil
		}
		chart, err := s.fetch(fetchCtx, companyID)
		if err != nil {
			return nil, err
		}
		if !s.cache.setIfCurrent(key, gen, chart, s.accounting.Get().ChartCacheTTL) {
			ctxlogger.WithContext(fetchCtx, s.log).Debug("chart invalidated during fetch; not cached",
				zap.String("company_id", companyID.String()),
			)
		}
		return chart, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.ChartOfAccounts), nil
	}
}

func (s *ChartOfAccountsService) Invalidate(companyID snowflake.ID) {
	s.cache.Invalidate(companyID)
}

func (s *ChartOfAccountsService) fetch(ctx context.Context, companyID snowflake.ID) (*domain.ChartOfAccounts, error) {
	sc, err := s.contexts.CreateContext(ctx, companyID)
	if err != nil {
		return nil, err
	}
	client, err := s.clients.NewClient(*sc)
	if err != nil {
		return nil, err
	}
	accounts, err := client.QueryAccounts(ctx, true)
	if err != nil {
		return nil, err
	}

	ctxlogger.WithContext(ctx, s.log).Info("chart of accounts fetched",
		zap.String("company_id", companyID.String()),
		zap.Int("accounts", len(accounts)),
	)
	return &domain.ChartOfAccounts{
		CompanyID: companyID,
		Accounts:  accounts,
		FetchedAt: s.clock.Now(),
	}, nil
}
