package accounting

import (
	"github.com/smallbiznis/caskr/internal/accounting/oauth"
	"github.com/smallbiznis/caskr/internal/accounting/repository"
	"github.com/smallbiznis/caskr/internal/accounting/service"
	"github.com/smallbiznis/caskr/internal/dataprotect"
	"github.com/smallbiznis/caskr/internal/quickbooks"
	"github.com/smallbiznis/caskr/internal/synclock"
	"go.uber.org/fx"
)

var Module = fx.Module("accounting.service",
	dataprotect.Module,
	synclock.Module,
	quickbooks.Module,
	fx.Provide(
		repository.ProvideIntegrations,
		repository.ProvideMappings,
		repository.ProvideSyncLogs,
		repository.ProvideBilling,
	),
	fx.Provide(oauth.NewRegistryFromConfig),
	fx.Provide(service.NewChartCache),
	fx.Provide(service.NewAuthService),
	fx.Provide(service.NewContextFactory),
	fx.Provide(service.NewInvoiceSyncService),
	fx.Provide(service.NewCostTrackingSyncService),
	fx.Provide(service.NewChartOfAccountsService),
	fx.Provide(service.NewSyncLogService),
)
