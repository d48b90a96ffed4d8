package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/caskr/internal/accounting/domain"
	"github.com/smallbiznis/caskr/internal/clock"
	"github.com/smallbiznis/caskr/internal/config"
	"github.com/smallbiznis/caskr/internal/dataprotect"
	"github.com/smallbiznis/caskr/internal/synclock"
	"github.com/smallbiznis/caskr/pkg/log/ctxlogger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ContextFactoryParams struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	AppConfig    config.Config
	Accounting   *config.AccountingConfigHolder
	Auth         domain.AuthService
	Integrations domain.IntegrationRepository
	Clients      domain.ClientFactory
	Protection   *dataprotect.Provider
	Locker       *synclock.Locker `optional:"true"`
}

type ContextFactory struct {
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	minorVersion string
	accounting   *config.AccountingConfigHolder
	auth         domain.AuthService
	integrations domain.IntegrationRepository
	clients      domain.ClientFactory
	codec        *tokenCodec
	locker       *synclock.Locker
}

func NewContextFactory(p ContextFactoryParams) (domain.ContextFactory, error) {
	codec, err := newTokenCodec(p.Protection)
	if err != nil {
		return nil, err
	}
	return &ContextFactory{
		db:           p.DB,
		log:          p.Log.Named("accounting.context"),
		clock:        p.Clock,
		minorVersion: p.AppConfig.QuickBooks.MinorVersion,
		accounting:   p.Accounting,
		auth:         p.Auth,
		integrations: p.Integrations,
		clients:      p.Clients,
		codec:        codec,
		locker:       p.Locker,
	}, nil
}

// CreateContext returns a ready-to-use QuickBooks context for the company,
// refreshing the access token first when it is within the refresh skew.
func (f *ContextFactory) CreateContext(ctx context.Context, companyID snowflake.ID) (*domain.ServiceContext, error) {
	if companyID == 0 {
		return nil, domain.ErrInvalidCompany
	}

	integration, err := f.integrations.FindActive(ctx, f.db, companyID, domain.ProviderQuickBooks)
	if err != nil {
		return nil, err
	}
	if integration == nil {
		return nil, domain.ErrIntegrationNotFound
	}

	sc := &domain.ServiceContext{
		CompanyID:    companyID,
		Provider:     integration.Provider,
		RealmID:      integration.RealmID,
		InstanceURL:  integration.InstanceURL,
		Environment:  integration.Environment,
		BaseURL:      f.clients.BaseURL(integration.Environment),
		MinorVersion: f.minorVersion,
	}

	if expiresWithin(integration.TokenExpiresAt, f.clock.Now(), f.accounting.Get().TokenRefreshSkew) {
		return f.refresh(ctx, sc, integration)
	}
	return f.useStored(sc, integration)
}

// refresh rotates the access token under a per-company lock when Redis is
// configured. A caller that waited on the lock re-reads the integration and
// uses the token the holder just stored.
func (f *ContextFactory) refresh(ctx context.Context, sc *domain.ServiceContext, integration *domain.AccountingIntegration) (*domain.ServiceContext, error) {
	cfg := f.accounting.Get()
	lockCtx, release, err := f.locker.HoldWait(ctx, "refresh:"+sc.CompanyID.String(), cfg.SyncLockTTL, cfg.RemoteTimeout)
	if err != nil {
		if errors.Is(err, synclock.ErrNotObtained) {
			return nil, domain.ErrSyncInProgress
		}
		return nil, err
	}
	defer release()

	if f.locker.Enabled() {
		current, err := f.integrations.FindActive(lockCtx, f.db, sc.CompanyID, domain.ProviderQuickBooks)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, domain.ErrIntegrationNotFound
		}
		if !expiresWithin(current.TokenExpiresAt, f.clock.Now(), cfg.TokenRefreshSkew) {
			return f.useStored(sc, current)
		}
	}

	ctxlogger.WithContext(ctx, f.log).Debug("access token near expiry, refreshing",
		zap.String("company_id", sc.CompanyID.String()),
		zap.Time("expires_at", integration.TokenExpiresAt),
	)
	tok, err := f.auth.RefreshToken(lockCtx, domain.ProviderQuickBooks, sc.CompanyID)
	if err != nil {
		return nil, err
	}
	sc.AccessToken = tok.AccessToken
	sc.ExpiresAt = tok.ExpiresAt
	return sc, nil
}

func (f *ContextFactory) useStored(sc *domain.ServiceContext, integration *domain.AccountingIntegration) (*domain.ServiceContext, error) {
	access, err := f.codec.open(integration.AccessTokenEncrypted)
	if err != nil {
		return nil, err
	}
	sc.AccessToken = access.Value
	sc.ExpiresAt = integration.TokenExpiresAt
	return sc, nil
}
