package service

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/caskr/internal/accounting/accountingtest"
	"github.com/smallbiznis/caskr/internal/accounting/domain"
	"github.com/smallbiznis/caskr/internal/accounting/oauth"
	"github.com/smallbiznis/caskr/internal/accounting/repository"
	"github.com/smallbiznis/caskr/internal/clock"
	"github.com/smallbiznis/caskr/internal/config"
	"github.com/smallbiznis/caskr/internal/dataprotect"
	"github.com/smallbiznis/caskr/internal/orgcontext"
	"github.com/smallbiznis/caskr/internal/synclock"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testCompanyID snowflake.ID = 4242

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type mockTokenClient struct {
	mock.Mock
}

func (m *mockTokenClient) AuthCodeURL(state string) string {
	return "https://auth.test/authorize?state=" + url.QueryEscape(state)
}

func (m *mockTokenClient) Exchange(ctx context.Context, code string) (*oauth.Token, error) {
	args := m.Called(code)
	tok, _ := args.Get(0).(*oauth.Token)
	return tok, args.Error(1)
}

func (m *mockTokenClient) Refresh(ctx context.Context, refreshToken string) (*oauth.Token, error) {
	args := m.Called(refreshToken)
	tok, _ := args.Get(0).(*oauth.Token)
	return tok, args.Error(1)
}

func (m *mockTokenClient) Revoke(ctx context.Context, token string) error {
	return m.Called(token).Error(0)
}

type mockFactory struct {
	client *mockTokenClient
}

func (f mockFactory) Provider() string { return domain.ProviderQuickBooks }

func (f mockFactory) New(cfg oauth.ProviderConfig) (oauth.TokenClient, error) {
	return f.client, nil
}

type harness struct {
	db      *gorm.DB
	clock   *clock.FakeClock
	genID   *snowflake.Node
	tokens  *mockTokenClient
	remote  *accountingtest.FakeClient
	clients *accountingtest.FakeClientFactory
	cache   *ChartCache
	locker  *synclock.Locker

	integrations domain.IntegrationRepository
	mappings     domain.MappingRepository
	syncLogs     domain.SyncLogRepository

	auth     domain.AuthService
	contexts domain.ContextFactory
	invoices domain.InvoiceSyncService
	costs    domain.CostTrackingSyncService
	charts   domain.ChartOfAccountsService
	logs     domain.SyncLogService
}

type harnessOptions struct {
	locker   *synclock.Locker
	syncLogs domain.SyncLogRepository
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return buildHarness(t, harnessOptions{})
}

// newLockedHarness backs the sync and refresh locks with an in-memory redis.
// Locks are refreshed every 10ms so tests can fast-forward redis time.
func newLockedHarness(t *testing.T, opts harnessOptions) (*harness, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	opts.locker = synclock.NewLocker(client).WithRefreshInterval(10 * time.Millisecond)
	h := buildHarness(t, opts)
	return h, mr
}

func buildHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()

	db := accountingtest.NewDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	protection, err := dataprotect.NewProvider("test-token-secret")
	require.NoError(t, err)

	h := &harness{
		db:           db,
		clock:        clock.NewFakeClock(testNow),
		genID:        node,
		tokens:       &mockTokenClient{},
		remote:       &accountingtest.FakeClient{},
		integrations: repository.ProvideIntegrations(),
		mappings:     repository.ProvideMappings(),
		syncLogs:     repository.ProvideSyncLogs(),
		locker:       opts.locker,
	}
	if opts.syncLogs != nil {
		h.syncLogs = opts.syncLogs
	}
	h.clients = &accountingtest.FakeClientFactory{Client: h.remote}
	h.cache = NewChartCache(h.clock)

	registry := oauth.NewRegistry([]oauth.ProviderConfig{{
		Provider:     domain.ProviderQuickBooks,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://caskr.test/api/accounting/integrations/quickbooks/callback",
		Environment:  config.EnvironmentSandbox,
		Scopes:       []string{"com.intuit.quickbooks.accounting"},
	}}, mockFactory{client: h.tokens})

	log := zap.NewNop()
	accounting := config.NewStaticAccountingConfigHolder(config.DefaultAccountingConfig())

	h.auth, err = NewAuthService(AuthParams{
		DB:           db,
		Log:          log,
		GenID:        node,
		Clock:        h.clock,
		Registry:     registry,
		Protection:   protection,
		Integrations: h.integrations,
		ChartCache:   h.cache,
	})
	require.NoError(t, err)

	h.contexts, err = NewContextFactory(ContextFactoryParams{
		DB:           db,
		Log:          log,
		Clock:        h.clock,
		AppConfig:    config.Config{QuickBooks: config.OAuthProviderConfig{MinorVersion: "75"}},
		Accounting:   accounting,
		Auth:         h.auth,
		Integrations: h.integrations,
		Clients:      h.clients,
		Protection:   protection,
		Locker:       h.locker,
	})
	require.NoError(t, err)

	syncParams := SyncParams{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      h.clock,
		Accounting: accounting,
		Contexts:   h.contexts,
		Clients:    h.clients,
		Mappings:   h.mappings,
		SyncLogs:   h.syncLogs,
		Billing:    repository.ProvideBilling(),
		Locker:     h.locker,
	}
	h.invoices = NewInvoiceSyncService(syncParams)
	h.costs = NewCostTrackingSyncService(syncParams)
	h.charts = NewChartOfAccountsService(ChartParams{
		Log:        log,
		Clock:      h.clock,
		Accounting: accounting,
		Contexts:   h.contexts,
		Clients:    h.clients,
		Cache:      h.cache,
	})
	h.logs = NewSyncLogService(SyncLogParams{DB: db, SyncLogs: h.syncLogs})
	return h
}

func (h *harness) ctx() context.Context {
	return orgcontext.WithCompanyID(context.Background(), testCompanyID)
}

// connect runs a successful QuickBooks callback for the test company.
func (h *harness) connect(t *testing.T, expiresIn time.Duration) {
	t.Helper()

	h.tokens.On("Exchange", "auth-code").Return(&oauth.Token{
		AccessToken:  "access-plain-1",
		RefreshToken: "refresh-plain-1",
		TokenType:    "bearer",
		Expiry:       testNow.Add(expiresIn),
	}, nil).Once()

	_, err := h.auth.HandleCallback(context.Background(), domain.ProviderQuickBooks, "auth-code", "realm-1", testCompanyID)
	require.NoError(t, err)
}

func (h *harness) mapAccount(t *testing.T, accountType domain.CaskrAccountType, externalID string) {
	t.Helper()
	require.NoError(t, h.mappings.Upsert(context.Background(), h.db, &domain.ChartOfAccountsMapping{
		ID:                  h.genID.Generate(),
		CompanyID:           testCompanyID,
		CaskrAccountType:    accountType,
		ExternalAccountID:   externalID,
		ExternalAccountName: string(accountType),
		CreatedAt:           testNow,
		UpdatedAt:           testNow,
	}))
}
