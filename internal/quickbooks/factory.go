package quickbooks

import (
	"errors"
	"net/http"
	"strings"

	"github.com/smallbiznis/caskr/internal/accounting/domain"
	"github.com/smallbiznis/caskr/internal/config"
	"github.com/smallbiznis/caskr/internal/observability/metrics"
	"go.uber.org/fx"
)

const (
	SandboxBaseURL    = "https://sandbox-quickbooks.api.intuit.com"
	ProductionBaseURL = "https://quickbooks.api.intuit.com"
)

var ErrMissingAccessToken = errors.New("quickbooks_access_token_missing")

type Params struct {
	fx.In

	Accounting *config.AccountingConfigHolder `optional:"true"`
	Metrics    *metrics.Metrics               `optional:"true"`
}

// Factory builds clients bound to one company's realm and token.
type Factory struct {
	httpClient *http.Client
	metrics    *metrics.Metrics
	// baseURLOverride points every environment at one host, used in tests.
	baseURLOverride string
}

var _ domain.ClientFactory = (*Factory)(nil)

// NewFactory bounds each request by accounting.remoteTimeout, read once at
// startup.
func NewFactory(p Params) *Factory {
	return &Factory{
		httpClient: &http.Client{Timeout: p.Accounting.Get().RemoteTimeout},
		metrics:    p.Metrics,
	}
}

// NewFactoryWithBaseURL sends every request to baseURL.
func NewFactoryWithBaseURL(baseURL string, httpClient *http.Client) *Factory {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Factory{httpClient: httpClient, baseURLOverride: baseURL}
}

func (f *Factory) BaseURL(environment string) string {
	if f.baseURLOverride != "" {
		return f.baseURLOverride
	}
	if strings.EqualFold(strings.TrimSpace(environment), config.EnvironmentProduction) {
		return ProductionBaseURL
	}
	return SandboxBaseURL
}

func (f *Factory) NewClient(sc domain.ServiceContext) (domain.Client, error) {
	if strings.TrimSpace(sc.RealmID) == "" {
		return nil, ErrMissingRealm
	}
	if strings.TrimSpace(sc.AccessToken) == "" {
		return nil, ErrMissingAccessToken
	}
	baseURL := sc.BaseURL
	if baseURL == "" {
		baseURL = f.BaseURL(sc.Environment)
	}
	return &Client{
		baseURL:      baseURL,
		realmID:      sc.RealmID,
		accessToken:  sc.AccessToken,
		minorVersion: sc.MinorVersion,
		httpClient:   f.httpClient,
		metrics:      f.metrics,
		tracer:       newTracer(),
	}, nil
}

var Module = fx.Module("quickbooks",
	fx.Provide(
		NewFactory,
		func(f *Factory) domain.ClientFactory { return f },
	),
)
