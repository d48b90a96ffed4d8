package oauth

import (
	"time"

	"github.com/smallbiznis/caskr/internal/accounting/domain"
	"golang.org/x/oauth2"
)

const (
	intuitAuthURL   = "https://appcenter.intuit.com/connect/oauth2"
	intuitTokenURL  = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"
	intuitRevokeURL = "https://developer.api.intuit.com/v2/oauth2/tokens/revoke"

	salesforceLoginHost   = "https://login.salesforce.com"
	salesforceSandboxHost = "https://test.salesforce.com"
)

type quickBooksFactory struct{}

func NewQuickBooksFactory() Factory {
	return quickBooksFactory{}
}

func (quickBooksFactory) Provider() string { return domain.ProviderQuickBooks }

func (quickBooksFactory) New(cfg ProviderConfig) (TokenClient, error) {
	// Intuit uses the same OAuth endpoints for sandbox and production companies.
	return &oauth2Client{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   orDefault(cfg.AuthURL, intuitAuthURL),
				TokenURL:  orDefault(cfg.TokenURL, intuitTokenURL),
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		revokeURL:   orDefault(cfg.RevokeURL, intuitRevokeURL),
		revokeStyle: revokeJSONBasicAuth,
		defaultTTL:  time.Hour,
		httpClient:  newHTTPClient(),
	}, nil
}

type salesforceFactory struct{}

func NewSalesforceFactory() Factory {
	return salesforceFactory{}
}

func (salesforceFactory) Provider() string { return domain.ProviderSalesforce }

func (salesforceFactory) New(cfg ProviderConfig) (TokenClient, error) {
	host := salesforceLoginHost
	if cfg.Environment == "sandbox" {
		host = salesforceSandboxHost
	}
	return &oauth2Client{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   orDefault(cfg.AuthURL, host+"/services/oauth2/authorize"),
				TokenURL:  orDefault(cfg.TokenURL, host+"/services/oauth2/token"),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		revokeURL:   orDefault(cfg.RevokeURL, host+"/services/oauth2/revoke"),
		revokeStyle: revokeForm,
		// Salesforce does not report expires_in; sessions default to two hours.
		defaultTTL: 2 * time.Hour,
		httpClient: newHTTPClient(),
	}, nil
}

func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
