package oauth

import (
	"github.com/smallbiznis/caskr/internal/accounting/domain"
	"github.com/smallbiznis/caskr/internal/config"
)

// NewRegistryFromConfig registers QuickBooks and Salesforce with the
// credentials from the environment.
func NewRegistryFromConfig(cfg config.Config) *Registry {
	return NewRegistry(
		[]ProviderConfig{
			fromAppConfig(domain.ProviderQuickBooks, cfg.QuickBooks),
			fromAppConfig(domain.ProviderSalesforce, cfg.Salesforce),
		},
		NewQuickBooksFactory(),
		NewSalesforceFactory(),
	)
}

func fromAppConfig(provider string, c config.OAuthProviderConfig) ProviderConfig {
	return ProviderConfig{
		Provider:     provider,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Environment:  c.Environment,
		Scopes:       c.Scopes,
	}
}
