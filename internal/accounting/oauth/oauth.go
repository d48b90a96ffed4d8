// Package oauth exchanges and refreshes OAuth2 tokens with accounting and CRM
// providers.
package oauth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/caskr/internal/accounting/domain"
)

var ErrRevokeNotSupported = errors.New("revoke_not_supported")

// ProviderConfig is the OAuth client registration for one provider. The
// endpoint overrides are empty in production.
type ProviderConfig struct {
	Provider     string   `validate:"required,oneof=quickbooks salesforce"`
	ClientID     string   `validate:"required"`
	ClientSecret string   `validate:"required"`
	RedirectURL  string   `validate:"required,url"`
	Environment  string   `validate:"required,oneof=sandbox production"`
	Scopes       []string `validate:"min=1,dive,required"`

	AuthURL   string `validate:"omitempty,url"`
	TokenURL  string `validate:"omitempty,url"`
	RevokeURL string `validate:"omitempty,url"`
}

var validate = validator.New()

func (c ProviderConfig) Validate() error {
	return validate.Struct(c)
}

// Configured reports whether credentials were supplied at all.
func (c ProviderConfig) Configured() bool {
	return strings.TrimSpace(c.ClientID) != "" && strings.TrimSpace(c.ClientSecret) != ""
}

type Token struct {
	AccessToken   string
	RefreshToken  string
	TokenType     string
	Expiry        time.Time
	RefreshExpiry *time.Time
	InstanceURL   string
}

type TokenClient interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Token, error)
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
	Revoke(ctx context.Context, token string) error
}

type Factory interface {
	Provider() string
	New(cfg ProviderConfig) (TokenClient, error)
}

// Registry resolves a token client for a provider from its registration.
type Registry struct {
	factories map[string]Factory
	configs   map[string]ProviderConfig
}

func NewRegistry(configs []ProviderConfig, factories ...Factory) *Registry {
	registry := &Registry{
		factories: map[string]Factory{},
		configs:   map[string]ProviderConfig{},
	}
	for _, factory := range factories {
		if factory == nil {
			continue
		}
		provider := normalizeProvider(factory.Provider())
		if provider == "" {
			continue
		}
		registry.factories[provider] = factory
	}
	for _, cfg := range configs {
		provider := normalizeProvider(cfg.Provider)
		if provider == "" {
			continue
		}
		cfg.Provider = provider
		registry.configs[provider] = cfg
	}
	return registry
}

func (r *Registry) ProviderExists(provider string) bool {
	if r == nil {
		return false
	}
	_, ok := r.factories[normalizeProvider(provider)]
	return ok
}

func (r *Registry) Config(provider string) (ProviderConfig, bool) {
	if r == nil {
		return ProviderConfig{}, false
	}
	cfg, ok := r.configs[normalizeProvider(provider)]
	return cfg, ok
}

func (r *Registry) Client(provider string) (TokenClient, error) {
	if r == nil {
		return nil, domain.ErrInvalidProvider
	}
	provider = normalizeProvider(provider)
	factory, ok := r.factories[provider]
	if !ok {
		return nil, domain.ErrInvalidProvider
	}
	cfg, ok := r.configs[provider]
	if !ok || !cfg.Configured() {
		return nil, domain.ErrProviderNotConfigured
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Join(domain.ErrProviderNotConfigured, err)
	}
	return factory.New(cfg)
}

func normalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
