package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/caskr/internal/accounting/domain"
	"github.com/smallbiznis/caskr/internal/accounting/oauth"
	"github.com/smallbiznis/caskr/internal/clock"
	"github.com/smallbiznis/caskr/internal/dataprotect"
	"github.com/smallbiznis/caskr/internal/observability/metrics"
	"github.com/smallbiznis/caskr/pkg/log/ctxlogger"
	"github.com/smallbiznis/caskr/pkg/masking"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AuthParams struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Registry     *oauth.Registry
	Protection   *dataprotect.Provider
	Integrations domain.IntegrationRepository
	ChartCache   *ChartCache
	Metrics      *metrics.Metrics `optional:"true"`
}

type AuthService struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	registry     *oauth.Registry
	codec        *tokenCodec
	integrations domain.IntegrationRepository
	chartCache   *ChartCache
	metrics      *metrics.Metrics
}

func NewAuthService(p AuthParams) (domain.AuthService, error) {
	codec, err := newTokenCodec(p.Protection)
	if err != nil {
		return nil, err
	}
	return &AuthService{
		db:           p.DB,
		log:          p.Log.Named("accounting.auth"),
		genID:        p.GenID,
		clock:        p.Clock,
		registry:     p.Registry,
		codec:        codec,
		integrations: p.Integrations,
		chartCache:   p.ChartCache,
		metrics:      p.Metrics,
	}, nil
}

func (s *AuthService) AuthorizationURL(ctx context.Context, provider string, companyID snowflake.ID) (*domain.AuthorizationRedirect, error) {
	provider = normalizeProvider(provider)
	if companyID == 0 {
		return nil, domain.ErrInvalidCompany
	}
	client, err := s.registry.Client(provider)
	if err != nil {
		return nil, err
	}

	state, err := s.codec.sealState(stateClaims{
		CompanyID: companyID,
		Provider:  provider,
		Nonce:     uuid.NewString(),
		IssuedAt:  s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	return &domain.AuthorizationRedirect{
		Provider: provider,
		URL:      client.AuthCodeURL(state),
		State:    state,
	}, nil
}

func (s *AuthService) ParseState(ctx context.Context, provider, state string) (snowflake.ID, error) {
	provider = normalizeProvider(provider)
	state = strings.TrimSpace(state)
	if state == "" {
		return 0, domain.ErrInvalidState
	}

	claims, err := s.codec.openState(state)
	if err != nil {
		return 0, domain.ErrInvalidState
	}
	if claims.Provider != provider || claims.CompanyID == 0 {
		return 0, domain.ErrInvalidState
	}
	if s.clock.Now().Sub(claims.IssuedAt) > stateTTL {
		return 0, domain.ErrInvalidState
	}
	return claims.CompanyID, nil
}

func (s *AuthService) HandleCallback(ctx context.Context, provider, code, realmID string, companyID snowflake.ID) (*domain.TokenResponse, error) {
	provider = normalizeProvider(provider)
	code = strings.TrimSpace(code)
	realmID = strings.TrimSpace(realmID)
	if companyID == 0 {
		return nil, domain.ErrInvalidCompany
	}
	if code == "" {
		return nil, domain.ErrInvalidCode
	}
	if provider == domain.ProviderQuickBooks && realmID == "" {
		return nil, domain.ErrMissingRealmID
	}

	client, err := s.registry.Client(provider)
	if err != nil {
		return nil, err
	}
	tok, err := client.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTokenExchangeFailed, err)
	}

	accessEnc, err := s.codec.seal(tok.AccessToken, &tok.Expiry)
	if err != nil {
		return nil, err
	}
	refreshEnc, err := s.codec.seal(tok.RefreshToken, tok.RefreshExpiry)
	if err != nil {
		return nil, err
	}

	cfg, _ := s.registry.Config(provider)
	scopes, err := datatypes.NewJSONType(cfg.Scopes).MarshalJSON()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	integration := &domain.AccountingIntegration{
		ID:                    s.genID.Generate(),
		CompanyID:             companyID,
		Provider:              provider,
		RealmID:               realmID,
		InstanceURL:           tok.InstanceURL,
		Environment:           cfg.Environment,
		AccessTokenEncrypted:  accessEnc,
		RefreshTokenEncrypted: refreshEnc,
		TokenExpiresAt:        tok.Expiry,
		RefreshExpiresAt:      tok.RefreshExpiry,
		Scopes:                datatypes.JSON(scopes),
		IsActive:              true,
		ConnectedAt:           now,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.integrations.Upsert(ctx, s.db, integration); err != nil {
		return nil, err
	}
	s.chartCache.Invalidate(companyID)

	ctxlogger.WithContext(ctx, s.log).Info("accounting integration connected",
		zap.String("provider", provider),
		zap.String("company_id", companyID.String()),
		zap.String("realm_id", realmID),
		masking.Field("access_token", tok.AccessToken),
		zap.Time("expires_at", tok.Expiry),
	)

	return tokenResponse(provider, realmID, tok), nil
}

func (s *AuthService) RefreshToken(ctx context.Context, provider string, companyID snowflake.ID) (*domain.TokenResponse, error) {
	provider = normalizeProvider(provider)
	if companyID == 0 {
		return nil, domain.ErrInvalidCompany
	}

	integration, err := s.integrations.FindActive(ctx, s.db, companyID, provider)
	if err != nil {
		return nil, err
	}
	if integration == nil {
		return nil, domain.ErrIntegrationNotFound
	}

	stored, err := s.codec.open(integration.RefreshTokenEncrypted)
	if err != nil {
		return nil, err
	}
	if stored.Value == "" {
		return nil, domain.ErrRefreshTokenMissing
	}

	client, err := s.registry.Client(provider)
	if err != nil {
		return nil, err
	}
	tok, err := client.Refresh(ctx, stored.Value)
	if err != nil {
		s.metrics.RecordTokenRefresh(ctx, provider, "failure")
		ctxlogger.WithContext(ctx, s.log).Warn("token refresh failed",
			zap.String("provider", provider),
			zap.String("company_id", companyID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", domain.ErrTokenRefreshFailed, err)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = stored.Value
		if tok.RefreshExpiry == nil {
			tok.RefreshExpiry = stored.ExpiresAt
		}
	}

	accessEnc, err := s.codec.seal(tok.AccessToken, &tok.Expiry)
	if err != nil {
		return nil, err
	}
	refreshEnc, err := s.codec.seal(tok.RefreshToken, tok.RefreshExpiry)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	integration.AccessTokenEncrypted = accessEnc
	integration.RefreshTokenEncrypted = refreshEnc
	integration.TokenExpiresAt = tok.Expiry
	integration.RefreshExpiresAt = tok.RefreshExpiry
	if tok.InstanceURL != "" {
		integration.InstanceURL = tok.InstanceURL
	}
	integration.LastRefreshedAt = &now
	integration.UpdatedAt = now
	if err := s.integrations.UpdateTokens(ctx, s.db, integration); err != nil {
		return nil, err
	}

	s.metrics.RecordTokenRefresh(ctx, provider, "success")
	ctxlogger.WithContext(ctx, s.log).Info("token refreshed",
		zap.String("provider", provider),
		zap.String("company_id", companyID.String()),
		zap.Time("expires_at", tok.Expiry),
	)

	if tok.InstanceURL == "" {
		tok.InstanceURL = integration.InstanceURL
	}
	return tokenResponse(provider, integration.RealmID, tok), nil
}

// Disconnect revokes the refresh token at the provider when possible and
// retires the integration. Revocation failures are logged, not returned.
func (s *AuthService) Disconnect(ctx context.Context, provider string, companyID snowflake.ID) error {
	provider = normalizeProvider(provider)
	if companyID == 0 {
		return domain.ErrInvalidCompany
	}

	integration, err := s.integrations.FindActive(ctx, s.db, companyID, provider)
	if err != nil {
		return err
	}
	if integration == nil {
		return domain.ErrIntegrationNotFound
	}

	log := ctxlogger.WithContext(ctx, s.log).With(
		zap.String("provider", provider),
		zap.String("company_id", companyID.String()),
	)
	if err := s.revoke(ctx, provider, integration); err != nil {
		log.Warn("token revoke failed", zap.Error(err))
	}

	changed, err := s.integrations.Deactivate(ctx, s.db, companyID, provider, s.clock.Now())
	if err != nil {
		return err
	}
	if !changed {
		return domain.ErrIntegrationNotFound
	}
	s.chartCache.Invalidate(companyID)

	log.Info("accounting integration disconnected")
	return nil
}

func (s *AuthService) revoke(ctx context.Context, provider string, integration *domain.AccountingIntegration) error {
	stored, err := s.codec.open(integration.RefreshTokenEncrypted)
	if err != nil {
		return err
	}
	client, err := s.registry.Client(provider)
	if err != nil {
		return err
	}
	err = client.Revoke(ctx, stored.Value)
	if errors.Is(err, oauth.ErrRevokeNotSupported) {
		return nil
	}
	return err
}

func (s *AuthService) Status(ctx context.Context, provider string, companyID snowflake.ID) (*domain.IntegrationStatus, error) {
	provider = normalizeProvider(provider)
	if companyID == 0 {
		return nil, domain.ErrInvalidCompany
	}
	if !s.registry.ProviderExists(provider) {
		return nil, domain.ErrInvalidProvider
	}

	integration, err := s.integrations.Find(ctx, s.db, companyID, provider)
	if err != nil {
		return nil, err
	}
	status := &domain.IntegrationStatus{Provider: provider}
	if integration == nil {
		return status, nil
	}

	status.Connected = integration.IsActive
	status.RealmID = integration.RealmID
	status.InstanceURL = integration.InstanceURL
	status.Environment = integration.Environment
	status.ConnectedAt = &integration.ConnectedAt
	status.LastRefreshedAt = integration.LastRefreshedAt
	if integration.IsActive {
		status.TokenExpiresAt = &integration.TokenExpiresAt
	}
	return status, nil
}

func tokenResponse(provider, realmID string, tok *oauth.Token) *domain.TokenResponse {
	return &domain.TokenResponse{
		Provider:         provider,
		AccessToken:      tok.AccessToken,
		RefreshToken:     tok.RefreshToken,
		TokenType:        tok.TokenType,
		ExpiresAt:        tok.Expiry,
		RefreshExpiresAt: tok.RefreshExpiry,
		RealmID:          realmID,
		InstanceURL:      tok.InstanceURL,
	}
}

func normalizeProvider(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return domain.ProviderQuickBooks
	}
	return provider
}

// expiresWithin reports whether t is at or before now+skew.
func expiresWithin(t, now time.Time, skew time.Duration) bool {
	return !t.After(now.Add(skew))
}
