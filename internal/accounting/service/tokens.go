package service

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/caskr/internal/accounting/domain"
	"github.com/smallbiznis/caskr/internal/dataprotect"
)

const (
	tokenPurpose = "caskr.accounting.integration.tokens.v1"
	statePurpose = "caskr.accounting.oauth.state.v1"

	stateTTL = 15 * time.Minute
)

// tokenPayload is serialized to JSON before it is protected.
type tokenPayload struct {
	Value     string     `json:"value"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type stateClaims struct {
	CompanyID snowflake.ID `json:"company_id"`
	Provider  string       `json:"provider"`
	Nonce     string       `json:"nonce"`
	IssuedAt  time.Time    `json:"issued_at"`
}

// tokenCodec protects integration tokens and OAuth state.
type tokenCodec struct {
	tokens dataprotect.Protector
	state  dataprotect.Protector
}

func newTokenCodec(provider *dataprotect.Provider) (*tokenCodec, error) {
	if provider == nil {
		return nil, dataprotect.ErrSecretMissing
	}
	tokens, err := provider.CreateProtector(tokenPurpose)
	if err != nil {
		return nil, err
	}
	state, err := provider.CreateProtector(statePurpose)
	if err != nil {
		return nil, err
	}
	return &tokenCodec{tokens: tokens, state: state}, nil
}

func (c *tokenCodec) seal(value string, expiresAt *time.Time) (string, error) {
	if value == "" {
		return "", domain.ErrTokenMissing
	}
	return dataprotect.ProtectJSON(c.tokens, tokenPayload{Value: value, ExpiresAt: expiresAt})
}

func (c *tokenCodec) open(protected string) (tokenPayload, error) {
	var payload tokenPayload
	if err := dataprotect.UnprotectJSON(c.tokens, protected, &payload); err != nil {
		return tokenPayload{}, fmt.Errorf("unprotect token: %w", err)
	}
	return payload, nil
}

func (c *tokenCodec) sealState(claims stateClaims) (string, error) {
	return dataprotect.ProtectJSON(c.state, claims)
}

func (c *tokenCodec) openState(state string) (stateClaims, error) {
	var claims stateClaims
	err := dataprotect.UnprotectJSON(c.state, state, &claims)
	return claims, err
}
