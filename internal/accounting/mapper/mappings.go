// Package mapper translates local billing and production entities into the
// provider's wire shapes. Every function here is pure.
package mapper

import (
	"fmt"

	"github.com/smallbiznis/caskr/internal/accounting/domain"
)

// AccountMappings is a company's chart-of-accounts mapping table indexed by
// internal account type.
type AccountMappings struct {
	byType   map[domain.CaskrAccountType]domain.ChartOfAccountsMapping
	fallback domain.CaskrAccountType
}

func NewAccountMappings(mappings []domain.ChartOfAccountsMapping, fallback domain.CaskrAccountType) AccountMappings {
	byType := make(map[domain.CaskrAccountType]domain.ChartOfAccountsMapping, len(mappings))
	for _, m := range mappings {
		if m.ExternalAccountID == "" {
			continue
		}
		byType[m.CaskrAccountType] = m
	}
	return AccountMappings{byType: byType, fallback: fallback}
}

// Resolve returns the mapping for t, or the fallback mapping when t has none.
func (m AccountMappings) Resolve(t domain.CaskrAccountType) (domain.Ref, error) {
	if ref, ok := m.lookup(t); ok {
		return ref, nil
	}
	if m.fallback != "" {
		if ref, ok := m.lookup(m.fallback); ok {
			return ref, nil
		}
	}
	return domain.Ref{}, fmt.Errorf("%w: %s", domain.ErrMappingNotFound, t)
}

// ResolveExact never falls back.
func (m AccountMappings) ResolveExact(t domain.CaskrAccountType) (domain.Ref, error) {
	if ref, ok := m.lookup(t); ok {
		return ref, nil
	}
	return domain.Ref{}, fmt.Errorf("%w: %s", domain.ErrMappingNotFound, t)
}

func (m AccountMappings) Len() int {
	return len(m.byType)
}

func (m AccountMappings) lookup(t domain.CaskrAccountType) (domain.Ref, bool) {
	mapping, ok := m.byType[t]
	if !ok {
		return domain.Ref{}, false
	}
	return domain.Ref{Value: mapping.ExternalAccountID, Name: mapping.ExternalAccountName}, true
}
