package seed

import (
	"context"
	"testing"

	"github.com/smallbiznis/caskr/internal/accounting/accountingtest"
	"github.com/smallbiznis/caskr/internal/accounting/domain"
	"github.com/smallbiznis/caskr/internal/accounting/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureAccountMappingsIsRepeatable(t *testing.T) {
	db := accountingtest.NewDB(t)

	n, err := EnsureAccountMappings(db, 77, map[string]string{"COGS": "80", "WorkInProgress": "81"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = EnsureAccountMappings(db, 77, map[string]string{"COGS": "90"})
	require.NoError(t, err)

	rows, err := repository.ProvideMappings().ListByCompany(context.Background(), db, 77)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byType := map[domain.CaskrAccountType]string{}
	for _, row := range rows {
		byType[row.CaskrAccountType] = row.ExternalAccountID
	}
	assert.Equal(t, "90", byType[domain.AccountTypeCOGS])
	assert.Equal(t, "81", byType[domain.AccountTypeWIP])
}

func TestEnsureAccountMappingsRejectsUnknownType(t *testing.T) {
	db := accountingtest.NewDB(t)

	_, err := EnsureAccountMappings(db, 77, map[string]string{"Whisky": "1"})
	assert.ErrorIs(t, err, ErrUnknownAccountType)

	_, err = EnsureAccountMappings(db, 0, map[string]string{"COGS": "1"})
	assert.ErrorIs(t, err, domain.ErrInvalidCompany)
}
