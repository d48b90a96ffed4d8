package seed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/caskr/internal/accounting/domain"
	"github.com/smallbiznis/caskr/internal/accounting/repository"
	"gorm.io/gorm"
)

var ErrUnknownAccountType = errors.New("unknown_account_type")

// EnsureAccountMappings upserts the chart-of-accounts mappings of one company
// from account type to external account id. It returns how many were written.
func EnsureAccountMappings(db *gorm.DB, companyID int64, mappings map[string]string) (int, error) {
	if db == nil {
		return 0, errors.New("seed database handle is required")
	}
	if companyID <= 0 {
		return 0, domain.ErrInvalidCompany
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return 0, err
	}

	types := make([]string, 0, len(mappings))
	for accountType := range mappings {
		if !domain.CaskrAccountType(accountType).Valid() {
			return 0, fmt.Errorf("%w: %s", ErrUnknownAccountType, accountType)
		}
		types = append(types, accountType)
	}
	sort.Strings(types)

	repo := repository.ProvideMappings()
	ctx := context.Background()
	now := time.Now().UTC()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, accountType := range types {
			externalID := strings.TrimSpace(mappings[accountType])
			if err := repo.Upsert(ctx, tx, &domain.ChartOfAccountsMapping{
				ID:                  node.Generate(),
				CompanyID:           snowflake.ID(companyID),
				CaskrAccountType:    domain.CaskrAccountType(accountType),
				ExternalAccountID:   externalID,
				ExternalAccountName: accountType,
				CreatedAt:           now,
				UpdatedAt:           now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(types), nil
}
