package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/caskr/internal/accounting/domain"
	"github.com/smallbiznis/caskr/internal/accounting/mapper"
)

// resolveCustomer finds the remote customer by email, then by display name,
// and creates it when neither matches.
func resolveCustomer(ctx context.Context, client domain.Client, customer domain.Customer) (domain.Ref, error) {
	displayName := mapper.CustomerDisplayName(customer)

	if email := strings.TrimSpace(customer.Email); email != "" {
		found, err := client.FindCustomerByEmail(ctx, email)
		if err != nil {
			return domain.Ref{}, err
		}
		if found != nil {
			return domain.Ref{Value: found.ID, Name: found.DisplayName}, nil
		}
	}

	if displayName != "" {
		found, err := client.FindCustomerByDisplayName(ctx, displayName)
		if err != nil {
			return domain.Ref{}, err
		}
		if found != nil {
			return domain.Ref{Value: found.ID, Name: found.DisplayName}, nil
		}
	}

	created, err := client.CreateCustomer(ctx, mapper.MapCustomer(customer))
	if err != nil {
		return domain.Ref{}, err
	}
	return domain.Ref{Value: created.ID, Name: created.DisplayName}, nil
}
