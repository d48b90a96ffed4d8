package mapper

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/caskr/internal/accounting/domain"
)

// MapInvoice builds the remote invoice for a local one. Each local line
// becomes one remote line whose ItemRef is the mapping of its account type.
func MapInvoice(invoice domain.Invoice, mappings AccountMappings, customerRef domain.Ref) (domain.RemoteInvoice, error) {
	if len(invoice.LineItems) == 0 {
		return domain.RemoteInvoice{}, domain.ErrInvoiceHasNoLines
	}

	lines := make([]domain.RemoteInvoiceLine, 0, len(invoice.LineItems))
	lineTotal := decimal.Zero
	for i, item := range invoice.LineItems {
		ref, err := mappings.Resolve(item.AccountType)
		if err != nil {
			return domain.RemoteInvoice{}, err
		}

		quantity := item.Quantity
		if quantity.IsZero() {
			quantity = decimal.NewFromInt(1)
		}
		amount := item.Amount
		if amount.IsZero() {
			amount = quantity.Mul(item.UnitPrice)
		}
		amount = amount.Round(2)
		lineTotal = lineTotal.Add(amount)

		lines = append(lines, domain.RemoteInvoiceLine{
			LineNum:     i + 1,
			Description: strings.TrimSpace(item.Description),
			Amount:      amount,
			Quantity:    quantity,
			UnitPrice:   item.UnitPrice,
			ItemRef:     ref,
		})
	}

	totalTax := invoice.TotalTax().Round(2)
	total := invoice.TotalAmount
	if total.IsZero() {
		total = lineTotal.Add(totalTax)
	}

	remote := domain.RemoteInvoice{
		DocNumber:   invoice.InvoiceNumber,
		TxnDate:     invoice.InvoiceDate,
		DueDate:     invoice.DueDate,
		CustomerRef: customerRef,
		PrivateNote: strings.TrimSpace(invoice.Notes),
		Lines:       lines,
		TotalTax:    totalTax,
		TotalAmount: total.Round(2),
	}
	if code := strings.ToUpper(strings.TrimSpace(invoice.CurrencyCode)); code != "" {
		remote.CurrencyRef = &domain.Ref{Value: code}
	}
	if invoice.Customer != nil {
		remote.BillEmail = strings.TrimSpace(invoice.Customer.Email)
	}
	return remote, nil
}

// CustomerDisplayName picks the name the provider will show for a customer:
// company name, then full name, then email.
func CustomerDisplayName(customer domain.Customer) string {
	if name := strings.TrimSpace(customer.CompanyName); name != "" {
		return name
	}
	if name := customer.FullName(); name != "" {
		return name
	}
	return strings.TrimSpace(customer.Email)
}

func MapCustomer(customer domain.Customer) domain.RemoteCustomer {
	remote := domain.RemoteCustomer{
		DisplayName: CustomerDisplayName(customer),
		CompanyName: strings.TrimSpace(customer.CompanyName),
		GivenName:   strings.TrimSpace(customer.FirstName),
		FamilyName:  strings.TrimSpace(customer.LastName),
		Email:       strings.TrimSpace(customer.Email),
		Phone:       strings.TrimSpace(customer.Phone),
	}
	if customer.AddressLine != "" || customer.City != "" || customer.PostalCode != "" {
		remote.BillAddr = &domain.RemoteAddress{
			Line1:      customer.AddressLine,
			City:       customer.City,
			Region:     customer.Region,
			PostalCode: customer.PostalCode,
			Country:    customer.Country,
		}
	}
	return remote
}
