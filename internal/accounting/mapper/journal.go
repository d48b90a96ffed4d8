package mapper

import (
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/caskr/internal/accounting/domain"
)

// MapCogsJournalEntry recognizes a batch's production cost: one debit to COGS
// and one credit to work in progress, both for the batch's total cost.
func MapCogsJournalEntry(batch domain.Batch, mappings AccountMappings, currency string) (domain.RemoteJournalEntry, error) {
	amount := batch.TotalCost().Round(2)
	if !amount.IsPositive() {
		return domain.RemoteJournalEntry{}, fmt.Errorf("%w: batch %s cost %s", domain.ErrInvalidAmount, batchLabel(batch), amount)
	}

	cogs, err := mappings.ResolveExact(domain.AccountTypeCOGS)
	if err != nil {
		return domain.RemoteJournalEntry{}, err
	}
	wip, err := mappings.ResolveExact(domain.AccountTypeWIP)
	if err != nil {
		return domain.RemoteJournalEntry{}, err
	}

	label := batchLabel(batch)
	description := "COGS for batch " + label

	entry := domain.RemoteJournalEntry{
		DocNumber:   "COGS-" + label,
		TxnDate:     cogsTxnDate(batch),
		PrivateNote: cogsNote(batch, description),
		Lines: []domain.RemoteJournalLine{
			{
				Description: description,
				Amount:      amount,
				PostingType: domain.PostingTypeDebit,
				AccountRef:  cogs,
			},
			{
				Description: description,
				Amount:      amount,
				PostingType: domain.PostingTypeCredit,
				AccountRef:  wip,
			},
		},
	}
	if code := strings.ToUpper(strings.TrimSpace(currency)); code != "" {
		entry.CurrencyRef = &domain.Ref{Value: code}
	}
	return entry, nil
}

func batchLabel(batch domain.Batch) string {
	if n := strings.TrimSpace(batch.BatchNumber); n != "" {
		return n
	}
	return batch.ID.String()
}

// cogsTxnDate is the latest invoice date in the batch's order chain, falling
// back to completion and then creation time.
func cogsTxnDate(batch domain.Batch) time.Time {
	var latest time.Time
	for _, invoice := range batch.Invoices() {
		if invoice.InvoiceDate.After(latest) {
			latest = invoice.InvoiceDate
		}
	}
	if !latest.IsZero() {
		return latest
	}
	if batch.CompletedAt != nil {
		return *batch.CompletedAt
	}
	return batch.CreatedAt
}

func cogsNote(batch domain.Batch, description string) string {
	invoices := batch.Invoices()
	if len(invoices) == 0 {
		return description
	}
	numbers := make([]string, 0, len(invoices))
	for _, invoice := range invoices {
		numbers = append(numbers, invoice.InvoiceNumber)
	}
	return description + "; invoices: " + strings.Join(numbers, ", ")
}
