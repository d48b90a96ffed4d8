package accountingtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/smallbiznis/caskr/internal/accounting/domain"
)

// FakeClient records every remote call and serves canned responses.
type FakeClient struct {
	mu sync.Mutex

	Customers        []domain.RemoteCustomer
	Accounts         []domain.RemoteAccount
	CreatedInvoices  []domain.RemoteInvoice
	CreatedEntries   []domain.RemoteJournalEntry
	CreatedCustomers []domain.RemoteCustomer

	InvoiceErr      error
	JournalErr      error
	QueryAccountErr error

	// Hooks run before the call is recorded, outside the client lock, so a
	// test can hold a remote call open. A hook error fails the call.
	InvoiceHook       func(ctx context.Context) error
	QueryAccountsHook func(ctx context.Context) error

	QueryAccountCalls int
	nextID            int
}

func (c *FakeClient) FindCustomerByEmail(ctx context.Context, email string) (*domain.RemoteCustomer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, customer := range c.Customers {
		if email != "" && customer.Email == email {
			found := customer
			return &found, nil
		}
	}
	return nil, nil
}

func (c *FakeClient) FindCustomerByDisplayName(ctx context.Context, name string) (*domain.RemoteCustomer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, customer := range c.Customers {
		if customer.DisplayName == name {
			found := customer
			return &found, nil
		}
	}
	return nil, nil
}

func (c *FakeClient) CreateCustomer(ctx context.Context, customer domain.RemoteCustomer) (*domain.RemoteCustomer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	customer.ID = c.newID("cust")
	c.CreatedCustomers = append(c.CreatedCustomers, customer)
	c.Customers = append(c.Customers, customer)
	return &customer, nil
}

func (c *FakeClient) CreateInvoice(ctx context.Context, invoice domain.RemoteInvoice) (*domain.RemoteInvoice, error) {
	if c.InvoiceHook != nil {
		if err := c.InvoiceHook(ctx); err != nil {
			return nil, err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CreatedInvoices = append(c.CreatedInvoices, invoice)
	if c.InvoiceErr != nil {
		return nil, c.InvoiceErr
	}
	invoice.ID = c.newID("inv")
	return &invoice, nil
}

func (c *FakeClient) CreateJournalEntry(ctx context.Context, entry domain.RemoteJournalEntry) (*domain.RemoteJournalEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CreatedEntries = append(c.CreatedEntries, entry)
	if c.JournalErr != nil {
		return nil, c.JournalErr
	}
	entry.ID = c.newID("je")
	return &entry, nil
}

func (c *FakeClient) QueryAccounts(ctx context.Context, activeOnly bool) ([]domain.RemoteAccount, error) {
	if c.QueryAccountsHook != nil {
		if err := c.QueryAccountsHook(ctx); err != nil {
			return nil, err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.QueryAccountCalls++
	if c.QueryAccountErr != nil {
		return nil, c.QueryAccountErr
	}
	out := make([]domain.RemoteAccount, 0, len(c.Accounts))
	for _, account := range c.Accounts {
		if activeOnly && !account.Active {
			continue
		}
		out = append(out, account)
	}
	return out, nil
}

func (c *FakeClient) QueryCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.QueryAccountCalls
}

func (c *FakeClient) InvoiceCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.CreatedInvoices)
}

func (c *FakeClient) newID(prefix string) string {
	c.nextID++
	return fmt.Sprintf("%s-%d", prefix, c.nextID)
}

// FakeClientFactory hands out a single FakeClient and remembers the contexts
// it was asked for.
type FakeClientFactory struct {
	Client   *FakeClient
	Contexts []domain.ServiceContext
	mu       sync.Mutex
}

func (f *FakeClientFactory) BaseURL(environment string) string {
	return "https://quickbooks.test/" + environment
}

func (f *FakeClientFactory) NewClient(sc domain.ServiceContext) (domain.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Contexts = append(f.Contexts, sc)
	return f.Client, nil
}
