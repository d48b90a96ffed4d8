package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Ref points at an entity inside the provider's books.
type Ref struct {
	Value string `json:"value"`
	Name  string `json:"name,omitempty"`
}

type RemoteAddress struct {
	Line1      string `json:"line1,omitempty"`
	City       string `json:"city,omitempty"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

type RemoteCustomer struct {
	ID          string         `json:"id,omitempty"`
	DisplayName string         `json:"display_name"`
	CompanyName string         `json:"company_name,omitempty"`
	GivenName   string         `json:"given_name,omitempty"`
	FamilyName  string         `json:"family_name,omitempty"`
	Email       string         `json:"email,omitempty"`
	Phone       string         `json:"phone,omitempty"`
	BillAddr    *RemoteAddress `json:"bill_addr,omitempty"`
}

type RemoteInvoiceLine struct {
	LineNum     int             `json:"line_num"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	ItemRef     Ref             `json:"item_ref"`
}

type RemoteInvoice struct {
	ID          string              `json:"id,omitempty"`
	DocNumber   string              `json:"doc_number"`
	TxnDate     time.Time           `json:"txn_date"`
	DueDate     *time.Time          `json:"due_date,omitempty"`
	CustomerRef Ref                 `json:"customer_ref"`
	CurrencyRef *Ref                `json:"currency_ref,omitempty"`
	BillEmail   string              `json:"bill_email,omitempty"`
	PrivateNote string              `json:"private_note,omitempty"`
	Lines       []RemoteInvoiceLine `json:"lines"`
	TotalTax    decimal.Decimal     `json:"total_tax"`
	TotalAmount decimal.Decimal     `json:"total_amount"`
}

type PostingType string

const (
	PostingTypeDebit  PostingType = "Debit"
	PostingTypeCredit PostingType = "Credit"
)

type RemoteJournalLine struct {
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	PostingType PostingType     `json:"posting_type"`
	AccountRef  Ref             `json:"account_ref"`
}

type RemoteJournalEntry struct {
	ID          string              `json:"id,omitempty"`
	DocNumber   string              `json:"doc_number,omitempty"`
	TxnDate     time.Time           `json:"txn_date"`
	CurrencyRef *Ref                `json:"currency_ref,omitempty"`
	PrivateNote string              `json:"private_note,omitempty"`
	Lines       []RemoteJournalLine `json:"lines"`
}

type RemoteAccount struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	FullyQualified string          `json:"fully_qualified_name,omitempty"`
	AccountType    string          `json:"account_type"`
	AccountSubType string          `json:"account_sub_type,omitempty"`
	Classification string          `json:"classification,omitempty"`
	CurrencyCode   string          `json:"currency_code,omitempty"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	Active         bool            `json:"active"`
}

// ServiceContext carries what a remote client needs to act for one company.
type ServiceContext struct {
	CompanyID    snowflake.ID
	Provider     string
	RealmID      string
	InstanceURL  string
	AccessToken  string
	Environment  string
	BaseURL      string
	MinorVersion string
	ExpiresAt    time.Time
}

// Client is the capability set the sync workflow needs from a provider.
// Find methods return (nil, nil) when nothing matches.
type Client interface {
	FindCustomerByEmail(ctx context.Context, email string) (*RemoteCustomer, error)
	FindCustomerByDisplayName(ctx context.Context, name string) (*RemoteCustomer, error)
	CreateCustomer(ctx context.Context, customer RemoteCustomer) (*RemoteCustomer, error)
	CreateInvoice(ctx context.Context, invoice RemoteInvoice) (*RemoteInvoice, error)
	CreateJournalEntry(ctx context.Context, entry RemoteJournalEntry) (*RemoteJournalEntry, error)
	QueryAccounts(ctx context.Context, activeOnly bool) ([]RemoteAccount, error)
}

type ClientFactory interface {
	BaseURL(environment string) string
	NewClient(sc ServiceContext) (Client, error)
}
