package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Billing and production entities are owned by other parts of the platform.
// The accounting workflow only reads them.

type Customer struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	CompanyID   snowflake.ID `json:"company_id" gorm:"not null;index"`
	CompanyName string       `json:"company_name"`
	FirstName   string       `json:"first_name"`
	LastName    string       `json:"last_name"`
	Email       string       `json:"email"`
	Phone       string       `json:"phone"`
	AddressLine string       `json:"address_line"`
	City        string       `json:"city"`
	Region      string       `json:"region"`
	PostalCode  string       `json:"postal_code"`
	Country     string       `json:"country"`
	CreatedAt   time.Time    `json:"created_at"`
}

func (Customer) TableName() string { return "customers" }

func (c Customer) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

type Invoice struct {
	ID            snowflake.ID      `json:"id" gorm:"primaryKey"`
	CompanyID     snowflake.ID      `json:"company_id" gorm:"not null;index"`
	CustomerID    snowflake.ID      `json:"customer_id" gorm:"not null"`
	OrderID       *snowflake.ID     `json:"order_id,omitempty" gorm:"index"`
	InvoiceNumber string            `json:"invoice_number" gorm:"not null"`
	InvoiceDate   time.Time         `json:"invoice_date" gorm:"not null"`
	DueDate       *time.Time        `json:"due_date,omitempty"`
	CurrencyCode  string            `json:"currency_code"`
	Notes         string            `json:"notes"`
	Subtotal      decimal.Decimal   `json:"subtotal" gorm:"type:numeric(18,2)"`
	TotalAmount   decimal.Decimal   `json:"total_amount" gorm:"type:numeric(18,2)"`
	Customer      *Customer         `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	LineItems     []InvoiceLineItem `json:"line_items" gorm:"foreignKey:InvoiceID"`
	Taxes         []InvoiceTax      `json:"taxes" gorm:"foreignKey:InvoiceID"`
	CreatedAt     time.Time         `json:"created_at"`
}

func (Invoice) TableName() string { return "invoices" }

// TotalTax sums the invoice's tax rows.
func (i Invoice) TotalTax() decimal.Decimal {
	total := decimal.Zero
	for _, tax := range i.Taxes {
		total = total.Add(tax.Amount)
	}
	return total
}

type InvoiceLineItem struct {
	ID          snowflake.ID     `json:"id" gorm:"primaryKey"`
	InvoiceID   snowflake.ID     `json:"invoice_id" gorm:"not null;index"`
	Position    int              `json:"position"`
	Description string           `json:"description"`
	Quantity    decimal.Decimal  `json:"quantity" gorm:"type:numeric(18,4)"`
	UnitPrice   decimal.Decimal  `json:"unit_price" gorm:"type:numeric(18,4)"`
	Amount      decimal.Decimal  `json:"amount" gorm:"type:numeric(18,2)"`
	AccountType CaskrAccountType `json:"account_type" gorm:"type:text"`
}

func (InvoiceLineItem) TableName() string { return "invoice_line_items" }

type InvoiceTax struct {
	ID        snowflake.ID    `json:"id" gorm:"primaryKey"`
	InvoiceID snowflake.ID    `json:"invoice_id" gorm:"not null;index"`
	TaxName   string          `json:"tax_name"`
	Rate      decimal.Decimal `json:"rate" gorm:"type:numeric(9,6)"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:numeric(18,2)"`
}

func (InvoiceTax) TableName() string { return "invoice_taxes" }

type Batch struct {
	ID              snowflake.ID    `json:"id" gorm:"primaryKey"`
	CompanyID       snowflake.ID    `json:"company_id" gorm:"not null;index"`
	BatchNumber     string          `json:"batch_number"`
	RawMaterialCost decimal.Decimal `json:"raw_material_cost" gorm:"type:numeric(18,2)"`
	LaborCost       decimal.Decimal `json:"labor_cost" gorm:"type:numeric(18,2)"`
	OverheadCost    decimal.Decimal `json:"overhead_cost" gorm:"type:numeric(18,2)"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	Orders          []Order         `json:"orders" gorm:"foreignKey:BatchID"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (Batch) TableName() string { return "batches" }

// TotalCost is the production cost recognized when the batch is sold.
func (b Batch) TotalCost() decimal.Decimal {
	return b.RawMaterialCost.Add(b.LaborCost).Add(b.OverheadCost)
}

// Invoices flattens the batch's order chain.
func (b Batch) Invoices() []Invoice {
	var out []Invoice
	for _, order := range b.Orders {
		out = append(out, order.Invoices...)
	}
	return out
}

type Order struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	CompanyID   snowflake.ID `json:"company_id" gorm:"not null;index"`
	BatchID     snowflake.ID `json:"batch_id" gorm:"not null;index"`
	OrderNumber string       `json:"order_number"`
	Invoices    []Invoice    `json:"invoices" gorm:"foreignKey:OrderID"`
	CreatedAt   time.Time    `json:"created_at"`
}

func (Order) TableName() string { return "orders" }
