package quickbooks

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/caskr/internal/accounting/domain"
)

const dateLayout = "2006-01-02"

type ref struct {
	Value string `json:"value"`
	Name  string `json:"name,omitempty"`
}

type emailAddr struct {
	Address string `json:"Address"`
}

type phone struct {
	FreeFormNumber string `json:"FreeFormNumber"`
}

type physicalAddr struct {
	Line1                  string `json:"Line1,omitempty"`
	City                   string `json:"City,omitempty"`
	CountrySubDivisionCode string `json:"CountrySubDivisionCode,omitempty"`
	PostalCode             string `json:"PostalCode,omitempty"`
	Country                string `json:"Country,omitempty"`
}

type customer struct {
	ID               string        `json:"Id,omitempty"`
	DisplayName      string        `json:"DisplayName"`
	CompanyName      string        `json:"CompanyName,omitempty"`
	GivenName        string        `json:"GivenName,omitempty"`
	FamilyName       string        `json:"FamilyName,omitempty"`
	PrimaryEmailAddr *emailAddr    `json:"PrimaryEmailAddr,omitempty"`
	PrimaryPhone     *phone        `json:"PrimaryPhone,omitempty"`
	BillAddr         *physicalAddr `json:"BillAddr,omitempty"`
}

type salesItemLineDetail struct {
	ItemRef   ref         `json:"ItemRef"`
	Qty       json.Number `json:"Qty,omitempty"`
	UnitPrice json.Number `json:"UnitPrice,omitempty"`
}

type invoiceLine struct {
	LineNum             int                  `json:"LineNum,omitempty"`
	Description         string               `json:"Description,omitempty"`
	Amount              json.Number          `json:"Amount"`
	DetailType          string               `json:"DetailType"`
	SalesItemLineDetail *salesItemLineDetail `json:"SalesItemLineDetail,omitempty"`
}

type txnTaxDetail struct {
	TotalTax json.Number `json:"TotalTax"`
}

type invoice struct {
	ID           string        `json:"Id,omitempty"`
	DocNumber    string        `json:"DocNumber,omitempty"`
	TxnDate      string        `json:"TxnDate,omitempty"`
	DueDate      string        `json:"DueDate,omitempty"`
	CustomerRef  ref           `json:"CustomerRef"`
	CurrencyRef  *ref          `json:"CurrencyRef,omitempty"`
	BillEmail    *emailAddr    `json:"BillEmail,omitempty"`
	PrivateNote  string        `json:"PrivateNote,omitempty"`
	Line         []invoiceLine `json:"Line"`
	TxnTaxDetail *txnTaxDetail `json:"TxnTaxDetail,omitempty"`
	TotalAmt     json.Number   `json:"TotalAmt,omitempty"`
}

type journalEntryLineDetail struct {
	PostingType string `json:"PostingType"`
	AccountRef  ref    `json:"AccountRef"`
}

type journalLine struct {
	Description            string                  `json:"Description,omitempty"`
	Amount                 json.Number             `json:"Amount"`
	DetailType             string                  `json:"DetailType"`
	JournalEntryLineDetail *journalEntryLineDetail `json:"JournalEntryLineDetail,omitempty"`
}

type journalEntry struct {
	ID          string        `json:"Id,omitempty"`
	DocNumber   string        `json:"DocNumber,omitempty"`
	TxnDate     string        `json:"TxnDate,omitempty"`
	CurrencyRef *ref          `json:"CurrencyRef,omitempty"`
	PrivateNote string        `json:"PrivateNote,omitempty"`
	Line        []journalLine `json:"Line"`
}

type account struct {
	ID                 string      `json:"Id"`
	Name               string      `json:"Name"`
	FullyQualifiedName string      `json:"FullyQualifiedName"`
	AccountType        string      `json:"AccountType"`
	AccountSubType     string      `json:"AccountSubType"`
	Classification     string      `json:"Classification"`
	CurrentBalance     json.Number `json:"CurrentBalance"`
	Active             bool        `json:"Active"`
	CurrencyRef        *ref        `json:"CurrencyRef,omitempty"`
}

type queryResponse struct {
	QueryResponse struct {
		Customer   []customer `json:"Customer"`
		Account    []account  `json:"Account"`
		MaxResults int        `json:"maxResults"`
	} `json:"QueryResponse"`
}

func amount(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func quantity(d decimal.Decimal) json.Number {
	if d.IsZero() {
		return ""
	}
	return json.Number(d.String())
}

func parseAmount(n json.Number) decimal.Decimal {
	if n == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(string(n))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func parseDate(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func toRef(r *domain.Ref) *ref {
	if r == nil || r.Value == "" {
		return nil
	}
	return &ref{Value: r.Value, Name: r.Name}
}

func customerToWire(c domain.RemoteCustomer) customer {
	out := customer{
		ID:          c.ID,
		DisplayName: c.DisplayName,
		CompanyName: c.CompanyName,
		GivenName:   c.GivenName,
		FamilyName:  c.FamilyName,
	}
	if c.Email != "" {
		out.PrimaryEmailAddr = &emailAddr{Address: c.Email}
	}
	if c.Phone != "" {
		out.PrimaryPhone = &phone{FreeFormNumber: c.Phone}
	}
	if c.BillAddr != nil {
		out.BillAddr = &physicalAddr{
			Line1:                  c.BillAddr.Line1,
			City:                   c.BillAddr.City,
			CountrySubDivisionCode: c.BillAddr.Region,
			PostalCode:             c.BillAddr.PostalCode,
			Country:                c.BillAddr.Country,
		}
	}
	return out
}

func customerFromWire(c customer) domain.RemoteCustomer {
	out := domain.RemoteCustomer{
		ID:          c.ID,
		DisplayName: c.DisplayName,
		CompanyName: c.CompanyName,
		GivenName:   c.GivenName,
		FamilyName:  c.FamilyName,
	}
	if c.PrimaryEmailAddr != nil {
		out.Email = c.PrimaryEmailAddr.Address
	}
	if c.PrimaryPhone != nil {
		out.Phone = c.PrimaryPhone.FreeFormNumber
	}
	if c.BillAddr != nil {
		out.BillAddr = &domain.RemoteAddress{
			Line1:      c.BillAddr.Line1,
			City:       c.BillAddr.City,
			Region:     c.BillAddr.CountrySubDivisionCode,
			PostalCode: c.BillAddr.PostalCode,
			Country:    c.BillAddr.Country,
		}
	}
	return out
}

func invoiceToWire(in domain.RemoteInvoice) invoice {
	out := invoice{
		DocNumber:   in.DocNumber,
		TxnDate:     formatDate(in.TxnDate),
		CustomerRef: ref{Value: in.CustomerRef.Value, Name: in.CustomerRef.Name},
		CurrencyRef: toRef(in.CurrencyRef),
		PrivateNote: in.PrivateNote,
		Line:        make([]invoiceLine, 0, len(in.Lines)),
	}
	if in.DueDate != nil {
		out.DueDate = formatDate(*in.DueDate)
	}
	if in.BillEmail != "" {
		out.BillEmail = &emailAddr{Address: in.BillEmail}
	}
	if !in.TotalTax.IsZero() {
		out.TxnTaxDetail = &txnTaxDetail{TotalTax: amount(in.TotalTax)}
	}
	for _, line := range in.Lines {
		out.Line = append(out.Line, invoiceLine{
			LineNum:     line.LineNum,
			Description: line.Description,
			Amount:      amount(line.Amount),
			DetailType:  "SalesItemLineDetail",
			SalesItemLineDetail: &salesItemLineDetail{
				ItemRef:   ref{Value: line.ItemRef.Value, Name: line.ItemRef.Name},
				Qty:       quantity(line.Quantity),
				UnitPrice: quantity(line.UnitPrice),
			},
		})
	}
	return out
}

func invoiceFromWire(in invoice, sent domain.RemoteInvoice) domain.RemoteInvoice {
	out := sent
	out.ID = in.ID
	if in.DocNumber != "" {
		out.DocNumber = in.DocNumber
	}
	if t := parseDate(in.TxnDate); !t.IsZero() {
		out.TxnDate = t
	}
	if in.TotalAmt != "" {
		out.TotalAmount = parseAmount(in.TotalAmt)
	}
	return out
}

func journalEntryToWire(in domain.RemoteJournalEntry) journalEntry {
	out := journalEntry{
		DocNumber:   in.DocNumber,
		TxnDate:     formatDate(in.TxnDate),
		CurrencyRef: toRef(in.CurrencyRef),
		PrivateNote: in.PrivateNote,
		Line:        make([]journalLine, 0, len(in.Lines)),
	}
	for _, line := range in.Lines {
		out.Line = append(out.Line, journalLine{
			Description: line.Description,
			Amount:      amount(line.Amount),
			DetailType:  "JournalEntryLineDetail",
			JournalEntryLineDetail: &journalEntryLineDetail{
				PostingType: string(line.PostingType),
				AccountRef:  ref{Value: line.AccountRef.Value, Name: line.AccountRef.Name},
			},
		})
	}
	return out
}

func accountFromWire(a account) domain.RemoteAccount {
	out := domain.RemoteAccount{
		ID:             a.ID,
		Name:           a.Name,
		FullyQualified: a.FullyQualifiedName,
		AccountType:    a.AccountType,
		AccountSubType: a.AccountSubType,
		Classification: a.Classification,
		CurrentBalance: parseAmount(a.CurrentBalance),
		Active:         a.Active,
	}
	if a.CurrencyRef != nil {
		out.CurrencyCode = a.CurrencyRef.Value
	}
	return out
}
