package quickbooks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/caskr/internal/accounting/domain"
	"github.com/smallbiznis/caskr/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) domain.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewFactoryWithBaseURL(server.URL, server.Client()).NewClient(domain.ServiceContext{
		RealmID:      "realm-1",
		AccessToken:  "token-1",
		MinorVersion: "75",
	})
	require.NoError(t, err)
	return client
}

func TestFindCustomerByDisplayNameEscapesQuotes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/company/realm-1/query", r.URL.Path)
		assert.Equal(t, "75", r.URL.Query().Get("minorversion"))
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		assert.Equal(t, `SELECT * FROM Customer WHERE DisplayName = 'O\'Brien Spirits' MAXRESULTS 1`, r.URL.Query().Get("query"))

		_, _ = w.Write([]byte(`{"QueryResponse":{"Customer":[{"Id":"58","DisplayName":"O'Brien Spirits","PrimaryEmailAddr":{"Address":"ob@example.com"}}]}}`))
	})

	found, err := client.FindCustomerByDisplayName(context.Background(), "O'Brien Spirits")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "58", found.ID)
	assert.Equal(t, "ob@example.com", found.Email)
}

func TestFindCustomerByEmailNoMatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"QueryResponse":{}}`))
	})

	found, err := client.FindCustomerByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, found)

	found, err = client.FindCustomerByEmail(context.Background(), " ")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestCreateInvoiceSendsSalesItemLines(t *testing.T) {
	var sent map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v3/company/realm-1/invoice", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
		_, _ = w.Write([]byte(`{"Invoice":{"Id":"130","DocNumber":"INV-1","TotalAmt":723.00}}`))
	})

	created, err := client.CreateInvoice(context.Background(), domain.RemoteInvoice{
		DocNumber:   "INV-1",
		TxnDate:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		CustomerRef: domain.Ref{Value: "58"},
		Lines: []domain.RemoteInvoiceLine{{
			LineNum:   1,
			Amount:    decimal.RequireFromString("723"),
			Quantity:  decimal.NewFromInt(6),
			UnitPrice: decimal.RequireFromString("120.5"),
			ItemRef:   domain.Ref{Value: "acct-fg"},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "130", created.ID)
	assert.True(t, created.TotalAmount.Equal(decimal.NewFromInt(723)))

	assert.Equal(t, "2026-03-01", sent["TxnDate"])
	lines := sent["Line"].([]any)
	require.Len(t, lines, 1)
	line := lines[0].(map[string]any)
	assert.Equal(t, "SalesItemLineDetail", line["DetailType"])
	assert.Equal(t, 723.0, line["Amount"])
	detail := line["SalesItemLineDetail"].(map[string]any)
	assert.Equal(t, "acct-fg", detail["ItemRef"].(map[string]any)["value"])
}

func TestCreateJournalEntrySendsPostingTypes(t *testing.T) {
	var sent journalEntry
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/company/realm-1/journalentry", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
		_, _ = w.Write([]byte(`{"JournalEntry":{"Id":"9"}}`))
	})

	created, err := client.CreateJournalEntry(context.Background(), domain.RemoteJournalEntry{
		Lines: []domain.RemoteJournalLine{
			{Amount: decimal.NewFromInt(10), PostingType: domain.PostingTypeDebit, AccountRef: domain.Ref{Value: "cogs"}},
			{Amount: decimal.NewFromInt(10), PostingType: domain.PostingTypeCredit, AccountRef: domain.Ref{Value: "wip"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "9", created.ID)

	require.Len(t, sent.Line, 2)
	assert.Equal(t, "Debit", sent.Line[0].JournalEntryLineDetail.PostingType)
	assert.Equal(t, "Credit", sent.Line[1].JournalEntryLineDetail.PostingType)
	assert.Equal(t, json.Number("10.00"), sent.Line[0].Amount)
}

func TestQueryAccountsParsesBalances(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("query"), "WHERE Active = true")
		_, _ = w.Write([]byte(`{"QueryResponse":{"Account":[
			{"Id":"1","Name":"Cost of Goods Sold","AccountType":"Cost of Goods Sold","CurrentBalance":1250.75,"Active":true,"CurrencyRef":{"value":"USD"}},
			{"Id":"2","Name":"Work in Progress","AccountType":"Other Current Asset","CurrentBalance":0,"Active":true}
		]}}`))
	})

	accounts, err := client.QueryAccounts(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.True(t, accounts[0].CurrentBalance.Equal(decimal.RequireFromString("1250.75")))
	assert.Equal(t, "USD", accounts[0].CurrencyCode)
}

func TestFaultEnvelopeBecomesFaultError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"Fault":{"Error":[{"Message":"Duplicate Document Number Error","Detail":"Duplicate Document Number Error : You must specify a different number.","code":"6140"}],"type":"ValidationFault"}}`))
	})

	_, err := client.CreateInvoice(context.Background(), domain.RemoteInvoice{})
	require.Error(t, err)

	var fault *FaultError
	require.True(t, errors.As(err, &fault))
	assert.Equal(t, "6140", fault.Code)
	assert.Equal(t, http.StatusBadRequest, fault.StatusCode)
	assert.Contains(t, err.Error(), "Duplicate Document Number Error")
}

func TestFaultWithoutEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`unauthorized`))
	})

	_, err := client.QueryAccounts(context.Background(), false)
	var fault *FaultError
	require.True(t, errors.As(err, &fault))
	assert.Equal(t, "quickbooks: status 401: unauthorized", err.Error())
}

func TestFactoryValidatesContext(t *testing.T) {
	f := NewFactory(Params{})
	_, err := f.NewClient(domain.ServiceContext{AccessToken: "x"})
	assert.ErrorIs(t, err, ErrMissingRealm)
	_, err = f.NewClient(domain.ServiceContext{RealmID: "r"})
	assert.ErrorIs(t, err, ErrMissingAccessToken)

	assert.Equal(t, SandboxBaseURL, f.BaseURL("sandbox"))
	assert.Equal(t, ProductionBaseURL, f.BaseURL("production"))
	assert.Equal(t, config.DefaultAccountingConfig().RemoteTimeout, f.httpClient.Timeout)
}

func TestEscapeQuery(t *testing.T) {
	assert.Equal(t, `a\'b\\c`, escapeQuery(`a'b\c`))
}
