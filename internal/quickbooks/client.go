// Package quickbooks is a small QuickBooks Online REST client covering the
// customer, invoice, journal entry and account endpoints.
package quickbooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smallbiznis/caskr/internal/accounting/domain"
	"github.com/smallbiznis/caskr/internal/observability/metrics"
	"github.com/smallbiznis/caskr/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxAccountResults = 1000

var ErrMissingRealm = errors.New("quickbooks_realm_missing")

type Client struct {
	baseURL      string
	realmID      string
	accessToken  string
	minorVersion string
	httpClient   *http.Client
	metrics      *metrics.Metrics
	tracer       trace.Tracer
}

var _ domain.Client = (*Client)(nil)

func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*domain.RemoteCustomer, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}
	return c.findCustomer(ctx, "FindCustomerByEmail",
		fmt.Sprintf("SELECT * FROM Customer WHERE PrimaryEmailAddr = '%s' MAXRESULTS 1", escapeQuery(email)))
}

func (c *Client) FindCustomerByDisplayName(ctx context.Context, name string) (*domain.RemoteCustomer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	return c.findCustomer(ctx, "FindCustomerByDisplayName",
		fmt.Sprintf("SELECT * FROM Customer WHERE DisplayName = '%s' MAXRESULTS 1", escapeQuery(name)))
}

func (c *Client) findCustomer(ctx context.Context, op, query string) (*domain.RemoteCustomer, error) {
	var resp queryResponse
	if err := c.query(ctx, op, query, &resp); err != nil {
		return nil, err
	}
	if len(resp.QueryResponse.Customer) == 0 {
		return nil, nil
	}
	found := customerFromWire(resp.QueryResponse.Customer[0])
	return &found, nil
}

func (c *Client) CreateCustomer(ctx context.Context, in domain.RemoteCustomer) (*domain.RemoteCustomer, error) {
	var resp struct {
		Customer customer `json:"Customer"`
	}
	if err := c.post(ctx, "CreateCustomer", "customer", customerToWire(in), &resp); err != nil {
		return nil, err
	}
	created := customerFromWire(resp.Customer)
	return &created, nil
}

func (c *Client) CreateInvoice(ctx context.Context, in domain.RemoteInvoice) (*domain.RemoteInvoice, error) {
	var resp struct {
		Invoice invoice `json:"Invoice"`
	}
	if err := c.post(ctx, "CreateInvoice", "invoice", invoiceToWire(in), &resp); err != nil {
		return nil, err
	}
	if resp.Invoice.ID == "" {
		return nil, &FaultError{StatusCode: http.StatusOK, Message: "invoice response missing Id"}
	}
	created := invoiceFromWire(resp.Invoice, in)
	return &created, nil
}

func (c *Client) CreateJournalEntry(ctx context.Context, in domain.RemoteJournalEntry) (*domain.RemoteJournalEntry, error) {
	var resp struct {
		JournalEntry journalEntry `json:"JournalEntry"`
	}
	if err := c.post(ctx, "CreateJournalEntry", "journalentry", journalEntryToWire(in), &resp); err != nil {
		return nil, err
	}
	if resp.JournalEntry.ID == "" {
		return nil, &FaultError{StatusCode: http.StatusOK, Message: "journal entry response missing Id"}
	}
	created := in
	created.ID = resp.JournalEntry.ID
	if resp.JournalEntry.DocNumber != "" {
		created.DocNumber = resp.JournalEntry.DocNumber
	}
	return &created, nil
}

func (c *Client) QueryAccounts(ctx context.Context, activeOnly bool) ([]domain.RemoteAccount, error) {
	query := fmt.Sprintf("SELECT * FROM Account MAXRESULTS %d", maxAccountResults)
	if activeOnly {
		query = fmt.Sprintf("SELECT * FROM Account WHERE Active = true MAXRESULTS %d", maxAccountResults)
	}

	var resp queryResponse
	if err := c.query(ctx, "QueryAccounts", query, &resp); err != nil {
		return nil, err
	}
	accounts := make([]domain.RemoteAccount, 0, len(resp.QueryResponse.Account))
	for _, a := range resp.QueryResponse.Account {
		accounts = append(accounts, accountFromWire(a))
	}
	return accounts, nil
}

func (c *Client) query(ctx context.Context, op, query string, out any) error {
	params := url.Values{"query": {query}}
	return c.do(ctx, op, http.MethodGet, "query", params, nil, out)
}

func (c *Client) post(ctx context.Context, op, resource string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", resource, err)
	}
	return c.do(ctx, op, http.MethodPost, resource, nil, payload, out)
}

func (c *Client) do(ctx context.Context, op, method, resource string, params url.Values, body []byte, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "quickbooks."+op, trace.WithSpanKind(trace.SpanKindClient))
	start := time.Now()
	defer func() {
		c.metrics.RecordRemoteCall(ctx, op, time.Since(start), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, op+" failed")
		}
		span.End()
	}()

	endpoint, err := c.endpoint(resource, params)
	if err != nil {
		return err
	}
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("quickbooks.resource", resource),
	)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	correlation.Inject(ctx, req.Header)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("quickbooks %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode >= http.StatusBadRequest {
		return parseFault(resp.StatusCode, raw)
	}
	if bytes.Contains(raw, []byte(`"Fault"`)) {
		if fault := parseFault(resp.StatusCode, raw); fault.Code != "" {
			return fault
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", resource, err)
	}
	return nil
}

func (c *Client) endpoint(resource string, params url.Values) (string, error) {
	if c.realmID == "" {
		return "", ErrMissingRealm
	}
	if params == nil {
		params = url.Values{}
	}
	if c.minorVersion != "" {
		params.Set("minorversion", c.minorVersion)
	}
	u := fmt.Sprintf("%s/v3/company/%s/%s", strings.TrimRight(c.baseURL, "/"), url.PathEscape(c.realmID), resource)
	if encoded := params.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u, nil
}

// escapeQuery quotes a literal for the QuickBooks query language, which
// escapes single quotes with a backslash.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

func newTracer() trace.Tracer {
	return otel.Tracer("caskr/quickbooks")
}
