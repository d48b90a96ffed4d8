package correlation

import (
	"context"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"
)

// HeaderName carries the correlation id on inbound requests and on calls to
// accounting providers.
const HeaderName = "X-Correlation-ID"

const maxInboundLength = 128

type correlationKey struct{}

func ExtractCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	cid, _ := ctx.Value(correlationKey{}).(string)
	return cid
}

func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// EnsureCorrelationID returns ctx carrying a correlation id, minting a ULID
// when none is present.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if cid := ExtractCorrelationID(ctx); cid != "" {
		return ctx, cid
	}
	cid := ulid.Make().String()
	return ContextWithCorrelationID(ctx, cid), cid
}

// FromHeader accepts an inbound id only if it is short printable ASCII, so
// caller input cannot inject into log lines.
func FromHeader(h http.Header) string {
	value := strings.TrimSpace(h.Get(HeaderName))
	if value == "" || len(value) > maxInboundLength {
		return ""
	}
	for _, r := range value {
		if r < 0x21 || r > 0x7e {
			return ""
		}
	}
	return value
}

// Inject copies the correlation id from ctx onto an outbound request.
func Inject(ctx context.Context, h http.Header) {
	if cid := ExtractCorrelationID(ctx); cid != "" {
		h.Set(HeaderName, cid)
	}
}
