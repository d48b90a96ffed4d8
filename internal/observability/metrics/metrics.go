package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	syncTotal         metric.Int64Counter
	tokenRefreshTotal metric.Int64Counter
	chartCacheLookups metric.Int64Counter
	remoteCallLatency metric.Int64Histogram
	httpRequests      metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "caskr"
	}
	meter := provider.Meter(name)

	syncTotal, err := meter.Int64Counter("caskr_accounting_sync_total")
	if err != nil {
		return nil, err
	}
	tokenRefreshTotal, err := meter.Int64Counter("caskr_token_refresh_total")
	if err != nil {
		return nil, err
	}
	chartCacheLookups, err := meter.Int64Counter("caskr_chart_cache_lookups_total")
	if err != nil {
		return nil, err
	}
	remoteCallLatency, err := meter.Int64Histogram("caskr_remote_call_duration_ms", metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	httpRequests, err := meter.Int64Counter("caskr_http_requests_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		syncTotal:         syncTotal,
		tokenRefreshTotal: tokenRefreshTotal,
		chartCacheLookups: chartCacheLookups,
		remoteCallLatency: remoteCallLatency,
		httpRequests:      httpRequests,
	}, nil
}

// RecordSync counts one sync attempt by entity type and outcome.
func (m *Metrics) RecordSync(ctx context.Context, entityType, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("entity_type", strings.TrimSpace(entityType)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.syncTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTokenRefresh counts token refreshes by provider and outcome.
func (m *Metrics) RecordTokenRefresh(ctx context.Context, provider, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.tokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordChartCacheLookup counts chart-of-accounts cache hits and misses.
func (m *Metrics) RecordChartCacheLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.chartCacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordRemoteCall records the latency of one provider API call.
func (m *Metrics) RecordRemoteCall(ctx context.Context, operation string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	attrs := FilterAttributes(
		attribute.String("operation", strings.TrimSpace(operation)),
		attribute.String("outcome", outcome),
	)
	m.remoteCallLatency.Record(ctx, elapsed.Milliseconds(), metric.WithAttributes(attrs...))
}

// RecordHTTPRequest counts inbound requests by route and status code.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, route string, status int) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(route)),
		attribute.Int("status_code", status),
	)
	m.httpRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"endpoint":    {},
	"status_code": {},
	"provider":    {},
	"entity_type": {},
	"status":      {},
	"outcome":     {},
	"operation":   {},
	"result":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
