package observability

import (
	"strings"
	"time"

	"github.com/smallbiznis/caskr/internal/config"
)

// Config is the telemetry view of the application config.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "caskr"
	}

	protocol := cfg.OTLPProtocol
	if protocol != "http" {
		protocol = "grpc"
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             cfg.LogLevel,
		LogFormat:            cfg.LogFormat,
		OtelEnabled:          cfg.OTelEnabled && strings.TrimSpace(cfg.OTLPEndpoint) != "",
		OtelExporterEndpoint: strings.TrimSpace(cfg.OTLPEndpoint),
		OtelExporterProtocol: protocol,
		OtelSamplingRatio:    cfg.OTelSamplingRatio,
	}
}

// Debug reports whether verbose logging applies: an explicit debug level or
// a local environment.
func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

// logSampling keeps high-volume sync logging bounded outside local runs.
// Zero values disable sampling.
func (c Config) logSampling() (initial, thereafter int, window time.Duration) {
	if c.Debug() {
		return 0, 0, 0
	}
	return 100, 100, time.Second
}
