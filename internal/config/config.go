package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	HTTPShutdownTimeout time.Duration

	LogLevel  string
	LogFormat string

	// Telemetry export. OTLPProtocol is grpc or http.
	OTelEnabled       bool
	OTLPEndpoint      string
	OTLPProtocol      string
	OTelSamplingRatio float64

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBRunMigrations   bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TokenEncryptionSecret is the master secret for the data protection
	// provider. Integration tokens cannot be stored without it.
	TokenEncryptionSecret string

	QuickBooks OAuthProviderConfig
	Salesforce OAuthProviderConfig

	// SeedCompanyID and SeedAccountMappings ("COGS=80,WorkInProgress=81")
	// bootstrap chart-of-accounts mappings for one company on startup.
	SeedCompanyID       int64
	SeedAccountMappings map[string]string
}

// OAuthProviderConfig carries the OAuth client registration for one provider.
type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Environment  string
	Scopes       []string
	MinorVersion string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "caskr"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		LogLevel:          strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
		LogFormat:         strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
		OTelEnabled:       getenvBool("OTEL_ENABLED", true),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		OTLPProtocol:      strings.ToLower(strings.TrimSpace(getenv("OTLP_PROTOCOL", "grpc"))),
		OTelSamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "caskr"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 20)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),
		DBRunMigrations:   getenvBool("DATABASE_RUN_MIGRATIONS", true),
		RedisAddr:         strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:     getenv("REDIS_PASSWORD", ""),
		RedisDB:           int(getenvInt64("REDIS_DB", 0)),

		HTTPShutdownTimeout:   getenvDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		TokenEncryptionSecret: strings.TrimSpace(getenv("TOKEN_ENCRYPTION_SECRET", "")),

		QuickBooks: OAuthProviderConfig{
			ClientID:     strings.TrimSpace(getenv("QUICKBOOKS_CLIENT_ID", "")),
			ClientSecret: strings.TrimSpace(getenv("QUICKBOOKS_CLIENT_SECRET", "")),
			RedirectURL:  strings.TrimSpace(getenv("QUICKBOOKS_REDIRECT_URL", "")),
			Environment:  normalizeEnvironment(getenv("QUICKBOOKS_ENVIRONMENT", EnvironmentSandbox)),
			Scopes:       splitList(getenv("QUICKBOOKS_SCOPES", "com.intuit.quickbooks.accounting")),
			MinorVersion: strings.TrimSpace(getenv("QUICKBOOKS_MINOR_VERSION", "75")),
		},
		Salesforce: OAuthProviderConfig{
			ClientID:     strings.TrimSpace(getenv("SALESFORCE_CLIENT_ID", "")),
			ClientSecret: strings.TrimSpace(getenv("SALESFORCE_CLIENT_SECRET", "")),
			RedirectURL:  strings.TrimSpace(getenv("SALESFORCE_REDIRECT_URL", "")),
			Environment:  normalizeEnvironment(getenv("SALESFORCE_ENVIRONMENT", EnvironmentSandbox)),
			Scopes:       splitList(getenv("SALESFORCE_SCOPES", "api refresh_token")),
		},

		SeedCompanyID:       getenvInt64("SEED_COMPANY_ID", 0),
		SeedAccountMappings: splitPairs(getenv("SEED_ACCOUNT_MAPPINGS", "")),
	}

	return cfg
}

const (
	EnvironmentSandbox    = "sandbox"
	EnvironmentProduction = "production"
)

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func normalizeEnvironment(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case EnvironmentProduction, "prod", "live":
		return EnvironmentProduction
	default:
		return EnvironmentSandbox
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func splitList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' '
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}

// splitPairs parses "a=1,b=2". Entries without a key or value are skipped.
func splitPairs(raw string) map[string]string {
	out := map[string]string{}
	for _, item := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(item, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}
