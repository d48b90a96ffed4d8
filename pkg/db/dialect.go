package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	TypePostgres = "postgres"
	TypeMySQL    = "mysql"
	TypeSQLite   = "sqlite"
)

// Dialect opens the gorm dialector for cfg.Type. Sessions always run in UTC
// so stored token expiry times compare correctly.
func Dialect(cfg Config) (gorm.Dialector, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	switch normalizeType(cfg.Type) {
	case TypeMySQL:
		return mysql.Open(dsn), nil
	case TypeSQLite:
		return sqlite.Open(dsn), nil
	default:
		return postgres.Open(dsn), nil
	}
}

func DSN(cfg Config) (string, error) {
	switch normalizeType(cfg.Type) {
	case TypePostgres:
		sslmode := cfg.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, sslmode), nil
	case TypeMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name), nil
	case TypeSQLite:
		if cfg.Name == "" {
			return "caskr.db", nil
		}
		return cfg.Name, nil
	default:
		return "", fmt.Errorf("unsupported database type %q", cfg.Type)
	}
}

func normalizeType(raw string) string {
	switch t := strings.ToLower(strings.TrimSpace(raw)); t {
	case "", "postgresql", "pg":
		return TypePostgres
	default:
		return t
	}
}
