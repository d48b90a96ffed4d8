package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("upsert integration: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsDuplicateKeyErr(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: accounting_integrations.company_id")))
	assert.True(t, IsDuplicateKeyErr(errors.New("Error 1062: Duplicate entry")))
	assert.False(t, IsDuplicateKeyErr(errors.New("connection refused")))
}

func TestDialectRejectsUnknownType(t *testing.T) {
	_, err := Dialect(Config{Type: "oracle"})
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	pg, err := DSN(Config{Type: "postgresql", Host: "db", Port: "5432", User: "caskr", Password: "pw", Name: "caskr"})
	assert.NoError(t, err)
	assert.Equal(t, "host=db port=5432 user=caskr password=pw dbname=caskr sslmode=disable TimeZone=UTC", pg)

	my, err := DSN(Config{Type: "MySQL", Host: "db", Port: "3306", User: "u", Password: "p", Name: "caskr"})
	assert.NoError(t, err)
	assert.Equal(t, "u:p@tcp(db:3306)/caskr?charset=utf8mb4&parseTime=True&loc=UTC", my)

	lite, err := DSN(Config{Type: "sqlite"})
	assert.NoError(t, err)
	assert.Equal(t, "caskr.db", lite)
}
