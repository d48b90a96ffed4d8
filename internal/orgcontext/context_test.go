package orgcontext

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
)

func TestCompanyIDFromContext(t *testing.T) {
	ctx := WithCompanyID(context.Background(), snowflake.ID(42))
	id, ok := CompanyIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, snowflake.ID(42), id)

	_, ok = CompanyIDFromContext(context.Background())
	assert.False(t, ok)

	_, ok = CompanyIDFromContext(WithCompanyID(context.Background(), 0))
	assert.False(t, ok)

	ctx = context.WithValue(context.Background(), CompanyContextKey{}, "77")
	id, ok = CompanyIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, snowflake.ID(77), id)
}
