package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/caskr/internal/orgcontext"
)

const (
	HeaderCompany       = "X-Company-ID"
	contextCompanyIDKey = "company_id"
)

// CompanyContext resolves the tenant from the X-Company-ID header and injects
// it into the request context.
func CompanyContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderCompany))
		if raw == "" {
			AbortWithError(c, newValidationError("company_id", "required", "X-Company-ID header is required"))
			return
		}
		companyID, err := snowflake.ParseString(raw)
		if err != nil || companyID <= 0 {
			AbortWithError(c, newValidationError("company_id", "invalid_company", "invalid company id"))
			return
		}

		c.Set(contextCompanyIDKey, companyID.String())
		c.Request = c.Request.WithContext(orgcontext.WithCompanyID(c.Request.Context(), companyID))
		c.Next()
	}
}

func companyIDFromGin(c *gin.Context) (snowflake.ID, bool) {
	return orgcontext.CompanyIDFromContext(c.Request.Context())
}
