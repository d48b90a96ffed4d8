package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	accountingdomain "github.com/smallbiznis/caskr/internal/accounting/domain"
)

const (
	defaultSyncLogLimit = 50
	maxSyncLogLimit     = 500
)

func (s *Server) ConnectIntegration(c *gin.Context) {
	companyID, _ := companyIDFromGin(c)

	redirect, err := s.authSvc.AuthorizationURL(c.Request.Context(), c.Param("provider"), companyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if wantRedirect, _ := parseOptionalBool(c.Query("redirect")); wantRedirect != nil && *wantRedirect {
		c.Redirect(http.StatusFound, redirect.URL)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": redirect})
}

// IntegrationCallback completes the OAuth flow. Tokens are stored, never
// echoed back to the browser.
func (s *Server) IntegrationCallback(c *gin.Context) {
	ctx := c.Request.Context()
	provider := c.Param("provider")

	if providerErr := strings.TrimSpace(c.Query("error")); providerErr != "" {
		AbortWithError(c, newValidationError("code", providerErr, "authorization was not granted"))
		return
	}

	companyID, err := s.authSvc.ParseState(ctx, provider, c.Query("state"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if _, err := s.authSvc.HandleCallback(ctx, provider, c.Query("code"), c.Query("realmId"), companyID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Set(contextCompanyIDKey, companyID.String())

	status, err := s.authSvc.Status(ctx, provider, companyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": status})
}

func (s *Server) IntegrationStatus(c *gin.Context) {
	companyID, _ := companyIDFromGin(c)

	status, err := s.authSvc.Status(c.Request.Context(), c.Param("provider"), companyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": status})
}

func (s *Server) RefreshIntegration(c *gin.Context) {
	ctx := c.Request.Context()
	companyID, _ := companyIDFromGin(c)
	provider := c.Param("provider")

	if _, err := s.authSvc.RefreshToken(ctx, provider, companyID); err != nil {
		AbortWithError(c, err)
		return
	}

	status, err := s.authSvc.Status(ctx, provider, companyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": status})
}

func (s *Server) DisconnectIntegration(c *gin.Context) {
	companyID, _ := companyIDFromGin(c)

	if err := s.authSvc.Disconnect(c.Request.Context(), c.Param("provider"), companyID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) SyncInvoice(c *gin.Context) {
	invoiceID, err := parseSnowflakeParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.invoices.SyncInvoiceToQuickBooks(c.Request.Context(), invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) RecordBatchCOGS(c *gin.Context) {
	batchID, err := parseSnowflakeParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.costs.RecordBatchCOGS(c.Request.Context(), batchID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) GetChartOfAccounts(c *gin.Context) {
	companyID, _ := companyIDFromGin(c)

	refresh, err := parseOptionalBool(c.Query("refresh"))
	if err != nil {
		AbortWithError(c, newValidationError("refresh", "invalid_refresh", "refresh must be a boolean"))
		return
	}
	if refresh != nil && *refresh {
		s.charts.Invalidate(companyID)
	}

	chart, err := s.charts.GetChartOfAccounts(c.Request.Context(), companyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": chart})
}

func (s *Server) ListSyncLogs(c *gin.Context) {
	filter := accountingdomain.SyncLogFilter{Limit: defaultSyncLogLimit}

	if raw := strings.TrimSpace(c.Query("entity_type")); raw != "" {
		switch accountingdomain.EntityType(raw) {
		case accountingdomain.EntityTypeInvoice, accountingdomain.EntityTypeJournalEntry:
			filter.EntityType = accountingdomain.EntityType(raw)
		default:
			AbortWithError(c, newValidationError("entity_type", "invalid_entity_type", "unknown entity type"))
			return
		}
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		switch accountingdomain.SyncStatus(raw) {
		case accountingdomain.SyncStatusSuccess, accountingdomain.SyncStatusFailed:
			filter.Status = accountingdomain.SyncStatus(raw)
		default:
			AbortWithError(c, newValidationError("status", "invalid_status", "unknown sync status"))
			return
		}
	}

	entityID, err := parseOptionalSnowflakeID(c.Query("entity_id"))
	if err != nil {
		AbortWithError(c, newValidationError("entity_id", "invalid_entity_id", "invalid entity id"))
		return
	}
	if entityID != nil {
		filter.EntityID = *entityID
	}

	limit, err := parseOptionalInt64(c.Query("limit"))
	if err != nil || (limit != nil && (*limit <= 0 || *limit > maxSyncLogLimit)) {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "limit must be between 1 and 500"))
		return
	}
	if limit != nil {
		filter.Limit = int(*limit)
	}

	logs, err := s.syncLogs.SyncLogs(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": logs})
}
