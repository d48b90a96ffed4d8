package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	accountingdomain "github.com/smallbiznis/caskr/internal/accounting/domain"
	"github.com/smallbiznis/caskr/internal/quickbooks"
	"github.com/smallbiznis/caskr/pkg/db"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if err != nil && payload.Type != "internal_error" {
		code = validationErrorCode(err)
	}
	return payload.Type, code
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	var fault *quickbooks.FaultError

	switch {
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, accountingdomain.ErrIntegrationNotFound),
		errors.Is(err, accountingdomain.ErrRefreshTokenMissing):
		return http.StatusConflict, errorPayload{
			Type:    "integration_not_connected",
			Message: "accounting integration is not connected",
		}
	case errors.Is(err, accountingdomain.ErrMappingNotFound):
		return http.StatusPreconditionFailed, errorPayload{
			Type:    "mapping_not_found",
			Message: err.Error(),
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, accountingdomain.ErrSyncInProgress),
		db.IsDuplicateKeyErr(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case errors.Is(err, accountingdomain.ErrTokenExchangeFailed),
		errors.Is(err, accountingdomain.ErrTokenRefreshFailed),
		errors.Is(err, accountingdomain.ErrTokenMissing),
		errors.As(err, &fault):
		return http.StatusBadGateway, errorPayload{
			Type:    "upstream_error",
			Message: "accounting provider request failed",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, accountingdomain.ErrProviderNotConfigured):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, accountingdomain.ErrInvalidCompany),
		errors.Is(err, accountingdomain.ErrInvalidProvider),
		errors.Is(err, accountingdomain.ErrInvalidCode),
		errors.Is(err, accountingdomain.ErrInvalidState),
		errors.Is(err, accountingdomain.ErrMissingRealmID),
		errors.Is(err, accountingdomain.ErrInvoiceHasNoLines),
		errors.Is(err, accountingdomain.ErrInvoiceNoCustomer),
		errors.Is(err, accountingdomain.ErrInvalidAmount):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, accountingdomain.ErrInvoiceNotFound),
		errors.Is(err, accountingdomain.ErrBatchNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// validationErrorCode is the sentinel text of the first known error in the
// chain, so wrapped errors still report a stable code.
func validationErrorCode(err error) string {
	for _, known := range []error{
		ErrInvalidRequest,
		accountingdomain.ErrInvalidCompany,
		accountingdomain.ErrInvalidProvider,
		accountingdomain.ErrInvalidCode,
		accountingdomain.ErrInvalidState,
		accountingdomain.ErrMissingRealmID,
		accountingdomain.ErrInvoiceHasNoLines,
		accountingdomain.ErrInvoiceNoCustomer,
		accountingdomain.ErrInvalidAmount,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	if strings.HasPrefix(code, "missing_") {
		return strings.TrimPrefix(code, "missing_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "missing_realm_id":
		return "realmId is required"
	case "invoice_has_no_lines":
		return "invoice has no line items"
	case "invoice_customer_missing":
		return "invoice has no customer"
	default:
		return "invalid value"
	}
}
