package server

import (
	"errors"
	"net/http"

	billingdomain "github.com/clinovia/billing/internal/billing/domain"
	"github.com/gin-gonic/gin"
)

// ValidationError carries a field-level rejection to the client.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string { return e.Code + ": " + e.Message }

func newValidationError(field, code, message string) *ValidationError {
	return &ValidationError{Field: field, Code: code, Message: message}
}

func invalidRequestError() *ValidationError {
	return newValidationError("body", "invalid_request", "request body could not be parsed")
}

// AbortWithError maps domain errors onto HTTP statuses. Unrecognized errors
// become opaque 500s; details stay in the logs.
func AbortWithError(c *gin.Context, err error) {
	var validation *ValidationError
	if errors.As(err, &validation) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": validation})
		return
	}

	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case errors.Is(err, billingdomain.ErrInvalidCenter),
		errors.Is(err, billingdomain.ErrInvalidPatient),
		errors.Is(err, billingdomain.ErrInvalidAmount),
		errors.Is(err, billingdomain.ErrInvalidCurrency),
		errors.Is(err, billingdomain.ErrMissingPaymentMethod),
		errors.Is(err, billingdomain.ErrPaymentMethodInactive):
		status = http.StatusBadRequest
		code = err.Error()
	case errors.Is(err, billingdomain.ErrPaymentNotFound),
		errors.Is(err, billingdomain.ErrPaymentMethodNotFound),
		errors.Is(err, billingdomain.ErrInvoiceNotFound),
		errors.Is(err, billingdomain.ErrSubscriptionNotFound):
		status = http.StatusNotFound
		code = err.Error()
	case errors.Is(err, billingdomain.ErrInvalidStatusTransition),
		errors.Is(err, billingdomain.ErrIdempotencyKeyInProgress):
		status = http.StatusConflict
		code = err.Error()
	}

	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code}})
}
