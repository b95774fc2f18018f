package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/clinovia/billing/internal/billing/domain"
	"github.com/gin-gonic/gin"
)

func scopeFromPath(c *gin.Context) (string, string) {
	return strings.TrimSpace(c.Param("center_id")), strings.TrimSpace(c.Param("patient_id"))
}

// ListPayments returns the patient's payment history, optionally filtered by
// status and payment method (comma-separated query values, AND-combined).
func (s *Server) ListPayments(c *gin.Context) {
	centerID, patientID := scopeFromPath(c)

	filters, err := parseFilters(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payments, err := s.billingSvc.ListPayments(c.Request.Context(), centerID, patientID, filters)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": payments})
}

// GetPaymentSummary returns the recomputed account projection.
func (s *Server) GetPaymentSummary(c *gin.Context) {
	centerID, patientID := scopeFromPath(c)

	summary, err := s.billingSvc.GetSummary(c.Request.Context(), centerID, patientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summary})
}

type processPaymentRequest struct {
	Amount          int64          `json:"amount"`
	Currency        string         `json:"currency"`
	Description     string         `json:"description"`
	PaymentMethodID string         `json:"payment_method_id"`
	IdempotencyKey  string         `json:"idempotency_key"`
	Metadata        map[string]any `json:"metadata"`
}

// ProcessPayment submits a charge attempt. Declines come back as 200 with
// success=false; the failed record stays in the history.
func (s *Server) ProcessPayment(c *gin.Context) {
	centerID, patientID := scopeFromPath(c)

	var req processPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	methodID, err := parseSnowflake(req.PaymentMethodID, "payment_method_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.billingSvc.ProcessPayment(c.Request.Context(), centerID, patientID, billingdomain.ProcessRequest{
		Amount:          req.Amount,
		Currency:        req.Currency,
		Description:     req.Description,
		PaymentMethodID: methodID,
		IdempotencyKey:  req.IdempotencyKey,
		Metadata:        req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func parseFilters(c *gin.Context) (billingdomain.Filters, error) {
	var filters billingdomain.Filters
	for _, raw := range splitQueryList(c.Query("status")) {
		status := billingdomain.PaymentStatus(raw)
		switch status {
		case billingdomain.PaymentStatusPending, billingdomain.PaymentStatusPaid,
			billingdomain.PaymentStatusFailed, billingdomain.PaymentStatusCancelled,
			billingdomain.PaymentStatusRefunded, billingdomain.PaymentStatusOverdue:
			filters.Status = append(filters.Status, status)
		default:
			return filters, newValidationError("status", "invalid_status", "unknown payment status: "+raw)
		}
	}
	for _, raw := range splitQueryList(c.Query("payment_method")) {
		method := billingdomain.PaymentMethodType(raw)
		switch method {
		case billingdomain.PaymentMethodCard, billingdomain.PaymentMethodPaypal,
			billingdomain.PaymentMethodMercadoPago, billingdomain.PaymentMethodBankTransfer,
			billingdomain.PaymentMethodCash:
			filters.Methods = append(filters.Methods, method)
		default:
			return filters, newValidationError("payment_method", "invalid_payment_method", "unknown payment method: "+raw)
		}
	}
	return filters, nil
}

func splitQueryList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseSnowflake(value, field string) (snowflake.ID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, newValidationError(field, "required", field+" is required")
	}
	id, err := snowflake.ParseString(value)
	if err != nil {
		return 0, newValidationError(field, "invalid_id", field+" is not a valid id")
	}
	return id, nil
}
