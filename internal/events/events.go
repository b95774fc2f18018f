package events

// Billing event types published to the outbox for external relays
// (notifications, exports).
const (
	EventPaymentPaid          = "payment.paid"
	EventPaymentFailed        = "payment.failed"
	EventPaymentOverdue       = "payment.overdue"
	EventSubscriptionCancel   = "subscription.cancelled"
	EventDefaultMethodChanged = "payment_method.default_changed"
)

// PaymentPayload captures the minimal data a relay needs about a payment event.
type PaymentPayload struct {
	PaymentID     string `json:"payment_id"`
	PatientID     string `json:"patient_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p PaymentPayload) ToMap() map[string]any {
	payload := map[string]any{
		"payment_id": p.PaymentID,
		"patient_id": p.PatientID,
		"amount":     p.Amount,
		"currency":   p.Currency,
		"status":     p.Status,
	}
	if p.TransactionID != "" {
		payload["transaction_id"] = p.TransactionID
	}
	return payload
}
