package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Filters restricts a payment listing. Empty slices match everything;
// non-empty slices are AND-combined IN clauses.
type Filters struct {
	Status  []PaymentStatus
	Methods []PaymentMethodType
}

// ProcessRequest describes a charge attempt against a stored payment method.
// Amount is in minor units. IdempotencyKey lets a caller retry the whole call
// without producing a second charge.
type ProcessRequest struct {
	Amount          int64
	Currency        string
	Description     string
	PaymentMethodID snowflake.ID
	IdempotencyKey  string
	Metadata        map[string]any
}

// ProcessResponse reports the outcome of a charge attempt. The created payment
// record is retained on failure so the attempt stays auditable.
type ProcessResponse struct {
	Success       bool          `json:"success"`
	PaymentID     string        `json:"payment_id,omitempty"`
	TransactionID string        `json:"transaction_id,omitempty"`
	Status        PaymentStatus `json:"status"`
	Message       string        `json:"message"`
}

// Service is the only component allowed to mutate payment and subscription
// state. Every method is scoped to a (centerID, patientID) pair supplied by
// the session context of the caller.
type Service interface {
	ListPayments(ctx context.Context, centerID, patientID string, filters Filters) ([]Payment, error)
	GetSummary(ctx context.Context, centerID, patientID string) (PaymentSummary, error)
	ListPaymentMethods(ctx context.Context, centerID, patientID string) ([]PaymentMethod, error)
	GetActiveSubscription(ctx context.Context, centerID, patientID string) (*Subscription, error)
	ProcessPayment(ctx context.Context, centerID, patientID string, req ProcessRequest) (ProcessResponse, error)
	GetInvoice(ctx context.Context, centerID, patientID string, invoiceID snowflake.ID) (*Invoice, error)
	SetDefaultPaymentMethod(ctx context.Context, centerID, patientID string, methodID snowflake.ID) error
	DeactivatePaymentMethod(ctx context.Context, centerID, patientID string, methodID snowflake.ID) error
	CancelSubscription(ctx context.Context, centerID, patientID string, atPeriodEnd bool) (*Subscription, error)
}

var (
	ErrInvalidCenter            = errors.New("invalid_center")
	ErrInvalidPatient           = errors.New("invalid_patient")
	ErrInvalidAmount            = errors.New("invalid_amount")
	ErrInvalidCurrency          = errors.New("invalid_currency")
	ErrMissingPaymentMethod     = errors.New("missing_payment_method")
	ErrPaymentMethodNotFound    = errors.New("payment_method_not_found")
	ErrPaymentMethodInactive    = errors.New("payment_method_inactive")
	ErrPaymentNotFound          = errors.New("payment_not_found")
	ErrInvoiceNotFound          = errors.New("invoice_not_found")
	ErrSubscriptionNotFound     = errors.New("subscription_not_found")
	ErrInvalidStatusTransition  = errors.New("invalid_status_transition")
	ErrIdempotencyKeyInProgress = errors.New("idempotency_key_in_progress")
)
