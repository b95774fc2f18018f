// Package domain contains the patient billing entities and status enums.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// PaymentStatus enumerates the persisted lifecycle states of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusOverdue   PaymentStatus = "overdue"
)

// PaymentMethodType enumerates the supported payment instruments.
type PaymentMethodType string

const (
	PaymentMethodCard         PaymentMethodType = "card"
	PaymentMethodPaypal       PaymentMethodType = "paypal"
	PaymentMethodMercadoPago  PaymentMethodType = "mercadopago"
	PaymentMethodBankTransfer PaymentMethodType = "bank_transfer"
	PaymentMethodCash         PaymentMethodType = "cash"
)

// SubscriptionStatus enumerates recurring-agreement states.
type SubscriptionStatus string

const (
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusTrialing   SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled  SubscriptionStatus = "cancelled"
	SubscriptionStatusUnpaid     SubscriptionStatus = "unpaid"
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
)

// SubscriptionInterval enumerates billing cadences.
type SubscriptionInterval string

const (
	IntervalMonthly   SubscriptionInterval = "monthly"
	IntervalQuarterly SubscriptionInterval = "quarterly"
	IntervalYearly    SubscriptionInterval = "yearly"
)

// InvoiceStatus enumerates invoice document states.
type InvoiceStatus string

const (
	InvoiceStatusDraft  InvoiceStatus = "draft"
	InvoiceStatusIssued InvoiceStatus = "issued"
	InvoiceStatusPaid   InvoiceStatus = "paid"
	InvoiceStatusVoid   InvoiceStatus = "void"
)

// DefaultCurrency is applied when a request omits the currency code.
const DefaultCurrency = "EUR"

// Payment is a single monetary obligation or settled transaction for a
// patient. Amounts are stored in minor units (cents). PaidDate is set if and
// only if Status is paid; a payment without a DueDate can never become overdue.
type Payment struct {
	ID              snowflake.ID      `gorm:"primaryKey" json:"id"`
	CenterID        string            `gorm:"type:text;not null;index:idx_payments_scope,priority:1" json:"center_id"`
	PatientID       string            `gorm:"type:text;not null;index:idx_payments_scope,priority:2" json:"patient_id"`
	Amount          int64             `gorm:"not null" json:"amount"`
	Currency        string            `gorm:"type:text;not null;default:'EUR'" json:"currency"`
	Description     string            `gorm:"type:text;not null" json:"description"`
	Status          PaymentStatus     `gorm:"type:text;not null;default:'pending';index" json:"status"`
	Method          PaymentMethodType `gorm:"column:payment_method;type:text;not null" json:"payment_method"`
	PaymentMethodID *snowflake.ID     `gorm:"" json:"payment_method_id,omitempty"`
	DueDate         *time.Time        `gorm:"" json:"due_date,omitempty"`
	PaidDate        *time.Time        `gorm:"" json:"paid_date,omitempty"`
	TransactionID   *string           `gorm:"type:text" json:"transaction_id,omitempty"`
	InvoiceNumber   *string           `gorm:"type:text" json:"invoice_number,omitempty"`
	InvoiceURL      *string           `gorm:"type:text" json:"invoice_url,omitempty"`
	IdempotencyKey  *string           `gorm:"type:text;uniqueIndex:ux_payments_idempotency" json:"-"`
	Metadata        datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }

// PaymentMethod is a reusable payment instrument belonging to one patient.
// Methods are never hard-deleted; IsActive is the soft-delete flag so settled
// payments keep a valid reference. At most one method per patient is default.
type PaymentMethod struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	CenterID    string            `gorm:"type:text;not null;index:idx_payment_methods_scope,priority:1" json:"center_id"`
	PatientID   string            `gorm:"type:text;not null;index:idx_payment_methods_scope,priority:2" json:"patient_id"`
	Type        PaymentMethodType `gorm:"type:text;not null" json:"type"`
	IsDefault   bool              `gorm:"not null;default:false" json:"is_default"`
	IsActive    bool              `gorm:"not null;default:true" json:"is_active"`
	LastFour    *string           `gorm:"type:text" json:"last_four,omitempty"`
	Brand       *string           `gorm:"type:text" json:"brand,omitempty"`
	ExpiryMonth *int              `gorm:"" json:"expiry_month,omitempty"`
	ExpiryYear  *int              `gorm:"" json:"expiry_year,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (PaymentMethod) TableName() string { return "payment_methods" }

// Subscription is a recurring billing agreement for one patient.
// CurrentPeriodStart precedes CurrentPeriodEnd; NextBillingDate is at or after
// CurrentPeriodEnd unless CancelAtPeriodEnd is set.
type Subscription struct {
	ID                 snowflake.ID         `gorm:"primaryKey" json:"id"`
	CenterID           string               `gorm:"type:text;not null;index:idx_subscriptions_scope,priority:1" json:"center_id"`
	PatientID          string               `gorm:"type:text;not null;index:idx_subscriptions_scope,priority:2" json:"patient_id"`
	PlanName           string               `gorm:"type:text;not null" json:"plan_name"`
	PlanDescription    string               `gorm:"type:text" json:"plan_description"`
	Status             SubscriptionStatus   `gorm:"type:text;not null;default:'incomplete';index" json:"status"`
	Amount             int64                `gorm:"not null" json:"amount"`
	Currency           string               `gorm:"type:text;not null;default:'EUR'" json:"currency"`
	Interval           SubscriptionInterval `gorm:"type:text;not null" json:"interval"`
	CurrentPeriodStart time.Time            `gorm:"not null" json:"current_period_start"`
	CurrentPeriodEnd   time.Time            `gorm:"not null" json:"current_period_end"`
	NextBillingDate    time.Time            `gorm:"not null" json:"next_billing_date"`
	PaymentMethodID    *snowflake.ID        `gorm:"" json:"payment_method_id,omitempty"`
	CancelAtPeriodEnd  bool                 `gorm:"not null;default:false" json:"cancel_at_period_end"`
	TrialEnd           *time.Time           `gorm:"" json:"trial_end,omitempty"`
	CancelledAt        *time.Time           `gorm:"" json:"cancelled_at,omitempty"`
	CreatedAt          time.Time            `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time            `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// Invoice is a billing document tied to a single payment.
type Invoice struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	CenterID  string        `gorm:"type:text;not null;index:idx_invoices_scope,priority:1" json:"center_id"`
	PatientID string        `gorm:"type:text;not null;index:idx_invoices_scope,priority:2" json:"patient_id"`
	PaymentID snowflake.ID  `gorm:"not null;uniqueIndex" json:"payment_id"`
	Number    string        `gorm:"type:text;not null" json:"number"`
	URL       string        `gorm:"type:text" json:"url"`
	Amount    int64         `gorm:"not null" json:"amount"`
	Currency  string        `gorm:"type:text;not null;default:'EUR'" json:"currency"`
	Status    InvoiceStatus `gorm:"type:text;not null;default:'draft'" json:"status"`
	IssuedAt  *time.Time    `gorm:"" json:"issued_at,omitempty"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// PaymentSummary is a read-only projection over a patient's payments and
// active subscription. It is recomputed on demand and never persisted.
type PaymentSummary struct {
	TotalPaid          int64               `json:"total_paid"`
	TotalPending       int64               `json:"total_pending"`
	TotalOverdue       int64               `json:"total_overdue"`
	NextPaymentAmount  int64               `json:"next_payment_amount"`
	NextPaymentDate    *time.Time          `json:"next_payment_date,omitempty"`
	CurrentBalance     int64               `json:"current_balance"`
	SubscriptionStatus *SubscriptionStatus `json:"subscription_status,omitempty"`
}
