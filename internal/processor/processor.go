// Package processor models the external payment gateway boundary. The service
// only tracks ledger state; settlement itself happens outside.
package processor

import (
	"context"
	"errors"

	"github.com/clinovia/billing/internal/billing/domain"
)

// ChargeRequest asks the gateway to settle an amount against an instrument.
type ChargeRequest struct {
	CenterID   string
	PatientID  string
	Amount     int64
	Currency   string
	MethodType domain.PaymentMethodType
	Reference  string
}

// ChargeResult is the gateway's settlement outcome.
type ChargeResult struct {
	TransactionID string
}

// Processor settles charges. Implementations must be safe for concurrent use.
type Processor interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

// ErrDeclined is returned when the gateway refuses the charge. The payment
// record is kept in failed state so the attempt stays auditable.
var ErrDeclined = errors.New("charge_declined")
