package processor

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

// Stub is the development gateway: it settles every charge and assigns a
// synthetic transaction id. DeclineFunc, when set, can force declines.
type Stub struct {
	DeclineFunc func(req ChargeRequest) bool
}

// NewStub builds the always-succeeding development processor.
func NewStub() *Stub {
	return &Stub{}
}

// Charge settles the request unless DeclineFunc rejects it.
func (s *Stub) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return ChargeResult{}, err
	}
	if s.DeclineFunc != nil && s.DeclineFunc(req) {
		return ChargeResult{}, ErrDeclined
	}
	return ChargeResult{TransactionID: "txn_" + uuid.NewString()}, nil
}

// Module provides the stub processor.
var Module = fx.Module("processor",
	fx.Provide(func() Processor {
		return NewStub()
	}),
)
