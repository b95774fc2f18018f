package portal

import (
	"context"

	"github.com/clinovia/billing/internal/billing/domain"
)

// LiveSource serves portal data from the billing service, pinned to one
// patient scope.
type LiveSource struct {
	svc       domain.Service
	centerID  string
	patientID string
}

// NewLiveSource binds the billing service to a patient session.
func NewLiveSource(svc domain.Service, centerID, patientID string) *LiveSource {
	return &LiveSource{svc: svc, centerID: centerID, patientID: patientID}
}

func (s *LiveSource) Payments(ctx context.Context, filters domain.Filters) ([]domain.Payment, error) {
	return s.svc.ListPayments(ctx, s.centerID, s.patientID, filters)
}

func (s *LiveSource) PaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	return s.svc.ListPaymentMethods(ctx, s.centerID, s.patientID)
}

func (s *LiveSource) ActiveSubscription(ctx context.Context) (*domain.Subscription, error) {
	return s.svc.GetActiveSubscription(ctx, s.centerID, s.patientID)
}

func (s *LiveSource) Summary(ctx context.Context) (domain.PaymentSummary, error) {
	return s.svc.GetSummary(ctx, s.centerID, s.patientID)
}

func (s *LiveSource) Process(ctx context.Context, req domain.ProcessRequest) (domain.ProcessResponse, error) {
	return s.svc.ProcessPayment(ctx, s.centerID, s.patientID, req)
}
