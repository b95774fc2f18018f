package portal

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/clinovia/billing/internal/billing/domain"
	"github.com/clinovia/billing/internal/clock"
	"github.com/google/uuid"
)

// FixtureSource is the development data source: an in-memory record set with
// an always-settling processor. It honors the same contracts as the live
// source so the UI cannot tell them apart.
type FixtureSource struct {
	clock clock.Clock
	genID *snowflake.Node

	mu           sync.Mutex
	payments     []domain.Payment
	methods      []domain.PaymentMethod
	subscription *domain.Subscription
}

// NewFixtureSource seeds the demo record set used before a backend exists.
func NewFixtureSource(genID *snowflake.Node, clk clock.Clock) *FixtureSource {
	now := clk.Now()
	dueSoon := now.AddDate(0, 0, 3)
	pastDue := now.AddDate(0, 0, -2)
	paidAt := now.AddDate(0, 0, -12)
	lastFour := "4242"
	brand := "Visa"
	expMonth, expYear := 9, now.Year()+2

	methodID := genID.Generate()
	src := &FixtureSource{
		clock: clk,
		genID: genID,
		methods: []domain.PaymentMethod{
			{
				ID:          methodID,
				CenterID:    "demo-center",
				PatientID:   "demo-patient",
				Type:        domain.PaymentMethodCard,
				IsDefault:   true,
				IsActive:    true,
				LastFour:    &lastFour,
				Brand:       &brand,
				ExpiryMonth: &expMonth,
				ExpiryYear:  &expYear,
				CreatedAt:   paidAt,
				UpdatedAt:   paidAt,
			},
		},
		subscription: &domain.Subscription{
			ID:                 genID.Generate(),
			CenterID:           "demo-center",
			PatientID:          "demo-patient",
			PlanName:           "Plan Terapia Mensual",
			PlanDescription:    "Cuatro sesiones al mes",
			Status:             domain.SubscriptionStatusActive,
			Amount:             24000,
			Currency:           domain.DefaultCurrency,
			Interval:           domain.IntervalMonthly,
			CurrentPeriodStart: now.AddDate(0, 0, -15),
			CurrentPeriodEnd:   now.AddDate(0, 0, 15),
			NextBillingDate:    now.AddDate(0, 0, 15),
			PaymentMethodID:    &methodID,
			CreatedAt:          paidAt,
			UpdatedAt:          paidAt,
		},
	}

	src.payments = []domain.Payment{
		{
			ID:          genID.Generate(),
			CenterID:    "demo-center",
			PatientID:   "demo-patient",
			Amount:      8000,
			Currency:    domain.DefaultCurrency,
			Description: "Sesión individual",
			Status:      domain.PaymentStatusPaid,
			Method:      domain.PaymentMethodCard,
			PaidDate:    &paidAt,
			CreatedAt:   paidAt,
			UpdatedAt:   paidAt,
		},
		{
			ID:          genID.Generate(),
			CenterID:    "demo-center",
			PatientID:   "demo-patient",
			Amount:      12000,
			Currency:    domain.DefaultCurrency,
			Description: "Evaluación inicial",
			Status:      domain.PaymentStatusPending,
			Method:      domain.PaymentMethodCard,
			DueDate:     &dueSoon,
			CreatedAt:   now.AddDate(0, 0, -5),
			UpdatedAt:   now.AddDate(0, 0, -5),
		},
		{
			ID:          genID.Generate(),
			CenterID:    "demo-center",
			PatientID:   "demo-patient",
			Amount:      8000,
			Currency:    domain.DefaultCurrency,
			Description: "Sesión individual",
			Status:      domain.PaymentStatusOverdue,
			Method:      domain.PaymentMethodCard,
			DueDate:     &pastDue,
			CreatedAt:   now.AddDate(0, 0, -20),
			UpdatedAt:   now.AddDate(0, 0, -20),
		},
	}
	return src
}

func (s *FixtureSource) Payments(ctx context.Context, filters domain.Filters) ([]domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		if len(filters.Status) > 0 && !containsStatus(filters.Status, p.Status) {
			continue
		}
		if len(filters.Methods) > 0 && !containsMethod(filters.Methods, p.Method) {
			continue
		}
		out = append(out, p)
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *FixtureSource) PaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.PaymentMethod, 0, len(s.methods))
	for _, m := range s.methods {
		if m.IsActive {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *FixtureSource) ActiveSubscription(ctx context.Context) (*domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subscription == nil {
		return nil, nil
	}
	switch s.subscription.Status {
	case domain.SubscriptionStatusActive, domain.SubscriptionStatusTrialing:
		sub := *s.subscription
		return &sub, nil
	}
	return nil, nil
}

func (s *FixtureSource) Summary(ctx context.Context) (domain.PaymentSummary, error) {
	sub, _ := s.ActiveSubscription(ctx)

	s.mu.Lock()
	payments := make([]domain.Payment, len(s.payments))
	copy(payments, s.payments)
	s.mu.Unlock()

	return domain.Summarize(domain.ApplyOverdue(payments, s.clock.Now()), sub), nil
}

func (s *FixtureSource) Process(ctx context.Context, req domain.ProcessRequest) (domain.ProcessResponse, error) {
	if req.Amount <= 0 {
		return domain.ProcessResponse{}, domain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	now := s.clock.Now()
	transactionID := "txn_" + uuid.NewString()
	payment := domain.Payment{
		ID:            s.genID.Generate(),
		CenterID:      "demo-center",
		PatientID:     "demo-patient",
		Amount:        req.Amount,
		Currency:      currency,
		Description:   strings.TrimSpace(req.Description),
		Status:        domain.PaymentStatusPaid,
		Method:        domain.PaymentMethodCard,
		PaidDate:      &now,
		TransactionID: &transactionID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	s.mu.Lock()
	s.payments = append(s.payments, payment)
	s.mu.Unlock()

	return domain.ProcessResponse{
		Success:       true,
		PaymentID:     payment.ID.String(),
		TransactionID: transactionID,
		Status:        domain.PaymentStatusPaid,
		Message:       "payment processed",
	}, nil
}

func containsStatus(list []domain.PaymentStatus, status domain.PaymentStatus) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

func containsMethod(list []domain.PaymentMethodType, method domain.PaymentMethodType) bool {
	for _, m := range list {
		if m == method {
			return true
		}
	}
	return false
}

func sortNewestFirst(payments []domain.Payment) {
	sort.Slice(payments, func(i, j int) bool {
		if payments[i].CreatedAt.Equal(payments[j].CreatedAt) {
			return payments[i].ID > payments[j].ID
		}
		return payments[i].CreatedAt.After(payments[j].CreatedAt)
	})
}
