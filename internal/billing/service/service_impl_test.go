package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/clinovia/billing/internal/billing/domain"
	"github.com/clinovia/billing/internal/clock"
	"github.com/clinovia/billing/internal/events"
	"github.com/clinovia/billing/internal/processor"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	testCenter  = "center-01"
	testPatient = "patient-01"
)

type testEnv struct {
	svc  domain.Service
	db   *gorm.DB
	stub *processor.Stub
	node *snowflake.Node
	now  time.Time
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.Payment{},
		&domain.PaymentMethod{},
		&domain.Subscription{},
		&domain.Invoice{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Exec(`CREATE TABLE billing_events (
		id INTEGER PRIMARY KEY,
		center_id TEXT NOT NULL,
		patient_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload TEXT,
		dedupe_key TEXT,
		published BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMP NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create billing_events: %v", err)
	}
	if err := db.Exec(`CREATE UNIQUE INDEX ux_billing_events_dedupe ON billing_events (center_id, dedupe_key)`).Error; err != nil {
		t.Fatalf("create dedupe index: %v", err)
	}

	node, err := snowflake.NewNode(7)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	stub := processor.NewStub()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	svc := NewService(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clock.Fixed{At: now},
		Processor: stub,
		Outbox:    events.NewOutbox(db, node),
	})
	return &testEnv{svc: svc, db: db, stub: stub, node: node, now: now}
}

func (e *testEnv) createMethod(t *testing.T, patientID string, methodType domain.PaymentMethodType, isDefault, isActive bool) domain.PaymentMethod {
	t.Helper()
	method := domain.PaymentMethod{
		ID:        e.node.Generate(),
		CenterID:  testCenter,
		PatientID: patientID,
		Type:      methodType,
		IsDefault: isDefault,
		IsActive:  isActive,
		CreatedAt: e.now,
		UpdatedAt: e.now,
	}
	if err := e.db.Create(&method).Error; err != nil {
		t.Fatalf("create payment method: %v", err)
	}
	return method
}

func (e *testEnv) createPayment(t *testing.T, patientID string, amount int64, status domain.PaymentStatus, methodType domain.PaymentMethodType, dueDate *time.Time, createdAt time.Time) domain.Payment {
	t.Helper()
	payment := domain.Payment{
		ID:        e.node.Generate(),
		CenterID:  testCenter,
		PatientID: patientID,
		Amount:    amount,
		Currency:  domain.DefaultCurrency,
		Status:    status,
		Method:    methodType,
		DueDate:   dueDate,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if err := e.db.Create(&payment).Error; err != nil {
		t.Fatalf("create payment: %v", err)
	}
	return payment
}

func (e *testEnv) createSubscription(t *testing.T, patientID string, status domain.SubscriptionStatus, createdAt time.Time) domain.Subscription {
	t.Helper()
	sub := domain.Subscription{
		ID:                 e.node.Generate(),
		CenterID:           testCenter,
		PatientID:          patientID,
		PlanName:           "Plan Terapia Mensual",
		Status:             status,
		Amount:             24000,
		Currency:           domain.DefaultCurrency,
		Interval:           domain.IntervalMonthly,
		CurrentPeriodStart: createdAt,
		CurrentPeriodEnd:   createdAt.AddDate(0, 1, 0),
		NextBillingDate:    createdAt.AddDate(0, 1, 0),
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
	}
	if err := e.db.Create(&sub).Error; err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	return sub
}

func (e *testEnv) countEvents(t *testing.T, eventType string) int64 {
	t.Helper()
	var n int64
	if err := e.db.Table("billing_events").Where("event_type = ?", eventType).Count(&n).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	return n
}

func TestListPaymentsScopeValidation(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	if _, err := env.svc.ListPayments(ctx, "  ", testPatient, domain.Filters{}); !errors.Is(err, domain.ErrInvalidCenter) {
		t.Fatalf("expected ErrInvalidCenter, got %v", err)
	}
	if _, err := env.svc.ListPayments(ctx, testCenter, "", domain.Filters{}); !errors.Is(err, domain.ErrInvalidPatient) {
		t.Fatalf("expected ErrInvalidPatient, got %v", err)
	}
}

func TestListPaymentsFiltersAndOrder(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	env.createPayment(t, testPatient, 100, domain.PaymentStatusPaid, domain.PaymentMethodCard, nil, env.now.Add(-3*time.Hour))
	env.createPayment(t, testPatient, 200, domain.PaymentStatusPending, domain.PaymentMethodCash, nil, env.now.Add(-2*time.Hour))
	env.createPayment(t, testPatient, 300, domain.PaymentStatusPending, domain.PaymentMethodCard, nil, env.now.Add(-1*time.Hour))
	env.createPayment(t, "other-patient", 400, domain.PaymentStatusPaid, domain.PaymentMethodCard, nil, env.now)

	all, err := env.svc.ListPayments(ctx, testCenter, testPatient, domain.Filters{})
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 payments in scope, got %d", len(all))
	}
	if all[0].Amount != 300 || all[2].Amount != 100 {
		t.Fatalf("expected newest first, got %d then %d", all[0].Amount, all[2].Amount)
	}

	pending, err := env.svc.ListPayments(ctx, testCenter, testPatient, domain.Filters{
		Status: []domain.PaymentStatus{domain.PaymentStatusPending},
	})
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending payments, got %d", len(pending))
	}

	cardPending, err := env.svc.ListPayments(ctx, testCenter, testPatient, domain.Filters{
		Status:  []domain.PaymentStatus{domain.PaymentStatusPending},
		Methods: []domain.PaymentMethodType{domain.PaymentMethodCard},
	})
	if err != nil {
		t.Fatalf("list card pending: %v", err)
	}
	if len(cardPending) != 1 || cardPending[0].Amount != 300 {
		t.Fatalf("expected the 300 card pending payment, got %+v", cardPending)
	}
}

func TestGetSummaryClassifiesOverdueAtReadTime(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	due := env.now.AddDate(0, 0, 3)
	elapsed := env.now.AddDate(0, 0, -2)
	env.createPayment(t, testPatient, 8000, domain.PaymentStatusPaid, domain.PaymentMethodCard, nil, env.now.Add(-3*time.Hour))
	env.createPayment(t, testPatient, 12000, domain.PaymentStatusPending, domain.PaymentMethodCard, &due, env.now.Add(-2*time.Hour))
	env.createPayment(t, testPatient, 8000, domain.PaymentStatusPending, domain.PaymentMethodCard, &elapsed, env.now.Add(-1*time.Hour))
	env.createSubscription(t, testPatient, domain.SubscriptionStatusActive, env.now.Add(-time.Hour))

	summary, err := env.svc.GetSummary(ctx, testCenter, testPatient)
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if summary.TotalPaid != 8000 || summary.TotalPending != 12000 || summary.TotalOverdue != 8000 {
		t.Fatalf("unexpected partition: %+v", summary)
	}
	if summary.NextPaymentAmount != 12000 || summary.NextPaymentDate == nil || !summary.NextPaymentDate.Equal(due) {
		t.Fatalf("unexpected next payment: %+v", summary)
	}
	if summary.CurrentBalance != 20000 {
		t.Fatalf("expected balance 20000, got %d", summary.CurrentBalance)
	}
	if summary.SubscriptionStatus == nil || *summary.SubscriptionStatus != domain.SubscriptionStatusActive {
		t.Fatalf("expected active subscription status, got %v", summary.SubscriptionStatus)
	}

	// The read-time classification must not persist anything.
	var stored domain.Payment
	if err := env.db.Where("amount = ?", 8000).Where("due_date IS NOT NULL").First(&stored).Error; err != nil {
		t.Fatalf("load stored payment: %v", err)
	}
	if stored.Status != domain.PaymentStatusPending {
		t.Fatalf("expected stored status pending, got %s", stored.Status)
	}
}

func TestListPaymentMethodsDefaultFirst(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	env.createMethod(t, testPatient, domain.PaymentMethodCash, false, true)
	def := env.createMethod(t, testPatient, domain.PaymentMethodCard, true, true)
	env.createMethod(t, testPatient, domain.PaymentMethodPaypal, false, false)

	methods, err := env.svc.ListPaymentMethods(ctx, testCenter, testPatient)
	if err != nil {
		t.Fatalf("list methods: %v", err)
	}
	if len(methods) != 2 {
		t.Fatalf("expected inactive methods hidden, got %d", len(methods))
	}
	if methods[0].ID != def.ID {
		t.Fatalf("expected default method first, got %v", methods[0].ID)
	}
}

func TestGetActiveSubscriptionSelection(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	sub, err := env.svc.GetActiveSubscription(ctx, testCenter, testPatient)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if sub != nil {
		t.Fatalf("expected nil without subscriptions, got %+v", sub)
	}

	env.createSubscription(t, testPatient, domain.SubscriptionStatusCancelled, env.now.Add(-48*time.Hour))
	trialing := env.createSubscription(t, testPatient, domain.SubscriptionStatusTrialing, env.now.Add(-time.Hour))

	sub, err = env.svc.GetActiveSubscription(ctx, testCenter, testPatient)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if sub == nil || sub.ID != trialing.ID {
		t.Fatalf("expected the trialing subscription, got %+v", sub)
	}
}

func TestProcessPaymentSuccess(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	method := env.createMethod(t, testPatient, domain.PaymentMethodCard, true, true)

	resp, err := env.svc.ProcessPayment(ctx, testCenter, testPatient, domain.ProcessRequest{
		Amount:          5000,
		Description:     "Sesión individual",
		PaymentMethodID: method.ID,
	})
	if err != nil {
		t.Fatalf("process payment: %v", err)
	}
	if !resp.Success || resp.Status != domain.PaymentStatusPaid {
		t.Fatalf("expected settled response, got %+v", resp)
	}
	if resp.TransactionID == "" || resp.PaymentID == "" {
		t.Fatalf("expected ids on success, got %+v", resp)
	}

	payments, err := env.svc.ListPayments(ctx, testCenter, testPatient, domain.Filters{})
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(payments))
	}
	p := payments[0]
	if p.Status != domain.PaymentStatusPaid {
		t.Fatalf("expected paid, got %s", p.Status)
	}
	if p.PaidDate == nil || !p.PaidDate.Equal(env.now) {
		t.Fatalf("expected paid date %v, got %v", env.now, p.PaidDate)
	}
	if p.TransactionID == nil || *p.TransactionID != resp.TransactionID {
		t.Fatalf("expected transaction id %q, got %v", resp.TransactionID, p.TransactionID)
	}
	if p.Currency != domain.DefaultCurrency {
		t.Fatalf("expected default currency, got %s", p.Currency)
	}
	if n := env.countEvents(t, events.EventPaymentPaid); n != 1 {
		t.Fatalf("expected 1 paid event, got %d", n)
	}
}

func TestProcessPaymentWithoutKeyChargesTwice(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	method := env.createMethod(t, testPatient, domain.PaymentMethodCard, true, true)

	req := domain.ProcessRequest{
		Amount:          5000,
		Description:     "Sesión individual",
		PaymentMethodID: method.ID,
	}
	first, err := env.svc.ProcessPayment(ctx, testCenter, testPatient, req)
	if err != nil {
		t.Fatalf("first charge: %v", err)
	}
	second, err := env.svc.ProcessPayment(ctx, testCenter, testPatient, req)
	if err != nil {
		t.Fatalf("second charge: %v", err)
	}

	if !first.Success || !second.Success {
		t.Fatalf("expected both charges settled, got %+v and %+v", first, second)
	}
	if first.PaymentID == second.PaymentID {
		t.Fatalf("identical requests without a key must create distinct payments, got %q twice", first.PaymentID)
	}

	summary, err := env.svc.GetSummary(ctx, testCenter, testPatient)
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if summary.TotalPaid != 10000 {
		t.Fatalf("expected both charges in TotalPaid, got %d", summary.TotalPaid)
	}
}

func TestProcessPaymentDeclined(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	method := env.createMethod(t, testPatient, domain.PaymentMethodCard, true, true)
	env.stub.DeclineFunc = func(req processor.ChargeRequest) bool { return true }

	resp, err := env.svc.ProcessPayment(ctx, testCenter, testPatient, domain.ProcessRequest{
		Amount:          5000,
		PaymentMethodID: method.ID,
	})
	if err != nil {
		t.Fatalf("declines are responses, not errors: %v", err)
	}
	if resp.Success || resp.Status != domain.PaymentStatusFailed {
		t.Fatalf("expected failed response, got %+v", resp)
	}
	if !strings.Contains(resp.Message, "declined") {
		t.Fatalf("expected decline message, got %q", resp.Message)
	}

	payments, err := env.svc.ListPayments(ctx, testCenter, testPatient, domain.Filters{})
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 1 || payments[0].Status != domain.PaymentStatusFailed {
		t.Fatalf("expected the failed attempt retained, got %+v", payments)
	}
	if payments[0].PaidDate != nil {
		t.Fatalf("failed payment must not carry a paid date")
	}
	if n := env.countEvents(t, events.EventPaymentFailed); n != 1 {
		t.Fatalf("expected 1 failed event, got %d", n)
	}
}

func TestProcessPaymentValidation(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	method := env.createMethod(t, testPatient, domain.PaymentMethodCard, true, true)
	inactive := env.createMethod(t, testPatient, domain.PaymentMethodPaypal, false, false)

	cases := []struct {
		name string
		req  domain.ProcessRequest
		want error
	}{
		{"zero amount", domain.ProcessRequest{Amount: 0, PaymentMethodID: method.ID}, domain.ErrInvalidAmount},
		{"negative amount", domain.ProcessRequest{Amount: -100, PaymentMethodID: method.ID}, domain.ErrInvalidAmount},
		{"bad currency", domain.ProcessRequest{Amount: 100, Currency: "EURO", PaymentMethodID: method.ID}, domain.ErrInvalidCurrency},
		{"missing method", domain.ProcessRequest{Amount: 100}, domain.ErrMissingPaymentMethod},
		{"unknown method", domain.ProcessRequest{Amount: 100, PaymentMethodID: env.node.Generate()}, domain.ErrPaymentMethodNotFound},
		{"inactive method", domain.ProcessRequest{Amount: 100, PaymentMethodID: inactive.ID}, domain.ErrPaymentMethodInactive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.svc.ProcessPayment(ctx, testCenter, testPatient, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	var count int64
	if err := env.db.Model(&domain.Payment{}).Count(&count).Error; err != nil {
		t.Fatalf("count payments: %v", err)
	}
	if count != 0 {
		t.Fatalf("rejected requests must not create records, got %d", count)
	}
}

func TestProcessPaymentIdempotency(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	method := env.createMethod(t, testPatient, domain.PaymentMethodCard, true, true)

	req := domain.ProcessRequest{
		Amount:          7500,
		PaymentMethodID: method.ID,
		IdempotencyKey:  "attempt-42",
	}
	first, err := env.svc.ProcessPayment(ctx, testCenter, testPatient, req)
	if err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	second, err := env.svc.ProcessPayment(ctx, testCenter, testPatient, req)
	if err != nil {
		t.Fatalf("second attempt: %v", err)
	}

	if second.PaymentID != first.PaymentID {
		t.Fatalf("expected the same payment id, got %q vs %q", second.PaymentID, first.PaymentID)
	}
	if second.TransactionID != first.TransactionID {
		t.Fatalf("expected the same transaction id, got %q vs %q", second.TransactionID, first.TransactionID)
	}
	if !second.Success || second.Status != domain.PaymentStatusPaid {
		t.Fatalf("expected replayed settled outcome, got %+v", second)
	}

	var count int64
	if err := env.db.Model(&domain.Payment{}).Count(&count).Error; err != nil {
		t.Fatalf("count payments: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one charge, got %d records", count)
	}
}

func TestProcessPaymentIdempotencyInProgress(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	method := env.createMethod(t, testPatient, domain.PaymentMethodCard, true, true)

	key := testCenter + ":" + testPatient + ":attempt-9"
	pending := domain.Payment{
		ID:              env.node.Generate(),
		CenterID:        testCenter,
		PatientID:       testPatient,
		Amount:          500,
		Currency:        domain.DefaultCurrency,
		Status:          domain.PaymentStatusPending,
		Method:          domain.PaymentMethodCard,
		IdempotencyKey:  &key,
		PaymentMethodID: &method.ID,
		CreatedAt:       env.now,
		UpdatedAt:       env.now,
	}
	if err := env.db.Create(&pending).Error; err != nil {
		t.Fatalf("seed pending attempt: %v", err)
	}

	_, err := env.svc.ProcessPayment(ctx, testCenter, testPatient, domain.ProcessRequest{
		Amount:          500,
		PaymentMethodID: method.ID,
		IdempotencyKey:  "attempt-9",
	})
	if !errors.Is(err, domain.ErrIdempotencyKeyInProgress) {
		t.Fatalf("expected ErrIdempotencyKeyInProgress, got %v", err)
	}
}

func TestProcessPaymentIdempotencyScopedPerPatient(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	method := env.createMethod(t, testPatient, domain.PaymentMethodCard, true, true)
	otherMethod := env.createMethod(t, "patient-02", domain.PaymentMethodCard, true, true)

	req := domain.ProcessRequest{Amount: 100, IdempotencyKey: "shared-key"}
	req.PaymentMethodID = method.ID
	first, err := env.svc.ProcessPayment(ctx, testCenter, testPatient, req)
	if err != nil {
		t.Fatalf("first patient: %v", err)
	}
	req.PaymentMethodID = otherMethod.ID
	second, err := env.svc.ProcessPayment(ctx, testCenter, "patient-02", req)
	if err != nil {
		t.Fatalf("second patient: %v", err)
	}
	if first.PaymentID == second.PaymentID {
		t.Fatalf("the same key for different patients must charge separately")
	}
}

func TestSetDefaultPaymentMethod(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	old := env.createMethod(t, testPatient, domain.PaymentMethodCard, true, true)
	next := env.createMethod(t, testPatient, domain.PaymentMethodPaypal, false, true)
	inactive := env.createMethod(t, testPatient, domain.PaymentMethodCash, false, false)

	if err := env.svc.SetDefaultPaymentMethod(ctx, testCenter, testPatient, next.ID); err != nil {
		t.Fatalf("set default: %v", err)
	}

	var methods []domain.PaymentMethod
	if err := env.db.Where("is_default = ?", true).Find(&methods).Error; err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if len(methods) != 1 || methods[0].ID != next.ID {
		t.Fatalf("expected exactly one default, the new one, got %+v", methods)
	}

	var previous domain.PaymentMethod
	if err := env.db.First(&previous, "id = ?", old.ID).Error; err != nil {
		t.Fatalf("load previous default: %v", err)
	}
	if previous.IsDefault {
		t.Fatalf("expected previous default cleared")
	}

	if err := env.svc.SetDefaultPaymentMethod(ctx, testCenter, testPatient, env.node.Generate()); !errors.Is(err, domain.ErrPaymentMethodNotFound) {
		t.Fatalf("expected ErrPaymentMethodNotFound, got %v", err)
	}
	if err := env.svc.SetDefaultPaymentMethod(ctx, testCenter, testPatient, inactive.ID); !errors.Is(err, domain.ErrPaymentMethodInactive) {
		t.Fatalf("expected ErrPaymentMethodInactive, got %v", err)
	}
}

func TestDeactivatePaymentMethod(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	method := env.createMethod(t, testPatient, domain.PaymentMethodCard, true, true)

	if err := env.svc.DeactivatePaymentMethod(ctx, testCenter, testPatient, method.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	methods, err := env.svc.ListPaymentMethods(ctx, testCenter, testPatient)
	if err != nil {
		t.Fatalf("list methods: %v", err)
	}
	if len(methods) != 0 {
		t.Fatalf("expected deactivated method hidden, got %+v", methods)
	}

	var stored domain.PaymentMethod
	if err := env.db.First(&stored, "id = ?", method.ID).Error; err != nil {
		t.Fatalf("expected the row retained: %v", err)
	}
	if stored.IsActive || stored.IsDefault {
		t.Fatalf("expected flags cleared, got %+v", stored)
	}

	if err := env.svc.DeactivatePaymentMethod(ctx, testCenter, testPatient, env.node.Generate()); !errors.Is(err, domain.ErrPaymentMethodNotFound) {
		t.Fatalf("expected ErrPaymentMethodNotFound, got %v", err)
	}
}

func TestCancelSubscriptionImmediate(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.createSubscription(t, testPatient, domain.SubscriptionStatusActive, env.now.Add(-time.Hour))

	sub, err := env.svc.CancelSubscription(ctx, testCenter, testPatient, false)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if sub.Status != domain.SubscriptionStatusCancelled || sub.CancelledAt == nil {
		t.Fatalf("expected immediate cancellation, got %+v", sub)
	}

	active, err := env.svc.GetActiveSubscription(ctx, testCenter, testPatient)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if active != nil {
		t.Fatalf("expected no active subscription after cancel, got %+v", active)
	}
	if n := env.countEvents(t, events.EventSubscriptionCancel); n != 1 {
		t.Fatalf("expected 1 cancel event, got %d", n)
	}
}

func TestCancelSubscriptionAtPeriodEnd(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.createSubscription(t, testPatient, domain.SubscriptionStatusActive, env.now.Add(-time.Hour))

	sub, err := env.svc.CancelSubscription(ctx, testCenter, testPatient, true)
	if err != nil {
		t.Fatalf("cancel at period end: %v", err)
	}
	if sub.Status != domain.SubscriptionStatusActive || !sub.CancelAtPeriodEnd || sub.CancelledAt != nil {
		t.Fatalf("expected active flagged subscription, got %+v", sub)
	}

	active, err := env.svc.GetActiveSubscription(ctx, testCenter, testPatient)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if active == nil || !active.CancelAtPeriodEnd {
		t.Fatalf("expected subscription still active with the flag set, got %+v", active)
	}
}

func TestCancelSubscriptionWithoutActive(t *testing.T) {
	env := setupEnv(t)
	if _, err := env.svc.CancelSubscription(context.Background(), testCenter, testPatient, false); !errors.Is(err, domain.ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
	}
}

func TestGetInvoice(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	payment := env.createPayment(t, testPatient, 5000, domain.PaymentStatusPaid, domain.PaymentMethodCard, nil, env.now)
	issued := env.now
	invoice := domain.Invoice{
		ID:        env.node.Generate(),
		CenterID:  testCenter,
		PatientID: testPatient,
		PaymentID: payment.ID,
		Number:    "INV-2026-0001",
		Amount:    5000,
		Currency:  domain.DefaultCurrency,
		Status:    domain.InvoiceStatusIssued,
		IssuedAt:  &issued,
		CreatedAt: env.now,
	}
	if err := env.db.Create(&invoice).Error; err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	got, err := env.svc.GetInvoice(ctx, testCenter, testPatient, invoice.ID)
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if got.Number != invoice.Number {
		t.Fatalf("expected number %q, got %q", invoice.Number, got.Number)
	}

	if _, err := env.svc.GetInvoice(ctx, testCenter, "other-patient", invoice.ID); !errors.Is(err, domain.ErrInvoiceNotFound) {
		t.Fatalf("expected scope miss to be not found, got %v", err)
	}
	if _, err := env.svc.GetInvoice(ctx, testCenter, testPatient, env.node.Generate()); !errors.Is(err, domain.ErrInvoiceNotFound) {
		t.Fatalf("expected ErrInvoiceNotFound, got %v", err)
	}
}
