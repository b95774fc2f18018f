// Package service implements the billing domain service on gorm.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/clinovia/billing/internal/billing/domain"
	"github.com/clinovia/billing/internal/clock"
	"github.com/clinovia/billing/internal/events"
	"github.com/clinovia/billing/internal/observability/metrics"
	"github.com/clinovia/billing/internal/processor"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Params collects the service dependencies from the fx graph.
type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Processor processor.Processor
	Outbox    *events.Outbox
	Metrics   *metrics.BillingMetrics `optional:"true"`
}

// Service is the only component that mutates payment and subscription state.
type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	processor processor.Processor
	outbox    *events.Outbox
	metrics   *metrics.BillingMetrics
}

// NewService builds the billing service.
func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("billing.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		processor: p.Processor,
		outbox:    p.Outbox,
		metrics:   p.Metrics,
	}
}

func validateScope(centerID, patientID string) (string, string, error) {
	centerID = strings.TrimSpace(centerID)
	if centerID == "" {
		return "", "", domain.ErrInvalidCenter
	}
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return "", "", domain.ErrInvalidPatient
	}
	return centerID, patientID, nil
}

// ListPayments returns the patient's payments, newest first. Filters are
// AND-combined; empty filters match everything.
func (s *Service) ListPayments(ctx context.Context, centerID, patientID string, filters domain.Filters) ([]domain.Payment, error) {
	centerID, patientID, err := validateScope(centerID, patientID)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).
		Where("center_id = ? AND patient_id = ?", centerID, patientID)
	if len(filters.Status) > 0 {
		query = query.Where("status IN ?", filters.Status)
	}
	if len(filters.Methods) > 0 {
		query = query.Where("payment_method IN ?", filters.Methods)
	}

	var payments []domain.Payment
	if err := query.Order("created_at DESC, id DESC").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// GetSummary recomputes the account projection from the current payment set
// and active subscription. Pending payments past their due date are counted as
// overdue even before the sweep worker materializes the status.
func (s *Service) GetSummary(ctx context.Context, centerID, patientID string) (domain.PaymentSummary, error) {
	payments, err := s.ListPayments(ctx, centerID, patientID, domain.Filters{})
	if err != nil {
		return domain.PaymentSummary{}, err
	}
	sub, err := s.GetActiveSubscription(ctx, centerID, patientID)
	if err != nil {
		return domain.PaymentSummary{}, err
	}

	summary := domain.Summarize(domain.ApplyOverdue(payments, s.clock.Now()), sub)
	s.metrics.IncSummaryRequest()
	return summary, nil
}

// ListPaymentMethods returns active instruments, default first.
func (s *Service) ListPaymentMethods(ctx context.Context, centerID, patientID string) ([]domain.PaymentMethod, error) {
	centerID, patientID, err := validateScope(centerID, patientID)
	if err != nil {
		return nil, err
	}

	var methods []domain.PaymentMethod
	err = s.db.WithContext(ctx).
		Where("center_id = ? AND patient_id = ? AND is_active = ?", centerID, patientID, true).
		Order("is_default DESC, created_at DESC").
		Find(&methods).Error
	if err != nil {
		return nil, err
	}
	return methods, nil
}

// GetActiveSubscription returns the patient's active or trialing subscription.
// Absence is a valid business state, not an error.
func (s *Service) GetActiveSubscription(ctx context.Context, centerID, patientID string) (*domain.Subscription, error) {
	centerID, patientID, err := validateScope(centerID, patientID)
	if err != nil {
		return nil, err
	}

	var subs []domain.Subscription
	err = s.db.WithContext(ctx).
		Where("center_id = ? AND patient_id = ? AND status IN ?",
			centerID, patientID,
			[]domain.SubscriptionStatus{domain.SubscriptionStatusActive, domain.SubscriptionStatusTrialing}).
		Order("created_at DESC").
		Limit(1).
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, nil
	}
	return &subs[0], nil
}

// ProcessPayment creates a pending payment, invokes the processor and settles
// or fails the record. Failed attempts are retained so the history stays
// auditable. A repeated IdempotencyKey returns the first attempt's outcome
// instead of charging twice; a retry that races a still-pending attempt is
// rejected with ErrIdempotencyKeyInProgress.
func (s *Service) ProcessPayment(ctx context.Context, centerID, patientID string, req domain.ProcessRequest) (domain.ProcessResponse, error) {
	centerID, patientID, err := validateScope(centerID, patientID)
	if err != nil {
		return domain.ProcessResponse{}, err
	}
	if req.Amount <= 0 {
		return domain.ProcessResponse{}, domain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	if len(currency) != 3 {
		return domain.ProcessResponse{}, domain.ErrInvalidCurrency
	}
	if req.PaymentMethodID == 0 {
		return domain.ProcessResponse{}, domain.ErrMissingPaymentMethod
	}

	method, err := s.loadPaymentMethod(ctx, centerID, patientID, req.PaymentMethodID)
	if err != nil {
		return domain.ProcessResponse{}, err
	}
	if !method.IsActive {
		return domain.ProcessResponse{}, domain.ErrPaymentMethodInactive
	}

	idempotencyKey := strings.TrimSpace(req.IdempotencyKey)
	if idempotencyKey != "" {
		existing, err := s.findByIdempotencyKey(ctx, centerID, patientID, idempotencyKey)
		if err != nil {
			return domain.ProcessResponse{}, err
		}
		if existing != nil {
			if existing.Status == domain.PaymentStatusPending {
				return domain.ProcessResponse{}, domain.ErrIdempotencyKeyInProgress
			}
			return responseFor(existing), nil
		}
	}

	now := s.clock.Now()
	payment := domain.Payment{
		ID:              s.genID.Generate(),
		CenterID:        centerID,
		PatientID:       patientID,
		Amount:          req.Amount,
		Currency:        currency,
		Description:     strings.TrimSpace(req.Description),
		Status:          domain.PaymentStatusPending,
		Method:          method.Type,
		PaymentMethodID: &method.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if idempotencyKey != "" {
		key := centerID + ":" + patientID + ":" + idempotencyKey
		payment.IdempotencyKey = &key
	}
	if req.Metadata != nil {
		payment.Metadata = datatypes.JSONMap(req.Metadata)
	}

	if err := s.db.WithContext(ctx).Create(&payment).Error; err != nil {
		// A concurrent retry may have won the unique idempotency index.
		if idempotencyKey != "" {
			existing, findErr := s.findByIdempotencyKey(ctx, centerID, patientID, idempotencyKey)
			if findErr == nil && existing != nil {
				if existing.Status == domain.PaymentStatusPending {
					return domain.ProcessResponse{}, domain.ErrIdempotencyKeyInProgress
				}
				return responseFor(existing), nil
			}
		}
		return failedResponse(), err
	}

	result, chargeErr := s.processor.Charge(ctx, processor.ChargeRequest{
		CenterID:   centerID,
		PatientID:  patientID,
		Amount:     payment.Amount,
		Currency:   payment.Currency,
		MethodType: method.Type,
		Reference:  payment.ID.String(),
	})
	if chargeErr != nil {
		return s.failPayment(ctx, &payment, chargeErr)
	}

	if err := s.settlePayment(ctx, &payment, result.TransactionID); err != nil {
		return failedResponse(), err
	}

	s.metrics.IncPaymentProcessed("paid")
	s.metrics.ObservePaymentAmount(payment.Currency, payment.Amount)
	s.publishPaymentEvent(ctx, events.EventPaymentPaid, &payment)

	return domain.ProcessResponse{
		Success:       true,
		PaymentID:     payment.ID.String(),
		TransactionID: result.TransactionID,
		Status:        domain.PaymentStatusPaid,
		Message:       "payment processed",
	}, nil
}

func (s *Service) failPayment(ctx context.Context, payment *domain.Payment, cause error) (domain.ProcessResponse, error) {
	now := s.clock.Now()
	err := s.db.WithContext(ctx).Model(&domain.Payment{}).
		Where("id = ?", payment.ID).
		Updates(map[string]any{
			"status":     domain.PaymentStatusFailed,
			"updated_at": now,
		}).Error
	if err != nil {
		s.log.Error("mark payment failed", zap.String("payment_id", payment.ID.String()), zap.Error(err))
		return failedResponse(), err
	}
	payment.Status = domain.PaymentStatusFailed

	s.metrics.IncPaymentProcessed("failed")
	s.publishPaymentEvent(ctx, events.EventPaymentFailed, payment)
	s.log.Warn("payment declined",
		zap.String("payment_id", payment.ID.String()),
		zap.String("patient_id", payment.PatientID),
		zap.Error(cause),
	)

	message := "payment could not be processed"
	if errors.Is(cause, processor.ErrDeclined) {
		message = "payment was declined by the processor"
	}
	return domain.ProcessResponse{
		Success:   false,
		PaymentID: payment.ID.String(),
		Status:    domain.PaymentStatusFailed,
		Message:   message,
	}, nil
}

func (s *Service) settlePayment(ctx context.Context, payment *domain.Payment, transactionID string) error {
	if !domain.CanTransition(payment.Status, domain.PaymentStatusPaid) {
		return domain.ErrInvalidStatusTransition
	}
	now := s.clock.Now()
	err := s.db.WithContext(ctx).Model(&domain.Payment{}).
		Where("id = ?", payment.ID).
		Updates(map[string]any{
			"status":         domain.PaymentStatusPaid,
			"paid_date":      now,
			"transaction_id": transactionID,
			"updated_at":     now,
		}).Error
	if err != nil {
		return err
	}
	payment.Status = domain.PaymentStatusPaid
	payment.PaidDate = &now
	payment.TransactionID = &transactionID
	return nil
}

func (s *Service) loadPaymentMethod(ctx context.Context, centerID, patientID string, methodID snowflake.ID) (*domain.PaymentMethod, error) {
	var methods []domain.PaymentMethod
	err := s.db.WithContext(ctx).
		Where("id = ? AND center_id = ? AND patient_id = ?", methodID, centerID, patientID).
		Limit(1).
		Find(&methods).Error
	if err != nil {
		return nil, err
	}
	if len(methods) == 0 {
		return nil, domain.ErrPaymentMethodNotFound
	}
	return &methods[0], nil
}

func (s *Service) findByIdempotencyKey(ctx context.Context, centerID, patientID, key string) (*domain.Payment, error) {
	scoped := centerID + ":" + patientID + ":" + key
	var payments []domain.Payment
	err := s.db.WithContext(ctx).
		Where("idempotency_key = ?", scoped).
		Limit(1).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, nil
	}
	return &payments[0], nil
}

func responseFor(payment *domain.Payment) domain.ProcessResponse {
	resp := domain.ProcessResponse{
		Success:   payment.Status == domain.PaymentStatusPaid,
		PaymentID: payment.ID.String(),
		Status:    payment.Status,
		Message:   "payment already processed",
	}
	if payment.TransactionID != nil {
		resp.TransactionID = *payment.TransactionID
	}
	if !resp.Success {
		resp.Message = "previous attempt for this request did not settle"
	}
	return resp
}

func failedResponse() domain.ProcessResponse {
	return domain.ProcessResponse{
		Success: false,
		Status:  domain.PaymentStatusFailed,
		Message: "payment could not be processed",
	}
}

// GetInvoice fetches an invoice by id within the patient scope.
func (s *Service) GetInvoice(ctx context.Context, centerID, patientID string, invoiceID snowflake.ID) (*domain.Invoice, error) {
	centerID, patientID, err := validateScope(centerID, patientID)
	if err != nil {
		return nil, err
	}

	var invoices []domain.Invoice
	err = s.db.WithContext(ctx).
		Where("id = ? AND center_id = ? AND patient_id = ?", invoiceID, centerID, patientID).
		Limit(1).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, domain.ErrInvoiceNotFound
	}
	return &invoices[0], nil
}

// SetDefaultPaymentMethod makes the given instrument the patient's default.
// The clear-then-set runs in one transaction so at most one default survives
// concurrent writers.
func (s *Service) SetDefaultPaymentMethod(ctx context.Context, centerID, patientID string, methodID snowflake.ID) error {
	centerID, patientID, err := validateScope(centerID, patientID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var methods []domain.PaymentMethod
		if err := tx.Where("id = ? AND center_id = ? AND patient_id = ?", methodID, centerID, patientID).
			Limit(1).Find(&methods).Error; err != nil {
			return err
		}
		if len(methods) == 0 {
			return domain.ErrPaymentMethodNotFound
		}
		if !methods[0].IsActive {
			return domain.ErrPaymentMethodInactive
		}

		if err := tx.Model(&domain.PaymentMethod{}).
			Where("center_id = ? AND patient_id = ? AND is_default = ?", centerID, patientID, true).
			Updates(map[string]any{"is_default": false, "updated_at": now}).Error; err != nil {
			return err
		}
		return tx.Model(&domain.PaymentMethod{}).
			Where("id = ?", methodID).
			Updates(map[string]any{"is_default": true, "updated_at": now}).Error
	})
	if err != nil {
		return err
	}

	s.publishEvent(ctx, events.Event{
		CenterID:  centerID,
		PatientID: patientID,
		Type:      events.EventDefaultMethodChanged,
		Payload:   map[string]any{"payment_method_id": methodID.String()},
		DedupeKey: "default_method:" + methodID.String() + ":" + now.Format(time.RFC3339Nano),
	})
	return nil
}

// DeactivatePaymentMethod soft-deletes an instrument. History keeps pointing
// at the row; it just stops showing up in reads.
func (s *Service) DeactivatePaymentMethod(ctx context.Context, centerID, patientID string, methodID snowflake.ID) error {
	centerID, patientID, err := validateScope(centerID, patientID)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Model(&domain.PaymentMethod{}).
		Where("id = ? AND center_id = ? AND patient_id = ?", methodID, centerID, patientID).
		Updates(map[string]any{
			"is_active":  false,
			"is_default": false,
			"updated_at": s.clock.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrPaymentMethodNotFound
	}
	return nil
}

// CancelSubscription cancels the patient's active subscription, either
// immediately or at the current period end.
func (s *Service) CancelSubscription(ctx context.Context, centerID, patientID string, atPeriodEnd bool) (*domain.Subscription, error) {
	sub, err := s.GetActiveSubscription(ctx, centerID, patientID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrSubscriptionNotFound
	}

	now := s.clock.Now()
	updates := map[string]any{"updated_at": now}
	if atPeriodEnd {
		updates["cancel_at_period_end"] = true
		sub.CancelAtPeriodEnd = true
	} else {
		updates["status"] = domain.SubscriptionStatusCancelled
		updates["cancelled_at"] = now
		sub.Status = domain.SubscriptionStatusCancelled
		sub.CancelledAt = &now
	}
	if err := s.db.WithContext(ctx).Model(&domain.Subscription{}).
		Where("id = ?", sub.ID).
		Updates(updates).Error; err != nil {
		return nil, err
	}
	sub.UpdatedAt = now

	s.publishEvent(ctx, events.Event{
		CenterID:  sub.CenterID,
		PatientID: sub.PatientID,
		Type:      events.EventSubscriptionCancel,
		Payload: map[string]any{
			"subscription_id":      sub.ID.String(),
			"cancel_at_period_end": atPeriodEnd,
		},
		DedupeKey: "subscription_cancel:" + sub.ID.String(),
	})
	return sub, nil
}

func (s *Service) publishPaymentEvent(ctx context.Context, eventType string, payment *domain.Payment) {
	payload := events.PaymentPayload{
		PaymentID: payment.ID.String(),
		PatientID: payment.PatientID,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		Status:    string(payment.Status),
	}
	if payment.TransactionID != nil {
		payload.TransactionID = *payment.TransactionID
	}
	s.publishEvent(ctx, events.Event{
		CenterID:  payment.CenterID,
		PatientID: payment.PatientID,
		Type:      eventType,
		Payload:   payload.ToMap(),
		DedupeKey: eventType + ":" + payment.ID.String(),
	})
}

func (s *Service) publishEvent(ctx context.Context, event events.Event) {
	if s.outbox == nil {
		return
	}
	if err := s.outbox.Publish(ctx, event); err != nil {
		s.log.Warn("outbox publish failed", zap.String("event_type", event.Type), zap.Error(err))
	}
}
