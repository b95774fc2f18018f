// Package scheduler runs the background sweep that materializes pending
// payments past their due date as overdue.
package scheduler

import (
	"context"
	"time"

	"github.com/clinovia/billing/internal/billing/domain"
	"github.com/clinovia/billing/internal/clock"
	"github.com/clinovia/billing/internal/config"
	"github.com/clinovia/billing/internal/events"
	"github.com/clinovia/billing/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Params collects the worker dependencies from the fx graph.
type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Cfg     config.Config
	Outbox  *events.Outbox          `optional:"true"`
	Metrics *metrics.BillingMetrics `optional:"true"`
}

// OverdueWorker periodically transitions pending payments whose due date has
// elapsed. Summaries already classify them as overdue at read time; the sweep
// makes the stored status match.
type OverdueWorker struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	outbox   *events.Outbox
	metrics  *metrics.BillingMetrics
	interval time.Duration
	batch    int
}

// NewOverdueWorker builds the sweep worker.
func NewOverdueWorker(p Params) *OverdueWorker {
	interval := p.Cfg.OverdueSweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	batch := p.Cfg.OverdueSweepBatch
	if batch <= 0 {
		batch = 500
	}
	return &OverdueWorker{
		db:       p.DB,
		log:      p.Log.Named("scheduler.overdue"),
		clock:    p.Clock,
		outbox:   p.Outbox,
		metrics:  p.Metrics,
		interval: interval,
		batch:    batch,
	}
}

// RunForever sweeps on the configured interval until the context is done.
func (w *OverdueWorker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		swept, err := w.SweepOnce(ctx)
		if err != nil {
			w.log.Warn("overdue sweep failed", zap.Error(err))
		} else if swept > 0 {
			w.log.Info("overdue sweep", zap.Int("payments", swept))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SweepOnce transitions at most one batch of due pending payments and returns
// how many rows changed.
func (w *OverdueWorker) SweepOnce(ctx context.Context) (int, error) {
	now := w.clock.Now()
	total := 0
	for {
		ids, err := w.dueBatch(ctx, now)
		if err != nil {
			return total, err
		}
		if len(ids) == 0 {
			return total, nil
		}

		// Status is rechecked in the UPDATE so a payment settled between the
		// two statements is left alone.
		result := w.db.WithContext(ctx).Model(&domain.Payment{}).
			Where("id IN ? AND status = ?", ids, domain.PaymentStatusPending).
			Updates(map[string]any{
				"status":     domain.PaymentStatusOverdue,
				"updated_at": now,
			})
		if result.Error != nil {
			return total, result.Error
		}
		total += int(result.RowsAffected)
		w.metrics.AddOverdueTransitions(int(result.RowsAffected))
		if result.RowsAffected > 0 {
			w.publishTransitions(ctx, ids)
		}

		if len(ids) < w.batch {
			return total, nil
		}
	}
}

// publishTransitions emits one payment.overdue event per payment the batch
// actually moved. Reloading by status excludes rows a concurrent writer
// settled between the pluck and the update; the dedupe key makes a re-sweep
// after a crash harmless.
func (w *OverdueWorker) publishTransitions(ctx context.Context, ids []int64) {
	if w.outbox == nil {
		return
	}
	var transitioned []domain.Payment
	err := w.db.WithContext(ctx).
		Where("id IN ? AND status = ?", ids, domain.PaymentStatusOverdue).
		Find(&transitioned).Error
	if err != nil {
		w.log.Warn("load transitioned payments", zap.Error(err))
		return
	}
	for i := range transitioned {
		p := &transitioned[i]
		payload := events.PaymentPayload{
			PaymentID: p.ID.String(),
			PatientID: p.PatientID,
			Amount:    p.Amount,
			Currency:  p.Currency,
			Status:    string(p.Status),
		}
		err := w.outbox.Publish(ctx, events.Event{
			CenterID:  p.CenterID,
			PatientID: p.PatientID,
			Type:      events.EventPaymentOverdue,
			Payload:   payload.ToMap(),
			DedupeKey: events.EventPaymentOverdue + ":" + p.ID.String(),
		})
		if err != nil {
			w.log.Warn("publish overdue event", zap.String("payment_id", p.ID.String()), zap.Error(err))
		}
	}
}

func (w *OverdueWorker) dueBatch(ctx context.Context, now time.Time) ([]int64, error) {
	var ids []int64
	err := w.db.WithContext(ctx).Model(&domain.Payment{}).
		Where("status = ? AND due_date IS NOT NULL AND due_date < ?", domain.PaymentStatusPending, now).
		Order("due_date ASC").
		Limit(w.batch).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
