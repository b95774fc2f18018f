// Package portal binds the billing service to the shape the patient portal UI
// consumes: a snapshot of payments, methods, subscription and summary plus the
// mutations the UI may trigger.
package portal

import (
	"context"
	"sync"

	"github.com/clinovia/billing/internal/billing/domain"
	"go.uber.org/zap"
)

// DataSource abstracts where portal data comes from. Production binds the
// billing service; development binds the in-memory fixture set. The choice is
// made by injection, never by environment branching here.
type DataSource interface {
	Payments(ctx context.Context, filters domain.Filters) ([]domain.Payment, error)
	PaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error)
	ActiveSubscription(ctx context.Context) (*domain.Subscription, error)
	Summary(ctx context.Context) (domain.PaymentSummary, error)
	Process(ctx context.Context, req domain.ProcessRequest) (domain.ProcessResponse, error)
}

// Snapshot is the UI-facing view of one patient's billing state.
type Snapshot struct {
	Payments       []domain.Payment
	PaymentMethods []domain.PaymentMethod
	Subscription   *domain.Subscription
	Summary        *domain.PaymentSummary
	Loading        bool
	Error          string
	Filters        domain.Filters
}

// Portal orchestrates loads and mutations for one patient session. Safe for
// concurrent use; each patient session holds its own instance.
type Portal struct {
	source DataSource
	log    *zap.Logger

	mu       sync.RWMutex
	snapshot Snapshot
}

// New builds a portal over the given data source.
func New(source DataSource, log *zap.Logger) *Portal {
	return &Portal{
		source: source,
		log:    log.Named("portal"),
	}
}

// Snapshot returns a copy of the current state.
func (p *Portal) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}

// Refresh reloads everything from the data source. On failure the previous
// data is kept and the error is surfaced in the snapshot so the UI can offer
// a retry.
func (p *Portal) Refresh(ctx context.Context) error {
	p.setLoading(true)
	defer p.setLoading(false)

	p.mu.RLock()
	filters := p.snapshot.Filters
	p.mu.RUnlock()

	payments, err := p.source.Payments(ctx, filters)
	if err != nil {
		return p.fail(err)
	}
	methods, err := p.source.PaymentMethods(ctx)
	if err != nil {
		return p.fail(err)
	}
	subscription, err := p.source.ActiveSubscription(ctx)
	if err != nil {
		return p.fail(err)
	}
	summary, err := p.source.Summary(ctx)
	if err != nil {
		return p.fail(err)
	}

	p.mu.Lock()
	p.snapshot.Payments = payments
	p.snapshot.PaymentMethods = methods
	p.snapshot.Subscription = subscription
	p.snapshot.Summary = &summary
	p.snapshot.Error = ""
	p.mu.Unlock()
	return nil
}

// ProcessPayment submits a charge and then reloads the whole snapshot. The
// full reload, not an incremental patch, is what keeps the summary consistent
// with the new record.
func (p *Portal) ProcessPayment(ctx context.Context, req domain.ProcessRequest) (domain.ProcessResponse, error) {
	resp, err := p.source.Process(ctx, req)
	if err != nil {
		_ = p.fail(err)
		return resp, err
	}
	if refreshErr := p.Refresh(ctx); refreshErr != nil {
		p.log.Warn("refresh after payment failed", zap.Error(refreshErr))
	}
	return resp, nil
}

// UpdateFilters replaces the active filters and reloads.
func (p *Portal) UpdateFilters(ctx context.Context, filters domain.Filters) error {
	p.mu.Lock()
	p.snapshot.Filters = filters
	p.mu.Unlock()
	return p.Refresh(ctx)
}

// ClearFilters resets filters and reloads.
func (p *Portal) ClearFilters(ctx context.Context) error {
	return p.UpdateFilters(ctx, domain.Filters{})
}

func (p *Portal) setLoading(loading bool) {
	p.mu.Lock()
	p.snapshot.Loading = loading
	p.mu.Unlock()
}

func (p *Portal) fail(err error) error {
	p.mu.Lock()
	p.snapshot.Error = err.Error()
	p.mu.Unlock()
	return err
}
