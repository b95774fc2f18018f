// Package billing wires the billing domain service.
package billing

import (
	"github.com/clinovia/billing/internal/billing/service"
	"github.com/clinovia/billing/internal/events"
	"go.uber.org/fx"
)

// Module provides the billing service and its outbox.
var Module = fx.Module("billing.service",
	fx.Provide(events.NewOutbox),
	fx.Provide(service.NewService),
)
