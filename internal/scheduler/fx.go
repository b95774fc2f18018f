package scheduler

import (
	"context"

	"go.uber.org/fx"
)

// Module runs the overdue sweep for the lifetime of the application.
var Module = fx.Module("scheduler",
	fx.Provide(NewOverdueWorker),
	fx.Invoke(runWorker),
)

func runWorker(lc fx.Lifecycle, worker *OverdueWorker) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go worker.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
