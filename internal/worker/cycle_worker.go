// Package worker runs the background processes: periodic credit
// installment maturation and the snapshot export consumer.
package worker

import (
	"context"
	"log/slog"
	"time"

	"cuentas/internal/core"
	"cuentas/internal/services"
)

// CycleWorker matures credit installments on a fixed interval so
// obligations appear in the ledger without anyone opening the app.
type CycleWorker struct {
	credits  *services.CreditService
	interval time.Duration
	now      func() time.Time
}

func NewCycleWorker(credits *services.CreditService, interval time.Duration) *CycleWorker {
	return &CycleWorker{
		credits:  credits,
		interval: interval,
		now:      time.Now,
	}
}

// Run ticks until ctx ends. The first pass happens immediately.
func (w *CycleWorker) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "Cycle worker started", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Cycle worker stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *CycleWorker) tick(ctx context.Context) {
	today := core.DateOf(w.now())
	matured, err := w.credits.MatureDueInstallments(ctx, today)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to mature credit installments",
			"error", err,
			"matured_before_failure", matured)
		return
	}
	if matured > 0 {
		slog.InfoContext(ctx, "Maturation pass complete", "matured", matured)
	}
}
