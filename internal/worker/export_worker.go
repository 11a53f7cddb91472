package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cuentas/internal/amqp"
	"cuentas/internal/core"
	"cuentas/internal/services"
	"cuentas/internal/sheets"
)

// ExportWorker mirrors closed billing cycle snapshots to a spreadsheet.
// It consumes the ledger event stream and reacts only to cycle events;
// everything else is acknowledged and dropped.
type ExportWorker struct {
	store  services.Store
	sheets sheets.SnapshotAppender
}

func NewExportWorker(store services.Store, appender sheets.SnapshotAppender) *ExportWorker {
	return &ExportWorker{store: store, sheets: appender}
}

// HandleEvent processes one ledger event. Returning an error requeues
// the delivery, so transient sheet failures retry.
func (w *ExportWorker) HandleEvent(ctx context.Context, event *amqp.Event) error {
	switch event.Kind {
	case "cycle.closed", "cycle.recalculated":
	default:
		return nil
	}

	cycle, err := w.store.Cycle(ctx, event.EntityID)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted between close and export; nothing left to mirror.
		slog.WarnContext(ctx, "Cycle vanished before export", "cycle_id", event.EntityID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load cycle %d: %w", event.EntityID, err)
	}
	if cycle.Status != core.CycleClosed || cycle.Snapshot == nil {
		// Reopened since the event fired; the snapshot no longer exists.
		slog.InfoContext(ctx, "Skipping export of reopened cycle", "cycle_id", cycle.ID)
		return nil
	}

	ref, err := w.sheets.AppendSnapshot(ctx, event.ProjectID, cycle)
	if err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Cycle snapshot exported",
		"cycle_id", cycle.ID,
		"project_id", event.ProjectID,
		"row_ref", ref)
	return nil
}
