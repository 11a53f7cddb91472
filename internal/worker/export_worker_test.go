package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"cuentas/internal/amqp"
	"cuentas/internal/core"
	"cuentas/internal/storage/memory"
)

type recordingAppender struct {
	appended []int64
	err      error
}

func (a *recordingAppender) AppendSnapshot(ctx context.Context, projectID int64, cycle core.BillingCycle) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.appended = append(a.appended, cycle.ID)
	return "Cycles!A1:H1", nil
}

func closedCycle(t *testing.T, store *memory.Store, projectID int64) core.BillingCycle {
	t.Helper()
	cycle := core.BillingCycle{
		ProjectID: projectID,
		StartDate: core.NewDate(2025, 6, 1),
		EndDate:   core.NewDate(2025, 6, 30),
		Status:    core.CycleClosed,
		Snapshot: &core.CycleSnapshot{
			Income:   core.Money{Cents: 500_000_00},
			Expenses: core.Money{Cents: 300_000_00},
			Balance:  core.Money{Cents: 200_000_00},
		},
	}
	id, err := store.InsertCycle(context.Background(), cycle)
	require.NoError(t, err)
	cycle.ID = id
	return cycle
}

func TestExportWorkerAppendsClosedCycleSnapshot(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	cycle := closedCycle(t, store, 1)

	appender := &recordingAppender{}
	w := NewExportWorker(store, appender)

	err := w.HandleEvent(ctx, amqp.NewEvent("cycle.closed", 1, cycle.ID))
	require.NoError(t, err)
	require.Equal(t, []int64{cycle.ID}, appender.appended)
}

func TestExportWorkerIgnoresUnrelatedEvents(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	appender := &recordingAppender{}
	w := NewExportWorker(store, appender)

	for _, kind := range []string{"transaction.created", "transfer.deleted", "cycle.created"} {
		require.NoError(t, w.HandleEvent(ctx, amqp.NewEvent(kind, 1, 42)))
	}
	require.Empty(t, appender.appended)
}

func TestExportWorkerSkipsVanishedAndReopenedCycles(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	appender := &recordingAppender{}
	w := NewExportWorker(store, appender)

	// Cycle deleted before the event was consumed.
	require.NoError(t, w.HandleEvent(ctx, amqp.NewEvent("cycle.closed", 1, 999)))

	// Cycle reopened since the event fired; no snapshot remains.
	open := core.BillingCycle{
		ProjectID: 1,
		StartDate: core.NewDate(2025, 6, 1),
		EndDate:   core.NewDate(2025, 6, 30),
		Status:    core.CycleOpen,
	}
	id, err := store.InsertCycle(ctx, open)
	require.NoError(t, err)
	require.NoError(t, w.HandleEvent(ctx, amqp.NewEvent("cycle.closed", 1, id)))

	require.Empty(t, appender.appended)
}

func TestExportWorkerPropagatesAppendFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	cycle := closedCycle(t, store, 1)

	appender := &recordingAppender{err: errors.New("sheet unavailable")}
	w := NewExportWorker(store, appender)

	err := w.HandleEvent(ctx, amqp.NewEvent("cycle.closed", 1, cycle.ID))
	require.Error(t, err)
}
