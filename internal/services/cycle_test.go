package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cuentas/internal/core"
	"cuentas/internal/services"
)

func TestCreateCycleRejectsSecondOpenCycle(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	svc := services.NewCycleService(store, nil)
	svc.SetClock(fixedClock)

	first, err := svc.CreateCycle(ctx, testUser, services.CreateCycleParams{
		ProjectID: testProject,
		StartDate: date(2025, 6, 1),
		EndDate:   date(2025, 6, 30),
	})
	require.NoError(t, err)
	assert.Equal(t, core.CycleOpen, first.Status)
	assert.Nil(t, first.Snapshot)

	_, err = svc.CreateCycle(ctx, testUser, services.CreateCycleParams{
		ProjectID: testProject,
		StartDate: date(2025, 7, 1),
		EndDate:   date(2025, 7, 31),
	})
	assert.ErrorIs(t, err, core.ErrInvariant, "a project holds one open cycle at a time")
}

func TestCreateCycleLoadsMaturedObligations(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	checking := newAccount(t, store, core.AccountChecking, "checking")
	mustTemplate(t, store, core.RecurringTemplate{
		ProjectID:   testProject,
		AccountID:   ptr(checking),
		Type:        core.Expense,
		Amount:      core.Money{Cents: 900_00},
		Description: "rent",
		Category:    "housing",
		IsActive:    true,
	})
	mustTemplate(t, store, core.RecurringTemplate{
		ProjectID:   testProject,
		Type:        core.Expense,
		Amount:      core.Money{Cents: 50_00},
		Description: "stale subscription",
		IsActive:    false,
	})

	credits := services.NewCreditService(store, nil)
	credits.SetClock(fixedClock)
	// Installments due 2025-07-06 and 2025-08-06; only the first one
	// falls inside the July cycle.
	created, err := credits.CreateCredit(ctx, testUser, services.CreateCreditParams{
		ProjectID:         testProject,
		Description:       "loan",
		PrincipalAmount:   core.Money{Cents: 200_000_00},
		InstallmentAmount: core.Money{Cents: 100_000_00},
		Installments:      2,
		StartDate:         date(2025, 6, 6),
		Frequency:         core.Monthly,
	})
	require.NoError(t, err)
	require.Zero(t, created.CalculatedPaidInstallments)

	cycles := services.NewCycleService(store, nil)
	cycles.SetClock(fixedClock)
	cycle, err := cycles.CreateCycle(ctx, testUser, services.CreateCycleParams{
		ProjectID: testProject,
		StartDate: date(2025, 7, 1),
		EndDate:   date(2025, 7, 31),
	})
	require.NoError(t, err)

	legs, err := store.LegsByCredit(ctx, created.Credit.ID)
	require.NoError(t, err)
	require.Len(t, legs, 1, "only the installment maturing inside the cycle loads")
	assert.Equal(t, date(2025, 7, 6).Time, legs[0].Date.Time)
	assert.False(t, legs[0].IsPaid)

	report, err := cycles.GetCycleReport(ctx, testUser, cycle.ID)
	require.NoError(t, err)
	assert.Zero(t, report.Totals.Expenses.Cents, "unpaid obligations stay out of the totals")

	// The rent template landed as an unpaid leg at cycle start.
	all, err := store.TransactionsByIDs(ctx, []int64{legs[0].ID - 1})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "rent", all[0].Description)
	assert.Equal(t, cycle.StartDate.Time, all[0].Date.Time)
	assert.False(t, all[0].IsPaid)
}

func TestCloseCycleFreezesSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	checking := newAccount(t, store, core.AccountChecking, "checking")
	ledger := services.NewLedgerService(store, nil)
	ledger.SetClock(fixedClock)
	cycles := services.NewCycleService(store, nil)
	cycles.SetClock(fixedClock)

	cycle, err := cycles.CreateCycle(ctx, testUser, services.CreateCycleParams{
		ProjectID: testProject,
		StartDate: date(2025, 6, 1),
		EndDate:   date(2025, 6, 30),
	})
	require.NoError(t, err)

	mustCreate := func(typ core.TransactionType, cents int64, paid bool) {
		t.Helper()
		_, err := ledger.Create(ctx, testUser, services.CreateTransactionParams{
			ProjectID: testProject,
			AccountID: ptr(checking),
			Type:      typ,
			Amount:    core.Money{Cents: cents},
			Date:      date(2025, 6, 10),
			IsPaid:    paid,
		})
		require.NoError(t, err)
	}
	mustCreate(core.Income, 500_000_00, true)
	mustCreate(core.Expense, 300_000_00, true)
	mustCreate(core.Expense, 999_999_00, false) // unpaid, excluded

	closed, err := cycles.CloseCycle(ctx, testUser, cycle.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, core.CycleClosed, closed.Status)
	require.NotNil(t, closed.Snapshot)
	assert.Equal(t, int64(500_000_00), closed.Snapshot.Income.Cents)
	assert.Equal(t, int64(300_000_00), closed.Snapshot.Expenses.Cents)
	assert.Equal(t, int64(200_000_00), closed.Snapshot.Balance.Cents)

	// Closing again is invalid.
	_, err = cycles.CloseCycle(ctx, testUser, cycle.ID, nil)
	assert.ErrorIs(t, err, core.ErrInvariant)

	// The frozen snapshot no longer tracks the ledger.
	mustCreate(core.Income, 100_000_00, true)
	report, err := cycles.GetCycleReport(ctx, testUser, cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500_000_00), report.Totals.Income.Cents)
}

func TestCloseCycleRejectsEndBeforeStart(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	cycles := services.NewCycleService(store, nil)
	cycles.SetClock(fixedClock)

	cycle, err := cycles.CreateCycle(ctx, testUser, services.CreateCycleParams{
		ProjectID: testProject,
		StartDate: date(2025, 6, 1),
		EndDate:   date(2025, 6, 30),
	})
	require.NoError(t, err)

	bad := date(2025, 5, 31)
	_, err = cycles.CloseCycle(ctx, testUser, cycle.ID, &bad)
	assert.ErrorIs(t, err, core.ErrInvariant)
}

func TestReopenCycleClearsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	cycles := services.NewCycleService(store, nil)
	cycles.SetClock(fixedClock)

	cycle, err := cycles.CreateCycle(ctx, testUser, services.CreateCycleParams{
		ProjectID: testProject,
		StartDate: date(2025, 6, 1),
		EndDate:   date(2025, 6, 30),
	})
	require.NoError(t, err)
	_, err = cycles.CloseCycle(ctx, testUser, cycle.ID, nil)
	require.NoError(t, err)

	reopened, err := cycles.ReopenCycle(ctx, testUser, cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, core.CycleOpen, reopened.Status)
	assert.Nil(t, reopened.Snapshot)

	// Reopening needs the open slot free.
	_, err = cycles.CloseCycle(ctx, testUser, cycle.ID, nil)
	require.NoError(t, err)
	_, err = cycles.CreateCycle(ctx, testUser, services.CreateCycleParams{
		ProjectID: testProject,
		StartDate: date(2025, 7, 1),
		EndDate:   date(2025, 7, 31),
	})
	require.NoError(t, err)
	_, err = cycles.ReopenCycle(ctx, testUser, cycle.ID)
	assert.ErrorIs(t, err, core.ErrInvariant)
}

func TestRecalculateCycleRefreshesSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	checking := newAccount(t, store, core.AccountChecking, "checking")
	ledger := services.NewLedgerService(store, nil)
	ledger.SetClock(fixedClock)
	cycles := services.NewCycleService(store, nil)
	cycles.SetClock(fixedClock)

	cycle, err := cycles.CreateCycle(ctx, testUser, services.CreateCycleParams{
		ProjectID: testProject,
		StartDate: date(2025, 6, 1),
		EndDate:   date(2025, 6, 30),
	})
	require.NoError(t, err)
	closed, err := cycles.CloseCycle(ctx, testUser, cycle.ID, nil)
	require.NoError(t, err)
	require.Zero(t, closed.Snapshot.Income.Cents)

	_, err = ledger.Create(ctx, testUser, services.CreateTransactionParams{
		ProjectID: testProject,
		AccountID: ptr(checking),
		Type:      core.Income,
		Amount:    core.Money{Cents: 42_000_00},
		Date:      date(2025, 6, 15),
		IsPaid:    true,
	})
	require.NoError(t, err)

	recalced, err := cycles.RecalculateCycle(ctx, testUser, cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, core.CycleClosed, recalced.Status, "recalculation keeps the cycle closed")
	assert.Equal(t, int64(42_000_00), recalced.Snapshot.Income.Cents)

	_, err = cycles.ReopenCycle(ctx, testUser, cycle.ID)
	require.NoError(t, err)
	_, err = cycles.RecalculateCycle(ctx, testUser, cycle.ID)
	assert.ErrorIs(t, err, core.ErrInvariant, "only closed cycles recalculate")
}

func TestDeleteCycleLeavesTransactions(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	checking := newAccount(t, store, core.AccountChecking, "checking")
	ledger := services.NewLedgerService(store, nil)
	ledger.SetClock(fixedClock)
	cycles := services.NewCycleService(store, nil)
	cycles.SetClock(fixedClock)

	cycle, err := cycles.CreateCycle(ctx, testUser, services.CreateCycleParams{
		ProjectID: testProject,
		StartDate: date(2025, 6, 1),
		EndDate:   date(2025, 6, 30),
	})
	require.NoError(t, err)

	tx, err := ledger.Create(ctx, testUser, services.CreateTransactionParams{
		ProjectID: testProject,
		AccountID: ptr(checking),
		Type:      core.Expense,
		Amount:    core.Money{Cents: 10_00},
		Date:      date(2025, 6, 10),
		IsPaid:    true,
	})
	require.NoError(t, err)

	require.NoError(t, cycles.DeleteCycle(ctx, testUser, cycle.ID))
	_, err = store.Cycle(ctx, cycle.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	kept, err := store.Transaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10_00), kept.Amount.Cents, "cycle deletion never cascades")
}

func TestSavingsFundCountsInSnapshotBuckets(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	checking := newAccount(t, store, core.AccountChecking, "checking")
	ledger := services.NewLedgerService(store, nil)
	ledger.SetClock(fixedClock)
	cycles := services.NewCycleService(store, nil)
	cycles.SetClock(fixedClock)

	cycle, err := cycles.CreateCycle(ctx, testUser, services.CreateCycleParams{
		ProjectID: testProject,
		StartDate: date(2025, 6, 1),
		EndDate:   date(2025, 6, 30),
	})
	require.NoError(t, err)

	_, err = ledger.Create(ctx, testUser, services.CreateTransactionParams{
		ProjectID:     testProject,
		AccountID:     ptr(checking),
		Type:          core.Expense,
		Amount:        core.Money{Cents: 120_000_00},
		Date:          date(2025, 6, 5),
		Description:   "emergency fund",
		IsPaid:        true,
		IsSavingsFund: true,
	})
	require.NoError(t, err)

	closed, err := cycles.CloseCycle(ctx, testUser, cycle.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(120_000_00), closed.Snapshot.Savings.Cents)
	assert.Equal(t, int64(120_000_00), closed.Snapshot.Expenses.Cents,
		"fund deposits spend cash and count as expenses too")
}
