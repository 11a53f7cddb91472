package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cuentas/internal/core"
	"cuentas/internal/services"
)

func TestCapacityReportSplitsPersonalAndExternal(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.SetDebtLimit(ctx, testProject, ptr(int64(500_000_00))))
	card := newAccount(t, store, core.AccountCreditCard, "card")

	cards := services.NewCardService(store, nil)
	cards.SetClock(fixedClock)
	buy := func(desc string, cents int64, installments int, external bool) {
		t.Helper()
		_, err := cards.CreateCardPurchase(ctx, testUser, services.CreateCardPurchaseParams{
			ProjectID:       testProject,
			AccountID:       card,
			Description:     desc,
			OriginalAmount:  core.Money{Cents: cents},
			Installments:    installments,
			FirstChargeDate: date(2025, 7, 1),
			IsExternal:      external,
		})
		require.NoError(t, err)
	}
	buy("laptop", 300_000_00, 3, false) // 100k monthly
	buy("sofa", 200_000_00, 2, false)   // 100k monthly
	buy("gift", 120_000_00, 4, true)    // 30k monthly, someone else pays

	svc := services.NewCapacityService(store)
	report, err := svc.Report(ctx, testUser, testProject)
	require.NoError(t, err)

	assert.Equal(t, int64(200_000_00), report.PersonalMonthlyCharge.Cents)
	assert.Equal(t, int64(30_000_00), report.ExternalMonthlyCharge.Cents)
	assert.True(t, report.HasLimit)
	assert.Equal(t, int64(500_000_00), report.MonthlyLimit.Cents)
	assert.InDelta(t, 40.0, report.UsedPercentage, 0.001)
	assert.Equal(t, int64(300_000_00), report.AvailableCapacity.Cents)
	assert.False(t, report.IsOverLimit)
}

func TestCapacityReportFlagsOverLimit(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.SetDebtLimit(ctx, testProject, ptr(int64(50_000_00))))
	card := newAccount(t, store, core.AccountCreditCard, "card")

	cards := services.NewCardService(store, nil)
	cards.SetClock(fixedClock)
	_, err := cards.CreateCardPurchase(ctx, testUser, services.CreateCardPurchaseParams{
		ProjectID:       testProject,
		AccountID:       card,
		Description:     "laptop",
		OriginalAmount:  core.Money{Cents: 240_000_00},
		Installments:    3,
		FirstChargeDate: date(2025, 7, 1),
	})
	require.NoError(t, err)

	report, err := services.NewCapacityService(store).Report(ctx, testUser, testProject)
	require.NoError(t, err)
	assert.True(t, report.IsOverLimit)
	assert.Zero(t, report.AvailableCapacity.Cents, "capacity never goes negative")
	assert.InDelta(t, 160.0, report.UsedPercentage, 0.001)
}

func TestCapacityReportExcludesSettledPurchases(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.SetDebtLimit(ctx, testProject, ptr(int64(500_000_00))))
	checking := newAccount(t, store, core.AccountChecking, "checking")
	card := newAccount(t, store, core.AccountCreditCard, "card")

	cards := services.NewCardService(store, nil)
	cards.SetClock(fixedClock)
	transfers := services.NewTransferService(store, nil)
	transfers.SetClock(fixedClock)

	purchase, err := cards.CreateCardPurchase(ctx, testUser, services.CreateCardPurchaseParams{
		ProjectID:       testProject,
		AccountID:       card,
		Description:     "tablet",
		OriginalAmount:  core.Money{Cents: 60_000_00},
		Installments:    2,
		FirstChargeDate: date(2025, 7, 1),
	})
	require.NoError(t, err)

	legs, err := store.LegsByCardPurchase(ctx, purchase.ID)
	require.NoError(t, err)
	_, err = transfers.PayCardInstallments(ctx, testUser, services.PayCardInstallmentsParams{
		ProjectID:       testProject,
		SourceAccountID: checking,
		CardAccountID:   card,
		TransactionIDs:  []int64{legs[0].ID, legs[1].ID},
		Date:            date(2025, 7, 5),
	})
	require.NoError(t, err)

	report, err := services.NewCapacityService(store).Report(ctx, testUser, testProject)
	require.NoError(t, err)
	assert.Zero(t, report.PersonalMonthlyCharge.Cents, "settled purchases stop charging")
}

func TestCapacityReportWithoutLimit(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	card := newAccount(t, store, core.AccountCreditCard, "card")

	cards := services.NewCardService(store, nil)
	cards.SetClock(fixedClock)
	_, err := cards.CreateCardPurchase(ctx, testUser, services.CreateCardPurchaseParams{
		ProjectID:       testProject,
		AccountID:       card,
		Description:     "camera",
		OriginalAmount:  core.Money{Cents: 90_000_00},
		Installments:    3,
		FirstChargeDate: date(2025, 7, 1),
	})
	require.NoError(t, err)

	report, err := services.NewCapacityService(store).Report(ctx, testUser, testProject)
	require.NoError(t, err)
	assert.Equal(t, int64(30_000_00), report.PersonalMonthlyCharge.Cents)
	assert.False(t, report.HasLimit)
	assert.Zero(t, report.UsedPercentage)
	assert.False(t, report.IsOverLimit)
}

func TestCapacityReportForNonMemberIsZeroed(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.SetDebtLimit(ctx, testProject, ptr(int64(500_000_00))))

	report, err := services.NewCapacityService(store).Report(ctx, strangerID, testProject)
	require.NoError(t, err)
	assert.Zero(t, report.PersonalMonthlyCharge.Cents)
	assert.False(t, report.HasLimit)
}
