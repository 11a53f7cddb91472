package services_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cuentas/internal/core"
	"cuentas/internal/services"
)

func TestCreateCardPurchaseAppliesOneLumpSumDelta(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	card := newAccount(t, store, core.AccountCreditCard, "card")
	svc := services.NewCardService(store, nil)
	svc.SetClock(fixedClock)

	purchase, err := svc.CreateCardPurchase(ctx, testUser, services.CreateCardPurchaseParams{
		ProjectID:       testProject,
		AccountID:       card,
		Description:     "laptop",
		Category:        "tech",
		OriginalAmount:  core.Money{Cents: 300_000_00},
		Installments:    3,
		FirstChargeDate: date(2025, 7, 1),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(300_000_00), purchase.TotalAmount.Cents)
	assert.Equal(t, int64(100_000_00), purchase.InstallmentAmount.Cents)
	assert.Zero(t, purchase.InitialPaidInstallments)
	assert.True(t, purchase.IsActive)

	legs, err := store.LegsByCardPurchase(ctx, purchase.ID)
	require.NoError(t, err)
	require.Len(t, legs, 3)
	for i, leg := range legs {
		assert.True(t, leg.IsPaid, "card legs are born paid")
		assert.False(t, leg.IsHistoricallyPaid)
		assert.Equal(t, fmt.Sprintf("laptop (%d/3)", i+1), leg.Description)
		assert.Equal(t, date(2025, 7, 1).AddDate(0, i, 0), leg.Date.Time)
	}

	// The balance moves once for the whole purchase, never per leg.
	assert.Equal(t, int64(-300_000_00), balanceOf(t, store, card))
}

func TestCreateCardPurchaseMarksPastDuePrefixHistorical(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	card := newAccount(t, store, core.AccountCreditCard, "card")
	svc := services.NewCardService(store, nil)
	svc.SetClock(fixedClock)

	// First charge two months before the fixed clock: charges 1 and 2
	// already happened, charge 3 is still ahead.
	purchase, err := svc.CreateCardPurchase(ctx, testUser, services.CreateCardPurchaseParams{
		ProjectID:       testProject,
		AccountID:       card,
		Description:     "fridge",
		OriginalAmount:  core.Money{Cents: 120_000_00},
		Installments:    4,
		FirstChargeDate: date(2025, 4, 20),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, purchase.InitialPaidInstallments)

	legs, err := store.LegsByCardPurchase(ctx, purchase.ID)
	require.NoError(t, err)
	require.Len(t, legs, 4)
	assert.True(t, legs[0].IsHistoricallyPaid)
	assert.True(t, legs[1].IsHistoricallyPaid)
	assert.False(t, legs[2].IsHistoricallyPaid)
	assert.False(t, legs[3].IsHistoricallyPaid)

	detail, err := svc.GetCardPurchase(ctx, testUser, purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, detail.ReconciledCount, "historical prefix counts as settled")
}

func TestCreateCardPurchaseRoundsInterestAndRemainder(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	card := newAccount(t, store, core.AccountCreditCard, "card")
	svc := services.NewCardService(store, nil)
	svc.SetClock(fixedClock)

	purchase, err := svc.CreateCardPurchase(ctx, testUser, services.CreateCardPurchaseParams{
		ProjectID:       testProject,
		AccountID:       card,
		Description:     "chair",
		OriginalAmount:  core.Money{Cents: 100_00},
		InterestRate:    10,
		Installments:    3,
		FirstChargeDate: date(2025, 7, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(110_00), purchase.TotalAmount.Cents)
	assert.Equal(t, int64(36_66), purchase.InstallmentAmount.Cents)

	legs, err := store.LegsByCardPurchase(ctx, purchase.ID)
	require.NoError(t, err)
	require.Len(t, legs, 3)
	assert.Equal(t, int64(36_66), legs[0].Amount.Cents)
	assert.Equal(t, int64(36_66), legs[1].Amount.Cents)
	assert.Equal(t, int64(36_68), legs[2].Amount.Cents, "last leg absorbs the remainder")

	var sum int64
	for _, leg := range legs {
		sum += leg.Amount.Cents
	}
	assert.Equal(t, purchase.TotalAmount.Cents, sum)
}

func TestDeleteCardPurchaseRevertsLumpSumOnly(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	card := newAccount(t, store, core.AccountCreditCard, "card")
	svc := services.NewCardService(store, nil)
	svc.SetClock(fixedClock)

	purchase, err := svc.CreateCardPurchase(ctx, testUser, services.CreateCardPurchaseParams{
		ProjectID:       testProject,
		AccountID:       card,
		Description:     "tv",
		OriginalAmount:  core.Money{Cents: 60_000_00},
		Installments:    6,
		FirstChargeDate: date(2025, 7, 1),
	})
	require.NoError(t, err)
	require.Equal(t, int64(-60_000_00), balanceOf(t, store, card))

	require.NoError(t, svc.DeleteCardPurchase(ctx, testUser, purchase.ID))
	assert.Zero(t, balanceOf(t, store, card))

	legs, err := store.LegsByCardPurchase(ctx, purchase.ID)
	require.NoError(t, err)
	assert.Empty(t, legs)
	_, err = store.CardPurchase(ctx, purchase.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCreateCardPurchaseRejectsZeroInstallments(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	card := newAccount(t, store, core.AccountCreditCard, "card")
	svc := services.NewCardService(store, nil)
	svc.SetClock(fixedClock)

	_, err := svc.CreateCardPurchase(ctx, testUser, services.CreateCardPurchaseParams{
		ProjectID:       testProject,
		AccountID:       card,
		Description:     "printer",
		OriginalAmount:  core.Money{Cents: 40_000_00},
		Installments:    0,
		FirstChargeDate: date(2025, 7, 1),
	})
	assert.ErrorIs(t, err, core.ErrInvalidInstallments)
	assert.Zero(t, balanceOf(t, store, card))
}

func TestCreateCardPurchaseRejectsNonCardAccount(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	checking := newAccount(t, store, core.AccountChecking, "checking")
	svc := services.NewCardService(store, nil)
	svc.SetClock(fixedClock)

	_, err := svc.CreateCardPurchase(ctx, testUser, services.CreateCardPurchaseParams{
		ProjectID:       testProject,
		AccountID:       checking,
		Description:     "mistake",
		OriginalAmount:  core.Money{Cents: 10_00},
		Installments:    2,
		FirstChargeDate: date(2025, 7, 1),
	})
	assert.ErrorIs(t, err, core.ErrInvariant)
	assert.Zero(t, balanceOf(t, store, checking), "failed creation leaves no delta behind")
}

func TestGenericMutationsRejectCardLegs(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	card := newAccount(t, store, core.AccountCreditCard, "card")
	cards := services.NewCardService(store, nil)
	cards.SetClock(fixedClock)
	ledger := services.NewLedgerService(store, nil)
	ledger.SetClock(fixedClock)

	purchase, err := cards.CreateCardPurchase(ctx, testUser, services.CreateCardPurchaseParams{
		ProjectID:       testProject,
		AccountID:       card,
		Description:     "desk",
		OriginalAmount:  core.Money{Cents: 30_000_00},
		Installments:    3,
		FirstChargeDate: date(2025, 7, 1),
	})
	require.NoError(t, err)
	legs, err := store.LegsByCardPurchase(ctx, purchase.ID)
	require.NoError(t, err)

	_, err = ledger.Update(ctx, testUser, legs[0].ID, services.UpdateTransactionParams{
		Amount: services.Some(core.Money{Cents: 1_00}),
	})
	assert.ErrorIs(t, err, core.ErrInvariant)

	err = ledger.Delete(ctx, testUser, legs[0].ID)
	assert.ErrorIs(t, err, core.ErrInvariant)

	assert.Equal(t, int64(-30_000_00), balanceOf(t, store, card))
}

func TestListActivePurchasesForNonMemberIsEmpty(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	card := newAccount(t, store, core.AccountCreditCard, "card")
	svc := services.NewCardService(store, nil)
	svc.SetClock(fixedClock)

	_, err := svc.CreateCardPurchase(ctx, testUser, services.CreateCardPurchaseParams{
		ProjectID:       testProject,
		AccountID:       card,
		Description:     "bike",
		OriginalAmount:  core.Money{Cents: 80_000_00},
		Installments:    4,
		FirstChargeDate: date(2025, 7, 1),
	})
	require.NoError(t, err)

	mine, err := svc.ListActivePurchases(ctx, testUser, testProject)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	others, err := svc.ListActivePurchases(ctx, strangerID, testProject)
	require.NoError(t, err)
	assert.Empty(t, others)
}
