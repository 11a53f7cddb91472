package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"cuentas/internal/core"
)

// CardService expands credit-card purchases into all their installment
// legs up front. The card balance takes one lump-sum adjustment for the
// total amount at purchase time: the debt exists the moment the card is
// swiped, regardless of when installments are later paid off. Deletion
// reverts exactly that lump sum, never per-leg amounts.
type CardService struct {
	store  Store
	events Publisher
	now    func() time.Time
}

func NewCardService(store Store, events Publisher) *CardService {
	return &CardService{store: store, events: events, now: time.Now}
}

type CreateCardPurchaseParams struct {
	ProjectID       int64
	AccountID       int64
	Description     string
	Category        string
	OriginalAmount  core.Money
	InterestRate    float64 // percent
	Installments    int
	FirstChargeDate core.Date
	IsExternal      bool
}

// CardPurchaseDetail is a purchase with its legs and the computed
// reconciliation progress. The reconciled count is never stored; it is
// initial historically-paid installments plus legs settled by transfer.
type CardPurchaseDetail struct {
	Purchase        core.CardPurchase
	Legs            []core.Transaction
	ReconciledCount int
}

// CreateCardPurchase inserts the purchase and every installment leg.
// Legs whose due date already passed form a contiguous prefix and are
// tagged historically paid; due dates are monotonic so the walk stops
// at the first future one.
func (s *CardService) CreateCardPurchase(ctx context.Context, userID int64, p CreateCardPurchaseParams) (core.CardPurchase, error) {
	if err := requireMember(ctx, s.store, userID, p.ProjectID); err != nil {
		return core.CardPurchase{}, err
	}

	purchase := core.CardPurchase{
		ProjectID:       p.ProjectID,
		AccountID:       p.AccountID,
		Description:     p.Description,
		OriginalAmount:  p.OriginalAmount,
		InterestRate:    p.InterestRate,
		Installments:    p.Installments,
		FirstChargeDate: p.FirstChargeDate,
		IsExternal:      p.IsExternal,
		IsActive:        true,
	}
	// Validate before the installment division so a zero count fails
	// as ErrInvalidInstallments instead of dividing by zero.
	if err := purchase.Validate(); err != nil {
		return core.CardPurchase{}, err
	}

	totalCents := p.OriginalAmount.Cents + int64(math.Round(float64(p.OriginalAmount.Cents)*p.InterestRate/100))
	installmentCents := totalCents / int64(p.Installments)
	purchase.TotalAmount = core.Money{Cents: totalCents}
	purchase.InstallmentAmount = core.Money{Cents: installmentCents}

	today := core.DateOf(s.now())
	purchase.InitialPaidInstallments = core.PastDueCount(p.FirstChargeDate, core.Monthly, 0, p.Installments, today)

	err := s.store.InTx(ctx, func(tx Store) error {
		account, err := tx.Account(ctx, p.AccountID)
		if err != nil {
			return err
		}
		if account.ProjectID != p.ProjectID {
			return fmt.Errorf("account %d: %w", p.AccountID, core.ErrNotFound)
		}
		if account.Type != core.AccountCreditCard {
			return fmt.Errorf("account %d is not a credit card: %w", p.AccountID, core.ErrInvariant)
		}

		id, err := tx.InsertCardPurchase(ctx, purchase)
		if err != nil {
			return fmt.Errorf("insert card purchase: %w", err)
		}
		purchase.ID = id

		paidAt := s.now()
		accountID := p.AccountID
		for i := 0; i < p.Installments; i++ {
			amount := installmentCents
			if i == p.Installments-1 {
				// last leg absorbs the division remainder so the
				// legs sum exactly to the total
				amount = totalCents - installmentCents*int64(p.Installments-1)
			}
			leg := core.Transaction{
				ProjectID:          p.ProjectID,
				AccountID:          &accountID,
				Type:               core.Expense,
				Amount:             core.Money{Cents: amount},
				Date:               core.DueDate(p.FirstChargeDate, core.Monthly, i),
				Description:        fmt.Sprintf("%s (%d/%d)", p.Description, i+1, p.Installments),
				Category:           p.Category,
				IsPaid:             true,
				PaidAt:             &paidAt,
				CardPurchaseID:     &id,
				IsHistoricallyPaid: i < purchase.InitialPaidInstallments,
			}
			if _, err := tx.InsertTransaction(ctx, leg); err != nil {
				return fmt.Errorf("insert installment leg %d: %w", i, err)
			}
		}

		// One lump-sum delta for the whole purchase, not N per-leg ones.
		if err := tx.AdjustBalance(ctx, p.AccountID, -totalCents); err != nil {
			return fmt.Errorf("apply purchase balance delta: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.CardPurchase{}, err
	}

	slog.InfoContext(ctx, "Card purchase created",
		"id", purchase.ID,
		"account_id", p.AccountID,
		"total_cents", totalCents,
		"installments", p.Installments,
		"historically_paid", purchase.InitialPaidInstallments)
	publish(ctx, s.events, "card_purchase.created", p.ProjectID, purchase.ID)
	return purchase, nil
}

// DeleteCardPurchase removes the purchase and all its legs and reverts
// the one lump-sum delta applied at creation. Per-leg reverts would
// double-revert debt the legs never individually added.
func (s *CardService) DeleteCardPurchase(ctx context.Context, userID, id int64) error {
	var projectID int64
	err := s.store.InTx(ctx, func(tx Store) error {
		purchase, err := tx.CardPurchase(ctx, id)
		if err != nil {
			return err
		}
		if err := requireMember(ctx, tx, userID, purchase.ProjectID); err != nil {
			return err
		}
		projectID = purchase.ProjectID

		legs, err := tx.LegsByCardPurchase(ctx, id)
		if err != nil {
			return err
		}
		for _, leg := range legs {
			if err := tx.DeleteTransaction(ctx, leg.ID); err != nil {
				return fmt.Errorf("delete installment leg %d: %w", leg.ID, err)
			}
		}
		if err := tx.DeleteCardPurchase(ctx, id); err != nil {
			return fmt.Errorf("delete card purchase: %w", err)
		}
		return tx.AdjustBalance(ctx, purchase.AccountID, purchase.TotalAmount.Cents)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Card purchase deleted", "id", id)
	publish(ctx, s.events, "card_purchase.deleted", projectID, id)
	return nil
}

// GetCardPurchase returns the purchase with its legs and computed
// reconciliation progress.
func (s *CardService) GetCardPurchase(ctx context.Context, userID, id int64) (CardPurchaseDetail, error) {
	purchase, err := s.store.CardPurchase(ctx, id)
	if err != nil {
		return CardPurchaseDetail{}, err
	}
	if err := requireMember(ctx, s.store, userID, purchase.ProjectID); err != nil {
		return CardPurchaseDetail{}, err
	}
	legs, err := s.store.LegsByCardPurchase(ctx, id)
	if err != nil {
		return CardPurchaseDetail{}, err
	}
	reconciled := purchase.InitialPaidInstallments
	for _, leg := range legs {
		if leg.PaidByTransferID != nil {
			reconciled++
		}
	}
	return CardPurchaseDetail{Purchase: purchase, Legs: legs, ReconciledCount: reconciled}, nil
}

// ListActivePurchases returns active purchases for the project; callers
// without access see an empty list rather than an error.
func (s *CardService) ListActivePurchases(ctx context.Context, userID, projectID int64) ([]core.CardPurchase, error) {
	ok, err := isMember(ctx, s.store, userID, projectID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return s.store.ActiveCardPurchases(ctx, projectID)
}
