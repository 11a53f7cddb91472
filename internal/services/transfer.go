package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cuentas/internal/core"
)

// TransferService coordinates paired transaction legs for money moving
// between two accounts. The two legs are mutually linked, always carry
// opposite types and equal amounts, and are never mutated partially.
type TransferService struct {
	store  Store
	events Publisher
	now    func() time.Time
}

func NewTransferService(store Store, events Publisher) *TransferService {
	return &TransferService{store: store, events: events, now: time.Now}
}

// TransferPair is the two legs of one transfer: the expense leg on the
// source account and the income leg on the destination.
type TransferPair struct {
	ExpenseLeg core.Transaction
	IncomeLeg  core.Transaction
}

type CreateTransferParams struct {
	ProjectID     int64
	FromAccountID int64
	ToAccountID   int64
	Amount        core.Money
	Date          core.Date
	Description   string
}

type UpdateTransferParams struct {
	FromAccountID Opt[int64]
	ToAccountID   Opt[int64]
	Amount        Opt[core.Money]
	Date          Opt[core.Date]
	Description   Opt[string]
}

type PayCardInstallmentsParams struct {
	ProjectID       int64
	SourceAccountID int64
	CardAccountID   int64
	TransactionIDs  []int64
	Date            core.Date
	InterestAmount  core.Money // zero means no interest leg
}

// CreateTransfer atomically produces both legs, paid immediately, each
// applying its balance delta.
func (s *TransferService) CreateTransfer(ctx context.Context, userID int64, p CreateTransferParams) (TransferPair, error) {
	if p.FromAccountID == p.ToAccountID {
		return TransferPair{}, fmt.Errorf("transfer source and destination are the same account: %w", core.ErrInvariant)
	}
	if err := requireMember(ctx, s.store, userID, p.ProjectID); err != nil {
		return TransferPair{}, err
	}
	if err := p.Amount.Validate(); err != nil {
		return TransferPair{}, err
	}
	if err := p.Date.Validate(); err != nil {
		return TransferPair{}, err
	}

	var pair TransferPair
	err := s.store.InTx(ctx, func(tx Store) error {
		var err error
		pair, err = createPair(ctx, tx, s.now(), p)
		return err
	})
	if err != nil {
		return TransferPair{}, err
	}

	slog.InfoContext(ctx, "Transfer created",
		"expense_leg", pair.ExpenseLeg.ID,
		"income_leg", pair.IncomeLeg.ID,
		"amount_cents", p.Amount.Cents)
	publish(ctx, s.events, "transfer.created", p.ProjectID, pair.ExpenseLeg.ID)
	return pair, nil
}

// UpdateTransfer edits both legs together: the old deltas are reverted,
// the edits applied, and the new deltas re-applied on both sides.
func (s *TransferService) UpdateTransfer(ctx context.Context, userID, legID int64, p UpdateTransferParams) (TransferPair, error) {
	var pair TransferPair
	err := s.store.InTx(ctx, func(tx Store) error {
		expense, income, err := loadPair(ctx, tx, legID)
		if err != nil {
			return err
		}
		if err := requireMember(ctx, tx, userID, expense.ProjectID); err != nil {
			return err
		}

		newExpense, newIncome := expense, income
		if p.FromAccountID.Valid {
			from := p.FromAccountID.Value
			newExpense.AccountID = &from
		}
		if p.ToAccountID.Valid {
			to := p.ToAccountID.Value
			newIncome.AccountID = &to
		}
		if *newExpense.AccountID == *newIncome.AccountID {
			return fmt.Errorf("transfer source and destination are the same account: %w", core.ErrInvariant)
		}
		if p.Amount.Valid {
			if err := p.Amount.Value.Validate(); err != nil {
				return err
			}
			newExpense.Amount = p.Amount.Value
			newIncome.Amount = p.Amount.Value
		}
		if p.Date.Valid {
			newExpense.Date = p.Date.Value
			newIncome.Date = p.Date.Value
		}
		if p.Description.Valid {
			newExpense.Description = p.Description.Value
			newIncome.Description = p.Description.Value
		}

		for _, a := range []int64{*newExpense.AccountID, *newIncome.AccountID} {
			if err := checkProjectAccount(ctx, tx, a, expense.ProjectID); err != nil {
				return err
			}
		}
		if err := tx.UpdateTransaction(ctx, newExpense); err != nil {
			return fmt.Errorf("update expense leg: %w", err)
		}
		if err := tx.UpdateTransaction(ctx, newIncome); err != nil {
			return fmt.Errorf("update income leg: %w", err)
		}
		if err := applyAdjustments(ctx, tx, core.TransitionDelta(expense, newExpense)); err != nil {
			return err
		}
		if err := applyAdjustments(ctx, tx, core.TransitionDelta(income, newIncome)); err != nil {
			return err
		}
		pair = TransferPair{ExpenseLeg: newExpense, IncomeLeg: newIncome}
		return nil
	})
	if err != nil {
		return TransferPair{}, err
	}

	slog.InfoContext(ctx, "Transfer updated",
		"expense_leg", pair.ExpenseLeg.ID,
		"income_leg", pair.IncomeLeg.ID)
	publish(ctx, s.events, "transfer.updated", pair.ExpenseLeg.ProjectID, pair.ExpenseLeg.ID)
	return pair, nil
}

// DeleteTransfer removes both legs and reverts both deltas.
func (s *TransferService) DeleteTransfer(ctx context.Context, userID, legID int64) error {
	var projectID, expenseID int64
	err := s.store.InTx(ctx, func(tx Store) error {
		expense, income, err := loadPair(ctx, tx, legID)
		if err != nil {
			return err
		}
		if err := requireMember(ctx, tx, userID, expense.ProjectID); err != nil {
			return err
		}
		projectID, expenseID = expense.ProjectID, expense.ID
		if err := deleteLeg(ctx, tx, expense); err != nil {
			return err
		}
		return deleteLeg(ctx, tx, income)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transfer deleted", "expense_leg", expenseID)
	publish(ctx, s.events, "transfer.deleted", projectID, expenseID)
	return nil
}

// PayCardInstallments settles selected card installments with a real
// payment: one transfer pair for the summed amount, every selected leg
// stamped with the expense leg's id as its reconciliation marker, and
// an optional standalone interest expense on the source account. The
// legs' paid state is untouched; it was already true at purchase time.
func (s *TransferService) PayCardInstallments(ctx context.Context, userID int64, p PayCardInstallmentsParams) (TransferPair, error) {
	if len(p.TransactionIDs) == 0 {
		return TransferPair{}, fmt.Errorf("no installments selected: %w", core.ErrInvariant)
	}
	if p.SourceAccountID == p.CardAccountID {
		return TransferPair{}, fmt.Errorf("transfer source and destination are the same account: %w", core.ErrInvariant)
	}
	if err := requireMember(ctx, s.store, userID, p.ProjectID); err != nil {
		return TransferPair{}, err
	}

	// Selecting the same installment twice must not sum it twice.
	ids := make([]int64, 0, len(p.TransactionIDs))
	seen := make(map[int64]struct{}, len(p.TransactionIDs))
	for _, id := range p.TransactionIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	var pair TransferPair
	var deactivated []int64
	err := s.store.InTx(ctx, func(tx Store) error {
		card, err := tx.Account(ctx, p.CardAccountID)
		if err != nil {
			return err
		}
		if card.ProjectID != p.ProjectID {
			return fmt.Errorf("account %d: %w", p.CardAccountID, core.ErrNotFound)
		}
		if card.Type != core.AccountCreditCard {
			return fmt.Errorf("account %d is not a credit card: %w", p.CardAccountID, core.ErrInvariant)
		}

		legs, err := tx.TransactionsByIDs(ctx, ids)
		if err != nil {
			return err
		}
		if len(legs) != len(ids) {
			return fmt.Errorf("installment selection: %w", core.ErrNotFound)
		}

		var total core.Money
		touched := make(map[int64]struct{})
		for _, leg := range legs {
			if leg.AccountID == nil || *leg.AccountID != p.CardAccountID {
				return fmt.Errorf("transaction %d does not belong to the card account: %w", leg.ID, core.ErrInvariant)
			}
			if leg.CardPurchaseID == nil {
				return fmt.Errorf("transaction %d is not a card installment: %w", leg.ID, core.ErrInvariant)
			}
			if leg.PaidByTransferID != nil {
				return fmt.Errorf("installment %d already reconciled: %w", leg.ID, core.ErrInvariant)
			}
			total = total.Add(leg.Amount)
			touched[*leg.CardPurchaseID] = struct{}{}
		}

		pair, err = createPair(ctx, tx, s.now(), CreateTransferParams{
			ProjectID:     p.ProjectID,
			FromAccountID: p.SourceAccountID,
			ToAccountID:   p.CardAccountID,
			Amount:        total,
			Date:          p.Date,
			Description:   "Credit card payment",
		})
		if err != nil {
			return err
		}

		if err := tx.MarkReconciled(ctx, ids, pair.ExpenseLeg.ID); err != nil {
			return fmt.Errorf("mark installments reconciled: %w", err)
		}

		if p.InterestAmount.Cents > 0 {
			src := p.SourceAccountID
			paidAt := s.now()
			interest := core.Transaction{
				ProjectID:   p.ProjectID,
				AccountID:   &src,
				Type:        core.Expense,
				Amount:      p.InterestAmount,
				Date:        p.Date,
				Description: "Credit card payment interest",
				IsPaid:      true,
				PaidAt:      &paidAt,
			}
			id, err := tx.InsertTransaction(ctx, interest)
			if err != nil {
				return fmt.Errorf("insert interest leg: %w", err)
			}
			interest.ID = id
			if err := applyAdjustments(ctx, tx, core.TransitionDelta(core.Transaction{}, interest)); err != nil {
				return err
			}
		}

		for purchaseID := range touched {
			done, err := purchaseFullyReconciled(ctx, tx, purchaseID)
			if err != nil {
				return err
			}
			if done {
				if err := tx.SetCardPurchaseActive(ctx, purchaseID, false); err != nil {
					return fmt.Errorf("deactivate purchase %d: %w", purchaseID, err)
				}
				deactivated = append(deactivated, purchaseID)
			}
		}
		return nil
	})
	if err != nil {
		return TransferPair{}, err
	}

	slog.InfoContext(ctx, "Card installments paid",
		"installments", len(ids),
		"transfer_leg", pair.ExpenseLeg.ID,
		"interest_cents", p.InterestAmount.Cents,
		"purchases_settled", deactivated)
	publish(ctx, s.events, "card_payment.created", p.ProjectID, pair.ExpenseLeg.ID)
	return pair, nil
}

// createPair inserts the two mutually linked legs of a transfer and
// applies both deltas. Callers must already hold a transaction.
func createPair(ctx context.Context, tx Store, now time.Time, p CreateTransferParams) (TransferPair, error) {
	for _, a := range []int64{p.FromAccountID, p.ToAccountID} {
		if err := checkProjectAccount(ctx, tx, a, p.ProjectID); err != nil {
			return TransferPair{}, err
		}
	}

	desc := p.Description
	if desc == "" {
		desc = "Transfer"
	}
	paidAt := now
	from, to := p.FromAccountID, p.ToAccountID

	expense := core.Transaction{
		ProjectID:   p.ProjectID,
		AccountID:   &from,
		Type:        core.Expense,
		Amount:      p.Amount,
		Date:        p.Date,
		Description: desc,
		IsPaid:      true,
		PaidAt:      &paidAt,
	}
	expenseID, err := tx.InsertTransaction(ctx, expense)
	if err != nil {
		return TransferPair{}, fmt.Errorf("insert expense leg: %w", err)
	}
	expense.ID = expenseID

	income := expense
	income.ID = 0
	income.AccountID = &to
	income.Type = core.Income
	income.LinkedTransactionID = &expenseID
	incomeID, err := tx.InsertTransaction(ctx, income)
	if err != nil {
		return TransferPair{}, fmt.Errorf("insert income leg: %w", err)
	}
	income.ID = incomeID

	expense.LinkedTransactionID = &incomeID
	if err := tx.UpdateTransaction(ctx, expense); err != nil {
		return TransferPair{}, fmt.Errorf("link expense leg: %w", err)
	}

	if err := applyAdjustments(ctx, tx, core.TransitionDelta(core.Transaction{}, expense)); err != nil {
		return TransferPair{}, err
	}
	if err := applyAdjustments(ctx, tx, core.TransitionDelta(core.Transaction{}, income)); err != nil {
		return TransferPair{}, err
	}
	return TransferPair{ExpenseLeg: expense, IncomeLeg: income}, nil
}

// loadPair resolves either leg id to the (expense, income) pair.
func loadPair(ctx context.Context, tx Store, legID int64) (core.Transaction, core.Transaction, error) {
	leg, err := tx.Transaction(ctx, legID)
	if err != nil {
		return core.Transaction{}, core.Transaction{}, err
	}
	if leg.LinkedTransactionID == nil {
		return core.Transaction{}, core.Transaction{}, fmt.Errorf("transaction %d is not a transfer leg: %w", legID, core.ErrInvariant)
	}
	linked, err := tx.Transaction(ctx, *leg.LinkedTransactionID)
	if err != nil {
		return core.Transaction{}, core.Transaction{}, fmt.Errorf("load linked leg: %w", err)
	}
	if leg.Type == core.Expense {
		return leg, linked, nil
	}
	return linked, leg, nil
}

func checkProjectAccount(ctx context.Context, tx Store, accountID, projectID int64) error {
	a, err := tx.Account(ctx, accountID)
	if err != nil {
		return err
	}
	if a.ProjectID != projectID {
		return fmt.Errorf("account %d: %w", accountID, core.ErrNotFound)
	}
	return nil
}

// purchaseFullyReconciled reports whether every installment of the
// purchase is either historically pre-paid or settled by a transfer.
func purchaseFullyReconciled(ctx context.Context, tx Store, purchaseID int64) (bool, error) {
	purchase, err := tx.CardPurchase(ctx, purchaseID)
	if err != nil {
		return false, err
	}
	legs, err := tx.LegsByCardPurchase(ctx, purchaseID)
	if err != nil {
		return false, err
	}
	reconciled := purchase.InitialPaidInstallments
	for _, leg := range legs {
		if leg.PaidByTransferID != nil {
			reconciled++
		}
	}
	return reconciled >= purchase.Installments, nil
}
