package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cuentas/internal/core"
)

// LedgerService is the transaction mutation core. Every state change
// that affects accounted money applies exactly one balance adjustment
// per transition, derived by core.TransitionDelta.
type LedgerService struct {
	store  Store
	events Publisher
	now    func() time.Time
}

func NewLedgerService(store Store, events Publisher) *LedgerService {
	return &LedgerService{store: store, events: events, now: time.Now}
}

type CreateTransactionParams struct {
	ProjectID     int64
	AccountID     *int64
	Type          core.TransactionType
	Amount        core.Money
	Date          core.Date
	Description   string
	Category      string
	IsPaid        bool
	IsSavingsFund bool
}

type UpdateTransactionParams struct {
	AccountID     Opt[*int64]
	Type          Opt[core.TransactionType]
	Amount        Opt[core.Money]
	Date          Opt[core.Date]
	Description   Opt[string]
	Category      Opt[string]
	IsPaid        Opt[bool]
	IsSavingsFund Opt[bool]
}

// Create inserts a transaction and applies its balance delta when the
// new record is paid.
func (s *LedgerService) Create(ctx context.Context, userID int64, p CreateTransactionParams) (core.Transaction, error) {
	if err := requireMember(ctx, s.store, userID, p.ProjectID); err != nil {
		return core.Transaction{}, err
	}

	t := core.Transaction{
		ProjectID:     p.ProjectID,
		AccountID:     p.AccountID,
		Type:          p.Type,
		Amount:        p.Amount,
		Date:          p.Date,
		Description:   p.Description,
		Category:      p.Category,
		IsPaid:        p.IsPaid,
		IsSavingsFund: p.IsSavingsFund,
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if t.IsPaid {
		paidAt := s.now()
		t.PaidAt = &paidAt
	}

	err := s.store.InTx(ctx, func(tx Store) error {
		if t.AccountID != nil {
			if err := checkProjectAccount(ctx, tx, *t.AccountID, p.ProjectID); err != nil {
				return err
			}
		}
		id, err := tx.InsertTransaction(ctx, t)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		t.ID = id
		return applyAdjustments(ctx, tx, core.TransitionDelta(core.Transaction{}, t))
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction created",
		"id", t.ID,
		"project_id", t.ProjectID,
		"type", t.Type,
		"amount_cents", t.Amount.Cents,
		"is_paid", t.IsPaid)
	publish(ctx, s.events, "transaction.created", t.ProjectID, t.ID)
	return t, nil
}

// Update edits a transaction. The old delta is reverted and the new one
// applied whenever the record is paid on either side of the transition,
// even when paid-ness itself did not change, because amount, account or
// type may have.
func (s *LedgerService) Update(ctx context.Context, userID, id int64, p UpdateTransactionParams) (core.Transaction, error) {
	var updated core.Transaction
	err := s.store.InTx(ctx, func(tx Store) error {
		old, err := tx.Transaction(ctx, id)
		if err != nil {
			return err
		}
		if err := requireMember(ctx, tx, userID, old.ProjectID); err != nil {
			return err
		}
		if old.CardPurchaseID != nil {
			return fmt.Errorf("card purchase installments carry the purchase's lump-sum delta and cannot be edited directly: %w", core.ErrInvariant)
		}
		if old.LinkedTransactionID != nil {
			return fmt.Errorf("transfer legs must be edited through the transfer operations: %w", core.ErrInvariant)
		}

		next := old
		if p.AccountID.Valid {
			next.AccountID = p.AccountID.Value
		}
		if p.Type.Valid {
			next.Type = p.Type.Value
		}
		if p.Amount.Valid {
			next.Amount = p.Amount.Value
		}
		if p.Date.Valid {
			next.Date = p.Date.Value
		}
		if p.Description.Valid {
			next.Description = p.Description.Value
		}
		if p.Category.Valid {
			next.Category = p.Category.Value
		}
		if p.IsSavingsFund.Valid {
			next.IsSavingsFund = p.IsSavingsFund.Value
		}
		if p.IsPaid.Valid && p.IsPaid.Value != old.IsPaid {
			next.IsPaid = p.IsPaid.Value
			if next.IsPaid {
				paidAt := s.now()
				next.PaidAt = &paidAt
			} else {
				next.PaidAt = nil
			}
		}
		if err := next.Validate(); err != nil {
			return err
		}
		if next.AccountID != nil {
			if err := checkProjectAccount(ctx, tx, *next.AccountID, next.ProjectID); err != nil {
				return err
			}
		}

		if err := tx.UpdateTransaction(ctx, next); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		if err := applyAdjustments(ctx, tx, core.TransitionDelta(old, next)); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction updated", "id", id, "project_id", updated.ProjectID)
	publish(ctx, s.events, "transaction.updated", updated.ProjectID, id)
	return updated, nil
}

// TogglePaid flips the paid state. Requesting the current state is a
// no-op and applies no delta.
func (s *LedgerService) TogglePaid(ctx context.Context, userID, id int64, paid bool) (core.Transaction, error) {
	var result core.Transaction
	changed := false
	err := s.store.InTx(ctx, func(tx Store) error {
		old, err := tx.Transaction(ctx, id)
		if err != nil {
			return err
		}
		if err := requireMember(ctx, tx, userID, old.ProjectID); err != nil {
			return err
		}
		if old.CardPurchaseID != nil {
			return fmt.Errorf("card purchase installments are settled by payment transfers, not toggled: %w", core.ErrInvariant)
		}
		if old.LinkedTransactionID != nil {
			return fmt.Errorf("transfer legs must be edited through the transfer operations: %w", core.ErrInvariant)
		}
		if old.IsPaid == paid {
			result = old
			return nil
		}

		next := old
		next.IsPaid = paid
		if paid {
			paidAt := s.now()
			next.PaidAt = &paidAt
		} else {
			next.PaidAt = nil
		}
		if err := tx.UpdateTransaction(ctx, next); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		if err := applyAdjustments(ctx, tx, core.TransitionDelta(old, next)); err != nil {
			return err
		}
		result = next
		changed = true
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	if changed {
		slog.InfoContext(ctx, "Transaction paid state toggled", "id", id, "is_paid", paid)
		publish(ctx, s.events, "transaction.updated", result.ProjectID, id)
	}
	return result, nil
}

// Delete removes a transaction, reverting its delta if it was paid. A
// transfer leg takes its linked leg down with it; the pair never exists
// partially.
func (s *LedgerService) Delete(ctx context.Context, userID, id int64) error {
	var projectID int64
	err := s.store.InTx(ctx, func(tx Store) error {
		t, err := tx.Transaction(ctx, id)
		if err != nil {
			return err
		}
		if err := requireMember(ctx, tx, userID, t.ProjectID); err != nil {
			return err
		}
		if t.CardPurchaseID != nil {
			return fmt.Errorf("card purchase installments are removed with their purchase: %w", core.ErrInvariant)
		}
		projectID = t.ProjectID

		if err := deleteLeg(ctx, tx, t); err != nil {
			return err
		}
		if t.LinkedTransactionID != nil {
			linked, err := tx.Transaction(ctx, *t.LinkedTransactionID)
			if err != nil {
				return fmt.Errorf("load linked leg: %w", err)
			}
			if err := deleteLeg(ctx, tx, linked); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id, "project_id", projectID)
	publish(ctx, s.events, "transaction.deleted", projectID, id)
	return nil
}

// Get returns a single transaction visible to the caller.
func (s *LedgerService) Get(ctx context.Context, userID, id int64) (core.Transaction, error) {
	t, err := s.store.Transaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := requireMember(ctx, s.store, userID, t.ProjectID); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

// deleteLeg removes one transaction and reverts its balance delta.
func deleteLeg(ctx context.Context, tx Store, t core.Transaction) error {
	if err := tx.DeleteTransaction(ctx, t.ID); err != nil {
		return fmt.Errorf("delete transaction %d: %w", t.ID, err)
	}
	return applyAdjustments(ctx, tx, core.TransitionDelta(t, core.Transaction{}))
}

// applyAdjustments pushes transition deltas into the store. An absent
// account is a hard failure; a required adjustment is never skipped.
func applyAdjustments(ctx context.Context, tx Store, adjs []core.BalanceAdjustment) error {
	for _, adj := range adjs {
		if err := tx.AdjustBalance(ctx, adj.AccountID, adj.Delta.Cents); err != nil {
			return fmt.Errorf("adjust balance of account %d by %d: %w", adj.AccountID, adj.Delta.Cents, err)
		}
	}
	return nil
}
