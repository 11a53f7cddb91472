package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cuentas/internal/core"
)

// CycleService is the billing cycle state machine: open cycles compute
// totals live, closed cycles freeze them into a snapshot. A project has
// at most one open cycle at any time.
type CycleService struct {
	store  Store
	events Publisher
	now    func() time.Time
}

func NewCycleService(store Store, events Publisher) *CycleService {
	return &CycleService{store: store, events: events, now: time.Now}
}

type CreateCycleParams struct {
	ProjectID int64
	StartDate core.Date
	EndDate   core.Date
}

// CycleReport is a cycle with its effective totals: the frozen snapshot
// when closed, a live recomputation when open.
type CycleReport struct {
	Cycle  core.BillingCycle
	Totals core.CycleSnapshot
}

// CreateCycle opens a new cycle and loads matured recurring obligations
// into it: active templates dated at cycle start, and credit
// installments due within [start, end). Card purchase installments are
// never loaded here; they exist since purchase time.
func (s *CycleService) CreateCycle(ctx context.Context, userID int64, p CreateCycleParams) (core.BillingCycle, error) {
	if err := requireMember(ctx, s.store, userID, p.ProjectID); err != nil {
		return core.BillingCycle{}, err
	}

	cycle := core.BillingCycle{
		ProjectID: p.ProjectID,
		StartDate: p.StartDate,
		EndDate:   p.EndDate,
		Status:    core.CycleOpen,
	}
	if err := cycle.Validate(); err != nil {
		return core.BillingCycle{}, err
	}

	var loaded int
	err := s.store.InTx(ctx, func(tx Store) error {
		open, err := tx.HasOpenCycle(ctx, p.ProjectID)
		if err != nil {
			return fmt.Errorf("check open cycles: %w", err)
		}
		if open {
			return fmt.Errorf("project %d already has an open cycle: %w", p.ProjectID, core.ErrInvariant)
		}

		id, err := tx.InsertCycle(ctx, cycle)
		if err != nil {
			return fmt.Errorf("insert cycle: %w", err)
		}
		cycle.ID = id

		loaded, err = s.loadMaturedObligations(ctx, tx, cycle)
		return err
	})
	if err != nil {
		return core.BillingCycle{}, err
	}

	slog.InfoContext(ctx, "Billing cycle created",
		"id", cycle.ID,
		"project_id", p.ProjectID,
		"obligations_loaded", loaded)
	publish(ctx, s.events, "cycle.created", p.ProjectID, cycle.ID)
	return cycle, nil
}

// CloseCycle freezes the cycle's totals into its snapshot. An optional
// new end date replaces the stored one before computation.
func (s *CycleService) CloseCycle(ctx context.Context, userID, cycleID int64, newEndDate *core.Date) (core.BillingCycle, error) {
	var cycle core.BillingCycle
	err := s.store.InTx(ctx, func(tx Store) error {
		var err error
		cycle, err = s.loadCycle(ctx, tx, userID, cycleID)
		if err != nil {
			return err
		}
		if cycle.Status != core.CycleOpen {
			return fmt.Errorf("cycle %d is not open: %w", cycleID, core.ErrInvariant)
		}
		if newEndDate != nil {
			if newEndDate.Before(cycle.StartDate) {
				return fmt.Errorf("end date precedes start date: %w", core.ErrInvariant)
			}
			cycle.EndDate = *newEndDate
		}

		snapshot, err := s.computeTotals(ctx, tx, cycle)
		if err != nil {
			return err
		}
		cycle.Status = core.CycleClosed
		cycle.Snapshot = &snapshot
		return tx.UpdateCycle(ctx, cycle)
	})
	if err != nil {
		return core.BillingCycle{}, err
	}

	slog.InfoContext(ctx, "Billing cycle closed",
		"id", cycleID,
		"income_cents", cycle.Snapshot.Income.Cents,
		"expenses_cents", cycle.Snapshot.Expenses.Cents,
		"balance_cents", cycle.Snapshot.Balance.Cents)
	publish(ctx, s.events, "cycle.closed", cycle.ProjectID, cycleID)
	return cycle, nil
}

// ReopenCycle discards the snapshot and resumes live recomputation.
// Fails while another cycle of the project is open.
func (s *CycleService) ReopenCycle(ctx context.Context, userID, cycleID int64) (core.BillingCycle, error) {
	var cycle core.BillingCycle
	err := s.store.InTx(ctx, func(tx Store) error {
		var err error
		cycle, err = s.loadCycle(ctx, tx, userID, cycleID)
		if err != nil {
			return err
		}
		if cycle.Status != core.CycleClosed {
			return fmt.Errorf("cycle %d is not closed: %w", cycleID, core.ErrInvariant)
		}
		open, err := tx.HasOpenCycle(ctx, cycle.ProjectID)
		if err != nil {
			return fmt.Errorf("check open cycles: %w", err)
		}
		if open {
			return fmt.Errorf("project %d already has an open cycle: %w", cycle.ProjectID, core.ErrInvariant)
		}
		cycle.Status = core.CycleOpen
		cycle.Snapshot = nil
		return tx.UpdateCycle(ctx, cycle)
	})
	if err != nil {
		return core.BillingCycle{}, err
	}

	slog.InfoContext(ctx, "Billing cycle reopened", "id", cycleID)
	publish(ctx, s.events, "cycle.reopened", cycle.ProjectID, cycleID)
	return cycle, nil
}

// RecalculateCycle overwrites a closed cycle's snapshot using the
// stored date range; the status does not change.
func (s *CycleService) RecalculateCycle(ctx context.Context, userID, cycleID int64) (core.BillingCycle, error) {
	var cycle core.BillingCycle
	err := s.store.InTx(ctx, func(tx Store) error {
		var err error
		cycle, err = s.loadCycle(ctx, tx, userID, cycleID)
		if err != nil {
			return err
		}
		if cycle.Status != core.CycleClosed {
			return fmt.Errorf("cycle %d is not closed: %w", cycleID, core.ErrInvariant)
		}
		snapshot, err := s.computeTotals(ctx, tx, cycle)
		if err != nil {
			return err
		}
		cycle.Snapshot = &snapshot
		return tx.UpdateCycle(ctx, cycle)
	})
	if err != nil {
		return core.BillingCycle{}, err
	}

	slog.InfoContext(ctx, "Billing cycle recalculated", "id", cycleID)
	publish(ctx, s.events, "cycle.recalculated", cycle.ProjectID, cycleID)
	return cycle, nil
}

// DeleteCycle removes the cycle from either state. Transactions loaded
// at creation stay; deletion never cascades to them.
func (s *CycleService) DeleteCycle(ctx context.Context, userID, cycleID int64) error {
	var projectID int64
	err := s.store.InTx(ctx, func(tx Store) error {
		cycle, err := s.loadCycle(ctx, tx, userID, cycleID)
		if err != nil {
			return err
		}
		projectID = cycle.ProjectID
		return tx.DeleteCycle(ctx, cycleID)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Billing cycle deleted", "id", cycleID)
	publish(ctx, s.events, "cycle.deleted", projectID, cycleID)
	return nil
}

// GetCycleReport returns the cycle with its effective totals: frozen
// snapshot when closed, live recomputation when open.
func (s *CycleService) GetCycleReport(ctx context.Context, userID, cycleID int64) (CycleReport, error) {
	cycle, err := s.loadCycle(ctx, s.store, userID, cycleID)
	if err != nil {
		return CycleReport{}, err
	}
	if cycle.Status == core.CycleClosed && cycle.Snapshot != nil {
		return CycleReport{Cycle: cycle, Totals: *cycle.Snapshot}, nil
	}
	totals, err := s.computeTotals(ctx, s.store, cycle)
	if err != nil {
		return CycleReport{}, err
	}
	return CycleReport{Cycle: cycle, Totals: totals}, nil
}

func (s *CycleService) loadCycle(ctx context.Context, tx Store, userID, cycleID int64) (core.BillingCycle, error) {
	cycle, err := tx.Cycle(ctx, cycleID)
	if err != nil {
		return core.BillingCycle{}, err
	}
	if err := requireMember(ctx, tx, userID, cycle.ProjectID); err != nil {
		return core.BillingCycle{}, err
	}
	return cycle, nil
}

// computeTotals sums paid transactions by type over the cycle's range,
// savings-fund deposits separately. Balance is income minus expenses.
func (s *CycleService) computeTotals(ctx context.Context, tx Store, cycle core.BillingCycle) (core.CycleSnapshot, error) {
	totals, err := tx.SumPaidByTypeInRange(ctx, cycle.ProjectID, cycle.StartDate, cycle.EndDate)
	if err != nil {
		return core.CycleSnapshot{}, fmt.Errorf("sum cycle totals: %w", err)
	}
	return core.CycleSnapshot{
		Income:   totals.Income,
		Expenses: totals.Expenses,
		Savings:  totals.Savings,
		Balance:  totals.Income.Add(totals.Expenses.Neg()),
	}, nil
}

// loadMaturedObligations inserts unpaid legs for active recurring
// templates (dated at cycle start) and for credit installments whose
// due date falls within [start, end).
func (s *CycleService) loadMaturedObligations(ctx context.Context, tx Store, cycle core.BillingCycle) (int, error) {
	loaded := 0

	templates, err := tx.ActiveTemplates(ctx, cycle.ProjectID)
	if err != nil {
		return 0, fmt.Errorf("load templates: %w", err)
	}
	for _, tpl := range templates {
		leg := core.Transaction{
			ProjectID:     cycle.ProjectID,
			AccountID:     tpl.AccountID,
			Type:          tpl.Type,
			Amount:        tpl.Amount,
			Date:          cycle.StartDate,
			Description:   tpl.Description,
			Category:      tpl.Category,
			IsSavingsFund: false,
		}
		if _, err := tx.InsertTransaction(ctx, leg); err != nil {
			return 0, fmt.Errorf("insert template obligation %d: %w", tpl.ID, err)
		}
		loaded++
	}

	credits, err := tx.CreditsByProject(ctx, cycle.ProjectID)
	if err != nil {
		return 0, fmt.Errorf("load credits: %w", err)
	}
	for _, credit := range credits {
		legs, err := tx.LegsByCredit(ctx, credit.ID)
		if err != nil {
			return 0, err
		}
		creditID := credit.ID
		// New legs inherit account and category from the latest
		// generated one so mid-flight credits stay consistent.
		var accountID *int64
		var category string
		if n := len(legs); n > 0 {
			accountID = legs[n-1].AccountID
			category = legs[n-1].Category
		}
		covered := coveredIndexes(credit, legs)
		for i := 0; i < credit.Installments; i++ {
			if covered[i] {
				continue
			}
			due := core.DueDate(credit.StartDate, credit.Frequency, i+1)
			if due.Before(cycle.StartDate) {
				continue
			}
			if !due.Before(cycle.EndDate) {
				break
			}
			leg := core.Transaction{
				ProjectID:   cycle.ProjectID,
				AccountID:   accountID,
				Type:        core.Expense,
				Amount:      credit.InstallmentAmount,
				Date:        due,
				Description: fmt.Sprintf("%s (%d/%d)", credit.Description, i+1, credit.Installments),
				Category:    category,
				CreditID:    &creditID,
			}
			if _, err := tx.InsertTransaction(ctx, leg); err != nil {
				return 0, fmt.Errorf("insert credit obligation: %w", err)
			}
			loaded++
		}
	}
	return loaded, nil
}
