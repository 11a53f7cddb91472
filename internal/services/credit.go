package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cuentas/internal/core"
)

// CreditService generates loan-style installment legs lazily. Unlike
// card purchases, a credit's legs do not exist until matured or
// requested, and each paid leg carries its own balance delta. This
// asymmetry is deliberate: card debt is incurred atomically at purchase
// time, loan installments are discrete future obligations.
type CreditService struct {
	store  Store
	events Publisher
	now    func() time.Time
}

func NewCreditService(store Store, events Publisher) *CreditService {
	return &CreditService{store: store, events: events, now: time.Now}
}

type CreateCreditParams struct {
	ProjectID         int64
	Description       string
	Category          string
	PrincipalAmount   core.Money
	InstallmentAmount core.Money
	Installments      int
	StartDate         core.Date
	Frequency         core.Frequency
	// AccountID receives historical paid legs' balance deltas. Legs
	// without an account never touch a balance.
	AccountID *int64
	// PaidInstallments imports a credit already partway paid. Nil means
	// derive the count from the schedule: installments whose due date
	// already passed.
	PaidInstallments *int
}

// CreateCreditResult reports the created credit plus the schedule-derived
// paid count, whether or not the caller overrode it.
type CreateCreditResult struct {
	Credit                     core.Credit
	CalculatedPaidInstallments int
}

// CreditDetail is a credit with its generated legs. Paid installments
// are counted, never stored: legs with IsPaid true.
type CreditDetail struct {
	Credit           core.Credit
	Legs             []core.Transaction
	PaidInstallments int
}

// CreateCredit inserts the credit and, when importing one partway paid,
// its already-paid legs at their true historical due dates, each
// applying its balance delta at creation.
func (s *CreditService) CreateCredit(ctx context.Context, userID int64, p CreateCreditParams) (CreateCreditResult, error) {
	if err := requireMember(ctx, s.store, userID, p.ProjectID); err != nil {
		return CreateCreditResult{}, err
	}

	credit := core.Credit{
		ProjectID:         p.ProjectID,
		Description:       p.Description,
		PrincipalAmount:   p.PrincipalAmount,
		TotalAmount:       core.Money{Cents: p.InstallmentAmount.Cents * int64(p.Installments)},
		Installments:      p.Installments,
		InstallmentAmount: p.InstallmentAmount,
		StartDate:         p.StartDate,
		Frequency:         p.Frequency,
	}
	if err := credit.Validate(); err != nil {
		return CreateCreditResult{}, err
	}

	// Installment i matures one period after its predecessor, the first
	// one period after the start date.
	today := core.DateOf(s.now())
	calculated := core.PastDueCount(p.StartDate, p.Frequency, 1, p.Installments, today)

	paid := calculated
	if p.PaidInstallments != nil {
		paid = *p.PaidInstallments
		if paid < 0 || paid > p.Installments {
			return CreateCreditResult{}, fmt.Errorf("paid installments %d out of range: %w", paid, core.ErrInvariant)
		}
	}

	err := s.store.InTx(ctx, func(tx Store) error {
		if p.AccountID != nil {
			if err := checkProjectAccount(ctx, tx, *p.AccountID, p.ProjectID); err != nil {
				return err
			}
		}
		id, err := tx.InsertCredit(ctx, credit)
		if err != nil {
			return fmt.Errorf("insert credit: %w", err)
		}
		credit.ID = id

		paidAt := s.now()
		for i := 0; i < paid; i++ {
			leg := s.installmentLeg(credit, i, p.AccountID, p.Category)
			leg.IsPaid = true
			leg.PaidAt = &paidAt
			legID, err := tx.InsertTransaction(ctx, leg)
			if err != nil {
				return fmt.Errorf("insert historical leg %d: %w", i, err)
			}
			leg.ID = legID
			if err := applyAdjustments(ctx, tx, core.TransitionDelta(core.Transaction{}, leg)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return CreateCreditResult{}, err
	}

	slog.InfoContext(ctx, "Credit created",
		"id", credit.ID,
		"installments", p.Installments,
		"paid_installments", paid,
		"calculated_paid", calculated,
		"frequency", p.Frequency)
	publish(ctx, s.events, "credit.created", p.ProjectID, credit.ID)
	return CreateCreditResult{Credit: credit, CalculatedPaidInstallments: calculated}, nil
}

// GenerateNextInstallment inserts the unpaid leg for the earliest
// schedule slot not yet generated. No balance effect until toggled
// paid.
func (s *CreditService) GenerateNextInstallment(ctx context.Context, userID, creditID int64, accountID *int64) (core.Transaction, error) {
	var leg core.Transaction
	err := s.store.InTx(ctx, func(tx Store) error {
		credit, legs, err := s.loadCredit(ctx, tx, userID, creditID)
		if err != nil {
			return err
		}
		index := nextUncovered(coveredIndexes(credit, legs), credit.Installments)
		if index < 0 {
			return fmt.Errorf("credit %d has no remaining installments: %w", creditID, core.ErrInvariant)
		}
		leg, err = s.insertUnpaidLeg(ctx, tx, credit, index, accountID)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Credit installment generated", "credit_id", creditID, "leg_id", leg.ID)
	publish(ctx, s.events, "credit.installment_generated", leg.ProjectID, leg.ID)
	return leg, nil
}

// GenerateAllRemainingInstallments inserts every leg not yet generated.
func (s *CreditService) GenerateAllRemainingInstallments(ctx context.Context, userID, creditID int64, accountID *int64) ([]core.Transaction, error) {
	var generated []core.Transaction
	var projectID int64
	err := s.store.InTx(ctx, func(tx Store) error {
		credit, legs, err := s.loadCredit(ctx, tx, userID, creditID)
		if err != nil {
			return err
		}
		projectID = credit.ProjectID
		covered := coveredIndexes(credit, legs)
		for i := 0; i < credit.Installments; i++ {
			if covered[i] {
				continue
			}
			leg, err := s.insertUnpaidLeg(ctx, tx, credit, i, accountID)
			if err != nil {
				return err
			}
			generated = append(generated, leg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(generated) > 0 {
		slog.InfoContext(ctx, "Credit installments generated",
			"credit_id", creditID, "count", len(generated))
		publish(ctx, s.events, "credit.installment_generated", projectID, creditID)
	}
	return generated, nil
}

// MatureDueInstallments inserts unpaid legs for every credit
// installment due on or before today, across all projects. Runs
// without a caller; the background worker owns it.
func (s *CreditService) MatureDueInstallments(ctx context.Context, today core.Date) (int, error) {
	projects, err := s.store.ProjectIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list projects: %w", err)
	}

	matured := 0
	for _, projectID := range projects {
		err := s.store.InTx(ctx, func(tx Store) error {
			credits, err := tx.CreditsByProject(ctx, projectID)
			if err != nil {
				return err
			}
			for _, credit := range credits {
				legs, err := tx.LegsByCredit(ctx, credit.ID)
				if err != nil {
					return err
				}
				var accountID *int64
				if n := len(legs); n > 0 {
					accountID = legs[n-1].AccountID
				}
				covered := coveredIndexes(credit, legs)
				for i := 0; i < credit.Installments; i++ {
					if covered[i] {
						continue
					}
					due := core.DueDate(credit.StartDate, credit.Frequency, i+1)
					if due.After(today) {
						break
					}
					if _, err := s.insertUnpaidLeg(ctx, tx, credit, i, accountID); err != nil {
						return err
					}
					matured++
				}
			}
			return nil
		})
		if err != nil {
			return matured, fmt.Errorf("mature installments for project %d: %w", projectID, err)
		}
	}

	if matured > 0 {
		slog.InfoContext(ctx, "Credit installments matured",
			"count", matured,
			"as_of", today.Format("2006-01-02"))
	}
	return matured, nil
}

// GetCredit returns the credit, its legs and the paid count.
func (s *CreditService) GetCredit(ctx context.Context, userID, id int64) (CreditDetail, error) {
	credit, err := s.store.Credit(ctx, id)
	if err != nil {
		return CreditDetail{}, err
	}
	if err := requireMember(ctx, s.store, userID, credit.ProjectID); err != nil {
		return CreditDetail{}, err
	}
	legs, err := s.store.LegsByCredit(ctx, id)
	if err != nil {
		return CreditDetail{}, err
	}
	paid := 0
	for _, leg := range legs {
		if leg.IsPaid {
			paid++
		}
	}
	return CreditDetail{Credit: credit, Legs: legs, PaidInstallments: paid}, nil
}

// DeleteCredit removes the credit and its legs. Credit legs follow
// per-leg accounting, so paid legs revert their own deltas.
func (s *CreditService) DeleteCredit(ctx context.Context, userID, id int64) error {
	var projectID int64
	err := s.store.InTx(ctx, func(tx Store) error {
		credit, legs, err := s.loadCredit(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		projectID = credit.ProjectID
		for _, leg := range legs {
			if err := deleteLeg(ctx, tx, leg); err != nil {
				return err
			}
		}
		return tx.DeleteCredit(ctx, id)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Credit deleted", "id", id)
	publish(ctx, s.events, "credit.deleted", projectID, id)
	return nil
}

func (s *CreditService) loadCredit(ctx context.Context, tx Store, userID, creditID int64) (core.Credit, []core.Transaction, error) {
	credit, err := tx.Credit(ctx, creditID)
	if err != nil {
		return core.Credit{}, nil, err
	}
	if err := requireMember(ctx, tx, userID, credit.ProjectID); err != nil {
		return core.Credit{}, nil, err
	}
	legs, err := tx.LegsByCredit(ctx, creditID)
	if err != nil {
		return core.Credit{}, nil, err
	}
	return credit, legs, nil
}

func (s *CreditService) insertUnpaidLeg(ctx context.Context, tx Store, credit core.Credit, index int, accountID *int64) (core.Transaction, error) {
	leg := s.installmentLeg(credit, index, accountID, "")
	id, err := tx.InsertTransaction(ctx, leg)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert installment leg %d: %w", index, err)
	}
	leg.ID = id
	return leg, nil
}

// coveredIndexes reports which installment indexes the existing legs
// occupy. Legs match schedule slots by due date, so a leg inserted
// mid-schedule (a billing cycle loading an obligation months in) does
// not shift later slots. A leg whose date matches no slot claims the
// lowest free index and still counts toward the installment total.
func coveredIndexes(credit core.Credit, legs []core.Transaction) map[int]bool {
	byDate := make(map[string]int, credit.Installments)
	for i := 0; i < credit.Installments; i++ {
		byDate[core.DueDate(credit.StartDate, credit.Frequency, i+1).Format("2006-01-02")] = i
	}
	covered := make(map[int]bool, len(legs))
	unmatched := 0
	for _, leg := range legs {
		if i, ok := byDate[leg.Date.Format("2006-01-02")]; ok && !covered[i] {
			covered[i] = true
			continue
		}
		unmatched++
	}
	for i := 0; i < credit.Installments && unmatched > 0; i++ {
		if !covered[i] {
			covered[i] = true
			unmatched--
		}
	}
	return covered
}

// nextUncovered returns the lowest ungenerated installment index, or -1
// once the schedule is fully generated.
func nextUncovered(covered map[int]bool, installments int) int {
	for i := 0; i < installments; i++ {
		if !covered[i] {
			return i
		}
	}
	return -1
}

// installmentLeg builds the unpaid expense leg for installment index
// (0-based, due index+1 periods after start).
func (s *CreditService) installmentLeg(credit core.Credit, index int, accountID *int64, category string) core.Transaction {
	creditID := credit.ID
	return core.Transaction{
		ProjectID:   credit.ProjectID,
		AccountID:   accountID,
		Type:        core.Expense,
		Amount:      credit.InstallmentAmount,
		Date:        core.DueDate(credit.StartDate, credit.Frequency, index+1),
		Description: fmt.Sprintf("%s (%d/%d)", credit.Description, index+1, credit.Installments),
		Category:    category,
		CreditID:    &creditID,
	}
}
