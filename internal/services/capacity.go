package services

import (
	"context"
	"fmt"

	"cuentas/internal/core"
)

// CapacityService reports how much of a project's monthly debt limit its
// active card purchases consume. Personal purchases count against the
// limit, external ones (paid by someone else) are tracked separately.
type CapacityService struct {
	store Store
}

func NewCapacityService(store Store) *CapacityService {
	return &CapacityService{store: store}
}

// CapacityReport is the monthly debt position of a project. HasLimit is
// false when the project never configured a limit; the percentage and
// capacity fields are zero in that case.
type CapacityReport struct {
	PersonalMonthlyCharge core.Money
	ExternalMonthlyCharge core.Money
	HasLimit              bool
	MonthlyLimit          core.Money
	UsedPercentage        float64
	AvailableCapacity     core.Money
	IsOverLimit           bool
}

// Report sums the installment amounts of every active purchase that
// still has unreconciled installments. Callers without membership get a
// zeroed report rather than an error.
func (s *CapacityService) Report(ctx context.Context, userID, projectID int64) (CapacityReport, error) {
	member, err := isMember(ctx, s.store, userID, projectID)
	if err != nil {
		return CapacityReport{}, err
	}
	if !member {
		return CapacityReport{}, nil
	}

	purchases, err := s.store.ActiveCardPurchases(ctx, projectID)
	if err != nil {
		return CapacityReport{}, fmt.Errorf("load active purchases: %w", err)
	}

	var report CapacityReport
	for _, p := range purchases {
		remaining, err := s.hasUnreconciledInstallments(ctx, p)
		if err != nil {
			return CapacityReport{}, err
		}
		if !remaining {
			continue
		}
		if p.IsExternal {
			report.ExternalMonthlyCharge = report.ExternalMonthlyCharge.Add(p.InstallmentAmount)
		} else {
			report.PersonalMonthlyCharge = report.PersonalMonthlyCharge.Add(p.InstallmentAmount)
		}
	}

	limit, err := s.store.DebtLimit(ctx, projectID)
	if err != nil {
		return CapacityReport{}, fmt.Errorf("load debt limit: %w", err)
	}
	if limit == nil || limit.Cents <= 0 {
		return report, nil
	}

	report.HasLimit = true
	report.MonthlyLimit = *limit
	report.UsedPercentage = float64(report.PersonalMonthlyCharge.Cents) / float64(limit.Cents) * 100
	if available := limit.Cents - report.PersonalMonthlyCharge.Cents; available > 0 {
		report.AvailableCapacity = core.Money{Cents: available}
	}
	report.IsOverLimit = report.PersonalMonthlyCharge.Cents > limit.Cents
	return report, nil
}

// hasUnreconciledInstallments reports whether any leg of the purchase
// still lacks a reconciliation stamp, counting the initial paid prefix
// as settled.
func (s *CapacityService) hasUnreconciledInstallments(ctx context.Context, p core.CardPurchase) (bool, error) {
	legs, err := s.store.LegsByCardPurchase(ctx, p.ID)
	if err != nil {
		return false, fmt.Errorf("load purchase legs: %w", err)
	}
	settled := p.InitialPaidInstallments
	for _, leg := range legs {
		if leg.PaidByTransferID != nil {
			settled++
		}
	}
	return settled < p.Installments, nil
}
