package http

import (
	"time"

	"cuentas/internal/core"
	"cuentas/internal/services"
)

// Wire representations. Amounts travel as integer cents, dates as
// YYYY-MM-DD strings.

type accountJSON struct {
	ID           int64  `json:"id"`
	ProjectID    int64  `json:"project_id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Currency     string `json:"currency,omitempty"`
	BalanceCents int64  `json:"balance_cents"`
}

func toAccountJSON(a core.Account) accountJSON {
	return accountJSON{
		ID:           a.ID,
		ProjectID:    a.ProjectID,
		Name:         a.Name,
		Type:         string(a.Type),
		Currency:     a.Currency,
		BalanceCents: a.Balance.Cents,
	}
}

type transactionJSON struct {
	ID                  int64      `json:"id"`
	ProjectID           int64      `json:"project_id"`
	AccountID           *int64     `json:"account_id,omitempty"`
	Type                string     `json:"type"`
	AmountCents         int64      `json:"amount_cents"`
	Date                string     `json:"date"`
	Description         string     `json:"description"`
	Category            string     `json:"category,omitempty"`
	IsPaid              bool       `json:"is_paid"`
	PaidAt              *time.Time `json:"paid_at,omitempty"`
	LinkedTransactionID *int64     `json:"linked_transaction_id,omitempty"`
	CardPurchaseID      *int64     `json:"card_purchase_id,omitempty"`
	CreditID            *int64     `json:"credit_id,omitempty"`
	PaidByTransferID    *int64     `json:"paid_by_transfer_id,omitempty"`
	IsHistoricallyPaid  bool       `json:"is_historically_paid"`
	IsSavingsFund       bool       `json:"is_savings_fund"`
}

func toTransactionJSON(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:                  t.ID,
		ProjectID:           t.ProjectID,
		AccountID:           t.AccountID,
		Type:                string(t.Type),
		AmountCents:         t.Amount.Cents,
		Date:                formatDate(t.Date),
		Description:         t.Description,
		Category:            t.Category,
		IsPaid:              t.IsPaid,
		PaidAt:              t.PaidAt,
		LinkedTransactionID: t.LinkedTransactionID,
		CardPurchaseID:      t.CardPurchaseID,
		CreditID:            t.CreditID,
		PaidByTransferID:    t.PaidByTransferID,
		IsHistoricallyPaid:  t.IsHistoricallyPaid,
		IsSavingsFund:       t.IsSavingsFund,
	}
}

func toTransactionListJSON(ts []core.Transaction) []transactionJSON {
	out := make([]transactionJSON, 0, len(ts))
	for _, t := range ts {
		out = append(out, toTransactionJSON(t))
	}
	return out
}

type transferPairJSON struct {
	ExpenseLeg transactionJSON `json:"expense_leg"`
	IncomeLeg  transactionJSON `json:"income_leg"`
}

func toTransferPairJSON(p services.TransferPair) transferPairJSON {
	return transferPairJSON{
		ExpenseLeg: toTransactionJSON(p.ExpenseLeg),
		IncomeLeg:  toTransactionJSON(p.IncomeLeg),
	}
}

type cardPurchaseJSON struct {
	ID                      int64   `json:"id"`
	ProjectID               int64   `json:"project_id"`
	AccountID               int64   `json:"account_id"`
	Description             string  `json:"description"`
	OriginalAmountCents     int64   `json:"original_amount_cents"`
	InterestRate            float64 `json:"interest_rate"`
	TotalAmountCents        int64   `json:"total_amount_cents"`
	Installments            int     `json:"installments"`
	InstallmentAmountCents  int64   `json:"installment_amount_cents"`
	FirstChargeDate         string  `json:"first_charge_date"`
	InitialPaidInstallments int     `json:"initial_paid_installments"`
	IsExternal              bool    `json:"is_external"`
	IsActive                bool    `json:"is_active"`
}

func toCardPurchaseJSON(p core.CardPurchase) cardPurchaseJSON {
	return cardPurchaseJSON{
		ID:                      p.ID,
		ProjectID:               p.ProjectID,
		AccountID:               p.AccountID,
		Description:             p.Description,
		OriginalAmountCents:     p.OriginalAmount.Cents,
		InterestRate:            p.InterestRate,
		TotalAmountCents:        p.TotalAmount.Cents,
		Installments:            p.Installments,
		InstallmentAmountCents:  p.InstallmentAmount.Cents,
		FirstChargeDate:         formatDate(p.FirstChargeDate),
		InitialPaidInstallments: p.InitialPaidInstallments,
		IsExternal:              p.IsExternal,
		IsActive:                p.IsActive,
	}
}

type cardPurchaseDetailJSON struct {
	Purchase        cardPurchaseJSON  `json:"purchase"`
	Legs            []transactionJSON `json:"legs"`
	ReconciledCount int               `json:"reconciled_count"`
}

type creditJSON struct {
	ID                     int64  `json:"id"`
	ProjectID              int64  `json:"project_id"`
	Description            string `json:"description"`
	PrincipalAmountCents   int64  `json:"principal_amount_cents"`
	TotalAmountCents       int64  `json:"total_amount_cents"`
	Installments           int    `json:"installments"`
	InstallmentAmountCents int64  `json:"installment_amount_cents"`
	StartDate              string `json:"start_date"`
	Frequency              string `json:"frequency"`
}

func toCreditJSON(c core.Credit) creditJSON {
	return creditJSON{
		ID:                     c.ID,
		ProjectID:              c.ProjectID,
		Description:            c.Description,
		PrincipalAmountCents:   c.PrincipalAmount.Cents,
		TotalAmountCents:       c.TotalAmount.Cents,
		Installments:           c.Installments,
		InstallmentAmountCents: c.InstallmentAmount.Cents,
		StartDate:              formatDate(c.StartDate),
		Frequency:              string(c.Frequency),
	}
}

type creditDetailJSON struct {
	Credit           creditJSON        `json:"credit"`
	Legs             []transactionJSON `json:"legs"`
	PaidInstallments int               `json:"paid_installments"`
}

type snapshotJSON struct {
	IncomeCents   int64 `json:"income_cents"`
	ExpensesCents int64 `json:"expenses_cents"`
	SavingsCents  int64 `json:"savings_cents"`
	BalanceCents  int64 `json:"balance_cents"`
}

func toSnapshotJSON(s core.CycleSnapshot) snapshotJSON {
	return snapshotJSON{
		IncomeCents:   s.Income.Cents,
		ExpensesCents: s.Expenses.Cents,
		SavingsCents:  s.Savings.Cents,
		BalanceCents:  s.Balance.Cents,
	}
}

type cycleJSON struct {
	ID        int64         `json:"id"`
	ProjectID int64         `json:"project_id"`
	StartDate string        `json:"start_date"`
	EndDate   string        `json:"end_date"`
	Status    string        `json:"status"`
	Snapshot  *snapshotJSON `json:"snapshot,omitempty"`
}

func toCycleJSON(bc core.BillingCycle) cycleJSON {
	out := cycleJSON{
		ID:        bc.ID,
		ProjectID: bc.ProjectID,
		StartDate: formatDate(bc.StartDate),
		EndDate:   formatDate(bc.EndDate),
		Status:    string(bc.Status),
	}
	if bc.Snapshot != nil {
		snap := toSnapshotJSON(*bc.Snapshot)
		out.Snapshot = &snap
	}
	return out
}

type cycleReportJSON struct {
	Cycle  cycleJSON    `json:"cycle"`
	Totals snapshotJSON `json:"totals"`
}

type capacityReportJSON struct {
	PersonalMonthlyChargeCents int64   `json:"personal_monthly_charge_cents"`
	ExternalMonthlyChargeCents int64   `json:"external_monthly_charge_cents"`
	HasLimit                   bool    `json:"has_limit"`
	MonthlyLimitCents          int64   `json:"monthly_limit_cents"`
	UsedPercentage             float64 `json:"used_percentage"`
	AvailableCapacityCents     int64   `json:"available_capacity_cents"`
	IsOverLimit                bool    `json:"is_over_limit"`
}

func toCapacityReportJSON(r services.CapacityReport) capacityReportJSON {
	return capacityReportJSON{
		PersonalMonthlyChargeCents: r.PersonalMonthlyCharge.Cents,
		ExternalMonthlyChargeCents: r.ExternalMonthlyCharge.Cents,
		HasLimit:                   r.HasLimit,
		MonthlyLimitCents:          r.MonthlyLimit.Cents,
		UsedPercentage:             r.UsedPercentage,
		AvailableCapacityCents:     r.AvailableCapacity.Cents,
		IsOverLimit:                r.IsOverLimit,
	}
}

type templateJSON struct {
	ID          int64  `json:"id"`
	ProjectID   int64  `json:"project_id"`
	AccountID   *int64 `json:"account_id,omitempty"`
	Type        string `json:"type"`
	AmountCents int64  `json:"amount_cents"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
	IsActive    bool   `json:"is_active"`
}

func toTemplateJSON(t core.RecurringTemplate) templateJSON {
	return templateJSON{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		AccountID:   t.AccountID,
		Type:        string(t.Type),
		AmountCents: t.Amount.Cents,
		Description: t.Description,
		Category:    t.Category,
		IsActive:    t.IsActive,
	}
}
