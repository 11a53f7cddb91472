package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	AccountChecking   AccountType = "checking"
	AccountSavings    AccountType = "savings"
	AccountCash       AccountType = "cash"
	AccountCreditCard AccountType = "credit_card"
	AccountInvestment AccountType = "investment"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	Weekly   Frequency = "weekly"
	Biweekly Frequency = "biweekly"
	Monthly  Frequency = "monthly"
)

const (
	CycleOpen   CycleStatus = "open"
	CycleClosed CycleStatus = "closed"
)

type (
	AccountType     string
	TransactionType string
	Frequency       string
	CycleStatus     string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Account struct {
		ID        int64
		ProjectID int64
		Name      string
		Type      AccountType
		Currency  string // opaque code, no conversion happens here
		Balance   Money
	}

	// Transaction is a single ledger movement. A transaction may be one
	// leg of a transfer pair (LinkedTransactionID), one installment of a
	// card purchase or credit, or a standalone income/expense.
	Transaction struct {
		ID                  int64
		ProjectID           int64
		AccountID           *int64
		Type                TransactionType
		Amount              Money
		Date                Date
		Description         string
		Category            string
		IsPaid              bool
		PaidAt              *time.Time
		LinkedTransactionID *int64
		CardPurchaseID      *int64
		CreditID            *int64
		PaidByTransferID    *int64
		IsHistoricallyPaid  bool
		IsSavingsFund       bool
	}

	// CardPurchase is a credit-card installment purchase. All its legs are
	// inserted at creation time and the card balance takes one lump-sum
	// adjustment for the total amount.
	CardPurchase struct {
		ID                      int64
		ProjectID               int64
		AccountID               int64
		Description             string
		OriginalAmount          Money
		InterestRate            float64 // percent
		TotalAmount             Money
		Installments            int
		InstallmentAmount       Money
		FirstChargeDate         Date
		InitialPaidInstallments int
		IsExternal              bool // counts against the external debt bucket
		IsActive                bool
	}

	// Credit is a loan-style obligation. Legs are generated on demand;
	// installment n is due n periods after StartDate.
	Credit struct {
		ID                int64
		ProjectID         int64
		Description       string
		PrincipalAmount   Money
		TotalAmount       Money
		Installments      int
		InstallmentAmount Money
		StartDate         Date
		Frequency         Frequency
	}

	// CycleSnapshot holds the totals frozen on a closed billing cycle.
	CycleSnapshot struct {
		Income   Money
		Expenses Money
		Savings  Money
		Balance  Money
	}

	BillingCycle struct {
		ID        int64
		ProjectID int64
		StartDate Date
		EndDate   Date
		Status    CycleStatus
		Snapshot  *CycleSnapshot // nil while open
	}

	// RecurringTemplate describes an obligation loaded into every new
	// billing cycle as an unpaid transaction dated at cycle start.
	RecurringTemplate struct {
		ID          int64
		ProjectID   int64
		AccountID   *int64
		Type        TransactionType
		Amount      Money
		Description string
		Category    string
		IsActive    bool
	}

	// PeriodTotals are paid-transaction sums over a date range.
	PeriodTotals struct {
		Income   Money
		Expenses Money
		Savings  Money
	}
)

// ErrValidation is the root of every field-level validation failure,
// so callers can branch on the class without enumerating fields.
var ErrValidation = errors.New("validation failed")

var (
	ErrInvalidAmount       = fmt.Errorf("invalid amount: %w", ErrValidation)
	ErrInvalidDate         = fmt.Errorf("invalid date: %w", ErrValidation)
	ErrInvalidAccountType  = fmt.Errorf("invalid account type: %w", ErrValidation)
	ErrInvalidFrequency    = fmt.Errorf("invalid frequency: %w", ErrValidation)
	ErrInvalidInstallments = fmt.Errorf("installment count must be at least 1: %w", ErrValidation)
	ErrEmptyDescription    = fmt.Errorf("empty description: %w", ErrValidation)
)

func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to a calendar date in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Before reports whether d falls strictly before other.
func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }

// After reports whether d falls strictly after other.
func (d Date) After(other Date) bool { return d.Time.After(other.Time) }

func (d Date) Equal(other Date) bool { return d.Time.Equal(other.Time) }

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t AccountType) Validate() error {
	switch t {
	case AccountChecking, AccountSavings, AccountCash, AccountCreditCard, AccountInvestment:
		return nil
	default:
		return ErrInvalidAccountType
	}
}

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	default:
		return fmt.Errorf("invalid transaction type: %w", ErrValidation)
	}
}

func (f Frequency) Validate() error {
	switch f {
	case Weekly, Biweekly, Monthly:
		return nil
	default:
		return ErrInvalidFrequency
	}
}

func (a Account) Validate() error {
	if len(strings.TrimSpace(a.Name)) == 0 {
		return fmt.Errorf("empty account name: %w", ErrValidation)
	}
	if err := a.Type.Validate(); err != nil {
		return err
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return fmt.Errorf("description too long (max 200 characters): %w", ErrValidation)
	}
	return nil
}

func (p CardPurchase) Validate() error {
	if err := p.OriginalAmount.Validate(); err != nil {
		return err
	}
	if p.InterestRate < 0 {
		return fmt.Errorf("negative interest rate: %w", ErrValidation)
	}
	if p.Installments < 1 {
		return ErrInvalidInstallments
	}
	if err := p.FirstChargeDate.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(p.Description)) == 0 {
		return ErrEmptyDescription
	}
	return nil
}

func (c Credit) Validate() error {
	if err := c.PrincipalAmount.Validate(); err != nil {
		return err
	}
	if err := c.InstallmentAmount.Validate(); err != nil {
		return err
	}
	if c.Installments < 1 {
		return ErrInvalidInstallments
	}
	if err := c.StartDate.Validate(); err != nil {
		return err
	}
	if err := c.Frequency.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(c.Description)) == 0 {
		return ErrEmptyDescription
	}
	return nil
}

func (bc BillingCycle) Validate() error {
	if err := bc.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if err := bc.EndDate.Validate(); err != nil {
		return fmt.Errorf("invalid end date: %w", err)
	}
	if bc.EndDate.Before(bc.StartDate) {
		return fmt.Errorf("end date must not precede start date: %w", ErrValidation)
	}
	return nil
}
