package services

import (
	"context"

	"cuentas/internal/core"
)

// Store is the persistence port consumed by the engine. It is satisfied
// by storage.Repository (SQLite) and by the in-memory store used in
// tests. All multi-step mutations run inside InTx so a failure partway
// leaves prior state untouched.
type Store interface {
	// InTx runs fn against a transactional view of the store. The
	// transaction commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(Store) error) error

	// Access control boundary.
	HasMembership(ctx context.Context, userID, projectID int64) (bool, error)
	ProjectIDs(ctx context.Context) ([]int64, error)
	DebtLimit(ctx context.Context, projectID int64) (*core.Money, error)

	CreateAccount(ctx context.Context, a core.Account) (int64, error)
	Account(ctx context.Context, id int64) (core.Account, error)
	AccountsByProject(ctx context.Context, projectID int64) ([]core.Account, error)
	// AdjustBalance applies a signed delta as an in-store increment, a
	// true read-modify-write under the store's isolation.
	AdjustBalance(ctx context.Context, accountID int64, deltaCents int64) error

	InsertTransaction(ctx context.Context, t core.Transaction) (int64, error)
	Transaction(ctx context.Context, id int64) (core.Transaction, error)
	TransactionsByIDs(ctx context.Context, ids []int64) ([]core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, id int64) error
	LegsByCardPurchase(ctx context.Context, purchaseID int64) ([]core.Transaction, error)
	LegsByCredit(ctx context.Context, creditID int64) ([]core.Transaction, error)
	// MarkReconciled stamps paid_by_transfer_id on the given legs.
	MarkReconciled(ctx context.Context, ids []int64, transferID int64) error
	SumPaidByTypeInRange(ctx context.Context, projectID int64, from, to core.Date) (core.PeriodTotals, error)

	InsertCardPurchase(ctx context.Context, p core.CardPurchase) (int64, error)
	CardPurchase(ctx context.Context, id int64) (core.CardPurchase, error)
	ActiveCardPurchases(ctx context.Context, projectID int64) ([]core.CardPurchase, error)
	SetCardPurchaseActive(ctx context.Context, id int64, active bool) error
	DeleteCardPurchase(ctx context.Context, id int64) error

	InsertCredit(ctx context.Context, c core.Credit) (int64, error)
	Credit(ctx context.Context, id int64) (core.Credit, error)
	CreditsByProject(ctx context.Context, projectID int64) ([]core.Credit, error)
	DeleteCredit(ctx context.Context, id int64) error

	InsertCycle(ctx context.Context, bc core.BillingCycle) (int64, error)
	Cycle(ctx context.Context, id int64) (core.BillingCycle, error)
	UpdateCycle(ctx context.Context, bc core.BillingCycle) error
	DeleteCycle(ctx context.Context, id int64) error
	HasOpenCycle(ctx context.Context, projectID int64) (bool, error)

	ActiveTemplates(ctx context.Context, projectID int64) ([]core.RecurringTemplate, error)
}

// Publisher is the outbound event port. Mutations publish best-effort
// after commit; a nil Publisher disables the event stream.
type Publisher interface {
	Publish(ctx context.Context, kind string, projectID, entityID int64) error
}
