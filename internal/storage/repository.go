// Package storage is the SQLite persistence layer. It satisfies
// services.Store with hand-written SQL over database/sql; balances are
// adjusted in-database so concurrent writers never lose increments.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuentas/internal/core"
	"cuentas/internal/services"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

var (
	_ services.Store        = (*Repository)(nil)
	_ services.ProjectAdmin = (*Repository)(nil)
)

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Repository struct {
	db *sql.DB
	q  dbtx
	// inTx marks a transactional view; nested InTx reuses it.
	inTx bool
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, q: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) InTx(ctx context.Context, fn func(services.Store) error) error {
	if r.inTx {
		return fn(r)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	view := &Repository{db: r.db, q: tx, inTx: true}
	if err := fn(view); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Project administration, beyond the services.Store contract.

func (r *Repository) CreateProject(ctx context.Context, name string, ownerID int64) (int64, error) {
	var id int64
	err := r.InTx(ctx, func(view services.Store) error {
		tx := view.(*Repository)
		res, err := tx.q.ExecContext(ctx, `INSERT INTO projects (name) VALUES (?)`, name)
		if err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		_, err = tx.q.ExecContext(ctx,
			`INSERT INTO project_members (project_id, user_id) VALUES (?, ?)`, id, ownerID)
		if err != nil {
			return fmt.Errorf("insert owner membership: %w", err)
		}
		return nil
	})
	return id, err
}

func (r *Repository) AddMember(ctx context.Context, projectID, userID int64) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO project_members (project_id, user_id) VALUES (?, ?)`,
		projectID, userID)
	if err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

func (r *Repository) SetDebtLimit(ctx context.Context, projectID int64, cents *int64) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO project_settings (project_id, monthly_debt_limit_cents) VALUES (?, ?)
		 ON CONFLICT(project_id) DO UPDATE SET monthly_debt_limit_cents = excluded.monthly_debt_limit_cents`,
		projectID, nullID(cents))
	if err != nil {
		return fmt.Errorf("upsert debt limit: %w", err)
	}
	return nil
}

func (r *Repository) CreateTemplate(ctx context.Context, t core.RecurringTemplate) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO recurring_templates (project_id, account_id, type, amount_cents, description, category, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ProjectID, nullID(t.AccountID), t.Type, t.Amount.Cents, t.Description, t.Category, t.IsActive)
	if err != nil {
		return 0, fmt.Errorf("insert template: %w", err)
	}
	return res.LastInsertId()
}

func (r *Repository) HasMembership(ctx context.Context, userID, projectID int64) (bool, error) {
	var one int
	err := r.q.QueryRowContext(ctx,
		`SELECT 1 FROM project_members WHERE user_id = ? AND project_id = ?`,
		userID, projectID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query membership: %w", err)
	}
	return true, nil
}

func (r *Repository) ProjectIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id FROM projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) DebtLimit(ctx context.Context, projectID int64) (*core.Money, error) {
	var cents sql.NullInt64
	err := r.q.QueryRowContext(ctx,
		`SELECT monthly_debt_limit_cents FROM project_settings WHERE project_id = ?`,
		projectID).Scan(&cents)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query debt limit: %w", err)
	}
	if !cents.Valid {
		return nil, nil
	}
	return &core.Money{Cents: cents.Int64}, nil
}

func (r *Repository) CreateAccount(ctx context.Context, a core.Account) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO accounts (project_id, name, type, currency, balance_cents)
		 VALUES (?, ?, ?, ?, ?)`,
		a.ProjectID, a.Name, a.Type, a.Currency, a.Balance.Cents)
	if err != nil {
		return 0, fmt.Errorf("insert account: %w", err)
	}
	return res.LastInsertId()
}

func (r *Repository) Account(ctx context.Context, id int64) (core.Account, error) {
	var a core.Account
	err := r.q.QueryRowContext(ctx,
		`SELECT id, project_id, name, type, currency, balance_cents
		 FROM accounts WHERE id = ?`, id).
		Scan(&a.ID, &a.ProjectID, &a.Name, &a.Type, &a.Currency, &a.Balance.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, fmt.Errorf("account %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("query account: %w", err)
	}
	return a, nil
}

func (r *Repository) AccountsByProject(ctx context.Context, projectID int64) ([]core.Account, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, project_id, name, type, currency, balance_cents
		 FROM accounts WHERE project_id = ? ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var a core.Account
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.Name, &a.Type, &a.Currency, &a.Balance.Cents); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) AdjustBalance(ctx context.Context, accountID int64, deltaCents int64) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = balance_cents + ? WHERE id = ?`,
		deltaCents, accountID)
	if err != nil {
		return fmt.Errorf("adjust balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("account %d: %w", accountID, core.ErrNotFound)
	}
	return nil
}

const transactionColumns = `id, project_id, account_id, type, amount_cents, date, description,
	category, is_paid, paid_at, linked_transaction_id, card_purchase_id, credit_id,
	paid_by_transfer_id, is_historically_paid, is_savings_fund`

func (r *Repository) InsertTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO transactions (project_id, account_id, type, amount_cents, date,
		 description, category, is_paid, paid_at, linked_transaction_id, card_purchase_id,
		 credit_id, paid_by_transfer_id, is_historically_paid, is_savings_fund)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ProjectID, nullID(t.AccountID), t.Type, t.Amount.Cents, formatDate(t.Date),
		t.Description, t.Category, t.IsPaid, nullTime(t.PaidAt), nullID(t.LinkedTransactionID),
		nullID(t.CardPurchaseID), nullID(t.CreditID), nullID(t.PaidByTransferID),
		t.IsHistoricallyPaid, t.IsSavingsFund)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return res.LastInsertId()
}

func (r *Repository) Transaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	return t, err
}

func (r *Repository) TransactionsByIDs(ctx context.Context, ids []int64) ([]core.Transaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id IN (`+placeholders+`) ORDER BY id`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (r *Repository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE transactions SET account_id = ?, type = ?, amount_cents = ?, date = ?,
		 description = ?, category = ?, is_paid = ?, paid_at = ?, linked_transaction_id = ?,
		 card_purchase_id = ?, credit_id = ?, paid_by_transfer_id = ?,
		 is_historically_paid = ?, is_savings_fund = ?
		 WHERE id = ?`,
		nullID(t.AccountID), t.Type, t.Amount.Cents, formatDate(t.Date),
		t.Description, t.Category, t.IsPaid, nullTime(t.PaidAt), nullID(t.LinkedTransactionID),
		nullID(t.CardPurchaseID), nullID(t.CreditID), nullID(t.PaidByTransferID),
		t.IsHistoricallyPaid, t.IsSavingsFund, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireAffected(res, fmt.Sprintf("transaction %d", t.ID))
}

func (r *Repository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireAffected(res, fmt.Sprintf("transaction %d", id))
}

func (r *Repository) LegsByCardPurchase(ctx context.Context, purchaseID int64) ([]core.Transaction, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE card_purchase_id = ? ORDER BY id`, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("query purchase legs: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (r *Repository) LegsByCredit(ctx context.Context, creditID int64) ([]core.Transaction, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE credit_id = ? ORDER BY id`, creditID)
	if err != nil {
		return nil, fmt.Errorf("query credit legs: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (r *Repository) MarkReconciled(ctx context.Context, ids []int64, transferID int64) error {
	for _, id := range ids {
		res, err := r.q.ExecContext(ctx,
			`UPDATE transactions SET paid_by_transfer_id = ? WHERE id = ?`, transferID, id)
		if err != nil {
			return fmt.Errorf("mark reconciled: %w", err)
		}
		if err := requireAffected(res, fmt.Sprintf("transaction %d", id)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) SumPaidByTypeInRange(ctx context.Context, projectID int64, from, to core.Date) (core.PeriodTotals, error) {
	var totals core.PeriodTotals
	err := r.q.QueryRowContext(ctx,
		`SELECT
		   COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents END), 0),
		   COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents END), 0),
		   COALESCE(SUM(CASE WHEN type = 'expense' AND is_savings_fund = 1 THEN amount_cents END), 0)
		 FROM transactions
		 WHERE project_id = ? AND is_paid = 1 AND date >= ? AND date <= ?`,
		projectID, formatDate(from), formatDate(to)).
		Scan(&totals.Income.Cents, &totals.Expenses.Cents, &totals.Savings.Cents)
	if err != nil {
		return core.PeriodTotals{}, fmt.Errorf("sum period totals: %w", err)
	}
	return totals, nil
}

func (r *Repository) InsertCardPurchase(ctx context.Context, p core.CardPurchase) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO card_purchases (project_id, account_id, description, original_amount_cents,
		 interest_rate, total_amount_cents, installments, installment_amount_cents,
		 first_charge_date, initial_paid_installments, is_external, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ProjectID, p.AccountID, p.Description, p.OriginalAmount.Cents,
		p.InterestRate, p.TotalAmount.Cents, p.Installments, p.InstallmentAmount.Cents,
		formatDate(p.FirstChargeDate), p.InitialPaidInstallments, p.IsExternal, p.IsActive)
	if err != nil {
		return 0, fmt.Errorf("insert card purchase: %w", err)
	}
	return res.LastInsertId()
}

const cardPurchaseColumns = `id, project_id, account_id, description, original_amount_cents,
	interest_rate, total_amount_cents, installments, installment_amount_cents,
	first_charge_date, initial_paid_installments, is_external, is_active`

func (r *Repository) CardPurchase(ctx context.Context, id int64) (core.CardPurchase, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+cardPurchaseColumns+` FROM card_purchases WHERE id = ?`, id)
	p, err := scanCardPurchase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CardPurchase{}, fmt.Errorf("card purchase %d: %w", id, core.ErrNotFound)
	}
	return p, err
}

func (r *Repository) ActiveCardPurchases(ctx context.Context, projectID int64) ([]core.CardPurchase, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+cardPurchaseColumns+` FROM card_purchases
		 WHERE project_id = ? AND is_active = 1 ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query card purchases: %w", err)
	}
	defer rows.Close()

	var out []core.CardPurchase
	for rows.Next() {
		p, err := scanCardPurchase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) SetCardPurchaseActive(ctx context.Context, id int64, active bool) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE card_purchases SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("set card purchase active: %w", err)
	}
	return requireAffected(res, fmt.Sprintf("card purchase %d", id))
}

func (r *Repository) DeleteCardPurchase(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM card_purchases WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete card purchase: %w", err)
	}
	return requireAffected(res, fmt.Sprintf("card purchase %d", id))
}

func (r *Repository) InsertCredit(ctx context.Context, c core.Credit) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO credits (project_id, description, principal_amount_cents, total_amount_cents,
		 installments, installment_amount_cents, start_date, frequency)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ProjectID, c.Description, c.PrincipalAmount.Cents, c.TotalAmount.Cents,
		c.Installments, c.InstallmentAmount.Cents, formatDate(c.StartDate), c.Frequency)
	if err != nil {
		return 0, fmt.Errorf("insert credit: %w", err)
	}
	return res.LastInsertId()
}

func (r *Repository) Credit(ctx context.Context, id int64) (core.Credit, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT id, project_id, description, principal_amount_cents, total_amount_cents,
		 installments, installment_amount_cents, start_date, frequency
		 FROM credits WHERE id = ?`, id)
	c, err := scanCredit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Credit{}, fmt.Errorf("credit %d: %w", id, core.ErrNotFound)
	}
	return c, err
}

func (r *Repository) CreditsByProject(ctx context.Context, projectID int64) ([]core.Credit, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, project_id, description, principal_amount_cents, total_amount_cents,
		 installments, installment_amount_cents, start_date, frequency
		 FROM credits WHERE project_id = ? ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query credits: %w", err)
	}
	defer rows.Close()

	var out []core.Credit
	for rows.Next() {
		c, err := scanCredit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteCredit(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM credits WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete credit: %w", err)
	}
	return requireAffected(res, fmt.Sprintf("credit %d", id))
}

func (r *Repository) InsertCycle(ctx context.Context, bc core.BillingCycle) (int64, error) {
	snap := snapshotCols(bc.Snapshot)
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO billing_cycles (project_id, start_date, end_date, status,
		 snapshot_income_cents, snapshot_expenses_cents, snapshot_savings_cents, snapshot_balance_cents)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		bc.ProjectID, formatDate(bc.StartDate), formatDate(bc.EndDate), bc.Status,
		snap[0], snap[1], snap[2], snap[3])
	if err != nil {
		return 0, fmt.Errorf("insert billing cycle: %w", err)
	}
	return res.LastInsertId()
}

func (r *Repository) Cycle(ctx context.Context, id int64) (core.BillingCycle, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT id, project_id, start_date, end_date, status,
		 snapshot_income_cents, snapshot_expenses_cents, snapshot_savings_cents, snapshot_balance_cents
		 FROM billing_cycles WHERE id = ?`, id)
	bc, err := scanCycle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BillingCycle{}, fmt.Errorf("billing cycle %d: %w", id, core.ErrNotFound)
	}
	return bc, err
}

func (r *Repository) UpdateCycle(ctx context.Context, bc core.BillingCycle) error {
	snap := snapshotCols(bc.Snapshot)
	res, err := r.q.ExecContext(ctx,
		`UPDATE billing_cycles SET start_date = ?, end_date = ?, status = ?,
		 snapshot_income_cents = ?, snapshot_expenses_cents = ?,
		 snapshot_savings_cents = ?, snapshot_balance_cents = ?
		 WHERE id = ?`,
		formatDate(bc.StartDate), formatDate(bc.EndDate), bc.Status,
		snap[0], snap[1], snap[2], snap[3], bc.ID)
	if err != nil {
		return fmt.Errorf("update billing cycle: %w", err)
	}
	return requireAffected(res, fmt.Sprintf("billing cycle %d", bc.ID))
}

func (r *Repository) DeleteCycle(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM billing_cycles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete billing cycle: %w", err)
	}
	return requireAffected(res, fmt.Sprintf("billing cycle %d", id))
}

func (r *Repository) HasOpenCycle(ctx context.Context, projectID int64) (bool, error) {
	var one int
	err := r.q.QueryRowContext(ctx,
		`SELECT 1 FROM billing_cycles WHERE project_id = ? AND status = 'open' LIMIT 1`,
		projectID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query open cycles: %w", err)
	}
	return true, nil
}

func (r *Repository) ActiveTemplates(ctx context.Context, projectID int64) ([]core.RecurringTemplate, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, project_id, account_id, type, amount_cents, description, category, is_active
		 FROM recurring_templates WHERE project_id = ? AND is_active = 1 ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringTemplate
	for rows.Next() {
		var t core.RecurringTemplate
		var accountID sql.NullInt64
		if err := rows.Scan(&t.ID, &t.ProjectID, &accountID, &t.Type, &t.Amount.Cents,
			&t.Description, &t.Category, &t.IsActive); err != nil {
			return nil, err
		}
		t.AccountID = fromNullID(accountID)
		out = append(out, t)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (core.Transaction, error) {
	var t core.Transaction
	var accountID, linkedID, purchaseID, creditID, transferID sql.NullInt64
	var dateStr string
	var paidAt sql.NullString
	err := row.Scan(&t.ID, &t.ProjectID, &accountID, &t.Type, &t.Amount.Cents, &dateStr,
		&t.Description, &t.Category, &t.IsPaid, &paidAt, &linkedID, &purchaseID, &creditID,
		&transferID, &t.IsHistoricallyPaid, &t.IsSavingsFund)
	if err != nil {
		return core.Transaction{}, err
	}
	t.AccountID = fromNullID(accountID)
	t.LinkedTransactionID = fromNullID(linkedID)
	t.CardPurchaseID = fromNullID(purchaseID)
	t.CreditID = fromNullID(creditID)
	t.PaidByTransferID = fromNullID(transferID)
	if t.Date, err = parseDate(dateStr); err != nil {
		return core.Transaction{}, err
	}
	if paidAt.Valid {
		at, err := time.Parse(time.RFC3339, paidAt.String)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("parse paid_at: %w", err)
		}
		t.PaidAt = &at
	}
	return t, nil
}

func collectTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanCardPurchase(row scanner) (core.CardPurchase, error) {
	var p core.CardPurchase
	var firstCharge string
	err := row.Scan(&p.ID, &p.ProjectID, &p.AccountID, &p.Description, &p.OriginalAmount.Cents,
		&p.InterestRate, &p.TotalAmount.Cents, &p.Installments, &p.InstallmentAmount.Cents,
		&firstCharge, &p.InitialPaidInstallments, &p.IsExternal, &p.IsActive)
	if err != nil {
		return core.CardPurchase{}, err
	}
	if p.FirstChargeDate, err = parseDate(firstCharge); err != nil {
		return core.CardPurchase{}, err
	}
	return p, nil
}

func scanCredit(row scanner) (core.Credit, error) {
	var c core.Credit
	var start string
	err := row.Scan(&c.ID, &c.ProjectID, &c.Description, &c.PrincipalAmount.Cents,
		&c.TotalAmount.Cents, &c.Installments, &c.InstallmentAmount.Cents, &start, &c.Frequency)
	if err != nil {
		return core.Credit{}, err
	}
	if c.StartDate, err = parseDate(start); err != nil {
		return core.Credit{}, err
	}
	return c, nil
}

func scanCycle(row scanner) (core.BillingCycle, error) {
	var bc core.BillingCycle
	var start, end string
	var income, expenses, savings, balance sql.NullInt64
	err := row.Scan(&bc.ID, &bc.ProjectID, &start, &end, &bc.Status,
		&income, &expenses, &savings, &balance)
	if err != nil {
		return core.BillingCycle{}, err
	}
	if bc.StartDate, err = parseDate(start); err != nil {
		return core.BillingCycle{}, err
	}
	if bc.EndDate, err = parseDate(end); err != nil {
		return core.BillingCycle{}, err
	}
	if income.Valid {
		bc.Snapshot = &core.CycleSnapshot{
			Income:   core.Money{Cents: income.Int64},
			Expenses: core.Money{Cents: expenses.Int64},
			Savings:  core.Money{Cents: savings.Int64},
			Balance:  core.Money{Cents: balance.Int64},
		}
	}
	return bc, nil
}

func snapshotCols(s *core.CycleSnapshot) [4]sql.NullInt64 {
	if s == nil {
		return [4]sql.NullInt64{}
	}
	return [4]sql.NullInt64{
		{Int64: s.Income.Cents, Valid: true},
		{Int64: s.Expenses.Cents, Valid: true},
		{Int64: s.Savings.Cents, Valid: true},
		{Int64: s.Balance.Cents, Valid: true},
	}
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return nil
}

func nullID(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func fromNullID(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func formatDate(d core.Date) string {
	return d.Format(dateLayout)
}

func parseDate(s string) (core.Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return core.Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return core.DateOf(t), nil
}
