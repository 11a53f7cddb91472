// Package memory is an in-memory services.Store. It backs tests and
// gives the engine a second store implementation, which keeps SQL out
// of the service contract.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cuentas/internal/core"
	"cuentas/internal/services"
)

var (
	_ services.Store        = (*Store)(nil)
	_ services.ProjectAdmin = (*Store)(nil)
)

type Store struct {
	mu sync.Mutex
	st *state
}

type state struct {
	nextID       int64
	projects     map[int64]bool
	memberships  map[int64]map[int64]bool // userID -> projectID
	debtLimits   map[int64]int64          // cents, absence means no limit
	accounts     map[int64]core.Account
	transactions map[int64]core.Transaction
	purchases    map[int64]core.CardPurchase
	credits      map[int64]core.Credit
	cycles       map[int64]core.BillingCycle
	templates    map[int64]core.RecurringTemplate
}

func New() *Store {
	return &Store{st: &state{
		projects:     map[int64]bool{},
		memberships:  map[int64]map[int64]bool{},
		debtLimits:   map[int64]int64{},
		accounts:     map[int64]core.Account{},
		transactions: map[int64]core.Transaction{},
		purchases:    map[int64]core.CardPurchase{},
		credits:      map[int64]core.Credit{},
		cycles:       map[int64]core.BillingCycle{},
		templates:    map[int64]core.RecurringTemplate{},
	}}
}

// Project administration, beyond the services.Store contract.

func (s *Store) CreateProject(ctx context.Context, name string, ownerID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.st.id()
	s.st.projects[id] = true
	if s.st.memberships[ownerID] == nil {
		s.st.memberships[ownerID] = map[int64]bool{}
	}
	s.st.memberships[ownerID][id] = true
	return id, nil
}

func (s *Store) AddMember(ctx context.Context, projectID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.projects[projectID] = true
	if s.st.memberships[userID] == nil {
		s.st.memberships[userID] = map[int64]bool{}
	}
	s.st.memberships[userID][projectID] = true
	return nil
}

func (s *Store) SetDebtLimit(ctx context.Context, projectID int64, cents *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cents == nil {
		delete(s.st.debtLimits, projectID)
		return nil
	}
	s.st.debtLimits[projectID] = *cents
	return nil
}

func (s *Store) CreateTemplate(ctx context.Context, t core.RecurringTemplate) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.st.id()
	s.st.templates[t.ID] = t
	return t.ID, nil
}

// InTx snapshots the state, runs fn against the store itself and
// restores the snapshot when fn fails. Good enough under the single
// mutex: there is no concurrent writer to isolate from mid-fn.
func (s *Store) InTx(ctx context.Context, fn func(services.Store) error) error {
	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) HasMembership(ctx context.Context, userID, projectID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.memberships[userID][projectID], nil
}

func (s *Store) ProjectIDs(ctx context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.st.projects))
	for id := range s.st.projects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) DebtLimit(ctx context.Context, projectID int64) (*core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cents, ok := s.st.debtLimits[projectID]
	if !ok {
		return nil, nil
	}
	return &core.Money{Cents: cents}, nil
}

func (s *Store) CreateAccount(ctx context.Context, a core.Account) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.st.id()
	s.st.accounts[a.ID] = a
	return a.ID, nil
}

func (s *Store) Account(ctx context.Context, id int64) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.st.accounts[id]
	if !ok {
		return core.Account{}, fmt.Errorf("account %d: %w", id, core.ErrNotFound)
	}
	return a, nil
}

func (s *Store) AccountsByProject(ctx context.Context, projectID int64) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Account
	for _, a := range s.st.accounts {
		if a.ProjectID == projectID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) AdjustBalance(ctx context.Context, accountID int64, deltaCents int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.st.accounts[accountID]
	if !ok {
		return fmt.Errorf("account %d: %w", accountID, core.ErrNotFound)
	}
	a.Balance.Cents += deltaCents
	s.st.accounts[accountID] = a
	return nil
}

func (s *Store) InsertTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.st.id()
	s.st.transactions[t.ID] = t
	return t.ID, nil
}

func (s *Store) Transaction(ctx context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.st.transactions[id]
	if !ok {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	return t, nil
}

func (s *Store) TransactionsByIDs(ctx context.Context, ids []int64) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, id := range ids {
		if t, ok := s.st.transactions[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.transactions[t.ID]; !ok {
		return fmt.Errorf("transaction %d: %w", t.ID, core.ErrNotFound)
	}
	s.st.transactions[t.ID] = t
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.transactions[id]; !ok {
		return fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	delete(s.st.transactions, id)
	return nil
}

func (s *Store) LegsByCardPurchase(ctx context.Context, purchaseID int64) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.st.transactions {
		if t.CardPurchaseID != nil && *t.CardPurchaseID == purchaseID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) LegsByCredit(ctx context.Context, creditID int64) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.st.transactions {
		if t.CreditID != nil && *t.CreditID == creditID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) MarkReconciled(ctx context.Context, ids []int64, transferID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		t, ok := s.st.transactions[id]
		if !ok {
			return fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
		}
		tid := transferID
		t.PaidByTransferID = &tid
		s.st.transactions[id] = t
	}
	return nil
}

// SumPaidByTypeInRange tallies paid transactions with a date between
// from and to, both inclusive. Savings-fund legs count as expenses and
// are additionally reported in the savings bucket.
func (s *Store) SumPaidByTypeInRange(ctx context.Context, projectID int64, from, to core.Date) (core.PeriodTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var totals core.PeriodTotals
	for _, t := range s.st.transactions {
		if t.ProjectID != projectID || !t.IsPaid {
			continue
		}
		if t.Date.Before(from) || t.Date.After(to) {
			continue
		}
		switch t.Type {
		case core.Income:
			totals.Income = totals.Income.Add(t.Amount)
		case core.Expense:
			totals.Expenses = totals.Expenses.Add(t.Amount)
			if t.IsSavingsFund {
				totals.Savings = totals.Savings.Add(t.Amount)
			}
		}
	}
	return totals, nil
}

func (s *Store) InsertCardPurchase(ctx context.Context, p core.CardPurchase) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.st.id()
	s.st.purchases[p.ID] = p
	return p.ID, nil
}

func (s *Store) CardPurchase(ctx context.Context, id int64) (core.CardPurchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.purchases[id]
	if !ok {
		return core.CardPurchase{}, fmt.Errorf("card purchase %d: %w", id, core.ErrNotFound)
	}
	return p, nil
}

func (s *Store) ActiveCardPurchases(ctx context.Context, projectID int64) ([]core.CardPurchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.CardPurchase
	for _, p := range s.st.purchases {
		if p.ProjectID == projectID && p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SetCardPurchaseActive(ctx context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.purchases[id]
	if !ok {
		return fmt.Errorf("card purchase %d: %w", id, core.ErrNotFound)
	}
	p.IsActive = active
	s.st.purchases[id] = p
	return nil
}

func (s *Store) DeleteCardPurchase(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.purchases[id]; !ok {
		return fmt.Errorf("card purchase %d: %w", id, core.ErrNotFound)
	}
	delete(s.st.purchases, id)
	return nil
}

func (s *Store) InsertCredit(ctx context.Context, c core.Credit) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.st.id()
	s.st.credits[c.ID] = c
	return c.ID, nil
}

func (s *Store) Credit(ctx context.Context, id int64) (core.Credit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.st.credits[id]
	if !ok {
		return core.Credit{}, fmt.Errorf("credit %d: %w", id, core.ErrNotFound)
	}
	return c, nil
}

func (s *Store) CreditsByProject(ctx context.Context, projectID int64) ([]core.Credit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Credit
	for _, c := range s.st.credits {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteCredit(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.credits[id]; !ok {
		return fmt.Errorf("credit %d: %w", id, core.ErrNotFound)
	}
	delete(s.st.credits, id)
	return nil
}

func (s *Store) InsertCycle(ctx context.Context, bc core.BillingCycle) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bc.ID = s.st.id()
	s.st.cycles[bc.ID] = bc
	return bc.ID, nil
}

func (s *Store) Cycle(ctx context.Context, id int64) (core.BillingCycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bc, ok := s.st.cycles[id]
	if !ok {
		return core.BillingCycle{}, fmt.Errorf("billing cycle %d: %w", id, core.ErrNotFound)
	}
	return bc, nil
}

func (s *Store) UpdateCycle(ctx context.Context, bc core.BillingCycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.cycles[bc.ID]; !ok {
		return fmt.Errorf("billing cycle %d: %w", bc.ID, core.ErrNotFound)
	}
	s.st.cycles[bc.ID] = bc
	return nil
}

func (s *Store) DeleteCycle(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.cycles[id]; !ok {
		return fmt.Errorf("billing cycle %d: %w", id, core.ErrNotFound)
	}
	delete(s.st.cycles, id)
	return nil
}

func (s *Store) HasOpenCycle(ctx context.Context, projectID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, bc := range s.st.cycles {
		if bc.ProjectID == projectID && bc.Status == core.CycleOpen {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ActiveTemplates(ctx context.Context, projectID int64) ([]core.RecurringTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RecurringTemplate
	for _, t := range s.st.templates {
		if t.ProjectID == projectID && t.IsActive {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (st *state) id() int64 {
	st.nextID++
	return st.nextID
}

func (st *state) clone() *state {
	c := &state{
		nextID:       st.nextID,
		projects:     make(map[int64]bool, len(st.projects)),
		memberships:  make(map[int64]map[int64]bool, len(st.memberships)),
		debtLimits:   make(map[int64]int64, len(st.debtLimits)),
		accounts:     make(map[int64]core.Account, len(st.accounts)),
		transactions: make(map[int64]core.Transaction, len(st.transactions)),
		purchases:    make(map[int64]core.CardPurchase, len(st.purchases)),
		credits:      make(map[int64]core.Credit, len(st.credits)),
		cycles:       make(map[int64]core.BillingCycle, len(st.cycles)),
		templates:    make(map[int64]core.RecurringTemplate, len(st.templates)),
	}
	for k, v := range st.projects {
		c.projects[k] = v
	}
	for k, v := range st.memberships {
		m := make(map[int64]bool, len(v))
		for pk, pv := range v {
			m[pk] = pv
		}
		c.memberships[k] = m
	}
	for k, v := range st.debtLimits {
		c.debtLimits[k] = v
	}
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	for k, v := range st.transactions {
		c.transactions[k] = cloneTransaction(v)
	}
	for k, v := range st.purchases {
		c.purchases[k] = v
	}
	for k, v := range st.credits {
		c.credits[k] = v
	}
	for k, v := range st.cycles {
		if v.Snapshot != nil {
			snap := *v.Snapshot
			v.Snapshot = &snap
		}
		c.cycles[k] = v
	}
	for k, v := range st.templates {
		if v.AccountID != nil {
			id := *v.AccountID
			v.AccountID = &id
		}
		c.templates[k] = v
	}
	return c
}

func cloneTransaction(t core.Transaction) core.Transaction {
	t.AccountID = cloneInt64(t.AccountID)
	t.LinkedTransactionID = cloneInt64(t.LinkedTransactionID)
	t.CardPurchaseID = cloneInt64(t.CardPurchaseID)
	t.CreditID = cloneInt64(t.CreditID)
	t.PaidByTransferID = cloneInt64(t.PaidByTransferID)
	if t.PaidAt != nil {
		at := *t.PaidAt
		t.PaidAt = &at
	}
	return t
}

func cloneInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
