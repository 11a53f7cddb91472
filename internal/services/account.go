package services

import (
	"context"
	"fmt"
	"log/slog"

	"cuentas/internal/core"
)

// AccountService manages accounts. Balances are never set directly
// after creation; every later change flows through transaction deltas.
type AccountService struct {
	store Store
}

func NewAccountService(store Store) *AccountService {
	return &AccountService{store: store}
}

type CreateAccountParams struct {
	ProjectID int64
	Name      string
	Type      core.AccountType
	Currency  string
	// InitialBalance seeds the running balance for accounts imported
	// with history. Zero for fresh accounts.
	InitialBalance core.Money
}

func (s *AccountService) Create(ctx context.Context, userID int64, p CreateAccountParams) (core.Account, error) {
	if err := requireMember(ctx, s.store, userID, p.ProjectID); err != nil {
		return core.Account{}, err
	}

	account := core.Account{
		ProjectID: p.ProjectID,
		Name:      p.Name,
		Type:      p.Type,
		Currency:  p.Currency,
		Balance:   p.InitialBalance,
	}
	if err := account.Validate(); err != nil {
		return core.Account{}, err
	}

	id, err := s.store.CreateAccount(ctx, account)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	account.ID = id

	slog.InfoContext(ctx, "Account created",
		"account_id", id,
		"project_id", p.ProjectID,
		"type", p.Type)
	return account, nil
}

// Get loads one account, restricted to project members.
func (s *AccountService) Get(ctx context.Context, userID, id int64) (core.Account, error) {
	account, err := s.store.Account(ctx, id)
	if err != nil {
		return core.Account{}, fmt.Errorf("load account %d: %w", id, err)
	}
	if err := requireMember(ctx, s.store, userID, account.ProjectID); err != nil {
		return core.Account{}, err
	}
	return account, nil
}

// List returns the project's accounts. Non-members get an empty list.
func (s *AccountService) List(ctx context.Context, userID, projectID int64) ([]core.Account, error) {
	ok, err := isMember(ctx, s.store, userID, projectID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return s.store.AccountsByProject(ctx, projectID)
}
