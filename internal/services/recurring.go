package services

import (
	"context"
	"fmt"
	"log/slog"

	"cuentas/internal/core"
)

// RecurringService manages the obligation templates that every newly
// opened billing cycle expands into unpaid transactions.
type RecurringService struct {
	store Store
	admin ProjectAdmin
}

func NewRecurringService(store Store, admin ProjectAdmin) *RecurringService {
	return &RecurringService{store: store, admin: admin}
}

type CreateTemplateParams struct {
	ProjectID   int64
	AccountID   *int64
	Type        core.TransactionType
	Amount      core.Money
	Description string
	Category    string
}

func (s *RecurringService) CreateTemplate(ctx context.Context, userID int64, p CreateTemplateParams) (core.RecurringTemplate, error) {
	if err := requireMember(ctx, s.store, userID, p.ProjectID); err != nil {
		return core.RecurringTemplate{}, err
	}
	if err := p.Type.Validate(); err != nil {
		return core.RecurringTemplate{}, err
	}
	if err := p.Amount.Validate(); err != nil {
		return core.RecurringTemplate{}, err
	}
	if p.Description == "" {
		return core.RecurringTemplate{}, core.ErrEmptyDescription
	}

	tpl := core.RecurringTemplate{
		ProjectID:   p.ProjectID,
		AccountID:   p.AccountID,
		Type:        p.Type,
		Amount:      p.Amount,
		Description: p.Description,
		Category:    p.Category,
		IsActive:    true,
	}
	id, err := s.admin.CreateTemplate(ctx, tpl)
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("create template: %w", err)
	}
	tpl.ID = id

	slog.InfoContext(ctx, "Recurring template created",
		"template_id", id,
		"project_id", p.ProjectID)
	return tpl, nil
}

// ListActive returns the project's active templates. Non-members get an
// empty list.
func (s *RecurringService) ListActive(ctx context.Context, userID, projectID int64) ([]core.RecurringTemplate, error) {
	ok, err := isMember(ctx, s.store, userID, projectID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return s.store.ActiveTemplates(ctx, projectID)
}
