package services

import (
	"context"
	"fmt"
	"log/slog"

	"cuentas/internal/core"
)

// ProjectAdmin is the administration surface both concrete stores
// implement outside the Store port: project and membership bookkeeping,
// debt limit settings and recurring template storage.
type ProjectAdmin interface {
	CreateProject(ctx context.Context, name string, ownerID int64) (int64, error)
	AddMember(ctx context.Context, projectID, userID int64) error
	SetDebtLimit(ctx context.Context, projectID int64, cents *int64) error
	CreateTemplate(ctx context.Context, t core.RecurringTemplate) (int64, error)
}

// ProjectService handles project lifecycle and settings. The creator
// becomes the first member; every other operation requires membership.
type ProjectService struct {
	store Store
	admin ProjectAdmin
}

func NewProjectService(store Store, admin ProjectAdmin) *ProjectService {
	return &ProjectService{store: store, admin: admin}
}

func (s *ProjectService) CreateProject(ctx context.Context, ownerID int64, name string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("empty project name: %w", core.ErrInvariant)
	}
	id, err := s.admin.CreateProject(ctx, name, ownerID)
	if err != nil {
		return 0, fmt.Errorf("create project: %w", err)
	}
	slog.InfoContext(ctx, "Project created", "project_id", id, "owner_id", ownerID)
	return id, nil
}

func (s *ProjectService) AddMember(ctx context.Context, callerID, projectID, userID int64) error {
	if err := requireMember(ctx, s.store, callerID, projectID); err != nil {
		return err
	}
	if err := s.admin.AddMember(ctx, projectID, userID); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	slog.InfoContext(ctx, "Member added", "project_id", projectID, "user_id", userID)
	return nil
}

// SetDebtLimit sets the monthly debt limit consulted by the capacity
// report. Nil clears it.
func (s *ProjectService) SetDebtLimit(ctx context.Context, callerID, projectID int64, limit *core.Money) error {
	if err := requireMember(ctx, s.store, callerID, projectID); err != nil {
		return err
	}
	if limit != nil && limit.Cents <= 0 {
		return fmt.Errorf("debt limit must be positive: %w", core.ErrInvariant)
	}
	var cents *int64
	if limit != nil {
		cents = &limit.Cents
	}
	if err := s.admin.SetDebtLimit(ctx, projectID, cents); err != nil {
		return fmt.Errorf("set debt limit: %w", err)
	}
	return nil
}

// DebtLimit reads the configured limit, nil when unset.
func (s *ProjectService) DebtLimit(ctx context.Context, callerID, projectID int64) (*core.Money, error) {
	if err := requireMember(ctx, s.store, callerID, projectID); err != nil {
		return nil, err
	}
	return s.store.DebtLimit(ctx, projectID)
}
