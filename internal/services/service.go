// Package services implements the ledger consistency and
// installment-scheduling engine: transaction mutation, transfer
// pairing, card purchase and credit installment handling, billing
// cycles and the debt capacity report. Services orchestrate the Store
// port and never compute balance deltas themselves; that lives in
// core.TransitionDelta.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"cuentas/internal/core"
)

// Opt is an optional update field. Valid distinguishes "field supplied"
// from "leave as is", which a bare pointer cannot express for fields
// that are themselves nullable.
type Opt[T any] struct {
	Valid bool
	Value T
}

// Some wraps a supplied value.
func Some[T any](v T) Opt[T] {
	return Opt[T]{Valid: true, Value: v}
}

// requireMember returns core.ErrUnauthorized unless userID has accepted
// membership on projectID. Consulted before every mutating operation.
func requireMember(ctx context.Context, store Store, userID, projectID int64) error {
	ok, err := store.HasMembership(ctx, userID, projectID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return fmt.Errorf("user %d on project %d: %w", userID, projectID, core.ErrUnauthorized)
	}
	return nil
}

// isMember is the degrade-gracefully variant for aggregation reads:
// store errors propagate, missing membership just reports false.
func isMember(ctx context.Context, store Store, userID, projectID int64) (bool, error) {
	ok, err := store.HasMembership(ctx, userID, projectID)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return ok, nil
}

// publish emits an event best-effort. The mutation already committed;
// a publish failure is logged, never surfaced to the caller.
func publish(ctx context.Context, events Publisher, kind string, projectID, entityID int64) {
	if events == nil {
		return
	}
	if err := events.Publish(ctx, kind, projectID, entityID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish event",
			"kind", kind,
			"project_id", projectID,
			"entity_id", entityID,
			"error", err)
	}
}
