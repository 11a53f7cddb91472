package sheets

import (
	"context"

	"cuentas/internal/core"
)

// Ports for outbound adapters.
type (
	// SnapshotAppender writes one row per closed billing cycle to an
	// external spreadsheet.
	SnapshotAppender interface {
		AppendSnapshot(ctx context.Context, projectID int64, cycle core.BillingCycle) (rowRef string, err error)
	}
)
