package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cuentas/internal/core"
	"cuentas/internal/services"
	"cuentas/internal/storage/memory"
)

const (
	testUser    int64 = 10
	testProject int64 = 1
	strangerID  int64 = 99
)

// testToday anchors every schedule computation in these tests.
var testToday = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testToday }

func date(y int, m time.Month, d int) core.Date {
	return core.NewDate(y, int(m), d)
}

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.AddMember(context.Background(), testProject, testUser))
	return store
}

func newAccount(t *testing.T, store *memory.Store, typ core.AccountType, name string) int64 {
	t.Helper()
	id, err := store.CreateAccount(context.Background(), core.Account{
		ProjectID: testProject,
		Name:      name,
		Type:      typ,
		Currency:  "COP",
	})
	require.NoError(t, err)
	return id
}

func balanceOf(t *testing.T, store *memory.Store, accountID int64) int64 {
	t.Helper()
	a, err := store.Account(context.Background(), accountID)
	require.NoError(t, err)
	return a.Balance.Cents
}

func ptr[T any](v T) *T { return &v }

func mustTemplate(t *testing.T, store *memory.Store, tpl core.RecurringTemplate) int64 {
	t.Helper()
	id, err := store.CreateTemplate(context.Background(), tpl)
	require.NoError(t, err)
	return id
}

// recordingPublisher captures event kinds for assertions.
type recordingPublisher struct {
	kinds []string
}

func (p *recordingPublisher) Publish(ctx context.Context, kind string, projectID, entityID int64) error {
	p.kinds = append(p.kinds, kind)
	return nil
}

var _ services.Publisher = (*recordingPublisher)(nil)
