package authorization

import (
	"context"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) Service {
	t.Helper()

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	enforcer, err := NewEnforcer(conn)
	require.NoError(t, err)

	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestSystemMayGenerateForAnyOwner(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, ActorSystem, "1001", ObjectRecurringInvoice, ActionRecurringInvoiceGenerate))
	require.NoError(t, svc.Authorize(ctx, ActorSystem, "2002", ObjectInvoice, ActionInvoiceCreate))

	err := svc.Authorize(ctx, ActorSystem, "1001", ObjectRecurringInvoice, ActionRecurringInvoiceUpdate)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestOwnerMayManageOwnTemplates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, "user:1001", "1001", ObjectRecurringInvoice, ActionRecurringInvoicePause))
	require.NoError(t, svc.Authorize(ctx, "user:1001", "1001", ObjectInvoice, ActionInvoiceView))

	err := svc.Authorize(ctx, "user:1001", "1001", ObjectInvoice, ActionInvoiceCreate)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestOwnerCannotReachAnotherOwner(t *testing.T) {
	svc := newTestService(t)

	err := svc.Authorize(context.Background(), "user:1001", "2002", ObjectRecurringInvoice, ActionRecurringInvoiceView)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorizeValidatesInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, "", "1", ObjectInvoice, ActionInvoiceView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, "user:abc", "1", ObjectInvoice, ActionInvoiceView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, "robot", "1", ObjectInvoice, ActionInvoiceView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, ActorSystem, "nope", ObjectInvoice, ActionInvoiceView), ErrInvalidOwner)
	assert.ErrorIs(t, svc.Authorize(ctx, ActorSystem, "1", "", ActionInvoiceView), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, ActorSystem, "1", ObjectInvoice, " "), ErrInvalidAction)
}
