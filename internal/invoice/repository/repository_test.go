package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/leasebook/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Invoice{}))
	return db
}

func newInvoice(id snowflake.ID, number string) *domain.Invoice {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	return &domain.Invoice{
		ID:            id,
		OwnerID:       1,
		TenantID:      2,
		PropertyID:    3,
		InvoiceNumber: number,
		InvoiceDate:   now,
		DueDate:       now.AddDate(0, 0, 30),
		LineItems:     []domain.LineItem{{Description: "Rent", Amount: decimal.NewFromInt(1000)}},
		Subtotal:      decimal.NewFromInt(1000),
		TaxRate:       decimal.Zero,
		TaxAmount:     decimal.Zero,
		TotalAmount:   decimal.NewFromInt(1000),
		PaymentStatus: domain.PaymentStatusDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestInsertIfAbsentSkipsDuplicateNumber(t *testing.T) {
	db := setupDB(t)
	r := Provide()
	ctx := context.Background()

	inserted, err := r.InsertIfAbsent(ctx, db, newInvoice(10, "REC-5-2024-03"))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = r.InsertIfAbsent(ctx, db, newInvoice(11, "REC-5-2024-03"))
	require.NoError(t, err)
	assert.False(t, inserted)

	var count int64
	require.NoError(t, db.Model(&domain.Invoice{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	found, err := r.FindByNumber(ctx, db, "REC-5-2024-03")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, snowflake.ID(10), found.ID)
	require.Len(t, found.LineItems, 1)
	assert.Equal(t, "Rent", found.LineItems[0].Description)
}

func TestFindByNumberMissing(t *testing.T) {
	db := setupDB(t)

	found, err := Provide().FindByNumber(context.Background(), db, "REC-1-2024-01")
	require.NoError(t, err)
	assert.Nil(t, found)
}
