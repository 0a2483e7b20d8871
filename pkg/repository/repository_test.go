package repository

import (
	"context"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/smallbiznis/leasebook/pkg/db/option"
)

type widget struct {
	ID      int64 `gorm:"primaryKey"`
	OwnerID int64
	Name    string
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(memoryDSN(t)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&widget{}))
	return conn
}

func TestStoreFindWithOptions(t *testing.T) {
	conn := setupDB(t)
	require.NoError(t, conn.Create([]*widget{
		{ID: 1, OwnerID: 7, Name: "a"},
		{ID: 2, OwnerID: 7, Name: "b"},
		{ID: 3, OwnerID: 7, Name: "c"},
		{ID: 4, OwnerID: 8, Name: "d"},
	}).Error)

	store := ProvideStore[widget](conn)
	ctx := context.Background()

	rows, err := store.Find(ctx, &widget{OwnerID: 7},
		option.ApplyOperator("id", option.GT, 1),
		option.WithSortBy("id", false),
		option.ApplyPagination(1),
	)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(2), rows[0].ID)

	count, err := store.Count(ctx, &widget{OwnerID: 7})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestStoreFindOneReturnsNilWhenMissing(t *testing.T) {
	conn := setupDB(t)
	store := ProvideStore[widget](conn)

	row, err := store.FindOne(context.Background(), &widget{ID: 42})
	require.NoError(t, err)
	assert.Nil(t, row)
}

func memoryDSN(t *testing.T) string {
	return "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
}
