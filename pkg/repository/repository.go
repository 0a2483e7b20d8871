package repository

import (
	"context"

	"github.com/smallbiznis/leasebook/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a thin generic store for read-mostly models.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)
}
