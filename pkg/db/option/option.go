package option

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement before it is executed.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type queryOptionFunc func(db *gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB {
	return f(db)
}

type Operator string

const (
	EQ  Operator = "="
	GTE Operator = ">="
	LTE Operator = "<="
	GT  Operator = ">"
	LT  Operator = "<"
)

// ApplyOperator filters column with op. Column names come from code, never from input.
func ApplyOperator(column string, op Operator, value any) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(fmt.Sprintf("%s %s ?", column, op), value)
	})
}

func WithSortBy(column string, desc bool) QueryOption {
	direction := "ASC"
	if desc {
		direction = "DESC"
	}
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Order(strings.TrimSpace(column) + " " + direction)
	})
}

// ApplyPagination fetches one extra row so callers can tell whether another page exists.
func ApplyPagination(limit int) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit + 1)
	})
}
