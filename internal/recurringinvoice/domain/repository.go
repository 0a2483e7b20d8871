package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	IsActive *bool
	AfterID  snowflake.ID
	Limit    int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tmpl *Template) error
	Update(ctx context.Context, db *gorm.DB, tmpl *Template) error
	// FindByID loads a template regardless of owner. It is only used by the engine.
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Template, error)
	FindByOwner(ctx context.Context, db *gorm.DB, ownerID, id snowflake.ID) (*Template, error)
	List(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, filter ListFilter) ([]*Template, error)

	// ListDueIDs returns active templates due at now, in id order after afterID.
	ListDueIDs(ctx context.Context, db *gorm.DB, now time.Time, afterID snowflake.ID, limit int) ([]snowflake.ID, error)
	// ListUnscheduled returns active templates that were never scheduled.
	ListUnscheduled(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]*Template, error)
	UpdateSchedule(ctx context.Context, db *gorm.DB, id snowflake.ID, lastGeneratedAt *time.Time, next time.Time, now time.Time) error
	// SetActive toggles is_active. A nil next keeps the stored next_generation_date.
	SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, next *time.Time, now time.Time) error
}
