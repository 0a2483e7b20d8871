package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/leasebook/internal/recurringinvoice/domain"
	"gorm.io/gorm"
)

const templateColumns = `id, owner_id, tenant_id, property_id, invoice_template, frequency, day_of_month,
	start_date, end_date, is_active, last_generated_at, next_generation_date, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tmpl *domain.Template) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO recurring_invoice_templates (`+templateColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tmpl.ID,
		tmpl.OwnerID,
		tmpl.TenantID,
		tmpl.PropertyID,
		tmpl.Body,
		tmpl.Frequency,
		tmpl.DayOfMonth,
		tmpl.StartDate,
		tmpl.EndDate,
		tmpl.IsActive,
		tmpl.LastGeneratedAt,
		tmpl.NextGenerationDate,
		tmpl.CreatedAt,
		tmpl.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, tmpl *domain.Template) error {
	return db.WithContext(ctx).Exec(
		`UPDATE recurring_invoice_templates
		 SET invoice_template = ?, frequency = ?, day_of_month = ?, end_date = ?,
		     next_generation_date = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		tmpl.Body,
		tmpl.Frequency,
		tmpl.DayOfMonth,
		tmpl.EndDate,
		tmpl.NextGenerationDate,
		tmpl.UpdatedAt,
		tmpl.ID,
		tmpl.OwnerID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Template, error) {
	var tmpl domain.Template
	err := db.WithContext(ctx).Raw(
		`SELECT `+templateColumns+` FROM recurring_invoice_templates WHERE id = ?`,
		id,
	).Scan(&tmpl).Error
	if err != nil {
		return nil, err
	}
	if tmpl.ID == 0 {
		return nil, nil
	}
	return &tmpl, nil
}

func (r *repo) FindByOwner(ctx context.Context, db *gorm.DB, ownerID, id snowflake.ID) (*domain.Template, error) {
	var tmpl domain.Template
	err := db.WithContext(ctx).Raw(
		`SELECT `+templateColumns+` FROM recurring_invoice_templates WHERE owner_id = ? AND id = ?`,
		ownerID,
		id,
	).Scan(&tmpl).Error
	if err != nil {
		return nil, err
	}
	if tmpl.ID == 0 {
		return nil, nil
	}
	return &tmpl, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, filter domain.ListFilter) ([]*domain.Template, error) {
	query := db.WithContext(ctx).
		Table("recurring_invoice_templates").
		Select(templateColumns).
		Where("owner_id = ?", ownerID)
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.AfterID != 0 {
		query = query.Where("id > ?", filter.AfterID)
	}
	query = query.Order("id ASC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var items []*domain.Template
	if err := query.Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListDueIDs(ctx context.Context, db *gorm.DB, now time.Time, afterID snowflake.ID, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT id FROM recurring_invoice_templates
		 WHERE is_active = ? AND next_generation_date IS NOT NULL AND next_generation_date <= ? AND id > ?
		 ORDER BY id ASC
		 LIMIT ?`,
		true,
		now,
		afterID,
		limit,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) ListUnscheduled(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]*domain.Template, error) {
	var items []*domain.Template
	err := db.WithContext(ctx).Raw(
		`SELECT `+templateColumns+` FROM recurring_invoice_templates
		 WHERE is_active = ? AND next_generation_date IS NULL AND id > ?
		 ORDER BY id ASC
		 LIMIT ?`,
		true,
		afterID,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateSchedule(ctx context.Context, db *gorm.DB, id snowflake.ID, lastGeneratedAt *time.Time, next time.Time, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE recurring_invoice_templates
		 SET last_generated_at = COALESCE(?, last_generated_at), next_generation_date = ?, updated_at = ?
		 WHERE id = ?`,
		lastGeneratedAt,
		next,
		now,
		id,
	).Error
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, next *time.Time, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE recurring_invoice_templates
		 SET is_active = ?, next_generation_date = COALESCE(?, next_generation_date), updated_at = ?
		 WHERE id = ?`,
		active,
		next,
		now,
		id,
	).Error
}
