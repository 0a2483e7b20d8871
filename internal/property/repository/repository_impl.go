package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/leasebook/internal/property/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, property *domain.Property) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO properties (id, owner_id, name, address_line1, address_line2, city, postal_code, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		property.ID,
		property.OwnerID,
		property.Name,
		property.AddressLine1,
		property.AddressLine2,
		property.City,
		property.PostalCode,
		property.CreatedAt,
		property.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, ownerID, id snowflake.ID) (*domain.Property, error) {
	var property domain.Property
	err := db.WithContext(ctx).Raw(
		`SELECT id, owner_id, name, address_line1, address_line2, city, postal_code, created_at, updated_at
		 FROM properties WHERE owner_id = ? AND id = ?`,
		ownerID,
		id,
	).Scan(&property).Error
	if err != nil {
		return nil, err
	}
	if property.ID == 0 {
		return nil, nil
	}
	return &property, nil
}
