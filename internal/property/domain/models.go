package domain

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Property struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	OwnerID      snowflake.ID `gorm:"not null;index" json:"owner_id"`
	Name         string       `gorm:"type:text;not null" json:"name"`
	AddressLine1 string       `gorm:"type:text" json:"address_line1,omitempty"`
	AddressLine2 string       `gorm:"type:text" json:"address_line2,omitempty"`
	City         string       `gorm:"type:text" json:"city,omitempty"`
	PostalCode   string       `gorm:"type:text" json:"postal_code,omitempty"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

func (Property) TableName() string { return "properties" }

// Address renders the postal address on one line, skipping empty parts.
func (p Property) Address() string {
	cityLine := strings.TrimSpace(strings.TrimSpace(p.PostalCode) + " " + strings.TrimSpace(p.City))
	parts := make([]string, 0, 3)
	for _, part := range []string{p.AddressLine1, p.AddressLine2, cityLine} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, property *Property) error
	FindByID(ctx context.Context, db *gorm.DB, ownerID, id snowflake.ID) (*Property, error)
}
