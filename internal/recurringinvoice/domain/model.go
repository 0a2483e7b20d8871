package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// LineItem is one row copied onto every invoice the template produces.
type LineItem struct {
	Description string          `json:"description" validate:"required,max=500"`
	Amount      decimal.Decimal `json:"amount"`
}

// Body is the invoice blueprint stored in the invoice_template column.
type Body struct {
	LineItems []LineItem `json:"line_items" validate:"required,min=1,max=100,dive"`
	// TaxRate is a percentage, so 10 means 10%.
	TaxRate decimal.Decimal `json:"tax_rate" validate:"gte=0,lte=100"`
	// DueDays defaults to the configured value when unset.
	DueDays      *int   `json:"due_days,omitempty" validate:"omitempty,gte=0,lte=365"`
	Notes        string `json:"notes,omitempty" validate:"max=2000"`
	PaymentTerms string `json:"payment_terms,omitempty" validate:"max=500"`
	AutoSend     bool   `json:"auto_send"`
}

// Template drives the periodic generation of invoices for one tenant and property.
type Template struct {
	ID         snowflake.ID             `gorm:"primaryKey" json:"id"`
	OwnerID    snowflake.ID             `gorm:"not null;index" json:"owner_id"`
	TenantID   snowflake.ID             `gorm:"not null" json:"tenant_id"`
	PropertyID snowflake.ID             `gorm:"not null" json:"property_id"`
	Body       datatypes.JSONType[Body] `gorm:"column:invoice_template;type:json;not null" json:"invoice_template"`
	Frequency  string                   `gorm:"type:text;not null" json:"frequency"`
	DayOfMonth int                      `gorm:"not null" json:"day_of_month"`
	StartDate  time.Time                `gorm:"not null" json:"start_date"`
	EndDate    *time.Time               `json:"end_date,omitempty"`
	IsActive   bool                     `gorm:"not null;index:idx_recurring_due,priority:1" json:"is_active"`

	LastGeneratedAt    *time.Time `json:"last_generated_at,omitempty"`
	NextGenerationDate *time.Time `gorm:"index:idx_recurring_due,priority:2" json:"next_generation_date,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Template) TableName() string { return "recurring_invoice_templates" }

// Expired reports whether the active window closed strictly before now.
func (t *Template) Expired(now time.Time) bool {
	return t.EndDate != nil && t.EndDate.Before(now)
}
