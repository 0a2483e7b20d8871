package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentStatusDraft PaymentStatus = "draft"
	PaymentStatusSent  PaymentStatus = "sent"
)

// LineItem is one billed row. Amounts are in the owner's single currency.
type LineItem struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// Invoice is an immutable bill. Tenant and property fields are snapshots taken
// when the invoice was materialized.
type Invoice struct {
	ID                  snowflake.ID                  `gorm:"primaryKey" json:"id"`
	OwnerID             snowflake.ID                  `gorm:"not null;index" json:"owner_id"`
	RecurringTemplateID *snowflake.ID                 `gorm:"index" json:"recurring_template_id,omitempty"`
	TenantID            snowflake.ID                  `gorm:"not null" json:"tenant_id"`
	PropertyID          snowflake.ID                  `gorm:"not null" json:"property_id"`
	InvoiceNumber       string                        `gorm:"type:text;not null;uniqueIndex" json:"invoice_number"`
	InvoiceDate         time.Time                     `gorm:"not null" json:"invoice_date"`
	DueDate             time.Time                     `gorm:"not null" json:"due_date"`
	LineItems           datatypes.JSONSlice[LineItem] `gorm:"type:json;not null" json:"line_items"`
	Subtotal            decimal.Decimal               `gorm:"type:numeric(14,2);not null" json:"subtotal"`
	TaxRate             decimal.Decimal               `gorm:"type:numeric(7,4);not null" json:"tax_rate"`
	TaxAmount           decimal.Decimal               `gorm:"type:numeric(14,2);not null" json:"tax_amount"`
	TotalAmount         decimal.Decimal               `gorm:"type:numeric(14,2);not null" json:"total_amount"`
	PaymentStatus       PaymentStatus                 `gorm:"type:text;not null" json:"payment_status"`
	Notes               string                        `gorm:"type:text" json:"notes,omitempty"`
	PaymentTerms        string                        `gorm:"type:text" json:"payment_terms,omitempty"`
	TenantName          string                        `gorm:"type:text" json:"tenant_name"`
	TenantEmail         string                        `gorm:"type:text" json:"tenant_email,omitempty"`
	TenantPhone         string                        `gorm:"type:text" json:"tenant_phone,omitempty"`
	PropertyName        string                        `gorm:"type:text" json:"property_name"`
	PropertyAddress     string                        `gorm:"type:text" json:"property_address,omitempty"`
	CreatedAt           time.Time                     `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time                     `gorm:"not null" json:"updated_at"`
}

func (Invoice) TableName() string { return "invoices" }

// Repository holds the write path used by the materializer. Reads for the API go
// through the generic store.
type Repository interface {
	FindByNumber(ctx context.Context, db *gorm.DB, invoiceNumber string) (*Invoice, error)
	// InsertIfAbsent inserts inv unless the invoice number already exists. It
	// reports whether a row was written.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, inv *Invoice) (bool, error)
}
