package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/leasebook/internal/invoice/domain"
	"github.com/smallbiznis/leasebook/pkg/db/pagination"
)

type CreateRequest struct {
	TenantID        string     `json:"tenant_id" validate:"required"`
	PropertyID      string     `json:"property_id" validate:"required"`
	Frequency       string     `json:"frequency" validate:"required,oneof=monthly quarterly yearly"`
	DayOfMonth      int        `json:"day_of_month" validate:"required,min=1,max=31"`
	StartDate       time.Time  `json:"start_date" validate:"required"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	InvoiceTemplate Body       `json:"invoice_template" validate:"-"`
}

// UpdateRequest changes only the fields that are set.
type UpdateRequest struct {
	Frequency       *string    `json:"frequency,omitempty" validate:"omitempty,oneof=monthly quarterly yearly"`
	DayOfMonth      *int       `json:"day_of_month,omitempty" validate:"omitempty,min=1,max=31"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	InvoiceTemplate *Body      `json:"invoice_template,omitempty" validate:"-"`
}

type ListRequest struct {
	pagination.Pagination
	IsActive *bool
}

type ListResponse struct {
	pagination.PageInfo
	Templates []Template `json:"recurring_invoices"`
}

// ItemError records one template that failed during a batch.
type ItemError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
	Err   error  `json:"-"`
}

// BatchResult summarizes one ProcessDue run. Generated counts invoices returned,
// including ones that already existed for the period.
type BatchResult struct {
	Processed    int         `json:"processed"`
	Generated    int         `json:"generated"`
	Deduplicated int         `json:"deduplicated"`
	Errors       []ItemError `json:"errors"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Template, error)
	Get(ctx context.Context, id string) (*Template, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*Template, error)
	Pause(ctx context.Context, id string) (*Template, error)
	Resume(ctx context.Context, id string) (*Template, error)

	// Generate materializes the current period's invoice for a template. It returns
	// nil without error when the template is skipped.
	Generate(ctx context.Context, templateID snowflake.ID) (*invoicedomain.Invoice, error)
	// ProcessDue runs Generate for every due template. Per-template failures are
	// reported in the result; the error is only set when the due set cannot be read
	// or ctx ends, and the partial result is still returned.
	ProcessDue(ctx context.Context) (BatchResult, error)
}

var (
	ErrInvalidOwner        = errors.New("invalid_owner")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("recurring_invoice_not_found")
	ErrInvalidTenant       = errors.New("invalid_tenant")
	ErrInvalidProperty     = errors.New("invalid_property")
	ErrInvalidTemplateBody = errors.New("invalid_invoice_template")
	ErrInvalidSchedule     = errors.New("invalid_schedule")
	ErrInvalidRequest      = errors.New("invalid_request")
)
