package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/leasebook/pkg/db/pagination"
)

type ListInvoiceRequest struct {
	pagination.Pagination
	RecurringTemplateID *snowflake.ID
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

// Document is a rendered invoice ready to attach or download.
type Document struct {
	FileName    string
	ContentType string
	Content     []byte
}

type Service interface {
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	GetByID(ctx context.Context, id string) (Invoice, error)
	RenderPDF(ctx context.Context, inv *Invoice) (Document, error)
	RenderPDFByID(ctx context.Context, id string) (Document, error)
}

var (
	ErrInvalidOwner     = errors.New("invalid_owner")
	ErrInvalidInvoiceID = errors.New("invalid_invoice_id")
	ErrInvoiceNotFound  = errors.New("invoice_not_found")
	ErrRenderFailed     = errors.New("invoice_render_failed")
)
