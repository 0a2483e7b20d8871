package service

import (
	"context"
	"fmt"

	"github.com/gosimple/slug"
	invoicedomain "github.com/smallbiznis/leasebook/internal/invoice/domain"
	"github.com/smallbiznis/leasebook/internal/invoice/render"
	"github.com/smallbiznis/leasebook/internal/providers/pdf"
)

const contentTypePDF = "application/pdf"

func (s *Service) RenderPDF(ctx context.Context, inv *invoicedomain.Invoice) (invoicedomain.Document, error) {
	if inv == nil {
		return invoicedomain.Document{}, invoicedomain.ErrInvoiceNotFound
	}
	if s.pdf == nil {
		return invoicedomain.Document{}, fmt.Errorf("%w: pdf provider not configured", invoicedomain.ErrRenderFailed)
	}

	content, err := s.pdf.GenerateInvoice(ctx, pdfData(inv))
	if err != nil {
		return invoicedomain.Document{}, fmt.Errorf("%w: %v", invoicedomain.ErrRenderFailed, err)
	}

	return invoicedomain.Document{
		FileName:    DocumentFileName(inv.InvoiceNumber),
		ContentType: contentTypePDF,
		Content:     content,
	}, nil
}

func (s *Service) RenderPDFByID(ctx context.Context, id string) (invoicedomain.Document, error) {
	inv, err := s.findOwned(ctx, id)
	if err != nil {
		return invoicedomain.Document{}, err
	}
	return s.RenderPDF(ctx, inv)
}

// DocumentFileName turns an invoice number into a safe attachment name,
// e.g. REC-1-2024-03 becomes rec-1-2024-03.pdf.
func DocumentFileName(invoiceNumber string) string {
	name := slug.Make(invoiceNumber)
	if name == "" {
		name = "invoice"
	}
	return name + ".pdf"
}

func pdfData(inv *invoicedomain.Invoice) pdf.InvoiceData {
	items := make([]pdf.InvoiceItem, 0, len(inv.LineItems))
	for _, item := range inv.LineItems {
		items = append(items, pdf.InvoiceItem{
			Description: item.Description,
			Amount:      render.FormatMoney(item.Amount),
		})
	}

	return pdf.InvoiceData{
		InvoiceNumber:   inv.InvoiceNumber,
		IssueDate:       render.FormatDate(inv.InvoiceDate),
		DueDate:         render.FormatDate(inv.DueDate),
		BillToName:      inv.TenantName,
		BillToEmail:     inv.TenantEmail,
		BillToPhone:     inv.TenantPhone,
		PropertyName:    inv.PropertyName,
		PropertyAddress: inv.PropertyAddress,
		Items:           items,
		Subtotal:        render.FormatMoney(inv.Subtotal),
		TaxLabel:        "Tax (" + render.FormatRate(inv.TaxRate) + "%)",
		TaxAmount:       render.FormatMoney(inv.TaxAmount),
		Total:           render.FormatMoney(inv.TotalAmount),
		PaymentTerms:    inv.PaymentTerms,
		Notes:           inv.Notes,
	}
}
