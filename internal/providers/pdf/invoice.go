package pdf

import (
	"context"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// InvoiceData is the pre-formatted view of an invoice. Amounts are already
// rendered as strings.
type InvoiceData struct {
	InvoiceNumber string
	IssueDate     string
	DueDate       string

	BillToName  string
	BillToEmail string
	BillToPhone string

	PropertyName    string
	PropertyAddress string

	Items []InvoiceItem

	Subtotal  string
	TaxLabel  string
	TaxAmount string
	Total     string

	PaymentTerms string
	Notes        string
}

type InvoiceItem struct {
	Description string
	Amount      string
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateInvoice(ctx context.Context, invoice InvoiceData) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if invoice.InvoiceNumber == "" {
		return nil, fmt.Errorf("invoice number is required")
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(8, "Invoice", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, invoice.InvoiceNumber, props.Text{
			Size:  11,
			Style: fontstyle.Bold,
			Align: align.Right,
			Top:   4,
		}),
	)

	m.AddRow(16,
		col.New(6).Add(
			text.New("Date of issue: "+invoice.IssueDate, props.Text{Top: 0}),
			text.New("Date due: "+invoice.DueDate, props.Text{Top: 4}),
		),
		col.New(6),
	)

	m.AddRow(30,
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold}),
			text.New(invoice.BillToName, props.Text{Top: 5}),
			text.New(invoice.BillToEmail, props.Text{Top: 9}),
			text.New(invoice.BillToPhone, props.Text{Top: 13}),
		),
		col.New(6).Add(
			text.New("Property", props.Text{Style: fontstyle.Bold}),
			text.New(invoice.PropertyName, props.Text{Top: 5}),
			text.New(invoice.PropertyAddress, props.Text{Top: 9}),
		),
	)

	m.AddRow(15,
		text.NewCol(12, invoice.Total+" due "+invoice.DueDate, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	m.AddRow(10,
		text.NewCol(9, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(2, line.NewCol(12))

	for _, item := range invoice.Items {
		m.AddRow(8,
			text.NewCol(9, item.Description, props.Text{Size: 9}),
			text.NewCol(3, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(8,
		col.New(7),
		text.NewCol(2, "Subtotal", props.Text{Size: 9}),
		text.NewCol(3, invoice.Subtotal, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(8,
		col.New(7),
		text.NewCol(2, invoice.TaxLabel, props.Text{Size: 9}),
		text.NewCol(3, invoice.TaxAmount, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(8,
		col.New(7),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, invoice.Total, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	if invoice.PaymentTerms != "" {
		m.AddRow(12,
			text.NewCol(12, "Payment terms: "+invoice.PaymentTerms, props.Text{Size: 9, Top: 4}),
		)
	}
	if invoice.Notes != "" {
		m.AddRow(12,
			text.NewCol(12, invoice.Notes, props.Text{Size: 9, Top: 2}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
