package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/leasebook/internal/invoice/domain"
)

const invoiceEmailTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Invoice {{.InvoiceNumber}}</title>
  <style>
    body { margin: 0; padding: 32px; font-family: -apple-system, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; color: #1a1f36; background: #f7f9fc; }
    .card { background: #ffffff; max-width: 640px; margin: 0 auto; padding: 40px; border-radius: 4px; }
    .label { font-size: 11px; text-transform: uppercase; color: #8792a2; font-weight: 600; }
    .amount { font-size: 28px; font-weight: 700; margin: 8px 0; }
    table { width: 100%; border-collapse: collapse; margin: 24px 0; }
    td { padding: 10px 0; border-bottom: 1px solid #e3e8ee; font-size: 14px; }
    .right { text-align: right; }
    .footer { margin-top: 32px; font-size: 12px; color: #8792a2; }
  </style>
</head>
<body>
  <div class="card">
    <p>Hello {{.TenantName}},</p>
    <p>Your invoice for {{.PropertyName}} is ready. The PDF is attached.</p>

    <div class="label">Amount due</div>
    <div class="amount">{{formatMoney .TotalAmount}}</div>
    <div>due {{formatDate .DueDate}}</div>

    <table>
      {{range .LineItems}}
      <tr>
        <td>{{.Description}}</td>
        <td class="right">{{formatMoney .Amount}}</td>
      </tr>
      {{end}}
      <tr>
        <td>Subtotal</td>
        <td class="right">{{formatMoney .Subtotal}}</td>
      </tr>
      <tr>
        <td>Tax ({{formatRate .TaxRate}}%)</td>
        <td class="right">{{formatMoney .TaxAmount}}</td>
      </tr>
      <tr>
        <td><strong>Total</strong></td>
        <td class="right"><strong>{{formatMoney .TotalAmount}}</strong></td>
      </tr>
    </table>

    {{if .PaymentTerms}}<p>Payment terms: {{.PaymentTerms}}</p>{{end}}
    {{if .Notes}}<p>{{.Notes}}</p>{{end}}

    <div class="footer">Invoice {{.InvoiceNumber}} issued {{formatDate .InvoiceDate}}</div>
  </div>
</body>
</html>
`

// Renderer produces the notification email for an invoice.
type Renderer interface {
	RenderHTML(inv *domain.Invoice) (string, error)
	RenderSubject(subjectTemplate string, inv *domain.Invoice) (string, error)
}

type HTMLRenderer struct {
	tpl *template.Template
}

func NewRenderer() Renderer {
	return &HTMLRenderer{
		tpl: template.Must(template.New("invoice_email").Funcs(Funcs()).Parse(invoiceEmailTemplate)),
	}
}

func (r *HTMLRenderer) RenderHTML(inv *domain.Invoice) (string, error) {
	if inv == nil {
		return "", domain.ErrInvoiceNotFound
	}
	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, inv); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderSubject expands subjectTemplate against the invoice. Subjects are plain
// text so they go through text/template.
func (r *HTMLRenderer) RenderSubject(subjectTemplate string, inv *domain.Invoice) (string, error) {
	if inv == nil {
		return "", domain.ErrInvoiceNotFound
	}
	subjectTemplate = strings.TrimSpace(subjectTemplate)
	if subjectTemplate == "" {
		return "Invoice " + inv.InvoiceNumber, nil
	}
	tpl, err := texttemplate.New("subject").Funcs(texttemplate.FuncMap(Funcs())).Parse(subjectTemplate)
	if err != nil {
		return "", fmt.Errorf("parse subject template: %w", err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, inv); err != nil {
		return "", fmt.Errorf("render subject: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func Funcs() template.FuncMap {
	return template.FuncMap{
		"formatMoney": FormatMoney,
		"formatDate":  FormatDate,
		"formatRate":  FormatRate,
	}
}

func FormatMoney(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

func FormatDate(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format("2006-01-02")
}

// FormatRate prints a percentage without trailing zeros, e.g. 7.5 or 10.
func FormatRate(rate decimal.Decimal) string {
	return rate.String()
}
