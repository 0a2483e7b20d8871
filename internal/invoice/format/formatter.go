package format

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

var unresolvedTokenRe = regexp.MustCompile(`\{[A-Z0-9]+\}`)

// RecurringInvoiceNumberTemplate yields one number per template per calendar
// month, so the number doubles as the generation dedupe key.
const RecurringInvoiceNumberTemplate = "REC-{TEMPLATE}-{YYYY}-{MM}"

// FormatInvoiceNumber expands template for the invoice date and source template.
// It is pure: the same inputs always yield the same number.
func FormatInvoiceNumber(template string, invoiceDate time.Time, templateID snowflake.ID) (string, error) {
	if strings.TrimSpace(template) == "" {
		return "", fmt.Errorf("invoice number template is empty")
	}
	if templateID == 0 {
		return "", fmt.Errorf("invalid recurring template id: %d", templateID)
	}

	out := template
	out = strings.ReplaceAll(out, "{TEMPLATE}", templateID.String())
	out = strings.ReplaceAll(out, "{YYYY}", invoiceDate.Format("2006"))
	out = strings.ReplaceAll(out, "{YY}", invoiceDate.Format("06"))
	out = strings.ReplaceAll(out, "{MM}", invoiceDate.Format("01"))
	out = strings.ReplaceAll(out, "{DD}", invoiceDate.Format("02"))

	if unresolvedTokenRe.MatchString(out) {
		return "", fmt.Errorf("unresolved token in invoice format: %s", out)
	}
	return out, nil
}

// RecurringInvoiceNumber is the natural key for the invoice a template produces
// in invoiceDate's month.
func RecurringInvoiceNumber(templateID snowflake.ID, invoiceDate time.Time) (string, error) {
	return FormatInvoiceNumber(RecurringInvoiceNumberTemplate, invoiceDate, templateID)
}
