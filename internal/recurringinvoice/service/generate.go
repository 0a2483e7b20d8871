package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/leasebook/internal/audit/domain"
	"github.com/smallbiznis/leasebook/internal/auditcontext"
	"github.com/smallbiznis/leasebook/internal/authorization"
	"github.com/smallbiznis/leasebook/internal/config"
	invoicedomain "github.com/smallbiznis/leasebook/internal/invoice/domain"
	invoiceformat "github.com/smallbiznis/leasebook/internal/invoice/format"
	"github.com/smallbiznis/leasebook/internal/observability/logger"
	propertydomain "github.com/smallbiznis/leasebook/internal/property/domain"
	"github.com/smallbiznis/leasebook/internal/recurringinvoice/domain"
	"github.com/smallbiznis/leasebook/internal/schedule"
	tenantdomain "github.com/smallbiznis/leasebook/internal/tenant/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	skipReasonNotFound        = "not_found"
	skipReasonInactive        = "inactive"
	skipReasonExpired         = "expired"
	skipReasonTenantMissing   = "tenant_missing"
	skipReasonPropertyMissing = "property_missing"
	skipReasonDuplicate       = "duplicate"
)

var hundred = decimal.NewFromInt(100)

// Totals are the derived money fields of an invoice.
type Totals struct {
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
}

// ComputeTotals sums the line items and applies taxRate percent. Tax is rounded
// to cents before it is added to the total.
func ComputeTotals(items []domain.LineItem, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Amount)
	}
	tax := subtotal.Mul(taxRate).Div(hundred).Round(2)
	return Totals{
		Subtotal:  subtotal.Round(2),
		TaxAmount: tax,
		Total:     subtotal.Add(tax).Round(2),
	}
}

func (s *Service) Generate(ctx context.Context, templateID snowflake.ID) (*invoicedomain.Invoice, error) {
	inv, _, err := s.generate(ctx, templateID)
	return inv, err
}

// generate reports created=false when the period's invoice already existed.
func (s *Service) generate(ctx context.Context, templateID snowflake.ID) (*invoicedomain.Invoice, bool, error) {
	ctx = auditcontext.WithTemplateID(ctx, templateID.String())
	log := logger.WithContext(ctx, s.log).With(zap.String("recurring_template_id", templateID.String()))

	tmpl, err := s.repo.FindByID(ctx, s.db, templateID)
	if err != nil {
		return nil, false, fmt.Errorf("load template: %w", err)
	}
	now := s.clock.Now().UTC()
	if tmpl == nil {
		s.skip(ctx, log, skipReasonNotFound)
		return nil, false, nil
	}
	if !tmpl.IsActive {
		s.skip(ctx, log, skipReasonInactive)
		return nil, false, nil
	}
	if tmpl.Expired(now) {
		s.skip(ctx, log, skipReasonExpired)
		return nil, false, nil
	}

	body := tmpl.Body.Data()
	if err := body.Validate(); err != nil {
		return nil, false, err
	}
	frequency, err := schedule.ParseFrequency(tmpl.Frequency)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrInvalidSchedule, err)
	}
	if err := schedule.ValidateDayOfMonth(tmpl.DayOfMonth); err != nil {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrInvalidSchedule, err)
	}

	tenant, err := s.tenants.FindByID(ctx, s.db, tmpl.OwnerID, tmpl.TenantID)
	if err != nil {
		return nil, false, fmt.Errorf("load tenant: %w", err)
	}
	if tenant == nil {
		s.skip(ctx, log, skipReasonTenantMissing)
		return nil, false, nil
	}
	property, err := s.properties.FindByID(ctx, s.db, tmpl.OwnerID, tmpl.PropertyID)
	if err != nil {
		return nil, false, fmt.Errorf("load property: %w", err)
	}
	if property == nil {
		s.skip(ctx, log, skipReasonPropertyMissing)
		return nil, false, nil
	}

	if err := s.authz.Authorize(ctx, authorization.ActorSystem, tmpl.OwnerID.String(), authorization.ObjectRecurringInvoice, authorization.ActionRecurringInvoiceGenerate); err != nil {
		return nil, false, err
	}

	cfg := s.cfg.Get()
	invoiceDate := schedule.BillingDate(now, tmpl.DayOfMonth)
	dueDays := cfg.DefaultDueDays
	if body.DueDays != nil {
		dueDays = *body.DueDays
	}
	dueDate := invoiceDate.AddDate(0, 0, dueDays)

	invoiceNumber, err := invoiceformat.RecurringInvoiceNumber(tmpl.ID, invoiceDate)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.invoices.FindByNumber(ctx, s.db, invoiceNumber)
	if err != nil {
		return nil, false, fmt.Errorf("find invoice %s: %w", invoiceNumber, err)
	}
	if existing != nil {
		s.skip(ctx, log, skipReasonDuplicate)
		return existing, false, nil
	}

	next, err := s.nextGenerationDate(cfg, invoiceDate, now, frequency, tmpl.DayOfMonth)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrInvalidSchedule, err)
	}

	inv := s.buildInvoice(tmpl, body, tenant, property, invoiceNumber, invoiceDate, dueDate, now)

	created := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.invoices.InsertIfAbsent(ctx, tx, inv)
		if err != nil {
			return fmt.Errorf("insert invoice %s: %w", invoiceNumber, err)
		}
		if !inserted {
			return nil
		}
		created = true
		return s.repo.UpdateSchedule(ctx, tx, tmpl.ID, &now, next, now)
	})
	if err != nil {
		return nil, false, err
	}

	if !created {
		// A concurrent run inserted this period first.
		winner, err := s.invoices.FindByNumber(ctx, s.db, invoiceNumber)
		if err != nil {
			return nil, false, fmt.Errorf("find invoice %s: %w", invoiceNumber, err)
		}
		if winner == nil {
			return nil, false, fmt.Errorf("invoice %s vanished after insert conflict", invoiceNumber)
		}
		s.skip(ctx, log, skipReasonDuplicate)
		return winner, false, nil
	}

	s.metrics.RecordInvoiceGenerated(ctx, tmpl.Frequency)
	s.emitGeneratedAudit(ctx, tmpl, inv, next)
	log.Info("recurring invoice generated",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.Time("invoice_date", invoiceDate),
		zap.Time("next_generation_date", next),
	)

	s.notify(ctx, log, cfg, inv)
	return inv, true, nil
}

// nextGenerationDate anchors the schedule on the billed invoice date so a late
// sweep does not shift later periods. The generation_time anchor keeps the
// older behavior of re-anchoring on the moment of generation.
func (s *Service) nextGenerationDate(cfg config.RecurringConfig, invoiceDate, now time.Time, frequency schedule.Frequency, dayOfMonth int) (time.Time, error) {
	if cfg.ScheduleAnchor == config.AnchorGenerationTime {
		return schedule.NextFromStart(now, frequency, dayOfMonth)
	}
	return schedule.NextAfter(invoiceDate, now, frequency, dayOfMonth)
}

func (s *Service) buildInvoice(
	tmpl *domain.Template,
	body domain.Body,
	tenant *tenantdomain.Tenant,
	property *propertydomain.Property,
	invoiceNumber string,
	invoiceDate, dueDate, now time.Time,
) *invoicedomain.Invoice {
	totals := ComputeTotals(body.LineItems, body.TaxRate)

	items := make([]invoicedomain.LineItem, 0, len(body.LineItems))
	for _, item := range body.LineItems {
		items = append(items, invoicedomain.LineItem{
			Description: item.Description,
			Amount:      item.Amount,
		})
	}

	status := invoicedomain.PaymentStatusDraft
	if body.AutoSend {
		status = invoicedomain.PaymentStatusSent
	}

	templateID := tmpl.ID
	return &invoicedomain.Invoice{
		ID:                  s.genID.Generate(),
		OwnerID:             tmpl.OwnerID,
		RecurringTemplateID: &templateID,
		TenantID:            tenant.ID,
		PropertyID:          property.ID,
		InvoiceNumber:       invoiceNumber,
		InvoiceDate:         invoiceDate,
		DueDate:             dueDate,
		LineItems:           items,
		Subtotal:            totals.Subtotal,
		TaxRate:             body.TaxRate,
		TaxAmount:           totals.TaxAmount,
		TotalAmount:         totals.Total,
		PaymentStatus:       status,
		Notes:               body.Notes,
		PaymentTerms:        body.PaymentTerms,
		TenantName:          tenant.Name,
		TenantEmail:         tenant.Email,
		TenantPhone:         tenant.Phone,
		PropertyName:        property.Name,
		PropertyAddress:     property.Address(),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func (s *Service) skip(ctx context.Context, log *zap.Logger, reason string) {
	s.metrics.RecordTemplateSkipped(ctx, reason)
	log.Debug("recurring invoice skipped", zap.String("reason", reason))
}

func (s *Service) emitGeneratedAudit(ctx context.Context, tmpl *domain.Template, inv *invoicedomain.Invoice, next time.Time) {
	if s.auditSvc == nil {
		return
	}
	ownerID := tmpl.OwnerID
	targetID := inv.ID.String()
	err := s.auditSvc.AuditLog(ctx, &ownerID, string(auditdomain.ActorTypeSystem), nil, "recurring_invoice.generated", "invoice", &targetID, map[string]any{
		"invoice_number":       inv.InvoiceNumber,
		"invoice_date":         inv.InvoiceDate.Format(time.RFC3339),
		"total_amount":         inv.TotalAmount.StringFixed(2),
		"payment_status":       string(inv.PaymentStatus),
		"next_generation_date": next.Format(time.RFC3339),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("failed to write audit log", zap.String("action", "recurring_invoice.generated"), zap.Error(err))
	}
}
