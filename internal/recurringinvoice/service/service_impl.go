package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/leasebook/internal/audit/domain"
	"github.com/smallbiznis/leasebook/internal/authorization"
	"github.com/smallbiznis/leasebook/internal/clock"
	"github.com/smallbiznis/leasebook/internal/config"
	invoicedomain "github.com/smallbiznis/leasebook/internal/invoice/domain"
	"github.com/smallbiznis/leasebook/internal/invoice/render"
	"github.com/smallbiznis/leasebook/internal/observability/metrics"
	"github.com/smallbiznis/leasebook/internal/ownercontext"
	propertydomain "github.com/smallbiznis/leasebook/internal/property/domain"
	"github.com/smallbiznis/leasebook/internal/providers/email"
	"github.com/smallbiznis/leasebook/internal/recurringinvoice/domain"
	"github.com/smallbiznis/leasebook/internal/schedule"
	tenantdomain "github.com/smallbiznis/leasebook/internal/tenant/domain"
	"github.com/smallbiznis/leasebook/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     *config.RecurringConfigHolder
	Repo       domain.Repository
	Invoices   invoicedomain.Repository
	InvoiceSvc invoicedomain.Service
	Tenants    tenantdomain.Repository
	Properties propertydomain.Repository
	Authz      authorization.Service
	Email      email.Provider
	Renderer   render.Renderer
	AuditSvc   auditdomain.Service `optional:"true"`
	Metrics    *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	cfg   *config.RecurringConfigHolder

	repo       domain.Repository
	invoices   invoicedomain.Repository
	invoiceSvc invoicedomain.Service
	tenants    tenantdomain.Repository
	properties propertydomain.Repository
	authz      authorization.Service
	email      email.Provider
	renderer   render.Renderer
	auditSvc   auditdomain.Service
	metrics    *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("recurringinvoice.service"),
		genID: p.GenID,
		clock: p.Clock,
		cfg:   p.Config,

		repo:       p.Repo,
		invoices:   p.Invoices,
		invoiceSvc: p.InvoiceSvc,
		tenants:    p.Tenants,
		properties: p.Properties,
		authz:      p.Authz,
		email:      p.Email,
		renderer:   p.Renderer,
		auditSvc:   p.AuditSvc,
		metrics:    p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Template, error) {
	ownerID, err := ownerIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tenantID, err := parseID(req.TenantID)
	if err != nil {
		return nil, domain.ErrInvalidTenant
	}
	propertyID, err := parseID(req.PropertyID)
	if err != nil {
		return nil, domain.ErrInvalidProperty
	}

	tenant, err := s.tenants.FindByID(ctx, s.db, ownerID, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, domain.ErrInvalidTenant
	}
	property, err := s.properties.FindByID(ctx, s.db, ownerID, propertyID)
	if err != nil {
		return nil, err
	}
	if property == nil {
		return nil, domain.ErrInvalidProperty
	}

	startDate := req.StartDate.UTC()
	if req.EndDate != nil && req.EndDate.Before(startDate) {
		return nil, fmt.Errorf("%w: end_date is before start_date", domain.ErrInvalidSchedule)
	}

	frequency, err := schedule.ParseFrequency(req.Frequency)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSchedule, err)
	}
	next, err := schedule.NextFromStart(startDate, frequency, req.DayOfMonth)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSchedule, err)
	}

	now := s.clock.Now().UTC()
	tmpl := &domain.Template{
		ID:                 s.genID.Generate(),
		OwnerID:            ownerID,
		TenantID:           tenant.ID,
		PropertyID:         property.ID,
		Body:               datatypes.NewJSONType(req.InvoiceTemplate),
		Frequency:          string(frequency),
		DayOfMonth:         req.DayOfMonth,
		StartDate:          startDate,
		EndDate:            utcPtr(req.EndDate),
		IsActive:           true,
		NextGenerationDate: &next,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Insert(ctx, s.db, tmpl); err != nil {
		return nil, err
	}

	s.emitAudit(ctx, "recurring_invoice.created", tmpl, map[string]any{
		"frequency":            tmpl.Frequency,
		"day_of_month":         tmpl.DayOfMonth,
		"next_generation_date": next.Format(time.RFC3339),
	})
	return tmpl, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Template, error) {
	ownerID, err := ownerIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	templateID, err := parseID(id)
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	tmpl, err := s.repo.FindByOwner(ctx, s.db, ownerID, templateID)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, domain.ErrNotFound
	}
	return tmpl, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	ownerID, err := ownerIDFromContext(ctx)
	if err != nil {
		return domain.ListResponse{}, err
	}

	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListResponse{}, err
	}
	var afterID snowflake.ID
	if cursor != nil {
		if afterID, err = parseID(cursor.ID); err != nil {
			return domain.ListResponse{}, pagination.ErrInvalidPageToken
		}
	}

	limit := req.Limit()
	items, err := s.repo.List(ctx, s.db, ownerID, domain.ListFilter{
		IsActive: req.IsActive,
		AfterID:  afterID,
		Limit:    limit + 1,
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	items, pageInfo := pagination.Trim(items, limit, func(t *domain.Template) string {
		return t.ID.String()
	})
	templates := make([]domain.Template, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		templates = append(templates, *item)
	}
	return domain.ListResponse{PageInfo: pageInfo, Templates: templates}, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateRequest) (*domain.Template, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	tmpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	changed := make([]string, 0, 4)
	rescheduled := false
	if req.Frequency != nil && *req.Frequency != tmpl.Frequency {
		tmpl.Frequency = *req.Frequency
		changed = append(changed, "frequency")
		rescheduled = true
	}
	if req.DayOfMonth != nil && *req.DayOfMonth != tmpl.DayOfMonth {
		tmpl.DayOfMonth = *req.DayOfMonth
		changed = append(changed, "day_of_month")
		rescheduled = true
	}
	if req.EndDate != nil {
		if req.EndDate.Before(tmpl.StartDate) {
			return nil, fmt.Errorf("%w: end_date is before start_date", domain.ErrInvalidSchedule)
		}
		tmpl.EndDate = utcPtr(req.EndDate)
		changed = append(changed, "end_date")
	}
	if req.InvoiceTemplate != nil {
		tmpl.Body = datatypes.NewJSONType(*req.InvoiceTemplate)
		changed = append(changed, "invoice_template")
	}
	if len(changed) == 0 {
		return tmpl, nil
	}

	now := s.clock.Now().UTC()
	if rescheduled {
		next, err := s.rescheduleFrom(tmpl, now)
		if err != nil {
			return nil, err
		}
		tmpl.NextGenerationDate = &next
	}
	tmpl.UpdatedAt = now

	if err := s.repo.Update(ctx, s.db, tmpl); err != nil {
		return nil, err
	}

	s.emitAudit(ctx, "recurring_invoice.updated", tmpl, map[string]any{
		"changed_fields": changed,
	})
	return tmpl, nil
}

func (s *Service) Pause(ctx context.Context, id string) (*domain.Template, error) {
	tmpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !tmpl.IsActive {
		return tmpl, nil
	}

	now := s.clock.Now().UTC()
	if err := s.repo.SetActive(ctx, s.db, tmpl.ID, false, nil, now); err != nil {
		return nil, err
	}
	tmpl.IsActive = false
	tmpl.UpdatedAt = now

	s.emitAudit(ctx, "recurring_invoice.paused", tmpl, nil)
	return tmpl, nil
}

// Resume reactivates a template. A template that was never scheduled gets its
// next date computed from the last run, or from now.
func (s *Service) Resume(ctx context.Context, id string) (*domain.Template, error) {
	tmpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tmpl.IsActive {
		return tmpl, nil
	}

	now := s.clock.Now().UTC()
	var next *time.Time
	if tmpl.NextGenerationDate == nil {
		frequency, err := schedule.ParseFrequency(tmpl.Frequency)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSchedule, err)
		}
		computed, err := schedule.NextFromLastRun(tmpl.LastGeneratedAt, now, frequency, tmpl.DayOfMonth)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSchedule, err)
		}
		next = &computed
		tmpl.NextGenerationDate = next
	}

	if err := s.repo.SetActive(ctx, s.db, tmpl.ID, true, next, now); err != nil {
		return nil, err
	}
	tmpl.IsActive = true
	tmpl.UpdatedAt = now

	s.emitAudit(ctx, "recurring_invoice.resumed", tmpl, nil)
	return tmpl, nil
}

func (s *Service) rescheduleFrom(tmpl *domain.Template, now time.Time) (time.Time, error) {
	frequency, err := schedule.ParseFrequency(tmpl.Frequency)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", domain.ErrInvalidSchedule, err)
	}
	var next time.Time
	if tmpl.LastGeneratedAt == nil {
		next, err = schedule.NextFromStart(tmpl.StartDate, frequency, tmpl.DayOfMonth)
	} else {
		next, err = schedule.NextFromLastRun(tmpl.LastGeneratedAt, now, frequency, tmpl.DayOfMonth)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", domain.ErrInvalidSchedule, err)
	}
	return next, nil
}

func (s *Service) emitAudit(ctx context.Context, action string, tmpl *domain.Template, extra map[string]any) {
	if s.auditSvc == nil || tmpl == nil {
		return
	}
	metadata := map[string]any{
		"tenant_id":   tmpl.TenantID.String(),
		"property_id": tmpl.PropertyID.String(),
		"is_active":   tmpl.IsActive,
	}
	for key, value := range extra {
		metadata[key] = value
	}
	ownerID := tmpl.OwnerID
	targetID := tmpl.ID.String()
	if err := s.auditSvc.AuditLog(ctx, &ownerID, "", nil, action, "recurring_invoice", &targetID, metadata); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

func ownerIDFromContext(ctx context.Context) (snowflake.ID, error) {
	ownerID, ok := ownercontext.OwnerIDFromContext(ctx)
	if !ok {
		return 0, domain.ErrInvalidOwner
	}
	return ownerID, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func utcPtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	v := value.UTC()
	return &v
}
