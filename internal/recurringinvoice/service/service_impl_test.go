package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/leasebook/internal/clock"
	"github.com/smallbiznis/leasebook/internal/config"
	invoicedomain "github.com/smallbiznis/leasebook/internal/invoice/domain"
	"github.com/smallbiznis/leasebook/internal/invoice/render"
	invoicerepository "github.com/smallbiznis/leasebook/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/leasebook/internal/invoice/service"
	"github.com/smallbiznis/leasebook/internal/ownercontext"
	propertydomain "github.com/smallbiznis/leasebook/internal/property/domain"
	propertyrepository "github.com/smallbiznis/leasebook/internal/property/repository"
	"github.com/smallbiznis/leasebook/internal/providers/email"
	"github.com/smallbiznis/leasebook/internal/providers/pdf"
	"github.com/smallbiznis/leasebook/internal/recurringinvoice/domain"
	"github.com/smallbiznis/leasebook/internal/recurringinvoice/repository"
	tenantdomain "github.com/smallbiznis/leasebook/internal/tenant/domain"
	tenantrepository "github.com/smallbiznis/leasebook/internal/tenant/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const testOwnerID = snowflake.ID(1000)

type mockAuthz struct {
	mock.Mock
}

func (m *mockAuthz) Authorize(ctx context.Context, actor string, ownerID string, object string, action string) error {
	args := m.Called(actor, ownerID, object, action)
	return args.Error(0)
}

type fakeEmail struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (f *fakeEmail) Send(ctx context.Context, msg email.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeEmail) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakePDF struct{}

func (fakePDF) GenerateInvoice(ctx context.Context, data pdf.InvoiceData) ([]byte, error) {
	return []byte("%PDF-" + data.InvoiceNumber), nil
}

type recordingAudit struct {
	mu      sync.Mutex
	actions []string
}

func (r *recordingAudit) AuditLog(ctx context.Context, ownerID *snowflake.ID, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action)
	return nil
}

type fixture struct {
	db    *gorm.DB
	svc   *Service
	clock *clock.FakeClock
	email *fakeEmail
	authz *mockAuthz
	audit *recordingAudit
	node  *snowflake.Node

	tenant   *tenantdomain.Tenant
	property *propertydomain.Property
}

func newFixture(t *testing.T, now time.Time, cfg config.RecurringConfig) *fixture {
	t.Helper()

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Template{},
		&invoicedomain.Invoice{},
		&tenantdomain.Tenant{},
		&propertydomain.Property{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fc := clock.NewFakeClock(now)
	mailer := &fakeEmail{}
	authz := &mockAuthz{}
	authz.On("Authorize", "system", mock.Anything, "recurring_invoice", "recurring_invoice.generate").Return(nil)
	audit := &recordingAudit{}
	renderer := render.NewRenderer()

	invoiceSvc := invoiceservice.NewService(invoiceservice.ServiceParam{
		DB:       db,
		Log:      zap.NewNop(),
		PDF:      fakePDF{},
		Renderer: renderer,
	})

	tenants := tenantrepository.Provide()
	properties := propertyrepository.Provide()

	svc := NewService(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fc,
		Config:     config.NewStaticRecurringConfigHolder(cfg),
		Repo:       repository.Provide(),
		Invoices:   invoicerepository.Provide(),
		InvoiceSvc: invoiceSvc,
		Tenants:    tenants,
		Properties: properties,
		Authz:      authz,
		Email:      mailer,
		Renderer:   renderer,
		AuditSvc:   audit,
	}).(*Service)

	created := now.Add(-90 * 24 * time.Hour)
	tenant := &tenantdomain.Tenant{
		ID:        node.Generate(),
		OwnerID:   testOwnerID,
		Name:      "Jane Renter",
		Email:     "jane@example.test",
		Phone:     "555-0100",
		CreatedAt: created,
		UpdatedAt: created,
	}
	require.NoError(t, tenants.Insert(context.Background(), db, tenant))
	property := &propertydomain.Property{
		ID:           node.Generate(),
		OwnerID:      testOwnerID,
		Name:         "Unit 4B",
		AddressLine1: "12 Harbour St",
		City:         "Springfield",
		PostalCode:   "12345",
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	require.NoError(t, properties.Insert(context.Background(), db, property))

	return &fixture{
		db:       db,
		svc:      svc,
		clock:    fc,
		email:    mailer,
		authz:    authz,
		audit:    audit,
		node:     node,
		tenant:   tenant,
		property: property,
	}
}

func rentBody() domain.Body {
	return domain.Body{
		LineItems: []domain.LineItem{
			{Description: "Rent", Amount: decimal.NewFromInt(1000)},
			{Description: "Parking", Amount: decimal.NewFromInt(200)},
		},
		TaxRate:      decimal.NewFromInt(10),
		Notes:        "Thank you",
		PaymentTerms: "Net 30",
	}
}

type templateOption func(*domain.Template)

func (f *fixture) seedTemplate(t *testing.T, opts ...templateOption) *domain.Template {
	t.Helper()
	now := f.clock.Now()
	due := now.Add(-time.Hour)
	tmpl := &domain.Template{
		ID:                 f.node.Generate(),
		OwnerID:            testOwnerID,
		TenantID:           f.tenant.ID,
		PropertyID:         f.property.ID,
		Body:               datatypes.NewJSONType(rentBody()),
		Frequency:          "monthly",
		DayOfMonth:         1,
		StartDate:          now.AddDate(0, -6, 0),
		IsActive:           true,
		NextGenerationDate: &due,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	for _, opt := range opts {
		opt(tmpl)
	}
	require.NoError(t, repository.Provide().Insert(context.Background(), f.db, tmpl))
	return tmpl
}

func (f *fixture) reload(t *testing.T, id snowflake.ID) *domain.Template {
	t.Helper()
	tmpl, err := repository.Provide().FindByID(context.Background(), f.db, id)
	require.NoError(t, err)
	require.NotNil(t, tmpl)
	return tmpl
}

func (f *fixture) invoiceCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&invoicedomain.Invoice{}).Count(&count).Error)
	return count
}

func ownerCtx() context.Context {
	return ownercontext.WithOwnerID(context.Background(), testOwnerID)
}

func TestCreateSchedulesFromStartDate(t *testing.T) {
	f := newFixture(t, time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC), config.DefaultRecurringConfig())

	tmpl, err := f.svc.Create(ownerCtx(), domain.CreateRequest{
		TenantID:        f.tenant.ID.String(),
		PropertyID:      f.property.ID.String(),
		Frequency:       "monthly",
		DayOfMonth:      20,
		StartDate:       time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC),
		InvoiceTemplate: rentBody(),
	})
	require.NoError(t, err)
	require.NotNil(t, tmpl.NextGenerationDate)
	assert.Equal(t, time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC), *tmpl.NextGenerationDate)
	assert.True(t, tmpl.IsActive)

	stored := f.reload(t, tmpl.ID)
	assert.Equal(t, "Rent", stored.Body.Data().LineItems[0].Description)
	assert.Equal(t, []string{"recurring_invoice.created"}, f.audit.actions)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	f := newFixture(t, time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC), config.DefaultRecurringConfig())

	base := domain.CreateRequest{
		TenantID:        f.tenant.ID.String(),
		PropertyID:      f.property.ID.String(),
		Frequency:       "monthly",
		DayOfMonth:      1,
		StartDate:       time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		InvoiceTemplate: rentBody(),
	}

	req := base
	req.Frequency = "weekly"
	_, err := f.svc.Create(ownerCtx(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	req = base
	req.DayOfMonth = 32
	_, err = f.svc.Create(ownerCtx(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	req = base
	req.InvoiceTemplate = domain.Body{TaxRate: decimal.NewFromInt(5)}
	_, err = f.svc.Create(ownerCtx(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidTemplateBody)

	req = base
	req.InvoiceTemplate = rentBody()
	req.InvoiceTemplate.TaxRate = decimal.NewFromInt(150)
	_, err = f.svc.Create(ownerCtx(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidTemplateBody)

	req = base
	req.TenantID = f.node.Generate().String()
	_, err = f.svc.Create(ownerCtx(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidTenant)

	req = base
	end := base.StartDate.AddDate(0, 0, -1)
	req.EndDate = &end
	_, err = f.svc.Create(ownerCtx(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidSchedule)

	_, err = f.svc.Create(context.Background(), base)
	assert.ErrorIs(t, err, domain.ErrInvalidOwner)
}

func TestGetIsOwnerScoped(t *testing.T) {
	f := newFixture(t, time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC), config.DefaultRecurringConfig())
	tmpl := f.seedTemplate(t)

	got, err := f.svc.Get(ownerCtx(), tmpl.ID.String())
	require.NoError(t, err)
	assert.Equal(t, tmpl.ID, got.ID)

	_, err = f.svc.Get(ownercontext.WithOwnerID(context.Background(), 2000), tmpl.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Get(ownerCtx(), "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestListFiltersAndPaginates(t *testing.T) {
	f := newFixture(t, time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC), config.DefaultRecurringConfig())
	first := f.seedTemplate(t)
	second := f.seedTemplate(t)
	f.seedTemplate(t, func(tmpl *domain.Template) { tmpl.IsActive = false })

	active := true
	req := domain.ListRequest{IsActive: &active}
	req.PageSize = 1

	page, err := f.svc.List(ownerCtx(), req)
	require.NoError(t, err)
	require.Len(t, page.Templates, 1)
	assert.Equal(t, first.ID, page.Templates[0].ID)
	assert.True(t, page.HasMore)

	req.PageToken = page.NextPageToken
	page, err = f.svc.List(ownerCtx(), req)
	require.NoError(t, err)
	require.Len(t, page.Templates, 1)
	assert.Equal(t, second.ID, page.Templates[0].ID)
	assert.False(t, page.HasMore)
}

func TestUpdateReschedulesOnFrequencyChange(t *testing.T) {
	f := newFixture(t, time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC), config.DefaultRecurringConfig())
	tmpl := f.seedTemplate(t, func(tmpl *domain.Template) {
		tmpl.StartDate = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	})

	quarterly := "quarterly"
	day := 15
	updated, err := f.svc.Update(ownerCtx(), tmpl.ID.String(), domain.UpdateRequest{
		Frequency:  &quarterly,
		DayOfMonth: &day,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.NextGenerationDate)
	assert.Equal(t, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), *updated.NextGenerationDate)

	stored := f.reload(t, tmpl.ID)
	assert.Equal(t, "quarterly", stored.Frequency)
	assert.Equal(t, 15, stored.DayOfMonth)
	assert.Contains(t, f.audit.actions, "recurring_invoice.updated")
}

func TestPauseAndResume(t *testing.T) {
	now := time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, now, config.DefaultRecurringConfig())
	tmpl := f.seedTemplate(t, func(tmpl *domain.Template) { tmpl.NextGenerationDate = nil })

	paused, err := f.svc.Pause(ownerCtx(), tmpl.ID.String())
	require.NoError(t, err)
	assert.False(t, paused.IsActive)
	assert.False(t, f.reload(t, tmpl.ID).IsActive)

	resumed, err := f.svc.Resume(ownerCtx(), tmpl.ID.String())
	require.NoError(t, err)
	assert.True(t, resumed.IsActive)

	stored := f.reload(t, tmpl.ID)
	assert.True(t, stored.IsActive)
	require.NotNil(t, stored.NextGenerationDate)
	assert.Equal(t, time.Date(2024, time.April, 1, 9, 0, 0, 0, time.UTC), stored.NextGenerationDate.UTC())

	assert.Equal(t, []string{"recurring_invoice.paused", "recurring_invoice.resumed"}, f.audit.actions)
}

func TestPauseIsIdempotent(t *testing.T) {
	f := newFixture(t, time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC), config.DefaultRecurringConfig())
	tmpl := f.seedTemplate(t, func(tmpl *domain.Template) { tmpl.IsActive = false })

	_, err := f.svc.Pause(ownerCtx(), tmpl.ID.String())
	require.NoError(t, err)
	assert.Empty(t, f.audit.actions)
}

var errBoom = errors.New("boom")
