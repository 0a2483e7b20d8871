package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/leasebook/internal/authorization"
	"github.com/smallbiznis/leasebook/internal/config"
	invoicedomain "github.com/smallbiznis/leasebook/internal/invoice/domain"
	"github.com/smallbiznis/leasebook/internal/ownercontext"
	"github.com/smallbiznis/leasebook/internal/ratelimit"
	recurringdomain "github.com/smallbiznis/leasebook/internal/recurringinvoice/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testOwnerID = snowflake.ID(1001)
	testToken   = "s3cret"
)

type mockAuthz struct {
	mock.Mock
}

func (m *mockAuthz) Authorize(ctx context.Context, actor, ownerID, object, action string) error {
	args := m.Called(ctx, actor, ownerID, object, action)
	return args.Error(0)
}

type fakeRecurringSvc struct {
	recurringdomain.Service

	created    recurringdomain.CreateRequest
	createErr  error
	templates  map[snowflake.ID]*recurringdomain.Template
	generated  *invoicedomain.Invoice
	batch      recurringdomain.BatchResult
	lastOwner  snowflake.ID
	generateID snowflake.ID
}

func (f *fakeRecurringSvc) Create(ctx context.Context, req recurringdomain.CreateRequest) (*recurringdomain.Template, error) {
	f.created = req
	f.lastOwner, _ = ownercontext.OwnerIDFromContext(ctx)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &recurringdomain.Template{ID: 77, OwnerID: f.lastOwner, Frequency: req.Frequency, DayOfMonth: req.DayOfMonth}, nil
}

func (f *fakeRecurringSvc) Get(ctx context.Context, id string) (*recurringdomain.Template, error) {
	parsed, err := snowflake.ParseString(id)
	if err != nil {
		return nil, recurringdomain.ErrInvalidID
	}
	owner, _ := ownercontext.OwnerIDFromContext(ctx)
	tmpl, ok := f.templates[parsed]
	if !ok || tmpl.OwnerID != owner {
		return nil, recurringdomain.ErrNotFound
	}
	return tmpl, nil
}

func (f *fakeRecurringSvc) Generate(_ context.Context, templateID snowflake.ID) (*invoicedomain.Invoice, error) {
	f.generateID = templateID
	return f.generated, nil
}

func (f *fakeRecurringSvc) ProcessDue(context.Context) (recurringdomain.BatchResult, error) {
	return f.batch, nil
}

type fakeInvoiceSvc struct {
	invoicedomain.Service
}

func (fakeInvoiceSvc) RenderPDFByID(_ context.Context, id string) (invoicedomain.Document, error) {
	if id != "500" {
		return invoicedomain.Document{}, invoicedomain.ErrInvoiceNotFound
	}
	return invoicedomain.Document{FileName: "rec-500-2024-03.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.4")}, nil
}

func newTestServer(t *testing.T, recurring *fakeRecurringSvc, authz *mockAuthz, cfg config.Config) *gin.Engine {
	t.Helper()
	return newTestServerWithLimiter(t, recurring, authz, cfg, nil)
}

func newTestServerWithLimiter(t *testing.T, recurring *fakeRecurringSvc, authz *mockAuthz, cfg config.Config, limiter *ratelimit.ManualTriggerLimiter) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())
	srv := NewServer(ServerParams{
		Gin:           engine,
		Cfg:           cfg,
		AuthzSvc:      authz,
		InvoiceSvc:    fakeInvoiceSvc{},
		RecurringSvc:  recurring,
		ManualLimiter: limiter,
	})
	return srv.Engine()
}

func doRequest(engine *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func ownerHeaders() map[string]string {
	return map[string]string{HeaderUserID: testOwnerID.String()}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestMissingUserHeaderIsUnauthorized(t *testing.T) {
	engine := newTestServer(t, &fakeRecurringSvc{}, &mockAuthz{}, config.Config{})

	rec := doRequest(engine, http.MethodGet, "/v1/recurring-invoices/1", nil, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Type)
}

func TestCreateRecurringInvoice(t *testing.T) {
	authz := &mockAuthz{}
	authz.On("Authorize", mock.Anything, "user:1001", "1001", authorization.ObjectRecurringInvoice, authorization.ActionRecurringInvoiceCreate).Return(nil)
	recurring := &fakeRecurringSvc{}
	engine := newTestServer(t, recurring, authz, config.Config{})

	rec := doRequest(engine, http.MethodPost, "/v1/recurring-invoices", map[string]any{
		"tenant_id":    "11",
		"property_id":  "12",
		"frequency":    "monthly",
		"day_of_month": 1,
		"start_date":   "2024-01-01T00:00:00Z",
		"invoice_template": map[string]any{
			"line_items": []map[string]any{{"description": "Rent", "amount": "1000.00"}},
			"tax_rate":   "10",
		},
	}, ownerHeaders())

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, testOwnerID, recurring.lastOwner)
	assert.Equal(t, "monthly", recurring.created.Frequency)
	require.Len(t, recurring.created.InvoiceTemplate.LineItems, 1)
	assert.Equal(t, "1000", recurring.created.InvoiceTemplate.LineItems[0].Amount.String())
	authz.AssertExpectations(t)
}

func TestCreateRecurringInvoiceValidationEnvelope(t *testing.T) {
	authz := &mockAuthz{}
	authz.On("Authorize", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	verr := validator.New().Struct(struct {
		LineItems []string `validate:"required,min=1"`
	}{})
	recurring := &fakeRecurringSvc{createErr: fmt.Errorf("%w: %w", recurringdomain.ErrInvalidTemplateBody, verr)}
	engine := newTestServer(t, recurring, authz, config.Config{})

	rec := doRequest(engine, http.MethodPost, "/v1/recurring-invoices", map[string]any{"frequency": "monthly"}, ownerHeaders())

	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "validation_error", payload.Type)
	require.NotEmpty(t, payload.Errors)
	assert.Equal(t, "required", payload.Errors[0].Code)
}

func TestForbiddenByPolicy(t *testing.T) {
	authz := &mockAuthz{}
	authz.On("Authorize", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(authorization.ErrForbidden)
	engine := newTestServer(t, &fakeRecurringSvc{}, authz, config.Config{})

	rec := doRequest(engine, http.MethodGet, "/v1/recurring-invoices", nil, ownerHeaders())

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGenerateScopesToOwner(t *testing.T) {
	authz := &mockAuthz{}
	authz.On("Authorize", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	recurring := &fakeRecurringSvc{
		templates: map[snowflake.ID]*recurringdomain.Template{
			77: {ID: 77, OwnerID: testOwnerID},
			88: {ID: 88, OwnerID: 2002},
		},
		generated: &invoicedomain.Invoice{ID: 500, InvoiceNumber: "REC-77-2024-03"},
	}
	engine := newTestServer(t, recurring, authz, config.Config{})

	rec := doRequest(engine, http.MethodPost, "/v1/recurring-invoices/88/generate", nil, ownerHeaders())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, recurring.generateID)

	rec = doRequest(engine, http.MethodPost, "/v1/recurring-invoices/77/generate", nil, ownerHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, snowflake.ID(77), recurring.generateID)

	var body struct {
		Data    invoicedomain.Invoice `json:"data"`
		Skipped bool                  `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "REC-77-2024-03", body.Data.InvoiceNumber)
	assert.False(t, body.Skipped)
}

func TestGenerateRateLimitedWhenBucketEmpty(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.Config{Redis: config.RedisConfig{ManualTriggerRate: 0.01, ManualTriggerBurst: 1}}
	limiter := ratelimit.NewManualTriggerLimiter(cfg, ratelimit.NewTokenBucket(client))
	require.NotNil(t, limiter)

	authz := &mockAuthz{}
	authz.On("Authorize", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	recurring := &fakeRecurringSvc{
		templates: map[snowflake.ID]*recurringdomain.Template{77: {ID: 77, OwnerID: testOwnerID}},
		generated: &invoicedomain.Invoice{ID: 500, InvoiceNumber: "REC-77-2024-03"},
	}
	engine := newTestServerWithLimiter(t, recurring, authz, cfg, limiter)

	rec := doRequest(engine, http.MethodPost, "/v1/recurring-invoices/77/generate", nil, ownerHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	recurring.generateID = 0
	rec = doRequest(engine, http.MethodPost, "/v1/recurring-invoices/77/generate", nil, ownerHeaders())
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decodeError(t, rec).Type)
	assert.Zero(t, recurring.generateID)

	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retryAfter, 1)

	// Buckets are per landlord.
	other := snowflake.ID(2002)
	recurring.templates[88] = &recurringdomain.Template{ID: 88, OwnerID: other}
	rec = doRequest(engine, http.MethodPost, "/v1/recurring-invoices/88/generate", nil, map[string]string{HeaderUserID: other.String()})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInvalidPathID(t *testing.T) {
	authz := &mockAuthz{}
	authz.On("Authorize", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	engine := newTestServer(t, &fakeRecurringSvc{}, authz, config.Config{})

	rec := doRequest(engine, http.MethodGet, "/v1/recurring-invoices/abc", nil, ownerHeaders())

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_id", decodeError(t, rec).Errors[0].Code)
}

func TestDownloadInvoicePDF(t *testing.T) {
	authz := &mockAuthz{}
	authz.On("Authorize", mock.Anything, mock.Anything, mock.Anything, authorization.ObjectInvoice, authorization.ActionInvoiceView).Return(nil)
	engine := newTestServer(t, &fakeRecurringSvc{}, authz, config.Config{})

	rec := doRequest(engine, http.MethodGet, "/v1/invoices/500/pdf", nil, ownerHeaders())

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "rec-500-2024-03.pdf")
	assert.Equal(t, "%PDF-1.4", rec.Body.String())

	rec = doRequest(engine, http.MethodGet, "/v1/invoices/501/pdf", nil, ownerHeaders())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRunRequiresToken(t *testing.T) {
	recurring := &fakeRecurringSvc{batch: recurringdomain.BatchResult{Processed: 2, Generated: 1, Errors: []recurringdomain.ItemError{{ID: "9", Error: "boom"}}}}

	disabled := newTestServer(t, recurring, &mockAuthz{}, config.Config{})
	rec := doRequest(disabled, http.MethodPost, "/admin/recurring-invoices/run", nil, map[string]string{HeaderAdminToken: testToken})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	engine := newTestServer(t, recurring, &mockAuthz{}, config.Config{AdminToken: testToken})
	rec = doRequest(engine, http.MethodPost, "/admin/recurring-invoices/run", nil, map[string]string{HeaderAdminToken: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(engine, http.MethodPost, "/admin/recurring-invoices/run", nil, map[string]string{HeaderAdminToken: testToken})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data recurringdomain.BatchResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Data.Processed)
	assert.Equal(t, 1, body.Data.Generated)
	require.Len(t, body.Data.Errors, 1)
	assert.Equal(t, "9", body.Data.Errors[0].ID)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	engine := newTestServer(t, &fakeRecurringSvc{}, &mockAuthz{}, config.Config{})

	rec := doRequest(engine, http.MethodGet, "/nope", nil, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Type)
}
