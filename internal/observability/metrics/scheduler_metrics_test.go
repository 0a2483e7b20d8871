package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/leasebook/internal/authorization"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: SchedulerJobReasonDeadlineExceeded},
		{name: "forbidden", err: fmt.Errorf("authorize: %w", authorization.ErrForbidden), want: SchedulerJobReasonForbidden},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: SchedulerJobReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: SchedulerJobReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: SchedulerJobReasonUniqueViolation},
		{name: "unknown", err: errors.New("boom"), want: SchedulerJobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySchedulerJobReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestClassifySchedulerErrorType(t *testing.T) {
	cases := []struct {
		err       error
		want      string
		retryable bool
	}{
		{err: context.Canceled, want: SchedulerErrorTypeDeadlineExceeded, retryable: true},
		{err: authorization.ErrInvalidOwner, want: SchedulerErrorTypeAuthorization, retryable: false},
		{err: &pgconn.PgError{Code: "08006"}, want: SchedulerErrorTypeDB, retryable: true},
		{err: errors.New("invalid_template_body"), want: SchedulerErrorTypeBusinessRule, retryable: false},
	}

	for _, tc := range cases {
		if got := ClassifySchedulerErrorType(tc.err); got != tc.want {
			t.Fatalf("%v: expected type %q, got %q", tc.err, tc.want, got)
		}
		if got := IsSchedulerErrorRetryable(tc.err); got != tc.retryable {
			t.Fatalf("%v: expected retryable %v, got %v", tc.err, tc.retryable, got)
		}
	}
}

func TestAddBatchProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{
		ServiceName: "leasebook",
		Environment: "test",
	})

	metrics.AddBatchProcessed("recurring_invoices", BatchResourceTemplates, 3)
	metrics.AddBatchProcessed("recurring_invoices", BatchResourceTemplates, 0)

	got := testutil.ToFloat64(metrics.batchProcessed.WithLabelValues("recurring_invoices", BatchResourceTemplates))
	if got != 3 {
		t.Fatalf("expected processed count 3, got %v", got)
	}
}

func TestIncItemErrorUsesErrorType(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{})

	metrics.IncItemError("recurring_invoices", &pgconn.PgError{Code: "40P01"})

	got := testutil.ToFloat64(metrics.itemErrors.WithLabelValues("recurring_invoices", SchedulerErrorTypeDB))
	if got != 1 {
		t.Fatalf("expected one db item error, got %v", got)
	}
}
