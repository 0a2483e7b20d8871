package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	auditdomain "github.com/smallbiznis/leasebook/internal/audit/domain"
	"github.com/smallbiznis/leasebook/internal/auditcontext"
	"github.com/smallbiznis/leasebook/internal/clock"
	obsmetrics "github.com/smallbiznis/leasebook/internal/observability/metrics"
	"github.com/smallbiznis/leasebook/internal/ratelimit"
	recurringdomain "github.com/smallbiznis/leasebook/internal/recurringinvoice/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const lockKeyPrefix = "leasebook:scheduler:"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log          *zap.Logger
	Clock        clock.Clock
	RecurringSvc recurringdomain.Service
	Locker       *ratelimit.Locker `optional:"true"`
	Config       Config            `optional:"true"`
}

type Scheduler struct {
	log          *zap.Logger
	cfg          Config
	clock        clock.Clock
	recurringSvc recurringdomain.Service
	locker       *ratelimit.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.RecurringSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          p.Config.withDefaults(),
		clock:        p.Clock,
		recurringSvc: p.RecurringSvc,
		locker:       p.Locker,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeSystem), "scheduler")
	ctx, run, owner := s.ensureJobRun(ctx, name)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		// Soft timeout: whatever was not reached stays due for the next tick.
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every enabled job a single time.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobRecurringInvoices, func(ctx context.Context) error {
			return s.runJob(ctx, JobRecurringInvoices, s.cfg.JobTimeout, s.RecurringInvoicesJob)
		}},
	}

	for _, job := range jobs {
		if s.isJobEnabled(job.Name) {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// RecurringInvoicesJob sweeps due templates once. When a Redis locker is wired,
// a run that finds the lock held by another replica is deferred, not failed.
func (s *Scheduler) RecurringInvoicesJob(ctx context.Context) error {
	_, err := s.sweep(ctx)
	return err
}

// Sweep runs the recurring invoice job outside the ticker loop and returns its summary.
func (s *Scheduler) Sweep(ctx context.Context) (recurringdomain.BatchResult, error) {
	var result recurringdomain.BatchResult
	err := s.runJob(ctx, JobRecurringInvoices, s.cfg.JobTimeout, func(ctx context.Context) error {
		var err error
		result, err = s.sweep(ctx)
		return err
	})
	return result, err
}

func (s *Scheduler) sweep(ctx context.Context) (recurringdomain.BatchResult, error) {
	ctx, run, owner := s.ensureJobRun(ctx, JobRecurringInvoices)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	release, acquired, err := s.acquire(ctx, JobRecurringInvoices)
	if err != nil {
		return recurringdomain.BatchResult{}, err
	}
	if !acquired {
		return recurringdomain.BatchResult{}, nil
	}
	defer release()

	result, err := s.recurringSvc.ProcessDue(ctx)
	s.recordBatch(ctx, run, result)
	return result, err
}

func (s *Scheduler) acquire(ctx context.Context, job string) (func(), bool, error) {
	if s.locker == nil {
		return func() {}, true, nil
	}

	key := lockKeyPrefix + job
	token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		obsmetrics.Scheduler().IncBatchDeferred(job, obsmetrics.SchedulerBatchDeferredReasonLockError)
		return nil, false, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		obsmetrics.Scheduler().IncBatchDeferred(job, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
		s.logger(ctx).Info("scheduler.job.deferred",
			zap.String("job", job),
			zap.String("reason", obsmetrics.SchedulerBatchDeferredReasonLockHeld),
		)
		return nil, false, nil
	}

	return func() {
		// The job context may already be past its deadline.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx, key, token); err != nil {
			s.logger(ctx).Warn("failed to release scheduler lock", zap.String("key", key), zap.Error(err))
		}
	}, true, nil
}

func (s *Scheduler) recordBatch(ctx context.Context, run *jobRun, result recurringdomain.BatchResult) {
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.AddBatchProcessed(JobRecurringInvoices, obsmetrics.BatchResourceTemplates, result.Processed)
	schedMetrics.AddBatchProcessed(JobRecurringInvoices, obsmetrics.BatchResourceInvoices, result.Generated)
	schedMetrics.AddBatchProcessed(JobRecurringInvoices, obsmetrics.BatchResourceFailures, len(result.Errors))

	run.AddProcessed(result.Processed)
	run.AddGenerated(result.Generated)
	for _, item := range result.Errors {
		err := item.Err
		if err == nil {
			err = errors.New(item.Error)
		}
		schedMetrics.IncItemError(JobRecurringInvoices, err)
		s.logItemError(ctx, run, item.ID, err)
	}
}
