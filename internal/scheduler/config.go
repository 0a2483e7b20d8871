package scheduler

import (
	"time"

	"github.com/smallbiznis/leasebook/internal/config"
)

const JobRecurringInvoices = "recurring_invoices"

// Config controls the sweep interval, job deadline and lock lease.
type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
	LockTTL     time.Duration
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Hour,
		JobTimeout:  5 * time.Minute,
		LockTTL:     10 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval: cfg.SchedulerInterval,
		JobTimeout:  cfg.SchedulerJobTimeout,
		LockTTL:     cfg.Redis.LockTTL,
		EnabledJobs: cfg.SchedulerEnabledJobs,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	// The lease always outlives the job deadline.
	if c.LockTTL < c.JobTimeout {
		c.LockTTL = c.JobTimeout + time.Minute
	}
	return c
}
