package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"text/template"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	// AnchorBillingDate advances the schedule from the invoice date that was just billed.
	AnchorBillingDate = "billing_date"
	// AnchorGenerationTime advances the schedule from the moment generation ran.
	AnchorGenerationTime = "generation_time"
)

var (
	ErrInvalidRecurringConfig = errors.New("invalid_recurring_config")

	defaultRecurringPaths = []string{"/etc/leasebook", "/var/lib/leasebook/config", "."}
)

type RecurringConfig struct {
	DefaultDueDays int          `mapstructure:"defaultDueDays"`
	ScheduleAnchor string       `mapstructure:"scheduleAnchor"`
	BatchSize      int          `mapstructure:"batchSize"`
	Notify         NotifyConfig `mapstructure:"notify"`
}

type NotifyConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Subject string        `mapstructure:"subject"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func DefaultRecurringConfig() RecurringConfig {
	return RecurringConfig{
		DefaultDueDays: 30,
		ScheduleAnchor: AnchorBillingDate,
		BatchSize:      100,
		Notify: NotifyConfig{
			Enabled: true,
			Subject: "Invoice {{.InvoiceNumber}}",
			Timeout: 15 * time.Second,
		},
	}
}

func (c RecurringConfig) Validate() error {
	if c.DefaultDueDays < 0 || c.DefaultDueDays > 365 {
		return fmt.Errorf("%w: defaultDueDays must be within 0..365", ErrInvalidRecurringConfig)
	}
	switch c.ScheduleAnchor {
	case AnchorBillingDate, AnchorGenerationTime:
	default:
		return fmt.Errorf("%w: unknown scheduleAnchor %q", ErrInvalidRecurringConfig, c.ScheduleAnchor)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batchSize must be positive", ErrInvalidRecurringConfig)
	}
	if c.Notify.Timeout <= 0 {
		return fmt.Errorf("%w: notify.timeout must be positive", ErrInvalidRecurringConfig)
	}
	if strings.TrimSpace(c.Notify.Subject) == "" {
		return fmt.Errorf("%w: notify.subject is required", ErrInvalidRecurringConfig)
	}
	if _, err := template.New("subject").Parse(c.Notify.Subject); err != nil {
		return fmt.Errorf("%w: notify.subject: %v", ErrInvalidRecurringConfig, err)
	}
	return nil
}

// RecurringConfigHolder keeps the latest valid recurring.yml in memory.
type RecurringConfigHolder struct {
	value atomic.Value
	log   *zap.Logger
}

func NewRecurringConfigHolder(log *zap.Logger) (*RecurringConfigHolder, error) {
	return NewRecurringConfigHolderWithPaths(log, defaultRecurringPaths...)
}

func NewRecurringConfigHolderWithPaths(log *zap.Logger, paths ...string) (*RecurringConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	holder := &RecurringConfigHolder{log: log.Named("config.recurring")}

	v := viper.New()
	v.SetConfigName("recurring")
	v.SetConfigType("yaml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}
	v.SetEnvPrefix("LEASEBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setRecurringDefaults(v)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read recurring config: %w", err)
		}
		fileFound = false
		holder.log.Info("recurring.yml not found, using defaults")
	}

	cfg, err := decodeRecurring(v)
	if err != nil {
		return nil, err
	}
	holder.value.Store(cfg)

	if fileFound {
		v.OnConfigChange(func(e fsnotify.Event) {
			next, err := decodeRecurring(v)
			if err != nil {
				holder.log.Warn("rejected recurring config reload", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.value.Store(next)
			holder.log.Info("recurring config reloaded", zap.String("file", e.Name))
		})
		v.WatchConfig()
	}

	return holder, nil
}

// NewStaticRecurringConfigHolder returns a holder that never reloads.
func NewStaticRecurringConfigHolder(cfg RecurringConfig) *RecurringConfigHolder {
	holder := &RecurringConfigHolder{log: zap.NewNop()}
	holder.value.Store(cfg)
	return holder
}

func (h *RecurringConfigHolder) Get() RecurringConfig {
	if h == nil {
		return DefaultRecurringConfig()
	}
	cfg, ok := h.value.Load().(RecurringConfig)
	if !ok {
		return DefaultRecurringConfig()
	}
	return cfg
}

func setRecurringDefaults(v *viper.Viper) {
	def := DefaultRecurringConfig()
	v.SetDefault("recurring.defaultDueDays", def.DefaultDueDays)
	v.SetDefault("recurring.scheduleAnchor", def.ScheduleAnchor)
	v.SetDefault("recurring.batchSize", def.BatchSize)
	v.SetDefault("recurring.notify.enabled", def.Notify.Enabled)
	v.SetDefault("recurring.notify.subject", def.Notify.Subject)
	v.SetDefault("recurring.notify.timeout", def.Notify.Timeout)
}

func decodeRecurring(v *viper.Viper) (RecurringConfig, error) {
	// Unmarshal walks AllSettings, so keys missing from the file keep their defaults.
	var wrapper struct {
		Recurring RecurringConfig `mapstructure:"recurring"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return RecurringConfig{}, fmt.Errorf("decode recurring config: %w", err)
	}
	cfg := wrapper.Recurring
	cfg.ScheduleAnchor = strings.ToLower(strings.TrimSpace(cfg.ScheduleAnchor))
	if err := cfg.Validate(); err != nil {
		return RecurringConfig{}, err
	}
	return cfg, nil
}
