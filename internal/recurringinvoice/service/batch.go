package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/leasebook/internal/observability/logger"
	"github.com/smallbiznis/leasebook/internal/recurringinvoice/domain"
	"github.com/smallbiznis/leasebook/internal/schedule"
	"go.uber.org/zap"
)

// ProcessDue runs Generate over every due template in id order. Templates are
// handled one at a time and one failure never stops the rest.
func (s *Service) ProcessDue(ctx context.Context) (domain.BatchResult, error) {
	result := domain.BatchResult{Errors: []domain.ItemError{}}
	log := logger.WithContext(ctx, s.log)

	if err := s.backfillSchedules(ctx); err != nil {
		log.Warn("recurring schedule backfill failed", zap.Error(err))
	}

	batchSize := s.cfg.Get().BatchSize
	now := s.clock.Now().UTC()

	var afterID snowflake.ID
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		ids, err := s.repo.ListDueIDs(ctx, s.db, now, afterID, batchSize)
		if err != nil {
			return result, fmt.Errorf("list due templates: %w", err)
		}
		if len(ids) == 0 {
			break
		}

		for _, id := range ids {
			result.Processed++
			inv, created, err := s.generate(ctx, id)
			if err != nil {
				result.Errors = append(result.Errors, domain.ItemError{
					ID:    id.String(),
					Error: err.Error(),
					Err:   err,
				})
				continue
			}
			if inv == nil {
				continue
			}
			result.Generated++
			if !created {
				result.Deduplicated++
			}
		}

		afterID = ids[len(ids)-1]
		if len(ids) < batchSize {
			break
		}
	}

	return result, nil
}

// backfillSchedules sets next_generation_date from start_date on active
// templates that were never scheduled, so they join the due set.
func (s *Service) backfillSchedules(ctx context.Context) error {
	batchSize := s.cfg.Get().BatchSize
	log := logger.WithContext(ctx, s.log)

	var afterID snowflake.ID
	for {
		items, err := s.repo.ListUnscheduled(ctx, s.db, afterID, batchSize)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}

		now := s.clock.Now().UTC()
		for _, tmpl := range items {
			if err := s.scheduleFirstRun(ctx, tmpl, now); err != nil {
				log.Warn("cannot schedule recurring template",
					zap.String("recurring_template_id", tmpl.ID.String()),
					zap.Error(err),
				)
			}
		}

		afterID = items[len(items)-1].ID
		if len(items) < batchSize {
			return nil
		}
	}
}

func (s *Service) scheduleFirstRun(ctx context.Context, tmpl *domain.Template, now time.Time) error {
	frequency, err := schedule.ParseFrequency(tmpl.Frequency)
	if err != nil {
		return err
	}
	next, err := schedule.NextFromStart(tmpl.StartDate, frequency, tmpl.DayOfMonth)
	if err != nil {
		return err
	}
	return s.repo.UpdateSchedule(ctx, s.db, tmpl.ID, nil, next, now)
}
