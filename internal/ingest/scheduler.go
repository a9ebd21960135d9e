package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/ygo-judge/pkg/icron"
	"github.com/MimeLyc/ygo-judge/pkg/log"
)

// RefreshFunc is one refresh of the reference data.
type RefreshFunc func(ctx context.Context) error

// Scheduler runs a refresh on a cron expression. Overlapping triggers and
// manual runs collapse into a single refresh.
type Scheduler struct {
	cron     *cron.Cron
	cronExpr string
	refresh  RefreshFunc
	after    []func(ctx context.Context) error
	group    singleflight.Group
}

type SchedulerOption func(*Scheduler)

// WithAfterRefresh registers a hook run after each successful refresh, such
// as rebuilding a search index over the new data.
func WithAfterRefresh(fn func(ctx context.Context) error) SchedulerOption {
	return func(s *Scheduler) { s.after = append(s.after, fn) }
}

func NewScheduler(c *cron.Cron, cronExpr string, refresh RefreshFunc, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		cron:     c,
		cronExpr: cronExpr,
		refresh:  refresh,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule registers the refresh with the cron; the caller starts and stops it.
func (s *Scheduler) Schedule(ctx context.Context) error {
	if _, err := icron.Parse(s.cronExpr); err != nil {
		return err
	}
	if info, err := icron.GetTriggerInfo(s.cronExpr, time.Now()); err == nil {
		log.Info("Catalog refresh scheduled (%s), next run at %s", s.cronExpr, info.Next.Format(time.DateTime))
	}

	_, err := s.cron.AddJob(s.cronExpr, cron.FuncJob(func() {
		if err := s.Run(ctx); err != nil {
			log.Error("Scheduled refresh failed: %v", err)
		}
	}))
	if err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}
	return nil
}

// Run refreshes now, or waits for the refresh already in flight.
func (s *Scheduler) Run(ctx context.Context) error {
	_, err, shared := s.group.Do("refresh", func() (any, error) {
		start := time.Now()
		log.Info("Refreshing reference data")
		if err := s.refresh(ctx); err != nil {
			return nil, err
		}
		for _, fn := range s.after {
			if err := fn(ctx); err != nil {
				return nil, err
			}
		}
		log.Info("Reference data refreshed in %s", time.Since(start).Round(time.Millisecond))
		return nil, nil
	})
	if shared {
		log.Debug("Joined refresh already in progress")
	}
	return err
}
