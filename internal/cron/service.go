package cron

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/kioskpos/pos-backend/pkg/logger"
	"github.com/kioskpos/pos-backend/pkg/metrics"
)

const defaultInterval = time.Hour

// txRunner is satisfied by *db.Client.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
	// Concurrency bounds how many jobs of one cycle run at once; 0 means one.
	Concurrency int
}

// Service runs the registered maintenance jobs on a fixed cadence. Only the
// instance holding the lock runs a given cycle.
type Service struct {
	logg     *logger.Logger
	jobs     *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
	parallel int
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	}
	s := &Service{
		logg:     params.Logger,
		jobs:     params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
		parallel: max(params.Concurrency, 1),
		now:      time.Now,
	}
	if s.jobs == nil {
		s.jobs = &Registry{}
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	return s, nil
}

// Run executes a cycle immediately and then one interval after each cycle
// finishes, until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "maintenance scheduler stopped")
			return ctx.Err()
		case <-timer.C:
		}
		if _, err := s.RunCycle(ctx); err != nil && ctx.Err() == nil {
			s.logg.Error(ctx, "maintenance cycle failed", err)
		}
		timer.Reset(s.interval)
	}
}

// RunCycle runs every job once if the lock can be taken and reports whether
// the cycle ran. A failed job is logged and counted; the others still run.
func (s *Service) RunCycle(ctx context.Context) (bool, error) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "maintenance lock held elsewhere; skipping cycle")
		s.metrics.IncSkipped()
		return false, nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "failed to release maintenance lock", err)
		}
	}()

	cycleCtx := s.logg.WithField(ctx, "cycle_id", uuid.NewString())
	s.logg.Info(cycleCtx, "maintenance cycle starting")

	var failed atomic.Int32
	var g errgroup.Group
	g.SetLimit(s.parallel)
	for _, job := range s.jobs.Jobs() {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if !s.runJob(cycleCtx, job) {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return true, err
	}

	s.logg.Info(s.logg.WithField(cycleCtx, "jobs_failed", failed.Load()), "maintenance cycle complete")
	return true, nil
}

func (s *Service) runJob(ctx context.Context, job Job) bool {
	ctx = s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	start := s.now()
	err := job.Run(ctx)
	elapsed := s.now().Sub(start)
	s.metrics.ObserveRun(job.Name(), elapsed, err)

	ctx = s.logg.WithField(ctx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "job failed", err)
		return false
	}
	s.logg.Info(ctx, "job completed")
	return true
}
