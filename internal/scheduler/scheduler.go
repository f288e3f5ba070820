// Package scheduler runs the sync jobs on cron schedules inside the server
// process.
package scheduler

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"

	"github.com/investoscope/investoscope-backend/internal/apperrors"
	"github.com/investoscope/investoscope-backend/internal/logging"
	"github.com/investoscope/investoscope-backend/internal/service"
)

// Schedules are server-local time. Catalogue early morning, prices after
// market close on trading days, NAV after the AMFI evening publication,
// staleness fallback every six hours.
const (
	catalogueSchedule = "0 2 * * *"
	priceSchedule     = "30 2 * * 1-5"
	navSchedule       = "0 13 * * 1-5"
	autoSyncSchedule  = "0 */6 * * *"
)

// Scheduler owns the cron runner and the job wiring.
type Scheduler struct {
	cron        *cron.Cron
	catalogue   *service.CatalogueService
	prices      *service.PriceService
	nav         *service.NavService
	maintenance *service.MaintenanceService
}

// New creates a Scheduler with all four jobs registered.
func New(
	catalogue *service.CatalogueService,
	prices *service.PriceService,
	nav *service.NavService,
	maintenance *service.MaintenanceService,
) (*Scheduler, error) {
	s := &Scheduler{
		cron:        cron.New(),
		catalogue:   catalogue,
		prices:      prices,
		nav:         nav,
		maintenance: maintenance,
	}

	jobs := []struct {
		name     string
		schedule string
		run      func(ctx context.Context) error
	}{
		{service.JobSyncCatalogue, catalogueSchedule, func(ctx context.Context) error {
			_, err := s.catalogue.Run(ctx)
			return err
		}},
		{service.JobSyncPrices, priceSchedule, func(ctx context.Context) error {
			_, err := s.prices.Run(ctx)
			return err
		}},
		{service.JobSyncMFNav, navSchedule, func(ctx context.Context) error {
			_, err := s.nav.Run(ctx)
			return err
		}},
		{service.JobAutoSync, autoSyncSchedule, func(ctx context.Context) error {
			_, err := s.maintenance.AutoSyncIfStale(ctx)
			return err
		}},
	}

	for _, job := range jobs {
		if err := s.addScheduledJob(job.name, job.schedule, job.run); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Scheduler) addScheduledJob(name, schedule string, run func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(schedule, func() {
		logging.Info("scheduled job starting", logging.Fields{"job": name})

		if err := run(context.Background()); err != nil {
			if errors.Is(err, apperrors.ErrJobAlreadyRunning) {
				logging.Warn("scheduled job skipped, already running", logging.Fields{"job": name})
				return
			}
			logging.Error("scheduled job failed", logging.Fields{"job": name, "error": err.Error()})
			return
		}

		logging.Info("scheduled job finished", logging.Fields{"job": name})
	})
	return err
}

// Start launches the cron runner in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	logging.Info("scheduler started", logging.Fields{"jobs": 4})
}

// Stop halts the cron runner and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
