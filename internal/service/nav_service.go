package service

import (
	"context"
	"time"

	"github.com/investoscope/investoscope-backend/internal/alerting"
	"github.com/investoscope/investoscope-backend/internal/amfi"
	"github.com/investoscope/investoscope-backend/internal/logging"
	"github.com/investoscope/investoscope-backend/internal/model"
	"github.com/investoscope/investoscope-backend/internal/progress"
	"github.com/investoscope/investoscope-backend/internal/repository"
)

// NavService is the quick mutual fund NAV refresh: one AMFI feed download,
// one upserted price row per active fund. Unlike the full price sync it
// bypasses hash-based change detection; the feed is a single request, so
// there is no per-symbol fetch cost to save.
type NavService struct {
	options  *repository.OptionRepository
	prices   *repository.PriceRepository
	syncLogs *repository.SyncLogRepository
	amfi     amfi.Client
	progress progress.Store
	guard    *progress.RunGuard
	notifier *alerting.Notifier
}

// NewNavService creates a NavService.
func NewNavService(
	options *repository.OptionRepository,
	prices *repository.PriceRepository,
	syncLogs *repository.SyncLogRepository,
	amfiClient amfi.Client,
	store progress.Store,
	guard *progress.RunGuard,
	notifier *alerting.Notifier,
) *NavService {
	return &NavService{
		options:  options,
		prices:   prices,
		syncLogs: syncLogs,
		amfi:     amfiClient,
		progress: store,
		guard:    guard,
		notifier: notifier,
	}
}

// Run refreshes the latest NAV for every active mutual fund and returns the
// number of price rows written.
func (s *NavService) Run(ctx context.Context) (int, error) {
	release, err := s.guard.Acquire(JobSyncMFNav)
	if err != nil {
		return 0, err
	}
	defer release()

	_ = s.progress.Clear(ctx, JobSyncMFNav)
	_ = s.progress.Set(ctx, JobSyncMFNav, progress.Update{
		Status:  progress.String(progress.StatusRunning),
		Current: progress.String("Fetching AMFI NAV feed"),
	})

	logID, err := s.syncLogs.Create(ctx, JobSyncMFNav)
	if err != nil {
		return 0, err
	}

	writes, processed, failed, err := s.run(ctx)
	if err != nil {
		s.finishError(ctx, logID, err)
		return 0, err
	}

	details := map[string]interface{}{"writes": writes}
	if err := s.syncLogs.Close(ctx, logID, model.SyncStatusCompleted,
		processed, writes, processed-writes-failed, failed, details); err != nil {
		logging.Error("failed to close sync log", logging.Fields{"jobId": JobSyncMFNav, "error": err.Error()})
	}

	_ = s.progress.Set(ctx, JobSyncMFNav, progress.Update{
		Status:    progress.String(progress.StatusCompleted),
		Processed: progress.Int(processed),
		Current:   progress.String("NAV refresh complete"),
	})

	return writes, nil
}

func (s *NavService) run(ctx context.Context) (writes, processed, failed int, err error) {
	schemes, err := s.amfi.Schemes(ctx)
	if err != nil {
		return 0, 0, 0, err
	}
	navMap := amfi.LatestNavMap(schemes)

	funds, err := s.options.ListActive(ctx, 0, model.CategoryMutualFund)
	if err != nil {
		return 0, 0, 0, err
	}

	_ = s.progress.Set(ctx, JobSyncMFNav, progress.Update{
		Total:   progress.Int(len(funds)),
		Current: progress.String("Writing latest NAVs"),
	})

	now := time.Now().UTC()
	for i, fund := range funds {
		processed++
		entry, ok := navMap[fund.Symbol]
		if !ok {
			continue
		}

		seriesSymbol := model.MFSymbolPrefix + fund.Symbol
		pt := model.PricePoint{Date: entry.Date, Close: entry.NAV}
		if err := s.prices.Upsert(ctx, seriesSymbol, "amfi", pt); err != nil {
			failed++
			logging.Warn("NAV upsert failed", logging.Fields{"symbol": seriesSymbol, "error": err.Error()})
			continue
		}
		writes++

		if fund.UnitPrice == nil || PriceChanged(*fund.UnitPrice, entry.NAV) {
			if err := s.options.SetUnitPrice(ctx, fund.ID, entry.NAV, now); err != nil {
				logging.Warn("NAV unit price update failed", logging.Fields{"symbol": fund.Symbol, "error": err.Error()})
			}
		}

		if (i+1)%50 == 0 {
			_ = s.progress.Set(ctx, JobSyncMFNav, progress.Update{Processed: progress.Int(i + 1)})
		}
	}

	return writes, processed, failed, nil
}

func (s *NavService) finishError(ctx context.Context, logID string, runErr error) {
	details := map[string]interface{}{"error": runErr.Error()}
	if err := s.syncLogs.Close(ctx, logID, model.SyncStatusError, 0, 0, 0, 0, details); err != nil {
		logging.Error("failed to close sync log", logging.Fields{"jobId": JobSyncMFNav, "error": err.Error()})
	}
	_ = s.progress.Set(ctx, JobSyncMFNav, progress.Update{
		Status: progress.String(progress.StatusError),
		Error:  progress.String(runErr.Error()),
	})
	s.notifier.NotifySystem(ctx, "NAV refresh failed", runErr.Error())
}
