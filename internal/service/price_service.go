package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/investoscope/investoscope-backend/internal/alerting"
	"github.com/investoscope/investoscope-backend/internal/apperrors"
	"github.com/investoscope/investoscope-backend/internal/logging"
	"github.com/investoscope/investoscope-backend/internal/mfapi"
	"github.com/investoscope/investoscope-backend/internal/model"
	"github.com/investoscope/investoscope-backend/internal/progress"
	"github.com/investoscope/investoscope-backend/internal/repository"
)

// Batch fan-out widths, bounding concurrent outbound calls per vendor.
const (
	securityBatchSize   = 8
	mutualFundBatchSize = 6
)

// Series whose newest stored close is younger than this window are skipped
// entirely; the vendors publish at most one new close a day. The gate keys
// off the stored series, not the option row: the catalogue reconciler
// touches last_updated on every run, which says nothing about price
// freshness.
const freshnessWindow = 24 * time.Hour

// Each pass caps its universe so one run stays within vendor quotas.
const priceSyncLimit = 500

type syncOutcome int

const (
	outcomeUpdated syncOutcome = iota
	outcomeFresh
	outcomeNoChange
	outcomeFailed
)

type syncCounters struct {
	updated         atomic.Int64
	skippedFresh    atomic.Int64
	skippedNoChange atomic.Int64
	failed          atomic.Int64
}

func (c *syncCounters) record(outcome syncOutcome) {
	switch outcome {
	case outcomeUpdated:
		c.updated.Add(1)
	case outcomeFresh:
		c.skippedFresh.Add(1)
	case outcomeNoChange:
		c.skippedNoChange.Add(1)
	case outcomeFailed:
		c.failed.Add(1)
	}
}

// PriceService refreshes unit prices and historical series for the whole
// active catalogue: stocks/ETFs through the quote vendor chain, mutual funds
// through mfapi.in. Work fans out in fixed-size batches; a batch fully
// resolves before the next one starts.
type PriceService struct {
	options   *repository.OptionRepository
	prices    *repository.PriceRepository
	alerts    *repository.AlertRepository
	syncLogs  *repository.SyncLogRepository
	quotes    QuoteFetcher
	mfapi     mfapi.Client
	progress  progress.Store
	guard     *progress.RunGuard
	notifier  *alerting.Notifier
	threshold int
}

// NewPriceService creates a PriceService.
func NewPriceService(
	options *repository.OptionRepository,
	prices *repository.PriceRepository,
	alerts *repository.AlertRepository,
	syncLogs *repository.SyncLogRepository,
	quotes QuoteFetcher,
	mfapiClient mfapi.Client,
	store progress.Store,
	guard *progress.RunGuard,
	notifier *alerting.Notifier,
	failedAlertThreshold int,
) *PriceService {
	return &PriceService{
		options:   options,
		prices:    prices,
		alerts:    alerts,
		syncLogs:  syncLogs,
		quotes:    quotes,
		mfapi:     mfapiClient,
		progress:  store,
		guard:     guard,
		notifier:  notifier,
		threshold: failedAlertThreshold,
	}
}

// Run executes one full price sync pass. Per-symbol failures are counted and
// never abort the pass.
func (s *PriceService) Run(ctx context.Context) (model.PriceSummary, error) {
	release, err := s.guard.Acquire(JobSyncPrices)
	if err != nil {
		return model.PriceSummary{}, err
	}
	defer release()

	_ = s.progress.Clear(ctx, JobSyncPrices)
	_ = s.progress.Set(ctx, JobSyncPrices, progress.Update{
		Status:  progress.String(progress.StatusRunning),
		Current: progress.String("Loading active catalogue"),
	})

	logID, err := s.syncLogs.Create(ctx, JobSyncPrices)
	if err != nil {
		return model.PriceSummary{}, err
	}

	securities, err := s.options.ListActive(ctx, priceSyncLimit, model.CategoryStock, model.CategoryETF)
	if err != nil {
		s.finishError(ctx, logID, err)
		return model.PriceSummary{}, err
	}
	funds, err := s.options.ListActive(ctx, priceSyncLimit, model.CategoryMutualFund)
	if err != nil {
		s.finishError(ctx, logID, err)
		return model.PriceSummary{}, err
	}

	total := len(securities) + len(funds)
	_ = s.progress.Set(ctx, JobSyncPrices, progress.Update{
		Total:   progress.Int(total),
		Current: progress.String("Refreshing stock and ETF prices"),
	})

	counters := &syncCounters{}
	processed := s.runBatches(ctx, securities, securityBatchSize, 0, counters, s.syncSecurity)

	_ = s.progress.Set(ctx, JobSyncPrices, progress.Update{
		Current: progress.String("Refreshing mutual fund NAVs"),
	})
	s.runBatches(ctx, funds, mutualFundBatchSize, processed, counters, s.syncMutualFund)

	summary := model.PriceSummary{
		Updated:         int(counters.updated.Load()),
		SkippedFresh:    int(counters.skippedFresh.Load()),
		SkippedNoChange: int(counters.skippedNoChange.Load()),
		Failed:          int(counters.failed.Load()),
		Total:           total,
	}

	details := map[string]interface{}{
		"updated":         summary.Updated,
		"skippedFresh":    summary.SkippedFresh,
		"skippedNoChange": summary.SkippedNoChange,
	}
	skipped := summary.SkippedFresh + summary.SkippedNoChange
	if err := s.syncLogs.Close(ctx, logID, model.SyncStatusCompleted,
		summary.Total, summary.Updated, skipped, summary.Failed, details); err != nil {
		logging.Error("failed to close sync log", logging.Fields{"jobId": JobSyncPrices, "error": err.Error()})
	}

	_ = s.progress.Set(ctx, JobSyncPrices, progress.Update{
		Status:    progress.String(progress.StatusCompleted),
		Processed: progress.Int(total),
		Current:   progress.String("Price sync complete"),
	})

	if summary.Failed >= s.threshold {
		s.notifier.NotifySystem(ctx, "Price sync warning",
			fmt.Sprintf("price sync completed with %d of %d symbols failed", summary.Failed, summary.Total))
	}

	return summary, nil
}

// runBatches fans work out in fixed-size batches. Workers never return an
// error: failures are recorded in the counters so one bad symbol cannot
// cancel its batch. Returns the cumulative processed count.
func (s *PriceService) runBatches(
	ctx context.Context,
	opts []model.InvestmentOption,
	batchSize, processedBefore int,
	counters *syncCounters,
	work func(ctx context.Context, opt model.InvestmentOption) syncOutcome,
) int {
	processed := processedBefore
	for start := 0; start < len(opts); start += batchSize {
		end := start + batchSize
		if end > len(opts) {
			end = len(opts)
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, opt := range opts[start:end] {
			opt := opt
			g.Go(func() error {
				counters.record(work(gctx, opt))
				return nil
			})
		}
		_ = g.Wait()

		processed += end - start
		_ = s.progress.Set(ctx, JobSyncPrices, progress.Update{Processed: progress.Int(processed)})
	}

	return processed
}

func (s *PriceService) syncSecurity(ctx context.Context, opt model.InvestmentOption) syncOutcome {
	latest, err := s.prices.Latest(ctx, opt.Symbol)
	if err != nil {
		return s.fail(opt.Symbol, err)
	}
	if latest != nil && time.Since(latest.Date) < freshnessWindow {
		return outcomeFresh
	}
	var since *time.Time
	if latest != nil {
		t := latest.Date
		since = &t
	}

	points, source, err := s.quotes.DailyPrices(ctx, opt.Symbol, since)
	if err != nil {
		return s.fail(opt.Symbol, err)
	}

	return s.applySeries(ctx, opt, opt.Symbol, source, repository.PriceHash, opt.PriceHash, latest, points, true)
}

func (s *PriceService) syncMutualFund(ctx context.Context, opt model.InvestmentOption) syncOutcome {
	seriesSymbol := model.MFSymbolPrefix + opt.Symbol

	latest, err := s.prices.Latest(ctx, seriesSymbol)
	if err != nil {
		return s.fail(seriesSymbol, err)
	}
	if latest != nil && time.Since(latest.Date) < freshnessWindow {
		return outcomeFresh
	}

	points, err := s.mfapi.NAVHistory(ctx, opt.Symbol)
	if err != nil {
		return s.fail(seriesSymbol, err)
	}

	return s.applySeries(ctx, opt, seriesSymbol, "mfapi.in", repository.NavHash, opt.NavHash, latest, points, false)
}

// applySeries is the shared tail of both sync paths: split fetched points
// into genuinely-new rows and a possible same-date restatement, gate on the
// series fingerprint, persist, refresh the unit price under the epsilon, and
// run the price alerts.
func (s *PriceService) applySeries(
	ctx context.Context,
	opt model.InvestmentOption,
	seriesSymbol, source string,
	hashCol repository.HashColumn,
	storedHash *string,
	latest *model.HistoricalPrice,
	points []model.PricePoint,
	withFundamentals bool,
) syncOutcome {
	newPoints := []model.PricePoint{}
	corrected := false
	correctedClose := 0.0
	for _, pt := range points {
		switch {
		case latest == nil || pt.Date.After(latest.Date):
			newPoints = append(newPoints, pt)
		case sameDay(pt.Date, latest.Date) && PriceChanged(latest.Close, pt.Close):
			// Vendor restated the last close: update in place, not append.
			if _, err := s.prices.UpdateClose(ctx, seriesSymbol, latest.Date, pt.Close); err != nil {
				return s.fail(seriesSymbol, err)
			}
			corrected = true
			correctedClose = pt.Close
		}
	}

	tail, err := s.mergedTail(ctx, seriesSymbol, newPoints)
	if err != nil {
		return s.fail(seriesSymbol, err)
	}
	if len(tail) == 0 {
		return outcomeNoChange
	}
	hash := SeriesHash(tail)

	now := time.Now().UTC()

	if storedHash != nil && *storedHash == hash && !corrected {
		// Series unchanged. Touch the hash and last_updated unless a
		// fundamentals write happened this pass, which must not be clobbered.
		fundamentalsUpdated := false
		if withFundamentals {
			fundamentalsUpdated = s.refreshFundamentals(ctx, opt, false)
		}
		if !fundamentalsUpdated {
			if err := s.options.SetHash(ctx, opt.ID, hashCol, hash, now); err != nil {
				return s.fail(seriesSymbol, err)
			}
		}
		return outcomeNoChange
	}

	if len(newPoints) > 0 {
		if err := s.prices.InsertMany(ctx, seriesSymbol, source, newPoints); err != nil {
			return s.fail(seriesSymbol, err)
		}
	}

	latestClose := tail[len(tail)-1].Close
	if corrected && len(newPoints) == 0 {
		latestClose = correctedClose
	}

	shouldUpdatePrice := opt.UnitPrice == nil || PriceChanged(*opt.UnitPrice, latestClose)

	fundamentalsUpdated := false
	if withFundamentals {
		fundamentalsUpdated = s.refreshFundamentals(ctx, opt, shouldUpdatePrice)
	}

	if shouldUpdatePrice {
		if err := s.options.SetUnitPriceAndHash(ctx, opt.ID, latestClose, hashCol, hash, now); err != nil {
			return s.fail(seriesSymbol, err)
		}
	} else if !fundamentalsUpdated {
		if err := s.options.SetHash(ctx, opt.ID, hashCol, hash, now); err != nil {
			return s.fail(seriesSymbol, err)
		}
	}

	s.applyAlerts(ctx, opt, latestClose)

	if shouldUpdatePrice || len(newPoints) > 0 || corrected {
		return outcomeUpdated
	}
	return outcomeNoChange
}

// mergedTail builds the fingerprint input: the stored recent closes plus the
// not-yet-inserted new points, ascending, trimmed to the hash tail length.
func (s *PriceService) mergedTail(ctx context.Context, seriesSymbol string, newPoints []model.PricePoint) ([]model.PricePoint, error) {
	stored, err := s.prices.Recent(ctx, seriesSymbol, seriesTailLength)
	if err != nil {
		return nil, err
	}

	merged := make([]model.PricePoint, 0, len(stored)+len(newPoints))
	for i := len(stored) - 1; i >= 0; i-- {
		merged = append(merged, model.PricePoint{Date: stored[i].Date, Close: stored[i].Close})
	}
	merged = append(merged, newPoints...)

	if len(merged) > seriesTailLength {
		merged = merged[len(merged)-seriesTailLength:]
	}
	return merged, nil
}

// refreshFundamentals enriches a stock/ETF with P/E, beta and market cap.
// Fetched only when a field is missing or the price moved; failures never
// count against the job.
func (s *PriceService) refreshFundamentals(ctx context.Context, opt model.InvestmentOption, priceMoved bool) bool {
	needed := priceMoved || opt.PERatio == nil || opt.Beta == nil || opt.MarketCapValue == nil
	if !needed {
		return false
	}

	f := s.quotes.Fundamentals(ctx, opt.Symbol)
	if f == nil {
		return false
	}

	wrote, err := s.options.UpdateFundamentals(ctx, opt.ID, *f)
	if err != nil {
		logging.Warn("fundamentals update failed", logging.Fields{
			"symbol": opt.Symbol,
			"error":  err.Error(),
		})
		return false
	}
	return wrote
}

// applyAlerts fires and deactivates every active alert on the option whose
// threshold the fresh price satisfies. One-shot: a fired alert never re-arms
// itself.
func (s *PriceService) applyAlerts(ctx context.Context, opt model.InvestmentOption, latestPrice float64) {
	alerts, err := s.alerts.ActiveByOption(ctx, opt.ID)
	if err != nil {
		logging.Warn("price alert lookup failed", logging.Fields{"optionId": opt.ID, "error": err.Error()})
		return
	}

	triggered := []string{}
	for _, alert := range alerts {
		if !alert.Triggered(latestPrice) {
			continue
		}
		triggered = append(triggered, alert.ID)
		s.notifier.NotifyUser(alert.Email,
			fmt.Sprintf("Price alert: %s", opt.Name),
			fmt.Sprintf("%s is now at %.2f, crossing your %s %.2f threshold.",
				opt.Name, latestPrice, alert.Direction, alert.TargetPrice))
	}
	if len(triggered) == 0 {
		return
	}

	if err := s.alerts.DeactivateByIDs(ctx, triggered, time.Now().UTC()); err != nil {
		logging.Warn("price alert deactivation failed", logging.Fields{"optionId": opt.ID, "error": err.Error()})
	}
}

func (s *PriceService) fail(symbol string, err error) syncOutcome {
	fields := logging.Fields{"symbol": symbol, "error": err.Error()}
	if apperrors.IsRateLimited(err) {
		logging.Warn("vendor rate limit hit", fields)
	} else {
		logging.Warn("price sync failed for symbol", fields)
	}
	return outcomeFailed
}

func (s *PriceService) finishError(ctx context.Context, logID string, runErr error) {
	details := map[string]interface{}{"error": runErr.Error()}
	if err := s.syncLogs.Close(ctx, logID, model.SyncStatusError, 0, 0, 0, 0, details); err != nil {
		logging.Error("failed to close sync log", logging.Fields{"jobId": JobSyncPrices, "error": err.Error()})
	}
	_ = s.progress.Set(ctx, JobSyncPrices, progress.Update{
		Status: progress.String(progress.StatusError),
		Error:  progress.String(runErr.Error()),
	})
	s.notifier.NotifySystem(ctx, "Price sync failed", runErr.Error())

	if streak, err := s.syncLogs.ConsecutiveFailures(ctx, JobSyncPrices); err == nil && streak >= s.threshold {
		s.notifier.NotifySystem(ctx, "Price sync failing repeatedly",
			fmt.Sprintf("%d consecutive price sync runs have failed", streak))
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
