package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/investoscope/investoscope-backend/internal/alerting"
	"github.com/investoscope/investoscope-backend/internal/amfi"
	"github.com/investoscope/investoscope-backend/internal/apperrors"
	"github.com/investoscope/investoscope-backend/internal/logging"
	"github.com/investoscope/investoscope-backend/internal/model"
	"github.com/investoscope/investoscope-backend/internal/nse"
	"github.com/investoscope/investoscope-backend/internal/progress"
	"github.com/investoscope/investoscope-backend/internal/repository"
)

// Job identifiers, shared by the HTTP triggers and the scheduler.
const (
	JobSyncCatalogue = "sync-catalogue"
	JobSyncPrices    = "sync-prices"
	JobSyncMFNav     = "sync-mf-nav"
	JobAutoSync      = "auto-sync-if-stale"
)

// QuoteFetcher is the slice of the quote chain the services need.
type QuoteFetcher interface {
	DailyPrices(ctx context.Context, symbol string, since *time.Time) ([]model.PricePoint, string, error)
	Fundamentals(ctx context.Context, symbol string) *model.Fundamentals
}

// Mutual funds without published minimums get a nominal floor.
const defaultMFMinimum = 100.0

// Staleness sweep: deactivation only proceeds when the vendor feed covered
// at least half of the currently-active universe. A truncated CSV must not
// read as a mass delisting.
const staleCoverageFloor = 0.5

// CatalogueService ingests the NSE and AMFI catalogues, reconciling each
// vendor row onto exactly one active investment option and sweeping entries
// that have disappeared from the vendor universe.
type CatalogueService struct {
	options   *repository.OptionRepository
	syncLogs  *repository.SyncLogRepository
	nse       nse.Client
	amfi      amfi.Client
	quotes    QuoteFetcher
	progress  progress.Store
	guard     *progress.RunGuard
	notifier  *alerting.Notifier
	threshold int
}

// NewCatalogueService creates a CatalogueService.
func NewCatalogueService(
	options *repository.OptionRepository,
	syncLogs *repository.SyncLogRepository,
	nseClient nse.Client,
	amfiClient amfi.Client,
	quotes QuoteFetcher,
	store progress.Store,
	guard *progress.RunGuard,
	notifier *alerting.Notifier,
	failedAlertThreshold int,
) *CatalogueService {
	return &CatalogueService{
		options:   options,
		syncLogs:  syncLogs,
		nse:       nseClient,
		amfi:      amfiClient,
		quotes:    quotes,
		progress:  store,
		guard:     guard,
		notifier:  notifier,
		threshold: failedAlertThreshold,
	}
}

// Run executes one full catalogue sync: NSE equities, then AMFI schemes,
// each followed by its staleness sweep. A vendor feed failure aborts the
// whole job; per-row failures are counted and skipped.
func (s *CatalogueService) Run(ctx context.Context) (model.CatalogueSummary, error) {
	release, err := s.guard.Acquire(JobSyncCatalogue)
	if err != nil {
		return model.CatalogueSummary{}, err
	}
	defer release()

	_ = s.progress.Clear(ctx, JobSyncCatalogue)
	_ = s.progress.Set(ctx, JobSyncCatalogue, progress.Update{
		Status:  progress.String(progress.StatusRunning),
		Current: progress.String("Fetching NSE equity catalogue"),
	})

	logID, err := s.syncLogs.Create(ctx, JobSyncCatalogue)
	if err != nil {
		return model.CatalogueSummary{}, err
	}

	summary, failed, err := s.run(ctx)
	if err != nil {
		s.finishError(ctx, logID, err)
		return model.CatalogueSummary{}, err
	}

	processed := summary.StockCreated + summary.StockUpdated + summary.MFCreated + summary.MFUpdated
	details := map[string]interface{}{
		"stocks": map[string]int{
			"created":     summary.StockCreated,
			"updated":     summary.StockUpdated,
			"deactivated": summary.StockDeactivated,
		},
		"mutualFunds": map[string]int{
			"created":     summary.MFCreated,
			"updated":     summary.MFUpdated,
			"deactivated": summary.MFDeactivated,
		},
	}
	if err := s.syncLogs.Close(ctx, logID, model.SyncStatusCompleted,
		processed, summary.StockUpdated+summary.MFUpdated, 0, failed, details); err != nil {
		logging.Error("failed to close sync log", logging.Fields{"jobId": JobSyncCatalogue, "error": err.Error()})
	}

	_ = s.progress.Set(ctx, JobSyncCatalogue, progress.Update{
		Status:  progress.String(progress.StatusCompleted),
		Current: progress.String("Catalogue sync complete"),
	})

	deactivated := summary.StockDeactivated + summary.MFDeactivated
	if failed >= s.threshold || deactivated >= s.threshold {
		s.notifier.NotifySystem(ctx, "Catalogue sync warning",
			fmt.Sprintf("catalogue sync completed with %d failures and %d deactivations", failed, deactivated))
	}

	return summary, nil
}

func (s *CatalogueService) run(ctx context.Context) (model.CatalogueSummary, int, error) {
	var summary model.CatalogueSummary
	failed := 0

	// Stocks and ETFs from the NSE equity master.
	equities, err := s.nse.ListedEquities(ctx)
	if err != nil {
		return summary, failed, err
	}

	activeSec, err := s.options.ListActive(ctx, 0, model.CategoryStock, model.CategoryETF)
	if err != nil {
		return summary, failed, err
	}

	_ = s.progress.Set(ctx, JobSyncCatalogue, progress.Update{
		Total:   progress.Int(len(equities)),
		Current: progress.String("Reconciling NSE equities"),
	})

	seenSec := map[string]bool{}
	for i, eq := range equities {
		status, symbol, err := s.ReconcileSecurity(ctx, eq)
		if err != nil {
			failed++
			logging.Warn("security reconciliation failed", logging.Fields{
				"symbol": eq.Symbol,
				"error":  err.Error(),
			})
		} else {
			switch status {
			case "created":
				summary.StockCreated++
			case "updated":
				summary.StockUpdated++
			}
			if symbol != "" {
				seenSec[symbol] = true
			}
		}
		if (i+1)%100 == 0 {
			_ = s.progress.Set(ctx, JobSyncCatalogue, progress.Update{Processed: progress.Int(i + 1)})
		}
	}

	summary.StockDeactivated, err = s.sweepStale(ctx, activeSec, seenSec)
	if err != nil {
		return summary, failed, err
	}

	// Mutual funds from the AMFI NAV feed.
	_ = s.progress.Set(ctx, JobSyncCatalogue, progress.Update{
		Current: progress.String("Fetching AMFI scheme master"),
	})

	schemes, err := s.amfi.Schemes(ctx)
	if err != nil {
		return summary, failed, err
	}

	activeMF, err := s.options.ListActive(ctx, 0, model.CategoryMutualFund)
	if err != nil {
		return summary, failed, err
	}

	_ = s.progress.Set(ctx, JobSyncCatalogue, progress.Update{
		Total:     progress.Int(len(equities) + len(schemes)),
		Current:   progress.String("Reconciling AMFI schemes"),
		Processed: progress.Int(len(equities)),
	})

	seenMF := map[string]bool{}
	for i, scheme := range schemes {
		status, symbol, err := s.ReconcileMutualFund(ctx, scheme)
		if err != nil {
			failed++
			logging.Warn("mutual fund reconciliation failed", logging.Fields{
				"schemeCode": scheme.Code,
				"error":      err.Error(),
			})
		} else {
			switch status {
			case "created":
				summary.MFCreated++
			case "updated":
				summary.MFUpdated++
			}
			if symbol != "" {
				seenMF[symbol] = true
			}
		}
		if (i+1)%500 == 0 {
			_ = s.progress.Set(ctx, JobSyncCatalogue, progress.Update{Processed: progress.Int(len(equities) + i + 1)})
		}
	}

	summary.MFDeactivated, err = s.sweepStale(ctx, activeMF, seenMF)
	if err != nil {
		return summary, failed, err
	}

	return summary, failed, nil
}

// ReconcileSecurity maps one NSE equity row onto exactly one active option,
// creating, updating, or dedup-repairing. Returns status
// (created/updated/skipped) and the normalized symbol.
func (s *CatalogueService) ReconcileSecurity(ctx context.Context, eq nse.Equity) (status, symbol string, err error) {
	name := strings.TrimSpace(eq.Name)
	raw := strings.TrimSpace(eq.Symbol)
	if raw == "" || name == "" {
		return "skipped", "", nil
	}

	category := model.CategoryStock
	var subtypeETF *model.SubtypeETF
	var riskLevel, riskReason string
	if IsETF(name, raw) {
		category = model.CategoryETF
		st := ClassifyETF(name)
		subtypeETF = &st
		riskLevel, riskReason = RiskForETF(st)
	} else {
		riskLevel, riskReason = RiskForStock()
	}

	normalized := NormalizeSymbol(raw)

	// Best effort: a missing price here is fixed up by the price sync.
	unitPrice := s.latestClose(ctx, normalized)

	matches, err := s.options.FindBySymbol(ctx, normalized)
	if err != nil {
		return "", normalized, err
	}

	if len(matches) == 0 {
		opt := &model.InvestmentOption{
			Category:   category,
			Name:       name,
			Symbol:     normalized,
			UnitPrice:  unitPrice,
			SubtypeETF: subtypeETF,
			RiskLevel:  riskLevel,
			RiskReason: riskReason,
			Active:     true,
		}
		if err := s.options.Insert(ctx, opt); err != nil {
			return "", normalized, err
		}
		return "created", normalized, nil
	}

	keep, err := s.repairDuplicates(ctx, matches)
	if err != nil {
		return "", normalized, err
	}

	keep.Category = category
	keep.Name = name
	keep.SubtypeETF = subtypeETF
	keep.SubtypeMF = nil
	keep.RiskLevel = riskLevel
	keep.RiskReason = riskReason
	keep.Active = true
	if unitPrice != nil {
		keep.UnitPrice = unitPrice
	}
	if err := s.options.Update(ctx, &keep); err != nil {
		return "", normalized, err
	}

	return "updated", normalized, nil
}

// ReconcileMutualFund maps one AMFI scheme row onto exactly one active
// option, keyed by scheme code. Returns status (created/updated/skipped)
// and the scheme code.
func (s *CatalogueService) ReconcileMutualFund(ctx context.Context, scheme amfi.Scheme) (status, symbol string, err error) {
	code := strings.TrimSpace(scheme.Code)
	name := strings.TrimSpace(scheme.Name)
	if code == "" || name == "" {
		return "skipped", "", nil
	}

	subtype := ClassifyMF(name)
	riskLevel, riskReason := RiskForMF(subtype)
	nav := scheme.NAV

	matches, err := s.options.FindByCategoryAndSymbol(ctx, model.CategoryMutualFund, code)
	if err != nil {
		return "", code, err
	}

	if len(matches) == 0 {
		minLumpSum := defaultMFMinimum
		minSIP := defaultMFMinimum
		opt := &model.InvestmentOption{
			Category:   model.CategoryMutualFund,
			Name:       name,
			Symbol:     code,
			UnitPrice:  &nav,
			MinLumpSum: &minLumpSum,
			MinSIP:     &minSIP,
			SubtypeMF:  &subtype,
			RiskLevel:  riskLevel,
			RiskReason: riskReason,
			Active:     true,
		}
		if err := s.options.Insert(ctx, opt); err != nil {
			return "", code, err
		}
		return "created", code, nil
	}

	keep, err := s.repairDuplicates(ctx, matches)
	if err != nil {
		return "", code, err
	}

	keep.Name = name
	keep.UnitPrice = &nav
	keep.SubtypeMF = &subtype
	keep.RiskLevel = riskLevel
	keep.RiskReason = riskReason
	keep.Active = true
	if keep.MinLumpSum == nil {
		v := defaultMFMinimum
		keep.MinLumpSum = &v
	}
	if keep.MinSIP == nil {
		v := defaultMFMinimum
		keep.MinSIP = &v
	}
	if err := s.options.Update(ctx, &keep); err != nil {
		return "", code, err
	}

	return "updated", code, nil
}

// repairDuplicates keeps the most recently updated match and deactivates the
// rest. matches is expected newest-first (repository ordering).
func (s *CatalogueService) repairDuplicates(ctx context.Context, matches []model.InvestmentOption) (model.InvestmentOption, error) {
	keep := matches[0]
	if len(matches) == 1 {
		return keep, nil
	}

	losers := make([]string, 0, len(matches)-1)
	for _, m := range matches[1:] {
		losers = append(losers, m.ID)
	}
	if err := s.options.DeactivateByIDs(ctx, losers); err != nil {
		return keep, err
	}

	logging.Info("repaired duplicate catalogue entries", logging.Fields{
		"symbol":      keep.Symbol,
		"deactivated": len(losers),
	})

	return keep, nil
}

// sweepStale deactivates previously-active symbols absent from this run's
// vendor feed, gated by the coverage floor.
func (s *CatalogueService) sweepStale(ctx context.Context, activeBefore []model.InvestmentOption, seen map[string]bool) (int, error) {
	if len(seen) == 0 || float64(len(seen)) < staleCoverageFloor*float64(len(activeBefore)) {
		if len(activeBefore) > 0 {
			logging.Warn("staleness sweep skipped, vendor coverage below floor", logging.Fields{
				"seen":   len(seen),
				"active": len(activeBefore),
			})
		}
		return 0, nil
	}

	stale := []string{}
	for _, opt := range activeBefore {
		if !seen[opt.Symbol] {
			stale = append(stale, opt.ID)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	if err := s.options.DeactivateByIDs(ctx, stale); err != nil {
		return 0, err
	}

	logging.Info("deactivated stale catalogue entries", logging.Fields{"count": len(stale)})

	return len(stale), nil
}

// latestClose fetches the most recent close for a symbol, best effort.
func (s *CatalogueService) latestClose(ctx context.Context, symbol string) *float64 {
	since := time.Now().AddDate(0, 0, -7)
	points, _, err := s.quotes.DailyPrices(ctx, symbol, &since)
	if err != nil || len(points) == 0 {
		return nil
	}
	close := points[len(points)-1].Close
	return &close
}

func (s *CatalogueService) finishError(ctx context.Context, logID string, runErr error) {
	details := map[string]interface{}{"error": runErr.Error()}
	if err := s.syncLogs.Close(ctx, logID, model.SyncStatusError, 0, 0, 0, 0, details); err != nil {
		logging.Error("failed to close sync log", logging.Fields{"jobId": JobSyncCatalogue, "error": err.Error()})
	}

	_ = s.progress.Set(ctx, JobSyncCatalogue, progress.Update{
		Status: progress.String(progress.StatusError),
		Error:  progress.String(runErr.Error()),
	})

	// A feed-level outage is always urgent, not threshold-gated.
	s.notifier.NotifySystem(ctx, "Catalogue sync failed", runErr.Error())

	if streak, err := s.syncLogs.ConsecutiveFailures(ctx, JobSyncCatalogue); err == nil && streak >= s.threshold {
		s.notifier.NotifySystem(ctx, "Catalogue sync failing repeatedly",
			fmt.Sprintf("%d consecutive catalogue sync runs have failed", streak))
	}

	if apperrors.IsVendorUnavailable(runErr) {
		logging.Error("catalogue sync aborted, vendor unavailable", logging.Fields{"error": runErr.Error()})
	}
}

// NormalizeSymbol appends the NSE suffix when the ticker carries no exchange
// qualifier.
func NormalizeSymbol(symbol string) string {
	if strings.Contains(symbol, ".") {
		return symbol
	}
	return symbol + ".NS"
}
