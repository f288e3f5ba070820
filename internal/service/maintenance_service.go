package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/investoscope/investoscope-backend/internal/apperrors"
	"github.com/investoscope/investoscope-backend/internal/logging"
	"github.com/investoscope/investoscope-backend/internal/repository"
)

// A price table whose newest close is older than this is considered stale.
// One trading day plus slack for market close and vendor publication lag.
const staleAfter = 26 * time.Hour

// AutoSyncResult reports what the staleness check decided.
type AutoSyncResult struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// MaintenanceService runs the auto-sync fallback: when no scheduled price
// sync has landed recently, trigger one in-process.
type MaintenanceService struct {
	prices       *repository.PriceRepository
	priceService *PriceService
}

// NewMaintenanceService creates a MaintenanceService.
func NewMaintenanceService(prices *repository.PriceRepository, priceService *PriceService) *MaintenanceService {
	return &MaintenanceService{prices: prices, priceService: priceService}
}

// AutoSyncIfStale runs a price sync when the newest stored close is missing
// or older than the staleness window; otherwise it reports why it did
// nothing. Racing an already-running price sync counts as "skipped", not an
// error.
func (s *MaintenanceService) AutoSyncIfStale(ctx context.Context) (AutoSyncResult, error) {
	newest, err := s.prices.NewestDate(ctx)
	if err != nil {
		return AutoSyncResult{}, err
	}

	var reason string
	switch {
	case newest == nil:
		reason = "no price data stored yet"
	case time.Since(*newest) > staleAfter:
		reason = fmt.Sprintf("newest price is %.1f hours old", time.Since(*newest).Hours())
	default:
		return AutoSyncResult{
			Action: "skipped",
			Reason: fmt.Sprintf("newest price is %.1f hours old, still fresh", time.Since(*newest).Hours()),
		}, nil
	}

	logging.Info("auto-sync triggered", logging.Fields{"reason": reason})

	summary, err := s.priceService.Run(ctx)
	if errors.Is(err, apperrors.ErrJobAlreadyRunning) {
		return AutoSyncResult{Action: "skipped", Reason: "price sync already running"}, nil
	}
	if err != nil {
		return AutoSyncResult{}, err
	}

	return AutoSyncResult{
		Action: "synced",
		Reason: fmt.Sprintf("%s; updated %d of %d symbols", reason, summary.Updated, summary.Total),
	}, nil
}
