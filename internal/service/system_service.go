package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/investoscope/investoscope-backend/internal/database"
	"github.com/investoscope/investoscope-backend/internal/repository"
	"github.com/investoscope/investoscope-backend/internal/version"
)

// SyncStatus summarises price data freshness for the status endpoint.
type SyncStatus struct {
	NewestPriceDate *time.Time `json:"newestPriceDate"`
	HoursOld        *float64   `json:"hoursOld"`
	Fresh           bool       `json:"fresh"`
}

// SystemService serves the health, version and sync-status endpoints.
type SystemService struct {
	db     *sql.DB
	prices *repository.PriceRepository
}

// NewSystemService creates a SystemService.
func NewSystemService(db *sql.DB, prices *repository.PriceRepository) *SystemService {
	return &SystemService{db: db, prices: prices}
}

// Health checks database connectivity.
func (s *SystemService) Health() error {
	return database.HealthCheck(s.db)
}

// Version returns the build version string.
func (s *SystemService) Version() string {
	return version.Version
}

// Status reports how old the newest stored price is and whether the
// auto-sync fallback would consider it fresh.
func (s *SystemService) Status(ctx context.Context) (SyncStatus, error) {
	newest, err := s.prices.NewestDate(ctx)
	if err != nil {
		return SyncStatus{}, err
	}
	if newest == nil {
		return SyncStatus{}, nil
	}

	hours := time.Since(*newest).Hours()
	return SyncStatus{
		NewestPriceDate: newest,
		HoursOld:        &hours,
		Fresh:           time.Since(*newest) <= staleAfter,
	}, nil
}
