package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/investoscope/investoscope-backend/internal/alerting"
	"github.com/investoscope/investoscope-backend/internal/amfi"
	"github.com/investoscope/investoscope-backend/internal/config"
	"github.com/investoscope/investoscope-backend/internal/mailer"
	"github.com/investoscope/investoscope-backend/internal/mfapi"
	"github.com/investoscope/investoscope-backend/internal/nse"
	"github.com/investoscope/investoscope-backend/internal/progress"
	"github.com/investoscope/investoscope-backend/internal/repository"
	"github.com/investoscope/investoscope-backend/internal/service"
)

// MakeID generates a unique ID for test entities.
func MakeID() string {
	return uuid.New().String()
}

// Midnight normalises a time to midnight UTC, matching how the price
// repository stores dates.
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NoopNotifier builds a Notifier with every sink disabled.
func NoopNotifier() *alerting.Notifier {
	return alerting.NewNotifier(config.AlertConfig{}, mailer.New(config.SMTPConfig{}))
}

// NewTestCatalogueService wires a CatalogueService over the test database
// and the given vendor mocks.
func NewTestCatalogueService(t *testing.T, db *sql.DB, nseClient nse.Client, amfiClient amfi.Client, quotes service.QuoteFetcher) *service.CatalogueService {
	t.Helper()

	return service.NewCatalogueService(
		repository.NewOptionRepository(db),
		repository.NewSyncLogRepository(db),
		nseClient,
		amfiClient,
		quotes,
		progress.NewMemoryStore(),
		progress.NewRunGuard(),
		NoopNotifier(),
		10,
	)
}

// NewTestPriceService wires a PriceService over the test database and the
// given vendor mocks.
func NewTestPriceService(t *testing.T, db *sql.DB, quotes service.QuoteFetcher, mfapiClient mfapi.Client) *service.PriceService {
	t.Helper()

	return service.NewPriceService(
		repository.NewOptionRepository(db),
		repository.NewPriceRepository(db),
		repository.NewAlertRepository(db),
		repository.NewSyncLogRepository(db),
		quotes,
		mfapiClient,
		progress.NewMemoryStore(),
		progress.NewRunGuard(),
		NoopNotifier(),
		10,
	)
}

// NewTestNavService wires a NavService over the test database and the given
// AMFI mock.
func NewTestNavService(t *testing.T, db *sql.DB, amfiClient amfi.Client) *service.NavService {
	t.Helper()

	return service.NewNavService(
		repository.NewOptionRepository(db),
		repository.NewPriceRepository(db),
		repository.NewSyncLogRepository(db),
		amfiClient,
		progress.NewMemoryStore(),
		progress.NewRunGuard(),
		NoopNotifier(),
	)
}

// CountActiveBySymbol counts active investment options with the symbol.
func CountActiveBySymbol(t *testing.T, db *sql.DB, symbol string) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM investment_option WHERE symbol = ? AND active = TRUE`, symbol).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to count active options: %v", err)
	}
	return count
}

// CountOptions counts all investment options.
func CountOptions(t *testing.T, db *sql.DB) int {
	t.Helper()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM investment_option`).Scan(&count); err != nil {
		t.Fatalf("Failed to count options: %v", err)
	}
	return count
}

// CountPriceRows counts stored price rows for a series symbol.
func CountPriceRows(t *testing.T, db *sql.DB, symbol string) int {
	t.Helper()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM historical_price WHERE symbol = ?`, symbol).Scan(&count); err != nil {
		t.Fatalf("Failed to count price rows: %v", err)
	}
	return count
}
