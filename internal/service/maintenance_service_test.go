package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/investoscope/investoscope-backend/internal/model"
	"github.com/investoscope/investoscope-backend/internal/repository"
	"github.com/investoscope/investoscope-backend/internal/service"
	"github.com/investoscope/investoscope-backend/internal/testutil"
)

func TestAutoSyncIfStale(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh data skips", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		testutil.NewPrice().WithSymbol("AAA.NS").WithDate(time.Now().UTC()).Build(t, db)

		priceSvc := testutil.NewTestPriceService(t, db, &testutil.MockQuotes{}, &testutil.MockMFAPI{})
		svc := service.NewMaintenanceService(repository.NewPriceRepository(db), priceSvc)

		result, err := svc.AutoSyncIfStale(ctx)
		if err != nil {
			t.Fatalf("auto-sync failed: %v", err)
		}
		if result.Action != "skipped" {
			t.Errorf("expected skipped, got %+v", result)
		}
	})

	t.Run("empty price table triggers a sync", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		opt := testutil.NewOption().WithSymbol("AAA.NS").Build(t, db)

		quotes := &testutil.MockQuotes{Prices: map[string][]model.PricePoint{
			opt.Symbol: {{Date: testutil.Midnight(time.Now().UTC()), Close: 100}},
		}}
		priceSvc := testutil.NewTestPriceService(t, db, quotes, &testutil.MockMFAPI{})
		svc := service.NewMaintenanceService(repository.NewPriceRepository(db), priceSvc)

		result, err := svc.AutoSyncIfStale(ctx)
		if err != nil {
			t.Fatalf("auto-sync failed: %v", err)
		}
		if result.Action != "synced" {
			t.Errorf("expected synced, got %+v", result)
		}
		if got := testutil.CountPriceRows(t, db, opt.Symbol); got != 1 {
			t.Errorf("expected the triggered sync to store prices, got %d rows", got)
		}
	})

	t.Run("stale data triggers a sync", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		opt := testutil.NewOption().WithSymbol("AAA.NS").Build(t, db)
		testutil.NewPrice().WithSymbol(opt.Symbol).
			WithDate(time.Now().UTC().AddDate(0, 0, -3)).WithClose(95).Build(t, db)

		quotes := &testutil.MockQuotes{Prices: map[string][]model.PricePoint{
			opt.Symbol: {{Date: testutil.Midnight(time.Now().UTC()), Close: 100}},
		}}
		priceSvc := testutil.NewTestPriceService(t, db, quotes, &testutil.MockMFAPI{})
		svc := service.NewMaintenanceService(repository.NewPriceRepository(db), priceSvc)

		result, err := svc.AutoSyncIfStale(ctx)
		if err != nil {
			t.Fatalf("auto-sync failed: %v", err)
		}
		if result.Action != "synced" {
			t.Errorf("expected synced, got %+v", result)
		}
	})
}
