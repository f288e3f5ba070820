package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/investoscope/investoscope-backend/internal/amfi"
	"github.com/investoscope/investoscope-backend/internal/model"
	"github.com/investoscope/investoscope-backend/internal/testutil"
)

func TestNavRefresh(t *testing.T) {
	ctx := context.Background()
	navDate := testutil.Midnight(time.Now().UTC().AddDate(0, 0, -1))

	t.Run("writes latest NAV per active fund", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		fund := testutil.NewOption().AsMutualFund("100001").WithUnitPrice(45).Build(t, db)
		testutil.NewOption().AsMutualFund("100002").Inactive().Build(t, db)

		mockAMFI := &testutil.MockAMFI{Rows: []amfi.Scheme{
			{Code: "100001", Name: "Axis Bluechip Fund", NAV: 46.2, NAVDate: navDate},
			{Code: "100002", Name: "Inactive Fund", NAV: 12.3, NAVDate: navDate},
			{Code: "999999", Name: "Unknown Fund", NAV: 99, NAVDate: navDate},
		}}

		svc := testutil.NewTestNavService(t, db, mockAMFI)
		writes, err := svc.Run(ctx)
		if err != nil {
			t.Fatalf("NAV refresh failed: %v", err)
		}

		if writes != 1 {
			t.Errorf("expected 1 write for the one active fund, got %d", writes)
		}
		if got := testutil.CountPriceRows(t, db, model.MFSymbolPrefix+"100001"); got != 1 {
			t.Errorf("expected 1 NAV row, got %d", got)
		}
		if got := testutil.CountPriceRows(t, db, model.MFSymbolPrefix+"100002"); got != 0 {
			t.Errorf("inactive fund should not be written, got %d rows", got)
		}

		var unitPrice float64
		if err := db.QueryRow(`SELECT unit_price FROM investment_option WHERE id = ?`, fund.ID).Scan(&unitPrice); err != nil {
			t.Fatalf("failed to query fund: %v", err)
		}
		if unitPrice != 46.2 {
			t.Errorf("expected unit price 46.2, got %v", unitPrice)
		}
	})

	t.Run("rerun upserts in place", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		testutil.NewOption().AsMutualFund("100001").WithUnitPrice(45).Build(t, db)

		mockAMFI := &testutil.MockAMFI{Rows: []amfi.Scheme{
			{Code: "100001", Name: "Axis Bluechip Fund", NAV: 46.2, NAVDate: navDate},
		}}

		svc := testutil.NewTestNavService(t, db, mockAMFI)
		if _, err := svc.Run(ctx); err != nil {
			t.Fatalf("first run failed: %v", err)
		}

		// The feed restates the same date with a corrected NAV.
		mockAMFI.Rows[0].NAV = 46.5
		if _, err := svc.Run(ctx); err != nil {
			t.Fatalf("second run failed: %v", err)
		}

		seriesSymbol := model.MFSymbolPrefix + "100001"
		if got := testutil.CountPriceRows(t, db, seriesSymbol); got != 1 {
			t.Errorf("upsert must not duplicate the date, got %d rows", got)
		}
		var close float64
		if err := db.QueryRow(`SELECT close FROM historical_price WHERE symbol = ?`, seriesSymbol).Scan(&close); err != nil {
			t.Fatalf("failed to query NAV row: %v", err)
		}
		if close != 46.5 {
			t.Errorf("expected restated NAV 46.5, got %v", close)
		}
	})

	t.Run("vendor outage closes the log as error", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestNavService(t, db, &testutil.MockAMFI{Err: fmt.Errorf("AMFI feed unavailable")})

		if _, err := svc.Run(ctx); err == nil {
			t.Fatal("expected a vendor outage to fail the job")
		}

		var status string
		if err := db.QueryRow(`SELECT status FROM sync_log WHERE job_id = ? ORDER BY started_at DESC LIMIT 1`, "sync-mf-nav").Scan(&status); err != nil {
			t.Fatalf("failed to query sync log: %v", err)
		}
		if status != string(model.SyncStatusError) {
			t.Errorf("expected error status, got %s", status)
		}
	})
}
