package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/investoscope/investoscope-backend/internal/model"
	"github.com/investoscope/investoscope-backend/internal/repository"
	"github.com/investoscope/investoscope-backend/internal/testutil"
)

func TestPriceLatestAndRecent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewPriceRepository(db)
	ctx := context.Background()

	points := testutil.CreatePriceSeries(t, db, "AAA.NS", 98, 99, 100)

	latest, err := repo.Latest(ctx, "AAA.NS")
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	if latest == nil || latest.Close != 100 {
		t.Fatalf("expected the newest close, got %+v", latest)
	}
	if !latest.Date.Equal(points[2].Date) {
		t.Errorf("expected date %v, got %v", points[2].Date, latest.Date)
	}

	recent, err := repo.Recent(ctx, "AAA.NS", 2)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(recent) != 2 || recent[0].Close != 100 || recent[1].Close != 99 {
		t.Errorf("expected newest-first [100 99], got %+v", recent)
	}

	missing, err := repo.Latest(ctx, "NOPE.NS")
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for an unknown symbol, got %+v", missing)
	}
}

func TestPriceInsertManyNormalisesDates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewPriceRepository(db)
	ctx := context.Background()

	noisy := time.Date(2026, 8, 28, 15, 45, 12, 0, time.UTC)
	err := repo.InsertMany(ctx, "AAA.NS", "test", []model.PricePoint{{Date: noisy, Close: 100}})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	latest, err := repo.Latest(ctx, "AAA.NS")
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	want := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	if !latest.Date.Equal(want) {
		t.Errorf("expected midnight UTC, got %v", latest.Date)
	}
}

func TestPriceUpsert(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewPriceRepository(db)
	ctx := context.Background()

	pt := model.PricePoint{Date: time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), Close: 45.5}
	if err := repo.Upsert(ctx, "MF:100001", "amfi", pt); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	pt.Close = 46.0
	if err := repo.Upsert(ctx, "MF:100001", "amfi", pt); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	if got := testutil.CountPriceRows(t, db, "MF:100001"); got != 1 {
		t.Fatalf("upsert duplicated the date: %d rows", got)
	}
	latest, err := repo.Latest(ctx, "MF:100001")
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	if latest.Close != 46.0 {
		t.Errorf("expected the restated close, got %v", latest.Close)
	}
}

func TestPriceUpdateClose(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewPriceRepository(db)
	ctx := context.Background()

	points := testutil.CreatePriceSeries(t, db, "AAA.NS", 100)

	matched, err := repo.UpdateClose(ctx, "AAA.NS", points[0].Date, 105)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if !matched {
		t.Fatal("expected the existing row to match")
	}

	latest, err := repo.Latest(ctx, "AAA.NS")
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	if latest.Close != 105 {
		t.Errorf("expected corrected close 105, got %v", latest.Close)
	}

	matched, err = repo.UpdateClose(ctx, "AAA.NS", points[0].Date.AddDate(0, 0, 5), 110)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if matched {
		t.Error("expected no match for an unstored date")
	}
}

func TestNewestDate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewPriceRepository(db)
	ctx := context.Background()

	newest, err := repo.NewestDate(ctx)
	if err != nil {
		t.Fatalf("newest failed: %v", err)
	}
	if newest != nil {
		t.Errorf("expected nil on an empty table, got %v", newest)
	}

	testutil.CreatePriceSeries(t, db, "AAA.NS", 98, 99)
	testutil.CreatePriceSeries(t, db, "BBB.NS", 50, 51, 52)

	newest, err = repo.NewestDate(ctx)
	if err != nil {
		t.Fatalf("newest failed: %v", err)
	}
	want := testutil.Midnight(time.Now().UTC().AddDate(0, 0, -1))
	if newest == nil || !newest.Equal(want) {
		t.Errorf("expected %v, got %v", want, newest)
	}
}
