package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/investoscope/investoscope-backend/internal/apperrors"
	"github.com/investoscope/investoscope-backend/internal/model"
	"github.com/investoscope/investoscope-backend/internal/repository"
	"github.com/investoscope/investoscope-backend/internal/testutil"
)

// fetchBySymbol reads back a single option through the reconciler's lookup.
func fetchBySymbol(t *testing.T, repo *repository.OptionRepository, symbol string) model.InvestmentOption {
	t.Helper()

	matches, err := repo.FindBySymbol(context.Background(), symbol)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected exactly 1 match for %s, got %d", symbol, len(matches))
	}
	return matches[0]
}

func TestOptionInsertRoundtrip(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewOptionRepository(db)
	ctx := context.Background()

	price := 1520.5
	pe := 28.4
	opt := model.InvestmentOption{
		Category:  model.CategoryStock,
		Name:      "Infosys Limited",
		Symbol:    "INFY.NS",
		UnitPrice: &price,
		PERatio:   &pe,
		RiskLevel: "HIGH",
		Active:    true,
	}

	if err := repo.Insert(ctx, &opt); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if opt.ID == "" {
		t.Fatal("insert should generate an ID")
	}
	if opt.LastUpdated.IsZero() {
		t.Fatal("insert should stamp last_updated")
	}

	got := fetchBySymbol(t, repo, "INFY.NS")
	if got.ID != opt.ID || got.Name != "Infosys Limited" {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
	if got.UnitPrice == nil || *got.UnitPrice != 1520.5 {
		t.Errorf("unit price lost: %+v", got.UnitPrice)
	}
	if got.PERatio == nil || *got.PERatio != 28.4 {
		t.Errorf("pe ratio lost: %+v", got.PERatio)
	}
	if got.SubtypeMF != nil || got.PriceHash != nil {
		t.Errorf("expected nil optional fields, got %+v", got)
	}
}

func TestOptionUpdateMissingRow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewOptionRepository(db)

	opt := model.InvestmentOption{ID: "nope", Category: model.CategoryStock, Name: "Ghost"}
	if err := repo.Update(context.Background(), &opt); !errors.Is(err, apperrors.ErrOptionNotFound) {
		t.Errorf("expected ErrOptionNotFound, got %v", err)
	}
}

func TestFindBySymbolOrdering(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewOptionRepository(db)

	older := testutil.NewOption().WithSymbol("DUP.NS").
		WithLastUpdated(time.Now().UTC().Add(-72 * time.Hour)).Build(t, db)
	newer := testutil.NewOption().WithSymbol("DUP.NS").
		WithLastUpdated(time.Now().UTC().Add(-24 * time.Hour)).Build(t, db)

	matches, err := repo.FindBySymbol(context.Background(), "DUP.NS")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].ID != newer.ID || matches[1].ID != older.ID {
		t.Errorf("expected newest last_updated first, got %s then %s", matches[0].ID, matches[1].ID)
	}
}

func TestListActive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewOptionRepository(db)
	ctx := context.Background()

	testutil.NewOption().WithSymbol("AAA.NS").Build(t, db)
	testutil.NewOption().WithSymbol("BBB.NS").WithCategory(model.CategoryETF).Build(t, db)
	testutil.NewOption().WithSymbol("CCC.NS").Inactive().Build(t, db)
	testutil.NewOption().WithSymbol("").Build(t, db)
	testutil.NewOption().AsMutualFund("100001").Build(t, db)

	t.Run("filters category and active", func(t *testing.T) {
		opts, err := repo.ListActive(ctx, 0, model.CategoryStock, model.CategoryETF)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(opts) != 2 {
			t.Fatalf("expected 2 options, got %d: %+v", len(opts), opts)
		}
		if opts[0].Symbol != "AAA.NS" || opts[1].Symbol != "BBB.NS" {
			t.Errorf("expected symbol ordering, got %s then %s", opts[0].Symbol, opts[1].Symbol)
		}
	})

	t.Run("mutual funds separately", func(t *testing.T) {
		opts, err := repo.ListActive(ctx, 0, model.CategoryMutualFund)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(opts) != 1 || opts[0].Symbol != "100001" {
			t.Errorf("unexpected funds: %+v", opts)
		}
	})

	t.Run("limit applies", func(t *testing.T) {
		opts, err := repo.ListActive(ctx, 1, model.CategoryStock, model.CategoryETF)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(opts) != 1 {
			t.Errorf("expected 1 option with limit, got %d", len(opts))
		}
	})
}

func TestDeactivateByIDs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewOptionRepository(db)
	ctx := context.Background()

	a := testutil.NewOption().WithSymbol("AAA.NS").Build(t, db)
	b := testutil.NewOption().WithSymbol("BBB.NS").Build(t, db)
	keep := testutil.NewOption().WithSymbol("CCC.NS").Build(t, db)

	if err := repo.DeactivateByIDs(ctx, []string{a.ID, b.ID}); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	for _, symbol := range []string{a.Symbol, b.Symbol} {
		if got := testutil.CountActiveBySymbol(t, db, symbol); got != 0 {
			t.Errorf("%s still active", symbol)
		}
	}
	if got := testutil.CountActiveBySymbol(t, db, keep.Symbol); got != 1 {
		t.Errorf("unrelated option deactivated")
	}

	// Empty set is a no-op, not an error.
	if err := repo.DeactivateByIDs(ctx, nil); err != nil {
		t.Errorf("empty deactivate failed: %v", err)
	}
}

func TestUpdateFundamentals(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewOptionRepository(db)
	ctx := context.Background()

	lastUpdated := time.Now().UTC().Add(-48 * time.Hour)
	opt := testutil.NewOption().WithSymbol("INFY.NS").WithLastUpdated(lastUpdated).Build(t, db)

	pe := 28.4
	beta := 0.92
	wrote, err := repo.UpdateFundamentals(ctx, opt.ID, model.Fundamentals{PERatio: &pe, Beta: &beta})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if !wrote {
		t.Fatal("expected a write")
	}

	got := fetchBySymbol(t, repo, opt.Symbol)
	if got.PERatio == nil || *got.PERatio != 28.4 {
		t.Errorf("pe ratio not written: %+v", got.PERatio)
	}
	if got.Beta == nil || *got.Beta != 0.92 {
		t.Errorf("beta not written: %+v", got.Beta)
	}
	if got.MarketCapValue != nil {
		t.Errorf("market cap should stay nil, got %v", *got.MarketCapValue)
	}
	if diff := got.LastUpdated.Sub(lastUpdated); diff < -time.Second || diff > time.Second {
		t.Errorf("fundamentals write must not touch last_updated: %v vs %v", got.LastUpdated, lastUpdated)
	}

	t.Run("all nil is a no-op", func(t *testing.T) {
		wrote, err := repo.UpdateFundamentals(ctx, opt.ID, model.Fundamentals{})
		if err != nil {
			t.Fatalf("update failed: %v", err)
		}
		if wrote {
			t.Error("expected no write for an empty fundamentals block")
		}
	})
}
