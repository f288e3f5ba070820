package service_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/investoscope/investoscope-backend/internal/alerting"
	"github.com/investoscope/investoscope-backend/internal/amfi"
	"github.com/investoscope/investoscope-backend/internal/config"
	"github.com/investoscope/investoscope-backend/internal/mailer"
	"github.com/investoscope/investoscope-backend/internal/model"
	"github.com/investoscope/investoscope-backend/internal/nse"
	"github.com/investoscope/investoscope-backend/internal/progress"
	"github.com/investoscope/investoscope-backend/internal/repository"
	"github.com/investoscope/investoscope-backend/internal/service"
	"github.com/investoscope/investoscope-backend/internal/testutil"
)

func equity(symbol, name string) nse.Equity {
	return nse.Equity{Symbol: symbol, Name: name, Series: "EQ"}
}

func TestCatalogueSyncEndToEnd(t *testing.T) {
	db := testutil.SetupTestDB(t)

	// Active catalogue {A, B, D}; vendor now lists {A, B, C}.
	testutil.NewOption().WithSymbol("AAA.NS").WithName("Alpha Ltd").Build(t, db)
	testutil.NewOption().WithSymbol("BBB.NS").WithName("Beta Ltd").Build(t, db)
	stale := testutil.NewOption().WithSymbol("DDD.NS").WithName("Delta Ltd").Build(t, db)

	mockNSE := &testutil.MockNSE{Equities: []nse.Equity{
		equity("AAA", "Alpha Ltd"),
		equity("BBB", "Beta Ltd"),
		equity("CCC", "Gamma Ltd"),
	}}
	svc := testutil.NewTestCatalogueService(t, db, mockNSE, &testutil.MockAMFI{}, &testutil.MockQuotes{})

	summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("catalogue sync failed: %v", err)
	}

	if summary.StockCreated != 1 {
		t.Errorf("expected 1 created, got %d", summary.StockCreated)
	}
	if summary.StockUpdated != 2 {
		t.Errorf("expected 2 updated, got %d", summary.StockUpdated)
	}
	if summary.StockDeactivated != 1 {
		t.Errorf("expected 1 deactivated, got %d", summary.StockDeactivated)
	}

	for _, symbol := range []string{"AAA.NS", "BBB.NS", "CCC.NS"} {
		if got := testutil.CountActiveBySymbol(t, db, symbol); got != 1 {
			t.Errorf("expected %s active, got %d active rows", symbol, got)
		}
	}
	if got := testutil.CountActiveBySymbol(t, db, stale.Symbol); got != 0 {
		t.Errorf("expected %s deactivated, got %d active rows", stale.Symbol, got)
	}
}

func TestCatalogueSyncIdempotence(t *testing.T) {
	db := testutil.SetupTestDB(t)

	mockNSE := &testutil.MockNSE{Equities: []nse.Equity{
		equity("AAA", "Alpha Ltd"),
		equity("NIFTYBEES", "Nippon India ETF Nifty BeES"),
	}}
	mockAMFI := &testutil.MockAMFI{Rows: []amfi.Scheme{
		{Code: "100001", Name: "Axis Bluechip Fund", NAV: 45.5, NAVDate: time.Now().UTC()},
	}}
	svc := testutil.NewTestCatalogueService(t, db, mockNSE, mockAMFI, &testutil.MockQuotes{})

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	countAfterFirst := testutil.CountOptions(t, db)

	summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if got := testutil.CountOptions(t, db); got != countAfterFirst {
		t.Errorf("second run changed record count: %d -> %d", countAfterFirst, got)
	}
	if summary.StockCreated != 0 || summary.MFCreated != 0 {
		t.Errorf("second run created records: %+v", summary)
	}
	for _, symbol := range []string{"AAA.NS", "NIFTYBEES.NS", "100001"} {
		if got := testutil.CountActiveBySymbol(t, db, symbol); got != 1 {
			t.Errorf("expected exactly 1 active row for %s, got %d", symbol, got)
		}
	}
}

func TestReconcileSecurityDuplicateRepair(t *testing.T) {
	db := testutil.SetupTestDB(t)

	older := testutil.NewOption().WithSymbol("AAA.NS").WithName("Alpha Old").
		WithLastUpdated(time.Now().UTC().Add(-240 * time.Hour)).Build(t, db)
	newer := testutil.NewOption().WithSymbol("AAA.NS").WithName("Alpha New").
		WithLastUpdated(time.Now().UTC().Add(-48 * time.Hour)).Build(t, db)

	svc := testutil.NewTestCatalogueService(t, db, &testutil.MockNSE{}, &testutil.MockAMFI{}, &testutil.MockQuotes{})

	status, symbol, err := svc.ReconcileSecurity(context.Background(), equity("AAA", "Alpha Ltd"))
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if status != "updated" || symbol != "AAA.NS" {
		t.Errorf("expected updated/AAA.NS, got %s/%s", status, symbol)
	}

	if got := testutil.CountActiveBySymbol(t, db, "AAA.NS"); got != 1 {
		t.Fatalf("expected duplicate repair to leave 1 active row, got %d", got)
	}

	var activeID string
	if err := db.QueryRow(`SELECT id FROM investment_option WHERE symbol = ? AND active = TRUE`, "AAA.NS").Scan(&activeID); err != nil {
		t.Fatalf("failed to query survivor: %v", err)
	}
	if activeID != newer.ID {
		t.Errorf("survivor should be the most recently updated record %s, got %s", newer.ID, activeID)
	}
	if got := testutil.CountActiveBySymbol(t, db, older.Symbol); got != 1 {
		t.Errorf("unexpected active count: %d", got)
	}
}

func TestStalenessGuard(t *testing.T) {
	t.Run("30 percent coverage deactivates nothing", func(t *testing.T) {
		db := testutil.SetupTestDB(t)

		equities := []nse.Equity{}
		for i := 0; i < 10; i++ {
			symbol := fmt.Sprintf("SYM%d", i)
			testutil.NewOption().WithSymbol(symbol + ".NS").WithName("Company " + symbol).Build(t, db)
			if i < 3 {
				equities = append(equities, equity(symbol, "Company "+symbol))
			}
		}

		svc := testutil.NewTestCatalogueService(t, db, &testutil.MockNSE{Equities: equities}, &testutil.MockAMFI{}, &testutil.MockQuotes{})
		summary, err := svc.Run(context.Background())
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}

		if summary.StockDeactivated != 0 {
			t.Errorf("expected no deactivations at 30%% coverage, got %d", summary.StockDeactivated)
		}
	})

	t.Run("60 percent coverage deactivates the missing", func(t *testing.T) {
		db := testutil.SetupTestDB(t)

		equities := []nse.Equity{}
		for i := 0; i < 10; i++ {
			symbol := fmt.Sprintf("SYM%d", i)
			testutil.NewOption().WithSymbol(symbol + ".NS").WithName("Company " + symbol).Build(t, db)
			if i < 6 {
				equities = append(equities, equity(symbol, "Company "+symbol))
			}
		}

		svc := testutil.NewTestCatalogueService(t, db, &testutil.MockNSE{Equities: equities}, &testutil.MockAMFI{}, &testutil.MockQuotes{})
		summary, err := svc.Run(context.Background())
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}

		if summary.StockDeactivated != 4 {
			t.Errorf("expected 4 deactivations at 60%% coverage, got %d", summary.StockDeactivated)
		}
	})

	t.Run("empty AMFI feed deactivates no funds", func(t *testing.T) {
		db := testutil.SetupTestDB(t)

		for i := 0; i < 5; i++ {
			testutil.NewOption().AsMutualFund(fmt.Sprintf("10000%d", i)).
				WithName(fmt.Sprintf("Fund %d", i)).Build(t, db)
		}

		svc := testutil.NewTestCatalogueService(t, db, &testutil.MockNSE{Equities: []nse.Equity{equity("AAA", "Alpha Ltd")}}, &testutil.MockAMFI{}, &testutil.MockQuotes{})
		summary, err := svc.Run(context.Background())
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}

		if summary.MFDeactivated != 0 {
			t.Errorf("expected no fund deactivations on an empty feed, got %d", summary.MFDeactivated)
		}
	})
}

func TestCatalogueSyncVendorOutage(t *testing.T) {
	db := testutil.SetupTestDB(t)

	mockNSE := &testutil.MockNSE{Err: fmt.Errorf("NSE feed unavailable: all mirrors down")}
	svc := testutil.NewTestCatalogueService(t, db, mockNSE, &testutil.MockAMFI{}, &testutil.MockQuotes{})

	if _, err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected a vendor outage to fail the job")
	}

	var status string
	err := db.QueryRow(`SELECT status FROM sync_log WHERE job_id = ? ORDER BY started_at DESC LIMIT 1`, "sync-catalogue").Scan(&status)
	if err != nil {
		t.Fatalf("failed to query sync log: %v", err)
	}
	if status != string(model.SyncStatusError) {
		t.Errorf("expected sync log closed as error, got %s", status)
	}
}

func TestCatalogueSyncRepeatedFailureEscalation(t *testing.T) {
	db := testutil.SetupTestDB(t)

	var mu sync.Mutex
	bodies := []string{}
	slack := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		mu.Unlock()
	}))
	defer slack.Close()

	notifier := alerting.NewNotifier(config.AlertConfig{SlackWebhookURL: slack.URL}, mailer.New(config.SMTPConfig{}))
	svc := service.NewCatalogueService(
		repository.NewOptionRepository(db),
		repository.NewSyncLogRepository(db),
		&testutil.MockNSE{Err: fmt.Errorf("NSE feed unavailable: all mirrors down")},
		&testutil.MockAMFI{},
		&testutil.MockQuotes{},
		progress.NewMemoryStore(),
		progress.NewRunGuard(),
		notifier,
		2,
	)

	if _, err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected the first run to fail")
	}
	if _, err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected the second run to fail")
	}

	mu.Lock()
	defer mu.Unlock()
	escalations := 0
	for _, body := range bodies {
		if strings.Contains(body, "failing repeatedly") {
			escalations++
		}
	}
	if escalations != 1 {
		t.Errorf("expected one escalation once the failure streak hit the threshold, got %d (of %d posts)", escalations, len(bodies))
	}
}

func TestReconcileMutualFundDefaults(t *testing.T) {
	db := testutil.SetupTestDB(t)

	svc := testutil.NewTestCatalogueService(t, db, &testutil.MockNSE{}, &testutil.MockAMFI{}, &testutil.MockQuotes{})

	status, symbol, err := svc.ReconcileMutualFund(context.Background(), amfi.Scheme{
		Code: "100001", Name: "ICICI Prudential Liquid Fund", NAV: 310.22, NAVDate: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if status != "created" || symbol != "100001" {
		t.Errorf("expected created/100001, got %s/%s", status, symbol)
	}

	var minLumpSum, minSIP, nav float64
	var riskLevel string
	err = db.QueryRow(`SELECT min_lump_sum, min_sip, unit_price, risk_level FROM investment_option WHERE symbol = ?`, "100001").
		Scan(&minLumpSum, &minSIP, &nav, &riskLevel)
	if err != nil {
		t.Fatalf("failed to query fund: %v", err)
	}
	if minLumpSum != 100 || minSIP != 100 {
		t.Errorf("expected default minimums of 100, got %v/%v", minLumpSum, minSIP)
	}
	if nav != 310.22 {
		t.Errorf("expected NAV 310.22, got %v", nav)
	}
	if riskLevel != "LOW" {
		t.Errorf("expected LOW risk for a liquid fund, got %s", riskLevel)
	}
}

func TestReconcileSecuritySkipsBlankRows(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := testutil.NewTestCatalogueService(t, db, &testutil.MockNSE{}, &testutil.MockAMFI{}, &testutil.MockQuotes{})

	status, _, err := svc.ReconcileSecurity(context.Background(), nse.Equity{Symbol: "", Name: "No Symbol Ltd"})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if status != "skipped" {
		t.Errorf("expected skipped for blank symbol, got %s", status)
	}
	if got := testutil.CountOptions(t, db); got != 0 {
		t.Errorf("blank row should not create records, got %d", got)
	}
}
