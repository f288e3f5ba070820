package amfi_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/investoscope/investoscope-backend/internal/amfi"
	"github.com/investoscope/investoscope-backend/internal/apperrors"
)

const sampleFeed = `Scheme Code;ISIN Div Payout/ ISIN Growth;ISIN Div Reinvestment;Scheme Name;Net Asset Value;Date

Open Ended Schemes ( Debt Scheme - Banking and PSU Fund )

Aditya Birla Sun Life Mutual Fund

119551;INF209KA12Z1;INF209KA13Z9;Aditya Birla Sun Life Banking & PSU Debt Fund;345.6788;29-Aug-2026
119552;INF209K01YM2;-;Aditya Birla Sun Life Liquid Fund - Growth;1,024.5512;29-Aug-2026
119553;INF209K01XN3;-;Aditya Birla Sun Life Frontline Equity Fund;N.A.;29-Aug-2026
119554;INF209K01AB1;-;Aditya Birla Sun Life Midcap Fund;512.33;BadDate

Open Ended Schemes ( Equity Scheme - Large Cap Fund )

Axis Mutual Fund

120465;INF846K01EW2;-;Axis Bluechip Fund - Growth;58.41;29-Aug-2026
`

func TestParseFeed(t *testing.T) {
	schemes, err := amfi.ParseFeed(strings.NewReader(sampleFeed))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if len(schemes) != 3 {
		t.Fatalf("expected 3 parsable rows, got %d: %+v", len(schemes), schemes)
	}

	first := schemes[0]
	if first.Code != "119551" {
		t.Errorf("unexpected code: %s", first.Code)
	}
	if first.Name != "Aditya Birla Sun Life Banking & PSU Debt Fund" {
		t.Errorf("unexpected name: %s", first.Name)
	}
	if first.NAV != 345.6788 {
		t.Errorf("unexpected NAV: %v", first.NAV)
	}
	want := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	if !first.NAVDate.Equal(want) {
		t.Errorf("unexpected NAV date: %v", first.NAVDate)
	}

	// Thousands separators are stripped.
	if schemes[1].NAV != 1024.5512 {
		t.Errorf("comma NAV mishandled: %v", schemes[1].NAV)
	}
}

func TestLatestNavMap(t *testing.T) {
	older := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	navs := amfi.LatestNavMap([]amfi.Scheme{
		{Code: "100001", NAV: 100, NAVDate: newer},
		{Code: "100001", NAV: 99, NAVDate: older},
		{Code: "100002", NAV: 50, NAVDate: older},
		{Code: "100002", NAV: 51, NAVDate: newer},
	})

	if len(navs) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(navs))
	}
	if navs["100001"].NAV != 100 {
		t.Errorf("expected the newest NAV to win regardless of feed order, got %v", navs["100001"].NAV)
	}
	if navs["100002"].NAV != 51 {
		t.Errorf("expected the newest NAV to win, got %v", navs["100002"].NAV)
	}
}

func TestSchemes(t *testing.T) {
	t.Run("fetches and parses the feed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, sampleFeed)
		}))
		defer server.Close()

		client := amfi.NewHTTPClientWithURL(server.URL, time.Millisecond)
		schemes, err := client.Schemes(context.Background())
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if len(schemes) != 3 {
			t.Errorf("expected 3 schemes, got %d", len(schemes))
		}
	})

	t.Run("empty feed parses to no schemes", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "Open Ended Schemes ( Debt Scheme )\n\nNothing here\n")
		}))
		defer server.Close()

		client := amfi.NewHTTPClientWithURL(server.URL, time.Millisecond)
		schemes, err := client.Schemes(context.Background())
		if err != nil {
			t.Fatalf("an empty feed must not be an error: %v", err)
		}
		if len(schemes) != 0 {
			t.Errorf("expected no schemes, got %d", len(schemes))
		}
	})

	t.Run("http error is a vendor failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := amfi.NewHTTPClientWithURL(server.URL, time.Millisecond)
		_, err := client.Schemes(context.Background())
		if !apperrors.IsVendorUnavailable(err) {
			t.Errorf("expected a vendor-unavailable error, got %v", err)
		}
	})

	t.Run("retries a transient failure", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			fmt.Fprint(w, sampleFeed)
		}))
		defer server.Close()

		client := amfi.NewHTTPClientWithURL(server.URL, time.Millisecond)
		schemes, err := client.Schemes(context.Background())
		if err != nil {
			t.Fatalf("expected the retry to recover: %v", err)
		}
		if len(schemes) != 3 {
			t.Errorf("expected 3 schemes from the second attempt, got %d", len(schemes))
		}
		if calls != 2 {
			t.Errorf("expected exactly one retry, got %d calls", calls)
		}
	})
}
