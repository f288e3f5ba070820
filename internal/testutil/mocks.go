package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/investoscope/investoscope-backend/internal/amfi"
	"github.com/investoscope/investoscope-backend/internal/model"
	"github.com/investoscope/investoscope-backend/internal/nse"
)

// MockNSE is an in-memory nse.Client for testing.
type MockNSE struct {
	Equities []nse.Equity
	Err      error
}

// ListedEquities implements nse.Client.
func (m *MockNSE) ListedEquities(_ context.Context) ([]nse.Equity, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Equities, nil
}

// MockAMFI is an in-memory amfi.Client for testing.
type MockAMFI struct {
	Rows []amfi.Scheme
	Err  error
}

// Schemes implements amfi.Client.
func (m *MockAMFI) Schemes(_ context.Context) ([]amfi.Scheme, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Rows, nil
}

// MockMFAPI is an in-memory mfapi.Client for testing, keyed by scheme code.
type MockMFAPI struct {
	Histories map[string][]model.PricePoint
	Errs      map[string]error
}

// NAVHistory implements mfapi.Client.
func (m *MockMFAPI) NAVHistory(_ context.Context, schemeCode string) ([]model.PricePoint, error) {
	if err := m.Errs[schemeCode]; err != nil {
		return nil, err
	}
	return m.Histories[schemeCode], nil
}

// MockQuotes is an in-memory service.QuoteFetcher for testing. Prices are
// full ascending series per symbol; DailyPrices applies the since filter the
// way real vendors do.
type MockQuotes struct {
	mu           sync.Mutex
	Prices       map[string][]model.PricePoint
	Errs         map[string]error
	Fnd          map[string]*model.Fundamentals
	SourceName   string
	priceCalls   map[string]int
	fndCallCount int
}

// DailyPrices implements service.QuoteFetcher.
func (m *MockQuotes) DailyPrices(_ context.Context, symbol string, since *time.Time) ([]model.PricePoint, string, error) {
	m.mu.Lock()
	if m.priceCalls == nil {
		m.priceCalls = map[string]int{}
	}
	m.priceCalls[symbol]++
	m.mu.Unlock()

	if err := m.Errs[symbol]; err != nil {
		return nil, "", err
	}

	source := m.SourceName
	if source == "" {
		source = "mock"
	}

	points := []model.PricePoint{}
	for _, pt := range m.Prices[symbol] {
		if since != nil && pt.Date.Before(*since) {
			continue
		}
		points = append(points, pt)
	}
	return points, source, nil
}

// Fundamentals implements service.QuoteFetcher.
func (m *MockQuotes) Fundamentals(_ context.Context, symbol string) *model.Fundamentals {
	m.mu.Lock()
	m.fndCallCount++
	m.mu.Unlock()
	return m.Fnd[symbol]
}

// PriceCalls reports how many times DailyPrices was invoked for a symbol.
func (m *MockQuotes) PriceCalls(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.priceCalls[symbol]
}
