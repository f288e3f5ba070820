// Package nse fetches the NSE listed-equity master file.
//
// NSE serves the same CSV from several hosts with uneven availability and
// aggressive bot filtering, so the client tries each endpoint in order with
// browser-like headers and treats a suspiciously small payload as a miss.
package nse

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/investoscope/investoscope-backend/internal/apperrors"
	"github.com/investoscope/investoscope-backend/internal/logging"
)

// Equity is one row of the NSE equity master file.
type Equity struct {
	Symbol string
	Name   string
	Series string
	ISIN   string
}

// Client fetches the NSE equity catalogue.
type Client interface {
	ListedEquities(ctx context.Context) ([]Equity, error)
}

// Mirror hosts for the equity master CSV, tried in order.
var defaultEndpoints = []string{
	"https://archives.nseindia.com/content/equities/EQUITY_L.csv",
	"https://www1.nseindia.com/content/equities/EQUITY_L.csv",
	"https://nsearchives.nseindia.com/content/equities/EQUITY_L.csv",
}

// A bot-filter block page is well under this; the real file is several MB.
const minPayloadBytes = 10_000

const attemptTimeout = 30 * time.Second

// A full pass over the mirrors gets one retry after this pause.
const defaultRetryPause = 10 * time.Second

// HTTPClient is the production NSE client.
type HTTPClient struct {
	httpClient *http.Client
	endpoints  []string
	retryPause time.Duration
}

// NewHTTPClient creates an NSE client against the public mirror endpoints.
func NewHTTPClient() *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{Timeout: attemptTimeout},
		endpoints:  defaultEndpoints,
		retryPause: defaultRetryPause,
	}
}

// NewHTTPClientWithEndpoints creates an NSE client against explicit endpoints
// and retry pause.
func NewHTTPClientWithEndpoints(endpoints []string, retryPause time.Duration) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{Timeout: attemptTimeout},
		endpoints:  endpoints,
		retryPause: retryPause,
	}
}

// ListedEquities downloads and parses the equity master file, trying each
// mirror in order and retrying the whole pass once after a pause. Only rows
// in the EQ series (normal rolling settlement) are returned. When every
// mirror fails the error is a VendorUnavailableError wrapping the last
// attempt's failure.
func (c *HTTPClient) ListedEquities(ctx context.Context) ([]Equity, error) {
	var equities []Equity
	err := retry.Do(ctx, retry.WithMaxRetries(1, retry.NewConstant(c.retryPause)), func(ctx context.Context) error {
		var err error
		equities, err = c.fetchAny(ctx)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.NewVendorUnavailable("NSE", err,
			"check connectivity to nseindia.com",
			"the exchange may be blocking this network; retry later",
		)
	}

	return equities, nil
}

func (c *HTTPClient) fetchAny(ctx context.Context) ([]Equity, error) {
	var lastErr error
	for _, endpoint := range c.endpoints {
		equities, err := c.fetchOne(ctx, endpoint)
		if err == nil {
			return equities, nil
		}
		lastErr = err
		logging.Warn("NSE endpoint failed, trying next", logging.Fields{
			"endpoint": endpoint,
			"error":    err.Error(),
		})
	}

	return nil, lastErr
}

func (c *HTTPClient) fetchOne(ctx context.Context, endpoint string) ([]Equity, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build NSE request: %w", err)
	}
	// NSE rejects requests without browser-like headers.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	req.Header.Set("Accept", "text/csv,text/plain,*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", "https://www.nseindia.com/")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("NSE request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("NSE returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read NSE response: %w", err)
	}
	if len(body) < minPayloadBytes {
		return nil, fmt.Errorf("NSE payload suspiciously small (%d bytes), likely a block page", len(body))
	}

	return parseEquityCSV(string(body))
}

func parseEquityCSV(payload string) ([]Equity, error) {
	reader := csv.NewReader(strings.NewReader(payload))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read NSE CSV header: %w", err)
	}

	col := map[string]int{}
	for i, name := range header {
		col[strings.TrimSpace(strings.ToUpper(name))] = i
	}
	symbolIdx, ok := col["SYMBOL"]
	if !ok {
		return nil, fmt.Errorf("NSE CSV missing SYMBOL column")
	}
	nameIdx := colIndex(col, "NAME OF COMPANY")
	seriesIdx := colIndex(col, "SERIES")
	isinIdx := colIndex(col, "ISIN NUMBER")

	equities := []Equity{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse NSE CSV: %w", err)
		}
		if len(record) <= symbolIdx {
			continue
		}

		eq := Equity{
			Symbol: strings.TrimSpace(record[symbolIdx]),
			Name:   strings.TrimSpace(field(record, nameIdx)),
			Series: strings.TrimSpace(field(record, seriesIdx)),
			ISIN:   strings.TrimSpace(field(record, isinIdx)),
		}
		if eq.Symbol == "" || eq.Series != "EQ" {
			continue
		}
		equities = append(equities, eq)
	}

	if len(equities) == 0 {
		return nil, fmt.Errorf("NSE CSV contained no EQ-series rows")
	}

	return equities, nil
}

func colIndex(col map[string]int, name string) int {
	idx, ok := col[name]
	if !ok {
		return -1
	}
	return idx
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}
