package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/investoscope/investoscope-backend/internal/model"
)

const twelveDataBaseURL = "https://api.twelvedata.com"

// TwelveDataClient fetches daily closes from the TwelveData time_series API.
type TwelveDataClient struct {
	httpClient *http.Client
	baseURL    string
	keys       KeyProvider
}

// NewTwelveDataClient creates a TwelveData source resolving its API key
// through the provider.
func NewTwelveDataClient(keys KeyProvider) *TwelveDataClient {
	return &TwelveDataClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    twelveDataBaseURL,
		keys:       keys,
	}
}

// NewTwelveDataClientWithURL creates a TwelveData source against an explicit
// base URL.
func NewTwelveDataClientWithURL(baseURL string, keys KeyProvider) *TwelveDataClient {
	return &TwelveDataClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		keys:       keys,
	}
}

// Name implements Source.
func (c *TwelveDataClient) Name() string { return "twelvedata" }

type twelveDataResponse struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Values  []struct {
		Datetime string `json:"datetime"`
		Close    string `json:"close"`
	} `json:"values"`
}

// DailyPrices implements Source. A since hint becomes a server-side
// start_date filter.
func (c *TwelveDataClient) DailyPrices(ctx context.Context, symbol string, since *time.Time) ([]model.PricePoint, error) {
	key, err := c.keys.TwelveDataKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve TwelveData key: %w", err)
	}
	if key == "" {
		return nil, fmt.Errorf("TwelveData API key not configured")
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", "1day")
	params.Set("apikey", key)
	params.Set("outputsize", "90")
	if since != nil {
		params.Set("start_date", since.UTC().Format("2006-01-02"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/time_series?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build TwelveData request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("TwelveData request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("TwelveData rate limit exceeded (429)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("TwelveData returned status %d", resp.StatusCode)
	}

	var payload twelveDataResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode TwelveData response: %w", err)
	}
	// TwelveData reports quota errors in-band with HTTP 200.
	if payload.Status == "error" {
		return nil, fmt.Errorf("TwelveData error %d: %s", payload.Code, payload.Message)
	}

	points := make([]model.PricePoint, 0, len(payload.Values))
	for _, v := range payload.Values {
		date, err := time.Parse("2006-01-02", v.Datetime)
		if err != nil {
			continue
		}
		close, err := strconv.ParseFloat(v.Close, 64)
		if err != nil || close <= 0 {
			continue
		}
		if since != nil && date.Before(*since) {
			continue
		}
		points = append(points, model.PricePoint{Date: date.UTC(), Close: close})
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	return points, nil
}
