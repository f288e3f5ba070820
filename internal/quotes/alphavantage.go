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

const alphaVantageBaseURL = "https://www.alphavantage.co"

// AlphaVantageClient fetches daily closes from the AlphaVantage
// TIME_SERIES_DAILY API.
type AlphaVantageClient struct {
	httpClient *http.Client
	baseURL    string
	keys       KeyProvider
}

// NewAlphaVantageClient creates an AlphaVantage source resolving its API key
// through the provider.
func NewAlphaVantageClient(keys KeyProvider) *AlphaVantageClient {
	return &AlphaVantageClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    alphaVantageBaseURL,
		keys:       keys,
	}
}

// NewAlphaVantageClientWithURL creates an AlphaVantage source against an
// explicit base URL.
func NewAlphaVantageClientWithURL(baseURL string, keys KeyProvider) *AlphaVantageClient {
	return &AlphaVantageClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		keys:       keys,
	}
}

// Name implements Source.
func (c *AlphaVantageClient) Name() string { return "alphavantage" }

type alphaVantageResponse struct {
	Note         string                       `json:"Note"`
	Information  string                       `json:"Information"`
	ErrorMessage string                       `json:"Error Message"`
	Series       map[string]map[string]string `json:"Time Series (Daily)"`
}

// DailyPrices implements Source. AlphaVantage has no server-side date filter;
// a recent since hint selects the compact (100 row) output and the series is
// filtered client-side.
func (c *AlphaVantageClient) DailyPrices(ctx context.Context, symbol string, since *time.Time) ([]model.PricePoint, error) {
	key, err := c.keys.AlphaVantageKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve AlphaVantage key: %w", err)
	}
	if key == "" {
		return nil, fmt.Errorf("AlphaVantage API key not configured")
	}

	outputSize := "full"
	if since != nil && time.Since(*since) < 100*24*time.Hour {
		outputSize = "compact"
	}

	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY")
	params.Set("symbol", symbol)
	params.Set("apikey", key)
	params.Set("outputsize", outputSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/query?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build AlphaVantage request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("AlphaVantage request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("AlphaVantage rate limit exceeded (429)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("AlphaVantage returned status %d", resp.StatusCode)
	}

	var payload alphaVantageResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode AlphaVantage response: %w", err)
	}
	// Quota exhaustion arrives as HTTP 200 with a Note/Information field.
	if payload.Note != "" {
		return nil, fmt.Errorf("AlphaVantage rate limit: %s", payload.Note)
	}
	if payload.Information != "" {
		return nil, fmt.Errorf("AlphaVantage rate limit: %s", payload.Information)
	}
	if payload.ErrorMessage != "" {
		return nil, fmt.Errorf("AlphaVantage error: %s", payload.ErrorMessage)
	}
	if len(payload.Series) == 0 {
		return nil, fmt.Errorf("AlphaVantage returned no daily series for %s", symbol)
	}

	points := make([]model.PricePoint, 0, len(payload.Series))
	for dateStr, fields := range payload.Series {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		if since != nil && date.Before(*since) {
			continue
		}
		close, err := parseQuoteField(fields, "4. close")
		if err != nil || close <= 0 {
			continue
		}
		points = append(points, model.PricePoint{Date: date.UTC(), Close: close})
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	return points, nil
}

func parseQuoteField(fields map[string]string, key string) (float64, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("missing field %s", key)
	}
	return strconv.ParseFloat(raw, 64)
}
