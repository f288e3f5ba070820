// Package mfapi fetches per-scheme NAV history from the mfapi.in service.
package mfapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/investoscope/investoscope-backend/internal/apperrors"
	"github.com/investoscope/investoscope-backend/internal/model"
)

// Client fetches NAV history for one AMFI scheme code.
type Client interface {
	NAVHistory(ctx context.Context, schemeCode string) ([]model.PricePoint, error)
}

const defaultBaseURL = "https://api.mfapi.in"

const navDateLayout = "02-01-2006"

// A failed fetch gets one retry after this pause; rate limits do not.
const defaultRetryPause = 10 * time.Second

// HTTPClient is the production mfapi.in client.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	retryPause time.Duration
}

// NewHTTPClient creates an mfapi.in client against the public API.
func NewHTTPClient() *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		retryPause: defaultRetryPause,
	}
}

// NewHTTPClientWithURL creates an mfapi.in client against an explicit base
// URL and retry pause.
func NewHTTPClientWithURL(baseURL string, retryPause time.Duration) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		retryPause: retryPause,
	}
}

type navResponse struct {
	Status string `json:"status"`
	Data   []struct {
		Date string `json:"date"`
		NAV  string `json:"nav"`
	} `json:"data"`
}

// NAVHistory fetches the full NAV series for a scheme, oldest first. Rows
// with unparsable dates or NAVs are skipped; the feed serves newest-first and
// occasionally interleaves malformed rows. Transient failures get one retry
// after a pause; a rate limit surfaces immediately.
func (c *HTTPClient) NAVHistory(ctx context.Context, schemeCode string) ([]model.PricePoint, error) {
	var points []model.PricePoint
	err := retry.Do(ctx, retry.WithMaxRetries(1, retry.NewConstant(c.retryPause)), func(ctx context.Context) error {
		var err error
		points, err = c.fetch(ctx, schemeCode)
		if err != nil && !apperrors.IsRateLimited(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	return points, err
}

func (c *HTTPClient) fetch(ctx context.Context, schemeCode string) ([]model.PricePoint, error) {
	url := fmt.Sprintf("%s/mf/%s", c.baseURL, schemeCode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build mfapi request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewVendorUnavailable("mfapi.in", err,
			"check connectivity to api.mfapi.in",
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("mfapi.in rate limit exceeded (429) for scheme %s", schemeCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mfapi.in returned status %d for scheme %s", resp.StatusCode, schemeCode)
	}

	var payload navResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode mfapi response for scheme %s: %w", schemeCode, err)
	}

	points := make([]model.PricePoint, 0, len(payload.Data))
	for _, row := range payload.Data {
		date, err := time.Parse(navDateLayout, row.Date)
		if err != nil {
			continue
		}
		nav, err := strconv.ParseFloat(row.NAV, 64)
		if err != nil || nav <= 0 {
			continue
		}
		points = append(points, model.PricePoint{Date: date.UTC(), Close: nav})
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	return points, nil
}
