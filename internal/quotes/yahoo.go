package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/investoscope/investoscope-backend/internal/model"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooClient fetches daily closes from the Yahoo Finance chart API and
// fundamentals from the quoteSummary API. It needs no API key, which makes
// it the terminal fallback in the vendor chain.
type YahooClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewYahooClient creates a Yahoo Finance source against the public API.
func NewYahooClient() *YahooClient {
	return &YahooClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    yahooBaseURL,
	}
}

// NewYahooClientWithURL creates a Yahoo Finance source against an explicit
// base URL.
func NewYahooClientWithURL(baseURL string) *YahooClient {
	return &YahooClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
	}
}

// Name implements Source.
func (c *YahooClient) Name() string { return "yahoo" }

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// DailyPrices implements Source. The range requested from Yahoo is sized to
// the since hint; null closes (market holidays) are skipped.
func (c *YahooClient) DailyPrices(ctx context.Context, symbol string, since *time.Time) ([]model.PricePoint, error) {
	url := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=%s", c.baseURL, symbol, rangeFor(since))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build Yahoo request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Yahoo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("Yahoo rate limit exceeded (429)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Yahoo returned status %d", resp.StatusCode)
	}

	var payload yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode Yahoo response: %w", err)
	}
	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("Yahoo error %s: %s", payload.Chart.Error.Code, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 || len(payload.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("Yahoo returned no chart data for %s", symbol)
	}

	result := payload.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close

	points := []model.PricePoint{}
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil || *closes[i] <= 0 {
			continue
		}
		date := time.Unix(ts, 0).UTC()
		if since != nil && date.Before(*since) {
			continue
		}
		points = append(points, model.PricePoint{Date: date, Close: *closes[i]})
	}

	return points, nil
}

func rangeFor(since *time.Time) string {
	if since == nil {
		return "1y"
	}
	days := int(time.Since(*since).Hours() / 24)
	switch {
	case days <= 5:
		return "5d"
	case days <= 28:
		return "1mo"
	case days <= 85:
		return "3mo"
	case days <= 175:
		return "6mo"
	default:
		return "1y"
	}
}

type yahooSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			SummaryDetail struct {
				TrailingPE yahooValue `json:"trailingPE"`
				Beta       yahooValue `json:"beta"`
				MarketCap  yahooValue `json:"marketCap"`
			} `json:"summaryDetail"`
			DefaultKeyStatistics struct {
				Beta yahooValue `json:"beta"`
			} `json:"defaultKeyStatistics"`
			FundProfile struct {
				FeesExpensesInvestment struct {
					AnnualReportExpenseRatio yahooValue `json:"annualReportExpenseRatio"`
				} `json:"feesExpensesInvestment"`
			} `json:"fundProfile"`
		} `json:"result"`
	} `json:"quoteSummary"`
}

type yahooValue struct {
	Raw *float64 `json:"raw"`
}

// Fundamentals implements FundamentalsSource. Any field Yahoo omits stays
// nil; a missing module is not an error.
func (c *YahooClient) Fundamentals(ctx context.Context, symbol string) (*model.Fundamentals, error) {
	url := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=summaryDetail,defaultKeyStatistics,fundProfile", c.baseURL, symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build Yahoo request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Yahoo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Yahoo returned status %d", resp.StatusCode)
	}

	var payload yahooSummaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode Yahoo summary: %w", err)
	}
	if len(payload.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("Yahoo returned no summary for %s", symbol)
	}

	r := payload.QuoteSummary.Result[0]
	f := &model.Fundamentals{
		PERatio:      r.SummaryDetail.TrailingPE.Raw,
		Beta:         r.SummaryDetail.Beta.Raw,
		MarketCap:    r.SummaryDetail.MarketCap.Raw,
		ExpenseRatio: r.FundProfile.FeesExpensesInvestment.AnnualReportExpenseRatio.Raw,
	}
	if f.Beta == nil {
		f.Beta = r.DefaultKeyStatistics.Beta.Raw
	}

	return f, nil
}
