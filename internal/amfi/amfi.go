// Package amfi fetches the AMFI daily NAV feed for Indian mutual funds.
//
// The feed is a single semicolon-delimited text file interleaved with fund
// house and scheme-type section headers; anything that does not parse as a
// scheme row is skipped.
package amfi

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/investoscope/investoscope-backend/internal/apperrors"
)

// Scheme is one mutual fund scheme row of the NAV feed.
type Scheme struct {
	Code    string
	Name    string
	NAV     float64
	NAVDate time.Time
}

// Client fetches the AMFI scheme catalogue with latest NAVs.
type Client interface {
	Schemes(ctx context.Context) ([]Scheme, error)
}

// NavEntry is the latest published NAV for one scheme.
type NavEntry struct {
	Date time.Time
	NAV  float64
}

// LatestNavMap collapses the feed into schemeCode → latest NAV. When the
// feed repeats a code the most recent date wins.
func LatestNavMap(schemes []Scheme) map[string]NavEntry {
	out := make(map[string]NavEntry, len(schemes))
	for _, s := range schemes {
		if existing, ok := out[s.Code]; ok && !s.NAVDate.After(existing.Date) {
			continue
		}
		out[s.Code] = NavEntry{Date: s.NAVDate, NAV: s.NAV}
	}
	return out
}

const defaultFeedURL = "https://www.amfiindia.com/spages/NAVAll.txt"

const navDateLayout = "02-Jan-2006"

// A failed feed download gets one retry after this pause.
const defaultRetryPause = 10 * time.Second

// HTTPClient is the production AMFI client.
type HTTPClient struct {
	httpClient *http.Client
	feedURL    string
	retryPause time.Duration
}

// NewHTTPClient creates an AMFI client against the public NAV feed.
func NewHTTPClient() *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		feedURL:    defaultFeedURL,
		retryPause: defaultRetryPause,
	}
}

// NewHTTPClientWithURL creates an AMFI client against an explicit feed URL
// and retry pause.
func NewHTTPClientWithURL(feedURL string, retryPause time.Duration) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		feedURL:    feedURL,
		retryPause: retryPause,
	}
}

// Schemes downloads and parses the NAV feed, retrying once after a pause on
// a failed fetch. A feed that parses to zero scheme rows is returned as-is:
// the catalogue sweep's coverage guard keeps an empty feed from reading as a
// mass delisting.
func (c *HTTPClient) Schemes(ctx context.Context) ([]Scheme, error) {
	var schemes []Scheme
	err := retry.Do(ctx, retry.WithMaxRetries(1, retry.NewConstant(c.retryPause)), func(ctx context.Context) error {
		var err error
		schemes, err = c.fetch(ctx)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	return schemes, err
}

func (c *HTTPClient) fetch(ctx context.Context) ([]Scheme, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build AMFI request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewVendorUnavailable("AMFI", err,
			"check connectivity to amfiindia.com",
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewVendorUnavailable("AMFI",
			fmt.Errorf("AMFI returned status %d", resp.StatusCode),
			"the NAV feed may be temporarily down; retry later",
		)
	}

	return ParseFeed(resp.Body)
}

// ParseFeed parses the semicolon-delimited NAV feed. Layout per scheme row:
//
//	code;ISIN growth;ISIN reinvest;name;nav;date
//
// Section headers, blank lines and rows with "N.A." NAVs are skipped.
func ParseFeed(r io.Reader) ([]Scheme, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	schemes := []Scheme{}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.Contains(line, ";") {
			continue
		}

		fields := strings.Split(line, ";")
		if len(fields) < 6 {
			continue
		}

		code := strings.TrimSpace(fields[0])
		name := strings.TrimSpace(fields[3])
		if code == "" || name == "" {
			continue
		}
		// Header row repeats the column names.
		if code == "Scheme Code" {
			continue
		}

		// NAVs above a thousand are published with thousands separators.
		navRaw := strings.ReplaceAll(strings.TrimSpace(fields[4]), ",", "")
		nav, err := strconv.ParseFloat(navRaw, 64)
		if err != nil {
			continue
		}
		navDate, err := time.Parse(navDateLayout, strings.TrimSpace(fields[5]))
		if err != nil {
			continue
		}

		schemes = append(schemes, Scheme{
			Code:    code,
			Name:    name,
			NAV:     nav,
			NAVDate: navDate.UTC(),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read AMFI feed: %w", err)
	}

	return schemes, nil
}
