package model

import "time"

// MFSymbolPrefix namespaces mutual fund NAV series away from equity tickers
// in the historical_price table.
const MFSymbolPrefix = "MF:"

// PricePoint is one (date, close) observation in a vendor price series.
// Series are always ordered ascending by date.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// HistoricalPrice is one stored (symbol, date) close-price row.
// At most one row exists per (symbol, date); vendor restatements update the
// row in place rather than appending.
type HistoricalPrice struct {
	ID     string    `json:"id"`
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Close  float64   `json:"close"`
	Source string    `json:"source"`
}
