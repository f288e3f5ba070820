package model

import "time"

// Category identifies the kind of investable instrument.
type Category string

// Investment option categories. SIP is a UI-level mode over MUTUAL_FUND and
// is never stored.
const (
	CategoryStock      Category = "STOCK"
	CategoryMutualFund Category = "MUTUAL_FUND"
	CategoryETF        Category = "ETF"
)

// SubtypeMF classifies a mutual fund by mandate.
type SubtypeMF string

// Mutual fund subtypes.
const (
	SubtypeMFIndex  SubtypeMF = "INDEX"
	SubtypeMFEquity SubtypeMF = "EQUITY"
	SubtypeMFDebt   SubtypeMF = "DEBT"
	SubtypeMFHybrid SubtypeMF = "HYBRID"
)

// SubtypeETF classifies an ETF by what it tracks.
type SubtypeETF string

// ETF subtypes.
const (
	SubtypeETFBroadMarket   SubtypeETF = "BROAD_MARKET"
	SubtypeETFSector        SubtypeETF = "SECTOR"
	SubtypeETFGold          SubtypeETF = "GOLD"
	SubtypeETFInternational SubtypeETF = "INTERNATIONAL"
)

// MarketCapBand buckets stocks by market capitalisation.
type MarketCapBand string

// Market cap bands (stocks only).
const (
	MarketCapLarge MarketCapBand = "LARGE"
	MarketCapMid   MarketCapBand = "MID"
	MarketCapSmall MarketCapBand = "SMALL"
)

// InvestmentOption is one tradable/investable instrument in the catalogue.
//
// Symbol is the vendor-qualified ticker for stocks/ETFs (e.g. "INFY.NS") or
// the AMFI scheme code for mutual funds; empty only for legacy entries.
// PriceHash/NavHash are opaque change-detection fingerprints, not business
// data. Records are never hard-deleted: the staleness sweeper (or an admin)
// flips Active to false instead.
type InvestmentOption struct {
	ID             string         `json:"id"`
	Category       Category       `json:"category"`
	Name           string         `json:"name"`
	Symbol         string         `json:"symbol,omitempty"`
	UnitPrice      *float64       `json:"unitPrice,omitempty"`
	MinLumpSum     *float64       `json:"minLumpSum,omitempty"`
	MinSIP         *float64       `json:"minSIP,omitempty"`
	SubtypeMF      *SubtypeMF     `json:"subtypeMF,omitempty"`
	SubtypeETF     *SubtypeETF    `json:"subtypeETF,omitempty"`
	MarketCap      *MarketCapBand `json:"marketCap,omitempty"`
	PERatio        *float64       `json:"peRatio,omitempty"`
	Beta           *float64       `json:"beta,omitempty"`
	MarketCapValue *float64       `json:"marketCapValue,omitempty"`
	RiskLevel      string         `json:"riskLevel,omitempty"`
	RiskReason     string         `json:"riskReason,omitempty"`
	PriceHash      *string        `json:"-"`
	NavHash        *string        `json:"-"`
	Active         bool           `json:"active"`
	LastUpdated    time.Time      `json:"lastUpdated"`
}

// Fundamentals is the best-effort enrichment block fetched for stocks/ETFs.
// Any field may be nil when the vendor omits it.
type Fundamentals struct {
	PERatio      *float64
	Beta         *float64
	MarketCap    *float64
	ExpenseRatio *float64
}
