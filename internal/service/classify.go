package service

import (
	"strings"

	"github.com/investoscope/investoscope-backend/internal/model"
)

// Classification heuristics for vendor catalogue rows. AMFI and NSE publish
// names, not types, so category and subtype are inferred from naming
// conventions (e.g. "BEES" suffixed tickers are Nippon/Benchmark ETFs).

// IsETF reports whether a scheme or listing is an exchange traded fund
// rather than a regular mutual fund or stock.
func IsETF(name, symbol string) bool {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "mutual fund") {
		return false
	}
	if strings.Contains(lower, "etf") || strings.Contains(lower, "exchange traded fund") {
		return true
	}
	if strings.HasSuffix(strings.ToUpper(symbol), "BEES") {
		return true
	}
	return strings.Contains(lower, "index fund") && strings.Contains(lower, "listed")
}

// ClassifyETF buckets an ETF by what it tracks.
func ClassifyETF(name string) model.SubtypeETF {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "gold") || strings.Contains(lower, "silver"):
		return model.SubtypeETFGold
	case strings.Contains(lower, "nasdaq") || strings.Contains(lower, "s&p 500") ||
		strings.Contains(lower, "international") || strings.Contains(lower, "global"):
		return model.SubtypeETFInternational
	case strings.Contains(lower, "bank") || strings.Contains(lower, "pharma") ||
		strings.Contains(lower, "infra") || strings.Contains(lower, "psu") ||
		strings.Contains(lower, "consumption") || strings.Contains(lower, "energy"):
		return model.SubtypeETFSector
	default:
		return model.SubtypeETFBroadMarket
	}
}

// ClassifyMF buckets a mutual fund scheme by mandate.
func ClassifyMF(name string) model.SubtypeMF {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "index"):
		return model.SubtypeMFIndex
	case strings.Contains(lower, "liquid") || strings.Contains(lower, "debt") ||
		strings.Contains(lower, "bond") || strings.Contains(lower, "gilt") ||
		strings.Contains(lower, "money market") || strings.Contains(lower, "overnight"):
		return model.SubtypeMFDebt
	case strings.Contains(lower, "hybrid") || strings.Contains(lower, "balanced"):
		return model.SubtypeMFHybrid
	default:
		return model.SubtypeMFEquity
	}
}

// RiskForMF assigns a coarse risk level to a mutual fund subtype.
func RiskForMF(subtype model.SubtypeMF) (level, reason string) {
	switch subtype {
	case model.SubtypeMFDebt:
		return "LOW", "Debt and money market instruments"
	case model.SubtypeMFHybrid:
		return "MEDIUM", "Mixed equity and debt exposure"
	case model.SubtypeMFIndex:
		return "MEDIUM", "Diversified index exposure"
	default:
		return "HIGH", "Actively managed equity exposure"
	}
}

// RiskForETF assigns a coarse risk level to an ETF subtype.
func RiskForETF(subtype model.SubtypeETF) (level, reason string) {
	switch subtype {
	case model.SubtypeETFGold:
		return "MEDIUM", "Commodity-backed, uncorrelated with equities"
	case model.SubtypeETFBroadMarket:
		return "MEDIUM", "Diversified index exposure"
	case model.SubtypeETFSector:
		return "HIGH", "Concentrated single-sector exposure"
	case model.SubtypeETFInternational:
		return "HIGH", "Overseas market and currency exposure"
	default:
		return "MEDIUM", "Diversified index exposure"
	}
}

// RiskForStock assigns a coarse risk level to a listed equity.
func RiskForStock() (level, reason string) {
	return "HIGH", "Single-company equity exposure"
}
