package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"github.com/investoscope/investoscope-backend/internal/model"
)

// priceEpsilon is the relative change below which a quote is considered
// noise: 0.05% of the old price. The denominator is floored at 1 so
// near-zero prices do not make every tick look significant.
const priceEpsilon = 0.0005

// seriesTailLength is how many of the most recent closes feed the
// change-detection fingerprint.
const seriesTailLength = 5

// SeriesHash fingerprints the tail of a price series: a SHA-256 over the
// last five (date, close) pairs, oldest first. Two fetches of an unchanged
// series hash identically regardless of how much history each returned.
func SeriesHash(points []model.PricePoint) string {
	if len(points) == 0 {
		return ""
	}

	tail := points
	if len(tail) > seriesTailLength {
		tail = tail[len(tail)-seriesTailLength:]
	}

	parts := make([]string, len(tail))
	for i, pt := range tail {
		parts[i] = fmt.Sprintf("%s:%.6f", pt.Date.UTC().Format("2006-01-02"), pt.Close)
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// PriceChanged reports whether newPrice differs from oldPrice by more than
// the noise epsilon.
func PriceChanged(oldPrice, newPrice float64) bool {
	denom := math.Max(math.Abs(oldPrice), 1)
	return math.Abs(newPrice-oldPrice)/denom > priceEpsilon
}
