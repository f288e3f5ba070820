package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/investoscope/investoscope-backend/internal/model"
)

// OptionBuilder provides a fluent interface for creating test investment options.
//
// Example usage:
//
//	// Simple creation with defaults
//	opt := testutil.NewOption().Build(t, db)
//
//	// Customized option
//	opt := testutil.NewOption().
//	    WithSymbol("INFY.NS").
//	    WithCategory(model.CategoryStock).
//	    WithUnitPrice(1500).
//	    Build(t, db)
type OptionBuilder struct {
	ID          string
	Category    model.Category
	Name        string
	Symbol      string
	UnitPrice   *float64
	SubtypeMF   *model.SubtypeMF
	SubtypeETF  *model.SubtypeETF
	PriceHash   *string
	NavHash     *string
	Active      bool
	LastUpdated time.Time
}

// NewOption creates an OptionBuilder with sensible defaults: an active stock
// last reconciled two days ago.
func NewOption() *OptionBuilder {
	return &OptionBuilder{
		ID:          MakeID(),
		Category:    model.CategoryStock,
		Name:        "Test Company Ltd",
		Symbol:      "TEST.NS",
		Active:      true,
		LastUpdated: time.Now().UTC().Add(-48 * time.Hour),
	}
}

// WithID sets a custom ID.
func (b *OptionBuilder) WithID(id string) *OptionBuilder {
	b.ID = id
	return b
}

// WithCategory sets a custom category.
func (b *OptionBuilder) WithCategory(category model.Category) *OptionBuilder {
	b.Category = category
	return b
}

// WithName sets a custom name.
func (b *OptionBuilder) WithName(name string) *OptionBuilder {
	b.Name = name
	return b
}

// WithSymbol sets a custom symbol.
func (b *OptionBuilder) WithSymbol(symbol string) *OptionBuilder {
	b.Symbol = symbol
	return b
}

// WithUnitPrice sets the current unit price.
func (b *OptionBuilder) WithUnitPrice(price float64) *OptionBuilder {
	b.UnitPrice = &price
	return b
}

// WithPriceHash sets the stored price-series fingerprint.
func (b *OptionBuilder) WithPriceHash(hash string) *OptionBuilder {
	b.PriceHash = &hash
	return b
}

// WithNavHash sets the stored NAV-series fingerprint.
func (b *OptionBuilder) WithNavHash(hash string) *OptionBuilder {
	b.NavHash = &hash
	return b
}

// WithSubtypeMF sets the mutual fund subtype.
func (b *OptionBuilder) WithSubtypeMF(subtype model.SubtypeMF) *OptionBuilder {
	b.SubtypeMF = &subtype
	return b
}

// WithSubtypeETF sets the ETF subtype.
func (b *OptionBuilder) WithSubtypeETF(subtype model.SubtypeETF) *OptionBuilder {
	b.SubtypeETF = &subtype
	return b
}

// WithLastUpdated sets the reconciliation timestamp.
func (b *OptionBuilder) WithLastUpdated(t time.Time) *OptionBuilder {
	b.LastUpdated = t
	return b
}

// Inactive marks the option as deactivated.
func (b *OptionBuilder) Inactive() *OptionBuilder {
	b.Active = false
	return b
}

// AsMutualFund switches the builder to a mutual fund keyed by scheme code.
func (b *OptionBuilder) AsMutualFund(schemeCode string) *OptionBuilder {
	b.Category = model.CategoryMutualFund
	b.Symbol = schemeCode
	st := model.SubtypeMFEquity
	b.SubtypeMF = &st
	return b
}

// Build creates the option in the database and returns it.
func (b *OptionBuilder) Build(t *testing.T, db *sql.DB) model.InvestmentOption {
	t.Helper()

	query := `
		INSERT INTO investment_option (id, category, name, symbol, unit_price,
			subtype_mf, subtype_etf, price_hash, nav_hash, active, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var subtypeMF, subtypeETF any
	if b.SubtypeMF != nil {
		subtypeMF = string(*b.SubtypeMF)
	}
	if b.SubtypeETF != nil {
		subtypeETF = string(*b.SubtypeETF)
	}

	_, err := db.Exec(query, b.ID, string(b.Category), b.Name, b.Symbol, b.UnitPrice,
		subtypeMF, subtypeETF, b.PriceHash, b.NavHash, b.Active, b.LastUpdated)
	if err != nil {
		t.Fatalf("Failed to create test option: %v", err)
	}

	return model.InvestmentOption{
		ID:          b.ID,
		Category:    b.Category,
		Name:        b.Name,
		Symbol:      b.Symbol,
		UnitPrice:   b.UnitPrice,
		SubtypeMF:   b.SubtypeMF,
		SubtypeETF:  b.SubtypeETF,
		PriceHash:   b.PriceHash,
		NavHash:     b.NavHash,
		Active:      b.Active,
		LastUpdated: b.LastUpdated,
	}
}

// PriceBuilder provides a fluent interface for creating historical price rows.
type PriceBuilder struct {
	ID     string
	Symbol string
	Date   time.Time
	Close  float64
	Source string
}

// NewPrice creates a PriceBuilder with sensible defaults.
func NewPrice() *PriceBuilder {
	return &PriceBuilder{
		ID:     MakeID(),
		Symbol: "TEST.NS",
		Date:   Midnight(time.Now().UTC().AddDate(0, 0, -1)),
		Close:  100,
		Source: "test",
	}
}

// WithSymbol sets the series symbol.
func (b *PriceBuilder) WithSymbol(symbol string) *PriceBuilder {
	b.Symbol = symbol
	return b
}

// WithDate sets the observation date (normalised to midnight UTC).
func (b *PriceBuilder) WithDate(date time.Time) *PriceBuilder {
	b.Date = Midnight(date)
	return b
}

// WithClose sets the close price.
func (b *PriceBuilder) WithClose(close float64) *PriceBuilder {
	b.Close = close
	return b
}

// Build creates the price row in the database and returns it.
func (b *PriceBuilder) Build(t *testing.T, db *sql.DB) model.HistoricalPrice {
	t.Helper()

	query := `INSERT INTO historical_price (id, symbol, date, close, source) VALUES (?, ?, ?, ?, ?)`
	if _, err := db.Exec(query, b.ID, b.Symbol, b.Date, b.Close, b.Source); err != nil {
		t.Fatalf("Failed to create test price: %v", err)
	}

	return model.HistoricalPrice{ID: b.ID, Symbol: b.Symbol, Date: b.Date, Close: b.Close, Source: b.Source}
}

// CreatePriceSeries inserts count daily closes for symbol ending yesterday,
// oldest first, and returns the points.
func CreatePriceSeries(t *testing.T, db *sql.DB, symbol string, closes ...float64) []model.PricePoint {
	t.Helper()

	points := make([]model.PricePoint, len(closes))
	for i, close := range closes {
		date := Midnight(time.Now().UTC().AddDate(0, 0, -(len(closes) - i)))
		NewPrice().WithSymbol(symbol).WithDate(date).WithClose(close).Build(t, db)
		points[i] = model.PricePoint{Date: date, Close: close}
	}
	return points
}

// AlertBuilder provides a fluent interface for creating price alerts.
type AlertBuilder struct {
	ID          string
	UserID      string
	Email       string
	OptionID    string
	Direction   model.AlertDirection
	TargetPrice float64
	Active      bool
}

// NewAlert creates an AlertBuilder with sensible defaults.
func NewAlert(optionID string) *AlertBuilder {
	return &AlertBuilder{
		ID:          MakeID(),
		UserID:      MakeID(),
		Email:       "",
		OptionID:    optionID,
		Direction:   model.AlertAbove,
		TargetPrice: 100,
		Active:      true,
	}
}

// WithDirection sets the trigger direction.
func (b *AlertBuilder) WithDirection(direction model.AlertDirection) *AlertBuilder {
	b.Direction = direction
	return b
}

// WithTargetPrice sets the threshold.
func (b *AlertBuilder) WithTargetPrice(price float64) *AlertBuilder {
	b.TargetPrice = price
	return b
}

// Build creates the alert in the database and returns it.
func (b *AlertBuilder) Build(t *testing.T, db *sql.DB) model.PriceAlert {
	t.Helper()

	query := `
		INSERT INTO price_alert (id, user_id, email, option_id, direction, target_price, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.Exec(query, b.ID, b.UserID, b.Email, b.OptionID, string(b.Direction),
		b.TargetPrice, b.Active, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test alert: %v", err)
	}

	return model.PriceAlert{
		ID:          b.ID,
		UserID:      b.UserID,
		Email:       b.Email,
		OptionID:    b.OptionID,
		Direction:   b.Direction,
		TargetPrice: b.TargetPrice,
		Active:      b.Active,
	}
}
