package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/investoscope/investoscope-backend/internal/apperrors"
	"github.com/investoscope/investoscope-backend/internal/model"
)

// HashColumn selects which change-detection fingerprint a write targets.
type HashColumn string

// Hash columns. PriceHash tracks stock/ETF price tails, NavHash tracks
// mutual fund NAV tails.
const (
	PriceHash HashColumn = "price_hash"
	NavHash   HashColumn = "nav_hash"
)

const optionColumns = `id, category, name, symbol, unit_price, min_lump_sum, min_sip,
		subtype_mf, subtype_etf, market_cap, pe_ratio, beta, market_cap_value,
		risk_level, risk_reason, price_hash, nav_hash, active, last_updated`

// OptionRepository provides data access methods for the investment_option table.
type OptionRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewOptionRepository creates a new OptionRepository with the provided database connection.
func NewOptionRepository(db *sql.DB) *OptionRepository {
	return &OptionRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *OptionRepository) WithTx(tx *sql.Tx) *OptionRepository {
	return &OptionRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *OptionRepository) getQuerier() interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// Insert creates a new investment option row. A missing ID is generated and
// a zero LastUpdated is set to now.
func (r *OptionRepository) Insert(ctx context.Context, opt *model.InvestmentOption) error {
	if opt.ID == "" {
		opt.ID = uuid.New().String()
	}
	if opt.LastUpdated.IsZero() {
		opt.LastUpdated = time.Now().UTC()
	}

	query := `
		INSERT INTO investment_option (` + optionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.getQuerier().ExecContext(ctx, query,
		opt.ID,
		string(opt.Category),
		opt.Name,
		nullString(opt.Symbol),
		opt.UnitPrice,
		opt.MinLumpSum,
		opt.MinSIP,
		subtypeMFValue(opt.SubtypeMF),
		subtypeETFValue(opt.SubtypeETF),
		marketCapValue(opt.MarketCap),
		opt.PERatio,
		opt.Beta,
		opt.MarketCapValue,
		nullString(opt.RiskLevel),
		nullString(opt.RiskReason),
		opt.PriceHash,
		opt.NavHash,
		opt.Active,
		opt.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to insert investment option: %w", err)
	}

	return nil
}

// Update rewrites all mutable fields of an investment option and touches
// last_updated. Used by the reconciler, which always refreshes the full row.
func (r *OptionRepository) Update(ctx context.Context, opt *model.InvestmentOption) error {
	opt.LastUpdated = time.Now().UTC()

	query := `
		UPDATE investment_option
		SET category = ?, name = ?, symbol = ?, unit_price = ?, min_lump_sum = ?,
			min_sip = ?, subtype_mf = ?, subtype_etf = ?, market_cap = ?,
			pe_ratio = ?, beta = ?, market_cap_value = ?, risk_level = ?,
			risk_reason = ?, price_hash = ?, nav_hash = ?, active = ?, last_updated = ?
		WHERE id = ?
	`

	result, err := r.getQuerier().ExecContext(ctx, query,
		string(opt.Category),
		opt.Name,
		nullString(opt.Symbol),
		opt.UnitPrice,
		opt.MinLumpSum,
		opt.MinSIP,
		subtypeMFValue(opt.SubtypeMF),
		subtypeETFValue(opt.SubtypeETF),
		marketCapValue(opt.MarketCap),
		opt.PERatio,
		opt.Beta,
		opt.MarketCapValue,
		nullString(opt.RiskLevel),
		nullString(opt.RiskReason),
		opt.PriceHash,
		opt.NavHash,
		opt.Active,
		opt.LastUpdated,
		opt.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update investment option: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return apperrors.ErrOptionNotFound
	}

	return nil
}

// FindBySymbol retrieves all options (any category, any active state) with
// the exact symbol, newest last_updated first. The reconciler uses the full
// candidate set for duplicate repair.
func (r *OptionRepository) FindBySymbol(ctx context.Context, symbol string) ([]model.InvestmentOption, error) {
	query := `
		SELECT ` + optionColumns + `
		FROM investment_option
		WHERE symbol = ?
		ORDER BY last_updated DESC
	`

	return r.queryOptions(ctx, query, symbol)
}

// FindByCategoryAndSymbol retrieves all options of one category with the
// exact symbol, newest last_updated first.
func (r *OptionRepository) FindByCategoryAndSymbol(ctx context.Context, category model.Category, symbol string) ([]model.InvestmentOption, error) {
	query := `
		SELECT ` + optionColumns + `
		FROM investment_option
		WHERE category = ? AND symbol = ?
		ORDER BY last_updated DESC
	`

	return r.queryOptions(ctx, query, string(category), symbol)
}

// ListActive retrieves active options of the given categories that carry a
// symbol. limit bounds the result set; 0 means no limit.
func (r *OptionRepository) ListActive(ctx context.Context, limit int, categories ...model.Category) ([]model.InvestmentOption, error) {
	placeholders := make([]string, len(categories))
	args := make([]any, 0, len(categories)+1)
	for i, c := range categories {
		placeholders[i] = "?"
		args = append(args, string(c))
	}

	//#nosec G202 -- Safe: placeholders are generated programmatically, not from user input
	query := `
		SELECT ` + optionColumns + `
		FROM investment_option
		WHERE active = TRUE
			AND symbol IS NOT NULL AND symbol != ''
			AND category IN (` + strings.Join(placeholders, ",") + `)
		ORDER BY symbol
	`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	return r.queryOptions(ctx, query, args...)
}

// DeactivateByIDs flips active to false for every listed row in one statement.
func (r *OptionRepository) DeactivateByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	//#nosec G202 -- Safe: placeholders are generated programmatically, not from user input
	query := `UPDATE investment_option SET active = FALSE WHERE id IN (` + strings.Join(placeholders, ",") + `)`

	if _, err := r.getQuerier().ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to deactivate investment options: %w", err)
	}

	return nil
}

// UpdateFundamentals writes the non-nil enrichment fields without touching
// last_updated or the change-detection hashes. Returns whether any field was
// written.
func (r *OptionRepository) UpdateFundamentals(ctx context.Context, id string, f model.Fundamentals) (bool, error) {
	sets := []string{}
	args := []any{}
	if f.PERatio != nil {
		sets = append(sets, "pe_ratio = ?")
		args = append(args, *f.PERatio)
	}
	if f.Beta != nil {
		sets = append(sets, "beta = ?")
		args = append(args, *f.Beta)
	}
	if f.MarketCap != nil {
		sets = append(sets, "market_cap_value = ?")
		args = append(args, *f.MarketCap)
	}
	if len(sets) == 0 {
		return false, nil
	}
	args = append(args, id)

	//#nosec G202 -- Safe: column list is assembled from fixed fragments
	query := `UPDATE investment_option SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`

	if _, err := r.getQuerier().ExecContext(ctx, query, args...); err != nil {
		return false, fmt.Errorf("failed to update fundamentals: %w", err)
	}

	return true, nil
}

// SetUnitPriceAndHash stores a fresh unit price together with the series
// fingerprint and touches last_updated.
func (r *OptionRepository) SetUnitPriceAndHash(ctx context.Context, id string, price float64, col HashColumn, hash string, now time.Time) error {
	//#nosec G202 -- Safe: col is one of two fixed column names
	query := `UPDATE investment_option SET unit_price = ?, ` + string(col) + ` = ?, last_updated = ? WHERE id = ?`

	if _, err := r.getQuerier().ExecContext(ctx, query, price, hash, now, id); err != nil {
		return fmt.Errorf("failed to update unit price: %w", err)
	}

	return nil
}

// SetUnitPrice stores a fresh unit price without touching the series
// fingerprints. Used by the quick NAV refresh, which bypasses change
// detection.
func (r *OptionRepository) SetUnitPrice(ctx context.Context, id string, price float64, now time.Time) error {
	query := `UPDATE investment_option SET unit_price = ?, last_updated = ? WHERE id = ?`

	if _, err := r.getQuerier().ExecContext(ctx, query, price, now, id); err != nil {
		return fmt.Errorf("failed to update unit price: %w", err)
	}

	return nil
}

// SetHash stores the series fingerprint and touches last_updated without
// changing the unit price (the no-change path).
func (r *OptionRepository) SetHash(ctx context.Context, id string, col HashColumn, hash string, now time.Time) error {
	//#nosec G202 -- Safe: col is one of two fixed column names
	query := `UPDATE investment_option SET ` + string(col) + ` = ?, last_updated = ? WHERE id = ?`

	if _, err := r.getQuerier().ExecContext(ctx, query, hash, now, id); err != nil {
		return fmt.Errorf("failed to update series hash: %w", err)
	}

	return nil
}

func (r *OptionRepository) queryOptions(ctx context.Context, query string, args ...any) ([]model.InvestmentOption, error) {
	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query investment_option table: %w", err)
	}
	defer rows.Close()

	options := []model.InvestmentOption{}
	for rows.Next() {
		opt, err := scanOption(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan investment_option results: %w", err)
		}
		options = append(options, opt)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating investment_option table: %w", err)
	}

	return options, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOption(row rowScanner) (model.InvestmentOption, error) {
	var opt model.InvestmentOption
	var category string
	var symbol, subtypeMF, subtypeETF, marketCap, riskLevel, riskReason, priceHash, navHash sql.NullString
	var unitPrice, minLumpSum, minSIP, peRatio, beta, marketCapValue sql.NullFloat64

	err := row.Scan(
		&opt.ID,
		&category,
		&opt.Name,
		&symbol,
		&unitPrice,
		&minLumpSum,
		&minSIP,
		&subtypeMF,
		&subtypeETF,
		&marketCap,
		&peRatio,
		&beta,
		&marketCapValue,
		&riskLevel,
		&riskReason,
		&priceHash,
		&navHash,
		&opt.Active,
		&opt.LastUpdated,
	)
	if err != nil {
		return model.InvestmentOption{}, err
	}

	opt.Category = model.Category(category)
	opt.Symbol = symbol.String
	opt.RiskLevel = riskLevel.String
	opt.RiskReason = riskReason.String
	opt.UnitPrice = floatPtr(unitPrice)
	opt.MinLumpSum = floatPtr(minLumpSum)
	opt.MinSIP = floatPtr(minSIP)
	opt.PERatio = floatPtr(peRatio)
	opt.Beta = floatPtr(beta)
	opt.MarketCapValue = floatPtr(marketCapValue)
	opt.PriceHash = stringPtr(priceHash)
	opt.NavHash = stringPtr(navHash)
	if subtypeMF.Valid {
		v := model.SubtypeMF(subtypeMF.String)
		opt.SubtypeMF = &v
	}
	if subtypeETF.Valid {
		v := model.SubtypeETF(subtypeETF.String)
		opt.SubtypeETF = &v
	}
	if marketCap.Valid {
		v := model.MarketCapBand(marketCap.String)
		opt.MarketCap = &v
	}

	return opt, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func subtypeMFValue(v *model.SubtypeMF) any {
	if v == nil {
		return nil
	}
	return string(*v)
}

func subtypeETFValue(v *model.SubtypeETF) any {
	if v == nil {
		return nil
	}
	return string(*v)
}

func marketCapValue(v *model.MarketCapBand) any {
	if v == nil {
		return nil
	}
	return string(*v)
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
