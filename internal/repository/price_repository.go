package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/investoscope/investoscope-backend/internal/model"
)

// PriceRepository provides data access methods for the historical_price table.
type PriceRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPriceRepository creates a new PriceRepository with the provided database connection.
func NewPriceRepository(db *sql.DB) *PriceRepository {
	return &PriceRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *PriceRepository) WithTx(tx *sql.Tx) *PriceRepository {
	return &PriceRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *PriceRepository) getQuerier() interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// Latest retrieves the most recent stored price for a symbol, or nil when the
// symbol has no history yet.
func (r *PriceRepository) Latest(ctx context.Context, symbol string) (*model.HistoricalPrice, error) {
	query := `
		SELECT id, symbol, date, close, source
		FROM historical_price
		WHERE symbol = ?
		ORDER BY date DESC
		LIMIT 1
	`

	var p model.HistoricalPrice
	err := r.getQuerier().QueryRowContext(ctx, query, symbol).Scan(
		&p.ID, &p.Symbol, &p.Date, &p.Close, &p.Source,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest price: %w", err)
	}

	return &p, nil
}

// Recent retrieves up to limit most recent prices for a symbol, newest first.
func (r *PriceRepository) Recent(ctx context.Context, symbol string, limit int) ([]model.HistoricalPrice, error) {
	query := `
		SELECT id, symbol, date, close, source
		FROM historical_price
		WHERE symbol = ?
		ORDER BY date DESC
		LIMIT ?
	`

	rows, err := r.getQuerier().QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent prices: %w", err)
	}
	defer rows.Close()

	prices := []model.HistoricalPrice{}
	for rows.Next() {
		var p model.HistoricalPrice
		if err := rows.Scan(&p.ID, &p.Symbol, &p.Date, &p.Close, &p.Source); err != nil {
			return nil, fmt.Errorf("failed to scan historical_price results: %w", err)
		}
		prices = append(prices, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating historical_price table: %w", err)
	}

	return prices, nil
}

// InsertMany stores a batch of daily closes for one symbol. Dates are
// normalised to midnight UTC so the (symbol, date) uniqueness holds across
// vendors with different timestamp conventions.
func (r *PriceRepository) InsertMany(ctx context.Context, symbol, source string, points []model.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	query := `
		INSERT INTO historical_price (id, symbol, date, close, source)
		VALUES (?, ?, ?, ?, ?)
	`

	for _, pt := range points {
		_, err := r.getQuerier().ExecContext(ctx, query,
			uuid.New().String(), symbol, midnightUTC(pt.Date), pt.Close, source,
		)
		if err != nil {
			return fmt.Errorf("failed to insert price for %s: %w", symbol, err)
		}
	}

	return nil
}

// Upsert stores one daily close, overwriting an existing row for the same
// (symbol, date). Vendors restate recent closes after corporate actions, so
// the latest value always wins.
func (r *PriceRepository) Upsert(ctx context.Context, symbol, source string, pt model.PricePoint) error {
	query := `
		INSERT INTO historical_price (id, symbol, date, close, source)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol, date) DO UPDATE SET close = excluded.close, source = excluded.source
	`

	_, err := r.getQuerier().ExecContext(ctx, query,
		uuid.New().String(), symbol, midnightUTC(pt.Date), pt.Close, source,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert price for %s: %w", symbol, err)
	}

	return nil
}

// UpdateClose corrects the stored close for an existing (symbol, date) row.
// Returns whether a row matched.
func (r *PriceRepository) UpdateClose(ctx context.Context, symbol string, date time.Time, close float64) (bool, error) {
	query := `UPDATE historical_price SET close = ? WHERE symbol = ? AND date = ?`

	result, err := r.getQuerier().ExecContext(ctx, query, close, symbol, midnightUTC(date))
	if err != nil {
		return false, fmt.Errorf("failed to update price for %s: %w", symbol, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check price update result: %w", err)
	}

	return rows > 0, nil
}

// NewestDate retrieves the most recent date across all stored prices, or nil
// when the table is empty. Drives the auto-sync staleness check.
func (r *PriceRepository) NewestDate(ctx context.Context) (*time.Time, error) {
	// A direct column select keeps the declared DATETIME type, which an
	// aggregate like MAX(date) would strip.
	query := `SELECT date FROM historical_price ORDER BY date DESC LIMIT 1`

	var newest time.Time
	err := r.getQuerier().QueryRowContext(ctx, query).Scan(&newest)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query newest price date: %w", err)
	}

	return &newest, nil
}

func midnightUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
