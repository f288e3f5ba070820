package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/investoscope/investoscope-backend/internal/model"
)

// AlertRepository provides data access methods for the price_alert table.
type AlertRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewAlertRepository creates a new AlertRepository with the provided database connection.
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *AlertRepository) WithTx(tx *sql.Tx) *AlertRepository {
	return &AlertRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *AlertRepository) getQuerier() interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// Insert creates a new price alert row.
func (r *AlertRepository) Insert(ctx context.Context, alert *model.PriceAlert) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO price_alert (id, user_id, email, option_id, direction, target_price, active, triggered_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.getQuerier().ExecContext(ctx, query,
		alert.ID, alert.UserID, nullString(alert.Email), alert.OptionID,
		string(alert.Direction), alert.TargetPrice, alert.Active, alert.TriggeredAt, alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert price alert: %w", err)
	}

	return nil
}

// ActiveByOption retrieves all active alerts watching one investment option.
func (r *AlertRepository) ActiveByOption(ctx context.Context, optionID string) ([]model.PriceAlert, error) {
	query := `
		SELECT id, user_id, email, option_id, direction, target_price, active, triggered_at, created_at
		FROM price_alert
		WHERE option_id = ? AND active = TRUE
	`

	rows, err := r.getQuerier().QueryContext(ctx, query, optionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query price_alert table: %w", err)
	}
	defer rows.Close()

	alerts := []model.PriceAlert{}
	for rows.Next() {
		var a model.PriceAlert
		var email sql.NullString
		var direction string
		var triggeredAt sql.NullTime

		err := rows.Scan(&a.ID, &a.UserID, &email, &a.OptionID, &direction,
			&a.TargetPrice, &a.Active, &triggeredAt, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price_alert results: %w", err)
		}

		a.Email = email.String
		a.Direction = model.AlertDirection(direction)
		if triggeredAt.Valid {
			t := triggeredAt.Time
			a.TriggeredAt = &t
		}
		alerts = append(alerts, a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price_alert table: %w", err)
	}

	return alerts, nil
}

// DeactivateByIDs marks the listed alerts as fired: active flips to false and
// triggered_at is stamped. Alerts are one-shot, so this is irreversible short
// of the user re-arming them.
func (r *AlertRepository) DeactivateByIDs(ctx context.Context, ids []string, triggeredAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, triggeredAt)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	//#nosec G202 -- Safe: placeholders are generated programmatically, not from user input
	query := `UPDATE price_alert SET active = FALSE, triggered_at = ? WHERE id IN (` + strings.Join(placeholders, ",") + `)`

	if _, err := r.getQuerier().ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to deactivate price alerts: %w", err)
	}

	return nil
}
