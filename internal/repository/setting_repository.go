package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/investoscope/investoscope-backend/internal/apperrors"
)

// SettingRepository provides data access methods for the system_setting table.
type SettingRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewSettingRepository creates a new SettingRepository with the provided database connection.
func NewSettingRepository(db *sql.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *SettingRepository) WithTx(tx *sql.Tx) *SettingRepository {
	return &SettingRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *SettingRepository) getQuerier() interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// Get retrieves a setting value by key. Returns ErrSettingNotFound when the
// key has never been set.
func (r *SettingRepository) Get(ctx context.Context, key string) (string, error) {
	query := `SELECT value FROM system_setting WHERE "key" = ?`

	var value string
	err := r.getQuerier().QueryRowContext(ctx, query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", apperrors.ErrSettingNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query setting %s: %w", key, err)
	}

	return value, nil
}

// Set stores a setting value, overwriting any existing value for the key.
func (r *SettingRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO system_setting (id, "key", value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT("key") DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	_, err := r.getQuerier().ExecContext(ctx, query, uuid.New().String(), key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store setting %s: %w", key, err)
	}

	return nil
}
