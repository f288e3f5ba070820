package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/investoscope/investoscope-backend/internal/apperrors"
	"github.com/investoscope/investoscope-backend/internal/model"
)

// SyncLogRepository provides data access methods for the sync_log table.
type SyncLogRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewSyncLogRepository creates a new SyncLogRepository with the provided database connection.
func NewSyncLogRepository(db *sql.DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *SyncLogRepository) WithTx(tx *sql.Tx) *SyncLogRepository {
	return &SyncLogRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *SyncLogRepository) getQuerier() interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// Create opens a running sync_log row for a job execution and returns its ID.
func (r *SyncLogRepository) Create(ctx context.Context, jobID string) (string, error) {
	id := uuid.New().String()

	query := `
		INSERT INTO sync_log (id, job_id, status, started_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := r.getQuerier().ExecContext(ctx, query, id, jobID, string(model.SyncStatusRunning), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to create sync log: %w", err)
	}

	return id, nil
}

// Close finalises a sync_log row with its terminal status, counters and
// diagnostic details.
func (r *SyncLogRepository) Close(ctx context.Context, id string, status model.SyncStatus, processed, updated, skipped, failed int, details map[string]interface{}) error {
	var detailsJSON any
	if len(details) > 0 {
		b, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to marshal sync log details: %w", err)
		}
		detailsJSON = string(b)
	}

	query := `
		UPDATE sync_log
		SET status = ?, finished_at = ?, processed = ?, updated = ?, skipped = ?, failed = ?, details = ?
		WHERE id = ?
	`

	result, err := r.getQuerier().ExecContext(ctx, query,
		string(status), time.Now().UTC(), processed, updated, skipped, failed, detailsJSON, id,
	)
	if err != nil {
		return fmt.Errorf("failed to close sync log: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check sync log update result: %w", err)
	}
	if rows == 0 {
		return apperrors.ErrSyncLogNotFound
	}

	return nil
}

// Recent retrieves up to limit sync_log rows, newest first.
func (r *SyncLogRepository) Recent(ctx context.Context, limit int) ([]model.SyncLog, error) {
	query := `
		SELECT id, job_id, status, started_at, finished_at, processed, updated, skipped, failed, details
		FROM sync_log
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := r.getQuerier().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync_log table: %w", err)
	}
	defer rows.Close()

	logs := []model.SyncLog{}
	for rows.Next() {
		log, err := scanSyncLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync_log results: %w", err)
		}
		logs = append(logs, log)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync_log table: %w", err)
	}

	return logs, nil
}

// LatestByJob retrieves the most recent sync_log row for a job, or nil when
// the job never ran.
func (r *SyncLogRepository) LatestByJob(ctx context.Context, jobID string) (*model.SyncLog, error) {
	query := `
		SELECT id, job_id, status, started_at, finished_at, processed, updated, skipped, failed, details
		FROM sync_log
		WHERE job_id = ?
		ORDER BY started_at DESC
		LIMIT 1
	`

	rows, err := r.getQuerier().QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync_log table: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return nil, fmt.Errorf("error iterating sync_log table: %w", err)
		}
		return nil, nil
	}

	log, err := scanSyncLog(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync_log results: %w", err)
	}

	return &log, nil
}

// ConsecutiveFailures counts how many of the most recent completed runs of a
// job ended in error, stopping at the first success. Feeds the repeated-failure
// alert threshold.
func (r *SyncLogRepository) ConsecutiveFailures(ctx context.Context, jobID string) (int, error) {
	query := `
		SELECT status
		FROM sync_log
		WHERE job_id = ? AND status != ?
		ORDER BY started_at DESC
		LIMIT 50
	`

	rows, err := r.getQuerier().QueryContext(ctx, query, jobID, string(model.SyncStatusRunning))
	if err != nil {
		return 0, fmt.Errorf("failed to query sync_log table: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return 0, fmt.Errorf("failed to scan sync_log results: %w", err)
		}
		if status != string(model.SyncStatusError) {
			break
		}
		count++
	}

	if err = rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating sync_log table: %w", err)
	}

	return count, nil
}

func scanSyncLog(rows *sql.Rows) (model.SyncLog, error) {
	var log model.SyncLog
	var status string
	var finishedAt sql.NullTime
	var details sql.NullString

	err := rows.Scan(
		&log.ID, &log.JobID, &status, &log.StartedAt, &finishedAt,
		&log.Processed, &log.Updated, &log.Skipped, &log.Failed, &details,
	)
	if err != nil {
		return model.SyncLog{}, err
	}

	log.Status = model.SyncStatus(status)
	if finishedAt.Valid {
		t := finishedAt.Time
		log.FinishedAt = &t
	}
	if details.Valid && details.String != "" {
		if err := json.Unmarshal([]byte(details.String), &log.Details); err != nil {
			return model.SyncLog{}, fmt.Errorf("failed to decode sync log details: %w", err)
		}
	}

	return log, nil
}
