package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/investoscope/investoscope-backend/internal/apperrors"
	"github.com/investoscope/investoscope-backend/internal/model"
	"github.com/investoscope/investoscope-backend/internal/repository"
	"github.com/investoscope/investoscope-backend/internal/testutil"
)

func TestSyncLogLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewSyncLogRepository(db)
	ctx := context.Background()

	id, err := repo.Create(ctx, "sync-prices")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	log, err := repo.LatestByJob(ctx, "sync-prices")
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	if log == nil || log.Status != model.SyncStatusRunning {
		t.Fatalf("expected a running row, got %+v", log)
	}
	if log.FinishedAt != nil {
		t.Error("open row should have no finished_at")
	}

	details := map[string]interface{}{"updated": 12, "skippedFresh": 3}
	if err := repo.Close(ctx, id, model.SyncStatusCompleted, 20, 12, 7, 1, details); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	log, err = repo.LatestByJob(ctx, "sync-prices")
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	if log.Status != model.SyncStatusCompleted {
		t.Errorf("expected completed, got %s", log.Status)
	}
	if log.FinishedAt == nil {
		t.Error("closed row should carry finished_at")
	}
	if log.Processed != 20 || log.Updated != 12 || log.Skipped != 7 || log.Failed != 1 {
		t.Errorf("counter mismatch: %+v", log)
	}
	if log.Details["updated"] != float64(12) {
		t.Errorf("details lost: %+v", log.Details)
	}

	if err := repo.Close(ctx, "missing-id", model.SyncStatusError, 0, 0, 0, 0, nil); !errors.Is(err, apperrors.ErrSyncLogNotFound) {
		t.Errorf("expected ErrSyncLogNotFound, got %v", err)
	}
}

func TestSyncLogRecent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewSyncLogRepository(db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id, err := repo.Create(ctx, "sync-catalogue")
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if err := repo.Close(ctx, id, model.SyncStatusCompleted, i, 0, 0, 0, nil); err != nil {
			t.Fatalf("close failed: %v", err)
		}
	}

	logs, err := repo.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(logs))
	}
	for i := 1; i < len(logs); i++ {
		if logs[i].StartedAt.After(logs[i-1].StartedAt) {
			t.Errorf("rows not newest-first at %d", i)
		}
	}
}

func TestConsecutiveFailures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewSyncLogRepository(db)
	ctx := context.Background()

	record := func(status model.SyncStatus) {
		t.Helper()
		id, err := repo.Create(ctx, "sync-prices")
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if err := repo.Close(ctx, id, status, 0, 0, 0, 0, nil); err != nil {
			t.Fatalf("close failed: %v", err)
		}
	}

	record(model.SyncStatusError)
	record(model.SyncStatusCompleted)
	record(model.SyncStatusError)
	record(model.SyncStatusError)

	count, err := repo.ConsecutiveFailures(ctx, "sync-prices")
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 consecutive failures stopping at the success, got %d", count)
	}

	// A still-running row must not reset the streak.
	if _, err := repo.Create(ctx, "sync-prices"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	count, err = repo.ConsecutiveFailures(ctx, "sync-prices")
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("running rows should be ignored, got %d", count)
	}
}
