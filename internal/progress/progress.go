// Package progress tracks live status of running sync jobs so the frontend
// can poll without touching the database.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/investoscope/investoscope-backend/internal/apperrors"
)

// Snapshot is the pollable state of one job execution.
type Snapshot struct {
	JobID     string    `json:"jobId"`
	Status    string    `json:"status"`
	Total     int       `json:"total"`
	Processed int       `json:"processed"`
	Current   string    `json:"current,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Job statuses exposed through the progress endpoint.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Update carries the fields to merge into a snapshot; nil fields are left
// unchanged so concurrent writers can each own a subset.
type Update struct {
	Status    *string
	Total     *int
	Processed *int
	Current   *string
	Error     *string
}

// Store holds live job snapshots. Get on an unknown job returns a running
// placeholder: a poll can race the job's first write and must not 404.
type Store interface {
	Get(ctx context.Context, jobID string) (Snapshot, error)
	Set(ctx context.Context, jobID string, update Update) error
	Clear(ctx context.Context, jobID string) error
}

// String returns a pointer to s, for building Updates inline.
func String(s string) *string { return &s }

// Int returns a pointer to n, for building Updates inline.
func Int(n int) *int { return &n }

func (s *Snapshot) apply(update Update) {
	if update.Status != nil {
		s.Status = *update.Status
	}
	if update.Total != nil {
		s.Total = *update.Total
	}
	if update.Processed != nil {
		s.Processed = *update.Processed
	}
	if update.Current != nil {
		s.Current = *update.Current
	}
	if update.Error != nil {
		s.Error = *update.Error
	}
	s.UpdatedAt = time.Now().UTC()
}

// RunGuard serialises job executions: at most one run per job ID at a time,
// regardless of whether the trigger was the scheduler or the HTTP endpoint.
type RunGuard struct {
	mu      sync.Mutex
	running map[string]bool
}

// NewRunGuard creates an empty run guard.
func NewRunGuard() *RunGuard {
	return &RunGuard{running: map[string]bool{}}
}

// Acquire claims the job ID. It returns a release func on success and
// ErrJobAlreadyRunning when a run is already in flight.
func (g *RunGuard) Acquire(jobID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running[jobID] {
		return nil, apperrors.ErrJobAlreadyRunning
	}
	g.running[jobID] = true

	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.running, jobID)
	}, nil
}
