package model

import "time"

// SyncStatus is the lifecycle state of a job execution.
type SyncStatus string

// Sync log statuses. A row is created as running and closed exactly once as
// completed or error.
const (
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusError     SyncStatus = "error"
)

// SyncLog is the durable record of one job execution.
// Details carries a free-form diagnostic payload (category breakdowns on
// success, error text on failure).
type SyncLog struct {
	ID         string                 `json:"id"`
	JobID      string                 `json:"jobId"`
	Status     SyncStatus             `json:"status"`
	StartedAt  time.Time              `json:"startedAt"`
	FinishedAt *time.Time             `json:"finishedAt,omitempty"`
	Processed  int                    `json:"processed"`
	Updated    int                    `json:"updated"`
	Skipped    int                    `json:"skipped"`
	Failed     int                    `json:"failed"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// CatalogueSummary is the structured result of a catalogue sync run.
type CatalogueSummary struct {
	StockCreated     int `json:"stockCreated"`
	StockUpdated     int `json:"stockUpdated"`
	StockDeactivated int `json:"stockDeactivated"`
	MFCreated        int `json:"mfCreated"`
	MFUpdated        int `json:"mfUpdated"`
	MFDeactivated    int `json:"mfDeactivated"`
}

// PriceSummary is the structured result of a price sync run.
type PriceSummary struct {
	Updated         int `json:"updated"`
	SkippedFresh    int `json:"skippedFresh"`
	SkippedNoChange int `json:"skippedNoChange"`
	Failed          int `json:"failed"`
	Total           int `json:"total"`
}
