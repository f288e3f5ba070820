package handlers

import (
	"errors"
	"net/http"

	"github.com/investoscope/investoscope-backend/internal/api/response"
	"github.com/investoscope/investoscope-backend/internal/apperrors"
	"github.com/investoscope/investoscope-backend/internal/service"
)

// JobsHandler handles the sync job trigger endpoints
type JobsHandler struct {
	catalogueService   *service.CatalogueService
	priceService       *service.PriceService
	navService         *service.NavService
	maintenanceService *service.MaintenanceService
}

// NewJobsHandler creates a new JobsHandler
func NewJobsHandler(
	catalogueService *service.CatalogueService,
	priceService *service.PriceService,
	navService *service.NavService,
	maintenanceService *service.MaintenanceService,
) *JobsHandler {
	return &JobsHandler{
		catalogueService:   catalogueService,
		priceService:       priceService,
		navService:         navService,
		maintenanceService: maintenanceService,
	}
}

// CatalogueSyncResponse is the success envelope of the catalogue sync.
type CatalogueSyncResponse struct {
	OK               bool `json:"ok"`
	StockCreated     int  `json:"stockCreated"`
	StockUpdated     int  `json:"stockUpdated"`
	StockDeactivated int  `json:"stockDeactivated"`
	MFCreated        int  `json:"mfCreated"`
	MFUpdated        int  `json:"mfUpdated"`
	MFDeactivated    int  `json:"mfDeactivated"`
}

// SyncCatalogue handles POST /api/jobs/sync-catalogue
func (h *JobsHandler) SyncCatalogue(w http.ResponseWriter, r *http.Request) {
	summary, err := h.catalogueService.Run(r.Context())
	if err != nil {
		response.RespondError(w, statusForJobError(err), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, CatalogueSyncResponse{
		OK:               true,
		StockCreated:     summary.StockCreated,
		StockUpdated:     summary.StockUpdated,
		StockDeactivated: summary.StockDeactivated,
		MFCreated:        summary.MFCreated,
		MFUpdated:        summary.MFUpdated,
		MFDeactivated:    summary.MFDeactivated,
	})
}

// PriceSyncResponse is the success envelope of the price sync.
type PriceSyncResponse struct {
	OK              bool `json:"ok"`
	Updated         int  `json:"updated"`
	SkippedFresh    int  `json:"skippedFresh"`
	SkippedNoChange int  `json:"skippedNoChange"`
	Failed          int  `json:"failed"`
	Total           int  `json:"total"`
}

// SyncPrices handles POST /api/jobs/sync-prices
func (h *JobsHandler) SyncPrices(w http.ResponseWriter, r *http.Request) {
	summary, err := h.priceService.Run(r.Context())
	if err != nil {
		response.RespondError(w, statusForJobError(err), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, PriceSyncResponse{
		OK:              true,
		Updated:         summary.Updated,
		SkippedFresh:    summary.SkippedFresh,
		SkippedNoChange: summary.SkippedNoChange,
		Failed:          summary.Failed,
		Total:           summary.Total,
	})
}

// NavSyncResponse is the success envelope of the quick NAV refresh.
type NavSyncResponse struct {
	OK     bool `json:"ok"`
	Writes int  `json:"writes"`
}

// SyncMFNav handles POST /api/jobs/sync-mf-nav
func (h *JobsHandler) SyncMFNav(w http.ResponseWriter, r *http.Request) {
	writes, err := h.navService.Run(r.Context())
	if err != nil {
		response.RespondError(w, statusForJobError(err), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, NavSyncResponse{OK: true, Writes: writes})
}

// AutoSyncResponse is the success envelope of the staleness fallback.
type AutoSyncResponse struct {
	OK     bool   `json:"ok"`
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// AutoSyncIfStale handles POST /api/jobs/auto-sync-if-stale
func (h *JobsHandler) AutoSyncIfStale(w http.ResponseWriter, r *http.Request) {
	result, err := h.maintenanceService.AutoSyncIfStale(r.Context())
	if err != nil {
		response.RespondError(w, statusForJobError(err), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, AutoSyncResponse{
		OK:     true,
		Action: result.Action,
		Reason: result.Reason,
	})
}

// statusForJobError maps a job failure to its HTTP status: 409 when the job
// is already running, 429 for rate-limit-classified vendor errors, 500
// otherwise.
func statusForJobError(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrJobAlreadyRunning):
		return http.StatusConflict
	case apperrors.IsRateLimited(err):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
