package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/investoscope/investoscope-backend/internal/api/response"
	"github.com/investoscope/investoscope-backend/internal/progress"
	"github.com/investoscope/investoscope-backend/internal/repository"
)

const defaultLogLimit = 20

// ProgressHandler handles job progress polling and sync log queries
type ProgressHandler struct {
	store    progress.Store
	syncLogs *repository.SyncLogRepository
}

// NewProgressHandler creates a new ProgressHandler
func NewProgressHandler(store progress.Store, syncLogs *repository.SyncLogRepository) *ProgressHandler {
	return &ProgressHandler{
		store:    store,
		syncLogs: syncLogs,
	}
}

// Progress handles GET /api/jobs/progress/{jobId}. An unknown job ID yields
// the optimistic running placeholder, never a 404: a client may poll before
// the job's first progress write lands.
func (h *ProgressHandler) Progress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	snap, err := h.store.Get(r.Context(), jobID)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snap.Current == "" && snap.Total == 0 && snap.Processed == 0 {
		snap.Current = "Not started"
	}

	response.RespondJSON(w, http.StatusOK, snap)
}

// Logs handles GET /api/jobs/logs?limit=
func (h *ProgressHandler) Logs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			response.RespondError(w, http.StatusBadRequest, "limit must be an integer between 1 and 200")
			return
		}
		limit = parsed
	}

	logs, err := h.syncLogs.Recent(r.Context(), limit)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, logs)
}
