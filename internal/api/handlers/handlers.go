package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/mailspend/internal/api/middleware"
	"github.com/dvloznov/mailspend/internal/mailsync"
)

// SyncHandler handles mailbox sync endpoints.
type SyncHandler struct {
	orch *mailsync.Orchestrator
	log  zerolog.Logger
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(orch *mailsync.Orchestrator, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{orch: orch, log: log}
}

// StartSync handles POST /api/sync
func (h *SyncHandler) StartSync(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}

	var req struct {
		Query      string `json:"query"`
		Category   string `json:"category"`
		MaxResults int    `json:"max_results"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	jobID, err := h.orch.StartSync(r.Context(), userID, req.Query, req.Category, req.MaxResults)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to start sync")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to start sync")
		return
	}

	h.log.Info().Str("job_id", jobID).Str("user_id", userID).Msg("Sync job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": "pending",
	})
}

// GetJob handles GET /api/sync/jobs/{id}
func (h *SyncHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.orch.GetStatus(r.Context(), jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}
	if job == nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/sync/jobs
func (h *SyncHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}

	query := r.URL.Query()
	limit := 20
	if limitStr := query.Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil {
			limit = n
		}
	}

	jobsList, err := h.orch.ListRecentJobs(r.Context(), userID, limit, query.Get("category"))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// CategoriesHandler handles category correction endpoints.
type CategoriesHandler struct {
	orch *mailsync.Orchestrator
	log  zerolog.Logger
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(orch *mailsync.Orchestrator, log zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{orch: orch, log: log}
}

// BulkCategorize handles POST /api/categories/merchant
func (h *CategoriesHandler) BulkCategorize(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}

	var req struct {
		Merchant    string `json:"merchant"`
		Category    string `json:"category"`
		Subcategory string `json:"subcategory"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Merchant == "" || req.Category == "" {
		middleware.WriteError(w, http.StatusBadRequest, "merchant and category are required")
		return
	}

	updated, err := h.orch.BulkCategorizeByMerchant(r.Context(), userID, req.Merchant, req.Category, req.Subcategory)
	if err != nil {
		h.log.Error().Err(err).Str("merchant", req.Merchant).Msg("Failed to recategorize merchant")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to recategorize merchant")
		return
	}

	h.log.Info().
		Str("user_id", userID).
		Str("merchant", req.Merchant).
		Str("category", req.Category).
		Int("updated", updated).
		Msg("Merchant recategorized")

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"merchant": req.Merchant,
		"category": req.Category,
		"updated":  updated,
	})
}
