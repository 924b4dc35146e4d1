package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-reminders/internal/api/middleware"
	infraBQ "github.com/dvloznov/finance-reminders/internal/infra/bigquery"
	"github.com/dvloznov/finance-reminders/internal/jobs"
	"github.com/dvloznov/finance-reminders/internal/runner"
)

// DefaultTrigger is recorded for runs requested without an explicit trigger.
const DefaultTrigger = "api"

const defaultHistoryLimit = 20

// RunsHandler handles reminder run endpoints.
type RunsHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	history   infraBQ.RunRepository
	log       zerolog.Logger
}

// NewRunsHandler creates a new runs handler. history may be nil when runs
// are not persisted.
func NewRunsHandler(publisher jobs.Publisher, store jobs.JobStore, history infraBQ.RunRepository, log zerolog.Logger) *RunsHandler {
	return &RunsHandler{
		publisher: publisher,
		store:     store,
		history:   history,
		log:       log,
	}
}

// CreateRun handles POST /api/runs
func (h *RunsHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Trigger string `json:"trigger"`
	}

	// An empty body is a valid request.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Trigger == "" {
		req.Trigger = DefaultTrigger
	}

	job := &jobs.RunRemindersJob{Trigger: req.Trigger}
	if err := h.publisher.PublishRunReminders(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue reminder run")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to enqueue reminder run")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("trigger", job.Trigger).Msg("Reminder run enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  job.JobID,
		"trigger": job.Trigger,
		"status":  string(job.Status),
	})
}

// GetRun handles GET /api/runs/{id}
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		h.log.Debug().Err(err).Str("job_id", jobID).Msg("Run job not found")
		middleware.WriteError(w, http.StatusNotFound, "Run not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListRuns handles GET /api/runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Trigger: query.Get("trigger"),
		Status:  jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list run jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  jobsList,
		"count": len(jobsList),
	})
}

// ListHistory handles GET /api/runs/history, the persisted run records.
func (h *RunsHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		middleware.WriteError(w, http.StatusNotImplemented, "Run history is not configured")
		return
	}

	limit := defaultHistoryLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	rows, err := h.history.ListRecentReminderRuns(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list run history")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list run history")
		return
	}

	records := make([]*runner.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := runner.RecordFromRow(row)
		if err != nil {
			h.log.Warn().Err(err).Str("run_id", row.RunID).Msg("Skipping unreadable run row")
			continue
		}
		records = append(records, rec)
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  records,
		"count": len(records),
	})
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
