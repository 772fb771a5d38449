package pipeline

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/common/logger"
	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/common/models"
	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/tables"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/pipeline/process", h.handleProcessInline).Methods(http.MethodPost)
	r.HandleFunc("/pipeline/process/{table_id}", h.handleProcessTable).Methods(http.MethodPost)
	r.HandleFunc("/pipeline/report/{table_id}", h.handleReport).Methods(http.MethodGet)
	r.HandleFunc("/pipeline/runs", h.handleListRuns).Methods(http.MethodGet)
	r.HandleFunc("/pipeline/runs/{id}", h.handleGetRun).Methods(http.MethodGet)
}

// handleProcessInline accepts a {test_names, patients} document directly,
// without a prior upload.
func (h *Handler) handleProcessInline(w http.ResponseWriter, r *http.Request) {
	var table models.TableData
	if err := json.NewDecoder(r.Body).Decode(&table); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if len(table.Patients) == 0 {
		http.Error(w, "patients are required", http.StatusBadRequest)
		return
	}

	result := h.service.Process(r.Context(), table)
	h.service.record(r.Context(), result)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleProcessTable(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ProcessTable(r.Context(), mux.Vars(r)["table_id"])
	if err != nil {
		if errors.Is(err, tables.ErrTableNotFound) {
			http.Error(w, "table not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to process table")
		http.Error(w, "failed to process table", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleReport serves the grouped view of the latest run for a table:
// category groups, abnormal values and the resolution match rate.
func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	tableID := mux.Vars(r)["table_id"]
	result, ok := h.service.Report(tableID)
	if !ok {
		http.Error(w, "table has not been processed", http.StatusNotFound)
		return
	}

	matchRate := 0.0
	if result.TotalCount > 0 {
		matchRate = float64(result.MatchedCount) / float64(result.TotalCount)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":         result.RunID,
		"table_id":       result.TableID,
		"groups":         result.Groups,
		"abnormal_tests": result.AbnormalTests,
		"matched_count":  result.MatchedCount,
		"total_count":    result.TotalCount,
		"match_rate":     matchRate,
		"completed_at":   result.CompletedAt,
	})
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if h.service.repo == nil {
		http.Error(w, "run history is disabled", http.StatusServiceUnavailable)
		return
	}
	runs, err := h.service.repo.ListRuns(r.Context(), parseLimit(r, 50))
	if err != nil {
		logger.Log.WithError(err).Error("failed to list pipeline runs")
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": runs})
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if h.service.repo == nil {
		http.Error(w, "run history is disabled", http.StatusServiceUnavailable)
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}
	run, err := h.service.repo.GetRun(r.Context(), id)
	if err != nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"run": run})
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return v
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
