package tables

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/common/logger"
	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/observability/metrics"
)

const maxUploadBytes = 32 << 20

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/tables/upload", h.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/tables", h.handleList).Methods(http.MethodGet)
	r.HandleFunc("/tables/{id}", h.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/tables/{id}", h.handleDelete).Methods(http.MethodDelete)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart request", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		http.Error(w, "failed to read upload", http.StatusBadRequest)
		return
	}

	table, err := Parse(header.Filename, content)
	if err != nil {
		if errors.Is(err, ErrUnsupportedFormat) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).WithField("filename", header.Filename).Error("failed to parse upload")
		http.Error(w, "failed to parse table", http.StatusBadRequest)
		return
	}

	id, err := h.store.Save(r.Context(), table)
	if err != nil {
		logger.Log.WithError(err).Error("failed to store table")
		http.Error(w, "failed to store table", http.StatusInternalServerError)
		return
	}

	metrics.IncTableUploaded()
	logger.Log.WithFields(map[string]interface{}{
		"table_id": id,
		"filename": header.Filename,
		"patients": len(table.Patients),
		"tests":    len(table.TestNames),
	}).Info("Table uploaded")

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"table_id": id,
		"filename": header.Filename,
		"patients": len(table.Patients),
		"tests":    len(table.TestNames),
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List(r.Context())
	if err != nil {
		logger.Log.WithError(err).Error("failed to list tables")
		http.Error(w, "failed to list tables", http.StatusInternalServerError)
		return
	}

	items := make([]map[string]interface{}, 0, len(list))
	for _, table := range list {
		items = append(items, map[string]interface{}{
			"table_id":   table.ID,
			"filename":   table.Filename,
			"file_type":  table.FileType,
			"patients":   len(table.Patients),
			"tests":      len(table.TestNames),
			"created_at": table.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items, "count": len(items)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	table, err := h.store.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, ErrTableNotFound) {
			http.Error(w, "table not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to get table")
		http.Error(w, "failed to get table", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"table": table})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	err := h.store.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, ErrTableNotFound) {
			http.Error(w, "table not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to delete table")
		http.Error(w, "failed to delete table", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
