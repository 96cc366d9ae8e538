package migrate

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/moneo-app/moneo/internal/auth"
	"github.com/moneo-app/moneo/internal/migration"
)

type Handler struct {
	importer *migration.Importer
}

func NewHandler(importer *migration.Importer) *Handler {
	return &Handler{importer: importer}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/import", h.importData)
	r.Delete("/data", h.wipe)
}

// importData accepts the exported entity graph either as a raw JSON body or
// as a multipart upload under the "file" field.
func (h *Handler) importData(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body := r.Body

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, "failed to parse form: "+err.Error(), http.StatusBadRequest)
			return
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file field is required", http.StatusBadRequest)
			return
		}
		defer file.Close()

		body = file
	}

	payload, err := migration.DecodePayload(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.importer.Run(r.Context(), userID, payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(result); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

type wipeResponse struct {
	Deleted map[string]int `json:"deleted"`
	Total   int            `json:"total"`
}

func (h *Handler) wipe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	counts, total, err := h.importer.Wipe(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(wipeResponse{Deleted: counts, Total: total}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
