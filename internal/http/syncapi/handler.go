package syncapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/moneo-app/moneo/internal/auth"
	"github.com/moneo-app/moneo/internal/entity"
	"github.com/moneo-app/moneo/internal/syncer"
)

type Handler struct {
	svc *syncer.Service
}

func NewHandler(svc *syncer.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/resolve", h.resolve)
	r.Post("/snapshot", h.snapshot)
}

type resolveRequest struct {
	Local    *entity.Record  `json:"local"`
	Remote   *entity.Record  `json:"remote"`
	Strategy syncer.Strategy `json:"strategy,omitempty"`
}

// resolve runs the conflict resolver on one local/remote pair. A MANUAL
// outcome comes back resolved:false with both copies attached; nothing is
// written either way -- applying a resolution is the snapshot endpoint's job.
func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Local == nil || req.Remote == nil {
		http.Error(w, "local and remote records are required", http.StatusBadRequest)
		return
	}

	res := syncer.Resolve(req.Local, req.Remote, req.Strategy)

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

type snapshotRequest struct {
	Collections map[string][]*entity.Record `json:"collections"`
	Strategy    syncer.Strategy             `json:"strategy,omitempty"`
	DryRun      bool                        `json:"dryRun,omitempty"`
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req snapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var (
		report *syncer.Report
		err    error
	)

	if req.DryRun {
		report, err = h.svc.Preview(r.Context(), userID, req.Collections, req.Strategy)
	} else {
		report, err = h.svc.Reconcile(r.Context(), userID, req.Collections, req.Strategy)
	}

	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(report); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
