package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/supplier-onboarding/pkg/logging"
	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

const maxDraftBytes = 256 * 1024

// Repository is the storage used by the handler.
type Repository interface {
	Get(ctx context.Context, id string) (*supplierapi.Draft, error)
	Put(ctx context.Context, id string, d *supplierapi.Draft) error
	Delete(ctx context.Context, id string) error
}

// Handler serves /api/drafts/{id}.
type Handler struct {
	repo   Repository
	logger *logging.Logger
	now    func() time.Time
}

func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger, now: time.Now}
}

// Routes mounts the draft endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/{id}", h.HandleGet)
	r.Put("/{id}", h.HandlePut)
	r.Delete("/{id}", h.HandleDelete)
}

func (h *Handler) draftID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeJSON(w, http.StatusBadRequest, supplierapi.ErrorResponse{Error: "Identifiant de brouillon invalide"})
		return "", false
	}
	return id, true
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.draftID(w, r)
	if !ok {
		return
	}
	d, err := h.repo.Get(r.Context(), id)
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, supplierapi.ErrorResponse{Error: "Brouillon introuvable"})
	case err != nil:
		h.logger.Error("failed to load draft", "draft_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, supplierapi.ErrorResponse{Error: "Impossible de charger le brouillon"})
	default:
		writeJSON(w, http.StatusOK, d)
	}
}

func (h *Handler) HandlePut(w http.ResponseWriter, r *http.Request) {
	id, ok := h.draftID(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxDraftBytes)
	var d supplierapi.Draft
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeJSON(w, http.StatusBadRequest, supplierapi.ErrorResponse{Error: "Requête invalide"})
		return
	}
	if err := Validate(&d); err != nil {
		writeJSON(w, http.StatusBadRequest, supplierapi.ErrorResponse{Error: err.Error()})
		return
	}
	if d.SavedAt.IsZero() {
		d.SavedAt = h.now().UTC()
	}
	if err := h.repo.Put(r.Context(), id, &d); err != nil {
		h.logger.Error("failed to save draft", "draft_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, supplierapi.ErrorResponse{Error: "Impossible d'enregistrer le brouillon"})
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.draftID(w, r)
	if !ok {
		return
	}
	if err := h.repo.Delete(r.Context(), id); err != nil {
		h.logger.Error("failed to delete draft", "draft_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, supplierapi.ErrorResponse{Error: "Impossible de supprimer le brouillon"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

var _ Repository = (*Store)(nil)
