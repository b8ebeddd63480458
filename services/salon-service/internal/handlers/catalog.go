package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/intonus/salon-backend/services/salon-service/internal/model"
	"github.com/intonus/salon-backend/services/salon-service/internal/storage"
)

type CatalogHandler struct {
	repo   *storage.CatalogRepository
	logger *slog.Logger
}

func NewCatalogHandler(repo *storage.CatalogRepository, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{repo: repo, logger: logger}
}

func (h *CatalogHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	var s model.Service
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeError(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}
	if fe := validateService(&s); fe != nil {
		writeError(w, http.StatusBadRequest, errorBody{Error: fe.Reason, Field: fe.Field, Code: "validation"})
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errorBody{Error: "db error"})
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := h.repo.CreateService(ctx, tx, &s)
	if err != nil {
		h.logger.Error("service create failed", "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to create service"})
		return
	}
	s.ID = id
	if err := tx.Commit(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to commit"})
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *CatalogHandler) UpdateService(w http.ResponseWriter, r *http.Request) {
	var s model.Service
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeError(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}
	s.ID = r.PathValue("id")
	if fe := validateService(&s); fe != nil {
		writeError(w, http.StatusBadRequest, errorBody{Error: fe.Reason, Field: fe.Field, Code: "validation"})
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errorBody{Error: "db error"})
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.UpdateService(ctx, tx, &s); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, errorBody{Error: "service not found"})
			return
		}
		h.logger.Error("service update failed", "service_id", s.ID, "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to update service"})
		return
	}
	if err := tx.Commit(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to commit"})
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *CatalogHandler) DeleteService(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx := r.Context()

	tx, err := h.repo.Begin(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errorBody{Error: "db error"})
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.DeleteService(ctx, tx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, errorBody{Error: "service not found"})
			return
		}
		h.logger.Error("service delete failed", "service_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to delete service"})
		return
	}
	if err := tx.Commit(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to commit"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) AdminListServices(w http.ResponseWriter, r *http.Request) {
	h.listServices(w, r, false)
}

// PublicListServices backs the booking page service picker.
func (h *CatalogHandler) PublicListServices(w http.ResponseWriter, r *http.Request) {
	h.listServices(w, r, true)
}

func (h *CatalogHandler) listServices(w http.ResponseWriter, r *http.Request, activeOnly bool) {
	list, err := h.repo.ListServices(r.Context(), activeOnly)
	if err != nil {
		h.logger.Error("service list failed", "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to list services"})
		return
	}
	if list == nil {
		list = []model.Service{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *CatalogHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.ListTemplates(r.Context())
	if err != nil {
		h.logger.Error("template list failed", "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to list templates"})
		return
	}
	if list == nil {
		list = []model.Template{}
	}
	writeJSON(w, http.StatusOK, list)
}

// UpdateTemplate edits message text, route, delay and the active flag.
// Template types are fixed; new ones are added by migration.
func (h *CatalogHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var t model.Template
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}
	t.ID = r.PathValue("id")
	if t.MessageTemplate == "" {
		writeError(w, http.StatusBadRequest, errorBody{Error: "must not be empty", Field: "message_template", Code: "validation"})
		return
	}
	if fe := validateTemplateText(t.MessageTemplate); fe != nil {
		writeError(w, http.StatusBadRequest, errorBody{Error: fe.Reason, Field: fe.Field, Code: "validation"})
		return
	}
	if t.DelayHours < 0 {
		writeError(w, http.StatusBadRequest, errorBody{Error: "must not be negative", Field: "delay_hours", Code: "validation"})
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errorBody{Error: "db error"})
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.UpdateTemplate(ctx, tx, &t); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, errorBody{Error: "template not found"})
			return
		}
		h.logger.Error("template update failed", "template_id", t.ID, "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to update template"})
		return
	}
	if err := tx.Commit(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to commit"})
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type settingsResponse struct {
	model.GatewaySettings
	APIKeySet bool `json:"api_key_set"`
}

// GetSettings masks the gateway API key; the UI only needs to know whether
// one is configured.
func (h *CatalogHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.repo.GatewaySettings(r.Context())
	if err != nil {
		h.logger.Error("gateway settings load failed", "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to load settings"})
		return
	}
	resp := settingsResponse{GatewaySettings: s, APIKeySet: s.APIKey != ""}
	resp.APIKey = ""
	writeJSON(w, http.StatusOK, resp)
}

func (h *CatalogHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var s model.GatewaySettings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeError(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}
	if fe := validateSettings(&s); fe != nil {
		writeError(w, http.StatusBadRequest, errorBody{Error: fe.Reason, Field: fe.Field, Code: "validation"})
		return
	}

	ctx := r.Context()
	// An empty api_key in the request keeps the stored key, so the masked
	// GET response can be round-tripped without wiping credentials.
	if s.APIKey == "" {
		current, err := h.repo.GatewaySettings(ctx)
		if err != nil {
			h.logger.Error("gateway settings load failed", "err", err)
			writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to load settings"})
			return
		}
		s.APIKey = current.APIKey
	}

	if err := h.repo.SaveGatewaySettings(ctx, &s); err != nil {
		h.logger.Error("gateway settings save failed", "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to save settings"})
		return
	}

	resp := settingsResponse{GatewaySettings: s, APIKeySet: s.APIKey != ""}
	resp.APIKey = ""
	writeJSON(w, http.StatusOK, resp)
}
