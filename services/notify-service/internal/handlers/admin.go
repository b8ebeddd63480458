package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/intonus/salon-backend/services/notify-service/internal/queue"
)

type Balance interface {
	CheckBalance(ctx context.Context) (float64, error)
}

type AdminHandler struct {
	repo    *queue.Repository
	balance Balance
	logger  *slog.Logger
}

func NewAdminHandler(repo *queue.Repository, balance Balance, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{repo: repo, balance: balance, logger: logger}
}

func (h *AdminHandler) Balance(w http.ResponseWriter, r *http.Request) {
	credits, err := h.balance.CheckBalance(r.Context())
	if err != nil {
		h.logger.Error("balance check failed", "err", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "gateway unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"credits": credits})
}

type failedItemResponse struct {
	ID            int64  `json:"id"`
	AppointmentID string `json:"appointment_id"`
	Type          string `json:"type"`
	ScheduledTime string `json:"scheduled_time"`
	ErrorMessage  string `json:"error_message"`
	FailedAt      string `json:"failed_at"`
}

func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status != "failed" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "only status=failed is supported"})
		return
	}

	limit := 100
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	items, err := h.repo.ListFailed(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed-items list failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list notifications"})
		return
	}

	resp := make([]failedItemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, failedItemResponse{
			ID:            it.ID,
			AppointmentID: it.AppointmentID,
			Type:          it.TemplateType,
			ScheduledTime: it.ScheduledTime.Format(time.RFC3339),
			ErrorMessage:  it.ErrorMessage,
			FailedAt:      it.UpdatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) Requeue(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid notification id"})
		return
	}

	if err := h.repo.Requeue(r.Context(), id); err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no failed notification with that id"})
			return
		}
		h.logger.Error("requeue failed", "queue_id", id, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to requeue"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "pending"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
