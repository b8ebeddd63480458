package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/intonus/salon-backend/libs/outbox"
	"github.com/intonus/salon-backend/services/salon-service/internal/model"
	"github.com/intonus/salon-backend/services/salon-service/internal/storage"
)

type Outbox interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

type StaffHandler struct {
	repo   *storage.StaffRepository
	outbox Outbox
	logger *slog.Logger
}

func NewStaffHandler(repo *storage.StaffRepository, ob Outbox, logger *slog.Logger) *StaffHandler {
	return &StaffHandler{repo: repo, outbox: ob, logger: logger}
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Code  string `json:"code,omitempty"`
}

// staffChangeEvent is the payload for salon.staff.*.v1 and
// salon.schedule.updated.v1 topics.
type staffChangeEvent struct {
	StaffID    string `json:"staff_id"`
	StaffName  string `json:"staff_name"`
	ChangeType string `json:"change_type"`
	Details    string `json:"details"`
}

func (h *StaffHandler) Create(w http.ResponseWriter, r *http.Request) {
	var s model.Staff
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeError(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}
	if fe := validateStaff(&s); fe != nil {
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

	id, err := h.repo.Create(ctx, tx, &s)
	if err != nil {
		h.logger.Error("staff create failed", "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to create staff"})
		return
	}
	s.ID = id
	if err := emitStaffEvent(ctx, h.outbox, tx, "salon.staff.created.v1", s.ID, s.Name, "staff", "Добавлен новый сотрудник"); err != nil {
		h.logger.Error("outbox insert failed", "staff_id", s.ID, "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to create staff"})
		return
	}

	if err := tx.Commit(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to commit"})
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *StaffHandler) Update(w http.ResponseWriter, r *http.Request) {
	var s model.Staff
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeError(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}
	s.ID = r.PathValue("id")
	if fe := validateStaff(&s); fe != nil {
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

	if err := h.repo.Update(ctx, tx, &s); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, errorBody{Error: "staff not found"})
			return
		}
		h.logger.Error("staff update failed", "staff_id", s.ID, "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to update staff"})
		return
	}
	if err := emitStaffEvent(ctx, h.outbox, tx, "salon.staff.updated.v1", s.ID, s.Name, "staff", "Данные сотрудника обновлены"); err != nil {
		h.logger.Error("outbox insert failed", "staff_id", s.ID, "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to update staff"})
		return
	}

	if err := tx.Commit(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to commit"})
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *StaffHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx := r.Context()

	existing, err := h.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, errorBody{Error: "staff not found"})
			return
		}
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to load staff"})
		return
	}

	tx, err := h.repo.Begin(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errorBody{Error: "db error"})
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.Delete(ctx, tx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, errorBody{Error: "staff not found"})
			return
		}
		h.logger.Error("staff delete failed", "staff_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to delete staff"})
		return
	}
	if err := emitStaffEvent(ctx, h.outbox, tx, "salon.staff.deleted.v1", id, existing.Name, "staff", "Сотрудник удалён"); err != nil {
		h.logger.Error("outbox insert failed", "staff_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to delete staff"})
		return
	}

	if err := tx.Commit(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to commit"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StaffHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.repo.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, errorBody{Error: "staff not found"})
			return
		}
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to load staff"})
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *StaffHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List(r.Context(), false)
	if err != nil {
		h.logger.Error("staff list failed", "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to list staff"})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type publicStaff struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Specialty  string   `json:"specialty,omitempty"`
	Bio        string   `json:"bio,omitempty"`
	ImageURL   string   `json:"image_url,omitempty"`
	ServiceIDs []string `json:"service_ids"`
}

// PublicList serves the booking page. Contact details and Telegram
// credentials are never exposed here.
func (h *StaffHandler) PublicList(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List(r.Context(), true)
	if err != nil {
		h.logger.Error("staff list failed", "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to list staff"})
		return
	}
	out := make([]publicStaff, 0, len(list))
	for _, s := range list {
		out = append(out, publicStaff{
			ID:         s.ID,
			Name:       s.Name,
			Specialty:  s.Specialty,
			Bio:        s.Bio,
			ImageURL:   s.ImageURL,
			ServiceIDs: s.ServiceIDs,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// emitStaffEvent writes the alert event in the same transaction as the
// change, so the event exists iff the change committed.
func emitStaffEvent(ctx context.Context, ob Outbox, tx pgx.Tx, topic, staffID, staffName, changeType, details string) error {
	payload, err := json.Marshal(staffChangeEvent{
		StaffID:    staffID,
		StaffName:  staffName,
		ChangeType: changeType,
		Details:    details,
	})
	if err != nil {
		return err
	}
	return ob.Insert(ctx, tx, outbox.Event{
		AggregateType: "staff",
		AggregateID:   staffID,
		EventType:     topic,
		Payload:       payload,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, body errorBody) {
	writeJSON(w, status, body)
}
