package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/intonus/salon-backend/services/salon-service/internal/model"
	"github.com/intonus/salon-backend/services/salon-service/internal/storage"
)

type ScheduleHandler struct {
	repo   *storage.ScheduleRepository
	staff  *storage.StaffRepository
	outbox Outbox
	logger *slog.Logger
}

func NewScheduleHandler(repo *storage.ScheduleRepository, staff *storage.StaffRepository, ob Outbox, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{repo: repo, staff: staff, outbox: ob, logger: logger}
}

func (h *ScheduleHandler) ListWorkingHours(w http.ResponseWriter, r *http.Request) {
	staffID := r.PathValue("id")
	list, err := h.repo.ListWorkingHours(r.Context(), staffID)
	if err != nil {
		h.logger.Error("working hours list failed", "staff_id", staffID, "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to list working hours"})
		return
	}
	if list == nil {
		list = []model.WorkingHours{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *ScheduleHandler) CreateWorkingHours(w http.ResponseWriter, r *http.Request) {
	var wh model.WorkingHours
	if err := json.NewDecoder(r.Body).Decode(&wh); err != nil {
		writeError(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}
	wh.StaffID = r.PathValue("id")
	if fe := validateWorkingHours(&wh); fe != nil {
		writeError(w, http.StatusBadRequest, errorBody{Error: fe.Reason, Field: fe.Field, Code: "validation"})
		return
	}

	ctx := r.Context()
	staff, err := h.staff.Get(ctx, wh.StaffID)
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

	id, err := h.repo.CreateWorkingHours(ctx, tx, &wh)
	if err != nil {
		h.logger.Error("working hours create failed", "staff_id", wh.StaffID, "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to create working hours"})
		return
	}
	wh.ID = id

	details := fmt.Sprintf("Добавлены рабочие часы %s–%s", wh.StartTime, wh.EndTime)
	if err := emitStaffEvent(ctx, h.outbox, tx, "salon.schedule.updated.v1", staff.ID, staff.Name, "working_hours", details); err != nil {
		h.logger.Error("outbox insert failed", "staff_id", staff.ID, "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to create working hours"})
		return
	}

	if err := tx.Commit(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to commit"})
		return
	}
	writeJSON(w, http.StatusCreated, wh)
}

func (h *ScheduleHandler) UpdateWorkingHours(w http.ResponseWriter, r *http.Request) {
	var wh model.WorkingHours
	if err := json.NewDecoder(r.Body).Decode(&wh); err != nil {
		writeError(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}
	wh.ID = r.PathValue("id")
	if fe := validateWorkingHours(&wh); fe != nil {
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

	if err := h.repo.UpdateWorkingHours(ctx, tx, &wh); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, errorBody{Error: "working hours not found"})
			return
		}
		h.logger.Error("working hours update failed", "working_hours_id", wh.ID, "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to update working hours"})
		return
	}

	if err := h.emitScheduleChange(ctx, tx, wh.StaffID, "working_hours",
		fmt.Sprintf("Изменены рабочие часы %s–%s", wh.StartTime, wh.EndTime)); err != nil {
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to update working hours"})
		return
	}

	if err := tx.Commit(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to commit"})
		return
	}
	writeJSON(w, http.StatusOK, wh)
}

func (h *ScheduleHandler) DeleteWorkingHours(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx := r.Context()

	tx, err := h.repo.Begin(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errorBody{Error: "db error"})
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	staffID, err := h.repo.DeleteWorkingHours(ctx, tx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, errorBody{Error: "working hours not found"})
			return
		}
		h.logger.Error("working hours delete failed", "working_hours_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to delete working hours"})
		return
	}

	if err := h.emitScheduleChange(ctx, tx, staffID, "working_hours", "Удалены рабочие часы"); err != nil {
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to delete working hours"})
		return
	}

	if err := tx.Commit(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to commit"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ScheduleHandler) ListTimeOff(w http.ResponseWriter, r *http.Request) {
	staffID := r.PathValue("id")
	list, err := h.repo.ListTimeOff(r.Context(), staffID)
	if err != nil {
		h.logger.Error("time off list failed", "staff_id", staffID, "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to list time off"})
		return
	}
	if list == nil {
		list = []model.TimeOff{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *ScheduleHandler) CreateTimeOff(w http.ResponseWriter, r *http.Request) {
	var off model.TimeOff
	if err := json.NewDecoder(r.Body).Decode(&off); err != nil {
		writeError(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}
	off.StaffID = r.PathValue("id")
	if fe := validateTimeOff(&off); fe != nil {
		writeError(w, http.StatusBadRequest, errorBody{Error: fe.Reason, Field: fe.Field, Code: "validation"})
		return
	}

	ctx := r.Context()
	staff, err := h.staff.Get(ctx, off.StaffID)
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

	id, err := h.repo.CreateTimeOff(ctx, tx, &off)
	if err != nil {
		h.logger.Error("time off create failed", "staff_id", off.StaffID, "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to create time off"})
		return
	}
	off.ID = id

	details := fmt.Sprintf("%s — %s", off.StartDate, off.EndDate)
	if off.Reason != "" {
		details += ": " + off.Reason
	}
	if err := emitStaffEvent(ctx, h.outbox, tx, "salon.schedule.updated.v1", staff.ID, staff.Name, "time_off", details); err != nil {
		h.logger.Error("outbox insert failed", "staff_id", staff.ID, "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to create time off"})
		return
	}

	if err := tx.Commit(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to commit"})
		return
	}
	writeJSON(w, http.StatusCreated, off)
}

func (h *ScheduleHandler) DeleteTimeOff(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx := r.Context()

	tx, err := h.repo.Begin(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errorBody{Error: "db error"})
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	staffID, err := h.repo.DeleteTimeOff(ctx, tx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, errorBody{Error: "time off not found"})
			return
		}
		h.logger.Error("time off delete failed", "time_off_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to delete time off"})
		return
	}

	if err := h.emitScheduleChange(ctx, tx, staffID, "time_off", "Отпуск/выходной отменён"); err != nil {
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to delete time off"})
		return
	}

	if err := tx.Commit(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to commit"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ScheduleHandler) emitScheduleChange(ctx context.Context, tx pgx.Tx, staffID, changeType, details string) error {
	staff, err := h.staff.Get(ctx, staffID)
	if err != nil {
		// The schedule row existed, so treat a missing staff row as a race
		// with deletion and skip the alert.
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := emitStaffEvent(ctx, h.outbox, tx, "salon.schedule.updated.v1", staff.ID, staff.Name, changeType, details); err != nil {
		h.logger.Error("outbox insert failed", "staff_id", staffID, "err", err)
		return err
	}
	return nil
}
