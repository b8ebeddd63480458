package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/intonus/salon-backend/services/booking-service/internal/booking"
	"github.com/intonus/salon-backend/services/booking-service/internal/model"
	"github.com/intonus/salon-backend/services/booking-service/internal/storage"
)

type BookingHandler struct {
	svc    *booking.Service
	repo   *storage.BookingRepository
	logger *slog.Logger
	loc    *time.Location
	now    func() time.Time
}

func NewBookingHandler(svc *booking.Service, repo *storage.BookingRepository, logger *slog.Logger, loc *time.Location) *BookingHandler {
	return &BookingHandler{
		svc:    svc,
		repo:   repo,
		logger: logger,
		loc:    loc,
		now:    time.Now,
	}
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Code  string `json:"code,omitempty"`
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type createBookingRequest struct {
	ServiceID  string `json:"service_id"`
	StaffID    string `json:"staff_id"`
	ClientName string `json:"client_name"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Notes      string `json:"notes"`
	StartTime  string `json:"start_time"`
}

type appointmentResponse struct {
	ID          string `json:"id"`
	ClientID    string `json:"client_id,omitempty"`
	ServiceID   string `json:"service_id,omitempty"`
	StaffID     string `json:"staff_id,omitempty"`
	StaffName   string `json:"staff_name"`
	ServiceName string `json:"service_name"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Status      string `json:"status"`
	Notes       string `json:"notes,omitempty"`
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	staffID := strings.TrimSpace(r.URL.Query().Get("staff_id"))
	serviceID := strings.TrimSpace(r.URL.Query().Get("service_id"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if staffID == "" || serviceID == "" || dateStr == "" {
		writeError(w, http.StatusBadRequest, errorBody{Error: "staff_id, service_id and date are required"})
		return
	}

	date, err := time.ParseInLocation("2006-01-02", dateStr, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, errorBody{Error: "date must be YYYY-MM-DD", Field: "date"})
		return
	}

	slots, err := h.svc.SlotsForDay(r.Context(), staffID, serviceID, date)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, errorBody{Error: "service not found", Field: "service_id"})
			return
		}
		h.logger.Error("slot query failed", "staff_id", staffID, "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to load slots"})
		return
	}

	// For today, slots that already started are not offered.
	now := h.now().In(h.loc)
	sameDay := date.Year() == now.Year() && date.YearDay() == now.YearDay()

	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		if sameDay && s.Start.Before(now) {
			continue
		}
		items = append(items, slotItem{
			StartTime: s.Start.Format(time.RFC3339),
			EndTime:   s.End.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, errorBody{Error: "start_time must be RFC3339", Field: "start_time"})
		return
	}

	appt, err := h.svc.Book(r.Context(), booking.Request{
		ServiceID:  strings.TrimSpace(req.ServiceID),
		StaffID:    strings.TrimSpace(req.StaffID),
		ClientName: req.ClientName,
		Phone:      req.Phone,
		Email:      req.Email,
		Notes:      req.Notes,
		Start:      start,
	})
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(appt))
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, errorBody{Error: "appointment id required"})
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	appt, err := h.svc.Cancel(r.Context(), id, strings.TrimSpace(req.Reason))
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, errorBody{Error: "appointment not found"})
			return
		}
		h.logger.Error("cancel failed", "appointment_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to cancel appointment"})
		return
	}
	writeJSON(w, http.StatusOK, toResponse(appt))
}

func (h *BookingHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	staffID := strings.TrimSpace(r.URL.Query().Get("staff_id"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if staffID == "" || dateStr == "" {
		writeError(w, http.StatusBadRequest, errorBody{Error: "staff_id and date are required"})
		return
	}
	date, err := time.ParseInLocation("2006-01-02", dateStr, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, errorBody{Error: "date must be YYYY-MM-DD", Field: "date"})
		return
	}

	appts, err := h.repo.ListByStaffDay(r.Context(), staffID, date, date.AddDate(0, 0, 1))
	if err != nil {
		h.logger.Error("appointment list failed", "staff_id", staffID, "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to list appointments"})
		return
	}

	items := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		items = append(items, toResponse(a))
	}
	writeJSON(w, http.StatusOK, items)
}

type adminPatchRequest struct {
	Status    *string `json:"status"`
	Notes     *string `json:"notes"`
	StartTime *string `json:"start_time"`
}

// AdminPatch updates status, notes or start time. A time change re-checks
// overlap under the per-staff lock before committing.
func (h *BookingHandler) AdminPatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req adminPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}
	if req.Status != nil && !validStatus(*req.Status) {
		writeError(w, http.StatusBadRequest, errorBody{Error: "unknown status", Field: "status"})
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errorBody{Error: "db error"})
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, errorBody{Error: "appointment not found"})
			return
		}
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to load appointment"})
		return
	}

	if req.Status != nil {
		appt.Status = *req.Status
	}
	if req.Notes != nil {
		appt.Notes = *req.Notes
	}
	if req.StartTime != nil {
		start, err := time.Parse(time.RFC3339, *req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, errorBody{Error: "start_time must be RFC3339", Field: "start_time"})
			return
		}
		duration := appt.EndTime.Sub(appt.StartTime)
		appt.StartTime = start.In(h.loc)
		appt.EndTime = appt.StartTime.Add(duration)

		if err := h.repo.LockStaff(ctx, tx, appt.StaffID); err != nil {
			writeError(w, http.StatusInternalServerError, errorBody{Error: "db error"})
			return
		}
		conflict, err := h.repo.Conflicts(ctx, tx, appt.StaffID, appt.StartTime, appt.EndTime, appt.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, errorBody{Error: "db error"})
			return
		}
		if conflict {
			writeError(w, http.StatusConflict, errorBody{Error: "time overlaps another appointment", Code: "conflict"})
			return
		}
	}

	if err := h.repo.Update(ctx, tx, appt); err != nil {
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to update appointment"})
		return
	}
	if err := tx.Commit(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to commit"})
		return
	}
	writeJSON(w, http.StatusOK, toResponse(appt))
}

func (h *BookingHandler) writeBookingError(w http.ResponseWriter, err error) {
	var ve booking.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, errorBody{Error: ve.Error(), Field: ve.Field, Code: "validation"})
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, errorBody{Error: "requested slot is no longer available", Code: "slot_unavailable"})
	case errors.Is(err, storage.ErrConflict):
		writeError(w, http.StatusConflict, errorBody{Error: "time overlaps another appointment", Code: "conflict"})
	case storage.IsNotFound(err):
		writeError(w, http.StatusNotFound, errorBody{Error: "not found"})
	default:
		h.logger.Error("booking failed", "err", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "failed to create booking"})
	}
}

func validStatus(s string) bool {
	switch s {
	case "pending", "confirmed", "cancelled", "completed":
		return true
	}
	return false
}

func toResponse(a model.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:          a.ID,
		ClientID:    a.ClientID,
		ServiceID:   a.ServiceID,
		StaffID:     a.StaffID,
		StaffName:   a.StaffName,
		ServiceName: a.ServiceName,
		StartTime:   a.StartTime.Format(time.RFC3339),
		EndTime:     a.EndTime.Format(time.RFC3339),
		Status:      a.Status,
		Notes:       a.Notes,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, body errorBody) {
	writeJSON(w, status, body)
}
