package booking

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"

	"github.com/intonus/salon-backend/libs/outbox"
	"github.com/intonus/salon-backend/services/booking-service/internal/availability"
	"github.com/intonus/salon-backend/services/booking-service/internal/model"
	"github.com/intonus/salon-backend/services/booking-service/internal/schedule"
	"github.com/intonus/salon-backend/services/booking-service/internal/storage"
)

type Ledger interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	LockStaff(ctx context.Context, tx pgx.Tx, staffID string) error
	Conflicts(ctx context.Context, tx pgx.Tx, staffID string, start, end time.Time, excludeID string) (bool, error)
	Create(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (string, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error)
	Cancel(ctx context.Context, tx pgx.Tx, id string) error
	ListBookedIntervals(ctx context.Context, staffID string, start, end time.Time) ([]model.Appointment, error)
}

type Catalog interface {
	GetService(ctx context.Context, id string) (model.Service, error)
	GetStaff(ctx context.Context, id string) (model.Staff, error)
	StaffPerformsService(ctx context.Context, staffID, serviceID string) (bool, error)
	RulesForStaff(ctx context.Context, staffID string) ([]schedule.Rule, error)
	TimeOffForStaff(ctx context.Context, staffID string, around time.Time) ([]schedule.TimeOff, error)
}

type Clients interface {
	UpsertByPhone(ctx context.Context, tx pgx.Tx, name, phone, email string) (model.Client, error)
}

type Templates interface {
	ActiveTemplates(ctx context.Context) ([]storage.Template, error)
	Enqueue(ctx context.Context, tx pgx.Tx, appointmentID, templateID string, scheduledTime time.Time) error
}

type Outbox interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

// Service runs the booking flow: validate, upsert the client, re-check the
// slot under the per-staff lock, insert the appointment, then enqueue
// notifications best-effort.
type Service struct {
	ledger    Ledger
	catalog   Catalog
	clients   Clients
	templates Templates
	outbox    Outbox
	logger    *slog.Logger
	loc       *time.Location
	now       func() time.Time
}

func NewService(ledger Ledger, catalog Catalog, clients Clients, templates Templates, outboxRepo Outbox, logger *slog.Logger, loc *time.Location) *Service {
	return &Service{
		ledger:    ledger,
		catalog:   catalog,
		clients:   clients,
		templates: templates,
		outbox:    outboxRepo,
		logger:    logger,
		loc:       loc,
		now:       time.Now,
	}
}

type Request struct {
	ServiceID  string
	StaffID    string
	ClientName string
	Phone      string
	Email      string
	Notes      string
	Start      time.Time
}

func (s *Service) Book(ctx context.Context, req Request) (model.Appointment, error) {
	req.ClientName = strings.TrimSpace(req.ClientName)
	if utf8.RuneCountInString(req.ClientName) < 2 {
		return model.Appointment{}, ValidationError{Field: "client_name", Reason: "must be at least 2 characters"}
	}
	phone, ok := NormalizePhone(req.Phone)
	if !ok {
		return model.Appointment{}, ValidationError{Field: "phone", Reason: "not a valid phone number"}
	}
	if req.Start.IsZero() {
		return model.Appointment{}, ValidationError{Field: "start_time", Reason: "required"}
	}
	if req.Start.Before(s.now()) {
		return model.Appointment{}, ValidationError{Field: "start_time", Reason: "is in the past"}
	}

	svc, err := s.catalog.GetService(ctx, req.ServiceID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, ValidationError{Field: "service_id", Reason: "unknown service"}
		}
		return model.Appointment{}, err
	}
	if !svc.IsActive {
		return model.Appointment{}, ValidationError{Field: "service_id", Reason: "service is not active"}
	}

	staff, err := s.catalog.GetStaff(ctx, req.StaffID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, ValidationError{Field: "staff_id", Reason: "unknown staff member"}
		}
		return model.Appointment{}, err
	}
	if !staff.IsActive {
		return model.Appointment{}, ValidationError{Field: "staff_id", Reason: "staff member is not active"}
	}

	performs, err := s.catalog.StaffPerformsService(ctx, req.StaffID, req.ServiceID)
	if err != nil {
		return model.Appointment{}, err
	}
	if !performs {
		return model.Appointment{}, ValidationError{Field: "service_id", Reason: "staff member does not perform this service"}
	}

	duration := time.Duration(svc.DurationMinutes) * time.Minute
	start := req.Start.In(s.loc)
	end := start.Add(duration)

	tx, err := s.ledger.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// All slot checks for this staff member happen under the same lock, so a
	// slot verified free here stays free until commit.
	if err := s.ledger.LockStaff(ctx, tx, req.StaffID); err != nil {
		return model.Appointment{}, err
	}

	free, err := s.slotIsFree(ctx, req.StaffID, start, duration)
	if err != nil {
		return model.Appointment{}, err
	}
	if !free {
		return model.Appointment{}, ErrSlotUnavailable
	}

	conflict, err := s.ledger.Conflicts(ctx, tx, req.StaffID, start, end, "")
	if err != nil {
		return model.Appointment{}, err
	}
	if conflict {
		return model.Appointment{}, storage.ErrConflict
	}

	client, err := s.clients.UpsertByPhone(ctx, tx, req.ClientName, phone, strings.TrimSpace(req.Email))
	if err != nil {
		return model.Appointment{}, err
	}

	appt := model.Appointment{
		ClientID:    client.ID,
		ServiceID:   svc.ID,
		StaffID:     staff.ID,
		StaffName:   staff.Name,
		ServiceName: svc.Name,
		StartTime:   start,
		EndTime:     end,
		Status:      "pending",
		Notes:       strings.TrimSpace(req.Notes),
	}
	id, err := s.ledger.Create(ctx, tx, &appt)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.ID = id

	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}

	// Fire-and-forget: a failed enqueue must never undo a booked appointment.
	s.enqueueNotifications(ctx, appt, client)
	return appt, nil
}

// Cancel flips the appointment to cancelled. Cancelling an already-cancelled
// appointment is a no-op.
func (s *Service) Cancel(ctx context.Context, id, reason string) (model.Appointment, error) {
	tx, err := s.ledger.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := s.ledger.GetForUpdate(ctx, tx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if appt.Status == "cancelled" {
		return appt, nil
	}

	if err := s.ledger.Cancel(ctx, tx, id); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	appt.Status = "cancelled"

	s.enqueueCancellation(ctx, appt, reason)
	return appt, nil
}

// SlotsForDay resolves the bookable slots for one staff member, service and
// calendar date. Past-slot filtering for today is the HTTP layer's concern.
func (s *Service) SlotsForDay(ctx context.Context, staffID, serviceID string, date time.Time) ([]availability.Slot, error) {
	svc, err := s.catalog.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	intervals, busy, err := s.dayIntervals(ctx, staffID, date)
	if err != nil {
		return nil, err
	}
	return availability.Slots(intervals, busy, time.Duration(svc.DurationMinutes)*time.Minute), nil
}

func (s *Service) slotIsFree(ctx context.Context, staffID string, start time.Time, duration time.Duration) (bool, error) {
	intervals, busy, err := s.dayIntervals(ctx, staffID, start)
	if err != nil {
		return false, err
	}
	for _, slot := range availability.Slots(intervals, busy, duration) {
		if slot.Start.Equal(start) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) dayIntervals(ctx context.Context, staffID string, date time.Time) ([]availability.Interval, []availability.Interval, error) {
	rules, err := s.catalog.RulesForStaff(ctx, staffID)
	if err != nil {
		return nil, nil, err
	}
	timeOff, err := s.catalog.TimeOffForStaff(ctx, staffID, date)
	if err != nil {
		return nil, nil, err
	}

	working := schedule.IntervalsFor(rules, timeOff, date.In(s.loc), s.loc)
	if len(working) == 0 {
		return nil, nil, nil
	}

	intervals := make([]availability.Interval, 0, len(working))
	for _, iv := range working {
		intervals = append(intervals, availability.Interval{Start: iv.Start, End: iv.End})
	}

	booked, err := s.ledger.ListBookedIntervals(ctx, staffID, intervals[0].Start, intervals[len(intervals)-1].End)
	if err != nil {
		return nil, nil, err
	}
	busy := make([]availability.Interval, 0, len(booked))
	for _, a := range booked {
		busy = append(busy, availability.Interval{Start: a.StartTime, End: a.EndTime})
	}
	return intervals, busy, nil
}

func (s *Service) enqueueNotifications(ctx context.Context, appt model.Appointment, client model.Client) {
	templates, err := s.templates.ActiveTemplates(ctx)
	if err != nil {
		s.logger.Warn("notification enqueue skipped: templates load failed", "appointment_id", appt.ID, "err", err)
		templates = nil
	}

	tx, err := s.ledger.Begin(ctx)
	if err != nil {
		s.logger.Warn("notification enqueue skipped: begin failed", "appointment_id", appt.ID, "err", err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := s.now()
	for _, tpl := range templates {
		at, ok := scheduleTime(tpl, appt.StartTime, now)
		if !ok {
			continue
		}
		if err := s.templates.Enqueue(ctx, tx, appt.ID, tpl.ID, at); err != nil {
			s.logger.Warn("notification enqueue failed", "appointment_id", appt.ID, "template_id", tpl.ID, "err", err)
			return
		}
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"staff_id":       appt.StaffID,
		"staff_name":     appt.StaffName,
		"service_name":   appt.ServiceName,
		"client_name":    client.Name,
		"client_phone":   client.Phone,
		"start_time":     appt.StartTime.Format(time.RFC3339),
		"end_time":       appt.EndTime.Format(time.RFC3339),
	})
	if err == nil {
		if err := s.outbox.Insert(ctx, tx, outbox.Event{
			AggregateType: "appointment",
			AggregateID:   appt.ID,
			EventType:     "booking.appointment.booked.v1",
			Payload:       payload,
		}); err != nil {
			s.logger.Warn("booked event enqueue failed", "appointment_id", appt.ID, "err", err)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		s.logger.Warn("notification enqueue commit failed", "appointment_id", appt.ID, "err", err)
	}
}

func (s *Service) enqueueCancellation(ctx context.Context, appt model.Appointment, reason string) {
	tx, err := s.ledger.Begin(ctx)
	if err != nil {
		s.logger.Warn("cancellation enqueue skipped: begin failed", "appointment_id", appt.ID, "err", err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"staff_id":       appt.StaffID,
		"staff_name":     appt.StaffName,
		"service_name":   appt.ServiceName,
		"start_time":     appt.StartTime.Format(time.RFC3339),
		"end_time":       appt.EndTime.Format(time.RFC3339),
		"reason":         reason,
	})
	if err != nil {
		return
	}
	if err := s.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     "booking.appointment.cancelled.v1",
		Payload:       payload,
	}); err != nil {
		s.logger.Warn("cancelled event enqueue failed", "appointment_id", appt.ID, "err", err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		s.logger.Warn("cancellation enqueue commit failed", "appointment_id", appt.ID, "err", err)
	}
}

// scheduleTime derives when a template's message should go out relative to
// the appointment. Reminder times already in the past are not enqueued.
func scheduleTime(tpl storage.Template, apptStart, now time.Time) (time.Time, bool) {
	delay := time.Duration(tpl.DelayHours) * time.Hour
	switch tpl.Type {
	case "appointment_created":
		return now, true
	case "appointment_reminder":
		at := apptStart.Add(-delay)
		if at.Before(now) {
			return time.Time{}, false
		}
		return at, true
	case "post_appointment", "return_reminder":
		return apptStart.Add(delay), true
	default:
		return time.Time{}, false
	}
}
