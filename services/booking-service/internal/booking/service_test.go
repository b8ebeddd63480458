package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/intonus/salon-backend/libs/outbox"
	"github.com/intonus/salon-backend/services/booking-service/internal/model"
	"github.com/intonus/salon-backend/services/booking-service/internal/schedule"
	"github.com/intonus/salon-backend/services/booking-service/internal/storage"
)

var testLoc = time.FixedZone("MSK", 3*60*60)

type fakeTx struct {
	pgx.Tx
}

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }

type fakeLedger struct {
	appts  []model.Appointment
	nextID int
}

func (l *fakeLedger) Begin(context.Context) (pgx.Tx, error) { return fakeTx{}, nil }

func (l *fakeLedger) LockStaff(context.Context, pgx.Tx, string) error { return nil }

func (l *fakeLedger) Conflicts(_ context.Context, _ pgx.Tx, staffID string, start, end time.Time, excludeID string) (bool, error) {
	for _, a := range l.appts {
		if a.StaffID != staffID || a.Status == "cancelled" || a.ID == excludeID {
			continue
		}
		if start.Before(a.EndTime) && a.StartTime.Before(end) {
			return true, nil
		}
	}
	return false, nil
}

func (l *fakeLedger) Create(_ context.Context, _ pgx.Tx, appt *model.Appointment) (string, error) {
	l.nextID++
	id := fmt.Sprintf("appt-%d", l.nextID)
	stored := *appt
	stored.ID = id
	l.appts = append(l.appts, stored)
	return id, nil
}

func (l *fakeLedger) GetForUpdate(_ context.Context, _ pgx.Tx, id string) (model.Appointment, error) {
	for _, a := range l.appts {
		if a.ID == id {
			return a, nil
		}
	}
	return model.Appointment{}, storage.ErrNotFound
}

func (l *fakeLedger) Cancel(_ context.Context, _ pgx.Tx, id string) error {
	for i := range l.appts {
		if l.appts[i].ID == id {
			l.appts[i].Status = "cancelled"
			return nil
		}
	}
	return storage.ErrNotFound
}

func (l *fakeLedger) ListBookedIntervals(_ context.Context, staffID string, start, end time.Time) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range l.appts {
		if a.StaffID != staffID || a.Status == "cancelled" {
			continue
		}
		if a.StartTime.Before(end) && start.Before(a.EndTime) {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeCatalog struct {
	services map[string]model.Service
	staff    map[string]model.Staff
	rules    []schedule.Rule
	timeOff  []schedule.TimeOff
}

func (c *fakeCatalog) GetService(_ context.Context, id string) (model.Service, error) {
	svc, ok := c.services[id]
	if !ok {
		return model.Service{}, storage.ErrNotFound
	}
	return svc, nil
}

func (c *fakeCatalog) GetStaff(_ context.Context, id string) (model.Staff, error) {
	st, ok := c.staff[id]
	if !ok {
		return model.Staff{}, storage.ErrNotFound
	}
	return st, nil
}

func (c *fakeCatalog) StaffPerformsService(context.Context, string, string) (bool, error) {
	return true, nil
}

func (c *fakeCatalog) RulesForStaff(context.Context, string) ([]schedule.Rule, error) {
	return c.rules, nil
}

func (c *fakeCatalog) TimeOffForStaff(context.Context, string, time.Time) ([]schedule.TimeOff, error) {
	return c.timeOff, nil
}

type fakeClients struct{}

func (fakeClients) UpsertByPhone(_ context.Context, _ pgx.Tx, name, phone, email string) (model.Client, error) {
	return model.Client{ID: "client-1", Name: name, Phone: phone, Email: email}, nil
}

type enqueued struct {
	AppointmentID string
	TemplateID    string
	At            time.Time
}

type fakeTemplates struct {
	templates []storage.Template
	rows      []enqueued
}

func (t *fakeTemplates) ActiveTemplates(context.Context) ([]storage.Template, error) {
	return t.templates, nil
}

func (t *fakeTemplates) Enqueue(_ context.Context, _ pgx.Tx, appointmentID, templateID string, at time.Time) error {
	t.rows = append(t.rows, enqueued{AppointmentID: appointmentID, TemplateID: templateID, At: at})
	return nil
}

type fakeOutbox struct {
	events []outbox.Event
}

func (o *fakeOutbox) Insert(_ context.Context, _ pgx.Tx, evt outbox.Event) error {
	o.events = append(o.events, evt)
	return nil
}

func newTestService() (*Service, *fakeLedger, *fakeTemplates, *fakeOutbox) {
	ledger := &fakeLedger{}
	catalog := &fakeCatalog{
		services: map[string]model.Service{
			"svc-1": {ID: "svc-1", Name: "Massage", DurationMinutes: 60, IsActive: true},
			"svc-2": {ID: "svc-2", Name: "Retired", DurationMinutes: 30, IsActive: false},
		},
		staff: map[string]model.Staff{
			"staff-1": {ID: "staff-1", Name: "Anna", IsActive: true},
		},
		rules: []schedule.Rule{{
			Pattern:   schedule.PatternWeekly,
			DayOfWeek: 1,
			StartTime: "09:00",
			EndTime:   "18:00",
			IsActive:  true,
			Breaks:    []schedule.Break{{StartTime: "13:00", EndTime: "14:00"}},
		}},
	}
	templates := &fakeTemplates{
		templates: []storage.Template{
			{ID: "tpl-created", Type: "appointment_created", IsActive: true},
			{ID: "tpl-reminder", Type: "appointment_reminder", DelayHours: 2, IsActive: true},
		},
	}
	outboxRepo := &fakeOutbox{}

	svc := NewService(ledger, catalog, fakeClients{}, templates, outboxRepo, slog.Default(), testLoc)
	svc.now = func() time.Time {
		return time.Date(2026, 2, 2, 8, 0, 0, 0, testLoc) // Monday morning
	}
	return svc, ledger, templates, outboxRepo
}

func validRequest() Request {
	return Request{
		ServiceID:  "svc-1",
		StaffID:    "staff-1",
		ClientName: "Мария",
		Phone:      "+7 (916) 123-45-67",
		Start:      time.Date(2026, 2, 2, 10, 0, 0, 0, testLoc),
	}
}

func TestBookValidationErrorsNameFields(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*Request)
		field  string
	}{
		{"short name", func(r *Request) { r.ClientName = "A" }, "client_name"},
		{"bad phone", func(r *Request) { r.Phone = "12" }, "phone"},
		{"past start", func(r *Request) { r.Start = time.Date(2026, 2, 2, 7, 0, 0, 0, testLoc) }, "start_time"},
		{"unknown service", func(r *Request) { r.ServiceID = "svc-x" }, "service_id"},
		{"inactive service", func(r *Request) { r.ServiceID = "svc-2" }, "service_id"},
		{"unknown staff", func(r *Request) { r.StaffID = "staff-x" }, "staff_id"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			_, err := svc.Book(ctx, req)
			var ve ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tc.field {
				t.Fatalf("validation field = %q, want %q", ve.Field, tc.field)
			}
		})
	}
}

func TestBookHappyPath(t *testing.T) {
	svc, ledger, templates, outboxRepo := newTestService()
	ctx := context.Background()

	appt, err := svc.Book(ctx, validRequest())
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	if appt.Status != "pending" {
		t.Fatalf("status = %q, want pending", appt.Status)
	}
	if appt.StaffName != "Anna" || appt.ServiceName != "Massage" {
		t.Fatalf("denormalized names missing: %+v", appt)
	}
	if !appt.EndTime.Equal(appt.StartTime.Add(60 * time.Minute)) {
		t.Fatalf("end time not derived from service duration: %+v", appt)
	}
	if len(ledger.appts) != 1 {
		t.Fatalf("expected 1 stored appointment, got %d", len(ledger.appts))
	}

	// created now + reminder 2h before start.
	if len(templates.rows) != 2 {
		t.Fatalf("expected 2 queue rows, got %d: %+v", len(templates.rows), templates.rows)
	}
	wantReminder := appt.StartTime.Add(-2 * time.Hour)
	if !templates.rows[1].At.Equal(wantReminder) {
		t.Fatalf("reminder scheduled at %s, want %s", templates.rows[1].At, wantReminder)
	}

	if len(outboxRepo.events) != 1 || outboxRepo.events[0].EventType != "booking.appointment.booked.v1" {
		t.Fatalf("expected booked event, got %+v", outboxRepo.events)
	}
}

func TestBookSlotNotOnGridRejected(t *testing.T) {
	svc, _, _, _ := newTestService()
	req := validRequest()
	req.Start = time.Date(2026, 2, 2, 10, 30, 0, 0, testLoc) // between grid starts

	_, err := svc.Book(context.Background(), req)
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
}

func TestBookDoubleBookSameSlot(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Book(ctx, validRequest()); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}
	_, err := svc.Book(ctx, validRequest())
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable on double-book, got %v", err)
	}
}

func TestBookedSlotDisappearsFromQuery(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	day := time.Date(2026, 2, 2, 0, 0, 0, 0, testLoc)

	before, err := svc.SlotsForDay(ctx, "staff-1", "svc-1", day)
	if err != nil {
		t.Fatalf("SlotsForDay failed: %v", err)
	}
	// 09:00-18:00 minus the 13:00 break, 60-minute service.
	if len(before) != 8 {
		t.Fatalf("expected 8 slots before booking, got %d", len(before))
	}

	if _, err := svc.Book(ctx, validRequest()); err != nil {
		t.Fatalf("Book failed: %v", err)
	}

	after, err := svc.SlotsForDay(ctx, "staff-1", "svc-1", day)
	if err != nil {
		t.Fatalf("SlotsForDay failed: %v", err)
	}
	if len(after) != 7 {
		t.Fatalf("expected 7 slots after booking, got %d", len(after))
	}
	for _, s := range after {
		if s.Start.Equal(validRequest().Start) {
			t.Fatal("booked slot still offered")
		}
	}
}

func TestCancelIdempotent(t *testing.T) {
	svc, ledger, _, outboxRepo := newTestService()
	ctx := context.Background()

	appt, err := svc.Book(ctx, validRequest())
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}

	cancelled, err := svc.Cancel(ctx, appt.ID, "client called")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelled.Status != "cancelled" {
		t.Fatalf("status = %q, want cancelled", cancelled.Status)
	}
	if ledger.appts[0].Status != "cancelled" {
		t.Fatal("stored appointment not cancelled")
	}
	eventsAfterFirst := len(outboxRepo.events)

	again, err := svc.Cancel(ctx, appt.ID, "again")
	if err != nil {
		t.Fatalf("second Cancel failed: %v", err)
	}
	if again.Status != "cancelled" {
		t.Fatalf("second cancel status = %q", again.Status)
	}
	if len(outboxRepo.events) != eventsAfterFirst {
		t.Fatal("idempotent cancel emitted another event")
	}
}

func TestCancelledSlotBookableAgain(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	appt, err := svc.Book(ctx, validRequest())
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	if _, err := svc.Cancel(ctx, appt.ID, ""); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if _, err := svc.Book(ctx, validRequest()); err != nil {
		t.Fatalf("rebooking a cancelled slot failed: %v", err)
	}
}
