package handlers

import (
	"testing"

	"github.com/intonus/salon-backend/services/salon-service/internal/model"
)

func intp(n int) *int { return &n }

func TestValidateWorkingHoursPatterns(t *testing.T) {
	cases := []struct {
		name      string
		wh        model.WorkingHours
		wantField string
	}{
		{
			name: "weekly ok",
			wh:   model.WorkingHours{Pattern: "weekly", DayOfWeek: intp(1), StartTime: "09:00", EndTime: "18:00"},
		},
		{
			name:      "weekly missing day",
			wh:        model.WorkingHours{Pattern: "weekly", StartTime: "09:00", EndTime: "18:00"},
			wantField: "day_of_week",
		},
		{
			name:      "weekly day out of range",
			wh:        model.WorkingHours{Pattern: "weekly", DayOfWeek: intp(7), StartTime: "09:00", EndTime: "18:00"},
			wantField: "day_of_week",
		},
		{
			name: "specific dates ok",
			wh: model.WorkingHours{Pattern: "specific_dates", StartDate: "2026-03-01", EndDate: "2026-03-14",
				StartTime: "10:00", EndTime: "16:00"},
		},
		{
			name: "specific dates reversed",
			wh: model.WorkingHours{Pattern: "specific_dates", StartDate: "2026-03-14", EndDate: "2026-03-01",
				StartTime: "10:00", EndTime: "16:00"},
			wantField: "end_date",
		},
		{
			name:      "specific dates bad date",
			wh:        model.WorkingHours{Pattern: "specific_dates", StartDate: "03/01/2026", EndDate: "2026-03-14", StartTime: "10:00", EndTime: "16:00"},
			wantField: "start_date",
		},
		{
			name: "recurring ok last week",
			wh: model.WorkingHours{Pattern: "recurring_day", DayOfWeek: intp(5), WeekOfMonth: intp(5),
				StartTime: "09:00", EndTime: "13:00"},
		},
		{
			name: "recurring week out of range",
			wh: model.WorkingHours{Pattern: "recurring_day", DayOfWeek: intp(5), WeekOfMonth: intp(6),
				StartTime: "09:00", EndTime: "13:00"},
			wantField: "week_of_month",
		},
		{
			name:      "unknown pattern",
			wh:        model.WorkingHours{Pattern: "biweekly", StartTime: "09:00", EndTime: "18:00"},
			wantField: "pattern",
		},
		{
			name:      "end before start",
			wh:        model.WorkingHours{Pattern: "weekly", DayOfWeek: intp(1), StartTime: "18:00", EndTime: "09:00"},
			wantField: "end_time",
		},
		{
			name:      "equal start and end",
			wh:        model.WorkingHours{Pattern: "weekly", DayOfWeek: intp(1), StartTime: "09:00", EndTime: "09:00"},
			wantField: "end_time",
		},
		{
			name:      "bad clock",
			wh:        model.WorkingHours{Pattern: "weekly", DayOfWeek: intp(1), StartTime: "9am", EndTime: "18:00"},
			wantField: "start_time",
		},
		{
			name: "seconds tolerated",
			wh:   model.WorkingHours{Pattern: "weekly", DayOfWeek: intp(1), StartTime: "09:00:00", EndTime: "18:00:00"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fe := validateWorkingHours(&tc.wh)
			if tc.wantField == "" {
				if fe != nil {
					t.Fatalf("unexpected error: %v", fe)
				}
				return
			}
			if fe == nil {
				t.Fatalf("expected error on field %q, got none", tc.wantField)
			}
			if fe.Field != tc.wantField {
				t.Fatalf("field = %q, want %q (%v)", fe.Field, tc.wantField, fe)
			}
		})
	}
}

func TestValidateWorkingHoursBreaks(t *testing.T) {
	base := func(breaks ...model.Break) model.WorkingHours {
		return model.WorkingHours{
			Pattern: "weekly", DayOfWeek: intp(1),
			StartTime: "09:00", EndTime: "18:00",
			Breaks: breaks,
		}
	}

	wh := base(model.Break{StartTime: "13:00", EndTime: "14:00"})
	if fe := validateWorkingHours(&wh); fe != nil {
		t.Fatalf("valid break rejected: %v", fe)
	}

	wh = base(model.Break{StartTime: "08:00", EndTime: "10:00"})
	if fe := validateWorkingHours(&wh); fe == nil || fe.Field != "breaks" {
		t.Fatalf("break outside window accepted: %v", fe)
	}

	wh = base(model.Break{StartTime: "14:00", EndTime: "13:00"})
	if fe := validateWorkingHours(&wh); fe == nil || fe.Field != "breaks" {
		t.Fatalf("inverted break accepted: %v", fe)
	}

	wh = base(
		model.Break{StartTime: "12:00", EndTime: "13:30"},
		model.Break{StartTime: "13:00", EndTime: "14:00"},
	)
	if fe := validateWorkingHours(&wh); fe == nil || fe.Field != "breaks" {
		t.Fatalf("overlapping breaks accepted: %v", fe)
	}

	// Touching breaks are fine.
	wh = base(
		model.Break{StartTime: "12:00", EndTime: "13:00"},
		model.Break{StartTime: "13:00", EndTime: "14:00"},
	)
	if fe := validateWorkingHours(&wh); fe != nil {
		t.Fatalf("adjacent breaks rejected: %v", fe)
	}
}

func TestValidateTimeOff(t *testing.T) {
	off := model.TimeOff{StartDate: "2026-07-01", EndDate: "2026-07-14"}
	if fe := validateTimeOff(&off); fe != nil {
		t.Fatalf("valid time off rejected: %v", fe)
	}

	off = model.TimeOff{StartDate: "2026-07-01", EndDate: "2026-07-01"}
	if fe := validateTimeOff(&off); fe != nil {
		t.Fatalf("single day time off rejected: %v", fe)
	}

	off = model.TimeOff{StartDate: "2026-07-14", EndDate: "2026-07-01"}
	if fe := validateTimeOff(&off); fe == nil || fe.Field != "end_date" {
		t.Fatalf("reversed range accepted: %v", fe)
	}
}

func TestValidateTemplateText(t *testing.T) {
	valid := []string{
		"Здравствуйте, {client_name}! Ждём вас {appointment_time}.",
		"Plain text without placeholders",
		"{client_name} {service_name} {staff_name} {location} {review_link} {booking_link}",
	}
	for _, text := range valid {
		if fe := validateTemplateText(text); fe != nil {
			t.Fatalf("valid template %q rejected: %v", text, fe)
		}
	}

	invalid := []string{
		"Hello {customer_name}",
		"Hello {client name}",
		"Hello {client_name",
		"Hello client_name}",
		"Hello {{client_name}}",
		"Hello {}",
	}
	for _, text := range invalid {
		if fe := validateTemplateText(text); fe == nil {
			t.Fatalf("invalid template %q accepted", text)
		}
	}
}

func TestValidateService(t *testing.T) {
	s := model.Service{Name: "Массаж спины", Price: 3500, DurationMinutes: 60}
	if fe := validateService(&s); fe != nil {
		t.Fatalf("valid service rejected: %v", fe)
	}

	cases := []struct {
		svc       model.Service
		wantField string
	}{
		{model.Service{Name: "x", Price: 100, DurationMinutes: 30}, "name"},
		{model.Service{Name: "Массаж", Price: -1, DurationMinutes: 30}, "price"},
		{model.Service{Name: "Массаж", Price: 100, DurationMinutes: 0}, "duration_minutes"},
	}
	for _, tc := range cases {
		fe := validateService(&tc.svc)
		if fe == nil || fe.Field != tc.wantField {
			t.Fatalf("service %+v: got %v, want field %q", tc.svc, fe, tc.wantField)
		}
	}
}

func TestValidateSettings(t *testing.T) {
	s := model.GatewaySettings{DefaultPriority: 2, QueueCheckInterval: 60, BatchSize: 50}
	if fe := validateSettings(&s); fe != nil {
		t.Fatalf("valid settings rejected: %v", fe)
	}

	s.DefaultPriority = 5
	if fe := validateSettings(&s); fe == nil || fe.Field != "default_priority" {
		t.Fatalf("priority 5 accepted: %v", fe)
	}

	s.DefaultPriority = 2
	s.QueueCheckInterval = 0
	if fe := validateSettings(&s); fe == nil || fe.Field != "queue_check_interval_s" {
		t.Fatalf("zero interval accepted: %v", fe)
	}

	s.QueueCheckInterval = 60
	s.BatchSize = 1000
	if fe := validateSettings(&s); fe == nil || fe.Field != "batch_size" {
		t.Fatalf("oversized batch accepted: %v", fe)
	}
}
