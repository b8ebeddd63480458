package handlers

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/intonus/salon-backend/services/salon-service/internal/model"
)

type fieldError struct {
	Field  string
	Reason string
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// clockMinutes parses an "HH:MM" wall-clock string into minutes since
// midnight. Seconds are tolerated and ignored.
func clockMinutes(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		t, err = time.Parse("15:04:05", s)
	}
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func validateStaff(s *model.Staff) *fieldError {
	if len(strings.TrimSpace(s.Name)) < 2 {
		return &fieldError{Field: "name", Reason: "must be at least 2 characters"}
	}
	return nil
}

func validateWorkingHours(wh *model.WorkingHours) *fieldError {
	switch wh.Pattern {
	case model.PatternWeekly:
		if wh.DayOfWeek == nil || *wh.DayOfWeek < 0 || *wh.DayOfWeek > 6 {
			return &fieldError{Field: "day_of_week", Reason: "must be 0 (Sunday) through 6 (Saturday)"}
		}
	case model.PatternSpecificDates:
		if !validDate(wh.StartDate) {
			return &fieldError{Field: "start_date", Reason: "must be YYYY-MM-DD"}
		}
		if !validDate(wh.EndDate) {
			return &fieldError{Field: "end_date", Reason: "must be YYYY-MM-DD"}
		}
		if wh.EndDate < wh.StartDate {
			return &fieldError{Field: "end_date", Reason: "must not be before start_date"}
		}
	case model.PatternRecurringDay:
		if wh.DayOfWeek == nil || *wh.DayOfWeek < 0 || *wh.DayOfWeek > 6 {
			return &fieldError{Field: "day_of_week", Reason: "must be 0 (Sunday) through 6 (Saturday)"}
		}
		if wh.WeekOfMonth == nil || *wh.WeekOfMonth < 1 || *wh.WeekOfMonth > 5 {
			return &fieldError{Field: "week_of_month", Reason: "must be 1 through 5 (5 = last occurrence)"}
		}
	default:
		return &fieldError{Field: "pattern", Reason: "must be weekly, specific_dates or recurring_day"}
	}

	start, err := clockMinutes(wh.StartTime)
	if err != nil {
		return &fieldError{Field: "start_time", Reason: "must be HH:MM"}
	}
	end, err := clockMinutes(wh.EndTime)
	if err != nil {
		return &fieldError{Field: "end_time", Reason: "must be HH:MM"}
	}
	if start >= end {
		return &fieldError{Field: "end_time", Reason: "must be after start_time"}
	}

	return validateBreaks(wh.Breaks, start, end)
}

func validateBreaks(breaks []model.Break, windowStart, windowEnd int) *fieldError {
	type span struct{ start, end int }
	spans := make([]span, 0, len(breaks))
	for _, b := range breaks {
		bs, err := clockMinutes(b.StartTime)
		if err != nil {
			return &fieldError{Field: "breaks", Reason: "break start_time must be HH:MM"}
		}
		be, err := clockMinutes(b.EndTime)
		if err != nil {
			return &fieldError{Field: "breaks", Reason: "break end_time must be HH:MM"}
		}
		if bs >= be {
			return &fieldError{Field: "breaks", Reason: "break end must be after break start"}
		}
		if bs < windowStart || be > windowEnd {
			return &fieldError{Field: "breaks", Reason: "break must fall inside the working window"}
		}
		spans = append(spans, span{bs, be})
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	for i := 1; i < len(spans); i++ {
		if spans[i].start < spans[i-1].end {
			return &fieldError{Field: "breaks", Reason: "breaks must not overlap"}
		}
	}
	return nil
}

func validateTimeOff(off *model.TimeOff) *fieldError {
	if !validDate(off.StartDate) {
		return &fieldError{Field: "start_date", Reason: "must be YYYY-MM-DD"}
	}
	if !validDate(off.EndDate) {
		return &fieldError{Field: "end_date", Reason: "must be YYYY-MM-DD"}
	}
	if off.EndDate < off.StartDate {
		return &fieldError{Field: "end_date", Reason: "must not be before start_date"}
	}
	return nil
}

func validateService(s *model.Service) *fieldError {
	if len(strings.TrimSpace(s.Name)) < 2 {
		return &fieldError{Field: "name", Reason: "must be at least 2 characters"}
	}
	if s.Price < 0 {
		return &fieldError{Field: "price", Reason: "must not be negative"}
	}
	if s.DurationMinutes <= 0 {
		return &fieldError{Field: "duration_minutes", Reason: "must be positive"}
	}
	return nil
}

var templatePlaceholders = map[string]bool{
	"client_name":      true,
	"service_name":     true,
	"staff_name":       true,
	"appointment_time": true,
	"location":         true,
	"review_link":      true,
	"booking_link":     true,
}

// validateTemplateText rejects message templates whose placeholders the
// dispatcher would not fill: unbalanced braces, malformed names, or names
// outside the known set.
func validateTemplateText(text string) *fieldError {
	depth := 0
	start := 0
	for i, r := range text {
		switch r {
		case '{':
			if depth > 0 {
				return &fieldError{Field: "message_template", Reason: fmt.Sprintf("nested '{' at position %d", i)}
			}
			depth++
			start = i + 1
		case '}':
			if depth == 0 {
				return &fieldError{Field: "message_template", Reason: fmt.Sprintf("unmatched '}' at position %d", i)}
			}
			depth--
			name := text[start:i]
			if strings.ContainsAny(name, " \t\n") || name == "" {
				return &fieldError{Field: "message_template", Reason: fmt.Sprintf("malformed placeholder {%s}", name)}
			}
			if !templatePlaceholders[name] {
				return &fieldError{Field: "message_template", Reason: fmt.Sprintf("unknown placeholder {%s}", name)}
			}
		}
	}
	if depth != 0 {
		return &fieldError{Field: "message_template", Reason: "unmatched '{'"}
	}
	return nil
}

func validateSettings(s *model.GatewaySettings) *fieldError {
	if s.DefaultPriority < 1 || s.DefaultPriority > 4 {
		return &fieldError{Field: "default_priority", Reason: "must be 1 through 4"}
	}
	if s.QueueCheckInterval <= 0 {
		return &fieldError{Field: "queue_check_interval_s", Reason: "must be positive"}
	}
	if s.BatchSize <= 0 || s.BatchSize > 500 {
		return &fieldError{Field: "batch_size", Reason: "must be between 1 and 500"}
	}
	return nil
}
