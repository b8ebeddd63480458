package schedule

import (
	"sort"
	"time"
)

const (
	PatternWeekly        = "weekly"
	PatternSpecificDates = "specific_dates"
	PatternRecurringDay  = "recurring_day"
)

// Rule is one working-hours entry for a staff member. Which fields are
// meaningful depends on Pattern:
//
//   - weekly: DayOfWeek (0=Sunday .. 6=Saturday)
//   - specific_dates: StartDate..EndDate (inclusive calendar dates)
//   - recurring_day: DayOfWeek + WeekOfMonth (1..4 = nth occurrence,
//     5 = last occurrence in the month)
//
// StartTime/EndTime are local clock strings ("09:00").
type Rule struct {
	ID          string
	StaffID     string
	Pattern     string
	DayOfWeek   int
	StartDate   time.Time
	EndDate     time.Time
	WeekOfMonth int
	StartTime   string
	EndTime     string
	IsActive    bool
	Breaks      []Break
}

type Break struct {
	ID        string
	StartTime string
	EndTime   string
}

type TimeOff struct {
	ID        string
	StaffID   string
	StartDate time.Time
	EndDate   time.Time
	Reason    string
}

type Interval struct {
	Start time.Time
	End   time.Time
}

// IntervalsFor resolves the concrete working intervals for a staff member on
// date, in loc. Every active rule matching the date contributes its window
// minus its breaks; the contributions are merged into a sorted, coalesced
// union. A time-off period covering the date overrides everything and yields
// no intervals.
func IntervalsFor(rules []Rule, timeOff []TimeOff, date time.Time, loc *time.Location) []Interval {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)

	for _, off := range timeOff {
		if coversDate(off, day) {
			return nil
		}
	}

	var fragments []Interval
	for _, rule := range rules {
		if !rule.IsActive || !Matches(rule, day) {
			continue
		}
		start, ok := clockOn(day, rule.StartTime)
		if !ok {
			continue
		}
		end, ok := clockOn(day, rule.EndTime)
		if !ok || !end.After(start) {
			continue
		}
		fragments = append(fragments, subtractBreaks(Interval{Start: start, End: end}, rule.Breaks, day)...)
	}

	return mergeIntervals(fragments)
}

// Matches reports whether rule applies on the given calendar date. It does
// not consider IsActive.
func Matches(rule Rule, date time.Time) bool {
	switch rule.Pattern {
	case PatternWeekly:
		return int(date.Weekday()) == rule.DayOfWeek
	case PatternSpecificDates:
		return !dateOnly(date).Before(dateOnly(rule.StartDate)) && !dateOnly(date).After(dateOnly(rule.EndDate))
	case PatternRecurringDay:
		if int(date.Weekday()) != rule.DayOfWeek {
			return false
		}
		if rule.WeekOfMonth == 5 {
			// Last occurrence of this weekday in the month.
			return date.AddDate(0, 0, 7).Month() != date.Month()
		}
		return (date.Day()-1)/7+1 == rule.WeekOfMonth
	default:
		return false
	}
}

func coversDate(off TimeOff, date time.Time) bool {
	d := dateOnly(date)
	return !d.Before(dateOnly(off.StartDate)) && !d.After(dateOnly(off.EndDate))
}

func subtractBreaks(window Interval, breaks []Break, day time.Time) []Interval {
	if len(breaks) == 0 {
		return []Interval{window}
	}

	var blocks []Interval
	for _, b := range breaks {
		start, ok := clockOn(day, b.StartTime)
		if !ok {
			continue
		}
		end, ok := clockOn(day, b.EndTime)
		if !ok || !end.After(start) {
			continue
		}
		blocks = append(blocks, Interval{Start: start, End: end})
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Start.Before(blocks[j].Start) })

	out := []Interval{window}
	for _, block := range blocks {
		var next []Interval
		for _, iv := range out {
			// No overlap: keep as-is.
			if !block.Start.Before(iv.End) || !iv.Start.Before(block.End) {
				next = append(next, iv)
				continue
			}
			if iv.Start.Before(block.Start) {
				next = append(next, Interval{Start: iv.Start, End: block.Start})
			}
			if block.End.Before(iv.End) {
				next = append(next, Interval{Start: block.End, End: iv.End})
			}
		}
		out = next
	}
	return out
}

func mergeIntervals(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}
	sort.Slice(intervals, func(i, j int) bool { return intervals[i].Start.Before(intervals[j].Start) })

	merged := []Interval{intervals[0]}
	for _, iv := range intervals[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

func clockOn(day time.Time, clock string) (time.Time, bool) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		// Seconds are tolerated since Postgres time columns render them.
		parsed, err = time.Parse("15:04:05", clock)
		if err != nil {
			return time.Time{}, false
		}
	}
	return time.Date(day.Year(), day.Month(), day.Day(), parsed.Hour(), parsed.Minute(), 0, 0, day.Location()), true
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
