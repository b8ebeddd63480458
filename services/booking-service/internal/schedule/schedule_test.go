package schedule

import (
	"testing"
	"time"
)

var moscow = time.FixedZone("MSK", 3*60*60)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMatchesWeekly(t *testing.T) {
	rule := Rule{Pattern: PatternWeekly, DayOfWeek: 1} // Monday

	if !Matches(rule, date(2026, 2, 2)) { // a Monday
		t.Fatal("expected weekly rule to match Monday")
	}
	if Matches(rule, date(2026, 2, 3)) {
		t.Fatal("expected weekly rule not to match Tuesday")
	}
}

func TestMatchesSpecificDates(t *testing.T) {
	rule := Rule{
		Pattern:   PatternSpecificDates,
		StartDate: date(2026, 3, 10),
		EndDate:   date(2026, 3, 12),
	}

	for _, d := range []time.Time{date(2026, 3, 10), date(2026, 3, 11), date(2026, 3, 12)} {
		if !Matches(rule, d) {
			t.Fatalf("expected rule to match %s", d.Format("2006-01-02"))
		}
	}
	if Matches(rule, date(2026, 3, 9)) || Matches(rule, date(2026, 3, 13)) {
		t.Fatal("expected rule not to match outside the range")
	}
}

func TestMatchesRecurringDay(t *testing.T) {
	// Second Tuesday of the month.
	rule := Rule{Pattern: PatternRecurringDay, DayOfWeek: 2, WeekOfMonth: 2}

	if !Matches(rule, date(2026, 2, 10)) { // second Tuesday of Feb 2026
		t.Fatal("expected match on second Tuesday")
	}
	if Matches(rule, date(2026, 2, 3)) { // first Tuesday
		t.Fatal("expected no match on first Tuesday")
	}
	if Matches(rule, date(2026, 2, 11)) { // a Wednesday
		t.Fatal("expected no match on wrong weekday")
	}
}

func TestMatchesRecurringDayLast(t *testing.T) {
	// week_of_month 5 means the last occurrence, even in 4-occurrence months.
	rule := Rule{Pattern: PatternRecurringDay, DayOfWeek: 5, WeekOfMonth: 5} // last Friday

	if !Matches(rule, date(2026, 2, 27)) { // last Friday of Feb 2026 (4th occurrence)
		t.Fatal("expected match on last Friday of a 4-Friday month")
	}
	if Matches(rule, date(2026, 2, 20)) {
		t.Fatal("expected no match on a non-final Friday")
	}
	if !Matches(rule, date(2026, 5, 29)) { // 5th and last Friday of May 2026
		t.Fatal("expected match on fifth Friday")
	}
	if Matches(rule, date(2026, 5, 22)) { // 4th of 5 Fridays
		t.Fatal("expected no match on fourth of five Fridays")
	}
}

func TestIntervalsForBreakSubtraction(t *testing.T) {
	rules := []Rule{{
		Pattern:   PatternWeekly,
		DayOfWeek: 1,
		StartTime: "09:00",
		EndTime:   "18:00",
		IsActive:  true,
		Breaks:    []Break{{StartTime: "13:00", EndTime: "14:00"}},
	}}

	got := IntervalsFor(rules, nil, date(2026, 2, 2), moscow)
	if len(got) != 2 {
		t.Fatalf("expected 2 intervals, got %d: %+v", len(got), got)
	}
	assertInterval(t, got[0], 9, 0, 13, 0)
	assertInterval(t, got[1], 14, 0, 18, 0)
}

func TestIntervalsForTimeOffOverridesRules(t *testing.T) {
	rules := []Rule{{
		Pattern:   PatternWeekly,
		DayOfWeek: 1,
		StartTime: "09:00",
		EndTime:   "18:00",
		IsActive:  true,
	}}
	timeOff := []TimeOff{{StartDate: date(2026, 2, 1), EndDate: date(2026, 2, 3)}}

	if got := IntervalsFor(rules, timeOff, date(2026, 2, 2), moscow); got != nil {
		t.Fatalf("expected no intervals during time off, got %+v", got)
	}
	// The day after time off ends, the rule applies again.
	if got := IntervalsFor(rules, timeOff, date(2026, 2, 9), moscow); len(got) != 1 {
		t.Fatalf("expected 1 interval after time off, got %+v", got)
	}
}

func TestIntervalsForInactiveRuleSkipped(t *testing.T) {
	rules := []Rule{{
		Pattern:   PatternWeekly,
		DayOfWeek: 1,
		StartTime: "09:00",
		EndTime:   "18:00",
		IsActive:  false,
	}}
	if got := IntervalsFor(rules, nil, date(2026, 2, 2), moscow); got != nil {
		t.Fatalf("expected no intervals from inactive rule, got %+v", got)
	}
}

func TestIntervalsForMultiRuleUnionMerge(t *testing.T) {
	// Overlapping weekly + specific-dates rules coalesce into one window.
	rules := []Rule{
		{
			Pattern:   PatternWeekly,
			DayOfWeek: 1,
			StartTime: "09:00",
			EndTime:   "13:00",
			IsActive:  true,
		},
		{
			Pattern:   PatternSpecificDates,
			StartDate: date(2026, 2, 2),
			EndDate:   date(2026, 2, 2),
			StartTime: "12:00",
			EndTime:   "17:00",
			IsActive:  true,
		},
	}

	got := IntervalsFor(rules, nil, date(2026, 2, 2), moscow)
	if len(got) != 1 {
		t.Fatalf("expected 1 merged interval, got %d: %+v", len(got), got)
	}
	assertInterval(t, got[0], 9, 0, 17, 0)
}

func TestIntervalsForDisjointRulesStaySeparate(t *testing.T) {
	rules := []Rule{
		{
			Pattern:   PatternWeekly,
			DayOfWeek: 1,
			StartTime: "09:00",
			EndTime:   "12:00",
			IsActive:  true,
		},
		{
			Pattern:   PatternWeekly,
			DayOfWeek: 1,
			StartTime: "15:00",
			EndTime:   "19:00",
			IsActive:  true,
		},
	}

	got := IntervalsFor(rules, nil, date(2026, 2, 2), moscow)
	if len(got) != 2 {
		t.Fatalf("expected 2 intervals, got %d: %+v", len(got), got)
	}
	assertInterval(t, got[0], 9, 0, 12, 0)
	assertInterval(t, got[1], 15, 0, 19, 0)
}

func TestIntervalsForNoMatchingRule(t *testing.T) {
	rules := []Rule{{
		Pattern:   PatternWeekly,
		DayOfWeek: 3,
		StartTime: "09:00",
		EndTime:   "18:00",
		IsActive:  true,
	}}
	if got := IntervalsFor(rules, nil, date(2026, 2, 2), moscow); got != nil {
		t.Fatalf("expected no intervals on a non-working day, got %+v", got)
	}
}

func assertInterval(t *testing.T, iv Interval, sh, sm, eh, em int) {
	t.Helper()
	if iv.Start.Hour() != sh || iv.Start.Minute() != sm {
		t.Fatalf("interval start = %s, want %02d:%02d", iv.Start.Format("15:04"), sh, sm)
	}
	if iv.End.Hour() != eh || iv.End.Minute() != em {
		t.Fatalf("interval end = %s, want %02d:%02d", iv.End.Format("15:04"), eh, em)
	}
}
