package availability

import "time"

type Interval struct {
	Start time.Time
	End   time.Time
}

type Slot struct {
	Start time.Time
	End   time.Time
}

// Slots returns the bookable slots of the given duration within the working
// intervals, skipping any slot that overlaps a busy interval. Candidate
// starts walk from each interval's start in duration-sized steps; a slot is
// kept only when it fits entirely inside its interval.
//
// All times are expected to be in the same location. The result is in
// chronological order provided the intervals are sorted and disjoint.
func Slots(intervals []Interval, busy []Interval, duration time.Duration) []Slot {
	if duration <= 0 {
		return nil
	}

	var slots []Slot
	for _, iv := range intervals {
		if !iv.End.After(iv.Start) {
			continue
		}
		for t := iv.Start; !t.Add(duration).After(iv.End); t = t.Add(duration) {
			end := t.Add(duration)
			if !overlapsAny(t, end, busy) {
				slots = append(slots, Slot{Start: t, End: end})
			}
		}
	}
	return slots
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		// Half-open intervals: [start,end) overlaps [b.Start,b.End) iff start < b.End && b.Start < end.
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}
