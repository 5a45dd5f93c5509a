package core

import "time"

// Shift boundaries in seconds since local midnight. Upper bounds are
// closed: 14:00:00 still belongs to shift1 and 20:00:00 to shift2,
// matching the ledgers the shops already keep.
const (
	shift1Start = 6 * 3600  // 06:00:00
	shift1End   = 14 * 3600 // 14:00:00
	shift2End   = 20 * 3600 // 20:00:00
)

// Resolve maps a timestamp to its shift and business date.
//
// Comparison happens at whole-second granularity: the timestamp is
// truncated to the second first, so 14:00:00.5 resolves to shift1 and
// 20:00:00.9 to shift2. Times from 20:00:01 onward and before 06:00:00
// are the overnight shift3; before 06:00 the shift started the evening
// before, so the business date is the previous calendar date.
//
// Resolve is total: every timestamp maps to exactly one shift and a
// valid business date. The shift windows are evaluated in t's location,
// so callers pick the business time zone by converting t first.
func Resolve(t time.Time) (Shift, Date) {
	sec := t.Hour()*3600 + t.Minute()*60 + t.Second()

	switch {
	case sec >= shift1Start && sec <= shift1End:
		return Shift1, DateOf(t)
	case sec > shift1End && sec <= shift2End:
		return Shift2, DateOf(t)
	case sec > shift2End:
		return Shift3, DateOf(t)
	default:
		// Small hours: still the previous evening's shift3.
		return Shift3, DateOf(t).AddDays(-1)
	}
}
