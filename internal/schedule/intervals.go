package schedule

import (
	"sort"

	"turnsched/internal/model"
)

// DeriveIntervals computes the unit's cleaning intervals from its
// booking set: one interval per consecutive booking pair in check-in
// order, plus a trailing open-ended interval for the last checkout (the
// unit is free, cleaning can happen any time). Pure function of its
// input; "today" filtering belongs to Aggregate.
func DeriveIntervals(unit string, bookings []model.Booking) []model.CleaningInterval {
	if len(bookings) == 0 {
		return nil
	}

	ordered := make([]model.Booking, len(bookings))
	copy(ordered, bookings)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CheckIn.Before(ordered[j].CheckIn)
	})

	out := make([]model.CleaningInterval, 0, len(ordered))
	for i := 0; i+1 < len(ordered); i++ {
		cur, next := ordered[i], ordered[i+1]
		out = append(out, model.CleaningInterval{
			Unit:        unit,
			CheckOut:    cur.CheckOut,
			NextCheckIn: next.CheckIn,
			Cleaner:     next.Cleaner,
			HotBed:      next.CheckIn.Equal(cur.CheckOut),
		})
	}

	last := ordered[len(ordered)-1]
	out = append(out, model.CleaningInterval{
		Unit:     unit,
		CheckOut: last.CheckOut,
	})

	return out
}
