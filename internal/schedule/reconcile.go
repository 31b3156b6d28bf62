// Package schedule implements the reconciliation core: merging freshly
// fetched calendar events with the persisted booking set, deriving
// cleaning intervals, and aggregating them into the display schedule.
package schedule

import (
	"time"

	"turnsched/internal/model"
)

// Reconcile merges the freshly extracted events for one unit against the
// unit's previously persisted booking set and returns the new canonical
// set. The feed is authoritative for dates; the store is authoritative
// for human-entered metadata:
//
//   - a previous booking whose id is still in the feed keeps its cleaner
//     but takes the feed's dates (upstream date edits don't lose the
//     assignment)
//   - a previous booking gone from the feed is kept verbatim when its
//     checkout is on or before today (feed windows truncate history),
//     and dropped as cancelled when its checkout is in the future
//   - fresh bookings with unseen ids are added with no cleaner
//
// today must be a midnight-UTC calendar date. Duplicate ids in the fresh
// feed collapse to their first occurrence. Pure function; persistence is
// the caller's job.
func Reconcile(previous, fresh []model.Booking, today time.Time) []model.Booking {
	freshByID := make(map[string]model.Booking, len(fresh))
	for _, f := range fresh {
		if _, ok := freshByID[f.ID]; !ok {
			freshByID[f.ID] = f
		}
	}

	out := make([]model.Booking, 0, len(fresh)+len(previous))
	kept := make(map[string]bool, len(previous))

	for _, p := range previous {
		if f, ok := freshByID[p.ID]; ok {
			merged := f
			merged.Cleaner = p.Cleaner
			out = append(out, merged)
			kept[p.ID] = true
			continue
		}
		if !p.CheckOut.After(today) {
			// Completed stay that fell out of the feed window; keep it
			// so finished work stays visible.
			out = append(out, p)
			kept[p.ID] = true
		}
		// Future booking missing from the feed: cancelled, drop.
	}

	for _, f := range fresh {
		if kept[f.ID] {
			continue
		}
		kept[f.ID] = true
		out = append(out, f)
	}

	return out
}
