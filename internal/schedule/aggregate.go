package schedule

import (
	"sort"
	"time"

	"turnsched/internal/model"
)

// Aggregate filters and orders intervals across all units for display.
// Intervals whose next check-in is strictly before today are finished
// turnovers and dropped; open-ended intervals survive. The rest sort
// ascending by (next check-in, else checkout), then checkout, then unit,
// then cleaner with blanks last — the ordering the cleaning staff reads
// top to bottom.
func Aggregate(intervals []model.CleaningInterval, today time.Time) []model.CleaningInterval {
	out := make([]model.CleaningInterval, 0, len(intervals))
	for _, ci := range intervals {
		if !ci.Open() && ci.NextCheckIn.Before(today) {
			continue
		}
		out = append(out, ci)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]

		ak, bk := sortKey(a), sortKey(b)
		if !ak.Equal(bk) {
			return ak.Before(bk)
		}
		if !a.CheckOut.Equal(b.CheckOut) {
			return a.CheckOut.Before(b.CheckOut)
		}
		if a.Unit != b.Unit {
			return a.Unit < b.Unit
		}
		return cleanerLess(a.Cleaner, b.Cleaner)
	})

	return out
}

// sortKey is the next actionable date: the next check-in when known,
// otherwise the checkout itself.
func sortKey(ci model.CleaningInterval) time.Time {
	if ci.Open() {
		return ci.CheckOut
	}
	return ci.NextCheckIn
}

// cleanerLess orders cleaner names ascending with blanks last, so
// unassigned turnovers sink below assigned ones on equal dates.
func cleanerLess(a, b string) bool {
	if (a == "") != (b == "") {
		return a != ""
	}
	return a < b
}
