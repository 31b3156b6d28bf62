package model

import (
	"errors"
	"time"
)

// DateLayout is the wire format for calendar dates ("2024-01-05").
const DateLayout = time.DateOnly

// Booking represents one reservation for a unit, as persisted in the
// booking store. Dates are calendar dates normalized to midnight UTC;
// CheckOut is the day the guest leaves (ICS DTEND, exclusive).
type Booking struct {
	// ID is the identifier assigned by the calendar source (iCal UID,
	// possibly suffixed for expanded recurring occurrences). Unique
	// within a unit.
	ID string `json:"id"`

	CheckIn  time.Time `json:"check_in"`
	CheckOut time.Time `json:"check_out"`

	// Cleaner is the manually assigned cleaner name. Empty until a
	// human sets it; must survive reconciliation as long as the
	// booking's ID keeps appearing in the feed.
	Cleaner string `json:"cleaner,omitempty"`
}

// Valid reports whether the booking has an ID and a positive stay length.
func (b Booking) Valid() bool {
	return b.ID != "" && b.CheckIn.Before(b.CheckOut)
}

// UnitRecord is the canonical persisted state for one unit: its full
// booking set plus bookkeeping metadata. It is always written as a
// whole document (last write wins).
type UnitRecord struct {
	Unit      string    `json:"unit"`
	Bookings  []Booking `json:"bookings"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CleaningInterval is the derived gap between one booking's checkout and
// the next booking's check-in for the same unit. Never persisted; always
// recomputed from the unit's booking set.
type CleaningInterval struct {
	Unit     string
	CheckOut time.Time

	// NextCheckIn is zero for the trailing interval of a unit (last
	// known checkout, no future booking yet).
	NextCheckIn time.Time

	// Cleaner comes from the booking whose check-in closes the interval.
	Cleaner string

	// HotBed marks a same-day turnover (next check-in equals checkout).
	HotBed bool
}

// Open reports whether the interval has no known next check-in.
func (ci CleaningInterval) Open() bool {
	return ci.NextCheckIn.IsZero()
}

// DateOnly truncates t to its calendar date in UTC. All comparisons in
// the reconciliation core are date-only; timestamps must pass through
// here before entering it.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date builds a midnight-UTC calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ErrBadDate is returned by ParseDate for text that is not a calendar date.
var ErrBadDate = errors.New("invalid calendar date")

// ParseDate parses "YYYY-MM-DD" into a midnight-UTC date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, ErrBadDate
	}
	return DateOnly(t), nil
}

// FormatDate renders a date as "YYYY-MM-DD"; the zero time renders as ""
// so open-ended fields stay blank in output.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}
