package ics

import (
	"bytes"
	"errors"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"turnsched/internal/apperr"
	appLog "turnsched/internal/log"
	"turnsched/internal/model"
)

// Recurring blocks (owner holds, maintenance) are expanded into at most
// this many occurrences per event as a safety cap.
const maxOccurrencesPerEvent = 1000

// Extract parses an iCal payload into the unit's booking events, ordered
// by check-in ascending (stable, ties keep feed order) with no cleaner
// assigned. Reservation feeds use all-day dates with an exclusive DTEND,
// so the DTEND date is the checkout day.
//
// Recurring events are expanded into one booking per occurrence inside
// [windowStart, windowEnd]; each occurrence gets an id of the form
// "<uid>#<date>" so it stays stable across runs.
//
// Extraction does not deduplicate by id; reconciliation owns that.
func Extract(src Source, body []byte, windowStart, windowEnd time.Time) ([]model.Booking, error) {
	if len(body) == 0 {
		return nil, apperr.ParseFailed("empty calendar payload", nil)
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, apperr.ParseFailed("malformed calendar payload", err)
	}

	bookings := make([]model.Booking, 0)

	for _, ve := range cal.Events() {
		evs, perr := extractVEvent(src, ve, windowStart, windowEnd)
		if perr != nil {
			// Skip the broken event but keep parsing the rest.
			appLog.Error("calendar event skipped", perr, "unit", src.Unit, "url", redactURL(src.URL))
			continue
		}
		bookings = append(bookings, evs...)
	}

	sort.SliceStable(bookings, func(i, j int) bool {
		return bookings[i].CheckIn.Before(bookings[j].CheckIn)
	})

	appLog.Debug("calendar extract completed", "unit", src.Unit, "booking_count", len(bookings))
	return bookings, nil
}

func extractVEvent(src Source, ve *ical.VEvent, windowStart, windowEnd time.Time) ([]model.Booking, error) {
	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return nil, errors.New("missing UID")
	}
	uid := uidProp.Value

	// Reservation feeds publish all-day dates (VALUE=DATE); fall back to
	// the all-day accessors when the timed ones come up empty.
	start, err := ve.GetStartAt()
	if err != nil || start.IsZero() {
		start, _ = ve.GetAllDayStartAt()
	}
	end, err := ve.GetEndAt()
	if err != nil || end.IsZero() {
		end, _ = ve.GetAllDayEndAt()
	}
	if start.IsZero() || end.IsZero() {
		return nil, errors.New("missing DTSTART or DTEND")
	}

	checkIn := model.DateOnly(start)
	checkOut := model.DateOnly(end)
	if !checkIn.Before(checkOut) {
		return nil, errors.New("check-in not before check-out")
	}

	var rawRRule string
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		rawRRule = p.Value
	}

	if rawRRule == "" {
		return []model.Booking{{ID: uid, CheckIn: checkIn, CheckOut: checkOut}}, nil
	}

	return expandRecurring(uid, checkIn, checkOut, rawRRule, exDates(ve), windowStart, windowEnd)
}

// expandRecurring turns a recurring event into concrete bookings inside
// the window, preserving the stay length of the base event.
func expandRecurring(uid string, checkIn, checkOut time.Time, rawRRule string, exdates []time.Time, windowStart, windowEnd time.Time) ([]model.Booking, error) {
	r, err := rrule.StrToRRule(rawRRule)
	if err != nil {
		return nil, err
	}
	r.DTStart(checkIn)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range exdates {
		set.ExDate(ex)
	}

	occs := set.Between(windowStart, windowEnd, true)
	if len(occs) > maxOccurrencesPerEvent {
		appLog.Error("recurring event truncated", errors.New("occurrence cap reached"),
			"uid", uid, "cap", maxOccurrencesPerEvent)
		occs = occs[:maxOccurrencesPerEvent]
	}

	stay := checkOut.Sub(checkIn)
	out := make([]model.Booking, 0, len(occs))
	for _, occ := range occs {
		in := model.DateOnly(occ)
		out = append(out, model.Booking{
			ID:       uid + "#" + in.Format("20060102"),
			CheckIn:  in,
			CheckOut: in.Add(stay),
		})
	}
	return out, nil
}

// exDates collects EXDATE values as midnight-UTC dates. Value-level
// parameters (TZID etc.) are ignored; reservation feeds carry plain dates.
func exDates(ve *ical.VEvent) []time.Time {
	var out []time.Time
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSDate(part); err == nil {
				out = append(out, t)
			}
		}
	}
	return out
}

// parseICSDate parses basic ICS DATE / DATE-TIME forms into a UTC date.
func parseICSDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse("20060102T150405Z", v)
		if err != nil {
			return time.Time{}, err
		}
		return model.DateOnly(t), nil
	}
	if strings.Contains(v, "T") {
		t, err := time.Parse("20060102T150405", v)
		if err != nil {
			return time.Time{}, err
		}
		return model.DateOnly(t), nil
	}
	t, err := time.Parse("20060102", v)
	if err != nil {
		return time.Time{}, err
	}
	return model.DateOnly(t), nil
}
