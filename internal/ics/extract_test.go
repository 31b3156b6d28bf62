package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turnsched/internal/apperr"
	"turnsched/internal/model"
)

// crlf rewrites test fixtures to the CRLF line endings the ICS wire
// format mandates.
func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

const sampleFeed = `BEGIN:VCALENDAR
PRODID;X-RICAL-TZSOURCE=TZINFO:-//Airbnb Inc//Hosting Calendar 0.8.8//EN
CALSCALE:GREGORIAN
VERSION:2.0
BEGIN:VEVENT
DTSTAMP:20240101T120000Z
DTSTART;VALUE=DATE:20240106
DTEND;VALUE=DATE:20240110
UID:res-2@airbnb.com
SUMMARY:Reserved
END:VEVENT
BEGIN:VEVENT
DTSTAMP:20240101T120000Z
DTSTART;VALUE=DATE:20240101
DTEND;VALUE=DATE:20240106
UID:res-1@airbnb.com
SUMMARY:Reserved
END:VEVENT
END:VCALENDAR
`

func window() (time.Time, time.Time) {
	return model.Date(2023, time.October, 1), model.Date(2024, time.June, 1)
}

func TestExtractSortsByCheckIn(t *testing.T) {
	from, to := window()
	got, err := Extract(Source{Unit: "606"}, crlf(sampleFeed), from, to)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, model.Booking{
		ID:       "res-1@airbnb.com",
		CheckIn:  model.Date(2024, time.January, 1),
		CheckOut: model.Date(2024, time.January, 6),
	}, got[0], "feed order is reversed; extractor sorts by check-in")
	assert.Equal(t, "res-2@airbnb.com", got[1].ID)
	assert.Equal(t, model.Date(2024, time.January, 10), got[1].CheckOut)
	for _, b := range got {
		assert.Empty(t, b.Cleaner)
	}
}

func TestExtractDeterministic(t *testing.T) {
	from, to := window()
	a, err := Extract(Source{Unit: "606"}, crlf(sampleFeed), from, to)
	require.NoError(t, err)
	b, err := Extract(Source{Unit: "606"}, crlf(sampleFeed), from, to)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestExtractMalformedPayload(t *testing.T) {
	from, to := window()

	_, err := Extract(Source{Unit: "606"}, nil, from, to)
	assert.True(t, apperr.Is(err, apperr.ErrParseFailed))

	_, err = Extract(Source{Unit: "606"}, []byte("not an ics document"), from, to)
	assert.True(t, apperr.Is(err, apperr.ErrParseFailed))
}

func TestExtractSkipsBrokenEvents(t *testing.T) {
	// Second event has no UID, third has a zero-length stay; both are
	// skipped while the valid one survives.
	feed := `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
DTSTART;VALUE=DATE:20240101
DTEND;VALUE=DATE:20240103
UID:keep@example.com
END:VEVENT
BEGIN:VEVENT
DTSTART;VALUE=DATE:20240105
DTEND;VALUE=DATE:20240107
END:VEVENT
BEGIN:VEVENT
DTSTART;VALUE=DATE:20240110
DTEND;VALUE=DATE:20240110
UID:empty@example.com
END:VEVENT
END:VCALENDAR
`
	from, to := window()
	got, err := Extract(Source{Unit: "908"}, crlf(feed), from, to)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "keep@example.com", got[0].ID)
}

func TestExtractExpandsRecurringBlocks(t *testing.T) {
	// A weekly owner block: every Monday for two nights, four weeks.
	feed := `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
DTSTART;VALUE=DATE:20240101
DTEND;VALUE=DATE:20240103
RRULE:FREQ=WEEKLY;COUNT=4
EXDATE;VALUE=DATE:20240115
UID:block@example.com
END:VEVENT
END:VCALENDAR
`
	from, to := window()
	got, err := Extract(Source{Unit: "1108"}, crlf(feed), from, to)
	require.NoError(t, err)

	require.Len(t, got, 3, "one of four weekly occurrences excluded by EXDATE")
	assert.Equal(t, "block@example.com#20240101", got[0].ID)
	assert.Equal(t, model.Date(2024, time.January, 1), got[0].CheckIn)
	assert.Equal(t, model.Date(2024, time.January, 3), got[0].CheckOut)
	assert.Equal(t, "block@example.com#20240108", got[1].ID)
	assert.Equal(t, "block@example.com#20240122", got[2].ID)
}

func TestRedactURLHidesSecrets(t *testing.T) {
	got := redactURL("https://www.airbnb.com/calendar/ical/123.ics?s=secret")
	assert.Equal(t, "https://www.airbnb.com/...(redacted)", got)
	assert.False(t, strings.Contains(got, "secret"))
}
