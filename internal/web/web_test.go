package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turnsched/internal/apperr"
	"turnsched/internal/config"
	"turnsched/internal/model"
	"turnsched/internal/schedule"
)

// fakeScheduler returns canned reports and records assignment calls.
type fakeScheduler struct {
	report     *schedule.RunReport
	refreshErr error
	assignErr  error

	refreshes int
	assigned  []schedule.AssignmentRequest
}

func (f *fakeScheduler) Refresh(context.Context) (*schedule.RunReport, error) {
	f.refreshes++
	return f.report, f.refreshErr
}

func (f *fakeScheduler) AssignCleaner(_ context.Context, req schedule.AssignmentRequest) error {
	f.assigned = append(f.assigned, req)
	return f.assignErr
}

func testReport() *schedule.RunReport {
	return &schedule.RunReport{
		FinishedAt: time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC),
		Today:      model.Date(2024, 1, 3),
		Succeeded:  []string{"606"},
		Intervals: []model.CleaningInterval{
			{
				Unit:        "606",
				CheckOut:    model.Date(2024, 1, 6),
				NextCheckIn: model.Date(2024, 1, 6),
				HotBed:      true,
			},
			{
				Unit:     "606",
				CheckOut: model.Date(2024, 1, 10),
			},
		},
	}
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Units = []config.UnitConfig{{ID: "606", Name: "Van Gogh 606", URL: "https://example.com/606.ics"}}
	cfg.Normalize()
	return cfg
}

func TestHealth(t *testing.T) {
	s := NewServer(testConfig(), &fakeScheduler{report: testReport()})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestScheduleResponseShape(t *testing.T) {
	s := NewServer(testConfig(), &fakeScheduler{report: testReport()})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schedule", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp scheduleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "2024-01-03", resp.Today)
	require.Len(t, resp.Intervals, 2)

	hot := resp.Intervals[0]
	assert.Equal(t, "Van Gogh 606", hot.UnitName)
	assert.Equal(t, "2024-01-06", hot.CheckOut)
	assert.Equal(t, "2024-01-06", hot.NextCheckIn)
	assert.True(t, hot.HotBed)

	trailing := resp.Intervals[1]
	assert.Equal(t, "", trailing.NextCheckIn, "open-ended interval serializes blank, not a sentinel")
	assert.Equal(t, "", trailing.Cleaner)
	assert.False(t, trailing.HotBed)
}

func TestScheduleUsesTTLCache(t *testing.T) {
	f := &fakeScheduler{report: testReport()}
	s := NewServer(testConfig(), f)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schedule", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 1, f.refreshes)
}

func TestScheduleFailure(t *testing.T) {
	f := &fakeScheduler{refreshErr: apperr.FetchFailed("all feeds down", nil)}
	s := NewServer(testConfig(), f)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schedule", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestAssignmentsHappyPath(t *testing.T) {
	f := &fakeScheduler{report: testReport()}
	s := NewServer(testConfig(), f)

	// Warm the schedule cache first so we can observe invalidation.
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schedule", nil))
	require.Equal(t, 1, f.refreshes)

	body := `{"unit":"606","check_in":"2024-01-06","cleaner":"Maria"}`
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/assignments", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, f.assigned, 1)
	assert.Equal(t, schedule.AssignmentRequest{Unit: "606", CheckIn: "2024-01-06", Cleaner: "Maria"}, f.assigned[0])

	// The edit invalidated the cache; the next read refreshes again.
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schedule", nil))
	assert.Equal(t, 2, f.refreshes)
}

func TestAssignmentsErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", apperr.NotFound("no such booking"), http.StatusNotFound},
		{"invalid input", apperr.InvalidInput("bad date"), http.StatusBadRequest},
		{"store failure", apperr.StoreFailed("down", nil), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(testConfig(), &fakeScheduler{report: testReport(), assignErr: tt.err})

			body := `{"unit":"606","check_in":"2024-01-06","cleaner":"Maria"}`
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/assignments", strings.NewReader(body)))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestAssignmentsRejectsBadJSONAndMethod(t *testing.T) {
	s := NewServer(testConfig(), &fakeScheduler{report: testReport()})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/assignments", strings.NewReader("{broken")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/assignments", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBasicAuth(t *testing.T) {
	cfg := testConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	s := NewServer(cfg, &fakeScheduler{report: testReport()})

	// /health stays open.
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schedule", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/schedule", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStaticUIServed(t *testing.T) {
	s := NewServer(testConfig(), &fakeScheduler{report: testReport()})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Cleaning schedule")

	// Unknown API paths 404 instead of falling through to the UI.
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
