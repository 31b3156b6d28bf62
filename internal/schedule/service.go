package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"turnsched/internal/apperr"
	"turnsched/internal/config"
	"turnsched/internal/ics"
	appLog "turnsched/internal/log"
	"turnsched/internal/model"
)

// Fetcher retrieves one unit's raw calendar payload.
type Fetcher interface {
	FetchOne(ctx context.Context, src ics.Source) (ics.FetchResult, error)
}

// BookingStore is the persistence boundary for per-unit booking records.
type BookingStore interface {
	Load(ctx context.Context, unit string) (*model.UnitRecord, error)
	Replace(ctx context.Context, rec *model.UnitRecord) error
	Units(ctx context.Context) ([]string, error)
}

// UnitFailure records one unit that could not be reconciled in a run.
type UnitFailure struct {
	Unit string
	Err  error
}

// RunReport summarizes one batch reconciliation pass.
type RunReport struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Today      time.Time

	Succeeded []string
	Failures  []UnitFailure

	// Intervals is the aggregated, display-ordered schedule built from
	// the units that reconciled successfully.
	Intervals []model.CleaningInterval
}

// AllFailed reports whether no unit produced a usable schedule.
func (r *RunReport) AllFailed() bool {
	return len(r.Succeeded) == 0 && len(r.Failures) > 0
}

// AssignmentRequest is an explicit cleaner edit event from the UI:
// which unit, which booking (by its check-in date), and the new name.
// An empty cleaner clears the assignment.
type AssignmentRequest struct {
	Unit    string `json:"unit" validate:"required"`
	CheckIn string `json:"check_in" validate:"required"`
	Cleaner string `json:"cleaner" validate:"max=120"`
}

// Service wires the per-unit pipeline together: fetch, extract,
// reconcile, persist, derive, aggregate. It also applies manual
// assignment edits, which the next reconciliation pass preserves.
type Service struct {
	cfg       *config.Config
	store     BookingStore
	fetcher   Fetcher
	sanitizer *Sanitizer
	validate  *validator.Validate
	loc       *time.Location

	now func() time.Time
}

// NewService builds the scheduling service. An unknown configured
// timezone falls back to UTC with a logged error.
func NewService(cfg *config.Config, st BookingStore, f Fetcher) *Service {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to UTC", err, "timezone", cfg.Timezone)
		loc = time.UTC
	}
	return &Service{
		cfg:       cfg,
		store:     st,
		fetcher:   f,
		sanitizer: NewSanitizer(cfg.StripMarkers),
		validate:  validator.New(),
		loc:       loc,
		now:       time.Now,
	}
}

// Today is the run's reference date: the current calendar day in the
// configured timezone, normalized to midnight UTC.
func (s *Service) Today() time.Time {
	return model.DateOnly(s.now().In(s.loc))
}

// Refresh reconciles every configured unit and returns the run report.
// Per-unit failures are logged and recorded but do not abort the batch;
// the run errors only when every unit failed (or none are configured).
func (s *Service) Refresh(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		StartedAt: s.now().UTC(),
		Today:     s.Today(),
	}

	all := make([]model.CleaningInterval, 0)
	for _, unit := range s.cfg.Units {
		intervals, err := s.reconcileUnit(ctx, unit, report.Today)
		if err != nil {
			appLog.Error("unit reconciliation failed", err, "unit", unit.ID, "code", string(apperr.CodeOf(err)))
			report.Failures = append(report.Failures, UnitFailure{Unit: unit.ID, Err: err})
			continue
		}
		report.Succeeded = append(report.Succeeded, unit.ID)
		all = append(all, intervals...)
	}

	report.Intervals = Aggregate(all, report.Today)
	report.FinishedAt = s.now().UTC()

	appLog.Info("reconciliation run finished",
		"units", len(s.cfg.Units),
		"succeeded", len(report.Succeeded),
		"failed", len(report.Failures),
		"intervals", len(report.Intervals),
		"today", model.FormatDate(report.Today),
	)

	if len(s.cfg.Units) == 0 {
		return report, apperr.InvalidInput("no units configured")
	}
	if report.AllFailed() {
		return report, fmt.Errorf("reconciliation failed for all %d units", len(report.Failures))
	}
	return report, nil
}

// reconcileUnit runs the full pipeline for one unit and returns its
// derived intervals.
func (s *Service) reconcileUnit(ctx context.Context, unit config.UnitConfig, today time.Time) ([]model.CleaningInterval, error) {
	src := ics.Source{Unit: unit.ID, URL: unit.URL}

	res, err := s.fetcher.FetchOne(ctx, src)
	if err != nil {
		return nil, apperr.FetchFailed("calendar feed unavailable", err)
	}

	windowStart := today.AddDate(0, 0, -s.cfg.HorizonDays)
	windowEnd := today.AddDate(0, 0, s.cfg.HorizonDays)
	fresh, err := ics.Extract(src, res.Body, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	prev, err := s.store.Load(ctx, unit.ID)
	if err != nil {
		return nil, err
	}

	var previous []model.Booking
	if prev != nil {
		previous = prev.Bookings
	}

	merged := Reconcile(previous, fresh, today)
	if err := s.store.Replace(ctx, &model.UnitRecord{Unit: unit.ID, Bookings: merged}); err != nil {
		return nil, err
	}

	appLog.Debug("unit reconciled",
		"unit", unit.ID,
		"previous", len(previous),
		"fresh", len(fresh),
		"merged", len(merged),
		"from_cache", res.FromCache,
	)

	return DeriveIntervals(unit.ID, merged), nil
}

// AssignCleaner applies a manual cleaner edit to the booking identified
// by (unit, check-in date) and persists the unit's record as a full
// replacement. Errors surface directly to the caller; there is no retry
// for a single user-initiated edit.
func (s *Service) AssignCleaner(ctx context.Context, req AssignmentRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return apperr.InvalidInput("invalid assignment request: %v", err)
	}

	checkIn, err := model.ParseDate(req.CheckIn)
	if err != nil {
		return apperr.InvalidInput("invalid check-in date %q", req.CheckIn)
	}

	rec, err := s.store.Load(ctx, req.Unit)
	if err != nil {
		return err
	}
	if rec == nil {
		return apperr.NotFound("unknown unit %q", req.Unit)
	}

	cleaner := s.sanitizer.Clean(req.Cleaner)

	found := false
	for i := range rec.Bookings {
		if rec.Bookings[i].CheckIn.Equal(checkIn) {
			rec.Bookings[i].Cleaner = cleaner
			found = true
			break
		}
	}
	if !found {
		return apperr.NotFound("unit %q has no booking checking in on %s", req.Unit, req.CheckIn)
	}

	if err := s.store.Replace(ctx, rec); err != nil {
		return err
	}

	appLog.Info("cleaner assignment updated", "unit", req.Unit, "check_in", req.CheckIn, "cleaner", cleaner)
	return nil
}
