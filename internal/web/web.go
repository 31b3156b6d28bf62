// Package web serves the cleaning schedule API and the embedded UI.
package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"turnsched/internal/apperr"
	"turnsched/internal/config"
	appLog "turnsched/internal/log"
	"turnsched/internal/model"
	"turnsched/internal/schedule"
)

// scheduleCacheTTL bounds how often an HTTP request can trigger a full
// fetch/reconcile pass; the cron loop remains the primary driver.
const scheduleCacheTTL = 30 * time.Second

// Scheduler is the part of the scheduling service the web layer uses.
type Scheduler interface {
	Refresh(ctx context.Context) (*schedule.RunReport, error)
	AssignCleaner(ctx context.Context, req schedule.AssignmentRequest) error
}

// Server provides HTTP APIs for the schedule and assignment edits.
type Server struct {
	cfg *config.Config
	svc Scheduler
	mux *http.ServeMux

	// In-memory cache for /api/schedule responses.
	cacheMu sync.RWMutex
	cache   *scheduleCache
}

// embeddedStatic contains the single-page schedule UI.
//
//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, svc Scheduler) *Server {
	s := &Server{
		cfg: cfg,
		svc: svc,
		mux: http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Run serves HTTP on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Treat empty username or password as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="turnsched", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/schedule", s.handleSchedule)
	s.mux.HandleFunc("/api/assignments", s.handleAssignments)
	s.mux.Handle("/", s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// intervalDTO is the display-ready view of one cleaning interval. Absent
// dates and cleaners render as empty strings, never sentinels.
type intervalDTO struct {
	Unit        string `json:"unit"`
	UnitName    string `json:"unit_name"`
	CheckOut    string `json:"check_out"`
	NextCheckIn string `json:"next_check_in"`
	Cleaner     string `json:"cleaner"`
	HotBed      bool   `json:"hot_bed"`
}

type scheduleResponse struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Today       string        `json:"today"`
	Intervals   []intervalDTO `json:"intervals"`
	FailedUnits []string      `json:"failed_units,omitempty"`
}

type scheduleCache struct {
	resp      scheduleResponse
	updatedAt time.Time
}

// handleSchedule returns the aggregated cleaning schedule across all
// configured units, refreshing through a short TTL cache.
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	now := time.Now()
	s.cacheMu.RLock()
	c := s.cache
	s.cacheMu.RUnlock()
	if c != nil && now.Sub(c.updatedAt) < scheduleCacheTTL {
		writeJSON(w, http.StatusOK, c.resp)
		return
	}

	report, err := s.svc.Refresh(r.Context())
	if err != nil {
		appLog.Error("schedule refresh failed", err)
		writeError(w, apperr.CodeOf(err).HTTPStatus(), "failed to build schedule")
		return
	}

	resp := s.buildScheduleResponse(report)

	s.cacheMu.Lock()
	s.cache = &scheduleCache{resp: resp, updatedAt: time.Now()}
	s.cacheMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) buildScheduleResponse(report *schedule.RunReport) scheduleResponse {
	dtos := make([]intervalDTO, 0, len(report.Intervals))
	for _, ci := range report.Intervals {
		dtos = append(dtos, intervalDTO{
			Unit:        ci.Unit,
			UnitName:    s.cfg.UnitName(ci.Unit),
			CheckOut:    model.FormatDate(ci.CheckOut),
			NextCheckIn: model.FormatDate(ci.NextCheckIn),
			Cleaner:     ci.Cleaner,
			HotBed:      ci.HotBed,
		})
	}

	var failed []string
	for _, fu := range report.Failures {
		failed = append(failed, fu.Unit)
	}

	return scheduleResponse{
		GeneratedAt: report.FinishedAt,
		Today:       model.FormatDate(report.Today),
		Intervals:   dtos,
		FailedUnits: failed,
	}
}

// handleAssignments applies a cleaner edit event from the UI.
func (s *Server) handleAssignments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req schedule.AssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.svc.AssignCleaner(r.Context(), req); err != nil {
		appLog.Error("assignment update failed", err, "unit", req.Unit, "check_in", req.CheckIn)
		writeError(w, apperr.CodeOf(err).HTTPStatus(), err.Error())
		return
	}

	// Drop the cached schedule so the edit shows up on the next read.
	s.cacheMu.Lock()
	s.cache = nil
	s.cacheMu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// staticFileServer serves the embedded single-page UI.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// API paths never fall through to the static UI.
		if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
