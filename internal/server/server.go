// Package server serves the window feeds, the results archive and run metrics
// over HTTP for dashboards that cannot read the output directory directly.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"dugout-pulse/internal/model"
	"dugout-pulse/internal/output"
	"dugout-pulse/internal/storage"
	"dugout-pulse/internal/version"
	"dugout-pulse/internal/window"
)

// Options configure the feed server.
type Options struct {
	Addr           string
	FeedDir        string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// Server exposes feeds read from FeedDir. Archive and Metrics are optional.
type Server struct {
	opts    Options
	router  *mux.Router
	archive storage.Archive
	metrics http.Handler
	logger  zerolog.Logger
}

// New wires the routes.
func New(opts Options, archive storage.Archive, metrics http.Handler, logger zerolog.Logger) *Server {
	s := &Server{
		opts:    opts,
		router:  mux.NewRouter(),
		archive: archive,
		metrics: metrics,
		logger:  logger.With().Str("component", "server").Logger(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.healthHandler).Methods(http.MethodGet)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/feeds/{window}", s.feedHandler).Methods(http.MethodGet)
	api.HandleFunc("/archive/{window}/{date}", s.archiveHandler).Methods(http.MethodGet)
	api.HandleFunc("/runs", s.runsHandler).Methods(http.MethodGet)

	s.router.Use(s.recoveryMiddleware, s.loggingMiddleware)
}

// Handler returns the router wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         86400,
	})
	return c.Handler(s.router)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("feed server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.logger.Info().Msg("feed server stopped")
		return nil
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) feedHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseWindow(mux.Vars(r)["window"])
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown window")
		return
	}

	results, err := output.Read(s.opts.FeedDir, id)
	if errors.Is(err, output.ErrNoFeed) {
		s.writeError(w, http.StatusNotFound, "feed not written yet")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("window", string(id)).Msg("read feed failed")
		s.writeError(w, http.StatusInternalServerError, "feed unreadable")
		return
	}
	s.writeJSON(w, http.StatusOK, results)
}

type archivedResult struct {
	RunID       string          `json:"run_id"`
	RunDate     string          `json:"run_date"`
	Window      string          `json:"window"`
	PlayerName  string          `json:"player_name"`
	Team        string          `json:"team"`
	Level       string          `json:"level"`
	IsClient    bool            `json:"is_client"`
	Grade       string          `json:"window_grade"`
	Class       string          `json:"grade_class"`
	Status      string          `json:"data_status"`
	Stats       json.RawMessage `json:"stats"`
	GamesPlayed int             `json:"games_played"`
	LastUpdated string          `json:"last_updated"`
}

func (s *Server) archiveHandler(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.writeError(w, http.StatusNotFound, "archive not configured")
		return
	}
	vars := mux.Vars(r)
	id, ok := parseWindow(vars["window"])
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown window")
		return
	}
	day, err := model.ParseDay(vars["date"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	records, err := s.archive.ListResults(r.Context(), string(id), day)
	if err != nil {
		s.logger.Error().Err(err).Msg("list archived results failed")
		s.writeError(w, http.StatusInternalServerError, "archive unavailable")
		return
	}

	out := make([]archivedResult, 0, len(records))
	for _, rec := range records {
		out = append(out, archivedResult{
			RunID:       rec.RunID,
			RunDate:     model.FormatDay(rec.RunDate),
			Window:      rec.Window,
			PlayerName:  rec.PlayerName,
			Team:        rec.Team,
			Level:       rec.Level,
			IsClient:    rec.IsClient,
			Grade:       rec.Grade,
			Class:       window.TierFromLabel(rec.Grade).Class(),
			Status:      rec.Status,
			Stats:       rec.Stats,
			GamesPlayed: rec.GamesPlayed,
			LastUpdated: rec.GeneratedAt.UTC().Format(time.RFC3339),
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

type runView struct {
	RunID        string    `json:"run_id"`
	RunDate      string    `json:"run_date"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Players      int       `json:"players"`
	Unavailable  int       `json:"unavailable"`
	Insufficient int       `json:"insufficient"`
	Trigger      string    `json:"trigger"`
}

func (s *Server) runsHandler(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.writeError(w, http.StatusNotFound, "archive not configured")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			s.writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	runs, err := s.archive.ListRecentRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("list runs failed")
		s.writeError(w, http.StatusInternalServerError, "archive unavailable")
		return
	}
	out := make([]runView, 0, len(runs))
	for _, run := range runs {
		out = append(out, runView{
			RunID:        run.RunID,
			RunDate:      model.FormatDay(run.RunDate),
			StartedAt:    run.StartedAt,
			FinishedAt:   run.FinishedAt,
			Players:      run.Players,
			Unavailable:  run.Unavailable,
			Insufficient: run.Insufficient,
			Trigger:      run.Trigger,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func parseWindow(v string) (window.ID, bool) {
	for _, id := range window.All {
		if string(id) == v {
			return id, true
		}
	}
	return "", false
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn().Err(err).Msg("encode response failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request served")
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panicked")
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
