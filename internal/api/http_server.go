package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"studiobook/internal/availability"
	"studiobook/internal/config"
	"studiobook/internal/database"
	"studiobook/internal/export"
	"studiobook/internal/metrics"
	"studiobook/internal/models"
	"studiobook/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultExportDays = 30
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// HTTPServer exposes the booking service API used by the site's booking store.
type HTTPServer struct {
	cfg    *config.APIConfig
	svc    *service.ReservationService
	server *http.Server
	auth   *HTTPAuth
	log    zerolog.Logger
}

func NewHTTPServer(cfg *config.APIConfig, svc *service.ReservationService, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{cfg: cfg, svc: svc, log: zerolog.Nop()}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}
	srv.auth = NewHTTPAuth(cfg)

	api := http.NewServeMux()
	api.HandleFunc("POST /api/v1/bookings", srv.handleCreate)
	api.HandleFunc("GET /api/v1/bookings", srv.handleList)
	api.HandleFunc("GET /api/v1/bookings/dates", srv.handleDates)
	api.HandleFunc("GET /api/v1/bookings/slots", srv.handleSlots)
	api.HandleFunc("GET /api/v1/bookings/export.xlsx", srv.handleExport)
	api.HandleFunc("GET /api/v1/bookings/{id}", srv.handleGet)
	api.HandleFunc("PATCH /api/v1/bookings/{id}/status", srv.handleStatus)
	api.HandleFunc("DELETE /api/v1/bookings/{id}", srv.handleDelete)

	// probes stay outside auth and rate limiting
	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", srv.handleHealthz)
	root.HandleFunc("GET /readyz", srv.handleReadyz)
	root.Handle("/", srv.auth.Wrap(api))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.loggingMiddleware(root),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *HTTPServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in models.BookingInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	booking, err := s.svc.Create(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"booking": booking})
}

func (s *HTTPServer) handleList(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	bookings, err := s.svc.List(r.Context(), email)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleGet(w http.ResponseWriter, r *http.Request) {
	booking, err := s.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": booking})
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	var body statusRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	booking, err := s.svc.UpdateStatus(r.Context(), r.PathValue("id"), body.Status)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": booking})
}

func (s *HTTPServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleDates(w http.ResponseWriter, r *http.Request) {
	dates, err := s.svc.OccupiedDates(r.Context(), statusFilter(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dates": dates})
}

func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	date, err := models.ParseLocalDate(dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	slots, err := s.svc.OccupiedSlots(r.Context(), date, statusFilter(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date.String(), "slots": slots})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	rng, err := exportRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bookings, err := s.svc.List(r.Context(), "")
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	f, err := export.Workbook(bookings, rng, s.svc.Slots())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(rng)))
	if err := f.Write(w); err != nil {
		s.log.Error().Err(err).Msg("write export")
	}
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.svc.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": verr.Error(), "fields": verr.Fields})
	case errors.Is(err, service.ErrUnknownStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrSlotTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrInvalidTransition):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.log.Error().Err(err).Msg("booking service error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// statusFilter reads ?status=a,b. Unknown names are dropped and an empty
// filter means pending and confirmed.
func statusFilter(r *http.Request) []string {
	set := availability.NewStatusSet(splitCSV(r.URL.Query().Get("status"))...)
	if len(set) == 0 {
		return availability.Blocking.Slice()
	}
	return set.Slice()
}

func exportRange(r *http.Request) (export.Range, error) {
	today := models.Today()
	rng := export.Range{From: today, To: today.AddDays(defaultExportDays)}

	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		from, err := models.ParseLocalDate(raw)
		if err != nil {
			return export.Range{}, fmt.Errorf("invalid from: %w", err)
		}
		rng.From = from
		rng.To = from.AddDays(defaultExportDays)
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		to, err := models.ParseLocalDate(raw)
		if err != nil {
			return export.Range{}, fmt.Errorf("invalid to: %w", err)
		}
		rng.To = to
	}
	return rng, nil
}

// loggingMiddleware must not replace r: the inner muxes record the matched
// pattern on it.
func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = r.URL.Path
		}
		metrics.IncHTTP(endpoint)

		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
