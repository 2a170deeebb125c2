// Package serve implements a development stand-in for the protocol catalog
// and execution services. It serves a catalog document over the same HTTP
// surface the operator tools consume, validates run parameters against each
// protocol's params_schema and answers simulated runs with scripted results.
// Hardware runs are always refused.
package serve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/catalog"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/log"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/protocol"
)

// HardwareUnavailable is the detail returned for non-simulated runs.
const HardwareUnavailable = "Hardware execution is not available on the development server"

// Server serves one catalog document.
type Server struct {
	catalog *catalog.File
	latency time.Duration
	logger  *log.Logger
	mux     *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithLatency sets the simulated execution time for protocols whose
// simulation does not name a delay.
func WithLatency(d time.Duration) Option {
	return func(s *Server) { s.latency = d }
}

// WithLogger sets the request logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a server for cf.
func New(cf *catalog.File, opts ...Option) *Server {
	if cf == nil {
		cf = &catalog.File{}
	}
	s := &Server{
		catalog: cf,
		logger:  log.Nop(),
		mux:     http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mux.HandleFunc("GET /protocols", s.handleList)
	s.mux.HandleFunc("GET /protocols/{id}", s.handleGet)
	s.mux.HandleFunc("POST /protocols/{id}/run", s.handleRun)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("serving catalog", map[string]any{
		"addr":      addr,
		"protocols": len(s.catalog.Protocols),
	})

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.List())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	e, ok := s.catalog.Find(id)
	if !ok {
		writeDetail(w, http.StatusNotFound, notFound(id))
		return
	}
	writeJSON(w, http.StatusOK, e.Protocol)
}

// runRequest mirrors client.RunRequest. A missing simulate flag means a
// simulated run.
type runRequest struct {
	Params   map[string]any `json:"params"`
	Simulate *bool          `json:"simulate"`
}

// fieldError is one entry of a FastAPI-style validation detail list.
type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	e, ok := s.catalog.Find(id)
	if !ok {
		writeDetail(w, http.StatusNotFound, notFound(id))
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, []fieldError{{
			Loc:  []string{"body"},
			Msg:  fmt.Sprintf("invalid request body: %v", err),
			Type: "json_invalid",
		}})
		return
	}
	if req.Params == nil {
		req.Params = map[string]any{}
	}
	simulate := req.Simulate == nil || *req.Simulate

	if errs := protocol.ValidateParams(e.ParamsSchema, req.Params); len(errs) > 0 {
		detail := make([]fieldError, 0, len(errs))
		for _, ve := range errs {
			loc := []string{"body", "params"}
			if ve.Path != "" {
				loc = append(loc, ve.Path)
			}
			detail = append(detail, fieldError{Loc: loc, Msg: ve.Message, Type: "value_error"})
		}
		s.logger.Info("run rejected", map[string]any{
			"protocol_id": id,
			"violations":  len(errs),
		})
		writeDetail(w, http.StatusUnprocessableEntity, detail)
		return
	}

	if !simulate {
		s.logger.Warn("hardware run refused", map[string]any{"protocol_id": id})
		writeDetail(w, http.StatusServiceUnavailable, HardwareUnavailable)
		return
	}

	delay := s.latency
	if e.Simulation != nil && e.Simulation.Delay != "" {
		d, err := time.ParseDuration(e.Simulation.Delay)
		if err != nil {
			writeDetail(w, http.StatusInternalServerError,
				fmt.Sprintf("invalid simulation delay %q for protocol %s", e.Simulation.Delay, id))
			return
		}
		delay = d
	}
	if err := sleep(r.Context(), delay); err != nil {
		s.logger.Debug("client went away", map[string]any{"protocol_id": id})
		return
	}

	result := Simulate(e, req.Params)
	s.logger.Info("run simulated", map[string]any{
		"protocol_id":   id,
		"status":        result.Status,
		"command_count": result.CommandCount,
		"delay_ms":      delay.Milliseconds(),
	})
	writeJSON(w, http.StatusOK, result)
}

func notFound(id string) string {
	return fmt.Sprintf("Protocol '%s' not found", id)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail any) {
	writeJSON(w, status, map[string]any{"detail": detail})
}
