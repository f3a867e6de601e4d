package httpapi

import (
	stdcontext "context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thenullengine/ailab/internal/api"
	"github.com/thenullengine/ailab/internal/metrics"
	"github.com/thenullengine/ailab/internal/supervise"
)

const (
	defaultAddr            = "127.0.0.1:7663"
	defaultReadHeader      = 5 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// Config controls construction of the API server.
type Config struct {
	Addr              string
	Controller        api.Controller
	Listener          net.Listener
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server wraps an http.Server exposing supervisor controls and metrics.
type Server struct {
	ctrl            api.Controller
	srv             *http.Server
	listener        net.Listener
	shutdownTimeout time.Duration
}

// NewServer constructs a Server with sane defaults.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Controller == nil {
		return nil, fmt.Errorf("controller is required")
	}
	addr := cfg.Addr
	if addr == "" {
		addr = defaultAddr
	}
	mux := http.NewServeMux()
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	if srv.ReadHeaderTimeout == 0 {
		srv.ReadHeaderTimeout = defaultReadHeader
	}
	server := &Server{
		ctrl:            cfg.Controller,
		srv:             srv,
		listener:        cfg.Listener,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	if server.shutdownTimeout == 0 {
		server.shutdownTimeout = defaultShutdownTimeout
	}
	server.registerRoutes(mux)
	return server, nil
}

// Run starts serving until the provided context is cancelled.
func (s *Server) Run(ctx stdcontext.Context) error {
	if ctx == nil {
		ctx = stdcontext.Background()
	}
	errCh := make(chan error, 1)
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := stdcontext.WithTimeout(stdcontext.Background(), s.shutdownTimeout)
			defer cancel()
			_ = s.srv.Shutdown(shutdownCtx)
		case <-stop:
		}
	}()

	go func() {
		var err error
		if s.listener != nil {
			err = s.srv.Serve(s.listener)
		} else {
			err = s.srv.ListenAndServe()
		}
		errCh <- err
	}()

	err := <-errCh
	close(stop)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.srv.Addr
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/services", s.handleStatus)
	mux.HandleFunc("/api/v1/services/", s.handleOperation)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	report, err := s.ctrl.Status(r.Context())
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

// handleOperation serves POST /api/v1/services/{name}/{op}.
func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/services/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		s.writeError(w, fmt.Errorf("%w: invalid service path", supervise.ErrUnknownService), map[string]any{"path": r.URL.Path})
		return
	}
	name, op := parts[0], parts[1]

	var err error
	status := http.StatusAccepted
	switch op {
	case "install":
		err = s.ctrl.Install(r.Context(), name)
	case "update":
		err = s.ctrl.Update(r.Context(), name)
	case "start":
		err = s.ctrl.Start(r.Context(), name)
	case "stop":
		// Stop blocks for the termination wait; report the final outcome.
		err = s.ctrl.Stop(r.Context(), name)
		status = http.StatusOK
	case "restart":
		err = s.ctrl.Restart(r.Context(), name)
	default:
		s.writeJSON(w, http.StatusNotFound, errorBody{
			Code:    "unknown_operation",
			Message: fmt.Sprintf("unknown operation %q", op),
		})
		return
	}
	if err != nil {
		s.writeError(w, err, map[string]any{"service": name, "operation": op})
		return
	}
	s.writeJSON(w, status, map[string]any{"service": name, "operation": op, "status": "accepted"})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, method string) {
	w.Header().Set("Allow", method)
	s.writeJSON(w, http.StatusMethodNotAllowed, errorBody{
		Code:    "method_not_allowed",
		Message: fmt.Sprintf("method %s not allowed", method),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, err error, details map[string]any) {
	status, code := classifyError(err)
	s.writeJSON(w, status, errorBody{Code: code, Message: err.Error(), Details: details})
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, supervise.ErrUnknownService):
		return http.StatusNotFound, "unknown_service"
	case errors.Is(err, supervise.ErrBusy):
		return http.StatusConflict, "busy"
	case errors.Is(err, supervise.ErrNotRunning):
		return http.StatusConflict, "not_running"
	case errors.Is(err, supervise.ErrNotInstalled):
		return http.StatusPreconditionFailed, "not_installed"
	case errors.Is(err, supervise.ErrUnsupported):
		return http.StatusNotFound, "unsupported_operation"
	case errors.Is(err, supervise.ErrDeclined):
		return http.StatusConflict, "declined"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
