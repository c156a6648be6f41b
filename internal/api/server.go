package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/benaskins/gpuprobe/internal/audit"
	"github.com/benaskins/gpuprobe/internal/gpu"
)

// Prober takes GPU snapshots. *gpu.Probe implements it.
type Prober interface {
	Run(ctx context.Context) (gpu.Response, error)
	Capability(ctx context.Context) gpu.CapabilityResult
}

// Server serves the gpuprobe REST API over a Unix socket and optionally TCP.
type Server struct {
	mu      sync.RWMutex
	prober  Prober
	limiter *rate.Limiter

	audit  *audit.Logger
	server *http.Server
	logger *slog.Logger
}

// Option configures the server.
type Option func(*Server)

// WithAudit records every /v1/gpu probe to the given history log.
func WithAudit(l *audit.Logger) Option {
	return func(s *Server) {
		s.audit = l
	}
}

// WithRateLimit bounds how often probes may run. perSecond <= 0 disables the limit.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		s.limiter = newLimiter(perSecond, burst)
	}
}

// NewServer creates an API server backed by the given prober.
func NewServer(p Prober, opts ...Option) *Server {
	s := &Server{
		prober:  p,
		limiter: newLimiter(0, 0),
		logger:  slog.With("component", "api"),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/gpu", s.getGPU)
	mux.HandleFunc("GET /v1/gpu/capability", s.getCapability)
	mux.HandleFunc("GET /v1/health", s.health)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func newLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Update swaps the prober and rate limit, e.g. after a config reload.
// In-flight requests finish with the previous prober.
func (s *Server) Update(p Prober, perSecond float64, burst int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prober = p
	s.limiter = newLimiter(perSecond, burst)
}

func (s *Server) current() (Prober, *rate.Limiter) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prober, s.limiter
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// ListenUnix starts the server on a Unix socket.
func (s *Server) ListenUnix(path string) error {
	ln, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	s.logger.Info("API listening", "socket", path)
	return s.server.Serve(ln)
}

// ListenTCP starts the server on a TCP address.
func (s *Server) ListenTCP(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.logger.Info("API listening", "addr", addr)
	return s.server.Serve(ln)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) getGPU(w http.ResponseWriter, r *http.Request) {
	prober, limiter := s.current()
	if !limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "probe rate exceeded"})
		return
	}

	start := time.Now()
	resp, err := prober.Run(r.Context())
	status := http.StatusOK
	if err != nil {
		status = http.StatusInternalServerError
		s.logger.Error("probe failed", "error", err)
	}
	writeJSON(w, status, resp)

	s.record(audit.Entry{
		Source:     audit.SourceAPI,
		HasMPS:     resp.HasMPS,
		GPUs:       len(resp.GPUs),
		DurationMS: time.Since(start).Milliseconds(),
		Status:     status,
		Error:      resp.Error,
	})
}

func (s *Server) getCapability(w http.ResponseWriter, r *http.Request) {
	prober, limiter := s.current()
	if !limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "probe rate exceeded"})
		return
	}
	writeJSON(w, http.StatusOK, prober.Capability(r.Context()))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) record(e audit.Entry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(e); err != nil {
		s.logger.Warn("writing probe history", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
