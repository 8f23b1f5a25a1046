// Package server exposes the anonymizer over HTTP: asynchronous anonymize
// submission with task polling, synchronous deanonymization, and a health
// probe.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/prokopidis/presidio/internal/otel"
	"github.com/prokopidis/presidio/internal/task"
)

const defaultTimeout = 60 * time.Second

// Server holds all dependencies for the HTTP API. The anonymization
// pipeline itself runs inside the task queue's job function; handlers only
// talk to the queue.
type Server struct {
	router    *chi.Mux
	queue     *task.Queue
	limiter   *RateLimiter
	startTime time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithRateLimiter enables token-bucket rate limiting on all endpoints.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(s *Server) { s.limiter = rl }
}

// NewServer builds a Server over the given task queue.
func NewServer(queue *task.Queue, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		queue:     queue,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(defaultTimeout))
	s.router.Use(otel.Middleware())
	if s.limiter != nil {
		s.router.Use(s.rateLimit)
	}

	s.router.Get("/health", s.handleHealth)
	s.router.Post("/anonymize", s.handleAnonymize)
	s.router.Get("/anonymize/{id}", s.handleGetAnonymization)
	s.router.Post("/deanonymize", s.handleDeanonymize)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(r.RemoteAddr) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
