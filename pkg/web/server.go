// Package web exposes the rasterizer over HTTP: a scene document goes in,
// an encoded permittivity grid comes out.
package web

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// Server wires the HTTP routes to the rasterization pipeline.
type Server struct {
	router *mux.Router
	log    *log.Logger
}

// NewServer creates a Server with all routes registered.
func NewServer(logger *log.Logger) *Server {
	if logger == nil {
		logger = log.StandardLogger()
	}
	s := &Server{
		router: mux.NewRouter(),
		log:    logger,
	}

	s.router.Use(s.requestID)
	s.router.Handle("/api/rasterize", &rasterizeHandler{s}).Methods(http.MethodPost)
	s.router.Handle("/api/evaluate", &evaluateHandler{s}).Methods(http.MethodPost)
	s.router.HandleFunc("/api/healthz", s.healthz).Methods(http.MethodGet)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestID tags every request with a unique id for log correlation.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		s.log.WithFields(log.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
		}).Debug("request")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
