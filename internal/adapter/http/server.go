// Package http exposes the task queue over a JSON API: multipart submission,
// task status polling, an SSE progress stream and read-only rendition serving.
package http

import (
	"net/http"

	"github.com/bnema/mediaq/internal/domain"
	"github.com/bnema/mediaq/internal/service"
)

type Server struct {
	mux        *http.ServeMux
	handlers   *Handlers
	sseHandler *SSEHandler
}

func NewServer(taskSvc TaskService, eventBus *service.EventBus, layout domain.Layout, maxSizeMB int) *Server {
	mux := http.NewServeMux()

	s := &Server{
		mux:        mux,
		handlers:   NewHandlers(taskSvc, layout, maxSizeMB),
		sseHandler: NewSSEHandler(eventBus, taskSvc),
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /upload", s.handlers.Upload())
	s.mux.HandleFunc("GET /tasks/{id}", s.handlers.TaskStatus())
	s.mux.HandleFunc("GET /events/{id}", s.sseHandler.Events())
	s.mux.HandleFunc("GET /files/{category}/{name}", s.handlers.Files())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	s.mux.ServeHTTP(w, r)
}
