// Package httpapi exposes the document-intelligence core over HTTP: query
// submission (streaming and non-streaming), retrieval-only search, and
// document submission/lifecycle endpoints.
package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"docintel/internal/logging"
)

// UserIDHeader is the header the auth edge is expected to set once it has
// authenticated the caller. The core trusts this value and does not itself
// perform authentication (see the error-handling design's note that
// authorization is raised by the edge).
const UserIDHeader = "X-User-Id"

// Server wires the RAG orchestrator, hybrid searcher, and document store to
// the external HTTP surface.
type Server struct {
	echo *echo.Echo
	h    *Handlers
}

// NewServer builds a Server with the standard middleware stack and route
// table registered.
func NewServer(h *Handlers) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(requestLogger())
	e.Use(middleware.RequestID())
	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{Timeout: 5 * time.Minute}))

	s := &Server{echo: e, h: h}
	s.registerRoutes()
	return s
}

// ServeHTTP satisfies http.Handler, so Server can be passed directly to
// http.ListenAndServe or a test httptest.Server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	api := s.echo.Group("/api/v1")
	api.POST("/query", s.h.SubmitQuery)
	api.POST("/query/stream", s.h.SubmitQueryStream)
	api.POST("/search", s.h.RetrieveOnly)
	api.POST("/documents", s.h.SubmitDocument)
	api.GET("/documents/:id", s.h.GetDocument)
	api.GET("/documents/:id/chunks", s.h.GetDocumentChunks)
}

func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logging.Log.Info().
				Str("method", c.Request().Method).
				Str("path", c.Path()).
				Int("status", c.Response().Status).
				Dur("elapsed", time.Since(start)).
				Msg("http_request")
			return err
		}
	}
}
