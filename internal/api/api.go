// Package api exposes the dashboard views over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/rewired-gh/powerprices/internal/dashboard"
	"github.com/rewired-gh/powerprices/internal/metrics"
)

// Server is the HTTP front end of the dashboard.
type Server struct {
	router  *echo.Echo
	service *dashboard.Service
}

// NewServer builds the router. An empty corsOrigins allows every origin.
func NewServer(service *dashboard.Service, corsOrigins []string) (*Server, error) {
	renderer, err := newPageRenderer()
	if err != nil {
		return nil, err
	}

	s := &Server{router: echo.New(), service: service}
	s.router.HideBanner = true
	s.router.HidePort = true
	s.router.Logger.SetLevel(log.ERROR)

	s.router.JSONSerializer = sonicSerializer{}
	s.router.Validator = newValidator()
	s.router.Renderer = renderer
	s.router.HTTPErrorHandler = httpErrorHandler

	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	s.router.Use(middleware.Recover())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  corsOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodHead},
		ExposeHeaders: []string{headerExportID, headerExportURL},
	}))

	s.router.GET("/", s.page)
	s.router.GET("/health", s.health)
	s.router.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	api := s.router.Group("/api/v1")
	api.GET("/countries", s.countries)

	views := api.Group("/views")
	views.GET("", s.views)
	views.GET("/:view/csv", s.exportView)

	exports := api.Group("/exports")
	exports.GET("", s.listExports)
	exports.GET("/:id", s.getExport)

	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	if err := s.router.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains open connections.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.router.Shutdown(ctx)
}
