package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())

	s.echo.GET("/healthz", s.handleHealthz)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api")

	api.POST("/profiles", s.handleCreateProfile)
	api.GET("/profiles", s.handleListProfiles)
	api.GET("/profiles/:id", s.handleGetProfile)
	api.DELETE("/profiles/:id", s.handleDeleteProfile)

	api.POST("/profiles/:id/session", s.handleOpenSession)
	api.DELETE("/profiles/:id/session", s.handleCloseSession)
	api.GET("/sessions", s.handleActiveSessions)

	api.PUT("/profiles/:id/proxy", s.handleAssignProxy)
	api.POST("/profiles/:id/proxy/random", s.handleAssignRandomProxy)
	api.DELETE("/profiles/:id/proxy", s.handleReleaseProxy)
	api.GET("/profiles/:id/proxy", s.handleGetAssignedProxy)

	api.GET("/assignments", s.handleListAssignments)

	api.POST("/proxies/import", s.handleImportProxies)
	api.GET("/proxies", s.handleListProxies)
	api.GET("/proxies/counts", s.handleProxyCounts)
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.Info("Request", attrs...)
			return nil
		},
	})
}
