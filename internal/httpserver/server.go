// Package httpserver exposes the operational HTTP API: profile and proxy
// management, session control, health and metrics.
package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/robgallardof/multig/internal/domain"
)

const healthCheckTimeout = 5 * time.Second

// appService is the slice of the application layer the HTTP API needs.
type appService interface {
	OpenSession(ctx context.Context, profileID uuid.UUID, url string) error
	CloseSession(ctx context.Context, profileID uuid.UUID) error
	ActiveProfiles() ([]uuid.UUID, error)

	CreateProfile(ctx context.Context, name string) (*domain.Profile, error)
	GetProfile(ctx context.Context, profileID uuid.UUID) (*domain.Profile, error)
	ListProfiles(ctx context.Context) ([]*domain.Profile, error)
	DeleteProfile(ctx context.Context, profileID uuid.UUID) error

	AssignProxy(ctx context.Context, profileID uuid.UUID, proxyID string) error
	ListAssignments(ctx context.Context) ([]*domain.Assignment, error)
	AssignRandomProxy(ctx context.Context, profileID uuid.UUID, force bool) (*domain.ProxyEndpoint, error)
	ReleaseProxy(ctx context.Context, profileID uuid.UUID) error
	GetAssignedProxy(ctx context.Context, profileID uuid.UUID) (*domain.ProxyEndpoint, error)

	ImportProxies(ctx context.Context, records []domain.Proxy) error
	ListProxies(ctx context.Context, filter domain.ProxyFilter) ([]*domain.Proxy, error)
	ProxyCounts(ctx context.Context) (domain.ProxyCounts, error)
}

// HealthCheck is a named health check function.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Server struct {
	echo         *echo.Echo
	port         string
	app          appService
	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(port string, app appService, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		port:         port,
		app:          app,
		healthChecks: healthChecks,
		startTime:    time.Now(),
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.port)
	if err := s.echo.Start(":" + s.port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
