package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/robgallardof/multig/internal/domain"
	"github.com/robgallardof/multig/internal/metrics"
)

// ProcessRegistry is the service's view of the live-worker tracker.
type ProcessRegistry interface {
	Register(profileID uuid.UUID, pid int, url string) error
	ActiveProfileIDs() ([]uuid.UUID, error)
	Stop(profileID uuid.UUID) (bool, error)
}

// SessionLauncher runs the worker binary: a blocking prepare pass for
// first-run profiles, and the long-running spawn. Both report failure without
// errors (false / domain.SentinelPID).
type SessionLauncher interface {
	PrepareProfile(ctx context.Context, req domain.LaunchRequest) bool
	Launch(ctx context.Context, req domain.LaunchRequest) int
}

// Options carries deployment-wide launch settings that apply to every session.
type Options struct {
	ProfilesDir    string
	ForceReprepare bool
	ProxyUsername  string
	ProxyPassword  string
	ConfigJSON     string
	AddonURL       string
	ExtraEnv       map[string]string
}

// Service orchestrates all use cases.
type Service struct {
	profiles     domain.ProfileRepository
	proxies      domain.ProxyRepository
	assignments  domain.AssignmentRepository
	registry     ProcessRegistry
	launcher     SessionLauncher
	opts         Options
	sessionGroup singleflight.Group
}

// NewService creates the application layer service.
func NewService(
	profiles domain.ProfileRepository,
	proxies domain.ProxyRepository,
	assignments domain.AssignmentRepository,
	registry ProcessRegistry,
	launcher SessionLauncher,
	opts Options,
) *Service {
	return &Service{
		profiles:    profiles,
		proxies:     proxies,
		assignments: assignments,
		registry:    registry,
		launcher:    launcher,
		opts:        opts,
	}
}

// OpenSession resolves the profile's proxy binding (allocating one when the
// profile is unbound), ensures the profile is prepared, launches a worker and
// registers it. Concurrent opens for the same profile are collapsed through
// singleflight so at most one worker is spawned.
//
// An allocation failure prevents any spawn; a launch failure surfaces as
// ErrLaunchFailed and leaves the proxy binding in place.
func (s *Service) OpenSession(ctx context.Context, profileID uuid.UUID, url string) error {
	_, err, _ := s.sessionGroup.Do(profileID.String(), func() (any, error) {
		profile, err := s.profiles.GetByID(ctx, profileID)
		if err != nil {
			return nil, err
		}

		endpoint, err := s.assignments.GetAssigned(ctx, profileID)
		if err != nil {
			return nil, err
		}
		if endpoint == nil {
			proxy, err := s.assignments.AssignRandom(ctx, profileID)
			if err != nil {
				return nil, err
			}
			endpoint = &domain.ProxyEndpoint{ID: proxy.ID, Host: proxy.Host, Port: proxy.Port, Label: proxy.Label}
			slog.Info("Proxy allocated for session",
				"profile_id", profileID.String(), "proxy_id", proxy.ID)
		}

		req := domain.LaunchRequest{
			Profile:       profile,
			URL:           url,
			Proxy:         endpoint,
			ProxyUsername: s.opts.ProxyUsername,
			ProxyPassword: s.opts.ProxyPassword,
			ConfigJSON:    s.opts.ConfigJSON,
			AddonURL:      s.opts.AddonURL,
			ExtraEnv:      s.opts.ExtraEnv,
		}

		if profile.NeedsPreparation(s.opts.ForceReprepare) {
			if !s.launcher.PrepareProfile(ctx, req) {
				return nil, fmt.Errorf("preparing profile %s: %w", profileID, domain.ErrLaunchFailed)
			}
			if err := s.profiles.MarkPrepared(ctx, profileID); err != nil {
				return nil, err
			}
		}

		pid := s.launcher.Launch(ctx, req)
		if pid == domain.SentinelPID {
			return nil, fmt.Errorf("worker for profile %s: %w", profileID, domain.ErrLaunchFailed)
		}

		if err := s.registry.Register(profileID, pid, url); err != nil {
			return nil, err
		}

		metrics.SessionsOpen.Inc()
		return nil, nil
	})
	return err
}

// CloseSession stops the profile's worker and releases its proxy back to the
// pool. Closing a profile with no running worker still releases the binding.
func (s *Service) CloseSession(ctx context.Context, profileID uuid.UUID) error {
	signaled, err := s.registry.Stop(profileID)
	if err != nil {
		return err
	}
	if signaled {
		metrics.SessionsOpen.Dec()
	}

	return s.assignments.Release(ctx, profileID)
}

// ActiveProfiles returns the profiles with a verified live worker.
func (s *Service) ActiveProfiles() ([]uuid.UUID, error) {
	active, err := s.registry.ActiveProfileIDs()
	if err != nil {
		return nil, err
	}
	metrics.SessionsOpen.Set(float64(len(active)))
	return active, nil
}

// AssignProxy binds a specific proxy to a profile.
func (s *Service) AssignProxy(ctx context.Context, profileID uuid.UUID, proxyID string) error {
	return s.assignments.Assign(ctx, profileID, proxyID)
}

// AssignRandomProxy binds a random available proxy to the profile. Without
// force, an existing binding is kept and returned as-is; with force, the
// profile is rebound to a different proxy (the old binding survives a pool
// exhaustion).
func (s *Service) AssignRandomProxy(ctx context.Context, profileID uuid.UUID, force bool) (*domain.ProxyEndpoint, error) {
	if !force {
		endpoint, err := s.assignments.GetAssigned(ctx, profileID)
		if err != nil {
			return nil, err
		}
		if endpoint != nil {
			return endpoint, nil
		}
	}

	proxy, err := s.assignments.AssignRandom(ctx, profileID)
	if err != nil {
		return nil, err
	}
	return &domain.ProxyEndpoint{ID: proxy.ID, Host: proxy.Host, Port: proxy.Port, Label: proxy.Label}, nil
}

// ReleaseProxy removes the profile's proxy binding.
func (s *Service) ReleaseProxy(ctx context.Context, profileID uuid.UUID) error {
	return s.assignments.Release(ctx, profileID)
}

// GetAssignedProxy returns the profile's bound proxy, or nil when unbound.
func (s *Service) GetAssignedProxy(ctx context.Context, profileID uuid.UUID) (*domain.ProxyEndpoint, error) {
	return s.assignments.GetAssigned(ctx, profileID)
}

// ListAssignments returns the full proxy ledger.
func (s *Service) ListAssignments(ctx context.Context) ([]*domain.Assignment, error) {
	return s.assignments.ListAssignments(ctx)
}

// ImportProxies ingests a vendor catalog batch, upserting by proxy id.
func (s *Service) ImportProxies(ctx context.Context, records []domain.Proxy) error {
	return s.proxies.UpsertMany(ctx, records)
}

// ListProxies returns the catalog filtered by the given criteria.
func (s *Service) ListProxies(ctx context.Context, filter domain.ProxyFilter) ([]*domain.Proxy, error) {
	return s.proxies.List(ctx, filter)
}

// ProxyCounts summarizes pool size and availability.
func (s *Service) ProxyCounts(ctx context.Context) (domain.ProxyCounts, error) {
	return s.proxies.Counts(ctx)
}

// CreateProfile creates a profile with a fresh id and a storage directory
// derived from it. The directory itself is created lazily by the worker's
// first run.
func (s *Service) CreateProfile(ctx context.Context, name string) (*domain.Profile, error) {
	id := uuid.New()
	storageDir := filepath.Join(s.opts.ProfilesDir, id.String())
	return s.profiles.Create(ctx, id, name, storageDir)
}

// GetProfile retrieves a profile by id.
func (s *Service) GetProfile(ctx context.Context, profileID uuid.UUID) (*domain.Profile, error) {
	return s.profiles.GetByID(ctx, profileID)
}

// ListProfiles returns all profiles.
func (s *Service) ListProfiles(ctx context.Context) ([]*domain.Profile, error) {
	return s.profiles.List(ctx)
}

// DeleteProfile stops any running worker, then deletes the profile. The
// proxy binding is removed by the storage layer's cascade.
func (s *Service) DeleteProfile(ctx context.Context, profileID uuid.UUID) error {
	if _, err := s.registry.Stop(profileID); err != nil {
		return err
	}
	return s.profiles.Delete(ctx, profileID)
}
