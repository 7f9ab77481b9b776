package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/robgallardof/multig/internal/domain"
)

func (s *Server) handleHealthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()

	for _, hc := range s.healthChecks {
		if err := hc.Check(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":       "unhealthy",
				"failed_check": hc.Name,
				"error":        err.Error(),
			})
		}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Seconds(),
	})
}

// --- Profiles ---

type createProfileRequest struct {
	Name string `json:"name"`
}

type profileResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	StorageDir string     `json:"storage_dir"`
	PreparedAt *time.Time `json:"prepared_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toProfileResponse(p *domain.Profile) profileResponse {
	return profileResponse{
		ID:         p.ID.String(),
		Name:       p.Name,
		StorageDir: p.StorageDir,
		PreparedAt: p.PreparedAt,
		CreatedAt:  p.CreatedAt,
	}
}

func (s *Server) handleCreateProfile(c echo.Context) error {
	var req createProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	profile, err := s.app.CreateProfile(c.Request().Context(), req.Name)
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusCreated, toProfileResponse(profile))
}

func (s *Server) handleListProfiles(c echo.Context) error {
	profiles, err := s.app.ListProfiles(c.Request().Context())
	if err != nil {
		return mapDomainError(err)
	}

	out := make([]profileResponse, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, toProfileResponse(p))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetProfile(c echo.Context) error {
	profileID, err := parseProfileID(c)
	if err != nil {
		return err
	}

	profile, err := s.app.GetProfile(c.Request().Context(), profileID)
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, toProfileResponse(profile))
}

func (s *Server) handleDeleteProfile(c echo.Context) error {
	profileID, err := parseProfileID(c)
	if err != nil {
		return err
	}

	if err := s.app.DeleteProfile(c.Request().Context(), profileID); err != nil {
		return mapDomainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// --- Sessions ---

type openSessionRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleOpenSession(c echo.Context) error {
	profileID, err := parseProfileID(c)
	if err != nil {
		return err
	}

	var req openSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.URL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url is required")
	}

	if err := s.app.OpenSession(c.Request().Context(), profileID, req.URL); err != nil {
		return mapDomainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleCloseSession(c echo.Context) error {
	profileID, err := parseProfileID(c)
	if err != nil {
		return err
	}

	if err := s.app.CloseSession(c.Request().Context(), profileID); err != nil {
		return mapDomainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleActiveSessions(c echo.Context) error {
	active, err := s.app.ActiveProfiles()
	if err != nil {
		return mapDomainError(err)
	}

	ids := make([]string, 0, len(active))
	for _, id := range active {
		ids = append(ids, id.String())
	}
	return c.JSON(http.StatusOK, map[string]any{"profile_ids": ids})
}

// --- Proxy bindings ---

type assignProxyRequest struct {
	ProxyID string `json:"proxy_id"`
}

type proxyEndpointResponse struct {
	ID    string `json:"id"`
	Host  string `json:"host"`
	Port  int    `json:"port"`
	Label string `json:"label,omitempty"`
}

func (s *Server) handleAssignProxy(c echo.Context) error {
	profileID, err := parseProfileID(c)
	if err != nil {
		return err
	}

	var req assignProxyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ProxyID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "proxy_id is required")
	}

	if err := s.app.AssignProxy(c.Request().Context(), profileID, req.ProxyID); err != nil {
		return mapDomainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleAssignRandomProxy(c echo.Context) error {
	profileID, err := parseProfileID(c)
	if err != nil {
		return err
	}
	force, _ := strconv.ParseBool(c.QueryParam("force"))

	endpoint, err := s.app.AssignRandomProxy(c.Request().Context(), profileID, force)
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, proxyEndpointResponse{
		ID: endpoint.ID, Host: endpoint.Host, Port: endpoint.Port, Label: endpoint.Label,
	})
}

func (s *Server) handleReleaseProxy(c echo.Context) error {
	profileID, err := parseProfileID(c)
	if err != nil {
		return err
	}

	if err := s.app.ReleaseProxy(c.Request().Context(), profileID); err != nil {
		return mapDomainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleGetAssignedProxy(c echo.Context) error {
	profileID, err := parseProfileID(c)
	if err != nil {
		return err
	}

	endpoint, err := s.app.GetAssignedProxy(c.Request().Context(), profileID)
	if err != nil {
		return mapDomainError(err)
	}
	if endpoint == nil {
		return echo.NewHTTPError(http.StatusNotFound, "profile has no proxy assigned")
	}
	return c.JSON(http.StatusOK, proxyEndpointResponse{
		ID: endpoint.ID, Host: endpoint.Host, Port: endpoint.Port, Label: endpoint.Label,
	})
}

type assignmentResponse struct {
	ProfileID  string    `json:"profile_id"`
	ProxyID    string    `json:"proxy_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

func (s *Server) handleListAssignments(c echo.Context) error {
	assignments, err := s.app.ListAssignments(c.Request().Context())
	if err != nil {
		return mapDomainError(err)
	}

	out := make([]assignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, assignmentResponse{
			ProfileID:  a.ProfileID.String(),
			ProxyID:    a.ProxyID,
			AssignedAt: a.AssignedAt,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// --- Proxy catalog ---

type proxyRecord struct {
	ID          string `json:"id"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Label       string `json:"label"`
	CountryCode string `json:"country_code"`
	CityName    string `json:"city_name"`
	Source      string `json:"source"`
}

func (s *Server) handleImportProxies(c echo.Context) error {
	var records []proxyRecord
	if err := c.Bind(&records); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	proxies := make([]domain.Proxy, 0, len(records))
	for _, r := range records {
		if r.ID == "" || r.Host == "" || r.Port == 0 {
			return echo.NewHTTPError(http.StatusBadRequest,
				fmt.Sprintf("proxy record %q missing id, host or port", r.ID))
		}
		proxies = append(proxies, domain.Proxy{
			ID:          r.ID,
			Host:        r.Host,
			Port:        r.Port,
			Label:       r.Label,
			CountryCode: r.CountryCode,
			CityName:    r.CityName,
			Source:      r.Source,
		})
	}

	if err := s.app.ImportProxies(c.Request().Context(), proxies); err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"imported": len(proxies)})
}

func (s *Server) handleListProxies(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	availableOnly, _ := strconv.ParseBool(c.QueryParam("available"))

	filter := domain.ProxyFilter{
		AvailableOnly: availableOnly,
		Search:        c.QueryParam("search"),
		Limit:         limit,
	}

	proxies, err := s.app.ListProxies(c.Request().Context(), filter)
	if err != nil {
		return mapDomainError(err)
	}

	out := make([]proxyRecord, 0, len(proxies))
	for _, p := range proxies {
		out = append(out, proxyRecord{
			ID:          p.ID,
			Host:        p.Host,
			Port:        p.Port,
			Label:       p.Label,
			CountryCode: p.CountryCode,
			CityName:    p.CityName,
			Source:      p.Source,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleProxyCounts(c echo.Context) error {
	counts, err := s.app.ProxyCounts(c.Request().Context())
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{
		"total":     counts.Total,
		"available": counts.Available,
	})
}

// --- Helpers ---

func parseProfileID(c echo.Context) (uuid.UUID, error) {
	profileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid profile id")
	}
	return profileID, nil
}

func mapDomainError(err error) error {
	switch {
	case errors.Is(err, domain.ErrProfileNotFound), errors.Is(err, domain.ErrProxyNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrProxyInUse):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrPoolExhausted):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrLaunchFailed):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
