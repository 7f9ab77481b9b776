package database

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robgallardof/multig/internal/domain"
	"github.com/stretchr/testify/require"
)

// CreateTestProfile is a helper that creates a profile with default values.
func CreateTestProfile(t *testing.T, pool *pgxpool.Pool, name string) *domain.Profile {
	t.Helper()

	repo := NewProfileRepo(pool)
	id := uuid.New()

	profile, err := repo.Create(context.Background(), id, name, "/tmp/multig-test/"+id.String())
	require.NoError(t, err)
	require.Equal(t, id, profile.ID)

	return profile
}

// SeedTestProxies upserts n proxies with deterministic ids proxy-0..proxy-n-1.
func SeedTestProxies(t *testing.T, pool *pgxpool.Pool, n int) []domain.Proxy {
	t.Helper()

	records := make([]domain.Proxy, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, domain.Proxy{
			ID:          fmt.Sprintf("proxy-%d", i),
			Host:        fmt.Sprintf("10.0.0.%d", i+1),
			Port:        8000 + i,
			Label:       fmt.Sprintf("dc-%d", i),
			CountryCode: "DE",
			CityName:    "Berlin",
			Source:      "vendor-test",
		})
	}

	repo := NewProxyRepo(pool)
	require.NoError(t, repo.UpsertMany(context.Background(), records))

	return records
}
