package database

import (
	"context"
	"testing"

	"github.com/robgallardof/multig/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertMany_Idempotent(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewProxyRepo(pool)
	ctx := context.Background()

	records := SeedTestProxies(t, pool, 3)

	// Re-ingest with changed content for one record
	records[1].Host = "10.9.9.9"
	records[1].Label = "relocated"
	require.NoError(t, repo.UpsertMany(ctx, records))

	counts, err := repo.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Total)

	proxies, err := repo.List(ctx, domain.ProxyFilter{Search: "10.9.9.9"})
	require.NoError(t, err)
	require.Len(t, proxies, 1)
	assert.Equal(t, "proxy-1", proxies[0].ID)
	assert.Equal(t, "relocated", proxies[0].Label)
}

func TestUpsertMany_DoesNotAlterAssignments(t *testing.T) {
	pool := setupTestDB(t)
	proxyRepo := NewProxyRepo(pool)
	assignRepo := NewAssignmentRepo(pool)
	ctx := context.Background()

	records := SeedTestProxies(t, pool, 2)
	profile := CreateTestProfile(t, pool, "alpha")
	require.NoError(t, assignRepo.Assign(ctx, profile.ID, records[0].ID))

	require.NoError(t, proxyRepo.UpsertMany(ctx, records))

	ep, err := assignRepo.GetAssigned(ctx, profile.ID)
	require.NoError(t, err)
	require.NotNil(t, ep)
	assert.Equal(t, records[0].ID, ep.ID)
}

func TestList_AvailableOnly(t *testing.T) {
	pool := setupTestDB(t)
	proxyRepo := NewProxyRepo(pool)
	assignRepo := NewAssignmentRepo(pool)
	ctx := context.Background()

	records := SeedTestProxies(t, pool, 3)
	profile := CreateTestProfile(t, pool, "alpha")
	require.NoError(t, assignRepo.Assign(ctx, profile.ID, records[0].ID))

	available, err := proxyRepo.List(ctx, domain.ProxyFilter{AvailableOnly: true})
	require.NoError(t, err)
	assert.Len(t, available, 2)
	for _, p := range available {
		assert.NotEqual(t, records[0].ID, p.ID)
	}
}

func TestList_SearchAndLimit(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewProxyRepo(pool)
	ctx := context.Background()

	SeedTestProxies(t, pool, 10)

	byLabel, err := repo.List(ctx, domain.ProxyFilter{Search: "dc-4"})
	require.NoError(t, err)
	require.Len(t, byLabel, 1)
	assert.Equal(t, "proxy-4", byLabel[0].ID)

	byPort, err := repo.List(ctx, domain.ProxyFilter{Search: "8007"})
	require.NoError(t, err)
	require.Len(t, byPort, 1)
	assert.Equal(t, "proxy-7", byPort[0].ID)

	limited, err := repo.List(ctx, domain.ProxyFilter{Limit: 4})
	require.NoError(t, err)
	assert.Len(t, limited, 4)
}

func TestList_EmptyPoolIsNotAnError(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewProxyRepo(pool)

	proxies, err := repo.List(context.Background(), domain.ProxyFilter{})
	require.NoError(t, err)
	assert.Empty(t, proxies)
}

func TestPickRandomAvailable_Exhausted(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewProxyRepo(pool)

	_, err := repo.PickRandomAvailable(context.Background())
	assert.ErrorIs(t, err, domain.ErrPoolExhausted)
}

func TestPickRandomAvailable_SkipsAssigned(t *testing.T) {
	pool := setupTestDB(t)
	proxyRepo := NewProxyRepo(pool)
	assignRepo := NewAssignmentRepo(pool)
	ctx := context.Background()

	records := SeedTestProxies(t, pool, 2)
	profile := CreateTestProfile(t, pool, "alpha")
	require.NoError(t, assignRepo.Assign(ctx, profile.ID, records[0].ID))

	// Only proxy-1 remains available; random pick must always return it.
	for i := 0; i < 5; i++ {
		p, err := proxyRepo.PickRandomAvailable(ctx)
		require.NoError(t, err)
		assert.Equal(t, records[1].ID, p.ID)
	}
}

func TestCounts(t *testing.T) {
	pool := setupTestDB(t)
	proxyRepo := NewProxyRepo(pool)
	assignRepo := NewAssignmentRepo(pool)
	ctx := context.Background()

	records := SeedTestProxies(t, pool, 3)
	profile := CreateTestProfile(t, pool, "alpha")
	require.NoError(t, assignRepo.Assign(ctx, profile.ID, records[2].ID))

	counts, err := proxyRepo.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ProxyCounts{Total: 3, Available: 2}, counts)
}
