package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MaxProxyListLimit caps the List page size regardless of what callers ask for.
const MaxProxyListLimit = 500

// Proxy is one endpoint from the vendor catalog. Identity is immutable;
// content may be refreshed by re-ingestion (upsert by id).
type Proxy struct {
	ID          string
	Host        string
	Port        int
	Label       string
	CountryCode string
	CityName    string
	Source      string
}

// ProxyEndpoint is the connection data a bound profile launches with.
type ProxyEndpoint struct {
	ID    string
	Host  string
	Port  int
	Label string
}

// ProxyCounts summarizes the pool. Available = total minus currently assigned.
type ProxyCounts struct {
	Total     int
	Available int
}

// ProxyFilter restricts List results. Search matches host, label and port.
// Limit is clamped to MaxProxyListLimit; zero or negative means the maximum.
type ProxyFilter struct {
	AvailableOnly bool
	Search        string
	Limit         int
}

// Assignment is the exclusive binding of one proxy to one profile. Both sides
// of the relation are unique: no profile holds two proxies, no proxy serves
// two profiles.
type Assignment struct {
	ProfileID  uuid.UUID
	ProxyID    string
	AssignedAt time.Time
}

// ProxyRepository is the persistent catalog of proxy endpoints. Absence of
// proxies is a normal operating state: List and Counts never fail on an
// empty pool.
type ProxyRepository interface {
	UpsertMany(ctx context.Context, records []Proxy) error
	List(ctx context.Context, filter ProxyFilter) ([]*Proxy, error)
	// PickRandomAvailable returns one uniformly selected unassigned proxy, or
	// ErrPoolExhausted when none remain.
	PickRandomAvailable(ctx context.Context) (*Proxy, error)
	Counts(ctx context.Context) (ProxyCounts, error)
}

// AssignmentRepository enforces the 1:1 profile/proxy relation. All mutations
// run inside a single storage transaction so that concurrent claims of the
// same proxy resolve to exactly one winner.
type AssignmentRepository interface {
	// Assign binds proxyID to profileID, replacing any prior binding of the
	// profile. Returns ErrProxyInUse when the proxy is held by a different
	// profile, ErrProfileNotFound / ErrProxyNotFound for dangling ids.
	Assign(ctx context.Context, profileID uuid.UUID, proxyID string) error
	// AssignRandom rebinds profileID to a random available proxy, excluding
	// the one it currently holds. Returns ErrPoolExhausted when no candidate
	// exists; the prior binding survives in that case.
	AssignRandom(ctx context.Context, profileID uuid.UUID) (*Proxy, error)
	// Release removes the profile's binding. Releasing an unbound profile is
	// a no-op, not an error.
	Release(ctx context.Context, profileID uuid.UUID) error
	// GetAssigned returns the bound proxy's connection data, or (nil, nil)
	// when the profile holds no proxy.
	GetAssigned(ctx context.Context, profileID uuid.UUID) (*ProxyEndpoint, error)
	// ListAssignments returns the whole ledger, oldest binding first.
	ListAssignments(ctx context.Context) ([]*Assignment, error)
}
