package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robgallardof/multig/internal/domain"
)

// proxyColumns must match the Scan order in scanProxy.
const proxyColumns = `id, host, port, label, country_code, city_name, source`

// ProxyRepo implements domain.ProxyRepository backed by PostgreSQL.
type ProxyRepo struct {
	pool *pgxpool.Pool
}

func NewProxyRepo(pool *pgxpool.Pool) *ProxyRepo {
	return &ProxyRepo{pool: pool}
}

func scanProxy(row pgx.Row) (*domain.Proxy, error) {
	var p domain.Proxy
	err := row.Scan(&p.ID, &p.Host, &p.Port, &p.Label, &p.CountryCode, &p.CityName, &p.Source)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertMany refreshes the catalog by proxy id inside one transaction.
// Existing assignments are untouched: only proxy content changes.
func (r *ProxyRepo) UpsertMany(ctx context.Context, records []domain.Proxy) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, rec := range records {
		_, err := tx.Exec(ctx, `
			INSERT INTO proxies (id, host, port, label, country_code, city_name, source, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			ON CONFLICT (id) DO UPDATE SET
				host = EXCLUDED.host,
				port = EXCLUDED.port,
				label = EXCLUDED.label,
				country_code = EXCLUDED.country_code,
				city_name = EXCLUDED.city_name,
				source = EXCLUDED.source,
				updated_at = now()
		`, rec.ID, rec.Host, rec.Port, rec.Label, rec.CountryCode, rec.CityName, rec.Source)
		if err != nil {
			return fmt.Errorf("failed to upsert proxy %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *ProxyRepo) List(ctx context.Context, filter domain.ProxyFilter) ([]*domain.Proxy, error) {
	limit := filter.Limit
	if limit < 1 || limit > domain.MaxProxyListLimit {
		limit = domain.MaxProxyListLimit
	}

	query := `SELECT ` + proxyColumns + ` FROM proxies p`
	var args []any

	if filter.AvailableOnly {
		query += ` WHERE NOT EXISTS (SELECT 1 FROM assignments a WHERE a.proxy_id = p.id)`
	} else {
		query += ` WHERE TRUE`
	}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := strconv.Itoa(len(args))
		query += ` AND (p.host ILIKE $` + n + ` OR p.label ILIKE $` + n + ` OR p.port::text ILIKE $` + n + `)`
	}

	args = append(args, limit)
	query += ` ORDER BY p.host, p.port LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list proxies: %w", err)
	}
	defer rows.Close()

	var proxies []*domain.Proxy
	for rows.Next() {
		p, err := scanProxy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proxy: %w", err)
		}
		proxies = append(proxies, p)
	}
	return proxies, rows.Err()
}

// PickRandomAvailable selects uniformly among unassigned proxies. ORDER BY
// random() keeps the choice independent of insertion order.
func (r *ProxyRepo) PickRandomAvailable(ctx context.Context) (*domain.Proxy, error) {
	proxy, err := scanProxy(r.pool.QueryRow(ctx, `
		SELECT `+proxyColumns+` FROM proxies p
		WHERE NOT EXISTS (SELECT 1 FROM assignments a WHERE a.proxy_id = p.id)
		ORDER BY random()
		LIMIT 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPoolExhausted
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pick random proxy: %w", err)
	}
	return proxy, nil
}

func (r *ProxyRepo) Counts(ctx context.Context) (domain.ProxyCounts, error) {
	var counts domain.ProxyCounts
	err := r.pool.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE a.proxy_id IS NULL)
		FROM proxies p
		LEFT JOIN assignments a ON a.proxy_id = p.id`).
		Scan(&counts.Total, &counts.Available)
	if err != nil {
		return domain.ProxyCounts{}, fmt.Errorf("failed to count proxies: %w", err)
	}
	return counts, nil
}
