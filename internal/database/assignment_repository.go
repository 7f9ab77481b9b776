package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robgallardof/multig/internal/domain"
)

const uniqueViolation = "23505"

// AssignmentRepo implements domain.AssignmentRepository backed by PostgreSQL.
// The uniqueness invariants live in the schema (primary key on profile_id,
// unique constraint on proxy_id); every mutation runs inside one transaction
// so concurrent claims of the same proxy resolve to exactly one winner.
type AssignmentRepo struct {
	pool *pgxpool.Pool
}

func NewAssignmentRepo(pool *pgxpool.Pool) *AssignmentRepo {
	return &AssignmentRepo{pool: pool}
}

func profileExists(ctx context.Context, tx pgx.Tx, profileID uuid.UUID) error {
	var one int
	err := tx.QueryRow(ctx, `SELECT 1 FROM profiles WHERE id = $1`, profileID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrProfileNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check profile: %w", err)
	}
	return nil
}

func (r *AssignmentRepo) Assign(ctx context.Context, profileID uuid.UUID, proxyID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := profileExists(ctx, tx, profileID); err != nil {
		return err
	}

	var one int
	err = tx.QueryRow(ctx, `SELECT 1 FROM proxies WHERE id = $1`, proxyID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrProxyNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check proxy: %w", err)
	}

	// Supersede any prior binding of this profile, then claim the proxy. The
	// unique constraint on proxy_id is the conflict check: it fires inside
	// this transaction, so a concurrent claim of the same proxy cannot win
	// alongside us.
	if _, err := tx.Exec(ctx, `DELETE FROM assignments WHERE profile_id = $1`, profileID); err != nil {
		return fmt.Errorf("failed to remove prior assignment: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO assignments (profile_id, proxy_id) VALUES ($1, $2)`,
		profileID, proxyID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrProxyInUse
		}
		return fmt.Errorf("failed to insert assignment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// AssignRandom rebinds the profile to a random available proxy, never the one
// it currently holds. On exhaustion the transaction rolls back, so a prior
// binding survives a failed forced reassignment.
func (r *AssignmentRepo) AssignRandom(ctx context.Context, profileID uuid.UUID) (*domain.Proxy, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := profileExists(ctx, tx, profileID); err != nil {
		return nil, err
	}

	var previousProxyID string
	err = tx.QueryRow(ctx, `
		DELETE FROM assignments WHERE profile_id = $1 RETURNING proxy_id`,
		profileID).Scan(&previousProxyID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to remove prior assignment: %w", err)
	}

	var proxyID string
	err = tx.QueryRow(ctx, `
		INSERT INTO assignments (profile_id, proxy_id)
		SELECT $1, p.id FROM proxies p
		WHERE p.id <> $2
		  AND NOT EXISTS (SELECT 1 FROM assignments a WHERE a.proxy_id = p.id)
		ORDER BY random()
		LIMIT 1
		RETURNING proxy_id`,
		profileID, previousProxyID).Scan(&proxyID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPoolExhausted
	}
	if err != nil {
		// A concurrent claim of the same candidate loses on the unique
		// constraint; surface it as the conflict so callers can retry.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrProxyInUse
		}
		return nil, fmt.Errorf("failed to assign random proxy: %w", err)
	}

	proxy, err := scanProxy(tx.QueryRow(ctx,
		`SELECT `+proxyColumns+` FROM proxies WHERE id = $1`, proxyID))
	if err != nil {
		return nil, fmt.Errorf("failed to load assigned proxy: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return proxy, nil
}

func (r *AssignmentRepo) Release(ctx context.Context, profileID uuid.UUID) error {
	// Releasing an unbound profile is a no-op, so rows affected is ignored.
	_, err := r.pool.Exec(ctx, `DELETE FROM assignments WHERE profile_id = $1`, profileID)
	if err != nil {
		return fmt.Errorf("failed to release assignment: %w", err)
	}
	return nil
}

func (r *AssignmentRepo) ListAssignments(ctx context.Context) ([]*domain.Assignment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT profile_id, proxy_id, assigned_at
		FROM assignments
		ORDER BY assigned_at, profile_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*domain.Assignment
	for rows.Next() {
		var a domain.Assignment
		if err := rows.Scan(&a.ProfileID, &a.ProxyID, &a.AssignedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, &a)
	}
	return assignments, rows.Err()
}

func (r *AssignmentRepo) GetAssigned(ctx context.Context, profileID uuid.UUID) (*domain.ProxyEndpoint, error) {
	var ep domain.ProxyEndpoint
	err := r.pool.QueryRow(ctx, `
		SELECT p.id, p.host, p.port, p.label
		FROM assignments a
		JOIN proxies p ON p.id = a.proxy_id
		WHERE a.profile_id = $1`,
		profileID).Scan(&ep.ID, &ep.Host, &ep.Port, &ep.Label)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return &ep, nil
}
