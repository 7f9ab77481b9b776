package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robgallardof/multig/internal/domain"
)

// profileColumns must match the Scan order in scanProfile.
const profileColumns = `id, name, storage_dir, prepared_at, created_at, updated_at`

// ProfileRepo implements domain.ProfileRepository backed by PostgreSQL.
type ProfileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(&p.ID, &p.Name, &p.StorageDir, &p.PreparedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProfileRepo) Create(ctx context.Context, id uuid.UUID, name, storageDir string) (*domain.Profile, error) {
	profile, err := scanProfile(r.pool.QueryRow(ctx, `
		INSERT INTO profiles (id, name, storage_dir)
		VALUES ($1, $2, $3)
		RETURNING `+profileColumns,
		id, name, storageDir))
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return profile, nil
}

func (r *ProfileRepo) GetByID(ctx context.Context, profileID uuid.UUID) (*domain.Profile, error) {
	profile, err := scanProfile(r.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, profileID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

func (r *ProfileRepo) List(ctx context.Context) ([]*domain.Profile, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+profileColumns+` FROM profiles ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// Delete removes the profile. Its assignment row is removed by the
// ON DELETE CASCADE constraint in the same statement.
func (r *ProfileRepo) Delete(ctx context.Context, profileID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, profileID)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

func (r *ProfileRepo) MarkPrepared(ctx context.Context, profileID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE profiles SET prepared_at = now(), updated_at = now()
		WHERE id = $1`, profileID)
	if err != nil {
		return fmt.Errorf("failed to mark profile prepared: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}
