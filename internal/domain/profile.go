package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Profile is a named, persistent browser-automation session identity with its
// own storage directory. PreparedAt is the durable preparation marker: nil
// means the one-time first-run setup has not completed yet.
type Profile struct {
	ID         uuid.UUID
	Name       string
	StorageDir string
	PreparedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NeedsPreparation reports whether the profile must run the prepare pass
// before its next launch. The force override re-prepares even marked profiles.
// This is checked before every launch, not only at creation: profiles created
// by bulk import have no marker yet.
func (p *Profile) NeedsPreparation(force bool) bool {
	return force || p.PreparedAt == nil
}

// ProfileRepository persists profiles and their preparation state.
type ProfileRepository interface {
	Create(ctx context.Context, id uuid.UUID, name, storageDir string) (*Profile, error)
	GetByID(ctx context.Context, profileID uuid.UUID) (*Profile, error)
	List(ctx context.Context) ([]*Profile, error)
	Delete(ctx context.Context, profileID uuid.UUID) error
	// MarkPrepared records a successful preparation run. The marker is never
	// cleared by this subsystem.
	MarkPrepared(ctx context.Context, profileID uuid.UUID) error
}
