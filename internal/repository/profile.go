package repository

import (
	"context"

	"carpool/internal/domain"
)

// ProfileRepository defines the persistence operations for profiles.
type ProfileRepository interface {
	// Create persists a new profile.
	Create(ctx context.Context, profile *domain.Profile) error

	// GetByID retrieves a profile by ID.
	GetByID(ctx context.Context, id string) (*domain.Profile, error)

	// GetAll retrieves all profiles.
	GetAll(ctx context.Context) ([]*domain.Profile, error)

	// SetApprovedDriver sets whether the profile may publish rides.
	// Returns ErrNotFound for an unknown profile.
	SetApprovedDriver(ctx context.Context, id string, approved bool) error

	// SetAdmin sets the admin flag. Returns ErrNotFound for an unknown profile.
	SetAdmin(ctx context.Context, id string, admin bool) error
}
