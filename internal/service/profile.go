package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// ProfileService handles profile registration and lookup.
type ProfileService struct {
	profileRepo repository.ProfileRepository
}

// NewProfileService creates a new ProfileService.
func NewProfileService(profileRepo repository.ProfileRepository) *ProfileService {
	return &ProfileService{profileRepo: profileRepo}
}

// RegisterProfileRequest contains the parameters for creating a profile.
type RegisterProfileRequest struct {
	Name           string
	Gender         domain.Gender
	TravelGrouping domain.TravelGrouping
}

// Register creates a new profile. Profiles start neither approved to drive
// nor admin; see DriverService.
func (s *ProfileService) Register(ctx context.Context, req RegisterProfileRequest) (*domain.Profile, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, validationError("name is required")
	}
	if !req.Gender.Valid() {
		return nil, validationError("gender must be Male or Female")
	}
	if req.TravelGrouping == "" {
		req.TravelGrouping = domain.GroupingSolo
	}
	if !req.TravelGrouping.Valid() {
		return nil, validationError("travel_grouping must be solo or couple")
	}

	profile := &domain.Profile{
		ID:             uuid.New().String(),
		Name:           name,
		Gender:         req.Gender,
		TravelGrouping: req.TravelGrouping,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.profileRepo.Create(ctx, profile); err != nil {
		return nil, err
	}

	return profile, nil
}

// Get retrieves a profile by ID.
func (s *ProfileService) Get(ctx context.Context, id string) (*domain.Profile, error) {
	return s.profileRepo.GetByID(ctx, id)
}

// requireAdmin returns ErrUnauthorizedAction unless callerID is an admin profile.
func requireAdmin(ctx context.Context, profileRepo repository.ProfileRepository, callerID string) error {
	if callerID == "" {
		return ErrUnauthorizedAction
	}

	profile, err := profileRepo.GetByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnauthorizedAction
		}
		return err
	}

	if !profile.Admin {
		return ErrUnauthorizedAction
	}
	return nil
}
