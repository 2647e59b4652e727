package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// DriverService manages driver approval and admin rights.
type DriverService struct {
	profileRepo repository.ProfileRepository
	logger      *logrus.Logger
}

// NewDriverService creates a new DriverService.
func NewDriverService(profileRepo repository.ProfileRepository, logger *logrus.Logger) *DriverService {
	return &DriverService{profileRepo: profileRepo, logger: logger}
}

// DriverApprovalRequest contains the parameters for an approval decision.
type DriverApprovalRequest struct {
	AdminID  string
	DriverID string
	Decision domain.ApprovalDecision
}

// DecideApproval approves or rejects a profile as a driver. Rejecting an
// approved driver stops new rides; published rides and their bookings stay.
func (s *DriverService) DecideApproval(ctx context.Context, req DriverApprovalRequest) (*domain.Profile, error) {
	if err := requireAdmin(ctx, s.profileRepo, req.AdminID); err != nil {
		return nil, err
	}
	if req.DriverID == "" {
		return nil, validationError("driver_id is required")
	}
	if !req.Decision.Valid() {
		return nil, validationError("decision must be approve or reject")
	}

	approved := req.Decision == domain.ApprovalApprove
	if err := s.profileRepo.SetApprovedDriver(ctx, req.DriverID, approved); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"admin_id":  req.AdminID,
		"driver_id": req.DriverID,
		"decision":  req.Decision,
	}).Info("driver approval decided")

	return s.profileRepo.GetByID(ctx, req.DriverID)
}

// PromoteAdmins grants admin rights to the listed profiles. Unknown ids are
// skipped with a warning so a stale list does not block startup.
func (s *DriverService) PromoteAdmins(ctx context.Context, ids []string) error {
	for _, id := range ids {
		err := s.profileRepo.SetAdmin(ctx, id, true)
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.WithField("profile_id", id).Warn("admin profile not found")
			continue
		}
		if err != nil {
			return err
		}
		s.logger.WithField("profile_id", id).Info("admin rights granted")
	}
	return nil
}
