package service

import (
	"fmt"
	"strings"

	"carpool/internal/domain"
)

// IsCompatible reports whether a passenger may ride with a driver.
func IsCompatible(passengerGrouping domain.TravelGrouping, passengerGender domain.Gender,
	driverGrouping domain.TravelGrouping, driverGender domain.Gender) bool {
	return IncompatibilityReason(passengerGrouping, passengerGender, driverGrouping, driverGender) == ""
}

// IncompatibilityReason returns a user-facing reason why the pair is not
// compatible, or "" when it is. Rules apply in order: a couple on either side
// is always compatible; two solo travellers need the same declared gender;
// anything else is incompatible.
func IncompatibilityReason(passengerGrouping domain.TravelGrouping, passengerGender domain.Gender,
	driverGrouping domain.TravelGrouping, driverGender domain.Gender) string {
	if passengerGrouping == domain.GroupingCouple || driverGrouping == domain.GroupingCouple {
		return ""
	}

	if passengerGrouping != domain.GroupingSolo || driverGrouping != domain.GroupingSolo {
		return "travel grouping not recognised"
	}

	if passengerGender == domain.GenderUnset || driverGender == domain.GenderUnset {
		return "gender is required for solo rides"
	}

	if passengerGender == driverGender {
		return ""
	}

	return fmt.Sprintf("not available for solo %s passengers", strings.ToLower(string(passengerGender)))
}

// CheckEligibility applies the rules to two profiles and returns a
// *CompatibilityError when they may not share a ride.
func CheckEligibility(passenger, driver *domain.Profile) error {
	reason := IncompatibilityReason(passenger.TravelGrouping, passenger.Gender, driver.TravelGrouping, driver.Gender)
	if reason != "" {
		return &CompatibilityError{Reason: reason}
	}
	return nil
}
