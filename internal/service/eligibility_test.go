package service

import (
	"errors"
	"testing"

	"carpool/internal/domain"
)

func TestIncompatibilityReason(t *testing.T) {
	testCases := []struct {
		name              string
		passengerGrouping domain.TravelGrouping
		passengerGender   domain.Gender
		driverGrouping    domain.TravelGrouping
		driverGender      domain.Gender
		want              string
	}{
		{"solo male with solo female driver", domain.GroupingSolo, domain.GenderMale, domain.GroupingSolo, domain.GenderFemale, "not available for solo male passengers"},
		{"solo female with solo male driver", domain.GroupingSolo, domain.GenderFemale, domain.GroupingSolo, domain.GenderMale, "not available for solo female passengers"},
		{"solo female with solo female driver", domain.GroupingSolo, domain.GenderFemale, domain.GroupingSolo, domain.GenderFemale, ""},
		{"solo male with solo male driver", domain.GroupingSolo, domain.GenderMale, domain.GroupingSolo, domain.GenderMale, ""},
		{"couple passenger with solo female driver", domain.GroupingCouple, domain.GenderMale, domain.GroupingSolo, domain.GenderFemale, ""},
		{"solo male with couple driver", domain.GroupingSolo, domain.GenderMale, domain.GroupingCouple, domain.GenderFemale, ""},
		{"couple without gender", domain.GroupingCouple, domain.GenderUnset, domain.GroupingSolo, domain.GenderUnset, ""},
		{"solo without gender", domain.GroupingSolo, domain.GenderUnset, domain.GroupingSolo, domain.GenderFemale, "gender is required for solo rides"},
		{"unknown grouping", "group", domain.GenderMale, domain.GroupingSolo, domain.GenderMale, "travel grouping not recognised"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := IncompatibilityReason(tc.passengerGrouping, tc.passengerGender, tc.driverGrouping, tc.driverGender)
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
			if IsCompatible(tc.passengerGrouping, tc.passengerGender, tc.driverGrouping, tc.driverGender) != (tc.want == "") {
				t.Error("IsCompatible disagrees with the reason")
			}
		})
	}
}

func TestCheckEligibility(t *testing.T) {
	passenger := &domain.Profile{ID: "p", Gender: domain.GenderMale, TravelGrouping: domain.GroupingSolo}
	driver := &domain.Profile{ID: "d", Gender: domain.GenderFemale, TravelGrouping: domain.GroupingSolo}

	err := CheckEligibility(passenger, driver)
	if !errors.Is(err, ErrCompatibility) {
		t.Fatalf("expected ErrCompatibility, got %v", err)
	}
	if err.Error() != "not available for solo male passengers" {
		t.Errorf("unexpected message %q", err.Error())
	}

	passenger.TravelGrouping = domain.GroupingCouple
	if err := CheckEligibility(passenger, driver); err != nil {
		t.Errorf("expected compatible, got %v", err)
	}
}
