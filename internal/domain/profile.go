package domain

import "time"

// Gender is the self-declared gender used by the eligibility rules.
// GenderUnset means the profile has not declared one.
type Gender string

const (
	GenderUnset  Gender = ""
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

// TravelGrouping tells whether a person travels alone or as a couple.
type TravelGrouping string

const (
	GroupingSolo   TravelGrouping = "solo"
	GroupingCouple TravelGrouping = "couple"
)

// Valid reports whether g is a known gender value (including unset).
func (g Gender) Valid() bool {
	return g == GenderUnset || g == GenderMale || g == GenderFemale
}

// Valid reports whether t is a known grouping.
func (t TravelGrouping) Valid() bool {
	return t == GroupingSolo || t == GroupingCouple
}

// Profile represents a marketplace user. One profile can both drive and ride.
type Profile struct {
	ID             string
	Name           string
	Gender         Gender
	TravelGrouping TravelGrouping
	ApprovedDriver bool
	Admin          bool
	AverageRating  float64
	TotalReviews   int
	CreatedAt      time.Time
}

// ApprovalDecision is an admin's verdict on a driver application.
type ApprovalDecision string

const (
	ApprovalApprove ApprovalDecision = "approve"
	ApprovalReject  ApprovalDecision = "reject"
)

// Valid reports whether d is a known decision.
func (d ApprovalDecision) Valid() bool {
	return d == ApprovalApprove || d == ApprovalReject
}
