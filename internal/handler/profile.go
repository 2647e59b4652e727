package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carpool/internal/domain"
	"carpool/internal/middleware"
	"carpool/internal/service"
)

// ProfileHandler handles HTTP requests for profiles.
type ProfileHandler struct {
	profileService *service.ProfileService
	issuer         *middleware.TokenIssuer
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profileService *service.ProfileService, issuer *middleware.TokenIssuer) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
		issuer:         issuer,
	}
}

// RegisterRequest is the HTTP request body for profile registration.
type RegisterRequest struct {
	Name           string `json:"name"`
	Gender         string `json:"gender"`
	TravelGrouping string `json:"travel_grouping"`
}

// ProfileResponse is the HTTP response for profile data.
type ProfileResponse struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Gender         *string `json:"gender"`
	TravelGrouping string  `json:"travel_grouping"`
	ApprovedDriver bool    `json:"approved_driver"`
	AverageRating  float64 `json:"average_rating"`
	TotalReviews   int     `json:"total_reviews"`
}

// RegisterResponse carries the new profile and its bearer token.
type RegisterResponse struct {
	Profile ProfileResponse `json:"profile"`
	Token   string          `json:"token"`
}

// Register handles POST /v1/profiles
func (h *ProfileHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "validation_error"})
		return
	}

	profile, err := h.profileService.Register(c.Request.Context(), service.RegisterProfileRequest{
		Name:           req.Name,
		Gender:         domain.Gender(req.Gender),
		TravelGrouping: domain.TravelGrouping(req.TravelGrouping),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.issuer.Generate(profile.ID, "")
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, RegisterResponse{
		Profile: toProfileResponse(profile),
		Token:   token,
	})
}

// GetProfile handles GET /v1/profiles/:id
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	profile, err := h.profileService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toProfileResponse(profile))
}

func toProfileResponse(p *domain.Profile) ProfileResponse {
	resp := ProfileResponse{
		ID:             p.ID,
		Name:           p.Name,
		TravelGrouping: string(p.TravelGrouping),
		ApprovedDriver: p.ApprovedDriver,
		AverageRating:  p.AverageRating,
		TotalReviews:   p.TotalReviews,
	}
	if p.Gender != domain.GenderUnset {
		gender := string(p.Gender)
		resp.Gender = &gender
	}
	return resp
}
