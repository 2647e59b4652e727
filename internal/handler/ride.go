package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"carpool/internal/domain"
	"carpool/internal/middleware"
	"carpool/internal/service"
)

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rideService *service.RideService
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rideService *service.RideService) *RideHandler {
	return &RideHandler{rideService: rideService}
}

// PublishRideRequest is the HTTP request body for publishing a ride.
type PublishRideRequest struct {
	Origin       string       `json:"origin"`
	Destination  string       `json:"destination"`
	DepartureAt  time.Time    `json:"departure_at"`
	SeatsTotal   int          `json:"seats_total"`
	PricePerSeat domain.Money `json:"price_per_seat"`
}

// UpdateSeatsRequest is the HTTP request body for changing ride capacity.
type UpdateSeatsRequest struct {
	SeatsTotal int `json:"seats_total"`
}

// RideResponse is the HTTP representation of a ride.
type RideResponse struct {
	ID                    string       `json:"id"`
	DriverID              string       `json:"driver_id"`
	Origin                string       `json:"origin"`
	Destination           string       `json:"destination"`
	DepartureAt           string       `json:"departure_at"`
	SeatsTotal            int          `json:"seats_total"`
	SeatsAvailable        int          `json:"seats_available"`
	PricePerSeat          domain.Money `json:"price_per_seat"`
	Status                string       `json:"status"`
	Compatible            *bool        `json:"compatible,omitempty"`
	IncompatibilityReason string       `json:"incompatibility_reason,omitempty"`
	CancelledAt           string       `json:"cancelled_at,omitempty"`
	CompletedAt           string       `json:"completed_at,omitempty"`
}

// PublishRide handles POST /v1/rides
func (h *RideHandler) PublishRide(c *gin.Context) {
	var req PublishRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "validation_error"})
		return
	}

	ride, err := h.rideService.PublishRide(c.Request.Context(), service.PublishRideRequest{
		DriverID:     middleware.CallerID(c),
		Origin:       req.Origin,
		Destination:  req.Destination,
		DepartureAt:  req.DepartureAt,
		SeatsTotal:   req.SeatsTotal,
		PricePerSeat: req.PricePerSeat,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toRideResponse(ride))
}

// ListRides handles GET /v1/rides
func (h *RideHandler) ListRides(c *gin.Context) {
	filter, err := parseRideFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "validation_error"})
		return
	}

	listings, err := h.rideService.ListRides(c.Request.Context(), middleware.CallerID(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]RideResponse, 0, len(listings))
	for _, listing := range listings {
		r := toRideResponse(listing.Ride)
		compatible := listing.Compatible
		r.Compatible = &compatible
		r.IncompatibilityReason = listing.Reason
		response = append(response, r)
	}

	respondJSON(c, http.StatusOK, response)
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, err := h.rideService.GetRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// UpdateSeats handles PATCH /v1/rides/:id/seats
func (h *RideHandler) UpdateSeats(c *gin.Context) {
	var req UpdateSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "validation_error"})
		return
	}

	ride, err := h.rideService.UpdateSeats(c.Request.Context(), c.Param("id"), middleware.CallerID(c), req.SeatsTotal)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	ride, err := h.rideService.CancelRide(c.Request.Context(), c.Param("id"), middleware.CallerID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// parseRideFilter reads the search filter from query parameters. A date
// parameter (YYYY-MM-DD) selects every departure on that UTC day.
func parseRideFilter(c *gin.Context) (domain.RideFilter, error) {
	filter := domain.RideFilter{
		Origin:         c.Query("origin"),
		Destination:    c.Query("destination"),
		DriverID:       c.Query("driver_id"),
		OnlyCompatible: c.Query("only_compatible") == "true",
	}

	if date := c.Query("date"); date != "" {
		day, err := time.Parse("2006-01-02", date)
		if err != nil {
			return filter, errInvalidQuery("date")
		}
		filter.DepartureAfter = day
		filter.DepartureBy = day.Add(24*time.Hour - time.Nanosecond)
	}

	for param, dst := range map[string]*time.Time{
		"departure_after": &filter.DepartureAfter,
		"departure_by":    &filter.DepartureBy,
	} {
		if v := c.Query(param); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return filter, errInvalidQuery(param)
			}
			*dst = t
		}
	}

	for param, dst := range map[string]*int{
		"min_seats": &filter.MinSeats,
		"limit":     &filter.Limit,
	} {
		if v := c.Query(param); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return filter, errInvalidQuery(param)
			}
			*dst = n
		}
	}

	return filter, nil
}

type queryError string

func (e queryError) Error() string {
	return "invalid query parameter: " + string(e)
}

func errInvalidQuery(param string) error {
	return queryError(param)
}

func toRideResponse(ride *domain.Ride) RideResponse {
	return RideResponse{
		ID:             ride.ID,
		DriverID:       ride.DriverID,
		Origin:         ride.Origin,
		Destination:    ride.Destination,
		DepartureAt:    formatTime(ride.DepartureAt),
		SeatsTotal:     ride.SeatsTotal,
		SeatsAvailable: ride.SeatsAvailable(),
		PricePerSeat:   ride.PricePerSeat,
		Status:         string(ride.Status),
		CancelledAt:    formatTime(ride.CancelledAt),
		CompletedAt:    formatTime(ride.CompletedAt),
	}
}
