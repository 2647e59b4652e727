package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"carpool/internal/domain"
	"carpool/internal/middleware"
	"carpool/internal/service"
)

// BookingHandler handles HTTP requests for bookings.
type BookingHandler struct {
	bookingService *service.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bookingService *service.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

// CheckoutRequest is the HTTP request body for booking seats.
type CheckoutRequest struct {
	RideID        string `json:"ride_id"`
	PassengerID   string `json:"passenger_id,omitempty"`
	SeatCount     int    `json:"seat_count"`
	PaymentSource string `json:"payment_source"`
}

// DriverDecisionRequest is the HTTP request body for a driver's decision.
type DriverDecisionRequest struct {
	DriverID string `json:"driver_id,omitempty"`
	Decision string `json:"decision"`
}

// PassengerCancelRequest is the HTTP request body for a passenger cancellation.
type PassengerCancelRequest struct {
	PassengerID string `json:"passenger_id,omitempty"`
}

// BookingResponse is the HTTP representation of a booking.
type BookingResponse struct {
	ID                       string        `json:"id"`
	RideID                   string        `json:"ride_id"`
	PassengerID              string        `json:"passenger_id"`
	SeatsBooked              int           `json:"seats_booked"`
	TotalPaid                domain.Money  `json:"total_paid"`
	CommissionAmount         *domain.Money `json:"commission_amount"`
	DriverPayoutAmount       *domain.Money `json:"driver_payout_amount"`
	Status                   string        `json:"status"`
	DriverAction             *string       `json:"driver_action"`
	DriverActionAt           string        `json:"driver_action_at,omitempty"`
	CancellationRefundAmount *domain.Money `json:"cancellation_refund_amount"`
	CreatedAt                string        `json:"created_at"`
	CancelledAt              string        `json:"cancelled_at,omitempty"`
	CompletedAt              string        `json:"completed_at,omitempty"`
	RefundedAt               string        `json:"refunded_at,omitempty"`
}

// RefundQuoteResponse is the HTTP representation of a refund quote.
type RefundQuoteResponse struct {
	Text   string       `json:"text"`
	Amount domain.Money `json:"amount"`
	Void   bool         `json:"void"`
}

// CancelResponse is the HTTP response for a passenger cancellation.
type CancelResponse struct {
	Booking      BookingResponse `json:"booking"`
	RefundAmount domain.Money    `json:"refund_amount"`
	RefundText   string          `json:"refund_text"`
}

// Checkout handles POST /v1/bookings/checkout
func (h *BookingHandler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "validation_error"})
		return
	}

	passengerID, ok := actingAs(c, req.PassengerID)
	if !ok {
		return
	}

	booking, err := h.bookingService.Checkout(c.Request.Context(), service.CheckoutRequest{
		RideID:        req.RideID,
		PassengerID:   passengerID,
		SeatCount:     req.SeatCount,
		PaymentSource: req.PaymentSource,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toBookingResponse(booking))
}

// GetBooking handles GET /v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	booking, err := h.bookingService.GetBooking(c.Request.Context(), c.Param("id"), middleware.CallerID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// ListMine handles GET /v1/bookings
func (h *BookingHandler) ListMine(c *gin.Context) {
	bookings, err := h.bookingService.ListPassengerBookings(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponses(bookings))
}

// ListForRide handles GET /v1/rides/:id/bookings
func (h *BookingHandler) ListForRide(c *gin.Context) {
	bookings, err := h.bookingService.ListRideBookings(c.Request.Context(), c.Param("id"), middleware.CallerID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponses(bookings))
}

// RefundQuote handles GET /v1/bookings/:id/refund-quote
func (h *BookingHandler) RefundQuote(c *gin.Context) {
	quote, err := h.bookingService.RefundQuote(c.Request.Context(), c.Param("id"), middleware.CallerID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, RefundQuoteResponse{
		Text:   quote.Text,
		Amount: quote.Amount,
		Void:   quote.Void,
	})
}

// DriverDecision handles POST /v1/bookings/:id/driver-decision
func (h *BookingHandler) DriverDecision(c *gin.Context) {
	var req DriverDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "validation_error"})
		return
	}

	driverID, ok := actingAs(c, req.DriverID)
	if !ok {
		return
	}

	booking, err := h.bookingService.DriverDecision(c.Request.Context(), service.DriverDecisionRequest{
		BookingID: c.Param("id"),
		DriverID:  driverID,
		Decision:  req.Decision,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// PassengerCancel handles POST /v1/bookings/:id/passenger-cancel
func (h *BookingHandler) PassengerCancel(c *gin.Context) {
	var req PassengerCancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "validation_error"})
			return
		}
	}

	passengerID, ok := actingAs(c, req.PassengerID)
	if !ok {
		return
	}

	result, err := h.bookingService.PassengerCancel(c.Request.Context(), c.Param("id"), passengerID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, CancelResponse{
		Booking:      toBookingResponse(result.Booking),
		RefundAmount: result.Refund.Amount,
		RefundText:   result.Refund.Text,
	})
}

// actingAs resolves the actor of a request. A body-supplied actor ID must
// match the authenticated caller.
func actingAs(c *gin.Context, bodyID string) (string, bool) {
	callerID := middleware.CallerID(c)
	if bodyID != "" && bodyID != callerID {
		respondError(c, service.ErrUnauthorizedAction)
		return "", false
	}
	return callerID, true
}

func toBookingResponse(b *domain.Booking) BookingResponse {
	resp := BookingResponse{
		ID:                       b.ID,
		RideID:                   b.RideID,
		PassengerID:              b.PassengerID,
		SeatsBooked:              b.SeatsBooked,
		TotalPaid:                b.TotalPaid,
		Status:                   string(b.Status),
		DriverActionAt:           formatTime(b.DriverActionAt),
		CancellationRefundAmount: b.CancellationRefundAmount,
		CreatedAt:                formatTime(b.CreatedAt),
		CancelledAt:              formatTime(b.CancelledAt),
		CompletedAt:              formatTime(b.CompletedAt),
		RefundedAt:               formatTime(b.RefundedAt),
	}

	if b.CaptureRef != "" {
		commission, payout := b.CommissionAmount, b.DriverPayoutAmount
		resp.CommissionAmount = &commission
		resp.DriverPayoutAmount = &payout
	}

	if b.DriverAction != domain.DriverActionNone {
		action := string(b.DriverAction)
		resp.DriverAction = &action
	}

	return resp
}

func toBookingResponses(bookings []*domain.Booking) []BookingResponse {
	response := make([]BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		response = append(response, toBookingResponse(b))
	}
	return response
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
