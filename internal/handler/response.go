package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"carpool/internal/repository"
	"carpool/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error                  string `json:"error"`
	Code                   string `json:"code"`
	Available              *int   `json:"available,omitempty"`
	ReconciliationRequired bool   `json:"reconciliation_required,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	status, code := mapError(err)

	response := ErrorResponse{Error: err.Error(), Code: code}

	var exhausted *service.InventoryExhaustedError
	if errors.As(err, &exhausted) {
		response.Available = &exhausted.Available
	}

	var incompatible *service.CompatibilityError
	if errors.As(err, &incompatible) {
		response.Error = incompatible.Reason
	}

	if errors.Is(err, service.ErrReconciliationRequired) {
		response.ReconciliationRequired = true
	}

	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		if !response.ReconciliationRequired {
			response.Error = "internal server error"
		}
	}

	c.JSON(status, response)
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapError maps service/repository errors to an HTTP status and error code.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"

	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, "validation_error"

	case errors.Is(err, service.ErrCompatibility):
		return http.StatusUnprocessableEntity, "compatibility_error"

	case errors.Is(err, service.ErrInventoryExhausted):
		return http.StatusConflict, "inventory_exhausted"

	case errors.Is(err, service.ErrRideNotBookable):
		return http.StatusConflict, "ride_not_bookable"

	case errors.Is(err, service.ErrRideHasActiveBookings):
		return http.StatusConflict, "ride_has_active_bookings"

	case errors.Is(err, service.ErrStateTransition):
		return http.StatusConflict, "state_transition_error"

	case errors.Is(err, service.ErrBookingBusy):
		return http.StatusConflict, "booking_busy"

	// Checked before the payment errors it may wrap alongside.
	case errors.Is(err, service.ErrReconciliationRequired):
		return http.StatusInternalServerError, "reconciliation_required"

	case errors.Is(err, service.ErrPaymentAuthorizationFailed):
		return http.StatusPaymentRequired, "payment_authorization_failed"

	case errors.Is(err, service.ErrPaymentCaptureFailed):
		return http.StatusPaymentRequired, "payment_capture_failed"

	case errors.Is(err, service.ErrVoidFailed):
		return http.StatusBadGateway, "void_failed"

	case errors.Is(err, service.ErrRefundFailed):
		return http.StatusBadGateway, "refund_failed"

	case errors.Is(err, service.ErrUnauthorizedAction):
		return http.StatusForbidden, "unauthorized_action"

	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
