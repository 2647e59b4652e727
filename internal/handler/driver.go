package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carpool/internal/domain"
	"carpool/internal/service"
)

// DriverHandler handles admin decisions on drivers.
type DriverHandler struct {
	driverService *service.DriverService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(driverService *service.DriverService) *DriverHandler {
	return &DriverHandler{driverService: driverService}
}

// DriverApprovalRequest is the HTTP request body for an approval decision.
type DriverApprovalRequest struct {
	AdminID  string `json:"admin_id,omitempty"`
	Decision string `json:"decision"`
}

// Approval handles POST /v1/admin/drivers/:id/approval
func (h *DriverHandler) Approval(c *gin.Context) {
	var req DriverApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "validation_error"})
		return
	}

	adminID, ok := actingAs(c, req.AdminID)
	if !ok {
		return
	}

	profile, err := h.driverService.DecideApproval(c.Request.Context(), service.DriverApprovalRequest{
		AdminID:  adminID,
		DriverID: c.Param("id"),
		Decision: domain.ApprovalDecision(req.Decision),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toProfileResponse(profile))
}
