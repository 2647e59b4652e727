package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carpool/internal/domain"
	"carpool/internal/middleware"
	"carpool/internal/service"
)

// AdminHandler handles HTTP requests for settlement and payouts.
type AdminHandler struct {
	settlementService *service.SettlementService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(settlementService *service.SettlementService) *AdminHandler {
	return &AdminHandler{settlementService: settlementService}
}

// RecordPayoutRequest is the HTTP request body for recording a payout.
type RecordPayoutRequest struct {
	AdminID  string       `json:"admin_id,omitempty"`
	DriverID string       `json:"driver_id"`
	Amount   domain.Money `json:"amount"`
	Note     string       `json:"note,omitempty"`
}

// PayoutResponse is the HTTP representation of a payout.
type PayoutResponse struct {
	ID         string       `json:"id"`
	DriverID   string       `json:"driver_id"`
	Amount     domain.Money `json:"amount"`
	Note       string       `json:"note,omitempty"`
	RecordedBy string       `json:"recorded_by"`
	CreatedAt  string       `json:"created_at"`
}

// SettlementResponse is the HTTP representation of a driver's totals.
type SettlementResponse struct {
	DriverID        string       `json:"driver_id"`
	TotalEarned     domain.Money `json:"total_earned"`
	TotalPaidOut    domain.Money `json:"total_paid_out"`
	BalanceOwed     domain.Money `json:"balance_owed"`
	EarningBookings int          `json:"earning_bookings"`
	PayoutCount     int          `json:"payout_count"`
	ComputedAt      string       `json:"computed_at,omitempty"`
}

// RideOverviewResponse is one ride row of the overview.
type RideOverviewResponse struct {
	RideID         string       `json:"ride_id"`
	Origin         string       `json:"origin"`
	Destination    string       `json:"destination"`
	DepartureAt    string       `json:"departure_at"`
	Status         string       `json:"status"`
	SeatsTotal     int          `json:"seats_total"`
	SeatsBooked    int          `json:"seats_booked"`
	Bookings       int          `json:"bookings"`
	Gross          domain.Money `json:"gross"`
	Commission     domain.Money `json:"commission"`
	DriverEarnings domain.Money `json:"driver_earnings"`
}

// DriverOverviewResponse groups a driver's rides with their settlement.
type DriverOverviewResponse struct {
	DriverID   string                 `json:"driver_id"`
	DriverName string                 `json:"driver_name,omitempty"`
	Settlement SettlementResponse     `json:"settlement"`
	Rides      []RideOverviewResponse `json:"rides"`
}

// RidesOverviewResponse is the HTTP response for the admin overview.
type RidesOverviewResponse struct {
	Drivers         []DriverOverviewResponse `json:"drivers"`
	TotalGross      domain.Money             `json:"total_gross"`
	TotalCommission domain.Money             `json:"total_commission"`
	TotalOwed       domain.Money             `json:"total_owed"`
	GeneratedAt     string                   `json:"generated_at"`
}

// RecordPayout handles POST /v1/admin/payouts
func (h *AdminHandler) RecordPayout(c *gin.Context) {
	var req RecordPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "validation_error"})
		return
	}

	adminID, ok := actingAs(c, req.AdminID)
	if !ok {
		return
	}

	payout, err := h.settlementService.RecordPayout(c.Request.Context(), service.RecordPayoutRequest{
		AdminID:  adminID,
		DriverID: req.DriverID,
		Amount:   req.Amount,
		Note:     req.Note,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toPayoutResponse(payout))
}

// ListPayouts handles GET /v1/admin/payouts
func (h *AdminHandler) ListPayouts(c *gin.Context) {
	payouts, err := h.settlementService.ListPayouts(c.Request.Context(), middleware.CallerID(c), c.Query("driver_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]PayoutResponse, 0, len(payouts))
	for _, p := range payouts {
		response = append(response, toPayoutResponse(p))
	}

	respondJSON(c, http.StatusOK, response)
}

// DriverSettlement handles GET /v1/admin/drivers/:id/settlement
func (h *AdminHandler) DriverSettlement(c *gin.Context) {
	settlement, err := h.settlementService.DriverSettlement(c.Request.Context(), middleware.CallerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toSettlementResponse(*settlement))
}

// RidesOverview handles GET /v1/admin/rides-overview
func (h *AdminHandler) RidesOverview(c *gin.Context) {
	overview, err := h.settlementService.RidesOverview(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	response := RidesOverviewResponse{
		Drivers:         make([]DriverOverviewResponse, 0, len(overview.Drivers)),
		TotalGross:      overview.TotalGross,
		TotalCommission: overview.TotalCommission,
		TotalOwed:       overview.TotalOwed,
		GeneratedAt:     formatTime(overview.GeneratedAt),
	}

	for _, d := range overview.Drivers {
		driver := DriverOverviewResponse{
			DriverID:   d.DriverID,
			DriverName: d.DriverName,
			Settlement: toSettlementResponse(d.Settlement),
			Rides:      make([]RideOverviewResponse, 0, len(d.Rides)),
		}
		for _, r := range d.Rides {
			driver.Rides = append(driver.Rides, RideOverviewResponse{
				RideID:         r.Ride.ID,
				Origin:         r.Ride.Origin,
				Destination:    r.Ride.Destination,
				DepartureAt:    formatTime(r.Ride.DepartureAt),
				Status:         string(r.Ride.Status),
				SeatsTotal:     r.Ride.SeatsTotal,
				SeatsBooked:    r.SeatsBooked,
				Bookings:       r.Bookings,
				Gross:          r.Gross,
				Commission:     r.Commission,
				DriverEarnings: r.DriverEarnings,
			})
		}
		response.Drivers = append(response.Drivers, driver)
	}

	respondJSON(c, http.StatusOK, response)
}

// ExportOverview handles GET /v1/admin/rides-overview/export
func (h *AdminHandler) ExportOverview(c *gin.Context) {
	overview, err := h.settlementService.RidesOverview(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	data, err := buildOverviewWorkbook(overview)
	if err != nil {
		respondError(c, err)
		return
	}

	filename := "rides-overview-" + overview.GeneratedAt.Format("20060102-150405") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

func toPayoutResponse(p *domain.Payout) PayoutResponse {
	return PayoutResponse{
		ID:         p.ID,
		DriverID:   p.DriverID,
		Amount:     p.Amount,
		Note:       p.Note,
		RecordedBy: p.RecordedBy,
		CreatedAt:  formatTime(p.CreatedAt),
	}
}

func toSettlementResponse(s service.Settlement) SettlementResponse {
	return SettlementResponse{
		DriverID:        s.DriverID,
		TotalEarned:     s.TotalEarned,
		TotalPaidOut:    s.TotalPaidOut,
		BalanceOwed:     s.BalanceOwed,
		EarningBookings: s.EarningBookings,
		PayoutCount:     s.PayoutCount,
		ComputedAt:      formatTime(s.ComputedAt),
	}
}
