package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"carpool/internal/app"
	"carpool/internal/domain"
	"carpool/internal/handler"
	"carpool/internal/middleware"
)

type httpEnv struct {
	*testEnv
	router *gin.Engine
	issuer *middleware.TokenIssuer
}

func newHTTPEnv(t *testing.T) *httpEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := newTestEnv(t)
	issuer, err := middleware.NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer failed: %v", err)
	}

	router := app.NewRouter(app.RouterDeps{
		BookingHandler: handler.NewBookingHandler(env.bookingSvc),
		RideHandler:    handler.NewRideHandler(env.rideSvc),
		ProfileHandler: handler.NewProfileHandler(env.profileSvc, issuer),
		AdminHandler:   handler.NewAdminHandler(env.settlement),
		DriverHandler:  handler.NewDriverHandler(env.driverSvc),
		TokenIssuer:    issuer,
	})

	return &httpEnv{testEnv: env, router: router, issuer: issuer}
}

func (e *httpEnv) do(t *testing.T, method, path, callerID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if callerID != "" {
		token, err := e.issuer.Generate(callerID, "")
		if err != nil {
			t.Fatalf("Generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestHTTP_RequiresBearerToken(t *testing.T) {
	t.Parallel()
	env := newHTTPEnv(t)

	w := env.do(t, http.MethodGet, "/v1/bookings", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/bookings", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for a bad token, got %d", w.Code)
	}
}

func TestHTTP_RegisterIssuesToken(t *testing.T) {
	t.Parallel()
	env := newHTTPEnv(t)

	w := env.do(t, http.MethodPost, "/v1/profiles", "", map[string]string{
		"name":   "Ana",
		"gender": "Female",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp handler.RegisterResponse
	decode(t, w, &resp)
	if resp.Token == "" || resp.Profile.ID == "" {
		t.Fatalf("expected profile and token, got %+v", resp)
	}
	if resp.Profile.TravelGrouping != string(domain.GroupingSolo) {
		t.Errorf("expected solo default, got %s", resp.Profile.TravelGrouping)
	}

	claims, err := env.issuer.Validate(resp.Token)
	if err != nil || claims.UserID != resp.Profile.ID {
		t.Errorf("token does not identify the new profile: %v", err)
	}

	w = env.do(t, http.MethodPost, "/v1/profiles", "", map[string]string{"name": "Bo", "gender": "Other"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown gender, got %d", w.Code)
	}
}

func TestHTTP_CheckoutAcceptAndSecondAccept(t *testing.T) {
	t.Parallel()
	env := newHTTPEnv(t)
	driver := env.addProfile("driver-1", domain.GenderFemale, domain.GroupingSolo)
	passenger := env.addProfile("passenger-1", domain.GenderFemale, domain.GroupingSolo)
	ride := env.addRide("ride-1", driver, 3, domain.NewMoney(20, 0), 72*time.Hour)

	w := env.do(t, http.MethodPost, "/v1/bookings/checkout", passenger, map[string]any{
		"ride_id":        ride,
		"seat_count":     2,
		"payment_source": "tok_visa",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var created map[string]any
	decode(t, w, &created)
	if created["status"] != "pending_driver" || created["total_paid"] != "40.00" {
		t.Errorf("unexpected booking %v", created)
	}
	if created["commission_amount"] != nil || created["driver_action"] != nil {
		t.Errorf("split and driver action must be null before capture, got %v", created)
	}
	bookingID := created["id"].(string)

	w = env.do(t, http.MethodPost, "/v1/bookings/"+bookingID+"/driver-decision", driver, map[string]string{"decision": "accept"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var confirmed handler.BookingResponse
	decode(t, w, &confirmed)
	if confirmed.Status != "confirmed" {
		t.Errorf("expected confirmed, got %s", confirmed.Status)
	}
	if confirmed.CommissionAmount == nil || confirmed.CommissionAmount.String() != "10.00" {
		t.Errorf("expected commission 10.00, got %v", confirmed.CommissionAmount)
	}
	if confirmed.DriverPayoutAmount == nil || confirmed.DriverPayoutAmount.String() != "30.00" {
		t.Errorf("expected payout 30.00, got %v", confirmed.DriverPayoutAmount)
	}

	w = env.do(t, http.MethodPost, "/v1/bookings/"+bookingID+"/driver-decision", driver, map[string]string{"decision": "accept"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	var errResp handler.ErrorResponse
	decode(t, w, &errResp)
	if errResp.Code != "state_transition_error" {
		t.Errorf("expected state_transition_error, got %s", errResp.Code)
	}
}

func TestHTTP_CheckoutErrors(t *testing.T) {
	t.Parallel()
	env := newHTTPEnv(t)
	driver := env.addProfile("driver-1", domain.GenderFemale, domain.GroupingSolo)
	female := env.addProfile("passenger-1", domain.GenderFemale, domain.GroupingSolo)
	male := env.addProfile("passenger-2", domain.GenderMale, domain.GroupingSolo)
	ride := env.addRide("ride-1", driver, 1, domain.NewMoney(20, 0), 72*time.Hour)

	testCases := []struct {
		name     string
		caller   string
		body     any
		status   int
		code     string
		errorMsg string
	}{
		{
			name:     "incompatible pair",
			caller:   male,
			body:     map[string]any{"ride_id": ride, "seat_count": 1, "payment_source": "tok_visa"},
			status:   http.StatusUnprocessableEntity,
			code:     "compatibility_error",
			errorMsg: "not available for solo male passengers",
		},
		{
			name:   "too many seats",
			caller: female,
			body:   map[string]any{"ride_id": ride, "seat_count": 2, "payment_source": "tok_visa"},
			status: http.StatusConflict,
			code:   "inventory_exhausted",
		},
		{
			name:   "declined card",
			caller: female,
			body:   map[string]any{"ride_id": ride, "seat_count": 1, "payment_source": "tok_decline"},
			status: http.StatusPaymentRequired,
			code:   "payment_authorization_failed",
		},
		{
			name:   "acting for someone else",
			caller: female,
			body:   map[string]any{"ride_id": ride, "passenger_id": male, "seat_count": 1, "payment_source": "tok_visa"},
			status: http.StatusForbidden,
			code:   "unauthorized_action",
		},
		{
			name:   "unknown ride",
			caller: female,
			body:   map[string]any{"ride_id": "missing", "seat_count": 1, "payment_source": "tok_visa"},
			status: http.StatusNotFound,
			code:   "not_found",
		},
		{
			name:   "malformed body",
			caller: female,
			body:   "not an object",
			status: http.StatusBadRequest,
			code:   "validation_error",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/v1/bookings/checkout", tc.caller, tc.body)
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
			var resp handler.ErrorResponse
			decode(t, w, &resp)
			if resp.Code != tc.code {
				t.Errorf("expected code %s, got %s", tc.code, resp.Code)
			}
			if tc.errorMsg != "" && resp.Error != tc.errorMsg {
				t.Errorf("expected error %q, got %q", tc.errorMsg, resp.Error)
			}
			if tc.code == "inventory_exhausted" && (resp.Available == nil || *resp.Available != 1) {
				t.Errorf("expected available 1, got %v", resp.Available)
			}
		})
	}
}

func TestHTTP_PassengerCancelRefundTier(t *testing.T) {
	t.Parallel()
	env := newHTTPEnv(t)
	driver := env.addProfile("driver-1", domain.GenderFemale, domain.GroupingSolo)
	passenger := env.addProfile("passenger-1", domain.GenderFemale, domain.GroupingSolo)
	ride := env.addRide("ride-1", driver, 3, domain.NewMoney(20, 0), 72*time.Hour)
	booking := bookSeats(t, env.testEnv, ride, passenger, 2)
	acceptBooking(t, env.testEnv, booking.ID, driver)

	w := env.do(t, http.MethodPost, "/v1/bookings/"+booking.ID+"/passenger-cancel", passenger, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp handler.CancelResponse
	decode(t, w, &resp)
	if resp.RefundAmount.String() != "20.00" {
		t.Errorf("expected refund 20.00, got %s", resp.RefundAmount)
	}
	if resp.Booking.Status != "cancelled" {
		t.Errorf("expected cancelled, got %s", resp.Booking.Status)
	}
	if resp.Booking.CancellationRefundAmount == nil || resp.Booking.CancellationRefundAmount.String() != "20.00" {
		t.Errorf("expected recorded refund 20.00, got %v", resp.Booking.CancellationRefundAmount)
	}
}

func TestHTTP_AdminPayoutsAndOverview(t *testing.T) {
	t.Parallel()
	env := newHTTPEnv(t)
	driver, admin := settledDriver(t, env.testEnv)

	w := env.do(t, http.MethodPost, "/v1/admin/payouts", driver, map[string]any{"driver_id": driver, "amount": "30.00"})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non admin, got %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/v1/admin/payouts", admin, map[string]any{"driver_id": driver, "amount": 30})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var payout handler.PayoutResponse
	decode(t, w, &payout)
	if payout.Amount != domain.NewMoney(30, 0) || payout.RecordedBy != admin {
		t.Errorf("unexpected payout %+v", payout)
	}

	w = env.do(t, http.MethodPost, "/v1/admin/payouts", admin, map[string]any{"driver_id": driver, "amount": "1.005"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for sub-cent amount, got %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/v1/admin/payouts", admin, map[string]any{"driver_id": driver, "amount": "200000000000000000.00"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an amount beyond the money range, got %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/v1/admin/payouts?driver_id="+driver, admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var payouts []handler.PayoutResponse
	decode(t, w, &payouts)
	if len(payouts) != 1 {
		t.Errorf("expected 1 payout, got %d", len(payouts))
	}

	w = env.do(t, http.MethodGet, "/v1/admin/drivers/"+driver+"/settlement", admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var settlement map[string]any
	decode(t, w, &settlement)
	if settlement["total_earned"] != "75.00" || settlement["total_paid_out"] != "30.00" || settlement["balance_owed"] != "45.00" {
		t.Errorf("unexpected settlement %v", settlement)
	}

	w = env.do(t, http.MethodGet, "/v1/admin/rides-overview", admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var overview handler.RidesOverviewResponse
	decode(t, w, &overview)
	if overview.TotalOwed.String() != "45.00" || len(overview.Drivers) != 1 {
		t.Errorf("unexpected overview %+v", overview)
	}

	w = env.do(t, http.MethodGet, "/v1/admin/rides-overview/export", admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("unexpected content type %s", ct)
	}
	if w.Body.Len() == 0 {
		t.Error("expected a workbook body")
	}
}

func TestHTTP_ListRidesCarriesEligibility(t *testing.T) {
	t.Parallel()
	env := newHTTPEnv(t)
	femaleDriver := env.addProfile("driver-1", domain.GenderFemale, domain.GroupingSolo)
	coupleDriver := env.addProfile("driver-2", domain.GenderFemale, domain.GroupingCouple)
	passenger := env.addProfile("passenger-1", domain.GenderMale, domain.GroupingSolo)
	env.addRide("ride-1", femaleDriver, 3, domain.NewMoney(20, 0), 24*time.Hour)
	env.addRide("ride-2", coupleDriver, 3, domain.NewMoney(20, 0), 48*time.Hour)

	w := env.do(t, http.MethodGet, "/v1/rides", passenger, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var rides []handler.RideResponse
	decode(t, w, &rides)
	if len(rides) != 2 {
		t.Fatalf("expected 2 rides, got %d", len(rides))
	}
	if rides[0].Compatible == nil || *rides[0].Compatible {
		t.Errorf("first ride should be incompatible, got %+v", rides[0])
	}
	if rides[0].IncompatibilityReason != "not available for solo male passengers" {
		t.Errorf("unexpected reason %q", rides[0].IncompatibilityReason)
	}

	w = env.do(t, http.MethodGet, "/v1/rides?only_compatible=true", passenger, nil)
	decode(t, w, &rides)
	if len(rides) != 1 || rides[0].ID != "ride-2" {
		t.Errorf("expected only ride-2, got %+v", rides)
	}
}

func TestHTTP_DriverApproval(t *testing.T) {
	t.Parallel()
	env := newHTTPEnv(t)
	admin := env.addAdmin("admin-1")

	w := env.do(t, http.MethodPost, "/v1/profiles", "", map[string]string{"name": "Dana", "gender": "Female"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var registered handler.RegisterResponse
	decode(t, w, &registered)
	driver := registered.Profile.ID
	if registered.Profile.ApprovedDriver {
		t.Fatal("new profiles must not be approved drivers")
	}

	publish := func() int {
		return env.do(t, http.MethodPost, "/v1/rides", driver, map[string]any{
			"origin":         "Lyon",
			"destination":    "Paris",
			"departure_at":   time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339),
			"seats_total":    3,
			"price_per_seat": "20.00",
		}).Code
	}

	if code := publish(); code != http.StatusForbidden {
		t.Errorf("expected 403 before approval, got %d", code)
	}

	w = env.do(t, http.MethodPost, "/v1/admin/drivers/"+driver+"/approval", driver, map[string]string{"decision": "approve"})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for self approval by a non admin, got %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/v1/admin/drivers/"+driver+"/approval", admin, map[string]string{"decision": "approve"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var approved handler.ProfileResponse
	decode(t, w, &approved)
	if !approved.ApprovedDriver {
		t.Error("expected approved_driver true")
	}

	if code := publish(); code != http.StatusCreated {
		t.Errorf("expected 201 after approval, got %d", code)
	}

	w = env.do(t, http.MethodPost, "/v1/admin/drivers/"+driver+"/approval", admin, map[string]string{"decision": "reject"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if code := publish(); code != http.StatusForbidden {
		t.Errorf("expected 403 after rejection, got %d", code)
	}

	testCases := []struct {
		name     string
		driverID string
		decision string
		want     int
	}{
		{"unknown decision", driver, "maybe", http.StatusBadRequest},
		{"unknown driver", "nobody", "approve", http.StatusNotFound},
	}
	for _, tc := range testCases {
		w := env.do(t, http.MethodPost, "/v1/admin/drivers/"+tc.driverID+"/approval", admin, map[string]string{"decision": tc.decision})
		if w.Code != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, w.Code)
		}
	}
}
