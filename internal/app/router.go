package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"

	"carpool/internal/handler"
	"carpool/internal/middleware"
	internalRedis "carpool/internal/redis"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	BookingHandler *handler.BookingHandler
	RideHandler    *handler.RideHandler
	ProfileHandler *handler.ProfileHandler
	AdminHandler   *handler.AdminHandler
	DriverHandler  *handler.DriverHandler
	TokenIssuer    *middleware.TokenIssuer
	Idempotency    internalRedis.IdempotencyStoreInterface
	NewRelicApp    *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")

	// Registration is the only unauthenticated route; it hands out the token.
	v1.POST("/profiles", deps.ProfileHandler.Register)

	authed := v1.Group("")
	authed.Use(middleware.Auth(deps.TokenIssuer))
	if deps.NewRelicApp != nil {
		authed.Use(middleware.NewRelicAttributes())
	}
	if deps.Idempotency != nil {
		authed.Use(middleware.Idempotency(deps.Idempotency))
	}
	{
		authed.GET("/profiles/:id", deps.ProfileHandler.GetProfile)

		// Ride routes.
		rides := authed.Group("/rides")
		{
			rides.POST("", deps.RideHandler.PublishRide)
			rides.GET("", deps.RideHandler.ListRides)
			rides.GET("/:id", deps.RideHandler.GetRide)
			rides.GET("/:id/bookings", deps.BookingHandler.ListForRide)
			rides.PATCH("/:id/seats", deps.RideHandler.UpdateSeats)
			rides.POST("/:id/cancel", deps.RideHandler.CancelRide)
		}

		// Booking routes.
		bookings := authed.Group("/bookings")
		{
			bookings.POST("/checkout", deps.BookingHandler.Checkout)
			bookings.GET("", deps.BookingHandler.ListMine)
			bookings.GET("/:id", deps.BookingHandler.GetBooking)
			bookings.GET("/:id/refund-quote", deps.BookingHandler.RefundQuote)
			bookings.POST("/:id/driver-decision", deps.BookingHandler.DriverDecision)
			bookings.POST("/:id/passenger-cancel", deps.BookingHandler.PassengerCancel)
		}

		// Admin routes. Admin rights are checked per operation against the profile.
		admin := authed.Group("/admin")
		{
			admin.POST("/payouts", deps.AdminHandler.RecordPayout)
			admin.GET("/payouts", deps.AdminHandler.ListPayouts)
			admin.GET("/rides-overview", deps.AdminHandler.RidesOverview)
			admin.GET("/rides-overview/export", deps.AdminHandler.ExportOverview)
			admin.GET("/drivers/:id/settlement", deps.AdminHandler.DriverSettlement)
			admin.POST("/drivers/:id/approval", deps.DriverHandler.Approval)
		}
	}

	return router
}
