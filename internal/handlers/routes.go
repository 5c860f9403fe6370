package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/smarttransit/seat-reservation/internal/middleware"
	"github.com/smarttransit/seat-reservation/pkg/jwt"
)

// Router bundles the handlers mounted under /api/v1
type Router struct {
	Health  *HealthHandler
	Search  *SearchHandler
	Booking *BookingHandler
	Admin   *AdminHandler
	JWT     *jwt.Service
}

// Register mounts every route on r
func (rt *Router) Register(r *gin.Engine) {
	r.GET("/health", rt.Health.Health)

	v1 := r.Group("/api/v1")

	// Trip search (public)
	trips := v1.Group("/trips")
	{
		trips.GET("/search", rt.Search.SearchTrips)
		trips.GET("/:trip_id/assignments/:assignment_id/seats", rt.Search.GetSeatMap)
	}

	// Bookings: guests book without a token, registered riders with one
	bookings := v1.Group("/bookings")
	{
		optional := bookings.Group("", middleware.OptionalAuth(rt.JWT))
		optional.POST("", rt.Booking.CreateBooking)
		optional.GET("/:id", rt.Booking.GetBooking)
		optional.GET("/:id/ticket", rt.Booking.GetTicket)
		optional.PUT("/:id/rider", rt.Booking.AttachRider)

		protected := bookings.Group("", middleware.AuthMiddleware(rt.JWT))
		protected.POST("/:id/cancel", rt.Booking.CancelBooking)
		protected.PATCH("/:id/payment", middleware.RequireRole(middleware.RoleAdmin), rt.Booking.MarkPaid)
	}

	me := v1.Group("/me", middleware.AuthMiddleware(rt.JWT))
	{
		me.GET("/bookings", rt.Booking.ListMyBookings)
	}

	if rt.Admin != nil {
		admin := v1.Group("/admin", middleware.AuthMiddleware(rt.JWT), middleware.RequireRole(middleware.RoleAdmin))
		{
			admin.GET("/reconcile", rt.Admin.JobStatus)
			admin.POST("/reconcile", rt.Admin.RunReconciliation)
		}
	}
}
