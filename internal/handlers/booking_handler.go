package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation/internal/middleware"
	"github.com/smarttransit/seat-reservation/internal/models"
	"github.com/smarttransit/seat-reservation/internal/services"
	"github.com/smarttransit/seat-reservation/internal/utils"
)

// IdempotencyKeyHeader lets clients retry POST /bookings safely
const IdempotencyKeyHeader = "Idempotency-Key"

// BookingHandler handles HTTP requests for seat bookings
type BookingHandler struct {
	service *services.BookingService
	logger  *logrus.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(service *services.BookingService, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		logger:  logger,
	}
}

// CreateBooking handles POST /api/v1/bookings
// Registered riders send a bearer token; guests send none.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Debug("Invalid booking request")
		respondBindError(c, err)
		return
	}

	userAgent := utils.GetUserAgent(c)
	source := utils.BookingSource(userAgent)
	identity := middleware.GetIdentity(c)

	h.logger.WithFields(logrus.Fields{
		"schedule_id":       req.TripID,
		"bus_assignment_id": req.AssignmentID,
		"seat_number":       req.SeatNumber,
		"guest":             identity == nil,
		"source":            source,
		"ip":                utils.GetRealIP(c),
	}).Info("Booking request received")

	confirmation, err := h.service.CreateBooking(
		c.Request.Context(), &req, identity, source, c.GetHeader(IdempotencyKeyHeader),
	)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, confirmation)
}

// GetBooking handles GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	id, ok := h.bookingID(c)
	if !ok {
		return
	}

	details, err := h.service.GetBooking(c.Request.Context(), id, middleware.GetIdentity(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    details,
	})
}

// GetTicket handles GET /api/v1/bookings/:id/ticket
func (h *BookingHandler) GetTicket(c *gin.Context) {
	id, ok := h.bookingID(c)
	if !ok {
		return
	}

	pdf, filename, err := h.service.GetTicket(c.Request.Context(), id, middleware.GetIdentity(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// AttachRider handles PUT /api/v1/bookings/:id/rider
func (h *BookingHandler) AttachRider(c *gin.Context) {
	id, ok := h.bookingID(c)
	if !ok {
		return
	}

	var req models.PassengerDetails
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	profile, err := h.service.AttachRider(c.Request.Context(), id, req, middleware.GetIdentity(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Passenger details saved",
		"passenger": profile,
	})
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	id, ok := h.bookingID(c)
	if !ok {
		return
	}

	resp, err := h.service.CancelBooking(c.Request.Context(), id, middleware.GetIdentity(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// MarkPaid handles PATCH /api/v1/bookings/:id/payment (admin only)
func (h *BookingHandler) MarkPaid(c *gin.Context) {
	id, ok := h.bookingID(c)
	if !ok {
		return
	}

	var req models.MarkPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	details, err := h.service.MarkPaid(c.Request.Context(), id, req.PaymentReference)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Payment recorded",
		"data":    details,
	})
}

// ListMyBookings handles GET /api/v1/me/bookings
func (h *BookingHandler) ListMyBookings(c *gin.Context) {
	bookings, err := h.service.ListMyBookings(c.Request.Context(), middleware.GetIdentity(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(bookings),
		"data":    bookings,
	})
}

func (h *BookingHandler) bookingID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, models.ErrInvalidRequest.WithMessage("invalid booking id"))
		return uuid.Nil, false
	}
	return id, true
}
