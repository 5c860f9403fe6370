package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation/internal/models"
	"github.com/smarttransit/seat-reservation/internal/services"
)

// SearchHandler handles HTTP requests for trip search
type SearchHandler struct {
	service *services.SearchService
	logger  *logrus.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(service *services.SearchService, logger *logrus.Logger) *SearchHandler {
	return &SearchHandler{
		service: service,
		logger:  logger,
	}
}

// SearchTrips handles GET /api/v1/trips/search?origin=&destination=&date=DD-MM-YYYY
func (h *SearchHandler) SearchTrips(c *gin.Context) {
	var req models.SearchTripsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBindError(c, err)
		return
	}

	response, err := h.service.SearchTrips(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"origin":      req.Origin,
		"destination": req.Destination,
		"date":        req.Date,
		"count":       response.Count,
	}).Debug("Search completed")

	c.JSON(http.StatusOK, response)
}

// GetSeatMap handles GET /api/v1/trips/:trip_id/assignments/:assignment_id/seats
func (h *SearchHandler) GetSeatMap(c *gin.Context) {
	seatMap, err := h.service.GetSeatMap(c.Request.Context(), c.Param("trip_id"), c.Param("assignment_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, seatMap)
}
