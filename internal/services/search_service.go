package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation/internal/models"
	"github.com/smarttransit/seat-reservation/internal/repository"
)

// SearchService handles the read-only trip search path
type SearchService struct {
	catalog repository.CatalogReader
	logger  *logrus.Logger
	now     func() time.Time
}

// NewSearchService creates a new search service
func NewSearchService(catalog repository.CatalogReader, logger *logrus.Logger) *SearchService {
	return &SearchService{
		catalog: catalog,
		logger:  logger,
		now:     time.Now,
	}
}

// SearchTrips finds active trips with bookable buses for a route and date.
// An unknown route and an empty date produce different not-found messages.
func (s *SearchService) SearchTrips(ctx context.Context, req *models.SearchTripsRequest) (*models.SearchTripsResponse, error) {
	origin := strings.TrimSpace(req.Origin)
	destination := strings.TrimSpace(req.Destination)
	if origin == "" || destination == "" {
		return nil, models.ErrInvalidRequest.WithMessage("origin and destination are required")
	}

	now := s.now()
	date, err := time.ParseInLocation(models.DateLayout, strings.TrimSpace(req.Date), now.Location())
	if err != nil {
		return nil, models.ErrInvalidRequest.WithMessage("date must be in DD-MM-YYYY format")
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if date.Before(today) {
		return nil, models.ErrInvalidRequest.WithMessage("travel date cannot be in the past")
	}

	s.logger.WithFields(logrus.Fields{
		"origin":      origin,
		"destination": destination,
		"date":        req.Date,
	}).Info("Processing search request")

	served, err := s.catalog.RouteServed(ctx, origin, destination)
	if err != nil {
		return nil, models.ErrInternal.Wrap(fmt.Errorf("error checking route: %w", err))
	}
	if !served {
		return nil, models.ErrNoTripsFound.WithMessage(
			"Sorry, we don't have buses operating between %s and %s. Please check the route names or try a different route.",
			origin, destination)
	}

	trips, err := s.catalog.SearchTrips(ctx, origin, destination, date)
	if err != nil {
		return nil, models.ErrInternal.Wrap(fmt.Errorf("error searching trips: %w", err))
	}
	if len(trips) == 0 {
		return nil, models.ErrNoTripsFound.WithMessage(
			"No buses available for %s. Try selecting a different date or check back later.",
			date.Format(models.DateLayout))
	}

	response := &models.SearchTripsResponse{
		Origin:      origin,
		Destination: destination,
		Date:        date.Format(models.DateLayout),
		Count:       len(trips),
		Trips:       make([]models.TripSearchResult, 0, len(trips)),
	}
	for _, t := range trips {
		summary := models.NewScheduleSummary(&t.Trip)
		result := models.TripSearchResult{
			TripID:        t.Trip.ID,
			Origin:        summary.Origin,
			Destination:   summary.Destination,
			Date:          summary.Date,
			DepartureTime: summary.DepartureTime,
			ArrivalTime:   summary.ArrivalTime,
			BasePrice:     t.Trip.BasePrice,
			Buses:         make([]models.BusSearchResult, 0, len(t.Assignments)),
		}
		for _, a := range t.Assignments {
			result.Buses = append(result.Buses, models.BusSearchResult{
				AssignmentID:   a.ID,
				PlateNumber:    a.PlateNumber,
				Company:        a.CompanyName,
				BusType:        a.BusType,
				Amenities:      a.Amenities,
				TotalSeats:     a.TotalSeats,
				RemainingSeats: a.RemainingSeats,
			})
		}
		response.Trips = append(response.Trips, result)
	}

	return response, nil
}

// GetSeatMap lists the taken seats of an assignment on a trip
func (s *SearchService) GetSeatMap(ctx context.Context, tripID, assignmentID string) (*models.SeatMap, error) {
	assignment, err := s.catalog.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, models.AsBookingError(err)
	}
	if assignment.TripID != tripID {
		return nil, models.ErrAssignmentNotFound
	}

	taken, err := s.catalog.ListTakenSeats(ctx, assignmentID)
	if err != nil {
		return nil, models.AsBookingError(err)
	}

	return &models.SeatMap{
		AssignmentID:   assignment.ID,
		TotalSeats:     assignment.TotalSeats,
		RemainingSeats: assignment.RemainingSeats,
		TakenSeats:     taken,
	}, nil
}
