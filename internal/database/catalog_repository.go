package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/seat-reservation/internal/models"
)

const tripColumns = `id, route_origin, route_destination, travel_date,
	departure_datetime, arrival_datetime, base_price, status`

const assignmentColumns = `id, trip_id, plate_number, company_name, bus_type,
	amenities, total_seats, remaining_seats, status`

// CatalogRepository reads the catalog-owned trip_instances and
// vehicle_assignments tables
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository creates a new CatalogRepository
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// GetTrip retrieves a trip instance by ID
func (r *CatalogRepository) GetTrip(ctx context.Context, tripID string) (*models.TripInstance, error) {
	var trip models.TripInstance
	query := `SELECT ` + tripColumns + ` FROM trip_instances WHERE id = $1`

	err := r.db.GetContext(ctx, &trip, query, tripID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrTripNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return &trip, nil
}

// GetAssignment retrieves a vehicle assignment by ID
func (r *CatalogRepository) GetAssignment(ctx context.Context, assignmentID string) (*models.VehicleAssignment, error) {
	var assignment models.VehicleAssignment
	query := `SELECT ` + assignmentColumns + ` FROM vehicle_assignments WHERE id = $1`

	err := r.db.GetContext(ctx, &assignment, query, assignmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrAssignmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return &assignment, nil
}

// RouteServed reports whether any trip ever ran between origin and destination
func (r *CatalogRepository) RouteServed(ctx context.Context, origin, destination string) (bool, error) {
	var served bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM trip_instances
			WHERE route_origin ILIKE '%' || $1 || '%'
			  AND route_destination ILIKE '%' || $2 || '%'
		)`

	if err := r.db.GetContext(ctx, &served, query, origin, destination); err != nil {
		return false, fmt.Errorf("failed to check route: %w", err)
	}
	return served, nil
}

// searchRow is one (trip, assignment) pair of the search join
type searchRow struct {
	models.TripInstance
	AssignmentID   string            `db:"assignment_id"`
	PlateNumber    string            `db:"plate_number"`
	CompanyName    string            `db:"company_name"`
	BusType        string            `db:"bus_type"`
	Amenities      string            `db:"amenities"`
	TotalSeats     int               `db:"total_seats"`
	RemainingSeats int               `db:"remaining_seats"`
	BusStatus      models.TripStatus `db:"bus_status"`
}

// SearchTrips returns active trips on date with their active assignments,
// ordered by departure
func (r *CatalogRepository) SearchTrips(ctx context.Context, origin, destination string, date time.Time) ([]models.TripAvailability, error) {
	query := `
		SELECT t.id, t.route_origin, t.route_destination, t.travel_date,
		       t.departure_datetime, t.arrival_datetime, t.base_price, t.status,
		       a.id AS assignment_id, a.plate_number, a.company_name, a.bus_type,
		       a.amenities, a.total_seats, a.remaining_seats, a.status AS bus_status
		FROM trip_instances t
		JOIN vehicle_assignments a ON a.trip_id = t.id
		WHERE t.route_origin ILIKE '%' || $1 || '%'
		  AND t.route_destination ILIKE '%' || $2 || '%'
		  AND t.travel_date = $3
		  AND t.status = 'ACTIVE'
		  AND a.status = 'ACTIVE'
		ORDER BY t.departure_datetime, t.id, a.plate_number`

	var rows []searchRow
	if err := r.db.SelectContext(ctx, &rows, query, origin, destination, date.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("failed to search trips: %w", err)
	}

	var results []models.TripAvailability
	for _, row := range rows {
		if len(results) == 0 || results[len(results)-1].Trip.ID != row.ID {
			results = append(results, models.TripAvailability{Trip: row.TripInstance})
		}
		last := &results[len(results)-1]
		last.Assignments = append(last.Assignments, models.VehicleAssignment{
			ID:             row.AssignmentID,
			TripID:         row.ID,
			PlateNumber:    row.PlateNumber,
			CompanyName:    row.CompanyName,
			BusType:        row.BusType,
			Amenities:      row.Amenities,
			TotalSeats:     row.TotalSeats,
			RemainingSeats: row.RemainingSeats,
			Status:         row.BusStatus,
		})
	}
	return results, nil
}

// ListTakenSeats returns the seat numbers held by live reservations
func (r *CatalogRepository) ListTakenSeats(ctx context.Context, assignmentID string) ([]int, error) {
	seats := []int{}
	query := `
		SELECT seat_number FROM reservations
		WHERE assignment_id = $1 AND cancelled_at IS NULL
		ORDER BY seat_number`

	if err := r.db.SelectContext(ctx, &seats, query, assignmentID); err != nil {
		return nil, fmt.Errorf("failed to list taken seats: %w", err)
	}
	return seats, nil
}
