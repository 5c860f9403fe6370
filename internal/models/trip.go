package models

import (
	"time"
)

// TripStatus is the lifecycle state shared by trips and vehicle assignments
type TripStatus string

const (
	TripStatusActive    TripStatus = "ACTIVE"
	TripStatusCancelled TripStatus = "CANCELLED"
	TripStatusCompleted TripStatus = "COMPLETED"
)

// TripInstance is one dated departure of a route. Records are owned by the
// catalog service; the reservation engine only reads them.
type TripInstance struct {
	ID                string     `json:"id" db:"id"`
	RouteOrigin       string     `json:"origin" db:"route_origin"`
	RouteDestination  string     `json:"destination" db:"route_destination"`
	TravelDate        time.Time  `json:"travel_date" db:"travel_date"`
	DepartureDatetime time.Time  `json:"departure_datetime" db:"departure_datetime"`
	ArrivalDatetime   time.Time  `json:"arrival_datetime" db:"arrival_datetime"`
	BasePrice         float64    `json:"base_price" db:"base_price"`
	Status            TripStatus `json:"status" db:"status"`
}

// IsActive reports whether the trip accepts bookings
func (t *TripInstance) IsActive() bool {
	return t.Status == TripStatusActive
}

// VehicleAssignment is one vehicle's seat capacity allocated to a trip.
// 0 <= RemainingSeats <= TotalSeats holds at all times.
type VehicleAssignment struct {
	ID             string     `json:"id" db:"id"`
	TripID         string     `json:"trip_id" db:"trip_id"`
	PlateNumber    string     `json:"plate_number" db:"plate_number"`
	CompanyName    string     `json:"company_name" db:"company_name"`
	BusType        string     `json:"bus_type" db:"bus_type"`
	Amenities      string     `json:"amenities" db:"amenities"`
	TotalSeats     int        `json:"total_seats" db:"total_seats"`
	RemainingSeats int        `json:"remaining_seats" db:"remaining_seats"`
	Status         TripStatus `json:"status" db:"status"`
}

// IsActive reports whether the assignment accepts bookings
func (a *VehicleAssignment) IsActive() bool {
	return a.Status == TripStatusActive
}

// SeatInRange reports whether seat is a valid seat number for this vehicle
func (a *VehicleAssignment) SeatInRange(seat int) bool {
	return seat >= 1 && seat <= a.TotalSeats
}

// TripAvailability is the search read model: one trip with its bookable buses
type TripAvailability struct {
	Trip        TripInstance        `json:"trip"`
	Assignments []VehicleAssignment `json:"buses"`
}

// SeatMap lists the taken seat numbers of one assignment
type SeatMap struct {
	AssignmentID   string `json:"assignment_id"`
	TotalSeats     int    `json:"total_seats"`
	RemainingSeats int    `json:"remaining_seats"`
	TakenSeats     []int  `json:"taken_seats"`
}
