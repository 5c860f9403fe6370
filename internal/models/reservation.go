package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentState is the payment status of a reservation. Payment capture is
// external; the engine only records the transition.
type PaymentState string

const (
	PaymentPending PaymentState = "PENDING"
	PaymentPaid    PaymentState = "PAID"
)

// BookingSource represents where the booking originated
type BookingSource string

const (
	BookingSourceMobile  BookingSource = "mobile"
	BookingSourceTablet  BookingSource = "tablet"
	BookingSourceWeb     BookingSource = "web"
	BookingSourceBot     BookingSource = "bot"
	BookingSourceUnknown BookingSource = "unknown"
)

// Reservation is a claim on exactly one seat within one vehicle assignment.
// At most one live (not cancelled) reservation exists per (assignment, seat).
type Reservation struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	TripID        string        `json:"trip_id" db:"trip_id"`
	AssignmentID  string        `json:"assignment_id" db:"assignment_id"`
	SeatNumber    int           `json:"seat_number" db:"seat_number"`
	PricePaid     float64       `json:"price_paid" db:"price_paid"`
	OriginalPrice float64       `json:"original_price" db:"original_price"`
	Discount      float64       `json:"discount" db:"discount"`
	PromoCode     *string       `json:"promo_code,omitempty" db:"promo_code"`
	PaymentState  PaymentState  `json:"payment_state" db:"payment_state"`
	UserID        *uuid.UUID    `json:"user_id,omitempty" db:"user_id"`
	BookingSource BookingSource `json:"booking_source" db:"booking_source"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	PaidAt        *time.Time    `json:"paid_at,omitempty" db:"paid_at"`
	CancelledAt   *time.Time    `json:"cancelled_at,omitempty" db:"cancelled_at"`
}

// IsLive reports whether the reservation still holds its seat
func (r *Reservation) IsLive() bool {
	return r.CancelledAt == nil
}

// IsGuest reports whether the reservation has no registered owner
func (r *Reservation) IsGuest() bool {
	return r.UserID == nil
}

// OwnedBy reports whether userID owns the reservation
func (r *Reservation) OwnedBy(userID uuid.UUID) bool {
	return r.UserID != nil && *r.UserID == userID
}

// RiderProfile holds manifest and contact details for a reservation's occupant
type RiderProfile struct {
	ReservationID uuid.UUID `json:"booking_id" db:"reservation_id"`
	FirstName     string    `json:"first_name" db:"first_name"`
	LastName      string    `json:"last_name" db:"last_name"`
	Email         string    `json:"email" db:"email"`
	Phone         string    `json:"phone" db:"phone"`
	Age           int       `json:"age" db:"age"`
	Gender        string    `json:"gender" db:"gender"`
	Nationality   string    `json:"nationality" db:"nationality"`
	BoardingPoint string    `json:"boarding_point" db:"boarding_point"`
	DroppingPoint string    `json:"dropping_point" db:"dropping_point"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// FullName returns the rider's display name
func (p *RiderProfile) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// InventoryDrift is a reconciliation finding: an assignment whose counter
// disagrees with its live reservations.
type InventoryDrift struct {
	AssignmentID     string `json:"assignment_id" db:"assignment_id"`
	TotalSeats       int    `json:"total_seats" db:"total_seats"`
	RemainingSeats   int    `json:"remaining_seats" db:"remaining_seats"`
	LiveReservations int    `json:"live_reservations" db:"live_reservations"`
}

// Expected returns the remaining seat count implied by live reservations
func (d InventoryDrift) Expected() int {
	return d.TotalSeats - d.LiveReservations
}
