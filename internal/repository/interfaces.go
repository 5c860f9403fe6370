package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/smarttransit/seat-reservation/internal/models"
)

// CatalogReader is the read-only view of catalog-owned trips and vehicle
// assignments. Missing records are reported as models.ErrTripNotFound and
// models.ErrAssignmentNotFound.
type CatalogReader interface {
	GetTrip(ctx context.Context, tripID string) (*models.TripInstance, error)
	GetAssignment(ctx context.Context, assignmentID string) (*models.VehicleAssignment, error)
	// RouteServed reports whether any trip exists for the origin/destination pair
	RouteServed(ctx context.Context, origin, destination string) (bool, error)
	SearchTrips(ctx context.Context, origin, destination string, date time.Time) ([]models.TripAvailability, error)
	ListTakenSeats(ctx context.Context, assignmentID string) ([]int, error)
}

// SeatClaim is an uncommitted, exclusive claim on one seat. Exactly one of
// Commit or Abort must be called.
type SeatClaim interface {
	AssignmentID() string
	SeatNumber() int
	// Commit persists the reservation together with the inventory decrement
	Commit(ctx context.Context, reservation *models.Reservation) error
	// Abort undoes the claim; calling it after Commit is a no-op
	Abort(ctx context.Context) error
}

// InventoryStore owns per-assignment seat capacity
type InventoryStore interface {
	// TryClaimSeat claims seat exclusively or fails fast with
	// ErrAssignmentInactive, ErrAssignmentFull or ErrSeatAlreadyTaken.
	TryClaimSeat(ctx context.Context, assignmentID string, seat int) (SeatClaim, error)
	// Release cancels the live reservation holding seat and returns its seat
	// to inventory in one step. Releasing a free seat is a no-op and returns
	// a nil reservation.
	Release(ctx context.Context, assignmentID string, seat int) (*models.Reservation, error)
}

// ReservationRepository reads reservations and manages their mutable satellites
type ReservationRepository interface {
	GetReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Reservation, error)
	// AttachRider creates or replaces the rider profile of a reservation
	AttachRider(ctx context.Context, profile *models.RiderProfile) error
	// GetRider returns nil without error when no profile is attached
	GetRider(ctx context.Context, reservationID uuid.UUID) (*models.RiderProfile, error)
	MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) error
}

// PromotionStore holds promotions and their usage counters
type PromotionStore interface {
	GetByCode(ctx context.Context, code string) (*models.Promotion, error)
	// IncrementUsage increments the usage counter only while it is below the
	// cap and returns the new count, or ErrPromoExhausted.
	IncrementUsage(ctx context.Context, code string) (int, error)
}

// Auditor exposes the consistency checks run by reconciliation
type Auditor interface {
	InventoryDrift(ctx context.Context) ([]models.InventoryDrift, error)
	PromotionUsageDrift(ctx context.Context) ([]models.PromotionUsageDrift, error)
	IncompleteReservations(ctx context.Context, olderThan time.Time) ([]models.Reservation, error)
}

// Store bundles every port; both backends implement it
type Store interface {
	CatalogReader
	InventoryStore
	ReservationRepository
	PromotionStore
	Auditor
}
