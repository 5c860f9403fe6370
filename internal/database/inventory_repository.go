package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/seat-reservation/internal/models"
	"github.com/smarttransit/seat-reservation/internal/repository"
)

const reservationColumns = `id, trip_id, assignment_id, seat_number, price_paid,
	original_price, discount, promo_code, payment_state, user_id, booking_source,
	created_at, paid_at, cancelled_at`

// InventoryRepository guards seat capacity with row locks on
// vehicle_assignments. A claim holds its transaction, and therefore the
// assignment row lock, until Commit or Abort.
type InventoryRepository struct {
	db          *sqlx.DB
	lockTimeout time.Duration
}

// NewInventoryRepository creates a new InventoryRepository. lockTimeout bounds
// how long a claim waits for a concurrent claim on the same assignment.
func NewInventoryRepository(db *sqlx.DB, lockTimeout time.Duration) *InventoryRepository {
	return &InventoryRepository{db: db, lockTimeout: lockTimeout}
}

type lockedAssignment struct {
	ID             string            `db:"id"`
	PlateNumber    string            `db:"plate_number"`
	TotalSeats     int               `db:"total_seats"`
	RemainingSeats int               `db:"remaining_seats"`
	Status         models.TripStatus `db:"status"`
}

// TryClaimSeat locks the assignment row, checks capacity and the seat, and
// decrements remaining_seats inside a transaction left open for the claim
func (r *InventoryRepository) TryClaimSeat(ctx context.Context, assignmentID string, seat int) (repository.SeatClaim, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	claim, err := r.claim(ctx, tx, assignmentID, seat)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	return claim, nil
}

func (r *InventoryRepository) claim(ctx context.Context, tx *sqlx.Tx, assignmentID string, seat int) (*pgSeatClaim, error) {
	if r.lockTimeout > 0 {
		// SET does not accept bind parameters
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	var a lockedAssignment
	err := tx.GetContext(ctx, &a, `
		SELECT id, plate_number, total_seats, remaining_seats, status
		FROM vehicle_assignments
		WHERE id = $1
		FOR UPDATE`, assignmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrAssignmentNotFound
	}
	if isLockTimeout(err) {
		return nil, models.ErrInventoryBusy.Wrap(err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock assignment: %w", err)
	}

	if a.Status != models.TripStatusActive {
		return nil, models.ErrAssignmentInactive
	}
	if a.RemainingSeats <= 0 {
		return nil, models.ErrAssignmentFull
	}

	var taken bool
	err = tx.GetContext(ctx, &taken, `
		SELECT EXISTS (
			SELECT 1 FROM reservations
			WHERE assignment_id = $1 AND seat_number = $2 AND cancelled_at IS NULL
		)`, assignmentID, seat)
	if err != nil {
		return nil, fmt.Errorf("failed to check seat: %w", err)
	}
	if taken {
		return nil, models.ErrSeatAlreadyTaken.WithMessage("seat %d is already booked on bus %s", seat, a.PlateNumber)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE vehicle_assignments
		SET remaining_seats = remaining_seats - 1
		WHERE id = $1`, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to decrement remaining seats: %w", err)
	}

	return &pgSeatClaim{tx: tx, assignmentID: assignmentID, seat: seat, plate: a.PlateNumber}, nil
}

// Release cancels the live reservation on seat and restores the counter in
// one transaction. A free seat is a no-op.
func (r *InventoryRepository) Release(ctx context.Context, assignmentID string, seat int) (*models.Reservation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var res models.Reservation
	err = tx.GetContext(ctx, &res, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE assignment_id = $1 AND seat_number = $2 AND cancelled_at IS NULL
		FOR UPDATE`, assignmentID, seat)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock reservation: %w", err)
	}

	var cancelledAt time.Time
	err = tx.QueryRowxContext(ctx, `
		UPDATE reservations SET cancelled_at = NOW()
		WHERE id = $1
		RETURNING cancelled_at`, res.ID).Scan(&cancelledAt)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel reservation: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE vehicle_assignments
		SET remaining_seats = LEAST(remaining_seats + 1, total_seats)
		WHERE id = $1`, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to restore remaining seats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit release: %w", err)
	}

	res.CancelledAt = &cancelledAt
	return &res, nil
}

// pgSeatClaim is an open transaction holding the decremented counter
type pgSeatClaim struct {
	tx           *sqlx.Tx
	assignmentID string
	seat         int
	plate        string
	done         bool
}

func (c *pgSeatClaim) AssignmentID() string { return c.assignmentID }

func (c *pgSeatClaim) SeatNumber() int { return c.seat }

// Commit inserts the reservation and commits the claim transaction
func (c *pgSeatClaim) Commit(ctx context.Context, res *models.Reservation) error {
	if c.done {
		return models.ErrClaimLost
	}
	c.done = true

	_, err := c.tx.NamedExecContext(ctx, `
		INSERT INTO reservations (
			id, trip_id, assignment_id, seat_number, price_paid,
			original_price, discount, promo_code, payment_state, user_id,
			booking_source, created_at
		) VALUES (
			:id, :trip_id, :assignment_id, :seat_number, :price_paid,
			:original_price, :discount, :promo_code, :payment_state, :user_id,
			:booking_source, :created_at
		)`, res)
	if err != nil {
		c.tx.Rollback()
		if isUniqueViolation(err) {
			return models.ErrSeatAlreadyTaken.WithMessage("seat %d is already booked on bus %s", c.seat, c.plate)
		}
		return fmt.Errorf("failed to insert reservation: %w", err)
	}

	if err := c.tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return models.ErrSeatAlreadyTaken.WithMessage("seat %d is already booked on bus %s", c.seat, c.plate)
		}
		return fmt.Errorf("failed to commit reservation: %w", err)
	}
	return nil
}

// Abort rolls back the claim; it is a no-op after Commit
func (c *pgSeatClaim) Abort(ctx context.Context) error {
	if c.done {
		return nil
	}
	c.done = true

	if err := c.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to roll back claim: %w", err)
	}
	return nil
}
