package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/seat-reservation/internal/models"
)

const riderColumns = `reservation_id, first_name, last_name, email, phone, age,
	gender, nationality, boarding_point, dropping_point, created_at, updated_at`

// ReservationRepository handles database operations for the reservations and
// rider_profiles tables
type ReservationRepository struct {
	db *sqlx.DB
}

// NewReservationRepository creates a new ReservationRepository
func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// GetReservation retrieves a reservation by ID
func (r *ReservationRepository) GetReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var res models.Reservation
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

	err := r.db.GetContext(ctx, &res, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return &res, nil
}

// ListByUser returns the user's reservations, newest first
func (r *ReservationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Reservation, error) {
	var list []models.Reservation
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE user_id = $1
		ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &list, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return list, nil
}

// AttachRider inserts or replaces the rider profile of a reservation
func (r *ReservationRepository) AttachRider(ctx context.Context, profile *models.RiderProfile) error {
	query := `
		INSERT INTO rider_profiles (
			reservation_id, first_name, last_name, email, phone, age,
			gender, nationality, boarding_point, dropping_point
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (reservation_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			age = EXCLUDED.age,
			gender = EXCLUDED.gender,
			nationality = EXCLUDED.nationality,
			boarding_point = EXCLUDED.boarding_point,
			dropping_point = EXCLUDED.dropping_point,
			updated_at = NOW()
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		profile.ReservationID, profile.FirstName, profile.LastName, profile.Email,
		profile.Phone, profile.Age, profile.Gender, profile.Nationality,
		profile.BoardingPoint, profile.DroppingPoint,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		// rider_profiles.reservation_id references reservations(id)
		if pgErrorCode(err) == codeForeignKeyViolation {
			return models.ErrReservationNotFound
		}
		return fmt.Errorf("failed to attach rider: %w", err)
	}
	return nil
}

// GetRider returns the rider profile, or nil when none is attached
func (r *ReservationRepository) GetRider(ctx context.Context, reservationID uuid.UUID) (*models.RiderProfile, error) {
	var profile models.RiderProfile
	query := `SELECT ` + riderColumns + ` FROM rider_profiles WHERE reservation_id = $1`

	err := r.db.GetContext(ctx, &profile, query, reservationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rider: %w", err)
	}
	return &profile, nil
}

// MarkPaid moves a live PENDING reservation to PAID
func (r *ReservationRepository) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE reservations
		SET payment_state = $2, paid_at = $3
		WHERE id = $1 AND cancelled_at IS NULL AND payment_state = $4`,
		id, models.PaymentPaid, paidAt, models.PaymentPending)
	if err != nil {
		return fmt.Errorf("failed to mark reservation paid: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// Nothing updated: explain why
	res, err := r.GetReservation(ctx, id)
	if err != nil {
		return err
	}
	if !res.IsLive() {
		return models.ErrAlreadyCancelled
	}
	return models.ErrAlreadyPaid
}
