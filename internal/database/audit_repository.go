package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/seat-reservation/internal/models"
)

// AuditRepository runs the read-only consistency queries used by
// reconciliation
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// InventoryDrift lists assignments whose remaining_seats disagrees with
// total_seats minus live reservations
func (r *AuditRepository) InventoryDrift(ctx context.Context) ([]models.InventoryDrift, error) {
	var drift []models.InventoryDrift
	query := `
		SELECT a.id AS assignment_id, a.total_seats, a.remaining_seats,
		       COUNT(res.id) AS live_reservations
		FROM vehicle_assignments a
		LEFT JOIN reservations res
		       ON res.assignment_id = a.id AND res.cancelled_at IS NULL
		GROUP BY a.id, a.total_seats, a.remaining_seats
		HAVING a.remaining_seats <> a.total_seats - COUNT(res.id)
		ORDER BY a.id`

	if err := r.db.SelectContext(ctx, &drift, query); err != nil {
		return nil, fmt.Errorf("failed to audit inventory: %w", err)
	}
	return drift, nil
}

// PromotionUsageDrift lists promotions over their cap or whose counter
// disagrees with the reservations carrying the code
func (r *AuditRepository) PromotionUsageDrift(ctx context.Context) ([]models.PromotionUsageDrift, error) {
	var drift []models.PromotionUsageDrift
	query := `
		SELECT p.code, p.max_uses, p.current_uses,
		       COUNT(res.id) AS reservations_with_code
		FROM promotions p
		LEFT JOIN reservations res ON res.promo_code = p.code
		GROUP BY p.code, p.max_uses, p.current_uses
		HAVING p.current_uses > p.max_uses
		    OR COUNT(res.id) > p.max_uses
		    OR p.current_uses <> COUNT(res.id)
		ORDER BY p.code`

	if err := r.db.SelectContext(ctx, &drift, query); err != nil {
		return nil, fmt.Errorf("failed to audit promotions: %w", err)
	}
	return drift, nil
}

// IncompleteReservations lists live reservations created before olderThan
// without a rider profile
func (r *AuditRepository) IncompleteReservations(ctx context.Context, olderThan time.Time) ([]models.Reservation, error) {
	var list []models.Reservation
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations res
		WHERE res.cancelled_at IS NULL
		  AND res.created_at < $1
		  AND NOT EXISTS (
			SELECT 1 FROM rider_profiles p WHERE p.reservation_id = res.id
		  )
		ORDER BY res.created_at`

	if err := r.db.SelectContext(ctx, &list, query, olderThan); err != nil {
		return nil, fmt.Errorf("failed to list incomplete reservations: %w", err)
	}
	return list, nil
}
