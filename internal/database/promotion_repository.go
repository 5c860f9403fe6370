package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/seat-reservation/internal/models"
)

// PromotionRepository handles database operations for the promotions table
type PromotionRepository struct {
	db *sqlx.DB
}

// NewPromotionRepository creates a new PromotionRepository
func NewPromotionRepository(db *sqlx.DB) *PromotionRepository {
	return &PromotionRepository{db: db}
}

// GetByCode retrieves a promotion by its code, case-insensitively
func (r *PromotionRepository) GetByCode(ctx context.Context, code string) (*models.Promotion, error) {
	var promo models.Promotion
	query := `
		SELECT id, code, description, discount_type, discount_value, max_discount,
		       valid_from, valid_until, max_uses, current_uses, is_active
		FROM promotions
		WHERE code = $1`

	err := r.db.GetContext(ctx, &promo, query, strings.ToUpper(strings.TrimSpace(code)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrPromoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get promotion: %w", err)
	}
	return &promo, nil
}

// IncrementUsage atomically increments current_uses while it is below
// max_uses and returns the new count
func (r *PromotionRepository) IncrementUsage(ctx context.Context, code string) (int, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	var usage int
	err := r.db.QueryRowxContext(ctx, `
		UPDATE promotions
		SET current_uses = current_uses + 1
		WHERE code = $1 AND current_uses < max_uses
		RETURNING current_uses`, code).Scan(&usage)
	if err == nil {
		return usage, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to increment promotion usage: %w", err)
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM promotions WHERE code = $1)`, code); err != nil {
		return 0, fmt.Errorf("failed to check promotion: %w", err)
	}
	if !exists {
		return 0, models.ErrPromoNotFound
	}
	return 0, models.ErrPromoExhausted
}
