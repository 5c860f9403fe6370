package memory

import (
	"context"
	"strings"

	"github.com/smarttransit/seat-reservation/internal/models"
)

func (s *Store) GetByCode(ctx context.Context, code string) (*models.Promotion, error) {
	ps := s.promotion(code)
	if ps == nil {
		return nil, models.ErrPromoNotFound
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	cp := ps.promo
	return &cp, nil
}

// IncrementUsage is a compare-and-increment under the promotion's mutex
func (s *Store) IncrementUsage(ctx context.Context, code string) (int, error) {
	ps := s.promotion(code)
	if ps == nil {
		return 0, models.ErrPromoNotFound
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.promo.CurrentUsage >= ps.promo.UsageCap {
		return ps.promo.CurrentUsage, models.ErrPromoExhausted
	}
	ps.promo.CurrentUsage++
	return ps.promo.CurrentUsage, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
