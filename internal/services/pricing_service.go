package services

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation/internal/models"
	"github.com/smarttransit/seat-reservation/internal/repository"
)

// PricingService resolves the final fare of a reservation attempt and
// records promotion usage
type PricingService struct {
	promos repository.PromotionStore
	logger *logrus.Logger
}

// NewPricingService creates a new pricing service
func NewPricingService(promos repository.PromotionStore, logger *logrus.Logger) *PricingService {
	return &PricingService{
		promos: promos,
		logger: logger,
	}
}

// ValidatePromotion checks that promo can be applied at now
func ValidatePromotion(promo *models.Promotion, now time.Time) error {
	if !promo.IsActive {
		return models.ErrPromoInvalid
	}
	if promo.DiscountKind != models.DiscountPercentage && promo.DiscountKind != models.DiscountFixed {
		return models.ErrPromoInvalid.WithMessage("promo code %s has unknown discount type %q", promo.Code, promo.DiscountKind)
	}
	if now.Before(promo.ValidFrom) {
		return models.ErrPromoInvalid.WithMessage("promo code %s is not valid yet", promo.Code)
	}
	if now.After(promo.ValidUntil) {
		return models.ErrPromoExpired
	}
	if promo.CurrentUsage >= promo.UsageCap {
		return models.ErrPromoExhausted
	}
	return nil
}

// Price computes the final fare for baseFare with an optional promotion.
// The discount never exceeds the fare, so the final price is never negative.
func (s *PricingService) Price(baseFare float64, promo *models.Promotion, now time.Time) (*models.PriceBreakdown, error) {
	if baseFare < 0 || math.IsNaN(baseFare) || math.IsInf(baseFare, 0) {
		return nil, models.ErrInvalidRequest.WithMessage("base fare must be a non-negative amount")
	}

	breakdown := &models.PriceBreakdown{
		OriginalPrice: roundMoney(baseFare),
		FinalPrice:    roundMoney(baseFare),
	}
	if promo == nil {
		return breakdown, nil
	}

	if err := ValidatePromotion(promo, now); err != nil {
		return nil, err
	}

	discount := computeDiscount(baseFare, promo)
	breakdown.Discount = discount
	breakdown.FinalPrice = roundMoney(math.Max(baseFare-discount, 0))
	code := promo.Code
	breakdown.PromoCode = &code

	return breakdown, nil
}

// CommitUsage records one redemption of code. It must only be called after
// the owning reservation has been committed.
func (s *PricingService) CommitUsage(ctx context.Context, code string) (int, error) {
	usage, err := s.promos.IncrementUsage(ctx, code)
	if err != nil {
		return usage, err
	}

	s.logger.WithFields(logrus.Fields{
		"promo_code":    code,
		"current_usage": usage,
	}).Debug("Promo usage recorded")

	return usage, nil
}

func computeDiscount(baseFare float64, promo *models.Promotion) float64 {
	var discount float64
	switch promo.DiscountKind {
	case models.DiscountPercentage:
		discount = baseFare * (promo.Magnitude / 100)
	case models.DiscountFixed:
		discount = promo.Magnitude
	}

	if promo.MaxDiscount != nil && discount > *promo.MaxDiscount {
		discount = *promo.MaxDiscount
	}
	if discount > baseFare {
		discount = baseFare
	}
	if discount < 0 {
		discount = 0
	}
	return roundMoney(discount)
}

// roundMoney rounds to two decimal places
func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
