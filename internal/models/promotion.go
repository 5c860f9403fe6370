package models

import (
	"time"
)

// DiscountKind selects how a promotion's magnitude is interpreted
type DiscountKind string

const (
	DiscountPercentage DiscountKind = "PERCENTAGE"
	DiscountFixed      DiscountKind = "FIXED"
)

// Promotion is a discount rule with a validity window and a usage cap.
// CurrentUsage <= UsageCap must hold after every increment.
type Promotion struct {
	ID           string       `json:"id" db:"id"`
	Code         string       `json:"code" db:"code"`
	Description  string       `json:"description" db:"description"`
	DiscountKind DiscountKind `json:"discount_type" db:"discount_type"`
	Magnitude    float64      `json:"discount_value" db:"discount_value"`
	MaxDiscount  *float64     `json:"max_discount,omitempty" db:"max_discount"`
	ValidFrom    time.Time    `json:"valid_from" db:"valid_from"`
	ValidUntil   time.Time    `json:"valid_until" db:"valid_until"`
	UsageCap     int          `json:"max_uses" db:"max_uses"`
	CurrentUsage int          `json:"current_uses" db:"current_uses"`
	IsActive     bool         `json:"is_active" db:"is_active"`
}

// PriceBreakdown is the result of pricing one reservation attempt
type PriceBreakdown struct {
	OriginalPrice float64 `json:"original_price"`
	Discount      float64 `json:"discount"`
	FinalPrice    float64 `json:"price_paid"`
	PromoCode     *string `json:"promo_code,omitempty"`
}

// PromotionUsageDrift is a reconciliation finding for one promotion
type PromotionUsageDrift struct {
	Code             string `json:"code" db:"code"`
	UsageCap         int    `json:"max_uses" db:"max_uses"`
	CurrentUsage     int    `json:"current_uses" db:"current_uses"`
	ReservationsWith int    `json:"reservations_with_code" db:"reservations_with_code"`
}

// Overshoot reports whether the recorded usage exceeds the cap
func (d PromotionUsageDrift) Overshoot() bool {
	return d.CurrentUsage > d.UsageCap || d.ReservationsWith > d.UsageCap
}
