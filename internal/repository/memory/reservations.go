package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/smarttransit/seat-reservation/internal/models"
)

func (s *Store) GetReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.reservations[id]
	if !ok {
		return nil, models.ErrReservationNotFound
	}
	cp := *res
	return &cp, nil
}

// ListByUser returns the user's reservations, newest first
func (s *Store) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []models.Reservation
	for _, res := range s.reservations {
		if res.OwnedBy(userID) {
			list = append(list, *res)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

// AttachRider upserts the rider profile; repeated calls replace it
func (s *Store) AttachRider(ctx context.Context, profile *models.RiderProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reservations[profile.ReservationID]; !ok {
		return models.ErrReservationNotFound
	}

	now := time.Now()
	cp := *profile
	if existing, ok := s.riders[profile.ReservationID]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.riders[profile.ReservationID] = &cp
	*profile = cp
	return nil
}

func (s *Store) GetRider(ctx context.Context, reservationID uuid.UUID) (*models.RiderProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.riders[reservationID]
	if !ok {
		return nil, nil
	}
	cp := *profile
	return &cp, nil
}

// MarkPaid moves a live PENDING reservation to PAID
func (s *Store) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.reservations[id]
	if !ok {
		return models.ErrReservationNotFound
	}
	if !res.IsLive() {
		return models.ErrAlreadyCancelled
	}
	if res.PaymentState == models.PaymentPaid {
		return models.ErrAlreadyPaid
	}
	res.PaymentState = models.PaymentPaid
	res.PaidAt = &paidAt
	return nil
}
