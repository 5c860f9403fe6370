package memory

import (
	"context"
	"sort"
	"time"

	"github.com/smarttransit/seat-reservation/internal/models"
)

// InventoryDrift lists assignments whose counter disagrees with their live
// reservations. Seats held by claims still in flight count as occupied.
func (s *Store) InventoryDrift(ctx context.Context) ([]models.InventoryDrift, error) {
	s.mu.RLock()
	states := make([]*assignmentState, 0, len(s.assignments))
	for _, st := range s.assignments {
		states = append(states, st)
	}
	s.mu.RUnlock()

	var drift []models.InventoryDrift
	for _, st := range states {
		st.mu.Lock()
		a := st.assignment
		live := s.countLive(a.ID)
		pending := 0
		for _, entry := range st.seats {
			if !entry.committed {
				pending++
			}
		}
		st.mu.Unlock()

		d := models.InventoryDrift{
			AssignmentID:     a.ID,
			TotalSeats:       a.TotalSeats,
			RemainingSeats:   a.RemainingSeats,
			LiveReservations: live,
		}
		if d.RemainingSeats+pending != d.Expected() {
			drift = append(drift, d)
		}
	}
	sort.Slice(drift, func(i, j int) bool { return drift[i].AssignmentID < drift[j].AssignmentID })
	return drift, nil
}

func (s *Store) countLive(assignmentID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, res := range s.reservations {
		if res.AssignmentID == assignmentID && res.IsLive() {
			n++
		}
	}
	return n
}

// PromotionUsageDrift lists promotions whose usage exceeds the cap or
// disagrees with the reservations carrying the code
func (s *Store) PromotionUsageDrift(ctx context.Context) ([]models.PromotionUsageDrift, error) {
	s.mu.RLock()
	withCode := make(map[string]int)
	for _, res := range s.reservations {
		if res.PromoCode != nil {
			withCode[*res.PromoCode]++
		}
	}
	states := make([]*promotionState, 0, len(s.promotions))
	for _, ps := range s.promotions {
		states = append(states, ps)
	}
	s.mu.RUnlock()

	var drift []models.PromotionUsageDrift
	for _, ps := range states {
		ps.mu.Lock()
		p := ps.promo
		ps.mu.Unlock()

		d := models.PromotionUsageDrift{
			Code:             p.Code,
			UsageCap:         p.UsageCap,
			CurrentUsage:     p.CurrentUsage,
			ReservationsWith: withCode[p.Code],
		}
		if d.Overshoot() || d.CurrentUsage != d.ReservationsWith {
			drift = append(drift, d)
		}
	}
	sort.Slice(drift, func(i, j int) bool { return drift[i].Code < drift[j].Code })
	return drift, nil
}

// IncompleteReservations lists live reservations created before olderThan
// that still have no rider profile
func (s *Store) IncompleteReservations(ctx context.Context, olderThan time.Time) ([]models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []models.Reservation
	for id, res := range s.reservations {
		if !res.IsLive() || !res.CreatedAt.Before(olderThan) {
			continue
		}
		if _, ok := s.riders[id]; !ok {
			list = append(list, *res)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}
