package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/smarttransit/seat-reservation/internal/models"
)

func (s *Store) GetTrip(ctx context.Context, tripID string) (*models.TripInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trip, ok := s.trips[tripID]
	if !ok {
		return nil, models.ErrTripNotFound
	}
	cp := *trip
	return &cp, nil
}

func (s *Store) GetAssignment(ctx context.Context, assignmentID string) (*models.VehicleAssignment, error) {
	st := s.assignment(assignmentID)
	if st == nil {
		return nil, models.ErrAssignmentNotFound
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	cp := st.assignment
	return &cp, nil
}

func (s *Store) RouteServed(ctx context.Context, origin, destination string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, trip := range s.trips {
		if routeMatches(trip, origin, destination) {
			return true, nil
		}
	}
	return false, nil
}

// SearchTrips returns active trips on date whose route matches, each with its
// active assignments, ordered by departure
func (s *Store) SearchTrips(ctx context.Context, origin, destination string, date time.Time) ([]models.TripAvailability, error) {
	s.mu.RLock()
	var trips []models.TripInstance
	for _, trip := range s.trips {
		if trip.IsActive() && sameDay(trip.TravelDate, date) && routeMatches(trip, origin, destination) {
			trips = append(trips, *trip)
		}
	}
	states := make([]*assignmentState, 0, len(s.assignments))
	for _, st := range s.assignments {
		states = append(states, st)
	}
	s.mu.RUnlock()

	byTrip := make(map[string][]models.VehicleAssignment)
	for _, st := range states {
		st.mu.Lock()
		a := st.assignment
		st.mu.Unlock()
		if a.IsActive() {
			byTrip[a.TripID] = append(byTrip[a.TripID], a)
		}
	}

	sort.Slice(trips, func(i, j int) bool {
		return trips[i].DepartureDatetime.Before(trips[j].DepartureDatetime)
	})

	results := make([]models.TripAvailability, 0, len(trips))
	for _, trip := range trips {
		assignments := byTrip[trip.ID]
		if len(assignments) == 0 {
			continue
		}
		sort.Slice(assignments, func(i, j int) bool {
			return assignments[i].PlateNumber < assignments[j].PlateNumber
		})
		results = append(results, models.TripAvailability{Trip: trip, Assignments: assignments})
	}
	return results, nil
}

func (s *Store) ListTakenSeats(ctx context.Context, assignmentID string) ([]int, error) {
	st := s.assignment(assignmentID)
	if st == nil {
		return nil, models.ErrAssignmentNotFound
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	seats := make([]int, 0, len(st.seats))
	for seat, entry := range st.seats {
		if entry.committed {
			seats = append(seats, seat)
		}
	}
	sort.Ints(seats)
	return seats, nil
}

func routeMatches(trip *models.TripInstance, origin, destination string) bool {
	return containsFold(trip.RouteOrigin, origin) && containsFold(trip.RouteDestination, destination)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(substr)))
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
