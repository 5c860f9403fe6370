package memory

import (
	"sync"

	"github.com/google/uuid"
	"github.com/smarttransit/seat-reservation/internal/models"
	"github.com/smarttransit/seat-reservation/internal/repository"
)

var _ repository.Store = (*Store)(nil)

// seatEntry marks a seat as taken. A claim is pending until Commit stores the
// reservation; token identifies the claim that owns the entry.
type seatEntry struct {
	token         uuid.UUID
	reservationID uuid.UUID
	committed     bool
}

// assignmentState serializes every mutation of one assignment's inventory.
// Different assignments never contend.
type assignmentState struct {
	mu         sync.Mutex
	assignment models.VehicleAssignment
	seats      map[int]*seatEntry
}

type promotionState struct {
	mu    sync.Mutex
	promo models.Promotion
}

// Store is an in-process implementation of every storage port.
//
// Lock order is assignmentState.mu before Store.mu; Store.mu only guards the
// maps and the reservation/rider records and is never held while waiting on
// a per-resource mutex.
type Store struct {
	mu           sync.RWMutex
	trips        map[string]*models.TripInstance
	assignments  map[string]*assignmentState
	promotions   map[string]*promotionState
	reservations map[uuid.UUID]*models.Reservation
	riders       map[uuid.UUID]*models.RiderProfile
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		trips:        make(map[string]*models.TripInstance),
		assignments:  make(map[string]*assignmentState),
		promotions:   make(map[string]*promotionState),
		reservations: make(map[uuid.UUID]*models.Reservation),
		riders:       make(map[uuid.UUID]*models.RiderProfile),
	}
}

// AddTrip registers a trip, replacing any trip with the same id
func (s *Store) AddTrip(trip models.TripInstance) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trips[trip.ID] = &trip
}

// AddAssignment registers a vehicle assignment. RemainingSeats defaults to
// TotalSeats when zero and is clamped to the valid range.
func (s *Store) AddAssignment(assignment models.VehicleAssignment) {
	if assignment.RemainingSeats <= 0 && assignment.TotalSeats > 0 {
		assignment.RemainingSeats = assignment.TotalSeats
	}
	if assignment.RemainingSeats > assignment.TotalSeats {
		assignment.RemainingSeats = assignment.TotalSeats
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.assignments[assignment.ID] = &assignmentState{
		assignment: assignment,
		seats:      make(map[int]*seatEntry),
	}
}

// SetRemainingSeats overrides the counter of an assignment, for fixtures that
// need an exhausted or drifted inventory.
func (s *Store) SetRemainingSeats(assignmentID string, remaining int) bool {
	st := s.assignment(assignmentID)
	if st == nil {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	st.assignment.RemainingSeats = remaining
	return true
}

// AddPromotion registers a promotion under its upper-cased code
func (s *Store) AddPromotion(promo models.Promotion) {
	promo.Code = normalizeCode(promo.Code)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.promotions[promo.Code] = &promotionState{promo: promo}
}

func (s *Store) assignment(id string) *assignmentState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.assignments[id]
}

func (s *Store) promotion(code string) *promotionState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.promotions[normalizeCode(code)]
}
