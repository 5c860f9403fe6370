package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/smarttransit/seat-reservation/internal/models"
	"github.com/smarttransit/seat-reservation/internal/repository"
)

// TryClaimSeat checks and takes the seat under the assignment's mutex, so the
// decrement and the seat marker change together.
func (s *Store) TryClaimSeat(ctx context.Context, assignmentID string, seat int) (repository.SeatClaim, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.ErrInternal.Wrap(err)
	}

	st := s.assignment(assignmentID)
	if st == nil {
		return nil, models.ErrAssignmentNotFound
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.assignment.IsActive() {
		return nil, models.ErrAssignmentInactive
	}
	if st.assignment.RemainingSeats <= 0 {
		return nil, models.ErrAssignmentFull
	}
	if _, taken := st.seats[seat]; taken {
		return nil, models.ErrSeatAlreadyTaken.WithMessage("seat %d is already booked on bus %s", seat, st.assignment.PlateNumber)
	}

	token := uuid.New()
	st.seats[seat] = &seatEntry{token: token}
	st.assignment.RemainingSeats--

	return &seatClaim{store: s, state: st, seat: seat, token: token}, nil
}

// Release cancels the live reservation on seat and returns the seat to
// inventory. A free or still-pending seat is left untouched.
func (s *Store) Release(ctx context.Context, assignmentID string, seat int) (*models.Reservation, error) {
	st := s.assignment(assignmentID)
	if st == nil {
		return nil, nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	entry, ok := st.seats[seat]
	if !ok || !entry.committed {
		return nil, nil
	}

	delete(st.seats, seat)
	if st.assignment.RemainingSeats < st.assignment.TotalSeats {
		st.assignment.RemainingSeats++
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.reservations[entry.reservationID]
	if !ok {
		return nil, nil
	}
	now := time.Now()
	res.CancelledAt = &now
	cp := *res
	return &cp, nil
}

type seatClaim struct {
	store *Store
	state *assignmentState
	seat  int
	token uuid.UUID
}

func (c *seatClaim) AssignmentID() string { return c.state.assignment.ID }

func (c *seatClaim) SeatNumber() int { return c.seat }

// Commit stores the reservation if this claim still owns the seat
func (c *seatClaim) Commit(ctx context.Context, reservation *models.Reservation) error {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()

	entry, ok := c.state.seats[c.seat]
	if !ok || entry.token != c.token {
		return models.ErrClaimLost
	}
	if entry.committed {
		return nil
	}

	entry.committed = true
	entry.reservationID = reservation.ID

	cp := *reservation
	c.store.mu.Lock()
	c.store.reservations[cp.ID] = &cp
	c.store.mu.Unlock()
	return nil
}

// Abort frees a pending claim; a committed claim is left alone
func (c *seatClaim) Abort(ctx context.Context) error {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()

	entry, ok := c.state.seats[c.seat]
	if !ok || entry.token != c.token || entry.committed {
		return nil
	}

	delete(c.state.seats, c.seat)
	c.state.assignment.RemainingSeats++
	return nil
}
